package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/quickmech/quickmech-backend/internal/models"
)

// PaymentRepository 支付仓储
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓储
func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create 创建支付记录
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// GetByID 根据 ID 获取支付记录
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Preload("Split").First(&payment, id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByPaymentNo 根据支付单号获取支付记录
func (r *PaymentRepository) GetByPaymentNo(ctx context.Context, paymentNo string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("payment_no = ?", paymentNo).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByExternalRef 根据外部支付引用获取支付记录（webhook 回调用）
func (r *PaymentRepository) GetByExternalRef(ctx context.Context, ref string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("external_ref = ?", ref).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPaidByOrderKind 获取订单某类型的已支付记录
func (r *PaymentRepository) GetPaidByOrderKind(ctx context.Context, orderID int64, kind string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND kind = ? AND status = ?", orderID, kind, models.PaymentStatusPaid).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdateStatusCAS 状态机式更新：仅当当前状态匹配时生效
func (r *PaymentRepository) UpdateStatusCAS(ctx context.Context, id int64, fromStatus string, fields map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// UpdateStatusCASTx 事务版 CAS 更新
func (r *PaymentRepository) UpdateStatusCASTx(tx *gorm.DB, id int64, fromStatus string, fields map[string]interface{}) (int64, error) {
	result := tx.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// CreateSplitTx 事务中写入分账明细
func (r *PaymentRepository) CreateSplitTx(tx *gorm.DB, split *models.PaymentSplit) error {
	return tx.Create(split).Error
}

// ListByClient 客户支付记录列表
func (r *PaymentRepository) ListByClient(ctx context.Context, clientID int64, offset, limit int) ([]*models.Payment, int64, error) {
	var payments []*models.Payment
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Payment{}).Where("client_id = ?", clientID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// ListAll 全量支付记录（管理端，可选按状态/市场过滤）
func (r *PaymentRepository) ListAll(ctx context.Context, status, market string, offset, limit int) ([]*models.Payment, int64, error) {
	var payments []*models.Payment
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Payment{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if market != "" {
		query = query.Where("market = ?", market)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// SumPlatformFeeSince 统计起始时间以来的平台佣金（管理端看板）
func (r *PaymentRepository) SumPlatformFeeSince(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("status = ? AND paid_at >= ?", models.PaymentStatusPaid, since).
		Select("COALESCE(SUM(platform_fee), 0)").
		Scan(&total).Error
	return total, err
}

// CountPaidSince 统计起始时间以来的已支付笔数
func (r *PaymentRepository) CountPaidSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("status = ? AND paid_at >= ?", models.PaymentStatusPaid, since).
		Count(&count).Error
	return count, err
}
