package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/quickmech/quickmech-backend/internal/models"
)

// PayoutRepository 提现仓储
type PayoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository 创建提现仓储
func NewPayoutRepository(db *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// CreateTx 事务中创建提现申请
func (r *PayoutRepository) CreateTx(tx *gorm.DB, payout *models.PayoutRequest) error {
	return tx.Create(payout).Error
}

// GetByID 根据 ID 获取提现申请
func (r *PayoutRepository) GetByID(ctx context.Context, id int64) (*models.PayoutRequest, error) {
	var payout models.PayoutRequest
	err := r.db.WithContext(ctx).First(&payout, id).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// HasPending 是否已有待审核的提现申请
func (r *PayoutRepository) HasPending(ctx context.Context, partyID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PayoutRequest{}).
		Where("party_id = ? AND status = ?", partyID, models.PayoutStatusPending).
		Count(&count).Error
	return count > 0, err
}

// UpdateStatusCASTx 事务版状态更新：仅当当前状态匹配时生效
func (r *PayoutRepository) UpdateStatusCASTx(tx *gorm.DB, id int64, fromStatus string, fields map[string]interface{}) (int64, error) {
	result := tx.Model(&models.PayoutRequest{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// ListByParty 本方提现历史
func (r *PayoutRepository) ListByParty(ctx context.Context, partyID int64, offset, limit int) ([]*models.PayoutRequest, int64, error) {
	var payouts []*models.PayoutRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&models.PayoutRequest{}).Where("party_id = ?", partyID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&payouts).Error; err != nil {
		return nil, 0, err
	}
	return payouts, total, nil
}

// ListAll 全量提现列表（管理端，可选按状态过滤）
func (r *PayoutRepository) ListAll(ctx context.Context, status string, offset, limit int) ([]*models.PayoutRequest, int64, error) {
	var payouts []*models.PayoutRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&models.PayoutRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Preload("Party").Order("id DESC").Offset(offset).Limit(limit).Find(&payouts).Error; err != nil {
		return nil, 0, err
	}
	return payouts, total, nil
}
