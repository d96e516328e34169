package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/quickmech/quickmech-backend/internal/models"
)

// ReservationRepository 配件预留仓储
type ReservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository 创建配件预留仓储
func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Create 创建预留（取件码命中唯一索引时返回错误，由调用方重试）
func (r *ReservationRepository) Create(ctx context.Context, reservation *models.PartReservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

// GetByID 根据 ID 获取预留
func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*models.PartReservation, error) {
	var reservation models.PartReservation
	err := r.db.WithContext(ctx).Preload("Part").First(&reservation, id).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// GetByPickupCode 根据取件码获取预留
func (r *ReservationRepository) GetByPickupCode(ctx context.Context, code string) (*models.PartReservation, error) {
	var reservation models.PartReservation
	err := r.db.WithContext(ctx).Preload("Part").
		Where("pickup_code = ?", code).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// GetActiveByOrder 获取订单当前未关闭的预留
func (r *ReservationRepository) GetActiveByOrder(ctx context.Context, orderID int64) (*models.PartReservation, error) {
	var reservation models.PartReservation
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, []string{
			models.ReservationStatusPending,
			models.ReservationStatusReady,
		}).
		Order("id DESC").
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// UpdateStatusCAS 状态机式更新：仅当当前状态匹配时生效
// 返回受影响行数；0 表示状态已被并发修改
func (r *ReservationRepository) UpdateStatusCAS(ctx context.Context, id int64, fromStatuses []string, fields map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.PartReservation{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// UpdateStatusCASTx 事务版 CAS 更新
func (r *ReservationRepository) UpdateStatusCASTx(tx *gorm.DB, id int64, fromStatuses []string, fields map[string]interface{}) (int64, error) {
	result := tx.Model(&models.PartReservation{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// ListByShop 配件店预留列表（可选按状态过滤）
func (r *ReservationRepository) ListByShop(ctx context.Context, autopartsID int64, status string, offset, limit int) ([]*models.PartReservation, int64, error) {
	var reservations []*models.PartReservation
	var total int64

	query := r.db.WithContext(ctx).Model(&models.PartReservation{}).
		Where("autoparts_id = ?", autopartsID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Preload("Part").Order("id DESC").Offset(offset).Limit(limit).Find(&reservations).Error; err != nil {
		return nil, 0, err
	}
	return reservations, total, nil
}

// ListByMechanic 技师预留列表
func (r *ReservationRepository) ListByMechanic(ctx context.Context, mechanicID int64, offset, limit int) ([]*models.PartReservation, int64, error) {
	var reservations []*models.PartReservation
	var total int64

	query := r.db.WithContext(ctx).Model(&models.PartReservation{}).
		Where("mechanic_id = ?", mechanicID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Preload("Part").Order("id DESC").Offset(offset).Limit(limit).Find(&reservations).Error; err != nil {
		return nil, 0, err
	}
	return reservations, total, nil
}

// ListExpiredPending 获取已超时的待确认预留（定时清理用）
func (r *ReservationRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*models.PartReservation, error) {
	var reservations []*models.PartReservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", models.ReservationStatusPending, now).
		Limit(limit).
		Find(&reservations).Error
	return reservations, err
}
