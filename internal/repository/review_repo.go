package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/quickmech/quickmech-backend/internal/models"
)

// ReviewRepository 评价仓储
type ReviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository 创建评价仓储
func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// CreateTx 事务中创建评价（order_id 唯一索引防重复评价）
func (r *ReviewRepository) CreateTx(tx *gorm.DB, review *models.Review) error {
	return tx.Create(review).Error
}

// GetByOrderID 获取订单评价
func (r *ReviewRepository) GetByOrderID(ctx context.Context, orderID int64) (*models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

// ExistsByOrderID 订单是否已评价
func (r *ReviewRepository) ExistsByOrderID(ctx context.Context, orderID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Review{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	return count > 0, err
}

// ListByMechanic 技师评价列表
func (r *ReviewRepository) ListByMechanic(ctx context.Context, mechanicID int64, offset, limit int) ([]*models.Review, int64, error) {
	var reviews []*models.Review
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Review{}).Where("mechanic_id = ?", mechanicID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&reviews).Error; err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}
