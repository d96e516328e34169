// Package repository 提供数据访问层
package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/quickmech/quickmech-backend/internal/models"
)

// UserRepository 用户仓储
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create 创建用户
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID 根据 ID 获取用户
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail 根据邮箱获取用户
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByEmail 邮箱是否已注册
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// Update 更新用户
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// UpdateFields 更新指定字段
func (r *UserRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields).Error
}

// UpdateLastLogin 更新最后登录时间
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login_at", now).Error
}

// SetActive 设置账号启用状态
func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_active", active).Error
}

// SetApproved 设置审核状态
func (r *UserRepository) SetApproved(ctx context.Context, id int64, approved bool) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_approved", approved).Error
}

// ApplyReviewTx 在事务中累计评分（评分总和重新计算为滑动平均）
func (r *UserRepository) ApplyReviewTx(tx *gorm.DB, mechanicID int64, rating int) error {
	return tx.Model(&models.User{}).Where("id = ?", mechanicID).
		Updates(map[string]interface{}{
			"rating":       gorm.Expr("(rating * review_count + ?) / (review_count + 1)", float64(rating)),
			"review_count": gorm.Expr("review_count + 1"),
		}).Error
}

// List 按条件分页获取用户列表
func (r *UserRepository) List(ctx context.Context, offset, limit int, userType, market string) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	query := r.db.WithContext(ctx).Model(&models.User{})
	if userType != "" {
		query = query.Where("user_type = ?", userType)
	}
	if market != "" {
		query = query.Where("market = ?", market)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// ListActiveMechanicIDs 获取指定市场在营且已审核的技师 ID（新订单广播用）
func (r *UserRepository) ListActiveMechanicIDs(ctx context.Context, market string, limit int) ([]int64, error) {
	var ids []int64
	query := r.db.WithContext(ctx).Model(&models.User{}).
		Where("user_type = ? AND is_active = ? AND is_approved = ?", models.UserTypeMechanic, true, true)
	if market != "" {
		query = query.Where("market = ?", market)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// CountByType 按用户类型统计
func (r *UserRepository) CountByType(ctx context.Context, userType string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("user_type = ?", userType).Count(&count).Error
	return count, err
}

// ListPendingApproval 获取待审核的技师/配件店
func (r *UserRepository) ListPendingApproval(ctx context.Context, offset, limit int) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	query := r.db.WithContext(ctx).Model(&models.User{}).
		Where("user_type IN ?", []string{models.UserTypeMechanic, models.UserTypeAutoparts}).
		Where("is_approved = ?", false)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
