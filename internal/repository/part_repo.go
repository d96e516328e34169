package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/quickmech/quickmech-backend/internal/models"
)

// PartRepository 配件仓储
type PartRepository struct {
	db *gorm.DB
}

// NewPartRepository 创建配件仓储
func NewPartRepository(db *gorm.DB) *PartRepository {
	return &PartRepository{db: db}
}

// Create 创建配件
func (r *PartRepository) Create(ctx context.Context, part *models.Part) error {
	return r.db.WithContext(ctx).Create(part).Error
}

// GetByID 根据 ID 获取配件
func (r *PartRepository) GetByID(ctx context.Context, id int64) (*models.Part, error) {
	var part models.Part
	err := r.db.WithContext(ctx).First(&part, id).Error
	if err != nil {
		return nil, err
	}
	return &part, nil
}

// Update 更新配件
func (r *PartRepository) Update(ctx context.Context, part *models.Part) error {
	return r.db.WithContext(ctx).Save(part).Error
}

// UpdateFields 更新指定字段
func (r *PartRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Part{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 下架配件
func (r *PartRepository) Delete(ctx context.Context, autopartsID, id int64) error {
	result := r.db.WithContext(ctx).
		Where("autoparts_id = ?", autopartsID).
		Delete(&models.Part{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DecrementStockTx 事务中扣减库存（仅当库存充足）
// 返回受影响行数；0 表示库存不足或配件不存在
func (r *PartRepository) DecrementStockTx(tx *gorm.DB, id int64, quantity int) (int64, error) {
	result := tx.Model(&models.Part{}).
		Where("id = ? AND stock >= ?", id, quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
	return result.RowsAffected, result.Error
}

// IncrementStockTx 事务中返还库存
func (r *PartRepository) IncrementStockTx(tx *gorm.DB, id int64, quantity int) error {
	return tx.Model(&models.Part{}).
		Where("id = ?", id).
		UpdateColumn("stock", gorm.Expr("stock + ?", quantity)).Error
}

// ListByShop 获取配件店的配件列表
func (r *PartRepository) ListByShop(ctx context.Context, autopartsID int64, offset, limit int) ([]*models.Part, int64, error) {
	var parts []*models.Part
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Part{}).Where("autoparts_id = ?", autopartsID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&parts).Error; err != nil {
		return nil, 0, err
	}
	return parts, total, nil
}

// Search 按条件搜索在售配件
func (r *PartRepository) Search(ctx context.Context, category, make, model, keyword string, offset, limit int) ([]*models.Part, int64, error) {
	var parts []*models.Part
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Part{}).
		Where("is_active = ? AND stock > 0", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if make != "" {
		query = query.Where("make IS NULL OR make = ?", make)
	}
	if model != "" {
		query = query.Where("model IS NULL OR model = ?", model)
	}
	if keyword != "" {
		query = query.Where("name LIKE ?", "%"+keyword+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("price").Offset(offset).Limit(limit).Find(&parts).Error; err != nil {
		return nil, 0, err
	}
	return parts, total, nil
}

// ListByCategories 按类别集合获取在售配件（服务建议用）
func (r *PartRepository) ListByCategories(ctx context.Context, categories []string, limit int) ([]*models.Part, error) {
	var parts []*models.Part
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND stock > 0 AND category IN ?", true, categories).
		Order("price").Limit(limit).
		Find(&parts).Error
	return parts, err
}
