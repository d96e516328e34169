package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/quickmech/quickmech-backend/internal/models"
)

// VehicleRepository 车辆仓储
type VehicleRepository struct {
	db *gorm.DB
}

// NewVehicleRepository 创建车辆仓储
func NewVehicleRepository(db *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// Create 创建车辆
func (r *VehicleRepository) Create(ctx context.Context, vehicle *models.Vehicle) error {
	return r.db.WithContext(ctx).Create(vehicle).Error
}

// GetByID 根据 ID 获取车辆
func (r *VehicleRepository) GetByID(ctx context.Context, id int64) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.WithContext(ctx).First(&vehicle, id).Error
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// GetByClientAndPlate 根据客户和车牌获取车辆
func (r *VehicleRepository) GetByClientAndPlate(ctx context.Context, clientID int64, plate string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND plate = ?", clientID, plate).
		First(&vehicle).Error
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// ListByClient 获取客户的车辆列表
func (r *VehicleRepository) ListByClient(ctx context.Context, clientID int64) ([]*models.Vehicle, error) {
	var vehicles []*models.Vehicle
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("id DESC").
		Find(&vehicles).Error
	return vehicles, err
}

// CountByClient 统计客户车辆数
func (r *VehicleRepository) CountByClient(ctx context.Context, clientID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Vehicle{}).
		Where("client_id = ?", clientID).Count(&count).Error
	return count, err
}

// Update 更新车辆
func (r *VehicleRepository) Update(ctx context.Context, vehicle *models.Vehicle) error {
	return r.db.WithContext(ctx).Save(vehicle).Error
}

// Delete 删除车辆
func (r *VehicleRepository) Delete(ctx context.Context, clientID, id int64) error {
	result := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Delete(&models.Vehicle{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
