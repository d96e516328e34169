package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/quickmech/quickmech-backend/internal/models"
)

// OrderRepository 订单仓储
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// DB 返回底层数据库句柄（事务组合用）
func (r *OrderRepository) DB() *gorm.DB {
	return r.db
}

// Create 创建订单
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// GetByID 根据 ID 获取订单
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByIDWithRelations 根据 ID 获取订单（包含关联方）
func (r *OrderRepository) GetByIDWithRelations(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Client").
		Preload("Mechanic").
		Preload("Part").
		Preload("Reservation").
		Preload("Review").
		First(&order, id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByOrderNo 根据订单号获取订单
func (r *OrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Update 更新订单
func (r *OrderRepository) Update(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

// UpdateFields 更新指定字段
func (r *OrderRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(fields).Error
}

// UpdateStatusCAS 条件更新订单状态（仅当当前状态在 fromStatuses 中）
// 返回受影响行数；0 表示状态已被并发修改
func (r *OrderRepository) UpdateStatusCAS(ctx context.Context, id int64, fromStatuses []string, fields map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// UpdateStatusCASTx 事务版本的条件状态更新
func (r *OrderRepository) UpdateStatusCASTx(tx *gorm.DB, id int64, fromStatuses []string, fields map[string]interface{}) (int64, error) {
	result := tx.Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(fields)
	return result.RowsAffected, result.Error
}

// ListByClient 获取客户订单列表
func (r *OrderRepository) ListByClient(ctx context.Context, clientID int64, offset, limit int, status string) ([]*models.Order, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&models.Order{}).
		Where("client_id = ? AND archived = ?", clientID, false), offset, limit, status)
}

// ListByMechanic 获取技师订单列表
func (r *OrderRepository) ListByMechanic(ctx context.Context, mechanicID int64, offset, limit int, status string) ([]*models.Order, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&models.Order{}).
		Where("mechanic_id = ? AND archived = ?", mechanicID, false), offset, limit, status)
}

// ListOpen 获取待接单池（按市场）
func (r *OrderRepository) ListOpen(ctx context.Context, market string, offset, limit int) ([]*models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("status = ? AND archived = ?", models.OrderStatusAwaitingMechanic, false)
	if market != "" {
		query = query.Where("market = ?", market)
	}
	return r.list(ctx, query, offset, limit, "")
}

// ListAll 管理端订单列表
func (r *OrderRepository) ListAll(ctx context.Context, offset, limit int, status, market string) ([]*models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if market != "" {
		query = query.Where("market = ?", market)
	}
	return r.list(ctx, query, offset, limit, status)
}

func (r *OrderRepository) list(ctx context.Context, query *gorm.DB, offset, limit int, status string) ([]*models.Order, int64, error) {
	var orders []*models.Order
	var total int64

	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// CountByStatus 按状态统计订单
func (r *OrderRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// Count 统计全部订单
func (r *OrderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Count(&count).Error
	return count, err
}

// ListUpcoming 获取指定时间窗内的已付款待服务订单（提醒任务用）
func (r *OrderRepository) ListUpcoming(ctx context.Context, dateFrom, dateTo string) ([]*models.Order, error) {
	var orders []*models.Order
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{models.OrderStatusPaid, models.OrderStatusPrebooked}).
		Where("archived = ?", false).
		Where("date >= ? AND date <= ?", dateFrom, dateTo).
		Find(&orders).Error
	return orders, err
}

// ArchiveCompletedBefore 归档指定时间前完成的订单
func (r *OrderRepository) ArchiveCompletedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("status IN ?", []string{models.OrderStatusServiceFinished, models.OrderStatusReviewed}).
		Where("archived = ? AND completed_at < ?", false, before).
		Update("archived", true)
	return result.RowsAffected, result.Error
}
