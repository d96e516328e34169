package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/quickmech/quickmech-backend/internal/common/config"
	apperrors "github.com/quickmech/quickmech-backend/internal/common/errors"
	"github.com/quickmech/quickmech-backend/internal/common/logger"
	"github.com/quickmech/quickmech-backend/internal/common/metrics"
	"github.com/quickmech/quickmech-backend/internal/common/utils"
	"github.com/quickmech/quickmech-backend/internal/models"
	"github.com/quickmech/quickmech-backend/internal/repository"
	"github.com/quickmech/quickmech-backend/internal/service/notification"
)

// OrderService 订单服务
type OrderService struct {
	db          *gorm.DB
	orderRepo   *repository.OrderRepository
	userRepo    *repository.UserRepository
	vehicleRepo *repository.VehicleRepository
	reviewRepo  *repository.ReviewRepository
	notifier    notification.Notifier
	cfg         *config.Config
}

// NewOrderService 创建订单服务
func NewOrderService(
	db *gorm.DB,
	orderRepo *repository.OrderRepository,
	userRepo *repository.UserRepository,
	vehicleRepo *repository.VehicleRepository,
	reviewRepo *repository.ReviewRepository,
	notifier notification.Notifier,
	cfg *config.Config,
) *OrderService {
	return &OrderService{
		db:          db,
		orderRepo:   orderRepo,
		userRepo:    userRepo,
		vehicleRepo: vehicleRepo,
		reviewRepo:  reviewRepo,
		notifier:    notifier,
		cfg:         cfg,
	}
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	VehicleID    *int64  `json:"vehicle_id"`
	Service      string  `json:"service" binding:"required"`
	Description  string  `json:"description"`
	LocationType string  `json:"location_type" binding:"required,oneof=casa trabalho oficina"`
	Address      string  `json:"address"`
	Date         string  `json:"date"`
	Time         string  `json:"time"`
	Market       string  `json:"market"`
	HasParts     bool    `json:"has_parts"`
	NeedsParts   bool    `json:"needs_parts"`
}

// Create 创建订单并进入技师待接单池
func (s *OrderService) Create(ctx context.Context, clientID int64, req *CreateOrderRequest) (*models.Order, error) {
	market := req.Market
	if market == "" {
		market = "uk"
	}
	if _, ok := s.cfg.Business.Markets[market]; !ok {
		return nil, apperrors.ErrMarketInvalid
	}

	order := &models.Order{
		OrderNo:      utils.GenerateOrderNo("QM"),
		ClientID:     clientID,
		Service:      req.Service,
		LocationType: req.LocationType,
		Status:       models.OrderStatusAwaitingMechanic,
		Market:       market,
		HasParts:     req.HasParts,
		NeedsParts:   req.NeedsParts,
	}
	if req.Description != "" {
		order.Description = &req.Description
	}
	if req.Address != "" {
		order.Address = &req.Address
	}
	if req.Date != "" {
		order.Date = &req.Date
	}
	if req.Time != "" {
		order.Time = &req.Time
	}

	// 车辆信息快照：车辆后续修改或删除不影响订单记录
	if req.VehicleID != nil {
		vehicle, err := s.vehicleRepo.GetByID(ctx, *req.VehicleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrVehicleNotFound
			}
			return nil, apperrors.ErrDatabaseError.WithError(err)
		}
		if vehicle.ClientID != clientID {
			return nil, apperrors.ErrPermissionDenied
		}
		order.VehicleID = req.VehicleID
		order.VehiclePlate = &vehicle.Plate
		if vehicle.Make != "" {
			order.VehicleMake = &vehicle.Make
		}
		if vehicle.Model != "" {
			order.VehicleModel = &vehicle.Model
		}
		order.VehicleYear = vehicle.Year
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	// 广播给市场内在营已审核的技师，失败只影响通知不影响下单
	mechanicIDs, err := s.userRepo.ListActiveMechanicIDs(ctx, order.Market, 0)
	if err != nil {
		logger.Warn("技师池查询失败", logger.OrderNo(order.OrderNo), logger.Err(err))
	}
	for _, mechanicID := range mechanicIDs {
		s.notifier.Notify(mechanicID, models.NotificationKindOrder,
			"新服务请求", fmt.Sprintf("订单 %s 等待接单：%s", order.OrderNo, order.Service), order.ID)
	}

	metrics.GetMetrics().RecordOrder(order.Status)
	logger.Info("订单已创建",
		logger.OrderNo(order.OrderNo),
		logger.UserID(clientID),
		logger.Market(order.Market))

	return order, nil
}

// GetByID 获取订单详情（校验访问方身份）
func (s *OrderService) GetByID(ctx context.Context, userID int64, userType string, orderID int64) (*models.Order, error) {
	order, err := s.orderRepo.GetByIDWithRelations(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if !s.canView(order, userID, userType) {
		return nil, apperrors.ErrPermissionDenied
	}
	return order, nil
}

// canView 订单可见性：客户本人、已指派技师、涉及的配件店、技师池中的待接单、管理员
func (s *OrderService) canView(order *models.Order, userID int64, userType string) bool {
	switch userType {
	case models.UserTypeAdmin:
		return true
	case models.UserTypeClient:
		return order.ClientID == userID
	case models.UserTypeMechanic:
		if order.Status == models.OrderStatusAwaitingMechanic {
			return true
		}
		return order.MechanicID != nil && *order.MechanicID == userID
	case models.UserTypeAutoparts:
		return order.AutopartsID != nil && *order.AutopartsID == userID
	}
	return false
}

// ListByClient 客户订单列表
func (s *OrderService) ListByClient(ctx context.Context, clientID int64, page *utils.Pagination, status string) ([]*models.Order, int64, error) {
	return s.orderRepo.ListByClient(ctx, clientID, page.GetOffset(), page.GetLimit(), status)
}

// ListByMechanic 技师订单列表
func (s *OrderService) ListByMechanic(ctx context.Context, mechanicID int64, page *utils.Pagination, status string) ([]*models.Order, int64, error) {
	return s.orderRepo.ListByMechanic(ctx, mechanicID, page.GetOffset(), page.GetLimit(), status)
}

// ListOpen 技师浏览待接单池
func (s *OrderService) ListOpen(ctx context.Context, market string, page *utils.Pagination) ([]*models.Order, int64, error) {
	return s.orderRepo.ListOpen(ctx, market, page.GetOffset(), page.GetLimit())
}

// AcceptRequest 接单请求
type AcceptRequest struct {
	LaborPrice *float64 `json:"labor_price"`
}

// Accept 技师接单
// 并发接单时 CAS 保证只有一人成功，失败方收到冲突错误
func (s *OrderService) Accept(ctx context.Context, mechanicID, orderID int64, req *AcceptRequest) (*models.Order, error) {
	mechanic, err := s.userRepo.GetByID(ctx, mechanicID)
	if err != nil {
		return nil, apperrors.ErrUserNotFound
	}
	if !mechanic.IsApproved {
		return nil, apperrors.ErrAccountNotApproved
	}

	now := time.Now()
	fields := map[string]interface{}{
		"status":      models.OrderStatusAccepted,
		"mechanic_id": mechanicID,
		"accepted_at": now,
	}
	if req != nil && req.LaborPrice != nil {
		fields["labor_price"] = utils.RoundMoney(*req.LaborPrice)
	}

	affected, err := s.orderRepo.UpdateStatusCAS(ctx, orderID,
		[]string{models.OrderStatusAwaitingMechanic}, fields)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if affected == 0 {
		// 订单不存在，或已被其他技师抢走
		if _, getErr := s.orderRepo.GetByID(ctx, orderID); getErr != nil {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, apperrors.ErrOrderAlreadyTaken
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	metrics.GetMetrics().RecordOrder(order.Status)
	s.notifier.Notify(order.ClientID, models.NotificationKindOrder,
		"技师已接单", fmt.Sprintf("技师 %s 已接受订单 %s", mechanic.Name, order.OrderNo), order.ID)

	logger.Info("订单已接单",
		logger.OrderNo(order.OrderNo),
		logger.MechanicID(mechanicID))

	return order, nil
}

// QuoteRequest 报价请求
type QuoteRequest struct {
	LaborPrice float64  `json:"labor_price" binding:"required,gt=0"`
	TravelFee  float64  `json:"travel_fee" binding:"gte=0"`
	PartID     *int64   `json:"part_id"`
	PartPrice  *float64 `json:"part_price"`
}

// SubmitQuote 技师提交报价
// final_price = 工时费 + 上门费 + 配件价
func (s *OrderService) SubmitQuote(ctx context.Context, mechanicID, orderID int64, req *QuoteRequest) (*models.Order, error) {
	order, err := s.getMechanicOrder(ctx, mechanicID, orderID)
	if err != nil {
		return nil, err
	}

	laborPrice := utils.RoundMoney(req.LaborPrice)
	travelFee := utils.RoundMoney(req.TravelFee)
	partPrice := 0.0
	if req.PartPrice != nil {
		partPrice = utils.RoundMoney(*req.PartPrice)
	}
	finalPrice := utils.RoundMoney(laborPrice + travelFee + partPrice)

	fields := map[string]interface{}{
		"status":      models.OrderStatusQuoteSent,
		"labor_price": laborPrice,
		"travel_fee":  travelFee,
		"final_price": finalPrice,
	}
	if req.PartID != nil {
		fields["part_id"] = *req.PartID
		fields["part_price"] = partPrice
	}

	affected, err := s.orderRepo.UpdateStatusCAS(ctx, orderID,
		[]string{models.OrderStatusAccepted}, fields)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if affected == 0 {
		return nil, apperrors.ErrOrderStatusConflict
	}

	s.notifier.Notify(order.ClientID, models.NotificationKindQuote,
		"收到新报价", fmt.Sprintf("订单 %s 收到报价 %s", order.OrderNo, utils.FormatMoney(finalPrice)), order.ID)

	return s.orderRepo.GetByID(ctx, orderID)
}

// Approve 客户同意报价
func (s *OrderService) Approve(ctx context.Context, clientID, orderID int64) (*models.Order, error) {
	order, err := s.getClientOrder(ctx, clientID, orderID)
	if err != nil {
		return nil, err
	}

	affected, err := s.orderRepo.UpdateStatusCAS(ctx, orderID,
		[]string{models.OrderStatusQuoteSent},
		map[string]interface{}{"status": models.OrderStatusApproved})
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if affected == 0 {
		return nil, apperrors.ErrOrderStatusConflict
	}

	if order.MechanicID != nil {
		s.notifier.Notify(*order.MechanicID, models.NotificationKindQuote,
			"报价已通过", fmt.Sprintf("客户已同意订单 %s 的报价", order.OrderNo), order.ID)
	}

	return s.orderRepo.GetByID(ctx, orderID)
}

// Reject 客户拒绝报价，订单回到待接单池
// 清空技师与报价字段，后续其他技师可正常接单
func (s *OrderService) Reject(ctx context.Context, clientID, orderID int64) (*models.Order, error) {
	order, err := s.getClientOrder(ctx, clientID, orderID)
	if err != nil {
		return nil, err
	}

	affected, err := s.orderRepo.UpdateStatusCAS(ctx, orderID,
		[]string{models.OrderStatusQuoteSent},
		map[string]interface{}{
			"status":      models.OrderStatusAwaitingMechanic,
			"mechanic_id": nil,
			"labor_price": nil,
			"travel_fee":  0,
			"final_price": nil,
			"part_id":     nil,
			"part_price":  nil,
			"accepted_at": nil,
		})
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if affected == 0 {
		return nil, apperrors.ErrOrderStatusConflict
	}

	if order.MechanicID != nil {
		s.notifier.Notify(*order.MechanicID, models.NotificationKindQuote,
			"报价被拒绝", fmt.Sprintf("客户拒绝了订单 %s 的报价", order.OrderNo), order.ID)
	}

	return s.orderRepo.GetByID(ctx, orderID)
}

// Cancel 客户取消订单（支付后不可取消）
func (s *OrderService) Cancel(ctx context.Context, clientID, orderID int64, reason string) (*models.Order, error) {
	order, err := s.getClientOrder(ctx, clientID, orderID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	fields := map[string]interface{}{
		"status":       models.OrderStatusCancelled,
		"cancelled_at": now,
	}
	if reason != "" {
		fields["cancel_reason"] = reason
	}

	affected, err := s.orderRepo.UpdateStatusCAS(ctx, orderID, cancellableStatuses, fields)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if affected == 0 {
		return nil, apperrors.ErrOrderStatusConflict
	}

	metrics.GetMetrics().RecordOrder(models.OrderStatusCancelled)
	if order.MechanicID != nil {
		s.notifier.Notify(*order.MechanicID, models.NotificationKindOrder,
			"订单已取消", fmt.Sprintf("订单 %s 已被客户取消", order.OrderNo), order.ID)
	}

	return s.orderRepo.GetByID(ctx, orderID)
}

// StartService 技师开始服务
func (s *OrderService) StartService(ctx context.Context, mechanicID, orderID int64) (*models.Order, error) {
	order, err := s.getMechanicOrder(ctx, mechanicID, orderID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	affected, err := s.orderRepo.UpdateStatusCAS(ctx, orderID,
		[]string{models.OrderStatusPaid},
		map[string]interface{}{
			"status":     models.OrderStatusServiceInProgress,
			"started_at": now,
		})
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if affected == 0 {
		return nil, apperrors.ErrOrderStatusConflict
	}

	s.notifier.Notify(order.ClientID, models.NotificationKindOrder,
		"服务已开始", fmt.Sprintf("订单 %s 的服务已开始", order.OrderNo), order.ID)

	return s.orderRepo.GetByID(ctx, orderID)
}

// CompleteServiceRequest 完成服务请求
type CompleteServiceRequest struct {
	DurationMinutes *int `json:"duration_minutes"`
}

// CompleteService 技师完成服务
func (s *OrderService) CompleteService(ctx context.Context, mechanicID, orderID int64, req *CompleteServiceRequest) (*models.Order, error) {
	order, err := s.getMechanicOrder(ctx, mechanicID, orderID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	fields := map[string]interface{}{
		"status":       models.OrderStatusServiceFinished,
		"completed_at": now,
	}
	if req != nil && req.DurationMinutes != nil {
		fields["duration_minutes"] = *req.DurationMinutes
	}

	affected, err := s.orderRepo.UpdateStatusCAS(ctx, orderID,
		[]string{models.OrderStatusServiceInProgress}, fields)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if affected == 0 {
		return nil, apperrors.ErrOrderStatusConflict
	}

	metrics.GetMetrics().RecordOrder(models.OrderStatusServiceFinished)
	s.notifier.Notify(order.ClientID, models.NotificationKindOrder,
		"服务已完成", fmt.Sprintf("订单 %s 的服务已完成，欢迎评价", order.OrderNo), order.ID)

	return s.orderRepo.GetByID(ctx, orderID)
}

// ReviewRequest 评价请求
type ReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// Review 客户评价订单
// 评价、订单终态、技师评分聚合在同一事务内完成
func (s *OrderService) Review(ctx context.Context, clientID, orderID int64, req *ReviewRequest) (*models.Review, error) {
	order, err := s.getClientOrder(ctx, clientID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusServiceFinished {
		return nil, apperrors.ErrOrderStatusConflict
	}
	if order.MechanicID == nil {
		return nil, apperrors.ErrOrderStatusConflict
	}

	exists, err := s.reviewRepo.ExistsByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if exists {
		return nil, apperrors.ErrAlreadyReviewed
	}

	review := &models.Review{
		OrderID:    orderID,
		ClientID:   clientID,
		MechanicID: *order.MechanicID,
		Rating:     req.Rating,
	}
	if req.Comment != "" {
		review.Comment = &req.Comment
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, txErr := s.orderRepo.UpdateStatusCASTx(tx, orderID,
			[]string{models.OrderStatusServiceFinished},
			map[string]interface{}{"status": models.OrderStatusReviewed})
		if txErr != nil {
			return txErr
		}
		if affected == 0 {
			return apperrors.ErrOrderStatusConflict
		}
		if txErr := s.reviewRepo.CreateTx(tx, review); txErr != nil {
			return txErr
		}
		return s.userRepo.ApplyReviewTx(tx, *order.MechanicID, req.Rating)
	})
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok {
			return nil, appErr
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	metrics.GetMetrics().RecordOrder(models.OrderStatusReviewed)
	s.notifier.Notify(*order.MechanicID, models.NotificationKindOrder,
		"收到新评价", fmt.Sprintf("订单 %s 收到 %d 星评价", order.OrderNo, req.Rating), order.ID)

	return review, nil
}

// getClientOrder 获取订单并校验客户归属
func (s *OrderService) getClientOrder(ctx context.Context, clientID, orderID int64) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if order.ClientID != clientID {
		return nil, apperrors.ErrNotOrderClient
	}
	return order, nil
}

// getMechanicOrder 获取订单并校验已指派技师
func (s *OrderService) getMechanicOrder(ctx context.Context, mechanicID, orderID int64) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if order.MechanicID == nil || *order.MechanicID != mechanicID {
		return nil, apperrors.ErrNotOrderMechanic
	}
	return order, nil
}
