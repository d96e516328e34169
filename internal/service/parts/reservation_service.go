package parts

import (
	"context"
	"errors"
	"fmt"
	"strings"
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
	orderService "github.com/quickmech/quickmech-backend/internal/service/order"
)

// ReservationService 配件预留服务
type ReservationService struct {
	db              *gorm.DB
	reservationRepo *repository.ReservationRepository
	partRepo        *repository.PartRepository
	orderRepo       *repository.OrderRepository
	notifier        notification.Notifier
	cfg             *config.Config
}

// NewReservationService 创建配件预留服务
func NewReservationService(
	db *gorm.DB,
	reservationRepo *repository.ReservationRepository,
	partRepo *repository.PartRepository,
	orderRepo *repository.OrderRepository,
	notifier notification.Notifier,
	cfg *config.Config,
) *ReservationService {
	return &ReservationService{
		db:              db,
		reservationRepo: reservationRepo,
		partRepo:        partRepo,
		orderRepo:       orderRepo,
		notifier:        notifier,
		cfg:             cfg,
	}
}

// PrereserveRequest 预留请求
type PrereserveRequest struct {
	OrderID  int64 `json:"order_id" binding:"required"`
	PartID   int64 `json:"part_id" binding:"required"`
	Quantity int   `json:"quantity"`
}

// Prereserve 技师为订单预留配件
// 预留只锁定意向，库存在配件店确认时才扣减
func (s *ReservationService) Prereserve(ctx context.Context, mechanicID int64, req *PrereserveRequest) (*models.PartReservation, error) {
	order, err := s.orderRepo.GetByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if order.MechanicID == nil || *order.MechanicID != mechanicID {
		return nil, apperrors.ErrNotOrderMechanic
	}

	part, err := s.partRepo.GetByID(ctx, req.PartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPartNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	if !part.IsActive || part.Stock < quantity {
		return nil, apperrors.ErrStockInsufficient
	}

	expireHours := s.cfg.Business.Reservation.ExpireHours
	if expireHours <= 0 {
		expireHours = 24
	}
	reservation := &models.PartReservation{
		OrderID:     order.ID,
		PartID:      part.ID,
		AutopartsID: part.AutopartsID,
		MechanicID:  mechanicID,
		Status:      models.ReservationStatusPending,
		Quantity:    quantity,
		UnitPrice:   part.Price,
		ExpiresAt:   time.Now().Add(time.Duration(expireHours) * time.Hour),
	}

	// 取件码在配件店确认时才生成，预留阶段不持有
	if err := s.reservationRepo.Create(ctx, reservation); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	totalPartPrice := utils.RoundMoney(part.Price * float64(quantity))
	affected, err := s.orderRepo.UpdateStatusCAS(ctx, order.ID,
		orderService.StatusesAllowing(models.OrderStatusAwaitingPartHold),
		map[string]interface{}{
			"status":         models.OrderStatusAwaitingPartHold,
			"part_id":        part.ID,
			"part_price":     totalPartPrice,
			"autoparts_id":   part.AutopartsID,
			"reservation_id": reservation.ID,
			"needs_parts":    true,
		})
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if affected == 0 {
		// 订单状态不允许预留，关闭刚创建的预留
		_, _ = s.reservationRepo.UpdateStatusCAS(ctx, reservation.ID,
			[]string{models.ReservationStatusPending},
			map[string]interface{}{"status": models.ReservationStatusExpired})
		return nil, apperrors.ErrOrderStatusConflict
	}

	metrics.GetMetrics().RecordReservation(models.ReservationStatusPending)
	s.notifier.Notify(part.AutopartsID, models.NotificationKindReservation,
		"新配件预留", fmt.Sprintf("配件 %s x%d 收到预留申请", part.Name, quantity), reservation.ID)

	logger.Info("配件预留已创建",
		logger.OrderNo(order.OrderNo),
		logger.ShopID(part.AutopartsID))

	return reservation, nil
}

// GetByID 获取预留详情（读取时惰性过期）
func (s *ReservationService) GetByID(ctx context.Context, id int64) (*models.PartReservation, error) {
	reservation, err := s.reservationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrReservationNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if reservation.IsExpired(time.Now()) {
		if err := s.expire(ctx, reservation); err != nil {
			return nil, err
		}
		reservation.Status = models.ReservationStatusExpired
	}
	return reservation, nil
}

// Confirm 配件店确认预留，扣减库存并生成可取件状态
func (s *ReservationService) Confirm(ctx context.Context, autopartsID, reservationID int64) (*models.PartReservation, error) {
	reservation, err := s.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation.AutopartsID != autopartsID {
		return nil, apperrors.ErrNotReservationShop
	}
	if reservation.Status == models.ReservationStatusExpired {
		return nil, apperrors.ErrReservationExpired
	}
	if reservation.Status != models.ReservationStatusPending {
		return nil, apperrors.ErrReservationConflict
	}

	now := time.Now()
	attempts := s.cfg.Business.Reservation.CodeRetryAttempts
	if attempts <= 0 {
		attempts = 5
	}

	// 取件码在确认时生成，命中唯一索引时换码重试整个事务
	var pickupCode string
	for i := 0; i < attempts; i++ {
		code := utils.GeneratePickupCode()
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			affected, txErr := s.partRepo.DecrementStockTx(tx, reservation.PartID, reservation.Quantity)
			if txErr != nil {
				return txErr
			}
			if affected == 0 {
				return apperrors.ErrStockInsufficient
			}

			affected, txErr = s.reservationRepo.UpdateStatusCASTx(tx, reservation.ID,
				[]string{models.ReservationStatusPending},
				map[string]interface{}{
					"status":       models.ReservationStatusReady,
					"pickup_code":  code,
					"confirmed_at": now,
				})
			if txErr != nil {
				return txErr
			}
			if affected == 0 {
				return apperrors.ErrReservationConflict
			}

			affected, txErr = s.orderRepo.UpdateStatusCASTx(tx, reservation.OrderID,
				[]string{models.OrderStatusAwaitingPartHold},
				map[string]interface{}{
					"status":      models.OrderStatusPartConfirmed,
					"pickup_code": code,
				})
			if txErr != nil {
				return txErr
			}
			if affected == 0 {
				return apperrors.ErrOrderStatusConflict
			}
			return nil
		})
		if err != nil && isDuplicateKeyError(err) {
			continue
		}
		pickupCode = code
		break
	}
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, apperrors.ErrPickupCodeGenFailed
		}
		if appErr, ok := err.(*apperrors.AppError); ok {
			return nil, appErr
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	metrics.GetMetrics().RecordReservation(models.ReservationStatusReady)
	s.notifier.Notify(reservation.MechanicID, models.NotificationKindReservation,
		"配件预留已确认", fmt.Sprintf("取件码 %s，请凭码到店取件", pickupCode), reservation.ID)

	return s.reservationRepo.GetByID(ctx, reservationID)
}

// RefuseRequest 拒绝预留请求
type RefuseRequest struct {
	Note string `json:"note" binding:"max=255"`
}

// Refuse 配件店拒绝预留，订单回到已接单重新选件
func (s *ReservationService) Refuse(ctx context.Context, autopartsID, reservationID int64, req *RefuseRequest) (*models.PartReservation, error) {
	reservation, err := s.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation.AutopartsID != autopartsID {
		return nil, apperrors.ErrNotReservationShop
	}
	if reservation.Status != models.ReservationStatusPending {
		return nil, apperrors.ErrReservationConflict
	}

	fields := map[string]interface{}{"status": models.ReservationStatusRefused}
	if req != nil && req.Note != "" {
		fields["refuse_note"] = req.Note
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, txErr := s.reservationRepo.UpdateStatusCASTx(tx, reservation.ID,
			[]string{models.ReservationStatusPending}, fields)
		if txErr != nil {
			return txErr
		}
		if affected == 0 {
			return apperrors.ErrReservationConflict
		}
		return s.revertOrderTx(tx, reservation.OrderID,
			[]string{models.OrderStatusAwaitingPartHold})
	})
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok {
			return nil, appErr
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	metrics.GetMetrics().RecordReservation(models.ReservationStatusRefused)
	s.notifier.Notify(reservation.MechanicID, models.NotificationKindReservation,
		"配件预留被拒绝", "请为订单重新选择配件", reservation.ID)

	return s.reservationRepo.GetByID(ctx, reservationID)
}

// Void 配件店作废已确认但未取件的预留
// 返还库存并清除取件码，订单回到已接单重新选件
func (s *ReservationService) Void(ctx context.Context, autopartsID, reservationID int64) (*models.PartReservation, error) {
	reservation, err := s.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation.AutopartsID != autopartsID {
		return nil, apperrors.ErrNotReservationShop
	}
	if reservation.Status != models.ReservationStatusReady {
		return nil, apperrors.ErrReservationConflict
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, txErr := s.reservationRepo.UpdateStatusCASTx(tx, reservation.ID,
			[]string{models.ReservationStatusReady},
			map[string]interface{}{
				"status":      models.ReservationStatusVoided,
				"pickup_code": nil,
			})
		if txErr != nil {
			return txErr
		}
		if affected == 0 {
			return apperrors.ErrReservationConflict
		}

		if txErr := s.partRepo.IncrementStockTx(tx, reservation.PartID, reservation.Quantity); txErr != nil {
			return txErr
		}
		return s.revertOrderTx(tx, reservation.OrderID,
			[]string{models.OrderStatusPartConfirmed})
	})
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok {
			return nil, appErr
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	metrics.GetMetrics().RecordReservation(models.ReservationStatusVoided)
	s.notifier.Notify(reservation.MechanicID, models.NotificationKindReservation,
		"配件预留已作废", "配件店取消了已确认的预留，请重新选择配件", reservation.ID)

	return s.reservationRepo.GetByID(ctx, reservation.ID)
}

// ConfirmPickup 配件店凭取件码确认取件
func (s *ReservationService) ConfirmPickup(ctx context.Context, autopartsID int64, pickupCode string) (*models.PartReservation, error) {
	code := strings.ToUpper(strings.TrimSpace(pickupCode))
	reservation, err := s.reservationRepo.GetByPickupCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPickupCodeInvalid
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if reservation.AutopartsID != autopartsID {
		return nil, apperrors.ErrNotReservationShop
	}
	if reservation.Status != models.ReservationStatusReady {
		return nil, apperrors.ErrReservationConflict
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, txErr := s.reservationRepo.UpdateStatusCASTx(tx, reservation.ID,
			[]string{models.ReservationStatusReady},
			map[string]interface{}{
				"status":       models.ReservationStatusPickedUp,
				"picked_up_at": now,
			})
		if txErr != nil {
			return txErr
		}
		if affected == 0 {
			return apperrors.ErrReservationConflict
		}

		affected, txErr = s.orderRepo.UpdateStatusCASTx(tx, reservation.OrderID,
			[]string{models.OrderStatusPartConfirmed},
			map[string]interface{}{"status": models.OrderStatusPartPickedUp})
		if txErr != nil {
			return txErr
		}
		if affected == 0 {
			return apperrors.ErrOrderStatusConflict
		}
		return nil
	})
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok {
			return nil, appErr
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	metrics.GetMetrics().RecordReservation(models.ReservationStatusPickedUp)
	s.notifier.Notify(reservation.MechanicID, models.NotificationKindReservation,
		"配件已取走", fmt.Sprintf("取件码 %s 已核销", code), reservation.ID)

	return s.reservationRepo.GetByID(ctx, reservation.ID)
}

// ListByShop 配件店预留列表
func (s *ReservationService) ListByShop(ctx context.Context, autopartsID int64, status string, page *utils.Pagination) ([]*models.PartReservation, int64, error) {
	return s.reservationRepo.ListByShop(ctx, autopartsID, status, page.GetOffset(), page.GetLimit())
}

// ListByMechanic 技师预留列表
func (s *ReservationService) ListByMechanic(ctx context.Context, mechanicID int64, page *utils.Pagination) ([]*models.PartReservation, int64, error) {
	return s.reservationRepo.ListByMechanic(ctx, mechanicID, page.GetOffset(), page.GetLimit())
}

// ExpireStale 批量关闭超时未确认的预留（定时任务调用）
func (s *ReservationService) ExpireStale(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	stale, err := s.reservationRepo.ListExpiredPending(ctx, time.Now(), batchSize)
	if err != nil {
		return 0, apperrors.ErrDatabaseError.WithError(err)
	}

	expired := 0
	for _, reservation := range stale {
		if err := s.expire(ctx, reservation); err != nil {
			logger.Warn("预留过期处理失败",
				logger.Int64("reservation_id", reservation.ID),
				logger.Err(err))
			continue
		}
		expired++
	}
	return expired, nil
}

// expire 将预留置为过期并回退订单
func (s *ReservationService) expire(ctx context.Context, reservation *models.PartReservation) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, txErr := s.reservationRepo.UpdateStatusCASTx(tx, reservation.ID,
			[]string{models.ReservationStatusPending},
			map[string]interface{}{"status": models.ReservationStatusExpired})
		if txErr != nil {
			return txErr
		}
		if affected == 0 {
			// 已被并发处理
			return nil
		}
		return s.revertOrderTx(tx, reservation.OrderID,
			[]string{models.OrderStatusAwaitingPartHold})
	})
	if err != nil {
		return apperrors.ErrDatabaseError.WithError(err)
	}

	metrics.GetMetrics().RecordReservation(models.ReservationStatusExpired)
	s.notifier.Notify(reservation.MechanicID, models.NotificationKindReservation,
		"配件预留已过期", "配件店未在时限内确认，请重新选择配件", reservation.ID)
	return nil
}

// revertOrderTx 预留失败后订单回到已接单并清空配件字段
func (s *ReservationService) revertOrderTx(tx *gorm.DB, orderID int64, from []string) error {
	_, err := s.orderRepo.UpdateStatusCASTx(tx, orderID, from,
		map[string]interface{}{
			"status":         models.OrderStatusAccepted,
			"part_id":        nil,
			"part_price":     nil,
			"autoparts_id":   nil,
			"reservation_id": nil,
			"pickup_code":    nil,
		})
	return err
}

// isDuplicateKeyError 判断唯一索引冲突
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
