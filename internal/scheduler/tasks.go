// Package scheduler 提供定时任务
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/quickmech/quickmech-backend/internal/common/config"
	"github.com/quickmech/quickmech-backend/internal/models"
	"github.com/quickmech/quickmech-backend/internal/repository"
	"github.com/quickmech/quickmech-backend/internal/service/notification"
	partsService "github.com/quickmech/quickmech-backend/internal/service/parts"
	walletService "github.com/quickmech/quickmech-backend/internal/service/wallet"
)

// 订单完成后保留在活跃表中的时长
const archiveAfterDays = 90

// TaskHandler 任务处理器
type TaskHandler struct {
	orderRepo          *repository.OrderRepository
	reservationService *partsService.ReservationService
	walletService      *walletService.WalletService
	notifier           notification.Notifier
	cfg                *config.Config
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(
	orderRepo *repository.OrderRepository,
	reservationSvc *partsService.ReservationService,
	walletSvc *walletService.WalletService,
	notifier notification.Notifier,
	cfg *config.Config,
) *TaskHandler {
	return &TaskHandler{
		orderRepo:          orderRepo,
		reservationService: reservationSvc,
		walletService:      walletSvc,
		notifier:           notifier,
		cfg:                cfg,
	}
}

// ExpireStaleReservations 过期未确认的配件预留并回退订单
func (h *TaskHandler) ExpireStaleReservations(ctx context.Context) error {
	expired, err := h.reservationService.ExpireStale(ctx, 100)
	if err != nil {
		return err
	}
	if expired > 0 {
		log.Printf("[Task] Expired %d stale part reservations", expired)
	}
	return nil
}

// SettleMaturedWalletFunds 将到期的待结算收益转入可用余额
func (h *TaskHandler) SettleMaturedWalletFunds(ctx context.Context) error {
	settled, err := h.walletService.SettleMatured(ctx, 200)
	if err != nil {
		return err
	}
	if settled > 0 {
		log.Printf("[Task] Settled %d matured wallet entries", settled)
	}
	return nil
}

// SendServiceReminders 服务日前一天提醒客户与技师
func (h *TaskHandler) SendServiceReminders(ctx context.Context) error {
	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")

	orders, err := h.orderRepo.ListUpcoming(ctx, tomorrow, tomorrow)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return nil
	}

	log.Printf("[Task] Sending reminders for %d upcoming orders", len(orders))
	for _, order := range orders {
		h.notifier.Notify(order.ClientID, models.NotificationKindReminder,
			"服务提醒", "您预约的服务将于明天进行，订单号 "+order.OrderNo, order.ID)
		if order.MechanicID != nil {
			h.notifier.Notify(*order.MechanicID, models.NotificationKindReminder,
				"服务提醒", "您明天有一个已支付的服务订单 "+order.OrderNo, order.ID)
		}
	}
	return nil
}

// ArchiveOldOrders 归档完成已久的订单
func (h *TaskHandler) ArchiveOldOrders(ctx context.Context) error {
	before := time.Now().AddDate(0, 0, -archiveAfterDays)

	archived, err := h.orderRepo.ArchiveCompletedBefore(ctx, before)
	if err != nil {
		return err
	}
	if archived > 0 {
		log.Printf("[Task] Archived %d completed orders", archived)
	}
	return nil
}

// SetupTasks 设置所有任务
func SetupTasks(scheduler *Scheduler, handler *TaskHandler) {
	sweepInterval := time.Duration(handler.cfg.Business.Reservation.SweepInterval) * time.Second
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	settleInterval := time.Duration(handler.cfg.Business.Wallet.SettleInterval) * time.Second
	if settleInterval <= 0 {
		settleInterval = time.Hour
	}

	// 周期清理过期配件预留
	scheduler.AddTask("ExpireStaleReservations", sweepInterval, handler.ExpireStaleReservations)

	// 周期结算到期收益
	scheduler.AddTask("SettleMaturedWalletFunds", settleInterval, handler.SettleMaturedWalletFunds)

	// 每天发送服务提醒
	scheduler.AddTask("SendServiceReminders", 24*time.Hour, handler.SendServiceReminders)

	// 每天归档历史订单
	scheduler.AddTask("ArchiveOldOrders", 24*time.Hour, handler.ArchiveOldOrders)
}
