// Package admin 平台管理端服务
package admin

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/quickmech/quickmech-backend/internal/common/errors"
	"github.com/quickmech/quickmech-backend/internal/common/logger"
	"github.com/quickmech/quickmech-backend/internal/common/utils"
	"github.com/quickmech/quickmech-backend/internal/models"
	"github.com/quickmech/quickmech-backend/internal/repository"
	"github.com/quickmech/quickmech-backend/internal/service/notification"
)

// AdminService 管理端服务
type AdminService struct {
	userRepo    *repository.UserRepository
	orderRepo   *repository.OrderRepository
	paymentRepo *repository.PaymentRepository
	notifier    notification.Notifier
}

// NewAdminService 创建管理端服务
func NewAdminService(
	userRepo *repository.UserRepository,
	orderRepo *repository.OrderRepository,
	paymentRepo *repository.PaymentRepository,
	notifier notification.Notifier,
) *AdminService {
	return &AdminService{
		userRepo:    userRepo,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		notifier:    notifier,
	}
}

// Stats 平台运营概览
type Stats struct {
	Clients          int64   `json:"clients"`
	Mechanics        int64   `json:"mechanics"`
	AutopartsShops   int64   `json:"autoparts_shops"`
	TotalOrders      int64   `json:"total_orders"`
	OpenOrders       int64   `json:"open_orders"`
	PaidOrders       int64   `json:"paid_orders"`
	FinishedOrders   int64   `json:"finished_orders"`
	CancelledOrders  int64   `json:"cancelled_orders"`
	PaymentsLast30d  int64   `json:"payments_last_30d"`
	PlatformFee30d   float64 `json:"platform_fee_30d"`
}

// GetStats 统计平台概览数据
func (s *AdminService) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	var err error

	if stats.Clients, err = s.userRepo.CountByType(ctx, models.UserTypeClient); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if stats.Mechanics, err = s.userRepo.CountByType(ctx, models.UserTypeMechanic); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if stats.AutopartsShops, err = s.userRepo.CountByType(ctx, models.UserTypeAutoparts); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if stats.TotalOrders, err = s.orderRepo.Count(ctx); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if stats.OpenOrders, err = s.orderRepo.CountByStatus(ctx, models.OrderStatusAwaitingMechanic); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if stats.PaidOrders, err = s.orderRepo.CountByStatus(ctx, models.OrderStatusPaid); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if stats.FinishedOrders, err = s.orderRepo.CountByStatus(ctx, models.OrderStatusServiceFinished); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if stats.CancelledOrders, err = s.orderRepo.CountByStatus(ctx, models.OrderStatusCancelled); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	since := time.Now().AddDate(0, 0, -30)
	if stats.PaymentsLast30d, err = s.paymentRepo.CountPaidSince(ctx, since); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if stats.PlatformFee30d, err = s.paymentRepo.SumPlatformFeeSince(ctx, since); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return stats, nil
}

// ListUsers 用户列表
func (s *AdminService) ListUsers(ctx context.Context, userType, market string, page *utils.Pagination) ([]*models.User, int64, error) {
	users, total, err := s.userRepo.List(ctx, page.GetOffset(), page.GetLimit(), userType, market)
	if err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return users, total, nil
}

// ListPendingApproval 待审核的技师与配件店
func (s *AdminService) ListPendingApproval(ctx context.Context, page *utils.Pagination) ([]*models.User, int64, error) {
	users, total, err := s.userRepo.ListPendingApproval(ctx, page.GetOffset(), page.GetLimit())
	if err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return users, total, nil
}

// ApproveUser 审核通过技师/配件店
func (s *AdminService) ApproveUser(ctx context.Context, adminID, userID int64) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if !models.NeedsApproval(user.UserType) {
		return apperrors.ErrUserTypeInvalid.WithMessage("该用户类型无需审核")
	}
	if err := s.userRepo.SetApproved(ctx, userID, true); err != nil {
		return apperrors.ErrDatabaseError.WithError(err)
	}

	logger.Info("账号审核通过", logger.AdminID(adminID), logger.UserID(userID))
	s.notifier.Notify(userID, models.NotificationKindOrder,
		"账号审核通过", "您的账号已通过平台审核，现在可以开始接单/上架了", 0)
	return nil
}

// SetUserActive 启用/禁用账号
func (s *AdminService) SetUserActive(ctx context.Context, adminID, userID int64, active bool) error {
	if _, err := s.getUser(ctx, userID); err != nil {
		return err
	}
	if err := s.userRepo.SetActive(ctx, userID, active); err != nil {
		return apperrors.ErrDatabaseError.WithError(err)
	}
	logger.Info("账号状态变更",
		logger.AdminID(adminID),
		logger.UserID(userID),
		logger.Bool("active", active))
	return nil
}

// ListOrders 全量订单列表
func (s *AdminService) ListOrders(ctx context.Context, status, market string, page *utils.Pagination) ([]*models.Order, int64, error) {
	orders, total, err := s.orderRepo.ListAll(ctx, page.GetOffset(), page.GetLimit(), status, market)
	if err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return orders, total, nil
}

// ListPayments 全量支付列表
func (s *AdminService) ListPayments(ctx context.Context, status, market string, page *utils.Pagination) ([]*models.Payment, int64, error) {
	payments, total, err := s.paymentRepo.ListAll(ctx, status, market, page.GetOffset(), page.GetLimit())
	if err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return payments, total, nil
}

func (s *AdminService) getUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return user, nil
}
