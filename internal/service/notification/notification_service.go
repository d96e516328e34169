package notification

import (
	"context"
	"errors"

	"gorm.io/gorm"

	apperrors "github.com/quickmech/quickmech-backend/internal/common/errors"
	"github.com/quickmech/quickmech-backend/internal/common/utils"
	"github.com/quickmech/quickmech-backend/internal/models"
	"github.com/quickmech/quickmech-backend/internal/repository"
)

// NotificationService 站内通知查询服务
type NotificationService struct {
	notificationRepo *repository.NotificationRepository
}

// NewNotificationService 创建通知查询服务
func NewNotificationService(notificationRepo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{notificationRepo: notificationRepo}
}

// List 通知列表
func (s *NotificationService) List(ctx context.Context, userID int64, unreadOnly bool, page *utils.Pagination) ([]*models.Notification, int64, error) {
	notifications, total, err := s.notificationRepo.ListByUser(ctx, userID, unreadOnly, page.GetOffset(), page.GetLimit())
	if err != nil {
		return nil, 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return notifications, total, nil
}

// CountUnread 未读通知数
func (s *NotificationService) CountUnread(ctx context.Context, userID int64) (int64, error) {
	count, err := s.notificationRepo.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return count, nil
}

// MarkRead 标记单条已读
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID int64) error {
	err := s.notificationRepo.MarkRead(ctx, userID, notificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotificationNotFound
		}
		return apperrors.ErrDatabaseError.WithError(err)
	}
	return nil
}

// MarkAllRead 全部标记已读
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) error {
	if err := s.notificationRepo.MarkAllRead(ctx, userID); err != nil {
		return apperrors.ErrDatabaseError.WithError(err)
	}
	return nil
}
