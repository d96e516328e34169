// Package notification 提供站内通知与消息分发
package notification

import (
	"context"
	"sync"

	"github.com/quickmech/quickmech-backend/internal/common/crypto"
	"github.com/quickmech/quickmech-backend/internal/common/logger"
	"github.com/quickmech/quickmech-backend/internal/common/metrics"
	"github.com/quickmech/quickmech-backend/internal/models"
	"github.com/quickmech/quickmech-backend/internal/repository"
	"github.com/quickmech/quickmech-backend/pkg/email"
	"github.com/quickmech/quickmech-backend/pkg/sms"
)

// Notifier 通知发送接口（状态机只发事件，不关心投递结果）
type Notifier interface {
	Notify(userID int64, kind, title, message string, relatedID int64)
}

// Event 通知事件
type Event struct {
	UserID    int64
	Kind      string
	Title     string
	Message   string
	RelatedID int64
}

// Dispatcher 通知分发器
// 事件进入缓冲通道后由单独的 goroutine 异步落库并外发，
// 投递失败只记日志，绝不反向影响业务事务
type Dispatcher struct {
	notificationRepo *repository.NotificationRepository
	userRepo         *repository.UserRepository
	smsProvider      sms.Provider
	emailSender      email.Sender

	events chan Event
	wg     sync.WaitGroup
	once   sync.Once
}

// NewDispatcher 创建通知分发器
func NewDispatcher(
	notificationRepo *repository.NotificationRepository,
	userRepo *repository.UserRepository,
	smsProvider sms.Provider,
	emailSender email.Sender,
	bufferSize int,
) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Dispatcher{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		smsProvider:      smsProvider,
		emailSender:      emailSender,
		events:           make(chan Event, bufferSize),
	}
}

// Start 启动分发循环
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for event := range d.events {
			d.deliver(ctx, event)
		}
	}()
}

// Stop 关闭事件通道并等待剩余事件投递完成
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		close(d.events)
	})
	d.wg.Wait()
}

// Notify 投递通知事件（通道满时丢弃并记日志）
func (d *Dispatcher) Notify(userID int64, kind, title, message string, relatedID int64) {
	select {
	case d.events <- Event{
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Message:   message,
		RelatedID: relatedID,
	}:
	default:
		logger.Warn("通知队列已满，事件丢弃",
			logger.UserID(userID),
			logger.String("kind", kind))
		metrics.GetMetrics().RecordNotification("internal", "dropped")
	}
}

// deliver 落库并按用户联系方式外发
func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	notification := &models.Notification{
		UserID:  event.UserID,
		Title:   event.Title,
		Message: event.Message,
		Kind:    event.Kind,
	}
	if event.RelatedID > 0 {
		notification.RelatedID = &event.RelatedID
	}

	if err := d.notificationRepo.Create(ctx, notification); err != nil {
		logger.Error("通知落库失败",
			logger.UserID(event.UserID),
			logger.String("kind", event.Kind),
			logger.Err(err))
		metrics.GetMetrics().RecordNotification("internal", "failed")
		return
	}
	metrics.GetMetrics().RecordNotification("internal", "sent")

	user, err := d.userRepo.GetByID(ctx, event.UserID)
	if err != nil {
		logger.Warn("通知外发跳过：用户不存在", logger.UserID(event.UserID))
		return
	}

	if d.smsProvider != nil && user.Phone != nil && *user.Phone != "" {
		if err := d.smsProvider.Send(ctx, *user.Phone, event.Message); err != nil {
			logger.Warn("短信通知发送失败",
				logger.UserID(event.UserID),
				logger.String("phone", crypto.MaskPhone(*user.Phone)),
				logger.Err(err))
			metrics.GetMetrics().RecordNotification("sms", "failed")
		} else {
			metrics.GetMetrics().RecordNotification("sms", "sent")
		}
	}

	if d.emailSender != nil && user.Email != "" {
		if err := d.emailSender.Send(ctx, user.Email, event.Title, event.Message); err != nil {
			logger.Warn("邮件通知发送失败", logger.UserID(event.UserID), logger.Err(err))
			metrics.GetMetrics().RecordNotification("email", "failed")
		} else {
			metrics.GetMetrics().RecordNotification("email", "sent")
		}
	}
}
