package chat

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/quickmech/quickmech-backend/internal/common/config"
	apperrors "github.com/quickmech/quickmech-backend/internal/common/errors"
	"github.com/quickmech/quickmech-backend/internal/models"
	"github.com/quickmech/quickmech-backend/internal/repository"
	"github.com/quickmech/quickmech-backend/internal/service/notification"
)

const defaultHistoryLimit = 50

// ChatService 聊天服务
type ChatService struct {
	chatRepo  *repository.ChatRepository
	orderRepo *repository.OrderRepository
	registry  *Registry
	notifier  notification.Notifier
	cfg       *config.Config
}

// NewChatService 创建聊天服务
func NewChatService(
	chatRepo *repository.ChatRepository,
	orderRepo *repository.OrderRepository,
	registry *Registry,
	notifier notification.Notifier,
	cfg *config.Config,
) *ChatService {
	return &ChatService{
		chatRepo:  chatRepo,
		orderRepo: orderRepo,
		registry:  registry,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// Registry 返回连接注册表（WebSocket 升级后注册连接用）
func (s *ChatService) Registry() *Registry {
	return s.registry
}

// SendRequest 发送消息请求
type SendRequest struct {
	OrderID int64  `json:"order_id" binding:"required"`
	Content string `json:"content" binding:"required,max=1000"`
}

// Send 发送订单内消息
// 消息总是落库；对方在线时实时推送，离线时转站内通知
func (s *ChatService) Send(ctx context.Context, senderID int64, req *SendRequest) (*models.ChatMessage, error) {
	order, recipientID, err := s.resolvePeer(ctx, req.OrderID, senderID)
	if err != nil {
		return nil, err
	}

	message := &models.ChatMessage{
		OrderID:     order.ID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     req.Content,
	}
	if err := s.chatRepo.Create(ctx, message); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	if !s.registry.Push(recipientID, message) {
		s.notifier.Notify(recipientID, models.NotificationKindChat,
			"Nova mensagem", "Você recebeu uma nova mensagem sobre o pedido "+order.OrderNo, order.ID)
	}
	return message, nil
}

// History 订单聊天历史，取回同时把发给本人的消息置为已读
func (s *ChatService) History(ctx context.Context, userID, orderID, beforeID int64) ([]*models.ChatMessage, error) {
	if _, _, err := s.resolvePeer(ctx, orderID, userID); err != nil {
		return nil, err
	}

	limit := s.cfg.Business.Chat.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	messages, err := s.chatRepo.ListByOrder(ctx, orderID, beforeID, limit)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	if err := s.chatRepo.MarkRead(ctx, orderID, userID); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return messages, nil
}

// CountUnread 未读消息数
func (s *ChatService) CountUnread(ctx context.Context, userID int64) (int64, error) {
	count, err := s.chatRepo.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperrors.ErrDatabaseError.WithError(err)
	}
	return count, nil
}

// resolvePeer 校验用户是订单参与方并返回对端
// 聊天只在客户与已接单技师之间进行
func (s *ChatService) resolvePeer(ctx context.Context, orderID, userID int64) (*models.Order, int64, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, apperrors.ErrOrderNotFound
		}
		return nil, 0, apperrors.ErrDatabaseError.WithError(err)
	}
	if order.MechanicID == nil {
		return nil, 0, apperrors.ErrChatPeerOffline.WithMessage("订单尚未被技师接单")
	}

	switch userID {
	case order.ClientID:
		return order, *order.MechanicID, nil
	case *order.MechanicID:
		return order, order.ClientID, nil
	default:
		return nil, 0, apperrors.ErrPermissionDenied
	}
}
