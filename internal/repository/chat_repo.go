package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/quickmech/quickmech-backend/internal/models"
)

// ChatRepository 聊天消息仓储
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建聊天消息仓储
func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Create 保存消息
func (r *ChatRepository) Create(ctx context.Context, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// ListByOrder 订单聊天历史（按时间正序返回最近 limit 条）
func (r *ChatRepository) ListByOrder(ctx context.Context, orderID int64, beforeID int64, limit int) ([]*models.ChatMessage, error) {
	var messages []*models.ChatMessage
	query := r.db.WithContext(ctx).Where("order_id = ?", orderID)
	if beforeID > 0 {
		query = query.Where("id < ?", beforeID)
	}
	err := query.Order("id DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}
	// 反转为时间正序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkRead 标记订单内发给本人的消息已读
func (r *ChatRepository) MarkRead(ctx context.Context, orderID, recipientID int64) error {
	return r.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("order_id = ? AND recipient_id = ? AND read = ?", orderID, recipientID, false).
		Update("read", true).Error
}

// CountUnread 用户未读消息数
func (r *ChatRepository) CountUnread(ctx context.Context, recipientID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}
