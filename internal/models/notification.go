package models

import (
	"time"
)

// Notification 站内通知
type Notification struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"type:varchar(120);not null" json:"title"`
	Message   string    `gorm:"type:varchar(500);not null" json:"message"`
	Kind      string    `gorm:"type:varchar(30);index;not null" json:"kind"`
	RelatedID *int64    `json:"related_id,omitempty"`
	Read      bool      `gorm:"index;not null;default:false" json:"read"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// 关联
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName 表名
func (Notification) TableName() string {
	return "notifications"
}

// NotificationKind 通知类型
const (
	NotificationKindOrder       = "order"       // 订单进度
	NotificationKindQuote       = "quote"       // 报价
	NotificationKindReservation = "reservation" // 配件预留
	NotificationKindPayment     = "payment"     // 支付
	NotificationKindPayout      = "payout"      // 提现
	NotificationKindReminder    = "reminder"    // 服务提醒
	NotificationKindChat        = "chat"        // 聊天消息
)

// ChatMessage 订单聊天消息
type ChatMessage struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64     `gorm:"index;not null" json:"order_id"`
	SenderID    int64     `gorm:"index;not null" json:"sender_id"`
	RecipientID int64     `gorm:"index;not null" json:"recipient_id"`
	Content     string    `gorm:"type:varchar(1000);not null" json:"content"`
	Read        bool      `gorm:"index;not null;default:false" json:"read"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	// 关联
	Order  *Order `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	Sender *User  `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

// TableName 表名
func (ChatMessage) TableName() string {
	return "chat_messages"
}
