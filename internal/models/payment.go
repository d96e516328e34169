package models

import (
	"time"
)

// Payment 支付记录模型
type Payment struct {
	ID                int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentNo         string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"payment_no"`
	OrderID           int64      `gorm:"index;not null" json:"order_id"`
	ClientID          int64      `gorm:"index;not null" json:"client_id"`
	MechanicID        *int64     `gorm:"index" json:"mechanic_id,omitempty"`
	Kind              string     `gorm:"type:varchar(20);not null;default:'service'" json:"kind"`
	Method            string     `gorm:"type:varchar(20);not null" json:"method"`
	Status            string     `gorm:"type:varchar(20);index;not null;default:'pending'" json:"status"`
	Market            string     `gorm:"type:varchar(5);not null;default:'uk'" json:"market"`
	Currency          string     `gorm:"type:varchar(5);not null;default:'GBP'" json:"currency"`
	Amount            float64    `gorm:"type:decimal(12,2);not null" json:"amount"`
	PlatformFee       float64    `gorm:"type:decimal(12,2);not null;default:0" json:"platform_fee"`
	MechanicEarnings  float64    `gorm:"type:decimal(12,2);not null;default:0" json:"mechanic_earnings"`
	AutopartsEarnings float64    `gorm:"type:decimal(12,2);not null;default:0" json:"autoparts_earnings"`
	ExternalRef       *string    `gorm:"type:varchar(128);index" json:"external_ref,omitempty"`
	PixCode           *string    `gorm:"type:varchar(255)" json:"pix_code,omitempty"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Order  *Order        `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	Client *User         `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Split  *PaymentSplit `gorm:"foreignKey:PaymentID" json:"split,omitempty"`
}

// TableName 表名
func (Payment) TableName() string {
	return "payments"
}

// PaymentKind 支付类型
const (
	PaymentKindService    = "service"    // 服务款
	PaymentKindPrebooking = "prebooking" // 预约金
)

// PaymentMethod 支付方式
const (
	PaymentMethodCard   = "card"   // 银行卡（Stripe）
	PaymentMethodPix    = "pix"    // 巴西 PIX
	PaymentMethodBoleto = "boleto" // 巴西 Boleto
	PaymentMethodWallet = "wallet" // 平台内扣款
)

// PaymentStatus 支付状态
const (
	PaymentStatusPending  = "pending"  // 待支付
	PaymentStatusPaid     = "paid"     // 已支付
	PaymentStatusFailed   = "failed"   // 支付失败
	PaymentStatusRefunded = "refunded" // 已退款
)

// PaymentSplit 分账明细（含配件方的三方拆分）
type PaymentSplit struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentID         int64     `gorm:"uniqueIndex;not null" json:"payment_id"`
	OrderID           int64     `gorm:"index;not null" json:"order_id"`
	AutopartsID       *int64    `gorm:"index" json:"autoparts_id,omitempty"`
	LaborAmount       float64   `gorm:"type:decimal(12,2);not null" json:"labor_amount"`
	TravelFee         float64   `gorm:"type:decimal(10,2);not null;default:0" json:"travel_fee"`
	PartPrice         float64   `gorm:"type:decimal(12,2);not null;default:0" json:"part_price"`
	PlatformFee       float64   `gorm:"type:decimal(12,2);not null" json:"platform_fee"`
	MechanicEarnings  float64   `gorm:"type:decimal(12,2);not null" json:"mechanic_earnings"`
	AutopartsEarnings float64   `gorm:"type:decimal(12,2);not null;default:0" json:"autoparts_earnings"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`

	// 关联
	Payment *Payment `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
}

// TableName 表名
func (PaymentSplit) TableName() string {
	return "payment_splits"
}
