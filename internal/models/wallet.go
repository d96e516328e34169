package models

import (
	"time"
)

// Wallet 收益钱包（技师/配件店各一）
type Wallet struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PartyID          int64     `gorm:"uniqueIndex;not null" json:"party_id"`
	PartyType        string    `gorm:"type:varchar(20);not null" json:"party_type"`
	PendingBalance   float64   `gorm:"type:decimal(12,2);not null;default:0" json:"pending_balance"`
	AvailableBalance float64   `gorm:"type:decimal(12,2);not null;default:0" json:"available_balance"`
	TotalEarned      float64   `gorm:"type:decimal(12,2);not null;default:0" json:"total_earned"`
	TotalPaidOut     float64   `gorm:"type:decimal(12,2);not null;default:0" json:"total_paid_out"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Party   *User         `gorm:"foreignKey:PartyID" json:"party,omitempty"`
	Entries []WalletEntry `gorm:"foreignKey:PartyID;references:PartyID" json:"entries,omitempty"`
}

// TableName 表名
func (Wallet) TableName() string {
	return "wallets"
}

// WalletEntry 钱包流水（含待结算到期时间）
type WalletEntry struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	PartyID   int64      `gorm:"index;not null" json:"party_id"`
	OrderID   *int64     `gorm:"index" json:"order_id,omitempty"`
	PaymentID *int64     `json:"payment_id,omitempty"`
	Kind      string     `gorm:"type:varchar(20);not null" json:"kind"`
	Amount    float64    `gorm:"type:decimal(12,2);not null" json:"amount"`
	Remark    *string    `gorm:"type:varchar(255)" json:"remark,omitempty"`
	MaturesAt *time.Time `gorm:"index" json:"matures_at,omitempty"`
	Settled   bool       `gorm:"index;not null;default:false" json:"settled"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (WalletEntry) TableName() string {
	return "wallet_entries"
}

// WalletEntryKind 流水类型
const (
	WalletEntryKindEarning = "earning" // 订单收益（待结算）
	WalletEntryKindSettle  = "settle"  // 待结算转可用
	WalletEntryKindPayout  = "payout"  // 提现扣减
	WalletEntryKindRefund  = "refund"  // 提现驳回返还
)

// PayoutRequest 提现申请
type PayoutRequest struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	PayoutNo    string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"payout_no"`
	PartyID     int64      `gorm:"index;not null" json:"party_id"`
	Amount      float64    `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status      string     `gorm:"type:varchar(20);index;not null;default:'pending'" json:"status"`
	BankAccount *string    `gorm:"type:varchar(120)" json:"bank_account,omitempty"`
	PixKey      *string    `gorm:"type:varchar(120)" json:"pix_key,omitempty"`
	RejectNote  *string    `gorm:"type:varchar(255)" json:"reject_note,omitempty"`
	ReviewedBy  *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Party *User `gorm:"foreignKey:PartyID" json:"party,omitempty"`
}

// TableName 表名
func (PayoutRequest) TableName() string {
	return "payout_requests"
}

// PayoutStatus 提现状态
const (
	PayoutStatusPending  = "pending"  // 待审核
	PayoutStatusApproved = "approved" // 已通过
	PayoutStatusPaid     = "paid"     // 已打款
	PayoutStatusRejected = "rejected" // 已驳回
)
