package models

import (
	"time"
)

// Part 配件模型
type Part struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AutopartsID int64     `gorm:"index;not null" json:"autoparts_id"`
	Name        string    `gorm:"type:varchar(120);not null" json:"name"`
	Description *string   `gorm:"type:varchar(500)" json:"description,omitempty"`
	Category    string    `gorm:"type:varchar(50);index;not null" json:"category"`
	Make        *string   `gorm:"type:varchar(50)" json:"make,omitempty"`
	Model       *string   `gorm:"type:varchar(80)" json:"model,omitempty"`
	Price       float64   `gorm:"type:decimal(12,2);not null" json:"price"`
	Stock       int       `gorm:"not null;default:0" json:"stock"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Autoparts *User `gorm:"foreignKey:AutopartsID" json:"autoparts,omitempty"`
}

// TableName 表名
func (Part) TableName() string {
	return "parts"
}

// PartReservation 配件预留
type PartReservation struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64      `gorm:"index;not null" json:"order_id"`
	PartID      int64      `gorm:"index;not null" json:"part_id"`
	AutopartsID int64      `gorm:"index;not null" json:"autoparts_id"`
	MechanicID  int64      `gorm:"index;not null" json:"mechanic_id"`
	Status      string     `gorm:"type:varchar(30);index;not null;default:'PENDENTE_CONFIRMACAO'" json:"status"`
	PickupCode  *string    `gorm:"type:varchar(12);uniqueIndex" json:"pickup_code,omitempty"`
	Quantity    int        `gorm:"not null;default:1" json:"quantity"`
	UnitPrice   float64    `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	RefuseNote  *string    `gorm:"type:varchar(255)" json:"refuse_note,omitempty"`
	ExpiresAt   time.Time  `gorm:"index;not null" json:"expires_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	PickedUpAt  *time.Time `json:"picked_up_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Order     *Order `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	Part      *Part  `gorm:"foreignKey:PartID" json:"part,omitempty"`
	Autoparts *User  `gorm:"foreignKey:AutopartsID" json:"autoparts,omitempty"`
	Mechanic  *User  `gorm:"foreignKey:MechanicID" json:"mechanic,omitempty"`
}

// TableName 表名
func (PartReservation) TableName() string {
	return "part_reservations"
}

// ReservationStatus 配件预留状态（葡语规范值）
const (
	ReservationStatusPending  = "PENDENTE_CONFIRMACAO" // 等待配件店确认
	ReservationStatusReady    = "PRONTO_PARA_RETIRADA" // 可取件
	ReservationStatusRefused  = "RECUSADO"             // 配件店拒绝
	ReservationStatusPickedUp = "RETIRADO"             // 已取件
	ReservationStatusExpired  = "EXPIRADO"             // 超时未确认
	ReservationStatusVoided   = "CANCELADO"            // 确认后作废，库存返还
)

// IsExpired 预留是否已超时
func (r *PartReservation) IsExpired(now time.Time) bool {
	return r.Status == ReservationStatusPending && now.After(r.ExpiresAt)
}
