package models

import (
	"time"
)

// Order 服务订单模型
type Order struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo         string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	ClientID        int64      `gorm:"index;not null" json:"client_id"`
	MechanicID      *int64     `gorm:"index" json:"mechanic_id,omitempty"`
	VehicleID       *int64     `json:"vehicle_id,omitempty"`
	Service         string     `gorm:"type:varchar(100);not null" json:"service"`
	Description     *string    `gorm:"type:varchar(500)" json:"description,omitempty"`
	LocationType    string     `gorm:"type:varchar(20);not null;default:'casa'" json:"location_type"`
	Address         *string    `gorm:"type:varchar(255)" json:"address,omitempty"`
	Date            *string    `gorm:"type:varchar(10)" json:"date,omitempty"`
	Time            *string    `gorm:"type:varchar(5)" json:"time,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Status          string     `gorm:"type:varchar(30);index;not null;default:'AGUARDANDO_MECANICO'" json:"status"`
	Market          string     `gorm:"type:varchar(5);not null;default:'uk'" json:"market"`
	FinalPrice      *float64   `gorm:"type:decimal(12,2)" json:"final_price,omitempty"`
	LaborPrice      *float64   `gorm:"type:decimal(12,2)" json:"labor_price,omitempty"`
	TravelFee       float64    `gorm:"type:decimal(10,2);not null;default:0" json:"travel_fee"`
	HasParts        bool       `gorm:"not null;default:false" json:"has_parts"`
	NeedsParts      bool       `gorm:"not null;default:false" json:"needs_parts"`
	PartID          *int64     `json:"part_id,omitempty"`
	PartPrice       *float64   `gorm:"type:decimal(12,2)" json:"part_price,omitempty"`
	AutopartsID     *int64     `gorm:"index" json:"autoparts_id,omitempty"`
	ReservationID   *int64     `json:"reservation_id,omitempty"`
	PickupCode      *string    `gorm:"type:varchar(12)" json:"pickup_code,omitempty"`
	PrebookingPaid  bool       `gorm:"not null;default:false" json:"prebooking_paid"`
	Archived        bool       `gorm:"index;not null;default:false" json:"archived"`
	CancelReason    *string    `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// 车辆信息快照（下单时从车辆记录复制）
	VehiclePlate *string `gorm:"type:varchar(10)" json:"vehicle_plate,omitempty"`
	VehicleMake  *string `gorm:"type:varchar(50)" json:"vehicle_make,omitempty"`
	VehicleModel *string `gorm:"type:varchar(80)" json:"vehicle_model,omitempty"`
	VehicleYear  *int    `json:"vehicle_year,omitempty"`

	// 关联
	Client      *User            `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Mechanic    *User            `gorm:"foreignKey:MechanicID" json:"mechanic,omitempty"`
	Vehicle     *Vehicle         `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	Part        *Part            `gorm:"foreignKey:PartID" json:"part,omitempty"`
	Reservation *PartReservation `gorm:"foreignKey:ReservationID" json:"part_reservation,omitempty"`
	Payments    []Payment        `gorm:"foreignKey:OrderID" json:"payments,omitempty"`
	Review      *Review          `gorm:"foreignKey:OrderID" json:"review,omitempty"`
}

// TableName 表名
func (Order) TableName() string {
	return "orders"
}

// OrderStatus 订单状态（葡语规范值）
const (
	OrderStatusAwaitingMechanic   = "AGUARDANDO_MECANICO"     // 等待技师接单
	OrderStatusAccepted           = "ACEITO"                  // 技师已接单
	OrderStatusQuoteSent          = "ORCAMENTO_ENVIADO"       // 报价已发送
	OrderStatusApproved           = "APROVADO"                // 客户已同意报价
	OrderStatusPrebooked          = "PRE_AGENDADO"            // 预约金已支付
	OrderStatusAwaitingPartHold   = "AGUARDANDO_RESERVA_PECA" // 等待配件店确认预留
	OrderStatusPartConfirmed      = "PECA_CONFIRMADA"         // 配件已确认可取
	OrderStatusPartPickedUp       = "PECA_RETIRADA"           // 配件已取走
	OrderStatusPaid               = "PAGO"                    // 服务款已支付
	OrderStatusServiceInProgress  = "SERVICO_EM_ANDAMENTO"    // 服务进行中
	OrderStatusServiceFinished    = "SERVICO_FINALIZADO"      // 服务已完成
	OrderStatusReviewed           = "AVALIADO"                // 已评价
	OrderStatusCancelled          = "CANCELADO"               // 已取消
)

// LocationType 服务地点类型
const (
	LocationTypeHome     = "casa"    // 客户住址
	LocationTypeWork     = "trabalho" // 工作地点
	LocationTypeWorkshop = "oficina" // 技师车间
)

// IsTerminal 是否为终态
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusReviewed, OrderStatusCancelled:
		return true
	}
	return false
}

// HasPartsFlow 订单是否走配件预留子流程
func (o *Order) HasPartsFlow() bool {
	return o.PartID != nil
}

// Review 服务评价
type Review struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID    int64     `gorm:"uniqueIndex;not null" json:"order_id"`
	ClientID   int64     `gorm:"index;not null" json:"client_id"`
	MechanicID int64     `gorm:"index;not null" json:"mechanic_id"`
	Rating     int       `gorm:"not null" json:"rating"`
	Comment    *string   `gorm:"type:varchar(500)" json:"comment,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`

	// 关联
	Order    *Order `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	Client   *User  `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Mechanic *User  `gorm:"foreignKey:MechanicID" json:"mechanic,omitempty"`
}

// TableName 表名
func (Review) TableName() string {
	return "reviews"
}
