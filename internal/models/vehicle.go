package models

import (
	"time"
)

// Vehicle 车辆模型
type Vehicle struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientID   int64     `gorm:"index;not null" json:"client_id"`
	Plate      string    `gorm:"type:varchar(10);index;not null" json:"plate"`
	Make       string    `gorm:"type:varchar(50);not null;default:''" json:"make"`
	Model      string    `gorm:"type:varchar(80);not null;default:''" json:"model"`
	Year       *int      `json:"year,omitempty"`
	Color      *string   `gorm:"type:varchar(30)" json:"color,omitempty"`
	Fuel       *string   `gorm:"type:varchar(20)" json:"fuel,omitempty"`
	Version    *string   `gorm:"type:varchar(60)" json:"version,omitempty"`
	Category   *string   `gorm:"type:varchar(30)" json:"category,omitempty"`
	EngineSize *string   `gorm:"type:varchar(20)" json:"engine_size,omitempty"`
	Country    string    `gorm:"type:varchar(5);not null;default:'uk'" json:"country"`
	Source     string    `gorm:"type:varchar(10);not null;default:'manual'" json:"source"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Client *User `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

// TableName 表名
func (Vehicle) TableName() string {
	return "vehicles"
}

// VehicleSource 车辆信息来源
const (
	VehicleSourceManual = "manual" // 手工录入
	VehicleSourceDVLA   = "dvla"   // DVLA 查询
	VehicleSourcePlaca  = "placa"  // 巴西车牌查询
	VehicleSourceMock   = "mock"   // 本地模拟数据
)
