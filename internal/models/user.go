// Package models 定义数据模型
package models

import (
	"time"
)

// User 用户模型
type User struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string     `gorm:"type:varchar(120);uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	Name         string     `gorm:"type:varchar(100);not null" json:"name"`
	Phone        *string    `gorm:"type:varchar(20)" json:"phone,omitempty"`
	UserType     string     `gorm:"type:varchar(20);index;not null" json:"user_type"`
	Market       string     `gorm:"type:varchar(5);not null;default:'uk'" json:"market"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	IsApproved   bool       `gorm:"not null;default:false" json:"is_approved"`
	Rating       float64    `gorm:"type:decimal(3,2);not null;default:0" json:"rating"`
	ReviewCount  int        `gorm:"not null;default:0" json:"review_count"`
	Address      *string    `gorm:"type:varchar(255)" json:"address,omitempty"`
	Latitude     *float64   `gorm:"type:decimal(10,7)" json:"latitude,omitempty"`
	Longitude    *float64   `gorm:"type:decimal(10,7)" json:"longitude,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Vehicles []Vehicle `gorm:"foreignKey:ClientID" json:"vehicles,omitempty"`
	Wallet   *Wallet   `gorm:"foreignKey:PartyID" json:"wallet,omitempty"`
}

// TableName 表名
func (User) TableName() string {
	return "users"
}

// UserType 用户类型
const (
	UserTypeClient    = "client"    // 客户
	UserTypeMechanic  = "mechanic"  // 移动技师
	UserTypeAutoparts = "autoparts" // 配件店
	UserTypeAdmin     = "admin"     // 平台管理员
)

// Market 市场
const (
	MarketUK = "uk" // 英国
	MarketBR = "br" // 巴西
)

// NeedsApproval 该用户类型是否需要平台审核
func NeedsApproval(userType string) bool {
	return userType == UserTypeMechanic || userType == UserTypeAutoparts
}

// IsValidUserType 校验用户类型
func IsValidUserType(userType string) bool {
	switch userType {
	case UserTypeClient, UserTypeMechanic, UserTypeAutoparts, UserTypeAdmin:
		return true
	}
	return false
}

// IsValidMarket 校验市场
func IsValidMarket(market string) bool {
	return market == MarketUK || market == MarketBR
}
