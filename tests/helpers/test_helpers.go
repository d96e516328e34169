// Package helpers 提供测试辅助工具
package helpers

import (
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/quickmech/quickmech-backend/internal/models"
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

// RandomString 生成随机字符串
func RandomString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

// RandomEmail 生成随机邮箱
func RandomEmail() string {
	return fmt.Sprintf("user%s@example.com", RandomString(8))
}

// RandomUKPlate 生成随机英国车牌
func RandomUKPlate() string {
	const letters = "ABCDEFGHJKLMNOPRSTUVWXYZ"
	return fmt.Sprintf("%c%c%02d%c%c%c",
		letters[rand.Intn(len(letters))], letters[rand.Intn(len(letters))],
		rand.Intn(100),
		letters[rand.Intn(len(letters))], letters[rand.Intn(len(letters))], letters[rand.Intn(len(letters))])
}

// HashPassword 生成测试用密码哈希
func HashPassword(password string) string {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(hash)
}

// NewTestClient 创建测试客户
func NewTestClient(market string) *models.User {
	return &models.User{
		Email:        RandomEmail(),
		PasswordHash: HashPassword("password123"),
		Name:         "客户" + RandomString(4),
		UserType:     models.UserTypeClient,
		Market:       market,
		IsActive:     true,
		IsApproved:   true,
	}
}

// NewTestMechanic 创建测试技师（已审核）
func NewTestMechanic(market string) *models.User {
	phone := fmt.Sprintf("+4477%08d", rand.Intn(100000000))
	return &models.User{
		Email:        RandomEmail(),
		PasswordHash: HashPassword("password123"),
		Name:         "技师" + RandomString(4),
		Phone:        &phone,
		UserType:     models.UserTypeMechanic,
		Market:       market,
		IsActive:     true,
		IsApproved:   true,
	}
}

// NewTestAutoparts 创建测试配件店（已审核）
func NewTestAutoparts(market string) *models.User {
	return &models.User{
		Email:        RandomEmail(),
		PasswordHash: HashPassword("password123"),
		Name:         "配件店" + RandomString(4),
		UserType:     models.UserTypeAutoparts,
		Market:       market,
		IsActive:     true,
		IsApproved:   true,
	}
}

// NewTestVehicle 创建测试车辆
func NewTestVehicle(clientID int64) *models.Vehicle {
	return &models.Vehicle{
		ClientID: clientID,
		Plate:    RandomUKPlate(),
		Country:  "uk",
		Make:     "Ford",
		Model:    "Fiesta",
		Source:   models.VehicleSourceManual,
	}
}

// NewTestPart 创建测试配件
func NewTestPart(autopartsID int64, price float64, stock int) *models.Part {
	return &models.Part{
		AutopartsID: autopartsID,
		Name:        "配件" + RandomString(4),
		Category:    "freios",
		Price:       price,
		Stock:       stock,
		IsActive:    true,
	}
}

// NewTestOrder 创建指定状态的测试订单
func NewTestOrder(clientID int64, market, status string) *models.Order {
	orderNo := fmt.Sprintf("O%s%06d", time.Now().Format("20060102150405"), rand.Intn(1000000))
	return &models.Order{
		OrderNo:      orderNo,
		ClientID:     clientID,
		Service:      "troca de oleo",
		LocationType: models.LocationTypeHome,
		Status:       status,
		Market:       market,
	}
}
