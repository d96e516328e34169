// Package parts 配件服务单元测试
package parts

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/quickmech/quickmech-backend/internal/common/config"
	apperrors "github.com/quickmech/quickmech-backend/internal/common/errors"
	"github.com/quickmech/quickmech-backend/internal/common/utils"
	"github.com/quickmech/quickmech-backend/internal/models"
	"github.com/quickmech/quickmech-backend/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Order{},
		&models.Part{},
		&models.PartReservation{},
	))

	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			Reservation: config.ReservationConfig{
				ExpireHours:       24,
				CodeRetryAttempts: 5,
			},
		},
	}
}

type fakeNotifier struct {
	events []string
}

func (f *fakeNotifier) Notify(userID int64, kind, title, message string, relatedID int64) {
	f.events = append(f.events, fmt.Sprintf("%d:%s:%s", userID, kind, title))
}

func newTestServices(t *testing.T) (*ReservationService, *PartsService, *gorm.DB, *fakeNotifier) {
	t.Helper()

	db := setupTestDB(t)
	notifier := &fakeNotifier{}
	partRepo := repository.NewPartRepository(db)
	svc := NewReservationService(
		db,
		repository.NewReservationRepository(db),
		partRepo,
		repository.NewOrderRepository(db),
		notifier,
		testConfig(),
	)
	return svc, NewPartsService(partRepo), db, notifier
}

func createUser(t *testing.T, db *gorm.DB, userType string) *models.User {
	t.Helper()

	u := &models.User{
		Email:        fmt.Sprintf("%s%d@test.com", userType, time.Now().UnixNano()),
		PasswordHash: "hash",
		Name:         "测试用户",
		UserType:     userType,
		IsActive:     true,
		IsApproved:   true,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createPart(t *testing.T, db *gorm.DB, shopID int64, price float64, stock int) *models.Part {
	t.Helper()

	p := &models.Part{
		AutopartsID: shopID,
		Name:        "pastilha de freio",
		Category:    "pastilha",
		Price:       price,
		Stock:       stock,
		IsActive:    true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func createApprovedOrder(t *testing.T, db *gorm.DB, clientID, mechanicID int64) *models.Order {
	t.Helper()

	labor := 65.00
	final := 65.00
	order := &models.Order{
		OrderNo:    fmt.Sprintf("QM%d", time.Now().UnixNano()),
		ClientID:   clientID,
		MechanicID: &mechanicID,
		Service:    "freios",
		Status:     models.OrderStatusApproved,
		Market:     models.MarketUK,
		LaborPrice: &labor,
		FinalPrice: &final,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestReservationService_Prereserve(t *testing.T) {
	svc, _, db, notifier := newTestServices(t)
	ctx := context.Background()
	client := createUser(t, db, models.UserTypeClient)
	mechanic := createUser(t, db, models.UserTypeMechanic)
	shop := createUser(t, db, models.UserTypeAutoparts)

	t.Run("预留成功推进订单且不生成取件码", func(t *testing.T) {
		part := createPart(t, db, shop.ID, 45.99, 10)
		order := createApprovedOrder(t, db, client.ID, mechanic.ID)

		reservation, err := svc.Prereserve(ctx, mechanic.ID, &PrereserveRequest{
			OrderID: order.ID,
			PartID:  part.ID,
		})
		require.NoError(t, err)

		assert.Equal(t, models.ReservationStatusPending, reservation.Status)
		// 取件码只在配件店确认后存在，技师预留时拿不到
		assert.Nil(t, reservation.PickupCode)
		assert.Equal(t, 45.99, reservation.UnitPrice)

		var stored models.PartReservation
		require.NoError(t, db.First(&stored, reservation.ID).Error)
		assert.Nil(t, stored.PickupCode)

		var got models.Order
		require.NoError(t, db.First(&got, order.ID).Error)
		assert.Equal(t, models.OrderStatusAwaitingPartHold, got.Status)
		require.NotNil(t, got.PartID)
		assert.Equal(t, part.ID, *got.PartID)
		require.NotNil(t, got.PartPrice)
		assert.Equal(t, 45.99, *got.PartPrice)

		// 预留阶段不扣库存
		var gotPart models.Part
		require.NoError(t, db.First(&gotPart, part.ID).Error)
		assert.Equal(t, 10, gotPart.Stock)

		assert.NotEmpty(t, notifier.events)
	})

	t.Run("库存不足拒绝预留", func(t *testing.T) {
		part := createPart(t, db, shop.ID, 45.99, 0)
		order := createApprovedOrder(t, db, client.ID, mechanic.ID)

		_, err := svc.Prereserve(ctx, mechanic.ID, &PrereserveRequest{
			OrderID: order.ID,
			PartID:  part.ID,
		})
		assert.Equal(t, apperrors.ErrStockInsufficient, err)
	})

	t.Run("非本订单技师不能预留", func(t *testing.T) {
		part := createPart(t, db, shop.ID, 45.99, 5)
		order := createApprovedOrder(t, db, client.ID, mechanic.ID)
		other := createUser(t, db, models.UserTypeMechanic)

		_, err := svc.Prereserve(ctx, other.ID, &PrereserveRequest{
			OrderID: order.ID,
			PartID:  part.ID,
		})
		assert.Equal(t, apperrors.ErrNotOrderMechanic, err)
	})

	t.Run("订单状态不允许时拒绝预留", func(t *testing.T) {
		part := createPart(t, db, shop.ID, 45.99, 5)
		order := createApprovedOrder(t, db, client.ID, mechanic.ID)
		require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("status", models.OrderStatusPaid).Error)

		_, err := svc.Prereserve(ctx, mechanic.ID, &PrereserveRequest{
			OrderID: order.ID,
			PartID:  part.ID,
		})
		assert.Equal(t, apperrors.ErrOrderStatusConflict, err)
	})
}

func TestReservationService_ConfirmAndPickup(t *testing.T) {
	svc, _, db, _ := newTestServices(t)
	ctx := context.Background()
	client := createUser(t, db, models.UserTypeClient)
	mechanic := createUser(t, db, models.UserTypeMechanic)
	shop := createUser(t, db, models.UserTypeAutoparts)

	prereserve := func(t *testing.T, stock int) (*models.PartReservation, *models.Part, *models.Order) {
		part := createPart(t, db, shop.ID, 45.99, stock)
		order := createApprovedOrder(t, db, client.ID, mechanic.ID)
		reservation, err := svc.Prereserve(ctx, mechanic.ID, &PrereserveRequest{
			OrderID: order.ID,
			PartID:  part.ID,
		})
		require.NoError(t, err)
		return reservation, part, order
	}

	t.Run("确认预留扣减库存并可取件", func(t *testing.T) {
		reservation, part, order := prereserve(t, 10)

		confirmed, err := svc.Confirm(ctx, shop.ID, reservation.ID)
		require.NoError(t, err)

		assert.Equal(t, models.ReservationStatusReady, confirmed.Status)
		assert.NotNil(t, confirmed.ConfirmedAt)
		require.NotNil(t, confirmed.PickupCode)
		assert.True(t, strings.HasPrefix(*confirmed.PickupCode, "QM-"))
		assert.Len(t, *confirmed.PickupCode, 9)

		var gotPart models.Part
		require.NoError(t, db.First(&gotPart, part.ID).Error)
		assert.Equal(t, 9, gotPart.Stock)

		var gotOrder models.Order
		require.NoError(t, db.First(&gotOrder, order.ID).Error)
		assert.Equal(t, models.OrderStatusPartConfirmed, gotOrder.Status)
		require.NotNil(t, gotOrder.PickupCode)
		assert.Equal(t, *confirmed.PickupCode, *gotOrder.PickupCode)
	})

	t.Run("重复确认返回冲突且库存只扣一次", func(t *testing.T) {
		reservation, part, _ := prereserve(t, 10)

		_, err := svc.Confirm(ctx, shop.ID, reservation.ID)
		require.NoError(t, err)

		_, err = svc.Confirm(ctx, shop.ID, reservation.ID)
		assert.Equal(t, apperrors.ErrReservationConflict, err)

		var gotPart models.Part
		require.NoError(t, db.First(&gotPart, part.ID).Error)
		assert.Equal(t, 9, gotPart.Stock)
	})

	t.Run("库存不足时确认失败", func(t *testing.T) {
		reservation, part, _ := prereserve(t, 1)
		require.NoError(t, db.Model(&models.Part{}).Where("id = ?", part.ID).
			Update("stock", 0).Error)

		_, err := svc.Confirm(ctx, shop.ID, reservation.ID)
		assert.Equal(t, apperrors.ErrStockInsufficient, err)
	})

	t.Run("非本店预留不能确认", func(t *testing.T) {
		reservation, _, _ := prereserve(t, 10)
		other := createUser(t, db, models.UserTypeAutoparts)

		_, err := svc.Confirm(ctx, other.ID, reservation.ID)
		assert.Equal(t, apperrors.ErrNotReservationShop, err)
	})

	t.Run("凭取件码核销取件", func(t *testing.T) {
		reservation, _, order := prereserve(t, 10)
		confirmed, err := svc.Confirm(ctx, shop.ID, reservation.ID)
		require.NoError(t, err)
		require.NotNil(t, confirmed.PickupCode)

		pickedUp, err := svc.ConfirmPickup(ctx, shop.ID, *confirmed.PickupCode)
		require.NoError(t, err)

		assert.Equal(t, models.ReservationStatusPickedUp, pickedUp.Status)
		assert.NotNil(t, pickedUp.PickedUpAt)

		var gotOrder models.Order
		require.NoError(t, db.First(&gotOrder, order.ID).Error)
		assert.Equal(t, models.OrderStatusPartPickedUp, gotOrder.Status)
	})

	t.Run("作废已确认预留返还库存", func(t *testing.T) {
		reservation, part, order := prereserve(t, 10)
		confirmed, err := svc.Confirm(ctx, shop.ID, reservation.ID)
		require.NoError(t, err)
		require.NotNil(t, confirmed.PickupCode)
		code := *confirmed.PickupCode

		voided, err := svc.Void(ctx, shop.ID, reservation.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusVoided, voided.Status)
		assert.Nil(t, voided.PickupCode)

		// 库存回到确认前水位
		var gotPart models.Part
		require.NoError(t, db.First(&gotPart, part.ID).Error)
		assert.Equal(t, 10, gotPart.Stock)

		var gotOrder models.Order
		require.NoError(t, db.First(&gotOrder, order.ID).Error)
		assert.Equal(t, models.OrderStatusAccepted, gotOrder.Status)
		assert.Nil(t, gotOrder.PickupCode)

		// 作废后的取件码不能再核销
		_, err = svc.ConfirmPickup(ctx, shop.ID, code)
		assert.Equal(t, apperrors.ErrPickupCodeInvalid, err)
	})

	t.Run("未确认的预留不能作废", func(t *testing.T) {
		reservation, _, _ := prereserve(t, 10)

		_, err := svc.Void(ctx, shop.ID, reservation.ID)
		assert.Equal(t, apperrors.ErrReservationConflict, err)
	})

	t.Run("无效取件码", func(t *testing.T) {
		_, err := svc.ConfirmPickup(ctx, shop.ID, "QM-XXXXXX")
		assert.Equal(t, apperrors.ErrPickupCodeInvalid, err)
	})

	t.Run("未确认的预留没有可核销的取件码", func(t *testing.T) {
		reservation, _, _ := prereserve(t, 10)
		assert.Nil(t, reservation.PickupCode)
	})
}

func TestReservationService_RefuseAndExpire(t *testing.T) {
	svc, _, db, _ := newTestServices(t)
	ctx := context.Background()
	client := createUser(t, db, models.UserTypeClient)
	mechanic := createUser(t, db, models.UserTypeMechanic)
	shop := createUser(t, db, models.UserTypeAutoparts)

	prereserve := func(t *testing.T) (*models.PartReservation, *models.Order) {
		part := createPart(t, db, shop.ID, 45.99, 10)
		order := createApprovedOrder(t, db, client.ID, mechanic.ID)
		reservation, err := svc.Prereserve(ctx, mechanic.ID, &PrereserveRequest{
			OrderID: order.ID,
			PartID:  part.ID,
		})
		require.NoError(t, err)
		return reservation, order
	}

	t.Run("拒绝预留后订单回到已接单", func(t *testing.T) {
		reservation, order := prereserve(t)

		refused, err := svc.Refuse(ctx, shop.ID, reservation.ID, &RefuseRequest{Note: "sem estoque"})
		require.NoError(t, err)

		assert.Equal(t, models.ReservationStatusRefused, refused.Status)
		require.NotNil(t, refused.RefuseNote)
		assert.Equal(t, "sem estoque", *refused.RefuseNote)

		var gotOrder models.Order
		require.NoError(t, db.First(&gotOrder, order.ID).Error)
		assert.Equal(t, models.OrderStatusAccepted, gotOrder.Status)
		assert.Nil(t, gotOrder.PartID)
		assert.Nil(t, gotOrder.ReservationID)
	})

	t.Run("超时预留被定时任务关闭", func(t *testing.T) {
		reservation, order := prereserve(t)
		require.NoError(t, db.Model(&models.PartReservation{}).Where("id = ?", reservation.ID).
			Update("expires_at", time.Now().Add(-time.Hour)).Error)

		expired, err := svc.ExpireStale(ctx, 50)
		require.NoError(t, err)
		assert.Equal(t, 1, expired)

		var gotReservation models.PartReservation
		require.NoError(t, db.First(&gotReservation, reservation.ID).Error)
		assert.Equal(t, models.ReservationStatusExpired, gotReservation.Status)

		var gotOrder models.Order
		require.NoError(t, db.First(&gotOrder, order.ID).Error)
		assert.Equal(t, models.OrderStatusAccepted, gotOrder.Status)
	})

	t.Run("读取时惰性过期", func(t *testing.T) {
		reservation, _ := prereserve(t)
		require.NoError(t, db.Model(&models.PartReservation{}).Where("id = ?", reservation.ID).
			Update("expires_at", time.Now().Add(-time.Minute)).Error)

		got, err := svc.GetByID(ctx, reservation.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReservationStatusExpired, got.Status)

		// 过期后配件店确认被拒
		_, err = svc.Confirm(ctx, shop.ID, reservation.ID)
		assert.Equal(t, apperrors.ErrReservationExpired, err)
	})
}

func TestPartsService_CatalogAndSearch(t *testing.T) {
	_, partsSvc, db, _ := newTestServices(t)
	ctx := context.Background()
	shop := createUser(t, db, models.UserTypeAutoparts)

	t.Run("上架配件", func(t *testing.T) {
		part, err := partsSvc.Create(ctx, shop.ID, &CreatePartRequest{
			Name:     "oleo 5w30",
			Category: "oleo",
			Price:    29.99,
			Stock:    20,
		})
		require.NoError(t, err)
		assert.Equal(t, 29.99, part.Price)
		assert.True(t, part.IsActive)
	})

	t.Run("搜索只返回在售有库存配件", func(t *testing.T) {
		createPart(t, db, shop.ID, 45.99, 10)
		createPart(t, db, shop.ID, 45.99, 0)

		page := &utils.Pagination{Page: 1, PageSize: 20}
		parts, _, err := partsSvc.Search(ctx, &SearchRequest{Category: "pastilha"}, page)
		require.NoError(t, err)
		for _, p := range parts {
			assert.Greater(t, p.Stock, 0)
		}
	})

	t.Run("服务建议按类别返回", func(t *testing.T) {
		createPart(t, db, shop.ID, 45.99, 10)

		parts, err := partsSvc.Suggestions(ctx, "freios", 10)
		require.NoError(t, err)
		assert.NotEmpty(t, parts)

		none, err := partsSvc.Suggestions(ctx, "servico desconhecido", 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("他店配件不能修改", func(t *testing.T) {
		part := createPart(t, db, shop.ID, 45.99, 10)
		other := createUser(t, db, models.UserTypeAutoparts)

		price := 50.00
		_, err := partsSvc.Update(ctx, other.ID, part.ID, &UpdatePartRequest{Price: &price})
		assert.Equal(t, apperrors.ErrPermissionDenied, err)
	})
}
