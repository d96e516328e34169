// Package order 订单服务单元测试
package order

import (
	"context"
	"fmt"
	"strings"
	"sync"
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
		&models.Vehicle{},
		&models.Order{},
		&models.Review{},
		&models.Notification{},
	))

	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			Markets: map[string]config.MarketConfig{
				"uk": {Currency: "GBP", BaseFee: 5.00, LaborFeeRate: 0.10, FeeBasis: "labor", PrebookingAmount: 12.00},
				"br": {Currency: "BRL", BaseFee: 20.00, LaborFeeRate: 0.10, FeeBasis: "amount", PrebookingAmount: 50.00},
			},
		},
	}
}

// fakeNotifier 捕获通知事件
type fakeNotifier struct {
	events []string
}

func (f *fakeNotifier) Notify(userID int64, kind, title, message string, relatedID int64) {
	f.events = append(f.events, fmt.Sprintf("%d:%s:%s", userID, kind, title))
}

func newTestService(t *testing.T) (*OrderService, *gorm.DB, *fakeNotifier) {
	t.Helper()

	db := setupTestDB(t)
	notifier := &fakeNotifier{}
	svc := NewOrderService(
		db,
		repository.NewOrderRepository(db),
		repository.NewUserRepository(db),
		repository.NewVehicleRepository(db),
		repository.NewReviewRepository(db),
		notifier,
		testConfig(),
	)
	return svc, db, notifier
}

func createTestUser(t *testing.T, db *gorm.DB, userType, email string, approved bool) *models.User {
	t.Helper()

	u := &models.User{
		Email:        email,
		PasswordHash: "hash",
		Name:         "测试用户",
		UserType:     userType,
		Market:       models.MarketUK,
		IsActive:     true,
		IsApproved:   approved,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createTestVehicle(t *testing.T, db *gorm.DB, clientID int64) *models.Vehicle {
	t.Helper()

	year := 2019
	v := &models.Vehicle{
		ClientID: clientID,
		Plate:    "AB12CDE",
		Make:     "Ford",
		Model:    "Focus",
		Year:     &year,
	}
	require.NoError(t, db.Create(v).Error)
	return v
}

func createOpenOrder(t *testing.T, svc *OrderService, clientID int64, vehicleID *int64) *models.Order {
	t.Helper()

	order, err := svc.Create(context.Background(), clientID, &CreateOrderRequest{
		VehicleID:    vehicleID,
		Service:      "troca de oleo",
		LocationType: models.LocationTypeHome,
		Market:       models.MarketUK,
	})
	require.NoError(t, err)
	return order
}

func TestOrderService_Create(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	client := createTestUser(t, db, models.UserTypeClient, "client@test.com", true)
	vehicle := createTestVehicle(t, db, client.ID)

	t.Run("创建订单进入待接单状态", func(t *testing.T) {
		order, err := svc.Create(ctx, client.ID, &CreateOrderRequest{
			VehicleID:    &vehicle.ID,
			Service:      "troca de oleo",
			LocationType: models.LocationTypeHome,
			Market:       models.MarketUK,
		})
		require.NoError(t, err)

		assert.Equal(t, models.OrderStatusAwaitingMechanic, order.Status)
		assert.True(t, strings.HasPrefix(order.OrderNo, "QM"))
		assert.Nil(t, order.MechanicID)
		assert.Nil(t, order.FinalPrice)
	})

	t.Run("创建订单记录车辆快照", func(t *testing.T) {
		order, err := svc.Create(ctx, client.ID, &CreateOrderRequest{
			VehicleID:    &vehicle.ID,
			Service:      "freios",
			LocationType: models.LocationTypeHome,
		})
		require.NoError(t, err)

		require.NotNil(t, order.VehiclePlate)
		assert.Equal(t, "AB12CDE", *order.VehiclePlate)
		require.NotNil(t, order.VehicleMake)
		assert.Equal(t, "Ford", *order.VehicleMake)
		require.NotNil(t, order.VehicleModel)
		assert.Equal(t, "Focus", *order.VehicleModel)
		require.NotNil(t, order.VehicleYear)
		assert.Equal(t, 2019, *order.VehicleYear)
	})

	t.Run("新订单广播给在营已审核技师", func(t *testing.T) {
		svc, db, notifier := newTestService(t)
		client := createTestUser(t, db, models.UserTypeClient, "pool-client@test.com", true)
		m1 := createTestUser(t, db, models.UserTypeMechanic, "pool-m1@test.com", true)
		m2 := createTestUser(t, db, models.UserTypeMechanic, "pool-m2@test.com", true)
		unapproved := createTestUser(t, db, models.UserTypeMechanic, "pool-m3@test.com", false)

		order, err := svc.Create(ctx, client.ID, &CreateOrderRequest{
			Service:      "troca de oleo",
			LocationType: models.LocationTypeHome,
			Market:       models.MarketUK,
		})
		require.NoError(t, err)

		notified := strings.Join(notifier.events, ";")
		assert.Contains(t, notified, fmt.Sprintf("%d:%s", m1.ID, models.NotificationKindOrder))
		assert.Contains(t, notified, fmt.Sprintf("%d:%s", m2.ID, models.NotificationKindOrder))
		assert.NotContains(t, notified, fmt.Sprintf("%d:%s", unapproved.ID, models.NotificationKindOrder))
		assert.NotNil(t, order)
	})

	t.Run("他人车辆拒绝下单", func(t *testing.T) {
		other := createTestUser(t, db, models.UserTypeClient, "other@test.com", true)
		_, err := svc.Create(ctx, other.ID, &CreateOrderRequest{
			VehicleID:    &vehicle.ID,
			Service:      "freios",
			LocationType: models.LocationTypeHome,
		})
		assert.Equal(t, apperrors.ErrPermissionDenied, err)
	})

	t.Run("未知市场拒绝下单", func(t *testing.T) {
		_, err := svc.Create(ctx, client.ID, &CreateOrderRequest{
			Service:      "freios",
			LocationType: models.LocationTypeHome,
			Market:       "us",
		})
		assert.Equal(t, apperrors.ErrMarketInvalid, err)
	})
}

func TestOrderService_Accept(t *testing.T) {
	svc, db, notifier := newTestService(t)
	ctx := context.Background()
	client := createTestUser(t, db, models.UserTypeClient, "client@test.com", true)
	mechanic := createTestUser(t, db, models.UserTypeMechanic, "mech@test.com", true)

	t.Run("接单成功并指派技师", func(t *testing.T) {
		order := createOpenOrder(t, svc, client.ID, nil)
		labor := 65.00

		accepted, err := svc.Accept(ctx, mechanic.ID, order.ID, &AcceptRequest{LaborPrice: &labor})
		require.NoError(t, err)

		assert.Equal(t, models.OrderStatusAccepted, accepted.Status)
		require.NotNil(t, accepted.MechanicID)
		assert.Equal(t, mechanic.ID, *accepted.MechanicID)
		require.NotNil(t, accepted.LaborPrice)
		assert.Equal(t, 65.00, *accepted.LaborPrice)
		assert.NotEmpty(t, notifier.events)
	})

	t.Run("重复接单返回冲突", func(t *testing.T) {
		order := createOpenOrder(t, svc, client.ID, nil)
		other := createTestUser(t, db, models.UserTypeMechanic, "mech2@test.com", true)

		_, err := svc.Accept(ctx, mechanic.ID, order.ID, nil)
		require.NoError(t, err)

		_, err = svc.Accept(ctx, other.ID, order.ID, nil)
		assert.Equal(t, apperrors.ErrOrderAlreadyTaken, err)

		// 订单最终只有一个技师
		var got models.Order
		require.NoError(t, db.First(&got, order.ID).Error)
		require.NotNil(t, got.MechanicID)
		assert.Equal(t, mechanic.ID, *got.MechanicID)
	})

	t.Run("未审核技师不能接单", func(t *testing.T) {
		order := createOpenOrder(t, svc, client.ID, nil)
		pending := createTestUser(t, db, models.UserTypeMechanic, "pending@test.com", false)

		_, err := svc.Accept(ctx, pending.ID, order.ID, nil)
		assert.Equal(t, apperrors.ErrAccountNotApproved, err)
	})

	t.Run("订单不存在", func(t *testing.T) {
		_, err := svc.Accept(ctx, mechanic.ID, 99999, nil)
		assert.Equal(t, apperrors.ErrOrderNotFound, err)
	})
}

func TestOrderService_AcceptRace(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	client := createTestUser(t, db, models.UserTypeClient, "race-client@test.com", true)
	m1 := createTestUser(t, db, models.UserTypeMechanic, "race-m1@test.com", true)
	m2 := createTestUser(t, db, models.UserTypeMechanic, "race-m2@test.com", true)

	// 内存库限制单连接，避免并发写锁表
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	order := createOpenOrder(t, svc, client.ID, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, mechanicID := range []int64{m1.ID, m2.ID} {
		wg.Add(1)
		go func(i int, mechanicID int64) {
			defer wg.Done()
			_, errs[i] = svc.Accept(ctx, mechanicID, order.ID, nil)
		}(i, mechanicID)
	}
	wg.Wait()

	var success, conflict int
	for _, e := range errs {
		switch e {
		case nil:
			success++
		case apperrors.ErrOrderAlreadyTaken:
			conflict++
		}
	}
	assert.Equal(t, 1, success, "只能有一个技师抢单成功")
	assert.Equal(t, 1, conflict)

	var got models.Order
	require.NoError(t, db.First(&got, order.ID).Error)
	assert.Equal(t, models.OrderStatusAccepted, got.Status)
	require.NotNil(t, got.MechanicID)
	assert.Contains(t, []int64{m1.ID, m2.ID}, *got.MechanicID)
}

func TestOrderService_QuoteFlow(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	client := createTestUser(t, db, models.UserTypeClient, "client@test.com", true)
	mechanic := createTestUser(t, db, models.UserTypeMechanic, "mech@test.com", true)

	acceptedOrder := func(t *testing.T) *models.Order {
		order := createOpenOrder(t, svc, client.ID, nil)
		accepted, err := svc.Accept(ctx, mechanic.ID, order.ID, nil)
		require.NoError(t, err)
		return accepted
	}

	t.Run("报价累加工时上门与配件", func(t *testing.T) {
		order := acceptedOrder(t)
		partPrice := 20.00
		quoted, err := svc.SubmitQuote(ctx, mechanic.ID, order.ID, &QuoteRequest{
			LaborPrice: 70.00,
			TravelFee:  10.00,
			PartPrice:  &partPrice,
		})
		require.NoError(t, err)

		assert.Equal(t, models.OrderStatusQuoteSent, quoted.Status)
		require.NotNil(t, quoted.FinalPrice)
		assert.Equal(t, 100.00, *quoted.FinalPrice)
	})

	t.Run("客户同意报价", func(t *testing.T) {
		order := acceptedOrder(t)
		_, err := svc.SubmitQuote(ctx, mechanic.ID, order.ID, &QuoteRequest{LaborPrice: 65.00})
		require.NoError(t, err)

		approved, err := svc.Approve(ctx, client.ID, order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusApproved, approved.Status)
	})

	t.Run("拒绝报价后订单回池且可被重新接单", func(t *testing.T) {
		order := acceptedOrder(t)
		_, err := svc.SubmitQuote(ctx, mechanic.ID, order.ID, &QuoteRequest{LaborPrice: 65.00})
		require.NoError(t, err)

		rejected, err := svc.Reject(ctx, client.ID, order.ID)
		require.NoError(t, err)

		assert.Equal(t, models.OrderStatusAwaitingMechanic, rejected.Status)
		assert.Nil(t, rejected.MechanicID)
		assert.Nil(t, rejected.FinalPrice)
		assert.Nil(t, rejected.LaborPrice)

		// 新技师可以正常接单
		other := createTestUser(t, db, models.UserTypeMechanic, fmt.Sprintf("m%d@test.com", time.Now().UnixNano()), true)
		again, err := svc.Accept(ctx, other.ID, order.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, other.ID, *again.MechanicID)
	})

	t.Run("非本订单客户不能操作", func(t *testing.T) {
		order := acceptedOrder(t)
		_, err := svc.SubmitQuote(ctx, mechanic.ID, order.ID, &QuoteRequest{LaborPrice: 65.00})
		require.NoError(t, err)

		other := createTestUser(t, db, models.UserTypeClient, fmt.Sprintf("c%d@test.com", time.Now().UnixNano()), true)
		_, err = svc.Approve(ctx, other.ID, order.ID)
		assert.Equal(t, apperrors.ErrNotOrderClient, err)
	})

	t.Run("未接单状态不能报价", func(t *testing.T) {
		order := createOpenOrder(t, svc, client.ID, nil)
		_, err := svc.SubmitQuote(ctx, mechanic.ID, order.ID, &QuoteRequest{LaborPrice: 65.00})
		assert.Equal(t, apperrors.ErrNotOrderMechanic, err)
	})
}

func TestOrderService_ServiceLifecycle(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	client := createTestUser(t, db, models.UserTypeClient, "client@test.com", true)
	mechanic := createTestUser(t, db, models.UserTypeMechanic, "mech@test.com", true)

	paidOrder := func(t *testing.T) *models.Order {
		order := createOpenOrder(t, svc, client.ID, nil)
		_, err := svc.Accept(ctx, mechanic.ID, order.ID, nil)
		require.NoError(t, err)
		_, err = svc.SubmitQuote(ctx, mechanic.ID, order.ID, &QuoteRequest{LaborPrice: 65.00})
		require.NoError(t, err)
		_, err = svc.Approve(ctx, client.ID, order.ID)
		require.NoError(t, err)
		require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("status", models.OrderStatusPaid).Error)
		got, err := svc.orderRepo.GetByID(ctx, order.ID)
		require.NoError(t, err)
		return got
	}

	t.Run("支付后开始并完成服务", func(t *testing.T) {
		order := paidOrder(t)

		started, err := svc.StartService(ctx, mechanic.ID, order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusServiceInProgress, started.Status)
		assert.NotNil(t, started.StartedAt)

		duration := 90
		completed, err := svc.CompleteService(ctx, mechanic.ID, order.ID, &CompleteServiceRequest{DurationMinutes: &duration})
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusServiceFinished, completed.Status)
		require.NotNil(t, completed.DurationMinutes)
		assert.Equal(t, 90, *completed.DurationMinutes)
	})

	t.Run("未支付不能开始服务", func(t *testing.T) {
		order := createOpenOrder(t, svc, client.ID, nil)
		_, err := svc.Accept(ctx, mechanic.ID, order.ID, nil)
		require.NoError(t, err)

		_, err = svc.StartService(ctx, mechanic.ID, order.ID)
		assert.Equal(t, apperrors.ErrOrderStatusConflict, err)
	})

	t.Run("未开始不能完成服务", func(t *testing.T) {
		order := paidOrder(t)
		_, err := svc.CompleteService(ctx, mechanic.ID, order.ID, nil)
		assert.Equal(t, apperrors.ErrOrderStatusConflict, err)
	})
}

func TestOrderService_Review(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	client := createTestUser(t, db, models.UserTypeClient, "client@test.com", true)
	mechanic := createTestUser(t, db, models.UserTypeMechanic, "mech@test.com", true)

	finishedOrder := func(t *testing.T) *models.Order {
		order := createOpenOrder(t, svc, client.ID, nil)
		_, err := svc.Accept(ctx, mechanic.ID, order.ID, nil)
		require.NoError(t, err)
		require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("status", models.OrderStatusServiceFinished).Error)
		got, err := svc.orderRepo.GetByID(ctx, order.ID)
		require.NoError(t, err)
		return got
	}

	t.Run("评价后订单终态且技师评分聚合", func(t *testing.T) {
		order := finishedOrder(t)

		review, err := svc.Review(ctx, client.ID, order.ID, &ReviewRequest{Rating: 5, Comment: "otimo"})
		require.NoError(t, err)
		assert.Equal(t, 5, review.Rating)

		var got models.Order
		require.NoError(t, db.First(&got, order.ID).Error)
		assert.Equal(t, models.OrderStatusReviewed, got.Status)

		var m models.User
		require.NoError(t, db.First(&m, mechanic.ID).Error)
		assert.Equal(t, 5.0, m.Rating)
		assert.Equal(t, 1, m.ReviewCount)
	})

	t.Run("评分均值随评价数累积", func(t *testing.T) {
		order := finishedOrder(t)
		_, err := svc.Review(ctx, client.ID, order.ID, &ReviewRequest{Rating: 3})
		require.NoError(t, err)

		var m models.User
		require.NoError(t, db.First(&m, mechanic.ID).Error)
		assert.Equal(t, 4.0, m.Rating)
		assert.Equal(t, 2, m.ReviewCount)
	})

	t.Run("重复评价返回冲突", func(t *testing.T) {
		order := finishedOrder(t)
		_, err := svc.Review(ctx, client.ID, order.ID, &ReviewRequest{Rating: 4})
		require.NoError(t, err)

		_, err = svc.Review(ctx, client.ID, order.ID, &ReviewRequest{Rating: 2})
		assert.Equal(t, apperrors.ErrAlreadyReviewed, err)
	})

	t.Run("未完成订单不能评价", func(t *testing.T) {
		order := createOpenOrder(t, svc, client.ID, nil)
		_, err := svc.Review(ctx, client.ID, order.ID, &ReviewRequest{Rating: 5})
		assert.Equal(t, apperrors.ErrOrderStatusConflict, err)
	})
}

func TestOrderService_Cancel(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	client := createTestUser(t, db, models.UserTypeClient, "client@test.com", true)

	t.Run("待接单订单可取消", func(t *testing.T) {
		order := createOpenOrder(t, svc, client.ID, nil)
		cancelled, err := svc.Cancel(ctx, client.ID, order.ID, "mudei de ideia")
		require.NoError(t, err)

		assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
		require.NotNil(t, cancelled.CancelReason)
		assert.Equal(t, "mudei de ideia", *cancelled.CancelReason)
	})

	t.Run("已支付订单不可取消", func(t *testing.T) {
		order := createOpenOrder(t, svc, client.ID, nil)
		require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("status", models.OrderStatusPaid).Error)

		_, err := svc.Cancel(ctx, client.ID, order.ID, "")
		assert.Equal(t, apperrors.ErrOrderStatusConflict, err)
	})
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		allowed  bool
	}{
		{models.OrderStatusAwaitingMechanic, models.OrderStatusAccepted, true},
		{models.OrderStatusAccepted, models.OrderStatusQuoteSent, true},
		{models.OrderStatusQuoteSent, models.OrderStatusApproved, true},
		{models.OrderStatusQuoteSent, models.OrderStatusAwaitingMechanic, true},
		{models.OrderStatusApproved, models.OrderStatusPaid, true},
		{models.OrderStatusPrebooked, models.OrderStatusAwaitingPartHold, true},
		{models.OrderStatusAwaitingPartHold, models.OrderStatusPartConfirmed, true},
		{models.OrderStatusPartConfirmed, models.OrderStatusPartPickedUp, true},
		{models.OrderStatusPartPickedUp, models.OrderStatusPaid, true},
		{models.OrderStatusPaid, models.OrderStatusServiceInProgress, true},
		{models.OrderStatusServiceInProgress, models.OrderStatusServiceFinished, true},
		{models.OrderStatusServiceFinished, models.OrderStatusReviewed, true},
		{models.OrderStatusAwaitingMechanic, models.OrderStatusPaid, false},
		{models.OrderStatusPaid, models.OrderStatusCancelled, false},
		{models.OrderStatusReviewed, models.OrderStatusAccepted, false},
		{models.OrderStatusCancelled, models.OrderStatusAccepted, false},
		{models.OrderStatusServiceFinished, models.OrderStatusServiceInProgress, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.allowed, CanTransition(c.from, c.to),
			"%s -> %s", c.from, c.to)
	}
}

func TestStatusesAllowing(t *testing.T) {
	t.Run("支付前置状态", func(t *testing.T) {
		assert.ElementsMatch(t, []string{
			models.OrderStatusApproved,
			models.OrderStatusPrebooked,
			models.OrderStatusPartPickedUp,
		}, StatusesAllowing(models.OrderStatusPaid))
	})

	t.Run("预留前置状态", func(t *testing.T) {
		assert.ElementsMatch(t, []string{
			models.OrderStatusApproved,
			models.OrderStatusPrebooked,
		}, StatusesAllowing(models.OrderStatusAwaitingPartHold))
	})

	t.Run("可取消状态与转移表一致", func(t *testing.T) {
		for _, status := range cancellableStatuses {
			assert.True(t, CanTransition(status, models.OrderStatusCancelled), status)
		}
		assert.False(t, CanTransition(models.OrderStatusPaid, models.OrderStatusCancelled))
		assert.Len(t, cancellableStatuses, 8)
	})
}

func TestOrderService_Pagination(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	client := createTestUser(t, db, models.UserTypeClient, "client@test.com", true)

	for i := 0; i < 5; i++ {
		createOpenOrder(t, svc, client.ID, nil)
	}

	page := &utils.Pagination{Page: 1, PageSize: 3}
	orders, total, err := svc.ListByClient(ctx, client.ID, page, "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, orders, 3)
}
