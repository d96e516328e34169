// Package integration 覆盖跨服务的完整业务流程
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/quickmech/quickmech-backend/internal/common/config"
	"github.com/quickmech/quickmech-backend/internal/common/jwt"
	"github.com/quickmech/quickmech-backend/internal/models"
	"github.com/quickmech/quickmech-backend/internal/repository"
	adminService "github.com/quickmech/quickmech-backend/internal/service/admin"
	authService "github.com/quickmech/quickmech-backend/internal/service/auth"
	orderService "github.com/quickmech/quickmech-backend/internal/service/order"
	partsService "github.com/quickmech/quickmech-backend/internal/service/parts"
	paymentService "github.com/quickmech/quickmech-backend/internal/service/payment"
	walletService "github.com/quickmech/quickmech-backend/internal/service/wallet"
	"github.com/quickmech/quickmech-backend/pkg/stripe"
	"github.com/quickmech/quickmech-backend/tests/helpers"
)

// testEnv 装配全部真实服务，仅通知走记录桩
type testEnv struct {
	db          *gorm.DB
	notifier    *helpers.RecordingNotifier
	auth        *authService.AuthService
	order       *orderService.OrderService
	parts       *partsService.PartsService
	reservation *partsService.ReservationService
	payment     *paymentService.PaymentService
	wallet      *walletService.WalletService
	admin       *adminService.AdminService
}

func newTestEnv(t *testing.T) *testEnv {
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
		&models.Part{},
		&models.PartReservation{},
		&models.Payment{},
		&models.PaymentSplit{},
		&models.Wallet{},
		&models.WalletEntry{},
		&models.PayoutRequest{},
		&models.Notification{},
		&models.ChatMessage{},
	))

	cfg := &config.Config{
		Business: config.BusinessConfig{
			Markets: map[string]config.MarketConfig{
				"uk": {Currency: "GBP", BaseFee: 5.00, LaborFeeRate: 0.10, FeeBasis: "labor", PrebookingAmount: 12.00},
				"br": {Currency: "BRL", BaseFee: 20.00, LaborFeeRate: 0.10, FeeBasis: "amount", PrebookingAmount: 50.00},
			},
			Reservation: config.ReservationConfig{ExpireHours: 24, CodeRetryAttempts: 5},
			Wallet:      config.WalletConfig{SettleDelayDays: 7},
			Payout:      config.PayoutConfig{MinAmount: 20.00},
		},
	}

	userRepo := repository.NewUserRepository(db)
	vehicleRepo := repository.NewVehicleRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	partRepo := repository.NewPartRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)

	notifier := &helpers.RecordingNotifier{}
	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:            "integration-secret",
		AccessExpireTime:  time.Hour,
		RefreshExpireTime: 24 * time.Hour,
		Issuer:            "quickmech-test",
	})
	stripeClient := stripe.NewClient(&stripe.Config{MockMode: true, WebhookSecret: "whsec_test"})

	return &testEnv{
		db:          db,
		notifier:    notifier,
		auth:        authService.NewAuthService(userRepo, jwtManager),
		order:       orderService.NewOrderService(db, orderRepo, userRepo, vehicleRepo, reviewRepo, notifier, cfg),
		parts:       partsService.NewPartsService(partRepo),
		reservation: partsService.NewReservationService(db, reservationRepo, partRepo, orderRepo, notifier, cfg),
		payment:     paymentService.NewPaymentService(db, paymentRepo, orderRepo, walletRepo, stripeClient, notifier, cfg),
		wallet:      walletService.NewWalletService(db, walletRepo, payoutRepo, notifier, cfg),
		admin:       adminService.NewAdminService(userRepo, orderRepo, paymentRepo, notifier),
	}
}

// TestOrderLifecycle_WithParts 完整走通带配件预留的英国市场订单
func TestOrderLifecycle_WithParts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 注册三方：客户直接可用，技师需管理员审核
	client, err := env.auth.Register(ctx, &authService.RegisterRequest{
		Email: "client@example.com", Password: "password123", Name: "Alice",
		UserType: models.UserTypeClient, Market: "uk",
	})
	require.NoError(t, err)

	mechanic, err := env.auth.Register(ctx, &authService.RegisterRequest{
		Email: "mech@example.com", Password: "password123", Name: "Bob",
		UserType: models.UserTypeMechanic, Market: "uk",
	})
	require.NoError(t, err)
	assert.False(t, mechanic.IsApproved)

	shop := helpers.NewTestAutoparts("uk")
	require.NoError(t, env.db.Create(shop).Error)

	adminUser := &models.User{
		Email: "admin@quickmech.app", PasswordHash: helpers.HashPassword("admin123"),
		Name: "Admin", UserType: models.UserTypeAdmin, Market: "uk", IsActive: true, IsApproved: true,
	}
	require.NoError(t, env.db.Create(adminUser).Error)
	require.NoError(t, env.admin.ApproveUser(ctx, adminUser.ID, mechanic.ID))

	// 车辆与下单
	vehicle := helpers.NewTestVehicle(client.ID)
	require.NoError(t, env.db.Create(vehicle).Error)

	order, err := env.order.Create(ctx, client.ID, &orderService.CreateOrderRequest{
		VehicleID:    &vehicle.ID,
		Service:      "troca de pastilha de freio",
		LocationType: models.LocationTypeHome,
		Market:       "uk",
		NeedsParts:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAwaitingMechanic, order.Status)
	require.NotNil(t, order.VehiclePlate)
	assert.Equal(t, vehicle.Plate, *order.VehiclePlate)

	// 接单与报价
	order, err = env.order.Accept(ctx, mechanic.ID, order.ID, &orderService.AcceptRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAccepted, order.Status)

	order, err = env.order.SubmitQuote(ctx, mechanic.ID, order.ID, &orderService.QuoteRequest{
		LaborPrice: 80.00,
		TravelFee:  10.00,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusQuoteSent, order.Status)
	require.NotNil(t, order.FinalPrice)
	assert.InDelta(t, 90.00, *order.FinalPrice, 0.001)

	order, err = env.order.Approve(ctx, client.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusApproved, order.Status)

	// 预约金
	prebooking, err := env.payment.CreatePayment(ctx, client.ID, &paymentService.CreatePaymentRequest{
		OrderID: order.ID, Kind: models.PaymentKindPrebooking, Method: models.PaymentMethodCard,
	})
	require.NoError(t, err)
	assert.InDelta(t, 12.00, prebooking.Amount, 0.001)

	require.NoError(t, env.db.First(order, order.ID).Error)
	assert.Equal(t, models.OrderStatusPrebooked, order.Status)
	assert.True(t, order.PrebookingPaid)

	// 配件预留：店铺上架 → 技师预留 → 店铺确认 → 凭码取件
	part, err := env.parts.Create(ctx, shop.ID, &partsService.CreatePartRequest{
		Name: "Pastilha de freio", Category: "freios", Price: 20.00, Stock: 3,
	})
	require.NoError(t, err)

	reservation, err := env.reservation.Prereserve(ctx, mechanic.ID, &partsService.PrereserveRequest{
		OrderID: order.ID, PartID: part.ID, Quantity: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusPending, reservation.Status)
	// 取件码要等配件店确认才签发
	assert.Nil(t, reservation.PickupCode)

	require.NoError(t, env.db.First(order, order.ID).Error)
	assert.Equal(t, models.OrderStatusAwaitingPartHold, order.Status)

	reservation, err = env.reservation.Confirm(ctx, shop.ID, reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusReady, reservation.Status)
	require.NotNil(t, reservation.PickupCode)

	var stocked models.Part
	require.NoError(t, env.db.First(&stocked, part.ID).Error)
	assert.Equal(t, 2, stocked.Stock)

	reservation, err = env.reservation.ConfirmPickup(ctx, shop.ID, *reservation.PickupCode)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusPickedUp, reservation.Status)

	require.NoError(t, env.db.First(order, order.ID).Error)
	assert.Equal(t, models.OrderStatusPartPickedUp, order.Status)
	require.NotNil(t, order.PartPrice)
	assert.InDelta(t, 20.00, *order.PartPrice, 0.001)

	// 服务款：总额 90 + 配件 20 走净额分账
	// final 90 已含工时 80 + 上门 10；配件价单独落在 part_price
	final, err := env.payment.CreatePayment(ctx, client.ID, &paymentService.CreatePaymentRequest{
		OrderID: order.ID, Kind: models.PaymentKindService, Method: models.PaymentMethodCard,
	})
	require.NoError(t, err)
	// 实收 = 90 - 12(预约金)，工时 = 78 - 20 - 10 = 48，佣金 = 5 + 4.80
	assert.InDelta(t, 78.00, final.Amount, 0.001)
	assert.InDelta(t, 9.80, final.PlatformFee, 0.001)

	require.NoError(t, env.db.First(order, order.ID).Error)
	assert.Equal(t, models.OrderStatusPaid, order.Status)

	// 三方入账：技师与配件店待结算
	var mechanicWallet, shopWallet models.Wallet
	require.NoError(t, env.db.Where("party_id = ?", mechanic.ID).First(&mechanicWallet).Error)
	require.NoError(t, env.db.Where("party_id = ?", shop.ID).First(&shopWallet).Error)
	assert.InDelta(t, 48.20, mechanicWallet.PendingBalance, 0.001)
	assert.InDelta(t, 20.00, shopWallet.PendingBalance, 0.001)

	// 服务执行与评价
	order, err = env.order.StartService(ctx, mechanic.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusServiceInProgress, order.Status)

	minutes := 45
	order, err = env.order.CompleteService(ctx, mechanic.ID, order.ID, &orderService.CompleteServiceRequest{DurationMinutes: &minutes})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusServiceFinished, order.Status)

	review, err := env.order.Review(ctx, client.ID, order.ID, &orderService.ReviewRequest{Rating: 5, Comment: "Excelente"})
	require.NoError(t, err)
	assert.Equal(t, 5, review.Rating)

	require.NoError(t, env.db.First(order, order.ID).Error)
	assert.Equal(t, models.OrderStatusReviewed, order.Status)

	var ratedMechanic models.User
	require.NoError(t, env.db.First(&ratedMechanic, mechanic.ID).Error)
	assert.InDelta(t, 5.0, ratedMechanic.Rating, 0.001)

	// 冻结期回拨后结算，再走一轮提现审批
	require.NoError(t, env.db.Model(&models.WalletEntry{}).
		Where("party_id = ? AND kind = ?", mechanic.ID, models.WalletEntryKindEarning).
		Update("matures_at", time.Now().Add(-time.Hour)).Error)

	settled, err := env.wallet.SettleMatured(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	require.NoError(t, env.db.Where("party_id = ?", mechanic.ID).First(&mechanicWallet).Error)
	assert.InDelta(t, 0, mechanicWallet.PendingBalance, 0.001)
	assert.InDelta(t, 48.20, mechanicWallet.AvailableBalance, 0.001)

	payout, err := env.wallet.RequestPayout(ctx, mechanic.ID, models.UserTypeMechanic, &walletService.PayoutRequestInput{Amount: 40.00})
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusPending, payout.Status)

	payout, err = env.wallet.ApprovePayout(ctx, adminUser.ID, payout.ID)
	require.NoError(t, err)
	payout, err = env.wallet.MarkPayoutPaid(ctx, adminUser.ID, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusPaid, payout.Status)

	require.NoError(t, env.db.Where("party_id = ?", mechanic.ID).First(&mechanicWallet).Error)
	assert.InDelta(t, 8.20, mechanicWallet.AvailableBalance, 0.001)
	assert.InDelta(t, 40.00, mechanicWallet.TotalPaidOut, 0.001)

	// 整个流程的关键节点都应产生通知
	assert.Greater(t, env.notifier.KindCount(models.NotificationKindOrder), 0)
	assert.Greater(t, env.notifier.KindCount(models.NotificationKindReservation), 0)
	assert.Greater(t, env.notifier.KindCount(models.NotificationKindPayment), 0)
}

// TestOrderLifecycle_NoParts_Brasil 巴西市场无配件订单按总额抽成
func TestOrderLifecycle_NoParts_Brasil(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client := helpers.NewTestClient("br")
	mechanic := helpers.NewTestMechanic("br")
	require.NoError(t, env.db.Create(client).Error)
	require.NoError(t, env.db.Create(mechanic).Error)

	order, err := env.order.Create(ctx, client.ID, &orderService.CreateOrderRequest{
		Service:      "troca de oleo",
		LocationType: models.LocationTypeWorkshop,
		Market:       "br",
	})
	require.NoError(t, err)

	_, err = env.order.Accept(ctx, mechanic.ID, order.ID, nil)
	require.NoError(t, err)
	_, err = env.order.SubmitQuote(ctx, mechanic.ID, order.ID, &orderService.QuoteRequest{LaborPrice: 180.00, TravelFee: 20.00})
	require.NoError(t, err)
	_, err = env.order.Approve(ctx, client.ID, order.ID)
	require.NoError(t, err)

	// 跳过预约金，直接支付服务款：总额 200 按 amount 抽成 20 + 10%
	payment, err := env.payment.CreatePayment(ctx, client.ID, &paymentService.CreatePaymentRequest{
		OrderID: order.ID, Kind: models.PaymentKindService, Method: models.PaymentMethodPix,
	})
	require.NoError(t, err)
	assert.InDelta(t, 200.00, payment.Amount, 0.001)
	assert.Equal(t, "BRL", payment.Currency)
	assert.InDelta(t, 40.00, payment.PlatformFee, 0.001)

	var wallet models.Wallet
	require.NoError(t, env.db.Where("party_id = ?", mechanic.ID).First(&wallet).Error)
	assert.InDelta(t, 160.00, wallet.PendingBalance, 0.001)

	require.NoError(t, env.db.First(order, order.ID).Error)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
}

// TestOrderLifecycle_QuoteRejected 拒绝报价后订单回池可被再次接单
func TestOrderLifecycle_QuoteRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client := helpers.NewTestClient("uk")
	first := helpers.NewTestMechanic("uk")
	second := helpers.NewTestMechanic("uk")
	require.NoError(t, env.db.Create(client).Error)
	require.NoError(t, env.db.Create(first).Error)
	require.NoError(t, env.db.Create(second).Error)

	order, err := env.order.Create(ctx, client.ID, &orderService.CreateOrderRequest{
		Service: "bateria", LocationType: models.LocationTypeHome, Market: "uk",
	})
	require.NoError(t, err)

	_, err = env.order.Accept(ctx, first.ID, order.ID, nil)
	require.NoError(t, err)
	_, err = env.order.SubmitQuote(ctx, first.ID, order.ID, &orderService.QuoteRequest{LaborPrice: 300.00})
	require.NoError(t, err)

	order, err = env.order.Reject(ctx, client.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAwaitingMechanic, order.Status)
	assert.Nil(t, order.MechanicID)
	assert.Nil(t, order.FinalPrice)

	// 第二位技师接走同一订单
	order, err = env.order.Accept(ctx, second.ID, order.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, order.MechanicID)
	assert.Equal(t, second.ID, *order.MechanicID)
}
