// Package payment 支付服务单元测试
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/quickmech/quickmech-backend/internal/common/config"
	apperrors "github.com/quickmech/quickmech-backend/internal/common/errors"
	"github.com/quickmech/quickmech-backend/internal/models"
	"github.com/quickmech/quickmech-backend/internal/repository"
	"github.com/quickmech/quickmech-backend/pkg/stripe"
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
		&models.Payment{},
		&models.PaymentSplit{},
		&models.Wallet{},
		&models.WalletEntry{},
	))

	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			Markets: map[string]config.MarketConfig{
				"uk": {Currency: "GBP", BaseFee: 5.00, LaborFeeRate: 0.10, FeeBasis: FeeBasisLabor, PrebookingAmount: 12.00},
				"br": {Currency: "BRL", BaseFee: 20.00, LaborFeeRate: 0.10, FeeBasis: FeeBasisAmount, PrebookingAmount: 50.00},
			},
			Wallet: config.WalletConfig{SettleDelayDays: 7},
		},
	}
}

type fakeNotifier struct {
	events []string
}

func (f *fakeNotifier) Notify(userID int64, kind, title, message string, relatedID int64) {
	f.events = append(f.events, fmt.Sprintf("%d:%s", userID, kind))
}

func newTestService(t *testing.T) (*PaymentService, *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)
	svc := NewPaymentService(
		db,
		repository.NewPaymentRepository(db),
		repository.NewOrderRepository(db),
		repository.NewWalletRepository(db),
		stripe.NewClient(&stripe.Config{MockMode: true, WebhookSecret: "whsec_test"}),
		&fakeNotifier{},
		testConfig(),
	)
	return svc, db
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

type orderOpts struct {
	market         string
	status         string
	finalPrice     float64
	travelFee      float64
	partPrice      float64
	partID         *int64
	autopartsID    *int64
	prebookingPaid bool
}

func createOrder(t *testing.T, db *gorm.DB, clientID, mechanicID int64, opts orderOpts) *models.Order {
	t.Helper()

	if opts.market == "" {
		opts.market = models.MarketUK
	}
	order := &models.Order{
		OrderNo:        fmt.Sprintf("QM%d", time.Now().UnixNano()),
		ClientID:       clientID,
		MechanicID:     &mechanicID,
		Service:        "freios",
		Status:         opts.status,
		Market:         opts.market,
		TravelFee:      opts.travelFee,
		PrebookingPaid: opts.prebookingPaid,
	}
	if opts.finalPrice > 0 {
		order.FinalPrice = &opts.finalPrice
	}
	if opts.partPrice > 0 {
		order.PartPrice = &opts.partPrice
	}
	order.PartID = opts.partID
	order.AutopartsID = opts.autopartsID
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestPaymentService_FinalPayment(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	client := createUser(t, db, models.UserTypeClient)
	mechanic := createUser(t, db, models.UserTypeMechanic)
	shop := createUser(t, db, models.UserTypeAutoparts)

	t.Run("含配件的服务款完成三方分账", func(t *testing.T) {
		part := &models.Part{AutopartsID: shop.ID, Name: "pastilha", Category: "pastilha", Price: 20.00, Stock: 5, IsActive: true}
		require.NoError(t, db.Create(part).Error)

		order := createOrder(t, db, client.ID, mechanic.ID, orderOpts{
			status:      models.OrderStatusPartPickedUp,
			finalPrice:  100.00,
			travelFee:   10.00,
			partPrice:   20.00,
			partID:      &part.ID,
			autopartsID: &shop.ID,
		})

		payment, err := svc.CreatePayment(ctx, client.ID, &CreatePaymentRequest{
			OrderID: order.ID,
			Kind:    models.PaymentKindService,
			Method:  models.PaymentMethodWallet,
		})
		require.NoError(t, err)

		assert.Equal(t, models.PaymentStatusPaid, payment.Status)
		assert.Equal(t, 100.00, payment.Amount)
		assert.Equal(t, 12.00, payment.PlatformFee)
		assert.Equal(t, 68.00, payment.MechanicEarnings)
		assert.Equal(t, 20.00, payment.AutopartsEarnings)

		var gotOrder models.Order
		require.NoError(t, db.First(&gotOrder, order.ID).Error)
		assert.Equal(t, models.OrderStatusPaid, gotOrder.Status)
		assert.NotNil(t, gotOrder.PaidAt)

		// 分账明细三方之和等于实收
		var split models.PaymentSplit
		require.NoError(t, db.Where("payment_id = ?", payment.ID).First(&split).Error)
		assert.Equal(t, 70.00, split.LaborAmount)
		assert.Equal(t, payment.Amount, split.PlatformFee+split.MechanicEarnings+split.AutopartsEarnings)

		// 技师与配件店钱包入账待结算
		var mechanicWallet models.Wallet
		require.NoError(t, db.Where("party_id = ?", mechanic.ID).First(&mechanicWallet).Error)
		assert.Equal(t, 68.00, mechanicWallet.PendingBalance)
		assert.Equal(t, 68.00, mechanicWallet.TotalEarned)

		var shopWallet models.Wallet
		require.NoError(t, db.Where("party_id = ?", shop.ID).First(&shopWallet).Error)
		assert.Equal(t, 20.00, shopWallet.PendingBalance)
	})

	t.Run("已付预约金的服务款按净额分账", func(t *testing.T) {
		order := createOrder(t, db, client.ID, mechanic.ID, orderOpts{
			status:         models.OrderStatusPrebooked,
			finalPrice:     100.00,
			prebookingPaid: true,
		})

		payment, err := svc.CreatePayment(ctx, client.ID, &CreatePaymentRequest{
			OrderID: order.ID,
			Kind:    models.PaymentKindService,
			Method:  models.PaymentMethodWallet,
		})
		require.NoError(t, err)

		assert.Equal(t, 88.00, payment.Amount)
		assert.Equal(t, payment.Amount, payment.PlatformFee+payment.MechanicEarnings+payment.AutopartsEarnings)
	})

	t.Run("无报价不能支付服务款", func(t *testing.T) {
		order := createOrder(t, db, client.ID, mechanic.ID, orderOpts{
			status: models.OrderStatusAccepted,
		})

		_, err := svc.CreatePayment(ctx, client.ID, &CreatePaymentRequest{
			OrderID: order.ID,
			Kind:    models.PaymentKindService,
			Method:  models.PaymentMethodWallet,
		})
		assert.Equal(t, apperrors.ErrQuoteNotFound, err)
	})

	t.Run("配件未取走前不能支付服务款", func(t *testing.T) {
		order := createOrder(t, db, client.ID, mechanic.ID, orderOpts{
			status:     models.OrderStatusPartConfirmed,
			finalPrice: 100.00,
		})

		_, err := svc.CreatePayment(ctx, client.ID, &CreatePaymentRequest{
			OrderID: order.ID,
			Kind:    models.PaymentKindService,
			Method:  models.PaymentMethodWallet,
		})
		assert.Equal(t, apperrors.ErrOrderStatusConflict, err)
	})

	t.Run("非本订单客户不能支付", func(t *testing.T) {
		order := createOrder(t, db, client.ID, mechanic.ID, orderOpts{
			status:     models.OrderStatusApproved,
			finalPrice: 65.00,
		})
		other := createUser(t, db, models.UserTypeClient)

		_, err := svc.CreatePayment(ctx, other.ID, &CreatePaymentRequest{
			OrderID: order.ID,
			Kind:    models.PaymentKindService,
			Method:  models.PaymentMethodWallet,
		})
		assert.Equal(t, apperrors.ErrNotOrderClient, err)
	})
}

func TestPaymentService_Prebooking(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	client := createUser(t, db, models.UserTypeClient)
	mechanic := createUser(t, db, models.UserTypeMechanic)

	t.Run("预约金全额归平台并推进订单", func(t *testing.T) {
		order := createOrder(t, db, client.ID, mechanic.ID, orderOpts{
			status:     models.OrderStatusApproved,
			finalPrice: 65.00,
		})

		payment, err := svc.CreatePayment(ctx, client.ID, &CreatePaymentRequest{
			OrderID: order.ID,
			Kind:    models.PaymentKindPrebooking,
			Method:  models.PaymentMethodWallet,
		})
		require.NoError(t, err)

		assert.Equal(t, 12.00, payment.Amount)
		assert.Equal(t, 12.00, payment.PlatformFee)
		assert.Equal(t, 0.00, payment.MechanicEarnings)

		var gotOrder models.Order
		require.NoError(t, db.First(&gotOrder, order.ID).Error)
		assert.Equal(t, models.OrderStatusPrebooked, gotOrder.Status)
		assert.True(t, gotOrder.PrebookingPaid)
	})

	t.Run("重复支付预约金被拒绝", func(t *testing.T) {
		order := createOrder(t, db, client.ID, mechanic.ID, orderOpts{
			status:     models.OrderStatusApproved,
			finalPrice: 65.00,
		})

		_, err := svc.CreatePayment(ctx, client.ID, &CreatePaymentRequest{
			OrderID: order.ID,
			Kind:    models.PaymentKindPrebooking,
			Method:  models.PaymentMethodWallet,
		})
		require.NoError(t, err)

		_, err = svc.CreatePayment(ctx, client.ID, &CreatePaymentRequest{
			OrderID: order.ID,
			Kind:    models.PaymentKindPrebooking,
			Method:  models.PaymentMethodWallet,
		})
		assert.Equal(t, apperrors.ErrPrebookingDone, err)
	})

	t.Run("巴西市场预约金为 R$50", func(t *testing.T) {
		order := createOrder(t, db, client.ID, mechanic.ID, orderOpts{
			market:     models.MarketBR,
			status:     models.OrderStatusApproved,
			finalPrice: 300.00,
		})

		payment, err := svc.CreatePayment(ctx, client.ID, &CreatePaymentRequest{
			OrderID: order.ID,
			Kind:    models.PaymentKindPrebooking,
			Method:  models.PaymentMethodWallet,
		})
		require.NoError(t, err)
		assert.Equal(t, 50.00, payment.Amount)
		assert.Equal(t, "BRL", payment.Currency)
	})
}

func TestPaymentService_Stripe(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	client := createUser(t, db, models.UserTypeClient)
	mechanic := createUser(t, db, models.UserTypeMechanic)

	t.Run("结账会话创建后轮询完成支付", func(t *testing.T) {
		order := createOrder(t, db, client.ID, mechanic.ID, orderOpts{
			status:     models.OrderStatusApproved,
			finalPrice: 65.00,
		})

		checkout, err := svc.CreateStripeCheckout(ctx, client.ID, &CreatePaymentRequest{
			OrderID: order.ID,
			Kind:    models.PaymentKindService,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, checkout.SessionURL)

		// 模拟模式下轮询即视为已支付
		status, err := svc.PollStripeStatus(ctx, checkout.SessionID)
		require.NoError(t, err)
		assert.Equal(t, "paid", status.PaymentStatus)
		assert.Equal(t, models.OrderStatusPaid, status.OrderStatus)
	})

	t.Run("webhook 驱动支付完成且重复回调幂等", func(t *testing.T) {
		order := createOrder(t, db, client.ID, mechanic.ID, orderOpts{
			status:     models.OrderStatusApproved,
			finalPrice: 65.00,
		})

		checkout, err := svc.CreateStripeCheckout(ctx, client.ID, &CreatePaymentRequest{
			OrderID: order.ID,
			Kind:    models.PaymentKindService,
		})
		require.NoError(t, err)

		payload, err := json.Marshal(map[string]interface{}{
			"type": "checkout.session.completed",
			"data": map[string]interface{}{
				"object": map[string]interface{}{
					"id":             checkout.SessionID,
					"payment_status": "paid",
				},
			},
		})
		require.NoError(t, err)
		sig := stripe.NewClient(&stripe.Config{WebhookSecret: "whsec_test"}).SignPayload(payload, time.Now())

		require.NoError(t, svc.HandleStripeWebhook(ctx, payload, sig))
		// 重复回调不报错不重复入账
		require.NoError(t, svc.HandleStripeWebhook(ctx, payload, sig))

		var gotOrder models.Order
		require.NoError(t, db.First(&gotOrder, order.ID).Error)
		assert.Equal(t, models.OrderStatusPaid, gotOrder.Status)

		var entries []models.WalletEntry
		require.NoError(t, db.Where("party_id = ?", mechanic.ID).
			Where("order_id = ?", order.ID).Find(&entries).Error)
		assert.Len(t, entries, 1)
	})

	t.Run("签名错误的回调被拒绝", func(t *testing.T) {
		err := svc.HandleStripeWebhook(ctx, []byte(`{}`), "t=1,v1=deadbeef")
		assert.Equal(t, apperrors.ErrWebhookSignature.Code, err.(*apperrors.AppError).Code)
	})
}

func TestPaymentService_Pix(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	client := createUser(t, db, models.UserTypeClient)
	mechanic := createUser(t, db, models.UserTypeMechanic)

	t.Run("巴西订单生成 PIX 码与二维码", func(t *testing.T) {
		order := createOrder(t, db, client.ID, mechanic.ID, orderOpts{
			market:     models.MarketBR,
			status:     models.OrderStatusApproved,
			finalPrice: 300.00,
		})

		charge, err := svc.CreatePixCharge(ctx, client.ID, &CreatePaymentRequest{
			OrderID: order.ID,
			Kind:    models.PaymentKindService,
		})
		require.NoError(t, err)

		assert.NotEmpty(t, charge.PixCode)
		assert.Contains(t, charge.QRCode, "data:image/png;base64,")
		assert.Equal(t, 300.00, charge.Amount)

		status, err := svc.PollPixStatus(ctx, client.ID, charge.PaymentNo)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusPaid, status.PaymentStatus)
		assert.Equal(t, models.OrderStatusPaid, status.OrderStatus)
	})

	t.Run("英国订单不能走 PIX", func(t *testing.T) {
		order := createOrder(t, db, client.ID, mechanic.ID, orderOpts{
			status:     models.OrderStatusApproved,
			finalPrice: 65.00,
		})

		_, err := svc.CreatePixCharge(ctx, client.ID, &CreatePaymentRequest{
			OrderID: order.ID,
			Kind:    models.PaymentKindService,
		})
		assert.Equal(t, apperrors.ErrCurrencyMismatch, err)
	})
}
