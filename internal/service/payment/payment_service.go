package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/quickmech/quickmech-backend/internal/common/config"
	apperrors "github.com/quickmech/quickmech-backend/internal/common/errors"
	"github.com/quickmech/quickmech-backend/internal/common/logger"
	"github.com/quickmech/quickmech-backend/internal/common/metrics"
	"github.com/quickmech/quickmech-backend/internal/common/utils"
	"github.com/quickmech/quickmech-backend/internal/models"
	"github.com/quickmech/quickmech-backend/internal/repository"
	"github.com/quickmech/quickmech-backend/internal/service/notification"
	orderService "github.com/quickmech/quickmech-backend/internal/service/order"
	"github.com/quickmech/quickmech-backend/pkg/stripe"
)

// finalPayableStatuses 允许发起服务款支付的订单状态，从订单状态机转移表推导
var finalPayableStatuses = orderService.StatusesAllowing(models.OrderStatusPaid)

// PaymentService 支付服务
type PaymentService struct {
	db           *gorm.DB
	paymentRepo  *repository.PaymentRepository
	orderRepo    *repository.OrderRepository
	walletRepo   *repository.WalletRepository
	stripeClient *stripe.Client
	notifier     notification.Notifier
	cfg          *config.Config
}

// NewPaymentService 创建支付服务
func NewPaymentService(
	db *gorm.DB,
	paymentRepo *repository.PaymentRepository,
	orderRepo *repository.OrderRepository,
	walletRepo *repository.WalletRepository,
	stripeClient *stripe.Client,
	notifier notification.Notifier,
	cfg *config.Config,
) *PaymentService {
	return &PaymentService{
		db:           db,
		paymentRepo:  paymentRepo,
		orderRepo:    orderRepo,
		walletRepo:   walletRepo,
		stripeClient: stripeClient,
		notifier:     notifier,
		cfg:          cfg,
	}
}

// CreatePaymentRequest 创建支付请求
type CreatePaymentRequest struct {
	OrderID int64  `json:"order_id" binding:"required"`
	Kind    string `json:"kind" binding:"required,oneof=prebooking service"`
	Method  string `json:"method" binding:"required,oneof=card pix boleto wallet"`
}

// CreatePayment 创建支付记录并立即完成（模拟渠道）
// 卡支付走 Stripe Checkout，见 CreateStripeCheckout
func (s *PaymentService) CreatePayment(ctx context.Context, clientID int64, req *CreatePaymentRequest) (*models.Payment, error) {
	payment, _, err := s.preparePayment(ctx, clientID, req.OrderID, req.Kind, req.Method)
	if err != nil {
		return nil, err
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if err := s.complete(ctx, payment); err != nil {
		return nil, err
	}
	return s.paymentRepo.GetByID(ctx, payment.ID)
}

// StripeCheckoutResponse Stripe 结账响应
type StripeCheckoutResponse struct {
	PaymentNo  string `json:"payment_no"`
	SessionID  string `json:"session_id"`
	SessionURL string `json:"session_url"`
}

// CreateStripeCheckout 创建 Stripe 结账会话
func (s *PaymentService) CreateStripeCheckout(ctx context.Context, clientID int64, req *CreatePaymentRequest) (*StripeCheckoutResponse, error) {
	payment, order, err := s.preparePayment(ctx, clientID, req.OrderID, req.Kind, models.PaymentMethodCard)
	if err != nil {
		return nil, err
	}

	session, err := s.stripeClient.CreateCheckout(ctx, &stripe.CheckoutRequest{
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Description: fmt.Sprintf("QuickMech %s", order.OrderNo),
		Metadata: map[string]string{
			"payment_no": payment.PaymentNo,
			"order_no":   order.OrderNo,
		},
	})
	if err != nil {
		return nil, apperrors.ErrPaymentGateway.WithError(err)
	}

	payment.ExternalRef = &session.SessionID
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	metrics.GetMetrics().RecordPayment(models.PaymentMethodCard, models.PaymentStatusPending)
	return &StripeCheckoutResponse{
		PaymentNo:  payment.PaymentNo,
		SessionID:  session.SessionID,
		SessionURL: session.URL,
	}, nil
}

// StripeStatusResponse Stripe 状态查询响应
type StripeStatusResponse struct {
	SessionID     string `json:"session_id"`
	PaymentStatus string `json:"payment_status"`
	OrderStatus   string `json:"order_status"`
}

// PollStripeStatus 轮询 Stripe 会话状态，已支付时驱动订单状态机
func (s *PaymentService) PollStripeStatus(ctx context.Context, sessionID string) (*StripeStatusResponse, error) {
	payment, err := s.paymentRepo.GetByExternalRef(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	session, err := s.stripeClient.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.ErrPaymentGateway.WithError(err)
	}

	if session.PaymentStatus == "paid" && payment.Status == models.PaymentStatusPending {
		if err := s.complete(ctx, payment); err != nil {
			return nil, err
		}
	}

	order, err := s.orderRepo.GetByID(ctx, payment.OrderID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return &StripeStatusResponse{
		SessionID:     sessionID,
		PaymentStatus: session.PaymentStatus,
		OrderStatus:   order.Status,
	}, nil
}

// HandleStripeWebhook 处理 Stripe 回调
func (s *PaymentService) HandleStripeWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.stripeClient.VerifyWebhook(payload, sigHeader)
	if err != nil {
		return apperrors.ErrWebhookSignature.WithError(err)
	}
	if event.Type != "checkout.session.completed" || event.PaymentStatus != "paid" {
		return nil
	}

	payment, err := s.paymentRepo.GetByExternalRef(ctx, event.SessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrPaymentNotFound
		}
		return apperrors.ErrDatabaseError.WithError(err)
	}
	if payment.Status != models.PaymentStatusPending {
		// 重复回调直接忽略
		return nil
	}
	return s.complete(ctx, payment)
}

// preparePayment 校验支付前置条件并构造待支付记录
func (s *PaymentService) preparePayment(ctx context.Context, clientID, orderID int64, kind, method string) (*models.Payment, *models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.ErrOrderNotFound
		}
		return nil, nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if order.ClientID != clientID {
		return nil, nil, apperrors.ErrNotOrderClient
	}

	market := s.cfg.Market(order.Market)
	payment := &models.Payment{
		PaymentNo:  utils.GenerateOrderNo("P"),
		OrderID:    order.ID,
		ClientID:   clientID,
		MechanicID: order.MechanicID,
		Kind:       kind,
		Method:     method,
		Status:     models.PaymentStatusPending,
		Market:     order.Market,
		Currency:   market.Currency,
	}

	switch kind {
	case models.PaymentKindPrebooking:
		if order.PrebookingPaid {
			return nil, nil, apperrors.ErrPrebookingDone
		}
		if order.Status != models.OrderStatusApproved {
			return nil, nil, apperrors.ErrOrderStatusConflict
		}
		payment.Amount = utils.RoundMoney(market.PrebookingAmount)
	case models.PaymentKindService:
		if order.FinalPrice == nil {
			return nil, nil, apperrors.ErrQuoteNotFound
		}
		if !utils.Contains(finalPayableStatuses, order.Status) {
			return nil, nil, apperrors.ErrOrderStatusConflict
		}
		result := Split(market, *order.FinalPrice, order.TravelFee, utils.SafeFloat64(order.PartPrice), order.PrebookingPaid)
		payment.Amount = result.ChargeAmount
	default:
		return nil, nil, apperrors.ErrInvalidParams
	}

	return payment, order, nil
}

// complete 完成支付：CAS 置已支付、推进订单状态机、落分账并入账钱包
// 整个过程在一个事务内，任一 CAS 失败即整体回滚
func (s *PaymentService) complete(ctx context.Context, payment *models.Payment) error {
	order, err := s.orderRepo.GetByID(ctx, payment.OrderID)
	if err != nil {
		return apperrors.ErrDatabaseError.WithError(err)
	}
	market := s.cfg.Market(order.Market)
	now := time.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch payment.Kind {
		case models.PaymentKindPrebooking:
			return s.completePrebookingTx(tx, payment, order, market, now)
		case models.PaymentKindService:
			return s.completeServiceTx(tx, payment, order, market, now)
		}
		return apperrors.ErrInvalidParams
	})
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok {
			return appErr
		}
		return apperrors.ErrDatabaseError.WithError(err)
	}

	metrics.GetMetrics().RecordPayment(payment.Method, models.PaymentStatusPaid)
	s.notifier.Notify(order.ClientID, models.NotificationKindPayment,
		"支付成功", fmt.Sprintf("订单 %s 支付 %s 成功", order.OrderNo, utils.FormatMoney(payment.Amount)), order.ID)

	logger.Info("支付已完成",
		logger.OrderNo(order.OrderNo),
		logger.String("payment_no", payment.PaymentNo),
		logger.String("kind", payment.Kind),
		logger.Float64("amount", payment.Amount))

	return nil
}

// completePrebookingTx 预约金支付：全额平台收入，订单进入已预约
func (s *PaymentService) completePrebookingTx(tx *gorm.DB, payment *models.Payment, order *models.Order, market config.MarketConfig, now time.Time) error {
	result := PrebookingSplit(market)

	affected, err := s.paymentRepo.UpdateStatusCASTx(tx, payment.ID, models.PaymentStatusPending,
		map[string]interface{}{
			"status":       models.PaymentStatusPaid,
			"platform_fee": result.PlatformFee,
			"paid_at":      now,
		})
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrPaymentFailed
	}

	affected, err = s.orderRepo.UpdateStatusCASTx(tx, order.ID,
		[]string{models.OrderStatusApproved},
		map[string]interface{}{
			"status":          models.OrderStatusPrebooked,
			"prebooking_paid": true,
		})
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrOrderStatusConflict
	}
	return nil
}

// completeServiceTx 服务款支付：分账、钱包入账、订单进入已支付
func (s *PaymentService) completeServiceTx(tx *gorm.DB, payment *models.Payment, order *models.Order, market config.MarketConfig, now time.Time) error {
	if order.FinalPrice == nil {
		return apperrors.ErrQuoteNotFound
	}
	partPrice := utils.SafeFloat64(order.PartPrice)
	result := Split(market, *order.FinalPrice, order.TravelFee, partPrice, order.PrebookingPaid)

	affected, err := s.paymentRepo.UpdateStatusCASTx(tx, payment.ID, models.PaymentStatusPending,
		map[string]interface{}{
			"status":             models.PaymentStatusPaid,
			"platform_fee":       result.PlatformFee,
			"mechanic_earnings":  result.MechanicEarnings,
			"autoparts_earnings": result.AutopartsEarnings,
			"paid_at":            now,
		})
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrPaymentFailed
	}

	affected, err = s.orderRepo.UpdateStatusCASTx(tx, order.ID, finalPayableStatuses,
		map[string]interface{}{
			"status":  models.OrderStatusPaid,
			"paid_at": now,
		})
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrOrderStatusConflict
	}

	// 配件参与时落分账明细，三方金额之和等于实收
	if order.PartID != nil && order.AutopartsID != nil {
		split := &models.PaymentSplit{
			PaymentID:         payment.ID,
			OrderID:           order.ID,
			AutopartsID:       order.AutopartsID,
			LaborAmount:       result.LaborAmount,
			TravelFee:         order.TravelFee,
			PartPrice:         partPrice,
			PlatformFee:       result.PlatformFee,
			MechanicEarnings:  result.MechanicEarnings,
			AutopartsEarnings: result.AutopartsEarnings,
		}
		if err := s.paymentRepo.CreateSplitTx(tx, split); err != nil {
			return err
		}
	}

	settleDays := s.cfg.Business.Wallet.SettleDelayDays
	if settleDays <= 0 {
		settleDays = 7
	}
	maturesAt := now.Add(time.Duration(settleDays) * 24 * time.Hour)

	if order.MechanicID != nil && result.MechanicEarnings > 0 {
		if err := s.creditTx(tx, *order.MechanicID, models.UserTypeMechanic, result.MechanicEarnings, order, payment, maturesAt); err != nil {
			return err
		}
	}
	if order.AutopartsID != nil && result.AutopartsEarnings > 0 {
		if err := s.creditTx(tx, *order.AutopartsID, models.UserTypeAutoparts, result.AutopartsEarnings, order, payment, maturesAt); err != nil {
			return err
		}
	}
	return nil
}

// creditTx 钱包待结算入账
func (s *PaymentService) creditTx(tx *gorm.DB, partyID int64, partyType string, amount float64, order *models.Order, payment *models.Payment, maturesAt time.Time) error {
	if _, err := s.walletRepo.GetOrCreateTx(tx, partyID, partyType); err != nil {
		return err
	}
	remark := fmt.Sprintf("订单 %s 收益", order.OrderNo)
	entry := &models.WalletEntry{
		PartyID:   partyID,
		OrderID:   &order.ID,
		PaymentID: &payment.ID,
		Kind:      models.WalletEntryKindEarning,
		Amount:    amount,
		Remark:    &remark,
		MaturesAt: &maturesAt,
	}
	return s.walletRepo.CreditPendingTx(tx, partyID, amount, entry)
}

// ListByClient 客户支付记录
func (s *PaymentService) ListByClient(ctx context.Context, clientID int64, page *utils.Pagination) ([]*models.Payment, int64, error) {
	return s.paymentRepo.ListByClient(ctx, clientID, page.GetOffset(), page.GetLimit())
}

// GetByPaymentNo 查询支付记录（校验归属）
func (s *PaymentService) GetByPaymentNo(ctx context.Context, clientID int64, paymentNo string) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByPaymentNo(ctx, paymentNo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if payment.ClientID != clientID {
		return nil, apperrors.ErrPermissionDenied
	}
	return payment, nil
}
