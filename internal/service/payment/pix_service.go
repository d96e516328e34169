package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/quickmech/quickmech-backend/internal/common/errors"
	"github.com/quickmech/quickmech-backend/internal/common/qrcode"
	"github.com/quickmech/quickmech-backend/internal/common/utils"
	"github.com/quickmech/quickmech-backend/internal/models"
)

// PixChargeResponse PIX 付款响应
type PixChargeResponse struct {
	PaymentNo string  `json:"payment_no"`
	PixCode   string  `json:"pix_code"`
	QRCode    string  `json:"qr_code"` // Data URL 格式二维码
	Amount    float64 `json:"amount"`
	ExpiresAt string  `json:"expires_at"`
}

// CreatePixCharge 创建 PIX 收款（巴西市场模拟网关）
// 生成 copia-e-cola 码与二维码，轮询状态时模拟确认到账
func (s *PaymentService) CreatePixCharge(ctx context.Context, clientID int64, req *CreatePaymentRequest) (*PixChargeResponse, error) {
	payment, order, err := s.preparePayment(ctx, clientID, req.OrderID, req.Kind, models.PaymentMethodPix)
	if err != nil {
		return nil, err
	}
	if order.Market != models.MarketBR {
		return nil, apperrors.ErrCurrencyMismatch
	}

	pixCode := buildPixCode(payment.PaymentNo, payment.Amount)
	payment.PixCode = &pixCode
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}

	qr, err := qrcode.NewGenerator().GenerateDataURL(pixCode)
	if err != nil {
		return nil, apperrors.ErrInternalError.WithError(err)
	}

	return &PixChargeResponse{
		PaymentNo: payment.PaymentNo,
		PixCode:   pixCode,
		QRCode:    qr,
		Amount:    payment.Amount,
		ExpiresAt: time.Now().Add(30 * time.Minute).Format(time.RFC3339),
	}, nil
}

// PixStatusResponse PIX 状态响应
type PixStatusResponse struct {
	PaymentNo     string `json:"payment_no"`
	PaymentStatus string `json:"payment_status"`
	OrderStatus   string `json:"order_status"`
}

// PollPixStatus 轮询 PIX 状态
// 模拟网关在首次轮询时确认到账并驱动订单状态机
func (s *PaymentService) PollPixStatus(ctx context.Context, clientID int64, paymentNo string) (*PixStatusResponse, error) {
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
	if payment.Method != models.PaymentMethodPix {
		return nil, apperrors.ErrInvalidParams
	}

	if payment.Status == models.PaymentStatusPending {
		if err := s.complete(ctx, payment); err != nil {
			return nil, err
		}
		payment.Status = models.PaymentStatusPaid
	}

	order, err := s.orderRepo.GetByID(ctx, payment.OrderID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return &PixStatusResponse{
		PaymentNo:     paymentNo,
		PaymentStatus: payment.Status,
		OrderStatus:   order.Status,
	}, nil
}

// buildPixCode 生成模拟的 PIX copia-e-cola 码
func buildPixCode(paymentNo string, amount float64) string {
	payload := fmt.Sprintf("00020126QUICKMECH%s5204000053039865406%s5802BR", paymentNo, utils.FormatMoney(amount))
	return strings.ToUpper(payload)
}
