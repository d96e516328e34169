package payment

import (
	"github.com/gin-gonic/gin"

	"github.com/quickmech/quickmech-backend/internal/common/handler"
	"github.com/quickmech/quickmech-backend/internal/common/logger"
	"github.com/quickmech/quickmech-backend/internal/common/response"
	"github.com/quickmech/quickmech-backend/internal/service/payment"
)

// Handler 支付接口
type Handler struct {
	paymentService *payment.PaymentService
}

func NewHandler(paymentService *payment.PaymentService) *Handler {
	return &Handler{paymentService: paymentService}
}

// Create 创建支付
// @Summary 创建支付
// @Description 模拟渠道支付，创建后立即完成并触发分账
// @Tags 支付
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body payment.CreatePaymentRequest true "支付信息"
// @Success 200 {object} response.Response{data=models.Payment}
// @Router /payments [post]
func (h *Handler) Create(c *gin.Context) {
	clientID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req payment.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.paymentService.CreatePayment(c.Request.Context(), clientID, &req)
	handler.MustSucceed(c, err, result)
}

type createCheckoutRequest struct {
	OrderID int64  `json:"order_id" binding:"required"`
	Kind    string `json:"kind" binding:"required,oneof=prebooking service"`
}

// CreateStripeCheckout 创建 Stripe 结账会话
// @Summary 创建 Stripe 结账
// @Tags 支付
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body createCheckoutRequest true "结账信息"
// @Success 200 {object} response.Response{data=payment.StripeCheckoutResponse}
// @Router /payments/stripe/checkout [post]
func (h *Handler) CreateStripeCheckout(c *gin.Context) {
	clientID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.paymentService.CreateStripeCheckout(c.Request.Context(), clientID, &payment.CreatePaymentRequest{
		OrderID: req.OrderID,
		Kind:    req.Kind,
		Method:  "card",
	})
	handler.MustSucceed(c, err, result)
}

// StripeStatus 轮询 Stripe 支付状态
// @Summary Stripe 支付状态
// @Description 前端轮询结账会话状态，已支付时完成分账
// @Tags 支付
// @Produce json
// @Security Bearer
// @Param session_id path string true "结账会话ID"
// @Success 200 {object} response.Response{data=payment.StripeStatusResponse}
// @Router /payments/stripe/status/{session_id} [get]
func (h *Handler) StripeStatus(c *gin.Context) {
	if _, ok := handler.RequireUserID(c); !ok {
		return
	}

	sessionID := c.Param("session_id")
	if sessionID == "" {
		response.BadRequest(c, "缺少会话ID")
		return
	}

	result, err := h.paymentService.PollStripeStatus(c.Request.Context(), sessionID)
	handler.MustSucceed(c, err, result)
}

// StripeWebhook Stripe 回调
// @Summary Stripe 回调
// @Description 校验签名后处理结账完成事件，重复投递幂等
// @Tags 支付
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "签名头"
// @Success 200 {object} response.Response
// @Router /payments/stripe/webhook [post]
func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "读取请求体失败")
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if err := h.paymentService.HandleStripeWebhook(c.Request.Context(), payload, sigHeader); err != nil {
		logger.Warn("Stripe 回调处理失败", logger.Err(err))
		if handler.HandleError(c, err) {
			return
		}
	}
	response.Success(c, nil)
}

// CreatePixCharge 创建 Pix 收款
// @Summary 创建 Pix 收款
// @Description 仅巴西市场订单可用，返回复制码与二维码
// @Tags 支付
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body payment.CreatePaymentRequest true "支付信息"
// @Success 200 {object} response.Response{data=payment.PixChargeResponse}
// @Router /payments/pix [post]
func (h *Handler) CreatePixCharge(c *gin.Context) {
	clientID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req payment.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.paymentService.CreatePixCharge(c.Request.Context(), clientID, &req)
	handler.MustSucceed(c, err, result)
}

// PixStatus 轮询 Pix 支付状态
// @Summary Pix 支付状态
// @Tags 支付
// @Produce json
// @Security Bearer
// @Param payment_no path string true "支付单号"
// @Success 200 {object} response.Response{data=payment.PixStatusResponse}
// @Router /payments/pix/status/{payment_no} [get]
func (h *Handler) PixStatus(c *gin.Context) {
	clientID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	paymentNo := c.Param("payment_no")
	if paymentNo == "" {
		response.BadRequest(c, "缺少支付单号")
		return
	}

	result, err := h.paymentService.PollPixStatus(c.Request.Context(), clientID, paymentNo)
	handler.MustSucceed(c, err, result)
}

// List 我的支付记录
// @Summary 我的支付记录
// @Tags 支付
// @Produce json
// @Security Bearer
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /payments [get]
func (h *Handler) List(c *gin.Context) {
	clientID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	page := handler.BindPagination(c)
	list, total, err := h.paymentService.ListByClient(c.Request.Context(), clientID, &page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// Get 支付详情
// @Summary 支付详情
// @Tags 支付
// @Produce json
// @Security Bearer
// @Param payment_no path string true "支付单号"
// @Success 200 {object} response.Response{data=models.Payment}
// @Router /payments/{payment_no} [get]
func (h *Handler) Get(c *gin.Context) {
	clientID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	paymentNo := c.Param("payment_no")
	if paymentNo == "" {
		response.BadRequest(c, "缺少支付单号")
		return
	}

	result, err := h.paymentService.GetByPaymentNo(c.Request.Context(), clientID, paymentNo)
	handler.MustSucceed(c, err, result)
}
