package order

import (
	"github.com/gin-gonic/gin"

	"github.com/quickmech/quickmech-backend/internal/common/handler"
	"github.com/quickmech/quickmech-backend/internal/common/response"
	"github.com/quickmech/quickmech-backend/internal/middleware"
	"github.com/quickmech/quickmech-backend/internal/service/order"
)

// Handler 订单接口
type Handler struct {
	orderService *order.OrderService
}

func NewHandler(orderService *order.OrderService) *Handler {
	return &Handler{orderService: orderService}
}

// Create 创建订单
// @Summary 创建订单
// @Description 客户发布维修需求，进入技师待接单池
// @Tags 订单
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body order.CreateOrderRequest true "订单信息"
// @Success 200 {object} response.Response{data=models.Order}
// @Router /orders [post]
func (h *Handler) Create(c *gin.Context) {
	clientID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req order.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.orderService.Create(c.Request.Context(), clientID, &req)
	handler.MustSucceed(c, err, result)
}

// List 客户订单列表
// @Summary 我的订单
// @Tags 订单
// @Produce json
// @Security Bearer
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param status query string false "订单状态"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /orders [get]
func (h *Handler) List(c *gin.Context) {
	clientID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	page := handler.BindPagination(c)
	list, total, err := h.orderService.ListByClient(c.Request.Context(), clientID, &page, c.Query("status"))
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// Get 订单详情
// @Summary 订单详情
// @Tags 订单
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=models.Order}
// @Router /orders/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, orderID, ok := handler.RequireUserAndParseID(c, "订单")
	if !ok {
		return
	}

	result, err := h.orderService.GetByID(c.Request.Context(), userID, middleware.GetUserType(c), orderID)
	handler.MustSucceed(c, err, result)
}

// Approve 客户批准报价
// @Summary 批准报价
// @Tags 订单
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=models.Order}
// @Router /orders/{id}/approve [post]
func (h *Handler) Approve(c *gin.Context) {
	clientID, orderID, ok := handler.RequireUserAndParseID(c, "订单")
	if !ok {
		return
	}

	result, err := h.orderService.Approve(c.Request.Context(), clientID, orderID)
	handler.MustSucceed(c, err, result)
}

// Reject 客户拒绝报价
// @Summary 拒绝报价
// @Description 拒绝后订单回到技师待接单池
// @Tags 订单
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=models.Order}
// @Router /orders/{id}/reject [post]
func (h *Handler) Reject(c *gin.Context) {
	clientID, orderID, ok := handler.RequireUserAndParseID(c, "订单")
	if !ok {
		return
	}

	result, err := h.orderService.Reject(c.Request.Context(), clientID, orderID)
	handler.MustSucceed(c, err, result)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel 客户取消订单
// @Summary 取消订单
// @Tags 订单
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Param request body cancelRequest false "取消原因"
// @Success 200 {object} response.Response{data=models.Order}
// @Router /orders/{id}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	clientID, orderID, ok := handler.RequireUserAndParseID(c, "订单")
	if !ok {
		return
	}

	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	result, err := h.orderService.Cancel(c.Request.Context(), clientID, orderID, req.Reason)
	handler.MustSucceed(c, err, result)
}

// Review 客户评价订单
// @Summary 评价订单
// @Tags 订单
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Param request body order.ReviewRequest true "评价内容"
// @Success 200 {object} response.Response{data=models.Review}
// @Router /orders/{id}/review [post]
func (h *Handler) Review(c *gin.Context) {
	clientID, orderID, ok := handler.RequireUserAndParseID(c, "订单")
	if !ok {
		return
	}

	var req order.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.orderService.Review(c.Request.Context(), clientID, orderID, &req)
	handler.MustSucceed(c, err, result)
}

// ListOpen 待接单池
// @Summary 待接单池
// @Description 技师按市场查看待接单订单
// @Tags 技师订单
// @Produce json
// @Security Bearer
// @Param market query string false "市场 uk/br"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /mechanic/orders/open [get]
func (h *Handler) ListOpen(c *gin.Context) {
	if _, ok := handler.RequireUserID(c); !ok {
		return
	}

	page := handler.BindPagination(c)
	list, total, err := h.orderService.ListOpen(c.Request.Context(), c.Query("market"), &page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// ListMine 技师订单列表
// @Summary 技师订单列表
// @Tags 技师订单
// @Produce json
// @Security Bearer
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param status query string false "订单状态"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /mechanic/orders [get]
func (h *Handler) ListMine(c *gin.Context) {
	mechanicID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	page := handler.BindPagination(c)
	list, total, err := h.orderService.ListByMechanic(c.Request.Context(), mechanicID, &page, c.Query("status"))
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// Accept 技师接单
// @Summary 技师接单
// @Description 并发抢单时只有一人成功
// @Tags 技师订单
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Param request body order.AcceptRequest false "接单信息"
// @Success 200 {object} response.Response{data=models.Order}
// @Router /mechanic/orders/{id}/accept [post]
func (h *Handler) Accept(c *gin.Context) {
	mechanicID, orderID, ok := handler.RequireUserAndParseID(c, "订单")
	if !ok {
		return
	}

	var req order.AcceptRequest
	_ = c.ShouldBindJSON(&req)

	result, err := h.orderService.Accept(c.Request.Context(), mechanicID, orderID, &req)
	handler.MustSucceed(c, err, result)
}

// SubmitQuote 技师提交报价
// @Summary 提交报价
// @Tags 技师订单
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Param request body order.QuoteRequest true "报价明细"
// @Success 200 {object} response.Response{data=models.Order}
// @Router /mechanic/orders/{id}/quote [post]
func (h *Handler) SubmitQuote(c *gin.Context) {
	mechanicID, orderID, ok := handler.RequireUserAndParseID(c, "订单")
	if !ok {
		return
	}

	var req order.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.orderService.SubmitQuote(c.Request.Context(), mechanicID, orderID, &req)
	handler.MustSucceed(c, err, result)
}

// StartService 技师开始服务
// @Summary 开始服务
// @Tags 技师订单
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Success 200 {object} response.Response{data=models.Order}
// @Router /mechanic/orders/{id}/start [post]
func (h *Handler) StartService(c *gin.Context) {
	mechanicID, orderID, ok := handler.RequireUserAndParseID(c, "订单")
	if !ok {
		return
	}

	result, err := h.orderService.StartService(c.Request.Context(), mechanicID, orderID)
	handler.MustSucceed(c, err, result)
}

// CompleteService 技师完成服务
// @Summary 完成服务
// @Tags 技师订单
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Param request body order.CompleteServiceRequest false "服务时长"
// @Success 200 {object} response.Response{data=models.Order}
// @Router /mechanic/orders/{id}/complete [post]
func (h *Handler) CompleteService(c *gin.Context) {
	mechanicID, orderID, ok := handler.RequireUserAndParseID(c, "订单")
	if !ok {
		return
	}

	var req order.CompleteServiceRequest
	_ = c.ShouldBindJSON(&req)

	result, err := h.orderService.CompleteService(c.Request.Context(), mechanicID, orderID, &req)
	handler.MustSucceed(c, err, result)
}
