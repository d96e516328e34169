package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/quickmech/quickmech-backend/internal/common/handler"
	"github.com/quickmech/quickmech-backend/internal/common/response"
	"github.com/quickmech/quickmech-backend/internal/service/admin"
	"github.com/quickmech/quickmech-backend/internal/service/wallet"
)

// Handler 管理后台接口
type Handler struct {
	adminService  *admin.AdminService
	walletService *wallet.WalletService
}

func NewHandler(adminService *admin.AdminService, walletService *wallet.WalletService) *Handler {
	return &Handler{adminService: adminService, walletService: walletService}
}

// Stats 平台统计
// @Summary 平台统计
// @Description 用户、订单与近 30 天支付概览
// @Tags 管理后台
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=admin.Stats}
// @Router /admin/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	result, err := h.adminService.GetStats(c.Request.Context())
	handler.MustSucceed(c, err, result)
}

// ListUsers 用户列表
// @Summary 用户列表
// @Tags 管理后台
// @Produce json
// @Security Bearer
// @Param user_type query string false "用户类型"
// @Param market query string false "市场"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /admin/users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	page := handler.BindPagination(c)
	list, total, err := h.adminService.ListUsers(c.Request.Context(), c.Query("user_type"), c.Query("market"), &page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// ListPendingApproval 待审核用户
// @Summary 待审核用户
// @Description 技师与配件店注册后需审核
// @Tags 管理后台
// @Produce json
// @Security Bearer
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /admin/users/pending [get]
func (h *Handler) ListPendingApproval(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	page := handler.BindPagination(c)
	list, total, err := h.adminService.ListPendingApproval(c.Request.Context(), &page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// ApproveUser 审核通过
// @Summary 审核通过
// @Tags 管理后台
// @Produce json
// @Security Bearer
// @Param id path int true "用户ID"
// @Success 200 {object} response.Response
// @Router /admin/users/{id}/approve [post]
func (h *Handler) ApproveUser(c *gin.Context) {
	adminID, userID, ok := handler.RequireAdminAndParseID(c, "用户")
	if !ok {
		return
	}

	err := h.adminService.ApproveUser(c.Request.Context(), adminID, userID)
	if handler.HandleError(c, err) {
		return
	}
	response.SuccessWithMessage(c, "审核通过", nil)
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetUserActive 启用/禁用用户
// @Summary 启用/禁用用户
// @Tags 管理后台
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "用户ID"
// @Param request body setActiveRequest true "启用状态"
// @Success 200 {object} response.Response
// @Router /admin/users/{id}/active [put]
func (h *Handler) SetUserActive(c *gin.Context) {
	adminID, userID, ok := handler.RequireAdminAndParseID(c, "用户")
	if !ok {
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	err := h.adminService.SetUserActive(c.Request.Context(), adminID, userID, *req.Active)
	handler.MustSucceed(c, err, nil)
}

// ListOrders 订单列表
// @Summary 订单列表
// @Tags 管理后台
// @Produce json
// @Security Bearer
// @Param status query string false "订单状态"
// @Param market query string false "市场"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /admin/orders [get]
func (h *Handler) ListOrders(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	page := handler.BindPagination(c)
	list, total, err := h.adminService.ListOrders(c.Request.Context(), c.Query("status"), c.Query("market"), &page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// ListPayments 支付列表
// @Summary 支付列表
// @Tags 管理后台
// @Produce json
// @Security Bearer
// @Param status query string false "支付状态"
// @Param market query string false "市场"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /admin/payments [get]
func (h *Handler) ListPayments(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	page := handler.BindPagination(c)
	list, total, err := h.adminService.ListPayments(c.Request.Context(), c.Query("status"), c.Query("market"), &page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// ListPayouts 提现列表
// @Summary 提现列表
// @Tags 管理后台
// @Produce json
// @Security Bearer
// @Param status query string false "提现状态"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /admin/payouts [get]
func (h *Handler) ListPayouts(c *gin.Context) {
	if _, ok := handler.RequireAdminID(c); !ok {
		return
	}

	page := handler.BindPagination(c)
	list, total, err := h.walletService.ListAllPayouts(c.Request.Context(), c.Query("status"), &page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// ApprovePayout 审核通过提现
// @Summary 审核通过提现
// @Tags 管理后台
// @Produce json
// @Security Bearer
// @Param id path int true "提现ID"
// @Success 200 {object} response.Response{data=models.PayoutRequest}
// @Router /admin/payouts/{id}/approve [post]
func (h *Handler) ApprovePayout(c *gin.Context) {
	adminID, payoutID, ok := handler.RequireAdminAndParseID(c, "提现")
	if !ok {
		return
	}

	result, err := h.walletService.ApprovePayout(c.Request.Context(), adminID, payoutID)
	handler.MustSucceed(c, err, result)
}

type rejectPayoutRequest struct {
	Note string `json:"note" binding:"max=255"`
}

// RejectPayout 驳回提现
// @Summary 驳回提现
// @Description 驳回后冻结金额退回钱包
// @Tags 管理后台
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "提现ID"
// @Param request body rejectPayoutRequest false "驳回原因"
// @Success 200 {object} response.Response{data=models.PayoutRequest}
// @Router /admin/payouts/{id}/reject [post]
func (h *Handler) RejectPayout(c *gin.Context) {
	adminID, payoutID, ok := handler.RequireAdminAndParseID(c, "提现")
	if !ok {
		return
	}

	var req rejectPayoutRequest
	_ = c.ShouldBindJSON(&req)

	result, err := h.walletService.RejectPayout(c.Request.Context(), adminID, payoutID, req.Note)
	handler.MustSucceed(c, err, result)
}

// MarkPayoutPaid 标记提现已打款
// @Summary 标记提现已打款
// @Tags 管理后台
// @Produce json
// @Security Bearer
// @Param id path int true "提现ID"
// @Success 200 {object} response.Response{data=models.PayoutRequest}
// @Router /admin/payouts/{id}/paid [post]
func (h *Handler) MarkPayoutPaid(c *gin.Context) {
	adminID, payoutID, ok := handler.RequireAdminAndParseID(c, "提现")
	if !ok {
		return
	}

	result, err := h.walletService.MarkPayoutPaid(c.Request.Context(), adminID, payoutID)
	handler.MustSucceed(c, err, result)
}
