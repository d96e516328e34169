package wallet

import (
	"github.com/gin-gonic/gin"

	"github.com/quickmech/quickmech-backend/internal/common/handler"
	"github.com/quickmech/quickmech-backend/internal/common/response"
	"github.com/quickmech/quickmech-backend/internal/middleware"
	"github.com/quickmech/quickmech-backend/internal/service/wallet"
)

// Handler 钱包接口
type Handler struct {
	walletService *wallet.WalletService
}

func NewHandler(walletService *wallet.WalletService) *Handler {
	return &Handler{walletService: walletService}
}

// Balance 钱包余额
// @Summary 钱包余额
// @Description 可提现余额与待结算余额
// @Tags 钱包
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=models.Wallet}
// @Router /wallet [get]
func (h *Handler) Balance(c *gin.Context) {
	partyID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	result, err := h.walletService.Balance(c.Request.Context(), partyID, middleware.GetUserType(c))
	handler.MustSucceed(c, err, result)
}

// ListEntries 钱包流水
// @Summary 钱包流水
// @Tags 钱包
// @Produce json
// @Security Bearer
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /wallet/entries [get]
func (h *Handler) ListEntries(c *gin.Context) {
	partyID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	page := handler.BindPagination(c)
	list, total, err := h.walletService.ListEntries(c.Request.Context(), partyID, &page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// RequestPayout 申请提现
// @Summary 申请提现
// @Description 冻结可提现余额，等待平台审核
// @Tags 钱包
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body wallet.PayoutRequestInput true "提现信息"
// @Success 200 {object} response.Response{data=models.PayoutRequest}
// @Router /wallet/payouts [post]
func (h *Handler) RequestPayout(c *gin.Context) {
	partyID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req wallet.PayoutRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.walletService.RequestPayout(c.Request.Context(), partyID, middleware.GetUserType(c), &req)
	handler.MustSucceed(c, err, result)
}

// ListPayouts 我的提现记录
// @Summary 我的提现记录
// @Tags 钱包
// @Produce json
// @Security Bearer
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /wallet/payouts [get]
func (h *Handler) ListPayouts(c *gin.Context) {
	partyID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	page := handler.BindPagination(c)
	list, total, err := h.walletService.ListPayouts(c.Request.Context(), partyID, &page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}
