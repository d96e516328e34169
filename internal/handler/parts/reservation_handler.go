package parts

import (
	"github.com/gin-gonic/gin"

	"github.com/quickmech/quickmech-backend/internal/common/handler"
	"github.com/quickmech/quickmech-backend/internal/common/response"
	"github.com/quickmech/quickmech-backend/internal/service/parts"
)

// ReservationHandler 配件预留接口
type ReservationHandler struct {
	reservationService *parts.ReservationService
}

func NewReservationHandler(reservationService *parts.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: reservationService}
}

// Prereserve 技师预留配件
// @Summary 预留配件
// @Description 技师为订单向配件店发起预留，取件码在店铺确认后签发
// @Tags 配件预留
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body parts.PrereserveRequest true "预留信息"
// @Success 200 {object} response.Response{data=models.PartReservation}
// @Router /mechanic/reservations [post]
func (h *ReservationHandler) Prereserve(c *gin.Context) {
	mechanicID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req parts.PrereserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.reservationService.Prereserve(c.Request.Context(), mechanicID, &req)
	handler.MustSucceed(c, err, result)
}

// ListByMechanic 技师预留列表
// @Summary 我的预留
// @Tags 配件预留
// @Produce json
// @Security Bearer
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /mechanic/reservations [get]
func (h *ReservationHandler) ListByMechanic(c *gin.Context) {
	mechanicID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	page := handler.BindPagination(c)
	list, total, err := h.reservationService.ListByMechanic(c.Request.Context(), mechanicID, &page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// Get 预留详情
// @Summary 预留详情
// @Tags 配件预留
// @Produce json
// @Security Bearer
// @Param id path int true "预留ID"
// @Success 200 {object} response.Response{data=models.PartReservation}
// @Router /reservations/{id} [get]
func (h *ReservationHandler) Get(c *gin.Context) {
	reservationID, ok := handler.ParseID(c, "预留")
	if !ok {
		return
	}

	result, err := h.reservationService.GetByID(c.Request.Context(), reservationID)
	handler.MustSucceed(c, err, result)
}

// ListByShop 店铺预留列表
// @Summary 店铺预留列表
// @Tags 配件预留
// @Produce json
// @Security Bearer
// @Param status query string false "预留状态"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /autoparts/reservations [get]
func (h *ReservationHandler) ListByShop(c *gin.Context) {
	autopartsID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	page := handler.BindPagination(c)
	list, total, err := h.reservationService.ListByShop(c.Request.Context(), autopartsID, c.Query("status"), &page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// Confirm 配件店确认预留
// @Summary 确认预留
// @Description 确认时扣减库存，订单进入配件已确认
// @Tags 配件预留
// @Produce json
// @Security Bearer
// @Param id path int true "预留ID"
// @Success 200 {object} response.Response{data=models.PartReservation}
// @Router /autoparts/reservations/{id}/confirm [post]
func (h *ReservationHandler) Confirm(c *gin.Context) {
	autopartsID, reservationID, ok := handler.RequireUserAndParseID(c, "预留")
	if !ok {
		return
	}

	result, err := h.reservationService.Confirm(c.Request.Context(), autopartsID, reservationID)
	handler.MustSucceed(c, err, result)
}

// Refuse 配件店拒绝预留
// @Summary 拒绝预留
// @Description 拒绝后订单回到已接单重新选件
// @Tags 配件预留
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "预留ID"
// @Param request body parts.RefuseRequest false "拒绝原因"
// @Success 200 {object} response.Response{data=models.PartReservation}
// @Router /autoparts/reservations/{id}/refuse [post]
func (h *ReservationHandler) Refuse(c *gin.Context) {
	autopartsID, reservationID, ok := handler.RequireUserAndParseID(c, "预留")
	if !ok {
		return
	}

	var req parts.RefuseRequest
	_ = c.ShouldBindJSON(&req)

	result, err := h.reservationService.Refuse(c.Request.Context(), autopartsID, reservationID, &req)
	handler.MustSucceed(c, err, result)
}

// Void 配件店作废已确认的预留
// @Summary 作废预留
// @Description 库存返还，取件码失效，订单回到已接单
// @Tags 配件预留
// @Produce json
// @Security Bearer
// @Param id path int true "预留ID"
// @Success 200 {object} response.Response{data=models.PartReservation}
// @Router /autoparts/reservations/{id}/void [post]
func (h *ReservationHandler) Void(c *gin.Context) {
	autopartsID, reservationID, ok := handler.RequireUserAndParseID(c, "预留")
	if !ok {
		return
	}

	result, err := h.reservationService.Void(c.Request.Context(), autopartsID, reservationID)
	handler.MustSucceed(c, err, result)
}

type confirmPickupRequest struct {
	PickupCode string `json:"pickup_code" binding:"required"`
}

// ConfirmPickup 配件店核销取件码
// @Summary 核销取件
// @Description 技师持取件码到店取件，店铺核销后订单进入配件已取
// @Tags 配件预留
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body confirmPickupRequest true "取件码"
// @Success 200 {object} response.Response{data=models.PartReservation}
// @Router /autoparts/reservations/pickup [post]
func (h *ReservationHandler) ConfirmPickup(c *gin.Context) {
	autopartsID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req confirmPickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.reservationService.ConfirmPickup(c.Request.Context(), autopartsID, req.PickupCode)
	handler.MustSucceed(c, err, result)
}
