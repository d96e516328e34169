// Package vehicle 提供车辆管理的 HTTP Handler
package vehicle

import (
	"github.com/gin-gonic/gin"

	"github.com/quickmech/quickmech-backend/internal/common/handler"
	"github.com/quickmech/quickmech-backend/internal/common/response"
	vehicleService "github.com/quickmech/quickmech-backend/internal/service/vehicle"
)

// Handler 车辆处理器
type Handler struct {
	vehicleService *vehicleService.VehicleService
}

// NewHandler 创建车辆处理器
func NewHandler(vehicleSvc *vehicleService.VehicleService) *Handler {
	return &Handler{vehicleService: vehicleSvc}
}

// Create 手工添加车辆
// @Summary 添加车辆
// @Tags 车辆
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body vehicleService.CreateVehicleRequest true "请求参数"
// @Success 200 {object} response.Response
// @Router /vehicles [post]
func (h *Handler) Create(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req vehicleService.CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	vehicle, err := h.vehicleService.Create(c.Request.Context(), userID, &req)
	handler.MustSucceed(c, err, vehicle)
}

// Lookup 车牌查询
// @Summary 车牌查询
// @Tags 车辆
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body vehicleService.LookupPlateRequest true "请求参数"
// @Success 200 {object} response.Response
// @Router /vehicles/lookup [post]
func (h *Handler) Lookup(c *gin.Context) {
	if _, ok := handler.RequireUserID(c); !ok {
		return
	}

	var req vehicleService.LookupPlateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.vehicleService.LookupPlate(c.Request.Context(), &req)
	handler.MustSucceed(c, err, result)
}

// CreateFromLookup 车牌查询并保存
// @Summary 车牌查询并保存为车辆
// @Tags 车辆
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body vehicleService.LookupPlateRequest true "请求参数"
// @Success 200 {object} response.Response
// @Router /vehicles/from-plate [post]
func (h *Handler) CreateFromLookup(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req vehicleService.LookupPlateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	vehicle, err := h.vehicleService.CreateFromLookup(c.Request.Context(), userID, &req)
	handler.MustSucceed(c, err, vehicle)
}

// List 本人车辆列表
// @Summary 车辆列表
// @Tags 车辆
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /vehicles [get]
func (h *Handler) List(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	vehicles, err := h.vehicleService.List(c.Request.Context(), userID)
	handler.MustSucceed(c, err, vehicles)
}

// Get 车辆详情
// @Summary 车辆详情
// @Tags 车辆
// @Produce json
// @Security Bearer
// @Param id path int true "车辆ID"
// @Success 200 {object} response.Response
// @Router /vehicles/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, vehicleID, ok := handler.RequireUserAndParseID(c, "车辆")
	if !ok {
		return
	}

	vehicle, err := h.vehicleService.GetByID(c.Request.Context(), userID, vehicleID)
	handler.MustSucceed(c, err, vehicle)
}

// Update 更新车辆
// @Summary 更新车辆
// @Tags 车辆
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "车辆ID"
// @Param request body vehicleService.UpdateVehicleRequest true "请求参数"
// @Success 200 {object} response.Response
// @Router /vehicles/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	userID, vehicleID, ok := handler.RequireUserAndParseID(c, "车辆")
	if !ok {
		return
	}

	var req vehicleService.UpdateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	vehicle, err := h.vehicleService.Update(c.Request.Context(), userID, vehicleID, &req)
	handler.MustSucceed(c, err, vehicle)
}

// Delete 删除车辆
// @Summary 删除车辆
// @Tags 车辆
// @Produce json
// @Security Bearer
// @Param id path int true "车辆ID"
// @Success 200 {object} response.Response
// @Router /vehicles/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, vehicleID, ok := handler.RequireUserAndParseID(c, "车辆")
	if !ok {
		return
	}

	if handler.HandleError(c, h.vehicleService.Delete(c.Request.Context(), userID, vehicleID)) {
		return
	}
	response.SuccessWithMessage(c, "车辆已删除", nil)
}
