package parts

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quickmech/quickmech-backend/internal/common/handler"
	"github.com/quickmech/quickmech-backend/internal/common/response"
	"github.com/quickmech/quickmech-backend/internal/service/parts"
)

// Handler 配件目录接口
type Handler struct {
	partsService *parts.PartsService
}

func NewHandler(partsService *parts.PartsService) *Handler {
	return &Handler{partsService: partsService}
}

// Create 上架配件
// @Summary 上架配件
// @Tags 配件目录
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body parts.CreatePartRequest true "配件信息"
// @Success 200 {object} response.Response{data=models.Part}
// @Router /autoparts/parts [post]
func (h *Handler) Create(c *gin.Context) {
	autopartsID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req parts.CreatePartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.partsService.Create(c.Request.Context(), autopartsID, &req)
	handler.MustSucceed(c, err, result)
}

// Update 更新配件
// @Summary 更新配件
// @Tags 配件目录
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "配件ID"
// @Param request body parts.UpdatePartRequest true "更新字段"
// @Success 200 {object} response.Response{data=models.Part}
// @Router /autoparts/parts/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	autopartsID, partID, ok := handler.RequireUserAndParseID(c, "配件")
	if !ok {
		return
	}

	var req parts.UpdatePartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.partsService.Update(c.Request.Context(), autopartsID, partID, &req)
	handler.MustSucceed(c, err, result)
}

// Delete 下架配件
// @Summary 下架配件
// @Tags 配件目录
// @Produce json
// @Security Bearer
// @Param id path int true "配件ID"
// @Success 200 {object} response.Response
// @Router /autoparts/parts/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	autopartsID, partID, ok := handler.RequireUserAndParseID(c, "配件")
	if !ok {
		return
	}

	err := h.partsService.Delete(c.Request.Context(), autopartsID, partID)
	handler.MustSucceed(c, err, nil)
}

// ListMine 店铺配件列表
// @Summary 店铺配件列表
// @Tags 配件目录
// @Produce json
// @Security Bearer
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /autoparts/parts [get]
func (h *Handler) ListMine(c *gin.Context) {
	autopartsID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	page := handler.BindPagination(c)
	list, total, err := h.partsService.ListByShop(c.Request.Context(), autopartsID, &page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// Get 配件详情
// @Summary 配件详情
// @Tags 配件目录
// @Produce json
// @Security Bearer
// @Param id path int true "配件ID"
// @Success 200 {object} response.Response{data=models.Part}
// @Router /parts/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	partID, ok := handler.ParseID(c, "配件")
	if !ok {
		return
	}

	result, err := h.partsService.GetByID(c.Request.Context(), partID)
	handler.MustSucceed(c, err, result)
}

// Search 搜索配件
// @Summary 搜索配件
// @Description 按类别、车型、关键字搜索在售配件
// @Tags 配件目录
// @Produce json
// @Security Bearer
// @Param category query string false "类别"
// @Param make query string false "品牌"
// @Param model query string false "车型"
// @Param keyword query string false "关键字"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /parts/search [get]
func (h *Handler) Search(c *gin.Context) {
	var req parts.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	page := handler.BindPagination(c)
	list, total, err := h.partsService.Search(c.Request.Context(), &req, &page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// Suggestions 配件建议
// @Summary 配件建议
// @Description 按订单服务类型推荐适配配件
// @Tags 配件目录
// @Produce json
// @Security Bearer
// @Param service query string true "服务类型"
// @Param limit query int false "返回数量"
// @Success 200 {object} response.Response{data=[]models.Part}
// @Router /parts/suggestions [get]
func (h *Handler) Suggestions(c *gin.Context) {
	service := c.Query("service")
	if service == "" {
		response.BadRequest(c, "缺少服务类型")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	list, err := h.partsService.Suggestions(c.Request.Context(), service, limit)
	handler.MustSucceed(c, err, list)
}
