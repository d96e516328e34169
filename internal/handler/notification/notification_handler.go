package notification

import (
	"github.com/gin-gonic/gin"

	"github.com/quickmech/quickmech-backend/internal/common/handler"
	"github.com/quickmech/quickmech-backend/internal/common/response"
	"github.com/quickmech/quickmech-backend/internal/service/notification"
)

// Handler 通知接口
type Handler struct {
	notificationService *notification.NotificationService
}

func NewHandler(notificationService *notification.NotificationService) *Handler {
	return &Handler{notificationService: notificationService}
}

// List 通知列表
// @Summary 通知列表
// @Tags 通知
// @Produce json
// @Security Bearer
// @Param unread_only query bool false "仅未读"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /notifications [get]
func (h *Handler) List(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	unreadOnly := c.Query("unread_only") == "true"
	page := handler.BindPagination(c)
	list, total, err := h.notificationService.List(c.Request.Context(), userID, unreadOnly, &page)
	handler.MustSucceedPage(c, err, list, total, page.Page, page.PageSize)
}

// CountUnread 未读通知数
// @Summary 未读通知数
// @Tags 通知
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=int64}
// @Router /notifications/unread [get]
func (h *Handler) CountUnread(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	count, err := h.notificationService.CountUnread(c.Request.Context(), userID)
	handler.MustSucceed(c, err, gin.H{"count": count})
}

// MarkRead 标记已读
// @Summary 标记已读
// @Tags 通知
// @Produce json
// @Security Bearer
// @Param id path int true "通知ID"
// @Success 200 {object} response.Response
// @Router /notifications/{id}/read [post]
func (h *Handler) MarkRead(c *gin.Context) {
	userID, notificationID, ok := handler.RequireUserAndParseID(c, "通知")
	if !ok {
		return
	}

	err := h.notificationService.MarkRead(c.Request.Context(), userID, notificationID)
	handler.MustSucceed(c, err, nil)
}

// MarkAllRead 全部已读
// @Summary 全部已读
// @Tags 通知
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response
// @Router /notifications/read-all [post]
func (h *Handler) MarkAllRead(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	err := h.notificationService.MarkAllRead(c.Request.Context(), userID)
	if handler.HandleError(c, err) {
		return
	}
	response.SuccessWithMessage(c, "全部已读", nil)
}
