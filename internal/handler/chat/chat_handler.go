package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/quickmech/quickmech-backend/internal/common/config"
	apperrors "github.com/quickmech/quickmech-backend/internal/common/errors"
	"github.com/quickmech/quickmech-backend/internal/common/handler"
	"github.com/quickmech/quickmech-backend/internal/common/logger"
	"github.com/quickmech/quickmech-backend/internal/common/response"
	"github.com/quickmech/quickmech-backend/internal/service/chat"
)

// Handler 订单聊天接口
type Handler struct {
	chatService *chat.ChatService
	upgrader    websocket.Upgrader
}

func NewHandler(chatService *chat.ChatService, cfg *config.Config) *Handler {
	readBuffer := cfg.Business.Chat.ReadBufferSize
	if readBuffer <= 0 {
		readBuffer = 1024
	}
	writeBuffer := cfg.Business.Chat.WriteBufferSize
	if writeBuffer <= 0 {
		writeBuffer = 1024
	}
	return &Handler{
		chatService: chatService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBuffer,
			WriteBufferSize: writeBuffer,
			// App 端与网页端域名不固定，鉴权靠 JWT 而非 Origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Connect 建立聊天长连接
// @Summary 聊天长连接
// @Description 升级为 WebSocket，在线期间服务端实时推送新消息，连接内也可发送消息
// @Tags 聊天
// @Security Bearer
// @Success 101 {string} string "Switching Protocols"
// @Router /chat/ws [get]
func (h *Handler) Connect(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("聊天连接升级失败", logger.UserID(userID), logger.Err(err))
		response.AppErr(c, apperrors.ErrChatUpgradeFailed)
		return
	}

	registry := h.chatService.Registry()
	registry.Register(c.Request.Context(), userID, conn)
	defer registry.Unregister(c.Request.Context(), userID, conn)

	for {
		var req chat.SendRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("聊天连接异常断开", logger.UserID(userID), logger.Err(err))
			}
			return
		}
		registry.Touch(c.Request.Context(), userID)

		message, err := h.chatService.Send(c.Request.Context(), userID, &req)
		if err != nil {
			_ = conn.WriteJSON(gin.H{"error": err.Error()})
			continue
		}
		_ = conn.WriteJSON(message)
	}
}

// Send 发送消息
// @Summary 发送消息
// @Description 对端在线时实时推送，离线时降级为通知
// @Tags 聊天
// @Accept json
// @Produce json
// @Security Bearer
// @Param request body chat.SendRequest true "消息内容"
// @Success 200 {object} response.Response{data=models.ChatMessage}
// @Router /chat/messages [post]
func (h *Handler) Send(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	var req chat.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	result, err := h.chatService.Send(c.Request.Context(), userID, &req)
	handler.MustSucceed(c, err, result)
}

// History 聊天记录
// @Summary 聊天记录
// @Description 倒序翻页，拉取后自动标记本人未读为已读
// @Tags 聊天
// @Produce json
// @Security Bearer
// @Param id path int true "订单ID"
// @Param before_id query int false "查询该消息ID之前的记录"
// @Success 200 {object} response.Response{data=[]models.ChatMessage}
// @Router /chat/orders/{id}/messages [get]
func (h *Handler) History(c *gin.Context) {
	userID, orderID, ok := handler.RequireUserAndParseID(c, "订单")
	if !ok {
		return
	}

	beforeID, ok := handler.ParseQueryID(c, "before_id", "消息")
	if !ok {
		return
	}
	var before int64
	if beforeID != nil {
		before = *beforeID
	}

	list, err := h.chatService.History(c.Request.Context(), userID, orderID, before)
	handler.MustSucceed(c, err, list)
}

// CountUnread 未读消息数
// @Summary 未读消息数
// @Tags 聊天
// @Produce json
// @Security Bearer
// @Success 200 {object} response.Response{data=int64}
// @Router /chat/unread [get]
func (h *Handler) CountUnread(c *gin.Context) {
	userID, ok := handler.RequireUserID(c)
	if !ok {
		return
	}

	count, err := h.chatService.CountUnread(c.Request.Context(), userID)
	handler.MustSucceed(c, err, gin.H{"count": count})
}
