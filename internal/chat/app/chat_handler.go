package app

import (
	"fmt"
	"strconv"

	"messaging_service/internal/chat/domain"
	errprocess "messaging_service/pkg/err"
	"messaging_service/pkg/logger"
	"messaging_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ChatHandler 处理 conversation/message 相关的 HTTP 请求
type ChatHandler struct {
	ConvUC *ConversationUseCase
	MsgUC  *MessageUseCase
}

// NewChatHandler 创建新的 ChatHandler
func NewChatHandler(convUC *ConversationUseCase, msgUC *MessageUseCase) *ChatHandler {
	return &ChatHandler{
		ConvUC: convUC,
		MsgUC:  msgUC,
	}
}

// userID 從 token claims 取 requester
// 空的 user_id claim 視同沒授權, 不能讓 "" 变成 participant/sender
func (h *ChatHandler) userID(c *fiber.Ctx) (string, error) {
	userID, ok := c.Locals(middlewares.TokenUserID).(string)
	if !ok || userID == "" {
		return "", errprocess.New(errprocess.KindForbidden, fmt.Sprintf("c.Locals(%s) is empty", middlewares.TokenUserID))
	}
	return userID, nil
}

func (h *ChatHandler) fail(c *fiber.Ctx, err error) error {
	return c.Status(errprocess.HTTPStatus(err)).JSON(fiber.Map{
		"error": err.Error(),
		"kind":  string(errprocess.KindOf(err)),
	})
}

// CreateConversation 建立 conversation
// @Summary 建立 conversation
// @Description 建立 direct 或 group conversation, direct 重複建立回傳原本那筆
// @Tags Conversations
// @Accept json
// @Produce json
// @Param auth query string false "JWT"
// @Success 200 {object} string "conversation"
// @Failure 400 {object} string "请求错误"
// @Router /conversations [post]
func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return h.fail(c, err)
	}

	type request struct {
		Kind         string   `json:"kind"`
		Participants []string `json:"participants"`
	}

	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	logger.Log.Debug("CreateConversation request", zap.String("userID", userID), zap.String("kind", req.Kind))

	conv, err := h.ConvUC.CreateConversation(c.Context(), userID, req.Participants, domain.ConversationKind(req.Kind))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"conversation": conv})
}

// ListConversations 取得 user 的 conversation 清單
// @Summary 取得 conversation 清單
// @Description 依 updated_at 由新到舊分页
// @Tags Conversations
// @Accept json
// @Produce json
// @Param cursor query string false "分页 cursor"
// @Param limit query int false "每页笔数"
// @Success 200 {object} string "conversations"
// @Router /conversations [get]
func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return h.fail(c, err)
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	convs, next, err := h.ConvUC.ListConversations(c.Context(), userID, c.Query("cursor"), limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"conversations": convs, "next_cursor": next})
}

// GetConversation 取得单一 conversation
// @Summary 取得 conversation
// @Tags Conversations
// @Produce json
// @Param id path string true "conversation id"
// @Success 200 {object} string "conversation"
// @Failure 404 {object} string "未找到"
// @Router /conversations/{id} [get]
func (h *ChatHandler) GetConversation(c *fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return h.fail(c, err)
	}

	conv, err := h.ConvUC.GetConversation(c.Context(), c.Params("id"), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"conversation": conv})
}

// UpdateConversationStatus 变更 conversation 状态
// @Summary 变更 conversation 状态
// @Description active -> archived/closed, archived -> active
// @Tags Conversations
// @Accept json
// @Produce json
// @Param id path string true "conversation id"
// @Success 200 {object} string "conversation"
// @Failure 409 {object} string "状态冲突"
// @Router /conversations/{id}/status [patch]
func (h *ChatHandler) UpdateConversationStatus(c *fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return h.fail(c, err)
	}

	type request struct {
		Status string `json:"status"`
	}

	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	conv, err := h.ConvUC.UpdateStatus(c.Context(), c.Params("id"), userID, domain.ConversationStatus(req.Status))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"conversation": conv})
}

// SendMessage 传送讯息
// @Summary 传送讯息
// @Tags Messages
// @Accept json
// @Produce json
// @Param id path string true "conversation id"
// @Success 200 {object} string "message"
// @Failure 400 {object} string "body 不合法"
// @Router /conversations/{id}/messages [post]
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return h.fail(c, err)
	}

	type request struct {
		Body string `json:"body"`
	}

	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	msg, err := h.MsgUC.SendMessage(c.Context(), c.Params("id"), userID, req.Body)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": msg.View()})
}

// ListMessages 取得 conversation 讯息, 由新到舊分页
// @Summary 取得讯息清單
// @Tags Messages
// @Produce json
// @Param id path string true "conversation id"
// @Param cursor query string false "分页 cursor"
// @Param limit query int false "每页笔数"
// @Success 200 {object} string "messages"
// @Router /conversations/{id}/messages [get]
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return h.fail(c, err)
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	views, next, err := h.MsgUC.ListMessages(c.Context(), c.Params("id"), userID, c.Query("cursor"), limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"messages": views, "next_cursor": next})
}

// EditMessage 编辑讯息, 只有 sender 可编辑
// @Summary 编辑讯息
// @Tags Messages
// @Accept json
// @Produce json
// @Param id path string true "message id"
// @Success 200 {object} string "message"
// @Failure 403 {object} string "非 sender"
// @Router /messages/{id} [patch]
func (h *ChatHandler) EditMessage(c *fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return h.fail(c, err)
	}

	type request struct {
		Body string `json:"body"`
	}

	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	msg, err := h.MsgUC.EditMessage(c.Context(), c.Params("id"), userID, req.Body)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": msg.View()})
}

// DeleteMessage 删除讯息, soft delete 留 tombstone
// @Summary 删除讯息
// @Tags Messages
// @Produce json
// @Param id path string true "message id"
// @Success 200 {object} string "删除成功"
// @Failure 403 {object} string "非 sender"
// @Router /messages/{id} [delete]
func (h *ChatHandler) DeleteMessage(c *fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return h.fail(c, err)
	}

	if err := h.MsgUC.DeleteMessage(c.Context(), c.Params("id"), userID); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "delete success"})
}

// MarkAsRead 推进 read watermark
// @Summary 标记已读
// @Description watermark 只会往前, 往回标记是 no-op
// @Tags ReadState
// @Accept json
// @Produce json
// @Param id path string true "conversation id"
// @Success 200 {object} string "标记成功"
// @Router /conversations/{id}/read [post]
func (h *ChatHandler) MarkAsRead(c *fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return h.fail(c, err)
	}

	type request struct {
		MessageID string `json:"message_id"`
	}

	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	if err := h.MsgUC.MarkAsRead(c.Context(), c.Params("id"), userID, req.MessageID); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "read success"})
}

// UnreadCount 取得单一 conversation 未读数
// @Summary 取得未读数
// @Tags ReadState
// @Produce json
// @Param id path string true "conversation id"
// @Success 200 {object} string "未读数"
// @Router /conversations/{id}/unread [get]
func (h *ChatHandler) UnreadCount(c *fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return h.fail(c, err)
	}

	count, err := h.MsgUC.UnreadCount(c.Context(), c.Params("id"), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"conversation_id": c.Params("id"), "unread": count})
}

// UnreadCountAll 取得所有 conversation 未读数
// @Summary 取得所有未读数
// @Tags ReadState
// @Produce json
// @Success 200 {object} string "各 conversation 未读数"
// @Router /unread [get]
func (h *ChatHandler) UnreadCountAll(c *fiber.Ctx) error {
	userID, err := h.userID(c)
	if err != nil {
		return h.fail(c, err)
	}

	infos, err := h.MsgUC.UnreadCountAll(c.Context(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"unread": infos})
}
