package app

import (
	"context"
	"strings"
	"time"

	"messaging_service/internal/chat/domain"
	"messaging_service/internal/chat/repository"
	errprocess "messaging_service/pkg/err"

	"github.com/google/uuid"
)

// MessageUseCase - 負責訊息的發送/編輯/刪除/讀取
type MessageUseCase struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	wmRepo   repository.WatermarkRepository
	fanout   *FanoutPublisher
}

// NewMessageUseCase init message use case
func NewMessageUseCase(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	wmRepo repository.WatermarkRepository,
	fanout *FanoutPublisher,
) *MessageUseCase {
	return &MessageUseCase{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		wmRepo:   wmRepo,
		fanout:   fanout,
	}
}

// SendMessage send message
func (uc *MessageUseCase) SendMessage(ctx context.Context, convID, senderID, body string) (*domain.ChatMessage, error) {
	// 1. 檢查 conversation 與發送資格, 全部過了才寫入
	conv, err := uc.convRepo.FindByID(ctx, convID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, errprocess.New(errprocess.KindNotFound, "conversation not found")
	}
	if !conv.HasParticipant(senderID) {
		return nil, errprocess.New(errprocess.KindForbidden, "sender is not a participant")
	}
	if conv.Status == domain.ConversationClosed {
		return nil, errprocess.New(errprocess.KindInvalidStateTransition, "conversation is closed")
	}

	// 2. 驗證 body, 空白訊息不落地
	if strings.TrimSpace(body) == "" {
		return nil, errprocess.New(errprocess.KindInvalidBody, "message body is empty")
	}
	if len(body) > domain.MaxBodyLen {
		return nil, errprocess.New(errprocess.KindInvalidBody, "message body too long")
	}

	// 3. 建立訊息, 發送者視為已讀自己的訊息
	now := time.Now().Unix()
	msg := &domain.ChatMessage{
		ID:             uuid.New().String(),
		ConversationID: convID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      now,
		ReadBy:         map[string]int64{senderID: now},
	}

	// 4. 取號 + message 寫入 + conversation 指標更新 (store 內保證原子)
	if err := uc.msgRepo.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}

	// 5. 推播給 conversation channel 上的所有連線 (含發送者的其他裝置)
	uc.fanout.MessageNew(msg.View())

	return msg, nil
}

// EditMessage 只有發送者本人可以編輯, 已刪除視同不存在
func (uc *MessageUseCase) EditMessage(ctx context.Context, messageID, requesterID, newBody string) (*domain.ChatMessage, error) {
	msg, err := uc.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errprocess.New(errprocess.KindNotFound, "message not found")
	}
	if msg.SenderID != requesterID {
		return nil, errprocess.New(errprocess.KindForbidden, "only the sender can edit")
	}
	if msg.IsDeleted() {
		return nil, errprocess.New(errprocess.KindNotFound, "message deleted")
	}

	if strings.TrimSpace(newBody) == "" {
		return nil, errprocess.New(errprocess.KindInvalidBody, "message body is empty")
	}
	if len(newBody) > domain.MaxBodyLen {
		return nil, errprocess.New(errprocess.KindInvalidBody, "message body too long")
	}

	now := time.Now().Unix()
	if err := uc.msgRepo.UpdateBody(ctx, messageID, newBody, now); err != nil {
		return nil, err
	}

	msg.Body = newBody
	msg.EditedAt = now
	uc.fanout.MessageUpdated(msg.View())
	return msg, nil
}

// DeleteMessage soft delete, 留 tombstone
func (uc *MessageUseCase) DeleteMessage(ctx context.Context, messageID, requesterID string) error {
	msg, err := uc.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return errprocess.New(errprocess.KindNotFound, "message not found")
	}
	if msg.SenderID != requesterID {
		return errprocess.New(errprocess.KindForbidden, "only the sender can delete")
	}
	if msg.IsDeleted() {
		return errprocess.New(errprocess.KindNotFound, "message deleted")
	}

	now := time.Now().Unix()
	if err := uc.msgRepo.SoftDelete(ctx, messageID, now); err != nil {
		return err
	}

	msg.DeletedAt = now
	uc.fanout.MessageDeleted(msg.View())
	return nil
}

// ListMessages seq desc 分頁 (最新在前, UI 顯示時自行反轉)
// 回傳 tombstone view, 已刪除訊息不帶原文
func (uc *MessageUseCase) ListMessages(ctx context.Context, convID, requesterID, cursor string, limit int) ([]domain.MessageView, string, error) {
	conv, err := uc.convRepo.FindByID(ctx, convID)
	if err != nil {
		return nil, "", err
	}
	if conv == nil {
		return nil, "", errprocess.New(errprocess.KindNotFound, "conversation not found")
	}
	if !conv.HasParticipant(requesterID) {
		return nil, "", errprocess.New(errprocess.KindForbidden, "not a participant")
	}

	beforeSeq, err := repository.DecodeSeqCursor(cursor)
	if err != nil {
		return nil, "", errprocess.New(errprocess.KindInvalidBody, err.Error())
	}
	lim := clampLimit(limit)

	messages, err := uc.msgRepo.ListByConversation(ctx, convID, beforeSeq, int64(lim))
	if err != nil {
		return nil, "", err
	}

	views := make([]domain.MessageView, 0, len(messages))
	for i := range messages {
		views = append(views, messages[i].View())
	}

	next := ""
	if len(messages) == lim {
		next = repository.EncodeSeqCursor(messages[len(messages)-1].Seq)
	}
	return views, next, nil
}

// MarkAsRead 讀到 upToMessageID 為止, 冪等
// watermark 只進不退: 目標比現在舊時直接 no-op
func (uc *MessageUseCase) MarkAsRead(ctx context.Context, convID, userID, upToMessageID string) error {
	conv, err := uc.convRepo.FindByID(ctx, convID)
	if err != nil {
		return err
	}
	if conv == nil {
		return errprocess.New(errprocess.KindNotFound, "conversation not found")
	}
	if !conv.HasParticipant(userID) {
		return errprocess.New(errprocess.KindForbidden, "not a participant")
	}

	target, err := uc.msgRepo.FindByID(ctx, upToMessageID)
	if err != nil {
		return err
	}
	if target == nil || target.ConversationID != convID {
		return errprocess.New(errprocess.KindNotFound, "message not found in conversation")
	}

	wm, err := uc.wmRepo.Find(ctx, convID, userID)
	if err != nil {
		return err
	}
	if wm != nil && target.Seq <= wm.LastReadSeq {
		// 往回移動 watermark 是 no-op, unread 不會因 markAsRead 變多
		return nil
	}

	now := time.Now().Unix()
	if err := uc.msgRepo.MarkReadUpTo(ctx, convID, userID, target.Seq, now); err != nil {
		return err
	}
	return uc.wmRepo.Upsert(ctx, &domain.ReadWatermark{
		ConversationID: convID,
		UserID:         userID,
		LastReadSeq:    target.Seq,
		LastReadAt:     now,
	})
}

// UnreadCount 單一 conversation 的未讀數
func (uc *MessageUseCase) UnreadCount(ctx context.Context, convID, userID string) (int64, error) {
	conv, err := uc.convRepo.FindByID(ctx, convID)
	if err != nil {
		return 0, err
	}
	if conv == nil {
		return 0, errprocess.New(errprocess.KindNotFound, "conversation not found")
	}
	if !conv.HasParticipant(userID) {
		return 0, errprocess.New(errprocess.KindForbidden, "not a participant")
	}
	return uc.msgRepo.CountUnread(ctx, convID, userID)
}

// UnreadCountAll - get user all conversation unread counts
// 只計數不撈 body
func (uc *MessageUseCase) UnreadCountAll(ctx context.Context, userID string) ([]domain.ConversationUnreadInfo, error) {
	convIDs, err := uc.convRepo.ListIDsByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	return uc.msgRepo.CountUnreadByConversation(ctx, userID, convIDs)
}
