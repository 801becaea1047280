package app

import (
	"context"
	"strings"
	"testing"

	"messaging_service/internal/chat/domain"
	"messaging_service/internal/chat/repository"
	errprocess "messaging_service/pkg/err"
	"messaging_service/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func activeConversation(members ...string) *domain.Conversation {
	return &domain.Conversation{
		ID:           uuid.New().String(),
		Kind:         domain.ConversationKindGroup,
		Participants: members,
		Status:       domain.ConversationActive,
	}
}

// 測試 SendMessage - 寫入並推播
func TestMessageUseCase_SendMessage(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	senderID := uuid.New().String()
	conv := activeConversation(senderID, uuid.New().String())

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockPubSub := new(MockEventPubSub)
	mockArchive := new(MockEventArchive)

	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockMsgRepo.On("InsertMessage", ctx, mock.Anything).Return(nil)
	mockPubSub.On("Publish", repository.ConversationChannel(conv.ID), mock.Anything).Return(nil)
	mockArchive.On("Append", mock.Anything, mock.Anything).Return(nil)

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, nil, NewFanoutPublisher(mockPubSub, mockArchive))
	msg, err := uc.SendMessage(ctx, conv.ID, senderID, "Hello, world!")

	assert.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	// 發送者視為已讀自己的訊息
	assert.Contains(t, msg.ReadBy, senderID)

	mockConvRepo.AssertExpectations(t)
	mockMsgRepo.AssertExpectations(t)
	mockPubSub.AssertExpectations(t)
	mockArchive.AssertExpectations(t)
}

// 測試 SendMessage - 空 body 不落地
func TestMessageUseCase_SendMessageEmptyBody(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	senderID := uuid.New().String()
	conv := activeConversation(senderID, uuid.New().String())

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, nil, NewFanoutPublisher(nil, nil))
	_, err := uc.SendMessage(ctx, conv.ID, senderID, "   ")

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindInvalidBody, errprocess.KindOf(err))
	mockMsgRepo.AssertNotCalled(t, "InsertMessage", mock.Anything, mock.Anything)
}

// 測試 SendMessage - body 超長
func TestMessageUseCase_SendMessageBodyTooLong(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	senderID := uuid.New().String()
	conv := activeConversation(senderID, uuid.New().String())

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, nil, NewFanoutPublisher(nil, nil))
	_, err := uc.SendMessage(ctx, conv.ID, senderID, strings.Repeat("a", domain.MaxBodyLen+1))

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindInvalidBody, errprocess.KindOf(err))
}

// 測試 SendMessage - 非 participant
func TestMessageUseCase_SendMessageForbidden(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	conv := activeConversation(uuid.New().String(), uuid.New().String())

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, nil, NewFanoutPublisher(nil, nil))
	_, err := uc.SendMessage(ctx, conv.ID, uuid.New().String(), "hi")

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindForbidden, errprocess.KindOf(err))
}

// 測試 SendMessage - closed conversation 不收訊息
func TestMessageUseCase_SendMessageClosed(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	senderID := uuid.New().String()
	conv := activeConversation(senderID, uuid.New().String())
	conv.Status = domain.ConversationClosed

	mockConvRepo := new(MockConversationRepository)
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)

	uc := NewMessageUseCase(mockConvRepo, new(MockMessageRepository), nil, NewFanoutPublisher(nil, nil))
	_, err := uc.SendMessage(ctx, conv.ID, senderID, "hi")

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindInvalidStateTransition, errprocess.KindOf(err))
}

// 測試 EditMessage - 非 sender 不能編輯
func TestMessageUseCase_EditMessageForbidden(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	messageID := uuid.New().String()

	msg := &domain.ChatMessage{
		ID:             messageID,
		ConversationID: uuid.New().String(),
		SenderID:       uuid.New().String(),
		Body:           "original",
		Seq:            3,
	}

	mockMsgRepo := new(MockMessageRepository)
	mockMsgRepo.On("FindByID", ctx, messageID).Return(msg, nil)

	uc := NewMessageUseCase(new(MockConversationRepository), mockMsgRepo, nil, NewFanoutPublisher(nil, nil))
	_, err := uc.EditMessage(ctx, messageID, uuid.New().String(), "hacked")

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindForbidden, errprocess.KindOf(err))
	mockMsgRepo.AssertNotCalled(t, "UpdateBody", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// 測試 EditMessage - sender 編輯成功
func TestMessageUseCase_EditMessage(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	messageID := uuid.New().String()
	senderID := uuid.New().String()
	convID := uuid.New().String()

	msg := &domain.ChatMessage{
		ID:             messageID,
		ConversationID: convID,
		SenderID:       senderID,
		Body:           "original",
		Seq:            3,
	}

	mockMsgRepo := new(MockMessageRepository)
	mockPubSub := new(MockEventPubSub)
	mockMsgRepo.On("FindByID", ctx, messageID).Return(msg, nil)
	mockMsgRepo.On("UpdateBody", ctx, messageID, "edited", mock.Anything).Return(nil)
	mockPubSub.On("Publish", repository.ConversationChannel(convID), mock.Anything).Return(nil)

	uc := NewMessageUseCase(new(MockConversationRepository), mockMsgRepo, nil, NewFanoutPublisher(mockPubSub, nil))
	edited, err := uc.EditMessage(ctx, messageID, senderID, "edited")

	assert.NoError(t, err)
	assert.Equal(t, "edited", edited.Body)
	assert.NotZero(t, edited.EditedAt)
	mockMsgRepo.AssertExpectations(t)
	mockPubSub.AssertExpectations(t)
}

// 測試 DeleteMessage - soft delete 推 tombstone, 不帶原文
func TestMessageUseCase_DeleteMessageTombstone(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	messageID := uuid.New().String()
	senderID := uuid.New().String()
	convID := uuid.New().String()

	msg := &domain.ChatMessage{
		ID:             messageID,
		ConversationID: convID,
		SenderID:       senderID,
		Body:           "secret",
		Seq:            7,
	}

	mockMsgRepo := new(MockMessageRepository)
	mockPubSub := new(MockEventPubSub)
	mockMsgRepo.On("FindByID", ctx, messageID).Return(msg, nil)
	mockMsgRepo.On("SoftDelete", ctx, messageID, mock.Anything).Return(nil)
	mockPubSub.On("Publish", repository.ConversationChannel(convID), mock.MatchedBy(func(m interface{}) bool {
		evt, ok := m.(domain.Event)
		if !ok || evt.Kind != domain.EventMessageDeleted {
			return false
		}
		// tombstone 不能外洩原文
		return evt.Message.Body == "" && evt.Message.State == domain.MessageStateDeleted
	})).Return(nil)

	uc := NewMessageUseCase(new(MockConversationRepository), mockMsgRepo, nil, NewFanoutPublisher(mockPubSub, nil))
	err := uc.DeleteMessage(ctx, messageID, senderID)

	assert.NoError(t, err)
	mockMsgRepo.AssertExpectations(t)
	mockPubSub.AssertExpectations(t)
}

// 測試 DeleteMessage - 已刪除視同不存在
func TestMessageUseCase_DeleteMessageTwice(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	messageID := uuid.New().String()
	senderID := uuid.New().String()

	msg := &domain.ChatMessage{
		ID:        messageID,
		SenderID:  senderID,
		Body:      "",
		DeletedAt: 1700000000,
	}

	mockMsgRepo := new(MockMessageRepository)
	mockMsgRepo.On("FindByID", ctx, messageID).Return(msg, nil)

	uc := NewMessageUseCase(new(MockConversationRepository), mockMsgRepo, nil, NewFanoutPublisher(nil, nil))
	err := uc.DeleteMessage(ctx, messageID, senderID)

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindNotFound, errprocess.KindOf(err))
	mockMsgRepo.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything, mock.Anything)
}

// 測試 ListMessages - 已刪除訊息回 tombstone view
func TestMessageUseCase_ListMessagesTombstone(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	userID := uuid.New().String()
	conv := activeConversation(userID, uuid.New().String())

	messages := []domain.ChatMessage{
		{ID: "m2", ConversationID: conv.ID, Seq: 2, Body: "visible"},
		{ID: "m1", ConversationID: conv.ID, Seq: 1, Body: "secret", DeletedAt: 1700000000},
	}

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockMsgRepo.On("ListByConversation", ctx, conv.ID, int64(0), int64(20)).Return(messages, nil)

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, nil, NewFanoutPublisher(nil, nil))
	views, next, err := uc.ListMessages(ctx, conv.ID, userID, "", 0)

	assert.NoError(t, err)
	assert.Len(t, views, 2)
	assert.Equal(t, "visible", views[0].Body)
	assert.Equal(t, domain.MessageStateDeleted, views[1].State)
	assert.Empty(t, views[1].Body)
	assert.Empty(t, next)
}

// 測試 MarkAsRead - watermark 推進
func TestMessageUseCase_MarkAsRead(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	userID := uuid.New().String()
	conv := activeConversation(userID, uuid.New().String())
	messageID := uuid.New().String()

	target := &domain.ChatMessage{
		ID:             messageID,
		ConversationID: conv.ID,
		SenderID:       conv.Participants[1],
		Seq:            5,
	}

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockWmRepo := new(MockWatermarkRepository)

	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockMsgRepo.On("FindByID", ctx, messageID).Return(target, nil)
	mockWmRepo.On("Find", ctx, conv.ID, userID).Return(&domain.ReadWatermark{
		ConversationID: conv.ID,
		UserID:         userID,
		LastReadSeq:    2,
	}, nil)
	mockMsgRepo.On("MarkReadUpTo", ctx, conv.ID, userID, int64(5), mock.Anything).Return(nil)
	mockWmRepo.On("Upsert", ctx, mock.MatchedBy(func(wm *domain.ReadWatermark) bool {
		return wm.LastReadSeq == 5 && wm.UserID == userID
	})).Return(nil)

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, mockWmRepo, NewFanoutPublisher(nil, nil))
	err := uc.MarkAsRead(ctx, conv.ID, userID, messageID)

	assert.NoError(t, err)
	mockMsgRepo.AssertExpectations(t)
	mockWmRepo.AssertExpectations(t)
}

// 測試 MarkAsRead - 往回標記是 no-op
func TestMessageUseCase_MarkAsReadBackwardNoop(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	userID := uuid.New().String()
	conv := activeConversation(userID, uuid.New().String())
	messageID := uuid.New().String()

	target := &domain.ChatMessage{
		ID:             messageID,
		ConversationID: conv.ID,
		Seq:            3,
	}

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockWmRepo := new(MockWatermarkRepository)

	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockMsgRepo.On("FindByID", ctx, messageID).Return(target, nil)
	mockWmRepo.On("Find", ctx, conv.ID, userID).Return(&domain.ReadWatermark{
		ConversationID: conv.ID,
		UserID:         userID,
		LastReadSeq:    8,
	}, nil)

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, mockWmRepo, NewFanoutPublisher(nil, nil))
	err := uc.MarkAsRead(ctx, conv.ID, userID, messageID)

	assert.NoError(t, err)
	mockMsgRepo.AssertNotCalled(t, "MarkReadUpTo", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockWmRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

// 測試 MarkAsRead - 訊息不屬於該 conversation
func TestMessageUseCase_MarkAsReadWrongConversation(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	userID := uuid.New().String()
	conv := activeConversation(userID, uuid.New().String())
	messageID := uuid.New().String()

	target := &domain.ChatMessage{
		ID:             messageID,
		ConversationID: uuid.New().String(),
		Seq:            3,
	}

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockMsgRepo.On("FindByID", ctx, messageID).Return(target, nil)

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, new(MockWatermarkRepository), NewFanoutPublisher(nil, nil))
	err := uc.MarkAsRead(ctx, conv.ID, userID, messageID)

	assert.Error(t, err)
	assert.Equal(t, errprocess.KindNotFound, errprocess.KindOf(err))
}

// 測試 UnreadCount
func TestMessageUseCase_UnreadCount(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	userID := uuid.New().String()
	conv := activeConversation(userID, uuid.New().String())

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockConvRepo.On("FindByID", ctx, conv.ID).Return(conv, nil)
	mockMsgRepo.On("CountUnread", ctx, conv.ID, userID).Return(int64(4), nil)

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, nil, NewFanoutPublisher(nil, nil))
	count, err := uc.UnreadCount(ctx, conv.ID, userID)

	assert.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

// 測試 UnreadCountAll
func TestMessageUseCase_UnreadCountAll(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	userID := uuid.New().String()

	unread := []domain.ConversationUnreadInfo{
		{ConversationID: "conv-1", UnreadCount: 5},
		{ConversationID: "conv-2", UnreadCount: 2},
	}

	mockConvRepo := new(MockConversationRepository)
	mockMsgRepo := new(MockMessageRepository)
	mockConvRepo.On("ListIDsByParticipant", ctx, userID).Return([]string{"conv-1", "conv-2"}, nil)
	mockMsgRepo.On("CountUnreadByConversation", ctx, userID, []string{"conv-1", "conv-2"}).Return(unread, nil)

	uc := NewMessageUseCase(mockConvRepo, mockMsgRepo, nil, NewFanoutPublisher(nil, nil))
	result, err := uc.UnreadCountAll(ctx, userID)

	assert.NoError(t, err)
	assert.Equal(t, unread, result)
}
