package app

import (
	"context"
	"errors"
	"testing"

	"messaging_service/internal/chat/domain"
	"messaging_service/internal/chat/repository"
	"messaging_service/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// 測試 FanoutPublisher - 推播失敗不往外傳 (best-effort)
func TestFanoutPublisher_PublishFailureSwallowed(t *testing.T) {
	logger.SetNewNop()
	convID := uuid.New().String()

	mockPubSub := new(MockEventPubSub)
	mockPubSub.On("Publish", repository.ConversationChannel(convID), mock.Anything).Return(errors.New("redis down"))

	f := NewFanoutPublisher(mockPubSub, nil)
	f.Typing(convID, uuid.New().String())

	mockPubSub.AssertExpectations(t)
}

// 測試 FanoutPublisher - ephemeral 事件不進 archive
func TestFanoutPublisher_EphemeralNotArchived(t *testing.T) {
	logger.SetNewNop()
	convID := uuid.New().String()

	mockPubSub := new(MockEventPubSub)
	mockArchive := new(MockEventArchive)
	mockPubSub.On("Publish", repository.ConversationChannel(convID), mock.Anything).Return(nil)

	f := NewFanoutPublisher(mockPubSub, mockArchive)
	f.Typing(convID, uuid.New().String())
	f.PresenceOffline(convID, uuid.New().String())

	mockArchive.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

// 測試 FanoutPublisher - durable 事件進 archive
func TestFanoutPublisher_DurableArchived(t *testing.T) {
	logger.SetNewNop()
	convID := uuid.New().String()

	mockPubSub := new(MockEventPubSub)
	mockArchive := new(MockEventArchive)
	mockPubSub.On("Publish", repository.ConversationChannel(convID), mock.Anything).Return(nil)
	mockArchive.On("Append", mock.Anything, mock.MatchedBy(func(evt domain.Event) bool {
		return evt.Kind == domain.EventMessageNew && evt.ConversationID == convID
	})).Return(nil)

	f := NewFanoutPublisher(mockPubSub, mockArchive)
	f.MessageNew(domain.MessageView{ID: uuid.New().String(), ConversationID: convID, State: domain.MessageStateActive})

	mockPubSub.AssertExpectations(t)
	mockArchive.AssertExpectations(t)
}

// 測試 SubscriptionRegistry - join/leave
func TestSubscriptionRegistry_JoinLeave(t *testing.T) {
	reg := NewSubscriptionRegistry()
	connID := uuid.New().String()
	convID := uuid.New().String()

	_, cancel := context.WithCancel(context.Background())
	reg.Join(connID, convID, cancel)

	assert.True(t, reg.Joined(connID, convID))
	assert.True(t, reg.Leave(connID, convID))
	assert.False(t, reg.Joined(connID, convID))
	assert.False(t, reg.Leave(connID, convID))
}

// 測試 SubscriptionRegistry - 重複 join 取消舊訂閱
func TestSubscriptionRegistry_RejoinCancelsOld(t *testing.T) {
	reg := NewSubscriptionRegistry()
	connID := uuid.New().String()
	convID := uuid.New().String()

	oldCtx, oldCancel := context.WithCancel(context.Background())
	reg.Join(connID, convID, oldCancel)

	_, newCancel := context.WithCancel(context.Background())
	reg.Join(connID, convID, newCancel)

	assert.Error(t, oldCtx.Err())
	assert.True(t, reg.Joined(connID, convID))
}

// 測試 SubscriptionRegistry - 斷線取消全部並回傳 conversation ids
func TestSubscriptionRegistry_DisconnectAll(t *testing.T) {
	reg := NewSubscriptionRegistry()
	connID := uuid.New().String()
	convA := uuid.New().String()
	convB := uuid.New().String()

	ctxA, cancelA := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())
	reg.Join(connID, convA, cancelA)
	reg.Join(connID, convB, cancelB)

	convIDs := reg.DisconnectAll(connID)

	assert.ElementsMatch(t, []string{convA, convB}, convIDs)
	assert.Error(t, ctxA.Err())
	assert.Error(t, ctxB.Err())
	assert.False(t, reg.Joined(connID, convA))
	assert.Empty(t, reg.DisconnectAll(connID))
}
