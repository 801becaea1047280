package app

import (
	"context"

	"messaging_service/internal/chat/domain"
	"messaging_service/internal/chat/repository"

	"github.com/stretchr/testify/mock"
)

// MockConversationRepository Mock ConversationRepository
type MockConversationRepository struct {
	mock.Mock
}

// EnsureIndexes moke ensure indexes
func (m *MockConversationRepository) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// CreateConversation moke create conversation
func (m *MockConversationRepository) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

// FindByID moke find conversation by id
func (m *MockConversationRepository) FindByID(ctx context.Context, convID string) (*domain.Conversation, error) {
	args := m.Called(ctx, convID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindDirect moke find direct conversation
func (m *MockConversationRepository) FindDirect(ctx context.Context, userA, userB string) (*domain.Conversation, error) {
	args := m.Called(ctx, userA, userB)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListByParticipant moke list conversation by participant
func (m *MockConversationRepository) ListByParticipant(ctx context.Context, userID string, cursor *repository.PageCursor, limit int64) ([]domain.Conversation, error) {
	args := m.Called(ctx, userID, cursor, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListIDsByParticipant moke list conversation id by participant
func (m *MockConversationRepository) ListIDsByParticipant(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// UpdateStatus moke update conversation status
func (m *MockConversationRepository) UpdateStatus(ctx context.Context, convID string, from, to domain.ConversationStatus, now int64) (bool, error) {
	args := m.Called(ctx, convID, from, to, now)
	return args.Bool(0), args.Error(1)
}

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// InsertMessage moke insert msg
func (m *MockMessageRepository) InsertMessage(ctx context.Context, msg *domain.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// FindByID moke find msg by id
func (m *MockMessageRepository) FindByID(ctx context.Context, messageID string) (*domain.ChatMessage, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.ChatMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

// UpdateBody moke update msg body
func (m *MockMessageRepository) UpdateBody(ctx context.Context, messageID, newBody string, editedAt int64) error {
	args := m.Called(ctx, messageID, newBody, editedAt)
	return args.Error(0)
}

// SoftDelete moke soft delete msg
func (m *MockMessageRepository) SoftDelete(ctx context.Context, messageID string, deletedAt int64) error {
	args := m.Called(ctx, messageID, deletedAt)
	return args.Error(0)
}

// SoftDeleteByConversation moke soft delete msg by conversation
func (m *MockMessageRepository) SoftDeleteByConversation(ctx context.Context, convID string, deletedAt int64) error {
	args := m.Called(ctx, convID, deletedAt)
	return args.Error(0)
}

// ListByConversation moke list msg by conversation
func (m *MockMessageRepository) ListByConversation(ctx context.Context, convID string, beforeSeq int64, limit int64) ([]domain.ChatMessage, error) {
	args := m.Called(ctx, convID, beforeSeq, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.ChatMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

// MarkReadUpTo moke mark read up to seq
func (m *MockMessageRepository) MarkReadUpTo(ctx context.Context, convID, userID string, upToSeq, readAt int64) error {
	args := m.Called(ctx, convID, userID, upToSeq, readAt)
	return args.Error(0)
}

// CountUnread moke get count unread by conversation
func (m *MockMessageRepository) CountUnread(ctx context.Context, convID, userID string) (int64, error) {
	args := m.Called(ctx, convID, userID)
	return args.Get(0).(int64), args.Error(1)
}

// CountUnreadByConversation moke get count unread by user id
func (m *MockMessageRepository) CountUnreadByConversation(ctx context.Context, userID string, convIDs []string) ([]domain.ConversationUnreadInfo, error) {
	args := m.Called(ctx, userID, convIDs)
	return args.Get(0).([]domain.ConversationUnreadInfo), args.Error(1)
}

// MockWatermarkRepository Mock WatermarkRepository
type MockWatermarkRepository struct {
	mock.Mock
}

// Upsert moke upsert watermark
func (m *MockWatermarkRepository) Upsert(ctx context.Context, wm *domain.ReadWatermark) error {
	args := m.Called(ctx, wm)
	return args.Error(0)
}

// Find moke find watermark
func (m *MockWatermarkRepository) Find(ctx context.Context, convID, userID string) (*domain.ReadWatermark, error) {
	args := m.Called(ctx, convID, userID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.ReadWatermark), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockEventPubSub Mock EventPubSub
type MockEventPubSub struct {
	mock.Mock
}

// Publish moke publisher
func (m *MockEventPubSub) Publish(channel string, message interface{}) error {
	args := m.Called(channel, message)
	return args.Error(0)
}

// Subscribe moke subscriber
func (m *MockEventPubSub) Subscribe(ctx context.Context, channel string, handler func(evt domain.Event)) error {
	args := m.Called(channel, handler)
	return args.Error(0)
}

// MockEventArchive Mock EventArchive
type MockEventArchive struct {
	mock.Mock
}

// Append moke append event
func (m *MockEventArchive) Append(ctx context.Context, evt domain.Event) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}
