package app

import (
	"context"
	"sync"
	"time"

	"messaging_service/internal/chat/domain"
	"messaging_service/internal/chat/repository"
	"messaging_service/pkg/logger"

	"go.uber.org/zap"
)

// FanoutPublisher 對 conversation channel 推播領域事件
// 推播與 archive 都是 best-effort, 失敗只記 log, 不回滾主寫入
// (persistence 才是 source of truth, 漏推的靠 list/unread 補)
type FanoutPublisher struct {
	pubsub  repository.EventPubSub
	archive repository.EventArchive // 可為 nil (本地不接 kafka)
}

// NewFanoutPublisher create FanoutPublisher
func NewFanoutPublisher(pubsub repository.EventPubSub, archive repository.EventArchive) *FanoutPublisher {
	return &FanoutPublisher{
		pubsub:  pubsub,
		archive: archive,
	}
}

func (f *FanoutPublisher) publish(evt domain.Event, durable bool) {
	if f.pubsub != nil {
		if err := f.pubsub.Publish(repository.ConversationChannel(evt.ConversationID), evt); err != nil {
			logger.Log.Error("fanout publish err",
				zap.String("event", string(evt.Kind)),
				zap.String("conversation_id", evt.ConversationID),
				zap.String("err", err.Error()))
		}
	}

	// typing / presence 為 ephemeral, 不落地
	if durable && f.archive != nil {
		if err := f.archive.Append(context.Background(), evt); err != nil {
			logger.Log.Error("event archive err",
				zap.String("event", string(evt.Kind)),
				zap.String("conversation_id", evt.ConversationID),
				zap.String("err", err.Error()))
		}
	}
}

// MessageNew 新訊息事件
func (f *FanoutPublisher) MessageNew(view domain.MessageView) {
	f.publish(domain.Event{
		Kind:           domain.EventMessageNew,
		ConversationID: view.ConversationID,
		Message:        &view,
		At:             time.Now().Unix(),
	}, true)
}

// MessageUpdated 訊息編輯事件
func (f *FanoutPublisher) MessageUpdated(view domain.MessageView) {
	f.publish(domain.Event{
		Kind:           domain.EventMessageUpdated,
		ConversationID: view.ConversationID,
		Message:        &view,
		At:             time.Now().Unix(),
	}, true)
}

// MessageDeleted 訊息刪除事件, view 為 tombstone
func (f *FanoutPublisher) MessageDeleted(view domain.MessageView) {
	f.publish(domain.Event{
		Kind:           domain.EventMessageDeleted,
		ConversationID: view.ConversationID,
		Message:        &view,
		At:             time.Now().Unix(),
	}, true)
}

// ConversationUpdated conversation 狀態變更事件
func (f *FanoutPublisher) ConversationUpdated(conv *domain.Conversation) {
	f.publish(domain.Event{
		Kind:           domain.EventConversationUpdated,
		ConversationID: conv.ID,
		Conversation:   conv,
		At:             time.Now().Unix(),
	}, true)
}

// Typing 輸入中事件, ephemeral
func (f *FanoutPublisher) Typing(convID, userID string) {
	f.publish(domain.Event{
		Kind:           domain.EventTyping,
		ConversationID: convID,
		UserID:         userID,
		At:             time.Now().Unix(),
	}, false)
}

// PresenceOffline 成員離線事件, ephemeral
func (f *FanoutPublisher) PresenceOffline(convID, userID string) {
	f.publish(domain.Event{
		Kind:           domain.EventPresenceOffline,
		ConversationID: convID,
		UserID:         userID,
		At:             time.Now().Unix(),
	}, false)
}

// SubscriptionRegistry 持有 connection -> conversation 訂閱
// 只透過 Join/Leave/DisconnectAll 改動, 不給其他元件直接碰 map
type SubscriptionRegistry struct {
	mu   sync.Mutex
	subs map[string]map[string]context.CancelFunc // connID -> convID -> cancel
}

// NewSubscriptionRegistry create SubscriptionRegistry
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{
		subs: make(map[string]map[string]context.CancelFunc),
	}
}

// Join 登記訂閱, 同一 conversation 重複 join 時先取消舊的
func (s *SubscriptionRegistry) Join(connID, convID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[connID] == nil {
		s.subs[connID] = make(map[string]context.CancelFunc)
	}
	if old, ok := s.subs[connID][convID]; ok {
		old()
	}
	s.subs[connID][convID] = cancel
}

// Leave 取消訂閱, 回傳是否原本有訂閱
func (s *SubscriptionRegistry) Leave(connID, convID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.subs[connID][convID]
	if !ok {
		return false
	}
	cancel()
	delete(s.subs[connID], convID)
	return true
}

// Joined check connection 是否已訂閱該 conversation
func (s *SubscriptionRegistry) Joined(connID, convID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[connID][convID]
	return ok
}

// DisconnectAll 連線斷開時取消全部訂閱, 回傳原本訂閱的 conversation ids
func (s *SubscriptionRegistry) DisconnectAll(connID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var convIDs []string
	for convID, cancel := range s.subs[connID] {
		cancel()
		convIDs = append(convIDs, convID)
	}
	delete(s.subs, connID)
	return convIDs
}
