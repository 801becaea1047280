package domain

import "messaging_service/pkg"

// ConversationKind definition conversation kind
type ConversationKind string

const (
	// ConversationKindDirect definition conversation 1 on 1
	ConversationKindDirect ConversationKind = "direct" // 1對1
	// ConversationKindGroup definition conversation group
	ConversationKindGroup ConversationKind = "group" // 群組
)

// ConversationStatus definition conversation lifecycle status
type ConversationStatus string

const (
	// ConversationActive normal conversation
	ConversationActive ConversationStatus = "active"
	// ConversationArchived archived, can be reopened
	ConversationArchived ConversationStatus = "archived"
	// ConversationClosed closed, 不提供 hard delete, closed 即為刪除
	ConversationClosed ConversationStatus = "closed"
)

// Conversation definition conversation
// Participants 建立後不可變動 (不支援中途加入/退出)
type Conversation struct {
	ID   string           `bson:"_id,omitempty" json:"id"`
	Kind ConversationKind `bson:"kind" json:"kind"`
	// DirectKey 只有 direct 有值, 排序後的成對 key, 搭配 unique index 防併發重複建立
	DirectKey     string             `bson:"direct_key,omitempty" json:"-"`
	Participants  []string           `bson:"participants" json:"participants"`
	Status        ConversationStatus `bson:"status" json:"status"`
	LastMessageID string             `bson:"last_message_id,omitempty" json:"last_message_id,omitempty"`
	// Seq 為單調遞增的訊息序號, 發送時由 store 以原子操作取號
	// 訊息排序只看 seq, created_at 僅供顯示 (wall clock 會碰撞)
	Seq       int64 `bson:"seq" json:"-"`
	CreatedAt int64 `bson:"created_at" json:"created_at"`
	UpdatedAt int64 `bson:"updated_at" json:"updated_at"`
}

// DirectPairKey 產生 direct conversation 的唯一 key, 成員順序無關
func DirectPairKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + "|" + userB
}

// HasParticipant check user is a member of this conversation
func (c *Conversation) HasParticipant(userID string) bool {
	return pkg.Contains(c.Participants, userID)
}

// CanTransitionTo 允許的狀態轉移
// active→archived, active→closed, archived→active
func (c *Conversation) CanTransitionTo(to ConversationStatus) bool {
	switch c.Status {
	case ConversationActive:
		return to == ConversationArchived || to == ConversationClosed
	case ConversationArchived:
		return to == ConversationActive
	default:
		return false
	}
}
