package domain

// MaxBodyLen message body 上限字元數
const MaxBodyLen = 4000

// MessageStateActive / MessageStateDeleted, 序列化邊界的 tagged variant
const (
	MessageStateActive  = "active"
	MessageStateDeleted = "deleted"
)

// ChatMessage 表示一則聊天訊息, 一筆 document 一則訊息
type ChatMessage struct {
	ID             string `bson:"_id" json:"id"`
	ConversationID string `bson:"conversation_id" json:"conversation_id"`
	SenderID       string `bson:"sender_id" json:"sender_id"`
	Body           string `bson:"body" json:"body"`
	// Seq 來自 conversation 的取號器, 同一 conversation 內唯一且單調
	Seq       int64 `bson:"seq" json:"seq"`
	CreatedAt int64 `bson:"created_at" json:"created_at"`
	EditedAt  int64 `bson:"edited_at,omitempty" json:"edited_at,omitempty"`
	DeletedAt int64 `bson:"deleted_at,omitempty" json:"-"`
	// ReadBy user id -> 已讀時間 (單調, 只會往後蓋)
	ReadBy map[string]int64 `bson:"read_by" json:"read_by,omitempty"`
}

// IsDeleted check soft delete mark
func (m *ChatMessage) IsDeleted() bool {
	return m.DeletedAt != 0
}

// MessageView 對外序列化用的 tagged variant
// 刪除後 body 不出 repository 呼叫端, 只留 tombstone
type MessageView struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	SenderID       string           `json:"sender_id"`
	State          string           `json:"state"`
	Body           string           `json:"body,omitempty"`
	Seq            int64            `json:"seq"`
	CreatedAt      int64            `json:"created_at"`
	EditedAt       int64            `json:"edited_at,omitempty"`
	ReadBy         map[string]int64 `json:"read_by,omitempty"`
}

// View 產生對外表示, deleted 時清掉 body 與 read_by
func (m *ChatMessage) View() MessageView {
	v := MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		State:          MessageStateActive,
		Body:           m.Body,
		Seq:            m.Seq,
		CreatedAt:      m.CreatedAt,
		EditedAt:       m.EditedAt,
		ReadBy:         m.ReadBy,
	}
	if m.IsDeleted() {
		v.State = MessageStateDeleted
		v.Body = ""
		v.ReadBy = nil
	}
	return v
}

// ConversationUnreadInfo definition unread by conversation
type ConversationUnreadInfo struct {
	ConversationID      string `bson:"_id" json:"conversation_id"`
	UnreadCount         int    `bson:"unread_count" json:"unread_count"`
	LastUnreadTimeStamp int64  `bson:"last_unread_timestamp" json:"last_unread_timestamp"`
}
