package domain

// Action websocket request action
type Action string

const (
	// JoinConversation websocket action join_conv, 訂閱該 conversation 的事件
	JoinConversation Action = "join_conv"
	// LeaveConversation websocket action leave_conv
	LeaveConversation Action = "leave_conv"

	// SendMessage websocket action send_message
	SendMessage Action = "send_message"
	// EditMessage websocket action edit_message
	EditMessage Action = "edit_message"
	// DeleteMessage websocket action delete_message
	DeleteMessage Action = "delete_message"

	// ReadMessage websocket action read_message, 移動 watermark
	ReadMessage Action = "read_message"
	// GetUnread websocket action get_unread
	GetUnread Action = "get_unread"

	// Typing websocket action typing, ephemeral, 不落地
	Typing Action = "typing"

	// NotifyEvent websocket action notify_event, server 推播用
	NotifyEvent Action = "notify_event"
)

// EventKind 事件種類 tag
type EventKind string

const (
	// EventMessageNew 新訊息
	EventMessageNew EventKind = "message:new"
	// EventMessageUpdated 訊息編輯
	EventMessageUpdated EventKind = "message:updated"
	// EventMessageDeleted 訊息刪除 (tombstone)
	EventMessageDeleted EventKind = "message:deleted"
	// EventConversationUpdated conversation 狀態變更
	EventConversationUpdated EventKind = "conversation:updated"
	// EventTyping 輸入中, ephemeral
	EventTyping EventKind = "typing"
	// EventPresenceOffline 成員離線
	EventPresenceOffline EventKind = "presence:offline"
)

// Event 推播事件封包, payload 帶異動實體的完整狀態
type Event struct {
	Kind           EventKind     `json:"event"`
	ConversationID string        `json:"conversation_id"`
	UserID         string        `json:"user_id,omitempty"` // typing / presence 的來源
	Message        *MessageView  `json:"message,omitempty"`
	Conversation   *Conversation `json:"conversation,omitempty"`
	At             int64         `json:"at"`
}

// WSRequest websocket Request
type WSRequest struct {
	Action         string `json:"action"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Body           string `json:"body"`
	Cursor         string `json:"cursor"`
	Limit          int    `json:"limit"`
}

// WSResponse websocket Response
type WSResponse struct {
	Action  string                 `json:"action"`
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}
