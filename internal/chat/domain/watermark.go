package domain

// ReadWatermark 每個 (conversation, user) 一筆, 記錄已讀到哪
// LastReadSeq 單調遞增, 往回移動一律 no-op
type ReadWatermark struct {
	ConversationID string `bson:"conversation_id" json:"conversation_id"`
	UserID         string `bson:"user_id" json:"user_id"`
	LastReadSeq    int64  `bson:"last_read_seq" json:"last_read_seq"`
	LastReadAt     int64  `bson:"last_read_at" json:"last_read_at"`
}
