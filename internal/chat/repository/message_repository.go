package repository

import (
	"context"
	"strings"

	"messaging_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository definition message store
type MessageRepository interface {
	// InsertMessage 取號 + 寫入訊息 + 更新 conversation.last_message_id/updated_at
	// 盡可能在單一 transaction 內完成 (見 insertSequential 的退回路徑)
	InsertMessage(ctx context.Context, msg *domain.ChatMessage) error
	FindByID(ctx context.Context, messageID string) (*domain.ChatMessage, error)
	UpdateBody(ctx context.Context, messageID, newBody string, editedAt int64) error
	SoftDelete(ctx context.Context, messageID string, deletedAt int64) error
	// SoftDeleteByConversation conversation 關閉時整批 tombstone
	SoftDeleteByConversation(ctx context.Context, convID string, deletedAt int64) error
	// ListByConversation seq desc, beforeSeq=0 代表從最新開始
	ListByConversation(ctx context.Context, convID string, beforeSeq int64, limit int64) ([]domain.ChatMessage, error)
	// MarkReadUpTo 將 conversation 內 seq <= upToSeq 且尚未讀的訊息補上 read_by
	MarkReadUpTo(ctx context.Context, convID, userID string, upToSeq, readAt int64) error
	CountUnread(ctx context.Context, convID, userID string) (int64, error)
	// CountUnreadByConversation 只計數不撈 body 的聚合查詢
	CountUnreadByConversation(ctx context.Context, userID string, convIDs []string) ([]domain.ConversationUnreadInfo, error)
}

type chatMessageRepository struct {
	client   *mongo.Client
	msgColl  *mongo.Collection
	convColl *mongo.Collection
}

// NewMongoChatMessageRepository create a MessageRepository
func NewMongoChatMessageRepository(db *mongo.Database) MessageRepository {
	return &chatMessageRepository{
		client:   db.Client(),
		msgColl:  db.Collection("messages"),
		convColl: db.Collection("conversations"),
	}
}

// InsertMessage 發送訊息
// 1. conversation 取號 ($inc seq) 並更新 updated_at
// 2. 寫入 message
// 3. 更新 last_message_id (帶 seq 條件, 晚到的舊訊息不得回蓋新指標)
func (r *chatMessageRepository) InsertMessage(ctx context.Context, msg *domain.ChatMessage) error {
	sess, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, r.insertSteps(sc, msg)
	})
	if err != nil && isTxnUnsupported(err) {
		// standalone mongo 沒有 replica set, 無法開 transaction
		// 退回逐筆寫入: seq 取號仍為原子, last_message_id 靠 seq 條件防回蓋
		return r.insertSteps(ctx, msg)
	}
	return err
}

func (r *chatMessageRepository) insertSteps(ctx context.Context, msg *domain.ChatMessage) error {
	after := options.After
	res := r.convColl.FindOneAndUpdate(ctx,
		bson.M{"_id": msg.ConversationID},
		bson.M{
			"$inc": bson.M{"seq": 1},
			"$set": bson.M{"updated_at": msg.CreatedAt},
		},
		&options.FindOneAndUpdateOptions{ReturnDocument: &after},
	)
	var conv domain.Conversation
	if err := res.Decode(&conv); err != nil {
		return err
	}
	msg.Seq = conv.Seq

	if _, err := r.msgColl.InsertOne(ctx, msg); err != nil {
		return err
	}

	_, err := r.convColl.UpdateOne(ctx,
		bson.M{"_id": msg.ConversationID, "seq": msg.Seq},
		bson.M{"$set": bson.M{"last_message_id": msg.ID}},
	)
	return err
}

// isTxnUnsupported transaction 不支援時 mongo 回傳 IllegalOperation
func isTxnUnsupported(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Transaction numbers are only allowed") ||
		strings.Contains(msg, "IllegalOperation")
}

// FindByID find message by id, 不存在回傳 nil
func (r *chatMessageRepository) FindByID(ctx context.Context, messageID string) (*domain.ChatMessage, error) {
	var msg domain.ChatMessage
	err := r.msgColl.FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateBody update message body and edited_at
func (r *chatMessageRepository) UpdateBody(ctx context.Context, messageID, newBody string, editedAt int64) error {
	filter := bson.M{"_id": messageID, "deleted_at": bson.M{"$exists": false}}
	update := bson.M{"$set": bson.M{"body": newBody, "edited_at": editedAt}}
	_, err := r.msgColl.UpdateOne(ctx, filter, update)
	return err
}

// SoftDelete 留 tombstone, 不做 hard delete
func (r *chatMessageRepository) SoftDelete(ctx context.Context, messageID string, deletedAt int64) error {
	filter := bson.M{"_id": messageID}
	update := bson.M{"$set": bson.M{"deleted_at": deletedAt}}
	_, err := r.msgColl.UpdateOne(ctx, filter, update)
	return err
}

// SoftDeleteByConversation 批次 tombstone, 已刪除的不重蓋 deleted_at
func (r *chatMessageRepository) SoftDeleteByConversation(ctx context.Context, convID string, deletedAt int64) error {
	filter := bson.M{
		"conversation_id": convID,
		"deleted_at":      bson.M{"$exists": false},
	}
	update := bson.M{"$set": bson.M{"deleted_at": deletedAt}}
	_, err := r.msgColl.UpdateMany(ctx, filter, update)
	return err
}

// ListByConversation list message by conversation, seq desc
func (r *chatMessageRepository) ListByConversation(ctx context.Context, convID string, beforeSeq int64, limit int64) ([]domain.ChatMessage, error) {
	filter := bson.M{"conversation_id": convID}
	if beforeSeq > 0 {
		filter["seq"] = bson.M{"$lt": beforeSeq}
	}
	opts := options.Find().
		SetSort(bson.M{"seq": -1}).
		SetLimit(limit)
	cur, err := r.msgColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var messages []domain.ChatMessage
	if err := cur.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkReadUpTo 補 read_by, 已讀過的不再覆蓋 (已讀時間單調)
func (r *chatMessageRepository) MarkReadUpTo(ctx context.Context, convID, userID string, upToSeq, readAt int64) error {
	readKey := "read_by." + userID
	filter := bson.M{
		"conversation_id": convID,
		"seq":             bson.M{"$lte": upToSeq},
		"sender_id":       bson.M{"$ne": userID},
		readKey:           bson.M{"$exists": false},
	}
	update := bson.M{"$set": bson.M{readKey: readAt}}
	_, err := r.msgColl.UpdateMany(ctx, filter, update)
	return err
}

// CountUnread count unread message in one conversation
func (r *chatMessageRepository) CountUnread(ctx context.Context, convID, userID string) (int64, error) {
	filter := bson.M{
		"conversation_id":   convID,
		"sender_id":         bson.M{"$ne": userID},
		"read_by." + userID: bson.M{"$exists": false},
		"deleted_at":        bson.M{"$exists": false},
	}
	return r.msgColl.CountDocuments(ctx, filter)
}

// CountUnreadByConversation 各 conversation 的未讀統計
func (r *chatMessageRepository) CountUnreadByConversation(ctx context.Context, userID string, convIDs []string) ([]domain.ConversationUnreadInfo, error) {
	if len(convIDs) == 0 {
		return nil, nil
	}

	pipeline := mongo.Pipeline{
		// 1. 限定在該 user 參與的 conversation
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "conversation_id", Value: bson.D{{Key: "$in", Value: convIDs}}},
			{Key: "sender_id", Value: bson.D{{Key: "$ne", Value: userID}}},
			{Key: "read_by." + userID, Value: bson.D{{Key: "$exists", Value: false}}},
			{Key: "deleted_at", Value: bson.D{{Key: "$exists", Value: false}}},
		}}},
		// 2. 按 conversation_id 分組, 計算未讀數量與最大時間戳
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$conversation_id"},
			{Key: "unread_count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "last_unread_timestamp", Value: bson.D{{Key: "$max", Value: "$created_at"}}},
		}}},
		// 3. 根據 last_unread_timestamp 降序排序
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "last_unread_timestamp", Value: -1},
		}}},
	}

	cur, err := r.msgColl.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var results []domain.ConversationUnreadInfo
	if err := cur.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}
