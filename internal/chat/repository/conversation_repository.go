package repository

import (
	"context"

	"messaging_service/internal/chat/domain"
	errprocess "messaging_service/pkg/err"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConversationRepository definition conversation store
type ConversationRepository interface {
	// EnsureIndexes 建 direct_key 的 partial unique index, 服務啟動時呼叫一次
	EnsureIndexes(ctx context.Context) error
	// CreateConversation 撞到 direct unique index 時回傳 conflict kind
	CreateConversation(ctx context.Context, conv *domain.Conversation) error
	FindByID(ctx context.Context, convID string) (*domain.Conversation, error)
	// FindDirect 找既有的 1對1 conversation (participants 完全相同的一對)
	FindDirect(ctx context.Context, userA, userB string) (*domain.Conversation, error)
	// ListByParticipant updated_at desc 分頁, cursor 為 nil 代表第一頁
	ListByParticipant(ctx context.Context, userID string, cursor *PageCursor, limit int64) ([]domain.Conversation, error)
	// ListIDsByParticipant 只取 id, 給 unread 統計用
	ListIDsByParticipant(ctx context.Context, userID string) ([]string, error)
	// UpdateStatus 條件更新 (from→to), 回傳是否有命中, 沒命中代表輸掉 race
	UpdateStatus(ctx context.Context, convID string, from, to domain.ConversationStatus, now int64) (bool, error)
}

type conversationRepository struct {
	coll *mongo.Collection
}

// NewMongoConversationRepository create new mongo conversation repository
func NewMongoConversationRepository(db *mongo.Database) ConversationRepository {
	return &conversationRepository{
		coll: db.Collection("conversations"),
	}
}

// EnsureIndexes create indexes
func (r *conversationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "direct_key", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			// group 沒有 direct_key, 不吃這條 index
			SetPartialFilterExpression(bson.M{"direct_key": bson.M{"$exists": true}}),
	})
	return err
}

// CreateConversation create conversation
func (r *conversationRepository) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	_, err := r.coll.InsertOne(ctx, conv)
	if mongo.IsDuplicateKeyError(err) {
		// 同一對 direct 被併發建立, caller 重查既有那筆
		return errprocess.New(errprocess.KindConflict, "conversation already exists")
	}
	return err
}

// FindByID find conversation by id, 不存在回傳 nil
func (r *conversationRepository) FindByID(ctx context.Context, convID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.coll.FindOne(ctx, bson.M{"_id": convID}).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindDirect find direct conversation with the exact pair
func (r *conversationRepository) FindDirect(ctx context.Context, userA, userB string) (*domain.Conversation, error) {
	filter := bson.M{
		"kind":       domain.ConversationKindDirect,
		"direct_key": domain.DirectPairKey(userA, userB),
	}
	var conv domain.Conversation
	err := r.coll.FindOne(ctx, filter).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListByParticipant list conversations by participant, updated_at desc
func (r *conversationRepository) ListByParticipant(ctx context.Context, userID string, cursor *PageCursor, limit int64) ([]domain.Conversation, error) {
	filter := bson.M{"participants": userID}
	if cursor != nil {
		// (updated_at, _id) 複合游標, 避免 offset 在併發寫入下跳動
		filter["$or"] = bson.A{
			bson.M{"updated_at": bson.M{"$lt": cursor.Ts}},
			bson.M{"updated_at": cursor.Ts, "_id": bson.M{"$lt": cursor.ID}},
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var convs []domain.Conversation
	if err := cur.All(ctx, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// ListIDsByParticipant list conversation ids by participant
func (r *conversationRepository) ListIDsByParticipant(ctx context.Context, userID string) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cur, err := r.coll.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cur.Err()
}

// UpdateStatus update conversation status, 帶 from 條件防止併發互蓋
func (r *conversationRepository) UpdateStatus(ctx context.Context, convID string, from, to domain.ConversationStatus, now int64) (bool, error) {
	filter := bson.M{"_id": convID, "status": from}
	update := bson.M{"$set": bson.M{"status": to, "updated_at": now}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}
