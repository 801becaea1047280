package repository

import (
	"context"

	"messaging_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// WatermarkRepository definition read watermark store
type WatermarkRepository interface {
	// Upsert last-write-wins, $max 保證 seq 不回退
	Upsert(ctx context.Context, wm *domain.ReadWatermark) error
	Find(ctx context.Context, convID, userID string) (*domain.ReadWatermark, error)
}

type watermarkRepository struct {
	coll *mongo.Collection
}

// NewMongoWatermarkRepository create new mongo watermark repository
func NewMongoWatermarkRepository(db *mongo.Database) WatermarkRepository {
	return &watermarkRepository{
		coll: db.Collection("read_watermarks"),
	}
}

// Upsert upsert watermark, keyed by (conversation_id, user_id)
func (r *watermarkRepository) Upsert(ctx context.Context, wm *domain.ReadWatermark) error {
	filter := bson.M{"conversation_id": wm.ConversationID, "user_id": wm.UserID}
	update := bson.M{
		// 併發 markAsRead 下 $max 讓舊的寫入自然輸掉, 不會把 watermark 拉回去
		"$max": bson.M{
			"last_read_seq": wm.LastReadSeq,
			"last_read_at":  wm.LastReadAt,
		},
		"$setOnInsert": bson.M{
			"conversation_id": wm.ConversationID,
			"user_id":         wm.UserID,
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := r.coll.UpdateOne(ctx, filter, update, opts)
	return err
}

// Find find watermark, 不存在回傳 nil
func (r *watermarkRepository) Find(ctx context.Context, convID, userID string) (*domain.ReadWatermark, error) {
	filter := bson.M{"conversation_id": convID, "user_id": userID}
	var wm domain.ReadWatermark
	err := r.coll.FindOne(ctx, filter).Decode(&wm)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wm, nil
}
