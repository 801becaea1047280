package repository

import (
	"context"
	"encoding/json"

	"messaging_service/internal/chat/domain"

	"github.com/segmentio/kafka-go"
)

// EventArchive definition 領域事件落地 (離線消費/稽核用)
// 與 live fan-out 同為 best-effort, 失敗不影響主寫入
type EventArchive interface {
	Append(ctx context.Context, evt domain.Event) error
}

type kafkaEventArchive struct {
	writer *kafka.Writer
}

// NewKafkaEventArchive create kafka event archive
func NewKafkaEventArchive(writer *kafka.Writer) EventArchive {
	return &kafkaEventArchive{writer: writer}
}

// Append 寫入一筆事件, key 用 conversation_id 保持同一 conversation 的順序
func (a *kafkaEventArchive) Append(ctx context.Context, evt domain.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return a.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.ConversationID),
		Value: data,
	})
}
