package app

import (
	"sync"
	"sync/atomic"
	"testing"

	"messaging_service/internal/chat/domain"
	"messaging_service/pkg/logger"

	"github.com/stretchr/testify/assert"
)

// overlapDetectWriter 偵測有沒有兩個 goroutine 同時進到 WriteMessage
type overlapDetectWriter struct {
	inWrite   int32
	overlaps  int32
	writeDone int32
}

func (w *overlapDetectWriter) WriteMessage(messageType int, data []byte) error {
	if !atomic.CompareAndSwapInt32(&w.inWrite, 0, 1) {
		atomic.AddInt32(&w.overlaps, 1)
	}
	for i := 0; i < 100; i++ { // 拉長臨界區, 撞到比較容易被抓到
		_ = i
	}
	atomic.StoreInt32(&w.inWrite, 0)
	atomic.AddInt32(&w.writeDone, 1)
	return nil
}

// 測試 send 跟 ping 併發打同一條連線, 不能同時寫
func TestWSClient_ConcurrentSendAndPing(t *testing.T) {
	logger.SetNewNop()
	writer := &overlapDetectWriter{}
	client := &wsClient{conn: writer}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			client.send(domain.WSResponse{Action: "send_message", Success: true})
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, client.ping())
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&writer.overlaps))
	assert.Equal(t, int32(100), atomic.LoadInt32(&writer.writeDone))
}

// 測試 typing 事件不會推回給打字的人自己
func TestShouldDeliver(t *testing.T) {
	selfID := "user-a"

	assert.False(t, shouldDeliver(domain.Event{Kind: domain.EventTyping, UserID: selfID}, selfID))
	assert.True(t, shouldDeliver(domain.Event{Kind: domain.EventTyping, UserID: "user-b"}, selfID))
	// 自己發的訊息事件照推, client 靠它拿 server 端的 seq
	assert.True(t, shouldDeliver(domain.Event{Kind: domain.EventMessageNew, UserID: selfID}, selfID))
	assert.True(t, shouldDeliver(domain.Event{Kind: domain.EventPresenceOffline, UserID: selfID}, selfID))
}
