package app

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"messaging_service/internal/chat/domain"
	"messaging_service/internal/chat/repository"
	errprocess "messaging_service/pkg/err"
	"messaging_service/pkg/logger"
	"messaging_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatWebsocketHandler 可包含所有需要的 UseCase
type ChatWebsocketHandler struct {
	convUC   *ConversationUseCase
	msgUC    *MessageUseCase
	fanout   *FanoutPublisher
	pubsub   repository.EventPubSub
	registry *SubscriptionRegistry
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(
	convUC *ConversationUseCase,
	msgUC *MessageUseCase,
	fanout *FanoutPublisher,
	pubsub repository.EventPubSub,
	registry *SubscriptionRegistry,
) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		convUC:   convUC,
		msgUC:    msgUC,
		fanout:   fanout,
		pubsub:   pubsub,
		registry: registry,
	}
}

// wsWriter websocket 連線的寫入面
type wsWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// wsClient 包一層 write lock
// 訂閱 goroutine、ping goroutine 與主迴圈都會寫同一條連線, 不能併發寫
type wsClient struct {
	conn wsWriter
	mu   sync.Mutex
}

func (c *wsClient) send(resp domain.WSResponse) {
	b, _ := json.Marshal(resp)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logger.Log.Errorf("write message error:", err)
	}
}

func (c *wsClient) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.PingMessage, []byte("ping message"))
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	tokenUser := conn.Locals(middlewares.TokenUserID)
	userID, ok := tokenUser.(string)
	logger.Log.Info("websocket handle userID", zap.String("userID", userID), zap.String("ok", strconv.FormatBool(ok)))

	client := &wsClient{conn: conn}
	connID := uuid.New().String()
	ticker := time.NewTicker(10 * time.Minute)

	defer func() {
		ticker.Stop()
		logger.Log.Info("websocket close", zap.String("userID", userID))
		// 斷線: 取消所有訂閱並對原本加入的 conversation 發 presence-offline
		for _, convID := range h.registry.DisconnectAll(connID) {
			h.fanout.PresenceOffline(convID, userID)
		}
		conn.Close()
	}()

	//client發出close
	//fiber會自動處理(在read msg 回傳err),故需要SetCloseHandler另外接出
	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Infof("WebSocket closed:", conn.RemoteAddr())
		return nil
	})

	//server發出ping之後client連線正常會回pong
	conn.SetPongHandler(func(appData string) error {
		logger.Log.Infof("Received PONG:", appData)
		return nil
	})

	//client發出ping
	conn.SetPingHandler(func(appData string) error {
		logger.Log.Infof("Received PING:", appData)
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(appData),
			time.Now().Add(time.Second),
		)
	})

	ctxClose, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 定期發送 Ping, 跟其他寫入共用 client 的 write lock
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := client.ping(); err != nil {
					logger.Log.Errorf("Ping error:", err)
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		// 1. 讀取前端訊息
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Errorf("Connection closed:", err)
			} else {
				//直接斷線 1006
				logger.Log.Errorf("websocket read error:", err)
			}
			return
		}
		h.execWebsocketAction(ctx, client, connID, userID, mt, message)
	}
}

func (h *ChatWebsocketHandler) execWebsocketAction(ctx context.Context, client *wsClient, connID, userID string, mt int, msg []byte) {
	switch mt {
	case websocket.TextMessage:
		h.textMessageAction(ctx, client, connID, userID, msg)
	default:
		h.sendError(client, "unknown message type")
	}
}

func (h *ChatWebsocketHandler) textMessageAction(ctx context.Context, client *wsClient, connID, userID string, msg []byte) {

	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		logger.Log.Errorf("json unmarshal error:", err)
		return
	}

	resp := domain.WSResponse{Action: req.Action, Success: false, Payload: map[string]interface{}{}}
	switch req.Action {

	//加入 conversation channel, 沒加入前收不到該 conversation 的事件
	case string(domain.JoinConversation):
		// join 必須過 participant 授權, 非成員擋在這裡
		conv, err := h.convUC.GetConversation(ctx, req.ConversationID, userID)
		if err != nil {
			resp.Error = err.Error()
			resp.Payload["kind"] = string(errprocess.KindOf(err))
			break
		}

		ctxJoin, cancelJoin := context.WithCancel(context.Background())
		h.registry.Join(connID, conv.ID, cancelJoin)
		h.pubsub.Subscribe(ctxJoin, repository.ConversationChannel(conv.ID), func(evt domain.Event) {
			if !shouldDeliver(evt, userID) {
				return
			}
			client.send(domain.WSResponse{
				Action:  string(domain.NotifyEvent),
				Success: true,
				Payload: map[string]interface{}{
					"event":           string(evt.Kind),
					"conversation_id": evt.ConversationID,
					"data":            evt,
				},
			})
		})
		resp.Success = true
		resp.Payload["conversation"] = conv

	//離開 conversation channel
	case string(domain.LeaveConversation):
		if h.registry.Leave(connID, req.ConversationID) {
			resp.Success = true
			resp.Payload["left"] = req.ConversationID
		} else {
			resp.Error = "not joined"
		}

	//傳送訊息, 寫入 db 並推播給 channel 上的連線
	case string(domain.SendMessage):
		m, err := h.msgUC.SendMessage(ctx, req.ConversationID, userID, req.Body)
		if err != nil {
			resp.Error = err.Error()
			resp.Payload["kind"] = string(errprocess.KindOf(err))
		} else {
			resp.Success = true
			resp.Payload["message"] = m.View()
		}

	//編輯訊息
	case string(domain.EditMessage):
		m, err := h.msgUC.EditMessage(ctx, req.MessageID, userID, req.Body)
		if err != nil {
			resp.Error = err.Error()
			resp.Payload["kind"] = string(errprocess.KindOf(err))
		} else {
			resp.Success = true
			resp.Payload["message"] = m.View()
		}

	//刪除訊息 (tombstone)
	case string(domain.DeleteMessage):
		err := h.msgUC.DeleteMessage(ctx, req.MessageID, userID)
		if err != nil {
			resp.Error = err.Error()
			resp.Payload["kind"] = string(errprocess.KindOf(err))
		} else {
			resp.Success = true
		}

	//讀取訊息, watermark 推進到 message_id
	case string(domain.ReadMessage):
		err := h.msgUC.MarkAsRead(ctx, req.ConversationID, userID, req.MessageID)
		if err != nil {
			resp.Error = err.Error()
			resp.Payload["kind"] = string(errprocess.KindOf(err))
		} else {
			resp.Success = true
		}

	//搜尋所有未讀訊息數
	case string(domain.GetUnread):
		infos, err := h.msgUC.UnreadCountAll(ctx, userID)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			for _, unread := range infos {
				resp.Payload[unread.ConversationID] = unread.UnreadCount
			}
		}

	//輸入中, ephemeral, 不落地
	case string(domain.Typing):
		// 已 join 代表授權過, 未 join 不轉發
		if h.registry.Joined(connID, req.ConversationID) {
			h.fanout.Typing(req.ConversationID, userID)
			resp.Success = true
		} else {
			resp.Error = "not joined"
		}

	default:
		h.sendError(client, "unknown action")
		return
	}

	if resp.Error != "" {
		logger.Log.Error("websocket err ", zap.String("UserID", userID), zap.String("Action", req.Action), zap.String("err", resp.Error))
	}
	client.send(resp)
}

// shouldDeliver typing 只推給其他 participants, 自己打字不用收
func shouldDeliver(evt domain.Event, userID string) bool {
	if evt.Kind == domain.EventTyping && evt.UserID == userID {
		return false
	}
	return true
}

func (h *ChatWebsocketHandler) sendError(client *wsClient, errorMsg string) {
	client.send(domain.WSResponse{
		Action:  "error",
		Success: false,
		Payload: map[string]interface{}{
			"error": errorMsg,
		},
	})
}
