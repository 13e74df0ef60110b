package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/moyeolab/moyeo/internal/event"
	"github.com/moyeolab/moyeo/internal/service"
	"github.com/moyeolab/moyeo/internal/storage"
	"github.com/moyeolab/moyeo/middleware/jwt"
)

const (
	writeWait      = 10 * time.Second    // 允许写入消息到对端的最大时间
	pongWait       = 60 * time.Second    // 允许读取下一个 pong 消息的最大时间
	pingPeriod     = (pongWait * 9) / 10 // 发送 ping 到对端的周期。必须小于 pongWait
	maxMessageSize = 16 * 1024           // 允许来自对端的最大消息大小
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Frame is the client-to-server command envelope.
type Frame struct {
	Action  string          `json:"action"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
	actionPublish     = "publish"
)

// Client 代表一个 WebSocket 连接客户端
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan *ServerFrame
	done          chan struct{} // closed by the hub on removal; send never closes
	userID        string
	claims        *jwt.Claims
	subscriptions map[string]bool // guarded by hub.mu

	authorizer *Authorizer
	messages   service.IMessageService
	logger     *zap.Logger
}

// ServeWs upgrades the HTTP request to a websocket connection. The handshake
// credential is validated before the upgrade; an unauthenticated request is
// refused outright instead of being upgraded and then dropped.
func ServeWs(hub *Hub, authorizer *Authorizer, messages service.IMessageService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := authorizer.Authenticate(c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			hub:           hub,
			conn:          conn,
			send:          make(chan *ServerFrame, sendBufferSize),
			done:          make(chan struct{}),
			userID:        claims.UserID,
			claims:        claims,
			subscriptions: make(map[string]bool),
			authorizer:    authorizer,
			messages:      messages,
			logger:        logger,
		}
		hub.Register(context.Background(), client)

		// Every connection listens on its owner's private channel so read
		// receipts and badge updates arrive without an explicit subscribe.
		hub.Subscribe(client, storage.UserChannel(claims.UserID))

		go client.writePump()
		go client.readPump()
	}
}

// readPump 泵送来自 WebSocket 连接的消息到 Hub
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		// 收到 Pong，刷新在线状态
		go c.hub.refreshPresence(context.Background(), c)
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error",
					zap.String("user_id", c.userID),
					zap.Error(err))
			}
			break
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.sendError("", "malformed frame")
			continue
		}
		c.handleFrame(&frame)
	}
}

// handleFrame dispatches one client command. Authorization failures are
// reported back on the connection; the connection itself stays open.
func (c *Client) handleFrame(frame *Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch frame.Action {
	case actionSubscribe:
		if err := c.authorizer.AuthorizeChannel(ctx, c.claims, frame.Channel); err != nil {
			c.sendError(frame.Channel, authErrorMessage(err))
			return
		}
		c.hub.Subscribe(c, frame.Channel)

	case actionUnsubscribe:
		c.hub.Unsubscribe(c, frame.Channel)

	case actionPublish:
		c.handlePublish(ctx, frame)

	default:
		c.sendError(frame.Channel, "unknown action")
	}
}

func (c *Client) handlePublish(ctx context.Context, frame *Frame) {
	roomID, ok := RoomIDFromChannel(frame.Channel)
	if !ok {
		c.sendError(frame.Channel, "publish requires a room channel")
		return
	}

	var req service.SendMessageRequest
	if err := json.Unmarshal(frame.Payload, &req); err != nil {
		c.sendError(frame.Channel, "malformed message payload")
		return
	}

	// Delivery back to subscribers happens through the shared event
	// pipeline once the write commits; no local echo here.
	if _, err := c.messages.SaveMessage(ctx, c.userID, roomID, &req); err != nil {
		c.sendError(frame.Channel, authErrorMessage(err))
		c.logger.Warn("websocket publish rejected",
			zap.String("user_id", c.userID),
			zap.String("room_id", roomID),
			zap.Error(err))
	}
}

// sendError pushes an error event to this connection only.
func (c *Client) sendError(channel, message string) {
	evt := event.Event{
		Kind:    event.KindError,
		UserID:  c.userID,
		Payload: map[string]string{"message": message},
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- &ServerFrame{Channel: channel, Event: body}:
	default:
	}
}

func authErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotRoomMember),
		errors.Is(err, service.ErrMembershipNotFound):
		return "not a member of this room"
	case errors.Is(err, ErrForeignChannel):
		return "cannot use another user's private channel"
	case errors.Is(err, service.ErrNotPaidMember):
		return "payment required before chatting"
	case errors.Is(err, service.ErrRoomNotFound):
		return "room not found"
	default:
		return "request failed"
	}
}

// writePump 泵送来自 Hub 的帧到 WebSocket 连接
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}

		case <-c.done:
			// Hub 已移除该客户端
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
