package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const presenceTTL = 5 * time.Minute

// ServerFrame is the envelope delivered to connected clients: the channel
// the event was published on and the event body as produced upstream.
type ServerFrame struct {
	Channel string          `json:"channel"`
	Event   json.RawMessage `json:"event"`
}

// Hub 维护活跃的客户端连接并按频道分发事件
//
// Events reach the hub exclusively through the Redis subscription, so every
// process in the deployment sees the same stream regardless of which one
// handled the originating request.
type Hub struct {
	// 注册的客户端
	clients map[*Client]bool

	// 频道名对应的客户端集合 channel -> Client -> bool
	channels map[string]map[*Client]bool

	// 互斥锁，保护 map 的并发读写
	mu sync.RWMutex

	// 广播帧通道 (内部使用)
	broadcast chan *ServerFrame

	redis  *redis.Client
	logger *zap.Logger
}

func NewHub(redisClient *redis.Client, logger *zap.Logger) *Hub {
	return &Hub{
		clients:   make(map[*Client]bool),
		channels:  make(map[string]map[*Client]bool),
		broadcast: make(chan *ServerFrame),
		redis:     redisClient,
		logger:    logger,
	}
}

// Run drives the hub until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	go h.subscribeToRedis(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-h.broadcast:
			h.deliver(frame)
		}
	}
}

// Register adds a connection to the hub and marks its owner online.
func (h *Hub) Register(ctx context.Context, client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	h.refreshPresence(ctx, client)
}

// Unregister drops a connection, all of its subscriptions and its presence
// key. Safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.removeClient(client)
	_ = h.redis.Del(context.Background(), presenceKey(client.userID)).Err()
}

// Subscribe attaches a client to a channel. Authorization happens before
// this is called.
func (h *Hub) Subscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Client]bool)
	}
	h.channels[channel][client] = true
	client.subscriptions[channel] = true
}

// Unsubscribe detaches a client from a channel.
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(client, channel)
}

func (h *Hub) detachLocked(client *Client, channel string) {
	if subscribers, ok := h.channels[channel]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.channels, channel)
		}
	}
	delete(client.subscriptions, channel)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for channel := range client.subscriptions {
		h.detachLocked(client, channel)
	}
	// Signal shutdown instead of closing the send channel: the client's own
	// readPump may still push error frames, and a send on a closed channel
	// panics even inside a select with a default case. The registered-check
	// above makes the close one-shot.
	close(client.done)
}

// deliver fans a frame out to local subscribers of its channel.
func (h *Hub) deliver(frame *ServerFrame) {
	h.mu.RLock()
	// 收集发送缓冲区已满的客户端，避免在 RLock 中修改 map
	var stalled []*Client
	if subscribers, ok := h.channels[frame.Channel]; ok {
		for client := range subscribers {
			select {
			case client.send <- frame:
			default:
				stalled = append(stalled, client)
			}
		}
	}
	h.mu.RUnlock()

	// A full send buffer means the client stopped draining; drop it rather
	// than block delivery for everyone else on the channel.
	for _, client := range stalled {
		h.removeClient(client)
	}
}

// subscribeToRedis bridges the shared pub/sub stream into local delivery.
func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.redis.PSubscribe(ctx, "room:*", "user:*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			frame := &ServerFrame{
				Channel: msg.Channel,
				Event:   json.RawMessage(msg.Payload),
			}
			select {
			case h.broadcast <- frame:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) refreshPresence(ctx context.Context, client *Client) {
	if err := h.redis.Set(ctx, presenceKey(client.userID), "1", presenceTTL).Err(); err != nil {
		h.logger.Warn("failed to refresh presence key",
			zap.String("user_id", client.userID),
			zap.Error(err))
	}
}

func presenceKey(userID string) string {
	return "presence:" + userID
}
