package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewHub(client, zap.NewNop())
}

func newHubClient(hub *Hub, userID string, buffer int) *Client {
	return &Client{
		hub:           hub,
		send:          make(chan *ServerFrame, buffer),
		done:          make(chan struct{}),
		userID:        userID,
		subscriptions: make(map[string]bool),
		logger:        zap.NewNop(),
	}
}

func TestDeliver_FansOutToSubscribers(t *testing.T) {
	hub := newTestHub(t)
	client := newHubClient(hub, "u1", 4)
	hub.Register(context.Background(), client)
	hub.Subscribe(client, "room:r1")

	frame := &ServerFrame{Channel: "room:r1", Event: json.RawMessage(`{"kind":"message.created"}`)}
	hub.deliver(frame)

	select {
	case got := <-client.send:
		assert.Equal(t, "room:r1", got.Channel)
	default:
		t.Fatal("expected a delivered frame")
	}
}

func TestDeliver_EvictsStalledClient(t *testing.T) {
	hub := newTestHub(t)
	client := newHubClient(hub, "u1", 1)
	hub.Register(context.Background(), client)
	hub.Subscribe(client, "room:r1")

	frame := &ServerFrame{Channel: "room:r1", Event: json.RawMessage(`{}`)}
	hub.deliver(frame) // fills the one-slot buffer
	hub.deliver(frame) // buffer full, client is dropped

	hub.mu.RLock()
	_, registered := hub.clients[client]
	_, subscribed := hub.channels["room:r1"]
	hub.mu.RUnlock()
	assert.False(t, registered)
	assert.False(t, subscribed)

	select {
	case <-client.done:
	default:
		t.Fatal("eviction must signal the client's done channel")
	}
}

// A frame arriving on the connection right after the hub evicted the client
// still reports its error through sendError. The send channel must stay open
// for that, a send on a closed channel panics even under select/default.
func TestSendError_AfterEviction(t *testing.T) {
	hub := newTestHub(t)
	client := newHubClient(hub, "u1", 1)
	hub.Register(context.Background(), client)
	hub.Subscribe(client, "room:r1")

	frame := &ServerFrame{Channel: "room:r1", Event: json.RawMessage(`{}`)}
	hub.deliver(frame)
	hub.deliver(frame) // evicts the stalled client

	require.NotPanics(t, func() {
		client.sendError("room:r1", "not a member of this room")
	})

	// Unregister after eviction stays a no-op.
	require.NotPanics(t, func() { hub.Unregister(client) })
}

func TestSubscribe_RequiresRegisteredClient(t *testing.T) {
	hub := newTestHub(t)
	client := newHubClient(hub, "u1", 1)

	hub.Subscribe(client, "room:r1")

	hub.mu.RLock()
	_, ok := hub.channels["room:r1"]
	hub.mu.RUnlock()
	assert.False(t, ok)
}
