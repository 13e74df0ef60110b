package event

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/moyeolab/moyeo/internal/storage"
)

// Producer is the durable pipeline for events that need asynchronous
// post-processing (unread badge recomputation, push notifications).
type Producer interface {
	SendJSON(key string, value any) error
}

// BadgeNotifier recomputes unread counts for every member of a room and
// pushes them to each member's private channel. Used inline when no
// pipeline producer is configured.
type BadgeNotifier interface {
	PushUnreadCounts(ctx context.Context, roomID string)
}

// FanoutDispatcher fans committed events out to the realtime layer:
// room-scoped events go to the room's redis pub/sub channel, read updates
// additionally to the acting user's private channel, and message-created
// events enter the badge pipeline.
//
// Dispatch is fire-and-forget; a slow subscriber or broker never blocks the
// request that produced the event.
type FanoutDispatcher struct {
	rdb      *redis.Client
	producer Producer
	badges   BadgeNotifier
	logger   *zap.Logger
	timeout  time.Duration
}

func NewFanoutDispatcher(rdb *redis.Client, producer Producer, badges BadgeNotifier, logger *zap.Logger) *FanoutDispatcher {
	return &FanoutDispatcher{
		rdb:      rdb,
		producer: producer,
		badges:   badges,
		logger:   logger,
		timeout:  5 * time.Second,
	}
}

// SetBadgeNotifier installs the inline badge fallback. The notifier itself
// publishes through this dispatcher, so it is wired in after construction.
func (d *FanoutDispatcher) SetBadgeNotifier(badges BadgeNotifier) {
	d.badges = badges
}

func (d *FanoutDispatcher) Dispatch(events []Event) {
	go d.dispatch(events)
}

func (d *FanoutDispatcher) dispatch(events []Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			d.logger.Error("failed to marshal event",
				zap.String("kind", string(e.Kind)),
				zap.Error(err))
			continue
		}

		if e.RoomID != "" {
			if err := d.rdb.Publish(ctx, storage.RoomChannel(e.RoomID), payload).Err(); err != nil {
				d.logger.Warn("failed to publish room event",
					zap.String("kind", string(e.Kind)),
					zap.String("room_id", e.RoomID),
					zap.Error(err))
			}
		}

		// Read updates are mirrored to the actor's private channel so the
		// user's other devices can drop their badge immediately.
		if e.Kind == KindReadUpdated && e.UserID != "" {
			if err := d.rdb.Publish(ctx, storage.UserChannel(e.UserID), payload).Err(); err != nil {
				d.logger.Warn("failed to publish user event",
					zap.String("user_id", e.UserID),
					zap.Error(err))
			}
		}

		if e.Kind == KindMessageCreated {
			d.enqueueBadgeRecompute(ctx, e)
		}
	}
}

// enqueueBadgeRecompute hands a message-created event to the kafka pipeline.
// Without a producer (degraded mode) the recompute runs inline instead, so
// badge pushes keep working on a single node without brokers.
func (d *FanoutDispatcher) enqueueBadgeRecompute(ctx context.Context, e Event) {
	if d.producer != nil {
		err := d.producer.SendJSON(e.RoomID, e)
		if err == nil {
			return
		}
		d.logger.Warn("failed to enqueue badge recompute, falling back inline",
			zap.String("room_id", e.RoomID),
			zap.Error(err))
	}
	if d.badges != nil {
		d.badges.PushUnreadCounts(ctx, e.RoomID)
	}
}
