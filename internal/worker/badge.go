package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/moyeolab/moyeo/config"
	"github.com/moyeolab/moyeo/internal/event"
)

// BadgeWorker consumes message events from Kafka and recomputes per-user
// unread badge counts for the affected room. Running this as a consumer
// group keeps badge fanout off the request path and lets it scale
// independently of the API process.
type BadgeWorker struct {
	consumerGroup sarama.ConsumerGroup
	topics        []string
	badges        event.BadgeNotifier
	logger        *zap.Logger
	ready         chan bool
	wg            sync.WaitGroup
	cancel        context.CancelFunc
}

// badgeGroupHandler implements sarama.ConsumerGroupHandler.
type badgeGroupHandler struct {
	worker *BadgeWorker
}

func NewBadgeWorker(cfg *config.KafkaConfig, badges event.BadgeNotifier, logger *zap.Logger) (*BadgeWorker, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_6_0_0
	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Net.DialTimeout = 10 * time.Second
	saramaConfig.Net.ReadTimeout = 10 * time.Second
	saramaConfig.Net.WriteTimeout = 10 * time.Second
	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	return &BadgeWorker{
		consumerGroup: consumerGroup,
		topics:        []string{cfg.Topic},
		badges:        badges,
		logger:        logger,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming in a background goroutine and returns once the
// consumer group session is established.
func (w *BadgeWorker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		handler := &badgeGroupHandler{worker: w}
		for {
			if ctx.Err() != nil {
				return
			}

			// Consume blocks until the session ends; loop to rejoin after
			// a rebalance.
			if err := w.consumerGroup.Consume(ctx, w.topics, handler); err != nil {
				w.logger.Error("badge worker consume error", zap.Error(err))
			}

			if ctx.Err() != nil {
				return
			}
			w.ready = make(chan bool)
		}
	}()

	<-w.ready
	return nil
}

// Stop cancels consumption and waits for the worker goroutine to exit.
func (w *BadgeWorker) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()

	if err := w.consumerGroup.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer group: %w", err)
	}
	return nil
}

func (w *BadgeWorker) handle(ctx context.Context, msg *sarama.ConsumerMessage) {
	var evt event.Event
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		w.logger.Warn("badge worker dropped malformed event",
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return
	}

	if evt.Kind != event.KindMessageCreated || evt.RoomID == "" {
		return
	}
	w.badges.PushUnreadCounts(ctx, evt.RoomID)
}

func (h *badgeGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	select {
	case <-h.worker.ready:
	default:
		close(h.worker.ready)
	}
	return nil
}

func (h *badgeGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *badgeGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.worker.handle(session.Context(), msg)
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}
