package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/moyeolab/moyeo/internal/event"
	"github.com/moyeolab/moyeo/internal/model"
	"github.com/moyeolab/moyeo/internal/repository"
	"github.com/moyeolab/moyeo/internal/storage"
)

// IUnreadService tracks per-member read pointers and unread counts.
type IUnreadService interface {
	MarkRead(ctx context.Context, userID, roomID string, requestedLastReadMessageID *int64) (*RoomUnreadSummary, error)
	GetUnreadCounts(ctx context.Context, userID string) ([]RoomUnreadSummary, error)
	PushUnreadCounts(ctx context.Context, roomID string)
}

// UnreadService implements IUnreadService.
type UnreadService struct {
	membershipRepo repository.IMembershipRepository
	messageRepo    repository.IMessageRepository
	roomRepo       repository.IRoomRepository
	events         *event.Publisher
	rdb            *redis.Client
	logger         *zap.Logger
}

func NewUnreadService(
	membershipRepo repository.IMembershipRepository,
	messageRepo repository.IMessageRepository,
	roomRepo repository.IRoomRepository,
	events *event.Publisher,
	rdb *redis.Client,
	logger *zap.Logger,
) IUnreadService {
	return &UnreadService{
		membershipRepo: membershipRepo,
		messageRepo:    messageRepo,
		roomRepo:       roomRepo,
		events:         events,
		rdb:            rdb,
		logger:         logger,
	}
}

// MarkRead advances the member's read pointer and returns the fresh unread
// summary.
//
// A nil requested id means "read up to the newest message" and resolves to
// the room's latest message id. A non-nil id is clamped down to that latest
// id, guarding against stale clients referencing ids beyond what exists.
// The stored pointer only ever moves forward: the conditional update in the
// repository applies max(current, clamped), so concurrent calls from
// multiple devices converge to the maximum regardless of arrival order.
func (s *UnreadService) MarkRead(ctx context.Context, userID, roomID string, requestedLastReadMessageID *int64) (*RoomUnreadSummary, error) {
	membership, err := s.membershipRepo.Find(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	latest, err := s.messageRepo.Latest(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to find latest message: %w", err)
	}
	if latest == nil {
		// Empty room: nothing to read, nothing to mutate.
		return &RoomUnreadSummary{RoomID: roomID, UnreadCount: 0}, nil
	}

	target := latest.ID
	if requestedLastReadMessageID != nil && *requestedLastReadMessageID < target {
		target = *requestedLastReadMessageID
	}

	newPointer := target
	if membership.LastReadMessageID != nil && *membership.LastReadMessageID > newPointer {
		newPointer = *membership.LastReadMessageID
	}

	if membership.LastReadMessageID == nil || newPointer != *membership.LastReadMessageID {
		outbox := s.events.Begin()
		advanced, err := s.membershipRepo.AdvanceReadPointer(ctx, roomID, userID, newPointer)
		if err != nil {
			outbox.Discard()
			return nil, fmt.Errorf("failed to advance read pointer: %w", err)
		}
		if advanced {
			unread, err := s.messageRepo.CountAfter(ctx, roomID, &newPointer)
			if err != nil {
				return nil, fmt.Errorf("failed to count unread messages: %w", err)
			}
			outbox.Publish(event.Event{
				Kind:   event.KindReadUpdated,
				RoomID: roomID,
				UserID: userID,
				Payload: map[string]any{
					"last_read_message_id": newPointer,
					"unread_count":         unread,
				},
			})
			outbox.Commit()
		} else {
			// A concurrent call already moved the pointer at least this far.
			outbox.Discard()
		}
	}

	// The stored pointer is now >= newPointer; compute the response from the
	// known value instead of re-reading the membership row.
	unread, err := s.messageRepo.CountAfter(ctx, roomID, &newPointer)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread messages: %w", err)
	}

	return &RoomUnreadSummary{
		RoomID:             roomID,
		UnreadCount:        unread,
		LastReadMessageID:  &newPointer,
		LastMessagePreview: previewOf(latest),
	}, nil
}

// GetUnreadCounts returns one summary per room the user is a member of.
func (s *UnreadService) GetUnreadCounts(ctx context.Context, userID string) ([]RoomUnreadSummary, error) {
	memberships, err := s.membershipRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	summaries := make([]RoomUnreadSummary, 0, len(memberships))
	for _, m := range memberships {
		summary, err := s.summarize(ctx, m)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

// PushUnreadCounts recomputes every member's unread count for the room and
// pushes each one to that member's private channel. Counts are re-queried
// from the store rather than derived from the triggering message, so badges
// stay correct even when pushes race with reads.
func (s *UnreadService) PushUnreadCounts(ctx context.Context, roomID string) {
	memberships, err := s.membershipRepo.FindByRoom(ctx, roomID)
	if err != nil {
		s.logger.Warn("failed to list room members for badge push",
			zap.String("room_id", roomID),
			zap.Error(err))
		return
	}

	for _, m := range memberships {
		summary, err := s.summarize(ctx, m)
		if err != nil {
			s.logger.Warn("failed to compute unread summary",
				zap.String("room_id", roomID),
				zap.String("user_id", m.UserID),
				zap.Error(err))
			continue
		}

		payload, err := json.Marshal(event.Event{
			Kind:    event.KindUnreadBadge,
			RoomID:  roomID,
			UserID:  m.UserID,
			Payload: summary,
		})
		if err != nil {
			continue
		}
		if err := s.rdb.Publish(ctx, storage.UserChannel(m.UserID), payload).Err(); err != nil {
			s.logger.Warn("failed to push unread badge",
				zap.String("user_id", m.UserID),
				zap.Error(err))
		}
	}
}

func (s *UnreadService) summarize(ctx context.Context, m *model.Membership) (*RoomUnreadSummary, error) {
	unread, err := s.messageRepo.CountAfter(ctx, m.RoomID, m.LastReadMessageID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread messages: %w", err)
	}

	summary := &RoomUnreadSummary{
		RoomID:            m.RoomID,
		UnreadCount:       unread,
		LastReadMessageID: m.LastReadMessageID,
	}

	if room, err := s.roomRepo.FindByID(ctx, m.RoomID); err == nil {
		summary.RoomTitle = room.Title
	}

	latest, err := s.messageRepo.Latest(ctx, m.RoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to find latest message: %w", err)
	}
	summary.LastMessagePreview = previewOf(latest)

	return summary, nil
}

const previewLimit = 80

// previewOf renders a short text preview of a message for room lists and
// badge pushes.
func previewOf(msg *model.Message) *string {
	if msg == nil {
		return nil
	}
	var preview string
	if msg.Content != nil {
		preview = *msg.Content
		// Truncate on a rune boundary; a byte slice could split a multibyte
		// character and emit invalid UTF-8.
		if runes := []rune(preview); len(runes) > previewLimit {
			preview = string(runes[:previewLimit])
		}
	} else {
		preview = "[" + msg.Type + "]"
	}
	return &preview
}
