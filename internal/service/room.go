package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moyeolab/moyeo/internal/event"
	"github.com/moyeolab/moyeo/internal/model"
	"github.com/moyeolab/moyeo/internal/repository"
	"github.com/moyeolab/moyeo/utils/backoff"
	"github.com/moyeolab/moyeo/utils/invitecode"
)

// CreateRoomRequest carries the room-creation parameters.
type CreateRoomRequest struct {
	Title             string `json:"title" binding:"required,min=1,max=255"`
	Type              string `json:"type"`
	TargetMemberCount int    `json:"target_member_count" binding:"omitempty,min=1"`
}

// IRoomService defines room lifecycle operations.
type IRoomService interface {
	CreateRoom(ctx context.Context, leaderID string, req *CreateRoomRequest) (*model.Room, error)
	JoinRoom(ctx context.Context, userID, code string) (*model.Room, error)
	LeaveRoom(ctx context.Context, userID, roomID string) error
	MarkSucceeded(ctx context.Context, userID, roomID string) error
	ConfirmPayment(ctx context.Context, userID, roomID string) error
	IsMember(ctx context.Context, userID, roomID string) (bool, error)
}

// RoomService implements IRoomService.
type RoomService struct {
	db             TxManager
	roomRepo       repository.IRoomRepository
	membershipRepo repository.IMembershipRepository
	userRepo       repository.IUserRepository
	codes          *invitecode.Generator
	codeAttempts   int
	retryPolicy    backoff.Policy
	events         *event.Publisher
}

func NewRoomService(
	db TxManager,
	roomRepo repository.IRoomRepository,
	membershipRepo repository.IMembershipRepository,
	userRepo repository.IUserRepository,
	codes *invitecode.Generator,
	codeAttempts int,
	events *event.Publisher,
) IRoomService {
	return &RoomService{
		db:             db,
		roomRepo:       roomRepo,
		membershipRepo: membershipRepo,
		userRepo:       userRepo,
		codes:          codes,
		codeAttempts:   codeAttempts,
		retryPolicy:    backoff.DefaultPolicy(),
		events:         events,
	}
}

// CreateRoom creates a room with a freshly allocated invite code and the
// creator as its leader.
//
// Allocation is retried at two levels. The allocator regenerates on known
// collisions (pre-checked against existing rooms). Two concurrent creations
// can still both pass the pre-check with the same code and race on the
// unique index, so the whole create transaction is retried with exponential
// backoff when the insert loses that race.
func (s *RoomService) CreateRoom(ctx context.Context, leaderID string, req *CreateRoomRequest) (*model.Room, error) {
	leader, err := s.userRepo.FindByID(ctx, leaderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	roomType := req.Type
	if roomType == "" {
		roomType = model.RoomTypeBasic
	}

	var room *model.Room
	err = backoff.Retry(ctx, s.retryPolicy,
		func(err error) bool { return errors.Is(err, gorm.ErrDuplicatedKey) },
		func() error {
			code, err := s.allocateInviteCode(ctx)
			if err != nil {
				return err
			}

			candidate := &model.Room{
				ID:                uuid.New().String(),
				Title:             req.Title,
				InviteCode:        &code,
				Type:              roomType,
				TargetMemberCount: req.TargetMemberCount,
			}

			txErr := s.db.InTx(ctx, func(tx *gorm.DB) error {
				if err := s.roomRepo.WithTx(tx).Create(ctx, candidate); err != nil {
					return err
				}
				membership := &model.Membership{
					ID:     uuid.New().String(),
					RoomID: candidate.ID,
					UserID: leader.ID,
					Role:   model.RoleLeader,
				}
				return s.membershipRepo.WithTx(tx).Create(ctx, membership)
			})
			if txErr != nil {
				return txErr
			}
			room = candidate
			return nil
		})
	if err != nil {
		if errors.Is(err, backoff.ErrAttemptsExhausted) {
			return nil, ErrInviteExhausted
		}
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return room, nil
}

// allocateInviteCode generates codes until one is not taken by an existing
// room, giving up after the configured attempt budget. Exhaustion surfaces
// as ErrInviteExhausted, distinct from client errors, so callers can retry
// at a higher level.
func (s *RoomService) allocateInviteCode(ctx context.Context) (string, error) {
	for i := 0; i < s.codeAttempts; i++ {
		code, err := s.codes.Generate()
		if err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}

		_, err = s.roomRepo.FindByInviteCode(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return code, nil
			}
			return "", fmt.Errorf("failed to check invite code: %w", err)
		}
		// Collision, regenerate.
	}
	return "", ErrInviteExhausted
}

// JoinRoom adds the user as a member of the room behind the invite code.
// The new membership starts NOT_PAID; the payment collaborator confirms it.
func (s *RoomService) JoinRoom(ctx context.Context, userID, code string) (*model.Room, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	room, err := s.roomRepo.FindByInviteCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidInviteCode
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}

	if _, err := s.membershipRepo.Find(ctx, room.ID, userID); err == nil {
		return nil, ErrAlreadyMember
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	if room.TargetMemberCount > 0 {
		count, err := s.membershipRepo.CountByRoom(ctx, room.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count members: %w", err)
		}
		if count >= int64(room.TargetMemberCount) {
			return nil, ErrRoomFull
		}
	}

	membership := &model.Membership{
		ID:     uuid.New().String(),
		RoomID: room.ID,
		UserID: userID,
		Role:   model.RoleMember,
	}

	outbox := s.events.Begin()
	err = s.db.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.membershipRepo.WithTx(tx).Create(ctx, membership); err != nil {
			return err
		}
		outbox.Publish(event.Event{
			Kind:   event.KindMemberEntered,
			RoomID: room.ID,
			UserID: userID,
			Payload: MemberSummary{
				UserID:   user.ID,
				Nickname: user.Nickname,
				Role:     membership.Role,
			},
		})
		return nil
	})
	if err != nil {
		outbox.Discard()
		// A concurrent join can slip past the pre-check; the unique index on
		// (room_id, user_id) rejects the second insert.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("failed to join room: %w", err)
	}
	outbox.Commit()

	return room, nil
}

// LeaveRoom removes the user's membership; the room itself is deleted when
// its last membership goes.
func (s *RoomService) LeaveRoom(ctx context.Context, userID, roomID string) error {
	if _, err := s.membershipRepo.Find(ctx, roomID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMembershipNotFound
		}
		return fmt.Errorf("failed to check membership: %w", err)
	}

	outbox := s.events.Begin()
	err := s.db.InTx(ctx, func(tx *gorm.DB) error {
		membershipRepo := s.membershipRepo.WithTx(tx)
		if err := membershipRepo.SoftDelete(ctx, roomID, userID); err != nil {
			return err
		}

		remaining, err := membershipRepo.CountByRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			if err := s.roomRepo.WithTx(tx).SoftDelete(ctx, roomID); err != nil {
				return err
			}
		}

		outbox.Publish(event.Event{
			Kind:   event.KindRoomLeft,
			RoomID: roomID,
			UserID: userID,
		})
		return nil
	})
	if err != nil {
		outbox.Discard()
		return fmt.Errorf("failed to leave room: %w", err)
	}
	outbox.Commit()
	return nil
}

// MarkSucceeded flips the room's success flag. Leader-only.
func (s *RoomService) MarkSucceeded(ctx context.Context, userID, roomID string) error {
	membership, err := s.membershipRepo.Find(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMembershipNotFound
		}
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if membership.Role != model.RoleLeader {
		return ErrNotLeader
	}

	outbox := s.events.Begin()
	err = s.db.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.roomRepo.WithTx(tx).MarkSucceeded(ctx, roomID); err != nil {
			return err
		}
		outbox.Publish(event.Event{
			Kind:   event.KindRoomSucceeded,
			RoomID: roomID,
		})
		return nil
	})
	if err != nil {
		outbox.Discard()
		return fmt.Errorf("failed to mark room succeeded: %w", err)
	}
	outbox.Commit()
	return nil
}

// ConfirmPayment records that the external payment collaborator settled the
// member's fee. Messaging operations require this.
func (s *RoomService) ConfirmPayment(ctx context.Context, userID, roomID string) error {
	if _, err := s.membershipRepo.Find(ctx, roomID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMembershipNotFound
		}
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if err := s.membershipRepo.UpdatePaymentStatus(ctx, roomID, userID, model.PaymentPaid); err != nil {
		return fmt.Errorf("failed to confirm payment: %w", err)
	}
	return nil
}

// IsMember reports whether the user currently belongs to the room. The
// realtime gate re-evaluates this on every subscribe and publish.
func (s *RoomService) IsMember(ctx context.Context, userID, roomID string) (bool, error) {
	_, err := s.membershipRepo.Find(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return true, nil
}
