package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/moyeolab/moyeo/internal/model"
)

// IMessageRepository defines the interface for message data operations.
type IMessageRepository interface {
	WithTx(tx *gorm.DB) IMessageRepository
	Create(ctx context.Context, message *model.Message) error
	FindByID(ctx context.Context, id int64) (*model.Message, error)
	FindByDedupKey(ctx context.Context, roomID, senderID, dedupKey string) (*model.Message, error)
	FindPageBefore(ctx context.Context, roomID string, before *int64, limit int) ([]*model.Message, error)
	CountAfter(ctx context.Context, roomID string, after *int64) (int64, error)
	LatestID(ctx context.Context, roomID string) (*int64, error)
	Latest(ctx context.Context, roomID string) (*model.Message, error)
}

// MessageRepository implements IMessageRepository backed by gorm.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) IMessageRepository {
	return &MessageRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *MessageRepository) WithTx(tx *gorm.DB) IMessageRepository {
	return &MessageRepository{db: tx}
}

// Create inserts the message and its attachments in one atomic write.
// A violation of the (room_id, sender_id, dedup_key) unique index surfaces
// as gorm.ErrDuplicatedKey; the caller treats that as an expected outcome.
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *MessageRepository) FindByID(ctx context.Context, id int64) (*model.Message, error) {
	var message model.Message
	err := r.db.WithContext(ctx).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *MessageRepository) FindByDedupKey(ctx context.Context, roomID, senderID, dedupKey string) (*model.Message, error) {
	var message model.Message
	err := r.db.WithContext(ctx).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("room_id = ? AND sender_id = ? AND dedup_key = ? AND deleted_at IS NULL", roomID, senderID, dedupKey).
		First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// FindPageBefore returns up to limit messages of the room in descending id
// order. When before is non-nil, only messages with id strictly less than
// the cursor are returned (exclusive bound).
func (r *MessageRepository) FindPageBefore(ctx context.Context, roomID string, before *int64, limit int) ([]*model.Message, error) {
	var messages []*model.Message
	query := r.db.WithContext(ctx).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("room_id = ? AND deleted_at IS NULL", roomID)
	if before != nil {
		query = query.Where("id < ?", *before)
	}
	err := query.Order("id DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// CountAfter counts messages of the room with id strictly greater than
// after. A nil after counts every message, matching an unset read pointer.
func (r *MessageRepository) CountAfter(ctx context.Context, roomID string, after *int64) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("room_id = ? AND deleted_at IS NULL", roomID)
	if after != nil {
		query = query.Where("id > ?", *after)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// LatestID returns the highest message id in the room, or nil when the room
// has no messages.
func (r *MessageRepository) LatestID(ctx context.Context, roomID string) (*int64, error) {
	latest, err := r.Latest(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}
	return &latest.ID, nil
}

// Latest returns the newest message in the room, or nil when there is none.
func (r *MessageRepository) Latest(ctx context.Context, roomID string) (*model.Message, error) {
	var message model.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND deleted_at IS NULL", roomID).
		Order("id DESC").
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}
