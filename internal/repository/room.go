package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/moyeolab/moyeo/internal/model"
)

// IRoomRepository defines the interface for room data operations.
// Every query carries an explicit deleted_at IS NULL predicate; soft-deleted
// rows are invisible to the rest of the system.
type IRoomRepository interface {
	WithTx(tx *gorm.DB) IRoomRepository
	Create(ctx context.Context, room *model.Room) error
	FindByID(ctx context.Context, id string) (*model.Room, error)
	FindByInviteCode(ctx context.Context, code string) (*model.Room, error)
	MarkSucceeded(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
}

// RoomRepository implements IRoomRepository backed by gorm.
type RoomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) IRoomRepository {
	return &RoomRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *RoomRepository) WithTx(tx *gorm.DB) IRoomRepository {
	return &RoomRepository{db: tx}
}

func (r *RoomRepository) Create(ctx context.Context, room *model.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *RoomRepository) FindByID(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *RoomRepository) FindByInviteCode(ctx context.Context, code string) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).
		Where("invite_code = ? AND deleted_at IS NULL", code).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *RoomRepository) MarkSucceeded(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&model.Room{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("succeeded", true).Error
}

func (r *RoomRepository) SoftDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&model.Room{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", time.Now()).Error
}
