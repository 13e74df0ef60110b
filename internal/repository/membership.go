package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/moyeolab/moyeo/internal/model"
)

// IMembershipRepository defines the interface for membership data operations.
type IMembershipRepository interface {
	WithTx(tx *gorm.DB) IMembershipRepository
	Create(ctx context.Context, membership *model.Membership) error
	Find(ctx context.Context, roomID, userID string) (*model.Membership, error)
	FindByRoom(ctx context.Context, roomID string) ([]*model.Membership, error)
	FindByUser(ctx context.Context, userID string) ([]*model.Membership, error)
	CountByRoom(ctx context.Context, roomID string) (int64, error)
	AdvanceReadPointer(ctx context.Context, roomID, userID string, messageID int64) (bool, error)
	UpdatePaymentStatus(ctx context.Context, roomID, userID, status string) error
	SoftDelete(ctx context.Context, roomID, userID string) error
}

// MembershipRepository implements IMembershipRepository backed by gorm.
type MembershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) IMembershipRepository {
	return &MembershipRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *MembershipRepository) WithTx(tx *gorm.DB) IMembershipRepository {
	return &MembershipRepository{db: tx}
}

func (r *MembershipRepository) Create(ctx context.Context, membership *model.Membership) error {
	return r.db.WithContext(ctx).Create(membership).Error
}

func (r *MembershipRepository) Find(ctx context.Context, roomID, userID string) (*model.Membership, error) {
	var membership model.Membership
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ? AND deleted_at IS NULL", roomID, userID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

func (r *MembershipRepository) FindByRoom(ctx context.Context, roomID string) ([]*model.Membership, error) {
	var memberships []*model.Membership
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND deleted_at IS NULL", roomID).
		Order("created_at ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *MembershipRepository) FindByUser(ctx context.Context, userID string) ([]*model.Membership, error) {
	var memberships []*model.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Order("created_at ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *MembershipRepository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("room_id = ? AND deleted_at IS NULL", roomID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AdvanceReadPointer moves the member's read pointer forward to messageID.
// The WHERE clause makes the update conditional: it only applies when the
// stored pointer is NULL or strictly less than the new value, so concurrent
// advances from multiple devices converge to the maximum without lost
// updates. Returns true when a row was actually updated.
func (r *MembershipRepository) AdvanceReadPointer(ctx context.Context, roomID, userID string, messageID int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("room_id = ? AND user_id = ? AND deleted_at IS NULL", roomID, userID).
		Where("last_read_message_id IS NULL OR last_read_message_id < ?", messageID).
		Update("last_read_message_id", messageID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *MembershipRepository) UpdatePaymentStatus(ctx context.Context, roomID, userID, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("room_id = ? AND user_id = ? AND deleted_at IS NULL", roomID, userID).
		Update("payment_status", status).Error
}

func (r *MembershipRepository) SoftDelete(ctx context.Context, roomID, userID string) error {
	return r.db.WithContext(ctx).
		Model(&model.Membership{}).
		Where("room_id = ? AND user_id = ? AND deleted_at IS NULL", roomID, userID).
		Update("deleted_at", time.Now()).Error
}
