package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/moyeolab/moyeo/internal/model"
)

// IUserRepository defines the interface for user data operations.
type IUserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByOAuth(ctx context.Context, provider, subject string) (*model.User, error)
}

// UserRepository implements IUserRepository backed by gorm.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) IUserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return []*model.User{}, nil
	}
	var users []*model.User
	err := r.db.WithContext(ctx).
		Where("id IN ? AND deleted_at IS NULL", ids).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("email = ? AND deleted_at IS NULL", email).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByOAuth(ctx context.Context, provider, subject string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("oauth_provider = ? AND oauth_subject = ? AND deleted_at IS NULL", provider, subject).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
