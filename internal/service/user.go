package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/moyeolab/moyeo/internal/model"
	"github.com/moyeolab/moyeo/internal/repository"
	"github.com/moyeolab/moyeo/middleware/jwt"
)

// RegisterRequest creates a password-account user.
type RegisterRequest struct {
	Nickname string `json:"nickname" binding:"required,min=2,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// LoginRequest authenticates a password-account user.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// IUserService defines account operations. Token issuance here is the
// narrow local surface; the full auth pipeline is an external collaborator.
type IUserService interface {
	Register(ctx context.Context, req *RegisterRequest) (*model.User, error)
	Login(ctx context.Context, req *LoginRequest) (string, *model.User, error)
	LoginOAuth(ctx context.Context, provider, subject, email, nickname string) (string, *model.User, error)
	GetProfile(ctx context.Context, userID string) (*model.User, error)
}

// UserService implements IUserService.
type UserService struct {
	userRepo repository.IUserRepository
	tokens   *jwt.TokenManager
}

func NewUserService(userRepo repository.IUserRepository, tokens *jwt.TokenManager) IUserService {
	return &UserService{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

// Register creates a password-account user.
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hashStr := string(hash)

	user := &model.User{
		ID:           uuid.New().String(),
		Nickname:     req.Nickname,
		Email:        req.Email,
		Role:         "USER",
		AccountType:  model.AccountTypePassword,
		PasswordHash: &hashStr,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Both email and nickname are unique; re-query to report the
			// constraint that actually fired.
			if _, lookupErr := s.userRepo.FindByEmail(ctx, req.Email); lookupErr == nil {
				return nil, ErrEmailAlreadyTaken
			}
			return nil, ErrNicknameAlreadyTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login verifies the password variant's credentials and issues a JWT.
func (s *UserService) Login(ctx context.Context, req *LoginRequest) (string, *model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to find user: %w", err)
	}

	account, ok := user.Account().(model.PasswordAccount)
	if !ok {
		// OAuth accounts have no local password.
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Nickname, user.Role)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return token, user, nil
}

// LoginOAuth finds or creates the OAuth-account user for (provider, subject)
// and issues a JWT. The identity itself is assumed to be already verified by
// the external provider.
func (s *UserService) LoginOAuth(ctx context.Context, provider, subject, email, nickname string) (string, *model.User, error) {
	user, err := s.userRepo.FindByOAuth(ctx, provider, subject)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, fmt.Errorf("failed to find user: %w", err)
		}

		user = &model.User{
			ID:            uuid.New().String(),
			Nickname:      nickname,
			Email:         email,
			Role:          "USER",
			AccountType:   model.AccountTypeOAuth,
			OAuthProvider: &provider,
			OAuthSubject:  &subject,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return "", nil, ErrEmailAlreadyTaken
			}
			return "", nil, fmt.Errorf("failed to create user: %w", err)
		}
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Nickname, user.Role)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return token, user, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}
