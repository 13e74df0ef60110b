package model

import (
	"time"
)

// AccountType discriminates how a user authenticates.
const (
	AccountTypePassword = "PASSWORD"
	AccountTypeOAuth    = "OAUTH"
)

// User 用户模型
type User struct {
	ID       string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Nickname string `gorm:"uniqueIndex;not null;type:varchar(255)" json:"nickname"`
	Email    string `gorm:"uniqueIndex;not null;type:varchar(255)" json:"email"`
	Role     string `gorm:"not null;default:USER;type:varchar(16)" json:"role"`

	// Account variant fields. Exactly one variant is populated,
	// discriminated by AccountType.
	AccountType   string  `gorm:"not null;type:varchar(16)" json:"account_type"`
	PasswordHash  *string `gorm:"type:varchar(255)" json:"-"`
	OAuthProvider *string `gorm:"type:varchar(32)" json:"-"`
	OAuthSubject  *string `gorm:"type:varchar(255)" json:"-"`

	AvatarURL string `json:"avatar_url"`

	CreatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// Account is the credential variant attached to a user. Both variants share
// the identity fields on User; only the credential material differs.
type Account interface {
	isAccount()
}

// PasswordAccount is the local-credential variant.
type PasswordAccount struct {
	PasswordHash string
}

// OAuthAccount is the external-identity variant.
type OAuthAccount struct {
	Provider string
	Subject  string
}

func (PasswordAccount) isAccount() {}
func (OAuthAccount) isAccount()    {}

// Account returns the credential variant for this user, or nil if the row
// is inconsistent with its discriminator.
func (u *User) Account() Account {
	switch u.AccountType {
	case AccountTypePassword:
		if u.PasswordHash == nil {
			return nil
		}
		return PasswordAccount{PasswordHash: *u.PasswordHash}
	case AccountTypeOAuth:
		if u.OAuthProvider == nil || u.OAuthSubject == nil {
			return nil
		}
		return OAuthAccount{Provider: *u.OAuthProvider, Subject: *u.OAuthSubject}
	}
	return nil
}
