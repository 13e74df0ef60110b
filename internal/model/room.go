package model

import "time"

// Room type tiers.
const (
	RoomTypeBasic   = "BASIC"
	RoomTypeVotable = "VOTABLE"
)

// Membership roles.
const (
	RoleLeader = "LEADER"
	RoleMember = "MEMBER"
)

// Membership payment states.
const (
	PaymentNotPaid  = "NOT_PAID"
	PaymentPaid     = "PAID"
	PaymentRefunded = "REFUNDED"
)

// Room 房间模型
// InviteCode is nullable until allocated; allocation happens inside the
// room-creation transaction. The unique index backs the global uniqueness
// invariant for invite codes.
type Room struct {
	ID                string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title             string  `gorm:"not null;type:varchar(255)" json:"title"`
	InviteCode        *string `gorm:"uniqueIndex;type:varchar(32)" json:"invite_code,omitempty"`
	Type              string  `gorm:"not null;default:BASIC;type:varchar(16)" json:"type"`
	TargetMemberCount int     `gorm:"not null;default:0" json:"target_member_count"`
	Succeeded         bool    `gorm:"not null;default:false" json:"succeeded"`

	CreatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`
}

func (Room) TableName() string {
	return "rooms"
}

// Membership 成员关系模型
// LastReadMessageID is the member's read pointer: nil until the member reads
// something, then monotonically non-decreasing. Advancement is done with a
// conditional UPDATE so concurrent advances converge to the maximum.
//
// The partial unique index over (room_id, user_id) keeps at most one live
// membership per user per room; soft-deleted rows are excluded so a user can
// rejoin after leaving.
type Membership struct {
	ID            string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	RoomID        string `gorm:"uniqueIndex:idx_memberships_room_user,where:deleted_at IS NULL;not null;type:varchar(64)" json:"room_id"`
	UserID        string `gorm:"uniqueIndex:idx_memberships_room_user,where:deleted_at IS NULL;index;not null;type:varchar(64)" json:"user_id"`
	Role          string `gorm:"not null;default:MEMBER;type:varchar(16)" json:"role"`
	PaymentStatus string `gorm:"not null;default:NOT_PAID;type:varchar(16)" json:"payment_status"`

	LastReadMessageID *int64 `gorm:"column:last_read_message_id" json:"last_read_message_id,omitempty"`

	CreatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`
}

func (Membership) TableName() string {
	return "memberships"
}

// IsPaid reports whether the member has settled the room fee.
func (m *Membership) IsPaid() bool {
	return m.PaymentStatus == PaymentPaid
}
