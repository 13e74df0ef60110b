package service

import "errors"

// Service errors, grouped by how handlers surface them.
var (
	// Not found: the entity does not exist or is not visible to the caller.
	ErrUserNotFound       = errors.New("user not found")
	ErrRoomNotFound       = errors.New("room not found")
	ErrMembershipNotFound = errors.New("user is not a member of this room")
	ErrMessageNotFound    = errors.New("message not found")
	ErrInvalidInviteCode  = errors.New("invalid invite code")

	// Access denied: the membership exists but a precondition fails.
	ErrNotPaidMember = errors.New("membership fee has not been paid")
	ErrNotLeader     = errors.New("only the room leader may perform this action")

	// Invalid argument: malformed or out-of-scope input.
	ErrInvalidMessage       = errors.New("message must have content or attachments")
	ErrInvalidAttachment    = errors.New("attachment does not belong to this room and sender")
	ErrAttachmentBlocked    = errors.New("attachment failed the virus scan")
	ErrAttachmentNotFound   = errors.New("attachment file not found")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrEmailAlreadyTaken    = errors.New("email is already registered")
	ErrNicknameAlreadyTaken = errors.New("nickname is already taken")

	// Conflict: state-dependent client errors.
	ErrAlreadyMember = errors.New("user is already a member of this room")
	ErrRoomFull      = errors.New("room has reached its target member count")

	// Unavailable: retry budgets exhausted; the caller should try again.
	ErrInviteExhausted = errors.New("failed to allocate a unique invite code, try again")
)
