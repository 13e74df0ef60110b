package event

// Kind identifies a domain event flowing through the outbox.
type Kind string

const (
	KindMessageCreated Kind = "message.created"
	KindReadUpdated    Kind = "read.updated"
	KindMemberEntered  Kind = "member.entered"
	KindRoomLeft       Kind = "room.left"
	KindRoomSucceeded  Kind = "room.succeeded"
	KindUnreadBadge    Kind = "unread.badge"
	KindError          Kind = "error"
)

// Event is the unit buffered by the outbox and fanned out after commit.
// RoomID addresses the shared room channel; UserID is set for events that
// also carry per-user meaning (read updates, leaves).
type Event struct {
	Kind    Kind   `json:"kind"`
	RoomID  string `json:"room_id"`
	UserID  string `json:"user_id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}
