package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/moyeolab/moyeo/internal/service"
	"github.com/moyeolab/moyeo/middleware/jwt"
)

var (
	ErrMissingCredential = errors.New("missing or invalid connection credential")
	ErrNotRoomMember     = errors.New("not a member of this room")
	ErrForeignChannel    = errors.New("cannot use another user's private channel")
)

// Authorizer is the per-connection authorization gate. It validates the
// handshake credential and authorizes every subscribe and publish against
// current room membership. Membership is re-evaluated on each action, since
// it can change while a connection is open.
type Authorizer struct {
	tokens *jwt.TokenManager
	rooms  service.IRoomService
}

func NewAuthorizer(tokens *jwt.TokenManager, rooms service.IRoomService) *Authorizer {
	return &Authorizer{
		tokens: tokens,
		rooms:  rooms,
	}
}

// Authenticate extracts the bearer credential from the websocket handshake:
// the Authorization header or, for browser clients that cannot set headers
// on upgrade requests, a token query parameter. Fails closed.
func (a *Authorizer) Authenticate(r *http.Request) (*jwt.Claims, error) {
	token := ""
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return nil, ErrMissingCredential
	}

	claims, err := a.tokens.ParseToken(token)
	if err != nil {
		return nil, ErrMissingCredential
	}
	return claims, nil
}

// AuthorizeChannel decides whether the authenticated identity may act on a
// channel. Room channels require current membership; a private user channel
// is only usable by its owner; anything else bypasses the room check.
func (a *Authorizer) AuthorizeChannel(ctx context.Context, claims *jwt.Claims, channel string) error {
	if roomID, ok := RoomIDFromChannel(channel); ok {
		isMember, err := a.rooms.IsMember(ctx, claims.UserID, roomID)
		if err != nil {
			return err
		}
		if !isMember {
			return ErrNotRoomMember
		}
		return nil
	}

	if userID, ok := strings.CutPrefix(channel, "user:"); ok {
		if userID != claims.UserID {
			return ErrForeignChannel
		}
		return nil
	}

	// Non-room-scoped channels carry no membership requirement.
	return nil
}

// RoomIDFromChannel parses the room id out of a room-scoped channel name.
func RoomIDFromChannel(channel string) (string, bool) {
	roomID, ok := strings.CutPrefix(channel, "room:")
	if !ok || roomID == "" {
		return "", false
	}
	return roomID, true
}
