package ws

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyeolab/moyeo/internal/model"
	"github.com/moyeolab/moyeo/internal/service"
	"github.com/moyeolab/moyeo/middleware/jwt"
)

// fakeRoomService answers membership checks from a fixed set.
type fakeRoomService struct {
	members map[string]bool // "roomID/userID"
}

func (f *fakeRoomService) IsMember(_ context.Context, userID, roomID string) (bool, error) {
	return f.members[roomID+"/"+userID], nil
}

func (f *fakeRoomService) CreateRoom(context.Context, string, *service.CreateRoomRequest) (*model.Room, error) {
	panic("not used")
}
func (f *fakeRoomService) JoinRoom(context.Context, string, string) (*model.Room, error) {
	panic("not used")
}
func (f *fakeRoomService) LeaveRoom(context.Context, string, string) error      { panic("not used") }
func (f *fakeRoomService) MarkSucceeded(context.Context, string, string) error  { panic("not used") }
func (f *fakeRoomService) ConfirmPayment(context.Context, string, string) error { panic("not used") }

func newTestAuthorizer(members map[string]bool) (*Authorizer, *jwt.TokenManager) {
	tokens := jwt.NewTokenManager("test-secret", 24, 168)
	return NewAuthorizer(tokens, &fakeRoomService{members: members}), tokens
}

func TestAuthenticate_BearerHeader(t *testing.T) {
	authorizer, tokens := newTestAuthorizer(nil)
	token, err := tokens.GenerateToken("u1", "nick", "USER")
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	claims, err := authorizer.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestAuthenticate_QueryParam(t *testing.T) {
	authorizer, tokens := newTestAuthorizer(nil)
	token, err := tokens.GenerateToken("u1", "nick", "USER")
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/ws?token="+token, nil)

	claims, err := authorizer.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestAuthenticate_FailsClosed(t *testing.T) {
	authorizer, tokens := newTestAuthorizer(nil)

	// No credential at all.
	r := httptest.NewRequest("GET", "/ws", nil)
	_, err := authorizer.Authenticate(r)
	assert.ErrorIs(t, err, ErrMissingCredential)

	// Garbage token.
	r = httptest.NewRequest("GET", "/ws?token=garbage", nil)
	_, err = authorizer.Authenticate(r)
	assert.ErrorIs(t, err, ErrMissingCredential)

	// Wrong scheme in the header.
	token, err := tokens.GenerateToken("u1", "nick", "USER")
	require.NoError(t, err)
	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Basic "+token)
	_, err = authorizer.Authenticate(r)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestAuthorizeChannel_RoomMembership(t *testing.T) {
	authorizer, tokens := newTestAuthorizer(map[string]bool{"r1/u1": true})
	token, err := tokens.GenerateToken("u1", "nick", "USER")
	require.NoError(t, err)
	claims, err := tokens.ParseToken(token)
	require.NoError(t, err)

	assert.NoError(t, authorizer.AuthorizeChannel(context.Background(), claims, "room:r1"))

	err = authorizer.AuthorizeChannel(context.Background(), claims, "room:r2")
	assert.ErrorIs(t, err, ErrNotRoomMember)
}

func TestAuthorizeChannel_UserChannelOwnerOnly(t *testing.T) {
	authorizer, _ := newTestAuthorizer(nil)
	claims := &jwt.Claims{UserID: "u1"}

	assert.NoError(t, authorizer.AuthorizeChannel(context.Background(), claims, "user:u1"))

	err := authorizer.AuthorizeChannel(context.Background(), claims, "user:u2")
	assert.ErrorIs(t, err, ErrForeignChannel)
}

func TestAuthorizeChannel_NonRoomChannelBypasses(t *testing.T) {
	authorizer, _ := newTestAuthorizer(nil)
	claims := &jwt.Claims{UserID: "u1"}

	assert.NoError(t, authorizer.AuthorizeChannel(context.Background(), claims, "announcements"))
}

func TestRoomIDFromChannel(t *testing.T) {
	id, ok := RoomIDFromChannel("room:abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = RoomIDFromChannel("room:")
	assert.False(t, ok)

	_, ok = RoomIDFromChannel("user:abc")
	assert.False(t, ok)
}
