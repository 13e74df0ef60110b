package service

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/moyeolab/moyeo/internal/event"
	"github.com/moyeolab/moyeo/internal/model"
	"github.com/moyeolab/moyeo/internal/repository"
)

// memStore is a shared in-memory backing store for the fake repositories.
// It reproduces the two behaviors the services depend on: not-found lookups
// return gorm.ErrRecordNotFound and unique-index violations return
// gorm.ErrDuplicatedKey.
type memStore struct {
	mu          sync.Mutex
	users       map[string]*model.User
	rooms       map[string]*model.Room
	memberships []*model.Membership
	messages    []*model.Message
	files       map[string]*model.File
	nextMsgID   int64
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[string]*model.User),
		rooms: make(map[string]*model.Room),
		files: make(map[string]*model.File),
	}
}

// fakeTxManager runs the transaction body directly; rollback semantics are
// exercised through the repository errors, not a real database.
type fakeTxManager struct{}

func (fakeTxManager) InTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// capturingDispatcher records committed events for assertions.
type capturingDispatcher struct {
	mu     sync.Mutex
	events []event.Event
}

func (d *capturingDispatcher) Dispatch(events []event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, events...)
}

func (d *capturingDispatcher) kinds() []event.Kind {
	d.mu.Lock()
	defer d.mu.Unlock()
	kinds := make([]event.Kind, 0, len(d.events))
	for _, e := range d.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// ---- user repository ----

type fakeUserRepo struct{ store *memStore }

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if u.Email == user.Email || u.Nickname == user.Nickname {
			return gorm.ErrDuplicatedKey
		}
	}
	r.store.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if u, ok := r.store.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindByIDs(_ context.Context, ids []string) ([]*model.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var users []*model.User
	for _, id := range ids {
		if u, ok := r.store.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindByOAuth(_ context.Context, provider, subject string) (*model.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if u.OAuthProvider != nil && *u.OAuthProvider == provider &&
			u.OAuthSubject != nil && *u.OAuthSubject == subject {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ---- room repository ----

type fakeRoomRepo struct{ store *memStore }

func (r *fakeRoomRepo) WithTx(*gorm.DB) repository.IRoomRepository { return r }

func (r *fakeRoomRepo) Create(_ context.Context, room *model.Room) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if room.InviteCode != nil {
		for _, existing := range r.store.rooms {
			if existing.InviteCode != nil && *existing.InviteCode == *room.InviteCode {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	r.store.rooms[room.ID] = room
	return nil
}

func (r *fakeRoomRepo) FindByID(_ context.Context, id string) (*model.Room, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if room, ok := r.store.rooms[id]; ok && room.DeletedAt == nil {
		return room, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRoomRepo) FindByInviteCode(_ context.Context, code string) (*model.Room, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, room := range r.store.rooms {
		if room.DeletedAt == nil && room.InviteCode != nil && *room.InviteCode == code {
			return room, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRoomRepo) MarkSucceeded(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	room, ok := r.store.rooms[id]
	if !ok || room.DeletedAt != nil {
		return gorm.ErrRecordNotFound
	}
	room.Succeeded = true
	return nil
}

func (r *fakeRoomRepo) SoftDelete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	room, ok := r.store.rooms[id]
	if !ok || room.DeletedAt != nil {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	room.DeletedAt = &now
	return nil
}

// ---- membership repository ----

type fakeMembershipRepo struct{ store *memStore }

func (r *fakeMembershipRepo) WithTx(*gorm.DB) repository.IMembershipRepository { return r }

func (r *fakeMembershipRepo) Create(_ context.Context, membership *model.Membership) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	// 模拟 (room_id, user_id) 部分唯一索引：只约束未删除的行
	if r.find(membership.RoomID, membership.UserID) != nil {
		return gorm.ErrDuplicatedKey
	}
	if membership.PaymentStatus == "" {
		membership.PaymentStatus = model.PaymentNotPaid
	}
	r.store.memberships = append(r.store.memberships, membership)
	return nil
}

func (r *fakeMembershipRepo) find(roomID, userID string) *model.Membership {
	for _, m := range r.store.memberships {
		if m.RoomID == roomID && m.UserID == userID && m.DeletedAt == nil {
			return m
		}
	}
	return nil
}

func (r *fakeMembershipRepo) Find(_ context.Context, roomID, userID string) (*model.Membership, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if m := r.find(roomID, userID); m != nil {
		return m, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeMembershipRepo) FindByRoom(_ context.Context, roomID string) ([]*model.Membership, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*model.Membership
	for _, m := range r.store.memberships {
		if m.RoomID == roomID && m.DeletedAt == nil {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMembershipRepo) FindByUser(_ context.Context, userID string) ([]*model.Membership, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*model.Membership
	for _, m := range r.store.memberships {
		if m.UserID == userID && m.DeletedAt == nil {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMembershipRepo) CountByRoom(_ context.Context, roomID string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var count int64
	for _, m := range r.store.memberships {
		if m.RoomID == roomID && m.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *fakeMembershipRepo) AdvanceReadPointer(_ context.Context, roomID, userID string, messageID int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m := r.find(roomID, userID)
	if m == nil {
		return false, nil
	}
	if m.LastReadMessageID == nil || *m.LastReadMessageID < messageID {
		m.LastReadMessageID = &messageID
		return true, nil
	}
	return false, nil
}

func (r *fakeMembershipRepo) UpdatePaymentStatus(_ context.Context, roomID, userID, status string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m := r.find(roomID, userID)
	if m == nil {
		return gorm.ErrRecordNotFound
	}
	m.PaymentStatus = status
	return nil
}

func (r *fakeMembershipRepo) SoftDelete(_ context.Context, roomID, userID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	m := r.find(roomID, userID)
	if m == nil {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	m.DeletedAt = &now
	return nil
}

// ---- message repository ----

type fakeMessageRepo struct{ store *memStore }

func (r *fakeMessageRepo) WithTx(*gorm.DB) repository.IMessageRepository { return r }

func (r *fakeMessageRepo) Create(_ context.Context, message *model.Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.messages {
		if m.RoomID == message.RoomID && m.SenderID == message.SenderID && m.DedupKey == message.DedupKey {
			return gorm.ErrDuplicatedKey
		}
	}
	r.store.nextMsgID++
	message.ID = r.store.nextMsgID
	r.store.messages = append(r.store.messages, message)
	return nil
}

func (r *fakeMessageRepo) FindByID(_ context.Context, id int64) (*model.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.messages {
		if m.ID == id && m.DeletedAt == nil {
			return m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeMessageRepo) FindByDedupKey(_ context.Context, roomID, senderID, dedupKey string) (*model.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.messages {
		if m.RoomID == roomID && m.SenderID == senderID && m.DedupKey == dedupKey && m.DeletedAt == nil {
			return m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeMessageRepo) FindPageBefore(_ context.Context, roomID string, before *int64, limit int) ([]*model.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*model.Message
	for i := len(r.store.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := r.store.messages[i]
		if m.RoomID != roomID || m.DeletedAt != nil {
			continue
		}
		if before != nil && m.ID >= *before {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *fakeMessageRepo) CountAfter(_ context.Context, roomID string, after *int64) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var count int64
	for _, m := range r.store.messages {
		if m.RoomID != roomID || m.DeletedAt != nil {
			continue
		}
		if after == nil || m.ID > *after {
			count++
		}
	}
	return count, nil
}

func (r *fakeMessageRepo) LatestID(ctx context.Context, roomID string) (*int64, error) {
	latest, err := r.Latest(ctx, roomID)
	if err != nil || latest == nil {
		return nil, err
	}
	return &latest.ID, nil
}

func (r *fakeMessageRepo) Latest(_ context.Context, roomID string) (*model.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var latest *model.Message
	for _, m := range r.store.messages {
		if m.RoomID != roomID || m.DeletedAt != nil {
			continue
		}
		if latest == nil || m.ID > latest.ID {
			latest = m
		}
	}
	return latest, nil
}

// ---- file repository ----

type fakeFileRepo struct{ store *memStore }

func (r *fakeFileRepo) FindByIDs(_ context.Context, ids []string) ([]*model.File, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*model.File
	for _, id := range ids {
		if f, ok := r.store.files[id]; ok && f.DeletedAt == nil {
			out = append(out, f)
		}
	}
	return out, nil
}
