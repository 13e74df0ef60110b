package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// recordingDispatcher captures dispatched batches for assertions.
type recordingDispatcher struct {
	mu      sync.Mutex
	batches [][]Event
}

func (d *recordingDispatcher) Dispatch(events []Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, events)
}

func (d *recordingDispatcher) batchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.batches)
}

func TestOutbox_CommitDispatchesBufferedEvents(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	publisher := NewPublisher(dispatcher)

	outbox := publisher.Begin()
	outbox.Publish(Event{Kind: KindMessageCreated, RoomID: "r1"})
	outbox.Publish(Event{Kind: KindReadUpdated, RoomID: "r1", UserID: "u1"})

	// Nothing leaves the outbox before commit.
	assert.Equal(t, 0, dispatcher.batchCount())
	assert.Equal(t, 2, outbox.Pending())

	outbox.Commit()

	assert.Equal(t, 1, dispatcher.batchCount())
	assert.Len(t, dispatcher.batches[0], 2)
	assert.Equal(t, KindMessageCreated, dispatcher.batches[0][0].Kind)
	assert.Equal(t, KindReadUpdated, dispatcher.batches[0][1].Kind)
}

func TestOutbox_DiscardDropsEverything(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	publisher := NewPublisher(dispatcher)

	outbox := publisher.Begin()
	outbox.Publish(Event{Kind: KindMemberEntered, RoomID: "r1", UserID: "u1"})
	outbox.Discard()

	assert.Equal(t, 0, dispatcher.batchCount())
	assert.Equal(t, 0, outbox.Pending())

	// Commit after discard must not resurrect the events.
	outbox.Commit()
	assert.Equal(t, 0, dispatcher.batchCount())
}

func TestOutbox_CommitIsIdempotent(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	publisher := NewPublisher(dispatcher)

	outbox := publisher.Begin()
	outbox.Publish(Event{Kind: KindRoomSucceeded, RoomID: "r1"})
	outbox.Commit()
	outbox.Commit()

	assert.Equal(t, 1, dispatcher.batchCount())
}

func TestOutbox_PublishAfterCommitIsDropped(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	publisher := NewPublisher(dispatcher)

	outbox := publisher.Begin()
	outbox.Commit()
	outbox.Publish(Event{Kind: KindMessageCreated, RoomID: "r1"})

	assert.Equal(t, 0, outbox.Pending())
}

func TestOutbox_EmptyCommitDoesNotDispatch(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	publisher := NewPublisher(dispatcher)

	publisher.Begin().Commit()

	assert.Equal(t, 0, dispatcher.batchCount())
}

func TestOutbox_IndependentPerTransaction(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	publisher := NewPublisher(dispatcher)

	first := publisher.Begin()
	second := publisher.Begin()
	first.Publish(Event{Kind: KindMessageCreated, RoomID: "r1"})
	second.Publish(Event{Kind: KindMessageCreated, RoomID: "r2"})

	first.Commit()
	second.Discard()

	assert.Equal(t, 1, dispatcher.batchCount())
	assert.Equal(t, "r1", dispatcher.batches[0][0].RoomID)
}
