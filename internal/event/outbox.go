package event

import (
	"sync"
)

// Dispatcher delivers committed events to subscribers. Delivery is
// best-effort and must never block the caller's request path.
type Dispatcher interface {
	Dispatch(events []Event)
}

// Publisher creates per-transaction outboxes bound to a dispatcher.
type Publisher struct {
	dispatcher Dispatcher
}

func NewPublisher(dispatcher Dispatcher) *Publisher {
	return &Publisher{dispatcher: dispatcher}
}

// Begin starts an empty outbox for one transaction.
func (p *Publisher) Begin() *Outbox {
	return &Outbox{dispatcher: p.dispatcher}
}

// Outbox buffers events published during a transaction. Events become
// visible to subscribers only when Commit is called after the enclosing
// transaction has committed; a rolled-back transaction simply never calls
// Commit and the buffer is discarded with it.
type Outbox struct {
	mu         sync.Mutex
	events     []Event
	committed  bool
	dispatcher Dispatcher
}

// Publish buffers an event. Publishing after Commit is a programming error
// and the event is dropped.
func (o *Outbox) Publish(e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.committed {
		return
	}
	o.events = append(o.events, e)
}

// Commit hands the buffered events to the dispatcher exactly once.
func (o *Outbox) Commit() {
	o.mu.Lock()
	if o.committed {
		o.mu.Unlock()
		return
	}
	o.committed = true
	events := o.events
	o.events = nil
	o.mu.Unlock()

	if len(events) == 0 || o.dispatcher == nil {
		return
	}
	o.dispatcher.Dispatch(events)
}

// Discard drops the buffer without dispatching.
func (o *Outbox) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.committed = true
	o.events = nil
}

// Pending returns the number of buffered events. Used by tests.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}
