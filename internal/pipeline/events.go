package pipeline

import (
	"sync"

	"github.com/doculens/doculens/constants"
)

// EventType discriminates progress events on a request's stream.
type EventType string

const (
	EventState EventType = "state"
	EventPage  EventType = "page"
	EventDone  EventType = "done"
)

// Event is one progress notification. Page events carry exactly one
// PageResult and are published exactly once per page to every subscriber.
type Event struct {
	Type   EventType              `json:"type"`
	State  constants.RequestState `json:"state,omitempty"`
	Page   *PageResult            `json:"page,omitempty"`
	Result *DocumentResult        `json:"result,omitempty"`
	Reject *RejectionNotice       `json:"reject,omitempty"`
}

// RejectionNotice mirrors the document-level rejection on the event stream.
type RejectionNotice struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Subscription is one observer's view of a request's event stream.
type Subscription struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// Events returns the receive side. The channel is closed when the request
// finishes or the subscription is canceled.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Cancel detaches the observer; pending publishes to it are released.
func (s *Subscription) Cancel() {
	s.once.Do(func() { close(s.done) })
}

// Broadcaster fans a request's events out to all subscribers. Publishing
// blocks until every live subscriber has taken the event, so nothing is
// dropped; a subscriber that goes away calls Cancel and is skipped.
//
// Publish and Close are only ever called from the coordinator goroutine, so
// they need no mutual ordering beyond the subscriber list lock.
type Broadcaster struct {
	mu     sync.Mutex
	subs   []*Subscription
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe registers a new observer. Subscribing to a closed broadcaster
// yields an already-closed stream.
func (b *Broadcaster) Subscribe() *Subscription {
	s := &Subscription{ch: make(chan Event, 16), done: make(chan struct{})}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs = append(b.subs, s)
	return s
}

// Publish delivers ev to every live subscriber exactly once.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- ev:
		case <-s.done:
		}
	}
}

// Close ends the stream; subscriber channels are closed after any buffered
// events are drained by their readers.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
}
