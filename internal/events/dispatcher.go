// Package events carries lifecycle events from the service layer to
// subscribers (notification tracking, external publishing). Screens and
// trackers subscribe to the dispatcher instead of threading callbacks
// through every layer.
package events

import (
	"sync"
	"time"

	"github.com/harborline/be-procurement-requests/internal/domain"
)

// Kind identifies a lifecycle event.
type Kind string

const (
	KindSubmitted     Kind = "submitted"
	KindApproved      Kind = "approved"
	KindRejected      Kind = "rejected"
	KindQueried       Kind = "queried"
	KindResubmitted   Kind = "resubmitted"
	KindSplit         Kind = "split"
	KindCompleted     Kind = "completed"
	KindCommentPosted Kind = "comment_posted"
)

// Event is one lifecycle transition or comment post.
type Event struct {
	Kind        Kind
	RequestID   string
	ActorID     string
	ActorRole   domain.Role
	RequesterID string
	From        domain.State
	To          domain.State
	// FromRole and ToRole are the waypoint roles before and after the
	// transition; nil when no waypoint was pending on that side.
	FromRole *domain.Role
	ToRole   *domain.Role
	At       time.Time
	Payload  map[string]any
}

// Handler consumes events. Handlers must not block; slow or failable work
// (network publishes) is the handler's job to make non-fatal.
type Handler func(Event)

// Dispatcher fans events out to subscribers synchronously, in subscription
// order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers a handler for all future events.
func (d *Dispatcher) Subscribe(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// Publish delivers the event to every subscriber.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
