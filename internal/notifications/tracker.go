// Package notifications keeps per-viewer unread bookkeeping and the badge
// counters for the pending/queried/rejected buckets. Counters are adjusted
// incrementally on each event, so refreshing a badge costs the same no
// matter how many requests exist. Polling clients read the counters; a push
// channel could drive the same tracker without structural change.
package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/harborline/be-procurement-requests/internal/domain"
	"github.com/harborline/be-procurement-requests/internal/events"
)

// ReceiptStore persists per-(request, viewer) last-read timestamps.
type ReceiptStore interface {
	Upsert(ctx context.Context, requestID, viewerID string, at time.Time) error
	// Get returns nil when the viewer has never read the request.
	Get(ctx context.Context, requestID, viewerID string) (*time.Time, error)
}

// BadgeCounts is one viewer's badge state.
type BadgeCounts struct {
	Pending  int `json:"pending"`
	Queried  int `json:"queried"`
	Rejected int `json:"rejected"`
}

// Tracker consumes lifecycle events and answers unread and badge queries.
type Tracker struct {
	receipts ReceiptStore
	now      func() time.Time
	onUpdate func()

	mu sync.RWMutex
	// pendingByRole counts requests whose current waypoint awaits a role.
	pendingByRole map[domain.Role]int
	// queriedByRequester and rejectedByRequester count a requester's own
	// requests sitting in those buckets.
	queriedByRequester  map[string]int
	rejectedByRequester map[string]int
}

// Option overrides a Tracker default.
type Option func(*Tracker)

// WithClock fixes the tracker's time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithUpdateHook runs fn after every badge adjustment (metrics).
func WithUpdateHook(fn func()) Option {
	return func(t *Tracker) { t.onUpdate = fn }
}

// New creates a tracker over the given receipt store.
func New(receipts ReceiptStore, opts ...Option) *Tracker {
	t := &Tracker{
		receipts:            receipts,
		now:                 time.Now,
		onUpdate:            func() {},
		pendingByRole:       make(map[domain.Role]int),
		queriedByRequester:  make(map[string]int),
		rejectedByRequester: make(map[string]int),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Apply adjusts the badge counters for one lifecycle event. Wire it to the
// dispatcher with Subscribe.
func (t *Tracker) Apply(ev events.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Kind {
	case events.KindSubmitted:
		t.addPending(ev.ToRole, 1)
	case events.KindApproved, events.KindSplit:
		t.addPending(ev.FromRole, -1)
		t.addPending(ev.ToRole, 1)
	case events.KindQueried:
		t.addPending(ev.FromRole, -1)
		t.queriedByRequester[ev.RequesterID]++
	case events.KindResubmitted:
		decrement(t.queriedByRequester, ev.RequesterID)
		t.addPending(ev.ToRole, 1)
	case events.KindRejected:
		t.addPending(ev.FromRole, -1)
		t.rejectedByRequester[ev.RequesterID]++
	case events.KindCompleted:
		t.addPending(ev.FromRole, -1)
	default:
		return
	}
	t.onUpdate()
}

// Badges returns the viewer's current badge counts.
func (t *Tracker) Badges(viewer domain.Session) BadgeCounts {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return BadgeCounts{
		Pending:  t.pendingByRole[viewer.Role],
		Queried:  t.queriedByRequester[viewer.UserID],
		Rejected: t.rejectedByRequester[viewer.UserID],
	}
}

// MarkRead records that the viewer has seen the request as of now. Repeated
// calls have no additional effect beyond refreshing the timestamp.
func (t *Tracker) MarkRead(ctx context.Context, requestID, viewerID string) error {
	return t.receipts.Upsert(ctx, requestID, viewerID, t.now())
}

// Unread reports whether anything relevant to the viewer happened on the
// request after their last read: a history entry or comment, not authored by
// the viewer, on a request the viewer participates in.
func (t *Tracker) Unread(ctx context.Context, req *domain.Request, comments []*domain.Comment, viewer domain.Session) (bool, error) {
	if !t.participates(req, viewer) {
		return false, nil
	}
	lastRead, err := t.receipts.Get(ctx, req.ID, viewer.UserID)
	if err != nil {
		return false, err
	}

	for _, h := range req.History {
		if h.ActorID != viewer.UserID && after(h.Timestamp, lastRead) {
			return true, nil
		}
	}
	for _, c := range comments {
		if c.Author.UserID != viewer.UserID && after(c.CreatedAt, lastRead) {
			return true, nil
		}
	}
	return false, nil
}

// participates reports whether the request concerns the viewer: their own
// submission, or a flow containing their role.
func (t *Tracker) participates(req *domain.Request, viewer domain.Session) bool {
	if req.Requester.UserID == viewer.UserID {
		return true
	}
	for _, step := range req.Flow {
		if step.Role == viewer.Role {
			return true
		}
	}
	return false
}

func (t *Tracker) addPending(role *domain.Role, delta int) {
	if role == nil {
		return
	}
	if delta < 0 {
		decrement(t.pendingByRole, *role)
		return
	}
	t.pendingByRole[*role] += delta
}

// decrement floors at zero so a replayed or out-of-order event can never
// drive a badge negative.
func decrement[K comparable](m map[K]int, key K) {
	if m[key] > 0 {
		m[key]--
	}
}

func after(ts time.Time, lastRead *time.Time) bool {
	return lastRead == nil || ts.After(*lastRead)
}
