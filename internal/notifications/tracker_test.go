package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/be-procurement-requests/internal/domain"
	"github.com/harborline/be-procurement-requests/internal/events"
)

type memReceipts struct {
	receipts map[string]time.Time
}

func newMemReceipts() *memReceipts {
	return &memReceipts{receipts: make(map[string]time.Time)}
}

func (s *memReceipts) Upsert(_ context.Context, requestID, viewerID string, at time.Time) error {
	s.receipts[requestID+"/"+viewerID] = at
	return nil
}

func (s *memReceipts) Get(_ context.Context, requestID, viewerID string) (*time.Time, error) {
	if at, ok := s.receipts[requestID+"/"+viewerID]; ok {
		return &at, nil
	}
	return nil, nil
}

func role(r domain.Role) *domain.Role { return &r }

func TestBadgeCountersFollowLifecycle(t *testing.T) {
	tr := New(newMemReceipts())
	hod := domain.Session{UserID: "u-hod", Role: domain.RoleHeadOfDepartment}
	po := domain.Session{UserID: "u-po", Role: domain.RoleProcurementOfficer}
	requester := domain.Session{UserID: "u-req", Role: domain.RoleRequester}

	tr.Apply(events.Event{Kind: events.KindSubmitted, RequestID: "PR-1",
		RequesterID: "u-req", ToRole: role(domain.RoleHeadOfDepartment)})
	assert.Equal(t, 1, tr.Badges(hod).Pending)
	assert.Equal(t, 0, tr.Badges(po).Pending)

	tr.Apply(events.Event{Kind: events.KindApproved, RequestID: "PR-1", RequesterID: "u-req",
		FromRole: role(domain.RoleHeadOfDepartment), ToRole: role(domain.RoleProcurementOfficer)})
	assert.Equal(t, 0, tr.Badges(hod).Pending)
	assert.Equal(t, 1, tr.Badges(po).Pending)

	tr.Apply(events.Event{Kind: events.KindQueried, RequestID: "PR-1", RequesterID: "u-req",
		FromRole: role(domain.RoleProcurementOfficer)})
	assert.Equal(t, 0, tr.Badges(po).Pending)
	assert.Equal(t, 1, tr.Badges(requester).Queried)

	tr.Apply(events.Event{Kind: events.KindResubmitted, RequestID: "PR-1", RequesterID: "u-req",
		ToRole: role(domain.RoleProcurementOfficer)})
	assert.Equal(t, 0, tr.Badges(requester).Queried)
	assert.Equal(t, 1, tr.Badges(po).Pending)

	tr.Apply(events.Event{Kind: events.KindRejected, RequestID: "PR-1", RequesterID: "u-req",
		FromRole: role(domain.RoleProcurementOfficer)})
	assert.Equal(t, 0, tr.Badges(po).Pending)
	assert.Equal(t, 1, tr.Badges(requester).Rejected)
}

func TestBadgeCountersNeverGoNegative(t *testing.T) {
	tr := New(newMemReceipts())
	tr.Apply(events.Event{Kind: events.KindResubmitted, RequesterID: "u-req"})
	assert.Equal(t, 0, tr.Badges(domain.Session{UserID: "u-req"}).Queried)
}

func TestUpdateHookFiresPerAdjustment(t *testing.T) {
	var updates int
	tr := New(newMemReceipts(), WithUpdateHook(func() { updates++ }))

	tr.Apply(events.Event{Kind: events.KindSubmitted, ToRole: role(domain.RoleHeadOfDepartment)})
	tr.Apply(events.Event{Kind: events.KindCommentPosted})
	assert.Equal(t, 1, updates, "comment events do not adjust badges")
}

func unreadFixture() (*domain.Request, []*domain.Comment) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	req := &domain.Request{
		ID:        "PR-1",
		Requester: domain.Requester{UserID: "u-req"},
		Flow: []domain.FlowStep{
			{Role: domain.RoleHeadOfDepartment, Status: domain.StepPending},
		},
		History: []domain.HistoryEntry{
			{Action: domain.ActionSubmit, ActorID: "u-req", Timestamp: t0},
		},
	}
	comments := []*domain.Comment{
		{ID: "c-1", RequestID: "PR-1", Author: domain.Requester{UserID: "u-hod"}, CreatedAt: t0.Add(time.Hour)},
	}
	return req, comments
}

func TestUnreadBeforeAndAfterMarkRead(t *testing.T) {
	receipts := newMemReceipts()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := New(receipts, WithClock(func() time.Time { return now }))
	req, comments := unreadFixture()
	viewer := domain.Session{UserID: "u-hod", Role: domain.RoleHeadOfDepartment}
	ctx := context.Background()

	unread, err := tr.Unread(ctx, req, comments, viewer)
	require.NoError(t, err)
	assert.True(t, unread, "never-read request with history is unread")

	require.NoError(t, tr.MarkRead(ctx, "PR-1", "u-hod"))
	require.NoError(t, tr.MarkRead(ctx, "PR-1", "u-hod")) // idempotent

	unread, err = tr.Unread(ctx, req, comments, viewer)
	require.NoError(t, err)
	assert.False(t, unread)

	// A new comment after the read receipt flips it back.
	comments = append(comments, &domain.Comment{
		ID: "c-2", RequestID: "PR-1",
		Author:    domain.Requester{UserID: "u-req"},
		CreatedAt: now.Add(time.Minute),
	})
	unread, err = tr.Unread(ctx, req, comments, viewer)
	require.NoError(t, err)
	assert.True(t, unread)
}

func TestUnreadIgnoresOwnActivityAndForeignRequests(t *testing.T) {
	tr := New(newMemReceipts())
	req, comments := unreadFixture()
	ctx := context.Background()

	// The requester's own submit entry does not make it unread for them,
	// but the head of department's comment does.
	unread, err := tr.Unread(ctx, req, comments, domain.Session{UserID: "u-req", Role: domain.RoleRequester})
	require.NoError(t, err)
	assert.True(t, unread)

	unread, err = tr.Unread(ctx, req, comments[:0], domain.Session{UserID: "u-req", Role: domain.RoleRequester})
	require.NoError(t, err)
	assert.False(t, unread, "only the viewer's own history entry exists")

	// A viewer with no role in the flow and not the requester sees nothing.
	unread, err = tr.Unread(ctx, req, comments, domain.Session{UserID: "u-x", Role: domain.RoleITManager})
	require.NoError(t, err)
	assert.False(t, unread)
}
