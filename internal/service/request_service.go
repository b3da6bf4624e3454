// Package service orchestrates the request lifecycle: it loads state, runs
// the workflow engine, persists the outcome under the optimistic version
// check, and fans events out to subscribers. Notification and audit side
// effects are never allowed to fail a lifecycle operation.
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/harborline/be-procurement-requests/internal/comments"
	"github.com/harborline/be-procurement-requests/internal/domain"
	"github.com/harborline/be-procurement-requests/internal/events"
	"github.com/harborline/be-procurement-requests/internal/logger"
	"github.com/harborline/be-procurement-requests/internal/metrics"
	"github.com/harborline/be-procurement-requests/internal/notifications"
	"github.com/harborline/be-procurement-requests/internal/pricing"
	"github.com/harborline/be-procurement-requests/internal/repository"
	"github.com/harborline/be-procurement-requests/internal/workflow"
)

// RequestStore is the persistence interface for requests, implemented by the
// repository layer and by in-memory stores in tests.
type RequestStore interface {
	Create(ctx context.Context, req *domain.Request) error
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	Save(ctx context.Context, req *domain.Request) error
	// SaveAndCreate persists a split atomically: the mutated origin and the
	// derived request commit or fail together.
	SaveAndCreate(ctx context.Context, origin, derived *domain.Request) error
	List(ctx context.Context, filter repository.ListFilter) ([]*domain.Request, int64, error)
	GetFlow(ctx context.Context, requestID string) ([]domain.FlowStep, error)
	NextOffshoreReqNumber(ctx context.Context, destination domain.Destination, department domain.Department) (string, error)
}

// RequestService handles procurement request business logic.
type RequestService struct {
	requests   RequestStore
	engine     *workflow.Engine
	ledger     *comments.Ledger
	tracker    *notifications.Tracker
	dispatcher *events.Dispatcher
	metrics    *metrics.Metrics
	log        *logger.Logger
}

// NewRequestService creates a new request service.
func NewRequestService(
	requests RequestStore,
	engine *workflow.Engine,
	ledger *comments.Ledger,
	tracker *notifications.Tracker,
	dispatcher *events.Dispatcher,
	m *metrics.Metrics,
	log *logger.Logger,
) *RequestService {
	return &RequestService{
		requests:   requests,
		engine:     engine,
		ledger:     ledger,
		tracker:    tracker,
		dispatcher: dispatcher,
		metrics:    m,
		log:        log,
	}
}

// SubmitRequestInput carries a new submission.
type SubmitRequestInput struct {
	Type           domain.RequestType
	Department     domain.Department
	Destination    domain.Destination
	VesselID       *string
	ProjectManager *string
	ApprovalPick   *domain.Role
	Priority       domain.Priority
	Tag            domain.Tag
	Items          []domain.LineItem
}

// Submit validates and prices a new request, instantiates its flow and
// persists it at the first waypoint. Marine requests are assigned an offshore
// request number exactly once, here.
func (s *RequestService) Submit(ctx context.Context, sess domain.Session, input SubmitRequestInput) (*domain.Request, error) {
	req := &domain.Request{
		ID:             uuid.NewString(),
		Type:           input.Type,
		Department:     input.Department,
		Destination:    input.Destination,
		VesselID:       input.VesselID,
		ProjectManager: input.ProjectManager,
		ApprovalPick:   input.ApprovalPick,
		Requester:      domain.Requester{UserID: sess.UserID, DisplayName: sess.DisplayName},
		Priority:       input.Priority,
		Tag:            input.Tag,
		Items:          input.Items,
	}
	for i := range req.Items {
		if req.Items[i].ID == "" {
			req.Items[i].ID = uuid.NewString()
		}
	}

	if err := s.engine.Submit(req, sess); err != nil {
		return nil, err
	}

	if needsOffshoreNumber(req) {
		number, err := s.requests.NextOffshoreReqNumber(ctx, req.Destination, req.Department)
		if err != nil {
			return nil, err
		}
		req.OffshoreReqNumber = &number
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.metrics.Transitions.WithLabelValues(string(domain.ActionSubmit)).Inc()
	s.publish(events.Event{
		Kind:        events.KindSubmitted,
		RequestID:   req.ID,
		ActorID:     sess.UserID,
		ActorRole:   sess.Role,
		RequesterID: req.Requester.UserID,
		To:          req.State,
		ToRole:      currentRole(req),
		At:          req.CreatedAt,
	})

	s.log.Info().
		Str("request_id", req.ID).
		Str("type", string(req.Type)).
		Str("department", string(req.Department)).
		Msg("request submitted")
	return req, nil
}

// GetRequest retrieves one request with items, flow and history.
func (s *RequestService) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	return s.requests.GetByID(ctx, id)
}

// Totals returns a request's per-currency aggregate totals.
func (s *RequestService) Totals(ctx context.Context, id string) (map[string]pricing.Totals, error) {
	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.engine.Pricing().Aggregate(req.Items, req.Tag)
}

// GetFlow retrieves just a request's waypoint list.
func (s *RequestService) GetFlow(ctx context.Context, id string) ([]domain.FlowStep, error) {
	return s.requests.GetFlow(ctx, id)
}

// ListBucket returns one page of a bucket view.
func (s *RequestService) ListBucket(ctx context.Context, filter repository.ListFilter) ([]*domain.Request, int64, error) {
	return s.requests.List(ctx, filter)
}

// Approve applies the current waypoint holder's approval.
func (s *RequestService) Approve(ctx context.Context, sess domain.Session, requestID string, expectedVersion int) (*domain.Request, error) {
	return s.transition(ctx, sess, requestID, events.KindApproved, domain.ActionApprove,
		func(req *domain.Request) error {
			return s.engine.Advance(req, sess, workflow.ActionApprove, "", expectedVersion)
		})
}

// Reject terminally rejects the request with a reason.
func (s *RequestService) Reject(ctx context.Context, sess domain.Session, requestID, reason string, expectedVersion int) (*domain.Request, error) {
	return s.transition(ctx, sess, requestID, events.KindRejected, domain.ActionReject,
		func(req *domain.Request) error {
			return s.engine.Advance(req, sess, workflow.ActionReject, reason, expectedVersion)
		})
}

// Query sends the request back to its requester for correction and posts the
// reason as a query-linked comment on the discussion.
func (s *RequestService) Query(ctx context.Context, sess domain.Session, requestID, reason string, expectedVersion int) (*domain.Request, error) {
	req, err := s.transition(ctx, sess, requestID, events.KindQueried, domain.ActionQuery,
		func(req *domain.Request) error {
			return s.engine.Advance(req, sess, workflow.ActionQuery, reason, expectedVersion)
		})
	if err != nil {
		return nil, err
	}

	// The query itself succeeded; a failed comment post loses the discussion
	// entry but not the audit history, so it is logged and swallowed.
	comment, err := s.ledger.Post(ctx, req.ID, sess, reason, nil)
	if err == nil {
		err = s.ledger.MarkQueryComment(ctx, comment.ID)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("request_id", req.ID).Msg("failed to record query comment")
	}
	return req, nil
}

// Resubmit returns a queried request to its waypoint. When items is non-nil
// it replaces the request's line items with the corrected ones first.
func (s *RequestService) Resubmit(ctx context.Context, sess domain.Session, requestID string, items []domain.LineItem, expectedVersion int) (*domain.Request, error) {
	return s.transition(ctx, sess, requestID, events.KindResubmitted, domain.ActionResubmit,
		func(req *domain.Request) error {
			if items != nil {
				for i := range items {
					if items[i].ID == "" {
						items[i].ID = uuid.NewString()
					}
				}
				req.Items = items
			}
			return s.engine.Resubmit(req, sess, expectedVersion)
		})
}

// CompleteDelivery reconciles delivered quantities and completes the request.
func (s *RequestService) CompleteDelivery(ctx context.Context, sess domain.Session, requestID string, delivered map[string]int, expectedVersion int) (*domain.Request, error) {
	return s.transition(ctx, sess, requestID, events.KindCompleted, domain.ActionComplete,
		func(req *domain.Request) error {
			return s.engine.CompleteDelivery(req, sess, delivered, expectedVersion)
		})
}

// Split extracts the petty-cash-eligible lines of a purchase order into a new
// petty-cash request and advances the origin past the procurement officer.
// Both requests are returned: origin first, derived second.
func (s *RequestService) Split(ctx context.Context, sess domain.Session, requestID string, expectedVersion int) (*domain.Request, *domain.Request, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}

	fromState := req.State
	fromRole := currentRole(req)

	derived, err := s.engine.Split(req, sess, expectedVersion)
	if err != nil {
		return nil, nil, err
	}

	if needsOffshoreNumber(derived) {
		number, err := s.requests.NextOffshoreReqNumber(ctx, derived.Destination, derived.Department)
		if err != nil {
			return nil, nil, err
		}
		derived.OffshoreReqNumber = &number
	}

	// One transaction: a failure must not leave the origin advanced with its
	// extracted items gone and no derived request to show for them.
	if err := s.requests.SaveAndCreate(ctx, req, derived); err != nil {
		return nil, nil, err
	}

	s.metrics.Transitions.WithLabelValues(string(domain.ActionSplit)).Inc()
	now := req.UpdatedAt
	s.publish(events.Event{
		Kind:        events.KindSplit,
		RequestID:   req.ID,
		ActorID:     sess.UserID,
		ActorRole:   sess.Role,
		RequesterID: req.Requester.UserID,
		From:        fromState,
		To:          req.State,
		FromRole:    fromRole,
		ToRole:      currentRole(req),
		At:          now,
		Payload:     map[string]any{"derived_request_id": derived.ID},
	})
	s.publish(events.Event{
		Kind:        events.KindSubmitted,
		RequestID:   derived.ID,
		ActorID:     sess.UserID,
		ActorRole:   sess.Role,
		RequesterID: derived.Requester.UserID,
		To:          derived.State,
		ToRole:      currentRole(derived),
		At:          derived.CreatedAt,
		Payload:     map[string]any{"origin_request_id": req.ID},
	})

	s.log.Info().
		Str("request_id", req.ID).
		Str("derived_request_id", derived.ID).
		Msg("purchase order split")
	return req, derived, nil
}

// ── Comments ──────────────────────────────────────────────────────────────────

// ListComments returns one page of a request's discussion.
func (s *RequestService) ListComments(ctx context.Context, requestID string, page int) (*comments.Thread, error) {
	if _, err := s.requests.GetFlow(ctx, requestID); err != nil {
		return nil, err
	}
	return s.ledger.List(ctx, requestID, page)
}

// PostComment appends a comment, optionally as a reply.
func (s *RequestService) PostComment(ctx context.Context, sess domain.Session, requestID, text string, parentID *string) (*domain.Comment, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	comment, err := s.ledger.Post(ctx, requestID, sess, text, parentID)
	if err != nil {
		return nil, err
	}

	s.metrics.CommentsPosted.Inc()
	s.publish(events.Event{
		Kind:        events.KindCommentPosted,
		RequestID:   requestID,
		ActorID:     sess.UserID,
		ActorRole:   sess.Role,
		RequesterID: req.Requester.UserID,
		At:          comment.CreatedAt,
		Payload:     map[string]any{"comment_id": comment.ID},
	})
	return comment, nil
}

// ExpandComment returns all direct replies of a comment.
func (s *RequestService) ExpandComment(ctx context.Context, commentID string) ([]*comments.Node, error) {
	return s.ledger.Expand(ctx, commentID)
}

// ── Notifications ─────────────────────────────────────────────────────────────

// MarkRead records that the viewer has seen the request.
func (s *RequestService) MarkRead(ctx context.Context, sess domain.Session, requestID string) error {
	if _, err := s.requests.GetFlow(ctx, requestID); err != nil {
		return err
	}
	return s.tracker.MarkRead(ctx, requestID, sess.UserID)
}

// Badges returns the viewer's badge counts.
func (s *RequestService) Badges(sess domain.Session) notifications.BadgeCounts {
	return s.tracker.Badges(sess)
}

// Unread reports whether the request has activity the viewer has not seen.
func (s *RequestService) Unread(ctx context.Context, sess domain.Session, requestID string) (bool, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return false, err
	}
	discussion, err := s.ledger.AllComments(ctx, requestID)
	if err != nil {
		return false, err
	}
	return s.tracker.Unread(ctx, req, discussion, sess)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// transition runs one engine mutation under load-mutate-save and publishes
// the resulting event.
func (s *RequestService) transition(
	ctx context.Context,
	sess domain.Session,
	requestID string,
	kind events.Kind,
	action domain.HistoryAction,
	mutate func(*domain.Request) error,
) (*domain.Request, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	fromState := req.State
	fromRole := currentRole(req)

	if err := mutate(req); err != nil {
		return nil, err
	}
	if err := s.requests.Save(ctx, req); err != nil {
		return nil, err
	}

	s.metrics.Transitions.WithLabelValues(string(action)).Inc()
	s.publish(events.Event{
		Kind:        kind,
		RequestID:   req.ID,
		ActorID:     sess.UserID,
		ActorRole:   sess.Role,
		RequesterID: req.Requester.UserID,
		From:        fromState,
		To:          req.State,
		FromRole:    fromRole,
		ToRole:      currentRole(req),
		At:          req.UpdatedAt,
	})

	s.log.Info().
		Str("request_id", req.ID).
		Str("action", string(action)).
		Str("from_state", string(fromState)).
		Str("to_state", string(req.State)).
		Msg("request transitioned")
	return req, nil
}

func (s *RequestService) publish(ev events.Event) {
	s.dispatcher.Publish(ev)
}

// needsOffshoreNumber reports whether the request belongs to an offshore
// sequence: marine requests from the deck or engine department.
func needsOffshoreNumber(req *domain.Request) bool {
	return req.Destination == domain.DestinationMarine &&
		(req.Department == domain.DepartmentDeck || req.Department == domain.DepartmentEngine)
}

// currentRole returns the role holding the pending waypoint, nil when none.
func currentRole(req *domain.Request) *domain.Role {
	if step := req.CurrentStep(); step != nil {
		role := step.Role
		return &role
	}
	return nil
}
