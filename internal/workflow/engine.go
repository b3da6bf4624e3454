// Package workflow implements the request lifecycle state machine: flow
// instantiation, submission, role-gated approvals, query/resubmit, the
// purchase-order to petty-cash split, and delivery completion.
//
// The engine mutates one in-memory request at a time and performs no I/O.
// Persistence, serialization of concurrent writers, and event publication
// belong to the service layer.
package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harborline/be-procurement-requests/internal/domain"
	apperrors "github.com/harborline/be-procurement-requests/internal/errors"
	"github.com/harborline/be-procurement-requests/internal/pricing"
)

// Action is a human decision applied to the current waypoint.
type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
	ActionQuery   Action = "QUERY"
)

// splitInfo is the audit-log info recorded on the origin request of a split.
const splitInfo = "Petty Cash items moved to Petty Cash flow"

// Engine drives request lifecycle transitions.
type Engine struct {
	pricing *pricing.Engine
	now     func() time.Time
	newID   func() string
}

// Option overrides an Engine default.
type Option func(*Engine)

// WithClock fixes the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator fixes the engine's ID source.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// New creates a workflow engine backed by the given pricing engine.
func New(pricingEngine *pricing.Engine, opts ...Option) *Engine {
	e := &Engine{
		pricing: pricingEngine,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Pricing exposes the engine's pricing rules for read paths that need
// aggregate totals.
func (e *Engine) Pricing() *pricing.Engine { return e.pricing }

// ── Submit ────────────────────────────────────────────────────────────────────

// Submit validates a freshly created request, prices its items, instantiates
// the flow template and puts the request at its first waypoint.
func (e *Engine) Submit(req *domain.Request, sess domain.Session) error {
	if err := e.validateRequired(req); err != nil {
		return err
	}
	if err := e.pricing.ValidateForSubmission(req.Items, req.Type, req.Destination); err != nil {
		return err
	}

	priced, err := e.pricing.PriceItems(req.Items)
	if err != nil {
		return err
	}
	req.Items = priced

	flow, err := InstantiateFlow(req.Type, req.Department, req.Destination, req.Priority, req.ApprovalPick)
	if err != nil {
		return err
	}
	req.Flow = flow
	req.State = domain.StatePending

	now := e.now()
	req.CreatedAt = now
	req.UpdatedAt = now
	req.AppendHistory(domain.ActionSubmit, domain.RoleRequester, sess.UserID, "request submitted", now)
	return nil
}

// validateRequired enforces the per-destination required fields.
func (e *Engine) validateRequired(req *domain.Request) error {
	if !req.Tag.IsValid() {
		return apperrors.InvalidInput("tag", "unknown tag "+string(req.Tag))
	}
	if req.Requester.UserID == "" {
		return apperrors.InvalidInput("requester", "requester is required")
	}
	switch req.Destination {
	case domain.DestinationMarine:
		if req.VesselID == nil || *req.VesselID == "" {
			return apperrors.InvalidInput("vesselId", "marine requests require a vessel")
		}
	case domain.DestinationProject:
		if req.VesselID == nil || *req.VesselID == "" {
			return apperrors.InvalidInput("vesselId", "project requests require a vessel")
		}
		if req.ProjectManager == nil || *req.ProjectManager == "" {
			return apperrors.InvalidInput("projectManager", "project requests require a project manager")
		}
	}
	return nil
}

// ── Advance ───────────────────────────────────────────────────────────────────

// Advance applies an approve, reject or query decision from the current
// waypoint's role holder. expectedVersion is the version the caller last
// fetched; a mismatch means another transition won and the caller must
// re-fetch. reason is required for reject and query and becomes the history
// info (and, for queries, the linked comment text).
func (e *Engine) Advance(req *domain.Request, sess domain.Session, action Action, reason string, expectedVersion int) error {
	if err := e.checkVersion(req, expectedVersion); err != nil {
		return err
	}
	if err := e.checkActionable(req); err != nil {
		return err
	}

	step := req.CurrentStep()
	if step == nil {
		return apperrors.New(apperrors.ErrCodeInvalidTransition, "request has no pending waypoint")
	}
	if sess.Role != step.Role {
		return apperrors.Newf(apperrors.ErrCodeUnauthorized,
			"waypoint %s requires role %s, actor holds %s", step.Waypoint, step.Role, sess.Role)
	}

	switch action {
	case ActionApprove:
		return e.approve(req, sess, step)
	case ActionReject:
		return e.reject(req, sess, step, reason)
	case ActionQuery:
		return e.query(req, sess, step, reason)
	}
	return apperrors.Newf(apperrors.ErrCodeValidation, "unknown action %q", action)
}

func (e *Engine) approve(req *domain.Request, sess domain.Session, step *domain.FlowStep) error {
	if req.State != domain.StatePending {
		return apperrors.Newf(apperrors.ErrCodeInvalidTransition,
			"cannot approve a request in state %s", req.State)
	}
	if step.Waypoint == domain.WaypointDeliveryConfirmation {
		return apperrors.New(apperrors.ErrCodeInvalidTransition,
			"the final waypoint is completed through delivery confirmation")
	}

	now := e.now()
	e.completeStep(step, sess.UserID, now)
	if step.Waypoint == domain.WaypointProcurementOfficer {
		req.ProcurementApproved = true
	}

	idx := e.stepIndex(req, step)
	if idx+1 < len(req.Flow) {
		req.Flow[idx+1].Status = domain.StepPending
		if req.Flow[idx+1].Waypoint == domain.WaypointDeliveryConfirmation {
			// All human approvals are in; only reconciliation remains.
			req.State = domain.StateApproved
		}
	} else {
		req.State = domain.StateApproved
	}

	req.UpdatedAt = now
	req.AppendHistory(domain.ActionApprove, sess.Role, sess.UserID,
		fmt.Sprintf("approved at %s", step.Waypoint), now)
	return nil
}

func (e *Engine) reject(req *domain.Request, sess domain.Session, step *domain.FlowStep, reason string) error {
	if reason == "" {
		return apperrors.InvalidInput("reason", "rejection reason is required")
	}
	// The waypoint stays as it was; the state is terminal.
	now := e.now()
	req.State = domain.StateRejected
	req.UpdatedAt = now
	req.AppendHistory(domain.ActionReject, sess.Role, sess.UserID, reason, now)
	return nil
}

func (e *Engine) query(req *domain.Request, sess domain.Session, step *domain.FlowStep, reason string) error {
	if req.State != domain.StatePending {
		return apperrors.Newf(apperrors.ErrCodeInvalidTransition,
			"cannot query a request in state %s", req.State)
	}
	if reason == "" {
		return apperrors.InvalidInput("reason", "query reason is required")
	}
	// The flow path is untouched: resubmission returns to this waypoint.
	now := e.now()
	req.State = domain.StateQueried
	req.UpdatedAt = now
	req.AppendHistory(domain.ActionQuery, sess.Role, sess.UserID, reason, now)
	return nil
}

// Resubmit returns a queried request to its untouched waypoint after the
// requester corrected it. Items are re-validated and re-priced since the
// query unlocked them for edits.
func (e *Engine) Resubmit(req *domain.Request, sess domain.Session, expectedVersion int) error {
	if err := e.checkVersion(req, expectedVersion); err != nil {
		return err
	}
	if req.State != domain.StateQueried {
		return apperrors.Newf(apperrors.ErrCodeInvalidTransition,
			"only queried requests can be resubmitted, state is %s", req.State)
	}
	if sess.UserID != req.Requester.UserID {
		return apperrors.New(apperrors.ErrCodeUnauthorized, "only the requester can resubmit")
	}
	if req.CurrentStep() == nil {
		return apperrors.New(apperrors.ErrCodeInvalidTransition, "request has no pending waypoint")
	}
	if err := e.pricing.ValidateForSubmission(req.Items, req.Type, req.Destination); err != nil {
		return err
	}

	priced, err := e.pricing.PriceItems(req.Items)
	if err != nil {
		return err
	}
	req.Items = priced

	now := e.now()
	req.State = domain.StatePending
	req.UpdatedAt = now
	req.AppendHistory(domain.ActionResubmit, domain.RoleRequester, sess.UserID, "request resubmitted", now)
	return nil
}

// ── Split ─────────────────────────────────────────────────────────────────────

// Split extracts the petty-cash-eligible lines of a purchase order into a new
// petty-cash request. Only the procurement officer at their own waypoint can
// split, and the origin waypoint is completed by the split: under the
// canonical accessor this is equivalent to an explicit approval there.
func (e *Engine) Split(req *domain.Request, sess domain.Session, expectedVersion int) (*domain.Request, error) {
	if err := e.checkVersion(req, expectedVersion); err != nil {
		return nil, err
	}
	if err := e.checkActionable(req); err != nil {
		return nil, err
	}
	if req.Type != domain.TypePurchaseOrder {
		return nil, apperrors.Newf(apperrors.ErrCodeInvalidTransition,
			"only purchase orders can be split, not %s", req.Type)
	}
	if req.State != domain.StatePending {
		return nil, apperrors.Newf(apperrors.ErrCodeInvalidTransition,
			"cannot split a request in state %s", req.State)
	}

	step := req.CurrentStep()
	if step == nil || step.Waypoint != domain.WaypointProcurementOfficer {
		return nil, apperrors.New(apperrors.ErrCodeInvalidTransition,
			"splits originate at the procurement officer waypoint")
	}
	if sess.Role != domain.RoleProcurementOfficer {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized,
			"only the procurement officer can split a purchase order")
	}

	var eligible, remaining []domain.LineItem
	for _, item := range req.Items {
		if item.ItemType.PettyCashEligible() {
			eligible = append(eligible, item)
		} else {
			remaining = append(remaining, item)
		}
	}
	if len(eligible) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeValidation,
			"no petty-cash-eligible items to split out")
	}
	if len(remaining) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeValidation,
			"every item is petty-cash eligible; approve as petty cash instead of splitting")
	}

	derived := &domain.Request{
		ID:             e.newID(),
		Type:           domain.TypePettyCash,
		Department:     req.Department,
		Destination:    req.Destination,
		VesselID:       req.VesselID,
		ProjectManager: req.ProjectManager,
		ApprovalPick:   e.derivedApprovalPick(req),
		Requester:      req.Requester,
		Priority:       req.Priority,
		Tag:            req.Tag,
		Items:          eligible,
	}
	if err := e.Submit(derived, sess); err != nil {
		return nil, err
	}
	derived.AppendHistory(domain.ActionSplit, sess.Role, sess.UserID,
		fmt.Sprintf("split from purchase order %s", req.ID), e.now())

	now := e.now()
	req.Items = remaining
	e.completeStep(step, sess.UserID, now)
	req.ProcurementApproved = true

	idx := e.stepIndex(req, step)
	if idx+1 < len(req.Flow) {
		req.Flow[idx+1].Status = domain.StepPending
	} else {
		req.State = domain.StateApproved
	}
	req.UpdatedAt = now
	req.AppendHistory(domain.ActionSplit, sess.Role, sess.UserID, splitInfo, now)

	return derived, nil
}

// derivedApprovalPick keeps a marine split instantiable: the derived petty
// cash flow needs a pick, and the purchase order never carried one.
func (e *Engine) derivedApprovalPick(req *domain.Request) *domain.Role {
	if req.Destination != domain.DestinationMarine {
		return nil
	}
	if req.ApprovalPick != nil {
		return req.ApprovalPick
	}
	pick := domain.RoleTechnicalManager
	return &pick
}

// ── Delivery completion ───────────────────────────────────────────────────────

// CompleteDelivery reconciles delivered quantities against requested ones at
// the delivery-confirmation waypoint and moves the request to COMPLETED,
// flagging it when any line came up short.
func (e *Engine) CompleteDelivery(req *domain.Request, sess domain.Session, delivered map[string]int, expectedVersion int) error {
	if err := e.checkVersion(req, expectedVersion); err != nil {
		return err
	}
	if err := e.checkActionable(req); err != nil {
		return err
	}

	step := req.CurrentStep()
	if step == nil || step.Waypoint != domain.WaypointDeliveryConfirmation {
		return apperrors.New(apperrors.ErrCodeInvalidTransition,
			"request is not awaiting delivery confirmation")
	}
	if sess.Role != step.Role {
		return apperrors.Newf(apperrors.ErrCodeUnauthorized,
			"delivery confirmation requires role %s", step.Role)
	}

	incomplete := false
	for _, item := range req.Items {
		if delivered[item.ID] < item.Quantity {
			incomplete = true
			break
		}
	}

	now := e.now()
	e.completeStep(step, sess.UserID, now)
	req.State = domain.StateCompleted
	req.IsIncompleteDelivery = incomplete
	req.UpdatedAt = now

	info := "delivery confirmed"
	if incomplete {
		info = "delivery confirmed with missing quantities"
	}
	req.AppendHistory(domain.ActionComplete, sess.Role, sess.UserID, info, now)
	return nil
}

// ── Canonical accessors ───────────────────────────────────────────────────────

// DisplayState is the state shown to clients. It is a pure function of the
// persisted state; history is never string-matched to derive it.
func DisplayState(req *domain.Request) domain.State { return req.State }

// ProcurementApproved reports whether the procurement officer waypoint was
// satisfied, by explicit approval or by a split. Both paths set the same
// persisted flag, so there is a single source of truth.
func ProcurementApproved(req *domain.Request) bool { return req.ProcurementApproved }

// ── Helpers ───────────────────────────────────────────────────────────────────

func (e *Engine) checkVersion(req *domain.Request, expectedVersion int) error {
	if expectedVersion != req.Version {
		return apperrors.Newf(apperrors.ErrCodeConflict,
			"request changed since last fetch (have version %d, expected %d); re-fetch and retry",
			req.Version, expectedVersion)
	}
	return nil
}

// checkActionable rejects transitions on terminal requests and refuses to
// operate on a request whose flow path is missing rather than guess a
// default waypoint.
func (e *Engine) checkActionable(req *domain.Request) error {
	if req.State.IsTerminal() {
		return apperrors.Newf(apperrors.ErrCodeInvalidTransition,
			"request is %s; no further actions are allowed", req.State)
	}
	if len(req.Flow) == 0 {
		return apperrors.New(apperrors.ErrCodeInvalidTransition,
			"request has no flow path; refusing to act")
	}
	return nil
}

func (e *Engine) completeStep(step *domain.FlowStep, actorID string, at time.Time) {
	step.Status = domain.StepCompleted
	step.ActorID = &actorID
	ts := at
	step.Timestamp = &ts
}

func (e *Engine) stepIndex(req *domain.Request, step *domain.FlowStep) int {
	for i := range req.Flow {
		if &req.Flow[i] == step {
			return i
		}
	}
	return -1
}
