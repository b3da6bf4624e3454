// Package domain holds the procurement-request entities and the closed
// enumerations everything else operates on. Raw strings are validated here,
// at the model boundary, and nowhere else.
package domain

import (
	"time"

	apperrors "github.com/harborline/be-procurement-requests/internal/errors"
)

// Waypoint names one role-approval station in a flow template.
type Waypoint string

const (
	WaypointHeadOfDepartment     Waypoint = "head_of_department"
	WaypointApprovalPick         Waypoint = "approval_pick"
	WaypointVesselManager        Waypoint = "vessel_manager"
	WaypointProcurementOfficer   Waypoint = "procurement_officer"
	WaypointFinanceManager       Waypoint = "finance_manager"
	WaypointManagingDirector     Waypoint = "managing_director"
	WaypointITManager            Waypoint = "it_manager"
	WaypointStoreKeeper          Waypoint = "store_keeper"
	WaypointDeliveryConfirmation Waypoint = "delivery_confirmation"
)

func (w Waypoint) String() string { return string(w) }

// FlowStep is one instantiated waypoint in a request's flow. Exactly one step
// carries StepPending while the request is PENDING or QUERIED.
type FlowStep struct {
	Waypoint  Waypoint   `json:"waypoint"`
	Role      Role       `json:"role"`
	Status    StepStatus `json:"status"`
	ActorID   *string    `json:"actorId,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// LineItem is one priced entry within a request. TotalPrice is derived by the
// pricing engine and never independently settable.
type LineItem struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	ItemType      ItemType      `json:"itemType"`
	Maker         string        `json:"maker,omitempty"`
	MakersPartNo  string        `json:"makersPartNo,omitempty"`
	Quantity      int           `json:"quantity"`
	UnitPrice     float64       `json:"unitPrice"`
	Currency      string        `json:"currency"`
	Vatted        bool          `json:"vatted"`
	DiscountPct   float64       `json:"discountPct"`
	LogisticsType LogisticsType `json:"logisticsType"`
	FeeAmount     float64       `json:"feeAmount"`
	VendorID      string        `json:"vendorId,omitempty"`
	VendorName    string        `json:"vendorName,omitempty"`
	TotalPrice    float64       `json:"totalPrice"`
}

// Validate checks the line item's structural invariants.
func (li *LineItem) Validate() error {
	if li.Name == "" {
		return apperrors.InvalidInput("name", "line item name is required")
	}
	if !li.ItemType.IsValid() {
		return apperrors.InvalidInput("itemType", "unknown item type "+string(li.ItemType))
	}
	if li.Quantity < 1 {
		return apperrors.InvalidInput("quantity", "must be at least 1")
	}
	if li.UnitPrice < 0 {
		return apperrors.InvalidInput("unitPrice", "must not be negative")
	}
	if li.Currency == "" {
		return apperrors.InvalidInput("currency", "currency is required")
	}
	if li.DiscountPct < 0 || li.DiscountPct > 100 {
		return apperrors.InvalidInput("discountPct", "must be between 0 and 100")
	}
	if !li.LogisticsType.IsValid() {
		return apperrors.InvalidInput("logisticsType", "unknown logistics type "+string(li.LogisticsType))
	}
	if li.FeeAmount < 0 {
		return apperrors.InvalidInput("feeAmount", "must not be negative")
	}
	if li.FeeAmount > 0 && li.LogisticsType != LogisticsInternational {
		return apperrors.InvalidInput("feeAmount", "fees apply to international lines only")
	}
	return nil
}

// HistoryEntry is one immutable record in a request's audit log.
type HistoryEntry struct {
	Action    HistoryAction `json:"action"`
	Role      Role          `json:"role"`
	ActorID   string        `json:"actorId"`
	Info      string        `json:"info"`
	Timestamp time.Time     `json:"timestamp"`
}

// Requester identifies who submitted a request.
type Requester struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Session is the authenticated caller, passed explicitly by value into every
// operation. There is no ambient session state.
type Session struct {
	UserID      string
	DisplayName string
	Role        Role
}

// Request is a procurement submission moving through an approval chain.
// Requests are never deleted; terminal lifecycle states are the only end.
type Request struct {
	ID                string      `json:"id"`
	Type              RequestType `json:"type"`
	Department        Department  `json:"department"`
	Destination       Destination `json:"destination"`
	VesselID          *string     `json:"vesselId,omitempty"`
	OffshoreReqNumber *string     `json:"offshoreReqNumber,omitempty"`
	ProjectManager    *string     `json:"projectManager,omitempty"`
	// ApprovalPick names the role chosen at submit time for the marine
	// petty-cash approval-pick waypoint: technical or fleet manager.
	ApprovalPick *Role      `json:"approvalPick,omitempty"`
	Requester    Requester  `json:"requester"`
	Priority     Priority   `json:"priority"`
	Tag          Tag        `json:"tag"`
	Items        []LineItem `json:"items"`
	State        State      `json:"state"`
	Flow         []FlowStep `json:"flow"`
	// ProcurementApproved is the canonical record that the procurement
	// officer waypoint was satisfied, whether by an explicit approval or
	// by a split. Set only by the workflow engine at transition time.
	ProcurementApproved  bool           `json:"procurementApproved"`
	IsIncompleteDelivery bool           `json:"isIncompleteDelivery"`
	History              []HistoryEntry `json:"history"`
	// Version is the optimistic-concurrency token; every persisted
	// mutation increments it and stale writers fail with a conflict.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsQueried reports the derived queried flag, kept consistent with State.
func (r *Request) IsQueried() bool { return r.State == StateQueried }

// IsRejected reports the derived rejected flag, kept consistent with State.
func (r *Request) IsRejected() bool { return r.State == StateRejected }

// CurrentStepIndex returns the index of the single pending flow step, or -1
// when no step is pending (terminal or fully approved requests).
func (r *Request) CurrentStepIndex() int {
	for i := range r.Flow {
		if r.Flow[i].Status == StepPending {
			return i
		}
	}
	return -1
}

// CurrentStep returns the pending flow step, or nil when none is pending.
func (r *Request) CurrentStep() *FlowStep {
	if i := r.CurrentStepIndex(); i >= 0 {
		return &r.Flow[i]
	}
	return nil
}

// AppendHistory records an audit entry. The history is append-only.
func (r *Request) AppendHistory(action HistoryAction, role Role, actorID, info string, at time.Time) {
	r.History = append(r.History, HistoryEntry{
		Action:    action,
		Role:      role,
		ActorID:   actorID,
		Info:      info,
		Timestamp: at,
	})
}

// Comment is one entry in a request's threaded discussion. Comments form a
// tree via ParentCommentID and are never edited or deleted.
type Comment struct {
	ID              string    `json:"id"`
	RequestID       string    `json:"requestId"`
	Author          Requester `json:"author"`
	Role            Role      `json:"role"`
	Text            string    `json:"text"`
	CreatedAt       time.Time `json:"createdAt"`
	ParentCommentID *string   `json:"parentCommentId,omitempty"`
	IsQueryComment  bool      `json:"isQueryComment,omitempty"`
}

// MaxCommentLength caps comment text.
const MaxCommentLength = 1000
