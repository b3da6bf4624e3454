package domain

import apperrors "github.com/harborline/be-procurement-requests/internal/errors"

// State is the lifecycle state of a request.
type State string

const (
	StatePending   State = "PENDING"
	StateQueried   State = "QUERIED"
	StateRejected  State = "REJECTED"
	StateApproved  State = "APPROVED"
	StateCompleted State = "COMPLETED"
)

var validStates = map[State]bool{
	StatePending:   true,
	StateQueried:   true,
	StateRejected:  true,
	StateApproved:  true,
	StateCompleted: true,
}

var terminalStates = map[State]bool{
	StateRejected:  true,
	StateCompleted: true,
}

// IsTerminal reports whether no further approve/reject/query is allowed.
func (s State) IsTerminal() bool { return terminalStates[s] }

// IsValid reports whether s is a known lifecycle state.
func (s State) IsValid() bool { return validStates[s] }

func (s State) String() string { return string(s) }

// RequestType is the kind of procurement request.
type RequestType string

const (
	TypePurchaseOrder RequestType = "purchase_order"
	TypePettyCash     RequestType = "petty_cash"
	TypeQuotation     RequestType = "quotation"
	TypeInStock       RequestType = "in_stock"
)

var validRequestTypes = map[RequestType]bool{
	TypePurchaseOrder: true,
	TypePettyCash:     true,
	TypeQuotation:     true,
	TypeInStock:       true,
}

func (t RequestType) IsValid() bool  { return validRequestTypes[t] }
func (t RequestType) String() string { return string(t) }

// ParseRequestType validates a raw request type at the model boundary.
func ParseRequestType(raw string) (RequestType, error) {
	t := RequestType(raw)
	if !t.IsValid() {
		return "", apperrors.InvalidInput("requestType", "unknown request type "+raw)
	}
	return t, nil
}

// Destination determines which workflow template a request follows.
type Destination string

const (
	DestinationMarine  Destination = "marine"
	DestinationProject Destination = "project"
	DestinationOffice  Destination = "office"
	DestinationIT      Destination = "it"
)

var validDestinations = map[Destination]bool{
	DestinationMarine:  true,
	DestinationProject: true,
	DestinationOffice:  true,
	DestinationIT:      true,
}

func (d Destination) IsValid() bool  { return validDestinations[d] }
func (d Destination) String() string { return string(d) }

// ParseDestination validates a raw destination at the model boundary.
func ParseDestination(raw string) (Destination, error) {
	d := Destination(raw)
	if !d.IsValid() {
		return "", apperrors.InvalidInput("destination", "unknown destination "+raw)
	}
	return d, nil
}

// Department is the requesting department.
type Department string

const (
	DepartmentDeck       Department = "deck"
	DepartmentEngine     Department = "engine"
	DepartmentLogistics  Department = "logistics"
	DepartmentAccounts   Department = "accounts"
	DepartmentOperations Department = "operations"
	DepartmentITSupport  Department = "it_support"
	DepartmentAdmin      Department = "admin"
)

var validDepartments = map[Department]bool{
	DepartmentDeck:       true,
	DepartmentEngine:     true,
	DepartmentLogistics:  true,
	DepartmentAccounts:   true,
	DepartmentOperations: true,
	DepartmentITSupport:  true,
	DepartmentAdmin:      true,
}

func (d Department) IsValid() bool  { return validDepartments[d] }
func (d Department) String() string { return string(d) }

// ParseDepartment validates a raw department at the model boundary.
func ParseDepartment(raw string) (Department, error) {
	d := Department(raw)
	if !d.IsValid() {
		return "", apperrors.InvalidInput("department", "unknown department "+raw)
	}
	return d, nil
}

// Role is an approval-chain role. Roles are compared by equality only; no
// substring matching exists anywhere in the service.
type Role string

const (
	RoleRequester          Role = "requester"
	RoleHeadOfDepartment   Role = "head_of_department"
	RoleProcurementOfficer Role = "procurement_officer"
	RoleFinanceManager     Role = "finance_manager"
	RoleTechnicalManager   Role = "technical_manager"
	RoleFleetManager       Role = "fleet_manager"
	RoleVesselManager      Role = "vessel_manager"
	RoleManagingDirector   Role = "managing_director"
	RoleITManager          Role = "it_manager"
	RoleStoreKeeper        Role = "store_keeper"
)

var validRoles = map[Role]bool{
	RoleRequester:          true,
	RoleHeadOfDepartment:   true,
	RoleProcurementOfficer: true,
	RoleFinanceManager:     true,
	RoleTechnicalManager:   true,
	RoleFleetManager:       true,
	RoleVesselManager:      true,
	RoleManagingDirector:   true,
	RoleITManager:          true,
	RoleStoreKeeper:        true,
}

func (r Role) IsValid() bool  { return validRoles[r] }
func (r Role) String() string { return string(r) }

// ParseRole validates a raw role at the model boundary.
func ParseRole(raw string) (Role, error) {
	r := Role(raw)
	if !r.IsValid() {
		return "", apperrors.InvalidInput("role", "unknown role "+raw)
	}
	return r, nil
}

// Priority is the urgency of a request; high priority alters the template.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool  { return p == PriorityNormal || p == PriorityHigh }
func (p Priority) String() string { return string(p) }

// Tag activates the shipping or clearing fee fields on line items.
type Tag string

const (
	TagNone     Tag = "none"
	TagShipping Tag = "shipping"
	TagClearing Tag = "clearing"
)

func (t Tag) IsValid() bool  { return t == TagNone || t == TagShipping || t == TagClearing }
func (t Tag) String() string { return string(t) }

// LogisticsType marks whether a line ships locally or internationally.
type LogisticsType string

const (
	LogisticsLocal         LogisticsType = "local"
	LogisticsInternational LogisticsType = "international"
)

func (l LogisticsType) IsValid() bool {
	return l == LogisticsLocal || l == LogisticsInternational
}
func (l LogisticsType) String() string { return string(l) }

// ItemType classifies a line item. Consumable and service lines are eligible
// for petty-cash treatment when a purchase order is split.
type ItemType string

const (
	ItemInventory  ItemType = "inventory"
	ItemMaterial   ItemType = "material"
	ItemConsumable ItemType = "consumable"
	ItemService    ItemType = "service"
)

var validItemTypes = map[ItemType]bool{
	ItemInventory:  true,
	ItemMaterial:   true,
	ItemConsumable: true,
	ItemService:    true,
}

func (t ItemType) IsValid() bool  { return validItemTypes[t] }
func (t ItemType) String() string { return string(t) }

// PettyCashEligible reports whether a line of this type moves to the derived
// petty-cash request on split.
func (t ItemType) PettyCashEligible() bool {
	return t == ItemConsumable || t == ItemService
}

// StepStatus is the status of one flow step.
type StepStatus string

const (
	// StepUpcoming marks steps after the current waypoint; only one step
	// carries StepPending at a time.
	StepUpcoming  StepStatus = "upcoming"
	StepPending   StepStatus = "pending"
	StepCompleted StepStatus = "completed"
	StepSkipped   StepStatus = "skipped"
)

func (s StepStatus) String() string { return string(s) }

// HistoryAction identifies one audit-log action.
type HistoryAction string

const (
	ActionSubmit   HistoryAction = "SUBMIT"
	ActionApprove  HistoryAction = "APPROVE"
	ActionReject   HistoryAction = "REJECT"
	ActionQuery    HistoryAction = "QUERY"
	ActionResubmit HistoryAction = "RESUBMIT"
	ActionSplit    HistoryAction = "SPLIT"
	ActionComplete HistoryAction = "COMPLETE"
)

func (a HistoryAction) String() string { return string(a) }
