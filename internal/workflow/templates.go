package workflow

import (
	"github.com/harborline/be-procurement-requests/internal/domain"
	apperrors "github.com/harborline/be-procurement-requests/internal/errors"
)

// stepDef is one waypoint definition in a flow template.
type stepDef struct {
	waypoint domain.Waypoint
	role     domain.Role
}

// templateKey selects a flow template. Department does not change the
// waypoint sequence today but stays part of the key so department-specific
// chains can be added without touching the engine.
type templateKey struct {
	requestType domain.RequestType
	destination domain.Destination
}

var flowTemplates = map[templateKey][]stepDef{
	// Purchase orders run the full chain and end with a delivery
	// confirmation that reconciles delivered against requested quantities.
	{domain.TypePurchaseOrder, domain.DestinationMarine}:  purchaseOrderChain,
	{domain.TypePurchaseOrder, domain.DestinationProject}: purchaseOrderChain,
	{domain.TypePurchaseOrder, domain.DestinationOffice}:  purchaseOrderChain,
	{domain.TypePurchaseOrder, domain.DestinationIT}:      purchaseOrderChain,

	{domain.TypePettyCash, domain.DestinationOffice}:  pettyCashChain,
	{domain.TypePettyCash, domain.DestinationProject}: pettyCashChain,
	// Marine petty cash inserts the approval pick (technical or fleet
	// manager, chosen at submit) before the vessel manager.
	{domain.TypePettyCash, domain.DestinationMarine}: {
		{domain.WaypointApprovalPick, ""}, // role resolved from the pick
		{domain.WaypointVesselManager, domain.RoleVesselManager},
		{domain.WaypointProcurementOfficer, domain.RoleProcurementOfficer},
		{domain.WaypointFinanceManager, domain.RoleFinanceManager},
	},
	{domain.TypePettyCash, domain.DestinationIT}: {
		{domain.WaypointITManager, domain.RoleITManager},
		{domain.WaypointProcurementOfficer, domain.RoleProcurementOfficer},
		{domain.WaypointFinanceManager, domain.RoleFinanceManager},
	},

	{domain.TypeQuotation, domain.DestinationMarine}:  quotationChain,
	{domain.TypeQuotation, domain.DestinationProject}: quotationChain,
	{domain.TypeQuotation, domain.DestinationOffice}:  quotationChain,
	{domain.TypeQuotation, domain.DestinationIT}:      quotationChain,

	{domain.TypeInStock, domain.DestinationMarine}:  inStockChain,
	{domain.TypeInStock, domain.DestinationProject}: inStockChain,
	{domain.TypeInStock, domain.DestinationOffice}:  inStockChain,
	{domain.TypeInStock, domain.DestinationIT}:      inStockChain,
}

var purchaseOrderChain = []stepDef{
	{domain.WaypointHeadOfDepartment, domain.RoleHeadOfDepartment},
	{domain.WaypointProcurementOfficer, domain.RoleProcurementOfficer},
	{domain.WaypointFinanceManager, domain.RoleFinanceManager},
	{domain.WaypointManagingDirector, domain.RoleManagingDirector},
	{domain.WaypointDeliveryConfirmation, domain.RoleStoreKeeper},
}

var pettyCashChain = []stepDef{
	{domain.WaypointHeadOfDepartment, domain.RoleHeadOfDepartment},
	{domain.WaypointProcurementOfficer, domain.RoleProcurementOfficer},
	{domain.WaypointFinanceManager, domain.RoleFinanceManager},
}

var quotationChain = []stepDef{
	{domain.WaypointProcurementOfficer, domain.RoleProcurementOfficer},
	{domain.WaypointFinanceManager, domain.RoleFinanceManager},
}

var inStockChain = []stepDef{
	{domain.WaypointStoreKeeper, domain.RoleStoreKeeper},
	{domain.WaypointHeadOfDepartment, domain.RoleHeadOfDepartment},
}

// InstantiateFlow builds the ordered waypoint list for a request. The first
// step is pending, the rest upcoming. approvalPick must name the technical or
// fleet manager for marine petty cash and is ignored elsewhere.
func InstantiateFlow(
	requestType domain.RequestType,
	department domain.Department,
	destination domain.Destination,
	priority domain.Priority,
	approvalPick *domain.Role,
) ([]domain.FlowStep, error) {
	if !requestType.IsValid() {
		return nil, apperrors.InvalidInput("requestType", "unknown request type "+string(requestType))
	}
	if !department.IsValid() {
		return nil, apperrors.InvalidInput("department", "unknown department "+string(department))
	}
	if !destination.IsValid() {
		return nil, apperrors.InvalidInput("destination", "unknown destination "+string(destination))
	}
	if !priority.IsValid() {
		return nil, apperrors.InvalidInput("priority", "unknown priority "+string(priority))
	}

	defs, ok := flowTemplates[templateKey{requestType, destination}]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrCodeValidation,
			"no flow template for %s requests to %s", requestType, destination)
	}

	steps := make([]domain.FlowStep, 0, len(defs)+1)
	for _, def := range defs {
		role := def.role
		if def.waypoint == domain.WaypointApprovalPick {
			if approvalPick == nil {
				return nil, apperrors.InvalidInput("approvalPick",
					"marine petty cash requires choosing the technical or fleet manager")
			}
			if *approvalPick != domain.RoleTechnicalManager && *approvalPick != domain.RoleFleetManager {
				return nil, apperrors.InvalidInput("approvalPick",
					"must be the technical or fleet manager")
			}
			role = *approvalPick
		}
		steps = append(steps, domain.FlowStep{
			Waypoint: def.waypoint,
			Role:     role,
			Status:   domain.StepUpcoming,
		})
	}

	// High-priority petty cash gets managing-director oversight before the
	// final waypoint; purchase orders already carry it.
	if priority == domain.PriorityHigh && requestType == domain.TypePettyCash {
		steps = insertBeforeLast(steps, domain.FlowStep{
			Waypoint: domain.WaypointManagingDirector,
			Role:     domain.RoleManagingDirector,
			Status:   domain.StepUpcoming,
		})
	}

	steps[0].Status = domain.StepPending
	return steps, nil
}

func insertBeforeLast(steps []domain.FlowStep, step domain.FlowStep) []domain.FlowStep {
	out := make([]domain.FlowStep, 0, len(steps)+1)
	out = append(out, steps[:len(steps)-1]...)
	out = append(out, step, steps[len(steps)-1])
	return out
}
