package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/harborline/be-procurement-requests/internal/errors"
)

func TestStateTerminality(t *testing.T) {
	assert.True(t, StateRejected.IsTerminal())
	assert.True(t, StateCompleted.IsTerminal())
	assert.False(t, StatePending.IsTerminal())
	assert.False(t, StateQueried.IsTerminal())
	assert.False(t, StateApproved.IsTerminal())
}

func TestParseRejectsUnknownValues(t *testing.T) {
	_, err := ParseRole("Fleet Mgr")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.Code(err))

	_, err = ParseRequestType("pettycash")
	require.Error(t, err)

	_, err = ParseDestination("offshore")
	require.Error(t, err)

	_, err = ParseDepartment("deck ")
	require.Error(t, err)
}

func TestParseAcceptsCanonicalValues(t *testing.T) {
	r, err := ParseRole("fleet_manager")
	require.NoError(t, err)
	assert.Equal(t, RoleFleetManager, r)

	d, err := ParseDestination("marine")
	require.NoError(t, err)
	assert.Equal(t, DestinationMarine, d)
}

func TestPettyCashEligibility(t *testing.T) {
	assert.True(t, ItemConsumable.PettyCashEligible())
	assert.True(t, ItemService.PettyCashEligible())
	assert.False(t, ItemInventory.PettyCashEligible())
	assert.False(t, ItemMaterial.PettyCashEligible())
}

func TestLineItemValidate(t *testing.T) {
	valid := LineItem{
		Name:          "hydraulic hose",
		ItemType:      ItemMaterial,
		Quantity:      2,
		UnitPrice:     45.50,
		Currency:      "USD",
		DiscountPct:   5,
		LogisticsType: LogisticsLocal,
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*LineItem)
	}{
		{"missing name", func(li *LineItem) { li.Name = "" }},
		{"zero quantity", func(li *LineItem) { li.Quantity = 0 }},
		{"negative price", func(li *LineItem) { li.UnitPrice = -1 }},
		{"discount over 100", func(li *LineItem) { li.DiscountPct = 101 }},
		{"missing currency", func(li *LineItem) { li.Currency = "" }},
		{"fee on local line", func(li *LineItem) { li.FeeAmount = 10 }},
		{"bad item type", func(li *LineItem) { li.ItemType = "gadget" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			li := valid
			tc.mutate(&li)
			err := li.Validate()
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeValidation, apperrors.Code(err))
		})
	}
}

func TestCurrentStep(t *testing.T) {
	req := &Request{
		State: StatePending,
		Flow: []FlowStep{
			{Waypoint: WaypointHeadOfDepartment, Role: RoleHeadOfDepartment, Status: StepCompleted},
			{Waypoint: WaypointProcurementOfficer, Role: RoleProcurementOfficer, Status: StepPending},
			{Waypoint: WaypointFinanceManager, Role: RoleFinanceManager, Status: StepPending},
		},
	}
	// Only the first pending step is the current waypoint.
	assert.Equal(t, 1, req.CurrentStepIndex())
	require.NotNil(t, req.CurrentStep())
	assert.Equal(t, WaypointProcurementOfficer, req.CurrentStep().Waypoint)

	done := &Request{State: StateCompleted, Flow: []FlowStep{
		{Status: StepCompleted}, {Status: StepCompleted},
	}}
	assert.Equal(t, -1, done.CurrentStepIndex())
	assert.Nil(t, done.CurrentStep())
}

func TestDerivedFlagsTrackState(t *testing.T) {
	req := &Request{State: StateQueried}
	assert.True(t, req.IsQueried())
	assert.False(t, req.IsRejected())

	req.State = StateRejected
	assert.False(t, req.IsQueried())
	assert.True(t, req.IsRejected())
}

func TestAppendHistoryIsOrdered(t *testing.T) {
	req := &Request{}
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	req.AppendHistory(ActionSubmit, RoleRequester, "u1", "submitted", t0)
	req.AppendHistory(ActionApprove, RoleHeadOfDepartment, "u2", "approved", t0.Add(time.Hour))

	require.Len(t, req.History, 2)
	assert.Equal(t, ActionSubmit, req.History[0].Action)
	assert.Equal(t, ActionApprove, req.History[1].Action)
}
