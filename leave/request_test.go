package leave

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/chain"
)

func testSubmission(employeeID string) Submission {
	return Submission{
		EmployeeID:  employeeID,
		LeaveTypeID: "annual",
		Dates: []chain.Date{
			chain.NewDate(2026, time.March, 12),
			chain.NewDate(2026, time.March, 10),
			chain.NewDate(2026, time.March, 10),
		},
		Reason:      "family visit",
		DelegateID:  "emp-2",
		ContactInfo: "  +49 170 000  ",
	}
}

func TestNewLeaveRequest_InitialState(t *testing.T) {
	requester := Employee{ID: "emp-1", Role: RoleEmployee, UnitID: "unit-eng",
		Unit: OrgUnit{ID: "unit-eng", Central: false}}
	now := time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)

	req, err := NewLeaveRequest("req-1", testSubmission("emp-1"), requester, now)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, 1, req.Version)
	assert.Equal(t, 2, req.Days(), "duplicate dates collapse")
	assert.True(t, req.EffectiveDates.Equal(req.RequestedDates))
	assert.Equal(t, 2026, req.FiscalYear, "fiscal year from the earliest date")
	assert.False(t, req.SkipLevelOne)
	assert.Equal(t, "+49 170 000", req.ContactInfo)
	assert.Equal(t, now, req.CreatedAt)
}

func TestNewLeaveRequest_SkipRuleStoredAtCreation(t *testing.T) {
	// The skip flag is evaluated once against the current org chart and
	// stored; later unit moves must not change the request's chain.

	central := Employee{ID: "emp-3", Role: RoleEmployee, UnitID: "unit-central",
		Unit: OrgUnit{ID: "unit-central", Central: true}}

	req, err := NewLeaveRequest("req-1", testSubmission("emp-3"), central, time.Now())
	require.NoError(t, err)
	assert.True(t, req.SkipLevelOne)
}

func TestNewLeaveRequest_Validation(t *testing.T) {
	requester := Employee{ID: "emp-1", Role: RoleEmployee, UnitID: "unit-eng"}

	sub := testSubmission("emp-1")
	sub.Dates = nil
	_, err := NewLeaveRequest("req-1", sub, requester, time.Now())
	assert.ErrorIs(t, err, ErrInvalidRequest)

	sub = testSubmission("emp-1")
	sub.Reason = "   "
	_, err = NewLeaveRequest("req-1", sub, requester, time.Now())
	assert.ErrorIs(t, err, ErrInvalidRequest)

	sub = testSubmission("emp-other")
	_, err = NewLeaveRequest("req-1", sub, requester, time.Now())
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestValidateCancellationReason(t *testing.T) {
	assert.NoError(t, ValidateCancellationReason("plans changed, travel moved"))

	assert.ErrorIs(t, ValidateCancellationReason(""), chain.ErrMissingReason)
	assert.ErrorIs(t, ValidateCancellationReason("too short"), chain.ErrMissingReason)
	assert.ErrorIs(t, ValidateCancellationReason("            "), chain.ErrMissingReason)
}
