/*
orchestrator_test.go - End-to-end decision flow tests

These tests run the whole engine against the in-memory store: submit,
route through the approval chain, and verify status, trail, and ledger
effects together. Cancellation flows are in cancellation_test.go.
*/
package workflow_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/chain"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
	"github.com/warp/leave-engine/store/memory"
	"github.com/warp/leave-engine/workflow"
)

// =============================================================================
// TEST FIXTURE - A small organization
// =============================================================================

type fixture struct {
	t     *testing.T
	store *memory.TxMemory
	orch  *workflow.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewTxMemory()
	ctx := context.Background()

	units := []leave.OrgUnit{
		{ID: "unit-eng", Name: "Engineering"},
		{ID: "unit-sales", Name: "Sales"},
		{ID: "unit-central", Name: "Central Administration", Central: true},
	}
	employees := []leave.Employee{
		{ID: "emp-eng", Role: leave.RoleEmployee, UnitID: "unit-eng"},
		{ID: "emp-central", Role: leave.RoleEmployee, UnitID: "unit-central"},
		{ID: "dir-eng", Role: leave.RoleUnitDirector, UnitID: "unit-eng"},
		{ID: "dir-sales", Role: leave.RoleUnitDirector, UnitID: "unit-sales"},
		{ID: "staff", Role: leave.RoleCentralStaff, UnitID: "unit-central"},
		{ID: "head", Role: leave.RoleCentralHead, UnitID: "unit-central"},
		{ID: "admin", Role: leave.RoleTopAdmin, UnitID: "unit-central"},
	}
	types := []ledger.LeaveType{
		{ID: "annual", Name: "Annual Leave", Capped: true, AnnualQuota: decimal.NewFromInt(10)},
		{ID: "sick", Name: "Sick Leave"},
	}

	for _, u := range units {
		require.NoError(t, store.SaveOrgUnit(ctx, u))
	}
	for _, e := range employees {
		require.NoError(t, store.SaveEmployee(ctx, e))
	}
	for _, lt := range types {
		require.NoError(t, store.SaveLeaveType(ctx, lt))
	}

	seq := 0
	orch := workflow.New(workflow.Config{
		Store: store,
		Now:   func() time.Time { return time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC) },
		NewID: func() string { seq++; return fmt.Sprintf("id-%03d", seq) },
	})

	return &fixture{t: t, store: store, orch: orch}
}

func (f *fixture) submit(employeeID string, dates ...string) *leave.LeaveRequest {
	f.t.Helper()
	ds, err := chain.ParseDateSet(dates)
	require.NoError(f.t, err)

	req, err := f.orch.Submit(context.Background(), leave.Submission{
		EmployeeID:  employeeID,
		LeaveTypeID: "annual",
		Dates:       ds,
		Reason:      "family visit",
	})
	require.NoError(f.t, err)
	return req
}

func (f *fixture) approve(reqID, actorID string) workflow.Result {
	f.t.Helper()
	res, err := f.orch.Approve(context.Background(), reqID, actorID, "ok")
	require.NoError(f.t, err)
	return res
}

func (f *fixture) request(id string) *leave.LeaveRequest {
	f.t.Helper()
	req, err := f.store.GetRequest(context.Background(), id)
	require.NoError(f.t, err)
	require.NotNil(f.t, req)
	return req
}

func (f *fixture) balance(employeeID string) ledger.Balance {
	f.t.Helper()
	lt, err := f.store.GetLeaveType(context.Background(), "annual")
	require.NoError(f.t, err)

	led := ledger.New(f.store, time.Now, func() string { return "bal" })
	bal, err := led.Balance(context.Background(), employeeID, *lt, 2026)
	require.NoError(f.t, err)
	return bal
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmit_PendingWithStoredSkipFlag(t *testing.T) {
	f := newFixture(t)

	req := f.submit("emp-eng", "2026-03-10", "2026-03-11")
	assert.Equal(t, leave.StatusPending, req.Status)
	assert.False(t, req.SkipLevelOne)

	central := f.submit("emp-central", "2026-03-10")
	assert.True(t, central.SkipLevelOne, "central unit requests skip level 1")
}

func TestSubmit_RejectsObviouslyUnfundableRequest(t *testing.T) {
	// GIVEN: A capped type with a 10-day quota
	// WHEN:  Requesting 12 days
	// THEN:  INSUFFICIENT_BALANCE before anything is persisted

	f := newFixture(t)

	var dates []string
	for day := 1; day <= 12; day++ {
		dates = append(dates, fmt.Sprintf("2026-03-%02d", day))
	}
	ds, err := chain.ParseDateSet(dates)
	require.NoError(t, err)

	_, err = f.orch.Submit(context.Background(), leave.Submission{
		EmployeeID:  "emp-eng",
		LeaveTypeID: "annual",
		Dates:       ds,
		Reason:      "sabbatical",
	})
	require.Error(t, err)
	assert.Equal(t, "INSUFFICIENT_BALANCE", leave.ErrorCode(err))

	reqs, err := f.store.ListRequestsByEmployee(context.Background(), "emp-eng")
	require.NoError(t, err)
	assert.Empty(t, reqs, "failed submission writes nothing")
}

// =============================================================================
// APPROVAL CHAIN - Happy paths
// =============================================================================

func TestApprove_FullChainDebitsOnce(t *testing.T) {
	// GIVEN: A 2-day request from a regular unit
	// WHEN:  All four levels approve in order
	// THEN:  approved_final, one 2-day debit, one trail row per level

	f := newFixture(t)
	req := f.submit("emp-eng", "2026-03-10", "2026-03-11")

	assert.Equal(t, leave.StatusApprovedLevel1, f.approve(req.ID, "dir-eng").NewStatus)
	assert.Equal(t, leave.StatusApprovedLevel2, f.approve(req.ID, "staff").NewStatus)
	assert.Equal(t, leave.StatusApprovedLevel3, f.approve(req.ID, "head").NewStatus)
	assert.Equal(t, leave.StatusApprovedFinal, f.approve(req.ID, "admin").NewStatus)

	bal := f.balance("emp-eng")
	assert.True(t, bal.Used.Equal(decimal.NewFromInt(2)))
	assert.True(t, bal.Remaining.Equal(decimal.NewFromInt(8)))

	trail, err := f.store.ListApprovals(context.Background(), req.ID)
	require.NoError(t, err)
	require.Len(t, trail, 4)
	for i, lvl := range []chain.Level{chain.Level1, chain.Level2, chain.Level3, chain.Level4} {
		assert.Equal(t, lvl, trail[i].Level)
		assert.Equal(t, chain.DecisionApproved, trail[i].Decision)
		assert.Equal(t, leave.ChainApproval, trail[i].Chain)
	}
}

func TestApprove_SkippedChainStartsAtLevel2(t *testing.T) {
	// GIVEN: A central-unit request
	// WHEN:  The chain runs
	// THEN:  Three approvals complete it; a unit director cannot act on it

	f := newFixture(t)
	req := f.submit("emp-central", "2026-03-10")

	_, err := f.orch.Approve(context.Background(), req.ID, "dir-eng", "")
	require.Error(t, err)
	assert.Equal(t, "INVALID_STATE_TRANSITION", leave.ErrorCode(err))

	assert.Equal(t, leave.StatusApprovedLevel2, f.approve(req.ID, "staff").NewStatus)
	assert.Equal(t, leave.StatusApprovedLevel3, f.approve(req.ID, "head").NewStatus)
	assert.Equal(t, leave.StatusApprovedFinal, f.approve(req.ID, "admin").NewStatus)

	trail, err := f.store.ListApprovals(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 3, "no level-1 row exists for a skipped chain")
}

func TestPartialApprove_WorkedExample(t *testing.T) {
	// GIVEN: A 5-day request against 10 remaining days
	// WHEN:  Level 2 approves 3 and rejects 2 with a reason, then
	//        levels 3 and 4 fully approve what remains
	// THEN:  Final debit is 3 days and the balance drops to 7

	f := newFixture(t)
	req := f.submit("emp-eng",
		"2026-03-10", "2026-03-11", "2026-03-12", "2026-03-13", "2026-03-14")

	f.approve(req.ID, "dir-eng")

	approved, err := chain.ParseDateSet([]string{"2026-03-10", "2026-03-11", "2026-03-12"})
	require.NoError(t, err)
	rejected, err := chain.ParseDateSet([]string{"2026-03-13", "2026-03-14"})
	require.NoError(t, err)

	res, err := f.orch.PartialApprove(context.Background(), req.ID, "staff",
		approved, rejected, "coverage too thin at week's end", "")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApprovedLevel2, res.NewStatus)

	stored := f.request(req.ID)
	assert.Equal(t, 3, stored.Days(), "effective set shrank")
	assert.Equal(t, 5, stored.RequestedDates.Count(), "original request untouched")

	f.approve(req.ID, "head")
	f.approve(req.ID, "admin")

	bal := f.balance("emp-eng")
	assert.True(t, bal.Used.Equal(decimal.NewFromInt(3)), "used %s", bal.Used)
	assert.True(t, bal.Remaining.Equal(decimal.NewFromInt(7)), "remaining %s", bal.Remaining)
}

// =============================================================================
// APPROVAL CHAIN - Failure paths
// =============================================================================

func TestReject_RequiresRemarksAndIsTerminal(t *testing.T) {
	f := newFixture(t)
	req := f.submit("emp-eng", "2026-03-10")

	_, err := f.orch.Reject(context.Background(), req.ID, "dir-eng", "")
	require.Error(t, err)
	assert.Equal(t, "MISSING_REJECTION_REASON", leave.ErrorCode(err))
	assert.Equal(t, leave.StatusPending, f.request(req.ID).Status, "failed decision rolls back")

	res, err := f.orch.Reject(context.Background(), req.ID, "dir-eng", "overlaps the audit")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, res.NewStatus)

	bal := f.balance("emp-eng")
	assert.True(t, bal.Used.IsZero(), "rejection never touches the ledger")

	_, err = f.orch.Approve(context.Background(), req.ID, "dir-eng", "")
	assert.Equal(t, "ALREADY_TERMINAL", leave.ErrorCode(err))
}

func TestDecide_AuthorizationFailures(t *testing.T) {
	f := newFixture(t)
	req := f.submit("emp-eng", "2026-03-10")

	// A plain employee decides no level at all.
	_, err := f.orch.Approve(context.Background(), req.ID, "emp-central", "")
	assert.Equal(t, "FORBIDDEN", leave.ErrorCode(err))

	// A director of another unit fails the same-unit rule.
	_, err = f.orch.Approve(context.Background(), req.ID, "dir-sales", "")
	assert.Equal(t, "FORBIDDEN", leave.ErrorCode(err))

	// A valid role acting out of stage is a state error, not an
	// authority error.
	_, err = f.orch.Approve(context.Background(), req.ID, "head", "")
	assert.Equal(t, "INVALID_STATE_TRANSITION", leave.ErrorCode(err))
}

func TestApprove_ReplayAfterFinal(t *testing.T) {
	f := newFixture(t)
	req := f.submit("emp-eng", "2026-03-10")

	f.approve(req.ID, "dir-eng")
	f.approve(req.ID, "staff")
	f.approve(req.ID, "head")
	f.approve(req.ID, "admin")

	// A replayed final approval must not debit twice.
	_, err := f.orch.Approve(context.Background(), req.ID, "admin", "")
	assert.Equal(t, "ALREADY_TERMINAL", leave.ErrorCode(err))

	bal := f.balance("emp-eng")
	assert.True(t, bal.Used.Equal(decimal.NewFromInt(1)))
}

func TestApprove_FinalDebitInsufficientRollsBack(t *testing.T) {
	// GIVEN: Two pending 8-day requests against a 10-day quota, the
	//        first already finally approved
	// WHEN:  The second reaches its final approval
	// THEN:  INSUFFICIENT_BALANCE, and the whole decision rolls back

	f := newFixture(t)

	first := f.submit("emp-eng",
		"2026-03-02", "2026-03-03", "2026-03-04", "2026-03-05",
		"2026-03-06", "2026-03-07", "2026-03-08", "2026-03-09")
	second := f.submit("emp-eng",
		"2026-04-02", "2026-04-03", "2026-04-04", "2026-04-05",
		"2026-04-06", "2026-04-07", "2026-04-08", "2026-04-09")

	for _, actor := range []string{"dir-eng", "staff", "head", "admin"} {
		f.approve(first.ID, actor)
	}
	for _, actor := range []string{"dir-eng", "staff", "head"} {
		f.approve(second.ID, actor)
	}

	_, err := f.orch.Approve(context.Background(), second.ID, "admin", "")
	require.Error(t, err)
	assert.Equal(t, "INSUFFICIENT_BALANCE", leave.ErrorCode(err))

	stored := f.request(second.ID)
	assert.Equal(t, leave.StatusApprovedLevel3, stored.Status, "status unchanged after rollback")

	trail, err := f.store.ListApprovals(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 3, "no trail row from the failed decision")

	bal := f.balance("emp-eng")
	assert.True(t, bal.Used.Equal(decimal.NewFromInt(8)), "only the first debit stands")
}

func TestPartialApprove_Level4BinaryByDefault(t *testing.T) {
	f := newFixture(t)
	req := f.submit("emp-eng", "2026-03-10", "2026-03-11")

	f.approve(req.ID, "dir-eng")
	f.approve(req.ID, "staff")
	f.approve(req.ID, "head")

	approved, _ := chain.ParseDateSet([]string{"2026-03-10"})
	rejected, _ := chain.ParseDateSet([]string{"2026-03-11"})

	_, err := f.orch.PartialApprove(context.Background(), req.ID, "admin",
		approved, rejected, "one day only", "")
	require.Error(t, err)
	assert.Equal(t, "FORBIDDEN", leave.ErrorCode(err))
}

func TestPartialApprove_MalformedSubsets(t *testing.T) {
	f := newFixture(t)
	req := f.submit("emp-eng", "2026-03-10", "2026-03-11")
	f.approve(req.ID, "dir-eng")

	full, _ := chain.ParseDateSet([]string{"2026-03-10", "2026-03-11"})
	one, _ := chain.ParseDateSet([]string{"2026-03-10"})
	foreign, _ := chain.ParseDateSet([]string{"2026-05-01"})

	// Approved and rejected must partition the effective set.
	_, err := f.orch.PartialApprove(context.Background(), req.ID, "staff",
		one, foreign, "reason given", "")
	assert.Equal(t, "DATE_SET_MISMATCH", leave.ErrorCode(err))

	// Zero approved days is not a partial approval.
	_, err = f.orch.PartialApprove(context.Background(), req.ID, "staff",
		nil, full, "reason given", "")
	assert.Equal(t, "EMPTY_APPROVED_SET", leave.ErrorCode(err))

	// The rejected remainder needs a reason.
	_, err = f.orch.PartialApprove(context.Background(), req.ID, "staff",
		one, one2(t), "", "")
	assert.Equal(t, "MISSING_REJECTION_REASON", leave.ErrorCode(err))
}

func one2(t *testing.T) chain.DateSet {
	ds, err := chain.ParseDateSet([]string{"2026-03-11"})
	require.NoError(t, err)
	return ds
}

func TestDecide_UnknownIDs(t *testing.T) {
	f := newFixture(t)
	req := f.submit("emp-eng", "2026-03-10")

	_, err := f.orch.Approve(context.Background(), "no-such-request", "dir-eng", "")
	assert.Equal(t, "NOT_FOUND", leave.ErrorCode(err))

	_, err = f.orch.Approve(context.Background(), req.ID, "no-such-actor", "")
	assert.Equal(t, "NOT_FOUND", leave.ErrorCode(err))
}
