package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/chain"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
)

func testRequest(id string) *leave.LeaveRequest {
	dates, _ := chain.ParseDateSet([]string{"2026-03-10", "2026-03-11"})
	now := time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)
	return &leave.LeaveRequest{
		ID:             id,
		EmployeeID:     "emp-1",
		LeaveTypeID:    "annual",
		RequestedDates: dates,
		EffectiveDates: dates,
		Reason:         "family visit",
		Status:         leave.StatusPending,
		FiscalYear:     2026,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMemory_RequestRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveRequest(ctx, testRequest("req-1")))

	got, err := m.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, leave.StatusPending, got.Status)
	assert.Equal(t, 2, got.Days())

	// Mutating the returned copy must not leak into the store.
	got.Status = leave.StatusRejected
	again, err := m.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, again.Status)

	missing, err := m.GetRequest(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing, "missing rows are nil, not an error")
}

func TestMemory_UpdateRequestVersionCheck(t *testing.T) {
	// GIVEN: Two readers holding the same version of a request
	// WHEN:  Both write
	// THEN:  The second write loses with ErrConcurrentModification

	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SaveRequest(ctx, testRequest("req-1")))

	first, _ := m.GetRequest(ctx, "req-1")
	second, _ := m.GetRequest(ctx, "req-1")

	first.Status = leave.StatusApprovedLevel1
	require.NoError(t, m.UpdateRequest(ctx, first))
	assert.Equal(t, 2, first.Version, "successful write bumps the caller's copy")

	second.Status = leave.StatusRejected
	err := m.UpdateRequest(ctx, second)
	assert.ErrorIs(t, err, leave.ErrConcurrentModification)

	stored, _ := m.GetRequest(ctx, "req-1")
	assert.Equal(t, leave.StatusApprovedLevel1, stored.Status, "losing write changed nothing")
	assert.Equal(t, 2, stored.Version)
}

func TestMemory_ApprovalTrailUniqueness(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	a := leave.Approval{ID: "ap-1", RequestID: "req-1", Chain: leave.ChainApproval,
		Level: chain.Level1, ActorID: "dir", Decision: chain.DecisionApproved}
	require.NoError(t, m.AppendApproval(ctx, a))

	// Same request, chain, and level again: refused.
	dup := a
	dup.ID = "ap-2"
	assert.ErrorIs(t, m.AppendApproval(ctx, dup), leave.ErrDuplicateApproval)

	// A cancellation-chain row at the same level is a different key.
	cancel := a
	cancel.ID = "ap-3"
	cancel.Chain = leave.ChainCancellation
	cancel.CancellationID = "can-1"
	require.NoError(t, m.AppendApproval(ctx, cancel))

	// A later cancellation gets its own trail at the same level.
	cancel.ID = "ap-4"
	cancel.CancellationID = "can-2"
	require.NoError(t, m.AppendApproval(ctx, cancel))

	trail, err := m.ListApprovals(ctx, "req-1")
	require.NoError(t, err)
	assert.Len(t, trail, 3)
}

func TestMemory_OpenCancellationLookup(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	open, err := m.GetOpenCancellation(ctx, "req-1")
	require.NoError(t, err)
	assert.Nil(t, open)

	c := &leave.CancellationRequest{ID: "can-1", RequestID: "req-1",
		PriorStatus: leave.StatusPending, Outcome: leave.CancellationOpen}
	require.NoError(t, m.SaveCancellation(ctx, c))

	open, err = m.GetOpenCancellation(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "can-1", open.ID)

	// Closing it removes it from the open lookup.
	open.Outcome = leave.CancellationRejected
	require.NoError(t, m.UpdateCancellation(ctx, open))

	open, err = m.GetOpenCancellation(ctx, "req-1")
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestMemory_EmployeeCarriesUnit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveOrgUnit(ctx, leave.OrgUnit{ID: "unit-central", Central: true}))
	require.NoError(t, m.SaveEmployee(ctx, leave.Employee{ID: "emp-1", Role: leave.RoleEmployee, UnitID: "unit-central"}))

	e, err := m.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.True(t, e.Unit.Central, "unit is joined onto the employee")
	assert.True(t, e.SkipsLevelOne())
}

func TestMemory_LedgerIdempotency(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	e := ledger.Entry{ID: "en-1", EmployeeID: "emp-1", LeaveTypeID: "annual",
		FiscalYear: 2026, Kind: ledger.EntryDebit,
		Delta: decimal.NewFromInt(-2), IdempotencyKey: "debit:req-1"}
	require.NoError(t, m.AppendEntry(ctx, e))

	e.ID = "en-2"
	assert.ErrorIs(t, m.AppendEntry(ctx, e), ledger.ErrDuplicateEntry)

	exists, err := m.EntryExists(ctx, "debit:req-1")
	require.NoError(t, err)
	assert.True(t, exists)

	entries, err := m.LoadEntries(ctx, "emp-1", "annual", 2026)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTxMemory_RollbackOnError(t *testing.T) {
	// GIVEN: A transaction that writes a request, a trail row, and a
	//        ledger entry, then fails
	// THEN:  None of the writes survive

	tm := NewTxMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	err := tm.WithTx(ctx, func(s leave.Store) error {
		if err := s.SaveRequest(ctx, testRequest("req-1")); err != nil {
			return err
		}
		if err := s.AppendApproval(ctx, leave.Approval{ID: "ap-1", RequestID: "req-1",
			Chain: leave.ChainApproval, Level: chain.Level1}); err != nil {
			return err
		}
		if err := s.AppendEntry(ctx, ledger.Entry{ID: "en-1", EmployeeID: "emp-1",
			LeaveTypeID: "annual", FiscalYear: 2026, Kind: ledger.EntryDebit,
			Delta: decimal.NewFromInt(-2), IdempotencyKey: "debit:req-1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, _ := tm.GetRequest(ctx, "req-1")
	assert.Nil(t, got)

	trail, _ := tm.ListApprovals(ctx, "req-1")
	assert.Empty(t, trail)

	exists, _ := tm.EntryExists(ctx, "debit:req-1")
	assert.False(t, exists, "idempotency key rolled back with the entry")
}

func TestTxMemory_CommitOnSuccess(t *testing.T) {
	tm := NewTxMemory()
	ctx := context.Background()

	err := tm.WithTx(ctx, func(s leave.Store) error {
		return s.SaveRequest(ctx, testRequest("req-1"))
	})
	require.NoError(t, err)

	got, err := tm.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, got)
}
