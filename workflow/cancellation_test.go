/*
cancellation_test.go - Cancellation chain flow tests

The cancellation of a finally-approved request must credit back exactly
what was debited, exactly once; cancelling anything earlier must leave
the ledger untouched. Shares the fixture in orchestrator_test.go.
*/
package workflow_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/workflow"
)

func (f *fixture) initiateCancel(reqID, actorID string) {
	f.t.Helper()
	_, err := f.orch.InitiateCancellation(context.Background(), reqID, actorID,
		"plans changed, travel moved to the autumn")
	require.NoError(f.t, err)
}

func (f *fixture) approveCancel(reqID, actorID string) workflow.Result {
	f.t.Helper()
	res, err := f.orch.ApproveCancellation(context.Background(), reqID, actorID, "ok")
	require.NoError(f.t, err)
	return res
}

// =============================================================================
// INITIATION
// =============================================================================

func TestInitiateCancellation_PreconditionsAndOwnership(t *testing.T) {
	f := newFixture(t)
	req := f.submit("emp-eng", "2026-03-10")

	// Only the requester may start a cancellation.
	_, err := f.orch.InitiateCancellation(context.Background(), req.ID, "emp-central",
		"plans changed, travel moved")
	assert.Equal(t, "FORBIDDEN", leave.ErrorCode(err))

	// The reason has a minimum length.
	_, err = f.orch.InitiateCancellation(context.Background(), req.ID, "emp-eng", "nah")
	assert.Equal(t, "MISSING_REJECTION_REASON", leave.ErrorCode(err))

	f.initiateCancel(req.ID, "emp-eng")
	assert.Equal(t, leave.StatusPendingCancel, f.request(req.ID).Status)

	// A second initiation while one is underway is a state error.
	_, err = f.orch.InitiateCancellation(context.Background(), req.ID, "emp-eng",
		"changed my mind about changing my mind")
	assert.Equal(t, "INVALID_STATE_TRANSITION", leave.ErrorCode(err))
}

func TestInitiateCancellation_ClosedRequestsRefused(t *testing.T) {
	f := newFixture(t)
	req := f.submit("emp-eng", "2026-03-10")

	_, err := f.orch.Reject(context.Background(), req.ID, "dir-eng", "overlaps the audit")
	require.NoError(t, err)

	_, err = f.orch.InitiateCancellation(context.Background(), req.ID, "emp-eng",
		"plans changed, travel moved")
	assert.Equal(t, "ALREADY_TERMINAL", leave.ErrorCode(err))
}

func TestDecide_BlockedDuringCancellation(t *testing.T) {
	// GIVEN: A request mid-chain with a cancellation underway
	// WHEN:  A reviewer tries an approval-chain decision
	// THEN:  INVALID_STATE_TRANSITION

	f := newFixture(t)
	req := f.submit("emp-eng", "2026-03-10")
	f.approve(req.ID, "dir-eng")
	f.initiateCancel(req.ID, "emp-eng")

	_, err := f.orch.Approve(context.Background(), req.ID, "staff", "")
	assert.Equal(t, "INVALID_STATE_TRANSITION", leave.ErrorCode(err))
}

// =============================================================================
// FULL CANCELLATION CHAINS
// =============================================================================

func TestCancellation_PendingRequestNeverTouchesLedger(t *testing.T) {
	// A request cancelled before final approval was never debited, so its
	// cancellation credits nothing.

	f := newFixture(t)
	req := f.submit("emp-eng", "2026-03-10", "2026-03-11")
	f.initiateCancel(req.ID, "emp-eng")

	assert.Equal(t, leave.StatusCancelLevel1, f.approveCancel(req.ID, "dir-eng").NewStatus)
	assert.Equal(t, leave.StatusCancelLevel2, f.approveCancel(req.ID, "staff").NewStatus)
	assert.Equal(t, leave.StatusCancelLevel3, f.approveCancel(req.ID, "head").NewStatus)
	assert.Equal(t, leave.StatusCancelled, f.approveCancel(req.ID, "admin").NewStatus)

	bal := f.balance("emp-eng")
	assert.True(t, bal.Used.IsZero())
	assert.True(t, bal.Remaining.Equal(decimal.NewFromInt(10)))
}

func TestCancellation_ApprovedFinalCreditsOnce(t *testing.T) {
	// GIVEN: A finally-approved 4-day request (balance 6 remaining)
	// WHEN:  Its cancellation runs the full chain
	// THEN:  4 days are credited back; a replayed final approval of the
	//        cancellation is refused and credits nothing further

	f := newFixture(t)
	req := f.submit("emp-eng", "2026-03-10", "2026-03-11", "2026-03-12", "2026-03-13")
	for _, actor := range []string{"dir-eng", "staff", "head", "admin"} {
		f.approve(req.ID, actor)
	}
	require.True(t, f.balance("emp-eng").Remaining.Equal(decimal.NewFromInt(6)))

	f.initiateCancel(req.ID, "emp-eng")
	for _, actor := range []string{"dir-eng", "staff", "head"} {
		f.approveCancel(req.ID, actor)
	}
	res := f.approveCancel(req.ID, "admin")
	assert.Equal(t, leave.StatusCancelled, res.NewStatus)

	bal := f.balance("emp-eng")
	assert.True(t, bal.Used.IsZero(), "used %s", bal.Used)
	assert.True(t, bal.Remaining.Equal(decimal.NewFromInt(10)), "remaining %s", bal.Remaining)

	_, err := f.orch.ApproveCancellation(context.Background(), req.ID, "admin", "replay")
	assert.Equal(t, "ALREADY_TERMINAL", leave.ErrorCode(err))
	assert.True(t, f.balance("emp-eng").Remaining.Equal(decimal.NewFromInt(10)))
}

func TestCancellation_SkippedChain(t *testing.T) {
	// The skip rule stored on the request governs both chains.

	f := newFixture(t)
	req := f.submit("emp-central", "2026-03-10")
	f.initiateCancel(req.ID, "emp-central")

	_, err := f.orch.ApproveCancellation(context.Background(), req.ID, "dir-eng", "")
	assert.Equal(t, "INVALID_STATE_TRANSITION", leave.ErrorCode(err))

	assert.Equal(t, leave.StatusCancelLevel2, f.approveCancel(req.ID, "staff").NewStatus)
	assert.Equal(t, leave.StatusCancelLevel3, f.approveCancel(req.ID, "head").NewStatus)
	assert.Equal(t, leave.StatusCancelled, f.approveCancel(req.ID, "admin").NewStatus)
}

// =============================================================================
// REJECTED CANCELLATION
// =============================================================================

func TestRejectCancellation_RestoresPriorStatus(t *testing.T) {
	// GIVEN: A level-2 request whose cancellation is underway
	// WHEN:  A cancellation reviewer rejects it with a reason
	// THEN:  The request returns to approved_level2 and the approval
	//        chain resumes where it stood

	f := newFixture(t)
	req := f.submit("emp-eng", "2026-03-10")
	f.approve(req.ID, "dir-eng")
	f.approve(req.ID, "staff")

	f.initiateCancel(req.ID, "emp-eng")
	assert.Equal(t, leave.StatusPendingCancel, f.request(req.ID).Status)

	res, err := f.orch.RejectCancellation(context.Background(), req.ID, "dir-eng",
		"the leave is already staffed around")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApprovedLevel2, res.NewStatus)

	// The approval chain continues as if nothing happened.
	assert.Equal(t, leave.StatusApprovedLevel3, f.approve(req.ID, "head").NewStatus)
	assert.Equal(t, leave.StatusApprovedFinal, f.approve(req.ID, "admin").NewStatus)

	// And the request can be cancelled again, on a fresh chain.
	f.initiateCancel(req.ID, "emp-eng")
	assert.Equal(t, leave.StatusCancelLevel1, f.approveCancel(req.ID, "dir-eng").NewStatus)
}

func TestRejectCancellation_RequiresRemarks(t *testing.T) {
	f := newFixture(t)
	req := f.submit("emp-eng", "2026-03-10")
	f.initiateCancel(req.ID, "emp-eng")

	_, err := f.orch.RejectCancellation(context.Background(), req.ID, "dir-eng", "")
	assert.Equal(t, "MISSING_REJECTION_REASON", leave.ErrorCode(err))
	assert.Equal(t, leave.StatusPendingCancel, f.request(req.ID).Status)
}

func TestApproveCancellation_WithoutOpenCancellation(t *testing.T) {
	f := newFixture(t)
	req := f.submit("emp-eng", "2026-03-10")

	_, err := f.orch.ApproveCancellation(context.Background(), req.ID, "dir-eng", "")
	assert.Equal(t, "INVALID_STATE_TRANSITION", leave.ErrorCode(err))
}
