package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvalRules() Ruleset {
	return Ruleset{
		Name:          "approval",
		PartialLevels: map[Level]bool{Level2: true, Level3: true},
	}
}

func binaryRules() Ruleset {
	return Ruleset{Name: "cancellation"}
}

func fourLevels() Progress {
	return Progress{Required: []Level{Level1, Level2, Level3, Level4}}
}

func TestApply_ApproveAdvances(t *testing.T) {
	// GIVEN: A fresh four-level chain
	// WHEN: Level 1 approves
	// THEN: The chain waits on level 2 and the date set is untouched

	dates := mustDates(t, "2026-03-10", "2026-03-11")

	out, err := approvalRules().Apply(fourLevels(), dates, Decision{Level: Level1, Kind: DecisionApproved})
	require.NoError(t, err)

	assert.False(t, out.Final)
	assert.False(t, out.Rejected)
	assert.Equal(t, Level2, out.NextLevel)
	assert.True(t, out.Effective.Equal(dates))
}

func TestApply_LastLevelIsFinal(t *testing.T) {
	dates := mustDates(t, "2026-03-10")
	p := Progress{Required: []Level{Level1, Level2, Level3, Level4}, Completed: 3}

	out, err := approvalRules().Apply(p, dates, Decision{Level: Level4, Kind: DecisionApproved})
	require.NoError(t, err)
	assert.True(t, out.Final)
}

func TestApply_SkippedChainFinishesAtLevel4(t *testing.T) {
	// GIVEN: A chain whose required levels exclude level 1 (skip rule)
	// WHEN: Levels 2, 3 and 4 approve in order
	// THEN: The chain completes after exactly three decisions

	dates := mustDates(t, "2026-03-10")
	p := Progress{Required: []Level{Level2, Level3, Level4}}
	rs := approvalRules()

	for _, lvl := range []Level{Level2, Level3} {
		out, err := rs.Apply(p, dates, Decision{Level: lvl, Kind: DecisionApproved})
		require.NoError(t, err)
		assert.False(t, out.Final)
		p.Completed++
	}

	out, err := rs.Apply(p, dates, Decision{Level: Level4, Kind: DecisionApproved})
	require.NoError(t, err)
	assert.True(t, out.Final)
}

func TestApply_WrongLevelRejected(t *testing.T) {
	// GIVEN: A chain awaiting level 1
	// WHEN: Level 3 tries to decide
	// THEN: INVALID_STATE_TRANSITION

	dates := mustDates(t, "2026-03-10")

	_, err := approvalRules().Apply(fourLevels(), dates, Decision{Level: Level3, Kind: DecisionApproved})
	require.Error(t, err)

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, Level1, te.Awaiting)
	assert.Equal(t, Level3, te.Attempted)
	assert.Equal(t, "INVALID_STATE_TRANSITION", Code(err))
}

func TestApply_CompletedChainRefusesDecisions(t *testing.T) {
	dates := mustDates(t, "2026-03-10")
	p := Progress{Required: []Level{Level1, Level2, Level3, Level4}, Completed: 4}

	_, err := approvalRules().Apply(p, dates, Decision{Level: Level4, Kind: DecisionApproved})
	require.Error(t, err)

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Complete)
}

func TestApply_RejectionRequiresRemarks(t *testing.T) {
	dates := mustDates(t, "2026-03-10")

	_, err := approvalRules().Apply(fourLevels(), dates, Decision{Level: Level1, Kind: DecisionRejected})
	assert.ErrorIs(t, err, ErrMissingReason)

	_, err = approvalRules().Apply(fourLevels(), dates, Decision{Level: Level1, Kind: DecisionRejected, Comment: "   "})
	assert.ErrorIs(t, err, ErrMissingReason)

	out, err := approvalRules().Apply(fourLevels(), dates, Decision{Level: Level1, Kind: DecisionRejected, Comment: "overlaps the release"})
	require.NoError(t, err)
	assert.True(t, out.Rejected)
}

func TestApply_PartialNotAllowedAtLevel1(t *testing.T) {
	// Level 1 is binary by policy: the ruleset does not list it.

	dates := mustDates(t, "2026-03-10", "2026-03-11")

	_, err := approvalRules().Apply(fourLevels(), dates, Decision{
		Level:        Level1,
		Kind:         DecisionPartiallyApproved,
		Approved:     mustDates(t, "2026-03-10"),
		Rejected:     mustDates(t, "2026-03-11"),
		RejectReason: "coverage gap",
	})
	assert.ErrorIs(t, err, ErrPartialNotAllowed)
}

func TestApply_PartialShrinksEffectiveSet(t *testing.T) {
	// GIVEN: Level 2 awaiting a 5-day request
	// WHEN: 3 days are approved, 2 rejected with a reason
	// THEN: The chain advances carrying only the 3 approved days

	full := mustDates(t, "2026-03-10", "2026-03-11", "2026-03-12", "2026-03-13", "2026-03-14")
	approved := mustDates(t, "2026-03-10", "2026-03-11", "2026-03-12")
	rejected := mustDates(t, "2026-03-13", "2026-03-14")
	p := Progress{Required: []Level{Level1, Level2, Level3, Level4}, Completed: 1}

	out, err := approvalRules().Apply(p, full, Decision{
		Level:        Level2,
		Kind:         DecisionPartiallyApproved,
		Approved:     approved,
		Rejected:     rejected,
		RejectReason: "team coverage too thin on those days",
	})
	require.NoError(t, err)

	assert.False(t, out.Final)
	assert.Equal(t, Level3, out.NextLevel)
	assert.True(t, out.Effective.Equal(approved))
}

func TestApply_PartialValidation(t *testing.T) {
	full := mustDates(t, "2026-03-10", "2026-03-11")
	p := Progress{Required: []Level{Level1, Level2, Level3, Level4}, Completed: 1}
	rs := approvalRules()

	// Empty approved subset must be a full rejection instead.
	_, err := rs.Apply(p, full, Decision{
		Level:        Level2,
		Kind:         DecisionPartiallyApproved,
		Rejected:     full,
		RejectReason: "none of these work",
	})
	assert.ErrorIs(t, err, ErrEmptyApprovedSet)

	// Reject reason is required.
	_, err = rs.Apply(p, full, Decision{
		Level:    Level2,
		Kind:     DecisionPartiallyApproved,
		Approved: mustDates(t, "2026-03-10"),
		Rejected: mustDates(t, "2026-03-11"),
	})
	assert.ErrorIs(t, err, ErrMissingReason)

	// Subsets must partition the effective set exactly.
	_, err = rs.Apply(p, full, Decision{
		Level:        Level2,
		Kind:         DecisionPartiallyApproved,
		Approved:     mustDates(t, "2026-03-10"),
		Rejected:     mustDates(t, "2026-03-10", "2026-03-11"),
		RejectReason: "half",
	})
	assert.ErrorIs(t, err, ErrDateSetMismatch)
}

func TestApply_BinaryChainRefusesPartials(t *testing.T) {
	// The cancellation chain is all-or-nothing at every level.

	full := mustDates(t, "2026-03-10", "2026-03-11")
	p := Progress{Required: []Level{Level1, Level2, Level3, Level4}, Completed: 1}

	_, err := binaryRules().Apply(p, full, Decision{
		Level:        Level2,
		Kind:         DecisionPartiallyApproved,
		Approved:     mustDates(t, "2026-03-10"),
		Rejected:     mustDates(t, "2026-03-11"),
		RejectReason: "partial withdrawal",
	})
	assert.ErrorIs(t, err, ErrPartialNotAllowed)
}

func TestProgress_Awaiting(t *testing.T) {
	p := Progress{Required: []Level{Level2, Level3, Level4}, Completed: 1}

	lvl, ok := p.Awaiting()
	assert.True(t, ok)
	assert.Equal(t, Level3, lvl)

	p.Completed = 3
	_, ok = p.Awaiting()
	assert.False(t, ok)
	assert.True(t, p.IsComplete())
}
