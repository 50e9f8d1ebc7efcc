/*
Package chain provides the generic N-level decision chain engine.

PURPOSE:
  A leave request travels through an ordered chain of approval levels,
  and its cancellation travels through a structurally identical chain.
  Rather than duplicating the state machine, this package implements the
  chain once and is instantiated twice by the workflow orchestrator:
  once for approval (terminal success = ledger debit) and once for
  cancellation (terminal success = ledger credit).

KEY CONCEPTS:
  - Level:    one stage of the chain (1-4)
  - Progress: which levels apply to a subject and how many are done
  - Decision: one reviewer's verdict at a level, with structured
              approved/rejected date subsets for partial decisions
  - Ruleset:  injected policy (chain name + which levels admit partials)
  - Outcome:  the computed result (advance / final / rejected) plus the
              effective date set going forward

DESIGN PRINCIPLES:
  1. The engine is level-agnostic: "level 1 is binary-only" is policy
     carried by the Ruleset, not a structural rule.
  2. Partial decisions shrink the effective date set permanently;
     rejected days are never re-offered to later levels.
  3. The engine is pure: it validates and computes, the caller persists.

SEE ALSO:
  - dates.go: DateSet and the partition check
  - errors.go: sentinel errors returned by Apply
  - workflow/: the orchestrator that instantiates the two chains
*/
package chain

import "time"

// =============================================================================
// LEVELS AND DECISIONS
// =============================================================================

// Level is one stage of a decision chain.
type Level int

const (
	Level1 Level = 1
	Level2 Level = 2
	Level3 Level = 3
	Level4 Level = 4
)

// DecisionKind is the verdict a reviewer hands down at a level.
type DecisionKind string

const (
	DecisionApproved          DecisionKind = "approved"
	DecisionRejected          DecisionKind = "rejected"
	DecisionPartiallyApproved DecisionKind = "partially_approved"
)

// Decision is a single reviewer action at one level of a chain.
// For partial decisions the Approved/Rejected subsets and RejectReason
// are required; for full rejections Comment carries the reason.
type Decision struct {
	Level   Level
	Kind    DecisionKind
	ActorID string
	Comment string

	// Partial decision fields. Approved and Rejected must be a disjoint,
	// exact partition of the effective date set entering the level.
	Approved     DateSet
	Rejected     DateSet
	RejectReason string

	At time.Time
}

// =============================================================================
// PROGRESS - Where a subject stands in its chain
// =============================================================================

// Progress describes the levels that apply to a subject (after the
// organizational skip rule has been folded in) and how many of them
// have already been approved.
type Progress struct {
	Required  []Level
	Completed int
}

// Awaiting returns the level the chain is currently waiting on.
// ok is false when every required level has been approved.
func (p Progress) Awaiting() (Level, bool) {
	if p.Completed >= len(p.Required) {
		return 0, false
	}
	return p.Required[p.Completed], true
}

// IsComplete reports whether all required levels have been approved.
func (p Progress) IsComplete() bool {
	return p.Completed >= len(p.Required)
}

// =============================================================================
// OUTCOME - Result of applying a decision
// =============================================================================

// Outcome is the computed result of a decision. Exactly one of Final,
// Rejected, or a pending NextLevel describes where the subject goes.
type Outcome struct {
	// Final is true when the decision completed the chain (approval at
	// the last required level). The caller fires its terminal-success
	// action (debit or credit) in the same transaction.
	Final bool

	// Rejected is true when the decision terminated the chain.
	Rejected bool

	// NextLevel is the level now awaiting a decision. Only meaningful
	// when neither Final nor Rejected is set.
	NextLevel Level

	// Effective is the date set going forward. Equal to the input set
	// for full decisions, shrunk to the approved subset for partials.
	Effective DateSet
}

// =============================================================================
// RULESET - Injected chain policy
// =============================================================================

// Ruleset parameterizes a chain instance. The approval chain and the
// cancellation chain share this engine with different rulesets.
type Ruleset struct {
	// Name identifies the chain in errors and events ("approval",
	// "cancellation").
	Name string

	// PartialLevels lists the levels that admit partial decisions.
	// A nil map means the chain is binary at every level.
	PartialLevels map[Level]bool
}

// Apply validates decision d against the chain's progress and computes
// the outcome. effective is the date set entering the level; on partial
// approval the outcome carries the shrunk set.
//
// Apply is pure: it never mutates its inputs and persists nothing.
func (rs Ruleset) Apply(p Progress, effective DateSet, d Decision) (Outcome, error) {
	awaiting, ok := p.Awaiting()
	if !ok {
		return Outcome{}, &TransitionError{Chain: rs.Name, Attempted: d.Level, Complete: true}
	}
	if d.Level != awaiting {
		return Outcome{}, &TransitionError{Chain: rs.Name, Attempted: d.Level, Awaiting: awaiting}
	}

	switch d.Kind {
	case DecisionApproved:
		return rs.advance(p, effective), nil

	case DecisionRejected:
		if !hasText(d.Comment) {
			return Outcome{}, ErrMissingReason
		}
		return Outcome{Rejected: true, Effective: effective}, nil

	case DecisionPartiallyApproved:
		if !rs.PartialLevels[d.Level] {
			return Outcome{}, ErrPartialNotAllowed
		}
		if d.Approved.IsEmpty() {
			return Outcome{}, ErrEmptyApprovedSet
		}
		if !hasText(d.RejectReason) {
			return Outcome{}, ErrMissingReason
		}
		if err := CheckPartition(effective, d.Approved, d.Rejected); err != nil {
			return Outcome{}, err
		}
		return rs.advance(p, d.Approved), nil

	default:
		return Outcome{}, ErrInvalidStateTransition
	}
}

func (rs Ruleset) advance(p Progress, effective DateSet) Outcome {
	next := Progress{Required: p.Required, Completed: p.Completed + 1}
	if next.IsComplete() {
		return Outcome{Final: true, Effective: effective}
	}
	level, _ := next.Awaiting()
	return Outcome{NextLevel: level, Effective: effective}
}

// hasText reports whether s contains any non-whitespace character.
func hasText(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return true
		}
	}
	return false
}
