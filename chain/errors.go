/*
errors.go - Centralized error types for the decision chain engine

PURPOSE:
  All chain validation errors in one place. Domain packages and the
  orchestrator wrap these with additional context; the API layer maps
  them to stable error codes via Code().

ERROR CATEGORIES:
  1. Transition errors - decision doesn't fit the chain's current state
  2. Input errors - missing reason, bad date subsets
  3. Authority errors - actor not allowed to act at the level

USAGE:
  if errors.Is(err, chain.ErrInvalidStateTransition) { ... }
  code := chain.Code(err) // "INVALID_STATE_TRANSITION"

SEE ALSO:
  - chain.go: Ruleset.Apply returns these errors
  - leave/errors.go: domain-side sentinels share the Code mechanism
*/
package chain

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidStateTransition is returned when a decision is attempted
	// against a subject that is not awaiting that level.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrAlreadyTerminal is returned when acting on a closed subject.
	// Replaying a decision after the chain finished lands here, which is
	// what makes ledger mutations safe against client retries.
	ErrAlreadyTerminal = errors.New("subject is in a terminal state")

	// ErrForbidden is returned when the actor lacks authority for the level.
	ErrForbidden = errors.New("actor not authorized for this level")

	// ErrMissingReason is returned when a rejection (full or partial) or a
	// cancellation is submitted without a usable reason.
	ErrMissingReason = errors.New("rejection reason is required")

	// ErrEmptyApprovedSet is returned when a partial approval approves zero
	// days. Zero approved days must be a full rejection instead.
	ErrEmptyApprovedSet = errors.New("partial approval must approve at least one day")

	// ErrDateSetMismatch is returned when the approved/rejected subsets do
	// not form an exact disjoint partition of the effective date set.
	ErrDateSetMismatch = errors.New("approved/rejected subsets do not partition the date set")

	// ErrPartialNotAllowed is returned when the injected ruleset does not
	// admit partial decisions at the attempted level.
	ErrPartialNotAllowed = errors.New("partial approval not allowed at this level")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TransitionError reports a decision that doesn't match the awaiting level.
type TransitionError struct {
	Chain     string
	Attempted Level
	Awaiting  Level
	Complete  bool
}

func (e *TransitionError) Error() string {
	if e.Complete {
		return fmt.Sprintf("%s chain is already complete, cannot decide level %d", e.Chain, e.Attempted)
	}
	return fmt.Sprintf("%s chain is awaiting level %d, got decision for level %d", e.Chain, e.Awaiting, e.Attempted)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidStateTransition }

// DateSetMismatchError details a failed partition check.
type DateSetMismatchError struct {
	Full     DateSet
	Approved DateSet
	Rejected DateSet
	Detail   string
}

func (e *DateSetMismatchError) Error() string {
	return fmt.Sprintf("date set mismatch: %s (request %v, approved %v, rejected %v)",
		e.Detail, e.Full.Strings(), e.Approved.Strings(), e.Rejected.Strings())
}

func (e *DateSetMismatchError) Unwrap() error { return ErrDateSetMismatch }

// =============================================================================
// ERROR CODES - Stable identifiers surfaced to API callers
// =============================================================================

// Code maps an engine error to its stable external code. Unrecognized
// errors map to INTERNAL so nothing propagates as an unstructured fault.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyTerminal):
		return "ALREADY_TERMINAL"
	case errors.Is(err, ErrInvalidStateTransition):
		return "INVALID_STATE_TRANSITION"
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrPartialNotAllowed):
		return "FORBIDDEN"
	case errors.Is(err, ErrMissingReason):
		return "MISSING_REJECTION_REASON"
	case errors.Is(err, ErrEmptyApprovedSet):
		return "EMPTY_APPROVED_SET"
	case errors.Is(err, ErrDateSetMismatch):
		return "DATE_SET_MISMATCH"
	default:
		return "INTERNAL"
	}
}
