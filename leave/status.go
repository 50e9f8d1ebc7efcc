/*
status.go - The leave request status machine

PURPOSE:
  Defines the externally surfaced status enum and the mapping between a
  status and the generic chain's Progress. The status field is the sole
  source of truth for where a request stands; consumers never parse
  comments to infer state.

STATUS FLOW:
  pending -> approved_level1 -> approved_level2 -> approved_level3 -> approved_final
     |             |                  |                  |
     +-------------+------------------+------------------+--> rejected

  Any non-rejected, non-cancelled status can enter the cancellation flow:

  pending_cancel -> cancel_level1 -> cancel_level2 -> cancel_level3 -> cancelled
        |                |                |                |
        +----------------+----------------+----------------+--> (prior status restored)

  With the level-1 skip rule, approved_level1 and cancel_level1 are
  unreachable: the request waits on level 2 while still showing
  pending / pending_cancel.

SEE ALSO:
  - chain/chain.go: Progress and the decision engine
  - workflow/: the only writer of this field
*/
package leave

import (
	"fmt"

	"github.com/warp/leave-engine/chain"
)

// =============================================================================
// STATUS ENUM
// =============================================================================

// Status is a leave request's workflow position.
type Status string

const (
	StatusPending        Status = "pending"
	StatusApprovedLevel1 Status = "approved_level1"
	StatusApprovedLevel2 Status = "approved_level2"
	StatusApprovedLevel3 Status = "approved_level3"
	StatusApprovedFinal  Status = "approved_final"
	StatusRejected       Status = "rejected"
	StatusCancelled      Status = "cancelled"
	StatusPendingCancel  Status = "pending_cancel"
	StatusCancelLevel1   Status = "cancel_level1"
	StatusCancelLevel2   Status = "cancel_level2"
	StatusCancelLevel3   Status = "cancel_level3"
)

// Terminal reports whether no further decision is valid on the request.
func (s Status) Terminal() bool {
	return s == StatusApprovedFinal || s == StatusRejected || s == StatusCancelled
}

// Closed reports whether the request can never become active again.
// approved_final is terminal for the approval chain but still cancellable,
// so it is terminal without being closed.
func (s Status) Closed() bool {
	return s == StatusRejected || s == StatusCancelled
}

// AwaitingApproval reports whether the request sits in the approval chain.
func (s Status) AwaitingApproval() bool {
	switch s {
	case StatusPending, StatusApprovedLevel1, StatusApprovedLevel2, StatusApprovedLevel3:
		return true
	}
	return false
}

// InCancellation reports whether a cancellation flow is underway.
func (s Status) InCancellation() bool {
	switch s {
	case StatusPendingCancel, StatusCancelLevel1, StatusCancelLevel2, StatusCancelLevel3:
		return true
	}
	return false
}

// Cancellable reports whether a cancellation may be initiated.
func (s Status) Cancellable() bool {
	return s.AwaitingApproval() || s == StatusApprovedFinal
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApprovedLevel1, StatusApprovedLevel2, StatusApprovedLevel3,
		StatusApprovedFinal, StatusRejected, StatusCancelled,
		StatusPendingCancel, StatusCancelLevel1, StatusCancelLevel2, StatusCancelLevel3:
		return true
	}
	return false
}

// =============================================================================
// REQUIRED LEVELS - The skip rule as data
// =============================================================================

// RequiredLevels returns the chain levels that apply to a request.
// The stored skip flag removes level 1; levels 2-4 always apply.
func RequiredLevels(skipLevelOne bool) []chain.Level {
	if skipLevelOne {
		return []chain.Level{chain.Level2, chain.Level3, chain.Level4}
	}
	return []chain.Level{chain.Level1, chain.Level2, chain.Level3, chain.Level4}
}

// =============================================================================
// STATUS <-> PROGRESS MAPPING
// =============================================================================

// ApprovalProgress maps an approval-chain status onto chain.Progress.
func ApprovalProgress(s Status, skipLevelOne bool) (chain.Progress, error) {
	var reached chain.Level
	switch s {
	case StatusPending:
		reached = 0
	case StatusApprovedLevel1:
		reached = chain.Level1
	case StatusApprovedLevel2:
		reached = chain.Level2
	case StatusApprovedLevel3:
		reached = chain.Level3
	default:
		return chain.Progress{}, fmt.Errorf("status %q is not in the approval chain: %w", s, chain.ErrInvalidStateTransition)
	}
	return progressFor(reached, skipLevelOne), nil
}

// CancellationProgress maps a cancellation-chain status onto chain.Progress.
func CancellationProgress(s Status, skipLevelOne bool) (chain.Progress, error) {
	var reached chain.Level
	switch s {
	case StatusPendingCancel:
		reached = 0
	case StatusCancelLevel1:
		reached = chain.Level1
	case StatusCancelLevel2:
		reached = chain.Level2
	case StatusCancelLevel3:
		reached = chain.Level3
	default:
		return chain.Progress{}, fmt.Errorf("status %q is not in the cancellation chain: %w", s, chain.ErrInvalidStateTransition)
	}
	return progressFor(reached, skipLevelOne), nil
}

func progressFor(reached chain.Level, skipLevelOne bool) chain.Progress {
	required := RequiredLevels(skipLevelOne)
	completed := 0
	for _, lvl := range required {
		if lvl <= reached {
			completed++
		}
	}
	return chain.Progress{Required: required, Completed: completed}
}

// StatusAfterApproval returns the status following an approval (full or
// partial) at the given level.
func StatusAfterApproval(level chain.Level, final bool) Status {
	if final {
		return StatusApprovedFinal
	}
	switch level {
	case chain.Level1:
		return StatusApprovedLevel1
	case chain.Level2:
		return StatusApprovedLevel2
	case chain.Level3:
		return StatusApprovedLevel3
	}
	return StatusApprovedFinal
}

// StatusAfterCancelApproval returns the status following an approval at
// the given level of the cancellation chain.
func StatusAfterCancelApproval(level chain.Level, final bool) Status {
	if final {
		return StatusCancelled
	}
	switch level {
	case chain.Level1:
		return StatusCancelLevel1
	case chain.Level2:
		return StatusCancelLevel2
	case chain.Level3:
		return StatusCancelLevel3
	}
	return StatusCancelled
}
