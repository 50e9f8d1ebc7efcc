/*
request.go - Leave request construction and validation

PURPOSE:
  Builds a well-formed LeaveRequest from raw submission input. This is
  the single place where the skip rule is evaluated and the fiscal year
  derived; both are stored on the entity so later decisions never
  recompute them against a possibly-changed org chart.

SEE ALSO:
  - workflow/: persists the request and owns every later mutation
*/
package leave

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/leave-engine/chain"
)

// MinCancellationReasonLen is the minimum length of a cancellation
// reason after trimming whitespace.
const MinCancellationReasonLen = 10

// ErrInvalidRequest is returned for malformed submissions.
var ErrInvalidRequest = errors.New("invalid leave request")

// InvalidRequestError names the field that failed validation.
type InvalidRequestError struct {
	Field  string
	Detail string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid leave request: %s %s", e.Field, e.Detail)
}

func (e *InvalidRequestError) Unwrap() error { return ErrInvalidRequest }

// =============================================================================
// SUBMISSION
// =============================================================================

// Submission is the raw input for a new leave request.
type Submission struct {
	EmployeeID  string
	LeaveTypeID string
	Dates       []chain.Date
	Reason      string
	DelegateID  string
	ContactInfo string
}

// NewLeaveRequest validates a submission and builds the entity in its
// initial pending state. The requester must already be loaded so the
// skip rule can be evaluated against the current org chart.
func NewLeaveRequest(id string, sub Submission, requester Employee, now time.Time) (*LeaveRequest, error) {
	dates := chain.NewDateSet(sub.Dates...)
	if dates.IsEmpty() {
		return nil, &InvalidRequestError{Field: "dates", Detail: "must contain at least one day"}
	}
	if strings.TrimSpace(sub.Reason) == "" {
		return nil, &InvalidRequestError{Field: "reason", Detail: "is required"}
	}
	if sub.EmployeeID != requester.ID {
		return nil, &InvalidRequestError{Field: "employee_id", Detail: "does not match the requester"}
	}

	return &LeaveRequest{
		ID:             id,
		EmployeeID:     requester.ID,
		LeaveTypeID:    sub.LeaveTypeID,
		RequestedDates: dates,
		EffectiveDates: dates,
		Reason:         strings.TrimSpace(sub.Reason),
		DelegateID:     sub.DelegateID,
		ContactInfo:    strings.TrimSpace(sub.ContactInfo),
		Status:         StatusPending,
		SkipLevelOne:   requester.SkipsLevelOne(),
		FiscalYear:     dates.Earliest().Year,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ValidateCancellationReason enforces the minimum reason length for
// initiating a cancellation.
func ValidateCancellationReason(reason string) error {
	if len(strings.TrimSpace(reason)) < MinCancellationReasonLen {
		return fmt.Errorf("cancellation reason must be at least %d characters: %w",
			MinCancellationReasonLen, chain.ErrMissingReason)
	}
	return nil
}
