package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrInsufficientBalance is returned when a debit exceeds the
	// remaining quota of a capped leave type.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateEntry is returned when an idempotency key has already
	// been used. Expected on client retries; the first write stands.
	ErrDuplicateEntry = errors.New("duplicate ledger entry")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InsufficientBalanceError details a balance shortage.
type InsufficientBalanceError struct {
	EmployeeID  string
	LeaveTypeID string
	FiscalYear  int
	Remaining   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s/%s in %d: remaining %s, requested %s",
		e.EmployeeID, e.LeaveTypeID, e.FiscalYear, e.Remaining, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }
