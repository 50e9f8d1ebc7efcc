/*
store.go - Persistence interfaces for the leave domain

PURPOSE:
  The contract between the workflow engine and the database. Two
  implementations exist: store/sqlite (production) and store/memory
  (tests, dev). Both also implement ledger.Store so a single tx-scoped
  handle covers status transitions and balance entries together.

WRITE DISCIPLINE:
  - Requests are inserted once and then mutated only via UpdateRequest,
    which performs an optimistic version check.
  - Approvals and ledger entries are append-only; no update or delete
    methods exist for them.
  - Every decision path runs inside TxStore.WithTx, so a failure at any
    point rolls back the entire decision.

SEE ALSO:
  - store/sqlite/sqlite.go: production implementation
  - store/memory/memory.go: in-memory implementation
*/
package leave

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp/leave-engine/chain"
	"github.com/warp/leave-engine/ledger"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

// Store is the persistence surface of the leave domain.
type Store interface {
	ledger.Store

	// Requests
	SaveRequest(ctx context.Context, r *LeaveRequest) error
	GetRequest(ctx context.Context, id string) (*LeaveRequest, error)
	ListRequestsByEmployee(ctx context.Context, employeeID string) ([]*LeaveRequest, error)

	// UpdateRequest writes r if the stored version still equals
	// r.Version, then increments it. A lost race returns
	// ErrConcurrentModification and writes nothing.
	UpdateRequest(ctx context.Context, r *LeaveRequest) error

	// Approval trail (append-only)
	AppendApproval(ctx context.Context, a Approval) error
	ListApprovals(ctx context.Context, requestID string) ([]Approval, error)

	// Cancellations
	SaveCancellation(ctx context.Context, c *CancellationRequest) error
	GetOpenCancellation(ctx context.Context, requestID string) (*CancellationRequest, error)
	UpdateCancellation(ctx context.Context, c *CancellationRequest) error

	// Reference data
	GetEmployee(ctx context.Context, id string) (*Employee, error)
	SaveEmployee(ctx context.Context, e Employee) error
	ListEmployees(ctx context.Context) ([]Employee, error)
	SaveOrgUnit(ctx context.Context, u OrgUnit) error
	GetLeaveType(ctx context.Context, id string) (*ledger.LeaveType, error)
	SaveLeaveType(ctx context.Context, lt ledger.LeaveType) error
	ListLeaveTypes(ctx context.Context) ([]ledger.LeaveType, error)
}

// TxStore wraps Store with transaction support. fn receives a store
// scoped to the transaction; an error rolls everything back.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// STORE ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConcurrentModification is returned when an optimistic version
	// check fails. The caller may retry; the engine never does.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateApproval is returned when a second trail row is written
	// for the same (subject, chain, level). With decisions serialized per
	// request this indicates a replay racing a commit.
	ErrDuplicateApproval = errors.New("approval already recorded for this level")
)

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "leave request", "employee", ...
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR CODES - One mapping for the whole engine
// =============================================================================

// ErrorCode maps any engine error to its stable external code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrConcurrentModification), errors.Is(err, ErrDuplicateApproval):
		return "CONCURRENT_MODIFICATION"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, ledger.ErrDuplicateEntry):
		return "ALREADY_TERMINAL"
	default:
		return chain.Code(err)
	}
}
