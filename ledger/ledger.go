/*
Package ledger tracks per-employee, per-leave-type entitlement balances.

PURPOSE:
  The ledger is the source of truth for how many leave days an employee
  has left. It is an append-only log of signed entries: quota grants,
  debits on final approval, credits on approved cancellation, and manual
  adjustments. Balance is always computed by replaying entries - there
  is no separate counter that can drift out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: entries are never updated or deleted. Corrections are
     made with adjustment entries.
  2. SINGLE DEBIT: a leave request is debited exactly once, at final
     approval, and credited at most once, on final cancellation approval.
     Both are guarded by idempotency keys derived from the request id.
  3. CAP ENFORCEMENT: for capped leave types a debit that would exceed
     the remaining quota fails and leaves the balance untouched. Uncapped
     types (sick-style) track usage only and always accept debits.
  4. TRANSACTIONAL: the orchestrator constructs the ledger over the
     tx-scoped store it receives from TxStore.WithTx, so ledger entries
     commit or roll back together with the status transition.

AMOUNTS:
  Day counts use decimal.Decimal. Whole days are the norm today, but
  quotas and adjustments must never accumulate float error.

SEE ALSO:
  - errors.go: InsufficientBalanceError
  - workflow/: the only caller that mutates balances
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEAVE TYPES
// =============================================================================

// LeaveType describes one category of leave and its quota behavior.
type LeaveType struct {
	ID   string
	Name string

	// Capped types have a fixed annual quota; debits beyond the
	// remaining balance fail. Uncapped types track usage only.
	Capped      bool
	AnnualQuota decimal.Decimal
}

// =============================================================================
// ENTRIES - Append-only balance changes
// =============================================================================

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	// EntryGrant adds entitlement beyond the annual quota (carryover,
	// compensation days awarded by an administrator).
	EntryGrant EntryKind = "grant"

	// EntryDebit consumes days. Written exactly once per leave request,
	// at final approval. Delta is negative.
	EntryDebit EntryKind = "debit"

	// EntryCredit returns previously debited days after an approved
	// cancellation. Written at most once per leave request.
	EntryCredit EntryKind = "credit"

	// EntryAdjustment is a manual correction by an administrator.
	EntryAdjustment EntryKind = "adjustment"
)

// Entry is one immutable ledger record.
type Entry struct {
	ID          string
	EmployeeID  string
	LeaveTypeID string
	FiscalYear  int

	// Delta is signed: grants and credits positive, debits negative.
	Delta decimal.Decimal
	Kind  EntryKind

	// ReferenceID links the entry to the leave request that caused it.
	ReferenceID string
	Reason      string

	// IdempotencyKey makes debit/credit replays detectable. Unique
	// across the whole ledger when non-empty.
	IdempotencyKey string

	CreatedAt time.Time
}

// =============================================================================
// STORE - Persistence needed by the ledger
// =============================================================================

// Store is the persistence surface the ledger needs. The sqlite and
// memory stores implement it alongside the leave store interfaces, so
// the same tx-scoped handle serves both.
type Store interface {
	// AppendEntry persists one entry. Fails if the idempotency key exists.
	AppendEntry(ctx context.Context, e Entry) error

	// LoadEntries returns all entries for (employee, leaveType, fiscalYear)
	// in insertion order.
	LoadEntries(ctx context.Context, employeeID, leaveTypeID string, fiscalYear int) ([]Entry, error)

	// EntryExists checks whether an idempotency key has been used.
	EntryExists(ctx context.Context, idempotencyKey string) (bool, error)
}

// =============================================================================
// BALANCE - Computed state for one (employee, type, year)
// =============================================================================

// Balance summarizes one entitlement pool.
type Balance struct {
	EmployeeID  string
	LeaveTypeID string
	FiscalYear  int

	// Quota is the annual entitlement plus grants. Zero for uncapped types.
	Quota decimal.Decimal

	// Used is total debits minus credits.
	Used decimal.Decimal

	// Remaining is Quota - Used. Meaningless for uncapped types, which
	// only report Used.
	Remaining decimal.Decimal

	Capped bool
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger exposes balance reads and the debit/credit/grant mutations.
// Construct one over the store (or tx-scoped store) you want to act on.
type Ledger struct {
	store Store
	now   func() time.Time
	newID func() string
}

// New creates a ledger over the given store.
func New(store Store, now func() time.Time, newID func() string) *Ledger {
	return &Ledger{store: store, now: now, newID: newID}
}

// Balance computes the current balance for one pool by replaying entries.
func (l *Ledger) Balance(ctx context.Context, employeeID string, lt LeaveType, fiscalYear int) (Balance, error) {
	entries, err := l.store.LoadEntries(ctx, employeeID, lt.ID, fiscalYear)
	if err != nil {
		return Balance{}, err
	}

	quota := decimal.Zero
	if lt.Capped {
		quota = lt.AnnualQuota
	}
	used := decimal.Zero
	for _, e := range entries {
		switch e.Kind {
		case EntryGrant, EntryAdjustment:
			quota = quota.Add(e.Delta)
		case EntryDebit, EntryCredit:
			used = used.Sub(e.Delta) // debits are negative deltas
		}
	}

	return Balance{
		EmployeeID:  employeeID,
		LeaveTypeID: lt.ID,
		FiscalYear:  fiscalYear,
		Quota:       quota,
		Used:        used,
		Remaining:   quota.Sub(used),
		Capped:      lt.Capped,
	}, nil
}

// Debit consumes days from a pool. For capped types the debit fails with
// InsufficientBalanceError when days exceed the remaining balance, and
// the pool is left untouched. For uncapped types it records usage.
func (l *Ledger) Debit(ctx context.Context, employeeID string, lt LeaveType, fiscalYear int, days decimal.Decimal, referenceID, reason string) error {
	if lt.Capped {
		bal, err := l.Balance(ctx, employeeID, lt, fiscalYear)
		if err != nil {
			return err
		}
		if days.GreaterThan(bal.Remaining) {
			return &InsufficientBalanceError{
				EmployeeID:  employeeID,
				LeaveTypeID: lt.ID,
				FiscalYear:  fiscalYear,
				Remaining:   bal.Remaining,
				Requested:   days,
			}
		}
	}

	return l.append(ctx, Entry{
		EmployeeID:     employeeID,
		LeaveTypeID:    lt.ID,
		FiscalYear:     fiscalYear,
		Delta:          days.Neg(),
		Kind:           EntryDebit,
		ReferenceID:    referenceID,
		Reason:         reason,
		IdempotencyKey: "debit:" + referenceID,
	})
}

// Credit returns previously debited days to a pool. The idempotency key
// is derived from the request id, so replaying the credit for the same
// request is rejected at the store.
func (l *Ledger) Credit(ctx context.Context, employeeID string, lt LeaveType, fiscalYear int, days decimal.Decimal, referenceID, reason string) error {
	key := "credit:" + referenceID
	exists, err := l.store.EntryExists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateEntry
	}
	return l.append(ctx, Entry{
		EmployeeID:     employeeID,
		LeaveTypeID:    lt.ID,
		FiscalYear:     fiscalYear,
		Delta:          days,
		Kind:           EntryCredit,
		ReferenceID:    referenceID,
		Reason:         reason,
		IdempotencyKey: key,
	})
}

// Grant adds entitlement (carryover, awarded days).
func (l *Ledger) Grant(ctx context.Context, employeeID string, lt LeaveType, fiscalYear int, days decimal.Decimal, reason string) error {
	return l.append(ctx, Entry{
		EmployeeID:  employeeID,
		LeaveTypeID: lt.ID,
		FiscalYear:  fiscalYear,
		Delta:       days,
		Kind:        EntryGrant,
		Reason:      reason,
	})
}

// Adjust records a signed manual correction by an administrator.
func (l *Ledger) Adjust(ctx context.Context, employeeID string, lt LeaveType, fiscalYear int, delta decimal.Decimal, reason string) error {
	return l.append(ctx, Entry{
		EmployeeID:  employeeID,
		LeaveTypeID: lt.ID,
		FiscalYear:  fiscalYear,
		Delta:       delta,
		Kind:        EntryAdjustment,
		Reason:      reason,
	})
}

func (l *Ledger) append(ctx context.Context, e Entry) error {
	e.ID = l.newID()
	e.CreatedAt = l.now()
	return l.store.AppendEntry(ctx, e)
}
