/*
Package workflow is the single entry point for all decision actions.

PURPOSE:
  The orchestrator receives every approve / reject / partial-approve /
  cancellation call, resolves the actor's authority, validates the
  request's current state, delegates to the generic decision chain, and
  commits trail rows, status transitions, and ledger mutations in one
  database transaction.

THE TWO CHAINS:
  One chain engine (package chain), two instantiations:
  - approval chain:     terminal success debits the balance ledger
  - cancellation chain: terminal success credits back what was debited

CONCURRENCY:
  Every operation runs read-validate-write inside TxStore.WithTx, and
  UpdateRequest carries an optimistic version check. Two reviewers
  racing on the same request serialize at the store; the loser gets
  ErrConcurrentModification and nothing is written. Decisions on
  different requests are fully independent.

IDEMPOTENCY:
  The final debit and the cancellation credit are each guarded twice:
  by the status precondition (a replay finds the request terminal and
  gets ErrAlreadyTerminal) and by a ledger idempotency key derived from
  the request id.

SEE ALSO:
  - decisions.go: the approval-chain operations
  - cancellation.go: the cancellation-chain operations
  - events.go: decision events for external notification delivery
*/
package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/chain"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
)

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator routes decisions through the two chains and the ledger.
type Orchestrator struct {
	store        leave.TxStore
	approval     chain.Ruleset
	cancellation chain.Ruleset
	authz        leave.AuthzTable
	log          *zap.Logger
	notifier     Notifier

	now   func() time.Time
	newID func() string
}

// Config carries the orchestrator's dependencies and policy knobs.
type Config struct {
	Store leave.TxStore

	// Authz defaults to leave.DefaultAuthzTable.
	Authz leave.AuthzTable

	// AllowFinalPartial lets the level-4 reviewer partially approve the
	// subset that survived levels 2-3. Off by default: the final level
	// is binary on whatever remains.
	AllowFinalPartial bool

	Logger   *zap.Logger
	Notifier Notifier

	// Now and NewID are injectable for tests.
	Now   func() time.Time
	NewID func() string
}

// New builds an orchestrator. Level 1 is binary-only by policy: partial
// approval starts at level 2. The cancellation chain is binary at every
// level.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		store:    cfg.Store,
		authz:    cfg.Authz,
		log:      cfg.Logger,
		notifier: cfg.Notifier,
		now:      cfg.Now,
		newID:    cfg.NewID,
	}
	if o.authz == nil {
		o.authz = leave.DefaultAuthzTable()
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.notifier == nil {
		o.notifier = NewLogNotifier(o.log)
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}

	partials := map[chain.Level]bool{chain.Level2: true, chain.Level3: true}
	if cfg.AllowFinalPartial {
		partials[chain.Level4] = true
	}
	o.approval = chain.Ruleset{Name: "approval", PartialLevels: partials}
	o.cancellation = chain.Ruleset{Name: "cancellation"}
	return o
}

// Result is the outcome surfaced to API callers after a decision.
type Result struct {
	RequestID string
	NewStatus leave.Status
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit creates a new leave request in pending state. The skip rule is
// evaluated here, once, against the current org chart. No ledger entry
// is written: balances move only at final approval and final
// cancellation approval.
func (o *Orchestrator) Submit(ctx context.Context, sub leave.Submission) (*leave.LeaveRequest, error) {
	var req *leave.LeaveRequest
	err := o.store.WithTx(ctx, func(s leave.Store) error {
		requester, err := o.employee(ctx, s, sub.EmployeeID)
		if err != nil {
			return err
		}
		lt, err := o.leaveType(ctx, s, sub.LeaveTypeID)
		if err != nil {
			return err
		}

		req, err = leave.NewLeaveRequest(o.newID(), sub, *requester, o.now())
		if err != nil {
			return err
		}

		// Soft balance check for capped types: reject obviously
		// unfundable requests up front. The authoritative check still
		// happens at final approval, because the balance and the date
		// set can both change before then.
		if lt.Capped {
			led := ledger.New(s, o.now, o.newID)
			bal, err := led.Balance(ctx, req.EmployeeID, *lt, req.FiscalYear)
			if err != nil {
				return err
			}
			requested := decimal.NewFromInt(int64(req.Days()))
			if requested.GreaterThan(bal.Remaining) {
				return &ledger.InsufficientBalanceError{
					EmployeeID:  req.EmployeeID,
					LeaveTypeID: lt.ID,
					FiscalYear:  req.FiscalYear,
					Remaining:   bal.Remaining,
					Requested:   requested,
				}
			}
		}

		return s.SaveRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	o.log.Info("leave request submitted",
		zap.String("request_id", req.ID),
		zap.String("employee_id", req.EmployeeID),
		zap.Int("days", req.Days()),
		zap.Bool("skip_level_one", req.SkipLevelOne))
	return req, nil
}

// =============================================================================
// SHARED LOOKUPS
// =============================================================================

func (o *Orchestrator) request(ctx context.Context, s leave.Store, id string) (*leave.LeaveRequest, error) {
	req, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &leave.NotFoundError{Kind: "leave request", ID: id}
	}
	return req, nil
}

func (o *Orchestrator) employee(ctx context.Context, s leave.Store, id string) (*leave.Employee, error) {
	emp, err := s.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if emp == nil {
		return nil, &leave.NotFoundError{Kind: "employee", ID: id}
	}
	return emp, nil
}

func (o *Orchestrator) leaveType(ctx context.Context, s leave.Store, id string) (*ledger.LeaveType, error) {
	lt, err := s.GetLeaveType(ctx, id)
	if err != nil {
		return nil, err
	}
	if lt == nil {
		return nil, &leave.NotFoundError{Kind: "leave type", ID: id}
	}
	return lt, nil
}

// actorLevel resolves which chain level the actor's role is entitled to
// decide, before any same-unit scope check.
func (o *Orchestrator) actorLevel(actor leave.Employee) (chain.Level, error) {
	for _, lvl := range []chain.Level{chain.Level1, chain.Level2, chain.Level3, chain.Level4} {
		rule, ok := o.authz[lvl]
		if ok && rule.Role == actor.Role {
			return lvl, nil
		}
	}
	return 0, &leave.ForbiddenError{ActorID: actor.ID, Detail: "role " + string(actor.Role) + " decides no approval level"}
}
