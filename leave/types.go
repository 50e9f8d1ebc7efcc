/*
Package leave defines the leave-request domain model.

PURPOSE:
  The entities routed by the workflow engine: leave requests, their
  approval/cancellation trails, and the organizational reference data
  (employees, units, roles) that determines who may act at which level.

KEY CONCEPTS IN THIS FILE (types.go):
  - LeaveRequest: the record being routed, with requested vs effective
    date sets (partials shrink the effective set)
  - Approval: one immutable trail row per (subject, chain, level)
  - CancellationRequest: the withdrawal record with its own trail
  - Employee/OrgUnit/Role: who acts, and the skip-rule input

DESIGN PRINCIPLES:
  1. Trail rows are append-only; requests mutate only through the
     orchestrator.
  2. The skip rule is data: evaluated once at creation, stored on the
     request, consumed uniformly by the status machine.
  3. Partial approval detail lives in typed fields on the trail row,
     never inside formatted comment text.

SEE ALSO:
  - status.go: the status enum and chain progress mapping
  - authz.go: role-to-level authorization table
  - store.go: persistence interfaces
*/
package leave

import (
	"time"

	"github.com/warp/leave-engine/chain"
)

// =============================================================================
// ORGANIZATION - Employees, units, roles
// =============================================================================

// Role is an employee's position in the fixed approval hierarchy.
type Role string

const (
	RoleEmployee     Role = "employee"
	RoleUnitDirector Role = "unit_director"
	RoleCentralStaff Role = "central_staff"
	RoleCentralHead  Role = "central_head"
	RoleTopAdmin     Role = "top_admin"
)

// OrgUnit is an organizational unit. The central administrative unit is
// the one that supplies the level-2+ reviewers; employees working there
// skip level 1 of both chains.
type OrgUnit struct {
	ID      string
	Name    string
	Central bool
}

// Employee holds exactly one role and belongs to exactly one unit.
type Employee struct {
	ID     string
	Name   string
	Email  string
	Role   Role
	UnitID string
	Unit   OrgUnit
}

// SkipsLevelOne reports whether requests by this employee skip level 1.
// Structural property of the org chart; the result is stored on the
// request at creation time, not recomputed later.
func (e Employee) SkipsLevelOne() bool { return e.Unit.Central }

// =============================================================================
// LEAVE REQUEST
// =============================================================================

// LeaveRequest is the record routed through the approval chain.
type LeaveRequest struct {
	ID          string
	EmployeeID  string
	LeaveTypeID string

	// RequestedDates is the original, immutable request.
	RequestedDates chain.DateSet

	// EffectiveDates is the set still in play: equal to RequestedDates
	// until a partial approval shrinks it. The final debit uses this.
	EffectiveDates chain.DateSet

	Reason      string
	DelegateID  string // acting person while the requester is away
	ContactInfo string

	Status Status

	// SkipLevelOne is the stored skip-rule evaluation from creation time.
	SkipLevelOne bool

	// FiscalYear is derived from the earliest requested date at creation.
	FiscalYear int

	// Version increments on every write; optimistic concurrency control.
	Version int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Days returns the effective day count (what a final approval debits).
func (r *LeaveRequest) Days() int { return r.EffectiveDates.Count() }

// =============================================================================
// APPROVAL TRAIL
// =============================================================================

// ChainKind distinguishes the two trails a request can accumulate.
type ChainKind string

const (
	ChainApproval     ChainKind = "approval"
	ChainCancellation ChainKind = "cancellation"
)

// Approval is one immutable trail row: a reviewer's decision at one
// level of one chain. At most one row exists per (subject, chain,
// level); for the cancellation chain the subject is the cancellation
// id, so a later cancellation attempt starts a fresh trail while the
// rejected one stays on record.
type Approval struct {
	ID        string
	RequestID string

	// CancellationID is set only for cancellation-chain rows.
	CancellationID string

	Chain    ChainKind
	Level    chain.Level
	ActorID  string
	Decision chain.DecisionKind
	Comment  string

	// Partial-decision detail, always structured.
	ApprovedDates chain.DateSet
	RejectedDates chain.DateSet
	RejectReason  string

	DecidedAt time.Time
}

// =============================================================================
// CANCELLATION REQUEST
// =============================================================================

// CancellationOutcome is the state of a cancellation flow.
type CancellationOutcome string

const (
	CancellationOpen     CancellationOutcome = "open"
	CancellationApproved CancellationOutcome = "approved"
	CancellationRejected CancellationOutcome = "rejected"
)

// CancellationRequest is a withdrawal of a submitted or approved leave
// request. PriorStatus preserves where the request stood so a rejected
// cancellation can restore it.
type CancellationRequest struct {
	ID        string
	RequestID string
	ActorID   string
	Reason    string

	PriorStatus Status
	Outcome     CancellationOutcome

	CreatedAt time.Time
	UpdatedAt time.Time
}
