/*
Package sqlite provides the SQLite-backed implementation of leave.TxStore.

PURPOSE:
  Production persistence for the workflow engine. The same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  leave_requests: the routed records, with an integer version column
                  for optimistic concurrency
  approvals:      append-only decision trail, one row per
                  (request, chain, level, cancellation)
  cancellations:  withdrawal records with prior status preserved
  ledger_entries: append-only balance ledger with unique idempotency keys
  employees, org_units, leave_types: reference data

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements exist for approvals or ledger_entries.
  The unique indexes turn replays into typed errors
  (ErrDuplicateApproval, ledger.ErrDuplicateEntry).

OPTIMISTIC CONCURRENCY:
  UpdateRequest runs UPDATE ... WHERE id = ? AND version = ?. Zero rows
  affected means another writer got there first; the caller sees
  leave.ErrConcurrentModification and the surrounding transaction rolls
  back.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't
  block and crash recovery is cheap.

SEE ALSO:
  - leave/store.go: interface definitions
  - store/memory/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/chain"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
)

// Store implements leave.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Organizational units
	CREATE TABLE IF NOT EXISTS org_units (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		central BOOLEAN NOT NULL DEFAULT FALSE
	);

	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL,
		unit_id TEXT NOT NULL REFERENCES org_units(id)
	);

	CREATE INDEX IF NOT EXISTS idx_employees_unit ON employees(unit_id);

	-- Leave types
	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		capped BOOLEAN NOT NULL DEFAULT FALSE,
		annual_quota TEXT NOT NULL DEFAULT '0'
	);

	-- Leave requests (version column carries the optimistic lock)
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		leave_type_id TEXT NOT NULL REFERENCES leave_types(id),
		requested_dates TEXT NOT NULL,
		effective_dates TEXT NOT NULL,
		reason TEXT NOT NULL,
		delegate_id TEXT,
		contact_info TEXT,
		status TEXT NOT NULL,
		skip_level_one BOOLEAN NOT NULL,
		fiscal_year INTEGER NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON leave_requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON leave_requests(status);

	-- Approval trail (append-only)
	CREATE TABLE IF NOT EXISTS approvals (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES leave_requests(id),
		cancellation_id TEXT NOT NULL DEFAULT '',
		chain TEXT NOT NULL,
		level INTEGER NOT NULL,
		actor_id TEXT NOT NULL,
		decision TEXT NOT NULL,
		comment TEXT,
		approved_dates TEXT,
		rejected_dates TEXT,
		reject_reason TEXT,
		decided_at TEXT NOT NULL
	);

	-- At most one decision per (subject, chain, level). Cancellation
	-- rows key on the cancellation id so a re-initiated flow starts a
	-- fresh trail.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_approvals_unique
		ON approvals(request_id, chain, level, cancellation_id);
	CREATE INDEX IF NOT EXISTS idx_approvals_request
		ON approvals(request_id);

	-- Cancellations
	CREATE TABLE IF NOT EXISTS cancellations (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES leave_requests(id),
		actor_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		prior_status TEXT NOT NULL,
		outcome TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cancellations_request
		ON cancellations(request_id);

	-- Balance ledger (append-only)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		fiscal_year INTEGER NOT NULL,
		delta TEXT NOT NULL,
		kind TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_pool
		ON ledger_entries(employee_id, leave_type_id, fiscal_year);
	CREATE INDEX IF NOT EXISTS idx_entries_reference
		ON ledger_entries(reference_id) WHERE reference_id IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier abstracts *sql.DB and *sql.Tx so every statement works inside
// and outside WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// LEDGER ENTRIES (ledger.Store interface)
// =============================================================================

func (s *Store) AppendEntry(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendEntry(ctx, s.db, e)
}

func (s *Store) appendEntry(ctx context.Context, q querier, e ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries
		(id, employee_id, leave_type_id, fiscal_year, delta, kind,
		 reference_id, reason, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		e.ID,
		e.EmployeeID,
		e.LeaveTypeID,
		e.FiscalYear,
		e.Delta.String(),
		string(e.Kind),
		nullString(e.ReferenceID),
		e.Reason,
		nullString(e.IdempotencyKey),
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (s *Store) LoadEntries(ctx context.Context, employeeID, leaveTypeID string, fiscalYear int) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadEntries(ctx, s.db, employeeID, leaveTypeID, fiscalYear)
}

func (s *Store) loadEntries(ctx context.Context, q querier, employeeID, leaveTypeID string, fiscalYear int) ([]ledger.Entry, error) {
	query := `
		SELECT id, employee_id, leave_type_id, fiscal_year, delta, kind,
		       reference_id, reason, idempotency_key, created_at
		FROM ledger_entries
		WHERE employee_id = ? AND leave_type_id = ? AND fiscal_year = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := q.QueryContext(ctx, query, employeeID, leaveTypeID, fiscalYear)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e              ledger.Entry
			delta          string
			kind           string
			referenceID    sql.NullString
			reason         sql.NullString
			idempotencyKey sql.NullString
			createdAt      string
		)
		if err := rows.Scan(&e.ID, &e.EmployeeID, &e.LeaveTypeID, &e.FiscalYear,
			&delta, &kind, &referenceID, &reason, &idempotencyKey, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.Delta, err = decimal.NewFromString(delta)
		if err != nil {
			return nil, fmt.Errorf("bad delta in ledger entry %s: %w", e.ID, err)
		}
		e.Kind = ledger.EntryKind(kind)
		e.ReferenceID = referenceID.String
		e.Reason = reason.String
		e.IdempotencyKey = idempotencyKey.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) EntryExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entryExists(ctx, s.db, idempotencyKey)
}

func (s *Store) entryExists(ctx context.Context, q querier, idempotencyKey string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_entries WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (s *Store) SaveRequest(ctx context.Context, r *leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveRequest(ctx, s.db, r)
}

func (s *Store) saveRequest(ctx context.Context, q querier, r *leave.LeaveRequest) error {
	query := `
		INSERT INTO leave_requests
		(id, employee_id, leave_type_id, requested_dates, effective_dates,
		 reason, delegate_id, contact_info, status, skip_level_one,
		 fiscal_year, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		r.ID,
		r.EmployeeID,
		r.LeaveTypeID,
		marshalDates(r.RequestedDates),
		marshalDates(r.EffectiveDates),
		r.Reason,
		nullString(r.DelegateID),
		r.ContactInfo,
		string(r.Status),
		r.SkipLevelOne,
		r.FiscalYear,
		r.Version,
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save leave request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getRequest(ctx, s.db, id)
}

const requestColumns = `id, employee_id, leave_type_id, requested_dates, effective_dates,
	reason, delegate_id, contact_info, status, skip_level_one,
	fiscal_year, version, created_at, updated_at`

func (s *Store) getRequest(ctx context.Context, q querier, id string) (*leave.LeaveRequest, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM leave_requests WHERE id = ?", id)

	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) ListRequestsByEmployee(ctx context.Context, employeeID string) ([]*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listRequests(ctx, s.db, employeeID)
}

func (s *Store) listRequests(ctx context.Context, q querier, employeeID string) ([]*leave.LeaveRequest, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+requestColumns+" FROM leave_requests WHERE employee_id = ? ORDER BY created_at DESC",
		employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave requests: %w", err)
	}
	defer rows.Close()

	var requests []*leave.LeaveRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*leave.LeaveRequest, error) {
	var (
		r                    leave.LeaveRequest
		requested, effective string
		delegateID           sql.NullString
		contactInfo          sql.NullString
		status               string
		createdAt, updatedAt string
	)

	err := row.Scan(&r.ID, &r.EmployeeID, &r.LeaveTypeID, &requested, &effective,
		&r.Reason, &delegateID, &contactInfo, &status, &r.SkipLevelOne,
		&r.FiscalYear, &r.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	r.RequestedDates, err = unmarshalDates(requested)
	if err != nil {
		return nil, fmt.Errorf("bad requested_dates on %s: %w", r.ID, err)
	}
	r.EffectiveDates, err = unmarshalDates(effective)
	if err != nil {
		return nil, fmt.Errorf("bad effective_dates on %s: %w", r.ID, err)
	}
	r.DelegateID = delegateID.String
	r.ContactInfo = contactInfo.String
	r.Status = leave.Status(status)
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &r, nil
}

func (s *Store) UpdateRequest(ctx context.Context, r *leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateRequest(ctx, s.db, r)
}

// updateRequest writes r only if the stored version still matches.
// Zero rows affected means another writer committed first.
func (s *Store) updateRequest(ctx context.Context, q querier, r *leave.LeaveRequest) error {
	query := `
		UPDATE leave_requests SET
			effective_dates = ?,
			status = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`

	res, err := q.ExecContext(ctx, query,
		marshalDates(r.EffectiveDates),
		string(r.Status),
		r.UpdatedAt.UTC().Format(time.RFC3339),
		r.ID,
		r.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update leave request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("leave request %s version %d is stale: %w",
			r.ID, r.Version, leave.ErrConcurrentModification)
	}
	r.Version++
	return nil
}

// =============================================================================
// APPROVAL TRAIL
// =============================================================================

func (s *Store) AppendApproval(ctx context.Context, a leave.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendApproval(ctx, s.db, a)
}

func (s *Store) appendApproval(ctx context.Context, q querier, a leave.Approval) error {
	query := `
		INSERT INTO approvals
		(id, request_id, cancellation_id, chain, level, actor_id, decision,
		 comment, approved_dates, rejected_dates, reject_reason, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		a.ID,
		a.RequestID,
		a.CancellationID,
		string(a.Chain),
		int(a.Level),
		a.ActorID,
		string(a.Decision),
		a.Comment,
		marshalDates(a.ApprovedDates),
		marshalDates(a.RejectedDates),
		a.RejectReason,
		a.DecidedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return leave.ErrDuplicateApproval
		}
		return fmt.Errorf("failed to append approval: %w", err)
	}
	return nil
}

func (s *Store) ListApprovals(ctx context.Context, requestID string) ([]leave.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listApprovals(ctx, s.db, requestID)
}

func (s *Store) listApprovals(ctx context.Context, q querier, requestID string) ([]leave.Approval, error) {
	query := `
		SELECT id, request_id, cancellation_id, chain, level, actor_id,
		       decision, comment, approved_dates, rejected_dates,
		       reject_reason, decided_at
		FROM approvals
		WHERE request_id = ?
		ORDER BY decided_at ASC, level ASC
	`

	rows, err := q.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}
	defer rows.Close()

	var approvals []leave.Approval
	for rows.Next() {
		var (
			a                  leave.Approval
			chainKind          string
			level              int
			decision           string
			comment            sql.NullString
			approved, rejected sql.NullString
			rejectReason       sql.NullString
			decidedAt          string
		)
		if err := rows.Scan(&a.ID, &a.RequestID, &a.CancellationID, &chainKind,
			&level, &a.ActorID, &decision, &comment, &approved, &rejected,
			&rejectReason, &decidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		a.Chain = leave.ChainKind(chainKind)
		a.Level = chain.Level(level)
		a.Decision = chain.DecisionKind(decision)
		a.Comment = comment.String
		a.ApprovedDates, err = unmarshalDates(approved.String)
		if err != nil {
			return nil, fmt.Errorf("bad approved_dates on %s: %w", a.ID, err)
		}
		a.RejectedDates, err = unmarshalDates(rejected.String)
		if err != nil {
			return nil, fmt.Errorf("bad rejected_dates on %s: %w", a.ID, err)
		}
		a.RejectReason = rejectReason.String
		a.DecidedAt, _ = time.Parse(time.RFC3339, decidedAt)
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}

// =============================================================================
// CANCELLATIONS
// =============================================================================

func (s *Store) SaveCancellation(ctx context.Context, c *leave.CancellationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCancellation(ctx, s.db, c)
}

func (s *Store) saveCancellation(ctx context.Context, q querier, c *leave.CancellationRequest) error {
	query := `
		INSERT INTO cancellations
		(id, request_id, actor_id, reason, prior_status, outcome, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		c.ID, c.RequestID, c.ActorID, c.Reason,
		string(c.PriorStatus), string(c.Outcome),
		c.CreatedAt.UTC().Format(time.RFC3339),
		c.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save cancellation: %w", err)
	}
	return nil
}

func (s *Store) GetOpenCancellation(ctx context.Context, requestID string) (*leave.CancellationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getOpenCancellation(ctx, s.db, requestID)
}

func (s *Store) getOpenCancellation(ctx context.Context, q querier, requestID string) (*leave.CancellationRequest, error) {
	query := `
		SELECT id, request_id, actor_id, reason, prior_status, outcome, created_at, updated_at
		FROM cancellations
		WHERE request_id = ? AND outcome = 'open'
	`

	var (
		c                    leave.CancellationRequest
		priorStatus, outcome string
		createdAt, updatedAt string
	)
	err := q.QueryRowContext(ctx, query, requestID).Scan(
		&c.ID, &c.RequestID, &c.ActorID, &c.Reason,
		&priorStatus, &outcome, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.PriorStatus = leave.Status(priorStatus)
	c.Outcome = leave.CancellationOutcome(outcome)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

func (s *Store) UpdateCancellation(ctx context.Context, c *leave.CancellationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCancellation(ctx, s.db, c)
}

func (s *Store) updateCancellation(ctx context.Context, q querier, c *leave.CancellationRequest) error {
	query := `
		UPDATE cancellations SET outcome = ?, updated_at = ? WHERE id = ?
	`

	res, err := q.ExecContext(ctx, query,
		string(c.Outcome), c.UpdatedAt.UTC().Format(time.RFC3339), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update cancellation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &leave.NotFoundError{Kind: "cancellation", ID: c.ID}
	}
	return nil
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEmployee(ctx, s.db, id)
}

func (s *Store) getEmployee(ctx context.Context, q querier, id string) (*leave.Employee, error) {
	query := `
		SELECT e.id, e.name, e.email, e.role, e.unit_id, u.name, u.central
		FROM employees e JOIN org_units u ON u.id = e.unit_id
		WHERE e.id = ?
	`

	var (
		e     leave.Employee
		email sql.NullString
		role  string
	)
	err := q.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Name, &email, &role, &e.UnitID, &e.Unit.Name, &e.Unit.Central)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	e.Email = email.String
	e.Role = leave.Role(role)
	e.Unit.ID = e.UnitID
	return &e, nil
}

func (s *Store) SaveEmployee(ctx context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveEmployee(ctx, s.db, e)
}

func (s *Store) saveEmployee(ctx context.Context, q querier, e leave.Employee) error {
	query := `
		INSERT INTO employees (id, name, email, role, unit_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			unit_id = excluded.unit_id
	`

	_, err := q.ExecContext(ctx, query, e.ID, e.Name, e.Email, string(e.Role), e.UnitID)
	return err
}

func (s *Store) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEmployees(ctx, s.db)
}

func (s *Store) listEmployees(ctx context.Context, q querier) ([]leave.Employee, error) {
	query := `
		SELECT e.id, e.name, e.email, e.role, e.unit_id, u.name, u.central
		FROM employees e JOIN org_units u ON u.id = e.unit_id
		ORDER BY e.name
	`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []leave.Employee
	for rows.Next() {
		var (
			e     leave.Employee
			email sql.NullString
			role  string
		)
		if err := rows.Scan(&e.ID, &e.Name, &email, &role, &e.UnitID,
			&e.Unit.Name, &e.Unit.Central); err != nil {
			return nil, err
		}
		e.Email = email.String
		e.Role = leave.Role(role)
		e.Unit.ID = e.UnitID
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (s *Store) SaveOrgUnit(ctx context.Context, u leave.OrgUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveOrgUnit(ctx, s.db, u)
}

func (s *Store) saveOrgUnit(ctx context.Context, q querier, u leave.OrgUnit) error {
	query := `
		INSERT INTO org_units (id, name, central)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			central = excluded.central
	`

	_, err := q.ExecContext(ctx, query, u.ID, u.Name, u.Central)
	return err
}

func (s *Store) GetLeaveType(ctx context.Context, id string) (*ledger.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLeaveType(ctx, s.db, id)
}

func (s *Store) getLeaveType(ctx context.Context, q querier, id string) (*ledger.LeaveType, error) {
	var (
		lt    ledger.LeaveType
		quota string
	)
	err := q.QueryRowContext(ctx,
		"SELECT id, name, capped, annual_quota FROM leave_types WHERE id = ?", id,
	).Scan(&lt.ID, &lt.Name, &lt.Capped, &quota)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lt.AnnualQuota, err = decimal.NewFromString(quota)
	if err != nil {
		return nil, fmt.Errorf("bad annual_quota on %s: %w", lt.ID, err)
	}
	return &lt, nil
}

func (s *Store) SaveLeaveType(ctx context.Context, lt ledger.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLeaveType(ctx, s.db, lt)
}

func (s *Store) saveLeaveType(ctx context.Context, q querier, lt ledger.LeaveType) error {
	query := `
		INSERT INTO leave_types (id, name, capped, annual_quota)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			capped = excluded.capped,
			annual_quota = excluded.annual_quota
	`

	_, err := q.ExecContext(ctx, query, lt.ID, lt.Name, lt.Capped, lt.AnnualQuota.String())
	return err
}

func (s *Store) ListLeaveTypes(ctx context.Context) ([]ledger.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLeaveTypes(ctx, s.db)
}

func (s *Store) listLeaveTypes(ctx context.Context, q querier) ([]ledger.LeaveType, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, name, capped, annual_quota FROM leave_types ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []ledger.LeaveType
	for rows.Next() {
		var (
			lt    ledger.LeaveType
			quota string
		)
		if err := rows.Scan(&lt.ID, &lt.Name, &lt.Capped, &quota); err != nil {
			return nil, err
		}
		lt.AnnualQuota, err = decimal.NewFromString(quota)
		if err != nil {
			return nil, fmt.Errorf("bad annual_quota on %s: %w", lt.ID, err)
		}
		types = append(types, lt)
	}
	return types, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) AppendEntry(ctx context.Context, e ledger.Entry) error {
	return ts.parent.appendEntry(ctx, ts.tx, e)
}

func (ts *txStore) LoadEntries(ctx context.Context, employeeID, leaveTypeID string, fiscalYear int) ([]ledger.Entry, error) {
	return ts.parent.loadEntries(ctx, ts.tx, employeeID, leaveTypeID, fiscalYear)
}

func (ts *txStore) EntryExists(ctx context.Context, idempotencyKey string) (bool, error) {
	return ts.parent.entryExists(ctx, ts.tx, idempotencyKey)
}

func (ts *txStore) SaveRequest(ctx context.Context, r *leave.LeaveRequest) error {
	return ts.parent.saveRequest(ctx, ts.tx, r)
}

func (ts *txStore) GetRequest(ctx context.Context, id string) (*leave.LeaveRequest, error) {
	return ts.parent.getRequest(ctx, ts.tx, id)
}

func (ts *txStore) ListRequestsByEmployee(ctx context.Context, employeeID string) ([]*leave.LeaveRequest, error) {
	return ts.parent.listRequests(ctx, ts.tx, employeeID)
}

func (ts *txStore) UpdateRequest(ctx context.Context, r *leave.LeaveRequest) error {
	return ts.parent.updateRequest(ctx, ts.tx, r)
}

func (ts *txStore) AppendApproval(ctx context.Context, a leave.Approval) error {
	return ts.parent.appendApproval(ctx, ts.tx, a)
}

func (ts *txStore) ListApprovals(ctx context.Context, requestID string) ([]leave.Approval, error) {
	return ts.parent.listApprovals(ctx, ts.tx, requestID)
}

func (ts *txStore) SaveCancellation(ctx context.Context, c *leave.CancellationRequest) error {
	return ts.parent.saveCancellation(ctx, ts.tx, c)
}

func (ts *txStore) GetOpenCancellation(ctx context.Context, requestID string) (*leave.CancellationRequest, error) {
	return ts.parent.getOpenCancellation(ctx, ts.tx, requestID)
}

func (ts *txStore) UpdateCancellation(ctx context.Context, c *leave.CancellationRequest) error {
	return ts.parent.updateCancellation(ctx, ts.tx, c)
}

func (ts *txStore) GetEmployee(ctx context.Context, id string) (*leave.Employee, error) {
	return ts.parent.getEmployee(ctx, ts.tx, id)
}

func (ts *txStore) SaveEmployee(ctx context.Context, e leave.Employee) error {
	return ts.parent.saveEmployee(ctx, ts.tx, e)
}

func (ts *txStore) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	return ts.parent.listEmployees(ctx, ts.tx)
}

func (ts *txStore) SaveOrgUnit(ctx context.Context, u leave.OrgUnit) error {
	return ts.parent.saveOrgUnit(ctx, ts.tx, u)
}

func (ts *txStore) GetLeaveType(ctx context.Context, id string) (*ledger.LeaveType, error) {
	return ts.parent.getLeaveType(ctx, ts.tx, id)
}

func (ts *txStore) SaveLeaveType(ctx context.Context, lt ledger.LeaveType) error {
	return ts.parent.saveLeaveType(ctx, ts.tx, lt)
}

func (ts *txStore) ListLeaveTypes(ctx context.Context) ([]ledger.LeaveType, error) {
	return ts.parent.listLeaveTypes(ctx, ts.tx)
}

// =============================================================================
// HELPERS
// =============================================================================

func marshalDates(s chain.DateSet) string {
	b, _ := json.Marshal(s.Strings())
	return string(b)
}

func unmarshalDates(raw string) (chain.DateSet, error) {
	if raw == "" {
		return nil, nil
	}
	var strs []string
	if err := json.Unmarshal([]byte(raw), &strs); err != nil {
		return nil, err
	}
	return chain.ParseDateSet(strs)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
