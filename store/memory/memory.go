/*
Package memory provides an in-memory store implementation.

PURPOSE:
  Backs tests and local development with the full leave.TxStore surface.
  Transactions are simulated with a snapshot taken before fn runs and a
  restore on error, so a failing decision leaves no partial writes, the
  same guarantee the SQLite store gets from a real database transaction.

CONCURRENCY:
  One RWMutex guards everything. WithTx holds the write lock for the
  whole function, which serializes decisions exactly like the production
  store does. The optimistic version check on UpdateRequest is still
  enforced so the engine's concurrency behavior is testable.

SEE ALSO:
  - store/sqlite/sqlite.go: production implementation
  - leave/store.go: interface definitions
*/
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
)

// Memory implements leave.Store over maps.
type Memory struct {
	mu sync.RWMutex

	requests      map[string]*leave.LeaveRequest
	approvals     map[string][]leave.Approval // keyed by request id
	cancellations map[string]*leave.CancellationRequest
	employees     map[string]leave.Employee
	units         map[string]leave.OrgUnit
	leaveTypes    map[string]ledger.LeaveType

	entries     []ledger.Entry
	idempotency map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		requests:      make(map[string]*leave.LeaveRequest),
		approvals:     make(map[string][]leave.Approval),
		cancellations: make(map[string]*leave.CancellationRequest),
		employees:     make(map[string]leave.Employee),
		units:         make(map[string]leave.OrgUnit),
		leaveTypes:    make(map[string]ledger.LeaveType),
		idempotency:   make(map[string]bool),
	}
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

func (m *Memory) AppendEntry(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendEntryLocked(e)
}

func (m *Memory) appendEntryLocked(e ledger.Entry) error {
	if e.IdempotencyKey != "" {
		if m.idempotency[e.IdempotencyKey] {
			return ledger.ErrDuplicateEntry
		}
		m.idempotency[e.IdempotencyKey] = true
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) LoadEntries(_ context.Context, employeeID, leaveTypeID string, fiscalYear int) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadEntriesLocked(employeeID, leaveTypeID, fiscalYear), nil
}

func (m *Memory) loadEntriesLocked(employeeID, leaveTypeID string, fiscalYear int) []ledger.Entry {
	var result []ledger.Entry
	for _, e := range m.entries {
		if e.EmployeeID == employeeID && e.LeaveTypeID == leaveTypeID && e.FiscalYear == fiscalYear {
			result = append(result, e)
		}
	}
	return result
}

func (m *Memory) EntryExists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

func (m *Memory) SaveRequest(_ context.Context, r *leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveRequestLocked(r)
}

func (m *Memory) saveRequestLocked(r *leave.LeaveRequest) error {
	if _, exists := m.requests[r.ID]; exists {
		return fmt.Errorf("leave request %s already exists", r.ID)
	}
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id string) (*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRequestLocked(id), nil
}

func (m *Memory) getRequestLocked(id string) *leave.LeaveRequest {
	r, ok := m.requests[id]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

func (m *Memory) ListRequestsByEmployee(_ context.Context, employeeID string) ([]*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRequestsLocked(employeeID), nil
}

func (m *Memory) listRequestsLocked(employeeID string) []*leave.LeaveRequest {
	var result []*leave.LeaveRequest
	for _, r := range m.requests {
		if r.EmployeeID == employeeID {
			cp := *r
			result = append(result, &cp)
		}
	}
	return result
}

func (m *Memory) UpdateRequest(_ context.Context, r *leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateRequestLocked(r)
}

func (m *Memory) updateRequestLocked(r *leave.LeaveRequest) error {
	stored, ok := m.requests[r.ID]
	if !ok {
		return &leave.NotFoundError{Kind: "leave request", ID: r.ID}
	}
	if stored.Version != r.Version {
		return fmt.Errorf("leave request %s version %d, caller has %d: %w",
			r.ID, stored.Version, r.Version, leave.ErrConcurrentModification)
	}
	cp := *r
	cp.Version = r.Version + 1
	m.requests[r.ID] = &cp
	r.Version = cp.Version
	return nil
}

// =============================================================================
// APPROVAL TRAIL
// =============================================================================

func (m *Memory) AppendApproval(_ context.Context, a leave.Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendApprovalLocked(a)
}

func (m *Memory) appendApprovalLocked(a leave.Approval) error {
	for _, existing := range m.approvals[a.RequestID] {
		if existing.Chain == a.Chain && existing.Level == a.Level &&
			existing.CancellationID == a.CancellationID {
			return leave.ErrDuplicateApproval
		}
	}
	m.approvals[a.RequestID] = append(m.approvals[a.RequestID], a)
	return nil
}

func (m *Memory) ListApprovals(_ context.Context, requestID string) ([]leave.Approval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]leave.Approval, len(m.approvals[requestID]))
	copy(result, m.approvals[requestID])
	return result, nil
}

// =============================================================================
// CANCELLATIONS
// =============================================================================

func (m *Memory) SaveCancellation(_ context.Context, c *leave.CancellationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.cancellations[c.ID] = &cp
	return nil
}

func (m *Memory) GetOpenCancellation(_ context.Context, requestID string) (*leave.CancellationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getOpenCancellationLocked(requestID), nil
}

func (m *Memory) getOpenCancellationLocked(requestID string) *leave.CancellationRequest {
	for _, c := range m.cancellations {
		if c.RequestID == requestID && c.Outcome == leave.CancellationOpen {
			cp := *c
			return &cp
		}
	}
	return nil
}

func (m *Memory) UpdateCancellation(_ context.Context, c *leave.CancellationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCancellationLocked(c)
}

func (m *Memory) updateCancellationLocked(c *leave.CancellationRequest) error {
	if _, ok := m.cancellations[c.ID]; !ok {
		return &leave.NotFoundError{Kind: "cancellation", ID: c.ID}
	}
	cp := *c
	m.cancellations[c.ID] = &cp
	return nil
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (m *Memory) GetEmployee(_ context.Context, id string) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	if u, ok := m.units[e.UnitID]; ok {
		e.Unit = u
	}
	return &e, nil
}

func (m *Memory) SaveEmployee(_ context.Context, e leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
	return nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]leave.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		if u, ok := m.units[e.UnitID]; ok {
			e.Unit = u
		}
		result = append(result, e)
	}
	return result, nil
}

func (m *Memory) SaveOrgUnit(_ context.Context, u leave.OrgUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[u.ID] = u
	return nil
}

func (m *Memory) GetLeaveType(_ context.Context, id string) (*ledger.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lt, ok := m.leaveTypes[id]
	if !ok {
		return nil, nil
	}
	return &lt, nil
}

func (m *Memory) SaveLeaveType(_ context.Context, lt ledger.LeaveType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveTypes[lt.ID] = lt
	return nil
}

func (m *Memory) ListLeaveTypes(_ context.Context) ([]ledger.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]ledger.LeaveType, 0, len(m.leaveTypes))
	for _, lt := range m.leaveTypes {
		result = append(result, lt)
	}
	return result, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support, simulated with a
// snapshot before fn runs and a restore on error.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against a tx-scoped view. The write lock is held
// for the whole function, so decisions are serialized like they would
// be by a database transaction on the same row.
func (tm *TxMemory) WithTx(_ context.Context, fn func(leave.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	requests      map[string]*leave.LeaveRequest
	approvals     map[string][]leave.Approval
	cancellations map[string]*leave.CancellationRequest
	employees     map[string]leave.Employee
	units         map[string]leave.OrgUnit
	leaveTypes    map[string]ledger.LeaveType
	entries       []ledger.Entry
	idempotency   map[string]bool
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		requests:      make(map[string]*leave.LeaveRequest, len(tm.requests)),
		approvals:     make(map[string][]leave.Approval, len(tm.approvals)),
		cancellations: make(map[string]*leave.CancellationRequest, len(tm.cancellations)),
		employees:     make(map[string]leave.Employee, len(tm.employees)),
		units:         make(map[string]leave.OrgUnit, len(tm.units)),
		leaveTypes:    make(map[string]ledger.LeaveType, len(tm.leaveTypes)),
		entries:       append([]ledger.Entry{}, tm.entries...),
		idempotency:   make(map[string]bool, len(tm.idempotency)),
	}
	for k, v := range tm.requests {
		cp := *v
		s.requests[k] = &cp
	}
	for k, v := range tm.approvals {
		s.approvals[k] = append([]leave.Approval{}, v...)
	}
	for k, v := range tm.cancellations {
		cp := *v
		s.cancellations[k] = &cp
	}
	for k, v := range tm.employees {
		s.employees[k] = v
	}
	for k, v := range tm.units {
		s.units[k] = v
	}
	for k, v := range tm.leaveTypes {
		s.leaveTypes[k] = v
	}
	for k, v := range tm.idempotency {
		s.idempotency[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.requests = s.requests
	tm.approvals = s.approvals
	tm.cancellations = s.cancellations
	tm.employees = s.employees
	tm.units = s.units
	tm.leaveTypes = s.leaveTypes
	tm.entries = s.entries
	tm.idempotency = s.idempotency
}

// txView runs against the parent's maps without taking the lock, which
// WithTx already holds.
type txView struct {
	parent *Memory
}

func (tv *txView) AppendEntry(_ context.Context, e ledger.Entry) error {
	return tv.parent.appendEntryLocked(e)
}

func (tv *txView) LoadEntries(_ context.Context, employeeID, leaveTypeID string, fiscalYear int) ([]ledger.Entry, error) {
	return tv.parent.loadEntriesLocked(employeeID, leaveTypeID, fiscalYear), nil
}

func (tv *txView) EntryExists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.parent.idempotency[idempotencyKey], nil
}

func (tv *txView) SaveRequest(_ context.Context, r *leave.LeaveRequest) error {
	return tv.parent.saveRequestLocked(r)
}

func (tv *txView) GetRequest(_ context.Context, id string) (*leave.LeaveRequest, error) {
	return tv.parent.getRequestLocked(id), nil
}

func (tv *txView) ListRequestsByEmployee(_ context.Context, employeeID string) ([]*leave.LeaveRequest, error) {
	return tv.parent.listRequestsLocked(employeeID), nil
}

func (tv *txView) UpdateRequest(_ context.Context, r *leave.LeaveRequest) error {
	return tv.parent.updateRequestLocked(r)
}

func (tv *txView) AppendApproval(_ context.Context, a leave.Approval) error {
	return tv.parent.appendApprovalLocked(a)
}

func (tv *txView) ListApprovals(_ context.Context, requestID string) ([]leave.Approval, error) {
	result := make([]leave.Approval, len(tv.parent.approvals[requestID]))
	copy(result, tv.parent.approvals[requestID])
	return result, nil
}

func (tv *txView) SaveCancellation(_ context.Context, c *leave.CancellationRequest) error {
	cp := *c
	tv.parent.cancellations[c.ID] = &cp
	return nil
}

func (tv *txView) GetOpenCancellation(_ context.Context, requestID string) (*leave.CancellationRequest, error) {
	return tv.parent.getOpenCancellationLocked(requestID), nil
}

func (tv *txView) UpdateCancellation(_ context.Context, c *leave.CancellationRequest) error {
	return tv.parent.updateCancellationLocked(c)
}

func (tv *txView) GetEmployee(_ context.Context, id string) (*leave.Employee, error) {
	e, ok := tv.parent.employees[id]
	if !ok {
		return nil, nil
	}
	if u, ok := tv.parent.units[e.UnitID]; ok {
		e.Unit = u
	}
	return &e, nil
}

func (tv *txView) SaveEmployee(_ context.Context, e leave.Employee) error {
	tv.parent.employees[e.ID] = e
	return nil
}

func (tv *txView) ListEmployees(_ context.Context) ([]leave.Employee, error) {
	result := make([]leave.Employee, 0, len(tv.parent.employees))
	for _, e := range tv.parent.employees {
		if u, ok := tv.parent.units[e.UnitID]; ok {
			e.Unit = u
		}
		result = append(result, e)
	}
	return result, nil
}

func (tv *txView) SaveOrgUnit(_ context.Context, u leave.OrgUnit) error {
	tv.parent.units[u.ID] = u
	return nil
}

func (tv *txView) GetLeaveType(_ context.Context, id string) (*ledger.LeaveType, error) {
	lt, ok := tv.parent.leaveTypes[id]
	if !ok {
		return nil, nil
	}
	return &lt, nil
}

func (tv *txView) SaveLeaveType(_ context.Context, lt ledger.LeaveType) error {
	tv.parent.leaveTypes[lt.ID] = lt
	return nil
}

func (tv *txView) ListLeaveTypes(_ context.Context) ([]ledger.LeaveType, error) {
	result := make([]ledger.LeaveType, 0, len(tv.parent.leaveTypes))
	for _, lt := range tv.parent.leaveTypes {
		result = append(result, lt)
	}
	return result, nil
}
