/*
handlers.go - HTTP API handlers for the leave workflow engine

PURPOSE:
  Exposes the workflow engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the
  orchestrator and stores.

ENDPOINTS:
  Requests:
    POST   /api/employees/{id}/requests    Submit a leave request
    GET    /api/employees/{id}/requests    Request history
    GET    /api/requests/{id}              Request detail with trail

  Decisions:
    POST   /api/requests/{id}/approve
    POST   /api/requests/{id}/reject
    POST   /api/requests/{id}/partial-approve
    POST   /api/requests/{id}/cancel
    POST   /api/requests/{id}/cancel/approve
    POST   /api/requests/{id}/cancel/reject

  Balances:
    GET    /api/employees/{id}/balance?leave_type=&year=

  Reference data:
    GET/POST /api/employees, /api/units, /api/leave-types

  Admin:
    POST   /api/admin/grants         Grant entitlement
    POST   /api/admin/adjustments    Manual balance correction

ERROR HANDLING:
  Every engine error carries a stable code (leave.ErrorCode); the
  handler maps codes to HTTP status and returns {error, code, details}.
  - 400: validation, malformed subsets, missing reasons
  - 403: FORBIDDEN
  - 404: NOT_FOUND
  - 409: ALREADY_TERMINAL, CONCURRENT_MODIFICATION,
         INVALID_STATE_TRANSITION, INSUFFICIENT_BALANCE
  - 500: everything else

SECURITY NOTE:
  Actor identity comes from the request body; there is no
  authentication layer in this core. Deployments must front this API
  with one.

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
  - workflow/: the engine behind every decision endpoint
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/chain"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
	"github.com/warp/leave-engine/workflow"
)

const timeFormat = time.RFC3339

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        leave.TxStore
	Orchestrator *workflow.Orchestrator

	validate *validator.Validate
	log      *zap.Logger
}

// NewHandler creates a handler over the store and orchestrator.
func NewHandler(store leave.TxStore, orch *workflow.Orchestrator, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Store:        store,
		Orchestrator: orch,
		validate:     validator.New(),
		log:          log,
	}
}

// =============================================================================
// REQUEST SUBMISSION AND READS
// =============================================================================

// SubmitRequest creates a new leave request for the employee in the URL.
// POST /api/employees/{id}/requests
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	var body SubmitRequest
	if !h.decode(w, r, &body) {
		return
	}

	dates, err := chain.ParseDateSet(body.Dates)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid dates", "", err)
		return
	}

	req, err := h.Orchestrator.Submit(r.Context(), leave.Submission{
		EmployeeID:  employeeID,
		LeaveTypeID: body.LeaveTypeID,
		Dates:       dates,
		Reason:      body.Reason,
		DelegateID:  body.DelegateID,
		ContactInfo: body.ContactInfo,
	})
	if err != nil {
		h.writeEngineError(w, "Failed to submit leave request", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRequestDTO(req))
}

// GetRequest returns a leave request with its full decision trail.
// GET /api/requests/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := h.Store.GetRequest(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get leave request", "", err)
		return
	}
	if req == nil {
		writeError(w, http.StatusNotFound, "Leave request not found", "NOT_FOUND", nil)
		return
	}

	trail, err := h.Store.ListApprovals(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load decision trail", "", err)
		return
	}

	detail := RequestDetailDTO{LeaveRequestDTO: toRequestDTO(req), Trail: make([]ApprovalDTO, len(trail))}
	for i, a := range trail {
		detail.Trail[i] = toApprovalDTO(a)
	}

	writeJSON(w, http.StatusOK, detail)
}

// ListRequests returns all leave requests of one employee.
// GET /api/employees/{id}/requests
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	requests, err := h.Store.ListRequestsByEmployee(r.Context(), employeeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leave requests", "", err)
		return
	}

	dtos := make([]LeaveRequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// DECISION ENDPOINTS - Approval chain
// =============================================================================

// Approve records a full approval at the actor's level.
// POST /api/requests/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Orchestrator.Approve)
}

// Reject records a full rejection; remarks are required.
// POST /api/requests/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Orchestrator.Reject)
}

// PartialApprove approves a subset of the effective dates.
// POST /api/requests/{id}/partial-approve
func (h *Handler) PartialApprove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body PartialDecisionRequest
	if !h.decode(w, r, &body) {
		return
	}

	approved, err := chain.ParseDateSet(body.ApprovedDates)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid approved dates", "", err)
		return
	}
	rejected, err := chain.ParseDateSet(body.RejectedDates)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rejected dates", "", err)
		return
	}

	result, err := h.Orchestrator.PartialApprove(r.Context(), id, body.ActorID,
		approved, rejected, body.RejectReason, body.Remarks)
	if err != nil {
		h.writeEngineError(w, "Partial approval failed", err)
		return
	}

	writeJSON(w, http.StatusOK, DecisionResultDTO{
		RequestID: result.RequestID,
		NewStatus: string(result.NewStatus),
	})
}

// =============================================================================
// DECISION ENDPOINTS - Cancellation chain
// =============================================================================

// InitiateCancellation opens a cancellation flow.
// POST /api/requests/{id}/cancel
func (h *Handler) InitiateCancellation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body CancelRequest
	if !h.decode(w, r, &body) {
		return
	}

	result, err := h.Orchestrator.InitiateCancellation(r.Context(), id, body.ActorID, body.Reason)
	if err != nil {
		h.writeEngineError(w, "Failed to initiate cancellation", err)
		return
	}

	writeJSON(w, http.StatusOK, DecisionResultDTO{
		RequestID: result.RequestID,
		NewStatus: string(result.NewStatus),
	})
}

// ApproveCancellation advances the cancellation chain.
// POST /api/requests/{id}/cancel/approve
func (h *Handler) ApproveCancellation(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Orchestrator.ApproveCancellation)
}

// RejectCancellation terminates the cancellation flow and restores the
// request's prior status.
// POST /api/requests/{id}/cancel/reject
func (h *Handler) RejectCancellation(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Orchestrator.RejectCancellation)
}

// decide is the shared shape of the four binary decision endpoints.
func (h *Handler) decide(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, leaveID, actorID, remarks string) (workflow.Result, error)) {
	id := chi.URLParam(r, "id")

	var body DecisionRequest
	if !h.decode(w, r, &body) {
		return
	}

	result, err := op(r.Context(), id, body.ActorID, body.Remarks)
	if err != nil {
		h.writeEngineError(w, "Decision failed", err)
		return
	}

	writeJSON(w, http.StatusOK, DecisionResultDTO{
		RequestID: result.RequestID,
		NewStatus: string(result.NewStatus),
	})
}

// =============================================================================
// BALANCES
// =============================================================================

// GetBalance returns one entitlement pool for an employee.
// GET /api/employees/{id}/balance?leave_type=annual&year=2026
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	leaveTypeID := r.URL.Query().Get("leave_type")
	if leaveTypeID == "" {
		writeError(w, http.StatusBadRequest, "leave_type query parameter is required", "", nil)
		return
	}

	year := time.Now().UTC().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", "", err)
			return
		}
		year = parsed
	}

	lt, err := h.Store.GetLeaveType(r.Context(), leaveTypeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get leave type", "", err)
		return
	}
	if lt == nil {
		writeError(w, http.StatusNotFound, "Leave type not found", "NOT_FOUND", nil)
		return
	}

	led := ledger.New(h.Store, time.Now, uuid.NewString)
	bal, err := led.Balance(r.Context(), employeeID, *lt, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute balance", "", err)
		return
	}

	writeJSON(w, http.StatusOK, toBalanceDTO(bal))
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// ListEmployees returns all employees.
// GET /api/employees
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", "", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
// GET /api/employees/{id}
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", "", err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", "NOT_FOUND", nil)
		return
	}

	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee creates or updates an employee.
// POST /api/employees
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var body CreateEmployeeRequest
	if !h.decode(w, r, &body) {
		return
	}

	emp := leave.Employee{
		ID:     body.ID,
		Name:   body.Name,
		Email:  body.Email,
		Role:   leave.Role(body.Role),
		UnitID: body.UnitID,
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", "", err)
		return
	}

	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// CreateOrgUnit creates or updates an organizational unit.
// POST /api/units
func (h *Handler) CreateOrgUnit(w http.ResponseWriter, r *http.Request) {
	var body CreateOrgUnitRequest
	if !h.decode(w, r, &body) {
		return
	}

	u := leave.OrgUnit{ID: body.ID, Name: body.Name, Central: body.Central}
	if err := h.Store.SaveOrgUnit(r.Context(), u); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save unit", "", err)
		return
	}

	writeJSON(w, http.StatusCreated, u)
}

// ListLeaveTypes returns all leave types.
// GET /api/leave-types
func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ListLeaveTypes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leave types", "", err)
		return
	}

	dtos := make([]LeaveTypeDTO, len(types))
	for i, lt := range types {
		dtos[i] = toLeaveTypeDTO(lt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLeaveType creates or updates a leave type.
// POST /api/leave-types
func (h *Handler) CreateLeaveType(w http.ResponseWriter, r *http.Request) {
	var body CreateLeaveTypeRequest
	if !h.decode(w, r, &body) {
		return
	}

	quota := decimal.Zero
	if body.AnnualQuota != "" {
		parsed, err := decimal.NewFromString(body.AnnualQuota)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid annual_quota", "", err)
			return
		}
		quota = parsed
	}

	lt := ledger.LeaveType{ID: body.ID, Name: body.Name, Capped: body.Capped, AnnualQuota: quota}
	if err := h.Store.SaveLeaveType(r.Context(), lt); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save leave type", "", err)
		return
	}

	writeJSON(w, http.StatusCreated, toLeaveTypeDTO(lt))
}

// =============================================================================
// ADMIN - Ledger grants and adjustments
// =============================================================================

// CreateGrant grants entitlement (carryover, awarded days).
// POST /api/admin/grants
func (h *Handler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	h.ledgerMutation(w, r, func(led *ledger.Ledger, body AdjustmentRequest, lt ledger.LeaveType, delta decimal.Decimal) error {
		return led.Grant(r.Context(), body.EmployeeID, lt, body.FiscalYear, delta, body.Reason)
	})
}

// CreateAdjustment records a signed manual correction.
// POST /api/admin/adjustments
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	h.ledgerMutation(w, r, func(led *ledger.Ledger, body AdjustmentRequest, lt ledger.LeaveType, delta decimal.Decimal) error {
		return led.Adjust(r.Context(), body.EmployeeID, lt, body.FiscalYear, delta, body.Reason)
	})
}

func (h *Handler) ledgerMutation(w http.ResponseWriter, r *http.Request,
	mutate func(led *ledger.Ledger, body AdjustmentRequest, lt ledger.LeaveType, delta decimal.Decimal) error) {
	var body AdjustmentRequest
	if !h.decode(w, r, &body) {
		return
	}

	delta, err := decimal.NewFromString(body.Delta)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid delta", "", err)
		return
	}

	lt, err := h.Store.GetLeaveType(r.Context(), body.LeaveTypeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get leave type", "", err)
		return
	}
	if lt == nil {
		writeError(w, http.StatusNotFound, "Leave type not found", "NOT_FOUND", nil)
		return
	}

	err = h.Store.WithTx(r.Context(), func(s leave.Store) error {
		led := ledger.New(s, time.Now, uuid.NewString)
		return mutate(led, body, *lt, delta)
	})
	if err != nil {
		h.writeEngineError(w, "Ledger mutation failed", err)
		return
	}

	led := ledger.New(h.Store, time.Now, uuid.NewString)
	bal, err := led.Balance(r.Context(), body.EmployeeID, *lt, body.FiscalYear)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute balance", "", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(bal))
}

// =============================================================================
// SHARED PLUMBING
// =============================================================================

// decode parses and validates a request body. Writes the 400 itself and
// returns false when the body is unusable.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", "", err)
		return false
	}
	return true
}

// writeEngineError maps engine error codes to HTTP statuses.
func (h *Handler) writeEngineError(w http.ResponseWriter, message string, err error) {
	code := leave.ErrorCode(err)

	status := http.StatusInternalServerError
	switch code {
	case "NOT_FOUND":
		status = http.StatusNotFound
	case "FORBIDDEN":
		status = http.StatusForbidden
	case "ALREADY_TERMINAL", "CONCURRENT_MODIFICATION",
		"INVALID_STATE_TRANSITION", "INSUFFICIENT_BALANCE":
		status = http.StatusConflict
	case "MISSING_REJECTION_REASON", "EMPTY_APPROVED_SET", "DATE_SET_MISMATCH":
		status = http.StatusBadRequest
	case "INTERNAL":
		if isInvalidRequest(err) {
			status = http.StatusBadRequest
			code = "INVALID_REQUEST"
		} else {
			h.log.Error("unhandled engine error", zap.Error(err))
		}
	}

	writeError(w, status, message, code, err)
}

func isInvalidRequest(err error) bool {
	return errors.Is(err, leave.ErrInvalidRequest)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
