/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  The JSON structures for API communication. These types decouple the
  internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request bodies carry validator/v10 struct tags; the handler runs the
  validator before anything touches the engine. Domain rules (date set
  partitions, rejection reasons, state preconditions) stay in the
  engine - the tags cover only shape.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// SubmitRequest is the body for submitting a new leave request.
type SubmitRequest struct {
	LeaveTypeID string   `json:"leave_type_id" validate:"required"`
	Dates       []string `json:"dates" validate:"required,min=1,dive,datetime=2006-01-02"`
	Reason      string   `json:"reason" validate:"required"`
	DelegateID  string   `json:"delegate_id,omitempty"`
	ContactInfo string   `json:"contact_info,omitempty"`
}

// DecisionRequest is the body for approve / reject and the two
// cancellation decisions. Remarks are required for rejections; the
// engine enforces that, not the tag.
type DecisionRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
	Remarks string `json:"remarks,omitempty"`
}

// PartialDecisionRequest is the body for partial approval.
type PartialDecisionRequest struct {
	ActorID       string   `json:"actor_id" validate:"required"`
	ApprovedDates []string `json:"approved_dates" validate:"required,dive,datetime=2006-01-02"`
	RejectedDates []string `json:"rejected_dates" validate:"required,min=1,dive,datetime=2006-01-02"`
	RejectReason  string   `json:"reject_reason" validate:"required"`
	Remarks       string   `json:"remarks,omitempty"`
}

// CancelRequest is the body for initiating a cancellation.
type CancelRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
	Reason  string `json:"reason" validate:"required"`
}

// CreateEmployeeRequest is the body for creating an employee.
type CreateEmployeeRequest struct {
	ID     string `json:"id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
	Role   string `json:"role" validate:"required,oneof=employee unit_director central_staff central_head top_admin"`
	UnitID string `json:"unit_id" validate:"required"`
}

// CreateOrgUnitRequest is the body for creating an organizational unit.
type CreateOrgUnitRequest struct {
	ID      string `json:"id" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Central bool   `json:"central"`
}

// CreateLeaveTypeRequest is the body for creating a leave type.
type CreateLeaveTypeRequest struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Capped      bool   `json:"capped"`
	AnnualQuota string `json:"annual_quota,omitempty" validate:"omitempty,numeric"`
}

// AdjustmentRequest is the body for admin grants and adjustments.
type AdjustmentRequest struct {
	EmployeeID  string `json:"employee_id" validate:"required"`
	LeaveTypeID string `json:"leave_type_id" validate:"required"`
	FiscalYear  int    `json:"fiscal_year" validate:"required"`
	Delta       string `json:"delta" validate:"required,numeric"`
	Reason      string `json:"reason" validate:"required"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// DecisionResultDTO is the outcome of any decision endpoint.
type DecisionResultDTO struct {
	RequestID string `json:"request_id"`
	NewStatus string `json:"new_status"`
}

// LeaveRequestDTO represents a leave request in API responses.
type LeaveRequestDTO struct {
	ID             string   `json:"id"`
	EmployeeID     string   `json:"employee_id"`
	LeaveTypeID    string   `json:"leave_type_id"`
	RequestedDates []string `json:"requested_dates"`
	EffectiveDates []string `json:"effective_dates"`
	Reason         string   `json:"reason"`
	DelegateID     string   `json:"delegate_id,omitempty"`
	ContactInfo    string   `json:"contact_info,omitempty"`
	Status         string   `json:"status"`
	SkipLevelOne   bool     `json:"skip_level_one"`
	FiscalYear     int      `json:"fiscal_year"`
	Days           int      `json:"days"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

// ApprovalDTO is one decision trail row.
type ApprovalDTO struct {
	ID             string   `json:"id"`
	RequestID      string   `json:"request_id"`
	CancellationID string   `json:"cancellation_id,omitempty"`
	Chain          string   `json:"chain"`
	Level          int      `json:"level"`
	ActorID        string   `json:"actor_id"`
	Decision       string   `json:"decision"`
	Comment        string   `json:"comment,omitempty"`
	ApprovedDates  []string `json:"approved_dates,omitempty"`
	RejectedDates  []string `json:"rejected_dates,omitempty"`
	RejectReason   string   `json:"reject_reason,omitempty"`
	DecidedAt      string   `json:"decided_at"`
}

// RequestDetailDTO is a leave request with its full decision trail.
type RequestDetailDTO struct {
	LeaveRequestDTO
	Trail []ApprovalDTO `json:"trail"`
}

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	UnitID   string `json:"unit_id"`
	UnitName string `json:"unit_name"`
	Central  bool   `json:"central"`
}

// LeaveTypeDTO represents a leave type.
type LeaveTypeDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Capped      bool   `json:"capped"`
	AnnualQuota string `json:"annual_quota"`
}

// BalanceDTO represents one entitlement pool.
type BalanceDTO struct {
	EmployeeID  string `json:"employee_id"`
	LeaveTypeID string `json:"leave_type_id"`
	FiscalYear  int    `json:"fiscal_year"`
	Quota       string `json:"quota"`
	Used        string `json:"used"`
	Remaining   string `json:"remaining"`
	Capped      bool   `json:"capped"`
}

// ErrorResponse is the error envelope for every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRequestDTO(r *leave.LeaveRequest) LeaveRequestDTO {
	return LeaveRequestDTO{
		ID:             r.ID,
		EmployeeID:     r.EmployeeID,
		LeaveTypeID:    r.LeaveTypeID,
		RequestedDates: r.RequestedDates.Strings(),
		EffectiveDates: r.EffectiveDates.Strings(),
		Reason:         r.Reason,
		DelegateID:     r.DelegateID,
		ContactInfo:    r.ContactInfo,
		Status:         string(r.Status),
		SkipLevelOne:   r.SkipLevelOne,
		FiscalYear:     r.FiscalYear,
		Days:           r.Days(),
		CreatedAt:      r.CreatedAt.Format(timeFormat),
		UpdatedAt:      r.UpdatedAt.Format(timeFormat),
	}
}

func toApprovalDTO(a leave.Approval) ApprovalDTO {
	return ApprovalDTO{
		ID:             a.ID,
		RequestID:      a.RequestID,
		CancellationID: a.CancellationID,
		Chain:          string(a.Chain),
		Level:          int(a.Level),
		ActorID:        a.ActorID,
		Decision:       string(a.Decision),
		Comment:        a.Comment,
		ApprovedDates:  a.ApprovedDates.Strings(),
		RejectedDates:  a.RejectedDates.Strings(),
		RejectReason:   a.RejectReason,
		DecidedAt:      a.DecidedAt.Format(timeFormat),
	}
}

func toEmployeeDTO(e leave.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:       e.ID,
		Name:     e.Name,
		Email:    e.Email,
		Role:     string(e.Role),
		UnitID:   e.UnitID,
		UnitName: e.Unit.Name,
		Central:  e.Unit.Central,
	}
}

func toLeaveTypeDTO(lt ledger.LeaveType) LeaveTypeDTO {
	return LeaveTypeDTO{
		ID:          lt.ID,
		Name:        lt.Name,
		Capped:      lt.Capped,
		AnnualQuota: lt.AnnualQuota.String(),
	}
}

func toBalanceDTO(b ledger.Balance) BalanceDTO {
	return BalanceDTO{
		EmployeeID:  b.EmployeeID,
		LeaveTypeID: b.LeaveTypeID,
		FiscalYear:  b.FiscalYear,
		Quota:       b.Quota.String(),
		Used:        b.Used.String(),
		Remaining:   b.Remaining.String(),
		Capped:      b.Capped,
	}
}
