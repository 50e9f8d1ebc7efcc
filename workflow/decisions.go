/*
decisions.go - Approval-chain operations

PURPOSE:
  Approve, Reject, and PartialApprove: the three verdicts a reviewer can
  hand down on a request travelling the approval chain. All three share
  one transactional path; they differ only in the Decision they build.

TRANSITION CONTRACT (per level N):
  - the request must be awaiting exactly level N, else
    INVALID_STATE_TRANSITION (terminal requests: ALREADY_TERMINAL)
  - the actor's role must be the one authorized for level N, else
    FORBIDDEN
  - full rejection requires remarks (MISSING_REJECTION_REASON)
  - partial approval requires a non-empty approved subset
    (EMPTY_APPROVED_SET) forming an exact disjoint partition of the
    effective date set (DATE_SET_MISMATCH); rejected days are dropped
    permanently
  - approval at the last required level debits the ledger for the
    surviving day count, atomically with the status change
*/
package workflow

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/chain"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
)

// Approve records a full approval at the level the actor is authorized
// for and advances the request (or finalizes it, debiting the ledger).
func (o *Orchestrator) Approve(ctx context.Context, leaveID, actorID, remarks string) (Result, error) {
	return o.decideApproval(ctx, leaveID, actorID, chain.Decision{
		Kind:    chain.DecisionApproved,
		Comment: remarks,
	})
}

// Reject records a full rejection. Remarks are required and become the
// rejection reason. The request is terminal afterwards; no ledger effect.
func (o *Orchestrator) Reject(ctx context.Context, leaveID, actorID, remarks string) (Result, error) {
	return o.decideApproval(ctx, leaveID, actorID, chain.Decision{
		Kind:    chain.DecisionRejected,
		Comment: remarks,
	})
}

// PartialApprove approves a subset of the request's effective dates and
// rejects the remainder with a reason. The approved subset becomes the
// effective date set for later levels.
func (o *Orchestrator) PartialApprove(ctx context.Context, leaveID, actorID string, approved, rejected chain.DateSet, rejectReason, remarks string) (Result, error) {
	return o.decideApproval(ctx, leaveID, actorID, chain.Decision{
		Kind:         chain.DecisionPartiallyApproved,
		Comment:      remarks,
		Approved:     approved,
		Rejected:     rejected,
		RejectReason: rejectReason,
	})
}

// =============================================================================
// SHARED DECISION PATH
// =============================================================================

func (o *Orchestrator) decideApproval(ctx context.Context, leaveID, actorID string, d chain.Decision) (Result, error) {
	var (
		result Result
		event  DecisionEvent
	)

	err := o.store.WithTx(ctx, func(s leave.Store) error {
		req, err := o.request(ctx, s, leaveID)
		if err != nil {
			return err
		}

		if req.Status.Terminal() {
			return fmt.Errorf("leave request %s is %s: %w", req.ID, req.Status, chain.ErrAlreadyTerminal)
		}
		if req.Status.InCancellation() {
			return fmt.Errorf("leave request %s has a cancellation underway (%s): %w",
				req.ID, req.Status, chain.ErrInvalidStateTransition)
		}

		actor, err := o.employee(ctx, s, actorID)
		if err != nil {
			return err
		}
		requester, err := o.employee(ctx, s, req.EmployeeID)
		if err != nil {
			return err
		}

		level, err := o.actorLevel(*actor)
		if err != nil {
			return err
		}
		if err := o.authz.Authorize(*actor, *requester, level); err != nil {
			return err
		}

		d.Level = level
		d.ActorID = actorID
		d.At = o.now()

		progress, err := leave.ApprovalProgress(req.Status, req.SkipLevelOne)
		if err != nil {
			return err
		}
		outcome, err := o.approval.Apply(progress, req.EffectiveDates, d)
		if err != nil {
			return err
		}

		if err := s.AppendApproval(ctx, leave.Approval{
			ID:            o.newID(),
			RequestID:     req.ID,
			Chain:         leave.ChainApproval,
			Level:         level,
			ActorID:       actorID,
			Decision:      d.Kind,
			Comment:       d.Comment,
			ApprovedDates: d.Approved,
			RejectedDates: d.Rejected,
			RejectReason:  d.RejectReason,
			DecidedAt:     d.At,
		}); err != nil {
			return err
		}

		switch {
		case outcome.Rejected:
			req.Status = leave.StatusRejected
		default:
			req.EffectiveDates = outcome.Effective
			req.Status = leave.StatusAfterApproval(level, outcome.Final)
			if outcome.Final {
				lt, err := o.leaveType(ctx, s, req.LeaveTypeID)
				if err != nil {
					return err
				}
				led := ledger.New(s, o.now, o.newID)
				days := decimal.NewFromInt(int64(req.Days()))
				if err := led.Debit(ctx, req.EmployeeID, *lt, req.FiscalYear, days, req.ID, "final approval"); err != nil {
					return err
				}
			}
		}

		req.UpdatedAt = o.now()
		if err := s.UpdateRequest(ctx, req); err != nil {
			return err
		}

		result = Result{RequestID: req.ID, NewStatus: req.Status}
		event = DecisionEvent{
			RequestID: req.ID,
			Chain:     leave.ChainApproval,
			Level:     level,
			Decision:  d.Kind,
			ActorID:   actorID,
			NewStatus: req.Status,
			At:        d.At,
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	o.notifier.Publish(ctx, event)
	o.log.Info("approval decision committed",
		zap.String("request_id", result.RequestID),
		zap.Int("level", int(event.Level)),
		zap.String("decision", string(event.Decision)),
		zap.String("new_status", string(result.NewStatus)))
	return result, nil
}
