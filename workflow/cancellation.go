/*
cancellation.go - Cancellation-chain operations

PURPOSE:
  Withdrawal of a request that may stand anywhere from pending to
  approved_final. Initiation parks the request in the cancellation
  chain while preserving its prior status; the chain itself mirrors the
  approval chain (same levels, same skip rule, same reviewers) but is
  binary at every level.

LEDGER RULE:
  Only a request that was approved_final before cancellation ever
  triggered a debit, so only that case credits days back - exactly the
  amount that was debited (the effective day count). A request cancelled
  earlier in its life is a pure status change. The credit fires at most
  once: a replay finds the request cancelled and gets ALREADY_TERMINAL,
  and the ledger idempotency key backstops even that.
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

// InitiateCancellation opens a cancellation flow for a request. Only the
// request's owner may initiate; the reason has a minimum length. The
// request enters pending_cancel with its prior status preserved on the
// cancellation record.
func (o *Orchestrator) InitiateCancellation(ctx context.Context, leaveID, actorID, reason string) (Result, error) {
	if err := leave.ValidateCancellationReason(reason); err != nil {
		return Result{}, err
	}

	var result Result
	err := o.store.WithTx(ctx, func(s leave.Store) error {
		req, err := o.request(ctx, s, leaveID)
		if err != nil {
			return err
		}

		if req.Status.Closed() {
			return fmt.Errorf("leave request %s is %s: %w", req.ID, req.Status, chain.ErrAlreadyTerminal)
		}
		if req.Status.InCancellation() {
			return fmt.Errorf("leave request %s already has a cancellation underway: %w",
				req.ID, chain.ErrInvalidStateTransition)
		}
		if actorID != req.EmployeeID {
			return &leave.ForbiddenError{ActorID: actorID, Detail: "only the requester may initiate cancellation"}
		}

		now := o.now()
		cancellation := &leave.CancellationRequest{
			ID:          o.newID(),
			RequestID:   req.ID,
			ActorID:     actorID,
			Reason:      reason,
			PriorStatus: req.Status,
			Outcome:     leave.CancellationOpen,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.SaveCancellation(ctx, cancellation); err != nil {
			return err
		}

		req.Status = leave.StatusPendingCancel
		req.UpdatedAt = now
		if err := s.UpdateRequest(ctx, req); err != nil {
			return err
		}

		result = Result{RequestID: req.ID, NewStatus: req.Status}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	o.log.Info("cancellation initiated", zap.String("request_id", result.RequestID))
	return result, nil
}

// ApproveCancellation advances the cancellation chain one level. Final
// approval cancels the request and, if it had been approved_final,
// credits the debited days back.
func (o *Orchestrator) ApproveCancellation(ctx context.Context, leaveID, actorID, remarks string) (Result, error) {
	return o.decideCancellation(ctx, leaveID, actorID, chain.Decision{
		Kind:    chain.DecisionApproved,
		Comment: remarks,
	})
}

// RejectCancellation terminates the cancellation flow and restores the
// request to its pre-cancellation status. Remarks are required. The
// request becomes actionable again under the original approval chain.
func (o *Orchestrator) RejectCancellation(ctx context.Context, leaveID, actorID, remarks string) (Result, error) {
	return o.decideCancellation(ctx, leaveID, actorID, chain.Decision{
		Kind:    chain.DecisionRejected,
		Comment: remarks,
	})
}

// =============================================================================
// SHARED CANCELLATION DECISION PATH
// =============================================================================

func (o *Orchestrator) decideCancellation(ctx context.Context, leaveID, actorID string, d chain.Decision) (Result, error) {
	var (
		result Result
		event  DecisionEvent
	)

	err := o.store.WithTx(ctx, func(s leave.Store) error {
		req, err := o.request(ctx, s, leaveID)
		if err != nil {
			return err
		}

		if req.Status.Closed() {
			return fmt.Errorf("leave request %s is %s: %w", req.ID, req.Status, chain.ErrAlreadyTerminal)
		}
		if !req.Status.InCancellation() {
			return fmt.Errorf("leave request %s has no cancellation underway (%s): %w",
				req.ID, req.Status, chain.ErrInvalidStateTransition)
		}

		cancellation, err := s.GetOpenCancellation(ctx, req.ID)
		if err != nil {
			return err
		}
		if cancellation == nil {
			return &leave.NotFoundError{Kind: "cancellation for leave request", ID: req.ID}
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

		progress, err := leave.CancellationProgress(req.Status, req.SkipLevelOne)
		if err != nil {
			return err
		}
		outcome, err := o.cancellation.Apply(progress, req.EffectiveDates, d)
		if err != nil {
			return err
		}

		if err := s.AppendApproval(ctx, leave.Approval{
			ID:             o.newID(),
			RequestID:      req.ID,
			CancellationID: cancellation.ID,
			Chain:          leave.ChainCancellation,
			Level:          level,
			ActorID:        actorID,
			Decision:       d.Kind,
			Comment:        d.Comment,
			DecidedAt:      d.At,
		}); err != nil {
			return err
		}

		now := o.now()
		switch {
		case outcome.Rejected:
			// Restore the pre-cancellation status; the request is
			// actionable again under the original approval chain.
			req.Status = cancellation.PriorStatus
			cancellation.Outcome = leave.CancellationRejected

		case outcome.Final:
			if cancellation.PriorStatus == leave.StatusApprovedFinal {
				lt, err := o.leaveType(ctx, s, req.LeaveTypeID)
				if err != nil {
					return err
				}
				led := ledger.New(s, o.now, o.newID)
				days := decimal.NewFromInt(int64(req.Days()))
				if err := led.Credit(ctx, req.EmployeeID, *lt, req.FiscalYear, days, req.ID, "cancellation approved"); err != nil {
					return err
				}
			}
			req.Status = leave.StatusCancelled
			cancellation.Outcome = leave.CancellationApproved

		default:
			req.Status = leave.StatusAfterCancelApproval(level, false)
		}

		cancellation.UpdatedAt = now
		if err := s.UpdateCancellation(ctx, cancellation); err != nil {
			return err
		}

		req.UpdatedAt = now
		if err := s.UpdateRequest(ctx, req); err != nil {
			return err
		}

		result = Result{RequestID: req.ID, NewStatus: req.Status}
		event = DecisionEvent{
			RequestID: req.ID,
			Chain:     leave.ChainCancellation,
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
	o.log.Info("cancellation decision committed",
		zap.String("request_id", result.RequestID),
		zap.Int("level", int(event.Level)),
		zap.String("decision", string(event.Decision)),
		zap.String("new_status", string(result.NewStatus)))
	return result, nil
}
