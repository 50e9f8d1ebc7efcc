/*
events.go - Decision events for external notification delivery

PURPOSE:
  Every committed decision emits one DecisionEvent. Delivery (push,
  e-mail, toast) is outside this core; consumers plug in a Notifier.
  Events are published after the transaction commits - a rolled-back
  decision never produces an event.
*/
package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/chain"
	"github.com/warp/leave-engine/leave"
)

// DecisionEvent describes one committed decision.
type DecisionEvent struct {
	RequestID string
	Chain     leave.ChainKind
	Level     chain.Level
	Decision  chain.DecisionKind
	ActorID   string
	NewStatus leave.Status
	At        time.Time
}

// Notifier receives committed decision events. Implementations must not
// block the request path; delivery failures are theirs to handle.
type Notifier interface {
	Publish(ctx context.Context, e DecisionEvent)
}

// LogNotifier writes events to the structured log. The default when no
// external dispatcher is wired.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Publish(_ context.Context, e DecisionEvent) {
	n.log.Info("decision event",
		zap.String("request_id", e.RequestID),
		zap.String("chain", string(e.Chain)),
		zap.Int("level", int(e.Level)),
		zap.String("decision", string(e.Decision)),
		zap.String("new_status", string(e.NewStatus)),
		zap.String("actor_id", e.ActorID),
		zap.Time("at", e.At))
}
