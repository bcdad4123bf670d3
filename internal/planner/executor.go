package planner

import (
	"context"

	"mindloop/internal/actions"
	"mindloop/internal/chatmodel"
	"mindloop/internal/logging"
)

// RelationshipSink is the side-channel Executor updates on a successful
// reply; the host application supplies a concrete implementation.
type RelationshipSink interface {
	RecordInteraction(userID string, positive bool)
}

type ExecutorConfig struct {
	Relationship RelationshipSink // optional
}

// Executor invokes the ActionRegistry for every decided action and
// folds successful replies back into the stream's unread/history
// split.
type Executor struct {
	cfg      ExecutorConfig
	registry *actions.Registry
}

func NewExecutor(cfg ExecutorConfig, registry *actions.Registry) *Executor {
	return &Executor{cfg: cfg, registry: registry}
}

// Execute runs every decided action in plan and returns the plan in
// state Executed (even if individual actions failed — executor
// failures are non-fatal) along with the record of what happened, for
// interest-scorer bookkeeping and the next cycle's "recent actions"
// prompt section.
func (e *Executor) Execute(ctx context.Context, plan Plan, sc *chatmodel.StreamContext) (Plan, []ExecutedAction) {
	plan.State = PlanExecuting
	executed := make([]ExecutedAction, 0, len(plan.Actions))
	var repliedMessages []chatmodel.Message

	for _, a := range plan.Actions {
		rec := ExecutedAction{Action: a}
		if a.Type == ActionNoAction || a.Type == ActionNoReply {
			rec.Succeeded = true
			executed = append(executed, rec)
			continue
		}

		inv := actions.Invocation{Name: a.Type, StreamID: plan.StreamID, Args: a.Data}
		if a.TargetMessage != nil {
			inv.TargetText = a.TargetMessage.Text
		}

		res, err := e.registry.Invoke(ctx, inv)
		if err != nil {
			logging.Log.WithField("stream_id", plan.StreamID).WithError(err).
				WithField("action", a.Type).Warn("executor: action failed")
			rec.Succeeded = false
			executed = append(executed, rec)
			continue
		}

		rec.Succeeded = true
		if out, ok := res.Output["text"].(string); ok {
			rec.Output = out
		}
		executed = append(executed, rec)

		isReply := a.Type == ActionReply || a.Type == ActionProactiveReply
		if isReply && a.TargetMessage != nil {
			repliedMessages = append(repliedMessages, *a.TargetMessage)
			if e.cfg.Relationship != nil {
				e.cfg.Relationship.RecordInteraction(a.TargetMessage.UserID, true)
			}
		}
	}

	if len(repliedMessages) > 0 && ctx.Err() == nil {
		sc.PromoteToHistory(repliedMessages)
	}

	plan.State = PlanExecuted
	return plan, executed
}
