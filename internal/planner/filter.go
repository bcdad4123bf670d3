package planner

import (
	"mindloop/internal/actions"
	"mindloop/internal/chatmodel"
)

// FilterInput carries everything PlanFilter needs beyond the Plan
// itself: the interest gate's verdict and the messages available for
// target resolution.
type FilterInput struct {
	AverageInterest          float64
	TopInterest               float64
	NonReplyActionThreshold   float64
	ReplyPermitted            bool // false when InterestScorer.ShouldReply said no
	AvailableActions          []actions.ActionSpec
	Unread                    []chatmodel.Message
	NoticeMessages            []chatmodel.Message // subset of Unread/History flagged "notice"
}

// Filter applies PlanFilter's rules to a Generated plan and returns it
// in state Decided (possibly holding a single no_action).
func Filter(plan Plan, in FilterInput) Plan {
	plan.State = PlanFiltered

	if in.NonReplyActionThreshold > 0 && in.AverageInterest < in.NonReplyActionThreshold && in.TopInterest < in.NonReplyActionThreshold {
		plan.Actions = []DecidedAction{{Type: ActionNoAction, Reasoning: "interest below non-reply threshold"}}
		plan.State = PlanDecided
		return plan
	}

	available := map[string]struct{}{}
	for _, spec := range in.AvailableActions {
		available[spec.Name] = struct{}{}
	}
	// Decision vocabulary always includes the well-known pseudo-actions,
	// which are not registered in ActionRegistry.
	for _, builtin := range []string{ActionNoAction, ActionNoReply, ActionReply, ActionProactiveReply} {
		available[builtin] = struct{}{}
	}

	out := make([]DecidedAction, 0, len(plan.Actions))
	for _, a := range plan.Actions {
		if !in.ReplyPermitted && (a.Type == ActionReply || a.Type == ActionProactiveReply) {
			a.Type = ActionNoReply
		}

		if _, ok := available[a.Type]; !ok {
			a = DecidedAction{
				Type:      ActionNoAction,
				Reasoning: "unknown action " + a.Type + ": " + a.Reasoning,
			}
			out = append(out, a)
			continue
		}

		a = resolveTarget(a, in)
		out = append(out, a)
	}

	if len(out) == 0 {
		out = []DecidedAction{{Type: ActionNoAction, Reasoning: "planner returned no actions"}}
	}

	plan.Actions = out
	plan.State = PlanDecided
	return plan
}

// resolveTarget implements the target-message-resolution rule: missing
// target for a reply downgrades to no_action; poke_user prefers the
// most recent notice message, else falls back to the most recent
// unread.
func resolveTarget(a DecidedAction, in FilterInput) DecidedAction {
	switch a.Type {
	case ActionReply, ActionProactiveReply:
		if a.TargetMessage == nil {
			return DecidedAction{Type: ActionNoAction, Reasoning: "no resolvable target for reply: " + a.Reasoning}
		}
	case ActionPokeUser:
		if len(in.NoticeMessages) > 0 {
			m := in.NoticeMessages[len(in.NoticeMessages)-1]
			a.TargetMessage = &m
		} else if a.TargetMessage == nil && len(in.Unread) > 0 {
			m := in.Unread[len(in.Unread)-1]
			a.TargetMessage = &m
		}
	}
	return a
}
