// Package planner implements the Planner/PlanFilter/Executor pipeline:
// given a stream's unread snapshot it builds a prompt,
// invokes an LLMProvider for a decision, reconciles that decision
// against the actions actually available, and executes it.
package planner

import (
	"time"

	"mindloop/internal/chatmodel"
)

// ChatMode biases the Planner's prompt template.
type ChatMode int

const (
	ModeNormal ChatMode = iota
	ModeFocus
	ModeProactive
)

// PlanState is the lifecycle a Plan moves through.
type PlanState int

const (
	PlanGenerated PlanState = iota
	PlanFiltered
	PlanDecided
	PlanExecuting
	PlanExecuted
	PlanFailed
)

// ActionType names the well-known decision kinds PlanFilter reasons
// about explicitly; any other string is an ordinary registry action
// name.
const (
	ActionNoAction       = "no_action"
	ActionNoReply        = "no_reply"
	ActionReply          = "reply"
	ActionProactiveReply = "proactive_reply"
	ActionPokeUser       = "poke_user"
)

// DecidedAction is one action the LLM chose, before or after filtering.
type DecidedAction struct {
	Type          string
	Reasoning     string
	Data          map[string]any
	TargetShortID string // synthetic short id as emitted in the prompt
	TargetMessage *chatmodel.Message
}

// Plan is one planning cycle's state, threaded through Planner -> Filter
// -> Executor.
type Plan struct {
	StreamID  string
	Mode      ChatMode
	State     PlanState
	CreatedAt time.Time
	Thinking  string
	Actions   []DecidedAction
	Err       error
}

// ExecutedAction records what Executor actually did with a DecidedAction,
// for interest-scorer bookkeeping and recent-action-history prompts.
type ExecutedAction struct {
	Action    DecidedAction
	Succeeded bool
	Output    string
	At        time.Time
}
