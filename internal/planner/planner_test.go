package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mindloop/internal/actions"
	"mindloop/internal/chatmodel"
	"mindloop/internal/llmprovider"
)

func TestParsePlanResponse_SingleObject(t *testing.T) {
	raw := "```json\n{\"thinking\":\"t\",\"actions\":[{\"action_type\":\"reply\",\"reasoning\":\"r\",\"target_message_id\":\"u1\"}]}\n```"
	parsed, err := parsePlanResponse(raw)
	require.NoError(t, err)
	require.Equal(t, "t", parsed.thinking)
	require.Len(t, parsed.actions, 1)
	require.Equal(t, ActionReply, parsed.actions[0].Type)
}

func TestParsePlanResponse_List(t *testing.T) {
	raw := `[{"thinking":"a","actions":[{"action_type":"no_action","reasoning":"x"}]},{"actions":[{"action_type":"react","reasoning":"y"}]}]`
	parsed, err := parsePlanResponse(raw)
	require.NoError(t, err)
	require.Len(t, parsed.actions, 2)
}

func TestParsePlanResponse_Garbage(t *testing.T) {
	_, err := parsePlanResponse("not json at all")
	require.Error(t, err)
}

func TestEnforceReplyQuota(t *testing.T) {
	in := []DecidedAction{
		{Type: ActionReply, Reasoning: "first"},
		{Type: ActionReply, Reasoning: "second"},
		{Type: ActionProactiveReply, Reasoning: "third"},
	}
	out := enforceReplyQuota(in)
	require.Equal(t, ActionReply, out[0].Type)
	require.Equal(t, ActionNoAction, out[1].Type)
	require.Equal(t, ActionNoAction, out[2].Type)
}

func TestPlanner_LLMFailureFallsBackToNoAction(t *testing.T) {
	llm := &llmprovider.Fake{Err: context.DeadlineExceeded}
	p := NewPlanner(Config{}, llm)

	sc := chatmodel.NewStreamContext("s1", chatmodel.ChatPrivate, 10, 3)
	sc.AppendUnread(chatmodel.Message{ID: "m1", StreamID: "s1", Text: "hi", UserID: "u1", Timestamp: time.Now()})

	plan := p.Plan(context.Background(), "s1", Situation{Snapshot: *sc, Now: time.Now()})
	require.Len(t, plan.Actions, 1)
	require.Equal(t, ActionNoAction, plan.Actions[0].Type)
}

func TestFilter_BelowThresholdCollapsesToNoAction(t *testing.T) {
	plan := Plan{Actions: []DecidedAction{{Type: ActionReply}}}
	out := Filter(plan, FilterInput{AverageInterest: 0.1, TopInterest: 0.2, NonReplyActionThreshold: 0.5})
	require.Len(t, out.Actions, 1)
	require.Equal(t, ActionNoAction, out.Actions[0].Type)
	require.Equal(t, PlanDecided, out.State)
}

func TestFilter_UnknownActionRewritten(t *testing.T) {
	plan := Plan{Actions: []DecidedAction{{Type: "fly_to_moon", Reasoning: "why not"}}}
	out := Filter(plan, FilterInput{AvailableActions: []actions.ActionSpec{{Name: "react"}}})
	require.Equal(t, ActionNoAction, out.Actions[0].Type)
}

func TestFilter_ReplyWithoutTargetDowngrades(t *testing.T) {
	plan := Plan{Actions: []DecidedAction{{Type: ActionReply, Reasoning: "r"}}}
	out := Filter(plan, FilterInput{ReplyPermitted: true})
	require.Equal(t, ActionNoAction, out.Actions[0].Type)
}

func TestExecutor_SuccessfulReplyPromotesHistory(t *testing.T) {
	reg := actions.NewRegistry()
	reg.Register(ActionReply, func(ctx context.Context, inv actions.Invocation) (actions.Result, error) {
		return actions.Result{Output: map[string]any{"text": "sent"}}, nil
	})
	exec := NewExecutor(ExecutorConfig{}, reg)

	sc := chatmodel.NewStreamContext("s1", chatmodel.ChatPrivate, 10, 3)
	msg := chatmodel.Message{ID: "m1", StreamID: "s1", Text: "hi", UserID: "u1", Timestamp: time.Now()}
	sc.AppendUnread(msg)

	plan := Plan{StreamID: "s1", Actions: []DecidedAction{{Type: ActionReply, TargetMessage: &msg}}}
	_, executedActions := exec.Execute(context.Background(), plan, sc)

	require.True(t, executedActions[0].Succeeded)
	snap := sc.Snapshot()
	require.Empty(t, snap.Unread)
	require.Len(t, snap.History, 1)
}
