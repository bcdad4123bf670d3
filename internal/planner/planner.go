package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mindloop/internal/actions"
	"mindloop/internal/chatmodel"
	"mindloop/internal/llmprovider"
	"mindloop/internal/logging"
	"mindloop/internal/util"
)

// Identity/Schedule/Mood are free-form strings supplied by the host
// application; this package treats them as opaque prompt sections.
type Situation struct {
	Mode            ChatMode
	Snapshot        chatmodel.StreamContext
	AvailableActions []actions.ActionSpec
	RetrievedMemories []chatmodel.MemoryChunk
	RecentActions   []ExecutedAction
	Mood            string
	Identity        string
	Schedule        string
	Now             time.Time
}

// Config tunes the Planner's prompt and LLM call.
type Config struct {
	MaxReadHistory int // cap on "read history block", default 50
	CallTimeout    time.Duration
	MaxTokens      int
	Temperature    float64
}

// Planner turns a stream's unread snapshot into a Plan.
type Planner struct {
	cfg Config
	llm llmprovider.Provider
}

func NewPlanner(cfg Config, llm llmprovider.Provider) *Planner {
	if cfg.MaxReadHistory <= 0 {
		cfg.MaxReadHistory = 50
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 800
	}
	return &Planner{cfg: cfg, llm: llm}
}

// shortIDMap assigns synthetic short ids ("u1","u2",...) to unread
// messages in order, the way the prompt references them and the way
// resolveTargets maps a decision's target_message_id back to a real
// message.
type shortIDMap struct {
	byShort map[string]chatmodel.Message
}

func newShortIDMap(unread []chatmodel.Message) shortIDMap {
	m := shortIDMap{byShort: map[string]chatmodel.Message{}}
	for i, msg := range unread {
		m.byShort[fmt.Sprintf("u%d", i+1)] = msg
	}
	return m
}

// Plan runs the five-step Planner algorithm for one stream and returns
// a Plan in state Generated; an LLM failure, timeout or unparseable
// response still yields a Generated Plan carrying a single no_action.
func (p *Planner) Plan(ctx context.Context, streamID string, s Situation) Plan {
	plan := Plan{StreamID: streamID, Mode: s.Mode, State: PlanGenerated, CreatedAt: s.Now}

	unread := s.Snapshot.Unread
	shorts := newShortIDMap(unread)
	prompt := p.buildPrompt(s)
	logging.Log.WithField("stream_id", streamID).WithField("prompt_tokens_est", util.CountTokens(prompt)).
		Debug("planner: built prompt")

	callCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.CallTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, p.cfg.CallTimeout)
		defer cancel()
	}

	out, ok, err := p.llm.Generate(callCtx, prompt, llmprovider.Options{
		RequestType: "planning",
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	})
	if err != nil || !ok {
		logging.Log.WithField("stream_id", streamID).WithError(err).Debug("planner: LLM call failed, falling back to no_action")
		plan.Actions = []DecidedAction{{Type: ActionNoAction, Reasoning: "llm call failed or timed out"}}
		return plan
	}

	resp, err := parsePlanResponse(out)
	if err != nil {
		logging.Log.WithField("stream_id", streamID).WithError(err).Debug("planner: response parse failed, falling back to no_action")
		plan.Actions = []DecidedAction{{Type: ActionNoAction, Reasoning: "unparseable planner response"}}
		return plan
	}

	plan.Thinking = resp.thinking
	plan.Actions = resolveTargets(resp.actions, shorts, unread)
	plan.Actions = enforceReplyQuota(plan.Actions)
	return plan
}

func resolveTargets(decisions []llmAction, shorts shortIDMap, unread []chatmodel.Message) []DecidedAction {
	out := make([]DecidedAction, 0, len(decisions))
	for _, d := range decisions {
		da := DecidedAction{Type: d.Type, Reasoning: d.Reasoning, Data: d.Data, TargetShortID: d.TargetMessageID}
		if msg, ok := shorts.byShort[d.TargetMessageID]; ok {
			m := msg
			da.TargetMessage = &m
		} else if d.Type == ActionPokeUser && len(unread) > 0 {
			m := unread[len(unread)-1]
			da.TargetMessage = &m
		}
		out = append(out, da)
	}
	return out
}

// enforceReplyQuota keeps at most one reply/proactive_reply decision
// per plan; extras are demoted to no_action.
func enforceReplyQuota(decisions []DecidedAction) []DecidedAction {
	seenReply := false
	for i := range decisions {
		if decisions[i].Type == ActionReply || decisions[i].Type == ActionProactiveReply {
			if seenReply {
				decisions[i] = DecidedAction{
					Type:      ActionNoAction,
					Reasoning: "reply quota exceeded: " + decisions[i].Reasoning,
				}
				continue
			}
			seenReply = true
		}
	}
	return decisions
}

func (p *Planner) buildPrompt(s Situation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Identity\n%s\n\n", s.Identity)
	fmt.Fprintf(&b, "# Time\n%s\n\n", s.Now.Format(time.RFC3339))
	fmt.Fprintf(&b, "# Schedule\n%s\n\n", s.Schedule)
	fmt.Fprintf(&b, "# Mood\n%s\n\n", s.Mood)

	b.WriteString("# Read history\n")
	history := s.Snapshot.History
	if len(history) > p.cfg.MaxReadHistory {
		history = history[len(history)-p.cfg.MaxReadHistory:]
	}
	for _, m := range history {
		fmt.Fprintf(&b, "- %s: %s\n", m.UserDisplayName, m.Text)
	}
	b.WriteString("\n# Unread messages\n")
	for i, m := range s.Snapshot.Unread {
		fmt.Fprintf(&b, "- [u%d] %s: %s\n", i+1, m.UserDisplayName, m.Text)
	}

	b.WriteString("\n# Retrieved memories\n")
	for _, m := range s.RetrievedMemories {
		fmt.Fprintf(&b, "- %s\n", m.Content.Display)
	}

	b.WriteString("\n# Recent actions\n")
	for _, a := range s.RecentActions {
		fmt.Fprintf(&b, "- %s (%s): %s\n", a.Action.Type, outcome(a.Succeeded), a.Action.Reasoning)
	}

	b.WriteString("\n# Available actions\n")
	for _, spec := range s.AvailableActions {
		fmt.Fprintf(&b, "## %s\n%s\nRequirements: %s\nExample: %s\n\n", spec.Name, spec.Description, spec.Requirements, spec.Example)
	}

	b.WriteString(modeInstructions(s.Mode))
	b.WriteString("\nRespond with exactly one JSON object: {\"thinking\": \"...\", \"actions\": [{\"action_type\": \"...\", \"reasoning\": \"...\", \"target_message_id\": \"u1\", \"data\": {}}]}\n")
	return b.String()
}

func outcome(ok bool) string {
	if ok {
		return "succeeded"
	}
	return "failed"
}

func modeInstructions(m ChatMode) string {
	switch m {
	case ModeFocus:
		return "# Mode\nFocus: only act on messages directly relevant to the current task.\n"
	case ModeProactive:
		return "# Mode\nProactive: you may initiate a proactive_reply even with no new unread message.\n"
	default:
		return "# Mode\nNormal conversation.\n"
	}
}

type llmAction struct {
	Type            string         `json:"action_type"`
	Reasoning       string         `json:"reasoning"`
	Data            map[string]any `json:"data"`
	TargetMessageID string         `json:"target_message_id"`
}

type llmPlanItem struct {
	Thinking string      `json:"thinking"`
	Actions  []llmAction `json:"actions"`
}

type parsedPlan struct {
	thinking string
	actions  []llmAction
}

// parsePlanResponse accepts either a single {thinking, actions} object
// or a JSON array of such objects, after stripping Markdown fences and
// locating the outermost JSON structure.
func parsePlanResponse(raw string) (parsedPlan, error) {
	cleaned := stripJSONFence(raw)

	var single llmPlanItem
	if err := json.Unmarshal([]byte(cleaned), &single); err == nil && (single.Thinking != "" || len(single.Actions) > 0) {
		return parsedPlan{thinking: single.Thinking, actions: single.Actions}, nil
	}

	var list []llmPlanItem
	if err := json.Unmarshal([]byte(cleaned), &list); err == nil {
		var out parsedPlan
		for _, item := range list {
			if out.thinking == "" {
				out.thinking = item.Thinking
			}
			out.actions = append(out.actions, item.Actions...)
		}
		if len(out.actions) > 0 || len(list) > 0 {
			return out, nil
		}
	}

	return parsedPlan{}, fmt.Errorf("%w: planner response not valid JSON after repair", chatmodel.ErrParse)
}

// stripJSONFence strips a Markdown code fence (```json ... ```) if
// present and trims to the outermost {...} or [...] span, the same
// tolerant-parsing shape used for LLM-authored memory extraction.
func stripJSONFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	openCh, closeCh := byte('{'), byte('}')
	if s[start] == '[' {
		openCh, closeCh = '[', ']'
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}
