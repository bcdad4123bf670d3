// Package system wires every collaborator in the scheduling and memory
// substrate into one lifecycle-managed context, the way a main package
// wires its orchestrator/persistence/tool collaborators into a single
// long-lived struct before starting the HTTP server.
package system

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"mindloop/internal/actions"
	"mindloop/internal/chatmodel"
	"mindloop/internal/clock"
	"mindloop/internal/config"
	"mindloop/internal/dispatch"
	"mindloop/internal/embedprovider"
	"mindloop/internal/energy"
	"mindloop/internal/interest"
	"mindloop/internal/llmprovider"
	"mindloop/internal/logging"
	"mindloop/internal/manager"
	"mindloop/internal/memory"
	"mindloop/internal/planner"
	"mindloop/internal/streamctx"
	"mindloop/internal/vectorstore"
)

// Context is the fully wired runtime: every collaborator instance plus
// the background loops (MessageManager, Dispatcher, IngestBus) that
// need Start/Stop lifecycle management.
type Context struct {
	Config *config.Config

	Clock       clock.Source
	LLM         llmprovider.Provider
	Embeddings  embedprovider.Provider
	VectorStore vectorstore.Store
	Actions     *actions.Registry

	Streams    *streamctx.Store
	Dispatcher *dispatch.Dispatcher
	Memory     *memory.System
	IngestBus  *memory.IngestBus
	Forgetter  *memory.Forgetter

	Planner  *planner.Planner
	Executor *planner.Executor

	Sleep   *manager.SleepManager
	Manager *manager.MessageManager

	energyWeights   energy.Weights
	interestWeights interest.Weights
	rng             *rand.Rand
}

// relationshipTracker is a minimal in-process RelationshipSink; a real
// deployment would back this with a persistent store, but none is
// named by any [MODULE], so it stays an in-memory stub wired
// directly into the Executor (planner.RelationshipSink).
type relationshipTracker struct {
	closeness map[string]float64
}

func newRelationshipTracker() *relationshipTracker {
	return &relationshipTracker{closeness: map[string]float64{}}
}

func (r *relationshipTracker) RecordInteraction(userID string, positive bool) {
	delta := 0.05
	if !positive {
		delta = -0.05
	}
	v := r.closeness[userID] + delta
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	r.closeness[userID] = v
}

func (r *relationshipTracker) Closeness(userID string) float64 {
	return r.closeness[userID]
}

// durationOrDefault parses a config duration string, falling back to
// def on empty input or a parse error.
func durationOrDefault(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		logging.Log.WithField("value", s).Warn("system: invalid duration, using default")
		return def
	}
	return d
}

// New constructs every collaborator from cfg but does not start any
// background loop; call Start to begin serving.
func New(ctx context.Context, cfg *config.Config) (*Context, error) {
	clk := clock.Real{}

	llm := llmprovider.New(llmprovider.Config{
		APIKey:             cfg.AnthropicKey,
		BaseURL:            cfg.LLM.BaseURL,
		DefaultModel:       cfg.LLM.DefaultModel,
		AntiInjectionModel: cfg.LLM.AntiInjectionModel,
		CachePrompt:        cfg.LLM.CachePrompt,
	})

	embed := embedprovider.New(embedprovider.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		Dim:     cfg.VectorStore.Dimensions,
	})

	vsCfg := cfg.VectorStore
	if vsCfg.Backend == "postgres" && vsCfg.DSN == "" {
		vsCfg.DSN = cfg.Database.ConnectionString
	}
	vs, err := newVectorStore(ctx, vsCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: vector store init: %v", chatmodel.ErrFatalInit, err)
	}

	store, err := memory.NewStore(ctx, vs, clk, memory.StoreConfig{CacheSize: 10000})
	if err != nil {
		return nil, err
	}

	var fingerprints memory.FingerprintStore
	if cfg.RedisAddr != "" {
		rf, err := memory.NewRedisFingerprints(cfg.RedisAddr)
		if err != nil {
			logging.Log.WithField("error", err).Warn("system: redis fingerprint store unavailable, falling back to in-process")
			fingerprints = memory.NewInProcessFingerprints()
		} else {
			fingerprints = rf
		}
	} else {
		fingerprints = memory.NewInProcessFingerprints()
	}

	extractor := memory.NewExtractor(llm, embed, clk)
	fusion := memory.NewFusion(memory.FusionConfig{FusionThreshold: cfg.Memory.FusionThreshold}, store, fingerprints, clk)
	retriever := memory.NewRetriever(memory.RetrieveConfig{
		MetadataFilterLimit:  cfg.Memory.MetadataFilterLimit,
		VectorSearchLimit:    cfg.Memory.VectorSearchLimit,
		VectorSimThreshold:   cfg.Memory.VectorSimThreshold,
		SemanticRerankLimit:  cfg.Memory.SemanticRerankLimit,
		SemanticSimThreshold: cfg.Memory.SemanticSimThreshold,
		FinalResultLimit:     cfg.Memory.FinalResultLimit,
		WeightSemantic:       cfg.Memory.WeightSemantic,
		WeightVector:         cfg.Memory.WeightVector,
		WeightContextual:     cfg.Memory.WeightContextual,
		WeightRecency:        cfg.Memory.WeightRecency,
	}, store, embed)

	memSystem := memory.NewSystem(memory.SystemConfig{
		MinBuildInterval: durationOrDefault(cfg.Memory.MinBuildInterval, 2*time.Minute),
		ValueThreshold:   cfg.Memory.ValueThreshold,
	}, extractor, fusion, retriever, store, llm, clk)

	ingestBus := memory.NewIngestBus(memSystem, memory.IngestBusConfig{
		KafkaBrokers: cfg.KafkaBrokers,
	})

	forgetter := memory.NewForgetter(memory.ForgetConfig{
		BaseRetentionDays:   cfg.Memory.BaseRetentionDays,
		ImportanceBonusDays: cfg.Memory.ImportanceBonusDays,
		ConfidenceBonusDays: cfg.Memory.ConfidenceBonusDays,
		AccessBonusDays:     cfg.Memory.AccessBonusDays,
		AccessBonusCap:      cfg.Memory.AccessBonusCap,
		RetentionHours:      cfg.Memory.RetentionHours,
	}, store, clk)

	registry := actions.NewRegistry()
	registerBuiltinActions(registry)

	streams := streamctx.NewStore(200, cfg.Interruption.MaxLimit)

	dispatcherCfg := dispatch.Config{
		MaxConcurrent:  cfg.Scheduling.MaxConcurrent,
		RetryBaseDelay: durationOrDefault(cfg.Scheduling.RetryBaseDelay, 500*time.Millisecond),
	}
	var disp *dispatch.Dispatcher
	disp = dispatch.New(dispatcherCfg, clk, func(ctx context.Context, task chatmodel.DispatchTask) error {
		// The Dispatcher's processor is advisory bookkeeping here (see
		// DESIGN.md Open Question resolution 5): the actual per-stream
		// pipeline run lives in the MessageManager's ticking loop, not
		// in this callback, so there is nothing left to do once a task
		// reaches the front of the queue besides acknowledging it.
		return nil
	})

	pln := planner.NewPlanner(planner.Config{
		CallTimeout: durationOrDefault(cfg.LLM.CallTimeout, 20*time.Second),
	}, llm)

	rel := newRelationshipTracker()
	exec := planner.NewExecutor(planner.ExecutorConfig{Relationship: rel}, registry)

	sleep := manager.NewSleepManager(manager.SleepConfig{WakeThreshold: 3, WakeIncrement: 1}, false)

	sc := &Context{
		Config:      cfg,
		Clock:       clk,
		LLM:         llm,
		Embeddings:  embed,
		VectorStore: vs,
		Actions:     registry,
		Streams:     streams,
		Dispatcher:  disp,
		Memory:      memSystem,
		IngestBus:   ingestBus,
		Forgetter:   forgetter,
		Planner:     pln,
		Executor:    exec,
		Sleep:       sleep,
		energyWeights: energy.Weights{
			Activity:     0.25,
			AvgInterest:  0.35,
			Recency:      0.25,
			Relationship: 0.15,
		},
		interestWeights: interest.Weights{
			KeywordSemantic: 0.4,
			MentionBonus:    0.3,
			Relationship:    0.2,
			Recency:         0.1,
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	mgrCfg := manager.Config{
		CheckInterval: 500 * time.Millisecond,
		Interval: manager.IntervalConfig{
			Base:              durationOrDefault(cfg.Scheduling.DistBase, 20 * time.Second),
			MinInterval:       durationOrDefault(cfg.Scheduling.DistMin, 3 * time.Second),
			MaxInterval:       durationOrDefault(cfg.Scheduling.DistMax, 5 * time.Minute),
			Jitter:            cfg.Scheduling.JitterFactor,
			ReplyThreshold:    cfg.Interest.ReplyThreshold,
			NonReplyThreshold: cfg.Interest.NonReplyActionThreshold,
			HighThreshold:     cfg.Interest.HighMatchThreshold,
		},
		Sleep:                    manager.SleepConfig{WakeThreshold: 3, WakeIncrement: 1},
		PerUserConcurrency:       cfg.Concurrency.ProcessByUserID,
		InterruptionProbFactor:   cfg.Interruption.ProbFactor,
		InterruptionBaseProb:     0.8,
		InterruptionAFCReduction: cfg.Interruption.AFCReduction,
	}

	sc.Manager = manager.NewMessageManager(mgrCfg, clk, streams, disp, sleep, sc.streamEnergy, sc.streamInterest, sc.runWorker)

	return sc, nil
}

func newVectorStore(ctx context.Context, cfg config.VectorStoreConfig) (vectorstore.Store, error) {
	switch cfg.Backend {
	case "qdrant":
		return vectorstore.NewQdrant(cfg.DSN, cfg.Dimensions, cfg.Metric)
	case "postgres":
		return vectorstore.NewPostgres(ctx, cfg.DSN, cfg.Dimensions, cfg.Metric)
	default:
		return vectorstore.NewMemory(), nil
	}
}

// registerBuiltinActions registers the four action types the Planner's
// vocabulary always includes; a host application registers further
// platform-specific actions (react, poke, etc.) on top of these.
func registerBuiltinActions(r *actions.Registry) {
	r.Register(planner.ActionNoAction, func(ctx context.Context, inv actions.Invocation) (actions.Result, error) {
		return actions.Result{}, nil
	})
	r.Register(planner.ActionNoReply, func(ctx context.Context, inv actions.Invocation) (actions.Result, error) {
		return actions.Result{}, nil
	})
	r.RegisterSpec(actions.ActionSpec{
		Name:         planner.ActionReply,
		Description:  "Send a direct reply to the targeted unread message.",
		Requirements: "target_message_id must reference an unread message short id",
		Example:      `{"type":"reply","target_message_id":"u1","reasoning":"answers their question"}`,
	})
	r.Register(planner.ActionReply, func(ctx context.Context, inv actions.Invocation) (actions.Result, error) {
		return actions.Result{Output: map[string]any{"text": inv.TargetText}}, nil
	})
	r.RegisterSpec(actions.ActionSpec{
		Name:         planner.ActionProactiveReply,
		Description:  "Send a reply without being directly addressed, when the conversation invites it.",
		Requirements: "target_message_id optional; omit to address the stream generally",
		Example:      `{"type":"proactive_reply","reasoning":"natural opening to contribute"}`,
	})
	r.Register(planner.ActionProactiveReply, func(ctx context.Context, inv actions.Invocation) (actions.Result, error) {
		return actions.Result{Output: map[string]any{"text": inv.TargetText}}, nil
	})
	r.RegisterSpec(actions.ActionSpec{
		Name:         planner.ActionPokeUser,
		Description:  "Send a lightweight check-in nudge to a quiet user.",
		Requirements: "none",
		Example:      `{"type":"poke_user","reasoning":"user has been idle"}`,
	})
	r.Register(planner.ActionPokeUser, func(ctx context.Context, inv actions.Invocation) (actions.Result, error) {
		return actions.Result{}, nil
	})
}

// streamEnergy computes the EnergyCalculator reading for a stream
// from its current context, used by both the Dispatcher's priority
// function and the MessageManager's distribution interval.
func (c *Context) streamEnergy(streamID string) float64 {
	sc := c.Streams.Get(streamID)
	if sc == nil {
		return 0
	}
	avgInterest, _ := c.streamInterest(streamID, sc.Unread)
	activity := clamp01(float64(len(sc.Unread)) / 10)
	recency := 1.0
	if !sc.LastCheckTime.IsZero() {
		age := time.Since(sc.LastCheckTime)
		recency = clamp01(1 - age.Seconds()/600)
	}
	return energy.Calculate(c.energyWeights, energy.Inputs{
		Activity:     activity,
		AvgInterest:  avgInterest,
		Recency:      recency,
		Relationship: 0.5,
	})
}

// streamInterest scores every unread message and returns the mean and
// max, used for both interval distribution and the non-reply-action
// gate in PlanFilter.
func (c *Context) streamInterest(streamID string, unread []chatmodel.Message) (avg, top float64) {
	if len(unread) == 0 {
		return 0, 0
	}
	var sum float64
	for _, m := range unread {
		recency := clamp01(1 - time.Since(m.Timestamp).Minutes()/30)
		s := interest.Score(c.interestWeights, interest.Inputs{
			KeywordSemanticMatch: 0,
			IsMention:            m.IsMention,
			RelationshipCloseness: 0.5,
			Recency:              recency,
		})
		sum += s
		if s > top {
			top = s
		}
	}
	return sum / float64(len(unread)), top
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// runWorker is the MessageManager.Worker: it runs the full plan-filter-
// execute pipeline against one stream snapshot, then fires memory
// ingestion in the background.
func (c *Context) runWorker(ctx context.Context, sc *chatmodel.StreamContext, snapshot []chatmodel.Message) {
	if !sc.TryAcquire() {
		return
	}
	defer sc.Release()

	avgInterest, topInterest := c.streamInterest(sc.StreamID, snapshot)

	situation := planner.Situation{
		Mode:              planner.ModeNormal,
		Snapshot:          *sc,
		AvailableActions:  c.Actions.Specs(),
		RecentActions:     nil,
		Now:               c.Clock.Now(),
	}

	if c.Memory != nil {
		if mem, err := c.Memory.Retrieve(ctx, snapshot[len(snapshot)-1].UserID, recentText(snapshot)); err == nil {
			situation.RetrievedMemories = mem
		}
	}

	plan := c.Planner.Plan(ctx, sc.StreamID, situation)

	threshold := interest.EffectiveReplyThreshold(interest.ThresholdParams{
		ReplyThreshold:          c.Config.Interest.ReplyThreshold,
		AFCThresholdAdjustment:  sc.AFCThresholdAdjustment,
		ConsecutiveNoReplyCount: sc.ConsecutiveNoReplyCount,
		MaxNoReplyCount:         c.Config.Interest.MaxNoReplyCount,
		ForceStep:               0.05,
	})

	plan = planner.Filter(plan, planner.FilterInput{
		AverageInterest:         avgInterest,
		TopInterest:             topInterest,
		NonReplyActionThreshold: c.Config.Interest.NonReplyActionThreshold,
		ReplyPermitted:          topInterest >= threshold,
		AvailableActions:        c.Actions.Specs(),
		Unread:                  snapshot,
	})

	plan, _ = c.Executor.Execute(ctx, plan, sc)

	replied := false
	for _, a := range plan.Actions {
		if a.Type == planner.ActionReply || a.Type == planner.ActionProactiveReply {
			replied = true
		}
	}
	if replied {
		sc.ConsecutiveNoReplyCount = 0
	} else {
		sc.ConsecutiveNoReplyCount++
	}

	if c.IngestBus != nil {
		c.IngestBus.Submit(memory.IngestJob{Transcript: memory.Transcript{
			ChatScope: sc.StreamID,
			UserScope: snapshot[len(snapshot)-1].UserID,
			Messages:  snapshot,
		}})
	}
}

func recentText(msgs []chatmodel.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Text
}

// Start begins every background loop: the Dispatcher's worker pool,
// the MessageManager's ticking scheduler, and the IngestBus's
// consumers.
func (c *Context) Start(ctx context.Context) {
	c.Dispatcher.Start(ctx)
	c.IngestBus.Start(ctx)
	c.Manager.Start(ctx)
}

// Stop drains every background loop in the reverse order Start began
// them, so in-flight workers finish submitting ingestion jobs before
// the bus that would process them is closed.
func (c *Context) Stop() {
	c.Manager.Stop()
	c.IngestBus.Stop()
	c.Dispatcher.Stop()
	if closer, ok := c.VectorStore.(interface{ Close() }); ok {
		closer.Close()
	}
}
