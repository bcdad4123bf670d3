// Package manager implements MessageManager and SleepManager: the
// outer scheduling loop that decides, per stream, when to
// recompute its distribution interval, whether to interrupt an
// in-flight worker, and when to spawn a new one. It adapts
// a Kafka consumer poll loop into a
// per-stream ticking scheduler: the same "poll, bound concurrency,
// spawn" shape, with the partition-consumer unit replaced by a
// StreamContext.
package manager

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"mindloop/internal/chatmodel"
	"mindloop/internal/clock"
	"mindloop/internal/dispatch"
	"mindloop/internal/logging"
	"mindloop/internal/streamctx"
)

// Worker runs the full per-stream pipeline (interest scoring, planning,
// filtering, execution, memory ingestion) against one snapshot. It must
// return promptly on ctx cancellation and must not mutate sc's Unread
// slice directly — only StreamContext.PromoteToHistory does that, and
// only when ctx.Err() == nil (Open Question #1).
type Worker func(ctx context.Context, sc *chatmodel.StreamContext, snapshot []chatmodel.Message)

// EnergyFunc returns the current Energy reading for a stream;
// MessageManager does not compute Energy itself.
type EnergyFunc func(streamID string) float64

// InterestFunc returns the average and top InterestScorer score across
// a stream's current unread messages.
type InterestFunc func(streamID string, unread []chatmodel.Message) (avg, top float64)

// Config bundles every manager-loop tunable.
type Config struct {
	CheckInterval   time.Duration
	Interval        IntervalConfig
	Sleep           SleepConfig
	PerUserConcurrency bool

	InterruptionProbFactor   float64
	InterruptionBaseProb     float64
	InterruptionAFCReduction float64
}

// MessageManager schedules stream processing ticks.
type MessageManager struct {
	cfg    Config
	clk    clock.Source
	store  *streamctx.Store
	disp   *dispatch.Dispatcher
	sleep  *SleepManager
	energy EnergyFunc
	interest InterestFunc
	worker Worker
	rng    *rand.Rand

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewMessageManager(cfg Config, clk clock.Source, store *streamctx.Store, disp *dispatch.Dispatcher, sleep *SleepManager, energy EnergyFunc, interest InterestFunc, worker Worker) *MessageManager {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 200 * time.Millisecond
	}
	return &MessageManager{
		cfg:      cfg,
		clk:      clk,
		store:    store,
		disp:     disp,
		sleep:    sleep,
		energy:   energy,
		interest: interest,
		worker:   worker,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		cancels:  map[string]context.CancelFunc{},
		stopCh:   make(chan struct{}),
	}
}

// Ingest appends an inbound message to its stream's unread set,
// creating the stream context if absent, then notifies the Dispatcher
// of pending work.
func (m *MessageManager) Ingest(chatType chatmodel.ChatType, msg chatmodel.Message) {
	sc := m.store.GetOrCreate(msg.StreamID, chatType)
	sc.AppendUnread(msg)

	if m.disp != nil {
		m.disp.Enqueue(chatmodel.DispatchTask{
			StreamID:      msg.StreamID,
			MessageCount:  len(sc.Unread),
			CreatedAt:     m.clk.Now(),
			MaxRetries:    3,
		})
	}
}

// Start launches the manager loop in a background goroutine.
func (m *MessageManager) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop terminates the manager loop and cancels every in-flight worker.
func (m *MessageManager) Stop() {
	close(m.stopCh)
	m.mu.Lock()
	for _, cancel := range m.cancels {
		cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *MessageManager) loop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick advances every active stream whose NextCheckTime is due.
func (m *MessageManager) tick(ctx context.Context) {
	now := m.clk.Now()
	for _, sc := range m.store.All() {
		if now.Before(sc.NextCheckTime) {
			continue
		}
		m.processStream(ctx, sc, now)
	}
}

func (m *MessageManager) processStream(ctx context.Context, sc *chatmodel.StreamContext, now time.Time) {
	sc.LastCheckTime = now

	E := 0.0
	if m.energy != nil {
		E = m.energy(sc.StreamID)
	}
	avgI, _ := 0.0, 0.0
	if m.interest != nil {
		avgI, _ = m.interest(sc.StreamID, sc.Unread)
	}

	interval := DistributionInterval(m.cfg.Interval, E, avgI, m.rng)
	sc.NextCheckTime = now.Add(interval)

	snapshot := sc.Snapshot()
	if len(snapshot) == 0 {
		return
	}

	if m.sleep != nil && !m.sleep.Permits(sc.ChatType, snapshot) {
		return
	}

	if m.cfg.PerUserConcurrency {
		buckets := bucketByUser(snapshot)
		for userID, msgs := range buckets {
			m.spawnOrInterrupt(ctx, sc, sc.StreamID+"|"+userID, msgs)
		}
		return
	}
	m.spawnOrInterrupt(ctx, sc, sc.StreamID, snapshot)
}

func bucketByUser(snapshot []chatmodel.Message) map[string][]chatmodel.Message {
	out := map[string][]chatmodel.Message{}
	for _, msg := range snapshot {
		out[msg.UserID] = append(out[msg.UserID], msg)
	}
	return out
}

// spawnOrInterrupt implements the interruption policy: if key already
// has an in-flight worker, ShouldInterrupt decides whether to cancel it
// before spawning the replacement; otherwise it spawns directly.
func (m *MessageManager) spawnOrInterrupt(ctx context.Context, sc *chatmodel.StreamContext, key string, snapshot []chatmodel.Message) {
	m.mu.Lock()
	prevCancel, inFlight := m.cancels[key]
	m.mu.Unlock()

	if inFlight {
		view := &streamctx.StreamContextView{InterruptionCount: sc.InterruptionCount, MaxInterruptions: sc.MaxInterruptions}
		params := streamctx.InterruptionParams{ProbFactor: m.cfg.InterruptionProbFactor, BaseProbability: m.cfg.InterruptionBaseProb}
		if !streamctx.ShouldInterrupt(view, params, m.rng) {
			return
		}
		prevCancel()
		sc.RecordInterruption()
		sc.AdjustAFCThreshold(m.cfg.InterruptionAFCReduction)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancels[key] = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		defer func() {
			m.mu.Lock()
			if m.cancels[key] != nil {
				delete(m.cancels, key)
			}
			m.mu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				logging.Log.WithField("stream_id", sc.StreamID).WithField("panic", r).
					Warn("manager: worker panicked, snapshot remains unread")
			}
		}()
		m.worker(workerCtx, sc, snapshot)
	}()
}
