// Package dispatch implements the Dispatcher component: a
// priority-queue-driven, bounded-concurrency worker pool with
// exponential backoff and dead-stream deactivation, generalized from
// a Kafka consumer worker pool from
// "commands off a topic" to "per-stream distribution tasks off an
// in-process priority queue".
package dispatch

import (
	"context"
	"sync"
	"time"

	"mindloop/internal/chatmodel"
	"mindloop/internal/clock"
	"mindloop/internal/logging"
)

// Processor executes one DispatchTask; a non-nil error is treated as a
// retryable failure unless the task has exhausted MaxRetries.
type Processor func(ctx context.Context, task chatmodel.DispatchTask) error

// Config tunes the dispatcher's concurrency and backoff behavior.
type Config struct {
	MaxConcurrent   int
	RetryBaseDelay  time.Duration
	FailureCap      int // ConsecutiveFailures threshold for auto-deactivation
	MaxStaleness    time.Duration // tasks older than this are dropped as invalid
	PollInterval    time.Duration
}

// Dispatcher owns the priority queue, per-stream distribution state,
// and the bounded worker pool that drains it.
type Dispatcher struct {
	cfg   Config
	clk   clock.Source
	proc  Processor

	mu    sync.Mutex
	queue *priorityQueue
	state map[string]*chatmodel.StreamDistributionState

	wake chan struct{}
	wg   sync.WaitGroup
}

func New(cfg Config, clk clock.Source, proc Processor) *Dispatcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	return &Dispatcher{
		cfg:   cfg,
		clk:   clk,
		proc:  proc,
		queue: newPriorityQueue(),
		state: map[string]*chatmodel.StreamDistributionState{},
		wake:  make(chan struct{}, 1),
	}
}

func (d *Dispatcher) stateFor(streamID string) *chatmodel.StreamDistributionState {
	s, ok := d.state[streamID]
	if !ok {
		s = &chatmodel.StreamDistributionState{StreamID: streamID, IsActive: true}
		d.state[streamID] = s
	}
	return s
}

// UpdateEnergy records the latest energy reading for a stream, used by
// ComputePriority on the next Enqueue.
func (d *Dispatcher) UpdateEnergy(streamID string, energy float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateFor(streamID).Energy = energy
}

// Enqueue admits a task if its stream is active and not stale;
// otherwise the task is silently dropped as invalid.
func (d *Dispatcher) Enqueue(task chatmodel.DispatchTask) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.stateFor(task.StreamID)
	if !st.IsActive {
		logging.Log.WithField("stream_id", task.StreamID).Debug("dispatch: dropping task for inactive stream")
		return
	}
	if d.cfg.MaxStaleness > 0 && d.clk.Now().Sub(task.CreatedAt) > d.cfg.MaxStaleness {
		logging.Log.WithField("stream_id", task.StreamID).Debug("dispatch: dropping stale task")
		return
	}
	task.Priority = ComputePriority(*st, task.MessageCount)
	d.queue.Push(task)
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// ForceProcess immediately runs streamID's highest-priority pending
// task synchronously, bypassing the backoff/queue ordering — used for
// interruption-triggered immediate dispatch.
func (d *Dispatcher) ForceProcess(ctx context.Context, streamID string) bool {
	d.mu.Lock()
	var found chatmodel.DispatchTask
	var ok bool
	var rest []chatmodel.DispatchTask
	for {
		t, popped := d.queue.Pop()
		if !popped {
			break
		}
		if !ok && t.StreamID == streamID {
			found, ok = t, true
			continue
		}
		rest = append(rest, t)
	}
	for _, t := range rest {
		d.queue.Push(t)
	}
	d.mu.Unlock()

	if !ok {
		return false
	}
	d.runTask(ctx, found)
	return true
}

// Start runs the dispatch loop until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.loop(ctx)
}

// Stop blocks until the dispatch loop and all in-flight tasks finish.
func (d *Dispatcher) Stop() {
	d.wg.Wait()
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()

	sem := make(chan struct{}, d.cfg.MaxConcurrent)
	var inflight sync.WaitGroup
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			inflight.Wait()
			return
		case <-d.wake:
		case <-ticker.C:
		}

		for {
			d.mu.Lock()
			task, ok := d.queue.Pop()
			d.mu.Unlock()
			if !ok {
				break
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				inflight.Wait()
				return
			}

			inflight.Add(1)
			go func(t chatmodel.DispatchTask) {
				defer inflight.Done()
				defer func() { <-sem }()
				d.runTask(ctx, t)
			}(task)
		}
	}
}

// runTask executes one task via Processor, handling retry/backoff and
// stream deactivation on MaxRetries exhaustion.
func (d *Dispatcher) runTask(ctx context.Context, task chatmodel.DispatchTask) {
	start := d.clk.Now()
	err := d.proc(ctx, task)
	took := d.clk.Now().Sub(start)

	d.mu.Lock()
	st := d.stateFor(task.StreamID)
	d.mu.Unlock()

	if err == nil {
		d.mu.Lock()
		st.RecordSuccess(took)
		d.mu.Unlock()
		return
	}

	d.mu.Lock()
	st.RecordFailure(d.cfg.FailureCap)
	d.mu.Unlock()

	task.RetryCount++
	if task.RetryCount > task.MaxRetries {
		d.mu.Lock()
		st.IsActive = false
		d.mu.Unlock()
		logging.Log.WithField("stream_id", task.StreamID).WithError(err).
			Warn("dispatch: stream deactivated after exhausting retries")
		return
	}

	shift := task.RetryCount - 1
	if shift > 3 {
		shift = 3
	}
	backoff := d.cfg.RetryBaseDelay * time.Duration(1<<uint(shift))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		timer := time.NewTimer(backoff)
		defer timer.Stop()
		select {
		case <-timer.C:
			d.Enqueue(task)
		case <-ctx.Done():
		}
	}()
}
