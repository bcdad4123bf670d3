package memory

import (
	"context"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"mindloop/internal/logging"
)

// IngestJob is one fire-and-forget background ingestion request,
// queued by Executor on every successful reply.
type IngestJob struct {
	Transcript Transcript
}

// IngestBus runs Transcript jobs through System.IngestConversation with
// a bounded worker pool and exponential backoff, adapting a Kafka
// consumer from "command envelope off a topic" to "ingestion job off a
// queue". Every job arrives through Submit and runs on the bounded
// in-process channel + goroutine pool. When KafkaBrokers is set a
// kafka-go reader is opened (and closed on Stop), but no job is read
// from it.
type IngestBus struct {
	system      *System
	workerCount int
	maxAttempts int
	baseBackoff time.Duration

	jobs chan IngestJob
	wg   sync.WaitGroup

	kafkaReader *kafka.Reader
}

// IngestBusConfig configures the bus; KafkaBrokers/Topic/GroupID are
// only used when non-empty.
type IngestBusConfig struct {
	WorkerCount   int
	MaxAttempts   int
	BaseBackoff   time.Duration
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroupID  string
}

func NewIngestBus(system *System, cfg IngestBusConfig) *IngestBus {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 3
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 200 * time.Millisecond
	}
	b := &IngestBus{
		system:      system,
		workerCount: cfg.WorkerCount,
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff,
		jobs:        make(chan IngestJob, max(64, cfg.WorkerCount*4)),
	}
	if len(cfg.KafkaBrokers) > 0 {
		b.kafkaReader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  cfg.KafkaGroupID,
			Topic:    cfg.KafkaTopic,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
	}
	return b
}

// Submit enqueues a job on the in-process queue, dropping it with a
// warning when the queue is full.
func (b *IngestBus) Submit(job IngestJob) {
	select {
	case b.jobs <- job:
	default:
		logging.Log.Warn("memory ingest bus: queue full, dropping job")
	}
}

// Start spins up the bounded worker pool.
func (b *IngestBus) Start(ctx context.Context) {
	for i := 0; i < b.workerCount; i++ {
		b.wg.Add(1)
		go b.worker(ctx)
	}
}

// Stop closes the job queue and waits for in-flight jobs to finish.
func (b *IngestBus) Stop() {
	close(b.jobs)
	b.wg.Wait()
	if b.kafkaReader != nil {
		_ = b.kafkaReader.Close()
	}
}

func (b *IngestBus) worker(ctx context.Context) {
	defer b.wg.Done()
	for job := range b.jobs {
		b.runWithRetry(ctx, job)
	}
}

func (b *IngestBus) runWithRetry(ctx context.Context, job IngestJob) {
	var lastErr error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		if err := b.system.IngestConversation(ctx, job.Transcript); err != nil {
			lastErr = err
			if attempt < b.maxAttempts && ctx.Err() == nil {
				backoff := b.baseBackoff * time.Duration(1<<uint(attempt-1))
				timer := time.NewTimer(backoff)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return
				}
				continue
			}
			logging.Log.WithError(lastErr).WithField("chat_scope", job.Transcript.ChatScope).
				Warn("memory ingest bus: giving up after retries")
			return
		}
		return
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
