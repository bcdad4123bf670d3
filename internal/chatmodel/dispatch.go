package chatmodel

import "time"

// Priority is the Dispatcher's coarse queueing class.
type Priority int

const (
	PriorityBackground Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// DispatchTask is one unit of scheduled work for a stream.
type DispatchTask struct {
	StreamID     string
	Priority     Priority
	Energy       float64
	MessageCount int
	CreatedAt    time.Time
	RetryCount   int
	MaxRetries   int
	TaskID       string
	Metadata     map[string]any
}

// Less orders tasks for the priority queue: higher Priority first, then
// higher Energy, then earlier CreatedAt.
func (t DispatchTask) Less(o DispatchTask) bool {
	if t.Priority != o.Priority {
		return t.Priority > o.Priority
	}
	if t.Energy != o.Energy {
		return t.Energy > o.Energy
	}
	return t.CreatedAt.Before(o.CreatedAt)
}

// StreamDistributionState is the Dispatcher's per-stream health and
// cadence bookkeeping.
type StreamDistributionState struct {
	StreamID             string
	Energy               float64
	LastDistributionTime time.Time
	NextDistributionTime time.Time
	MessageCount         int
	ConsecutiveFailures  int
	IsActive             bool
	TotalDistributions   int
	TotalFailures        int
	AvgDistributionTime  time.Duration
}

// RecordSuccess updates running totals after a successful dispatch.
func (s *StreamDistributionState) RecordSuccess(took time.Duration) {
	s.TotalDistributions++
	s.ConsecutiveFailures = 0
	if s.TotalDistributions == 1 {
		s.AvgDistributionTime = took
		return
	}
	n := time.Duration(s.TotalDistributions)
	s.AvgDistributionTime = s.AvgDistributionTime + (took-s.AvgDistributionTime)/n
}

// RecordFailure updates failure bookkeeping and auto-deactivates the
// stream once ConsecutiveFailures reaches failureCap.
func (s *StreamDistributionState) RecordFailure(failureCap int) {
	s.TotalFailures++
	s.ConsecutiveFailures++
	if s.ConsecutiveFailures >= failureCap {
		s.IsActive = false
	}
}
