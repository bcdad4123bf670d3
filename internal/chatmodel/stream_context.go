package chatmodel

import "time"

// StreamContext is the per-stream scheduling and conversation state.
// Unread and History are always disjoint; a message moves from Unread
// into History only on a successful reply snapshot promotion.
type StreamContext struct {
	StreamID   string
	ChatType   ChatType // immutable after creation
	Unread     []Message
	History    []Message
	MaxHistorySize int

	InterruptionCount int // >= 0
	MaxInterruptions  int

	LastCheckTime time.Time
	NextCheckTime time.Time // >= LastCheckTime

	AFCThresholdAdjustment float64 // monotonically accumulated

	ConsecutiveNoReplyCount int

	// inFlight is true while a worker is actively processing this
	// stream; TryAcquire refuses a second worker for the same StreamID
	// while it is set.
	inFlight bool
}

// NewStreamContext creates an empty context for a stream. chatType is
// fixed for the lifetime of the context.
func NewStreamContext(streamID string, chatType ChatType, maxHistory, maxInterruptions int) *StreamContext {
	now := time.Now()
	return &StreamContext{
		StreamID:         streamID,
		ChatType:         chatType,
		MaxHistorySize:   maxHistory,
		MaxInterruptions: maxInterruptions,
		LastCheckTime:    now,
		NextCheckTime:    now,
	}
}

// AppendUnread records a newly ingested message as unread.
func (s *StreamContext) AppendUnread(m Message) {
	s.Unread = append(s.Unread, m)
}

// PromoteToHistory moves the current unread snapshot into history,
// evicting the oldest entries once MaxHistorySize is exceeded. It is
// the only mutation that may remove messages from Unread; a cancelled
// worker must never call this (Open Question #1).
func (s *StreamContext) PromoteToHistory(snapshot []Message) {
	s.History = append(s.History, snapshot...)
	if over := len(s.History) - s.MaxHistorySize; s.MaxHistorySize > 0 && over > 0 {
		s.History = s.History[over:]
	}
	s.Unread = removeSnapshot(s.Unread, snapshot)
}

func removeSnapshot(unread, snapshot []Message) []Message {
	if len(snapshot) == 0 {
		return unread
	}
	cut := map[string]struct{}{}
	for _, m := range snapshot {
		cut[m.ID] = struct{}{}
	}
	out := unread[:0:0]
	for _, m := range unread {
		if _, found := cut[m.ID]; !found {
			out = append(out, m)
		}
	}
	return out
}

// Snapshot returns a copy of the current unread slice, safe to pass to
// a worker goroutine without aliasing the live slice.
func (s *StreamContext) Snapshot() []Message {
	out := make([]Message, len(s.Unread))
	copy(out, s.Unread)
	return out
}

// TryAcquire marks the stream in-flight, returning false if a worker is
// already processing it (invariant: at most one in-flight task per
// stream).
func (s *StreamContext) TryAcquire() bool {
	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

// Release clears the in-flight flag.
func (s *StreamContext) Release() {
	s.inFlight = false
}

// RecordInterruption increments InterruptionCount, capped at
// MaxInterruptions.
func (s *StreamContext) RecordInterruption() {
	if s.InterruptionCount < s.MaxInterruptions {
		s.InterruptionCount++
	}
}

// AdjustAFCThreshold accumulates the AFC threshold adjustment; callers
// pass a signed delta, the accumulation itself is monotonic only in the
// sense that it is never reset outside of a stream reset operation.
func (s *StreamContext) AdjustAFCThreshold(delta float64) {
	s.AFCThresholdAdjustment += delta
}
