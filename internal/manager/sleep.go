package manager

import (
	"sync"

	"mindloop/internal/chatmodel"
)

// SleepConfig tunes the wake-gate threshold.
type SleepConfig struct {
	WakeThreshold float64
	WakeIncrement float64 // added to the wake accumulator per qualifying snapshot
}

// SleepManager governs dormancy for all streams at once: while asleep, a worker
// only consumes a stream's snapshot if it contains a private-chat or
// mention message, and accumulated "wake value" must reach
// WakeThreshold before sleep is lifted entirely.
type SleepManager struct {
	cfg SleepConfig

	mu        sync.Mutex
	asleep    bool
	wakeValue float64
}

func NewSleepManager(cfg SleepConfig, startAsleep bool) *SleepManager {
	if cfg.WakeIncrement <= 0 {
		cfg.WakeIncrement = 1
	}
	return &SleepManager{cfg: cfg, asleep: startAsleep}
}

func (s *SleepManager) IsAsleep() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asleep
}

func (s *SleepManager) Sleep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asleep = true
	s.wakeValue = 0
}

func (s *SleepManager) Wake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asleep = false
	s.wakeValue = 0
}

// Permits reports whether a snapshot for chatType should be processed,
// and as a side effect accumulates wake value on qualifying snapshots
// while asleep, lifting sleep once WakeThreshold is reached.
func (s *SleepManager) Permits(chatType chatmodel.ChatType, snapshot []chatmodel.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.asleep {
		return true
	}

	qualifies := chatType == chatmodel.ChatPrivate
	if !qualifies {
		for _, m := range snapshot {
			if m.IsMention {
				qualifies = true
				break
			}
		}
	}
	if !qualifies {
		return false
	}

	s.wakeValue += s.cfg.WakeIncrement
	if s.wakeValue >= s.cfg.WakeThreshold {
		s.asleep = false
		s.wakeValue = 0
	}
	return true
}
