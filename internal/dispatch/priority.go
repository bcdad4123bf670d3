package dispatch

import "mindloop/internal/chatmodel"

// ComputePriority derives a DispatchTask's queueing class from the
// stream's current distribution state and message count. Rules are
// evaluated in the order given; the first match wins.
func ComputePriority(state chatmodel.StreamDistributionState, messageCount int) chatmodel.Priority {
	switch {
	case state.ConsecutiveFailures >= 3:
		return chatmodel.PriorityBackground
	case state.TotalDistributions > 50 && messageCount < 2:
		return chatmodel.PriorityLow
	case state.Energy >= 0.8 && messageCount >= 3:
		return chatmodel.PriorityCritical
	case state.Energy >= 0.6 || messageCount >= 5:
		return chatmodel.PriorityHigh
	case state.Energy >= 0.3 || messageCount >= 2:
		return chatmodel.PriorityNormal
	default:
		return chatmodel.PriorityLow
	}
}
