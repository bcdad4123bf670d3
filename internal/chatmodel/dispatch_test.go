package chatmodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDispatchTask_Less(t *testing.T) {
	now := time.Now()
	high := DispatchTask{Priority: PriorityHigh, CreatedAt: now}
	low := DispatchTask{Priority: PriorityLow, CreatedAt: now}
	require.True(t, high.Less(low))
	require.False(t, low.Less(high))

	sameHighEnergy := DispatchTask{Priority: PriorityHigh, Energy: 0.9, CreatedAt: now}
	sameHighLowEnergy := DispatchTask{Priority: PriorityHigh, Energy: 0.1, CreatedAt: now}
	require.True(t, sameHighEnergy.Less(sameHighLowEnergy))

	older := DispatchTask{Priority: PriorityHigh, Energy: 0.5, CreatedAt: now}
	newer := DispatchTask{Priority: PriorityHigh, Energy: 0.5, CreatedAt: now.Add(time.Minute)}
	require.True(t, older.Less(newer))
	require.False(t, newer.Less(older))
}

func TestStreamDistributionState_RecordSuccess(t *testing.T) {
	s := StreamDistributionState{ConsecutiveFailures: 2}
	s.RecordSuccess(10 * time.Millisecond)
	require.Equal(t, 1, s.TotalDistributions)
	require.Equal(t, 0, s.ConsecutiveFailures)
	require.Equal(t, 10*time.Millisecond, s.AvgDistributionTime)

	s.RecordSuccess(20 * time.Millisecond)
	require.Equal(t, 2, s.TotalDistributions)
	require.Equal(t, 15*time.Millisecond, s.AvgDistributionTime)
}

func TestStreamDistributionState_RecordFailure_Deactivates(t *testing.T) {
	s := StreamDistributionState{IsActive: true}
	s.RecordFailure(3)
	s.RecordFailure(3)
	require.True(t, s.IsActive)
	s.RecordFailure(3)
	require.False(t, s.IsActive)
	require.Equal(t, 3, s.TotalFailures)
	require.Equal(t, 3, s.ConsecutiveFailures)
}
