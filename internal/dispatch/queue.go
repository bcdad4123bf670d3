package dispatch

import (
	"container/heap"

	"mindloop/internal/chatmodel"
)

// taskHeap is a container/heap implementation ordering DispatchTasks by
// chatmodel.DispatchTask.Less (priority desc, energy desc, age asc).
type taskHeap []chatmodel.DispatchTask

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].Less(h[j]) }
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)         { *h = append(*h, x.(chatmodel.DispatchTask)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// priorityQueue wraps taskHeap with the heap package's invariants
// maintained on every mutation.
type priorityQueue struct {
	h taskHeap
}

func newPriorityQueue() *priorityQueue {
	pq := &priorityQueue{}
	heap.Init(&pq.h)
	return pq
}

func (pq *priorityQueue) Push(t chatmodel.DispatchTask) {
	heap.Push(&pq.h, t)
}

func (pq *priorityQueue) Pop() (chatmodel.DispatchTask, bool) {
	if pq.h.Len() == 0 {
		return chatmodel.DispatchTask{}, false
	}
	return heap.Pop(&pq.h).(chatmodel.DispatchTask), true
}

func (pq *priorityQueue) Len() int { return pq.h.Len() }
