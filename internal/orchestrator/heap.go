package orchestrator

import (
	"container/heap"

	"storyforge/internal/queue"
)

// pendingEntry pairs a task with a monotonic sequence number so equal
// priorities dispatch in submission order.
type pendingEntry struct {
	task *queue.Task
	seq  uint64
}

type pendingHeap []pendingEntry

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) {
	*h = append(*h, x.(pendingEntry))
}

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = pendingEntry{}
	*h = old[:n-1]
	return entry
}

var _ heap.Interface = (*pendingHeap)(nil)
