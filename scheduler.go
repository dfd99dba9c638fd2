package xloop

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// task is a scheduled callable with an optional fixed period.
type task struct {
	id     uint64
	fireAt time.Time
	period time.Duration // 0 means one-shot
	action Action

	// cancelled is set by cancel requests and observed by the dispatcher
	// before invocation, covering the cancel-races-popDue window.
	cancelled atomic.Bool

	index int // heap slot, maintained by taskHeap
}

// taskHeap orders tasks by next fire instant.
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool { return h[i].fireAt.Before(h[j].fireAt) }

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// timerHeap is the scheduled-task collection: a min-heap keyed by fire
// instant with an id side-index for cancellation.
type timerHeap struct {
	mu    sync.Mutex
	tasks taskHeap
	byID  map[uint64]*task
}

func newTimerHeap() *timerHeap {
	return &timerHeap{byID: make(map[uint64]*task)}
}

func (h *timerHeap) schedule(t *task) {
	h.mu.Lock()
	heap.Push(&h.tasks, t)
	h.byID[t.id] = t
	h.mu.Unlock()
}

// cancel removes the task with the given id and reports whether it existed.
// A one-shot that already fired is gone from the index and yields false.
func (h *timerHeap) cancel(id uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.byID[id]
	if !ok {
		return false
	}
	t.cancelled.Store(true)
	heap.Remove(&h.tasks, t.index)
	delete(h.byID, id)
	return true
}

// peekNextFire returns the smallest fire instant among scheduled tasks.
func (h *timerHeap) peekNextFire() (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.tasks) == 0 {
		return time.Time{}, false
	}
	return h.tasks[0].fireAt, true
}

// popDue removes every task due at now and returns them in fire order.
// Periodic tasks are reinserted at the prior scheduled instant plus the
// period; a task more than one period late catches up to now+period instead
// of bursting through the missed fires.
func (h *timerHeap) popDue(now time.Time) []*task {
	h.mu.Lock()
	defer h.mu.Unlock()

	var due []*task
	for len(h.tasks) > 0 {
		t := h.tasks[0]
		if t.fireAt.After(now) {
			break
		}
		heap.Pop(&h.tasks)
		if t.cancelled.Load() {
			delete(h.byID, t.id)
			continue
		}
		due = append(due, t)
		if t.period > 0 {
			next := t.fireAt.Add(t.period)
			if !next.After(now) {
				next = now.Add(t.period)
			}
			t.fireAt = next
			heap.Push(&h.tasks, t)
		} else {
			delete(h.byID, t.id)
		}
	}
	return due
}

func (h *timerHeap) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tasks)
}

// clear discards all scheduled tasks without invoking their actions.
func (h *timerHeap) clear() {
	h.mu.Lock()
	h.tasks = nil
	h.byID = make(map[uint64]*task)
	h.mu.Unlock()
}
