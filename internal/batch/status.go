package batch

import (
	"sync"
	"sync/atomic"
	"time"
)

// Progress is a snapshot of a run's counters.
type Progress struct {
	Rows    int64 `json:"rows"`
	RowsRun int64 `json:"rows_run"`
	Points  int64 `json:"points"`
	Failed  int64 `json:"failed"`
	Running bool  `json:"running"`
}

type counters struct {
	rows    atomic.Int64
	rowsRun atomic.Int64
	points  atomic.Int64
	failed  atomic.Int64
	running atomic.Bool
}

func (c *counters) snapshot() Progress {
	return Progress{
		Rows:    c.rows.Load(),
		RowsRun: c.rowsRun.Load(),
		Points:  c.points.Load(),
		Failed:  c.failed.Load(),
		Running: c.running.Load(),
	}
}

// Status is one message for external pollers.
type Status struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// StatusQueue is a bounded queue that drops its oldest entry when full.
// It is safe for concurrent use.
type StatusQueue struct {
	mu      sync.Mutex
	items   []Status
	head    int
	size    int
	dropped int64
}

// NewStatusQueue returns a queue holding at most capacity entries.
func NewStatusQueue(capacity int) *StatusQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &StatusQueue{items: make([]Status, capacity)}
}

// Push appends s, evicting the oldest entry when the queue is full.
func (q *StatusQueue) Push(s Status) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if s.Time.IsZero() {
		s.Time = time.Now()
	}
	if q.size == len(q.items) {
		q.items[q.head] = s
		q.head = (q.head + 1) % len(q.items)
		q.dropped++
		return
	}
	q.items[(q.head+q.size)%len(q.items)] = s
	q.size++
}

// Drain removes and returns every queued entry, oldest first.
func (q *StatusQueue) Drain() []Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Status, q.size)
	for i := range out {
		out[i] = q.items[(q.head+i)%len(q.items)]
	}
	q.head, q.size = 0, 0
	return out
}

// Len returns the number of queued entries.
func (q *StatusQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Dropped returns how many entries were evicted.
func (q *StatusQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
