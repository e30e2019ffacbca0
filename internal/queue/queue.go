package queue

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/andresmejia3/facegate/internal/types"
)

// Job is one face waiting for verification.
type Job struct {
	Detection  types.Detection
	Seq        uint64
	EnqueuedAt time.Time
}

// Queue decouples the capture loop from the recognition workers.
//
// Enqueue never blocks: when the buffer is full the incoming job is dropped
// (drop-newest). The face is still visible next cycle, so it will simply be
// submitted again.
type Queue struct {
	mu      sync.RWMutex
	ch      chan Job
	closed  bool
	seq     atomic.Uint64
	dropped atomic.Uint64
}

// New creates a queue holding at most capacity pending jobs.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan Job, capacity)}
}

// TryEnqueue submits d without blocking. It returns false when the job was
// dropped, either because the queue is full or because it has been closed.
func (q *Queue) TryEnqueue(d types.Detection) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}

	job := Job{Detection: d, Seq: q.seq.Add(1), EnqueuedAt: time.Now()}
	select {
	case q.ch <- job:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Jobs is the receive side for workers. It is closed by Close.
func (q *Queue) Jobs() <-chan Job {
	return q.ch
}

// Close stops accepting jobs. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Dropped returns how many jobs were rejected because the queue was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Len returns the number of jobs currently buffered.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
