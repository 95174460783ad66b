// Package queue is the bounded in-memory queue of job runs.
package queue

import (
	"context"
	"sync"

	"github.com/okian/kudos/internal/domain/model"
	"github.com/okian/kudos/pkg/metrics"
)

const defaultCapacity = 128

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. It fails with ErrFull or ErrClosed instead of blocking.
	Enqueue(ctx context.Context, j model.Job) error

	// Dequeue returns the channel workers receive jobs from. It is closed
	// when the queue is closed and drained.
	Dequeue() <-chan model.Job

	Len() int
	Cap() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	jobs     chan model.Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan model.Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j model.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		return err
	}

	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "full")
		return ErrFull
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue) Dequeue() <-chan model.Job {
	return q.jobs
}

// Len returns the number of queued jobs.
func (q *InMemoryQueue) Len() int {
	n := len(q.jobs)
	metrics.UpdateQueueSize(n)
	return n
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close stops accepting jobs. Queued jobs stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
