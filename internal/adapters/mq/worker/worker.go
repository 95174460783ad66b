// Package worker runs queued jobs against the service.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/kudos/internal/domain/model"
	"github.com/okian/kudos/pkg/logger"
	"github.com/okian/kudos/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Runner executes one job.
type Runner interface {
	RunJob(ctx context.Context, j model.Job) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue() <-chan model.Job
}

// InMemoryWorker consumes jobs until the queue closes or it is shut down.
type InMemoryWorker struct {
	queue  Queue
	runner Runner
	name   string

	shutdown chan struct{}
	done     chan struct{}
	once     sync.Once

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(queue Queue, runner Runner, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		runner:   runner,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			w.process(ctx, j)
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.once.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, j model.Job) {
	metrics.IncWorkerActive()
	defer metrics.DecWorkerActive()

	start := time.Now()
	err := w.runner.RunJob(ctx, j)
	latency := float64(time.Since(start).Milliseconds())

	if err != nil {
		metrics.RecordJobRun(string(j.Kind), "error", latency)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", string(j.Kind))
		w.logger.Error(ctx, "job failed",
			logger.String("job_id", j.ID),
			logger.String("kind", string(j.Kind)),
			logger.Error(err),
		)
		return
	}
	metrics.RecordJobRun(string(j.Kind), "ok", latency)
	w.logger.Debug(ctx, "job done",
		logger.String("job_id", j.ID),
		logger.String("kind", string(j.Kind)),
		logger.Duration("took", time.Since(start)),
	)
}

// Pool manages several workers on one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers (at least one).
func NewPool(workerCount int, queue Queue, runner Runner) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		name := "worker-" + strconv.Itoa(i)
		p.workers[i] = NewInMemoryWorker(queue, runner, WithName(name), WithLogger(p.logger.Named(name)))
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue when it can, then waits for every worker.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
