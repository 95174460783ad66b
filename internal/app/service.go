// Package service is the application layer of the score ledger. Every
// mutating operation runs in one store transaction and calls the ledger
// writer directly, so the path from an entity change to a profile recompute
// is visible in code.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/kudos/internal/adapters/mq/queue"
	"github.com/okian/kudos/internal/adapters/mq/worker"
	"github.com/okian/kudos/internal/adapters/repository"
	"github.com/okian/kudos/internal/domain/dedupe"
	"github.com/okian/kudos/internal/domain/model"
	"github.com/okian/kudos/internal/domain/scoring"
	"github.com/okian/kudos/pkg/logger"
	"github.com/okian/kudos/pkg/metrics"
)

// Service implements the operations exposed by the HTTP API and run by the
// job workers.
type Service struct {
	mu sync.RWMutex

	store *repository.Store
	rules atomic.Pointer[scoring.Rules]

	deduper dedupe.Deduper
	queue   queue.Queue
	pool    *worker.Pool

	workerCount int
	queueSize   int
	dedupeSize  int
	dedupeTTL   time.Duration

	now     func() time.Time
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of job workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many job run ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDedupeTTL sets how long a job run id is remembered.
func WithDedupeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.dedupeTTL = ttl
		}
	}
}

// WithRules sets the initial point rules.
func WithRules(r *scoring.Rules) Option {
	return func(s *Service) {
		if r != nil {
			s.rules.Store(r)
		}
	}
}

// WithClock sets the clock of the service.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service on store.
func New(store *repository.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		workerCount: runtime.NumCPU(),
		queueSize:   128,
		dedupeSize:  10_000,
		dedupeTTL:   24 * time.Hour,
		now:         time.Now,
	}
	s.rules.Store(scoring.NewRules())
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Rules returns the point rules in force. Operations capture it once.
func (s *Service) Rules() *scoring.Rules { return s.rules.Load() }

// SetRules swaps the point rules. Changes are not retroactive.
func (s *Service) SetRules(r *scoring.Rules) {
	if r == nil {
		return
	}
	s.rules.Store(r)
	s.logger.Info(context.Background(), "point rules replaced")
}

// Start creates the job queue and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting kudos service...")

	s.deduper = dedupe.NewMemory(
		dedupe.WithMaxSize(s.dedupeSize),
		dedupe.WithTTL(s.dedupeTTL),
	)
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "kudos service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the job queue and stops the workers.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping kudos service...")

	err := s.pool.Shutdown(ctx)
	s.cancel()
	s.started = false
	s.logger.Info(ctx, "kudos service stopped")
	return err
}

// SubmitJob queues a job run. It reports false, without error, when the
// run id was already submitted. An empty id is generated.
func (s *Service) SubmitJob(ctx context.Context, j model.Job) (model.Job, bool, error) {
	if _, err := model.ParseJobKind(string(j.Kind)); err != nil {
		return model.Job{}, false, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if j.ID == "" {
		j.ID = uuid.NewString()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.Job{}, false, ErrNotStarted
	}

	if s.deduper.SeenAndRecord(ctx, j.ID) {
		metrics.RecordJobDuplicate()
		s.logger.Debug(ctx, "duplicate job run skipped", logger.String("job_id", j.ID))
		return j, false, nil
	}
	if err := s.queue.Enqueue(ctx, j); err != nil {
		s.deduper.Forget(ctx, j.ID)
		metrics.RecordQueueEnqueueError()
		return model.Job{}, false, err
	}
	metrics.RecordQueueEnqueue()
	metrics.UpdateQueueSize(s.queue.Len())
	return j, true, nil
}

// RunJob executes a job run synchronously. Workers call it; the external
// scheduler may too.
func (s *Service) RunJob(ctx context.Context, j model.Job) error {
	at := j.At
	if at.IsZero() {
		at = s.now()
	}

	var (
		n   int
		err error
	)
	switch j.Kind {
	case model.JobOverdueTasks:
		n, err = s.CheckOverdueTasks(ctx, at)
	case model.JobTaskReminders:
		n, err = s.MarkTaskReminders(ctx, at)
	case model.JobScoreSnapshots:
		n, err = s.StoreScoreSnapshots(ctx, at)
	case model.JobEventStatus:
		n, err = s.UpdateEventStatuses(ctx, at)
	case model.JobContributionStatus:
		n, err = s.UpdateContributionStatuses(ctx, at)
	case model.JobGiftSearchResults:
		n, err = s.FinalizeDueGiftSearches(ctx, at)
	default:
		return fmt.Errorf("%w: job kind %q", ErrValidation, j.Kind)
	}
	if err != nil {
		return fmt.Errorf("job %s (%s): %w", j.ID, j.Kind, err)
	}
	s.logger.Info(ctx, "job finished",
		logger.String("job_id", j.ID),
		logger.String("kind", string(j.Kind)),
		logger.Int("changed", n),
	)
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.queue.Len()
		stats["queueLength"] = queueLen
		stats["jobIdsTracked"] = s.deduper.Size()
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateQueueCapacity(s.queue.Cap())
		metrics.UpdateWorkerCount(s.workerCount)
	}

	var profiles int
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		profiles, err = tx.CountProfiles(ctx)
		return err
	})
	if err != nil {
		s.logger.Warn(ctx, "count profiles failed", logger.Error(err))
	} else {
		stats["profiles"] = profiles
		metrics.UpdateProfilesTotal(profiles)
	}
	return stats
}
