package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/kudos/pkg/logger"
)

// Run executes the complete load run: profiles, then every event end to end,
// then the audit.
func Run(ctx context.Context, cfg *Config) (*Report, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("loadtest")
	c := newClient(cfg.BaseURL, cfg.Timeout, stats)

	if cfg.Seed == 0 {
		cfg.Seed = uint64(stats.StartTime.UnixNano()) //nolint:gosec // seed only
	}
	log.Info(ctx, "starting ledger load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("profiles", cfg.Profiles),
		logger.Int("events", cfg.Events),
		logger.Int("tasksPerEvent", cfg.TasksPerEvent),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", cfg.Seed))

	// Step 1: Check service health
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate the workload
	plan, err := Generate(cfg, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("workload generation failed: %w", err)
	}

	// Step 3: Create profiles
	ids := make([]string, len(plan.Names))
	if err := fanOut(ctx, cfg, log, "profiles", len(ids), func(ctx context.Context, i int) error {
		var p idResponse
		if err := c.do(ctx, http.MethodPost, "/profiles", map[string]string{"name": plan.Names[i]}, &p); err != nil {
			return err
		}
		ids[i] = p.ID
		stats.ProfilesCreated.Add(1)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("profile creation failed: %w", err)
	}

	// Step 4: Run every event end to end
	if err := fanOut(ctx, cfg, log, "events", len(plan.Events), func(ctx context.Context, i int) error {
		return runEvent(ctx, c, stats, ids, plan.Events[i])
	}); err != nil {
		return nil, fmt.Errorf("event run failed: %w", err)
	}

	// Step 5: Advance event statuses once everything is confirmed
	job := map[string]string{"job_id": fmt.Sprintf("loadtest-%d", cfg.Seed), "kind": "event_status"}
	if err := c.do(ctx, http.MethodPost, "/jobs", job, nil); err != nil {
		log.Warn(ctx, "event status job not submitted", logger.Error(err))
	}

	// Step 6: Audit profiles and the leaderboard
	report := &Report{Stats: stats}
	if err := verify(ctx, cfg, log, c, plan, ids, report); err != nil {
		return nil, fmt.Errorf("verification failed: %w", err)
	}

	stats.Duration = time.Since(stats.StartTime)
	log.Info(ctx, "load run completed",
		logger.Int64("requests", stats.Requests.Load()),
		logger.Int64("failed", stats.Failed.Load()),
		logger.Int("mismatches", len(report.Mismatches)),
		logger.Duration("duration", stats.Duration))
	return report, nil
}

// runEvent creates one event with its participants and tasks, completes
// every task, bills the costs and settles every transfer.
func runEvent(ctx context.Context, c *client, stats *Stats, ids []string, e EventPlan) error {
	var ev idResponse
	if err := c.do(ctx, http.MethodPost, "/events", map[string]string{
		"title": e.Title, "date": e.Date, "start_time": "18:00", "location": "office",
	}, &ev); err != nil {
		return err
	}

	if err := addParticipant(ctx, c, ev.ID, ids[e.Organizer], "organizer"); err != nil {
		return err
	}
	honorees := make([]string, len(e.Attendees))
	for i, a := range e.Attendees {
		if err := addParticipant(ctx, c, ev.ID, ids[a], "attendee"); err != nil {
			return err
		}
		honorees[i] = ids[a]
	}

	payers := make(map[string]string)
	for _, t := range e.Tasks {
		taskID, err := runTask(ctx, c, ev.ID, ids, t)
		if err != nil {
			return err
		}
		stats.TasksCompleted.Add(1)
		if t.CostRelated() {
			payers[taskID] = ids[t.Payer]
		}
	}
	if len(payers) == 0 {
		return nil
	}

	var bill billResponse
	if err := c.do(ctx, http.MethodPost, "/events/"+ev.ID+"/bill", map[string]any{
		"payers": payers, "honorees": honorees,
	}, &bill); err != nil {
		return err
	}
	stats.EventsBilled.Add(1)

	for _, tr := range bill.Transactions {
		if tr.Status == "confirmed" {
			continue
		}
		if err := c.do(ctx, http.MethodPost, "/transactions/"+tr.ID+"/paid", nil, nil); err != nil {
			return err
		}
		if err := c.do(ctx, http.MethodPost, "/transactions/"+tr.ID+"/confirm", nil, nil); err != nil {
			return err
		}
		stats.TransactionsConfirmed.Add(1)
	}
	return nil
}

func addParticipant(ctx context.Context, c *client, eventID, profileID, role string) error {
	return c.do(ctx, http.MethodPost, "/events/"+eventID+"/participants",
		map[string]string{"profile_id": profileID, "role": role}, nil)
}

func runTask(ctx context.Context, c *client, eventID string, ids []string, t TaskPlan) (string, error) {
	assignees := make([]string, len(t.Assignees))
	for i, a := range t.Assignees {
		assignees[i] = ids[a]
	}
	body := map[string]any{
		"event_id":     eventID,
		"title":        t.Title,
		"base_points":  t.BasePoints,
		"cost_related": t.CostRelated(),
		"budget":       t.Budget,
		"assignees":    assignees,
	}
	var task idResponse
	if err := c.do(ctx, http.MethodPost, "/tasks", body, &task); err != nil {
		return "", err
	}
	if err := c.do(ctx, http.MethodPost, "/tasks/"+task.ID+"/status", map[string]string{"status": "in_progress"}, nil); err != nil {
		return "", err
	}
	if err := c.do(ctx, http.MethodPost, "/tasks/"+task.ID+"/status", map[string]string{"status": "completed"}, nil); err != nil {
		return "", err
	}
	if t.CostRelated() {
		if err := c.do(ctx, http.MethodPost, "/tasks/"+task.ID+"/expenses", map[string]decimal.Decimal{"amount": t.Expenses}, nil); err != nil {
			return "", err
		}
	}
	return task.ID, nil
}

// fanOut runs fn for every index in [0, n) on cfg.Workers goroutines fed
// through a channel. The first error stops the feed; the rest are joined.
func fanOut(ctx context.Context, cfg *Config, log logger.Logger, stage string, n int, fn func(context.Context, int) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		done     atomic.Int64
		mu       sync.Mutex
		errs     []error
		lastMu   sync.Mutex
		lastSeen = time.Now()
	)

	indexChan := make(chan int, cfg.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexChan {
				if err := fn(ctx, i); err != nil {
					if cfg.Verbose {
						log.Warn(ctx, "request failed", logger.String("stage", stage), logger.Int("index", i), logger.Error(err))
					}
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
					cancel()
					continue
				}
				total := done.Add(1)

				lastMu.Lock()
				if time.Since(lastSeen) >= progressInterval {
					lastSeen = time.Now()
					log.Info(ctx, "progress", logger.String("stage", stage), logger.Int64("done", total), logger.Int("of", n))
				}
				lastMu.Unlock()
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if err := ctx.Err(); err != nil && done.Load() < int64(n) {
		return fmt.Errorf("%s interrupted: %w", stage, err)
	}
	log.Info(ctx, "stage completed", logger.String("stage", stage), logger.Int("count", n))
	return nil
}
