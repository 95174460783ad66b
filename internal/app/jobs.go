package service

import (
	"context"
	"errors"
	"time"

	"github.com/okian/kudos/internal/adapters/repository"
	"github.com/okian/kudos/internal/domain/model"
	"github.com/okian/kudos/internal/domain/task"
	"github.com/okian/kudos/pkg/logger"
	"github.com/okian/kudos/pkg/metrics"
)

// CheckOverdueTasks moves every past-due task that is not completed to
// overdue, charging each penalty once. Each task commits on its own.
func (s *Service) CheckOverdueTasks(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.taskIDs(ctx, repository.TaskFilter{
		Statuses:  []model.TaskStatus{model.TaskPending, model.TaskInProgress, model.TaskReminder},
		DueBefore: &now,
	})
	if err != nil {
		return 0, err
	}
	return s.eachTask(ctx, "overdue", candidates, func(t model.Task) bool {
		return task.CanBecomeOverdue(t, now)
	}, model.TaskOverdue, now)
}

// MarkTaskReminders flags tasks due within [now+lead, now+2*lead) as
// reminded, lead being the configured reminder lead time.
func (s *Service) MarkTaskReminders(ctx context.Context, now time.Time) (int, error) {
	lead := s.Rules().ReminderLeadTime()
	from, before := now.Add(lead), now.Add(2*lead)
	candidates, err := s.taskIDs(ctx, repository.TaskFilter{
		Statuses:  []model.TaskStatus{model.TaskPending, model.TaskInProgress},
		DueFrom:   &from,
		DueBefore: &before,
	})
	if err != nil {
		return 0, err
	}
	return s.eachTask(ctx, "reminder", candidates, func(t model.Task) bool {
		return t.Status == model.TaskPending || t.Status == model.TaskInProgress
	}, model.TaskReminder, now)
}

func (s *Service) taskIDs(ctx context.Context, f repository.TaskFilter) ([]string, error) {
	var ids []string
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		tasks, err := tx.ListTasks(ctx, f)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			ids = append(ids, t.ID)
		}
		return nil
	})
	return ids, err
}

// eachTask re-reads every candidate in its own transaction and moves it to
// target when eligible still holds.
func (s *Service) eachTask(ctx context.Context, job string, ids []string, eligible func(model.Task) bool, target model.TaskStatus, now time.Time) (int, error) {
	var (
		changed int
		errs    []error
	)
	for _, id := range ids {
		moved := false
		err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
			t, err := tx.GetTask(ctx, id)
			if err != nil {
				return err
			}
			if !eligible(t) {
				return nil
			}
			if _, err := s.applyTransition(ctx, tx, t, target, now); err != nil {
				return err
			}
			moved = true
			return nil
		})
		if err != nil {
			metrics.RecordErrorByComponent("jobs", job)
			s.logger.Error(ctx, "task job failed",
				logger.String("job", job),
				logger.String("task_id", id),
				logger.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		if moved {
			changed++
		}
	}
	return changed, errors.Join(errs...)
}

// StoreScoreSnapshots writes today's snapshot of every profile and copies
// the snapshot taken one rank change interval ago into the past scores.
func (s *Service) StoreScoreSnapshots(ctx context.Context, now time.Time) (int, error) {
	today := model.DateOf(now)
	days := int(s.Rules().RankChangeInterval() / (24 * time.Hour))
	past := today.AddDate(0, 0, -days)

	var n int
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		profiles, err := tx.ListProfiles(ctx, true)
		if err != nil {
			return err
		}
		for _, p := range profiles {
			if err := tx.UpsertSnapshot(ctx, model.Snapshot{ProfileID: p.ID, Date: today, Scores: p.Scores}); err != nil {
				return err
			}
			old, err := tx.GetSnapshot(ctx, p.ID, past)
			switch {
			case errors.Is(err, repository.ErrNotFound):
			case err != nil:
				return err
			default:
				if err := tx.SetPastScores(ctx, p.ID, old.Scores); err != nil {
					return err
				}
			}
			n++
		}
		return nil
	})
	return n, err
}

// UpdateEventStatuses advances events with the calendar: planned events with
// a full schedule become active, active events whose date has passed become
// completed, and billed events whose transactions are all confirmed become
// paid.
func (s *Service) UpdateEventStatuses(ctx context.Context, now time.Time) (int, error) {
	today := model.DateOf(now)

	var n int
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		events, err := tx.ListEvents(ctx, model.EventPlanned, model.EventActive, model.EventBilled)
		if err != nil {
			return err
		}
		for _, e := range events {
			next := e.Status
			if next == model.EventPlanned && e.Scheduled() {
				next = model.EventActive
			}
			if next == model.EventActive && e.Date != nil && e.Date.Before(today) {
				next = model.EventCompleted
			}
			if next == model.EventBilled {
				settled, err := allConfirmed(ctx, tx, e.ID)
				if err != nil {
					return err
				}
				if settled {
					next = model.EventPaid
				}
			}
			if next == e.Status {
				continue
			}
			if err := tx.SetEventStatus(ctx, e.ID, next); err != nil {
				return err
			}
			s.logger.Debug(ctx, "event status advanced",
				logger.String("event_id", e.ID),
				logger.String("from", string(e.Status)),
				logger.String("to", string(next)),
			)
			n++
		}
		return nil
	})
	return n, err
}

func allConfirmed(ctx context.Context, tx *repository.Tx, eventID string) (bool, error) {
	trs, err := tx.ListTransactions(ctx, repository.TransactionFilter{EventID: eventID})
	if err != nil {
		return false, err
	}
	if len(trs) == 0 {
		return false, nil
	}
	for _, tr := range trs {
		if tr.Status != model.TransactionConfirmed {
			return false, nil
		}
	}
	return true, nil
}

// UpdateContributionStatuses closes every open contribution pool whose
// deadline has passed, billing its contributors.
func (s *Service) UpdateContributionStatuses(ctx context.Context, now time.Time) (int, error) {
	rules := s.Rules()

	var n int
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		pools, err := tx.ListGiftContributions(ctx, model.ContributionOpen, &now)
		if err != nil {
			return err
		}
		for _, pool := range pools {
			if err := s.setContributionStatus(ctx, tx, rules, pool.ID, model.ContributionClosed, now); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}
