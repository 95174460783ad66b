package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/kudos/internal/adapters/repository"
	"github.com/okian/kudos/internal/domain/ledger"
	"github.com/okian/kudos/internal/domain/model"
	"github.com/okian/kudos/internal/domain/task"
	"github.com/okian/kudos/pkg/logger"
	"github.com/okian/kudos/pkg/metrics"
	"github.com/shopspring/decimal"
)

// NewTask is the input of CreateTask.
type NewTask struct {
	EventID       string
	Title         string
	Status        model.TaskStatus
	DueDate       *time.Time
	BasePoints    int64
	PenaltyPoints int64
	CostRelated   bool
	Budget        decimal.Decimal
	Assignees     []string
}

// CreateTask stores a task. A task created completed is awarded at once and
// one created past due starts overdue with its penalty.
func (s *Service) CreateTask(ctx context.Context, in NewTask) (model.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return model.Task{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.Budget.IsNegative() || !wholeCents(in.Budget) {
		return model.Task{}, fmt.Errorf("%w: budget %s must be a non-negative amount in cents", ErrValidation, in.Budget)
	}
	now := s.now()

	var out model.Task
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		if _, err := tx.GetEvent(ctx, in.EventID); err != nil {
			return err
		}
		for _, pid := range in.Assignees {
			if _, err := tx.GetProfile(ctx, pid); err != nil {
				return err
			}
		}

		t := model.Task{
			EventID:       in.EventID,
			Title:         strings.TrimSpace(in.Title),
			Status:        in.Status,
			DueDate:       in.DueDate,
			BasePoints:    in.BasePoints,
			PenaltyPoints: in.PenaltyPoints,
			CostRelated:   in.CostRelated,
			Budget:        in.Budget,
			Assignees:     in.Assignees,
		}
		tr, err := task.Initial(t, now)
		if err != nil {
			return err
		}
		tr.ApplyTo(&t)

		if t, err = tx.CreateTask(ctx, t); err != nil {
			return err
		}
		if err := s.applyTaskEffect(ctx, tx, t, tr); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	s.logger.Info(ctx, "task created",
		logger.String("task_id", out.ID),
		logger.String("status", string(out.Status)),
	)
	return out, nil
}

// GetTask loads one task.
func (s *Service) GetTask(ctx context.Context, id string) (model.Task, error) {
	var out model.Task
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		out, err = tx.GetTask(ctx, id)
		return err
	})
	return out, err
}

// UpdateTaskStatus is the user facing status change: only in_progress and
// completed may be requested.
func (s *Service) UpdateTaskStatus(ctx context.Context, id, status string) (model.Task, error) {
	target, err := task.ParseUserStatus(status)
	if err != nil {
		return model.Task{}, err
	}
	return s.transitionTask(ctx, id, target, s.now(), nil)
}

// ReopenTask moves a completed task back to pending or in_progress and
// retracts its award.
func (s *Service) ReopenTask(ctx context.Context, id, status string) (model.Task, error) {
	target, err := task.ParseStatus(status)
	if err != nil {
		return model.Task{}, err
	}
	if target != model.TaskPending && target != model.TaskInProgress {
		return model.Task{}, fmt.Errorf("%w: a task reopens to pending or in_progress", task.ErrInvalidTransition)
	}
	return s.transitionTask(ctx, id, target, s.now(), func(t model.Task) error {
		if t.Status != model.TaskCompleted {
			return fmt.Errorf("%w: task %s is %s, not completed", task.ErrInvalidTransition, t.ID, t.Status)
		}
		return nil
	})
}

// SetTaskExpenses records what a cost-bearing task actually cost.
func (s *Service) SetTaskExpenses(ctx context.Context, id string, amount decimal.Decimal) (model.Task, error) {
	if amount.IsNegative() || !wholeCents(amount) {
		return model.Task{}, fmt.Errorf("%w: expenses %s must be a non-negative amount in cents", ErrValidation, amount)
	}
	var out model.Task
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		t, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if !t.CostRelated {
			return fmt.Errorf("%w: task %s is not cost related", ErrValidation, id)
		}
		t.ActualExpenses = amount
		if err := tx.UpdateTask(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// transitionTask runs one state machine transition and its ledger effect in
// a single transaction. guard, when set, vets the loaded task first.
func (s *Service) transitionTask(ctx context.Context, id string, target model.TaskStatus, now time.Time, guard func(model.Task) error) (model.Task, error) {
	var out model.Task
	err := s.store.WithTx(ctx, func(tx *repository.Tx) error {
		t, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(t); err != nil {
				return err
			}
		}
		out, err = s.applyTransition(ctx, tx, t, target, now)
		return err
	})
	return out, err
}

func (s *Service) applyTransition(ctx context.Context, tx *repository.Tx, t model.Task, target model.TaskStatus, now time.Time) (model.Task, error) {
	tr, err := task.Apply(t, target, now)
	if err != nil {
		return model.Task{}, err
	}
	if !tr.Changed() {
		return t, nil
	}
	tr.ApplyTo(&t)
	if err := tx.UpdateTask(ctx, t); err != nil {
		return model.Task{}, err
	}
	if err := s.applyTaskEffect(ctx, tx, t, tr); err != nil {
		return model.Task{}, err
	}
	s.logger.Debug(ctx, "task transition",
		logger.String("task_id", t.ID),
		logger.String("from", string(tr.From)),
		logger.String("to", string(tr.To)),
		logger.Stringer("effect", tr.Effect),
	)
	return t, nil
}

// applyTaskEffect writes the task ledger entries a transition calls for.
func (s *Service) applyTaskEffect(ctx context.Context, tx *repository.Tx, t model.Task, tr task.Transition) error {
	from := string(tr.From)
	if from == "" {
		from = "new"
	}
	metrics.RecordTaskTransition(from, string(tr.To))

	switch tr.Effect {
	case task.EffectAward:
		for _, pid := range t.Assignees {
			if _, err := tx.RecordOrUpdate(ctx, ledger.Record{
				Category:  ledger.CategoryTask,
				SourceID:  t.ID,
				ProfileID: pid,
				Kind:      ledger.KindAward,
				Points:    t.BasePoints,
				Note:      t.Title,
			}); err != nil {
				return err
			}
		}
	case task.EffectRetractAward:
		if _, err := tx.Retract(ctx, ledger.Key{
			Category: ledger.CategoryTask, SourceID: t.ID, Kind: ledger.KindAward,
		}); err != nil {
			return err
		}
	case task.EffectPenalize:
		for _, pid := range t.Assignees {
			if _, err := tx.RecordOrUpdate(ctx, ledger.Record{
				Category:  ledger.CategoryTask,
				SourceID:  t.ID,
				ProfileID: pid,
				Kind:      ledger.KindPenalty,
				Points:    t.PenaltyPoints,
				Note:      t.Title + " overdue",
			}); err != nil {
				return err
			}
		}
	case task.EffectNone:
	}
	return nil
}

// wholeCents reports whether d has no fraction of a cent.
func wholeCents(d decimal.Decimal) bool { return d.Equal(d.Round(2)) }
