// Package task is the task lifecycle state machine.
//
// Apply is pure: it validates a status change and reports how the points
// accumulator and the task ledger must change. Callers persist the result.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/kudos/internal/domain/model"
)

// Effect is the ledger action a transition requires.
type Effect int

const (
	EffectNone Effect = iota
	// EffectAward records a base_points award for every assignee.
	EffectAward
	// EffectRetractAward removes the award entries of the task.
	EffectRetractAward
	// EffectPenalize records the irreversible overdue penalty for every assignee.
	EffectPenalize
)

func (e Effect) String() string {
	switch e {
	case EffectAward:
		return "award"
	case EffectRetractAward:
		return "retract_award"
	case EffectPenalize:
		return "penalize"
	}
	return "none"
}

// Transition is the outcome of Apply.
type Transition struct {
	From   model.TaskStatus
	To     model.TaskStatus
	Delta  int64
	Effect Effect

	// CompletedAt is set when entering completed and cleared when leaving it.
	CompletedAt *time.Time
	// PenaltyApplied is true when this transition charges the penalty.
	PenaltyApplied bool
}

// Changed reports whether the status moves.
func (tr Transition) Changed() bool { return tr.From != tr.To }

// ApplyTo writes the transition into t.
func (tr Transition) ApplyTo(t *model.Task) {
	t.Status = tr.To
	t.PointsAwarded += tr.Delta
	if tr.PenaltyApplied {
		t.PenaltyApplied = true
	}
	switch {
	case tr.To == model.TaskCompleted && tr.From != model.TaskCompleted:
		t.CompletedAt = tr.CompletedAt
	case tr.From == model.TaskCompleted && tr.To != model.TaskCompleted:
		t.CompletedAt = nil
	}
}

var allowed = map[model.TaskStatus][]model.TaskStatus{ //nolint:gochecknoglobals // transition table
	model.TaskPending:    {model.TaskInProgress, model.TaskCompleted, model.TaskOverdue, model.TaskReminder},
	model.TaskInProgress: {model.TaskPending, model.TaskCompleted, model.TaskOverdue, model.TaskReminder},
	model.TaskCompleted:  {model.TaskPending, model.TaskInProgress, model.TaskReminder},
	model.TaskOverdue:    {model.TaskPending, model.TaskInProgress, model.TaskCompleted, model.TaskReminder},
	model.TaskReminder:   {model.TaskPending, model.TaskInProgress, model.TaskCompleted, model.TaskOverdue},
}

// ParseStatus validates s as a task status.
func ParseStatus(s string) (model.TaskStatus, error) {
	st := model.TaskStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := allowed[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// ParseUserStatus accepts only the statuses a user may set directly.
func ParseUserStatus(s string) (model.TaskStatus, error) {
	st, err := ParseStatus(s)
	if err != nil {
		return "", err
	}
	if st != model.TaskInProgress && st != model.TaskCompleted {
		return "", fmt.Errorf("%w: %s is set by the system", ErrInvalidTransition, st)
	}
	return st, nil
}

// PastDue reports whether t's due date lies before now.
func PastDue(t model.Task, now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now)
}

// CanBecomeOverdue is the overdue guard.
func CanBecomeOverdue(t model.Task, now time.Time) bool {
	return PastDue(t, now) && t.Status != model.TaskCompleted && t.Status != model.TaskOverdue
}

// Apply validates moving t to target at now.
func Apply(t model.Task, target model.TaskStatus, now time.Time) (Transition, error) {
	tr := Transition{From: t.Status, To: target}
	if _, ok := allowed[target]; !ok {
		return Transition{}, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}
	if t.Status == target {
		return tr, nil
	}
	if !permitted(t.Status, target) {
		return Transition{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, target)
	}

	switch {
	case target == model.TaskOverdue:
		if !CanBecomeOverdue(t, now) {
			return Transition{}, fmt.Errorf("%w: task %s is not past due", ErrInvalidTransition, t.ID)
		}
		if !t.PenaltyApplied {
			tr.Delta = t.PenaltyPoints
			tr.Effect = EffectPenalize
			tr.PenaltyApplied = true
		}
	case target == model.TaskCompleted:
		at := now
		tr.CompletedAt = &at
		tr.Delta = t.BasePoints
		tr.Effect = EffectAward
	case t.Status == model.TaskCompleted:
		tr.Delta = -t.BasePoints
		tr.Effect = EffectRetractAward
	}
	return tr, nil
}

// Initial settles the status of a task being created. A task created
// completed is awarded at once; one created past due and not completed
// starts overdue with its penalty charged.
func Initial(t model.Task, now time.Time) (Transition, error) {
	if t.Status == "" {
		t.Status = model.TaskPending
	}
	switch t.Status {
	case model.TaskPending, model.TaskInProgress, model.TaskCompleted:
	default:
		return Transition{}, fmt.Errorf("%w: task cannot be created %s", ErrInvalidTransition, t.Status)
	}
	if t.BasePoints < 0 || t.PenaltyPoints > 0 {
		return Transition{}, fmt.Errorf("%w: base points must be >= 0 and penalty <= 0", ErrInvalidPoints)
	}

	tr := Transition{From: "", To: t.Status}
	switch {
	case t.Status == model.TaskCompleted:
		at := now
		tr.CompletedAt = &at
		tr.Delta = t.BasePoints
		tr.Effect = EffectAward
	case PastDue(t, now):
		tr.To = model.TaskOverdue
		tr.Delta = t.PenaltyPoints
		tr.Effect = EffectPenalize
		tr.PenaltyApplied = true
	}
	return tr, nil
}

func permitted(from, to model.TaskStatus) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
