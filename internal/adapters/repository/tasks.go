package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okian/kudos/internal/domain/model"
	"github.com/shopspring/decimal"
)

const taskColumns = `id, event_id, title, status, due_date, base_points, penalty_points,
	points_awarded, penalty_applied, completed_at, cost_related, budget, actual_expenses, created_at`

// TaskFilter narrows ListTasks. Zero fields do not filter.
type TaskFilter struct {
	EventID     string
	Statuses    []model.TaskStatus
	CostRelated bool
	// DueFrom and DueBefore bound the due date as [DueFrom, DueBefore).
	DueFrom   *time.Time
	DueBefore *time.Time
}

// CreateTask inserts t with its assignees. An empty ID is generated.
func (t *Tx) CreateTask(ctx context.Context, task model.Task) (model.Task, error) {
	if task.ID == "" {
		task.ID = newID()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = t.now().UTC()
	}

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.EventID, task.Title, string(task.Status), nullTime(task.DueDate),
		task.BasePoints, task.PenaltyPoints, task.PointsAwarded, boolInt(task.PenaltyApplied),
		nullTime(task.CompletedAt), boolInt(task.CostRelated), task.Budget.String(),
		task.ActualExpenses.String(), formatTime(task.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Task{}, fmt.Errorf("task %q: %w", task.ID, ErrConflict)
		}
		return model.Task{}, fmt.Errorf("insert task: %w", err)
	}

	seen := make(map[string]bool, len(task.Assignees))
	assignees := make([]string, 0, len(task.Assignees))
	for _, pid := range task.Assignees {
		if seen[pid] {
			continue
		}
		seen[pid] = true
		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO task_assignees (task_id, profile_id) VALUES (?, ?)`, task.ID, pid); err != nil {
			return model.Task{}, fmt.Errorf("insert task assignee: %w", err)
		}
		assignees = append(assignees, pid)
	}
	task.Assignees = assignees
	return task, nil
}

// GetTask loads one task with its assignees.
func (t *Tx) GetTask(ctx context.Context, id string) (model.Task, error) {
	task, err := scanTask(t.tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if isNoRows(err) {
		return model.Task{}, notFound("task", id)
	}
	if err != nil {
		return model.Task{}, err
	}
	if task.Assignees, err = t.assignees(ctx, id); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// ListTasks returns the tasks matching f, oldest first, with assignees.
func (t *Tx) ListTasks(ctx context.Context, f TaskFilter) ([]model.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE 1 = 1`
	var args []any
	if f.EventID != "" {
		q += ` AND event_id = ?`
		args = append(args, f.EventID)
	}
	if len(f.Statuses) > 0 {
		q += ` AND status IN (` + placeholders(len(f.Statuses)) + `)`
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if f.CostRelated {
		q += ` AND cost_related = 1`
	}
	if f.DueFrom != nil {
		q += ` AND due_date IS NOT NULL AND due_date >= ?`
		args = append(args, formatTime(*f.DueFrom))
	}
	if f.DueBefore != nil {
		q += ` AND due_date IS NOT NULL AND due_date < ?`
		args = append(args, formatTime(*f.DueBefore))
	}
	q += ` ORDER BY created_at, rowid`

	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	var out []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	// Assignees are loaded once the cursor is closed.
	for i := range out {
		if out[i].Assignees, err = t.assignees(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateTask writes the mutable state of a task: status, accumulator,
// penalty flag, completion time and actual expenses.
func (t *Tx) UpdateTask(ctx context.Context, task model.Task) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE tasks SET status = ?, points_awarded = ?, penalty_applied = ?, completed_at = ?,
			actual_expenses = ?
		WHERE id = ?`,
		string(task.Status), task.PointsAwarded, boolInt(task.PenaltyApplied),
		nullTime(task.CompletedAt), task.ActualExpenses.String(), task.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("task", task.ID)
	}
	return nil
}

func (t *Tx) assignees(ctx context.Context, taskID string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT profile_id FROM task_assignees WHERE task_id = ? ORDER BY rowid`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query task assignees: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var pid string
		if err := rows.Scan(&pid); err != nil {
			return nil, fmt.Errorf("scan task assignee: %w", err)
		}
		out = append(out, pid)
	}
	return out, rows.Err()
}

func scanTask(row rowScanner) (model.Task, error) {
	var (
		task                    model.Task
		status                  string
		due, completed          sql.NullString
		penaltyApplied, costRel int
		budget, actual, created string
	)
	err := row.Scan(&task.ID, &task.EventID, &task.Title, &status, &due, &task.BasePoints,
		&task.PenaltyPoints, &task.PointsAwarded, &penaltyApplied, &completed, &costRel,
		&budget, &actual, &created)
	if err != nil {
		if isNoRows(err) {
			return model.Task{}, err
		}
		return model.Task{}, fmt.Errorf("scan task: %w", err)
	}
	task.Status = model.TaskStatus(status)
	task.PenaltyApplied, task.CostRelated = penaltyApplied != 0, costRel != 0

	if task.DueDate, err = parseNullTime(due); err != nil {
		return model.Task{}, err
	}
	if task.CompletedAt, err = parseNullTime(completed); err != nil {
		return model.Task{}, err
	}
	if task.Budget, err = decimal.NewFromString(budget); err != nil {
		return model.Task{}, fmt.Errorf("parse task budget: %w", err)
	}
	if task.ActualExpenses, err = decimal.NewFromString(actual); err != nil {
		return model.Task{}, fmt.Errorf("parse task expenses: %w", err)
	}
	if task.CreatedAt, err = parseTime(created); err != nil {
		return model.Task{}, err
	}
	return task, nil
}
