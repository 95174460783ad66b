package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaskStatus is the state of a task. Transitions are governed by package task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskOverdue    TaskStatus = "overdue"
	TaskReminder   TaskStatus = "reminder"
)

// Task is a unit of work within an event.
type Task struct {
	ID             string          `json:"id"`
	EventID        string          `json:"event_id"`
	Title          string          `json:"title"`
	Status         TaskStatus      `json:"status"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	BasePoints     int64           `json:"base_points"`
	PenaltyPoints  int64           `json:"penalty_points"`
	PointsAwarded  int64           `json:"points_awarded"`
	PenaltyApplied bool            `json:"penalty_applied"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CostRelated    bool            `json:"cost_related"`
	Budget         decimal.Decimal `json:"budget"`
	ActualExpenses decimal.Decimal `json:"actual_expenses"`
	Assignees      []string        `json:"assignees"`
	CreatedAt      time.Time       `json:"created_at"`
}
