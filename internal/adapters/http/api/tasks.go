package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	service "github.com/okian/kudos/internal/app"
	"github.com/okian/kudos/internal/domain/model"
	"github.com/shopspring/decimal"
)

// TaskDependencies defines the task lifecycle operations.
type TaskDependencies interface {
	CreateTask(ctx context.Context, in service.NewTask) (model.Task, error)
	GetTask(ctx context.Context, id string) (model.Task, error)
	UpdateTaskStatus(ctx context.Context, id, status string) (model.Task, error)
	ReopenTask(ctx context.Context, id, status string) (model.Task, error)
	SetTaskExpenses(ctx context.Context, id string, amount decimal.Decimal) (model.Task, error)
}

// TasksHandler handles task requests.
type TasksHandler struct {
	deps TaskDependencies
	responder
}

// NewTasksHandler creates a new tasks handler.
func NewTasksHandler(deps TaskDependencies, rs responder) *TasksHandler {
	return &TasksHandler{deps: deps, responder: rs}
}

// taskRequest is the body of POST /tasks. due_date is RFC3339.
type taskRequest struct {
	EventID       string          `json:"event_id"`
	Title         string          `json:"title"`
	Status        string          `json:"status"`
	DueDate       string          `json:"due_date"`
	BasePoints    int64           `json:"base_points"`
	PenaltyPoints int64           `json:"penalty_points"`
	CostRelated   bool            `json:"cost_related"`
	Budget        decimal.Decimal `json:"budget"`
	Assignees     []string        `json:"assignees"`
}

func (t taskRequest) toNewTask() (service.NewTask, error) {
	in := service.NewTask{
		EventID:       t.EventID,
		Title:         t.Title,
		Status:        model.TaskStatus(t.Status),
		BasePoints:    t.BasePoints,
		PenaltyPoints: t.PenaltyPoints,
		CostRelated:   t.CostRelated,
		Budget:        t.Budget,
		Assignees:     t.Assignees,
	}
	if t.DueDate != "" {
		due, err := time.Parse(time.RFC3339, t.DueDate)
		if err != nil {
			return service.NewTask{}, fmt.Errorf("%w: invalid due_date; must be RFC3339", ErrBadRequest)
		}
		in.DueDate = &due
	}
	return in, nil
}

// HandleCreate handles POST /tasks.
func (h *TasksHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_task"
	var req taskRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	in, err := req.toNewTask()
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	t, err := h.deps.CreateTask(r.Context(), in)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// HandleGet handles GET /tasks/{id}.
func (h *TasksHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "api.get_task", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type statusRequest struct {
	Status string `json:"status"`
}

// HandleStatus handles POST /tasks/{id}/status. Only in_progress and
// completed may be requested.
func (h *TasksHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.task_status"
	var req statusRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	t, err := h.deps.UpdateTaskStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// HandleReopen handles POST /tasks/{id}/reopen.
func (h *TasksHandler) HandleReopen(w http.ResponseWriter, r *http.Request) {
	const op = "api.task_reopen"
	req := statusRequest{Status: string(model.TaskPending)}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	t, err := h.deps.ReopenTask(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type expensesRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// HandleExpenses handles POST /tasks/{id}/expenses.
func (h *TasksHandler) HandleExpenses(w http.ResponseWriter, r *http.Request) {
	const op = "api.task_expenses"
	var req expensesRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	t, err := h.deps.SetTaskExpenses(r.Context(), r.PathValue("id"), req.Amount)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
