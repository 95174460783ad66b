// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/kudos/internal/adapters/mq/queue"
	"github.com/okian/kudos/internal/adapters/repository"
	service "github.com/okian/kudos/internal/app"
	"github.com/okian/kudos/internal/domain/ledger"
	"github.com/okian/kudos/internal/domain/model"
	"github.com/okian/kudos/internal/domain/ranking"
	"github.com/okian/kudos/internal/domain/settlement"
	"github.com/okian/kudos/internal/domain/task"
	"github.com/okian/kudos/pkg/logger"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Each handler only sees the slice it
// needs; the service satisfies all of them.
type Dependencies interface {
	ProfileDependencies
	EventDependencies
	TaskDependencies
	TransactionDependencies
	GiftDependencies
	JobDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	profilesHandler     *ProfilesHandler
	eventsHandler       *EventsHandler
	tasksHandler        *TasksHandler
	transactionsHandler *TransactionsHandler
	giftsHandler        *GiftsHandler
	jobsHandler         *JobsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := options{logger: logger.Named("api")}
	for _, opt := range opts {
		opt(&o)
	}
	w := responder{logger: o.logger}
	return &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(deps),
		profilesHandler:     NewProfilesHandler(deps, w),
		eventsHandler:       NewEventsHandler(deps, w),
		tasksHandler:        NewTasksHandler(deps, w),
		transactionsHandler: NewTransactionsHandler(deps, w),
		giftsHandler:        NewGiftsHandler(deps, w),
		jobsHandler:         NewJobsHandler(deps, w),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, instrument(endpoint, h))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	route("POST /profiles", "profiles", s.profilesHandler.HandleCreate)
	route("GET /profiles/{id}", "profile", s.profilesHandler.HandleGet)
	route("GET /profiles/{id}/history", "profile_history", s.profilesHandler.HandleHistory)
	route("POST /profiles/{id}/inactive", "profile_inactive", s.profilesHandler.HandleSetInactive)
	route("GET /leaderboard", "leaderboard", s.profilesHandler.HandleLeaderboard)

	route("POST /events", "events", s.eventsHandler.HandleCreate)
	route("GET /events/{id}", "event", s.eventsHandler.HandleGet)
	route("POST /events/{id}/cancel", "event_cancel", s.eventsHandler.HandleCancel)
	route("POST /events/{id}/participants", "participants", s.eventsHandler.HandleAddParticipant)
	route("GET /events/{id}/participants", "participants", s.eventsHandler.HandleListParticipants)
	route("DELETE /participants/{id}", "participant", s.eventsHandler.HandleRemoveParticipant)
	route("POST /events/{id}/clearing", "event_clearing", s.eventsHandler.HandleClearing)
	route("POST /events/{id}/bill", "event_bill", s.eventsHandler.HandleBill)
	route("GET /events/{id}/transactions", "event_transactions", s.eventsHandler.HandleTransactions)

	route("POST /tasks", "tasks", s.tasksHandler.HandleCreate)
	route("GET /tasks/{id}", "task", s.tasksHandler.HandleGet)
	route("POST /tasks/{id}/status", "task_status", s.tasksHandler.HandleStatus)
	route("POST /tasks/{id}/reopen", "task_reopen", s.tasksHandler.HandleReopen)
	route("POST /tasks/{id}/expenses", "task_expenses", s.tasksHandler.HandleExpenses)

	route("GET /transactions/{id}", "transaction", s.transactionsHandler.HandleGet)
	route("POST /transactions/{id}/paid", "transaction_paid", s.transactionsHandler.HandlePaid)
	route("POST /transactions/{id}/confirm", "transaction_confirm", s.transactionsHandler.HandleConfirm)
	route("DELETE /transactions/{id}", "transaction_delete", s.transactionsHandler.HandleDelete)

	route("POST /gift-searches", "gift_searches", s.giftsHandler.HandleCreateSearch)
	route("GET /gift-searches/{id}", "gift_search", s.giftsHandler.HandleGetSearch)
	route("POST /gift-searches/{id}/proposals", "gift_proposals", s.giftsHandler.HandleAddProposal)
	route("POST /gift-searches/{id}/finalize", "gift_finalize", s.giftsHandler.HandleFinalize)
	route("POST /gift-searches/{id}/unfinalize", "gift_unfinalize", s.giftsHandler.HandleUnfinalize)
	route("POST /proposals/{id}/votes", "gift_votes", s.giftsHandler.HandleVote)
	route("DELETE /proposals/{id}/votes/{voter}", "gift_vote", s.giftsHandler.HandleWithdrawVote)
	route("POST /contributions", "contributions", s.giftsHandler.HandleCreateContribution)
	route("GET /contributions/{id}", "contribution", s.giftsHandler.HandleGetContribution)
	route("POST /contributions/{id}/pledges", "contribution_pledges", s.giftsHandler.HandleAddPledge)
	route("POST /contributions/{id}/status", "contribution_status", s.giftsHandler.HandleContributionStatus)

	route("POST /jobs", "jobs", s.jobsHandler.HandleSubmit)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// responder maps service errors to responses and logs the ones that point at
// a server-side fault.
type responder struct {
	logger logger.Logger
}

func (rs responder) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		rs.logger.Error(r.Context(), "request failed",
			logger.String("op", op),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeError(w, status, code, Wrap(op, err))
}

// classify maps an error kind to its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrValidation),
		errors.Is(err, task.ErrInvalidStatus),
		errors.Is(err, task.ErrInvalidTransition),
		errors.Is(err, task.ErrInvalidPoints),
		errors.Is(err, settlement.ErrMissingPayer),
		errors.Is(err, settlement.ErrNoBeneficiaries),
		errors.Is(err, settlement.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidCategory),
		errors.Is(err, ledger.ErrInvalidKind),
		errors.Is(err, ledger.ErrInvalidRecord),
		errors.Is(err, ranking.ErrInvalidMetric),
		errors.Is(err, model.ErrInvalidValue):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ledger.ErrIrreversible):
		return http.StatusConflict, "irreversible"
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, ledger.ErrIntegrity), errors.Is(err, ledger.ErrDuplicateEntry):
		return http.StatusInternalServerError, "integrity_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

// decode reads one JSON object from r into v. An empty body leaves v as is.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}
