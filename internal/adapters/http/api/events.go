package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/kudos/internal/adapters/repository"
	service "github.com/okian/kudos/internal/app"
	"github.com/okian/kudos/internal/domain/model"
	"github.com/okian/kudos/internal/domain/settlement"
)

// EventDependencies defines the event, participant and billing operations.
type EventDependencies interface {
	CreateEvent(ctx context.Context, in service.NewEvent) (model.Event, error)
	GetEvent(ctx context.Context, id string) (model.Event, error)
	CancelEvent(ctx context.Context, id string) (model.Event, error)
	AddParticipant(ctx context.Context, eventID, profileID, role string) (model.Participant, error)
	ListParticipants(ctx context.Context, eventID, role string) ([]model.Participant, error)
	RemoveParticipant(ctx context.Context, participantID string) error
	PreviewSettlement(ctx context.Context, eventID string, req service.BillRequest) (settlement.Plan, error)
	BillEvent(ctx context.Context, eventID string, req service.BillRequest) (service.Bill, error)
	ListTransactions(ctx context.Context, f repository.TransactionFilter) ([]model.Transaction, error)
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps EventDependencies
	responder
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies, rs responder) *EventsHandler {
	return &EventsHandler{deps: deps, responder: rs}
}

// eventRequest is the body of POST /events. Date is YYYY-MM-DD and
// start_time HH:MM.
type eventRequest struct {
	Title     string `json:"title"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	Location  string `json:"location"`
}

func (e eventRequest) toNewEvent() (service.NewEvent, error) {
	in := service.NewEvent{Title: e.Title, StartTime: e.StartTime, Location: e.Location}
	if e.Date != "" {
		d, err := time.Parse(time.DateOnly, e.Date)
		if err != nil {
			return service.NewEvent{}, fmt.Errorf("%w: invalid date; must be YYYY-MM-DD", ErrBadRequest)
		}
		in.Date = &d
	}
	return in, nil
}

// HandleCreate handles POST /events.
func (h *EventsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_event"
	var req eventRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	in, err := req.toNewEvent()
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	e, err := h.deps.CreateEvent(r.Context(), in)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// HandleGet handles GET /events/{id}.
func (h *EventsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	e, err := h.deps.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "api.get_event", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleCancel handles POST /events/{id}/cancel.
func (h *EventsHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	e, err := h.deps.CancelEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "api.cancel_event", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type participantRequest struct {
	ProfileID string `json:"profile_id"`
	Role      string `json:"role"`
}

// HandleAddParticipant handles POST /events/{id}/participants.
func (h *EventsHandler) HandleAddParticipant(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_participant"
	var req participantRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	p, err := h.deps.AddParticipant(r.Context(), r.PathValue("id"), req.ProfileID, req.Role)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleListParticipants handles GET /events/{id}/participants. The role
// query parameter narrows the list.
func (h *EventsHandler) HandleListParticipants(w http.ResponseWriter, r *http.Request) {
	ps, err := h.deps.ListParticipants(r.Context(), r.PathValue("id"), r.URL.Query().Get("role"))
	if err != nil {
		h.fail(w, r, "api.list_participants", err)
		return
	}
	if ps == nil {
		ps = []model.Participant{}
	}
	writeJSON(w, http.StatusOK, ps)
}

// HandleRemoveParticipant handles DELETE /participants/{id}.
func (h *EventsHandler) HandleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.RemoveParticipant(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, "api.remove_participant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClearing handles POST /events/{id}/clearing: the settlement preview.
func (h *EventsHandler) HandleClearing(w http.ResponseWriter, r *http.Request) {
	const op = "api.event_clearing"
	var req service.BillRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	plan, err := h.deps.PreviewSettlement(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// HandleBill handles POST /events/{id}/bill.
func (h *EventsHandler) HandleBill(w http.ResponseWriter, r *http.Request) {
	const op = "api.bill_event"
	var req service.BillRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	bill, err := h.deps.BillEvent(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, bill)
}

// HandleTransactions handles GET /events/{id}/transactions.
func (h *EventsHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	const op = "api.event_transactions"
	id := r.PathValue("id")
	if _, err := h.deps.GetEvent(r.Context(), id); err != nil {
		h.fail(w, r, op, err)
		return
	}
	trs, err := h.deps.ListTransactions(r.Context(), repository.TransactionFilter{EventID: id})
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	if trs == nil {
		trs = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, trs)
}
