package api

import (
	"context"
	"net/http"

	"github.com/okian/kudos/internal/domain/model"
)

// TransactionDependencies defines the payment operations.
type TransactionDependencies interface {
	GetTransaction(ctx context.Context, id string) (model.Transaction, error)
	MarkPaid(ctx context.Context, id string) (model.Transaction, error)
	ConfirmTransaction(ctx context.Context, id string) (model.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// TransactionsHandler handles transaction requests.
type TransactionsHandler struct {
	deps TransactionDependencies
	responder
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(deps TransactionDependencies, rs responder) *TransactionsHandler {
	return &TransactionsHandler{deps: deps, responder: rs}
}

// HandleGet handles GET /transactions/{id}.
func (h *TransactionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	tr, err := h.deps.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "api.get_transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// HandlePaid handles POST /transactions/{id}/paid.
func (h *TransactionsHandler) HandlePaid(w http.ResponseWriter, r *http.Request) {
	tr, err := h.deps.MarkPaid(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "api.mark_paid", err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// HandleConfirm handles POST /transactions/{id}/confirm.
func (h *TransactionsHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	tr, err := h.deps.ConfirmTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "api.confirm_transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// HandleDelete handles DELETE /transactions/{id}.
func (h *TransactionsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, "api.delete_transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
