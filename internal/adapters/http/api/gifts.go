package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	service "github.com/okian/kudos/internal/app"
	"github.com/okian/kudos/internal/domain/model"
)

// GiftDependencies defines the gift search and contribution operations.
type GiftDependencies interface {
	CreateGiftSearch(ctx context.Context, title, createdBy string, deadline *time.Time) (model.GiftSearch, error)
	GetGiftSearch(ctx context.Context, id string) (service.GiftSearchView, error)
	AddProposal(ctx context.Context, searchID, proposedBy, title string) (model.GiftProposal, error)
	Vote(ctx context.Context, proposalID, voterID string) (model.GiftProposal, error)
	WithdrawVote(ctx context.Context, proposalID, voterID string) (model.GiftProposal, error)
	FinalizeGiftSearch(ctx context.Context, searchID string) (model.GiftProposal, error)
	UnfinalizeGiftSearch(ctx context.Context, searchID string) error
	CreateContribution(ctx context.Context, in service.NewContribution) (service.ContributionView, error)
	GetContribution(ctx context.Context, id string) (service.ContributionView, error)
	AddPledge(ctx context.Context, contributionID string, p service.Pledge) (model.Contribution, error)
	SetContributionStatus(ctx context.Context, id, status string) (service.ContributionView, error)
}

// GiftsHandler handles gift search and contribution requests.
type GiftsHandler struct {
	deps GiftDependencies
	responder
}

// NewGiftsHandler creates a new gifts handler.
func NewGiftsHandler(deps GiftDependencies, rs responder) *GiftsHandler {
	return &GiftsHandler{deps: deps, responder: rs}
}

// searchRequest is the body of POST /gift-searches. deadline is a date or
// RFC3339.
type searchRequest struct {
	Title     string `json:"title"`
	CreatedBy string `json:"created_by"`
	Deadline  string `json:"deadline"`
}

// HandleCreateSearch handles POST /gift-searches.
func (h *GiftsHandler) HandleCreateSearch(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_gift_search"
	var req searchRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	s, err := h.deps.CreateGiftSearch(r.Context(), req.Title, req.CreatedBy, deadline)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// HandleGetSearch handles GET /gift-searches/{id}.
func (h *GiftsHandler) HandleGetSearch(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.GetGiftSearch(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "api.get_gift_search", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type proposalRequest struct {
	ProposedBy string `json:"proposed_by"`
	Title      string `json:"title"`
}

// HandleAddProposal handles POST /gift-searches/{id}/proposals.
func (h *GiftsHandler) HandleAddProposal(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_proposal"
	var req proposalRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	p, err := h.deps.AddProposal(r.Context(), r.PathValue("id"), req.ProposedBy, req.Title)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type voteRequest struct {
	VoterID string `json:"voter_id"`
}

// HandleVote handles POST /proposals/{id}/votes. Voting twice is a no-op.
func (h *GiftsHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.vote"
	var req voteRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	p, err := h.deps.Vote(r.Context(), r.PathValue("id"), req.VoterID)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleWithdrawVote handles DELETE /proposals/{id}/votes/{voter}.
func (h *GiftsHandler) HandleWithdrawVote(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.WithdrawVote(r.Context(), r.PathValue("id"), r.PathValue("voter"))
	if err != nil {
		h.fail(w, r, "api.withdraw_vote", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleFinalize handles POST /gift-searches/{id}/finalize and returns the
// winning proposal.
func (h *GiftsHandler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.FinalizeGiftSearch(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "api.finalize_gift_search", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUnfinalize handles POST /gift-searches/{id}/unfinalize.
func (h *GiftsHandler) HandleUnfinalize(w http.ResponseWriter, r *http.Request) {
	const op = "api.unfinalize_gift_search"
	id := r.PathValue("id")
	if err := h.deps.UnfinalizeGiftSearch(r.Context(), id); err != nil {
		h.fail(w, r, op, err)
		return
	}
	v, err := h.deps.GetGiftSearch(r.Context(), id)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// contributionRequest is the body of POST /contributions. deadline is a
// date or RFC3339.
type contributionRequest struct {
	Title     string           `json:"title"`
	ManagerID string           `json:"manager_id"`
	Deadline  string           `json:"deadline"`
	Pledges   []service.Pledge `json:"pledges"`
}

// HandleCreateContribution handles POST /contributions.
func (h *GiftsHandler) HandleCreateContribution(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_contribution"
	var req contributionRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	v, err := h.deps.CreateContribution(r.Context(), service.NewContribution{
		Title: req.Title, ManagerID: req.ManagerID, Deadline: deadline, Pledges: req.Pledges,
	})
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// HandleGetContribution handles GET /contributions/{id}.
func (h *GiftsHandler) HandleGetContribution(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.GetContribution(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "api.get_contribution", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleAddPledge handles POST /contributions/{id}/pledges.
func (h *GiftsHandler) HandleAddPledge(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_pledge"
	var req service.Pledge
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	c, err := h.deps.AddPledge(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleContributionStatus handles POST /contributions/{id}/status.
func (h *GiftsHandler) HandleContributionStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.contribution_status"
	var req statusRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	v, err := h.deps.SetContributionStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// parseDeadline reads an optional deadline given as a date or RFC3339.
func parseDeadline(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if d, err := time.Parse(layout, s); err == nil {
			return &d, nil
		}
	}
	return nil, fmt.Errorf("%w: invalid deadline %q; must be a date or RFC3339", ErrBadRequest, s)
}
