package api

import (
	"context"
	"net/http"

	service "github.com/okian/kudos/internal/app"
	"github.com/okian/kudos/internal/domain/ledger"
	"github.com/okian/kudos/internal/domain/model"
)

// ProfileDependencies defines the profile and leaderboard operations.
type ProfileDependencies interface {
	CreateProfile(ctx context.Context, name string) (model.Profile, error)
	GetProfile(ctx context.Context, id string) (model.Profile, error)
	ProfileHistory(ctx context.Context, id, category string) ([]ledger.Entry, error)
	SetProfileInactive(ctx context.Context, id string, inactive bool) (model.Profile, error)
	GetLeaderboard(ctx context.Context) (service.Leaderboard, error)
}

// ProfilesHandler handles profile and leaderboard requests.
type ProfilesHandler struct {
	deps ProfileDependencies
	responder
}

// NewProfilesHandler creates a new profiles handler.
func NewProfilesHandler(deps ProfileDependencies, rs responder) *ProfilesHandler {
	return &ProfilesHandler{deps: deps, responder: rs}
}

type profileRequest struct {
	Name string `json:"name"`
}

// HandleCreate handles POST /profiles.
func (h *ProfilesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_profile"
	var req profileRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	p, err := h.deps.CreateProfile(r.Context(), req.Name)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleGet handles GET /profiles/{id}. The cached scores are audited
// against the ledger before they are returned.
func (h *ProfilesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "api.get_profile", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleHistory handles GET /profiles/{id}/history?category=.
func (h *ProfilesHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.ProfileHistory(r.Context(), r.PathValue("id"), r.URL.Query().Get("category"))
	if err != nil {
		h.fail(w, r, "api.profile_history", err)
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type inactiveRequest struct {
	Inactive bool `json:"inactive"`
}

// HandleSetInactive handles POST /profiles/{id}/inactive.
func (h *ProfilesHandler) HandleSetInactive(w http.ResponseWriter, r *http.Request) {
	const op = "api.profile_inactive"
	req := inactiveRequest{Inactive: true}
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	p, err := h.deps.SetProfileInactive(r.Context(), r.PathValue("id"), req.Inactive)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleLeaderboard handles GET /leaderboard: five ranked lists and five
// charts.
func (h *ProfilesHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.deps.GetLeaderboard(r.Context())
	if err != nil {
		h.fail(w, r, "api.get_leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}
