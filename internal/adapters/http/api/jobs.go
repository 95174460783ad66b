package api

import (
	"context"
	"net/http"

	"github.com/okian/kudos/internal/domain/model"
)

// JobDependencies defines job submission.
type JobDependencies interface {
	SubmitJob(ctx context.Context, j model.Job) (model.Job, bool, error)
}

// JobsHandler handles job requests.
type JobsHandler struct {
	deps JobDependencies
	responder
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(deps JobDependencies, rs responder) *JobsHandler {
	return &JobsHandler{deps: deps, responder: rs}
}

type jobResponse struct {
	JobID     string        `json:"job_id"`
	Kind      model.JobKind `json:"kind"`
	Status    string        `json:"status"`
	Duplicate bool          `json:"duplicate"`
}

// HandleSubmit handles POST /jobs. A job id seen before is acknowledged
// with 200 and not run again; a new one is queued with 202.
func (h *JobsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_job"
	var req model.Job
	if err := decode(r, &req); err != nil {
		h.fail(w, r, op, err)
		return
	}
	j, accepted, err := h.deps.SubmitJob(r.Context(), req)
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	if !accepted {
		writeJSON(w, http.StatusOK, jobResponse{JobID: j.ID, Kind: j.Kind, Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, jobResponse{JobID: j.ID, Kind: j.Kind, Status: "accepted"})
}
