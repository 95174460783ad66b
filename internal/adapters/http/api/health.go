package api

import (
	"context"
	"net/http"

	"github.com/okian/kudos/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler serves the Prometheus collectors of the custom registry on
// GET /healthz.
type HealthHandler struct {
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// StatsProvider reports queue, worker and profile counts.
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]any
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.GetStats(r.Context()))
}
