// Package httpapi assembles the public router: experiment routes, health,
// and Prometheus metrics.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"splitlab/internal/experiment/handler"
	"splitlab/internal/platform/middleware"
	"splitlab/pkg/platform/httputil"
)

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// NewRouter wires all public endpoints behind the shared middleware chain.
func NewRouter(h *handler.Handler, logger *slog.Logger, checks ...HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	h.Register(r)

	r.Get("/healthz", healthHandler(logger, checks))
	r.Handle("/metrics", promhttp.Handler())
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(logger *slog.Logger, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for _, check := range checks {
			if err := check.Probe(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "check", check.Name, "error", err)
				resp.Checks[check.Name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[check.Name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
