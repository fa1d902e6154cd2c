// Package handler exposes the experiment engine over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"splitlab/internal/experiment/models"
	"splitlab/internal/experiment/service"
	id "splitlab/pkg/domain"
	dErrors "splitlab/pkg/domain-errors"
	"splitlab/pkg/platform/httputil"
)

// Service defines the experiment operations the transport needs.
type Service interface {
	Create(ctx context.Context, params service.CreateParams) (*models.Experiment, error)
	Get(ctx context.Context, experimentID id.ExperimentID) (*models.Experiment, error)
	Start(ctx context.Context, experimentID id.ExperimentID) (*models.Experiment, error)
	Pause(ctx context.Context, experimentID id.ExperimentID) (*models.Experiment, error)
	Stop(ctx context.Context, experimentID id.ExperimentID, reason string) (*models.Experiment, error)
	Analyze(ctx context.Context, experimentID id.ExperimentID) (*models.AnalysisResult, error)
	AssignUserToVariant(ctx context.Context, experimentID id.ExperimentID, userID id.UserID, userContext map[string]string) (models.Assignment, error)
	TrackConversion(ctx context.Context, experimentID id.ExperimentID, userID id.UserID, value float64, metadata map[string]string) error
}

// Handler handles experiment endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts the experiment routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/experiments", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Route("/{experimentID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Post("/start", h.handleStart)
			r.Post("/pause", h.handlePause)
			r.Post("/stop", h.handleStop)
			r.Get("/results", h.handleResults)
			r.Post("/assignments", h.handleAssign)
			r.Post("/conversions", h.handleTrackConversion)
		})
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[createExperimentRequest](w, r, h.logger)
	if !ok {
		return
	}

	exp, err := h.service.Create(r.Context(), req.toParams())
	if err != nil {
		h.writeServiceError(w, r, "create experiment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, exp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	experimentID, ok := h.experimentID(w, r)
	if !ok {
		return
	}
	exp, err := h.service.Get(r.Context(), experimentID)
	if err != nil {
		h.writeServiceError(w, r, "get experiment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, exp)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "start experiment", h.service.Start)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "pause experiment", h.service.Pause)
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	experimentID, ok := h.experimentID(w, r)
	if !ok {
		return
	}

	// the reason body is optional; an empty read means a manual stop
	var req stopExperimentRequest
	if r.Body != nil && r.ContentLength > 0 {
		req, ok = httputil.Decode[stopExperimentRequest](w, r, h.logger)
		if !ok {
			return
		}
	}

	exp, err := h.service.Stop(r.Context(), experimentID, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, "stop experiment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, exp)
}

// handleResults serves the frozen result for completed experiments and a
// live analysis for everything else.
func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	experimentID, ok := h.experimentID(w, r)
	if !ok {
		return
	}

	exp, err := h.service.Get(r.Context(), experimentID)
	if err != nil {
		h.writeServiceError(w, r, "get experiment", err)
		return
	}
	if exp.Status == models.StatusCompleted {
		httputil.WriteJSON(w, http.StatusOK, exp.Result)
		return
	}

	result, err := h.service.Analyze(r.Context(), experimentID)
	if err != nil {
		h.writeServiceError(w, r, "analyze experiment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	experimentID, ok := h.experimentID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[assignRequest](w, r, h.logger)
	if !ok {
		return
	}

	assignment, err := h.service.AssignUserToVariant(r.Context(), experimentID, id.UserID(req.UserID), req.Context)
	if err != nil {
		h.writeServiceError(w, r, "assign user", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, assignment)
}

func (h *Handler) handleTrackConversion(w http.ResponseWriter, r *http.Request) {
	experimentID, ok := h.experimentID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[trackConversionRequest](w, r, h.logger)
	if !ok {
		return
	}

	err := h.service.TrackConversion(r.Context(), experimentID, id.UserID(req.UserID), req.Value, req.Metadata)
	if err != nil {
		h.writeServiceError(w, r, "track conversion", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, id.ExperimentID) (*models.Experiment, error)) {
	experimentID, ok := h.experimentID(w, r)
	if !ok {
		return
	}
	exp, err := fn(r.Context(), experimentID)
	if err != nil {
		h.writeServiceError(w, r, op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, exp)
}

func (h *Handler) experimentID(w http.ResponseWriter, r *http.Request) (id.ExperimentID, bool) {
	experimentID, err := id.ParseExperimentID(chi.URLParam(r, "experimentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ExperimentID{}, false
	}
	return experimentID, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), "operation failed", "op", op, "error", err)
	} else {
		h.logger.WarnContext(r.Context(), "operation rejected", "op", op, "error", err)
	}
	httputil.WriteError(w, err)
}
