package service

import (
	"context"
	"errors"
	"time"

	"splitlab/internal/experiment/assignment"
	"splitlab/internal/experiment/events"
	"splitlab/internal/experiment/models"
	id "splitlab/pkg/domain"
	dErrors "splitlab/pkg/domain-errors"
	"splitlab/pkg/platform/sentinel"
	"splitlab/pkg/requestcontext"
)

// stickyTTL bounds how long a cached assignment outlives its last hit.
// The durable row has no expiry; the cache is just the hot path.
const stickyTTL = 30 * 24 * time.Hour

// AssignUserToVariant returns the user's variant for a running experiment,
// creating the assignment on first contact.
//
// Resolution order: sticky cache, durable store, deterministic hash. Every
// layer returning the same variant for the same (experiment, user) pair is
// what makes cache loss and concurrent first contacts harmless.
func (s *Service) AssignUserToVariant(ctx context.Context, experimentID id.ExperimentID, userID id.UserID, userContext map[string]string) (models.Assignment, error) {
	if userID == "" {
		return models.Assignment{}, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	exp, err := s.Get(ctx, experimentID)
	if err != nil {
		// Hot-path policy: infrastructure failures are logged and absorbed,
		// the caller gets no assignment instead of an error. Domain refusals
		// (unknown experiment, not running) still surface.
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			s.logger.ErrorContext(ctx, "assignment skipped, experiment load failed",
				"experiment_id", experimentID, "error", err)
			return models.Assignment{}, nil
		}
		return models.Assignment{}, err
	}
	if !exp.IsRunning() {
		return models.Assignment{}, dErrors.Newf(dErrors.CodeInvalidState, "experiment %q is not running", exp.Name)
	}

	if variantID, ok := s.cachedVariant(ctx, experimentID, userID); ok {
		s.metrics.IncrementAssignment("cache")
		return models.Assignment{
			ExperimentID: experimentID,
			UserID:       userID,
			VariantID:    variantID,
		}, nil
	}

	if existing, err := s.assignments.Find(ctx, experimentID, userID); err == nil {
		s.cacheVariant(ctx, experimentID, userID, existing.VariantID)
		s.metrics.IncrementAssignment("store")
		return existing, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		// A store read outage reads as a miss: the deterministic hash
		// recomputes the same variant the lost row holds.
		s.logger.WarnContext(ctx, "assignment lookup failed, recomputing",
			"experiment_id", experimentID, "error", err)
	}

	variant := assignment.Assign(exp, userID)
	created := models.Assignment{
		ExperimentID: experimentID,
		UserID:       userID,
		VariantID:    variant.ID,
		Context:      userContext,
		AssignedAt:   requestcontext.Now(ctx),
	}

	// Concurrent first contacts race here; CreateIfAbsent keeps the stored
	// row, and both racers computed the identical variant anyway.
	persisted, _, err := s.assignments.CreateIfAbsent(ctx, created)
	if err != nil {
		// The computed variant is still served; the next contact recomputes
		// the identical variant and retries the persist.
		s.logger.ErrorContext(ctx, "assignment persist failed",
			"experiment_id", experimentID, "error", err)
		s.metrics.IncrementAssignment("computed")
		return created, nil
	}

	s.cacheVariant(ctx, experimentID, userID, persisted.VariantID)
	s.metrics.IncrementAssignment("computed")
	return persisted, nil
}

// TrackConversion records a conversion for an assigned user. The event is
// appended unconditionally; dedup to distinct converting users happens at
// aggregation time.
func (s *Service) TrackConversion(ctx context.Context, experimentID id.ExperimentID, userID id.UserID, value float64, metadata map[string]string) error {
	if userID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	exp, err := s.Get(ctx, experimentID)
	if err != nil {
		// Same absorption policy as AssignUserToVariant: infrastructure
		// failures make tracking a logged no-op, domain refusals surface.
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			s.logger.ErrorContext(ctx, "conversion dropped, experiment load failed",
				"experiment_id", experimentID, "error", err)
			return nil
		}
		return err
	}
	if !exp.IsRunning() {
		return dErrors.Newf(dErrors.CodeInvalidState, "experiment %q is not running", exp.Name)
	}

	assigned, err := s.assignments.Find(ctx, experimentID, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user has no assignment in this experiment")
		}
		s.logger.ErrorContext(ctx, "conversion dropped, assignment lookup failed",
			"experiment_id", experimentID, "user_id", userID, "error", err)
		return nil
	}

	now := requestcontext.Now(ctx)
	event := models.ConversionEvent{
		ExperimentID: experimentID,
		VariantID:    assigned.VariantID,
		UserID:       userID,
		Value:        value,
		Metadata:     metadata,
		OccurredAt:   now,
	}
	if err := s.conversions.Append(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "conversion dropped, append failed",
			"experiment_id", experimentID, "user_id", userID, "error", err)
		return nil
	}

	s.metrics.IncrementConversion()
	s.bumpConversionCounter(ctx, experimentID, assigned.VariantID)
	s.publish(ctx, events.Event{
		Type:         events.TypeConversionTracked,
		ExperimentID: experimentID,
		OccurredAt:   now,
		VariantID:    assigned.VariantID,
		UserID:       userID,
	})

	// Sequential evaluation piggybacks on conversions when enabled. Its
	// failures never surface to the tracking caller.
	if exp.Config.EarlyStopping.Enabled {
		if _, err := s.EvaluateEarlyStop(ctx, experimentID); err != nil {
			s.logger.WarnContext(ctx, "early stopping evaluation failed",
				"experiment_id", experimentID, "error", err)
		}
	}
	return nil
}

// cachedVariant consults the sticky cache. Failures and misses both read
// as a miss; the durable store and the hash are behind it.
func (s *Service) cachedVariant(ctx context.Context, experimentID id.ExperimentID, userID id.UserID) (id.VariantID, bool) {
	if s.cache == nil {
		return id.VariantID{}, false
	}
	variantID, ok, err := s.cache.GetVariant(ctx, experimentID, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "sticky cache read failed",
			"experiment_id", experimentID, "error", err)
		return id.VariantID{}, false
	}
	return variantID, ok
}

func (s *Service) cacheVariant(ctx context.Context, experimentID id.ExperimentID, userID id.UserID, variantID id.VariantID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetVariant(ctx, experimentID, userID, variantID, stickyTTL); err != nil {
		s.logger.WarnContext(ctx, "sticky cache write failed",
			"experiment_id", experimentID, "error", err)
	}
}

func (s *Service) bumpConversionCounter(ctx context.Context, experimentID id.ExperimentID, variantID id.VariantID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.IncrementConversions(ctx, experimentID, variantID); err != nil {
		s.logger.WarnContext(ctx, "conversion counter bump failed",
			"experiment_id", experimentID, "error", err)
	}
}
