package service

import (
	"context"
	"time"

	id "splitlab/pkg/domain"
	dErrors "splitlab/pkg/domain-errors"
	"splitlab/pkg/requestcontext"
)

// Stop reasons attached by the sequential evaluator.
const (
	FutilityStopReason = "Futility boundary reached"
	EfficacyStopReason = "Efficacy boundary reached"
	DurationStopReason = "Maximum duration reached"
)

// StopDecision is the outcome of one sequential evaluation.
type StopDecision struct {
	Stopped bool
	Reason  string
}

// EvaluateEarlyStop recomputes the analysis for a running experiment and
// stops it at the first matching boundary, in priority order: futility,
// efficacy, maximum duration. Non-running experiments and experiments
// without early stopping enabled are a no-op, which makes the evaluator
// idempotent under the scheduler tick racing the synchronous
// post-conversion check.
func (s *Service) EvaluateEarlyStop(ctx context.Context, experimentID id.ExperimentID) (StopDecision, error) {
	exp, err := s.Get(ctx, experimentID)
	if err != nil {
		return StopDecision{}, err
	}
	if !exp.IsRunning() || !exp.Config.EarlyStopping.Enabled {
		return StopDecision{}, nil
	}

	// The check interval throttles both triggers: the post-conversion hook
	// fires on every event and would otherwise re-analyze each time.
	now := requestcontext.Now(ctx)
	if interval := time.Duration(exp.Config.EarlyStopping.CheckInterval) * time.Second; interval > 0 {
		if last, ok := s.lastEvaluated.Load(experimentID); ok && now.Sub(last.(time.Time)) < interval {
			return StopDecision{}, nil
		}
	}
	s.lastEvaluated.Store(experimentID, now)

	result, err := s.Analyze(ctx, experimentID)
	if err != nil {
		// Not enough data to evaluate boundaries yet; the experiment keeps
		// running.
		if dErrors.HasCode(err, dErrors.CodeInsufficientData) {
			return StopDecision{}, nil
		}
		return StopDecision{}, err
	}

	rules := exp.Config.EarlyStopping
	reason := ""
	switch {
	case result.Confidence < rules.FutilityBoundary:
		reason = FutilityStopReason
	case result.Confidence > rules.EfficacyBoundary:
		reason = EfficacyStopReason
	case exp.ElapsedDays(now) >= exp.Config.MaximumDuration:
		reason = DurationStopReason
	default:
		return StopDecision{}, nil
	}

	if _, err := s.Stop(ctx, experimentID, reason); err != nil {
		// A concurrent evaluator or operator already stopped it. The
		// boundary outcome stands either way.
		if dErrors.HasCode(err, dErrors.CodeInvalidState) {
			return StopDecision{}, nil
		}
		return StopDecision{}, err
	}

	s.metrics.IncrementEarlyStop(reason)
	s.logger.InfoContext(ctx, "experiment stopped early",
		"experiment_id", experimentID, "reason", reason, "confidence", result.Confidence)
	return StopDecision{Stopped: true, Reason: reason}, nil
}
