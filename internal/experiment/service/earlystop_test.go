package service

import (
	"context"
	"fmt"
	"time"

	"splitlab/internal/experiment/events"
	"splitlab/internal/experiment/models"
	id "splitlab/pkg/domain"
	"splitlab/pkg/requestcontext"
)

// =============================================================================
// Early Stopping Tests
// =============================================================================

func withEarlyStopping(futility, efficacy float64) func(*CreateParams) {
	return func(p *CreateParams) {
		p.Config.EarlyStopping = models.EarlyStoppingRules{
			Enabled:          true,
			CheckInterval:    60,
			FutilityBoundary: futility,
			EfficacyBoundary: efficacy,
		}
	}
}

// seedShaped assigns users through the service and appends conversions
// directly to the store so per-variant rates land where the test needs
// them without tripping the synchronous post-conversion evaluation.
func (s *ExperimentServiceSuite) seedShaped(exp *models.Experiment, users int, controlRate, treatmentRate float64) {
	s.T().Helper()
	ctx := context.Background()

	sampled := map[id.VariantID]int{}
	converted := map[id.VariantID]int{}
	for i := range users {
		userID := id.UserID(fmt.Sprintf("user-%d", i))
		assigned, err := s.service.AssignUserToVariant(ctx, exp.ID, userID, nil)
		s.Require().NoError(err)

		variant, ok := exp.VariantByID(assigned.VariantID)
		s.Require().True(ok)
		rate := treatmentRate
		if variant.IsControl {
			rate = controlRate
		}

		sampled[assigned.VariantID]++
		if float64(converted[assigned.VariantID]) < rate*float64(sampled[assigned.VariantID]) {
			converted[assigned.VariantID]++
			s.Require().NoError(s.conversions.Append(ctx, models.ConversionEvent{
				ExperimentID: exp.ID,
				VariantID:    assigned.VariantID,
				UserID:       userID,
				Value:        1,
				OccurredAt:   time.Now(),
			}))
		}
	}
}

func (s *ExperimentServiceSuite) TestEvaluateEarlyStop() {
	ctx := context.Background()

	s.Run("efficacy boundary stops a clear winner", func() {
		exp := s.create(withEarlyStopping(0.25, 0.95))
		s.start(exp)
		s.seedShaped(exp, 400, 0.10, 0.30)

		decision, err := s.service.EvaluateEarlyStop(ctx, exp.ID)
		s.Require().NoError(err)
		s.True(decision.Stopped)
		s.Equal(EfficacyStopReason, decision.Reason)

		stored, err := s.service.Get(ctx, exp.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, stored.Status)
		s.Require().NotNil(stored.Result)
		s.NotNil(stored.Result.Winner)

		evts := s.publisher.ByType(events.TypeStopped)
		s.Require().Len(evts, 1)
		s.Equal(EfficacyStopReason, evts[0].Reason)
	})

	s.Run("futility boundary stops a hopeless experiment", func() {
		exp := s.create(withEarlyStopping(0.25, 0.95))
		s.start(exp)
		s.seedShaped(exp, 400, 0.20, 0.20)

		decision, err := s.service.EvaluateEarlyStop(ctx, exp.ID)
		s.Require().NoError(err)
		s.True(decision.Stopped)
		s.Equal(FutilityStopReason, decision.Reason)
	})

	s.Run("futility wins over an exceeded duration", func() {
		exp := s.create(withEarlyStopping(0.25, 0.95))
		s.start(exp)
		s.seedShaped(exp, 400, 0.20, 0.20)

		future := requestcontext.WithTime(ctx, time.Now().Add(40*24*time.Hour))
		decision, err := s.service.EvaluateEarlyStop(future, exp.ID)
		s.Require().NoError(err)
		s.True(decision.Stopped)
		s.Equal(FutilityStopReason, decision.Reason)
	})

	s.Run("maximum duration stops an inconclusive experiment", func() {
		exp := s.create(withEarlyStopping(0.25, 0.95))
		s.start(exp)
		// confidence lands between the boundaries
		s.seedShaped(exp, 400, 0.20, 0.23)

		decision, err := s.service.EvaluateEarlyStop(ctx, exp.ID)
		s.Require().NoError(err)
		s.False(decision.Stopped)

		future := requestcontext.WithTime(ctx, time.Now().Add(40*24*time.Hour))
		decision, err = s.service.EvaluateEarlyStop(future, exp.ID)
		s.Require().NoError(err)
		s.True(decision.Stopped)
		s.Equal(DurationStopReason, decision.Reason)
	})

	s.Run("disabled rules are a no-op", func() {
		exp := s.create()
		s.start(exp)
		s.seedShaped(exp, 400, 0.10, 0.30)

		decision, err := s.service.EvaluateEarlyStop(ctx, exp.ID)
		s.Require().NoError(err)
		s.False(decision.Stopped)
	})

	s.Run("non-running experiment is a no-op", func() {
		exp := s.create(withEarlyStopping(0.25, 0.95))
		decision, err := s.service.EvaluateEarlyStop(ctx, exp.ID)
		s.Require().NoError(err)
		s.False(decision.Stopped)
	})

	s.Run("no traffic yet keeps the experiment running", func() {
		exp := s.create(withEarlyStopping(0.25, 0.95))
		s.start(exp)

		decision, err := s.service.EvaluateEarlyStop(ctx, exp.ID)
		s.Require().NoError(err)
		s.False(decision.Stopped)

		stored, err := s.service.Get(ctx, exp.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusRunning, stored.Status)
	})
}

func (s *ExperimentServiceSuite) TestEvaluateEarlyStopHonorsCheckInterval() {
	base := time.Now()

	exp := s.create(withEarlyStopping(0.25, 0.95))
	s.start(exp)

	// The first evaluation has nothing to act on but consumes the interval.
	decision, err := s.service.EvaluateEarlyStop(requestcontext.WithTime(context.Background(), base), exp.ID)
	s.Require().NoError(err)
	s.False(decision.Stopped)

	// Data now clears the efficacy boundary, but the interval has not
	// elapsed yet: the evaluation is skipped.
	s.seedShaped(exp, 400, 0.10, 0.30)
	midway := requestcontext.WithTime(context.Background(), base.Add(30*time.Second))
	decision, err = s.service.EvaluateEarlyStop(midway, exp.ID)
	s.Require().NoError(err)
	s.False(decision.Stopped)

	stored, err := s.service.Get(context.Background(), exp.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRunning, stored.Status)

	later := requestcontext.WithTime(context.Background(), base.Add(2*time.Minute))
	decision, err = s.service.EvaluateEarlyStop(later, exp.ID)
	s.Require().NoError(err)
	s.True(decision.Stopped)
	s.Equal(EfficacyStopReason, decision.Reason)
}

func (s *ExperimentServiceSuite) TestTrackConversionTriggersEvaluation() {
	ctx := context.Background()

	exp := s.create(withEarlyStopping(0.25, 0.95))
	s.start(exp)
	s.seedShaped(exp, 400, 0.10, 0.30)

	// the next tracked conversion runs the evaluator synchronously
	userID := id.UserID("user-0")
	s.Require().NoError(s.service.TrackConversion(ctx, exp.ID, userID, 1, nil))

	stored, err := s.service.Get(ctx, exp.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, stored.Status)

	evts := s.publisher.ByType(events.TypeStopped)
	s.Require().Len(evts, 1)
	s.Equal(EfficacyStopReason, evts[0].Reason)
}
