package service

import (
	"context"
	"errors"

	"go.uber.org/mock/gomock"

	"splitlab/internal/experiment/assignment"
	"splitlab/internal/experiment/events"
	"splitlab/internal/experiment/models"
	"splitlab/internal/experiment/service/mocks"
	id "splitlab/pkg/domain"
	dErrors "splitlab/pkg/domain-errors"
	"splitlab/pkg/platform/sentinel"
)

// =============================================================================
// Assignment Tests
// =============================================================================

func (s *ExperimentServiceSuite) TestAssignUserToVariant() {
	ctx := context.Background()

	s.Run("assignment is sticky across calls", func() {
		exp := s.create()
		s.start(exp)

		first, err := s.service.AssignUserToVariant(ctx, exp.ID, "user-1", nil)
		s.Require().NoError(err)

		for range 5 {
			again, err := s.service.AssignUserToVariant(ctx, exp.ID, "user-1", nil)
			s.Require().NoError(err)
			s.Equal(first.VariantID, again.VariantID)
		}
	})

	s.Run("cache loss falls back to the durable store", func() {
		exp := s.create()
		s.start(exp)

		first, err := s.service.AssignUserToVariant(ctx, exp.ID, "user-2", nil)
		s.Require().NoError(err)

		// a service without the cache must resolve the same variant
		bare := New(s.experiments, s.assignments, s.conversions)
		again, err := bare.AssignUserToVariant(ctx, exp.ID, "user-2", nil)
		s.Require().NoError(err)
		s.Equal(first.VariantID, again.VariantID)
	})

	s.Run("assignment context is persisted for segmentation", func() {
		exp := s.create()
		s.start(exp)

		_, err := s.service.AssignUserToVariant(ctx, exp.ID, "user-3", map[string]string{"country": "de"})
		s.Require().NoError(err)

		stored, err := s.assignments.Find(ctx, exp.ID, "user-3")
		s.Require().NoError(err)
		s.Equal("de", stored.Context["country"])
	})

	s.Run("draft experiment refuses assignment", func() {
		exp := s.create()
		_, err := s.service.AssignUserToVariant(ctx, exp.ID, "user-4", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("paused experiment refuses assignment but keeps old ones", func() {
		exp := s.create()
		s.start(exp)
		before, err := s.service.AssignUserToVariant(ctx, exp.ID, "user-5", nil)
		s.Require().NoError(err)

		_, err = s.service.Pause(ctx, exp.ID)
		s.Require().NoError(err)

		_, err = s.service.AssignUserToVariant(ctx, exp.ID, "user-6", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		stored, err := s.assignments.Find(ctx, exp.ID, "user-5")
		s.Require().NoError(err)
		s.Equal(before.VariantID, stored.VariantID)
	})

	s.Run("empty user id is invalid input", func() {
		exp := s.create()
		s.start(exp)
		_, err := s.service.AssignUserToVariant(ctx, exp.ID, "", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown experiment is not found", func() {
		_, err := s.service.AssignUserToVariant(ctx, id.NewExperimentID(), "user-7", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Conversion Tests
// =============================================================================

func (s *ExperimentServiceSuite) TestTrackConversion() {
	ctx := context.Background()

	s.Run("conversion lands on the assigned variant", func() {
		exp := s.create()
		s.start(exp)

		assigned, err := s.service.AssignUserToVariant(ctx, exp.ID, "user-1", nil)
		s.Require().NoError(err)
		s.Require().NoError(s.service.TrackConversion(ctx, exp.ID, "user-1", 25.0, nil))

		aggs, err := s.conversions.VariantAggregates(ctx, exp.ID)
		s.Require().NoError(err)
		s.Equal(int64(1), aggs[assigned.VariantID].Conversions)
	})

	s.Run("repeat conversions count one converting user", func() {
		exp := s.create()
		s.start(exp)

		assigned, err := s.service.AssignUserToVariant(ctx, exp.ID, "user-2", nil)
		s.Require().NoError(err)
		for range 3 {
			s.Require().NoError(s.service.TrackConversion(ctx, exp.ID, "user-2", 1, nil))
		}

		aggs, err := s.conversions.VariantAggregates(ctx, exp.ID)
		s.Require().NoError(err)
		s.Equal(int64(1), aggs[assigned.VariantID].Conversions)
	})

	s.Run("emits a tracked event and bumps the counter", func() {
		exp := s.create()
		s.start(exp)

		assigned, err := s.service.AssignUserToVariant(ctx, exp.ID, "user-3", nil)
		s.Require().NoError(err)
		s.Require().NoError(s.service.TrackConversion(ctx, exp.ID, "user-3", 1, nil))

		evts := s.publisher.ByType(events.TypeConversionTracked)
		s.Require().Len(evts, 1)
		s.Equal(assigned.VariantID, evts[0].VariantID)
		s.Equal(id.UserID("user-3"), evts[0].UserID)

		s.Equal(int64(1), s.cache.ConversionCount(exp.ID, assigned.VariantID))
	})

	s.Run("unassigned user is not found", func() {
		exp := s.create()
		s.start(exp)
		err := s.service.TrackConversion(ctx, exp.ID, "stranger", 1, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("non-running experiment refuses conversions", func() {
		exp := s.create()
		s.start(exp)
		_, err := s.service.AssignUserToVariant(ctx, exp.ID, "user-4", nil)
		s.Require().NoError(err)
		_, err = s.service.Pause(ctx, exp.ID)
		s.Require().NoError(err)

		err = s.service.TrackConversion(ctx, exp.ID, "user-4", 1, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

// =============================================================================
// Hot Path Degradation Tests
// =============================================================================

// Justification for unit tests:
// Assignment and conversion tracking sit on the request hot path, so
// infrastructure failures must never surface to the caller: the contract is
// log-and-absorb with a neutral result. Domain refusals (unknown experiment,
// not running, no assignment) still surface. These tests wire failing stores
// through mocks and pin the absorption behavior.
func (s *ExperimentServiceSuite) TestAssignAbsorbsInfrastructureFailures() {
	ctx := context.Background()
	ctrl := gomock.NewController(s.T())

	s.Run("lookup outage falls back to the deterministic hash", func() {
		exp := s.create()
		s.start(exp)

		failing := mocks.NewMockAssignmentStore(ctrl)
		failing.EXPECT().
			Find(gomock.Any(), exp.ID, id.UserID("user-1")).
			Return(models.Assignment{}, errors.New("connection refused"))
		failing.EXPECT().
			CreateIfAbsent(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, a models.Assignment) (models.Assignment, bool, error) {
				return a, true, nil
			})

		degraded := New(s.experiments, failing, s.conversions)
		assigned, err := degraded.AssignUserToVariant(ctx, exp.ID, "user-1", nil)
		s.Require().NoError(err)
		s.Equal(assignment.Assign(exp, "user-1").ID, assigned.VariantID)
	})

	s.Run("persist outage still serves the computed variant", func() {
		exp := s.create()
		s.start(exp)

		failing := mocks.NewMockAssignmentStore(ctrl)
		failing.EXPECT().
			Find(gomock.Any(), exp.ID, id.UserID("user-2")).
			Return(models.Assignment{}, sentinel.ErrNotFound)
		failing.EXPECT().
			CreateIfAbsent(gomock.Any(), gomock.Any()).
			Return(models.Assignment{}, false, errors.New("connection refused"))

		degraded := New(s.experiments, failing, s.conversions)
		assigned, err := degraded.AssignUserToVariant(ctx, exp.ID, "user-2", nil)
		s.Require().NoError(err)
		s.Equal(assignment.Assign(exp, "user-2").ID, assigned.VariantID)
	})

	s.Run("experiment load outage yields no assignment", func() {
		failingExperiments := mocks.NewMockExperimentStore(ctrl)
		failingExperiments.EXPECT().
			FindByID(gomock.Any(), gomock.Any()).
			Return(nil, errors.New("connection refused"))

		degraded := New(failingExperiments, s.assignments, s.conversions)
		assigned, err := degraded.AssignUserToVariant(ctx, id.NewExperimentID(), "user-3", nil)
		s.Require().NoError(err)
		s.True(assigned.VariantID.IsNil())
	})
}

func (s *ExperimentServiceSuite) TestTrackConversionAbsorbsInfrastructureFailures() {
	ctx := context.Background()
	ctrl := gomock.NewController(s.T())

	s.Run("append outage drops the event without error", func() {
		exp := s.create()
		s.start(exp)
		_, err := s.service.AssignUserToVariant(ctx, exp.ID, "user-1", nil)
		s.Require().NoError(err)

		failing := mocks.NewMockConversionStore(ctrl)
		failing.EXPECT().
			Append(gomock.Any(), gomock.Any()).
			Return(errors.New("connection refused"))

		publisher := events.NewMemoryPublisher()
		degraded := New(s.experiments, s.assignments, failing, WithPublisher(publisher))
		s.Require().NoError(degraded.TrackConversion(ctx, exp.ID, "user-1", 1, nil))

		// the dropped event is not announced downstream
		s.Empty(publisher.ByType(events.TypeConversionTracked))
	})

	s.Run("assignment lookup outage drops the event without error", func() {
		exp := s.create()
		s.start(exp)

		failing := mocks.NewMockAssignmentStore(ctrl)
		failing.EXPECT().
			Find(gomock.Any(), exp.ID, id.UserID("user-2")).
			Return(models.Assignment{}, errors.New("connection refused"))

		degraded := New(s.experiments, failing, s.conversions)
		s.Require().NoError(degraded.TrackConversion(ctx, exp.ID, "user-2", 1, nil))
	})

	s.Run("experiment load outage drops the event without error", func() {
		failingExperiments := mocks.NewMockExperimentStore(ctrl)
		failingExperiments.EXPECT().
			FindByID(gomock.Any(), gomock.Any()).
			Return(nil, errors.New("connection refused"))

		degraded := New(failingExperiments, s.assignments, s.conversions)
		s.Require().NoError(degraded.TrackConversion(ctx, id.NewExperimentID(), "user-3", 1, nil))
	})
}
