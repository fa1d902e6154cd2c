package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"splitlab/internal/experiment/models"
	"splitlab/internal/experiment/service"
	id "splitlab/pkg/domain"
)

type stubLister struct {
	experiments []*models.Experiment
	err         error
}

func (s *stubLister) ListByStatus(_ context.Context, _ models.Status) ([]*models.Experiment, error) {
	return s.experiments, s.err
}

type stubEvaluator struct {
	evaluated []id.ExperimentID
	failOn    map[id.ExperimentID]error
}

func (s *stubEvaluator) EvaluateEarlyStop(_ context.Context, experimentID id.ExperimentID) (service.StopDecision, error) {
	s.evaluated = append(s.evaluated, experimentID)
	if err := s.failOn[experimentID]; err != nil {
		return service.StopDecision{}, err
	}
	return service.StopDecision{Stopped: true, Reason: service.EfficacyStopReason}, nil
}

func runningExperiment(earlyStopping bool) *models.Experiment {
	return &models.Experiment{
		ID:     id.NewExperimentID(),
		Status: models.StatusRunning,
		Config: models.Configuration{
			EarlyStopping: models.EarlyStoppingRules{Enabled: earlyStopping},
		},
	}
}

func TestSweepEvaluatesRunningExperiments(t *testing.T) {
	a := runningExperiment(true)
	b := runningExperiment(true)
	lister := &stubLister{experiments: []*models.Experiment{a, b}}
	evaluator := &stubEvaluator{}

	New(lister, evaluator, time.Minute).Sweep(context.Background())

	assert.Equal(t, []id.ExperimentID{a.ID, b.ID}, evaluator.evaluated)
}

func TestSweepSkipsExperimentsWithoutEarlyStopping(t *testing.T) {
	enabled := runningExperiment(true)
	disabled := runningExperiment(false)
	lister := &stubLister{experiments: []*models.Experiment{disabled, enabled}}
	evaluator := &stubEvaluator{}

	New(lister, evaluator, time.Minute).Sweep(context.Background())

	assert.Equal(t, []id.ExperimentID{enabled.ID}, evaluator.evaluated)
}

func TestSweepIsolatesFailures(t *testing.T) {
	failing := runningExperiment(true)
	healthy := runningExperiment(true)
	lister := &stubLister{experiments: []*models.Experiment{failing, healthy}}
	evaluator := &stubEvaluator{
		failOn: map[id.ExperimentID]error{failing.ID: errors.New("aggregate query timeout")},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	New(lister, evaluator, time.Minute, WithLogger(logger)).Sweep(context.Background())

	// the failure is logged, not fatal; the sweep reaches the next one
	assert.Equal(t, []id.ExperimentID{failing.ID, healthy.ID}, evaluator.evaluated)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	lister := &stubLister{}
	evaluator := &stubEvaluator{}
	s := New(lister, evaluator, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
