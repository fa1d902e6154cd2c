// Package service orchestrates the experiment lifecycle: creation,
// start/pause/stop transitions, user assignment, conversion tracking, and
// on-demand analysis.
//
// Transitions are enforced through the store's Execute callback so that the
// status check and the write happen under per-experiment exclusion;
// concurrent conflicting transitions resolve to exactly one winner.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"splitlab/internal/experiment/events"
	"splitlab/internal/experiment/metrics"
	"splitlab/internal/experiment/models"
	"splitlab/internal/experiment/stats"
	"splitlab/internal/experiment/store"
	id "splitlab/pkg/domain"
	dErrors "splitlab/pkg/domain-errors"
	"splitlab/pkg/platform/sentinel"
	"splitlab/pkg/requestcontext"
)

// ManualStopReason marks operator-initiated stops, as opposed to the
// sequential evaluator's boundary reasons.
const ManualStopReason = "Manual stop"

// Service orchestrates experiment operations.
type Service struct {
	experiments ExperimentStore
	assignments AssignmentStore
	conversions ConversionStore
	cache       StickyCache
	publisher   Publisher
	traffic     TrafficEstimator
	analyzer    *stats.Analyzer
	logger      *slog.Logger
	metrics     *metrics.Metrics

	// analyses deduplicates concurrent analysis runs per experiment.
	analyses singleflight.Group

	// lastEvaluated throttles sequential evaluation per experiment to the
	// configured check interval; keyed by ExperimentID.
	lastEvaluated sync.Map
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithPublisher(publisher Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithStickyCache(cache StickyCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithTrafficEstimator(estimator TrafficEstimator) Option {
	return func(s *Service) {
		s.traffic = estimator
	}
}

func WithAnalyzer(analyzer *stats.Analyzer) Option {
	return func(s *Service) {
		s.analyzer = analyzer
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(experiments ExperimentStore, assignments AssignmentStore, conversions ConversionStore, opts ...Option) *Service {
	s := &Service{
		experiments: experiments,
		assignments: assignments,
		conversions: conversions,
		analyzer:    stats.New(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams is the validated input for Create.
type CreateParams struct {
	Name     string
	Variants []models.Variant
	Metrics  []models.Metric
	Config   models.Configuration
}

// Create validates the definition and persists a draft experiment. Variant
// and metric IDs are issued here; callers supply names and allocations.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Experiment, error) {
	variants := make([]models.Variant, len(params.Variants))
	for i, v := range params.Variants {
		v.ID = id.NewVariantID()
		variants[i] = v
	}
	metricDefs := make([]models.Metric, len(params.Metrics))
	for i, m := range params.Metrics {
		m.ID = id.NewMetricID()
		metricDefs[i] = m
	}

	exp, err := models.NewExperiment(id.NewExperimentID(), params.Name, variants, metricDefs, params.Config, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.experiments.Create(ctx, exp); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "experiment already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create experiment")
	}

	s.publish(ctx, events.Event{
		Type:         events.TypeCreated,
		ExperimentID: exp.ID,
		OccurredAt:   exp.CreatedAt,
	})
	s.logger.InfoContext(ctx, "experiment created",
		"experiment_id", exp.ID, "variants", len(exp.Variants))
	return exp, nil
}

// Get returns the experiment by ID.
func (s *Service) Get(ctx context.Context, experimentID id.ExperimentID) (*models.Experiment, error) {
	exp, err := s.experiments.FindByID(ctx, experimentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "experiment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load experiment")
	}
	return exp, nil
}

// ListByStatus returns all experiments in the given status.
func (s *Service) ListByStatus(ctx context.Context, status models.Status) ([]*models.Experiment, error) {
	exps, err := s.experiments.ListByStatus(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list experiments")
	}
	return exps, nil
}

// Start transitions a draft or paused experiment to running. Before the
// first start, the configured traffic estimator must project at least
// MinimumSampleSize × variant count users over the experiment window.
func (s *Service) Start(ctx context.Context, experimentID id.ExperimentID) (*models.Experiment, error) {
	now := requestcontext.Now(ctx)

	exp, err := s.experiments.Execute(ctx, experimentID,
		func(e *models.Experiment) error {
			if err := e.CanStart(); err != nil {
				return err
			}
			return s.checkTraffic(ctx, e)
		},
		func(e *models.Experiment) {
			e.ApplyStart(now)
		},
	)
	if err != nil {
		return nil, translateExecuteErr(err, "failed to start experiment")
	}

	s.metrics.IncrementTransition(string(models.StatusRunning))
	s.publish(ctx, events.Event{
		Type:         events.TypeStarted,
		ExperimentID: exp.ID,
		OccurredAt:   now,
	})
	s.logger.InfoContext(ctx, "experiment started", "experiment_id", exp.ID)
	return exp, nil
}

// checkTraffic rejects starts that cannot reach statistical power. Skipped
// for resumes (the original start already passed it) and when no estimator
// is configured.
func (s *Service) checkTraffic(ctx context.Context, exp *models.Experiment) error {
	if s.traffic == nil || exp.StartDate != nil {
		return nil
	}
	estimated, err := s.traffic.EstimateTraffic(ctx, exp)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to estimate traffic")
	}
	required := int64(exp.Config.MinimumSampleSize) * int64(len(exp.Variants))
	if estimated < required {
		return dErrors.Newf(dErrors.CodeInsufficientTraffic,
			"estimated traffic %d below required %d (%d per variant across %d variants)",
			estimated, required, exp.Config.MinimumSampleSize, len(exp.Variants))
	}
	return nil
}

// Pause suspends a running experiment. Existing assignments stay valid;
// new assignment requests are refused while paused.
func (s *Service) Pause(ctx context.Context, experimentID id.ExperimentID) (*models.Experiment, error) {
	now := requestcontext.Now(ctx)

	exp, err := s.experiments.Execute(ctx, experimentID,
		func(e *models.Experiment) error { return e.CanPause() },
		func(e *models.Experiment) { e.ApplyPause(now) },
	)
	if err != nil {
		return nil, translateExecuteErr(err, "failed to pause experiment")
	}

	s.metrics.IncrementTransition(string(models.StatusPaused))
	s.publish(ctx, events.Event{
		Type:         events.TypePaused,
		ExperimentID: exp.ID,
		OccurredAt:   now,
	})
	s.logger.InfoContext(ctx, "experiment paused", "experiment_id", exp.ID)
	return exp, nil
}

// Stop completes a running experiment, freezing a final analysis onto it.
// The status check and the write run under the store's per-experiment
// exclusion, so exactly one of any concurrent stops succeeds; the rest see
// an invalid-state error.
func (s *Service) Stop(ctx context.Context, experimentID id.ExperimentID, reason string) (*models.Experiment, error) {
	if reason == "" {
		reason = ManualStopReason
	}
	now := requestcontext.Now(ctx)

	// The final analysis is computed outside the critical section; it reads
	// append-only data and stale-by-milliseconds aggregates are acceptable
	// in a frozen result.
	result, err := s.Analyze(ctx, experimentID)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeInsufficientData) {
		return nil, err
	}

	exp, err := s.experiments.Execute(ctx, experimentID,
		func(e *models.Experiment) error { return e.CanStop() },
		func(e *models.Experiment) { e.ApplyStop(result, now) },
	)
	if err != nil {
		return nil, translateExecuteErr(err, "failed to stop experiment")
	}

	s.metrics.IncrementTransition(string(models.StatusCompleted))
	s.publish(ctx, events.Event{
		Type:         events.TypeStopped,
		ExperimentID: exp.ID,
		OccurredAt:   now,
		Reason:       reason,
		Result:       result,
	})
	s.logger.InfoContext(ctx, "experiment stopped",
		"experiment_id", exp.ID, "reason", reason)
	return exp, nil
}

// Analyze runs a full analysis cycle: fetch every variant's aggregates,
// then the per-dimension segment aggregates when segmentation is enabled,
// then hand everything to the pure analyzer. Concurrent calls for the same
// experiment share one run.
func (s *Service) Analyze(ctx context.Context, experimentID id.ExperimentID) (*models.AnalysisResult, error) {
	v, err, _ := s.analyses.Do(experimentID.String(), func() (any, error) {
		return s.analyze(ctx, experimentID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.AnalysisResult), nil
}

func (s *Service) analyze(ctx context.Context, experimentID id.ExperimentID) (*models.AnalysisResult, error) {
	started := time.Now()

	exp, err := s.Get(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	aggregates, err := s.conversions.VariantAggregates(ctx, experimentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load variant aggregates")
	}

	in := stats.Input{
		Experiment: exp,
		Aggregates: aggregates,
		Now:        requestcontext.Now(ctx),
	}
	if exp.Config.Segmentation.Enabled {
		in.Segments = make(map[string][]store.SegmentAggregate, len(exp.Config.Segmentation.Dimensions))
		for _, dimension := range exp.Config.Segmentation.Dimensions {
			aggs, err := s.conversions.SegmentAggregates(ctx, experimentID, dimension)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load segment aggregates")
			}
			in.Segments[dimension] = aggs
		}
	}

	result, err := s.analyzer.Analyze(in)
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveAnalysisLatency(time.Since(started))
	return result, nil
}

// translateExecuteErr maps store sentinels to domain errors while passing
// through validation failures from the Can* callbacks untouched.
func translateExecuteErr(err error, internalMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "experiment not found")
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
}

// publish delivers an event, logging rather than failing the operation
// when the sink is down. Events are observability, not source of truth.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event",
			"type", event.Type, "experiment_id", event.ExperimentID, "error", err)
	}
}
