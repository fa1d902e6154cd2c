package models

import (
	"math"
	"time"

	id "splitlab/pkg/domain"
	dErrors "splitlab/pkg/domain-errors"
)

// Status is the lifecycle state of an experiment.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// legalTransitions encodes the lifecycle state machine:
// draft → running ⇄ paused, running → completed. Completed is terminal.
var legalTransitions = map[Status][]Status{
	StatusDraft:     {StatusRunning},
	StatusRunning:   {StatusPaused, StatusCompleted},
	StatusPaused:    {StatusRunning},
	StatusCompleted: {},
}

// CanTransitionTo reports whether moving to next is a legal transition.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Variant is one arm of an experiment, including the designated control.
type Variant struct {
	ID                id.VariantID `json:"id"`
	Name              string       `json:"name"`
	TrafficAllocation float64      `json:"traffic_allocation"`
	IsControl         bool         `json:"is_control"`
}

// MetricType distinguishes the decision metric from supporting ones.
type MetricType string

const (
	MetricPrimary   MetricType = "primary"
	MetricSecondary MetricType = "secondary"
)

// MetricKind distinguishes binary conversion metrics from value metrics
// (revenue, duration). It drives the variance model in effect-size
// computation.
type MetricKind string

const (
	KindConversion MetricKind = "conversion"
	KindValue      MetricKind = "value"
)

// Metric is a tracked outcome of an experiment.
type Metric struct {
	ID   id.MetricID `json:"id"`
	Name string      `json:"name"`
	Type MetricType  `json:"type"`
	Kind MetricKind  `json:"kind"`
}

// allocationTolerance is the permitted deviation of the variant traffic sum
// from 100.
const allocationTolerance = 0.01

// Experiment is the aggregate root. Mutated only through lifecycle
// operations; once completed, the attached AnalysisResult is frozen.
//
// Invariants:
//   - at least two variants, exactly one with IsControl
//   - traffic allocations sum to 100 within ±0.01
//   - at least one metric, exactly one with Type=primary
//   - Status transitions follow the lifecycle state machine
type Experiment struct {
	ID        id.ExperimentID `json:"id"`
	Name      string          `json:"name"`
	Status    Status          `json:"status"`
	Variants  []Variant       `json:"variants"`
	Metrics   []Metric        `json:"metrics"`
	Config    Configuration   `json:"config"`
	StartDate *time.Time      `json:"start_date,omitempty"`
	EndDate   *time.Time      `json:"end_date,omitempty"`
	Result    *AnalysisResult `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewExperiment validates the definition and returns a draft experiment.
func NewExperiment(experimentID id.ExperimentID, name string, variants []Variant, metrics []Metric, cfg Configuration, now time.Time) (*Experiment, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "experiment name is required")
	}
	if err := validateVariants(variants); err != nil {
		return nil, err
	}
	if err := validateMetrics(metrics); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Experiment{
		ID:        experimentID,
		Name:      name,
		Status:    StatusDraft,
		Variants:  variants,
		Metrics:   metrics,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func validateVariants(variants []Variant) error {
	if len(variants) < 2 {
		return dErrors.New(dErrors.CodeValidation, "experiment requires at least two variants")
	}
	controls := 0
	sum := 0.0
	for _, v := range variants {
		if v.IsControl {
			controls++
		}
		if v.TrafficAllocation < 0 || v.TrafficAllocation > 100 {
			return dErrors.Newf(dErrors.CodeValidation, "variant %q traffic allocation must be within [0,100]", v.Name)
		}
		sum += v.TrafficAllocation
	}
	if controls != 1 {
		return dErrors.Newf(dErrors.CodeValidation, "experiment requires exactly one control variant, got %d", controls)
	}
	if math.Abs(sum-100) > allocationTolerance {
		return dErrors.Newf(dErrors.CodeValidation, "variant traffic allocations must sum to 100, got %.2f", sum)
	}
	return nil
}

func validateMetrics(metrics []Metric) error {
	if len(metrics) == 0 {
		return dErrors.New(dErrors.CodeValidation, "experiment requires at least one metric")
	}
	primaries := 0
	for i, m := range metrics {
		switch m.Type {
		case MetricPrimary:
			primaries++
		case MetricSecondary:
		case "":
			metrics[i].Type = MetricSecondary
		default:
			return dErrors.Newf(dErrors.CodeValidation, "unknown metric type %q", m.Type)
		}
		if m.Kind == "" {
			metrics[i].Kind = KindConversion
		}
	}
	if primaries != 1 {
		return dErrors.Newf(dErrors.CodeValidation, "experiment requires exactly one primary metric, got %d", primaries)
	}
	return nil
}

// ControlVariant returns the designated control. The create-time invariant
// guarantees exactly one exists.
func (e *Experiment) ControlVariant() Variant {
	for _, v := range e.Variants {
		if v.IsControl {
			return v
		}
	}
	return Variant{}
}

// VariantByID looks up a variant by ID.
func (e *Experiment) VariantByID(variantID id.VariantID) (Variant, bool) {
	for _, v := range e.Variants {
		if v.ID == variantID {
			return v, true
		}
	}
	return Variant{}, false
}

// PrimaryMetric returns the experiment's decision metric.
func (e *Experiment) PrimaryMetric() Metric {
	for _, m := range e.Metrics {
		if m.Type == MetricPrimary {
			return m
		}
	}
	return Metric{}
}

// IsRunning reports whether the experiment currently accepts traffic.
func (e *Experiment) IsRunning() bool {
	return e.Status == StatusRunning
}

// CanStart checks the draft→running and paused→running transitions.
// Use with ApplyStart in Execute callbacks.
func (e *Experiment) CanStart() error {
	if !e.Status.CanTransitionTo(StatusRunning) {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot start experiment in status %q", e.Status)
	}
	return nil
}

// ApplyStart transitions the experiment to running. The start date is set
// only on the first start so a pause/resume cycle keeps the original clock
// for duration-based stopping.
func (e *Experiment) ApplyStart(now time.Time) {
	e.Status = StatusRunning
	if e.StartDate == nil {
		t := now
		e.StartDate = &t
	}
	e.UpdatedAt = now
}

// CanPause checks the running→paused transition.
func (e *Experiment) CanPause() error {
	if !e.Status.CanTransitionTo(StatusPaused) {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot pause experiment in status %q", e.Status)
	}
	return nil
}

// ApplyPause transitions the experiment to paused.
func (e *Experiment) ApplyPause(now time.Time) {
	e.Status = StatusPaused
	e.UpdatedAt = now
}

// CanStop checks the running→completed transition. Stopping an already
// completed experiment fails here, which is what makes stop idempotent at
// the service layer: only one concurrent caller observes running.
func (e *Experiment) CanStop() error {
	if !e.Status.CanTransitionTo(StatusCompleted) {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot stop experiment in status %q", e.Status)
	}
	return nil
}

// ApplyStop transitions the experiment to completed and freezes the result.
func (e *Experiment) ApplyStop(result *AnalysisResult, now time.Time) {
	e.Status = StatusCompleted
	e.Result = result
	t := now
	e.EndDate = &t
	e.UpdatedAt = now
}

// ElapsedDays returns whole days since the experiment first started, or 0
// for experiments that never started.
func (e *Experiment) ElapsedDays(now time.Time) int {
	if e.StartDate == nil {
		return 0
	}
	return int(now.Sub(*e.StartDate).Hours() / 24)
}
