package models

import (
	"time"

	id "splitlab/pkg/domain"
)

// Assignment maps a user into a variant. Append-only; at most one live
// mapping per (experiment, user). Created once, never mutated.
type Assignment struct {
	ExperimentID id.ExperimentID   `json:"experiment_id"`
	UserID       id.UserID         `json:"user_id"`
	VariantID    id.VariantID      `json:"variant_id"`
	Context      map[string]string `json:"context,omitempty"`
	AssignedAt   time.Time         `json:"assigned_at"`
}

// ConversionEvent is one observed conversion. Append-only; aggregated,
// never mutated.
type ConversionEvent struct {
	ExperimentID id.ExperimentID   `json:"experiment_id"`
	VariantID    id.VariantID      `json:"variant_id"`
	UserID       id.UserID         `json:"user_id"`
	Value        float64           `json:"value"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// ConfidenceInterval is a symmetric interval around an estimate.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// VariantResult is derived from assignments and conversions on demand;
// it is never primary truth.
type VariantResult struct {
	VariantID          id.VariantID       `json:"variant_id"`
	Name               string             `json:"name"`
	IsControl          bool               `json:"is_control"`
	SampleSize         int64              `json:"sample_size"`
	Conversions        int64              `json:"conversions"`
	ConversionRate     float64            `json:"conversion_rate"`
	AverageValue       float64            `json:"average_value"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
}

// SegmentResult holds per-variant results restricted to one audience
// segment, keyed in AnalysisResult as "{dimension}:{value}".
type SegmentResult struct {
	SegmentName     string                         `json:"segment_name"`
	SegmentCriteria map[string]string              `json:"segment_criteria"`
	VariantResults  map[id.VariantID]VariantResult `json:"variant_results"`
}

// AnalysisResult is the outcome of one analysis cycle. The copy attached to
// a completed experiment is immutable.
type AnalysisResult struct {
	// Winner is nil when no variant significantly beats the control.
	Winner         *id.VariantID                  `json:"winner,omitempty"`
	Confidence     float64                        `json:"confidence"`
	PValue         float64                        `json:"p_value"`
	EffectSize     float64                        `json:"effect_size"`
	Improvement    float64                        `json:"improvement"`
	VariantResults map[id.VariantID]VariantResult `json:"variant_results"`
	Segments       map[string]SegmentResult       `json:"segments,omitempty"`
	Recommendation string                         `json:"recommendation"`
	ComputedAt     time.Time                      `json:"computed_at"`
}
