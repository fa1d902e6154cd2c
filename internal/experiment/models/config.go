package models

import (
	dErrors "splitlab/pkg/domain-errors"
)

// StatisticalMethod selects the comparison used by the analysis engine.
type StatisticalMethod string

const (
	MethodFrequentist StatisticalMethod = "frequentist"
	MethodBayesian    StatisticalMethod = "bayesian"
)

// Configuration governs sample requirements, analysis method, and stopping
// behavior for one experiment.
type Configuration struct {
	// MinimumSampleSize is the per-variant sample floor used by the
	// start-time traffic check.
	MinimumSampleSize int `json:"minimum_sample_size"`

	// MinimumDuration and MaximumDuration bound the experiment runtime,
	// in days.
	MinimumDuration int `json:"minimum_duration"`
	MaximumDuration int `json:"maximum_duration"`

	Method StatisticalMethod `json:"statistical_method"`

	// ConfidenceLevel is the significance threshold for both methods.
	ConfidenceLevel float64 `json:"confidence_level"`

	// MultipleTestingCorrection applies Bonferroni to the selected
	// winner's p-value when more than two variants are compared.
	MultipleTestingCorrection bool `json:"multiple_testing_correction"`

	Segmentation  SegmentationConfig `json:"segmentation"`
	EarlyStopping EarlyStoppingRules `json:"early_stopping_rules"`
}

// SegmentationConfig lists audience dimensions to break results down by.
type SegmentationConfig struct {
	Enabled    bool     `json:"enabled"`
	Dimensions []string `json:"dimensions,omitempty"`
}

// EarlyStoppingRules configures the sequential evaluation of a running
// experiment. CheckInterval is in seconds.
type EarlyStoppingRules struct {
	Enabled          bool    `json:"enabled"`
	CheckInterval    int     `json:"check_interval"`
	FutilityBoundary float64 `json:"futility_boundary"`
	EfficacyBoundary float64 `json:"efficacy_boundary"`
}

const (
	defaultMinimumSampleSize = 100
	defaultMaximumDuration   = 30
	defaultConfidenceLevel   = 0.95
)

func (c Configuration) withDefaults() Configuration {
	if c.MinimumSampleSize == 0 {
		c.MinimumSampleSize = defaultMinimumSampleSize
	}
	if c.MaximumDuration == 0 {
		c.MaximumDuration = defaultMaximumDuration
	}
	if c.Method == "" {
		c.Method = MethodFrequentist
	}
	if c.ConfidenceLevel == 0 {
		c.ConfidenceLevel = defaultConfidenceLevel
	}
	return c
}

func (c Configuration) validate() error {
	if c.Method != MethodFrequentist && c.Method != MethodBayesian {
		return dErrors.Newf(dErrors.CodeValidation, "unknown statistical method %q", c.Method)
	}
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return dErrors.New(dErrors.CodeValidation, "confidence level must be within (0,1)")
	}
	if c.MinimumSampleSize < 0 || c.MinimumDuration < 0 || c.MaximumDuration < 0 {
		return dErrors.New(dErrors.CodeValidation, "sample size and durations must be non-negative")
	}
	if c.MinimumDuration > c.MaximumDuration {
		return dErrors.New(dErrors.CodeValidation, "minimum duration exceeds maximum duration")
	}
	if c.Segmentation.Enabled && len(c.Segmentation.Dimensions) == 0 {
		return dErrors.New(dErrors.CodeValidation, "segmentation enabled without dimensions")
	}
	if c.EarlyStopping.Enabled {
		if c.EarlyStopping.FutilityBoundary < 0 || c.EarlyStopping.FutilityBoundary > 1 {
			return dErrors.New(dErrors.CodeValidation, "futility boundary must be within [0,1]")
		}
		if c.EarlyStopping.EfficacyBoundary < 0 || c.EarlyStopping.EfficacyBoundary > 1 {
			return dErrors.New(dErrors.CodeValidation, "efficacy boundary must be within [0,1]")
		}
		if c.EarlyStopping.FutilityBoundary >= c.EarlyStopping.EfficacyBoundary {
			return dErrors.New(dErrors.CodeValidation, "futility boundary must be below efficacy boundary")
		}
	}
	return nil
}
