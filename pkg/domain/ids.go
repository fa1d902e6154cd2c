// Package domain provides typed identifiers shared across the engine.
//
// IDs are distinct uuid-backed types so an ExperimentID can never be passed
// where a VariantID is expected; the compiler enforces it. UserID is an
// opaque string because users are identified by whatever the calling
// application uses (device IDs, account IDs, anonymous cookies).
package domain

import (
	"github.com/google/uuid"

	dErrors "splitlab/pkg/domain-errors"
)

type (
	// ExperimentID identifies an experiment.
	ExperimentID uuid.UUID

	// VariantID identifies one arm of an experiment.
	VariantID uuid.UUID

	// MetricID identifies a tracked metric within an experiment.
	MetricID uuid.UUID
)

// UserID is the caller-supplied subject identifier. Opaque, never parsed.
type UserID string

func (id ExperimentID) String() string { return uuid.UUID(id).String() }
func (id VariantID) String() string    { return uuid.UUID(id).String() }
func (id MetricID) String() string     { return uuid.UUID(id).String() }

func (id ExperimentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id VariantID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id MetricID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// The ID types implement encoding.TextMarshaler so they serialize as UUID
// strings in JSON bodies, JSONB blobs, and as map keys in analysis results.

func (id ExperimentID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id VariantID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id MetricID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }

func (id *ExperimentID) UnmarshalText(text []byte) error {
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	*id = ExperimentID(u)
	return nil
}

func (id *VariantID) UnmarshalText(text []byte) error {
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	*id = VariantID(u)
	return nil
}

func (id *MetricID) UnmarshalText(text []byte) error {
	u, err := uuid.ParseBytes(text)
	if err != nil {
		return err
	}
	*id = MetricID(u)
	return nil
}

// NewExperimentID returns a fresh random experiment ID.
func NewExperimentID() ExperimentID { return ExperimentID(uuid.New()) }

// NewVariantID returns a fresh random variant ID.
func NewVariantID() VariantID { return VariantID(uuid.New()) }

// NewMetricID returns a fresh random metric ID.
func NewMetricID() MetricID { return MetricID(uuid.New()) }

// ParseExperimentID parses an experiment ID, rejecting empty, malformed,
// and nil UUIDs.
func ParseExperimentID(s string) (ExperimentID, error) {
	u, err := parseUUID(s, "experiment id")
	return ExperimentID(u), err
}

// ParseVariantID parses a variant ID, rejecting empty, malformed, and nil
// UUIDs.
func ParseVariantID(s string) (VariantID, error) {
	u, err := parseUUID(s, "variant id")
	return VariantID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil UUID", what)
	}
	return u, nil
}
