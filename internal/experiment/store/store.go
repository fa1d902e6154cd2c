// Package store persists experiments, assignments, and conversions.
//
// Stores are interface-driven to keep the domain logic testable and to allow
// swapping in-memory and Postgres persistence without rewiring business
// code. Memory implementations back unit tests and single-process
// deployments; Postgres is the durable source of truth.
package store

import (
	"context"
	"time"

	"splitlab/internal/experiment/models"
	id "splitlab/pkg/domain"
)

// VariantAggregate is the rolled-up state of one variant, computed by the
// store from assignments and conversions.
type VariantAggregate struct {
	SampleSize  int64
	Conversions int64
	AvgValue    float64
	StdValue    float64
}

// SegmentAggregate is a VariantAggregate set restricted to one
// (dimension, value) audience partition.
type SegmentAggregate struct {
	Dimension string
	Value     string
	Variants  map[id.VariantID]VariantAggregate
}

// ExperimentStore owns experiment rows and their lifecycle transitions.
type ExperimentStore interface {
	Create(ctx context.Context, exp *models.Experiment) error
	FindByID(ctx context.Context, experimentID id.ExperimentID) (*models.Experiment, error)
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Experiment, error)

	// Execute atomically runs validate then mutate against the current row
	// under per-experiment exclusion (mutex in memory, SELECT FOR UPDATE in
	// Postgres). The status check inside validate and the write inside
	// mutate therefore form a compare-and-set: concurrent stops cannot both
	// succeed. Returns the updated experiment.
	Execute(ctx context.Context, experimentID id.ExperimentID, validate func(*models.Experiment) error, mutate func(*models.Experiment)) (*models.Experiment, error)
}

// AssignmentStore is append-only: at most one live mapping per
// (experiment, user).
type AssignmentStore interface {
	// CreateIfAbsent persists the assignment unless one already exists for
	// the (experiment, user) pair, in which case the existing row wins.
	// The bool reports whether a new row was created. Losing the race is
	// harmless: both racers computed the identical variant.
	CreateIfAbsent(ctx context.Context, assignment models.Assignment) (models.Assignment, bool, error)

	Find(ctx context.Context, experimentID id.ExperimentID, userID id.UserID) (models.Assignment, error)
}

// ConversionStore appends conversion events and serves aggregate queries
// for the analysis engine.
type ConversionStore interface {
	Append(ctx context.Context, event models.ConversionEvent) error

	// VariantAggregates returns per-variant sample sizes (distinct assigned
	// users) and conversion counts (distinct converting users) for the
	// experiment.
	VariantAggregates(ctx context.Context, experimentID id.ExperimentID) (map[id.VariantID]VariantAggregate, error)

	// SegmentAggregates partitions the same aggregates by the value the
	// given dimension takes in each assignment's context. Users whose
	// context lacks the dimension are excluded.
	SegmentAggregates(ctx context.Context, experimentID id.ExperimentID, dimension string) ([]SegmentAggregate, error)
}

// StickyCache fronts the assignment store on the hot path. A miss is never
// an error: the deterministic hash is the fallback source of truth.
type StickyCache interface {
	GetVariant(ctx context.Context, experimentID id.ExperimentID, userID id.UserID) (id.VariantID, bool, error)
	SetVariant(ctx context.Context, experimentID id.ExperimentID, userID id.UserID, variantID id.VariantID, ttl time.Duration) error

	// IncrementConversions bumps the per-variant conversion counter used
	// for cheap operational visibility; Postgres remains source of truth.
	IncrementConversions(ctx context.Context, experimentID id.ExperimentID, variantID id.VariantID) error
}
