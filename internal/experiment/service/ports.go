package service

import (
	"context"
	"time"

	"splitlab/internal/experiment/events"
	"splitlab/internal/experiment/models"
	"splitlab/internal/experiment/store"
	id "splitlab/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// ExperimentStore defines the interface for experiment persistence.
// Mirrors store.ExperimentStore; defined here to keep the service
// mockable without importing implementations.
type ExperimentStore interface {
	Create(ctx context.Context, exp *models.Experiment) error
	FindByID(ctx context.Context, experimentID id.ExperimentID) (*models.Experiment, error)
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Experiment, error)
	Execute(ctx context.Context, experimentID id.ExperimentID, validate func(*models.Experiment) error, mutate func(*models.Experiment)) (*models.Experiment, error)
}

// AssignmentStore defines the interface for durable user-to-variant
// mappings.
type AssignmentStore interface {
	CreateIfAbsent(ctx context.Context, assignment models.Assignment) (models.Assignment, bool, error)
	Find(ctx context.Context, experimentID id.ExperimentID, userID id.UserID) (models.Assignment, error)
}

// ConversionStore defines the interface for conversion events and the
// aggregate queries behind analysis.
type ConversionStore interface {
	Append(ctx context.Context, event models.ConversionEvent) error
	VariantAggregates(ctx context.Context, experimentID id.ExperimentID) (map[id.VariantID]store.VariantAggregate, error)
	SegmentAggregates(ctx context.Context, experimentID id.ExperimentID, dimension string) ([]store.SegmentAggregate, error)
}

// StickyCache fronts assignment lookups on the hot path. Miss or failure
// falls through to the deterministic hash.
type StickyCache interface {
	GetVariant(ctx context.Context, experimentID id.ExperimentID, userID id.UserID) (id.VariantID, bool, error)
	SetVariant(ctx context.Context, experimentID id.ExperimentID, userID id.UserID, variantID id.VariantID, ttl time.Duration) error
	IncrementConversions(ctx context.Context, experimentID id.ExperimentID, variantID id.VariantID) error
}

// Publisher delivers lifecycle events to downstream sinks.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// TrafficEstimator predicts the traffic an experiment will receive over
// its configured duration. Used by the start-time sample check.
type TrafficEstimator interface {
	EstimateTraffic(ctx context.Context, exp *models.Experiment) (int64, error)
}
