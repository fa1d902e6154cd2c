// Package events defines the typed lifecycle events the engine emits and
// the publisher contract downstream sinks implement.
//
// The core never depends on a particular transport; the Kafka publisher in
// internal/platform/kafka and the in-memory publisher here are both
// drop-in implementations.
package events

import (
	"context"
	"sync"
	"time"

	"splitlab/internal/experiment/models"
	id "splitlab/pkg/domain"
)

// Type classifies a lifecycle event.
type Type string

const (
	TypeCreated           Type = "created"
	TypeStarted           Type = "started"
	TypePaused            Type = "paused"
	TypeStopped           Type = "stopped"
	TypeConversionTracked Type = "conversion:tracked"
)

// Event is emitted from lifecycle operations. Keep it transport-agnostic so
// sinks can fan out.
type Event struct {
	Type         Type            `json:"type"`
	ExperimentID id.ExperimentID `json:"experiment_id"`
	OccurredAt   time.Time       `json:"occurred_at"`

	// Reason is set on stopped events ("Manual stop", "Futility boundary
	// reached", ...).
	Reason string `json:"reason,omitempty"`

	// Result carries the frozen analysis on stopped events.
	Result *models.AnalysisResult `json:"result,omitempty"`

	// VariantID and UserID are set on conversion:tracked events.
	VariantID id.VariantID `json:"variant_id,omitempty"`
	UserID    id.UserID    `json:"user_id,omitempty"`
}

// Publisher delivers lifecycle events to an external sink. Implementations
// must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// MemoryPublisher collects events in memory. Used in tests and as the
// fallback sink when Kafka is not configured.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a snapshot of everything published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// ByType filters the snapshot to one event type.
func (p *MemoryPublisher) ByType(t Type) []Event {
	var out []Event
	for _, e := range p.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
