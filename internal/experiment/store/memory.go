package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"splitlab/internal/experiment/models"
	id "splitlab/pkg/domain"
	"splitlab/pkg/platform/sentinel"
)

// MemoryExperimentStore implements ExperimentStore with a mutex-guarded map.
type MemoryExperimentStore struct {
	mu          sync.RWMutex
	experiments map[id.ExperimentID]*models.Experiment
}

func NewMemoryExperimentStore() *MemoryExperimentStore {
	return &MemoryExperimentStore{experiments: make(map[id.ExperimentID]*models.Experiment)}
}

func (s *MemoryExperimentStore) Create(_ context.Context, exp *models.Experiment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.experiments[exp.ID]; ok {
		return sentinel.ErrConflict
	}
	s.experiments[exp.ID] = cloneExperiment(exp)
	return nil
}

func (s *MemoryExperimentStore) FindByID(_ context.Context, experimentID id.ExperimentID) (*models.Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp, ok := s.experiments[experimentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneExperiment(exp), nil
}

func (s *MemoryExperimentStore) ListByStatus(_ context.Context, status models.Status) ([]*models.Experiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Experiment
	for _, exp := range s.experiments {
		if exp.Status == status {
			out = append(out, cloneExperiment(exp))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Execute holds the store lock across validate and mutate so the status
// check and the write are one atomic step.
func (s *MemoryExperimentStore) Execute(_ context.Context, experimentID id.ExperimentID, validate func(*models.Experiment) error, mutate func(*models.Experiment)) (*models.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.experiments[experimentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := cloneExperiment(exp)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.experiments[experimentID] = working
	return cloneExperiment(working), nil
}

// cloneExperiment deep-copies via JSON so callers can never mutate shared
// state behind the store's back.
func cloneExperiment(exp *models.Experiment) *models.Experiment {
	raw, err := json.Marshal(exp)
	if err != nil {
		panic(fmt.Sprintf("clone experiment: %v", err))
	}
	var out models.Experiment
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("clone experiment: %v", err))
	}
	return &out
}

type assignmentKey struct {
	experimentID id.ExperimentID
	userID       id.UserID
}

// MemoryAssignmentStore implements AssignmentStore in memory.
type MemoryAssignmentStore struct {
	mu          sync.RWMutex
	assignments map[assignmentKey]models.Assignment
}

func NewMemoryAssignmentStore() *MemoryAssignmentStore {
	return &MemoryAssignmentStore{assignments: make(map[assignmentKey]models.Assignment)}
}

func (s *MemoryAssignmentStore) CreateIfAbsent(_ context.Context, assignment models.Assignment) (models.Assignment, bool, error) {
	key := assignmentKey{assignment.ExperimentID, assignment.UserID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.assignments[key]; ok {
		return existing, false, nil
	}
	s.assignments[key] = assignment
	return assignment, true, nil
}

func (s *MemoryAssignmentStore) Find(_ context.Context, experimentID id.ExperimentID, userID id.UserID) (models.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[assignmentKey{experimentID, userID}]
	if !ok {
		return models.Assignment{}, sentinel.ErrNotFound
	}
	return a, nil
}

// listByExperiment is used by the conversion store to derive sample sizes.
func (s *MemoryAssignmentStore) listByExperiment(experimentID id.ExperimentID) []models.Assignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Assignment
	for key, a := range s.assignments {
		if key.experimentID == experimentID {
			out = append(out, a)
		}
	}
	return out
}

// MemoryConversionStore implements ConversionStore. It needs the assignment
// store because sample sizes come from assignments, not conversions.
type MemoryConversionStore struct {
	mu          sync.RWMutex
	events      []models.ConversionEvent
	assignments *MemoryAssignmentStore
}

func NewMemoryConversionStore(assignments *MemoryAssignmentStore) *MemoryConversionStore {
	return &MemoryConversionStore{assignments: assignments}
}

func (s *MemoryConversionStore) Append(_ context.Context, event models.ConversionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryConversionStore) VariantAggregates(_ context.Context, experimentID id.ExperimentID) (map[id.VariantID]VariantAggregate, error) {
	assignments := s.assignments.listByExperiment(experimentID)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aggregate(experimentID, assignments, nil), nil
}

func (s *MemoryConversionStore) SegmentAggregates(_ context.Context, experimentID id.ExperimentID, dimension string) ([]SegmentAggregate, error) {
	assignments := s.assignments.listByExperiment(experimentID)

	// Partition assigned users by the dimension value in their context.
	partitions := make(map[string][]models.Assignment)
	for _, a := range assignments {
		value, ok := a.Context[dimension]
		if !ok {
			continue
		}
		partitions[value] = append(partitions[value], a)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]string, 0, len(partitions))
	for value := range partitions {
		values = append(values, value)
	}
	sort.Strings(values)

	out := make([]SegmentAggregate, 0, len(values))
	for _, value := range values {
		members := make(map[id.UserID]struct{}, len(partitions[value]))
		for _, a := range partitions[value] {
			members[a.UserID] = struct{}{}
		}
		out = append(out, SegmentAggregate{
			Dimension: dimension,
			Value:     value,
			Variants:  s.aggregate(experimentID, partitions[value], members),
		})
	}
	return out, nil
}

// aggregate rolls assignments and conversions up per variant. members, when
// non-nil, restricts conversion events to users inside the partition.
// Callers must hold s.mu.
func (s *MemoryConversionStore) aggregate(experimentID id.ExperimentID, assignments []models.Assignment, members map[id.UserID]struct{}) map[id.VariantID]VariantAggregate {
	type acc struct {
		converted map[id.UserID]struct{}
		sum       float64
		sumSq     float64
		n         int64
	}

	aggs := make(map[id.VariantID]VariantAggregate)
	accs := make(map[id.VariantID]*acc)

	for _, a := range assignments {
		agg := aggs[a.VariantID]
		agg.SampleSize++
		aggs[a.VariantID] = agg
	}

	for _, e := range s.events {
		if e.ExperimentID != experimentID {
			continue
		}
		if members != nil {
			if _, ok := members[e.UserID]; !ok {
				continue
			}
		}
		st := accs[e.VariantID]
		if st == nil {
			st = &acc{converted: make(map[id.UserID]struct{})}
			accs[e.VariantID] = st
		}
		st.converted[e.UserID] = struct{}{}
		st.sum += e.Value
		st.sumSq += e.Value * e.Value
		st.n++
	}

	for variantID, st := range accs {
		agg := aggs[variantID]
		agg.Conversions = int64(len(st.converted))
		if st.n > 0 {
			agg.AvgValue = st.sum / float64(st.n)
		}
		if st.n > 1 {
			variance := (st.sumSq - st.sum*st.sum/float64(st.n)) / float64(st.n-1)
			if variance > 0 {
				agg.StdValue = math.Sqrt(variance)
			}
		}
		aggs[variantID] = agg
	}
	return aggs
}

type cacheEntry struct {
	variantID id.VariantID
	expiresAt time.Time
}

// MemoryStickyCache implements StickyCache for tests and cache-less
// deployments.
type MemoryStickyCache struct {
	mu       sync.Mutex
	entries  map[assignmentKey]cacheEntry
	counters map[string]int64
}

func NewMemoryStickyCache() *MemoryStickyCache {
	return &MemoryStickyCache{
		entries:  make(map[assignmentKey]cacheEntry),
		counters: make(map[string]int64),
	}
}

func (c *MemoryStickyCache) GetVariant(_ context.Context, experimentID id.ExperimentID, userID id.UserID) (id.VariantID, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[assignmentKey{experimentID, userID}]
	if !ok || time.Now().After(entry.expiresAt) {
		return id.VariantID{}, false, nil
	}
	return entry.variantID, true, nil
}

func (c *MemoryStickyCache) SetVariant(_ context.Context, experimentID id.ExperimentID, userID id.UserID, variantID id.VariantID, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[assignmentKey{experimentID, userID}] = cacheEntry{variantID: variantID, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *MemoryStickyCache) IncrementConversions(_ context.Context, experimentID id.ExperimentID, variantID id.VariantID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[conversionCounterKey(experimentID, variantID)]++
	return nil
}

// ConversionCount returns the counter value, for tests.
func (c *MemoryStickyCache) ConversionCount(experimentID id.ExperimentID, variantID id.VariantID) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[conversionCounterKey(experimentID, variantID)]
}
