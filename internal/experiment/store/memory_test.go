package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitlab/internal/experiment/models"
	id "splitlab/pkg/domain"
	dErrors "splitlab/pkg/domain-errors"
	"splitlab/pkg/platform/sentinel"
)

func storedExperiment(t *testing.T) *models.Experiment {
	t.Helper()
	exp, err := models.NewExperiment(
		id.NewExperimentID(),
		"persisted",
		[]models.Variant{
			{ID: id.NewVariantID(), Name: "control", TrafficAllocation: 50, IsControl: true},
			{ID: id.NewVariantID(), Name: "treatment", TrafficAllocation: 50},
		},
		[]models.Metric{{ID: id.NewMetricID(), Name: "purchase", Type: models.MetricPrimary}},
		models.Configuration{},
		time.Now().UTC(),
	)
	require.NoError(t, err)
	return exp
}

func TestMemoryExperimentStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create then find", func(t *testing.T) {
		s := NewMemoryExperimentStore()
		exp := storedExperiment(t)
		require.NoError(t, s.Create(ctx, exp))

		found, err := s.FindByID(ctx, exp.ID)
		require.NoError(t, err)
		assert.Equal(t, exp.ID, found.ID)
		assert.Equal(t, models.StatusDraft, found.Status)
	})

	t.Run("duplicate create conflicts", func(t *testing.T) {
		s := NewMemoryExperimentStore()
		exp := storedExperiment(t)
		require.NoError(t, s.Create(ctx, exp))
		assert.ErrorIs(t, s.Create(ctx, exp), sentinel.ErrConflict)
	})

	t.Run("find unknown", func(t *testing.T) {
		s := NewMemoryExperimentStore()
		_, err := s.FindByID(ctx, id.NewExperimentID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("returned experiments are isolated copies", func(t *testing.T) {
		s := NewMemoryExperimentStore()
		exp := storedExperiment(t)
		require.NoError(t, s.Create(ctx, exp))

		found, err := s.FindByID(ctx, exp.ID)
		require.NoError(t, err)
		found.Name = "tampered"
		found.Variants[0].TrafficAllocation = 0

		again, err := s.FindByID(ctx, exp.ID)
		require.NoError(t, err)
		assert.Equal(t, "persisted", again.Name)
		assert.InDelta(t, 50, again.Variants[0].TrafficAllocation, 1e-9)
	})

	t.Run("list by status", func(t *testing.T) {
		s := NewMemoryExperimentStore()
		draft := storedExperiment(t)
		require.NoError(t, s.Create(ctx, draft))

		running := storedExperiment(t)
		require.NoError(t, s.Create(ctx, running))
		_, err := s.Execute(ctx, running.ID,
			func(e *models.Experiment) error { return e.CanStart() },
			func(e *models.Experiment) { e.ApplyStart(time.Now()) },
		)
		require.NoError(t, err)

		list, err := s.ListByStatus(ctx, models.StatusRunning)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, running.ID, list[0].ID)

		drafts, err := s.ListByStatus(ctx, models.StatusDraft)
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, draft.ID, drafts[0].ID)
	})
}

func TestMemoryExperimentStoreExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("validate failure leaves the row untouched", func(t *testing.T) {
		s := NewMemoryExperimentStore()
		exp := storedExperiment(t)
		require.NoError(t, s.Create(ctx, exp))

		_, err := s.Execute(ctx, exp.ID,
			func(e *models.Experiment) error { return e.CanStop() },
			func(e *models.Experiment) { e.ApplyStop(nil, time.Now()) },
		)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))

		found, err := s.FindByID(ctx, exp.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusDraft, found.Status)
	})

	t.Run("unknown experiment", func(t *testing.T) {
		s := NewMemoryExperimentStore()
		_, err := s.Execute(ctx, id.NewExperimentID(),
			func(*models.Experiment) error { return nil },
			func(*models.Experiment) {},
		)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	// Justification for unit tests:
	// The whole point of Execute is that the validate callback and the write
	// form one atomic compare-and-set. Racing stops against the same row
	// must yield exactly one success; every loser must observe the invalid
	// transition, not a double write.
	t.Run("concurrent stops yield exactly one success", func(t *testing.T) {
		s := NewMemoryExperimentStore()
		exp := storedExperiment(t)
		require.NoError(t, s.Create(ctx, exp))
		_, err := s.Execute(ctx, exp.ID,
			func(e *models.Experiment) error { return e.CanStart() },
			func(e *models.Experiment) { e.ApplyStart(time.Now()) },
		)
		require.NoError(t, err)

		const racers = 16
		var wg sync.WaitGroup
		results := make(chan error, racers)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Execute(ctx, exp.ID,
					func(e *models.Experiment) error { return e.CanStop() },
					func(e *models.Experiment) { e.ApplyStop(nil, time.Now()) },
				)
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		var successes, invalid int
		for err := range results {
			switch {
			case err == nil:
				successes++
			case dErrors.HasCode(err, dErrors.CodeInvalidState):
				invalid++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, successes)
		assert.Equal(t, racers-1, invalid)
	})
}

func TestMemoryAssignmentStore(t *testing.T) {
	ctx := context.Background()
	expID := id.NewExperimentID()
	variantID := id.NewVariantID()

	t.Run("create if absent keeps the first row", func(t *testing.T) {
		s := NewMemoryAssignmentStore()
		first := models.Assignment{ExperimentID: expID, UserID: "u1", VariantID: variantID, AssignedAt: time.Now()}

		stored, created, err := s.CreateIfAbsent(ctx, first)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, variantID, stored.VariantID)

		other := first
		other.VariantID = id.NewVariantID()
		stored, created, err = s.CreateIfAbsent(ctx, other)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, variantID, stored.VariantID, "existing row must win")
	})

	t.Run("find", func(t *testing.T) {
		s := NewMemoryAssignmentStore()
		a := models.Assignment{ExperimentID: expID, UserID: "u1", VariantID: variantID, Context: map[string]string{"country": "de"}}
		_, _, err := s.CreateIfAbsent(ctx, a)
		require.NoError(t, err)

		found, err := s.Find(ctx, expID, "u1")
		require.NoError(t, err)
		assert.Equal(t, "de", found.Context["country"])

		_, err = s.Find(ctx, expID, "stranger")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		_, err = s.Find(ctx, id.NewExperimentID(), "u1")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestMemoryConversionStoreAggregates(t *testing.T) {
	ctx := context.Background()
	expID := id.NewExperimentID()
	control := id.NewVariantID()
	treatment := id.NewVariantID()

	seed := func(t *testing.T) (*MemoryAssignmentStore, *MemoryConversionStore) {
		t.Helper()
		assignments := NewMemoryAssignmentStore()
		conversions := NewMemoryConversionStore(assignments)

		for i := 0; i < 10; i++ {
			variantID := control
			country := "de"
			if i >= 5 {
				variantID = treatment
			}
			if i%2 == 0 {
				country = "us"
			}
			_, _, err := assignments.CreateIfAbsent(ctx, models.Assignment{
				ExperimentID: expID,
				UserID:       id.UserID(fmt.Sprintf("u%d", i)),
				VariantID:    variantID,
				Context:      map[string]string{"country": country},
			})
			require.NoError(t, err)
		}
		return assignments, conversions
	}

	t.Run("sample sizes come from assignments", func(t *testing.T) {
		_, conversions := seed(t)
		aggs, err := conversions.VariantAggregates(ctx, expID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), aggs[control].SampleSize)
		assert.Equal(t, int64(5), aggs[treatment].SampleSize)
		assert.Zero(t, aggs[control].Conversions)
	})

	t.Run("conversions count distinct users", func(t *testing.T) {
		_, conversions := seed(t)
		// u0 converts three times; only one distinct converter.
		for i := 0; i < 3; i++ {
			require.NoError(t, conversions.Append(ctx, models.ConversionEvent{
				ExperimentID: expID, VariantID: control, UserID: "u0", Value: 10,
			}))
		}
		require.NoError(t, conversions.Append(ctx, models.ConversionEvent{
			ExperimentID: expID, VariantID: control, UserID: "u2", Value: 30,
		}))

		aggs, err := conversions.VariantAggregates(ctx, expID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), aggs[control].Conversions)
		// Average and spread are over events, not users: (10+10+10+30)/4.
		assert.InDelta(t, 15, aggs[control].AvgValue, 1e-9)
		assert.InDelta(t, 10, aggs[control].StdValue, 1e-9)
	})

	t.Run("events from other experiments are ignored", func(t *testing.T) {
		_, conversions := seed(t)
		require.NoError(t, conversions.Append(ctx, models.ConversionEvent{
			ExperimentID: id.NewExperimentID(), VariantID: control, UserID: "u0",
		}))

		aggs, err := conversions.VariantAggregates(ctx, expID)
		require.NoError(t, err)
		assert.Zero(t, aggs[control].Conversions)
	})

	t.Run("segment aggregates partition by context dimension", func(t *testing.T) {
		_, conversions := seed(t)
		require.NoError(t, conversions.Append(ctx, models.ConversionEvent{
			ExperimentID: expID, VariantID: control, UserID: "u0", Value: 1,
		}))
		require.NoError(t, conversions.Append(ctx, models.ConversionEvent{
			ExperimentID: expID, VariantID: treatment, UserID: "u5", Value: 1,
		}))

		segments, err := conversions.SegmentAggregates(ctx, expID, "country")
		require.NoError(t, err)
		require.Len(t, segments, 2)

		// Sorted by value: de before us.
		de, us := segments[0], segments[1]
		assert.Equal(t, "de", de.Value)
		assert.Equal(t, "us", us.Value)

		// Even indices are us: u0,u2,u4 control, u6,u8 treatment.
		assert.Equal(t, int64(3), us.Variants[control].SampleSize)
		assert.Equal(t, int64(2), us.Variants[treatment].SampleSize)
		assert.Equal(t, int64(1), us.Variants[control].Conversions)
		assert.InDelta(t, 1, us.Variants[control].AvgValue, 1e-9)

		assert.Equal(t, int64(2), de.Variants[control].SampleSize)
		assert.Equal(t, int64(3), de.Variants[treatment].SampleSize)
		assert.Equal(t, int64(1), de.Variants[treatment].Conversions)
		assert.Zero(t, de.Variants[control].Conversions)
	})

	t.Run("users without the dimension are excluded", func(t *testing.T) {
		assignments := NewMemoryAssignmentStore()
		conversions := NewMemoryConversionStore(assignments)
		_, _, err := assignments.CreateIfAbsent(ctx, models.Assignment{
			ExperimentID: expID, UserID: "bare", VariantID: control,
		})
		require.NoError(t, err)

		segments, err := conversions.SegmentAggregates(ctx, expID, "country")
		require.NoError(t, err)
		assert.Empty(t, segments)
	})
}

func TestMemoryStickyCache(t *testing.T) {
	ctx := context.Background()
	expID := id.NewExperimentID()
	variantID := id.NewVariantID()

	t.Run("set then get", func(t *testing.T) {
		c := NewMemoryStickyCache()
		require.NoError(t, c.SetVariant(ctx, expID, "u1", variantID, time.Minute))

		got, ok, err := c.GetVariant(ctx, expID, "u1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, variantID, got)
	})

	t.Run("miss", func(t *testing.T) {
		c := NewMemoryStickyCache()
		_, ok, err := c.GetVariant(ctx, expID, "nobody")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("expired entries read as misses", func(t *testing.T) {
		c := NewMemoryStickyCache()
		require.NoError(t, c.SetVariant(ctx, expID, "u1", variantID, -time.Second))

		_, ok, err := c.GetVariant(ctx, expID, "u1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("conversion counters accumulate per variant", func(t *testing.T) {
		c := NewMemoryStickyCache()
		other := id.NewVariantID()
		for i := 0; i < 3; i++ {
			require.NoError(t, c.IncrementConversions(ctx, expID, variantID))
		}
		require.NoError(t, c.IncrementConversions(ctx, expID, other))

		assert.Equal(t, int64(3), c.ConversionCount(expID, variantID))
		assert.Equal(t, int64(1), c.ConversionCount(expID, other))
	})
}
