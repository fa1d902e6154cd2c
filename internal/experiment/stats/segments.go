package stats

import (
	"splitlab/internal/experiment/models"
	"splitlab/internal/experiment/store"
	id "splitlab/pkg/domain"
)

// segmentResults derives per-segment variant breakdowns. Keys are
// "dimension:value". Variants with no samples inside a segment are
// skipped rather than failing the whole analysis; segments are for
// exploration, not for the headline comparison.
func segmentResults(exp *models.Experiment, segments map[string][]store.SegmentAggregate) map[string]models.SegmentResult {
	out := make(map[string]models.SegmentResult)
	for dimension, aggs := range segments {
		for _, agg := range aggs {
			key := dimension + ":" + agg.Value
			sr := models.SegmentResult{
				SegmentName:     key,
				SegmentCriteria: map[string]string{dimension: agg.Value},
				VariantResults:  make(map[id.VariantID]models.VariantResult),
			}
			for _, v := range exp.Variants {
				va, ok := agg.Variants[v.ID]
				if !ok || va.SampleSize == 0 {
					continue
				}
				sr.VariantResults[v.ID] = variantResult(v, va)
			}
			if len(sr.VariantResults) > 0 {
				out[key] = sr
			}
		}
	}
	return out
}
