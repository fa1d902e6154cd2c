// Package stats computes per-variant metrics and treatment-versus-control
// comparisons for experiments.
//
// The analyzer is pure CPU: all variant data is fetched by the caller
// before analysis begins, so nothing here blocks on I/O. Monte-Carlo draws
// use an injected seedable PRNG to keep results reproducible in tests.
package stats

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"splitlab/internal/experiment/models"
	"splitlab/internal/experiment/store"
	id "splitlab/pkg/domain"
	dErrors "splitlab/pkg/domain-errors"
)

// DefaultSamples is the Monte-Carlo draw count per variant for Bayesian
// comparisons.
const DefaultSamples = 10000

// zScore95 is the two-sided 95% normal quantile used for per-variant
// confidence intervals.
const zScore95 = 1.96

// Analyzer runs the statistical comparison configured on an experiment.
type Analyzer struct {
	samples int
	seed    func() int64
}

type Option func(*Analyzer)

// WithSamples overrides the Monte-Carlo draw count.
func WithSamples(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.samples = n
		}
	}
}

// WithSeed fixes the PRNG seed so Bayesian results are reproducible.
func WithSeed(seed int64) Option {
	return func(a *Analyzer) {
		a.seed = func() int64 { return seed }
	}
}

func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		samples: DefaultSamples,
		seed:    func() int64 { return time.Now().UnixNano() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Input carries everything an analysis needs, pre-fetched.
type Input struct {
	Experiment *models.Experiment
	Aggregates map[id.VariantID]store.VariantAggregate

	// Segments maps each configured dimension to its per-segment
	// aggregates. Nil when segmentation is disabled.
	Segments map[string][]store.SegmentAggregate

	Now time.Time
}

// comparison is one treatment-versus-control evaluation.
type comparison struct {
	variantID   id.VariantID
	improvement float64
	pValue      float64
	confidence  float64
	significant bool
}

// Analyze computes per-variant results, runs the configured comparison for
// every non-control variant, and selects a winner.
//
// Winner selection keeps the original semantics: among significant
// variants the one with the largest raw improvement wins, ties resolved by
// stored order. It does not re-rank by confidence.
func (a *Analyzer) Analyze(in Input) (*models.AnalysisResult, error) {
	exp := in.Experiment
	control := exp.ControlVariant()

	variantResults := make(map[id.VariantID]models.VariantResult, len(exp.Variants))
	for _, v := range exp.Variants {
		agg := in.Aggregates[v.ID]
		if agg.SampleSize == 0 {
			return nil, dErrors.Newf(dErrors.CodeInsufficientData, "variant %q has no samples", v.Name)
		}
		variantResults[v.ID] = variantResult(v, agg)
	}

	rng := &sampler{rng: rand.New(rand.NewSource(a.seed()))}
	controlAgg := in.Aggregates[control.ID]
	level := exp.Config.ConfidenceLevel

	var (
		comparisons []comparison
		winner      *comparison
		leader      *comparison
	)
	for _, v := range exp.Variants {
		if v.IsControl {
			continue
		}
		var cmp comparison
		switch exp.Config.Method {
		case models.MethodBayesian:
			cmp = a.compareBayesian(rng, controlAgg, in.Aggregates[v.ID], level)
		default:
			cmp = compareFrequentist(controlAgg, in.Aggregates[v.ID], level)
		}
		cmp.variantID = v.ID
		comparisons = append(comparisons, cmp)

		last := len(comparisons) - 1
		if leader == nil || cmp.improvement > leader.improvement {
			leader = &comparisons[last]
		}
		if cmp.significant && (winner == nil || cmp.improvement > winner.improvement) {
			winner = &comparisons[last]
		}
	}

	result := &models.AnalysisResult{
		VariantResults: variantResults,
		ComputedAt:     in.Now,
	}

	// The overall stats come from the winning comparison, or from the
	// leading one when nothing is significant so sequential evaluation
	// still sees a confidence.
	selected := winner
	if selected == nil {
		selected = leader
	}
	if selected != nil {
		result.Confidence = selected.confidence
		result.PValue = selected.pValue
		result.Improvement = selected.improvement
		result.EffectSize = effectSize(exp.PrimaryMetric(), controlAgg, in.Aggregates[selected.variantID])
	}
	if winner != nil {
		winnerID := winner.variantID
		result.Winner = &winnerID
	}

	if exp.Config.MultipleTestingCorrection && len(exp.Variants) > 2 && selected != nil {
		result.PValue = bonferroni(result.PValue, len(exp.Variants))
	}

	if in.Segments != nil {
		result.Segments = segmentResults(exp, in.Segments)
	}

	result.Recommendation = recommendation(exp, result, winner)
	return result, nil
}

// variantResult derives the presentation metrics for one variant.
func variantResult(v models.Variant, agg store.VariantAggregate) models.VariantResult {
	rate := float64(agg.Conversions) / float64(agg.SampleSize)
	se := math.Sqrt(rate * (1 - rate) / float64(agg.SampleSize))
	return models.VariantResult{
		VariantID:      v.ID,
		Name:           v.Name,
		IsControl:      v.IsControl,
		SampleSize:     agg.SampleSize,
		Conversions:    agg.Conversions,
		ConversionRate: rate,
		AverageValue:   agg.AvgValue,
		ConfidenceInterval: models.ConfidenceInterval{
			Lower: rate - zScore95*se,
			Upper: rate + zScore95*se,
		},
	}
}

// compareFrequentist runs a pooled two-proportion z-test.
func compareFrequentist(control, treatment store.VariantAggregate, level float64) comparison {
	nC := float64(control.SampleSize)
	nT := float64(treatment.SampleSize)
	rateC := float64(control.Conversions) / nC
	rateT := float64(treatment.Conversions) / nT

	pooled := (rateC*nC + rateT*nT) / (nC + nT)
	se := math.Sqrt(pooled * (1 - pooled) * (1/nC + 1/nT))

	pValue := 1.0
	if se > 0 {
		z := (rateT - rateC) / se
		pValue = 2 * (1 - normalCDF(math.Abs(z)))
	}

	return comparison{
		improvement: improvementPercent(rateC, rateT),
		pValue:      pValue,
		confidence:  1 - pValue,
		significant: pValue < 1-level,
	}
}

// compareBayesian estimates P(treatment > control) under Beta–Binomial
// posteriors. The reported p-value is the complement of that probability,
// a convention kept so both methods populate the same result fields.
func (a *Analyzer) compareBayesian(s *sampler, control, treatment store.VariantAggregate, level float64) comparison {
	prob := probabilityOfImprovement(s,
		control.Conversions, control.SampleSize,
		treatment.Conversions, treatment.SampleSize,
		a.samples,
	)
	rateC := float64(control.Conversions) / float64(control.SampleSize)
	rateT := float64(treatment.Conversions) / float64(treatment.SampleSize)

	return comparison{
		improvement: improvementPercent(rateC, rateT),
		pValue:      1 - prob,
		confidence:  prob,
		significant: prob > level,
	}
}

// improvementPercent is the relative lift of treatment over control. A
// zero control rate yields 0 rather than a division blow-up.
func improvementPercent(rateC, rateT float64) float64 {
	if rateC == 0 {
		return 0
	}
	return (rateT - rateC) / rateC * 100
}

// effectSize is the standardized mean difference with pooled variance.
// Conversion metrics use the binomial variance rate·(1-rate); value
// metrics fall back to the mean×0.5 heuristic inherited from the original
// engine (not statistically derived; see DESIGN.md).
func effectSize(metric models.Metric, control, treatment store.VariantAggregate) float64 {
	nC := float64(control.SampleSize)
	nT := float64(treatment.SampleSize)

	var meanC, meanT, varC, varT float64
	if metric.Kind == models.KindValue {
		meanC, meanT = control.AvgValue, treatment.AvgValue
		varC = meanC * 0.5
		varT = meanT * 0.5
	} else {
		meanC = float64(control.Conversions) / nC
		meanT = float64(treatment.Conversions) / nT
		varC = meanC * (1 - meanC)
		varT = meanT * (1 - meanT)
	}

	if nC+nT <= 2 {
		return 0
	}
	pooled := ((nC-1)*varC + (nT-1)*varT) / (nC + nT - 2)
	if pooled <= 0 {
		return 0
	}
	return (meanT - meanC) / math.Sqrt(pooled)
}

// bonferroni corrects the selected p-value for k-1 treatment comparisons.
// This deliberately corrects only the winning comparison, not every
// pairwise test (inherited behavior, see DESIGN.md).
func bonferroni(pValue float64, variantCount int) float64 {
	return math.Min(pValue*float64(variantCount-1), 1)
}

func recommendation(exp *models.Experiment, result *models.AnalysisResult, winner *comparison) string {
	if winner == nil {
		return "No variant significantly outperforms the control. Keep the experiment running or revisit the sample size."
	}
	name := winner.variantID.String()
	if v, ok := exp.VariantByID(winner.variantID); ok {
		name = v.Name
	}
	return fmt.Sprintf("Variant %q outperforms the control with %.1f%% improvement at %.1f%% confidence. Consider rolling it out.",
		name, winner.improvement, winner.confidence*100)
}
