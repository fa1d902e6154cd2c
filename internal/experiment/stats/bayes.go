package stats

import (
	"math"
	"math/rand"
)

// sampler draws from Beta and Gamma distributions using an injected PRNG so
// Monte-Carlo results are reproducible under a fixed seed.
type sampler struct {
	rng *rand.Rand
}

// Beta draws one sample from Beta(alpha, beta) as the ratio of two
// Gamma(shape, 1) draws.
func (s *sampler) Beta(alpha, beta float64) float64 {
	x := s.Gamma(alpha)
	y := s.Gamma(beta)
	if x+y == 0 {
		return 0
	}
	return x / (x + y)
}

// Gamma draws one sample from Gamma(shape, 1) with the Marsaglia–Tsang
// squeeze method. Shapes below 1 are boosted to shape+1 and scaled back by
// U^(1/shape).
func (s *sampler) Gamma(shape float64) float64 {
	if shape < 1 {
		u := s.rng.Float64()
		return s.Gamma(shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		x := s.rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := s.rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// probabilityOfImprovement estimates P(treatment rate > control rate) under
// Beta–Binomial posteriors with uniform priors, using `samples` Monte-Carlo
// draws per arm.
func probabilityOfImprovement(s *sampler, controlConversions, controlN, treatmentConversions, treatmentN int64, samples int) float64 {
	alphaC := float64(controlConversions) + 1
	betaC := float64(controlN-controlConversions) + 1
	alphaT := float64(treatmentConversions) + 1
	betaT := float64(treatmentN-treatmentConversions) + 1

	wins := 0
	for range samples {
		if s.Beta(alphaT, betaT) > s.Beta(alphaC, betaC) {
			wins++
		}
	}
	return float64(wins) / float64(samples)
}
