package stats

import "math"

// Abramowitz–Stegun 26.2.17 constants for the normal CDF approximation.
// Absolute error < 7.5e-8, well inside what a two-proportion test needs.
const (
	asP  = 0.2316419
	asB1 = 0.319381530
	asB2 = -0.356563782
	asB3 = 1.781477937
	asB4 = -1.821255978
	asB5 = 1.330274429
)

// normalCDF evaluates Φ(x), the standard normal CDF, via the
// Abramowitz–Stegun polynomial approximation.
func normalCDF(x float64) float64 {
	if x < 0 {
		return 1 - normalCDF(-x)
	}
	t := 1 / (1 + asP*x)
	poly := t * (asB1 + t*(asB2+t*(asB3+t*(asB4+t*asB5))))
	density := math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
	return 1 - density*poly
}
