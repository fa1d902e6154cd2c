package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalCDF(t *testing.T) {
	// reference values from standard normal tables
	cases := []struct {
		x    float64
		want float64
	}{
		{0, 0.5},
		{1, 0.8413447},
		{1.6449, 0.95},
		{1.96, 0.9750021},
		{2.5758, 0.995},
		{3, 0.9986501},
		{-1.96, 0.0249979},
		{-3, 0.0013499},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, normalCDF(tc.x), 1e-4, "x=%v", tc.x)
	}
}

func TestNormalCDFSymmetry(t *testing.T) {
	for _, x := range []float64{0.1, 0.7, 1.3, 2.2, 3.5} {
		assert.InDelta(t, 1.0, normalCDF(x)+normalCDF(-x), 1e-7, "x=%v", x)
	}
}
