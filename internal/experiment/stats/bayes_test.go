package stats

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBetaSamplerMoments(t *testing.T) {
	s := &sampler{rng: rand.New(rand.NewSource(1))}

	// Beta(2,8) has mean 0.2
	const draws = 20000
	sum := 0.0
	for range draws {
		sum += s.Beta(2, 8)
	}
	assert.InDelta(t, 0.2, sum/draws, 0.01)
}

func TestProbabilityOfImprovement(t *testing.T) {
	s := &sampler{rng: rand.New(rand.NewSource(1))}

	t.Run("strong lift is near certain", func(t *testing.T) {
		p := probabilityOfImprovement(s, 100, 1000, 200, 1000, 10000)
		assert.Greater(t, p, 0.99)
	})

	t.Run("strong drop is near zero", func(t *testing.T) {
		p := probabilityOfImprovement(s, 200, 1000, 100, 1000, 10000)
		assert.Less(t, p, 0.01)
	})

	t.Run("identical data is a coin flip", func(t *testing.T) {
		p := probabilityOfImprovement(s, 100, 1000, 100, 1000, 10000)
		assert.InDelta(t, 0.5, p, 0.05)
	})
}
