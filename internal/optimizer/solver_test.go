package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gonum.org/v1/gonum/floats"
)

func TestProjectFeasibleClampsAndRenormalizes(t *testing.T) {
	bounds := [][2]float64{{0, 0.6}, {0, 0.6}, {0, 0.6}}

	w := projectFeasible([]float64{0.9, 0.05, 0.05}, bounds)
	assert.InDelta(t, 1.0, floats.Sum(w), 1e-9)
	for i, x := range w {
		assert.GreaterOrEqual(t, x, bounds[i][0]-1e-12)
		assert.LessOrEqual(t, x, bounds[i][1]+1e-12)
	}

	// Already feasible input passes through unchanged.
	same := projectFeasible([]float64{0.5, 0.3, 0.2}, bounds)
	assert.InDelta(t, 0.5, same[0], 1e-12)
	assert.InDelta(t, 0.3, same[1], 1e-12)
	assert.InDelta(t, 0.2, same[2], 1e-12)
}

func TestProjectFeasibleSaturatesInfeasibleBounds(t *testing.T) {
	bounds := [][2]float64{{0, 0.3}, {0, 0.3}}
	w := projectFeasible([]float64{0.5, 0.5}, bounds)
	// Total capacity 0.6 < 1: everything pins to its upper bound.
	assert.Equal(t, 0.3, w[0])
	assert.Equal(t, 0.3, w[1])
}

func TestUniformWeights(t *testing.T) {
	w := uniformWeights(4)
	assert.InDelta(t, 1.0, floats.Sum(w), 1e-12)
	assert.Equal(t, 0.25, w[0])
}
