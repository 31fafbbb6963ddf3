package riskmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZeroCoskewContractsToZero(t *testing.T) {
	tensor := NewZeroCoskew(3)
	assert.Equal(t, 3, tensor.Dim())
	assert.True(t, tensor.IsZero())
	assert.Equal(t, 0.0, tensor.Contract([]float64{0.5, 0.3, 0.2}))

	grad := make([]float64, 3)
	tensor.AddContractGradient(grad, []float64{0.5, 0.3, 0.2}, 1.0)
	assert.Equal(t, []float64{0, 0, 0}, grad)
}

func TestCoskewContractMatchesHandComputation(t *testing.T) {
	tensor := NewZeroCoskew(2)
	tensor[0][0][0] = 6.0
	tensor[1][1][1] = -3.0
	assert.False(t, tensor.IsZero())

	w := []float64{0.5, 0.5}
	// 6*(0.5)^3 - 3*(0.5)^3 = 0.375
	assert.InDelta(t, 0.375, tensor.Contract(w), 1e-12)

	grad := make([]float64, 2)
	tensor.AddContractGradient(grad, w, 2.0)
	// d/dw0 = 3*6*w0^2 = 4.5, scaled by 2.
	assert.InDelta(t, 9.0, grad[0], 1e-12)
	assert.InDelta(t, -4.5, grad[1], 1e-12)
}
