package optimizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/quantfold/quantfold/internal/domain"
	"github.com/quantfold/quantfold/internal/riskmodel"
)

func diagSigma(vars ...float64) *mat.SymDense {
	sigma := mat.NewSymDense(len(vars), nil)
	for i, v := range vars {
		sigma.SetSym(i, i, v)
	}
	return sigma
}

func threeAssetProblem() Problem {
	return Problem{
		Mu:     []float64{0.12, 0.10, 0.08},
		Sigma:  diagSigma(0.04, 0.05, 0.06),
		Coskew: riskmodel.NewZeroCoskew(3),
		Constraints: domain.Constraints{
			RiskAversion:   2.0,
			MaxPositionPct: 0.6,
		},
	}
}

func TestSolveFeasibility(t *testing.T) {
	solver := NewPenaltySolver(nil)
	result, err := solver.Solve(threeAssetProblem())
	require.NoError(t, err)
	require.Len(t, result.Weights, 3)

	assert.InDelta(t, 1.0, floats.Sum(result.Weights), 1e-6)
	for _, w := range result.Weights {
		assert.GreaterOrEqual(t, w, -1e-9)
		assert.LessOrEqual(t, w, 0.6+1e-9)
		assert.False(t, math.IsNaN(w))
	}
	// Higher return, lower variance asset earns the largest weight.
	assert.Greater(t, result.Weights[0], result.Weights[2])
}

func TestSolveDeterminism(t *testing.T) {
	solver := NewPenaltySolver(nil)
	first, err := solver.Solve(threeAssetProblem())
	require.NoError(t, err)
	second, err := solver.Solve(threeAssetProblem())
	require.NoError(t, err)

	// Bit-identical, not merely close: shadow runs diff raw output.
	assert.Equal(t, first.Weights, second.Weights)
	assert.Equal(t, first.Objective, second.Objective)
	assert.Equal(t, first.Converged, second.Converged)
}

func TestSolveEmptyUniverse(t *testing.T) {
	solver := NewPenaltySolver(nil)

	// An empty model carries a nil sigma; the solver must not touch it.
	result, err := solver.Solve(Problem{})
	require.NoError(t, err)
	assert.Empty(t, result.Weights)
	assert.True(t, result.Converged)
}

func TestSolveTurnoverPenaltyAnchorsToCurrentWeights(t *testing.T) {
	p := threeAssetProblem()
	p.CurrentWeights = []float64{0.5, 0.3, 0.2}
	p.Constraints.TurnoverPenalty = 500.0

	solver := NewPenaltySolver(nil)
	result, err := solver.Solve(p)
	require.NoError(t, err)

	for i, w := range result.Weights {
		assert.InDelta(t, p.CurrentWeights[i], w, 0.02, "weight %d drifted", i)
	}
}

func TestSolveGreekBudgetConstrainsExposure(t *testing.T) {
	p := Problem{
		Mu:     []float64{0.20, 0.10},
		Sigma:  diagSigma(0.04, 0.04),
		Coskew: riskmodel.NewZeroCoskew(2),
		Constraints: domain.Constraints{
			RiskAversion: 1.0,
			GreekBudgets: map[string]float64{"delta": 1.0},
		},
		GreekSensitivities: map[string][]float64{
			"delta": {10.0, 0.0},
			"vega":  {1.0, 1.0},
		},
	}

	solver := NewPenaltySolver(nil)
	result, err := solver.Solve(p)
	require.NoError(t, err)

	exposure := floats.Dot([]float64{10.0, 0.0}, result.Weights)
	assert.LessOrEqual(t, exposure, 1.0+1e-2)
	assert.InDelta(t, 1.0, floats.Sum(result.Weights), 1e-6)
}

func TestSolveDrawdownConstraint(t *testing.T) {
	maxDD := 0.10
	p := Problem{
		Mu:     []float64{0.30, 0.05},
		Sigma:  diagSigma(0.04, 0.04),
		Coskew: riskmodel.NewZeroCoskew(2),
		Constraints: domain.Constraints{
			RiskAversion: 1.0,
			MaxDrawdown:  &maxDD,
		},
		ShockLosses: []float64{-0.50, -0.05},
	}

	solver := NewPenaltySolver(nil)
	result, err := solver.Solve(p)
	require.NoError(t, err)

	loss := floats.Dot(p.ShockLosses, result.Weights)
	assert.GreaterOrEqual(t, loss, -maxDD-1e-2)
}

func TestSolveNonConvergenceReturnsInitialGuess(t *testing.T) {
	p := threeAssetProblem()
	p.CurrentWeights = []float64{0.5, 0.3, 0.2}

	solver := NewPenaltySolver(&Config{MaxIterations: 1, PenaltyWeight: 1000, Tolerance: 1e-16})
	result, err := solver.Solve(p)
	require.NoError(t, err, "non-convergence must not be an error")

	assert.False(t, result.Converged)
	assert.Equal(t, []float64{0.5, 0.3, 0.2}, result.Weights)
}

func TestSolveRejectsInvalidInputs(t *testing.T) {
	solver := NewPenaltySolver(nil)

	bad := threeAssetProblem()
	bad.Constraints.RiskAversion = -1
	_, err := solver.Solve(bad)
	assert.Error(t, err)

	mismatched := threeAssetProblem()
	mismatched.Sigma = diagSigma(0.04, 0.05)
	_, err = solver.Solve(mismatched)
	assert.Error(t, err)

	badShock := threeAssetProblem()
	badShock.ShockLosses = []float64{-0.1}
	_, err = solver.Solve(badShock)
	assert.Error(t, err)
}

func TestSolveSanitizesNonFiniteMu(t *testing.T) {
	p := threeAssetProblem()
	p.Mu = []float64{math.NaN(), 0.10, 0.08}

	solver := NewPenaltySolver(nil)
	result, err := solver.Solve(p)
	require.NoError(t, err)

	for _, w := range result.Weights {
		assert.False(t, math.IsNaN(w))
	}
	assert.InDelta(t, 1.0, floats.Sum(result.Weights), 1e-6)
}
