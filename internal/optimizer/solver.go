package optimizer

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/quantfold/quantfold/internal/domain"
	"github.com/quantfold/quantfold/internal/riskmodel"
)

// Problem bundles everything one optimization run needs. Mu, Sigma, Coskew,
// and the optional vectors are indexed by the same asset order; Sigma may be
// nil only when the universe is empty. CurrentWeights doubles as the warm
// start and the turnover anchor.
type Problem struct {
	Mu                 []float64
	Sigma              *mat.SymDense
	Coskew             riskmodel.CoskewTensor
	Constraints        domain.Constraints
	CurrentWeights     []float64
	GreekSensitivities map[string][]float64
	ShockLosses        []float64
}

// Solver is the swappable NLP backend. Implementations must be
// deterministic and must never return an error for mere non-convergence;
// that case returns the initial guess with Converged false.
type Solver interface {
	Solve(problem Problem) (domain.OptimizationResult, error)
}

// projectFeasible clamps x into its bounds and redistributes the sum-to-one
// residual across assets that still have headroom. With feasible bounds the
// result sums to one within float tolerance; with infeasible bounds it gets
// as close as the bounds allow.
func projectFeasible(x []float64, bounds [][2]float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = math.Max(bounds[i][0], math.Min(bounds[i][1], x[i]))
	}

	for iter := 0; iter < 16; iter++ {
		residual := 1.0 - floats.Sum(out)
		if math.Abs(residual) <= 1e-12 {
			break
		}
		var capacity float64
		for i := range out {
			if residual > 0 {
				capacity += bounds[i][1] - out[i]
			} else {
				capacity += out[i] - bounds[i][0]
			}
		}
		if capacity <= 0 {
			break
		}
		share := residual / capacity
		if residual > 0 && capacity <= residual {
			for i := range out {
				out[i] = bounds[i][1]
			}
			break
		}
		if residual < 0 && capacity <= -residual {
			for i := range out {
				out[i] = bounds[i][0]
			}
			break
		}
		for i := range out {
			if residual > 0 {
				out[i] += (bounds[i][1] - out[i]) * share
			} else {
				out[i] += (out[i] - bounds[i][0]) * share
			}
		}
	}
	return out
}

// uniformWeights is the cold-start guess: 1/n everywhere.
func uniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}
