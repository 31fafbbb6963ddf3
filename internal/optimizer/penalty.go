package optimizer

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/quantfold/quantfold/internal/domain"
)

// Config tunes the penalty-method solver.
type Config struct {
	// MaxIterations caps the major iterations of each solver attempt; the
	// cap is the pipeline's only termination guarantee.
	MaxIterations int `yaml:"max_iterations"`
	// PenaltyWeight scales the quadratic penalties that stand in for the
	// equality and inequality constraints.
	PenaltyWeight float64 `yaml:"penalty_weight"`
	// Tolerance is the gradient threshold for convergence.
	Tolerance float64 `yaml:"tolerance"`
}

// DefaultConfig returns the standard solver settings.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 2000,
		PenaltyWeight: 1000.0,
		Tolerance:     1e-9,
	}
}

// PenaltySolver folds the constraints into the objective as quadratic
// penalties and minimizes with BFGS, retrying with Nelder-Mead when the
// gradient path stalls. Non-convergence returns the initial guess with
// Converged false rather than an error.
type PenaltySolver struct {
	cfg Config
	log zerolog.Logger
}

// NewPenaltySolver constructs a solver. A nil config uses DefaultConfig.
func NewPenaltySolver(cfg *Config) *PenaltySolver {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
		if c.MaxIterations <= 0 {
			c.MaxIterations = DefaultConfig().MaxIterations
		}
		if c.PenaltyWeight <= 0 {
			c.PenaltyWeight = DefaultConfig().PenaltyWeight
		}
		if c.Tolerance <= 0 {
			c.Tolerance = DefaultConfig().Tolerance
		}
	}
	return &PenaltySolver{
		cfg: c,
		log: log.With().Str("component", "optimizer").Logger(),
	}
}

// Solve implements Solver.
func (s *PenaltySolver) Solve(p Problem) (domain.OptimizationResult, error) {
	n := len(p.Mu)
	if n == 0 {
		return domain.OptimizationResult{Weights: []float64{}, Converged: true}, nil
	}
	if err := p.Constraints.Validate(); err != nil {
		return domain.OptimizationResult{}, fmt.Errorf("constraints: %w", err)
	}
	if err := s.checkDims(p, n); err != nil {
		return domain.OptimizationResult{}, err
	}

	mu := sanitizeVector(p.Mu)
	bounds := p.Constraints.BoundsFor(n)

	initial := uniformWeights(n)
	if len(p.CurrentWeights) == n {
		initial = projectFeasible(p.CurrentWeights, bounds)
	} else {
		initial = projectFeasible(initial, bounds)
	}

	obj := s.newObjective(p, mu, bounds)
	problem := optimize.Problem{Func: obj.value, Grad: obj.gradient}
	settings := &optimize.Settings{
		MajorIterations:   s.cfg.MaxIterations,
		GradientThreshold: s.cfg.Tolerance,
	}

	result, err := optimize.Minimize(problem, append([]float64(nil), initial...), settings, &optimize.BFGS{})
	iterations := 0
	if result != nil {
		iterations = result.Stats.MajorIterations
	}
	if err != nil || !accepted(result.Status) {
		result, err = optimize.Minimize(problem, append([]float64(nil), initial...), settings, &optimize.NelderMead{})
		if result != nil {
			iterations += result.Stats.MajorIterations
		}
	}

	if err != nil || result == nil || !accepted(result.Status) {
		status := "error"
		if result != nil {
			status = result.Status.String()
		}
		s.log.Warn().
			Str("status", status).
			Int("iterations", iterations).
			Msg("optimizer did not converge, returning initial guess")
		return domain.OptimizationResult{
			Weights:    initial,
			Converged:  false,
			Iterations: iterations,
			Objective:  obj.raw(initial),
		}, nil
	}

	weights := projectFeasible(result.X, bounds)
	return domain.OptimizationResult{
		Weights:    weights,
		Converged:  true,
		Iterations: iterations,
		Objective:  obj.raw(weights),
	}, nil
}

func (s *PenaltySolver) checkDims(p Problem, n int) error {
	if p.Sigma == nil || p.Sigma.SymmetricDim() != n {
		dim := 0
		if p.Sigma != nil {
			dim = p.Sigma.SymmetricDim()
		}
		return fmt.Errorf("sigma dimension %d does not match %d assets", dim, n)
	}
	if len(p.ShockLosses) != 0 && len(p.ShockLosses) != n {
		return fmt.Errorf("shock loss vector length %d does not match %d assets", len(p.ShockLosses), n)
	}
	for name, vec := range p.GreekSensitivities {
		if len(vec) != n {
			return fmt.Errorf("greek sensitivity %q length %d does not match %d assets", name, len(vec), n)
		}
	}
	if len(p.Constraints.Bounds) != 0 && len(p.Constraints.Bounds) != n {
		return fmt.Errorf("explicit bounds length %d does not match %d assets", len(p.Constraints.Bounds), n)
	}
	return nil
}

func accepted(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence:
		return true
	default:
		return false
	}
}

func sanitizeVector(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		out[i] = x
	}
	return out
}

// greekBudget pairs a sensitivity vector with its symmetric limit, in a
// slice sorted by name so penalty accumulation order is deterministic.
type greekBudget struct {
	name   string
	limit  float64
	vector []float64
}

type objective struct {
	p       Problem
	mu      []float64
	bounds  [][2]float64
	penalty float64
	budgets []greekBudget

	useSkew     bool
	useTurnover bool
	useDrawdown bool
}

func (s *PenaltySolver) newObjective(p Problem, mu []float64, bounds [][2]float64) *objective {
	o := &objective{
		p:           p,
		mu:          mu,
		bounds:      bounds,
		penalty:     s.cfg.PenaltyWeight,
		useSkew:     p.Constraints.SkewPreference > 0 && p.Coskew.Dim() == len(mu),
		useTurnover: p.Constraints.TurnoverPenalty > 0 && len(p.CurrentWeights) == len(mu),
		useDrawdown: p.Constraints.MaxDrawdown != nil && len(p.ShockLosses) == len(mu) && len(mu) > 0,
	}
	names := make([]string, 0, len(p.Constraints.GreekBudgets))
	for name := range p.Constraints.GreekBudgets {
		if _, ok := p.GreekSensitivities[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		o.budgets = append(o.budgets, greekBudget{
			name:   name,
			limit:  p.Constraints.GreekBudgets[name],
			vector: p.GreekSensitivities[name],
		})
	}
	return o
}

// raw is the economic objective without penalty terms, used for reporting.
func (o *objective) raw(w []float64) float64 {
	value := -floats.Dot(o.mu, w) + o.p.Constraints.RiskAversion*quadForm(o.p.Sigma, w)
	if o.useSkew {
		value -= o.p.Constraints.SkewPreference * o.p.Coskew.Contract(w)
	}
	if o.useTurnover {
		value += o.p.Constraints.TurnoverPenalty * squaredDistance(w, o.p.CurrentWeights)
	}
	return value
}

func (o *objective) value(x []float64) float64 {
	w := projectFeasible(x, o.bounds)
	value := o.raw(w)

	sum := floats.Sum(w)
	value += o.penalty * (sum - 1) * (sum - 1)

	for _, b := range o.budgets {
		e := floats.Dot(b.vector, w)
		if e > b.limit {
			value += o.penalty * (e - b.limit) * (e - b.limit)
		} else if e < -b.limit {
			value += o.penalty * (e + b.limit) * (e + b.limit)
		}
	}

	if o.useDrawdown {
		loss := floats.Dot(o.p.ShockLosses, w)
		floor := -*o.p.Constraints.MaxDrawdown
		if loss < floor {
			value += o.penalty * (loss - floor) * (loss - floor)
		}
	}
	return value
}

func (o *objective) gradient(grad, x []float64) {
	w := projectFeasible(x, o.bounds)
	n := len(w)

	for i := 0; i < n; i++ {
		grad[i] = -o.mu[i]
		var sigmaRow float64
		for j := 0; j < n; j++ {
			sigmaRow += o.p.Sigma.At(i, j) * w[j]
		}
		grad[i] += 2 * o.p.Constraints.RiskAversion * sigmaRow
	}

	if o.useSkew {
		o.p.Coskew.AddContractGradient(grad, w, -o.p.Constraints.SkewPreference)
	}
	if o.useTurnover {
		for i := 0; i < n; i++ {
			grad[i] += 2 * o.p.Constraints.TurnoverPenalty * (w[i] - o.p.CurrentWeights[i])
		}
	}

	sum := floats.Sum(w)
	for i := 0; i < n; i++ {
		grad[i] += 2 * o.penalty * (sum - 1)
	}

	for _, b := range o.budgets {
		e := floats.Dot(b.vector, w)
		var excess float64
		if e > b.limit {
			excess = e - b.limit
		} else if e < -b.limit {
			excess = e + b.limit
		} else {
			continue
		}
		for i := 0; i < n; i++ {
			grad[i] += 2 * o.penalty * excess * b.vector[i]
		}
	}

	if o.useDrawdown {
		loss := floats.Dot(o.p.ShockLosses, w)
		floor := -*o.p.Constraints.MaxDrawdown
		if loss < floor {
			for i := 0; i < n; i++ {
				grad[i] += 2 * o.penalty * (loss - floor) * o.p.ShockLosses[i]
			}
		}
	}
}

func quadForm(sigma *mat.SymDense, w []float64) float64 {
	var total float64
	for i := range w {
		for j := range w {
			total += w[i] * w[j] * sigma.At(i, j)
		}
	}
	return total
}

func squaredDistance(a, b []float64) float64 {
	var total float64
	for i := range a {
		d := a[i] - b[i]
		total += d * d
	}
	return total
}
