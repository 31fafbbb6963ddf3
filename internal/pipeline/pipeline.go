// Package pipeline wires the construction components end to end: risk model,
// optimizer, dynamic caps, risk budget, and trade generation. Run is a pure
// function of its input snapshot; identical inputs produce bit-identical
// weights and trades, which callers rely on to diff live and shadow runs.
package pipeline

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantfold/quantfold/internal/budget"
	"github.com/quantfold/quantfold/internal/constraint"
	"github.com/quantfold/quantfold/internal/domain"
	"github.com/quantfold/quantfold/internal/metrics"
	"github.com/quantfold/quantfold/internal/optimizer"
	"github.com/quantfold/quantfold/internal/rebalance"
	"github.com/quantfold/quantfold/internal/riskmodel"
)

// Options bundles the tunable pieces of a Pipeline. Every field is optional;
// zero values fall back to compiled defaults.
type Options struct {
	RiskModel *riskmodel.Params
	Solver    optimizer.Solver
	CapTable  map[domain.Regime]constraint.RegimeCaps
	Budget    *budget.Params
	Scenario  *riskmodel.ShockScenario
	Metrics   *metrics.Registry
}

// Pipeline owns one configured set of components. It carries no per-run
// state and may be reused across runs.
type Pipeline struct {
	builder   *riskmodel.Builder
	solver    optimizer.Solver
	caps      *constraint.Calculator
	engine    *budget.Engine
	generator *rebalance.Generator
	scenario  riskmodel.ShockScenario
	metrics   *metrics.Registry
	log       zerolog.Logger
}

// New constructs a Pipeline. Nil options use defaults throughout.
func New(opts *Options) *Pipeline {
	var o Options
	if opts != nil {
		o = *opts
	}
	solver := o.Solver
	if solver == nil {
		solver = optimizer.NewPenaltySolver(nil)
	}
	scenario := riskmodel.DefaultShockScenario()
	if o.Scenario != nil {
		scenario = *o.Scenario
	}
	caps := constraint.NewCalculator(o.CapTable)
	return &Pipeline{
		builder:   riskmodel.NewBuilder(o.RiskModel),
		solver:    solver,
		caps:      caps,
		engine:    budget.NewEngine(o.Budget, caps),
		generator: rebalance.NewGenerator(),
		scenario:  scenario,
		metrics:   o.Metrics,
		log:       log.With().Str("component", "pipeline").Logger(),
	}
}

// Input is one run's snapshot. The pipeline never mutates it.
type Input struct {
	Positions         []domain.SpreadPosition
	Covariance        domain.CovarianceInput
	Holdings          []domain.Holding
	Pricing           map[string]float64
	DeployableCapital float64
	// TotalEquity sizes the rebalance targets. Nonpositive derives it as
	// deployable capital plus the sum of holding values.
	TotalEquity float64
	HorizonDays int
	Snapshot    domain.RegimeSnapshot
	Profile     domain.RiskProfile
	Constraints domain.Constraints
	// CurrentWeights, when present, is the warm start and turnover anchor.
	CurrentWeights []float64
	// Convictions maps position symbols to [0,1] confidence. Absent symbols
	// run at full conviction so a missing score never inflates a weight.
	Convictions map[string]float64
}

// Outcome is one run's complete output, freshly allocated.
type Outcome struct {
	RunID string `json:"run_id"`
	// Symbols and Weights are in position order; Weights are the
	// conviction-scaled, cap-clamped targets.
	Symbols []string  `json:"symbols"`
	Weights []float64 `json:"weights"`
	// Result is the raw solver output before capping.
	Result domain.OptimizationResult `json:"optimization"`
	// Targets folds Weights by symbol for the trade generator.
	Targets     map[string]float64        `json:"targets"`
	Budget      *domain.RiskBudgetReport  `json:"budget"`
	Trades      []domain.TradeInstruction `json:"trades"`
	Diagnostics []string                  `json:"diagnostics,omitempty"`
}

// Run executes the full construction sequence. The only errors are invalid
// inputs (negative horizon, malformed covariance or constraints, negative
// capital, out-of-range risk scaler); numeric trouble inside the run
// degrades into diagnostics instead.
func (p *Pipeline) Run(in Input) (*Outcome, error) {
	runID := uuid.New().String()
	logger := p.log.With().Str("run_id", runID).Logger()

	// The zero snapshot is usable: normal regime at full risk.
	if in.Snapshot.RiskScaler == 0 {
		in.Snapshot.RiskScaler = 1
	}
	if err := in.Snapshot.Validate(); err != nil {
		p.metrics.RecordPipelineRun(err)
		return nil, fmt.Errorf("regime snapshot: %w", err)
	}

	timer := p.metrics.StartStepTimer("risk_model")
	model, err := p.builder.Build(in.Positions, in.Covariance, in.HorizonDays)
	if err != nil {
		timer.Stop("error")
		p.metrics.RecordPipelineRun(err)
		return nil, fmt.Errorf("risk model: %w", err)
	}
	timer.Stop("success")
	p.metrics.RecordSigmaRepair(model.Sanitation)

	problem := optimizer.Problem{
		Mu:                 model.Mu,
		Sigma:              model.Sigma,
		Coskew:             model.Coskew,
		Constraints:        in.Constraints,
		CurrentWeights:     in.CurrentWeights,
		GreekSensitivities: p.builder.GreekExposures(in.Positions, model.Collateral),
		ShockLosses:        p.builder.ShockLosses(in.Positions, model.Collateral, p.scenario),
	}
	timer = p.metrics.StartStepTimer("optimize")
	result, err := p.solver.Solve(problem)
	if err != nil {
		timer.Stop("error")
		p.metrics.RecordPipelineRun(err)
		return nil, fmt.Errorf("optimizer: %w", err)
	}
	timer.Stop("success")
	p.metrics.RecordSolverRun(result.Converged)

	weights := make([]float64, len(result.Weights))
	targets := make(map[string]float64, len(result.Weights))
	for i, symbol := range model.Symbols {
		conviction := 1.0
		if c, ok := in.Convictions[symbol]; ok {
			conviction = c
		}
		capped := p.caps.Adjust(result.Weights[i], in.Positions[i].Strategy, in.Snapshot.Regime, conviction)
		weights[i] = capped
		targets[symbol] += capped
	}

	timer = p.metrics.StartStepTimer("budget")
	report, err := p.engine.Compute(in.Positions, in.DeployableCapital, in.Snapshot.Regime, in.Profile)
	if err != nil {
		timer.Stop("error")
		p.metrics.RecordPipelineRun(err)
		return nil, fmt.Errorf("risk budget: %w", err)
	}
	timer.Stop("success")
	p.metrics.ObserveBudget(report)

	equity := in.TotalEquity
	if equity <= 0 {
		equity = in.DeployableCapital
		for _, h := range in.Holdings {
			equity += h.CurrentValue
		}
	}

	timer = p.metrics.StartStepTimer("rebalance")
	trades := p.generator.Generate(in.Holdings, targets, equity, in.DeployableCapital, in.Pricing, report)
	timer.Stop("success")
	p.metrics.RecordTrades(trades)

	diags := make([]string, 0, 2+len(report.Diagnostics))
	if model.Sanitation != riskmodel.SanitationNone {
		diags = append(diags, model.Sanitation)
	}
	if !result.Converged {
		diags = append(diags, "optimizer_fallback")
	}
	diags = append(diags, report.Diagnostics...)

	logger.Info().
		Str("regime", in.Snapshot.Regime.String()).
		Float64("risk_scaler", in.Snapshot.RiskScaler).
		Str("profile", in.Profile.String()).
		Int("positions", len(in.Positions)).
		Int("trades", len(trades)).
		Bool("converged", result.Converged).
		Msg("pipeline run complete")

	p.metrics.RecordPipelineRun(nil)
	return &Outcome{
		RunID:       runID,
		Symbols:     model.Symbols,
		Weights:     weights,
		Result:      result,
		Targets:     targets,
		Budget:      report,
		Trades:      trades,
		Diagnostics: diags,
	}, nil
}
