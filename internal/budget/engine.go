package budget

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantfold/quantfold/internal/constraint"
	"github.com/quantfold/quantfold/internal/domain"
)

// Diagnostic tags the engine can attach to a report.
const (
	DiagSmallAccountFloor = "small_account_floor_active"
	DiagGlobalCapReached  = "global_cap_reached"
)

// Params tunes the budget engine. Zero-value fields take DefaultParams
// values at construction.
type Params struct {
	// RegimeFractions maps each regime to the fraction of total equity the
	// whole book may put at risk.
	RegimeFractions map[domain.Regime]float64
	// UnderlyingCapFraction is the default per-underlying ceiling as a
	// fraction of equity, before profile scaling.
	UnderlyingCapFraction float64
	// DeltaCapFraction and VegaCapFraction size the soft greek ceilings.
	DeltaCapFraction float64
	VegaCapFraction  float64
	// PerTradePct sizes one trade as a fraction of equity, per profile.
	PerTradePct map[domain.RiskProfile]float64
	// PerTradeOverride, when positive, is an absolute external policy cap
	// applied on top of the percentage sizing.
	PerTradeOverride float64
	// SmallAccountFloor keeps tiny accounts tradeable: a computed per-trade
	// cap below the floor is raised to it when equity exceeds
	// SmallAccountMinEquity.
	SmallAccountFloor     float64
	SmallAccountMinEquity float64
	// GlobalExhaustionEpsilon is the remaining-budget level at or below
	// which per-trade sizing shuts off entirely.
	GlobalExhaustionEpsilon float64
}

// DefaultParams returns the standard budget parameters.
func DefaultParams() Params {
	return Params{
		RegimeFractions: map[domain.Regime]float64{
			domain.RegimeSuppressed: 0.45,
			domain.RegimeNormal:     0.40,
			domain.RegimeElevated:   0.25,
			domain.RegimeShock:      0.05,
			domain.RegimeRebound:    0.30,
			domain.RegimeChop:       0.20,
		},
		UnderlyingCapFraction: 0.20,
		DeltaCapFraction:      0.50,
		VegaCapFraction:       0.01,
		PerTradePct: map[domain.RiskProfile]float64{
			domain.ProfileAggressive:   0.05,
			domain.ProfileConservative: 0.02,
			domain.ProfileBalanced:     0.03,
		},
		SmallAccountFloor:       50.0,
		SmallAccountMinEquity:   500.0,
		GlobalExhaustionEpsilon: 10.0,
	}
}

// Engine is the hierarchical risk-budget accountant: it measures capital at
// risk per position, rolls it into global, strategy, underlying, and greek
// buckets, and sizes the next trade against what remains.
type Engine struct {
	params Params
	caps   *constraint.Calculator
	log    zerolog.Logger
}

// NewEngine constructs an Engine. Nil params use DefaultParams; a nil cap
// calculator uses the default cap table.
func NewEngine(params *Params, caps *constraint.Calculator) *Engine {
	p := DefaultParams()
	if params != nil {
		p = withParamDefaults(*params)
	}
	if caps == nil {
		caps = constraint.NewCalculator(nil)
	}
	return &Engine{
		params: p,
		caps:   caps,
		log:    log.With().Str("component", "budget").Logger(),
	}
}

func withParamDefaults(p Params) Params {
	d := DefaultParams()
	if len(p.RegimeFractions) == 0 {
		p.RegimeFractions = d.RegimeFractions
	}
	if p.UnderlyingCapFraction <= 0 {
		p.UnderlyingCapFraction = d.UnderlyingCapFraction
	}
	if p.DeltaCapFraction <= 0 {
		p.DeltaCapFraction = d.DeltaCapFraction
	}
	if p.VegaCapFraction <= 0 {
		p.VegaCapFraction = d.VegaCapFraction
	}
	if len(p.PerTradePct) == 0 {
		p.PerTradePct = d.PerTradePct
	}
	if p.SmallAccountFloor <= 0 {
		p.SmallAccountFloor = d.SmallAccountFloor
	}
	if p.SmallAccountMinEquity <= 0 {
		p.SmallAccountMinEquity = d.SmallAccountMinEquity
	}
	if p.GlobalExhaustionEpsilon <= 0 {
		p.GlobalExhaustionEpsilon = d.GlobalExhaustionEpsilon
	}
	return p
}

// Compute builds the allocation report for one book snapshot.
func (e *Engine) Compute(positions []domain.SpreadPosition, deployableCapital float64, regime domain.Regime, profile domain.RiskProfile) (*domain.RiskBudgetReport, error) {
	if deployableCapital < 0 {
		return nil, fmt.Errorf("deployable capital %.2f is negative", deployableCapital)
	}

	var globalUsed, positionValue, absDelta, absVega float64
	byStrategy := make(map[domain.Strategy]float64)
	byUnderlying := make(map[string]float64)

	for _, pos := range positions {
		usage := e.RiskUsage(pos)
		globalUsed += usage
		byStrategy[pos.Strategy] += usage
		if pos.Underlying != "" {
			byUnderlying[pos.Underlying] += usage
		}
		positionValue += pos.CurrentValue
		absDelta += math.Abs(pos.Greeks.Delta)
		absVega += math.Abs(pos.Greeks.Vega)
	}

	equity := deployableCapital + positionValue
	mult := profile.Multiplier()
	globalCap := equity * e.regimeFraction(regime)

	report := &domain.RiskBudgetReport{
		Global:       domain.NewRiskAllocation(globalUsed, globalCap),
		ByStrategy:   make(map[domain.Strategy]domain.RiskAllocation, len(byStrategy)),
		ByUnderlying: make(map[string]domain.RiskAllocation, len(byUnderlying)),
		Greeks: map[string]domain.RiskAllocation{
			"delta": domain.NewRiskAllocation(absDelta, e.params.DeltaCapFraction*equity*mult),
			"vega":  domain.NewRiskAllocation(absVega, e.params.VegaCapFraction*equity*mult),
		},
		TotalEquity: equity,
		Regime:      regime,
		Profile:     profile,
	}

	for strategy, used := range byStrategy {
		capFrac, _, err := e.caps.ResolveCap(regime, strategy)
		if err != nil {
			// Broken custom table: fall back to the global fraction so the
			// bucket still reports something sane.
			capFrac = e.regimeFraction(regime)
			e.log.Warn().Str("strategy", strategy.String()).Str("regime", regime.String()).
				Msg("no strategy cap entry, using regime fraction")
		}
		report.ByStrategy[strategy] = domain.NewRiskAllocation(used, equity*capFrac*mult)
	}
	for underlying, used := range byUnderlying {
		report.ByUnderlying[underlying] = domain.NewRiskAllocation(used, equity*e.params.UnderlyingCapFraction*mult)
	}

	e.sizePerTrade(report, equity, profile)

	e.log.Debug().
		Float64("equity", equity).
		Float64("global_used", globalUsed).
		Float64("global_cap", globalCap).
		Float64("max_risk_per_trade", report.MaxRiskPerTrade).
		Msg("budget computed")
	return report, nil
}

// sizePerTrade derives MaxRiskPerTrade from the profile percentage, the
// optional external override, and the remaining global budget, then applies
// the small-account floor and the exhaustion shutoff.
func (e *Engine) sizePerTrade(report *domain.RiskBudgetReport, equity float64, profile domain.RiskProfile) {
	pct, ok := e.params.PerTradePct[profile]
	if !ok {
		pct = e.params.PerTradePct[domain.ProfileBalanced]
	}
	maxRisk := equity * pct
	if e.params.PerTradeOverride > 0 && e.params.PerTradeOverride < maxRisk {
		maxRisk = e.params.PerTradeOverride
	}
	if remaining := report.Global.Remaining; maxRisk > remaining {
		maxRisk = math.Max(remaining, 0)
	}

	// The floor rescues percentage sizing on small accounts; an external
	// policy cap set below it is never lifted.
	floor := e.params.SmallAccountFloor
	if e.params.PerTradeOverride > 0 && e.params.PerTradeOverride < floor {
		floor = 0
	}
	floorActive := false
	if floor > 0 && maxRisk < floor && equity > e.params.SmallAccountMinEquity {
		maxRisk = floor
		floorActive = true
		report.Diagnostics = append(report.Diagnostics, DiagSmallAccountFloor)
		// Keep the floor honorable by the trade generator: lift the global
		// remainder to at least the floored trade size. This is the one
		// case where used + remaining stops matching max_limit.
		if report.Global.Remaining < maxRisk {
			report.Global.Remaining = maxRisk
		}
	}

	if !floorActive && report.Global.Remaining <= e.params.GlobalExhaustionEpsilon {
		maxRisk = 0
		report.Diagnostics = append(report.Diagnostics, DiagGlobalCapReached)
	}
	report.MaxRiskPerTrade = maxRisk
}

func (e *Engine) regimeFraction(regime domain.Regime) float64 {
	if f, ok := e.params.RegimeFractions[regime]; ok {
		return f
	}
	if f, ok := e.params.RegimeFractions[domain.RegimeNormal]; ok {
		return f
	}
	return 0.40
}

// RiskUsage measures one position's capital at risk in dollars. Explicit
// broker-supplied overrides win; otherwise option positions size by their
// structure and everything else by market value.
func (e *Engine) RiskUsage(pos domain.SpreadPosition) float64 {
	qty := float64(pos.AbsQuantity())

	if pos.MaxLossPerContract > 0 {
		return pos.MaxLossPerContract * qty
	}
	if pos.CollateralPerContract > 0 {
		return pos.CollateralPerContract * qty
	}

	if pos.HasOptionLegs() {
		var usage float64
		switch {
		case pos.IsLong():
			usage = math.Abs(pos.CostBasis) * 100 * qty
		case pos.HasLegKind(domain.KindPut):
			usage = pos.MaxStrike(domain.KindPut) * 100 * qty
		case pos.HasLegKind(domain.KindCall):
			strike := pos.MaxStrike(domain.KindCall)
			// Naked calls risk the greater of spot and strike; strike alone
			// when the underlying price is unknown.
			if pos.UnderlyingPrice > strike {
				usage = pos.UnderlyingPrice * 100 * qty
			} else {
				usage = strike * 100 * qty
			}
		}
		if usage > 0 {
			return usage
		}
	}
	return math.Abs(pos.CurrentValue)
}
