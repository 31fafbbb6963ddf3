// Package config loads and validates the file-based tuning surface: the
// regime cap table, budget parameters, and solver settings. YAML keys are
// plain strings; conversion methods produce the typed tables the engines
// consume so unmarshaling never depends on custom key decoding.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quantfold/quantfold/internal/budget"
	"github.com/quantfold/quantfold/internal/constraint"
	"github.com/quantfold/quantfold/internal/domain"
	"github.com/quantfold/quantfold/internal/optimizer"
	"github.com/quantfold/quantfold/internal/riskmodel"
)

// defaultCapKey is the per-regime fallback row in strategy_caps. Every
// regime must carry one so cap resolution stays total.
const defaultCapKey = "default"

// Config is the complete loadable configuration.
type Config struct {
	// RegimeFractions maps regime name to the fraction of total equity the
	// whole book may put at risk under that regime.
	RegimeFractions map[string]float64 `yaml:"regime_fractions"`
	// StrategyCaps maps regime name to a strategy-keyed row of position cap
	// fractions. Each row must include a "default" entry.
	StrategyCaps map[string]map[string]float64 `yaml:"strategy_caps"`
	// PerTradePct maps risk profile name to the per-trade sizing fraction.
	PerTradePct map[string]float64 `yaml:"per_trade_pct"`

	Budget    BudgetSection           `yaml:"budget"`
	Optimizer optimizer.Config        `yaml:"optimizer"`
	RiskModel riskmodel.Params        `yaml:"risk_model"`
	Stress    riskmodel.ShockScenario `yaml:"stress"`
}

// BudgetSection carries the scalar budget knobs that sit alongside the
// regime and profile maps.
type BudgetSection struct {
	UnderlyingCapFraction   float64 `yaml:"underlying_cap_fraction"`
	DeltaCapFraction        float64 `yaml:"delta_cap_fraction"`
	VegaCapFraction         float64 `yaml:"vega_cap_fraction"`
	PerTradeOverride        float64 `yaml:"per_trade_override"`
	SmallAccountFloor       float64 `yaml:"small_account_floor"`
	SmallAccountMinEquity   float64 `yaml:"small_account_min_equity"`
	GlobalExhaustionEpsilon float64 `yaml:"global_exhaustion_epsilon"`
}

// Default returns a Config that mirrors the compiled-in tables exactly, so
// running without a config file and running with an untouched caps.yaml are
// indistinguishable.
func Default() *Config {
	capTable := constraint.DefaultTable()
	strategyCaps := make(map[string]map[string]float64, len(capTable))
	for regime, row := range capTable {
		out := make(map[string]float64, len(row.Caps)+1)
		out[defaultCapKey] = row.Default
		for strategy, frac := range row.Caps {
			out[strategy.String()] = frac
		}
		strategyCaps[regime.String()] = out
	}

	budgetDefaults := budget.DefaultParams()
	regimeFractions := make(map[string]float64, len(budgetDefaults.RegimeFractions))
	for regime, frac := range budgetDefaults.RegimeFractions {
		regimeFractions[regime.String()] = frac
	}
	perTradePct := make(map[string]float64, len(budgetDefaults.PerTradePct))
	for profile, pct := range budgetDefaults.PerTradePct {
		perTradePct[profile.String()] = pct
	}

	return &Config{
		RegimeFractions: regimeFractions,
		StrategyCaps:    strategyCaps,
		PerTradePct:     perTradePct,
		Budget: BudgetSection{
			UnderlyingCapFraction:   budgetDefaults.UnderlyingCapFraction,
			DeltaCapFraction:        budgetDefaults.DeltaCapFraction,
			VegaCapFraction:         budgetDefaults.VegaCapFraction,
			PerTradeOverride:        budgetDefaults.PerTradeOverride,
			SmallAccountFloor:       budgetDefaults.SmallAccountFloor,
			SmallAccountMinEquity:   budgetDefaults.SmallAccountMinEquity,
			GlobalExhaustionEpsilon: budgetDefaults.GlobalExhaustionEpsilon,
		},
		Optimizer: optimizer.DefaultConfig(),
		RiskModel: riskmodel.DefaultParams(),
		Stress:    riskmodel.DefaultShockScenario(),
	}
}

// Load reads, unmarshals, and validates a config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

// Validate checks names and ranges. Unknown regime, strategy, or profile
// names are rejected here rather than silently ignored at lookup time, and
// the shock rows must sit strictly below their normal counterparts so a
// regime flip always tightens.
func (c *Config) Validate() error {
	for name, frac := range c.RegimeFractions {
		if _, err := domain.ParseRegime(name); err != nil {
			return fmt.Errorf("regime_fractions: %w", err)
		}
		if frac <= 0 || frac > 1 {
			return fmt.Errorf("regime_fractions: %s fraction %.4f outside (0, 1]", name, frac)
		}
	}

	for regimeName, row := range c.StrategyCaps {
		if _, err := domain.ParseRegime(regimeName); err != nil {
			return fmt.Errorf("strategy_caps: %w", err)
		}
		def, ok := row[defaultCapKey]
		if !ok || def <= 0 {
			return fmt.Errorf("strategy_caps: regime %s missing positive %q row", regimeName, defaultCapKey)
		}
		for strategyName, frac := range row {
			if strategyName == defaultCapKey {
				continue
			}
			if parsed := domain.ParseStrategy(strategyName); parsed == domain.StrategyOther && strategyName != "other" {
				return fmt.Errorf("strategy_caps: regime %s has unknown strategy %q", regimeName, strategyName)
			}
			if frac <= 0 || frac > 1 {
				return fmt.Errorf("strategy_caps: %s/%s cap %.4f outside (0, 1]", regimeName, strategyName, frac)
			}
		}
	}

	if err := c.validateShockTightens(); err != nil {
		return err
	}

	for profileName, pct := range c.PerTradePct {
		if _, err := domain.ParseRiskProfile(profileName); err != nil {
			return fmt.Errorf("per_trade_pct: %w", err)
		}
		if pct <= 0 || pct > 1 {
			return fmt.Errorf("per_trade_pct: %s fraction %.4f outside (0, 1]", profileName, pct)
		}
	}

	if c.Budget.UnderlyingCapFraction < 0 || c.Budget.UnderlyingCapFraction > 1 {
		return fmt.Errorf("budget: underlying_cap_fraction %.4f outside [0, 1]", c.Budget.UnderlyingCapFraction)
	}
	if c.Budget.DeltaCapFraction < 0 || c.Budget.VegaCapFraction < 0 {
		return fmt.Errorf("budget: greek cap fractions must be nonnegative")
	}
	if c.Budget.SmallAccountFloor < 0 || c.Budget.SmallAccountMinEquity < 0 {
		return fmt.Errorf("budget: small account parameters must be nonnegative")
	}

	if c.Optimizer.MaxIterations < 0 {
		return fmt.Errorf("optimizer: max_iterations must be nonnegative")
	}
	if c.Optimizer.PenaltyWeight < 0 {
		return fmt.Errorf("optimizer: penalty_weight must be nonnegative")
	}

	if c.RiskModel.FallbackVariance < 0 {
		return fmt.Errorf("risk_model: fallback_variance must be nonnegative")
	}
	if c.RiskModel.RidgeBase < 0 || c.RiskModel.RidgeVegaCoeff < 0 {
		return fmt.Errorf("risk_model: ridge parameters must be nonnegative")
	}
	if c.RiskModel.DebitCollateralFloor < 0 || c.RiskModel.CreditCollateralFallback < 0 || c.RiskModel.CollateralSafetyFloor < 0 {
		return fmt.Errorf("risk_model: collateral floors must be nonnegative")
	}

	return nil
}

// validateShockTightens enforces shock < normal for every strategy key the
// two rows share, default included.
func (c *Config) validateShockTightens() error {
	normalRow, okNormal := c.StrategyCaps[domain.RegimeNormal.String()]
	shockRow, okShock := c.StrategyCaps[domain.RegimeShock.String()]
	if !okNormal || !okShock {
		return nil
	}
	for key, shockFrac := range shockRow {
		normalFrac, ok := normalRow[key]
		if !ok {
			continue
		}
		if shockFrac >= normalFrac {
			return fmt.Errorf("strategy_caps: shock cap for %q (%.4f) must be strictly below normal (%.4f)", key, shockFrac, normalFrac)
		}
	}
	return nil
}

// CapTable converts the string-keyed strategy_caps section into the typed
// table the constraint calculator consumes. Call Validate first; CapTable
// assumes the names parse. An omitted section returns nil so the calculator
// falls back to its compiled table.
func (c *Config) CapTable() map[domain.Regime]constraint.RegimeCaps {
	if len(c.StrategyCaps) == 0 {
		return nil
	}
	table := make(map[domain.Regime]constraint.RegimeCaps, len(c.StrategyCaps))
	for regimeName, row := range c.StrategyCaps {
		regime, err := domain.ParseRegime(regimeName)
		if err != nil {
			continue
		}
		caps := make(map[domain.Strategy]float64, len(row))
		entry := constraint.RegimeCaps{Caps: caps}
		for strategyName, frac := range row {
			if strategyName == defaultCapKey {
				entry.Default = frac
				continue
			}
			caps[domain.ParseStrategy(strategyName)] = frac
		}
		table[regime] = entry
	}
	return table
}

// BudgetParams converts the budget-facing sections into typed engine
// parameters. Call Validate first; BudgetParams assumes the names parse.
func (c *Config) BudgetParams() budget.Params {
	params := budget.DefaultParams()

	if len(c.RegimeFractions) > 0 {
		fractions := make(map[domain.Regime]float64, len(c.RegimeFractions))
		for name, frac := range c.RegimeFractions {
			regime, err := domain.ParseRegime(name)
			if err != nil {
				continue
			}
			fractions[regime] = frac
		}
		params.RegimeFractions = fractions
	}

	if len(c.PerTradePct) > 0 {
		pct := make(map[domain.RiskProfile]float64, len(c.PerTradePct))
		for name, frac := range c.PerTradePct {
			profile, err := domain.ParseRiskProfile(name)
			if err != nil {
				continue
			}
			pct[profile] = frac
		}
		params.PerTradePct = pct
	}

	if c.Budget.UnderlyingCapFraction > 0 {
		params.UnderlyingCapFraction = c.Budget.UnderlyingCapFraction
	}
	if c.Budget.DeltaCapFraction > 0 {
		params.DeltaCapFraction = c.Budget.DeltaCapFraction
	}
	if c.Budget.VegaCapFraction > 0 {
		params.VegaCapFraction = c.Budget.VegaCapFraction
	}
	params.PerTradeOverride = c.Budget.PerTradeOverride
	if c.Budget.SmallAccountFloor > 0 {
		params.SmallAccountFloor = c.Budget.SmallAccountFloor
	}
	if c.Budget.SmallAccountMinEquity > 0 {
		params.SmallAccountMinEquity = c.Budget.SmallAccountMinEquity
	}
	if c.Budget.GlobalExhaustionEpsilon > 0 {
		params.GlobalExhaustionEpsilon = c.Budget.GlobalExhaustionEpsilon
	}

	return params
}

// OptimizerConfig returns the solver settings, falling back to the compiled
// defaults when the optimizer section was omitted entirely.
func (c *Config) OptimizerConfig() optimizer.Config {
	if c.Optimizer == (optimizer.Config{}) {
		return optimizer.DefaultConfig()
	}
	return c.Optimizer
}

// RiskModelParams returns the risk transform parameters, falling back to the
// compiled defaults when the risk_model section was omitted entirely. A
// partially filled section passes through; the builder re-floors the fields
// that must be positive.
func (c *Config) RiskModelParams() riskmodel.Params {
	if c.RiskModel == (riskmodel.Params{}) {
		return riskmodel.DefaultParams()
	}
	return c.RiskModel
}

// Scenario returns the stress scenario, falling back to the default crash
// shock when the stress section was omitted entirely.
func (c *Config) Scenario() riskmodel.ShockScenario {
	if c.Stress == (riskmodel.ShockScenario{}) {
		return riskmodel.DefaultShockScenario()
	}
	return c.Stress
}
