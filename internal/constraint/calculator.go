package constraint

import (
	"fmt"

	"github.com/quantfold/quantfold/internal/domain"
)

// CapSource records which table row produced a resolved cap.
type CapSource int

const (
	// SourceExact means the (regime, strategy) cell existed.
	SourceExact CapSource = iota
	// SourceRegimeDefault means the regime's default row was used.
	SourceRegimeDefault
	// SourceBaseWeight means nothing resolved and the base weight itself
	// acts as the cap.
	SourceBaseWeight
)

func (s CapSource) String() string {
	switch s {
	case SourceExact:
		return "exact"
	case SourceRegimeDefault:
		return "regime_default"
	default:
		return "base_weight"
	}
}

// UnsupportedStrategyError reports a (regime, strategy) pair that resolves
// to no table entry, not even the regime default. Callers distinguish this
// recovered fallback from a silent wrong answer.
type UnsupportedStrategyError struct {
	Strategy domain.Strategy
	Regime   domain.Regime
}

func (e *UnsupportedStrategyError) Error() string {
	return fmt.Sprintf("no cap entry for strategy %s in regime %s", e.Strategy, e.Regime)
}

// RegimeCaps is one regime's row of per-strategy cap fractions plus the
// mandatory default that backstops unmapped strategies.
type RegimeCaps struct {
	Default float64
	Caps    map[domain.Strategy]float64
}

// Calculator turns a base weight into a regime- and conviction-aware capped
// target. It is pure and stateless; every (regime, strategy) combination
// resolves to some cap.
type Calculator struct {
	table map[domain.Regime]RegimeCaps
}

// NewCalculator builds a Calculator over a cap table. A nil table uses
// DefaultTable.
func NewCalculator(table map[domain.Regime]RegimeCaps) *Calculator {
	if table == nil {
		table = DefaultTable()
	}
	return &Calculator{table: table}
}

// DefaultTable is the compiled-in cap table, fractions of equity per
// (regime, strategy). Shock rows sit strictly below their normal
// counterparts so a regime flip always tightens.
func DefaultTable() map[domain.Regime]RegimeCaps {
	return map[domain.Regime]RegimeCaps{
		domain.RegimeSuppressed: {
			Default: 0.06,
			Caps: map[domain.Strategy]float64{
				domain.StrategyDebitCall:  0.12,
				domain.StrategyDebitPut:   0.12,
				domain.StrategyCreditCall: 0.15,
				domain.StrategyCreditPut:  0.15,
				domain.StrategyIronCondor: 0.12,
				domain.StrategyVertical:   0.12,
				domain.StrategySingle:     0.08,
			},
		},
		domain.RegimeNormal: {
			Default: 0.05,
			Caps: map[domain.Strategy]float64{
				domain.StrategyDebitCall:  0.15,
				domain.StrategyDebitPut:   0.15,
				domain.StrategyCreditCall: 0.12,
				domain.StrategyCreditPut:  0.12,
				domain.StrategyIronCondor: 0.10,
				domain.StrategyVertical:   0.12,
				domain.StrategySingle:     0.08,
			},
		},
		domain.RegimeElevated: {
			Default: 0.04,
			Caps: map[domain.Strategy]float64{
				domain.StrategyDebitCall:  0.08,
				domain.StrategyDebitPut:   0.08,
				domain.StrategyCreditCall: 0.08,
				domain.StrategyCreditPut:  0.08,
				domain.StrategyIronCondor: 0.06,
				domain.StrategyVertical:   0.08,
				domain.StrategySingle:     0.05,
			},
		},
		domain.RegimeShock: {
			Default: 0.01,
			Caps: map[domain.Strategy]float64{
				domain.StrategyDebitCall:  0.03,
				domain.StrategyDebitPut:   0.03,
				domain.StrategyCreditCall: 0.02,
				domain.StrategyCreditPut:  0.02,
				domain.StrategyIronCondor: 0.02,
				domain.StrategyVertical:   0.02,
				domain.StrategySingle:     0.02,
			},
		},
		domain.RegimeRebound: {
			Default: 0.05,
			Caps: map[domain.Strategy]float64{
				domain.StrategyDebitCall:  0.12,
				domain.StrategyDebitPut:   0.12,
				domain.StrategyCreditCall: 0.10,
				domain.StrategyCreditPut:  0.10,
				domain.StrategyIronCondor: 0.08,
				domain.StrategyVertical:   0.10,
				domain.StrategySingle:     0.06,
			},
		},
		domain.RegimeChop: {
			Default: 0.03,
			Caps: map[domain.Strategy]float64{
				domain.StrategyDebitCall:  0.06,
				domain.StrategyDebitPut:   0.06,
				domain.StrategyCreditCall: 0.08,
				domain.StrategyCreditPut:  0.08,
				domain.StrategyIronCondor: 0.08,
				domain.StrategyVertical:   0.06,
				domain.StrategySingle:     0.04,
			},
		},
	}
}

// ResolveCap looks up the hard cap for a (regime, strategy) pair: the exact
// cell, else the regime default, else an UnsupportedStrategyError. The
// returned cap is valid even on error (zero) so callers may ignore it and
// fall back to the base weight.
func (c *Calculator) ResolveCap(regime domain.Regime, strategy domain.Strategy) (float64, CapSource, error) {
	row, ok := c.table[regime]
	if !ok {
		return 0, SourceBaseWeight, &UnsupportedStrategyError{Strategy: strategy, Regime: regime}
	}
	if capFrac, ok := row.Caps[strategy]; ok {
		return capFrac, SourceExact, nil
	}
	if row.Default > 0 {
		return row.Default, SourceRegimeDefault, nil
	}
	return 0, SourceBaseWeight, &UnsupportedStrategyError{Strategy: strategy, Regime: regime}
}

// Adjust scales a base weight by conviction and clamps it to the resolved
// cap. Conviction is clamped into [0, 1]: zero conviction halves the base
// weight, full conviction passes it through. Adjust is total: when no cap
// resolves, the base weight caps itself.
func (c *Calculator) Adjust(baseWeight float64, strategy domain.Strategy, regime domain.Regime, conviction float64) float64 {
	scale := 0.5 + 0.5*clamp(conviction, 0, 1)
	scaled := baseWeight * scale

	capFrac, _, err := c.ResolveCap(regime, strategy)
	if err != nil {
		capFrac = baseWeight
	}
	if scaled > capFrac {
		return capFrac
	}
	return scaled
}

// Caps returns the resolved cap for every strategy under a regime, for
// report surfaces and table validation.
func (c *Calculator) Caps(regime domain.Regime) map[domain.Strategy]float64 {
	out := make(map[domain.Strategy]float64, len(domain.AllStrategies()))
	for _, strategy := range domain.AllStrategies() {
		capFrac, _, err := c.ResolveCap(regime, strategy)
		if err != nil {
			continue
		}
		out[strategy] = capFrac
	}
	return out
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
