package riskmodel

import "github.com/quantfold/quantfold/internal/domain"

// ShockScenario describes an instantaneous market stress: a relative spot
// move and an absolute implied-vol move in points. Theta is excluded on
// purpose, the shock has no time dimension.
type ShockScenario struct {
	SpotShockPct float64 `yaml:"spot_shock_pct" json:"spot_shock_pct"`
	VolShockPts  float64 `yaml:"vol_shock_pts" json:"vol_shock_pts"`
}

// DefaultShockScenario is a 10% spot drop with a 5 point vol spike, the
// classic crash stress.
func DefaultShockScenario() ShockScenario {
	return ShockScenario{SpotShockPct: -0.10, VolShockPts: 5.0}
}

// ShockLosses projects each position's stress P&L per unit collateral under
// the scenario, second-order in spot via gamma. Entries are typically
// negative; the optimizer's drawdown constraint floors the weighted sum.
func (b *Builder) ShockLosses(positions []domain.SpreadPosition, collateral []float64, scenario ShockScenario) []float64 {
	losses := make([]float64, len(positions))
	for i, pos := range positions {
		s := b.underlyingPrice(pos)
		spotMove := s * scenario.SpotShockPct
		pnl := pos.Greeks.Delta*spotMove +
			0.5*pos.Greeks.Gamma*spotMove*spotMove +
			pos.Greeks.Vega*scenario.VolShockPts
		losses[i] = pnl / collateral[i]
	}
	return losses
}
