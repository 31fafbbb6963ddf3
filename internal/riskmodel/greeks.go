package riskmodel

import "github.com/quantfold/quantfold/internal/domain"

// GreekExposures builds the per-asset sensitivity vectors the optimizer's
// greek budget constraints dot against. Each vector is collateral-normalized
// so it composes with portfolio weights:
//
//	delta: delta * S / collateral (return per unit underlying return)
//	vega:  vega / collateral (return per vol point)
//	theta: theta / collateral (return per day)
//
// Vector order matches the position order used by Build.
func (b *Builder) GreekExposures(positions []domain.SpreadPosition, collateral []float64) map[string][]float64 {
	n := len(positions)
	exposures := map[string][]float64{
		"delta": make([]float64, n),
		"vega":  make([]float64, n),
		"theta": make([]float64, n),
	}
	for i, pos := range positions {
		c := collateral[i]
		s := b.underlyingPrice(pos)
		exposures["delta"][i] = pos.Greeks.Delta * s / c
		exposures["vega"][i] = pos.Greeks.Vega / c
		exposures["theta"][i] = pos.Greeks.Theta / c
	}
	return exposures
}
