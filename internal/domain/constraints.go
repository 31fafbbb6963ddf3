package domain

import "fmt"

// Constraints parameterizes the optimizer objective and feasible region.
//
// GreekBudgets maps a greek name to a symmetric exposure limit: the portfolio
// dot product against that greek's sensitivity vector must stay in
// [-limit, +limit]. MaxDrawdown, when set, bounds the portfolio loss under
// the supplied shock scenario. Bounds, when present, gives explicit per-asset
// (lo, hi) weight bounds; otherwise every asset gets (0, MaxPositionPct).
type Constraints struct {
	RiskAversion    float64            `json:"risk_aversion" yaml:"risk_aversion"`
	SkewPreference  float64            `json:"skew_preference" yaml:"skew_preference"`
	TurnoverPenalty float64            `json:"turnover_penalty" yaml:"turnover_penalty"`
	GreekBudgets    map[string]float64 `json:"greek_budgets,omitempty" yaml:"greek_budgets"`
	MaxDrawdown     *float64           `json:"max_drawdown,omitempty" yaml:"max_drawdown"`
	MaxPositionPct  float64            `json:"max_position_pct,omitempty" yaml:"max_position_pct"`
	Bounds          [][2]float64       `json:"bounds,omitempty" yaml:"bounds"`
}

func (c Constraints) Validate() error {
	if c.RiskAversion < 0 {
		return fmt.Errorf("risk_aversion %.4f is negative", c.RiskAversion)
	}
	if c.SkewPreference < 0 {
		return fmt.Errorf("skew_preference %.4f is negative", c.SkewPreference)
	}
	if c.TurnoverPenalty < 0 {
		return fmt.Errorf("turnover_penalty %.4f is negative", c.TurnoverPenalty)
	}
	if c.MaxDrawdown != nil && *c.MaxDrawdown < 0 {
		return fmt.Errorf("max_drawdown %.4f is negative", *c.MaxDrawdown)
	}
	if c.MaxPositionPct < 0 || c.MaxPositionPct > 1 {
		return fmt.Errorf("max_position_pct %.4f outside [0, 1]", c.MaxPositionPct)
	}
	for greek, limit := range c.GreekBudgets {
		if limit < 0 {
			return fmt.Errorf("greek budget %q has negative limit %.4f", greek, limit)
		}
	}
	for i, b := range c.Bounds {
		if b[0] > b[1] {
			return fmt.Errorf("bound %d has lo %.4f > hi %.4f", i, b[0], b[1])
		}
	}
	return nil
}

// BoundsFor resolves per-asset weight bounds for a universe of n assets.
// Explicit bounds win when their length matches; otherwise every asset gets
// (0, MaxPositionPct), widening to (0, 1) when no cap is configured.
func (c Constraints) BoundsFor(n int) [][2]float64 {
	if len(c.Bounds) == n && n > 0 {
		out := make([][2]float64, n)
		copy(out, c.Bounds)
		return out
	}
	hi := c.MaxPositionPct
	if hi <= 0 || hi > 1 {
		hi = 1.0
	}
	out := make([][2]float64, n)
	for i := range out {
		out[i] = [2]float64{0, hi}
	}
	return out
}
