package domain

// RiskAllocation is the reusable value type for every budget dimension:
// capital used against a ceiling, with the derived remainder and percentage.
type RiskAllocation struct {
	Used      float64 `json:"used"`
	MaxLimit  float64 `json:"max_limit"`
	Remaining float64 `json:"remaining"`
	PctUsed   float64 `json:"pct_used"`
}

// NewRiskAllocation derives Remaining and PctUsed from used capital and a
// ceiling. Remaining goes negative when a bucket is over-allocated so that
// Used + Remaining always equals MaxLimit.
func NewRiskAllocation(used, maxLimit float64) RiskAllocation {
	a := RiskAllocation{Used: used, MaxLimit: maxLimit, Remaining: maxLimit - used}
	if maxLimit > 0 {
		a.PctUsed = used / maxLimit * 100
	}
	return a
}

// RiskBudgetReport is the hierarchical allocation picture for one book
// snapshot: a global ceiling, per-strategy and per-underlying buckets, soft
// greek exposure buckets, and the per-trade sizing that survives all of them.
type RiskBudgetReport struct {
	Global          RiskAllocation              `json:"global"`
	ByStrategy      map[Strategy]RiskAllocation `json:"by_strategy"`
	ByUnderlying    map[string]RiskAllocation   `json:"by_underlying"`
	Greeks          map[string]RiskAllocation   `json:"greeks"`
	MaxRiskPerTrade float64                     `json:"max_risk_per_trade"`
	TotalEquity     float64                     `json:"total_equity"`
	Regime          Regime                      `json:"regime"`
	Profile         RiskProfile                 `json:"profile"`
	Diagnostics     []string                    `json:"diagnostics,omitempty"`
}

// HasDiagnostic reports whether the given tag was recorded.
func (r *RiskBudgetReport) HasDiagnostic(tag string) bool {
	for _, d := range r.Diagnostics {
		if d == tag {
			return true
		}
	}
	return false
}
