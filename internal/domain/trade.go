package domain

// TradeAction is the direction of a rebalance instruction.
type TradeAction int

const (
	ActionBuy TradeAction = iota
	ActionSell
)

func (a TradeAction) String() string {
	if a == ActionSell {
		return "sell"
	}
	return "buy"
}

func (a TradeAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// TradeInstruction is one concrete order the rebalancer emits. ValueDelta is
// signed: positive for buys, negative for sells. Reason carries tags such as
// "budget_clamped" when the instruction was reduced to fit remaining budget.
type TradeInstruction struct {
	Symbol     string      `json:"symbol"`
	Action     TradeAction `json:"action"`
	Quantity   int         `json:"quantity"`
	UnitPrice  float64     `json:"unit_price"`
	ValueDelta float64     `json:"value_delta"`
	Reason     string      `json:"reason,omitempty"`
}

// Holding is a current portfolio line: market value and unit count for one
// symbol. Quantity may be fractional for equity holdings.
type Holding struct {
	Symbol       string  `json:"symbol" yaml:"symbol"`
	CurrentValue float64 `json:"current_value" yaml:"current_value"`
	Quantity     float64 `json:"quantity" yaml:"quantity"`
}

// OptimizationResult is the optimizer output: one weight per asset in
// universe order, summing to one within tolerance and respecting bounds.
// Converged is false when the solver hit its iteration cap and the weights
// are the untouched initial guess.
type OptimizationResult struct {
	Weights    []float64 `json:"weights"`
	Converged  bool      `json:"converged"`
	Iterations int       `json:"iterations"`
	Objective  float64   `json:"objective"`
}
