package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStrategyIsTotal(t *testing.T) {
	tests := []struct {
		input string
		want  Strategy
	}{
		{"debit_call", StrategyDebitCall},
		{"Bull Call Spread", StrategyDebitCall},
		{"put-credit-spread", StrategyCreditPut},
		{"bear_call_spread", StrategyCreditCall},
		{"iron_condor", StrategyIronCondor},
		{"vertical", StrategyVertical},
		{"long_put", StrategySingle},
		{"butterfly", StrategyOther},
		{"", StrategyOther},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseStrategy(tt.input), "input %q", tt.input)
	}
}

func TestStrategyCreditDebitTags(t *testing.T) {
	assert.True(t, StrategyCreditPut.IsCredit())
	assert.True(t, StrategyIronCondor.IsCredit())
	assert.False(t, StrategyIronCondor.IsDebit())
	assert.True(t, StrategyDebitCall.IsDebit())
	assert.False(t, StrategyVertical.IsCredit())
	assert.False(t, StrategyVertical.IsDebit())
}

func TestIsCreditStructureFallsBackToNetCost(t *testing.T) {
	credit := SpreadPosition{Strategy: StrategyVertical, NetCost: -1.25}
	debit := SpreadPosition{Strategy: StrategyVertical, NetCost: 2.10}
	tagged := SpreadPosition{Strategy: StrategyCreditCall, NetCost: 3.0}

	assert.True(t, credit.IsCreditStructure())
	assert.False(t, debit.IsCreditStructure())
	// Tag wins over a contradictory net cost sign.
	assert.True(t, tagged.IsCreditStructure())
}

func TestStrikeRange(t *testing.T) {
	pos := SpreadPosition{Legs: []Leg{
		{Strike: 100, Kind: KindCall, Side: SideShort},
		{Strike: 95, Kind: KindCall, Side: SideLong},
		{Kind: KindEquity},
	}}

	lo, hi, ok := pos.StrikeRange()
	assert.True(t, ok)
	assert.Equal(t, 95.0, lo)
	assert.Equal(t, 100.0, hi)

	_, _, ok = SpreadPosition{Legs: []Leg{{Kind: KindEquity}}}.StrikeRange()
	assert.False(t, ok)
}

func TestSymbolFallbackChain(t *testing.T) {
	assert.Equal(t, "SPY 450C", SpreadPosition{Ticker: "SPY 450C", ID: "p1", Underlying: "SPY"}.Symbol())
	assert.Equal(t, "p1", SpreadPosition{ID: "p1", Underlying: "SPY"}.Symbol())
	assert.Equal(t, "SPY", SpreadPosition{Underlying: "SPY"}.Symbol())
}

func TestAbsQuantity(t *testing.T) {
	assert.Equal(t, 3, SpreadPosition{Quantity: -3}.AbsQuantity())
	assert.Equal(t, 2, SpreadPosition{Quantity: 2}.AbsQuantity())
}

func TestNewRiskAllocation(t *testing.T) {
	a := NewRiskAllocation(400, 1000)
	assert.Equal(t, 600.0, a.Remaining)
	assert.InDelta(t, 40.0, a.PctUsed, 1e-9)

	over := NewRiskAllocation(1200, 1000)
	assert.Equal(t, -200.0, over.Remaining)
	assert.InDelta(t, 120.0, over.PctUsed, 1e-9)

	zero := NewRiskAllocation(100, 0)
	assert.Equal(t, 0.0, zero.PctUsed)
}

func TestConstraintsBoundsFor(t *testing.T) {
	explicit := Constraints{Bounds: [][2]float64{{0, 0.3}, {0.1, 0.5}}}
	b := explicit.BoundsFor(2)
	assert.Equal(t, [2]float64{0, 0.3}, b[0])
	assert.Equal(t, [2]float64{0.1, 0.5}, b[1])

	uniform := Constraints{MaxPositionPct: 0.25}
	b = uniform.BoundsFor(3)
	for i := range b {
		assert.Equal(t, [2]float64{0, 0.25}, b[i])
	}

	unbounded := Constraints{}
	b = unbounded.BoundsFor(2)
	assert.Equal(t, [2]float64{0, 1}, b[0])
}

func TestConstraintsValidate(t *testing.T) {
	assert.NoError(t, Constraints{RiskAversion: 1, MaxPositionPct: 0.5}.Validate())
	assert.Error(t, Constraints{RiskAversion: -1}.Validate())
	assert.Error(t, Constraints{TurnoverPenalty: -0.1}.Validate())
	assert.Error(t, Constraints{MaxPositionPct: 1.5}.Validate())
	assert.Error(t, Constraints{GreekBudgets: map[string]float64{"delta": -2}}.Validate())
	assert.Error(t, Constraints{Bounds: [][2]float64{{0.5, 0.1}}}.Validate())

	negDD := -0.05
	assert.Error(t, Constraints{MaxDrawdown: &negDD}.Validate())
	posDD := 0.10
	assert.NoError(t, Constraints{MaxDrawdown: &posDD}.Validate())
}

func TestCovarianceInputValidate(t *testing.T) {
	ok := CovarianceInput{
		Tickers: []string{"SPY", "QQQ"},
		Matrix:  [][]float64{{0.04, 0.01}, {0.01, 0.05}},
	}
	assert.NoError(t, ok.Validate())

	bad := CovarianceInput{Tickers: []string{"SPY"}, Matrix: [][]float64{{0.04, 0.01}}}
	assert.Error(t, bad.Validate())

	ragged := CovarianceInput{Tickers: []string{"SPY", "QQQ"}, Matrix: [][]float64{{0.04}, {0.01, 0.05}}}
	assert.Error(t, ragged.Validate())
}
