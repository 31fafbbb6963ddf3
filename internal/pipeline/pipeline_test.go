package pipeline

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/quantfold/internal/budget"
	"github.com/quantfold/quantfold/internal/constraint"
	"github.com/quantfold/quantfold/internal/domain"
	"github.com/quantfold/quantfold/internal/metrics"
)

// twoSpreadInput is a small but complete book: a debit call spread on SPY
// and a credit put spread on QQQ, with covariance, holdings, and quotes.
func twoSpreadInput() Input {
	expiry := time.Date(2026, 6, 19, 0, 0, 0, 0, time.UTC)
	return Input{
		Positions: []domain.SpreadPosition{
			{
				ID:                 "pos-1",
				Underlying:         "SPY",
				Ticker:             "SPY_DC",
				Strategy:           domain.StrategyDebitCall,
				Quantity:           2,
				NetCost:            375.0,
				CurrentValue:       800.0,
				UnderlyingPrice:    450.0,
				MaxLossPerContract: 375.0,
				Greeks:             domain.Greeks{Delta: 60, Vega: 30, Theta: -8},
				Legs: []domain.Leg{
					{Strike: 450, Expiry: expiry, Kind: domain.KindCall, Side: domain.SideLong},
					{Strike: 460, Expiry: expiry, Kind: domain.KindCall, Side: domain.SideShort},
				},
			},
			{
				ID:                 "pos-2",
				Underlying:         "QQQ",
				Ticker:             "QQQ_CP",
				Strategy:           domain.StrategyCreditPut,
				Quantity:           1,
				NetCost:            -120.0,
				CurrentValue:       110.0,
				UnderlyingPrice:    380.0,
				MaxLossPerContract: 380.0,
				Greeks:             domain.Greeks{Delta: 25, Vega: -20, Theta: 6},
				Legs: []domain.Leg{
					{Strike: 380, Expiry: expiry, Kind: domain.KindPut, Side: domain.SideShort},
					{Strike: 375, Expiry: expiry, Kind: domain.KindPut, Side: domain.SideLong},
				},
			},
		},
		Covariance: domain.CovarianceInput{
			Tickers: []string{"SPY", "QQQ"},
			Matrix: [][]float64{
				{0.04, 0.03},
				{0.03, 0.06},
			},
		},
		Holdings: []domain.Holding{
			{Symbol: "SPY_DC", CurrentValue: 800, Quantity: 2},
		},
		Pricing:           map[string]float64{"SPY_DC": 400, "QQQ_CP": 120},
		DeployableCapital: 5000,
		HorizonDays:       30,
		Snapshot:          domain.RegimeSnapshot{Regime: domain.RegimeNormal, RiskScaler: 1.0},
		Profile:           domain.ProfileBalanced,
		Constraints:       domain.Constraints{RiskAversion: 2.0, MaxPositionPct: 0.5},
	}
}

func TestRunEndToEnd(t *testing.T) {
	p := New(nil)

	out, err := p.Run(twoSpreadInput())
	require.NoError(t, err)

	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, []string{"SPY_DC", "QQQ_CP"}, out.Symbols)
	assert.True(t, out.Result.Converged)
	assert.Empty(t, out.Diagnostics)

	// Two assets bounded at 0.5 with a full-investment constraint pin the
	// raw weights at [0.5, 0.5]; the normal-regime caps then bind.
	require.Len(t, out.Weights, 2)
	assert.InDelta(t, 0.15, out.Weights[0], 1e-9)
	assert.InDelta(t, 0.12, out.Weights[1], 1e-9)
	assert.InDelta(t, 0.15, out.Targets["SPY_DC"], 1e-9)
	assert.InDelta(t, 0.12, out.Targets["QQQ_CP"], 1e-9)

	// Budget: equity 5910 (5000 + 800 + 110), usage 750 + 380.
	require.NotNil(t, out.Budget)
	assert.InDelta(t, 1130.0, out.Budget.Global.Used, 1e-9)
	assert.InDelta(t, 0.40*5910.0, out.Budget.Global.MaxLimit, 1e-9)

	// Equity for targets derives as 5000 + 800 = 5800. SPY_DC moves by only
	// 70 (under one 400 unit); QQQ_CP buys floor(696/120) = 5 units.
	require.Len(t, out.Trades, 1)
	trade := out.Trades[0]
	assert.Equal(t, "QQQ_CP", trade.Symbol)
	assert.Equal(t, domain.ActionBuy, trade.Action)
	assert.Equal(t, 5, trade.Quantity)
	assert.InDelta(t, 600.0, trade.ValueDelta, 1e-9)
	assert.Empty(t, trade.Reason)
}

func TestRunDeterminism(t *testing.T) {
	p := New(nil)

	a, err := p.Run(twoSpreadInput())
	require.NoError(t, err)
	b, err := p.Run(twoSpreadInput())
	require.NoError(t, err)

	assert.Equal(t, a.Weights, b.Weights)
	assert.Equal(t, a.Targets, b.Targets)
	assert.Equal(t, a.Trades, b.Trades)
	assert.Equal(t, a.Budget, b.Budget)
	assert.Empty(t, Diff(a, b))
}

func TestRunShockRegimeTightens(t *testing.T) {
	p := New(nil)

	in := twoSpreadInput()
	in.Snapshot.Regime = domain.RegimeShock

	out, err := p.Run(in)
	require.NoError(t, err)

	assert.InDelta(t, 0.03, out.Weights[0], 1e-9)
	assert.InDelta(t, 0.02, out.Weights[1], 1e-9)

	// Target value for SPY_DC drops to 174 against 800 held: sell one unit.
	require.Len(t, out.Trades, 1)
	assert.Equal(t, "SPY_DC", out.Trades[0].Symbol)
	assert.Equal(t, domain.ActionSell, out.Trades[0].Action)
	assert.Equal(t, 1, out.Trades[0].Quantity)
}

func TestRunConvictionScalesUncappedWeights(t *testing.T) {
	// A sky-high cap table isolates the conviction scaling from cap clamps.
	wideOpen := map[domain.Regime]constraint.RegimeCaps{
		domain.RegimeNormal: {Default: 10.0},
	}
	p := New(&Options{CapTable: wideOpen})

	base, err := p.Run(twoSpreadInput())
	require.NoError(t, err)

	half := twoSpreadInput()
	half.Convictions = map[string]float64{"QQQ_CP": 0.0}
	shadow, err := p.Run(half)
	require.NoError(t, err)

	assert.InDelta(t, base.Targets["SPY_DC"], shadow.Targets["SPY_DC"], 1e-12)
	assert.InDelta(t, 0.5*base.Targets["QQQ_CP"], shadow.Targets["QQQ_CP"], 1e-12)
}

func TestRunEmptyUniverse(t *testing.T) {
	p := New(nil)

	out, err := p.Run(Input{
		DeployableCapital: 1000,
		Snapshot:          domain.RegimeSnapshot{Regime: domain.RegimeNormal, RiskScaler: 1},
	})
	require.NoError(t, err)

	assert.Empty(t, out.Weights)
	assert.Empty(t, out.Trades)
	assert.True(t, out.Result.Converged)
	require.NotNil(t, out.Budget)
	assert.InDelta(t, 0.0, out.Budget.Global.Used, 1e-12)
}

func TestRunNegativeHorizonErrors(t *testing.T) {
	p := New(nil)

	in := twoSpreadInput()
	in.HorizonDays = -1

	_, err := p.Run(in)
	assert.Error(t, err)
}

func TestRunNegativeCapitalErrors(t *testing.T) {
	p := New(nil)

	in := twoSpreadInput()
	in.DeployableCapital = -100

	_, err := p.Run(in)
	assert.Error(t, err)
}

func TestRunZeroScalerDefaultsToFullRisk(t *testing.T) {
	p := New(nil)

	in := twoSpreadInput()
	in.Snapshot.RiskScaler = 0

	_, err := p.Run(in)
	assert.NoError(t, err)
}

func TestRunRejectsOutOfRangeScaler(t *testing.T) {
	p := New(nil)

	in := twoSpreadInput()
	in.Snapshot.RiskScaler = 1.5

	_, err := p.Run(in)
	assert.Error(t, err)
}

func TestRunRecordsMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	p := New(&Options{Metrics: reg})

	_, err := p.Run(twoSpreadInput())
	require.NoError(t, err)
	// A second run with a broken input records the error path too.
	bad := twoSpreadInput()
	bad.HorizonDays = -3
	_, err = p.Run(bad)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.PipelineRuns.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.PipelineRuns.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.SolverRuns.WithLabelValues("converged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Trades.WithLabelValues("buy")))
}

func TestRunHonorsBudgetOverride(t *testing.T) {
	params := budget.DefaultParams()
	params.PerTradeOverride = 25
	p := New(&Options{Budget: &params})

	out, err := p.Run(twoSpreadInput())
	require.NoError(t, err)
	assert.InDelta(t, 25.0, out.Budget.MaxRiskPerTrade, 1e-9)
}
