package constraint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/quantfold/internal/domain"
)

func TestResolveCapSources(t *testing.T) {
	calc := NewCalculator(nil)

	capFrac, source, err := calc.ResolveCap(domain.RegimeNormal, domain.StrategyDebitCall)
	require.NoError(t, err)
	assert.Equal(t, SourceExact, source)
	assert.Equal(t, 0.15, capFrac)

	// Other has no explicit cell anywhere, so the regime default serves.
	capFrac, source, err = calc.ResolveCap(domain.RegimeNormal, domain.StrategyOther)
	require.NoError(t, err)
	assert.Equal(t, SourceRegimeDefault, source)
	assert.Equal(t, 0.05, capFrac)
}

func TestResolveCapUnsupportedStrategy(t *testing.T) {
	calc := NewCalculator(map[domain.Regime]RegimeCaps{
		domain.RegimeNormal: {Caps: map[domain.Strategy]float64{domain.StrategyDebitCall: 0.1}},
	})

	_, source, err := calc.ResolveCap(domain.RegimeNormal, domain.StrategyIronCondor)
	require.Error(t, err)
	assert.Equal(t, SourceBaseWeight, source)

	var unsupported *UnsupportedStrategyError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, domain.StrategyIronCondor, unsupported.Strategy)
	assert.Equal(t, domain.RegimeNormal, unsupported.Regime)

	_, _, err = calc.ResolveCap(domain.RegimeShock, domain.StrategyDebitCall)
	assert.Error(t, err, "missing regime row resolves to nothing")
}

func TestAdjustConvictionScaling(t *testing.T) {
	calc := NewCalculator(nil)

	// Full conviction passes the base weight straight to the cap check.
	assert.InDelta(t, 0.10, calc.Adjust(0.10, domain.StrategyDebitCall, domain.RegimeNormal, 1.0), 1e-12)
	// Zero conviction halves it.
	assert.InDelta(t, 0.05, calc.Adjust(0.10, domain.StrategyDebitCall, domain.RegimeNormal, 0.0), 1e-12)
	// Conviction outside [0,1] clamps.
	assert.InDelta(t, 0.10, calc.Adjust(0.10, domain.StrategyDebitCall, domain.RegimeNormal, 3.0), 1e-12)
	assert.InDelta(t, 0.05, calc.Adjust(0.10, domain.StrategyDebitCall, domain.RegimeNormal, -2.0), 1e-12)
}

func TestAdjustAppliesCap(t *testing.T) {
	calc := NewCalculator(nil)

	// Normal debit_call cap is 0.15: a 0.40 base weight pins to it.
	assert.Equal(t, 0.15, calc.Adjust(0.40, domain.StrategyDebitCall, domain.RegimeNormal, 1.0))
	// Shock tightens the same trade to 0.03.
	assert.Equal(t, 0.03, calc.Adjust(0.40, domain.StrategyDebitCall, domain.RegimeShock, 1.0))
}

func TestAdjustIsTotalWithoutTable(t *testing.T) {
	calc := NewCalculator(map[domain.Regime]RegimeCaps{})

	// Nothing resolves: the base weight caps itself, scaled by conviction.
	assert.InDelta(t, 0.075, calc.Adjust(0.10, domain.StrategyOther, domain.RegimeChop, 0.5), 1e-12)
	assert.InDelta(t, 0.10, calc.Adjust(0.10, domain.StrategyOther, domain.RegimeChop, 1.0), 1e-12)
}

func TestAdjustMonotoneInConviction(t *testing.T) {
	calc := NewCalculator(nil)

	prev := -1.0
	for conviction := 0.0; conviction <= 1.0; conviction += 0.05 {
		got := calc.Adjust(0.12, domain.StrategyCreditPut, domain.RegimeNormal, conviction)
		assert.GreaterOrEqual(t, got, prev, "conviction %.2f", conviction)
		prev = got
	}
}

func TestShockTightensEveryCap(t *testing.T) {
	calc := NewCalculator(nil)
	normal := calc.Caps(domain.RegimeNormal)
	shock := calc.Caps(domain.RegimeShock)

	for strategy, normalCap := range normal {
		shockCap, ok := shock[strategy]
		require.True(t, ok, "strategy %s missing from shock row", strategy)
		assert.Less(t, shockCap, normalCap, "strategy %s", strategy)
	}
}

func TestEveryCombinationResolvesWithDefaultTable(t *testing.T) {
	calc := NewCalculator(nil)
	for _, regime := range domain.AllRegimes() {
		for _, strategy := range domain.AllStrategies() {
			capFrac, _, err := calc.ResolveCap(regime, strategy)
			require.NoError(t, err, "regime %s strategy %s", regime, strategy)
			assert.Greater(t, capFrac, 0.0)
		}
	}
}
