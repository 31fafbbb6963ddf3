package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/quantfold/quantfold/internal/domain"
)

func TestNilRegistryIsNoOp(t *testing.T) {
	var m *Registry

	assert.NotPanics(t, func() {
		m.RecordSolverRun(true)
		m.RecordSigmaRepair("nonpsd_diagonal")
		m.ObserveBudget(&domain.RiskBudgetReport{})
		m.RecordTrades([]domain.TradeInstruction{{Symbol: "SPY"}})
		m.RecordPipelineRun(nil)
		m.StartStepTimer("solve").Stop("success")
	})
}

func TestRegistriesCoexist(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()

	a.RecordSolverRun(true)
	b.RecordSolverRun(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.SolverRuns.WithLabelValues("converged")))
	assert.Equal(t, 0.0, testutil.ToFloat64(a.SolverRuns.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.SolverRuns.WithLabelValues("fallback")))
}

func TestRecordSigmaRepairSkipsClean(t *testing.T) {
	m := NewRegistry()

	m.RecordSigmaRepair("")
	m.RecordSigmaRepair("nonfinite_fallback")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SigmaRepairs.WithLabelValues("nonfinite_fallback")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SigmaRepairs))
}

func TestRecordTradesCountsClamps(t *testing.T) {
	m := NewRegistry()

	m.RecordTrades([]domain.TradeInstruction{
		{Symbol: "AAA", Action: domain.ActionBuy},
		{Symbol: "BBB", Action: domain.ActionBuy, Reason: "budget_clamped"},
		{Symbol: "CCC", Action: domain.ActionSell},
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Trades.WithLabelValues("buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Trades.WithLabelValues("sell")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TradesClamped))
}

func TestObserveBudgetPublishesBuckets(t *testing.T) {
	m := NewRegistry()

	report := &domain.RiskBudgetReport{
		Global: domain.NewRiskAllocation(2500, 10000),
		ByStrategy: map[domain.Strategy]domain.RiskAllocation{
			domain.StrategyDebitCall: domain.NewRiskAllocation(300, 1500),
		},
		ByUnderlying: map[string]domain.RiskAllocation{
			"SPY": domain.NewRiskAllocation(500, 2000),
		},
		Greeks: map[string]domain.RiskAllocation{
			"delta": domain.NewRiskAllocation(100, 5000),
		},
	}
	m.ObserveBudget(report)

	assert.InDelta(t, 0.25, testutil.ToFloat64(m.BudgetUtilization.WithLabelValues("global", "all")), 1e-12)
	assert.InDelta(t, 0.20, testutil.ToFloat64(m.BudgetUtilization.WithLabelValues("strategy", "debit_call")), 1e-12)
	assert.InDelta(t, 0.25, testutil.ToFloat64(m.BudgetUtilization.WithLabelValues("underlying", "SPY")), 1e-12)
	assert.InDelta(t, 0.02, testutil.ToFloat64(m.BudgetUtilization.WithLabelValues("greek", "delta")), 1e-12)
}

func TestRecordPipelineRun(t *testing.T) {
	m := NewRegistry()

	m.RecordPipelineRun(nil)
	m.RecordPipelineRun(errors.New("solver blew up"))
	m.RecordPipelineRun(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PipelineRuns.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineRuns.WithLabelValues("error")))
}

func TestHandlerServesOwnRegistry(t *testing.T) {
	m := NewRegistry()
	assert.NotNil(t, m.Handler())
}
