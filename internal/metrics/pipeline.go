// Package metrics exposes Prometheus instrumentation for the construction
// pipeline. The Registry owns its own prometheus.Registry so multiple
// instances can coexist in tests; every method is a no-op on a nil receiver
// so library code never guards its instrumentation calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/quantfold/quantfold/internal/domain"
)

// Registry holds all Prometheus metrics for the construction pipeline.
type Registry struct {
	reg *prometheus.Registry

	// Step duration metrics
	StepDuration *prometheus.HistogramVec

	// Solver outcome metrics
	SolverRuns *prometheus.CounterVec

	// Covariance sanitation metrics
	SigmaRepairs *prometheus.CounterVec

	// Budget utilization by bucket
	BudgetUtilization *prometheus.GaugeVec

	// Trade generation metrics
	Trades        *prometheus.CounterVec
	TradesClamped prometheus.Counter

	// Whole-run metrics
	PipelineRuns *prometheus.CounterVec
}

// NewRegistry creates a metrics registry with all pipeline metrics
// registered against a fresh prometheus.Registry.
func NewRegistry() *Registry {
	m := &Registry{
		reg: prometheus.NewRegistry(),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quantfold_step_duration_seconds",
				Help:    "Duration of each pipeline step in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"step", "result"},
		),

		SolverRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantfold_solver_runs_total",
				Help: "Total optimizer runs by convergence status",
			},
			[]string{"status"},
		),

		SigmaRepairs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantfold_sigma_repairs_total",
				Help: "Total covariance sanitation events by repair kind",
			},
			[]string{"kind"},
		),

		BudgetUtilization: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quantfold_budget_utilization_ratio",
				Help: "Fraction of each risk bucket currently in use",
			},
			[]string{"scope", "name"},
		),

		Trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantfold_trades_total",
				Help: "Total trade instructions generated by action",
			},
			[]string{"action"},
		),

		TradesClamped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quantfold_trades_clamped_total",
				Help: "Total buy instructions reduced by the risk budget",
			},
		),

		PipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantfold_pipeline_runs_total",
				Help: "Total pipeline runs by result",
			},
			[]string{"result"},
		),
	}

	m.reg.MustRegister(
		m.StepDuration,
		m.SolverRuns,
		m.SigmaRepairs,
		m.BudgetUtilization,
		m.Trades,
		m.TradesClamped,
		m.PipelineRuns,
	)

	return m
}

// Handler serves this registry's metrics over HTTP.
func (m *Registry) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// StepTimer tracks execution time for one pipeline step.
type StepTimer struct {
	metrics *Registry
	step    string
	start   time.Time
}

// StartStepTimer begins timing a pipeline step. Safe on a nil Registry.
func (m *Registry) StartStepTimer(step string) *StepTimer {
	return &StepTimer{metrics: m, step: step, start: time.Now()}
}

// Stop completes the timing and records the observation.
func (st *StepTimer) Stop(result string) {
	if st == nil || st.metrics == nil {
		return
	}
	duration := time.Since(st.start)
	st.metrics.StepDuration.WithLabelValues(st.step, result).Observe(duration.Seconds())

	log.Debug().
		Str("step", st.step).
		Str("result", result).
		Dur("duration", duration).
		Msg("pipeline step completed")
}

// RecordSolverRun counts one optimizer run by convergence status.
func (m *Registry) RecordSolverRun(converged bool) {
	if m == nil {
		return
	}
	status := "converged"
	if !converged {
		status = "fallback"
	}
	m.SolverRuns.WithLabelValues(status).Inc()
}

// RecordSigmaRepair counts one covariance sanitation event. An empty kind
// means the matrix needed no repair and is not counted.
func (m *Registry) RecordSigmaRepair(kind string) {
	if m == nil || kind == "" {
		return
	}
	m.SigmaRepairs.WithLabelValues(kind).Inc()
}

// ObserveBudget publishes the utilization ratio of every bucket in a report.
func (m *Registry) ObserveBudget(report *domain.RiskBudgetReport) {
	if m == nil || report == nil {
		return
	}
	m.BudgetUtilization.WithLabelValues("global", "all").Set(utilization(report.Global))
	for strategy, alloc := range report.ByStrategy {
		m.BudgetUtilization.WithLabelValues("strategy", strategy.String()).Set(utilization(alloc))
	}
	for underlying, alloc := range report.ByUnderlying {
		m.BudgetUtilization.WithLabelValues("underlying", underlying).Set(utilization(alloc))
	}
	for greek, alloc := range report.Greeks {
		m.BudgetUtilization.WithLabelValues("greek", greek).Set(utilization(alloc))
	}
}

func utilization(alloc domain.RiskAllocation) float64 {
	if alloc.MaxLimit <= 0 {
		return 0
	}
	return alloc.Used / alloc.MaxLimit
}

// RecordTrades counts generated instructions by action and tracks how many
// buys the budget clamped.
func (m *Registry) RecordTrades(trades []domain.TradeInstruction) {
	if m == nil {
		return
	}
	for _, trade := range trades {
		m.Trades.WithLabelValues(trade.Action.String()).Inc()
		if trade.Reason != "" {
			m.TradesClamped.Inc()
		}
	}
}

// RecordPipelineRun counts one whole pipeline run.
func (m *Registry) RecordPipelineRun(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.PipelineRuns.WithLabelValues(result).Inc()
}
