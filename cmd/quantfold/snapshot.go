package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfold/quantfold/internal/artifacts"
	"github.com/quantfold/quantfold/internal/config"
	"github.com/quantfold/quantfold/internal/domain"
	"github.com/quantfold/quantfold/internal/marketdata"
	"github.com/quantfold/quantfold/internal/optimizer"
	"github.com/quantfold/quantfold/internal/pipeline"
)

// portfolioSnapshot is the JSON input document every subcommand reads: the
// position book, its covariance universe, current holdings, and the capital
// and regime context for one run. Targets is only consulted by rebalance,
// which skips the optimizer.
type portfolioSnapshot struct {
	AsOf              time.Time               `json:"as_of,omitempty"`
	Positions         []domain.SpreadPosition `json:"positions"`
	Covariance        domain.CovarianceInput  `json:"covariance,omitempty"`
	Holdings          []domain.Holding        `json:"holdings,omitempty"`
	Pricing           map[string]float64      `json:"pricing,omitempty"`
	DeployableCapital float64                 `json:"deployable_capital"`
	TotalEquity       float64                 `json:"total_equity,omitempty"`
	HorizonDays       int                     `json:"horizon_days,omitempty"`
	Regime            domain.Regime           `json:"regime"`
	RiskScaler        float64                 `json:"risk_scaler,omitempty"`
	Profile           domain.RiskProfile      `json:"profile,omitempty"`
	Constraints       domain.Constraints      `json:"constraints,omitempty"`
	CurrentWeights    []float64               `json:"current_weights,omitempty"`
	Convictions       map[string]float64      `json:"convictions,omitempty"`
	Targets           map[string]float64      `json:"targets,omitempty"`
}

// defaultHorizonDays stands in when neither the snapshot nor the flag set a
// holding horizon.
const defaultHorizonDays = 30

func loadSnapshot(path string) (*portfolioSnapshot, error) {
	if path == "" {
		return nil, fmt.Errorf("--snapshot is required")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap portfolioSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// hydrate seeds the marketdata context from the snapshot document and builds
// the run input from whatever is still fresh. A one-shot CLI invocation
// never ages anything out; a long-lived embedder sharing the context does.
// Flag-level overrides are applied separately so whatif can hold the base
// run fixed.
func (s *portfolioSnapshot) hydrate(ctx *marketdata.Context) pipeline.Input {
	ctx.SetQuotes(s.Pricing)
	ctx.SetSnapshot(domain.RegimeSnapshot{Regime: s.Regime, RiskScaler: s.RiskScaler}, 0)

	horizon := s.HorizonDays
	if horizon == 0 {
		horizon = defaultHorizonDays
	}
	in := pipeline.Input{
		Positions:         s.Positions,
		Covariance:        s.Covariance,
		Holdings:          s.Holdings,
		Pricing:           ctx.FreshQuotes(),
		DeployableCapital: s.DeployableCapital,
		TotalEquity:       s.TotalEquity,
		HorizonDays:       horizon,
		Profile:           s.Profile,
		Constraints:       s.Constraints,
		CurrentWeights:    s.CurrentWeights,
		Convictions:       s.Convictions,
	}
	if snap, ok := ctx.Snapshot(); ok {
		in.Snapshot = snap
	}
	return in
}

// equity mirrors the pipeline's equity derivation for subcommands that skip
// the full run: explicit total equity wins, else deployable plus holdings.
func (s *portfolioSnapshot) equity() float64 {
	if s.TotalEquity > 0 {
		return s.TotalEquity
	}
	total := s.DeployableCapital
	for _, h := range s.Holdings {
		total += h.CurrentValue
	}
	return total
}

// runOverrides carries the flag-level input overrides shared by the
// subcommands.
type runOverrides struct {
	Regime      string
	Profile     string
	HorizonDays int
}

func readOverrides(cmd *cobra.Command) runOverrides {
	regime, _ := cmd.Flags().GetString("regime")
	profile, _ := cmd.Flags().GetString("profile")
	horizon, _ := cmd.Flags().GetInt("horizon-days")
	return runOverrides{Regime: regime, Profile: profile, HorizonDays: horizon}
}

func (o runOverrides) apply(in *pipeline.Input) error {
	if o.Regime != "" {
		regime, err := domain.ParseRegime(o.Regime)
		if err != nil {
			return fmt.Errorf("--regime: %w", err)
		}
		in.Snapshot.Regime = regime
	}
	if o.Profile != "" {
		profile, err := domain.ParseRiskProfile(o.Profile)
		if err != nil {
			return fmt.Errorf("--profile: %w", err)
		}
		in.Profile = profile
	}
	if o.HorizonDays > 0 {
		in.HorizonDays = o.HorizonDays
	}
	return nil
}

// pipelineOptions maps the loaded config onto pipeline components.
func pipelineOptions(cfg *config.Config) *pipeline.Options {
	riskParams := cfg.RiskModelParams()
	solverCfg := cfg.OptimizerConfig()
	scenario := cfg.Scenario()
	budgetParams := cfg.BudgetParams()
	return &pipeline.Options{
		RiskModel: &riskParams,
		Solver:    optimizer.NewPenaltySolver(&solverCfg),
		CapTable:  cfg.CapTable(),
		Budget:    &budgetParams,
		Scenario:  &scenario,
	}
}

// printJSON writes the payload to stdout as indented JSON, for runs without
// an artifact directory.
func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(b))
	return nil
}

// writeArtifact persists the payload as a stamped JSON envelope under dir
// and returns the written path.
func writeArtifact(dir, kind, runID string, payload any) (string, error) {
	path, err := artifacts.NewWriter(dir, nil).WriteEnvelope(kind, runID, payload)
	if err != nil {
		return "", fmt.Errorf("failed to write %s artifact: %w", kind, err)
	}
	return path, nil
}
