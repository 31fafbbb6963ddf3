package main

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantfold/quantfold/internal/budget"
	"github.com/quantfold/quantfold/internal/constraint"
	"github.com/quantfold/quantfold/internal/domain"
	"github.com/quantfold/quantfold/internal/marketdata"
)

// runBudget computes risk budget allocations without touching the optimizer.
func runBudget(cmd *cobra.Command, args []string) error {
	snapPath, _ := cmd.Flags().GetString("snapshot")
	cfgPath, _ := cmd.Flags().GetString("config")
	outDir, _ := cmd.Flags().GetString("out")

	snap, err := loadSnapshot(snapPath)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	in := snap.hydrate(marketdata.NewContext(nil, 0))
	if err := readOverrides(cmd).apply(&in); err != nil {
		return err
	}

	log.Info().
		Int("positions", len(in.Positions)).
		Str("regime", in.Snapshot.Regime.String()).
		Str("profile", in.Profile.String()).
		Msg("Computing risk budgets")

	params := cfg.BudgetParams()
	engine := budget.NewEngine(&params, constraint.NewCalculator(cfg.CapTable()))
	report, err := engine.Compute(in.Positions, in.DeployableCapital, in.Snapshot.Regime, in.Profile)
	if err != nil {
		return fmt.Errorf("budget computation failed: %w", err)
	}

	if outDir == "" {
		return printJSON(report)
	}
	path, err := writeArtifact(outDir, "budget", uuid.New().String(), report)
	if err != nil {
		return err
	}

	printBudgetSummary(report)
	fmt.Printf("📁 Artifact: %s\n", path)
	return nil
}

func printBudgetSummary(report *domain.RiskBudgetReport) {
	fmt.Printf("✅ Risk budget for %s/%s equity $%.2f\n", report.Regime, report.Profile, report.TotalEquity)
	fmt.Printf("  global      $%10.2f of $%10.2f (%.1f%%)\n",
		report.Global.Used, report.Global.MaxLimit, report.Global.PctUsed)
	fmt.Printf("  per trade   $%10.2f\n", report.MaxRiskPerTrade)
	for _, name := range sortedUnderlyings(report.ByUnderlying) {
		alloc := report.ByUnderlying[name]
		fmt.Printf("  %-11s $%10.2f of $%10.2f (%.1f%%)\n", name, alloc.Used, alloc.MaxLimit, alloc.PctUsed)
	}
	for _, diag := range report.Diagnostics {
		fmt.Printf("⚠️ %s\n", diag)
	}
}

func sortedUnderlyings(allocs map[string]domain.RiskAllocation) []string {
	names := make([]string, 0, len(allocs))
	for name := range allocs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
