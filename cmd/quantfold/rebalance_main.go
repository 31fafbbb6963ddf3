package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantfold/quantfold/internal/budget"
	"github.com/quantfold/quantfold/internal/constraint"
	"github.com/quantfold/quantfold/internal/domain"
	"github.com/quantfold/quantfold/internal/marketdata"
	"github.com/quantfold/quantfold/internal/rebalance"
)

// runRebalance generates trades from the snapshot's target weights without
// re-running the optimizer. When the snapshot carries positions, the risk
// budget engine supplies the buy ceiling; otherwise deployable capital does.
func runRebalance(cmd *cobra.Command, args []string) error {
	snapPath, _ := cmd.Flags().GetString("snapshot")
	cfgPath, _ := cmd.Flags().GetString("config")
	outDir, _ := cmd.Flags().GetString("out")

	snap, err := loadSnapshot(snapPath)
	if err != nil {
		return err
	}
	if len(snap.Targets) == 0 {
		return fmt.Errorf("snapshot has no targets; run construct first or add a targets map")
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	in := snap.hydrate(marketdata.NewContext(nil, 0))
	if err := readOverrides(cmd).apply(&in); err != nil {
		return err
	}

	var report *domain.RiskBudgetReport
	if len(in.Positions) > 0 {
		params := cfg.BudgetParams()
		engine := budget.NewEngine(&params, constraint.NewCalculator(cfg.CapTable()))
		report, err = engine.Compute(in.Positions, in.DeployableCapital, in.Snapshot.Regime, in.Profile)
		if err != nil {
			return fmt.Errorf("budget computation failed: %w", err)
		}
	}

	equity := snap.equity()
	log.Info().
		Int("targets", len(snap.Targets)).
		Int("holdings", len(in.Holdings)).
		Float64("equity", equity).
		Msg("Generating rebalance trades")

	trades := rebalance.NewGenerator().Generate(in.Holdings, snap.Targets, equity, in.DeployableCapital, in.Pricing, report)

	if outDir == "" {
		return printJSON(trades)
	}
	path, err := writeArtifact(outDir, "rebalance", uuid.New().String(), trades)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Rebalance plan: %d trades\n", len(trades))
	printTrades(trades)
	fmt.Printf("📁 Artifact: %s\n", path)
	return nil
}

func printTrades(trades []domain.TradeInstruction) {
	for _, trade := range trades {
		fmt.Printf("  %-4s %5d %-14s $%10.2f", trade.Action, trade.Quantity, trade.Symbol, trade.ValueDelta)
		if trade.Reason != "" {
			fmt.Printf("  (%s)", trade.Reason)
		}
		fmt.Println()
	}
}
