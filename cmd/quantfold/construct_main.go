package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantfold/quantfold/internal/marketdata"
	"github.com/quantfold/quantfold/internal/pipeline"
)

// runConstruct executes the full construction pipeline over one snapshot.
func runConstruct(cmd *cobra.Command, args []string) error {
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

	evt := log.Info().
		Int("positions", len(in.Positions)).
		Str("regime", in.Snapshot.Regime.String()).
		Str("profile", in.Profile.String()).
		Int("horizon_days", in.HorizonDays)
	if !snap.AsOf.IsZero() {
		evt = evt.Time("as_of", snap.AsOf)
	}
	evt.Msg("Running construction pipeline")

	outcome, err := pipeline.New(pipelineOptions(cfg)).Run(in)
	if err != nil {
		return fmt.Errorf("construction failed: %w", err)
	}

	if outDir == "" {
		return printJSON(outcome)
	}
	path, err := writeArtifact(outDir, "construct", outcome.RunID, outcome)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Construction complete: %d targets, %d trades\n", len(outcome.Targets), len(outcome.Trades))
	printDiagnostics(outcome)
	printTrades(outcome.Trades)
	fmt.Printf("📁 Artifact: %s\n", path)
	return nil
}

func printDiagnostics(outcome *pipeline.Outcome) {
	for _, diag := range outcome.Diagnostics {
		fmt.Printf("⚠️ %s\n", diag)
	}
}
