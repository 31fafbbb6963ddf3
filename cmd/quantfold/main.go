package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	appName = "QuantFold"
	version = "v0.4.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     "quantfold",
		Short:   "Deterministic option-spread portfolio construction",
		Version: version,
		Long: `QuantFold folds a book of option spreads into risk-model inputs, optimized
weights, regime-capped targets, risk budgets, and a rebalance trade list.

Runs are deterministic: the same snapshot and config produce byte-identical
artifacts, so two runs can be diffed field by field (see 'whatif').`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	rootCmd.SetVersionTemplate(appName + " {{.Version}}\n")

	constructCmd := &cobra.Command{
		Use:   "construct",
		Short: "Run the full construction pipeline on a snapshot",
		Long:  "Builds the risk model, optimizes weights, applies regime caps, allocates risk budgets, and generates rebalance trades from a portfolio snapshot",
		RunE:  runConstruct,
	}
	addRunFlags(constructCmd.Flags())
	constructCmd.Flags().String("out", "", "Directory for the JSON artifact (omit to print to stdout)")

	budgetCmd := &cobra.Command{
		Use:   "budget",
		Short: "Compute risk budget allocations only",
		Long:  "Runs the risk budget engine over the snapshot positions and prints the per-strategy, per-underlying, and greek allocations",
		RunE:  runBudget,
	}
	addRunFlags(budgetCmd.Flags())
	budgetCmd.Flags().String("out", "", "Directory for the JSON artifact (omit to print to stdout)")

	rebalanceCmd := &cobra.Command{
		Use:   "rebalance",
		Short: "Generate trades from target weights",
		Long:  "Turns the snapshot's target weights, holdings, and pricing into a budget-clamped trade list without re-running the optimizer",
		RunE:  runRebalance,
	}
	addRunFlags(rebalanceCmd.Flags())
	rebalanceCmd.Flags().String("out", "", "Directory for the JSON artifact (omit to print to stdout)")

	whatifCmd := &cobra.Command{
		Use:   "whatif",
		Short: "Diff a base run against an overridden run",
		Long:  "Runs the pipeline twice, once as the snapshot stands and once with the regime or profile overridden, and prints every field that diverges",
		RunE:  runWhatif,
	}
	addRunFlags(whatifCmd.Flags())
	whatifCmd.Flags().String("out", "", "Directory for the JSON artifact (omit to print to stdout)")

	rootCmd.AddCommand(constructCmd)
	rootCmd.AddCommand(budgetCmd)
	rootCmd.AddCommand(rebalanceCmd)
	rootCmd.AddCommand(whatifCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// addRunFlags attaches the input flags every subcommand shares.
func addRunFlags(fs *pflag.FlagSet) {
	fs.String("snapshot", "", "Path to the portfolio snapshot JSON (required)")
	fs.String("config", "", "Path to the caps/budget config YAML (omit for compiled defaults)")
	fs.Int("horizon-days", 0, "Override the snapshot holding horizon in days")
	fs.String("regime", "", "Override the snapshot regime (suppressed|normal|elevated|shock|rebound|chop)")
	fs.String("profile", "", "Override the risk profile (conservative|balanced|aggressive)")
}
