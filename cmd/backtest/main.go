// Command backtest evaluates forecasting back-ends on the tail of a csv series and keeps a
// history of the runs.
package main

import (
	"fmt"
	"os"

	"github.com/aouyang1/go-backtest/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Backtest forecasting models on a held out segment of a time series",
		Long: `Splits a time series chronologically, fits every enabled model on the leading
segment, forecasts the trailing segment and reports the accuracy of each model side by side.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("unable to load config, %w", err)
		}
		return cfg, nil
	}

	rootCmd.AddCommand(runCmd(load))
	rootCmd.AddCommand(historyCmd(load))
	return rootCmd
}
