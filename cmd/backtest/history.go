package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/go-backtest/config"
	"github.com/aouyang1/go-backtest/store"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func historyCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		series  string
		limit   int
		jsonOut bool
		remove  bool
	)
	cmd := &cobra.Command{
		Use:   "history [run id]",
		Short: "List saved runs or show a single run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			s, err := store.New(cfg.Storage.MaxRuns, cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("unable to open run history, %w", err)
			}
			defer s.Close()

			var runs []*store.Run
			if len(args) == 1 {
				if remove {
					return s.DeleteRun(args[0])
				}
				run, err := s.GetRun(args[0])
				if err != nil {
					return err
				}
				runs = []*store.Run{run}
			} else {
				runs, err = s.ListRuns(series, limit)
				if err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			if jsonOut {
				out, err := json.MarshalIndent(runs, "", "  ")
				if err != nil {
					return fmt.Errorf("unable to marshal runs, %w", err)
				}
				_, err = fmt.Fprintln(w, string(out))
				return err
			}
			return printHistory(w, runs)
		},
	}
	cmd.Flags().StringVar(&series, "series", "", "only list runs of this series")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list, 0 lists all")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the runs as json")
	cmd.Flags().BoolVar(&remove, "delete", false, "delete the given run")
	return cmd
}

// printHistory writes one row per model of every run
func printHistory(w io.Writer, runs []*store.Run) error {
	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintf(tbl, "Run\tCreated\tSeries\tTrain\tTest\tModel\tMAE\tRMSE\tMAPE\tAccuracy\tStatus\t\n"); err != nil {
		return err
	}
	for _, run := range runs {
		for _, m := range run.Models {
			status := "ok"
			if m.Error != "" {
				status = m.Error
			}
			if _, err := fmt.Fprintf(tbl, "%s\t%s\t%s\t%d\t%d\t%s\t%.5f\t%.5f\t%.3f\t%.3f\t%s\t\n",
				run.ID, run.CreatedAt.Format(time.RFC3339), run.Series, run.TrainLen, run.TestLen,
				m.Name, m.Scores.MAE, m.Scores.RMSE, m.Scores.MAPE, m.Scores.Accuracy, status); err != nil {
				return err
			}
		}
	}
	return tbl.Flush()
}
