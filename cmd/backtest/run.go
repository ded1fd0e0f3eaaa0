package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	backtest "github.com/aouyang1/go-backtest"
	"github.com/aouyang1/go-backtest/backend"
	"github.com/aouyang1/go-backtest/config"
	"github.com/aouyang1/go-backtest/metrics"
	"github.com/aouyang1/go-backtest/store"
	"github.com/aouyang1/go-backtest/telemetry"
	"github.com/aouyang1/go-backtest/timedataset"
	"github.com/goccy/go-json"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

type runFlags struct {
	input       string
	name        string
	timeColumn  string
	valueColumn string
	filters     map[string]string
	jsonOut     bool
	verbose     bool
	strict      bool
	save        bool
	profileDir  string
}

func runCmd(load func() (*config.Config, error)) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Backtest the enabled models on a csv series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config, %w", err)
			}
			slog.SetDefault(slog.New(cfg.Logging.NewHandler(cmd.ErrOrStderr())))

			if f.profileDir != "" {
				defer profile.Start(profile.CPUProfile, profile.ProfilePath(f.profileDir), profile.NoShutdownHook).Stop()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runBacktest(ctx, cmd.OutOrStdout(), cfg, f)
		},
	}

	cmd.Flags().StringVarP(&f.input, "input", "i", "", "csv file holding the series")
	cmd.Flags().StringVar(&f.name, "name", "", "series name recorded in the run history")
	cmd.Flags().StringVar(&f.timeColumn, "time-column", "", "csv column holding the dates")
	cmd.Flags().StringVar(&f.valueColumn, "value-column", "", "csv column holding the values")
	cmd.Flags().StringToStringVar(&f.filters, "filter", nil, "only keep rows where column=value")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "print the results as json")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "print the fitted parameters of every model")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "fail when any model fails")
	cmd.Flags().BoolVar(&f.save, "save", false, "save the run to the history database")
	cmd.Flags().StringVar(&f.profileDir, "profile", "", "write a cpu profile to this directory")
	return cmd
}

// apply overrides the config with the flags set on the command line
func (f runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Input.Path = f.input
	}
	if flags.Changed("name") {
		cfg.Input.Name = f.name
	}
	if flags.Changed("time-column") {
		cfg.Input.TimeColumn = f.timeColumn
	}
	if flags.Changed("value-column") {
		cfg.Input.ValueColumn = f.valueColumn
	}
	if flags.Changed("filter") {
		cfg.Input.Filters = f.filters
	}
	if flags.Changed("save") {
		cfg.Storage.Enabled = f.save
	}
}

func runBacktest(ctx context.Context, w io.Writer, cfg *config.Config, f runFlags) error {
	if cfg.Input.Path == "" {
		return fmt.Errorf("no input csv, set --input or input.path")
	}

	tp, err := telemetry.InitTracer(ctx, &cfg.Tracing)
	if err != nil {
		return fmt.Errorf("unable to initialize tracing, %w", err)
	}
	defer func() {
		if err := telemetry.Shutdown(context.Background(), tp); err != nil {
			slog.Warn("unable to shutdown tracer provider", "error", err.Error())
		}
	}()

	series, err := timedataset.LoadCSVFile(cfg.Input.Path, cfg.Input.CSVOptions())
	if err != nil {
		return fmt.Errorf("unable to load series, %w", err)
	}
	slog.Info("loaded series", "path", cfg.Input.Path, "points", series.Len(),
		"start", series.StartTime(), "end", series.EndTime())

	backends, err := cfg.Backends()
	if err != nil {
		return fmt.Errorf("unable to create back-ends, %w", err)
	}

	rec := metrics.New()
	opt := cfg.Backtest.Options()
	opt.Recorder = rec
	if tp != nil {
		opt.TracerProvider = tp
	}
	bt, err := backtest.New(opt, backends...)
	if err != nil {
		return err
	}

	res, err := bt.Run(ctx, series)
	if err != nil {
		return fmt.Errorf("unable to backtest %s, %w", cfg.Input.SeriesName(), err)
	}

	if err := printResults(w, res, f); err != nil {
		return err
	}

	if cfg.Metrics.Textfile != "" {
		if err := rec.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return err
		}
	}

	if cfg.Storage.Enabled {
		id, err := saveRun(cfg, res)
		if err != nil {
			return err
		}
		slog.Info("saved run", "id", id, "series", cfg.Input.SeriesName())
	}

	if err := res.Err(); err != nil {
		if f.strict {
			return fmt.Errorf("one or more models failed, %w", err)
		}
		slog.Warn("one or more models failed", "error", err.Error())
	}
	return nil
}

func printResults(w io.Writer, res *backtest.Results, f runFlags) error {
	if f.jsonOut {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("unable to marshal results, %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}

	if err := res.TablePrint(w, "", "  "); err != nil {
		return err
	}
	if !f.verbose {
		return nil
	}
	for _, run := range res.Runs {
		tp, ok := run.Model.(backend.TablePrinter)
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s:\n", run.Name); err != nil {
			return err
		}
		if err := tp.TablePrint(w, "", "  "); err != nil {
			return err
		}
	}
	return nil
}

func saveRun(cfg *config.Config, res *backtest.Results) (string, error) {
	s, err := store.New(cfg.Storage.MaxRuns, cfg.Storage.Path)
	if err != nil {
		return "", fmt.Errorf("unable to open run history, %w", err)
	}
	defer s.Close()

	run, err := store.NewRun(cfg.Input.SeriesName(), res)
	if err != nil {
		return "", err
	}
	if err := s.SaveRun(run); err != nil {
		return "", err
	}
	return run.ID, nil
}
