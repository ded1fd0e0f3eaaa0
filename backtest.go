// Package backtest evaluates forecasting back-ends on a held out tail of a time series. A series
// is split chronologically, every back-end is fit on the training segment and forecasts the
// length of the test segment, and the forecasts are scored side by side.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aouyang1/go-backtest/backend"
	"github.com/aouyang1/go-backtest/compare"
	"github.com/aouyang1/go-backtest/timedataset"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aouyang1/go-backtest"

var (
	ErrNoBackends         = errors.New("no back-ends to evaluate")
	ErrInvalidBackendName = errors.New("back-end names must be unique and non-empty")
)

// Backtester runs the split, fit, forecast and compare pipeline for a fixed set of back-ends
type Backtester struct {
	opt      *Options
	backends []backend.Backend
	tracer   trace.Tracer
}

// New creates a backtester over the back-ends in the order their results are reported. If no
// options are provided a default is used.
func New(opt *Options, backends ...backend.Backend) (*Backtester, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}
	seen := make(map[string]struct{}, len(backends))
	for _, b := range backends {
		name := b.Name()
		if name == "" {
			return nil, fmt.Errorf("empty name, %w", ErrInvalidBackendName)
		}
		if _, exists := seen[name]; exists {
			return nil, fmt.Errorf("%q listed twice, %w", name, ErrInvalidBackendName)
		}
		seen[name] = struct{}{}
	}

	return &Backtester{
		opt:      opt,
		backends: backends,
		tracer:   opt.TracerProvider.Tracer(tracerName),
	}, nil
}

// Run splits the series and evaluates every back-end. A back-end that fails to fit or forecast
// is reported on its run and table entry without stopping the others. Only an unsplittable
// series or a cancelled context fails the run.
func (b *Backtester) Run(ctx context.Context, series *timedataset.TimeDataset) (*Results, error) {
	ctx, span := b.tracer.Start(ctx, "backtest.run", trace.WithAttributes(
		attribute.Int("series.len", series.Len()),
		attribute.Float64("split.ratio", b.opt.SplitRatio),
	))
	defer span.End()

	res, err := b.run(ctx, series)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res, nil
}

func (b *Backtester) run(ctx context.Context, series *timedataset.TimeDataset) (*Results, error) {
	if series.Len() == 0 {
		return nil, fmt.Errorf("empty series, %w", timedataset.ErrInsufficientData)
	}
	split, err := series.Split(b.opt.SplitRatio)
	if err != nil {
		return nil, fmt.Errorf("unable to split series, %w", err)
	}
	horizon := split.Test.Len()
	slog.Debug("split series", "train", split.Train.Len(), "test", horizon)

	runs := make([]ModelRun, len(b.backends))
	candidates := make([]compare.Candidate, len(b.backends))

	sem := make(chan struct{}, b.opt.Parallelization)
	var wg sync.WaitGroup
	for i, be := range b.backends {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			runs[i], candidates[i] = b.evaluate(ctx, be, split.Train, horizon)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("backtest stopped, %w", err)
	}

	tbl, err := compare.Compare(split.Test, candidates)
	if err != nil {
		return nil, fmt.Errorf("unable to compare forecasts, %w", err)
	}
	if b.opt.Recorder != nil {
		for _, e := range tbl.Entries {
			if e.Err == nil {
				b.opt.Recorder.ObserveScores(e.Name, e.Scores)
			}
		}
	}

	return &Results{
		Split: split,
		Table: tbl,
		Runs:  runs,
	}, nil
}

// evaluate fits a single back-end and forecasts the horizon
func (b *Backtester) evaluate(ctx context.Context, be backend.Backend, train *timedataset.TimeDataset, horizon int) (ModelRun, compare.Candidate) {
	name := be.Name()
	run := ModelRun{
		Name:         name,
		Capabilities: be.Capabilities(),
	}
	candidate := compare.Candidate{Name: name}

	ctx, span := b.tracer.Start(ctx, "backtest.evaluate", trace.WithAttributes(
		attribute.String("backend", name),
		attribute.Int("train.len", train.Len()),
		attribute.Int("horizon", horizon),
	))
	defer span.End()

	fail := func(err error) (ModelRun, compare.Candidate) {
		slog.Warn("unable to evaluate back-end", "backend", name, "error", err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		run.Err = err
		candidate.Err = err
		return run, candidate
	}

	fitCtx := ctx
	if b.opt.FitTimeout > 0 {
		var cancel context.CancelFunc
		fitCtx, cancel = context.WithTimeout(ctx, b.opt.FitTimeout)
		defer cancel()
	}

	start := time.Now()
	model, err := be.Fit(fitCtx, train)
	run.FitDuration = time.Since(start)
	if b.opt.Recorder != nil {
		b.opt.Recorder.ObserveFit(name, run.FitDuration, err)
	}
	if err != nil {
		return fail(err)
	}
	if model == nil {
		return fail(fmt.Errorf("%s returned no model, %w", name, backend.ErrFit))
	}
	run.Model = model

	fc, err := model.Forecast(horizon)
	if err != nil {
		return fail(fmt.Errorf("unable to forecast %s, %w", name, err))
	}
	if fc == nil {
		return fail(fmt.Errorf("%s returned no forecast, %w", name, backend.ErrNoForecast))
	}
	span.SetAttributes(attribute.Bool("intervals", fc.Intervals))

	candidate.Forecast = fc
	return run, candidate
}
