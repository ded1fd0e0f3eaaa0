package backtest

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aouyang1/go-backtest/backend"
	"github.com/aouyang1/go-backtest/score"
	"github.com/aouyang1/go-backtest/timedataset"
	"github.com/pkg/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var errStub = errors.New("stub failure")

type stubBackend struct {
	name       string
	fit        func(ctx context.Context) error
	noModel    bool
	noForecast bool
}

func (s *stubBackend) Name() string {
	return s.name
}

func (s *stubBackend) Capabilities() backend.Capabilities {
	return backend.Capabilities{}
}

func (s *stubBackend) Fit(ctx context.Context, train *timedataset.TimeDataset) (backend.Model, error) {
	if s.fit != nil {
		if err := s.fit(ctx); err != nil {
			return nil, err
		}
	}
	if s.noModel {
		return nil, nil
	}
	return stubModel{last: train.Y[train.Len()-1], empty: s.noForecast}, nil
}

type stubModel struct {
	last  float64
	empty bool
}

func (m stubModel) Forecast(horizon int) (*backend.Forecast, error) {
	if m.empty {
		return nil, nil
	}
	point := make([]float64, horizon)
	for i := range point {
		point[i] = m.last
	}
	return &backend.Forecast{Point: point, Lower: point, Upper: point}, nil
}

type fakeRecorder struct {
	mu     sync.Mutex
	fits   map[string]error
	scores map[string]score.Scores
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		fits:   make(map[string]error),
		scores: make(map[string]score.Scores),
	}
}

func (f *fakeRecorder) ObserveFit(name string, d time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fits[name] = err
}

func (f *fakeRecorder) ObserveScores(name string, s score.Scores) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[name] = s
}

func linearSeries(t *testing.T, n int) *timedataset.TimeDataset {
	td, err := timedataset.NewUnivariateDataset(
		timedataset.GenerateT(n, time.Hour, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)),
		timedataset.GenerateLinearY(n, 10, 0.5),
	)
	require.Nil(t, err)
	return td
}

func newAdditive(t *testing.T) backend.Backend {
	opt := backend.NewDefaultAdditiveOptions()
	opt.Forecast.SeasonalityOptions.SeasonalityConfigs = nil
	b, err := backend.NewAdditive(opt)
	require.Nil(t, err)
	return b
}

func newNaive(t *testing.T) backend.Backend {
	b, err := backend.NewNaive(nil)
	require.Nil(t, err)
	return b
}

func TestRun(t *testing.T) {
	series := linearSeries(t, 100)
	rec := newFakeRecorder()

	bt, err := New(&Options{Recorder: rec}, newNaive(t), newAdditive(t))
	require.Nil(t, err)

	res, err := bt.Run(context.Background(), series)
	require.Nil(t, err)
	require.Nil(t, res.Err())

	assert.Equal(t, 80, res.Split.Train.Len())
	assert.Equal(t, 20, res.Split.Test.Len())
	assert.Equal(t, []string{backend.NameNaive, backend.NameAdditive}, res.Table.Names())
	require.Len(t, res.Runs, 2)
	assert.False(t, res.Runs[0].Capabilities.Intervals)
	assert.True(t, res.Runs[1].Capabilities.Intervals)
	for _, run := range res.Runs {
		assert.Nil(t, run.Err)
		assert.NotNil(t, run.Model)
	}

	additive, ok := res.Table.Lookup(backend.NameAdditive)
	require.True(t, ok)
	assert.InDelta(t, 0.0, additive.Scores.MAE, 1e-4)
	assert.InDelta(t, 100.0, additive.Scores.Accuracy, 1e-4)

	naive, ok := res.Table.Lookup(backend.NameNaive)
	require.True(t, ok)
	// the last training value is 49.5 and the test segment runs from 50 to 59.5
	assert.InDelta(t, 5.25, naive.Scores.MAE, 1e-9)

	assert.Len(t, rec.fits, 2)
	assert.Len(t, rec.scores, 2)

	var buf bytes.Buffer
	require.Nil(t, res.TablePrint(&buf, "", "  "))
	assert.Contains(t, buf.String(), "Runs:")
	assert.Contains(t, buf.String(), "Train: 80 points")
}

func TestRunIsolatesFailures(t *testing.T) {
	series := linearSeries(t, 50)
	failing := &stubBackend{
		name: "failing",
		fit: func(ctx context.Context) error {
			return errStub
		},
	}
	rec := newFakeRecorder()

	bt, err := New(&Options{Recorder: rec, Parallelization: 2}, failing, newNaive(t))
	require.Nil(t, err)

	res, err := bt.Run(context.Background(), series)
	require.Nil(t, err)

	assert.ErrorIs(t, res.Runs[0].Err, errStub)
	assert.Nil(t, res.Runs[1].Err)
	assert.ErrorIs(t, res.Err(), errStub)

	entry, ok := res.Table.Lookup("failing")
	require.True(t, ok)
	assert.ErrorIs(t, entry.Err, errStub)

	assert.ErrorIs(t, rec.fits["failing"], errStub)
	_, scored := rec.scores["failing"]
	assert.False(t, scored)
}

func TestRunMissingModelOrForecast(t *testing.T) {
	testData := map[string]struct {
		backend *stubBackend
		err     error
	}{
		"no model": {
			backend: &stubBackend{name: "empty", noModel: true},
			err:     backend.ErrFit,
		},
		"no forecast": {
			backend: &stubBackend{name: "empty", noForecast: true},
			err:     backend.ErrNoForecast,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			rec := newFakeRecorder()
			bt, err := New(&Options{Recorder: rec}, td.backend, newNaive(t))
			require.Nil(t, err)

			res, err := bt.Run(context.Background(), linearSeries(t, 20))
			require.Nil(t, err)

			assert.ErrorIs(t, res.Runs[0].Err, td.err)
			assert.Nil(t, res.Runs[1].Err)

			entry, ok := res.Table.Lookup("empty")
			require.True(t, ok)
			assert.ErrorIs(t, entry.Err, td.err)
			_, scored := rec.scores["empty"]
			assert.False(t, scored)
		})
	}
}

func TestRunFitTimeout(t *testing.T) {
	slow := &stubBackend{
		name: "slow",
		fit: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	bt, err := New(&Options{FitTimeout: 10 * time.Millisecond}, slow)
	require.Nil(t, err)

	res, err := bt.Run(context.Background(), linearSeries(t, 20))
	require.Nil(t, err)
	assert.ErrorIs(t, res.Runs[0].Err, context.DeadlineExceeded)
}

func TestRunParallelization(t *testing.T) {
	var active, peak atomic.Int32
	fit := func(ctx context.Context) error {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return nil
	}

	backends := []backend.Backend{
		&stubBackend{name: "a", fit: fit},
		&stubBackend{name: "b", fit: fit},
		&stubBackend{name: "c", fit: fit},
		&stubBackend{name: "d", fit: fit},
	}
	bt, err := New(&Options{Parallelization: 2}, backends...)
	require.Nil(t, err)

	res, err := bt.Run(context.Background(), linearSeries(t, 20))
	require.Nil(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, res.Table.Names())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunErrors(t *testing.T) {
	bt, err := New(nil, newNaive(t))
	require.Nil(t, err)

	_, err = bt.Run(context.Background(), nil)
	assert.ErrorIs(t, err, timedataset.ErrInsufficientData)

	_, err = bt.Run(context.Background(), linearSeries(t, 1))
	assert.ErrorIs(t, err, timedataset.ErrInsufficientData)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = bt.Run(ctx, linearSeries(t, 20))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	testData := map[string]struct {
		opt      *Options
		backends []backend.Backend
		err      error
	}{
		"no backends": {
			err: ErrNoBackends,
		},
		"duplicate": {
			backends: []backend.Backend{&stubBackend{name: "a"}, &stubBackend{name: "a"}},
			err:      ErrInvalidBackendName,
		},
		"empty name": {
			backends: []backend.Backend{&stubBackend{}},
			err:      ErrInvalidBackendName,
		},
		"ratio": {
			opt:      &Options{SplitRatio: 1.5},
			backends: []backend.Backend{&stubBackend{name: "a"}},
			err:      timedataset.ErrInvalidRatio,
		},
		"timeout": {
			opt:      &Options{FitTimeout: -time.Second},
			backends: []backend.Backend{&stubBackend{name: "a"}},
			err:      ErrNegativeTimeout,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			_, err := New(td.opt, td.backends...)
			assert.ErrorIs(t, err, td.err)
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	opt, err := (*Options)(nil).Validate()
	require.Nil(t, err)
	assert.Equal(t, 0.8, opt.SplitRatio)
	assert.Equal(t, DefaultParallelization, opt.Parallelization)
	assert.NotNil(t, opt.TracerProvider)
}

func TestRunTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	failing := &stubBackend{
		name: "failing",
		fit: func(ctx context.Context) error {
			return errStub
		},
	}
	bt, err := New(&Options{TracerProvider: tp}, newNaive(t), failing)
	require.Nil(t, err)
	_, err = bt.Run(context.Background(), linearSeries(t, 20))
	require.Nil(t, err)

	counts := make(map[string]int)
	var failed int
	for _, span := range sr.Ended() {
		counts[span.Name()]++
		if len(span.Events()) > 0 {
			failed++
		}
	}
	assert.Equal(t, map[string]int{"backtest.run": 1, "backtest.evaluate": 2}, counts)
	assert.Equal(t, 1, failed)
}

func BenchmarkRun(b *testing.B) {
	td, err := timedataset.NewUnivariateDataset(
		timedataset.GenerateT(500, 24*time.Hour, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
		timedataset.GenerateRandomWalk(500, 100, 1, 3),
	)
	if err != nil {
		b.Fatal(err)
	}

	arimaOpt := backend.NewDefaultARIMAOptions()
	arimaOpt.Search.Period = 0
	arima, err := backend.NewARIMA(arimaOpt)
	if err != nil {
		b.Fatal(err)
	}
	additive, err := backend.NewAdditive(nil)
	if err != nil {
		b.Fatal(err)
	}
	bt, err := New(&Options{Parallelization: 2}, arima, additive)
	if err != nil {
		b.Fatal(err)
	}

	defer profile.Start(profile.CPUProfile, profile.ProfilePath(b.TempDir()), profile.Quiet).Stop()
	for b.Loop() {
		if _, err := bt.Run(context.Background(), td); err != nil {
			b.Error(err)
		}
	}
}
