// Package backend adapts the forecasting models to a single fit and forecast contract so the
// backtest can evaluate them side by side.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aouyang1/go-backtest/timedataset"
)

// DefaultLevel is the prediction interval coverage used when none is configured
const DefaultLevel = 0.95

var (
	ErrFit            = errors.New("unable to fit model")
	ErrFitTimeout     = errors.New("model fit exceeded its deadline")
	ErrInvalidHorizon = errors.New("forecast horizon must be at least 1")
	ErrInvalidSeason  = errors.New("season length must be 0 or at least 2")
	ErrNoForecast     = errors.New("back-end returned no forecast")
)

// Capabilities describes optional behaviour of a back-end
type Capabilities struct {
	// Intervals is false when forecasts carry bounds equal to the point estimate
	Intervals bool `json:"intervals"`
}

// Backend fits a model on a training series. Configuration is given at construction so a
// backend can be reused across series.
type Backend interface {
	Name() string
	Capabilities() Capabilities
	Fit(ctx context.Context, train *timedataset.TimeDataset) (Model, error)
}

// Model is a fitted back-end able to extrapolate past the end of its training series
type Model interface {
	Forecast(horizon int) (*Forecast, error)
}

// TablePrinter is implemented by models that can describe their fitted parameters
type TablePrinter interface {
	TablePrint(w io.Writer, prefix, indent string) error
}

// Forecast holds horizon steps past the training series. Index i of every slice is step i+1 and
// aligns positionally with the test segment.
type Forecast struct {
	T     []time.Time `json:"t"`
	Point []float64   `json:"point"`
	Lower []float64   `json:"lower"`
	Upper []float64   `json:"upper"`

	// Intervals is false when Lower and Upper are copies of Point
	Intervals bool    `json:"intervals"`
	Level     float64 `json:"level"`
}

// Len returns the number of forecast steps
func (f *Forecast) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Point)
}

// newPointForecast builds a forecast without interval support
func newPointForecast(t []time.Time, point []float64) *Forecast {
	lower := make([]float64, len(point))
	upper := make([]float64, len(point))
	copy(lower, point)
	copy(upper, point)
	return &Forecast{
		T:     t,
		Point: point,
		Lower: lower,
		Upper: upper,
	}
}

// fitError classifies a failed fit. Deadlines are reported as ErrFitTimeout, everything else as
// ErrFit, both keeping the underlying cause.
func fitError(name string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("unable to fit %s, %w, %w", name, ErrFitTimeout, err)
	}
	return fmt.Errorf("unable to fit %s, %w, %w", name, ErrFit, err)
}

// checkLength fails when the training series is shorter than the back-end minimum
func checkLength(name string, train *timedataset.TimeDataset, need int) error {
	have := train.Len()
	if have < need {
		return fmt.Errorf("%s needs at least %d training points, got %d, %w", name, need, have, ErrFit)
	}
	return nil
}

func checkHorizon(horizon int) error {
	if horizon < 1 {
		return fmt.Errorf("got %d, %w", horizon, ErrInvalidHorizon)
	}
	return nil
}

// futureClock generates the timestamps following a training series
type futureClock struct {
	last time.Time
	freq time.Duration
	cal  *timedataset.TradingCalendar
}

// newFutureClock infers the training frequency. A single point series falls back to daily.
func newFutureClock(train *timedataset.TimeDataset, cal *timedataset.TradingCalendar) futureClock {
	ts := timedataset.TimeSlice(train.T)
	freq, err := ts.EstimateFreq()
	if err != nil {
		freq = 24 * time.Hour
	}
	return futureClock{
		last: ts.EndTime(),
		freq: freq,
		cal:  cal,
	}
}

func (c futureClock) times(horizon int) ([]time.Time, error) {
	t, err := timedataset.FutureTimes(c.last, c.freq, horizon, c.cal)
	if err != nil {
		return nil, fmt.Errorf("unable to generate forecast timestamps, %w", err)
	}
	return t, nil
}
