package backend

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/aouyang1/go-backtest/forecast"
	"github.com/aouyang1/go-backtest/forecast/options"
	"github.com/aouyang1/go-backtest/timedataset"
)

const (
	NameAdditive = "additive"

	// minAdditivePoints covers an intercept and a linear trend with one degree of freedom left
	minAdditivePoints = 3
)

// AdditiveOptions configures the additive trend and seasonality back-end
type AdditiveOptions struct {
	Name     string           `json:"name" mapstructure:"name"`
	Forecast *options.Options `json:"forecast" mapstructure:"forecast"`

	// Calendar skips non trading days when generating forecast timestamps of daily series
	Calendar *timedataset.TradingCalendar `json:"-" mapstructure:"-"`
}

func NewDefaultAdditiveOptions() *AdditiveOptions {
	return &AdditiveOptions{
		Name:     NameAdditive,
		Forecast: options.NewDefaultOptions(),
		Calendar: timedataset.NewTradingCalendar(),
	}
}

func (a *AdditiveOptions) Validate() (*AdditiveOptions, error) {
	if a == nil {
		return NewDefaultAdditiveOptions(), nil
	}
	if a.Name == "" {
		a.Name = NameAdditive
	}
	opt, err := a.Forecast.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid additive forecast options, %w", err)
	}
	a.Forecast = opt
	return a, nil
}

// Additive fits a linear trend with changepoints and Fourier seasonality
type Additive struct {
	opt *AdditiveOptions
}

func NewAdditive(opt *AdditiveOptions) (*Additive, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &Additive{opt: opt}, nil
}

func (a *Additive) Name() string {
	return a.opt.Name
}

func (a *Additive) Capabilities() Capabilities {
	return Capabilities{Intervals: true}
}

// forecastOptions copies the configured options since auto changepoints are written back into
// them on every fit
func (a *Additive) forecastOptions() *options.Options {
	opt := *a.opt.Forecast
	opt.ChangepointOptions.Changepoints = slices.Clone(opt.ChangepointOptions.Changepoints)
	opt.SeasonalityOptions.SeasonalityConfigs = slices.Clone(opt.SeasonalityOptions.SeasonalityConfigs)
	return &opt
}

// Fit runs the least squares fit in its own goroutine so a cancelled or expired context returns
// immediately.
func (a *Additive) Fit(ctx context.Context, train *timedataset.TimeDataset) (Model, error) {
	if err := checkLength(a.Name(), train, minAdditivePoints); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fitError(a.Name(), err)
	}

	f, err := forecast.New(a.forecastOptions())
	if err != nil {
		return nil, fitError(a.Name(), err)
	}

	done := make(chan error, 1)
	go func() {
		done <- f.Fit(train.T, train.Y)
	}()

	select {
	case <-ctx.Done():
		return nil, fitError(a.Name(), ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fitError(a.Name(), err)
		}
	}

	return &AdditiveModel{
		f:     f,
		clock: newFutureClock(train, a.opt.Calendar),
	}, nil
}

// AdditiveModel is a fitted additive forecast
type AdditiveModel struct {
	f     *forecast.Forecast
	clock futureClock
}

// Model returns the serializeable form of the fit
func (m *AdditiveModel) Model() (forecast.Model, error) {
	return m.f.Model()
}

func (m *AdditiveModel) Forecast(horizon int) (*Forecast, error) {
	if err := checkHorizon(horizon); err != nil {
		return nil, err
	}
	t, err := m.clock.times(horizon)
	if err != nil {
		return nil, err
	}
	point, lower, upper, err := m.f.PredictInterval(t)
	if err != nil {
		return nil, fmt.Errorf("unable to predict additive model, %w", err)
	}
	model, err := m.f.Model()
	if err != nil {
		return nil, err
	}
	return &Forecast{
		T:         t,
		Point:     point,
		Lower:     lower,
		Upper:     upper,
		Intervals: true,
		Level:     model.Options.Level,
	}, nil
}

func (m *AdditiveModel) TablePrint(w io.Writer, prefix, indent string) error {
	model, err := m.f.Model()
	if err != nil {
		return err
	}
	return model.TablePrint(w, prefix, indent)
}
