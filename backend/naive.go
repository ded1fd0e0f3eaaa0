package backend

import (
	"context"
	"fmt"

	"github.com/aouyang1/go-backtest/timedataset"
)

const (
	NameNaive         = "naive"
	NameSeasonalNaive = "seasonal_naive"
)

// NaiveOptions configures the naive baseline. A Season of 0 repeats the last observation,
// otherwise the last Season observations are repeated.
type NaiveOptions struct {
	Name   string `json:"name" mapstructure:"name"`
	Season int    `json:"season" mapstructure:"season"`

	Calendar *timedataset.TradingCalendar `json:"-" mapstructure:"-"`
}

func (n *NaiveOptions) Validate() (*NaiveOptions, error) {
	if n == nil {
		return &NaiveOptions{Name: NameNaive}, nil
	}
	if n.Season < 0 || n.Season == 1 {
		return nil, fmt.Errorf("got %d, %w", n.Season, ErrInvalidSeason)
	}
	if n.Name == "" {
		n.Name = NameNaive
		if n.Season > 0 {
			n.Name = NameSeasonalNaive
		}
	}
	return n, nil
}

// Naive is a baseline without interval support
type Naive struct {
	opt *NaiveOptions
}

func NewNaive(opt *NaiveOptions) (*Naive, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &Naive{opt: opt}, nil
}

func (n *Naive) Name() string {
	return n.opt.Name
}

func (n *Naive) Capabilities() Capabilities {
	return Capabilities{Intervals: false}
}

func (n *Naive) Fit(ctx context.Context, train *timedataset.TimeDataset) (Model, error) {
	need := 1
	if n.opt.Season > 0 {
		need = 2 * n.opt.Season
	}
	if err := checkLength(n.Name(), train, need); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fitError(n.Name(), err)
	}

	season := n.opt.Season
	if season == 0 {
		season = 1
	}
	last := make([]float64, season)
	copy(last, train.Y[train.Len()-season:])
	return &naiveModel{
		last:  last,
		clock: newFutureClock(train, n.opt.Calendar),
	}, nil
}

type naiveModel struct {
	last  []float64
	clock futureClock
}

func (m *naiveModel) Forecast(horizon int) (*Forecast, error) {
	if err := checkHorizon(horizon); err != nil {
		return nil, err
	}
	t, err := m.clock.times(horizon)
	if err != nil {
		return nil, err
	}
	point := make([]float64, horizon)
	for i := range point {
		point[i] = m.last[i%len(m.last)]
	}
	return newPointForecast(t, point), nil
}
