package backtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/aouyang1/go-backtest/score"
	"github.com/aouyang1/go-backtest/timedataset"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const DefaultParallelization = 1

var ErrNegativeTimeout = errors.New("fit timeout must not be negative")

// Recorder receives the outcome of every fit and evaluation of a run
type Recorder interface {
	ObserveFit(backend string, d time.Duration, err error)
	ObserveScores(backend string, s score.Scores)
}

// Options configures a backtest run
type Options struct {
	// SplitRatio is the fraction of the series used for training
	SplitRatio float64 `json:"split_ratio" mapstructure:"split_ratio"`

	// FitTimeout bounds each back-end fit. Zero disables the timeout.
	FitTimeout time.Duration `json:"fit_timeout" mapstructure:"fit_timeout"`

	// Parallelization is the number of back-ends fit at once
	Parallelization int `json:"parallelization" mapstructure:"parallelization"`

	Recorder       Recorder             `json:"-" mapstructure:"-"`
	TracerProvider trace.TracerProvider `json:"-" mapstructure:"-"`
}

func NewDefaultOptions() *Options {
	return &Options{
		SplitRatio:      timedataset.DefaultSplitRatio,
		Parallelization: DefaultParallelization,
	}
}

// Validate fills defaults for unset fields. A nil receiver returns the defaults.
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		o = NewDefaultOptions()
	}
	if o.SplitRatio == 0 {
		o.SplitRatio = timedataset.DefaultSplitRatio
	}
	if o.SplitRatio <= 0 || o.SplitRatio >= 1 {
		return nil, fmt.Errorf("got %f, %w", o.SplitRatio, timedataset.ErrInvalidRatio)
	}
	if o.FitTimeout < 0 {
		return nil, ErrNegativeTimeout
	}
	if o.Parallelization <= 0 {
		o.Parallelization = DefaultParallelization
	}
	if o.TracerProvider == nil {
		o.TracerProvider = otel.GetTracerProvider()
	}
	return o, nil
}
