// Package metrics exports backtest outcomes as Prometheus metrics. Backtests usually run as batch
// jobs so the registry is written out as a node exporter textfile rather than served.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aouyang1/go-backtest/backend"
	"github.com/aouyang1/go-backtest/score"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "backtest"

// failure reasons of the fit failures counter
const (
	ReasonTimeout  = "timeout"
	ReasonCanceled = "canceled"
	ReasonError    = "error"
)

// Recorder holds the backtest collectors on its own registry so that runs in the same process
// do not collide with the default registry
type Recorder struct {
	reg *prometheus.Registry

	FitDuration *prometheus.HistogramVec
	FitFailures *prometheus.CounterVec
	Score       *prometheus.GaugeVec
}

// New creates and registers all metrics
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		reg: reg,
		FitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fit_duration_seconds",
				Help:      "Time spent fitting a back-end on the training segment",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"backend"},
		),
		FitFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fit_failures_total",
				Help:      "Number of back-end fits that failed",
			},
			[]string{"backend", "reason"},
		),
		Score: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "model_score",
				Help:      "Accuracy metrics of the latest forecast of a back-end on the test segment",
			},
			[]string{"backend", "metric"},
		),
	}
}

// Registry returns the registry holding the backtest collectors
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

func (r *Recorder) ObserveFit(name string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.FitDuration.WithLabelValues(name).Observe(d.Seconds())
	if err != nil {
		r.FitFailures.WithLabelValues(name, failureReason(err)).Inc()
	}
}

func (r *Recorder) ObserveScores(name string, s score.Scores) {
	if r == nil {
		return
	}
	r.Score.WithLabelValues(name, "mae").Set(s.MAE)
	r.Score.WithLabelValues(name, "mse").Set(s.MSE)
	r.Score.WithLabelValues(name, "rmse").Set(s.RMSE)
	r.Score.WithLabelValues(name, "mape").Set(s.MAPE)
	r.Score.WithLabelValues(name, "accuracy").Set(s.Accuracy)
}

// WriteTextfile writes the registry in the text exposition format, atomically replacing path
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("unable to write metrics textfile, %w", err)
	}
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, backend.ErrFitTimeout), errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	default:
		return ReasonError
	}
}
