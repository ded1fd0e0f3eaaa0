// Package timedataset holds the univariate time series consumed by the backtest along with
// helpers to split, slice and extend it into the future.
package timedataset

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInsufficientData   = errors.New("insufficient data")
	ErrNonMontonic        = errors.New("time feature is not monotonic")
	ErrDatasetLenMismatch = errors.New("time feature has a different length than observations")
	ErrNonFiniteValue     = errors.New("observation is not a finite value")
	ErrOutOfRange         = errors.New("index out of range")
)

// TimeDataset represents a time series storing a slice of time points and values.
// Both must be of the same length. Once constructed a dataset is not mutated by any
// package in this module.
type TimeDataset struct {
	T []time.Time `json:"t"`
	Y []float64   `json:"y"`
}

// NewUnivariateDataset returns an instance of a TimeDataset given a time and value slice.
// Time points must be strictly increasing and every value must be finite.
func NewUnivariateDataset(t []time.Time, y []float64) (*TimeDataset, error) {
	if len(y) == 0 {
		return nil, fmt.Errorf("no observations, %w", ErrInsufficientData)
	}
	if len(t) != len(y) {
		return nil, fmt.Errorf(
			"time feature has length of %d, but values has a length of %d, %w",
			len(t), len(y), ErrDatasetLenMismatch,
		)
	}

	for i := 0; i < len(t); i++ {
		if i > 0 && !t[i].After(t[i-1]) {
			return nil, fmt.Errorf("non-monotonic at %d, %w", i, ErrNonMontonic)
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return nil, fmt.Errorf("value %f at %d, %w", y[i], i, ErrNonFiniteValue)
		}
	}

	tSeries := make([]time.Time, len(t))
	ySeries := make([]float64, len(t))
	copy(tSeries, t)
	copy(ySeries, y)
	td := &TimeDataset{
		T: tSeries,
		Y: ySeries,
	}

	return td, nil
}

// Len returns the number of observations in the dataset
func (td *TimeDataset) Len() int {
	if td == nil {
		return 0
	}
	return len(td.Y)
}

func (td *TimeDataset) Copy() *TimeDataset {
	if td == nil {
		return nil
	}
	tSeries := make([]time.Time, len(td.T))
	ySeries := make([]float64, len(td.T))
	copy(tSeries, td.T)
	copy(ySeries, td.Y)
	return &TimeDataset{
		T: tSeries,
		Y: ySeries,
	}
}

// Slice returns a copy of the observations in the half open range [start, end)
func (td *TimeDataset) Slice(start, end int) (*TimeDataset, error) {
	if td == nil {
		return nil, ErrInsufficientData
	}
	if start < 0 || end > td.Len() || start > end {
		return nil, fmt.Errorf("range [%d, %d) with length %d, %w", start, end, td.Len(), ErrOutOfRange)
	}

	tSeries := make([]time.Time, end-start)
	ySeries := make([]float64, end-start)
	copy(tSeries, td.T[start:end])
	copy(ySeries, td.Y[start:end])
	return &TimeDataset{
		T: tSeries,
		Y: ySeries,
	}, nil
}

// StartTime returns the first time point of the dataset
func (td *TimeDataset) StartTime() time.Time {
	if td == nil {
		return time.Time{}
	}
	return TimeSlice(td.T).StartTime()
}

// EndTime returns the last time point of the dataset
func (td *TimeDataset) EndTime() time.Time {
	if td == nil {
		return time.Time{}
	}
	return TimeSlice(td.T).EndTime()
}
