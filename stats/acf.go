// Package stats provides the time series statistics used to choose differencing orders for the
// ARIMA back-end.
package stats

import (
	"gonum.org/v1/gonum/stat"
)

// ACF returns the sample autocorrelation of y for lags 0 through maxLag. maxLag is capped at
// len(y)-1. A constant or empty series returns nil.
func ACF(y []float64, maxLag int) []float64 {
	n := len(y)
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 0 {
		return nil
	}

	mean := stat.Mean(y, nil)
	denom := autocovariance(y, mean, 0)
	if denom == 0 {
		return nil
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		acf[k] = autocovariance(y, mean, k) / denom
	}
	return acf
}

// Autocorrelation returns the sample autocorrelation of y at a single lag. Returns 0 when the
// lag is out of range or the series is constant.
func Autocorrelation(y []float64, lag int) float64 {
	if lag < 0 || lag >= len(y) {
		return 0
	}
	mean := stat.Mean(y, nil)
	denom := autocovariance(y, mean, 0)
	if denom == 0 {
		return 0
	}
	return autocovariance(y, mean, lag) / denom
}

func autocovariance(y []float64, mean float64, lag int) float64 {
	var sum float64
	for i := lag; i < len(y); i++ {
		sum += (y[i] - mean) * (y[i-lag] - mean)
	}
	return sum
}
