// Package score computes point forecast accuracy metrics between an actual and a forecast
// series of equal length.
package score

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

var (
	ErrLengthMismatch = errors.New("actual and forecast have different lengths")
	ErrDivisionByZero = errors.New("actual value of zero makes percentage error undefined")
	ErrNonFinite      = errors.New("non-finite value")
)

// Scores is the metric bundle for a single model. MAPE and Accuracy are expressed as
// percentages, Accuracy = 100 - MAPE and is not clamped.
type Scores struct {
	MAE      float64 `json:"mean_absolute_error"`
	MSE      float64 `json:"mean_squared_error"`
	RMSE     float64 `json:"root_mean_squared_error"`
	MAPE     float64 `json:"mean_absolute_percent_error"`
	Accuracy float64 `json:"accuracy"`
}

// Evaluate computes every metric for the actual and forecast values. Metrics are recomputed on
// every call and do not depend on any previous evaluation.
func Evaluate(actual, forecast []float64) (Scores, error) {
	if err := validate(actual, forecast); err != nil {
		return Scores{}, err
	}
	mape, err := mapeFrom(actual, forecast)
	if err != nil {
		return Scores{}, err
	}
	mae := maeFrom(actual, forecast)
	mse := mseFrom(actual, forecast)
	return Scores{
		MAE:      mae,
		MSE:      mse,
		RMSE:     math.Sqrt(mse),
		MAPE:     mape,
		Accuracy: 100.0 - mape,
	}, nil
}

// MAE computes the mean absolute error, mean(|a-f|)
func MAE(actual, forecast []float64) (float64, error) {
	if err := validate(actual, forecast); err != nil {
		return 0, err
	}
	return maeFrom(actual, forecast), nil
}

// MSE computes the mean squared error, mean((a-f)^2). A score of 0 means a perfect match.
func MSE(actual, forecast []float64) (float64, error) {
	if err := validate(actual, forecast); err != nil {
		return 0, err
	}
	return mseFrom(actual, forecast), nil
}

// RMSE computes the square root of the mean squared error
func RMSE(actual, forecast []float64) (float64, error) {
	mse, err := MSE(actual, forecast)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAPE computes the mean absolute percent error, mean(|(a-f)/a|)*100. Any zero actual value
// fails with ErrDivisionByZero naming the first offending index.
func MAPE(actual, forecast []float64) (float64, error) {
	if err := validate(actual, forecast); err != nil {
		return 0, err
	}
	return mapeFrom(actual, forecast)
}

// Accuracy returns 100 - MAPE
func Accuracy(actual, forecast []float64) (float64, error) {
	mape, err := MAPE(actual, forecast)
	if err != nil {
		return 0, err
	}
	return 100.0 - mape, nil
}

// RSquared computes the coefficient of determination of the forecast where 1.0 means a perfect
// fit. A constant actual series perfectly matched returns 1.0.
func RSquared(actual, forecast []float64) (float64, error) {
	if err := validate(actual, forecast); err != nil {
		return 0, err
	}
	r2 := stat.RSquaredFrom(forecast, actual, nil)
	if math.IsNaN(r2) {
		return 1.0, nil
	}
	return r2, nil
}

func validate(actual, forecast []float64) error {
	if len(actual) != len(forecast) || len(actual) == 0 {
		return fmt.Errorf("expected %d, but got %d, %w", len(actual), len(forecast), ErrLengthMismatch)
	}
	for i := 0; i < len(actual); i++ {
		if math.IsNaN(actual[i]) || math.IsInf(actual[i], 0) {
			return fmt.Errorf("actual at index %d, %w", i, ErrNonFinite)
		}
		if math.IsNaN(forecast[i]) || math.IsInf(forecast[i], 0) {
			return fmt.Errorf("forecast at index %d, %w", i, ErrNonFinite)
		}
	}
	return nil
}

func maeFrom(actual, forecast []float64) float64 {
	res := make([]float64, len(actual))
	for i := range actual {
		res[i] = math.Abs(actual[i] - forecast[i])
	}
	return stat.Mean(res, nil)
}

func mseFrom(actual, forecast []float64) float64 {
	res := make([]float64, len(actual))
	for i := range actual {
		diff := actual[i] - forecast[i]
		res[i] = diff * diff
	}
	return stat.Mean(res, nil)
}

func mapeFrom(actual, forecast []float64) (float64, error) {
	res := make([]float64, len(actual))
	for i := range actual {
		if actual[i] == 0 {
			return 0, fmt.Errorf("index %d, %w", i, ErrDivisionByZero)
		}
		res[i] = math.Abs((actual[i] - forecast[i]) / actual[i])
	}
	return stat.Mean(res, nil) * 100.0, nil
}
