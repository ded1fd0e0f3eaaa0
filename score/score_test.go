package score

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tol := 1e-9
	testData := map[string]struct {
		actual   []float64
		forecast []float64
		expected Scores
		err      error
	}{
		"four point holdout": {
			actual:   []float64{100, 102, 101, 105},
			forecast: []float64{101, 101, 103, 104},
			expected: Scores{
				MAE:      1.25,
				MSE:      1.75,
				RMSE:     1.3228756555322954,
				MAPE:     1.2282427822614195,
				Accuracy: 98.77175721773858,
			},
		},
		"perfect forecast": {
			actual:   []float64{3, 4, 5},
			forecast: []float64{3, 4, 5},
			expected: Scores{Accuracy: 100},
		},
		"negative accuracy is not clamped": {
			actual:   []float64{1, 1},
			forecast: []float64{3, 4},
			expected: Scores{
				MAE:      2.5,
				MSE:      6.5,
				RMSE:     math.Sqrt(6.5),
				MAPE:     250,
				Accuracy: -150,
			},
		},
		"negative actuals use absolute ratio": {
			actual:   []float64{-10, 10},
			forecast: []float64{-12, 9},
			expected: Scores{
				MAE:      1.5,
				MSE:      2.5,
				RMSE:     math.Sqrt(2.5),
				MAPE:     15,
				Accuracy: 85,
			},
		},
		"length mismatch": {
			actual:   []float64{1, 2, 3},
			forecast: []float64{1, 2},
			err:      ErrLengthMismatch,
		},
		"empty": {
			actual:   []float64{},
			forecast: []float64{},
			err:      ErrLengthMismatch,
		},
		"zero actual": {
			actual:   []float64{1, 0, 2},
			forecast: []float64{1, 1, 2},
			err:      ErrDivisionByZero,
		},
		"nan forecast": {
			actual:   []float64{1, 2},
			forecast: []float64{1, math.NaN()},
			err:      ErrNonFinite,
		},
		"inf actual": {
			actual:   []float64{math.Inf(-1), 2},
			forecast: []float64{1, 2},
			err:      ErrNonFinite,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res, err := Evaluate(td.actual, td.forecast)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				assert.Equal(t, Scores{}, res)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, td.expected.MAE, res.MAE, tol)
			assert.InDelta(t, td.expected.MSE, res.MSE, tol)
			assert.InDelta(t, td.expected.RMSE, res.RMSE, tol)
			assert.InDelta(t, td.expected.MAPE, res.MAPE, tol)
			assert.InDelta(t, td.expected.Accuracy, res.Accuracy, tol)
		})
	}
}

func TestDivisionByZeroReportsFirstIndex(t *testing.T) {
	_, err := MAPE([]float64{5, 0, 0}, []float64{5, 1, 1})
	require.ErrorIs(t, err, ErrDivisionByZero)
	assert.Contains(t, err.Error(), "index 1")
}

func TestLengthMismatchMessage(t *testing.T) {
	_, err := MSE([]float64{1, 2, 3}, []float64{1, 2})
	require.ErrorIs(t, err, ErrLengthMismatch)
	assert.Contains(t, err.Error(), "expected 3, but got 2")
}

func TestMetricProperties(t *testing.T) {
	actual := []float64{120, 98, 143, 110, 101, 87}
	forecast := []float64{118, 104, 131, 113, 99, 95}

	mae, err := MAE(actual, forecast)
	require.NoError(t, err)
	mse, err := MSE(actual, forecast)
	require.NoError(t, err)
	rmse, err := RMSE(actual, forecast)
	require.NoError(t, err)
	mape, err := MAPE(actual, forecast)
	require.NoError(t, err)
	acc, err := Accuracy(actual, forecast)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, mae, 0.0)
	assert.GreaterOrEqual(t, mse, 0.0)
	assert.GreaterOrEqual(t, rmse, mae)
	assert.InDelta(t, math.Sqrt(mse), rmse, 1e-12)
	assert.InDelta(t, 100-mape, acc, 1e-12)

	// percentage error is invariant to a common scale
	scaledActual := make([]float64, len(actual))
	scaledForecast := make([]float64, len(forecast))
	for i := range actual {
		scaledActual[i] = actual[i] * 3.5
		scaledForecast[i] = forecast[i] * 3.5
	}
	scaledMape, err := MAPE(scaledActual, scaledForecast)
	require.NoError(t, err)
	assert.InDelta(t, mape, scaledMape, 1e-9)

	scaledMae, err := MAE(scaledActual, scaledForecast)
	require.NoError(t, err)
	assert.InDelta(t, mae*3.5, scaledMae, 1e-9)
}

func TestConstantOffset(t *testing.T) {
	actual := []float64{120, 98, 143, 110, 101, 87}

	testData := map[string]struct {
		offset float64
		mae    float64
		mse    float64
		rmse   float64
	}{
		"positive": {offset: 2, mae: 2, mse: 4, rmse: 2},
		"negative": {offset: -3.5, mae: 3.5, mse: 12.25, rmse: 3.5},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			forecast := make([]float64, len(actual))
			for i, a := range actual {
				forecast[i] = a + td.offset
			}

			mae, err := MAE(actual, forecast)
			require.NoError(t, err)
			mse, err := MSE(actual, forecast)
			require.NoError(t, err)
			rmse, err := RMSE(actual, forecast)
			require.NoError(t, err)

			assert.InDelta(t, td.mae, mae, 1e-9)
			assert.InDelta(t, td.mse, mse, 1e-9)
			assert.InDelta(t, td.rmse, rmse, 1e-9)
		})
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	actual := []float64{100, 102, 101, 105}
	forecast := []float64{101, 101, 103, 104}

	first, err := Evaluate(actual, forecast)
	require.NoError(t, err)
	second, err := Evaluate(actual, forecast)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRSquared(t *testing.T) {
	testData := map[string]struct {
		actual   []float64
		forecast []float64
		expected float64
	}{
		"perfect":          {[]float64{1, 2, 3}, []float64{1, 2, 3}, 1.0},
		"constant perfect": {[]float64{2, 2, 2}, []float64{2, 2, 2}, 1.0},
		"mean prediction":  {[]float64{1, 2, 3}, []float64{2, 2, 2}, 0.0},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res, err := RSquared(td.actual, td.forecast)
			require.NoError(t, err)
			assert.InDelta(t, td.expected, res, 1e-9)
		})
	}
}
