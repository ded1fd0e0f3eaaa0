package compare

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/aouyang1/go-backtest/backend"
	"github.com/aouyang1/go-backtest/score"
	"github.com/aouyang1/go-backtest/timedataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actualDataset(t *testing.T, y []float64) *timedataset.TimeDataset {
	td, err := timedataset.NewUnivariateDataset(
		timedataset.GenerateT(len(y), 24*time.Hour, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)),
		y,
	)
	require.Nil(t, err)
	return td
}

func pointForecast(point ...float64) *backend.Forecast {
	return &backend.Forecast{Point: point, Lower: point, Upper: point}
}

func TestCompare(t *testing.T) {
	actual := actualDataset(t, []float64{100, 102, 101, 105})

	candidates := []Candidate{
		{Name: "zeta", Forecast: pointForecast(101, 101, 103, 104)},
		{Name: "alpha", Forecast: pointForecast(100, 102, 101, 105)},
		{Name: "mid", Forecast: pointForecast(101, 103, 102, 106)},
	}
	tbl, err := Compare(actual, candidates)
	require.Nil(t, err)
	require.Nil(t, tbl.Err())

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, tbl.Names())
	assert.Equal(t, actual.Y, tbl.Actual)
	assert.Equal(t, actual.T, tbl.T)

	zeta, ok := tbl.Lookup("zeta")
	require.True(t, ok)
	assert.InDelta(t, 1.25, zeta.Scores.MAE, 1e-12)
	assert.InDelta(t, 1.75, zeta.Scores.MSE, 1e-12)
	assert.InDelta(t, 1.3228756555322954, zeta.Scores.RMSE, 1e-12)
	assert.InDelta(t, 1.2282427822614195, zeta.Scores.MAPE, 1e-12)
	assert.InDelta(t, 98.77175721773858, zeta.Scores.Accuracy, 1e-12)

	alpha, ok := tbl.Lookup("alpha")
	require.True(t, ok)
	assert.Equal(t, score.Scores{Accuracy: 100}, alpha.Scores)

	mid, ok := tbl.Lookup("mid")
	require.True(t, ok)
	assert.InDelta(t, 1.0, mid.Scores.MAE, 1e-12)
	assert.InDelta(t, 1.0, mid.Scores.RMSE, 1e-12)

	_, ok = tbl.Lookup("missing")
	assert.False(t, ok)
}

func TestComparePerModelErrors(t *testing.T) {
	actual := actualDataset(t, []float64{100, 102, 101, 105})
	errFit := errors.New("boom")

	candidates := []Candidate{
		{Name: "short", Forecast: pointForecast(1, 2, 3)},
		{Name: "failed", Err: errFit},
		{Name: "ok", Forecast: pointForecast(100, 100, 100, 100)},
		{Name: "missing"},
	}
	tbl, err := Compare(actual, candidates)
	require.Nil(t, err)
	require.Len(t, tbl.Entries, 4)

	testData := map[string]error{
		"short":   ErrAlignment,
		"failed":  errFit,
		"missing": ErrAlignment,
	}
	for name, expected := range testData {
		t.Run(name, func(t *testing.T) {
			e, ok := tbl.Lookup(name)
			require.True(t, ok)
			assert.ErrorIs(t, e.Err, expected)
		})
	}

	ok, _ := tbl.Lookup("ok")
	assert.Nil(t, ok.Err)

	joined := tbl.Err()
	assert.ErrorIs(t, joined, ErrAlignment)
	assert.ErrorIs(t, joined, errFit)
}

func TestCompareZeroActual(t *testing.T) {
	actual := actualDataset(t, []float64{0, 1, 2})
	tbl, err := Compare(actual, []Candidate{{Name: "a", Forecast: pointForecast(1, 1, 1)}})
	require.Nil(t, err)
	assert.ErrorIs(t, tbl.Entries[0].Err, score.ErrDivisionByZero)
}

func TestCompareStructuralErrors(t *testing.T) {
	actual := actualDataset(t, []float64{1, 2})

	testData := map[string]struct {
		actual     *timedataset.TimeDataset
		candidates []Candidate
		err        error
	}{
		"nil actual": {
			actual: nil,
			err:    ErrNoActual,
		},
		"duplicate": {
			actual:     actual,
			candidates: []Candidate{{Name: "a"}, {Name: "a"}},
			err:        ErrInvalidName,
		},
		"empty name": {
			actual:     actual,
			candidates: []Candidate{{Name: ""}},
			err:        ErrInvalidName,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			_, err := Compare(td.actual, td.candidates)
			assert.ErrorIs(t, err, td.err)
		})
	}
}

func TestCompareNoCandidates(t *testing.T) {
	tbl, err := Compare(actualDataset(t, []float64{1, 2}), nil)
	require.Nil(t, err)
	assert.Empty(t, tbl.Entries)
	assert.Nil(t, tbl.Err())
}

func TestTablePrint(t *testing.T) {
	actual := actualDataset(t, []float64{100, 102})
	withBounds := &backend.Forecast{
		Point:     []float64{101, 101},
		Lower:     []float64{99, 98},
		Upper:     []float64{103, 104},
		Intervals: true,
	}
	tbl, err := Compare(actual, []Candidate{
		{Name: "arima", Forecast: withBounds},
		{Name: "naive", Forecast: pointForecast(100, 100)},
		{Name: "broken", Forecast: pointForecast(1)},
	})
	require.Nil(t, err)

	var buf bytes.Buffer
	require.Nil(t, tbl.TablePrint(&buf, "", "  "))
	out := buf.String()
	assert.Contains(t, out, "Scores:")
	assert.Contains(t, out, "Forecasts:")
	assert.Contains(t, out, "arima lower")
	assert.NotContains(t, out, "naive lower")
	assert.Contains(t, out, "broken: ")
	assert.Contains(t, out, "2024-03-04T00:00:00Z")
}
