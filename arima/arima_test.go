package arima

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simulateARMA(n int, ar, ma float64, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	y := make([]float64, n)
	var prevY, prevE float64
	for i := range y {
		e := rng.NormFloat64()
		y[i] = ar*prevY + e + ma*prevE
		prevY, prevE = y[i], e
	}
	return y
}

func simulateRandomWalk(n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	y := make([]float64, n)
	y[0] = 100
	for i := 1; i < n; i++ {
		y[i] = y[i-1] + rng.NormFloat64()
	}
	return y
}

func TestOrderString(t *testing.T) {
	assert.Equal(t, "ARIMA(1,1,2)", Order{P: 1, D: 1, Q: 2}.String())
	assert.Equal(t, "ARIMA(0,1,1)(0,1,0)[252]", Order{D: 1, Q: 1, SeasonalD: 1, Period: 252}.String())
}

func TestFitErrors(t *testing.T) {
	testData := map[string]struct {
		y     []float64
		order Order
		err   error
	}{
		"negative order": {
			y:     make([]float64, 50),
			order: Order{P: -1},
			err:   ErrNegativeOrder,
		},
		"seasonal without period": {
			y:     make([]float64, 50),
			order: Order{SeasonalD: 1, Period: 1},
			err:   ErrInvalidPeriod,
		},
		"too short": {
			y:     []float64{1, 2, 3, 4, 5},
			order: Order{},
			err:   ErrTooShort,
		},
		"too short after differencing": {
			y:     []float64{1, 2, 3, 4, 5, 6, 7, 8},
			order: Order{D: 1, P: 2},
			err:   ErrTooShort,
		},
		"non finite": {
			y:     []float64{1, 2, math.NaN(), 4, 5, 6, 7, 8},
			order: Order{},
			err:   ErrNonFiniteSeries,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			_, err := Fit(td.y, td.order)
			assert.ErrorIs(t, err, td.err)
		})
	}
}

func TestFitDrift(t *testing.T) {
	y := make([]float64, 30)
	for i := range y {
		y[i] = 10 + 2*float64(i)
	}

	m, err := Fit(y, Order{D: 1})
	require.Nil(t, err)
	assert.InDelta(t, 2.0, m.Intercept, 1e-12)
	assert.InDelta(t, 0.0, m.Sigma2, 1e-12)
	assert.Equal(t, 30, m.NObs)

	point, lower, upper, err := m.Forecast(3, 0.95)
	require.Nil(t, err)
	assert.InDeltaSlice(t, []float64{70, 72, 74}, point, 1e-9)
	assert.InDeltaSlice(t, point, lower, 1e-6)
	assert.InDeltaSlice(t, point, upper, 1e-6)
}

func TestFitMean(t *testing.T) {
	y := []float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5}
	m, err := Fit(y, Order{})
	require.Nil(t, err)
	assert.Equal(t, 5.0, m.Intercept)

	point, _, _, err := m.Forecast(2, 0.95)
	require.Nil(t, err)
	assert.Equal(t, []float64{5, 5}, point)
	assert.False(t, math.IsInf(m.AIC, 0))
}

func TestFitAR(t *testing.T) {
	y := simulateARMA(1000, 0.6, 0, 3)
	m, err := Fit(y, Order{P: 1})
	require.Nil(t, err)
	assert.InDelta(t, 0.6, m.AR[0], 0.1)
	assert.InDelta(t, 0.0, m.Intercept, 0.2)
	assert.InDelta(t, 1.0, m.Sigma2, 0.2)
	assert.Len(t, m.Residuals(), 1000)
	assert.Less(t, m.AIC, m.BIC)
	assert.Less(t, m.AIC, m.AICc)
}

func TestFitMA(t *testing.T) {
	y := simulateARMA(2000, 0, 0.5, 7)
	m, err := Fit(y, Order{Q: 1})
	require.Nil(t, err)
	assert.InDelta(t, 0.5, m.MA[0], 0.15)
	assert.Empty(t, m.AR)
}

func TestForecastIntervalsWiden(t *testing.T) {
	y := simulateRandomWalk(300, 11)
	m, err := Fit(y, Order{D: 1})
	require.Nil(t, err)

	point, lower, upper, err := m.Forecast(4, 0.95)
	require.Nil(t, err)
	require.Len(t, point, 4)

	widths := make([]float64, 4)
	for i := range widths {
		assert.Less(t, lower[i], point[i])
		assert.Greater(t, upper[i], point[i])
		widths[i] = upper[i] - lower[i]
	}
	// random walk variance grows linearly with the horizon
	assert.InDelta(t, 2.0, widths[3]/widths[0], 1e-9)
	assert.InDelta(t, 2*1.959963984540054*math.Sqrt(m.Sigma2), widths[0], 1e-9)

	_, narrow, _, err := m.Forecast(1, 0.5)
	require.Nil(t, err)
	assert.Greater(t, narrow[0], lower[0])
}

func TestForecastErrors(t *testing.T) {
	y := simulateRandomWalk(50, 1)
	m, err := Fit(y, Order{D: 1})
	require.Nil(t, err)

	_, _, _, err = m.Forecast(0, 0.95)
	assert.ErrorIs(t, err, ErrInvalidHorizon)

	_, _, _, err = m.Forecast(1, 1.5)
	assert.ErrorIs(t, err, ErrInvalidLevel)

	var empty *Model
	_, _, _, err = empty.Forecast(1, 0.95)
	assert.ErrorIs(t, err, ErrNotFitted)
	assert.True(t, math.IsInf(empty.Score(AIC), 1))
}

func TestScore(t *testing.T) {
	m := &Model{AIC: 1, AICc: 2, BIC: 3}
	assert.Equal(t, 1.0, m.Score(AIC))
	assert.Equal(t, 2.0, m.Score(AICc))
	assert.Equal(t, 3.0, m.Score(BIC))
}

func TestPsiWeights(t *testing.T) {
	testData := map[string]struct {
		phi      []float64
		theta    []float64
		expected []float64
	}{
		"white noise":  {nil, nil, []float64{1, 0, 0}},
		"ar1":          {[]float64{0.5}, nil, []float64{1, 0.5, 0.25, 0.125}},
		"arma11":       {[]float64{0.5}, []float64{0.4}, []float64{1, 0.9, 0.45, 0.225}},
		"random walk":  {[]float64{1}, nil, []float64{1, 1, 1}},
		"ima11":        {[]float64{1}, []float64{0.3}, []float64{1, 1.3, 1.3}},
		"ma2 truncate": {nil, []float64{0.2, 0.1}, []float64{1, 0.2, 0.1, 0}},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.InDeltaSlice(t, td.expected, psiWeights(td.phi, td.theta, len(td.expected)), 1e-12)
		})
	}
}

func TestIntegratedAR(t *testing.T) {
	testData := map[string]struct {
		model    *Model
		expected []float64
	}{
		"ar1": {
			&Model{Order: Order{P: 1}, AR: []float64{0.5}},
			[]float64{0.5},
		},
		"ari11": {
			&Model{Order: Order{P: 1, D: 1}, AR: []float64{0.5}},
			[]float64{1.5, -0.5},
		},
		"second difference": {
			&Model{Order: Order{D: 2}},
			[]float64{2, -1},
		},
		"seasonal": {
			&Model{Order: Order{SeasonalD: 1, Period: 3}},
			[]float64{0, 0, 1},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.InDeltaSlice(t, td.expected, td.model.integratedAR(), 1e-12)
		})
	}
}

func TestIsStable(t *testing.T) {
	testData := map[string]struct {
		coef     []float64
		expected bool
	}{
		"empty":             {nil, true},
		"ar1 stable":        {[]float64{0.5}, true},
		"ar1 unit root":     {[]float64{1}, false},
		"ar1 explosive":     {[]float64{-1.2}, false},
		"ar2 stable":        {[]float64{0.5, 0.3}, true},
		"ar2 explosive":     {[]float64{0.5, 0.6}, false},
		"trailing zero lag": {[]float64{0.5, 0}, true},
		"complex stable":    {[]float64{1, -0.5}, true},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, isStable(td.coef))
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	opt, err := (*Options)(nil).Validate()
	require.Nil(t, err)
	assert.Equal(t, NewDefaultOptions(), opt)

	opt, err = (&Options{MaxP: 1, MaxQ: 1}).Validate()
	require.Nil(t, err)
	assert.Equal(t, AIC, opt.Criterion)
	assert.Equal(t, DefaultLevel, opt.Level)
	assert.Equal(t, DefaultCacheSize, opt.CacheSize)

	testData := map[string]struct {
		opt *Options
		err error
	}{
		"negative order":    {&Options{MaxP: -1}, ErrNegativeOrder},
		"unknown criterion": {&Options{Criterion: "hqic"}, ErrInvalidCriterion},
		"level":             {&Options{Level: 1.2}, ErrInvalidLevel},
		"threshold":         {&Options{SeasonalThreshold: 1.5}, ErrInvalidThreshold},
		"max models":        {&Options{MaxModels: -1}, ErrNonPositiveMaxModel},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			_, err := td.opt.Validate()
			assert.ErrorIs(t, err, td.err)
		})
	}
}
