package timedataset

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
)

// GenerateT returns n evenly spaced time points beginning at start
func GenerateT(n int, interval time.Duration, start time.Time) []time.Time {
	t := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		t = append(t, start.Add(interval*time.Duration(i)))
	}
	return t
}

// GenerateTradingT returns n consecutive trading days beginning at or after start
func GenerateTradingT(n int, start time.Time, c *TradingCalendar) []time.Time {
	if n <= 0 {
		return nil
	}
	t := make([]time.Time, 0, n)
	if c.IsTradingDay(start) {
		t = append(t, start)
	}
	if len(t) < n {
		rest, _ := FutureTimes(start, 24*time.Hour, n-len(t), c)
		t = append(t, rest...)
	}
	return t
}

// Series is a helper to compose synthetic observations
type Series []float64

func (s Series) Add(src Series) Series {
	floats.Add(s, src)
	return s
}

func GenerateConstY(n int, val float64) Series {
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		y = append(y, val)
	}
	return Series(y)
}

// GenerateLinearY returns intercept + slope*i for each of the n positions
func GenerateLinearY(n int, intercept, slope float64) Series {
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = intercept + slope*float64(i)
	}
	return Series(y)
}

// GenerateWaveY returns a sine wave of the provided period in seconds evaluated at each time
func GenerateWaveY(t []time.Time, amp, periodSec, order, timeOffset float64) Series {
	n := len(t)
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		val := amp * math.Sin(2.0*math.Pi*order/periodSec*(float64(t[i].Unix())+timeOffset))
		y = append(y, val)
	}
	return Series(y)
}

// GenerateIndexWaveY returns a sine wave with a period expressed in positions rather than time
func GenerateIndexWaveY(n int, amp float64, period int) Series {
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = amp * math.Sin(2.0*math.Pi*float64(i)/float64(period))
	}
	return Series(y)
}

// GenerateNoise returns gaussian noise with the given scale from a seeded source
func GenerateNoise(n int, scale float64, seed uint64) Series {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = rng.NormFloat64() * scale
	}
	return Series(y)
}

// GenerateRandomWalk returns a cumulative sum of gaussian steps starting at start
func GenerateRandomWalk(n int, start, scale float64, seed uint64) Series {
	steps := GenerateNoise(n, scale, seed)
	y := make([]float64, n)
	curr := start
	for i := 0; i < n; i++ {
		curr += steps[i]
		y[i] = curr
	}
	return Series(y)
}

// GenerateChange returns a step of size bias plus a ramp of slope per minute from chpt onward
func GenerateChange(t []time.Time, chpt time.Time, bias, slope float64) Series {
	n := len(t)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		if t[i].After(chpt) || t[i].Equal(chpt) {
			jump := bias + slope*t[i].Sub(chpt).Minutes()
			y[i] = jump
		}
	}
	return Series(y)
}
