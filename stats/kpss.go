package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// KPSSCritical5 is the 5% critical value of the level stationarity KPSS statistic
const KPSSCritical5 = 0.463

const minKPSSLen = 10

var ErrSeriesTooShort = errors.New("series too short for test")

// KPSSResult holds the KPSS level stationarity statistic and the decision at the 5% level
type KPSSResult struct {
	Statistic  float64 `json:"statistic"`
	Lags       int     `json:"lags"`
	Stationary bool    `json:"stationary"`
}

// KPSS runs the Kwiatkowski-Phillips-Schmidt-Shin test with a constant. The null hypothesis is
// level stationarity. When nlags is not positive the Schwert rule 12*(n/100)^0.25 is used for
// the Newey-West long run variance.
func KPSS(y []float64, nlags int) (KPSSResult, error) {
	n := len(y)
	if n < minKPSSLen {
		return KPSSResult{}, fmt.Errorf("got %d points, need %d, %w", n, minKPSSLen, ErrSeriesTooShort)
	}
	if nlags <= 0 {
		nlags = int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	}
	if nlags >= n {
		nlags = n - 1
	}

	mean := stat.Mean(y, nil)
	resid := make([]float64, n)
	for i, v := range y {
		resid[i] = v - mean
	}

	var eta, cum float64
	for _, r := range resid {
		cum += r
		eta += cum * cum
	}

	s2 := autocovariance(resid, 0, 0) / float64(n)
	for l := 1; l <= nlags; l++ {
		w := 1.0 - float64(l)/float64(nlags+1)
		s2 += 2 * w * autocovariance(resid, 0, l) / float64(n)
	}

	// a constant series has no variation to test and is trivially stationary
	if s2 <= 0 {
		return KPSSResult{Lags: nlags, Stationary: true}, nil
	}

	statistic := eta / (float64(n) * float64(n) * s2)
	return KPSSResult{
		Statistic:  statistic,
		Lags:       nlags,
		Stationary: statistic < KPSSCritical5,
	}, nil
}
