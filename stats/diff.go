package stats

// Diff returns y[i] - y[i-lag] for every i >= lag. The result is lag points shorter than y and
// is nil if y has no more than lag points.
func Diff(y []float64, lag int) []float64 {
	if lag < 1 || len(y) <= lag {
		return nil
	}
	res := make([]float64, len(y)-lag)
	for i := lag; i < len(y); i++ {
		res[i-lag] = y[i] - y[i-lag]
	}
	return res
}

// NDiffs returns the number of first differences, at most maxD, needed for the KPSS test to
// accept level stationarity. Differencing stops early if the series becomes too short to test.
func NDiffs(y []float64, maxD int) int {
	if maxD <= 0 {
		return 0
	}
	curr := y
	for d := 0; d < maxD; d++ {
		res, err := KPSS(curr, 0)
		if err != nil || res.Stationary {
			return d
		}
		curr = Diff(curr, 1)
		if len(curr) < minKPSSLen {
			return d
		}
	}
	return maxD
}

// NSDiffs returns 1 when y shows strong autocorrelation at the seasonal period, suggesting a
// single seasonal difference. At least two full periods are required, otherwise 0 is returned.
func NSDiffs(y []float64, period int, threshold float64) int {
	if period <= 1 || len(y) < 2*period {
		return 0
	}
	if Autocorrelation(y, period) > threshold {
		return 1
	}
	return 0
}
