// Package arima fits ARIMA(p,d,q) models with optional seasonal differencing, estimating the
// coefficients with the Hannan-Rissanen two stage regression.
package arima

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/aouyang1/go-backtest/models"
	"github.com/aouyang1/go-backtest/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// minDegreesOfFreedom is the number of regression rows required beyond the number of
// coefficients in each stage
const minDegreesOfFreedom = 5

// minVariance floors the innovation variance in the likelihood so a perfect fit keeps a finite
// criterion
const minVariance = 1e-300

var (
	ErrTooShort        = errors.New("series too short")
	ErrNonStationary   = errors.New("autoregressive part is not stationary")
	ErrNonInvertible   = errors.New("moving average part is not invertible")
	ErrNotFitted       = errors.New("model is not fitted")
	ErrInvalidHorizon  = errors.New("horizon must be at least 1")
	ErrNonFiniteSeries = errors.New("series contains non-finite values")
)

// Order is the structure of an ARIMA model. SeasonalD differences at lag Period.
type Order struct {
	P         int `json:"p"`
	D         int `json:"d"`
	Q         int `json:"q"`
	SeasonalD int `json:"seasonal_d"`
	Period    int `json:"period"`
}

func (o Order) String() string {
	if o.SeasonalD > 0 {
		return fmt.Sprintf("ARIMA(%d,%d,%d)(0,%d,0)[%d]", o.P, o.D, o.Q, o.SeasonalD, o.Period)
	}
	return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q)
}

func (o Order) validate() error {
	if o.P < 0 || o.D < 0 || o.Q < 0 || o.SeasonalD < 0 {
		return fmt.Errorf("%s, %w", o, ErrNegativeOrder)
	}
	if o.SeasonalD > 0 && o.Period < 2 {
		return fmt.Errorf("seasonal differencing with period %d, %w", o.Period, ErrInvalidPeriod)
	}
	return nil
}

// lost is the number of leading observations consumed by differencing
func (o Order) lost() int {
	return o.D + o.SeasonalD*o.Period
}

// hasIntercept reports whether a constant is estimated. It is the mean of an undifferenced
// model and the drift of a once differenced one.
func (o Order) hasIntercept() bool {
	return o.D+o.SeasonalD < 2
}

// Model is a fitted ARIMA model
type Model struct {
	Order     Order     `json:"order"`
	AR        []float64 `json:"ar"`
	MA        []float64 `json:"ma"`
	Intercept float64   `json:"intercept"`
	Sigma2    float64   `json:"sigma2"`
	LogLik    float64   `json:"log_lik"`
	AIC       float64   `json:"aic"`
	AICc      float64   `json:"aicc"`
	BIC       float64   `json:"bic"`
	NObs      int       `json:"n_obs"`

	y     []float64
	resid []float64
}

// Fit estimates the model of the given order on y. The AR polynomial must be stationary and the
// MA polynomial invertible.
func Fit(y []float64, order Order) (*Model, error) {
	if err := order.validate(); err != nil {
		return nil, err
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("value at index %d, %w", i, ErrNonFiniteSeries)
		}
	}

	w := difference(y, order)
	p, q := order.P, order.Q
	intercept := order.hasIntercept()
	if len(w) <= p+q+minDegreesOfFreedom {
		return nil, fmt.Errorf("%d points after differencing for %s, %w", len(w), order, ErrTooShort)
	}

	m := &Model{
		Order: order,
		AR:    make([]float64, p),
		MA:    make([]float64, q),
		NObs:  len(y),
		y:     append([]float64(nil), y...),
	}

	var err error
	switch {
	case p == 0 && q == 0:
		if intercept {
			m.Intercept = stat.Mean(w, nil)
		}
	case q == 0:
		err = m.fitAR(w, intercept)
	default:
		err = m.fitHannanRissanen(w, intercept)
	}
	if err != nil {
		return nil, err
	}

	if !isStable(m.AR) {
		return nil, fmt.Errorf("%s with ar %v, %w", order, m.AR, ErrNonStationary)
	}
	if !isStable(floats.ScaleTo(make([]float64, q), -1, m.MA)) {
		return nil, fmt.Errorf("%s with ma %v, %w", order, m.MA, ErrNonInvertible)
	}

	m.resid = m.residuals(w)
	m.informationCriteria()
	return m, nil
}

// fitAR regresses w on its own p lags
func (m *Model) fitAR(w []float64, intercept bool) error {
	p := m.Order.P
	if len(w)-p < p+minDegreesOfFreedom {
		return fmt.Errorf("%d points after differencing for %s, %w", len(w), m.Order, ErrTooShort)
	}
	coef, c, err := lagRegression(w, nil, p, 0, p, intercept)
	if err != nil {
		return fmt.Errorf("unable to fit %s, %w", m.Order, err)
	}
	copy(m.AR, coef)
	m.Intercept = c
	return nil
}

// fitHannanRissanen estimates innovations with a long autoregression, then regresses w on its
// lags and the lagged innovations.
func (m *Model) fitHannanRissanen(w []float64, intercept bool) error {
	p, q := m.Order.P, m.Order.Q
	n := len(w)

	k := longAROrder(n, p, q)
	start := k + q
	if n-start < p+q+minDegreesOfFreedom || n-k < k+minDegreesOfFreedom {
		return fmt.Errorf("%d points after differencing for %s, %w", n, m.Order, ErrTooShort)
	}

	longCoef, longC, err := lagRegression(w, nil, k, 0, k, intercept)
	if err != nil {
		return fmt.Errorf("unable to fit long autoregression of order %d, %w", k, err)
	}
	innov := make([]float64, n)
	for t := k; t < n; t++ {
		pred := longC
		for i, c := range longCoef {
			pred += c * w[t-i-1]
		}
		innov[t] = w[t] - pred
	}

	coef, c, err := lagRegression(w, innov, p, q, start, intercept)
	if err != nil {
		return fmt.Errorf("unable to fit %s, %w", m.Order, err)
	}
	copy(m.AR, coef[:p])
	copy(m.MA, coef[p:])
	m.Intercept = c
	return nil
}

// longAROrder picks the order of the first stage autoregression
func longAROrder(n, p, q int) int {
	k := int(math.Ceil(10 * math.Log10(float64(n))))
	k = max(k, p+q, 1)
	return min(k, n/4)
}

// lagRegression solves w[t] = c + sum a_i w[t-i] + sum b_j e[t-j] by least squares for t >= start
func lagRegression(w, e []float64, p, q, start int, intercept bool) ([]float64, float64, error) {
	rows := make([][]float64, 0, len(w)-start)
	target := make([]float64, 0, len(w)-start)
	for t := start; t < len(w); t++ {
		row := make([]float64, 0, p+q)
		for i := 1; i <= p; i++ {
			row = append(row, w[t-i])
		}
		for j := 1; j <= q; j++ {
			row = append(row, e[t-j])
		}
		rows = append(rows, row)
		target = append(target, w[t])
	}

	x, err := models.NewDenseFromRows(rows)
	if err != nil {
		return nil, 0, err
	}
	ols, err := models.NewOLSRegression(&models.OLSOptions{FitIntercept: intercept})
	if err != nil {
		return nil, 0, err
	}
	if err := ols.Fit(x, mat.NewDense(len(target), 1, target)); err != nil {
		return nil, 0, err
	}
	return ols.Coef(), ols.Intercept(), nil
}

// residuals computes the conditional one step ahead errors of the fitted model on w. Errors
// before the first p points are taken as zero.
func (m *Model) residuals(w []float64) []float64 {
	p, q := m.Order.P, m.Order.Q
	e := make([]float64, len(w))
	for t := p; t < len(w); t++ {
		pred := m.Intercept
		for i := 0; i < p; i++ {
			pred += m.AR[i] * w[t-i-1]
		}
		for j := 0; j < q && t-j-1 >= 0; j++ {
			pred += m.MA[j] * e[t-j-1]
		}
		e[t] = w[t] - pred
	}
	return e
}

func (m *Model) informationCriteria() {
	e := m.resid[m.Order.P:]
	n := float64(len(e))

	var sse float64
	for _, v := range e {
		sse += v * v
	}
	m.Sigma2 = sse / n

	k := float64(m.Order.P + m.Order.Q + 1)
	if m.Order.hasIntercept() {
		k++
	}

	m.LogLik = -n / 2 * (math.Log(2*math.Pi*math.Max(m.Sigma2, minVariance)) + 1)
	m.AIC = -2*m.LogLik + 2*k
	m.BIC = -2*m.LogLik + k*math.Log(n)
	m.AICc = math.Inf(1)
	if n-k-1 > 0 {
		m.AICc = m.AIC + 2*k*(k+1)/(n-k-1)
	}
}

// Score returns the value of the requested information criterion
func (m *Model) Score(c Criterion) float64 {
	if m == nil {
		return math.Inf(1)
	}
	switch c {
	case AICc:
		return m.AICc
	case BIC:
		return m.BIC
	default:
		return m.AIC
	}
}

// Residuals returns the one step ahead errors on the differenced scale
func (m *Model) Residuals() []float64 {
	if m == nil {
		return nil
	}
	return append([]float64(nil), m.resid...)
}

// Forecast predicts horizon steps past the end of the training series. lower and upper bound the
// prediction interval at the given level using the psi weights of the integrated model.
func (m *Model) Forecast(horizon int, level float64) (point, lower, upper []float64, err error) {
	if m == nil || m.y == nil {
		return nil, nil, nil, ErrNotFitted
	}
	if horizon < 1 {
		return nil, nil, nil, fmt.Errorf("got %d, %w", horizon, ErrInvalidHorizon)
	}
	if level <= 0 || level >= 1 {
		return nil, nil, nil, fmt.Errorf("got %f, %w", level, ErrInvalidLevel)
	}

	phi := m.integratedAR()
	n := len(m.y)
	lost := m.Order.lost()

	y := make([]float64, n+horizon)
	copy(y, m.y)
	for h := 0; h < horizon; h++ {
		t := n + h
		pred := m.Intercept
		for i, c := range phi {
			if t-i-1 >= 0 {
				pred += c * y[t-i-1]
			}
		}
		// future innovations are zero so only errors observed in training contribute
		for j, c := range m.MA {
			idx := t - j - 1 - lost
			if idx >= 0 && idx < len(m.resid) {
				pred += c * m.resid[idx]
			}
		}
		y[t] = pred
	}
	point = y[n:]

	psi := psiWeights(phi, m.MA, horizon)
	z := distuv.UnitNormal.Quantile(0.5 + level/2)

	lower = make([]float64, horizon)
	upper = make([]float64, horizon)
	var cum float64
	for h := 0; h < horizon; h++ {
		cum += psi[h] * psi[h]
		half := z * math.Sqrt(m.Sigma2*cum)
		lower[h] = point[h] - half
		upper[h] = point[h] + half
	}
	return point, lower, upper, nil
}

// integratedAR returns the coefficients a_i of y[t] = sum a_i y[t-i] + ... once the AR
// polynomial is multiplied by the differencing operators.
func (m *Model) integratedAR() []float64 {
	poly := make([]float64, m.Order.P+1)
	poly[0] = 1
	for i, c := range m.AR {
		poly[i+1] = -c
	}
	for range m.Order.D {
		poly = polyMul(poly, []float64{1, -1})
	}
	if m.Order.SeasonalD > 0 {
		seas := make([]float64, m.Order.Period+1)
		seas[0] = 1
		seas[m.Order.Period] = -1
		for range m.Order.SeasonalD {
			poly = polyMul(poly, seas)
		}
	}
	phi := make([]float64, len(poly)-1)
	for i := range phi {
		phi[i] = -poly[i+1]
	}
	return phi
}

// psiWeights returns the first n coefficients of the infinite moving average representation
func psiWeights(phi, theta []float64, n int) []float64 {
	psi := make([]float64, n)
	psi[0] = 1
	for j := 1; j < n; j++ {
		var v float64
		if j <= len(theta) {
			v = theta[j-1]
		}
		for i := 1; i <= min(j, len(phi)); i++ {
			v += phi[i-1] * psi[j-i]
		}
		psi[j] = v
	}
	return psi
}

func polyMul(a, b []float64) []float64 {
	res := make([]float64, len(a)+len(b)-1)
	for i, av := range a {
		if av == 0 {
			continue
		}
		for j, bv := range b {
			res[i+j] += av * bv
		}
	}
	return res
}

// difference applies the seasonal then the regular differences of the order
func difference(y []float64, order Order) []float64 {
	w := y
	for range order.SeasonalD {
		w = stats.Diff(w, order.Period)
	}
	for range order.D {
		w = stats.Diff(w, 1)
	}
	return w
}

// isStable reports whether x[t] = sum c_i x[t-i] has all companion eigenvalues strictly inside
// the unit circle
func isStable(coef []float64) bool {
	// trailing zero lags do not change the roots
	n := len(coef)
	for n > 0 && coef[n-1] == 0 {
		n--
	}
	switch n {
	case 0:
		return true
	case 1:
		return math.Abs(coef[0]) < 1
	}

	companion := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		companion.Set(0, j, coef[j])
	}
	for i := 1; i < n; i++ {
		companion.Set(i, i-1, 1)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(companion, mat.EigenNone); !ok {
		return false
	}
	for _, v := range eig.Values(nil) {
		if cmplx.Abs(v) >= 1 {
			return false
		}
	}
	return true
}
