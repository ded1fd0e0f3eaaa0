// Package forecast fits an additive model of a univariate time series: an intercept, optional
// linear growth, changepoints and Fourier seasonality, solved by ordinary least squares or lasso
// coordinate descent.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aouyang1/go-backtest/feature"
	"github.com/aouyang1/go-backtest/forecast/options"
	"github.com/aouyang1/go-backtest/models"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrUninitializedForecast    = errors.New("uninitialized forecast")
	ErrInsufficientTrainingData = errors.New("insufficient training data after removing nans")
	ErrMismatchedDataLen        = errors.New("input data has different length than time")
	ErrNoModelCoefficients      = errors.New("no model coefficients from fit")
	ErrUntrainedForecast        = errors.New("forecast has not been trained yet")
	ErrMissingFeature           = errors.New("trained feature missing from generated features")
)

// Components splits a prediction into its trend and seasonal parts
type Components struct {
	Trend       []float64 `json:"trend"`
	Seasonality []float64 `json:"seasonality"`
}

// Forecast represents a single forecast model of a time series. This is a linear model
// decomposing the series into an intercept, trend components (growth and changepoints) and
// seasonal components.
type Forecast struct {
	opt    *options.Options
	scores *Scores

	fLabels *feature.Labels
	coef    []float64

	trainStartTime time.Time
	trainEndTime   time.Time
	residual       []float64
	residualStdDev float64

	trained bool
}

// New creates a new forecast instance with the given options. If none are provided, a default
// is used
func New(opt *options.Options) (*Forecast, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &Forecast{opt: opt}, nil
}

// NewFromModel creates a new forecast instance given a forecast Model to initialize. This
// instance can be used for inference immediately and does not need to be trained again.
func NewFromModel(model Model) (*Forecast, error) {
	opt, err := model.Options.Validate()
	if err != nil {
		return nil, err
	}
	labels, err := model.Weights.FeatureLabels()
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, ErrNoModelCoefficients
	}

	return &Forecast{
		opt:            opt,
		scores:         model.Scores,
		fLabels:        feature.NewLabels(labels),
		coef:           model.Weights.Coefficients(),
		trainStartTime: model.TrainStartTime,
		trainEndTime:   model.TrainEndTime,
		residualStdDev: model.ResidualStdDev,
		trained:        true,
	}, nil
}

// Fit takes the input training data and fits a forecast model for the growth, changepoints and
// seasonal components. Points with a NaN value are dropped before fitting.
func (f *Forecast) Fit(t []time.Time, y []float64) error {
	if f == nil || f.opt == nil {
		return ErrUninitializedForecast
	}
	if len(t) != len(y) {
		return fmt.Errorf("%d times and %d values, %w", len(t), len(y), ErrMismatchedDataLen)
	}

	trainingT := make([]time.Time, 0, len(t))
	trainingY := make([]float64, 0, len(y))
	for i := 0; i < len(t); i++ {
		if math.IsNaN(y[i]) {
			continue
		}
		trainingT = append(trainingT, t[i])
		trainingY = append(trainingY, y[i])
	}
	if len(trainingT) <= 1 {
		return ErrInsufficientTrainingData
	}

	f.trainStartTime = trainingT[0]
	f.trainEndTime = trainingT[len(trainingT)-1]
	f.opt.ChangepointOptions.GenerateAutoChangepoints(f.trainStartTime, f.trainEndTime)

	x, err := f.opt.GenerateFeatures(trainingT, f.trainStartTime, f.trainEndTime)
	if err != nil {
		return err
	}
	if x.Len() >= len(trainingT) {
		return fmt.Errorf("%d points for %d features, %w", len(trainingT), x.Len(), ErrInsufficientTrainingData)
	}

	xMx, err := x.Matrix()
	if err != nil {
		return err
	}
	yMx := mat.NewDense(len(trainingY), 1, trainingY)

	var model models.Model
	if f.opt.Regularization == 0 {
		model, err = models.NewOLSRegression(&models.OLSOptions{FitIntercept: false})
	} else {
		model, err = models.NewLassoRegression(f.opt.NewLassoOptions())
	}
	if err != nil {
		return err
	}
	if err := model.Fit(xMx, yMx); err != nil {
		return fmt.Errorf("unable to fit additive model, %w", err)
	}

	f.fLabels = x.Labels()
	f.coef = model.Coef()
	f.trained = true

	predicted, err := f.predict(x)
	if err != nil {
		return err
	}

	scores, err := NewScores(trainingY, predicted)
	if err != nil {
		return err
	}
	f.scores = scores

	residual := make([]float64, len(trainingY))
	floats.SubTo(residual, trainingY, predicted)
	f.residual = residual
	f.residualStdDev = stat.PopStdDev(residual, nil)

	return nil
}

// Predict takes a slice of times in any order and produces the predicted value for those
// times given a pre-trained model.
func (f *Forecast) Predict(t []time.Time) ([]float64, Components, error) {
	if f == nil || f.opt == nil {
		return nil, Components{}, ErrUninitializedForecast
	}
	if !f.trained {
		return nil, Components{}, ErrUntrainedForecast
	}

	x, err := f.opt.GenerateFeatures(t, f.trainStartTime, f.trainEndTime)
	if err != nil {
		return nil, Components{}, err
	}

	res, err := f.predict(x)
	if err != nil {
		return nil, Components{}, err
	}

	trend := f.partial(x, feature.FeatureTypeGrowth, feature.FeatureTypeChangepoint)
	comp := Components{
		Trend:       trend,
		Seasonality: f.partial(x, feature.FeatureTypeSeasonality),
	}
	return res, comp, nil
}

// PredictInterval returns the prediction with a symmetric interval of z times the standard
// deviation of the training residuals at the configured level.
func (f *Forecast) PredictInterval(t []time.Time) (point, lower, upper []float64, err error) {
	point, _, err = f.Predict(t)
	if err != nil {
		return nil, nil, nil, err
	}
	z := distuv.UnitNormal.Quantile(0.5 + f.opt.Level/2)
	half := z * f.residualStdDev

	lower = make([]float64, len(point))
	upper = make([]float64, len(point))
	for i, p := range point {
		lower[i] = p - half
		upper[i] = p + half
	}
	return point, lower, upper, nil
}

// predict computes the weighted sum of every trained feature
func (f *Forecast) predict(x *feature.Set) ([]float64, error) {
	res := make([]float64, x.Rows())
	for i, label := range f.fLabels.Labels() {
		data, exists := x.Get(label)
		if !exists {
			return nil, fmt.Errorf("%s, %w", label, ErrMissingFeature)
		}
		floats.AddScaled(res, f.coef[i], data)
	}
	return res, nil
}

// partial computes the weighted sum of the trained features of the given types
func (f *Forecast) partial(x *feature.Set, types ...feature.FeatureType) []float64 {
	res := make([]float64, x.Rows())
	for i, label := range f.fLabels.Labels() {
		match := false
		for _, ft := range types {
			if label.Type() == ft {
				match = true
				break
			}
		}
		if !match {
			continue
		}
		if data, exists := x.Get(label); exists {
			floats.AddScaled(res, f.coef[i], data)
		}
	}
	return res
}

// FeatureLabels returns the slice of feature labels in the order of the coefficients
func (f *Forecast) FeatureLabels() []feature.Feature {
	if f == nil {
		return nil
	}
	return f.fLabels.Labels()
}

// Coefficients returns a forecast model map of coefficients keyed by the string
// representation of each feature label
func (f *Forecast) Coefficients() (map[string]float64, error) {
	if f == nil {
		return nil, ErrUninitializedForecast
	}

	labels := f.fLabels.Labels()
	if len(labels) == 0 || len(f.coef) == 0 {
		return nil, ErrNoModelCoefficients
	}
	coef := make(map[string]float64)
	for i := 0; i < len(f.coef); i++ {
		coef[labels[i].String()] = f.coef[i]
	}
	return coef, nil
}

// Intercept returns the coefficient of the intercept feature
func (f *Forecast) Intercept() float64 {
	if f == nil {
		return 0
	}
	if idx, exists := f.fLabels.Index(feature.Intercept()); exists {
		return f.coef[idx]
	}
	return 0
}

// Model returns the serializeable format of the forecast model composing of the
// forecast options, coefficients with their feature labels, and the model fit scores
func (f *Forecast) Model() (Model, error) {
	if f == nil {
		return Model{}, ErrUninitializedForecast
	}
	if !f.trained {
		return Model{}, ErrUntrainedForecast
	}

	fws := make([]FeatureWeight, 0, len(f.coef))
	labels := f.fLabels.Labels()
	for i, c := range f.coef {
		fws = append(fws, NewFeatureWeight(labels[i], c))
	}
	return Model{
		TrainStartTime: f.trainStartTime,
		TrainEndTime:   f.trainEndTime,
		Options:        f.opt,
		Scores:         f.scores,
		ResidualStdDev: f.residualStdDev,
		Weights:        Weights{Coef: fws},
	}, nil
}

// ModelEq returns a string representation of the model linear equation in the format of
// y ~ b + m1x1 + m2x2 + ...
func (f *Forecast) ModelEq() (string, error) {
	if f == nil {
		return "", ErrUninitializedForecast
	}

	coef, err := f.Coefficients()
	if err != nil {
		return "", err
	}

	eq := "y ~ "
	eq += fmt.Sprintf("%.2f", f.Intercept())
	for _, label := range f.fLabels.Labels() {
		if label.Type() == feature.FeatureTypeGrowth {
			if name, _ := label.Get("name"); name == feature.GrowthIntercept {
				continue
			}
		}
		w := coef[label.String()]
		if w == 0 {
			continue
		}
		eq += fmt.Sprintf("+%.2f*%s", w, label)
	}
	return eq, nil
}

// Scores returns the fit scores for evaluating how well the resulting model
// fit the training data
func (f *Forecast) Scores() Scores {
	if f == nil || f.scores == nil {
		return Scores{}
	}
	return *f.scores
}

// Residuals returns the difference between the non-NaN training data and the fit
func (f *Forecast) Residuals() []float64 {
	if f == nil {
		return nil
	}
	res := make([]float64, len(f.residual))
	copy(res, f.residual)
	return res
}

// ResidualStdDev returns the population standard deviation of the training residuals
func (f *Forecast) ResidualStdDev() float64 {
	if f == nil {
		return 0
	}
	return f.residualStdDev
}

// TrainEndTime returns the last training timestamp
func (f *Forecast) TrainEndTime() time.Time {
	if f == nil {
		return time.Time{}
	}
	return f.trainEndTime
}
