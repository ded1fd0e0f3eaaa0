// Package options contains all forecast options for a linear fit of a univariate time series
package options

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aouyang1/go-backtest/feature"
	"github.com/aouyang1/go-backtest/forecast/util"
	"github.com/aouyang1/go-backtest/models"
)

const DefaultLevel = 0.95

var (
	ErrUnknownGrowthType    = errors.New("unknown growth type")
	ErrNegativeRegularizer  = errors.New("negative regularization")
	ErrInvalidLevel         = errors.New("confidence level must be between 0 and 1")
	ErrInvalidTrainingRange = errors.New("training end time is before the start time")
)

// Options configures a forecast by specifying the growth, changepoints, seasonality orders and
// an optional regularization parameter where higher values removes more features that
// contribute the least to the fit.
type Options struct {
	GrowthType string `json:"growth_type" mapstructure:"growth_type"`

	ChangepointOptions ChangepointOptions `json:"changepoint_options" mapstructure:"changepoint_options"`
	SeasonalityOptions SeasonalityOptions `json:"seasonality_options" mapstructure:"seasonality_options"`

	// Lasso related options. A regularization of 0 fits by ordinary least squares.
	Regularization float64 `json:"regularization" mapstructure:"regularization"`
	Iterations     int     `json:"iterations" mapstructure:"iterations"`
	Tolerance      float64 `json:"tolerance" mapstructure:"tolerance"`

	// Level is the coverage of the prediction interval
	Level float64 `json:"level" mapstructure:"level"`
}

// NewDefaultOptions returns a set of default forecast options
func NewDefaultOptions() *Options {
	return &Options{
		GrowthType:         feature.GrowthLinear,
		ChangepointOptions: NewDefaultChangepointOptions(),
		SeasonalityOptions: NewDefaultSeasonalityOptions(),
		Regularization:     0.0,
		Level:              DefaultLevel,
	}
}

// Validate fills unset solver options with defaults and checks ranges
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		return NewDefaultOptions(), nil
	}
	switch o.GrowthType {
	case "", feature.GrowthIntercept, feature.GrowthLinear:
	default:
		return nil, fmt.Errorf("%q, %w", o.GrowthType, ErrUnknownGrowthType)
	}
	if o.Regularization < 0 {
		return nil, ErrNegativeRegularizer
	}
	if o.Iterations == 0 {
		o.Iterations = models.DefaultIterations
	}
	if o.Tolerance == 0 {
		o.Tolerance = models.DefaultTolerance
	}
	if o.Level == 0 {
		o.Level = DefaultLevel
	}
	if o.Level <= 0 || o.Level >= 1 {
		return nil, fmt.Errorf("got %f, %w", o.Level, ErrInvalidLevel)
	}
	return o, nil
}

// NewLassoOptions converts the solver settings into lasso options. The intercept is part of the
// feature set so the solver does not add one.
func (o *Options) NewLassoOptions() *models.LassoOptions {
	lassoOpt := models.NewDefaultLassoOptions()
	lassoOpt.Lambda = o.Regularization
	lassoOpt.FitIntercept = false

	lassoOpt.Iterations = o.Iterations
	if o.Iterations == 0 {
		lassoOpt.Iterations = models.DefaultIterations
	}

	lassoOpt.Tolerance = o.Tolerance
	if o.Tolerance == 0 {
		lassoOpt.Tolerance = models.DefaultTolerance
	}
	return lassoOpt
}

// GenerateFeatures builds the growth, changepoint and seasonality features for the times given
// the training window the model was or will be fit on.
func (o *Options) GenerateFeatures(t []time.Time, trainStartTime, trainEndTime time.Time) (*feature.Set, error) {
	if o == nil {
		o = NewDefaultOptions()
	}
	if trainEndTime.Before(trainStartTime) {
		return nil, ErrInvalidTrainingRange
	}

	epoch := feature.Epoch(t)
	x := feature.NewSet()

	interceptFeat := feature.Intercept()
	if err := x.Set(interceptFeat, interceptFeat.Generate(epoch, trainStartTime, trainEndTime)); err != nil {
		return nil, err
	}
	if o.GrowthType == feature.GrowthLinear && trainEndTime.After(trainStartTime) {
		linearFeat := feature.Linear()
		if err := x.Set(linearFeat, linearFeat.Generate(epoch, trainStartTime, trainEndTime)); err != nil {
			return nil, err
		}
	}

	chptFeat, err := o.ChangepointOptions.GenerateFeatures(epoch, trainStartTime, trainEndTime)
	if err != nil {
		return nil, fmt.Errorf("unable to generate changepoint features, %w", err)
	}
	if err := x.Update(chptFeat); err != nil {
		return nil, err
	}

	seasFeat, err := o.SeasonalityOptions.GenerateFeatures(epoch, trainStartTime, trainEndTime)
	if err != nil {
		return nil, err
	}
	if err := x.Update(seasFeat); err != nil {
		return nil, err
	}
	return x, nil
}

func (o *Options) TablePrint(w io.Writer, prefix, indent string, indentGrowth int) error {
	if o == nil {
		return nil
	}
	growth := o.GrowthType
	if growth == "" {
		growth = feature.GrowthIntercept
	}
	if _, err := fmt.Fprintf(w, "%s%sGrowth: %s\n", prefix, util.IndentExpand(indent, indentGrowth), growth); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sRegularization: %.3f\n", prefix, util.IndentExpand(indent, indentGrowth), o.Regularization); err != nil {
		return err
	}
	if err := o.SeasonalityOptions.TablePrint(w, prefix, indent, indentGrowth); err != nil {
		return err
	}
	return o.ChangepointOptions.TablePrint(w, prefix, indent, indentGrowth)
}
