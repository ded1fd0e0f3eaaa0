package arima

import (
	"errors"
	"fmt"
)

const (
	DefaultMaxP              = 5
	DefaultMaxQ              = 5
	DefaultMaxD              = 2
	DefaultMaxSeasonalD      = 1
	DefaultPeriod            = 252
	DefaultSeasonalThreshold = 0.5
	DefaultMaxModels         = 94
	DefaultCacheSize         = 64
	DefaultLevel             = 0.95
)

var (
	ErrNegativeOrder       = errors.New("negative model order")
	ErrInvalidPeriod       = errors.New("seasonal period must be at least 2")
	ErrInvalidCriterion    = errors.New("invalid information criterion")
	ErrInvalidThreshold    = errors.New("seasonal threshold must be between 0 and 1")
	ErrInvalidLevel        = errors.New("confidence level must be between 0 and 1")
	ErrNonPositiveMaxModel = errors.New("max models must be positive")
)

// Criterion is the information criterion minimised by the order search
type Criterion string

const (
	AIC  Criterion = "aic"
	AICc Criterion = "aicc"
	BIC  Criterion = "bic"
)

// Validate returns an error if the criterion is not one of the supported values
func (c Criterion) Validate() error {
	switch c {
	case AIC, AICc, BIC:
		return nil
	}
	return fmt.Errorf("%q, %w", string(c), ErrInvalidCriterion)
}

// Options configures the automatic order search
type Options struct {
	// MaxP and MaxQ bound the autoregressive and moving average orders.
	MaxP int `json:"max_p" mapstructure:"max_p"`
	MaxQ int `json:"max_q" mapstructure:"max_q"`

	// MaxD bounds the number of first differences chosen by the KPSS test.
	MaxD int `json:"max_d" mapstructure:"max_d"`

	// Period is the seasonal period in observations. Values below 2 disable seasonal differencing
	// and the two cycle minimum on the training length.
	Period int `json:"period" mapstructure:"period"`

	// MaxSeasonalD bounds seasonal differencing at Period. At most one is supported.
	MaxSeasonalD int `json:"max_seasonal_d" mapstructure:"max_seasonal_d"`

	// SeasonalThreshold is the autocorrelation at the seasonal lag above which one seasonal
	// difference is taken.
	SeasonalThreshold float64 `json:"seasonal_threshold" mapstructure:"seasonal_threshold"`

	Criterion Criterion `json:"criterion" mapstructure:"criterion"`

	// Stepwise walks the neighbourhood of the best model instead of the full grid.
	Stepwise bool `json:"stepwise" mapstructure:"stepwise"`

	// MaxModels caps the number of candidate fits in a stepwise search.
	MaxModels int `json:"max_models" mapstructure:"max_models"`

	// CacheSize is the number of fitted candidates memoised during a search.
	CacheSize int `json:"cache_size" mapstructure:"cache_size"`

	// Level is the prediction interval coverage.
	Level float64 `json:"level" mapstructure:"level"`
}

// NewDefaultOptions returns the defaults for daily trading data
func NewDefaultOptions() *Options {
	return &Options{
		MaxP:              DefaultMaxP,
		MaxQ:              DefaultMaxQ,
		MaxD:              DefaultMaxD,
		Period:            DefaultPeriod,
		MaxSeasonalD:      DefaultMaxSeasonalD,
		SeasonalThreshold: DefaultSeasonalThreshold,
		Criterion:         AIC,
		Stepwise:          true,
		MaxModels:         DefaultMaxModels,
		CacheSize:         DefaultCacheSize,
		Level:             DefaultLevel,
	}
}

// Validate fills defaults for unset fields and checks ranges. A nil receiver returns the defaults.
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		return NewDefaultOptions(), nil
	}
	if o.MaxP < 0 || o.MaxQ < 0 || o.MaxD < 0 || o.MaxSeasonalD < 0 {
		return nil, ErrNegativeOrder
	}
	if o.MaxSeasonalD > 1 {
		o.MaxSeasonalD = 1
	}
	if o.Criterion == "" {
		o.Criterion = AIC
	}
	if err := o.Criterion.Validate(); err != nil {
		return nil, err
	}
	if o.SeasonalThreshold == 0 {
		o.SeasonalThreshold = DefaultSeasonalThreshold
	}
	if o.SeasonalThreshold < 0 || o.SeasonalThreshold >= 1 {
		return nil, ErrInvalidThreshold
	}
	if o.MaxModels == 0 {
		o.MaxModels = DefaultMaxModels
	}
	if o.MaxModels < 0 {
		return nil, ErrNonPositiveMaxModel
	}
	if o.CacheSize <= 0 {
		o.CacheSize = DefaultCacheSize
	}
	if o.Level == 0 {
		o.Level = DefaultLevel
	}
	if o.Level <= 0 || o.Level >= 1 {
		return nil, fmt.Errorf("got %f, %w", o.Level, ErrInvalidLevel)
	}
	return o, nil
}
