// Package config loads the command line configuration from a YAML file with GO_BACKTEST_
// environment overrides and turns it into backtest and back-end options.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	backtest "github.com/aouyang1/go-backtest"
	"github.com/aouyang1/go-backtest/arima"
	"github.com/aouyang1/go-backtest/backend"
	"github.com/aouyang1/go-backtest/forecast/options"
	"github.com/aouyang1/go-backtest/telemetry"
	"github.com/aouyang1/go-backtest/timedataset"
	"github.com/spf13/viper"
)

const envPrefix = "GO_BACKTEST"

var ErrNoBackends = errors.New("at least one back-end must be enabled")

// Config represents the complete command line configuration
type Config struct {
	Input    InputConfig      `mapstructure:"input"`
	Backtest BacktestConfig   `mapstructure:"backtest"`
	ARIMA    ARIMAConfig      `mapstructure:"arima"`
	Additive AdditiveConfig   `mapstructure:"additive"`
	Naive    NaiveConfig      `mapstructure:"naive"`
	Storage  StorageConfig    `mapstructure:"storage"`
	Metrics  MetricsConfig    `mapstructure:"metrics"`
	Tracing  telemetry.Config `mapstructure:"tracing"`
	Logging  LoggingConfig    `mapstructure:"logging"`
}

// InputConfig selects the series within a csv file
type InputConfig struct {
	Path        string            `mapstructure:"path"`
	Name        string            `mapstructure:"name"`
	TimeColumn  string            `mapstructure:"time_column"`
	ValueColumn string            `mapstructure:"value_column"`
	TimeFormat  string            `mapstructure:"time_format"`
	Filters     map[string]string `mapstructure:"filters"`
}

type BacktestConfig struct {
	SplitRatio      float64       `mapstructure:"split_ratio"`
	FitTimeout      time.Duration `mapstructure:"fit_timeout"`
	Parallelization int           `mapstructure:"parallelization"`
}

// ARIMAConfig enables the ARIMA back-end. TradingCalendar skips weekends and US market holidays
// when timestamping daily forecasts.
type ARIMAConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	TradingCalendar bool          `mapstructure:"trading_calendar"`
	Search          arima.Options `mapstructure:"search"`
}

type AdditiveConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	TradingCalendar     bool    `mapstructure:"trading_calendar"`
	GrowthType          string  `mapstructure:"growth_type"`
	WeeklyOrders        int     `mapstructure:"weekly_orders"`
	YearlyOrders        int     `mapstructure:"yearly_orders"`
	AutoChangepoints    bool    `mapstructure:"auto_changepoints"`
	AutoNumChangepoints int     `mapstructure:"auto_num_changepoints"`
	Regularization      float64 `mapstructure:"regularization"`
	Level               float64 `mapstructure:"level"`
}

// NaiveConfig enables the naive baseline, repeating the last Season values
type NaiveConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TradingCalendar bool `mapstructure:"trading_calendar"`
	Season          int  `mapstructure:"season"`
}

type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	MaxRuns int    `mapstructure:"max_runs"`
}

// MetricsConfig writes the run metrics to a Prometheus textfile when Textfile is set
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional file and environment variables. Nested keys are
// overridden by upper case environment variables joined by underscores, e.g.
// GO_BACKTEST_BACKTEST_SPLIT_RATIO.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config file, %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config, %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input.path", "")
	v.SetDefault("input.name", "")
	v.SetDefault("input.time_column", "date")
	v.SetDefault("input.value_column", "value")
	v.SetDefault("input.time_format", time.DateOnly)

	v.SetDefault("backtest.split_ratio", timedataset.DefaultSplitRatio)
	v.SetDefault("backtest.fit_timeout", "0s")
	v.SetDefault("backtest.parallelization", backtest.DefaultParallelization)

	v.SetDefault("arima.enabled", true)
	v.SetDefault("arima.trading_calendar", true)
	v.SetDefault("arima.search.max_p", arima.DefaultMaxP)
	v.SetDefault("arima.search.max_q", arima.DefaultMaxQ)
	v.SetDefault("arima.search.max_d", arima.DefaultMaxD)
	v.SetDefault("arima.search.period", arima.DefaultPeriod)
	v.SetDefault("arima.search.max_seasonal_d", arima.DefaultMaxSeasonalD)
	v.SetDefault("arima.search.seasonal_threshold", arima.DefaultSeasonalThreshold)
	v.SetDefault("arima.search.criterion", string(arima.AIC))
	v.SetDefault("arima.search.stepwise", true)
	v.SetDefault("arima.search.max_models", arima.DefaultMaxModels)
	v.SetDefault("arima.search.cache_size", arima.DefaultCacheSize)
	v.SetDefault("arima.search.level", arima.DefaultLevel)

	v.SetDefault("additive.enabled", true)
	v.SetDefault("additive.trading_calendar", true)
	v.SetDefault("additive.growth_type", "linear")
	v.SetDefault("additive.weekly_orders", options.DefaultWeeklyOrders)
	v.SetDefault("additive.yearly_orders", options.DefaultYearlyOrders)
	v.SetDefault("additive.auto_changepoints", false)
	v.SetDefault("additive.auto_num_changepoints", options.DefaultAutoNumChangepoints)
	v.SetDefault("additive.regularization", 0.0)
	v.SetDefault("additive.level", options.DefaultLevel)

	v.SetDefault("naive.enabled", true)
	v.SetDefault("naive.trading_calendar", true)
	v.SetDefault("naive.season", 0)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.path", "./data/runs.db")
	v.SetDefault("storage.max_runs", 1000)

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", telemetry.DefaultServiceName)
	v.SetDefault("tracing.endpoint", telemetry.DefaultEndpoint)
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sampling_rate", 1.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Backtest.SplitRatio <= 0 || c.Backtest.SplitRatio >= 1 {
		return fmt.Errorf("backtest.split_ratio must be between 0 and 1, %w", timedataset.ErrInvalidRatio)
	}
	if c.Backtest.FitTimeout < 0 {
		return fmt.Errorf("backtest.fit_timeout, %w", backtest.ErrNegativeTimeout)
	}
	if c.Backtest.Parallelization < 1 {
		return fmt.Errorf("backtest.parallelization must be at least 1")
	}

	if !c.ARIMA.Enabled && !c.Additive.Enabled && !c.Naive.Enabled {
		return ErrNoBackends
	}
	if c.ARIMA.Enabled {
		search := c.ARIMA.Search
		if _, err := search.Validate(); err != nil {
			return fmt.Errorf("arima.search, %w", err)
		}
	}
	if c.Additive.Enabled {
		if _, err := c.Additive.Options().Validate(); err != nil {
			return fmt.Errorf("additive, %w", err)
		}
	}
	if c.Naive.Enabled && (c.Naive.Season < 0 || c.Naive.Season == 1) {
		return fmt.Errorf("naive.season, %w", backend.ErrInvalidSeason)
	}

	if c.Storage.Enabled {
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required when storage is enabled")
		}
		if c.Storage.MaxRuns < 1 {
			return fmt.Errorf("storage.max_runs must be at least 1")
		}
	}

	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing, %w", err)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	return nil
}

// CSVOptions returns the options selecting the input series
func (i InputConfig) CSVOptions() *timedataset.CSVOptions {
	opt := timedataset.NewDefaultCSVOptions()
	if i.TimeColumn != "" {
		opt.TimeColumn = i.TimeColumn
	}
	if i.ValueColumn != "" {
		opt.ValueColumn = i.ValueColumn
	}
	if i.TimeFormat != "" {
		opt.TimeFormat = i.TimeFormat
	}
	opt.Filters = i.Filters
	return opt
}

// SeriesName identifies the series in the run history, defaulting to the input path with its
// filters
func (i InputConfig) SeriesName() string {
	if i.Name != "" {
		return i.Name
	}
	if len(i.Filters) == 0 {
		return i.Path
	}
	keys := make([]string, 0, len(i.Filters))
	for k := range i.Filters {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+i.Filters[k])
	}
	return i.Path + "?" + strings.Join(parts, "&")
}

func (b BacktestConfig) Options() *backtest.Options {
	return &backtest.Options{
		SplitRatio:      b.SplitRatio,
		FitTimeout:      b.FitTimeout,
		Parallelization: b.Parallelization,
	}
}

// Options builds the forecast options with weekly and yearly seasonality at the configured
// orders. Zero orders drop the seasonality.
func (a AdditiveConfig) Options() *options.Options {
	opt := options.NewDefaultOptions()
	opt.GrowthType = a.GrowthType
	opt.ChangepointOptions.Auto = a.AutoChangepoints
	opt.ChangepointOptions.AutoNumChangepoints = a.AutoNumChangepoints
	opt.Regularization = a.Regularization
	opt.Level = a.Level

	var seas []options.SeasonalityConfig
	if a.WeeklyOrders > 0 {
		seas = append(seas, options.NewWeeklySeasonalityConfig(a.WeeklyOrders))
	}
	if a.YearlyOrders > 0 {
		seas = append(seas, options.NewYearlySeasonalityConfig(a.YearlyOrders))
	}
	opt.SeasonalityOptions.SeasonalityConfigs = seas
	return opt
}

// Backends constructs the enabled back-ends in the order arima, additive, naive
func (c *Config) Backends() ([]backend.Backend, error) {
	var backends []backend.Backend
	if c.ARIMA.Enabled {
		search := c.ARIMA.Search
		opt := &backend.ARIMAOptions{Search: &search}
		if c.ARIMA.TradingCalendar {
			opt.Calendar = timedataset.NewTradingCalendar()
		}
		b, err := backend.NewARIMA(opt)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	if c.Additive.Enabled {
		opt := &backend.AdditiveOptions{Forecast: c.Additive.Options()}
		if c.Additive.TradingCalendar {
			opt.Calendar = timedataset.NewTradingCalendar()
		}
		b, err := backend.NewAdditive(opt)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	if c.Naive.Enabled {
		opt := &backend.NaiveOptions{Season: c.Naive.Season}
		if c.Naive.TradingCalendar {
			opt.Calendar = timedataset.NewTradingCalendar()
		}
		b, err := backend.NewNaive(opt)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}
	return backends, nil
}

// NewHandler returns the slog handler for the configured level and format
func (l LoggingConfig) NewHandler(w io.Writer) slog.Handler {
	var level slog.Level
	switch l.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
