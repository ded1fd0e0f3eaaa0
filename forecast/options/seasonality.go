package options

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/go-backtest/feature"
	"github.com/aouyang1/go-backtest/forecast/util"
)

const (
	LabelSeasWeekly = "weekly"
	LabelSeasYearly = "yearly"

	DefaultWeeklyOrders = 2
	DefaultYearlyOrders = 10

	// MinSeasonalCycles is the number of full periods a training window must span for a
	// seasonality to be fit
	MinSeasonalCycles = 2

	// YearDuration is the mean calendar year
	YearDuration = time.Duration(365.25 * 24 * float64(time.Hour))
)

// SeasonalityOptions configures the number of seasonality components to fit for.
type SeasonalityOptions struct {
	SeasonalityConfigs []SeasonalityConfig `json:"seasonality_configs" mapstructure:"seasonality_configs"`
}

func (s SeasonalityOptions) TablePrint(w io.Writer, prefix, indent string, indentGrowth int) error {
	noCfg := " None"
	if len(s.SeasonalityConfigs) > 0 {
		noCfg = ""
	}
	if _, err := fmt.Fprintf(w, "%s%sSeasonality:%s\n", prefix, util.IndentExpand(indent, indentGrowth), noCfg); err != nil {
		return err
	}
	if len(s.SeasonalityConfigs) == 0 {
		return nil
	}

	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintf(tbl, "%s%sName\tPeriod\tOrders\t\n", prefix, util.IndentExpand(indent, indentGrowth+1)); err != nil {
		return err
	}
	for _, seasCfg := range s.SeasonalityConfigs {
		if _, err := fmt.Fprintf(tbl, "%s%s%s\t%s\t%d\t\n",
			prefix, util.IndentExpand(indent, indentGrowth+1),
			seasCfg.Name, seasCfg.Period, seasCfg.Orders); err != nil {
			return err
		}
	}
	return tbl.Flush()
}

// NewDefaultSeasonalityOptions generates a default seasonality config with weekly and yearly
// seasonal components. Two weekly orders is the most five trading days a week can identify.
func NewDefaultSeasonalityOptions() SeasonalityOptions {
	return SeasonalityOptions{
		SeasonalityConfigs: []SeasonalityConfig{
			NewWeeklySeasonalityConfig(DefaultWeeklyOrders),
			NewYearlySeasonalityConfig(DefaultYearlyOrders),
		},
	}
}

// removeDuplicates drops invalid configs and keeps the config with the most orders for each
// period
func (s *SeasonalityOptions) removeDuplicates() {
	optSeasConfigs := make([]SeasonalityConfig, len(s.SeasonalityConfigs))
	copy(optSeasConfigs, s.SeasonalityConfigs)
	sort.SliceStable(optSeasConfigs, func(i, j int) bool {
		if optSeasConfigs[i].Period != optSeasConfigs[j].Period {
			return optSeasConfigs[i].Period < optSeasConfigs[j].Period
		}
		if optSeasConfigs[i].Orders != optSeasConfigs[j].Orders {
			return optSeasConfigs[i].Orders > optSeasConfigs[j].Orders
		}
		return optSeasConfigs[i].Name < optSeasConfigs[j].Name
	})

	validated := make([]SeasonalityConfig, 0, len(optSeasConfigs))
	var lastValidPeriod time.Duration
	for _, seasCfg := range optSeasConfigs {
		if seasCfg.Period > 0 && seasCfg.Period > lastValidPeriod && seasCfg.Name != "" && seasCfg.Orders > 0 {
			validated = append(validated, seasCfg)
			lastValidPeriod = seasCfg.Period
		}
	}
	s.SeasonalityConfigs = validated
}

// GenerateFeatures produces the sine and cosine terms of every configured order. Configs that do
// not complete two full cycles within the training window are skipped.
func (s SeasonalityOptions) GenerateFeatures(epoch []float64, trainStartTime, trainEndTime time.Time) (*feature.Set, error) {
	window := trainEndTime.Sub(trainStartTime)

	s.removeDuplicates()
	x := feature.NewSet()
	for _, seasCfg := range s.SeasonalityConfigs {
		if seasCfg.Period*MinSeasonalCycles > window {
			slog.Debug("skipping seasonality with too few cycles in training window",
				"name", seasCfg.Name, "period", seasCfg.Period.String(), "window", window.String())
			continue
		}
		period := seasCfg.Period.Seconds()
		for order := 1; order <= seasCfg.Orders; order++ {
			for _, comp := range []feature.FourierComp{feature.FourierCompSin, feature.FourierCompCos} {
				feat := feature.NewSeasonality(seasCfg.Name, comp, order)
				if err := x.Set(feat, feat.Generate(epoch, period)); err != nil {
					return nil, fmt.Errorf("unable to generate seasonality features for %q, %w", seasCfg.Name, err)
				}
			}
		}
	}
	return x, nil
}

// SeasonalityConfig represents a single seasonality configuration to model. This will generate
// Fourier series of the specified period and number of orders. E.g. a period of 7*24*time.Hour
// with 2 orders will create 4 Fourier series of order 1 and 2 for the sine/cosine components
// where order 1 will have a period of 1 week and order 2 a period of 3.5 days.
type SeasonalityConfig struct {
	Name   string        `json:"name" mapstructure:"name"`
	Orders int           `json:"orders" mapstructure:"orders"`
	Period time.Duration `json:"period" mapstructure:"period"`
}

// NewSeasonalityConfig creates a new seasonality config given a name, period and orders
func NewSeasonalityConfig(name string, period time.Duration, orders int) SeasonalityConfig {
	if orders < 0 {
		orders = 0
	}

	return SeasonalityConfig{
		Name:   name,
		Orders: orders,
		Period: period,
	}
}

// NewWeeklySeasonalityConfig creates a weekly seasonality config given a specified number of orders
func NewWeeklySeasonalityConfig(orders int) SeasonalityConfig {
	return NewSeasonalityConfig(LabelSeasWeekly, 7*24*time.Hour, orders)
}

// NewYearlySeasonalityConfig creates a yearly seasonality config given a specified number of orders
func NewYearlySeasonalityConfig(orders int) SeasonalityConfig {
	return NewSeasonalityConfig(LabelSeasYearly, YearDuration, orders)
}
