package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/aouyang1/go-backtest/arima"
	"github.com/aouyang1/go-backtest/forecast/util"
	"github.com/aouyang1/go-backtest/timedataset"
)

const (
	NameARIMA = "arima"

	// minARIMAPoints leaves room for the (0,d,0) candidate after differencing twice
	minARIMAPoints = 8
)

// ARIMAOptions configures the ARIMA back-end
type ARIMAOptions struct {
	Name   string         `json:"name" mapstructure:"name"`
	Search *arima.Options `json:"search" mapstructure:"search"`

	// Calendar skips non trading days when generating forecast timestamps of daily series
	Calendar *timedataset.TradingCalendar `json:"-" mapstructure:"-"`
}

// NewDefaultARIMAOptions searches with the default ARIMA options on the US trading calendar
func NewDefaultARIMAOptions() *ARIMAOptions {
	return &ARIMAOptions{
		Name:     NameARIMA,
		Search:   arima.NewDefaultOptions(),
		Calendar: timedataset.NewTradingCalendar(),
	}
}

func (a *ARIMAOptions) Validate() (*ARIMAOptions, error) {
	if a == nil {
		return NewDefaultARIMAOptions(), nil
	}
	if a.Name == "" {
		a.Name = NameARIMA
	}
	search, err := a.Search.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid arima search options, %w", err)
	}
	a.Search = search
	return a, nil
}

// ARIMA selects and fits an ARIMA model by information criterion on every training series
type ARIMA struct {
	opt *ARIMAOptions
}

func NewARIMA(opt *ARIMAOptions) (*ARIMA, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &ARIMA{opt: opt}, nil
}

func (a *ARIMA) Name() string {
	return a.opt.Name
}

func (a *ARIMA) Capabilities() Capabilities {
	return Capabilities{Intervals: true}
}

// minPoints is two seasonal cycles for seasonal searches
func (a *ARIMA) minPoints() int {
	need := minARIMAPoints
	if p := a.opt.Search.Period; p >= 2 && 2*p > need {
		need = 2 * p
	}
	return need
}

func (a *ARIMA) Fit(ctx context.Context, train *timedataset.TimeDataset) (Model, error) {
	if err := checkLength(a.Name(), train, a.minPoints()); err != nil {
		return nil, err
	}

	search := *a.opt.Search
	res, err := arima.Auto(ctx, train.Y, &search)
	if err != nil {
		return nil, fitError(a.Name(), err)
	}
	slog.Debug("selected arima model",
		"backend", a.Name(),
		"order", res.Model.Order.String(),
		string(res.Criterion), res.Score,
		"evaluated", res.Evaluated,
		"rejected", res.Rejected,
	)

	return &ARIMAModel{
		result: res,
		level:  search.Level,
		clock:  newFutureClock(train, a.opt.Calendar),
	}, nil
}

// ARIMAModel is the selected ARIMA model of a training series
type ARIMAModel struct {
	result *arima.Result
	level  float64
	clock  futureClock
}

// Result returns the outcome of the order search
func (m *ARIMAModel) Result() *arima.Result {
	return m.result
}

func (m *ARIMAModel) Forecast(horizon int) (*Forecast, error) {
	if err := checkHorizon(horizon); err != nil {
		return nil, err
	}
	point, lower, upper, err := m.result.Model.Forecast(horizon, m.level)
	if err != nil {
		return nil, fmt.Errorf("unable to forecast %s, %w", m.result.Model.Order, err)
	}
	t, err := m.clock.times(horizon)
	if err != nil {
		return nil, err
	}
	return &Forecast{
		T:         t,
		Point:     point,
		Lower:     lower,
		Upper:     upper,
		Intervals: true,
		Level:     m.level,
	}, nil
}

func (m *ARIMAModel) TablePrint(w io.Writer, prefix, indent string) error {
	model := m.result.Model
	if _, err := fmt.Fprintf(w, "%s%s%s:\n", prefix, util.IndentExpand(indent, 0), model.Order); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sAIC: %.3f    AICc: %.3f    BIC: %.3f    Sigma2: %.4f\n",
		prefix, util.IndentExpand(indent, 1),
		model.AIC, model.AICc, model.BIC, model.Sigma2); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sSearch: %d evaluated, %d rejected, %s %.3f\n",
		prefix, util.IndentExpand(indent, 1),
		m.result.Evaluated, m.result.Rejected, m.result.Criterion, m.result.Score); err != nil {
		return err
	}

	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintf(tbl, "%s%sTerm\tValue\t\n", prefix, util.IndentExpand(indent, 2)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(tbl, "%s%sintercept\t%.4f\t\n", prefix, util.IndentExpand(indent, 2), model.Intercept); err != nil {
		return err
	}
	for i, c := range model.AR {
		if _, err := fmt.Fprintf(tbl, "%s%sar%d\t%.4f\t\n", prefix, util.IndentExpand(indent, 2), i+1, c); err != nil {
			return err
		}
	}
	for i, c := range model.MA {
		if _, err := fmt.Fprintf(tbl, "%s%sma%d\t%.4f\t\n", prefix, util.IndentExpand(indent, 2), i+1, c); err != nil {
			return err
		}
	}
	return tbl.Flush()
}
