// Package compare lines up the forecasts of several models against the same held out series and
// tabulates their accuracy side by side. Entries keep the caller's order and no model is ranked.
package compare

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/go-backtest/backend"
	"github.com/aouyang1/go-backtest/forecast/util"
	"github.com/aouyang1/go-backtest/score"
	"github.com/aouyang1/go-backtest/timedataset"
)

var (
	ErrAlignment   = errors.New("forecast length differs from the actual series")
	ErrNoActual    = errors.New("no actual observations to compare against")
	ErrInvalidName = errors.New("model names must be unique and non-empty")
)

// Candidate is the forecast of a single model. A non-nil Err records that the model could not
// produce a forecast, which is carried onto its entry.
type Candidate struct {
	Name     string
	Forecast *backend.Forecast
	Err      error
}

// Entry is a row of the comparison table
type Entry struct {
	Name     string            `json:"name"`
	Forecast *backend.Forecast `json:"forecast,omitempty"`
	Scores   score.Scores      `json:"scores"`
	Err      error             `json:"-"`
}

// Table holds the actual series and one entry per model in the order supplied
type Table struct {
	T       []time.Time `json:"t"`
	Actual  []float64   `json:"actual"`
	Entries []Entry     `json:"entries"`
}

// Compare evaluates each candidate against the actual series. Misaligned forecasts and
// evaluation failures are recorded on the entry of that model. Only a missing actual series or
// an invalid model name fails the whole comparison.
func Compare(actual *timedataset.TimeDataset, candidates []Candidate) (*Table, error) {
	if actual.Len() == 0 {
		return nil, ErrNoActual
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if c.Name == "" {
			return nil, fmt.Errorf("empty model name, %w", ErrInvalidName)
		}
		if _, exists := seen[c.Name]; exists {
			return nil, fmt.Errorf("%q listed twice, %w", c.Name, ErrInvalidName)
		}
		seen[c.Name] = struct{}{}
	}

	ref := actual.Copy()
	tbl := &Table{
		T:       ref.T,
		Actual:  ref.Y,
		Entries: make([]Entry, 0, len(candidates)),
	}
	for _, c := range candidates {
		tbl.Entries = append(tbl.Entries, evaluate(actual, c))
	}
	return tbl, nil
}

func evaluate(actual *timedataset.TimeDataset, c Candidate) Entry {
	entry := Entry{
		Name:     c.Name,
		Forecast: c.Forecast,
	}
	if c.Err != nil {
		entry.Err = c.Err
		return entry
	}
	if c.Forecast.Len() != actual.Len() {
		entry.Err = fmt.Errorf("%s has %d steps for %d actual points, %w", c.Name, c.Forecast.Len(), actual.Len(), ErrAlignment)
		return entry
	}

	scores, err := score.Evaluate(actual.Y, c.Forecast.Point)
	if err != nil {
		entry.Err = fmt.Errorf("unable to evaluate %s, %w", c.Name, err)
		return entry
	}
	entry.Scores = scores
	return entry
}

// Err joins the errors of every failed entry, nil when all models were evaluated
func (t *Table) Err() error {
	if t == nil {
		return nil
	}
	var errs []error
	for _, e := range t.Entries {
		if e.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, e.Err))
		}
	}
	return errors.Join(errs...)
}

// Names returns the model names in table order
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		names = append(names, e.Name)
	}
	return names
}

// Lookup returns the entry of a model
func (t *Table) Lookup(name string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// TablePrint writes the metrics of every model followed by the actual and forecast values at
// each test timestamp.
func (t *Table) TablePrint(w io.Writer, prefix, indent string) error {
	if t == nil {
		return nil
	}
	if err := t.tablePrintScores(w, prefix, indent); err != nil {
		return err
	}
	return t.tablePrintSeries(w, prefix, indent)
}

func (t *Table) tablePrintScores(w io.Writer, prefix, indent string) error {
	if _, err := fmt.Fprintf(w, "%s%sScores:\n", prefix, util.IndentExpand(indent, 0)); err != nil {
		return err
	}
	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintf(tbl, "%s%sModel\tMAE\tMSE\tRMSE\tMAPE\tAccuracy\t\n", prefix, util.IndentExpand(indent, 1)); err != nil {
		return err
	}
	for _, e := range t.Entries {
		if e.Err != nil {
			if _, err := fmt.Fprintf(tbl, "%s%s%s\t-\t-\t-\t-\t-\t\n", prefix, util.IndentExpand(indent, 1), e.Name); err != nil {
				return err
			}
			continue
		}
		s := e.Scores
		if _, err := fmt.Fprintf(tbl, "%s%s%s\t%.3f\t%.3f\t%.3f\t%.3f%%\t%.3f%%\t\n",
			prefix, util.IndentExpand(indent, 1),
			e.Name, s.MAE, s.MSE, s.RMSE, s.MAPE, s.Accuracy); err != nil {
			return err
		}
	}
	if err := tbl.Flush(); err != nil {
		return err
	}

	for _, e := range t.Entries {
		if e.Err == nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s%s%s: %s\n", prefix, util.IndentExpand(indent, 1), e.Name, e.Err.Error()); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) tablePrintSeries(w io.Writer, prefix, indent string) error {
	if _, err := fmt.Fprintf(w, "%s%sForecasts:\n", prefix, util.IndentExpand(indent, 0)); err != nil {
		return err
	}

	aligned := make([]Entry, 0, len(t.Entries))
	for _, e := range t.Entries {
		if e.Err == nil {
			aligned = append(aligned, e)
		}
	}

	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	header := []string{"Time", "Actual"}
	for _, e := range aligned {
		header = append(header, e.Name)
		if e.Forecast.Intervals {
			header = append(header, e.Name+" lower", e.Name+" upper")
		}
	}
	if _, err := fmt.Fprintf(tbl, "%s%s%s\t\n", prefix, util.IndentExpand(indent, 1), strings.Join(header, "\t")); err != nil {
		return err
	}

	for i, a := range t.Actual {
		row := []string{t.T[i].Format(time.RFC3339), fmt.Sprintf("%.3f", a)}
		for _, e := range aligned {
			row = append(row, fmt.Sprintf("%.3f", e.Forecast.Point[i]))
			if e.Forecast.Intervals {
				row = append(row,
					fmt.Sprintf("%.3f", e.Forecast.Lower[i]),
					fmt.Sprintf("%.3f", e.Forecast.Upper[i]),
				)
			}
		}
		if _, err := fmt.Fprintf(tbl, "%s%s%s\t\n", prefix, util.IndentExpand(indent, 1), strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tbl.Flush()
}
