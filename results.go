package backtest

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/go-backtest/backend"
	"github.com/aouyang1/go-backtest/compare"
	"github.com/aouyang1/go-backtest/forecast/util"
	"github.com/aouyang1/go-backtest/timedataset"
)

// ModelRun records how a single back-end fared
type ModelRun struct {
	Name         string               `json:"name"`
	Capabilities backend.Capabilities `json:"capabilities"`
	FitDuration  time.Duration        `json:"fit_duration"`
	Model        backend.Model        `json:"-"`
	Err          error                `json:"-"`
}

type Results struct {
	Split *timedataset.SplitResult `json:"split"`
	Table *compare.Table           `json:"table"`
	Runs  []ModelRun               `json:"runs"`
}

// Err joins the failures of every back-end, nil when every back-end was evaluated
func (r *Results) Err() error {
	if r == nil {
		return nil
	}
	return r.Table.Err()
}

func (r *Results) TablePrint(w io.Writer, prefix, indent string) error {
	if r == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "%s%sSplit:\n", prefix, util.IndentExpand(indent, 0)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sTrain: %d points, %s - %s\n",
		prefix, util.IndentExpand(indent, 1), r.Split.Train.Len(),
		r.Split.Train.StartTime().Format(time.RFC3339), r.Split.Train.EndTime().Format(time.RFC3339)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sTest: %d points, %s - %s\n",
		prefix, util.IndentExpand(indent, 1), r.Split.Test.Len(),
		r.Split.Test.StartTime().Format(time.RFC3339), r.Split.Test.EndTime().Format(time.RFC3339)); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "%s%sRuns:\n", prefix, util.IndentExpand(indent, 0)); err != nil {
		return err
	}
	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintf(tbl, "%s%sModel\tIntervals\tFit\tStatus\t\n", prefix, util.IndentExpand(indent, 1)); err != nil {
		return err
	}
	for _, run := range r.Runs {
		status := "ok"
		if run.Err != nil {
			status = "failed"
		}
		if _, err := fmt.Fprintf(tbl, "%s%s%s\t%t\t%s\t%s\t\n",
			prefix, util.IndentExpand(indent, 1),
			run.Name, run.Capabilities.Intervals, run.FitDuration.Round(time.Millisecond), status); err != nil {
			return err
		}
	}
	if err := tbl.Flush(); err != nil {
		return err
	}

	return r.Table.TablePrint(w, prefix, indent)
}
