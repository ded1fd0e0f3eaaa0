package options

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/go-backtest/feature"
	"github.com/aouyang1/go-backtest/forecast/util"
)

var DefaultAutoNumChangepoints int = 10

// Changepoint describes a point in time that will change the ongoing trend. This will
// include a bias and optionally a growth feature.
type Changepoint struct {
	T    time.Time `json:"time" mapstructure:"time"`
	Name string    `json:"name" mapstructure:"name"`
}

func NewChangepoint(name string, t time.Time) Changepoint {
	return Changepoint{t, name}
}

// ChangepointOptions configures the changepoint fit to either use auto-detection
// by evenly placing N changepoints in the training window or use the listed changepoints.
// Auto-detection generally needs a positive regularization to remove changepoints that cause
// overfitting.
type ChangepointOptions struct {
	Changepoints        []Changepoint `json:"changepoints" mapstructure:"changepoints"`
	EnableGrowth        bool          `json:"enable_growth" mapstructure:"enable_growth"`
	Auto                bool          `json:"auto" mapstructure:"auto"`
	AutoNumChangepoints int           `json:"auto_num_changepoints" mapstructure:"auto_num_changepoints"`
}

// NewDefaultChangepointOptions generates a set of default changepoint options
func NewDefaultChangepointOptions() ChangepointOptions {
	return ChangepointOptions{
		Auto:                false,
		AutoNumChangepoints: DefaultAutoNumChangepoints,
		Changepoints:        nil,
	}
}

func (c ChangepointOptions) TablePrint(w io.Writer, prefix, indent string, indentGrowth int) error {
	noCfg := " None"
	if len(c.Changepoints) > 0 {
		noCfg = ""
	}
	if _, err := fmt.Fprintf(w, "%s%sChangepoints:%s\n", prefix, util.IndentExpand(indent, indentGrowth), noCfg); err != nil {
		return err
	}
	if len(c.Changepoints) == 0 {
		return nil
	}

	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintf(tbl, "%s%sName\tDatetime\t\n", prefix, util.IndentExpand(indent, indentGrowth+1)); err != nil {
		return err
	}
	for _, chpt := range c.Changepoints {
		if _, err := fmt.Fprintf(tbl, "%s%s%s\t%s\t\n",
			prefix, util.IndentExpand(indent, indentGrowth+1),
			chpt.Name, chpt.T.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return tbl.Flush()
}

// GenerateAutoChangepoints places AutoNumChangepoints evenly inside the training window,
// excluding both ends, and replaces the configured changepoints with them.
func (c *ChangepointOptions) GenerateAutoChangepoints(trainStartTime, trainEndTime time.Time) []Changepoint {
	if !c.Auto {
		return nil
	}

	if c.AutoNumChangepoints <= 0 {
		c.AutoNumChangepoints = DefaultAutoNumChangepoints
	}
	n := c.AutoNumChangepoints

	window := trainEndTime.Sub(trainStartTime)
	step := window / time.Duration(n+1)
	if step <= 0 {
		return nil
	}
	chpts := make([]Changepoint, 0, n)
	for i := 1; i <= n; i++ {
		chpts = append(
			chpts,
			NewChangepoint("auto_"+strconv.Itoa(i-1), trainStartTime.Add(step*time.Duration(i))),
		)
	}

	c.Changepoints = chpts
	return chpts
}

// GenerateFeatures produces the bias, and slope if growth is enabled, of every changepoint
// strictly inside the training window. Changepoints at the training start duplicate the
// intercept and those after the training end were never observed.
func (c ChangepointOptions) GenerateFeatures(epoch []float64, trainStartTime, trainEndTime time.Time) (*feature.Set, error) {
	feat := feature.NewSet()
	for i, chpt := range c.Changepoints {
		if !chpt.T.After(trainStartTime) || !chpt.T.Before(trainEndTime) {
			continue
		}
		chpntName := strconv.Itoa(i)
		if chpt.Name != "" {
			chpntName = chpt.Name
		}

		bias := feature.NewChangepoint(chpntName, feature.ChangepointCompBias)
		if err := feat.Set(bias, bias.Generate(epoch, chpt.T, trainEndTime)); err != nil {
			return nil, err
		}

		if c.EnableGrowth {
			slope := feature.NewChangepoint(chpntName, feature.ChangepointCompSlope)
			if err := feat.Set(slope, slope.Generate(epoch, chpt.T, trainEndTime)); err != nil {
				return nil, err
			}
		}
	}
	return feat, nil
}
