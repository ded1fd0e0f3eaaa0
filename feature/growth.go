package feature

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	GrowthIntercept = "intercept"
	GrowthLinear    = "linear"
)

type Growth struct {
	Name string `json:"name"`
}

func NewGrowth(name string) *Growth {
	return &Growth{name}
}

func Intercept() *Growth {
	return NewGrowth(GrowthIntercept)
}

func Linear() *Growth {
	return NewGrowth(GrowthLinear)
}

// String returns the string representation of the growth feature
func (g Growth) String() string {
	return fmt.Sprintf("growth_%s", g.Name)
}

// Get returns the value of an arbitrary label and returns the value along with whether
// the label exists
func (g Growth) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return g.Name, true
	}
	return "", false
}

func (g Growth) Type() FeatureType {
	return FeatureTypeGrowth
}

// Decode converts the feature into a map of label values
func (g Growth) Decode() map[string]string {
	res := make(map[string]string)
	res["name"] = g.Name
	return res
}

func (g *Growth) UnmarshalJSON(data []byte) error {
	var labelStr struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &labelStr); err != nil {
		return err
	}
	g.Name = labelStr.Name
	return nil
}

// Generate produces the growth feature over the epoch seconds. The linear feature is 0 at the
// training start and 1 at the training end so coefficients read as change over the window.
// Unknown growth names produce nil.
func (g Growth) Generate(epoch []float64, trainStartTime, trainEndTime time.Time) []float64 {
	switch g.Name {
	case GrowthIntercept:
		res := make([]float64, len(epoch))
		for i := range res {
			res[i] = 1.0
		}
		return res
	case GrowthLinear:
		start := epochSeconds(trainStartTime)
		window := trainEndTime.Sub(trainStartTime).Seconds()
		res := make([]float64, len(epoch))
		if window <= 0 {
			return res
		}
		for i, e := range epoch {
			res[i] = (e - start) / window
		}
		return res
	}
	return nil
}
