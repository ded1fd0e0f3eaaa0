// Package feature describes the regressors of the additive model. Every feature has a stable
// string label so coefficients can be matched back to it after serialization.
package feature

import (
	"errors"
	"time"
)

var ErrUnknownFeatureType = errors.New("unknown feature type")

type FeatureType string

const (
	FeatureTypeGrowth      FeatureType = "growth"
	FeatureTypeChangepoint FeatureType = "changepoint"
	FeatureTypeSeasonality FeatureType = "seasonality"
)

type Feature interface {
	String() string
	Get(string) (string, bool)
	Type() FeatureType
	Decode() map[string]string
}

// Epoch converts timestamps into unix seconds, the time axis every feature is generated from
func Epoch(t []time.Time) []float64 {
	epoch := make([]float64, len(t))
	for i, tPnt := range t {
		epoch[i] = epochSeconds(tPnt)
	}
	return epoch
}

func epochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// New returns an empty feature of the given type ready to be unmarshalled into
func New(ft FeatureType) (Feature, error) {
	switch ft {
	case FeatureTypeGrowth:
		return new(Growth), nil
	case FeatureTypeChangepoint:
		return new(Changepoint), nil
	case FeatureTypeSeasonality:
		return new(Seasonality), nil
	}
	return nil, ErrUnknownFeatureType
}
