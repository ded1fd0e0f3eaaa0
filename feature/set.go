package feature

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrRowMismatch = errors.New("feature has a different number of observations than the set")
	ErrEmptySet    = errors.New("feature set is empty")
)

// Set holds the generated data of each feature keyed by the feature label. Features keep the
// order they were first set in, which is the column order of the design matrix.
type Set struct {
	m      int
	set    map[string][]float64
	labels []Feature
}

func NewSet() *Set {
	return &Set{
		set: make(map[string][]float64),
	}
}

// Len returns the number of features
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.labels)
}

// Rows returns the number of observations of every feature
func (s *Set) Rows() int {
	if s == nil {
		return 0
	}
	return s.m
}

// Set stores the data of a feature, replacing it if the feature already exists
func (s *Set) Set(f Feature, data []float64) error {
	if s == nil {
		return ErrEmptySet
	}
	if len(s.labels) > 0 && len(data) != s.m {
		return fmt.Errorf("%s has %d observations, expected %d, %w", f, len(data), s.m, ErrRowMismatch)
	}
	s.m = len(data)

	label := f.String()
	if _, exists := s.set[label]; !exists {
		s.labels = append(s.labels, f)
	}
	s.set[label] = data
	return nil
}

func (s *Set) Get(f Feature) ([]float64, bool) {
	if s == nil {
		return nil, false
	}
	data, exists := s.set[f.String()]
	return data, exists
}

// Update adds every feature of the other set
func (s *Set) Update(other *Set) error {
	if other == nil {
		return nil
	}
	for _, f := range other.labels {
		if err := s.Set(f, other.set[f.String()]); err != nil {
			return err
		}
	}
	return nil
}

// Labels returns the features in column order
func (s *Set) Labels() *Labels {
	if s == nil {
		return NewLabels(nil)
	}
	labels := make([]Feature, len(s.labels))
	copy(labels, s.labels)
	return NewLabels(labels)
}

// FilterType returns a new set with only the features of the given type
func (s *Set) FilterType(ft FeatureType) *Set {
	res := NewSet()
	if s == nil {
		return res
	}
	for _, f := range s.labels {
		if f.Type() != ft {
			continue
		}
		// lengths already match within s
		_ = res.Set(f, s.set[f.String()])
	}
	return res
}

// Matrix returns the design matrix with m rows of observations and one column per feature in
// label order
func (s *Set) Matrix() (*mat.Dense, error) {
	if s.Len() == 0 || s.m == 0 {
		return nil, ErrEmptySet
	}
	n := len(s.labels)
	x := mat.NewDense(s.m, n, nil)
	for j, f := range s.labels {
		x.SetCol(j, s.set[f.String()])
	}
	return x, nil
}
