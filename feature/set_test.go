package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSetSet(t *testing.T) {
	testData := map[string]struct {
		init     *Set
		f        Feature
		data     []float64
		err      error
		expected *Set
	}{
		"initial set": {
			init: NewSet(),
			f:    Intercept(),
			data: []float64{1, 1, 1},
			expected: &Set{
				m: 3,
				set: map[string][]float64{
					"growth_intercept": {1, 1, 1},
				},
				labels: []Feature{Intercept()},
			},
		},
		"replace existing": {
			init: &Set{
				m: 3,
				set: map[string][]float64{
					"growth_linear": {1, 2, 3},
				},
				labels: []Feature{Linear()},
			},
			f:    Linear(),
			data: []float64{4, 5, 6},
			expected: &Set{
				m: 3,
				set: map[string][]float64{
					"growth_linear": {4, 5, 6},
				},
				labels: []Feature{Linear()},
			},
		},
		"append in order": {
			init: &Set{
				m: 2,
				set: map[string][]float64{
					"growth_linear": {1, 2},
				},
				labels: []Feature{Linear()},
			},
			f:    Intercept(),
			data: []float64{1, 1},
			expected: &Set{
				m: 2,
				set: map[string][]float64{
					"growth_linear":    {1, 2},
					"growth_intercept": {1, 1},
				},
				labels: []Feature{Linear(), Intercept()},
			},
		},
		"row mismatch": {
			init: &Set{
				m: 2,
				set: map[string][]float64{
					"growth_linear": {1, 2},
				},
				labels: []Feature{Linear()},
			},
			f:    Intercept(),
			data: []float64{1, 1, 1},
			err:  ErrRowMismatch,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			err := td.init.Set(td.f, td.data)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, td.expected, td.init)
		})
	}
}

func TestSetGetAndUpdate(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Set(Intercept(), []float64{1, 1}))

	other := NewSet()
	require.NoError(t, other.Set(NewSeasonality("weekly", FourierCompSin, 1), []float64{0, 1}))
	require.NoError(t, other.Set(NewChangepoint("c", ChangepointCompBias), []float64{0, 1}))
	require.NoError(t, s.Update(other))

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 2, s.Rows())

	data, exists := s.Get(NewSeasonality("weekly", FourierCompSin, 1))
	assert.True(t, exists)
	assert.Equal(t, []float64{0, 1}, data)

	_, exists = s.Get(Linear())
	assert.False(t, exists)

	labels := s.Labels()
	idx, exists := labels.Index(NewChangepoint("c", ChangepointCompBias))
	assert.True(t, exists)
	assert.Equal(t, 2, idx)

	seas := s.FilterType(FeatureTypeSeasonality)
	assert.Equal(t, 1, seas.Len())

	bad := NewSet()
	require.NoError(t, bad.Set(Linear(), []float64{1, 2, 3}))
	assert.ErrorIs(t, s.Update(bad), ErrRowMismatch)
}

func TestSetMatrix(t *testing.T) {
	s := NewSet()
	_, err := s.Matrix()
	assert.ErrorIs(t, err, ErrEmptySet)

	require.NoError(t, s.Set(Intercept(), []float64{1, 1, 1}))
	require.NoError(t, s.Set(Linear(), []float64{0, 0.5, 1}))

	x, err := s.Matrix()
	require.NoError(t, err)

	expected := mat.NewDense(3, 2, []float64{
		1, 0,
		1, 0.5,
		1, 1,
	})
	assert.True(t, mat.Equal(expected, x))

	var nilSet *Set
	assert.Equal(t, 0, nilSet.Len())
	assert.Equal(t, 0, nilSet.Labels().Len())
}
