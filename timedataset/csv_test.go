package timedataset

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSV = `date,brand,industry,value
2024-01-03,acme,retail,12.5
2024-01-02,acme,retail,11.0
2024-01-02,globex,retail,40.0
2024-01-04,acme,retail,13.25
2024-01-03,globex,energy,41.0
`

func TestLoadCSV(t *testing.T) {
	testData := map[string]struct {
		input    string
		opt      *CSVOptions
		expected *TimeDataset
		err      error
	}{
		"filter brand and sort": {
			input: testCSV,
			opt: &CSVOptions{
				Filters: map[string]string{"brand": "acme"},
			},
			expected: &TimeDataset{
				T: []time.Time{
					time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
					time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
					time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
				},
				Y: []float64{11.0, 12.5, 13.25},
			},
		},
		"filter multiple columns": {
			input: testCSV,
			opt: &CSVOptions{
				Filters: map[string]string{"brand": "globex", "industry": "retail"},
			},
			expected: &TimeDataset{
				T: []time.Time{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
				Y: []float64{40.0},
			},
		},
		"empty subset": {
			input: testCSV,
			opt: &CSVOptions{
				Filters: map[string]string{"brand": "initech"},
			},
			err: ErrInsufficientData,
		},
		"duplicate dates without filter": {
			input: testCSV,
			err:   ErrNonMontonic,
		},
		"missing filter column": {
			input: testCSV,
			opt: &CSVOptions{
				Filters: map[string]string{"region": "us"},
			},
			err: ErrMissingColumn,
		},
		"missing value column": {
			input: testCSV,
			opt:   &CSVOptions{ValueColumn: "sales"},
			err:   ErrMissingColumn,
		},
		"unparsable value": {
			input: "date,value\n2024-01-02,abc\n",
			err:   ErrInvalidRecord,
		},
		"unparsable date": {
			input: "date,value\n01/02/2024,1\n",
			err:   ErrInvalidRecord,
		},
		"custom columns and delimiter": {
			input: "ds;y\n2024-01-02T10:00:00Z;1\n2024-01-02T11:00:00Z;2\n",
			opt: &CSVOptions{
				TimeColumn:  "ds",
				ValueColumn: "y",
				TimeFormat:  time.RFC3339,
				Delimiter:   ';',
			},
			expected: &TimeDataset{
				T: []time.Time{
					time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC),
					time.Date(2024, 1, 2, 11, 0, 0, 0, time.UTC),
				},
				Y: []float64{1, 2},
			},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res, err := LoadCSV(strings.NewReader(td.input), td.opt)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, len(td.expected.T), res.Len())
			for i := range td.expected.T {
				assert.True(t, td.expected.T[i].Equal(res.T[i]), "time at %d", i)
			}
			assert.Equal(t, td.expected.Y, res.Y)
		})
	}
}
