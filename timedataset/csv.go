package timedataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingColumn = errors.New("column not found in csv header")
	ErrInvalidRecord = errors.New("invalid csv record")
)

// CSVOptions configures how a series is read from a delimited file. Filters restrict the rows
// to those whose column equals the given value, e.g. {"brand": "acme"}.
type CSVOptions struct {
	TimeColumn  string            `json:"time_column"`
	ValueColumn string            `json:"value_column"`
	TimeFormat  string            `json:"time_format"`
	Filters     map[string]string `json:"filters"`
	Delimiter   rune              `json:"delimiter"`
}

// NewDefaultCSVOptions returns options reading a "date" and "value" column with ISO dates
func NewDefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		TimeColumn:  "date",
		ValueColumn: "value",
		TimeFormat:  time.DateOnly,
		Delimiter:   ',',
	}
}

func (c *CSVOptions) validate() *CSVOptions {
	def := NewDefaultCSVOptions()
	if c == nil {
		return def
	}
	out := *c
	if out.TimeColumn == "" {
		out.TimeColumn = def.TimeColumn
	}
	if out.ValueColumn == "" {
		out.ValueColumn = def.ValueColumn
	}
	if out.TimeFormat == "" {
		out.TimeFormat = def.TimeFormat
	}
	if out.Delimiter == 0 {
		out.Delimiter = def.Delimiter
	}
	return &out
}

// LoadCSVFile opens the file at path and loads it with LoadCSV
func LoadCSVFile(path string, opt *CSVOptions) (*TimeDataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s, %w", path, err)
	}
	defer f.Close()

	return LoadCSV(f, opt)
}

// LoadCSV reads a header-led csv into a dataset sorted by time. Rows not matching every filter
// are ignored. No cleaning is performed: an unparsable time or value fails the load, as do
// repeated time points within the selected rows.
func LoadCSV(r io.Reader, opt *CSVOptions) (*TimeDataset, error) {
	opt = opt.validate()

	reader := csv.NewReader(r)
	reader.Comma = opt.Delimiter
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to read csv header, %w", err)
	}
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.TrimSpace(h)] = i
	}

	tIdx, exists := colIdx[opt.TimeColumn]
	if !exists {
		return nil, fmt.Errorf("%q, %w", opt.TimeColumn, ErrMissingColumn)
	}
	yIdx, exists := colIdx[opt.ValueColumn]
	if !exists {
		return nil, fmt.Errorf("%q, %w", opt.ValueColumn, ErrMissingColumn)
	}
	filterIdx := make(map[int]string, len(opt.Filters))
	for col, val := range opt.Filters {
		idx, exists := colIdx[col]
		if !exists {
			return nil, fmt.Errorf("filter %q, %w", col, ErrMissingColumn)
		}
		filterIdx[idx] = val
	}

	type point struct {
		t time.Time
		y float64
	}
	var points []point

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("unable to read line %d, %w", line, err)
		}

		if !matchesFilters(record, filterIdx) {
			continue
		}

		tPnt, err := time.Parse(opt.TimeFormat, strings.TrimSpace(record[tIdx]))
		if err != nil {
			return nil, fmt.Errorf("line %d time %q, %w", line, record[tIdx], ErrInvalidRecord)
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(record[yIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d value %q, %w", line, record[yIdx], ErrInvalidRecord)
		}
		points = append(points, point{tPnt, val})
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("no rows matched filters %v, %w", opt.Filters, ErrInsufficientData)
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].t.Before(points[j].t)
	})

	t := make([]time.Time, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		t[i] = p.t
		y[i] = p.y
	}
	return NewUnivariateDataset(t, y)
}

func matchesFilters(record []string, filterIdx map[int]string) bool {
	for idx, val := range filterIdx {
		if idx >= len(record) || strings.TrimSpace(record[idx]) != val {
			return false
		}
	}
	return true
}
