package timedataset

import (
	"errors"
	"fmt"
	"math"
)

// DefaultSplitRatio is the fraction of observations placed in the training segment
const DefaultSplitRatio = 0.8

var ErrInvalidRatio = errors.New("split ratio must be in the open interval (0, 1)")

// SplitResult holds the chronologically ordered training and test segments of a series.
// Train precedes Test and together they cover the original series exactly.
type SplitResult struct {
	Train *TimeDataset `json:"train"`
	Test  *TimeDataset `json:"test"`
}

// Split partitions the dataset positionally into a leading training segment of
// floor(ratio*n) points and a trailing test segment with the remainder. Both segments
// must be non-empty.
func (td *TimeDataset) Split(ratio float64) (*SplitResult, error) {
	if math.IsNaN(ratio) || ratio <= 0 || ratio >= 1 {
		return nil, fmt.Errorf("got ratio %f, %w", ratio, ErrInvalidRatio)
	}
	n := td.Len()
	trainSize := int(math.Floor(ratio * float64(n)))
	if trainSize == 0 || trainSize == n {
		return nil, fmt.Errorf(
			"unable to split %d observations with ratio %.3f into non-empty segments, %w",
			n, ratio, ErrInsufficientData,
		)
	}

	train, err := td.Slice(0, trainSize)
	if err != nil {
		return nil, fmt.Errorf("unable to slice training segment, %w", err)
	}
	test, err := td.Slice(trainSize, n)
	if err != nil {
		return nil, fmt.Errorf("unable to slice test segment, %w", err)
	}
	return &SplitResult{
		Train: train,
		Test:  test,
	}, nil
}
