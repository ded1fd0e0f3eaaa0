package forecast

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aouyang1/go-backtest/score"
)

// Scores tracks the in-sample fit scores
type Scores struct {
	MSE  float64 `json:"mean_squared_error"`
	MAPE float64 `json:"mean_average_percent_error"`
	R2   float64 `json:"r_squared"`
}

// NewScores calculates the fit scores given the actual and predicted values. A training series
// containing zeros has no percentage error, in which case MAPE is left at 0.
func NewScores(actual, predicted []float64) (*Scores, error) {
	mse, err := score.MSE(actual, predicted)
	if err != nil {
		return nil, fmt.Errorf("unable to compute mean squared error, %w", err)
	}
	rs, err := score.RSquared(actual, predicted)
	if err != nil {
		return nil, fmt.Errorf("unable to compute r-squared, %w", err)
	}
	mape, err := score.MAPE(actual, predicted)
	if err != nil {
		if !errors.Is(err, score.ErrDivisionByZero) {
			return nil, fmt.Errorf("unable to compute mean average percent error, %w", err)
		}
		slog.Debug("skipping in-sample mape", "error", err.Error())
		mape = 0
	}

	return &Scores{
		MSE:  mse,
		MAPE: mape,
		R2:   rs,
	}, nil
}
