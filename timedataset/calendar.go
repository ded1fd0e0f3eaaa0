package timedataset

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

var ErrInvalidFreq = errors.New("frequency must be positive")

// TradingCalendar decides which days receive an observation for daily series. Weekends and
// the registered holidays are skipped.
type TradingCalendar struct {
	bc *cal.BusinessCalendar
}

// NewTradingCalendar returns a calendar observing the US market holidays in addition to any
// extra holidays provided.
func NewTradingCalendar(extra ...*cal.Holiday) *TradingCalendar {
	bc := cal.NewBusinessCalendar()
	bc.AddHoliday(
		us.NewYear,
		us.MlkDay,
		us.PresidentsDay,
		us.MemorialDay,
		us.Juneteenth,
		us.IndependenceDay,
		us.LaborDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
	)
	bc.AddHoliday(extra...)
	return &TradingCalendar{bc: bc}
}

// IsTradingDay returns true if the provided time lands on a business day
func (c *TradingCalendar) IsTradingDay(t time.Time) bool {
	if c == nil || c.bc == nil {
		return true
	}
	return c.bc.IsWorkday(t)
}

// FutureTimes generates n time points after last spaced by freq. When a calendar is provided
// and the frequency is at least a day, generated points that land on non trading days are
// skipped so a daily trading series continues on the next trading day.
func FutureTimes(last time.Time, freq time.Duration, n int, c *TradingCalendar) ([]time.Time, error) {
	if freq <= 0 {
		return nil, fmt.Errorf("got frequency %s, %w", freq, ErrInvalidFreq)
	}
	if n <= 0 {
		return nil, nil
	}

	skip := c != nil && freq >= 24*time.Hour
	res := make([]time.Time, 0, n)
	curr := last
	for len(res) < n {
		curr = curr.Add(freq)
		if skip && !c.IsTradingDay(curr) {
			continue
		}
		res = append(res, curr)
	}
	return res, nil
}
