package arima

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/aouyang1/go-backtest/stats"
	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrNoModel = errors.New("no candidate order could be fitted")

// Result is the outcome of an automatic order search
type Result struct {
	Model     *Model    `json:"model"`
	Criterion Criterion `json:"criterion"`
	Score     float64   `json:"score"`

	// Evaluated counts candidate orders that were fitted, Rejected those that failed to fit or
	// were not stationary or invertible.
	Evaluated int `json:"evaluated"`
	Rejected  int `json:"rejected"`

	// Candidates lists the most recently tried orders still held in the search cache, oldest
	// first.
	Candidates []Candidate `json:"candidates"`
}

// Candidate is a tried order with its criterion value or the reason it was rejected
type Candidate struct {
	Order Order   `json:"order"`
	Score float64 `json:"score"`
	Err   string  `json:"error,omitempty"`
}

// searcher holds the state of a single order search
type searcher struct {
	opt   *Options
	y     []float64
	d     int
	sd    int
	cache *lru.Cache[Order, Candidate]

	best      *Model
	bestScore float64
	evaluated int
	rejected  int
}

// Auto selects the differencing orders with unit root and seasonal autocorrelation tests, then
// searches p and q for the model minimising the configured information criterion. The context is
// checked before every candidate fit.
func Auto(ctx context.Context, y []float64, opt *Options) (*Result, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}

	period := opt.Period
	if period >= 2 && len(y) < 2*period {
		return nil, fmt.Errorf("%d points for seasonal period %d needs at least %d, %w", len(y), period, 2*period, ErrTooShort)
	}

	d := stats.NDiffs(y, opt.MaxD)
	sd := 0
	if period >= 2 && opt.MaxSeasonalD > 0 {
		w := y
		for range d {
			w = stats.Diff(w, 1)
		}
		sd = stats.NSDiffs(w, period, opt.SeasonalThreshold)
	}
	slog.Debug("selected differencing", "d", d, "seasonal_d", sd, "period", period)

	cache, err := lru.New[Order, Candidate](opt.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("unable to create candidate cache, %w", err)
	}

	s := &searcher{
		opt:       opt,
		y:         y,
		d:         d,
		sd:        sd,
		cache:     cache,
		bestScore: math.Inf(1),
	}

	if opt.Stepwise {
		err = s.stepwise(ctx)
	} else {
		err = s.grid(ctx)
	}
	if err != nil {
		return nil, err
	}
	if s.best == nil {
		return nil, fmt.Errorf("%d candidates rejected, %w", s.rejected, ErrNoModel)
	}

	return &Result{
		Model:      s.best,
		Criterion:  opt.Criterion,
		Score:      s.bestScore,
		Evaluated:  s.evaluated,
		Rejected:   s.rejected,
		Candidates: s.cache.Values(),
	}, nil
}

func (s *searcher) order(p, q int) Order {
	o := Order{P: p, D: s.d, Q: q, SeasonalD: s.sd}
	if s.sd > 0 {
		o.Period = s.opt.Period
	}
	return o
}

// try fits the candidate unless it has already been seen and reports whether it became the best
func (s *searcher) try(ctx context.Context, p, q int) (bool, error) {
	if p < 0 || q < 0 || p > s.opt.MaxP || q > s.opt.MaxQ {
		return false, nil
	}
	o := s.order(p, q)
	if s.cache.Contains(o) {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("order search stopped after %d candidates, %w", s.evaluated+s.rejected, err)
	}

	m, err := Fit(s.y, o)
	if err != nil {
		s.rejected++
		s.cache.Add(o, Candidate{Order: o, Score: math.Inf(1), Err: err.Error()})
		slog.Debug("rejected candidate", "order", o.String(), "error", err.Error())
		return false, nil
	}
	s.evaluated++

	score := m.Score(s.opt.Criterion)
	s.cache.Add(o, Candidate{Order: o, Score: score})
	slog.Debug("fitted candidate", "order", o.String(), string(s.opt.Criterion), score)
	if score < s.bestScore {
		s.best = m
		s.bestScore = score
		return true, nil
	}
	return false, nil
}

func (s *searcher) budgetLeft() bool {
	return s.evaluated+s.rejected < s.opt.MaxModels
}

// stepwise starts from a small set of orders and moves to the best neighbour until no neighbour
// improves the criterion
func (s *searcher) stepwise(ctx context.Context) error {
	starts := [][2]int{{2, 2}, {0, 0}, {1, 0}, {0, 1}, {1, 1}}
	for _, pq := range starts {
		if _, err := s.try(ctx, pq[0], pq[1]); err != nil {
			return err
		}
	}
	if s.best == nil {
		return nil
	}

	steps := [][2]int{
		{-1, 0}, {1, 0}, {0, -1}, {0, 1},
		{-1, -1}, {1, 1}, {-1, 1}, {1, -1},
	}
	for s.budgetLeft() {
		center := s.best.Order
		improved := false
		for _, st := range steps {
			if !s.budgetLeft() {
				break
			}
			better, err := s.try(ctx, center.P+st[0], center.Q+st[1])
			if err != nil {
				return err
			}
			if better {
				improved = true
				break
			}
		}
		if !improved {
			return nil
		}
	}
	return nil
}

// grid fits every order up to MaxP and MaxQ
func (s *searcher) grid(ctx context.Context) error {
	for p := 0; p <= s.opt.MaxP; p++ {
		for q := 0; q <= s.opt.MaxQ; q++ {
			if _, err := s.try(ctx, p, q); err != nil {
				return err
			}
		}
	}
	return nil
}
