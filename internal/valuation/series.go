package valuation

import (
	"context"
	"fmt"

	"github.com/mauv0809/dcf/internal/models"
)

// History holds full statement histories for one ticker, most-recent-first.
type History struct {
	Ticker   string
	Income   []models.FinancialStatementRecord
	Balance  []models.FinancialStatementRecord
	Cashflow []models.FinancialStatementRecord
	EV       []models.EnterpriseValueStatement
}

// SeriesOptions selects how far back a historical series reaches.
type SeriesOptions struct {
	Years  int
	Period models.Period
}

// Intervals is the number of statement periods the series covers.
func (o SeriesOptions) Intervals() int {
	return o.Years * o.Period.IntervalsPerYear()
}

// Skip records a period that could not be valued.
type Skip struct {
	Offset int    `json:"offset"`
	Date   string `json:"date,omitempty"`
	Kind   Kind   `json:"kind"`
	Err    error  `json:"-"`
}

// Series is a set of valuations keyed by statement date. Dates preserves the
// order of computation, most recent period first.
type Series struct {
	Ticker  string
	Results map[string]Result
	Dates   []string
	Skips   []Skip
}

// Ordered returns the results in computation order.
func (s Series) Ordered() []Result {
	out := make([]Result, 0, len(s.Dates))
	for _, d := range s.Dates {
		out = append(out, s.Results[d])
	}
	return out
}

// Window returns the inputs for the valuation at offset i: a two-period slice of
// each statement history and the enterprise value statement at i.
func (h History) Window(i int) (Inputs, error) {
	if i >= len(h.EV) {
		return Inputs{}, &InsufficientHistoryError{Statement: StatementEnterpriseValue, Need: i + 1, Have: len(h.EV)}
	}
	return Inputs{
		Ticker:   h.Ticker,
		Income:   window(h.Income, i),
		Balance:  window(h.Balance, i),
		Cashflow: window(h.Cashflow, i),
		EV:       h.EV[i],
	}, nil
}

func window(recs []models.FinancialStatementRecord, i int) []models.FinancialStatementRecord {
	if i >= len(recs) {
		return nil
	}
	end := min(i+2, len(recs))
	return recs[i:end]
}

func (h History) dateAt(i int) string {
	switch {
	case i < len(h.Income):
		return h.Income[i].Date
	case i < len(h.EV):
		return h.EV[i].Date
	}
	return ""
}

// ComputeHistoricalDCF values every period in the requested range. A period
// that cannot be valued is recorded in Skips and reported to obs; it never
// fails the series. ctx is checked between periods; on cancellation the
// partial series is returned together with ctx.Err().
func ComputeHistoricalDCF(ctx context.Context, h History, p Parameters, opts SeriesOptions, obs Observer) (Series, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	if opts.Years < 1 {
		return Series{}, &InvalidParametersError{Reason: fmt.Sprintf("history years must be at least 1, got %d", opts.Years)}
	}
	if err := p.Validate(); err != nil {
		return Series{}, err
	}

	s := Series{Ticker: h.Ticker, Results: make(map[string]Result)}
	for i := 0; i < opts.Intervals(); i++ {
		if err := ctx.Err(); err != nil {
			return s, err
		}

		in, err := h.Window(i)
		var res Result
		if err == nil {
			res, err = ComputeDCF(in, p, obs)
		}
		if err != nil {
			skip := Skip{Offset: i, Date: h.dateAt(i), Kind: KindOf(err), Err: err}
			s.Skips = append(s.Skips, skip)
			obs.PeriodSkipped(skip)
			continue
		}

		if _, seen := s.Results[res.Date]; !seen {
			s.Dates = append(s.Dates, res.Date)
		}
		s.Results[res.Date] = res
	}
	return s, nil
}
