package valuation

import (
	"sync"

	"github.com/rs/zerolog"
)

// ForecastEvent is emitted once per projected year.
type ForecastEvent struct {
	Ticker string
	Date   string // anchor statement date
	Year   ForecastYear
}

// Observer receives diagnostics from the engine. Implementations must not block.
type Observer interface {
	ForecastYear(ForecastEvent)
	PeriodSkipped(Skip)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) ForecastYear(ForecastEvent) {}
func (NopObserver) PeriodSkipped(Skip)         {}

// LogObserver writes events as structured log lines.
type LogObserver struct {
	Logger zerolog.Logger
}

func (o LogObserver) ForecastYear(e ForecastEvent) {
	y := e.Year
	o.Logger.Debug().
		Str("ticker", e.Ticker).
		Str("date", e.Date).
		Int("year", y.Year).
		Str("pv", y.PresentValue.StringFixed(2)).
		Str("ebit", y.EBIT.StringFixed(2)).
		Str("d_and_a", y.NonCashCharges.StringFixed(2)).
		Str("cwc", y.WorkingCapitalChange.StringFixed(2)).
		Str("capex", y.CapitalExpenditure.StringFixed(2)).
		Msg("forecast year")
}

func (o LogObserver) PeriodSkipped(s Skip) {
	o.Logger.Warn().
		Int("offset", s.Offset).
		Str("date", s.Date).
		Str("kind", string(s.Kind)).
		Err(s.Err).
		Msg("period unavailable, skipped")
}

// Recorder keeps every event it sees. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []ForecastEvent
	skips  []Skip
}

func (r *Recorder) ForecastYear(e ForecastEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) PeriodSkipped(s Skip) {
	r.mu.Lock()
	r.skips = append(r.skips, s)
	r.mu.Unlock()
}

// Events returns a copy of the recorded forecast events.
func (r *Recorder) Events() []ForecastEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ForecastEvent(nil), r.events...)
}

// Skips returns a copy of the recorded skips.
func (r *Recorder) Skips() []Skip {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Skip(nil), r.skips...)
}

type multiObserver []Observer

func (m multiObserver) ForecastYear(e ForecastEvent) {
	for _, o := range m {
		o.ForecastYear(e)
	}
}

func (m multiObserver) PeriodSkipped(s Skip) {
	for _, o := range m {
		o.PeriodSkipped(s)
	}
}

// Observers fans events out to every non-nil observer.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}
