package views

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/mauv0809/dcf/internal/valuation"
)

func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>%s</title>`+
			`<style>body{font-family:sans-serif;max-width:60rem;margin:2rem auto}table{border-collapse:collapse}`+
			`td,th{padding:.25rem .75rem;border-bottom:1px solid #ddd;text-align:right}</style></head><body>`,
			templ.EscapeString(title)); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

func field(w io.Writer, name, label, value string) error {
	_, err := fmt.Fprintf(w, `<label>%s <input name="%s" value="%s"></label><br>`,
		templ.EscapeString(label), templ.EscapeString(name), templ.EscapeString(value))
	return err
}

// Index is the landing page with a valuation form prefilled with defaults.
func Index(p valuation.Parameters) templ.Component {
	form := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<h1>DCF valuation</h1><form method="get" action="/report">`); err != nil {
			return err
		}
		fields := [][3]string{
			{"ticker", "Ticker", ""},
			{"period", "Period", "annual"},
			{"discount_rate", "Discount rate", p.DiscountRate.String()},
			{"forecast_years", "Forecast years", fmt.Sprint(p.ForecastYears)},
			{"earnings_growth_rate", "Earnings growth", p.EarningsGrowthRate.String()},
			{"capex_growth_rate", "CapEx growth", p.CapExGrowthRate.String()},
			{"perpetual_growth_rate", "Perpetual growth", p.PerpetualGrowthRate.String()},
			{"history_years", "History years (0 for a single valuation)", "0"},
		}
		for _, f := range fields {
			if err := field(w, f[0], f[1], f[2]); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `<button type="submit">Value</button></form>`)
		return err
	})
	return layout("DCF valuation", form)
}

// Report wraps an already rendered HTML fragment.
func Report(title, fragment string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<p><a href="/">New valuation</a></p>`); err != nil {
			return err
		}
		_, err := io.WriteString(w, fragment)
		return err
	})
	return layout(title, body)
}

// Error shows a failed valuation.
func Error(title, message string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<h1>%s</h1><p>%s</p><p><a href="/">Back</a></p>`,
			templ.EscapeString(title), templ.EscapeString(message))
		return err
	})
	return layout(title, body)
}
