package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mauv0809/dcf/internal/analyst"
)

// Renderer writes valuation results to an output writer.
type Renderer interface {
	Valuation(w io.Writer, v analyst.Valuation) error
	History(w io.Writer, h analyst.HistoryReport) error
	Batch(w io.Writer, items []analyst.BatchItem) error
}

type Options struct {
	Color      bool
	PrettyJSON bool
}

// Formats lists the accepted --format values.
var Formats = []string{"table", "json", "markdown", "html"}

// New returns the renderer for format.
func New(format string, opts Options) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "table":
		return &TableRenderer{Color: opts.Color}, nil
	case "json":
		return &JSONRenderer{Pretty: opts.PrettyJSON}, nil
	case "markdown", "md":
		return &MarkdownRenderer{}, nil
	case "html":
		return &HTMLRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(Formats, ", "))
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func optMoney(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return money(*d)
}

func percent(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}

func optPercent(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return percent(*d)
}

// summary is the label/value block shown under every single valuation.
func summary(v analyst.Valuation) [][2]string {
	r := v.Result
	rows := [][2]string{
		{"Tax rate", percent(r.TaxRate)},
		{"PV of forecast flows", money(r.PresentValueOfFlows)},
		{"Terminal value", money(r.TerminalValue)},
		{"PV of terminal value", money(r.PresentValueOfTerminal)},
		{"Enterprise value", money(r.EnterpriseValue)},
		{"Equity value", money(r.EquityValue)},
		{"Share price", money(r.SharePrice)},
	}
	if v.Quote != nil {
		rows = append(rows, [2]string{"Market price", money(v.Quote.Price)})
	}
	if v.Upside != nil {
		rows = append(rows, [2]string{"Upside", percent(*v.Upside)})
	}
	return rows
}

func title(v analyst.Valuation) string {
	return fmt.Sprintf("%s DCF as of %s (%s)", v.Ticker, v.Result.Date, v.Period)
}

func paramsLine(v analyst.Valuation) string {
	p := v.Params
	return fmt.Sprintf("discount %s, earnings growth %s, capex growth %s, perpetual growth %s, %d forecast years",
		percent(p.DiscountRate), percent(p.EarningsGrowthRate), percent(p.CapExGrowthRate), percent(p.PerpetualGrowthRate), p.ForecastYears)
}
