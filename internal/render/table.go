package render

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"github.com/mauv0809/dcf/internal/analyst"
)

type TableRenderer struct {
	Color bool
}

var forecastHeader = table.Row{"Year", "EBIT", "D&A", "dWC", "CapEx", "FCF", "PV"}

func rightAligned(n int) []table.ColumnConfig {
	cfgs := make([]table.ColumnConfig, 0, n)
	for i := 2; i <= n; i++ {
		cfgs = append(cfgs, table.ColumnConfig{Number: i, Align: text.AlignRight, AlignHeader: text.AlignRight})
	}
	return cfgs
}

func forecastTable(v analyst.Valuation) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(forecastHeader)
	for _, y := range v.Result.Forecast {
		tw.AppendRow(table.Row{y.Year, money(y.EBIT), money(y.NonCashCharges), money(y.WorkingCapitalChange),
			money(y.CapitalExpenditure), money(y.FreeCashFlow), money(y.PresentValue)})
	}
	tw.SetColumnConfigs(rightAligned(len(forecastHeader)))
	return tw
}

func summaryTable(v analyst.Valuation) table.Writer {
	tw := table.NewWriter()
	for _, kv := range summary(v) {
		tw.AppendRow(table.Row{kv[0], kv[1]})
	}
	tw.SetColumnConfigs(rightAligned(2))
	return tw
}

var historyHeader = table.Row{"Date", "EV", "Equity", "Share price", "Close", "Upside"}

func historyTable(h analyst.HistoryReport, color bool) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(historyHeader)
	for _, p := range h.Points {
		r := p.Result
		tw.AppendRow(table.Row{r.Date, money(r.EnterpriseValue), money(r.EquityValue), money(r.SharePrice),
			optMoney(p.ClosePrice), colorUpside(p.Upside, color)})
	}
	tw.SetColumnConfigs(rightAligned(len(historyHeader)))
	return tw
}

func skippedTable(h analyst.HistoryReport) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Offset", "Date", "Kind", "Error"})
	for _, s := range h.Skipped {
		tw.AppendRow(table.Row{s.Offset, s.Date, s.Kind, s.Error})
	}
	return tw
}

var batchHeader = table.Row{"Ticker", "Date", "Share price", "Market", "Upside", "Error"}

func batchTable(items []analyst.BatchItem, color bool) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(batchHeader)
	for _, it := range items {
		if it.Valuation == nil {
			tw.AppendRow(table.Row{it.Ticker, "", "", "", "", it.Error})
			continue
		}
		v := it.Valuation
		market := "-"
		if v.Quote != nil {
			market = money(v.Quote.Price)
		}
		tw.AppendRow(table.Row{it.Ticker, v.Result.Date, money(v.Result.SharePrice), market, colorUpside(v.Upside, color), ""})
	}
	tw.SetColumnConfigs(rightAligned(len(batchHeader) - 1))
	return tw
}

func colorUpside(u *decimal.Decimal, color bool) string {
	s := optPercent(u)
	if !color || u == nil {
		return s
	}
	switch {
	case u.IsPositive():
		return text.Colors{text.FgGreen}.Sprint(s)
	case u.IsNegative():
		return text.Colors{text.FgRed}.Sprint(s)
	}
	return s
}

func (r *TableRenderer) style(tw table.Writer) {
	if r.Color {
		tw.SetStyle(table.StyleColoredDark)
	} else {
		tw.SetStyle(table.StyleLight)
	}
	tw.Style().Options.DrawBorder = false
}

func (r *TableRenderer) Valuation(w io.Writer, v analyst.Valuation) error {
	heading := title(v)
	if r.Color {
		heading = text.Bold.Sprint(heading)
	}
	fmt.Fprintln(w, heading)
	fmt.Fprintln(w, paramsLine(v))
	fmt.Fprintln(w)

	ft := forecastTable(v)
	r.style(ft)
	fmt.Fprintln(w, ft.Render())
	fmt.Fprintln(w)

	st := summaryTable(v)
	r.style(st)
	_, err := fmt.Fprintln(w, st.Render())
	return err
}

func (r *TableRenderer) History(w io.Writer, h analyst.HistoryReport) error {
	heading := fmt.Sprintf("%s DCF history, %d years (%s)", h.Ticker, h.Years, h.Period)
	if r.Color {
		heading = text.Bold.Sprint(heading)
	}
	fmt.Fprintln(w, heading)

	ht := historyTable(h, r.Color)
	r.style(ht)
	_, err := fmt.Fprintln(w, ht.Render())
	if len(h.Skipped) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Skipped periods")
		st := skippedTable(h)
		r.style(st)
		_, err = fmt.Fprintln(w, st.Render())
	}
	return err
}

func (r *TableRenderer) Batch(w io.Writer, items []analyst.BatchItem) error {
	bt := batchTable(items, r.Color)
	r.style(bt)
	_, err := fmt.Fprintln(w, bt.Render())
	return err
}
