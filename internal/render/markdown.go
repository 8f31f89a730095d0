package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/mauv0809/dcf/internal/analyst"
)

// MarkdownRenderer writes GitHub-flavored Markdown tables.
type MarkdownRenderer struct{}

func ValuationMarkdown(v analyst.Valuation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", title(v))
	fmt.Fprintf(&b, "_%s_\n\n", paramsLine(v))
	b.WriteString(forecastTable(v).RenderMarkdown())
	b.WriteString("\n\n")

	st := summaryTable(v)
	st.AppendHeader(table.Row{"", "Value"})
	b.WriteString(st.RenderMarkdown())
	b.WriteString("\n")
	return b.String()
}

func HistoryMarkdown(h analyst.HistoryReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s DCF history, %d years (%s)\n\n", h.Ticker, h.Years, h.Period)
	b.WriteString(historyTable(h, false).RenderMarkdown())
	b.WriteString("\n")
	if len(h.Skipped) > 0 {
		b.WriteString("\n### Skipped periods\n\n")
		b.WriteString(skippedTable(h).RenderMarkdown())
		b.WriteString("\n")
	}
	return b.String()
}

func BatchMarkdown(items []analyst.BatchItem) string {
	return "## Batch valuation\n\n" + batchTable(items, false).RenderMarkdown() + "\n"
}

func (MarkdownRenderer) Valuation(w io.Writer, v analyst.Valuation) error {
	_, err := io.WriteString(w, ValuationMarkdown(v))
	return err
}

func (MarkdownRenderer) History(w io.Writer, h analyst.HistoryReport) error {
	_, err := io.WriteString(w, HistoryMarkdown(h))
	return err
}

func (MarkdownRenderer) Batch(w io.Writer, items []analyst.BatchItem) error {
	_, err := io.WriteString(w, BatchMarkdown(items))
	return err
}
