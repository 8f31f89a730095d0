package render

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/mauv0809/dcf/internal/analyst"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// HTMLRenderer converts the Markdown report to a standalone HTML page.
type HTMLRenderer struct{}

// MarkdownToHTML renders GitHub-flavored Markdown (with tables) to an HTML fragment.
func MarkdownToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return buf.String(), nil
}

func page(w io.Writer, title, src string) error {
	body, err := MarkdownToHTML(src)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n%s</body>\n</html>\n",
		html.EscapeString(title), body)
	return err
}

func (HTMLRenderer) Valuation(w io.Writer, v analyst.Valuation) error {
	return page(w, v.Ticker+" DCF", ValuationMarkdown(v))
}

func (HTMLRenderer) History(w io.Writer, h analyst.HistoryReport) error {
	return page(w, h.Ticker+" DCF history", HistoryMarkdown(h))
}

func (HTMLRenderer) Batch(w io.Writer, items []analyst.BatchItem) error {
	return page(w, "Batch valuation", BatchMarkdown(items))
}
