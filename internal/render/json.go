package render

import (
	"encoding/json"
	"io"

	"github.com/mauv0809/dcf/internal/analyst"
)

type JSONRenderer struct {
	Pretty bool
}

func (r *JSONRenderer) encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if r.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func (r *JSONRenderer) Valuation(w io.Writer, v analyst.Valuation) error {
	return r.encode(w, v)
}

func (r *JSONRenderer) History(w io.Writer, h analyst.HistoryReport) error {
	return r.encode(w, h)
}

func (r *JSONRenderer) Batch(w io.Writer, items []analyst.BatchItem) error {
	return r.encode(w, items)
}
