package analyst

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mauv0809/dcf/internal/valuation"
)

// StaticResolver answers from a fixed table keyed by "TICKER/date/field".
// A "*" date matches every period of the ticker.
type StaticResolver map[string]decimal.Decimal

// ParseOverrides builds a StaticResolver from string values, as read from config.
func ParseOverrides(raw map[string]string) (StaticResolver, error) {
	out := make(StaticResolver, len(raw))
	for k, v := range raw {
		parts := strings.Split(k, "/")
		if len(parts) != 3 {
			return nil, fmt.Errorf("override key %q: want TICKER/date/field", k)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", k, err)
		}
		out[overrideKey(parts[0], parts[1], parts[2])] = d
	}
	return out, nil
}

func overrideKey(ticker, date, field string) string {
	return strings.ToUpper(strings.TrimSpace(ticker)) + "/" + strings.TrimSpace(date) + "/" + strings.ToLower(strings.TrimSpace(field))
}

func (r StaticResolver) Resolve(_ context.Context, req valuation.FieldRequest) (decimal.Decimal, bool, error) {
	if v, ok := r[overrideKey(req.Ticker, req.Date, string(req.Field))]; ok {
		return v, true, nil
	}
	if v, ok := r[overrideKey(req.Ticker, "*", string(req.Field))]; ok {
		return v, true, nil
	}
	return decimal.Zero, false, nil
}

// ChainResolver asks each resolver in turn; the first to answer wins.
type ChainResolver []valuation.MissingFieldResolver

func (c ChainResolver) Resolve(ctx context.Context, req valuation.FieldRequest) (decimal.Decimal, bool, error) {
	for _, r := range c {
		if r == nil {
			continue
		}
		v, ok, err := r.Resolve(ctx, req)
		if err != nil || ok {
			return v, ok, err
		}
	}
	return decimal.Zero, false, nil
}
