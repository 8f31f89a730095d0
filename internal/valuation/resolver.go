package valuation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mauv0809/dcf/internal/models"
)

// FieldRequest identifies one absent value.
type FieldRequest struct {
	Ticker    string
	Statement Statement
	Field     Field
	Date      string
}

func (r FieldRequest) String() string {
	return fmt.Sprintf("%s %s.%s on %s", r.Ticker, r.Statement, r.Field, r.Date)
}

// MissingFieldResolver supplies a value for a field the data source left
// empty. ok == false means the value stays absent. It runs before engine
// inputs are built; the engine itself never asks for input.
type MissingFieldResolver interface {
	Resolve(ctx context.Context, req FieldRequest) (v decimal.Decimal, ok bool, err error)
}

// ResolverFunc adapts a function to MissingFieldResolver.
type ResolverFunc func(ctx context.Context, req FieldRequest) (decimal.Decimal, bool, error)

func (f ResolverFunc) Resolve(ctx context.Context, req FieldRequest) (decimal.Decimal, bool, error) {
	return f(ctx, req)
}

// ResolveMissing returns a copy of recs in which absent fields among the
// first limit records have been offered to r. recs is not modified. A nil
// resolver returns recs unchanged.
func ResolveMissing(ctx context.Context, r MissingFieldResolver, ticker string, st Statement, recs []models.FinancialStatementRecord, limit int) ([]models.FinancialStatementRecord, error) {
	if r == nil || len(recs) == 0 {
		return recs, nil
	}
	out := make([]models.FinancialStatementRecord, len(recs))
	copy(out, recs)

	fields := RequiredFields(st)
	for i := 0; i < len(out) && i < limit; i++ {
		for _, f := range fields {
			slot := f.slot(&out[i])
			if slot == nil || *slot != nil {
				continue
			}
			v, ok, err := r.Resolve(ctx, FieldRequest{Ticker: ticker, Statement: st, Field: f, Date: out[i].Date})
			if err != nil {
				return nil, fmt.Errorf("resolving %s.%s on %s: %w", st, f, out[i].Date, err)
			}
			if ok {
				*slot = models.Dec(v)
			}
		}
	}
	return out, nil
}
