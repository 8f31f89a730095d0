package quote

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned when a source has no price for the symbol.
var ErrNoPrice = errors.New("no price")

// Quote is a current market price.
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name,omitempty"`
	Price  decimal.Decimal `json:"price"`
	Source string          `json:"source"`
	At     time.Time       `json:"at"`
}

// Source fetches the current price for a symbol.
type Source interface {
	Price(ctx context.Context, sym string) (Quote, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, sym string) (Quote, error)

func (f SourceFunc) Price(ctx context.Context, sym string) (Quote, error) { return f(ctx, sym) }
