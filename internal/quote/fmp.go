package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mauv0809/dcf/internal/ingest"
)

// PriceFetcher is the part of the FMP client the adapter needs.
type PriceFetcher interface {
	StockPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// FMPSource adapts the FMP real-time price endpoint to Source.
type FMPSource struct {
	client PriceFetcher
}

func NewFMPSource(client PriceFetcher) *FMPSource {
	return &FMPSource{client: client}
}

func (s *FMPSource) Price(ctx context.Context, sym string) (Quote, error) {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	p, err := s.client.StockPrice(ctx, sym)
	if errors.Is(err, ingest.ErrPriceNotFound) {
		return Quote{}, fmt.Errorf("%s: %w", sym, ErrNoPrice)
	}
	if err != nil {
		return Quote{}, err
	}
	return Quote{Symbol: sym, Price: p, Source: "fmp", At: time.Now()}, nil
}
