package quote

import (
	"context"
	"fmt"
	"strings"
	"time"

	yfgo "github.com/komsit37/yf-go"
	"github.com/shopspring/decimal"
)

// YahooSource implements Source using yf-go.
type YahooSource struct {
	client  *yfgo.Client
	timeout time.Duration
}

func NewYahooSource(timeout time.Duration) *YahooSource {
	return &YahooSource{client: yfgo.NewClient(), timeout: timeout}
}

func (s *YahooSource) Price(ctx context.Context, sym string) (Quote, error) {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	if sym == "" {
		return Quote{}, fmt.Errorf("empty symbol: %w", ErrNoPrice)
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.client.QuoteSummaryTyped(cctx, sym, []yfgo.QuoteSummaryModule{yfgo.ModulePrice})
	if err != nil {
		return Quote{}, fmt.Errorf("yahoo quote for %s: %w", sym, err)
	}
	if res.Price == nil || res.Price.RegularMarketPrice.Raw == nil {
		return Quote{}, fmt.Errorf("%s: %w", sym, ErrNoPrice)
	}

	q := Quote{
		Symbol: sym,
		Price:  decimal.NewFromFloat(*res.Price.RegularMarketPrice.Raw),
		Source: "yahoo",
		At:     time.Now(),
	}
	if res.Price.ShortName != "" {
		q.Name = res.Price.ShortName
	} else if res.Price.LongName != "" {
		q.Name = res.Price.LongName
	}
	return q, nil
}
