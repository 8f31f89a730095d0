package quote

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mauv0809/dcf/internal/ingest"
)

type countingSource struct {
	calls map[string]int
	err   error
}

func (s *countingSource) Price(_ context.Context, sym string) (Quote, error) {
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[sym]++
	if s.err != nil {
		return Quote{}, s.err
	}
	return Quote{Symbol: sym, Price: decimal.NewFromInt(int64(s.calls[sym]))}, nil
}

func TestCacheSource_HitAndExpiry(t *testing.T) {
	next := &countingSource{}
	c := NewCacheSource(next, time.Minute, 10)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	q1, _ := c.Price(ctx, "AAPL")
	q2, _ := c.Price(ctx, "AAPL")
	if next.calls["AAPL"] != 1 {
		t.Fatalf("expected a single upstream call, got %d", next.calls["AAPL"])
	}
	if !q1.Price.Equal(q2.Price) {
		t.Errorf("cached quote differs: %s vs %s", q1.Price, q2.Price)
	}

	now = now.Add(2 * time.Minute)
	q3, _ := c.Price(ctx, "AAPL")
	if next.calls["AAPL"] != 2 {
		t.Fatalf("expected refetch after ttl, got %d calls", next.calls["AAPL"])
	}
	if !q3.Price.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected fresh quote, got %s", q3.Price)
	}
}

func TestCacheSource_EvictsLeastRecentlyUsed(t *testing.T) {
	next := &countingSource{}
	c := NewCacheSource(next, time.Hour, 2)
	ctx := context.Background()

	c.Price(ctx, "A")
	c.Price(ctx, "B")
	c.Price(ctx, "A") // A is now most recent
	c.Price(ctx, "C") // evicts B

	if c.Len() != 2 {
		t.Fatalf("expected 2 cached quotes, got %d", c.Len())
	}
	c.Price(ctx, "A")
	if next.calls["A"] != 1 {
		t.Errorf("A should still be cached, got %d calls", next.calls["A"])
	}
	c.Price(ctx, "B")
	if next.calls["B"] != 2 {
		t.Errorf("B should have been evicted, got %d calls", next.calls["B"])
	}
}

func TestCacheSource_ErrorsNotCached(t *testing.T) {
	next := &countingSource{err: errors.New("down")}
	c := NewCacheSource(next, time.Hour, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.Price(ctx, "X"); err == nil {
			t.Fatal("expected error")
		}
	}
	if next.calls["X"] != 2 {
		t.Errorf("expected errors to bypass the cache, got %d calls", next.calls["X"])
	}
}

type fakeFetcher map[string]decimal.Decimal

func (f fakeFetcher) StockPrice(_ context.Context, ticker string) (decimal.Decimal, error) {
	p, ok := f[ticker]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", ticker, ingest.ErrPriceNotFound)
	}
	return p, nil
}

func TestFMPSource(t *testing.T) {
	s := NewFMPSource(fakeFetcher{"MSFT": decimal.RequireFromString("310.5")})

	q, err := s.Price(context.Background(), "msft")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Symbol != "MSFT" || q.Source != "fmp" || !q.Price.Equal(decimal.RequireFromString("310.5")) {
		t.Errorf("unexpected quote %+v", q)
	}

	if _, err := s.Price(context.Background(), "NOPE"); !errors.Is(err, ErrNoPrice) {
		t.Errorf("expected ErrNoPrice, got %v", err)
	}
}
