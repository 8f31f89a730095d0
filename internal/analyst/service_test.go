package analyst

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mauv0809/dcf/internal/ingest"
	"github.com/mauv0809/dcf/internal/models"
	"github.com/mauv0809/dcf/internal/quote"
	"github.com/mauv0809/dcf/internal/valuation"
)

func d(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

// fakeRepo serves the same two-period history for every ticker in tickers.
type fakeRepo struct {
	tickers map[string]bool
	err     error
	closes  map[string]decimal.Decimal

	mu    sync.Mutex
	calls int
}

func newFakeRepo(tickers ...string) *fakeRepo {
	r := &fakeRepo{tickers: map[string]bool{}}
	for _, t := range tickers {
		r.tickers[t] = true
	}
	return r
}

func (r *fakeRepo) check(ticker string) error {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if !r.tickers[ticker] {
		return &ingest.DataFormatError{Endpoint: "financials/" + ticker, Err: errors.New("unknown symbol")}
	}
	return nil
}

func (r *fakeRepo) IncomeStatements(_ context.Context, ticker string, _ models.Period) ([]models.FinancialStatementRecord, error) {
	if err := r.check(ticker); err != nil {
		return nil, err
	}
	return []models.FinancialStatementRecord{
		{Date: "2020-12-31", EBIT: d("100"), IncomeTaxExpense: d("21"), EarningsBeforeTax: d("70")},
		{Date: "2019-12-31", EBIT: d("90"), IncomeTaxExpense: d("18"), EarningsBeforeTax: d("60")},
	}, nil
}

func (r *fakeRepo) BalanceStatements(_ context.Context, ticker string, _ models.Period) ([]models.FinancialStatementRecord, error) {
	if err := r.check(ticker); err != nil {
		return nil, err
	}
	return []models.FinancialStatementRecord{
		{Date: "2020-12-31", TotalAssets: d("550"), TotalNonCurrentAssets: d("320")},
		{Date: "2019-12-31", TotalAssets: d("500"), TotalNonCurrentAssets: d("300")},
		{Date: "2018-12-31", TotalAssets: d("480"), TotalNonCurrentAssets: d("300")},
	}, nil
}

func (r *fakeRepo) CashflowStatements(_ context.Context, ticker string, _ models.Period) ([]models.FinancialStatementRecord, error) {
	if err := r.check(ticker); err != nil {
		return nil, err
	}
	return []models.FinancialStatementRecord{
		{Date: "2020-12-31", DepreciationAmortization: d("20"), CapitalExpenditure: d("-30")},
		{Date: "2019-12-31", DepreciationAmortization: d("18"), CapitalExpenditure: d("-25")},
	}, nil
}

func (r *fakeRepo) EnterpriseValueStatements(_ context.Context, ticker string, _ models.Period) ([]models.EnterpriseValueStatement, error) {
	if err := r.check(ticker); err != nil {
		return nil, err
	}
	return []models.EnterpriseValueStatement{
		{Date: "2020-12-31", TotalDebt: d("200"), CashAndEquivalents: d("50"), NumberOfShares: d("100")},
		{Date: "2019-12-31", TotalDebt: d("200"), CashAndEquivalents: d("50"), NumberOfShares: d("100")},
	}, nil
}

func (r *fakeRepo) HistoricalClosePrice(_ context.Context, ticker, date string) (decimal.Decimal, error) {
	if p, ok := r.closes[date]; ok {
		return p, nil
	}
	return decimal.Zero, fmt.Errorf("%s on %s: %w", ticker, date, ingest.ErrPriceNotFound)
}

func testParams() valuation.Parameters {
	return valuation.Parameters{
		DiscountRate:        decimal.RequireFromString("0.10"),
		ForecastYears:       1,
		EarningsGrowthRate:  decimal.RequireFromString("0.05"),
		CapExGrowthRate:     decimal.RequireFromString("0.05"),
		PerpetualGrowthRate: decimal.RequireFromString("0.02"),
	}
}

func TestValue(t *testing.T) {
	quotes := quote.SourceFunc(func(_ context.Context, sym string) (quote.Quote, error) {
		return quote.Quote{Symbol: sym, Price: decimal.RequireFromString("5")}, nil
	})
	svc := NewService(newFakeRepo("TEST"), WithQuoteSource(quotes))

	v, err := svc.Value(context.Background(), Request{Ticker: " test ", Params: testParams()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Ticker != "TEST" || v.Period != models.PeriodAnnual {
		t.Errorf("unexpected request normalization: %s %s", v.Ticker, v.Period)
	}
	if v.RunID == "" {
		t.Error("expected a run id")
	}
	price, _ := v.Result.SharePrice.Float64()
	if diff := price - 7.310217881292261; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("unexpected share price %v", price)
	}
	if v.Quote == nil || v.Upside == nil {
		t.Fatal("expected market price and upside")
	}
	want := v.Result.SharePrice.Sub(decimal.NewFromInt(5)).Div(decimal.NewFromInt(5))
	if !v.Upside.Equal(want) {
		t.Errorf("expected upside %s, got %s", want, v.Upside)
	}
}

func TestValue_QuoteFailureIsNotFatal(t *testing.T) {
	quotes := quote.SourceFunc(func(context.Context, string) (quote.Quote, error) {
		return quote.Quote{}, quote.ErrNoPrice
	})
	svc := NewService(newFakeRepo("TEST"), WithQuoteSource(quotes))

	v, err := svc.Value(context.Background(), Request{Ticker: "TEST", Params: testParams()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Quote != nil || v.Upside != nil {
		t.Error("expected no market price")
	}
}

func TestValue_RepositoryErrorPropagates(t *testing.T) {
	repo := newFakeRepo("TEST")
	repo.err = &ingest.DataSourceUnavailableError{Endpoint: "financials/income-statement/TEST", StatusCode: 503, Err: errors.New("down")}
	svc := NewService(repo)

	_, err := svc.Value(context.Background(), Request{Ticker: "TEST", Params: testParams()})
	if !ingest.IsUnavailable(err) {
		t.Fatalf("expected DataSourceUnavailableError, got %v", err)
	}
	if valuation.IsDomainError(err) {
		t.Error("repository errors must not look like valuation errors")
	}
	if !IsRepositoryError(err) {
		t.Error("expected IsRepositoryError")
	}
}

func TestValue_InvalidParamsSkipFetch(t *testing.T) {
	repo := newFakeRepo("TEST")
	svc := NewService(repo)
	p := testParams()
	p.PerpetualGrowthRate = p.DiscountRate

	_, err := svc.Value(context.Background(), Request{Ticker: "TEST", Params: p})
	if !errors.Is(err, valuation.ErrDivergentTerminalValue) {
		t.Fatalf("expected ErrDivergentTerminalValue, got %v", err)
	}
	if repo.calls != 0 {
		t.Errorf("expected no fetches, got %d", repo.calls)
	}
}

type missingEBITRepo struct{ *fakeRepo }

func (r missingEBITRepo) IncomeStatements(ctx context.Context, ticker string, p models.Period) ([]models.FinancialStatementRecord, error) {
	recs, err := r.fakeRepo.IncomeStatements(ctx, ticker, p)
	if err != nil {
		return nil, err
	}
	recs[0].EBIT = nil
	return recs, nil
}

func TestValue_ResolverFillsMissingField(t *testing.T) {
	repo := missingEBITRepo{newFakeRepo("TEST")}

	if _, err := NewService(repo).Value(context.Background(), Request{Ticker: "TEST", Params: testParams()}); !errors.Is(err, valuation.ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput without resolver, got %v", err)
	}

	overrides, err := ParseOverrides(map[string]string{"test/2020-12-31/EBIT": "100"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := NewService(repo, WithResolver(overrides)).Value(context.Background(), Request{Ticker: "TEST", Params: testParams()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	price, _ := v.Result.SharePrice.Float64()
	if diff := price - 7.310217881292261; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("unexpected share price %v", price)
	}
}

func TestHistory(t *testing.T) {
	repo := newFakeRepo("TEST")
	repo.closes = map[string]decimal.Decimal{"2020-12-31": decimal.NewFromInt(8)}
	svc := NewService(repo)

	report, err := svc.History(context.Background(), Request{Ticker: "TEST", Params: testParams(), HistoryYears: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Offset 2 has no enterprise value statement.
	if len(report.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(report.Points))
	}
	if report.Points[0].Result.Date != "2020-12-31" || report.Points[1].Result.Date != "2019-12-31" {
		t.Errorf("unexpected order: %s, %s", report.Points[0].Result.Date, report.Points[1].Result.Date)
	}
	if report.Points[0].ClosePrice == nil || !report.Points[0].ClosePrice.Equal(decimal.NewFromInt(8)) {
		t.Errorf("expected close price 8, got %v", report.Points[0].ClosePrice)
	}
	if report.Points[1].ClosePrice != nil {
		t.Error("expected no close price for 2019")
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Offset != 2 || report.Skipped[0].Kind != valuation.KindInsufficientHistory {
		t.Errorf("unexpected skips: %+v", report.Skipped)
	}
}

func TestHistory_InvalidYears(t *testing.T) {
	repo := newFakeRepo("TEST")
	_, err := NewService(repo).History(context.Background(), Request{Ticker: "TEST", Params: testParams(), HistoryYears: -1})
	if !errors.Is(err, valuation.ErrInvalidParameters) {
		t.Fatalf("expected ErrInvalidParameters, got %v", err)
	}
	if repo.calls != 0 {
		t.Errorf("expected no fetches, got %d", repo.calls)
	}
}

func TestBatch(t *testing.T) {
	svc := NewService(newFakeRepo("AAA", "CCC"), WithWorkers(2))

	items := svc.Batch(context.Background(), []Request{
		{Ticker: "AAA", Params: testParams()},
		{Ticker: "BBB", Params: testParams()},
		{Ticker: "CCC", Params: testParams()},
	})
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, want := range []string{"AAA", "BBB", "CCC"} {
		if items[i].Ticker != want {
			t.Errorf("item %d: expected %s, got %s", i, want, items[i].Ticker)
		}
	}
	if items[0].Valuation == nil || items[2].Valuation == nil {
		t.Error("expected valuations for AAA and CCC")
	}
	if items[1].Err == nil || !ingest.IsFormat(items[1].Err) || items[1].Error == "" {
		t.Errorf("expected a format error for BBB, got %v", items[1].Err)
	}
}

type concurrencyRepo struct {
	*fakeRepo
	inflight, peak atomic.Int32
}

func (r *concurrencyRepo) EnterpriseValueStatements(ctx context.Context, ticker string, p models.Period) ([]models.EnterpriseValueStatement, error) {
	n := r.inflight.Add(1)
	defer r.inflight.Add(-1)
	for {
		old := r.peak.Load()
		if n <= old || r.peak.CompareAndSwap(old, n) {
			break
		}
	}
	return r.fakeRepo.EnterpriseValueStatements(ctx, ticker, p)
}

func TestBatch_BoundedWorkers(t *testing.T) {
	repo := &concurrencyRepo{fakeRepo: newFakeRepo("A", "B", "C", "D", "E", "F")}
	svc := NewService(repo, WithWorkers(2))

	var reqs []Request
	for _, tk := range []string{"A", "B", "C", "D", "E", "F"} {
		reqs = append(reqs, Request{Ticker: tk, Params: testParams()})
	}
	for _, it := range svc.Batch(context.Background(), reqs) {
		if it.Err != nil {
			t.Errorf("%s: unexpected error: %v", it.Ticker, it.Err)
		}
	}
	if peak := repo.peak.Load(); peak > 2 {
		t.Errorf("expected at most 2 concurrent valuations, saw %d", peak)
	}
}

func TestStaticResolver(t *testing.T) {
	r, err := ParseOverrides(map[string]string{
		"AAPL/2020-09-26/ebit":       "1",
		"AAPL/*/capital_expenditure": "-2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	v, ok, _ := r.Resolve(ctx, valuation.FieldRequest{Ticker: "aapl", Field: valuation.FieldEBIT, Date: "2020-09-26"})
	if !ok || !v.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected exact match, got %s %v", v, ok)
	}
	v, ok, _ = r.Resolve(ctx, valuation.FieldRequest{Ticker: "AAPL", Field: valuation.FieldCapitalExpenditure, Date: "2015-09-26"})
	if !ok || !v.Equal(decimal.NewFromInt(-2)) {
		t.Errorf("expected wildcard match, got %s %v", v, ok)
	}
	if _, ok, _ = r.Resolve(ctx, valuation.FieldRequest{Ticker: "MSFT", Field: valuation.FieldEBIT, Date: "2020-09-26"}); ok {
		t.Error("expected no match for another ticker")
	}

	if _, err := ParseOverrides(map[string]string{"AAPL/ebit": "1"}); err == nil {
		t.Error("expected malformed key to fail")
	}
	if _, err := ParseOverrides(map[string]string{"AAPL/*/ebit": "lots"}); err == nil {
		t.Error("expected malformed value to fail")
	}
}

func TestChainResolver(t *testing.T) {
	first := StaticResolver{}
	second := valuation.ResolverFunc(func(context.Context, valuation.FieldRequest) (decimal.Decimal, bool, error) {
		return decimal.NewFromInt(9), true, nil
	})
	chain := ChainResolver{nil, first, second}

	v, ok, err := chain.Resolve(context.Background(), valuation.FieldRequest{Ticker: "X", Field: valuation.FieldEBIT})
	if err != nil || !ok || !v.Equal(decimal.NewFromInt(9)) {
		t.Errorf("expected second resolver to answer, got %s %v %v", v, ok, err)
	}
}
