package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mauv0809/dcf/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRateLimit(0),
		WithRetries(2, time.Millisecond),
	)
}

const incomeBody = `{
  "symbol": "AAPL",
  "financials": [
    {"date": "2019-09-28", "EBIT": "63930000000.0", "Income Tax Expense": "10481000000.0", "Earnings before Tax": "65737000000.0"},
    {"date": "2020-09-26", "EBIT": 66288000000, "Income Tax Expense": "9680000000.0", "Earnings before Tax": "67091000000.0"},
    {"date": "", "EBIT": "1"}
  ]
}`

func TestIncomeStatements(t *testing.T) {
	var gotPath, gotKey, gotPeriod string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("apikey")
		gotPeriod = r.URL.Query().Get("period")
		w.Write([]byte(incomeBody))
	})

	recs, err := c.IncomeStatements(context.Background(), "aapl", models.PeriodQuarter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/financials/income-statement/AAPL" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("expected api key to be passed through, got %q", gotKey)
	}
	if gotPeriod != "quarter" {
		t.Errorf("expected period=quarter, got %q", gotPeriod)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 dated records, got %d", len(recs))
	}
	if recs[0].Date != "2020-09-26" {
		t.Errorf("expected most recent first, got %s", recs[0].Date)
	}
	if recs[0].EBIT == nil || !recs[0].EBIT.Equal(decimal.NewFromInt(66288000000)) {
		t.Errorf("unexpected EBIT %v", recs[0].EBIT)
	}
	if recs[1].IncomeTaxExpense == nil || recs[1].IncomeTaxExpense.String() != "10481000000" {
		t.Errorf("unexpected tax expense %v", recs[1].IncomeTaxExpense)
	}
}

func TestAnnualOmitsPeriod(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.URL.Query()["period"]; ok {
			t.Errorf("annual requests should not set period")
		}
		w.Write([]byte(`{"symbol":"X","financials":[]}`))
	})
	recs, err := c.BalanceStatements(context.Background(), "X", models.PeriodAnnual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no records, got %d", len(recs))
	}
}

func TestBalanceAndCashflowStatements(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/balance-sheet-statement/ACME"):
			w.Write([]byte(`{"financials":[{"date":"2020-12-31","Total assets":"1000","Total non-current assets":"600"}]}`))
		case strings.HasSuffix(r.URL.Path, "/cash-flow-statement/ACME"):
			w.Write([]byte(`{"financials":[{"date":"2020-12-31","Depreciation & Amortization":"50","Capital Expenditure":"-30"}]}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	bal, err := c.BalanceStatements(ctx, "ACME", models.PeriodAnnual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bal[0].TotalAssets.String() != "1000" || bal[0].TotalNonCurrentAssets.String() != "600" {
		t.Errorf("unexpected balance record %+v", bal[0])
	}

	cf, err := c.CashflowStatements(ctx, "ACME", models.PeriodAnnual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cf[0].CapitalExpenditure.String() != "-30" || cf[0].DepreciationAmortization.String() != "50" {
		t.Errorf("unexpected cash flow record %+v", cf[0])
	}
}

func TestEnterpriseValueStatements(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"ACME","enterpriseValues":[
			{"date":"2020-12-31","Stock Price":12.5,"Number of Shares":"100","Market Capitalization":"1250","- Cash & Cash Equivalents":"80","+ Total Debt":"300","Enterprise Value":"1470"}
		]}`))
	})
	evs, err := c.EnterpriseValueStatements(context.Background(), "ACME", models.PeriodAnnual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(evs))
	}
	ev := evs[0]
	if ev.TotalDebt.String() != "300" || ev.CashAndEquivalents.String() != "80" || ev.NumberOfShares.String() != "100" {
		t.Errorf("unexpected statement %+v", ev)
	}
	if ev.StockPrice == nil || ev.StockPrice.String() != "12.5" {
		t.Errorf("unexpected stock price %v", ev.StockPrice)
	}
}

func TestProviderErrorMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Error Message": "Invalid API KEY."}`))
	})
	_, err := c.IncomeStatements(context.Background(), "AAPL", models.PeriodAnnual)
	if !IsFormat(err) {
		t.Fatalf("expected DataFormatError, got %v", err)
	}
	if strings.Contains(err.Error(), "test-key") {
		t.Errorf("error must not leak the api key: %v", err)
	}
}

func TestMalformedJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"financials": [`))
	})
	if _, err := c.CashflowStatements(context.Background(), "AAPL", models.PeriodAnnual); !IsFormat(err) {
		t.Fatalf("expected DataFormatError, got %v", err)
	}
}

func TestMissingFinancialsArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	if _, err := c.IncomeStatements(context.Background(), "ZZZZ", models.PeriodAnnual); !IsFormat(err) {
		t.Fatalf("expected DataFormatError, got %v", err)
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"financials":[{"date":"2020-12-31","EBIT":"1"}]}`))
	})

	recs, err := c.IncomeStatements(context.Background(), "AAPL", models.PeriodAnnual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("expected 1 record, got %d", len(recs))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestUnavailableAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.IncomeStatements(context.Background(), "AAPL", models.PeriodAnnual)
	var unavailable *DataSourceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected DataSourceUnavailableError, got %v", err)
	}
	if unavailable.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", unavailable.StatusCode)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 1 attempt plus 2 retries, got %d", got)
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.IncomeStatements(context.Background(), "AAPL", models.PeriodAnnual)
	if !IsUnavailable(err) {
		t.Fatalf("expected DataSourceUnavailableError, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected a single attempt, got %d", got)
	}
}

func TestHistoricalClosePrice(t *testing.T) {
	var from, to string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		from = r.URL.Query().Get("from")
		to = r.URL.Query().Get("to")
		w.Write([]byte(`{"symbol":"AAPL","historical":[
			{"date":"2020-09-25","close":112.28},
			{"date":"2020-09-24","close":108.22}
		]}`))
	})

	price, err := c.HistoricalClosePrice(context.Background(), "AAPL", "2020-09-26")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if from != "2020-09-24" || to != "2020-09-26" {
		t.Errorf("unexpected range %s..%s", from, to)
	}
	if !price.Equal(decimal.RequireFromString("112.28")) {
		t.Errorf("expected most recent close 112.28, got %s", price)
	}
}

func TestHistoricalClosePriceNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	if _, err := c.HistoricalClosePrice(context.Background(), "AAPL", "2020-09-26"); !errors.Is(err, ErrPriceNotFound) {
		t.Fatalf("expected ErrPriceNotFound, got %v", err)
	}
}

func TestStockPrices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/AAPL"):
			w.Write([]byte(`{"symbol":"AAPL","price":150.25}`))
		default:
			w.Write([]byte(`{}`))
		}
	})

	prices, err := c.StockPrices(context.Background(), []string{"aapl", "NOPE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prices) != 1 {
		t.Fatalf("expected 1 price, got %d", len(prices))
	}
	if !prices["AAPL"].Equal(decimal.RequireFromString("150.25")) {
		t.Errorf("unexpected price %s", prices["AAPL"])
	}
}

func TestContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.IncomeStatements(ctx, "AAPL", models.PeriodAnnual); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
