package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/mauv0809/dcf/internal/models"
)

const (
	DefaultBaseURL   = "https://financialmodelingprep.com/api/v3"
	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 5 // requests per second
	defaultRetries   = 3
	defaultBackoff   = 1 * time.Second

	// Statement dates often fall on weekends; look back this far for a close.
	priceLookback = 2
)

// Client is a rate-limited client for the financialmodelingprep.com REST API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    uint64
	backoff    time.Duration
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host, e.g. an httptest server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero or less disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetries sets how many times a retryable failure is retried and the
// initial backoff, which doubles on each attempt.
func WithRetries(n uint64, base time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		if base > 0 {
			c.backoff = base
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a new FMP client. The API key is passed through unchanged.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), 1),
		retries: defaultRetries,
		backoff: defaultBackoff,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get fetches endpoint and decodes the JSON body into out. Transport
// failures, 429 and 5xx are retried with exponential backoff.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	u, err := url.Parse(fmt.Sprintf("%s/%s", c.baseURL, endpoint))
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("apikey", c.apiKey)
	u.RawQuery = q.Encode()

	b := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	attempt := 0
	var body []byte
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		body, err = c.doRequest(ctx, endpoint, u.String())
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var unavailable *DataSourceUnavailableError
		if errors.As(err, &unavailable) && unavailable.retryable() {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", attempt).Msg("request failed, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return err
	}

	return decode(endpoint, body, out)
}

func (c *Client) doRequest(ctx context.Context, endpoint, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error carries the full URL, including the api key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, &DataSourceUnavailableError{Endpoint: endpoint, Err: fmt.Errorf("executing request: %w", err)}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &DataSourceUnavailableError{Endpoint: endpoint, Err: fmt.Errorf("reading response: %w", err)}
	}

	if httpResp.StatusCode == http.StatusTooManyRequests {
		return nil, &DataSourceUnavailableError{Endpoint: endpoint, StatusCode: httpResp.StatusCode, Err: errors.New("rate limited")}
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, &DataSourceUnavailableError{Endpoint: endpoint, StatusCode: httpResp.StatusCode, Err: fmt.Errorf("unexpected status: %s", truncate(body, 200))}
	}
	return body, nil
}

// decode rejects provider error bodies and unmarshals numbers as json.Number.
func decode(endpoint string, body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var e errorResponse
		if err := json.Unmarshal(trimmed, &e); err == nil && e.Message != "" {
			return &DataFormatError{Endpoint: endpoint, Err: fmt.Errorf("provider error: %s", e.Message)}
		}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &DataFormatError{Endpoint: endpoint, Err: fmt.Errorf("parsing response: %w", err)}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

func periodParams(period models.Period) url.Values {
	params := url.Values{}
	if period == models.PeriodQuarter {
		params.Set("period", "quarter")
	}
	return params
}

func (c *Client) fetchStatement(ctx context.Context, kind, ticker string, period models.Period) ([]Row, error) {
	endpoint := fmt.Sprintf("financials/%s/%s", kind, url.PathEscape(strings.ToUpper(ticker)))
	var resp statementResponse
	if err := c.get(ctx, endpoint, periodParams(period), &resp); err != nil {
		return nil, fmt.Errorf("fetching %s for %s: %w", kind, ticker, err)
	}
	if resp.Financials == nil {
		return nil, fmt.Errorf("fetching %s for %s: %w", kind, ticker,
			&DataFormatError{Endpoint: endpoint, Err: errors.New("response has no financials")})
	}
	return resp.Financials, nil
}

// IncomeStatements returns income statements for ticker, most recent first.
func (c *Client) IncomeStatements(ctx context.Context, ticker string, period models.Period) ([]models.FinancialStatementRecord, error) {
	rows, err := c.fetchStatement(ctx, "income-statement", ticker, period)
	if err != nil {
		return nil, err
	}
	return ParseIncomeStatements(rows), nil
}

// BalanceStatements returns balance sheets for ticker, most recent first.
func (c *Client) BalanceStatements(ctx context.Context, ticker string, period models.Period) ([]models.FinancialStatementRecord, error) {
	rows, err := c.fetchStatement(ctx, "balance-sheet-statement", ticker, period)
	if err != nil {
		return nil, err
	}
	return ParseBalanceStatements(rows), nil
}

// CashflowStatements returns cash flow statements for ticker, most recent first.
func (c *Client) CashflowStatements(ctx context.Context, ticker string, period models.Period) ([]models.FinancialStatementRecord, error) {
	rows, err := c.fetchStatement(ctx, "cash-flow-statement", ticker, period)
	if err != nil {
		return nil, err
	}
	return ParseCashflowStatements(rows), nil
}

// EnterpriseValueStatements returns capital structure records for ticker, most recent first.
func (c *Client) EnterpriseValueStatements(ctx context.Context, ticker string, period models.Period) ([]models.EnterpriseValueStatement, error) {
	endpoint := "enterprise-value/" + url.PathEscape(strings.ToUpper(ticker))
	var resp enterpriseValueResponse
	if err := c.get(ctx, endpoint, periodParams(period), &resp); err != nil {
		return nil, fmt.Errorf("fetching enterprise values for %s: %w", ticker, err)
	}
	if resp.EnterpriseValues == nil {
		return nil, fmt.Errorf("fetching enterprise values for %s: %w", ticker,
			&DataFormatError{Endpoint: endpoint, Err: errors.New("response has no enterpriseValues")})
	}
	return ParseEnterpriseValues(resp.EnterpriseValues), nil
}

// HistoricalClosePrice returns the close on date, or on the closest trading
// day up to two days earlier. ErrPriceNotFound if there is none.
func (c *Client) HistoricalClosePrice(ctx context.Context, ticker, date string) (decimal.Decimal, error) {
	end, err := time.Parse("2006-01-02", date)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing date %q: %w", date, err)
	}
	start := end.AddDate(0, 0, -priceLookback)

	endpoint := "historical-price-full/" + url.PathEscape(strings.ToUpper(ticker))
	params := url.Values{}
	params.Set("from", start.Format("2006-01-02"))
	params.Set("to", end.Format("2006-01-02"))

	var resp historicalPriceResponse
	if err := c.get(ctx, endpoint, params, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("fetching close for %s on %s: %w", ticker, date, err)
	}
	price, _, err := parseClose(resp.Historical)
	if err != nil {
		if errors.Is(err, ErrPriceNotFound) {
			return decimal.Zero, fmt.Errorf("%s on %s: %w", ticker, date, ErrPriceNotFound)
		}
		return decimal.Zero, &DataFormatError{Endpoint: endpoint, Err: err}
	}
	return price, nil
}

// StockPrice returns the current price for ticker.
func (c *Client) StockPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	endpoint := "stock/real-time-price/" + url.PathEscape(strings.ToUpper(ticker))
	var resp realtimePriceResponse
	if err := c.get(ctx, endpoint, nil, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("fetching price for %s: %w", ticker, err)
	}
	if resp.Price == "" {
		return decimal.Zero, fmt.Errorf("%s: %w", ticker, ErrPriceNotFound)
	}
	price, err := decimal.NewFromString(resp.Price.String())
	if err != nil {
		return decimal.Zero, &DataFormatError{Endpoint: endpoint, Err: fmt.Errorf("parsing price: %w", err)}
	}
	return price, nil
}

// StockPrices returns current prices for each ticker. Tickers without a
// price are left out; the first transport or format error aborts.
func (c *Client) StockPrices(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(tickers))
	for _, t := range tickers {
		p, err := c.StockPrice(ctx, t)
		if errors.Is(err, ErrPriceNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		prices[strings.ToUpper(t)] = p
	}
	return prices, nil
}
