package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mauv0809/dcf/internal/analyst"
	"github.com/mauv0809/dcf/internal/ingest"
	"github.com/mauv0809/dcf/internal/models"
	"github.com/mauv0809/dcf/internal/render"
	"github.com/mauv0809/dcf/internal/valuation"
	"github.com/mauv0809/dcf/internal/views"
)

// Valuer runs valuations.
type Valuer interface {
	Value(ctx context.Context, req analyst.Request) (analyst.Valuation, error)
	History(ctx context.Context, req analyst.Request) (analyst.HistoryReport, error)
	Batch(ctx context.Context, reqs []analyst.Request) []analyst.BatchItem
}

// Defaults is the request template query parameters are applied to.
type Defaults struct {
	Params       valuation.Parameters
	Period       models.Period
	HistoryYears int
}

// ValuationHandler serves the valuation endpoints.
type ValuationHandler struct {
	svc      Valuer
	defaults Defaults
	maxBatch int
	logger   zerolog.Logger
}

// NewValuationHandler creates a new valuation handler.
func NewValuationHandler(svc Valuer, defaults Defaults, logger zerolog.Logger) *ValuationHandler {
	return &ValuationHandler{svc: svc, defaults: defaults, maxBatch: 50, logger: logger}
}

// APIResponse is the JSON body of failed requests.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// BatchRequest is the body of POST /api/valuation/batch.
type BatchRequest struct {
	Tickers []string `json:"tickers"`
}

// BatchResponse is the result of POST /api/valuation/batch.
type BatchResponse struct {
	Items   []analyst.BatchItem `json:"items"`
	Elapsed string              `json:"elapsed"`
}

// parseRequest overlays query parameters on the defaults.
func (h *ValuationHandler) parseRequest(c echo.Context, ticker string) (analyst.Request, error) {
	req := analyst.Request{
		Ticker:       strings.ToUpper(strings.TrimSpace(ticker)),
		Period:       h.defaults.Period,
		Params:       h.defaults.Params,
		HistoryYears: h.defaults.HistoryYears,
	}

	var period string
	err := echo.QueryParamsBinder(c).
		String("period", &period).
		Int("forecast_years", &req.Params.ForecastYears).
		Int("history_years", &req.HistoryYears).
		BindError()
	if err != nil {
		return req, err
	}
	if period != "" {
		if req.Period, err = models.ParsePeriod(period); err != nil {
			return req, err
		}
	}

	rates := []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"discount_rate", &req.Params.DiscountRate},
		{"earnings_growth_rate", &req.Params.EarningsGrowthRate},
		{"capex_growth_rate", &req.Params.CapExGrowthRate},
		{"perpetual_growth_rate", &req.Params.PerpetualGrowthRate},
	}
	for _, r := range rates {
		if err := decimalParam(c, r.name, r.dst); err != nil {
			return req, err
		}
	}
	if c.QueryParam("working_capital_decay") != "" {
		var decay decimal.Decimal
		if err := decimalParam(c, "working_capital_decay", &decay); err != nil {
			return req, err
		}
		req.Params.WorkingCapitalDecay = decimal.NewNullDecimal(decay)
	}
	return req, nil
}

func decimalParam(c echo.Context, name string, dst *decimal.Decimal) error {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("%s: %q is not a number", name, raw)
	}
	*dst = v
	return nil
}

// statusFor maps an error to the HTTP status reported to the client.
func statusFor(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, valuation.ErrInvalidParameters), errors.Is(err, valuation.ErrDivergentTerminalValue):
		return http.StatusBadRequest
	case valuation.IsDomainError(err):
		return http.StatusUnprocessableEntity
	case ingest.IsFormat(err):
		return http.StatusBadGateway
	case ingest.IsUnavailable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (h *ValuationHandler) fail(c echo.Context, err error) error {
	status := statusFor(err)
	ev := h.logger.Warn()
	if status >= 500 {
		ev = h.logger.Error()
	}
	ev.Err(err).Int("status", status).Str("path", c.Path()).Msg("request failed")

	resp := APIResponse{Success: false, Message: err.Error()}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		resp.Message = fmt.Sprint(he.Message)
	}
	if k := valuation.KindOf(err); k != valuation.KindUnknown {
		resp.Kind = string(k)
	}
	return c.JSON(status, resp)
}

func badRequest(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
}

// Value handles GET /api/valuation/:ticker
// Query params override the configured defaults:
// - period: annual or quarter
// - discount_rate, earnings_growth_rate, capex_growth_rate, perpetual_growth_rate: fractions
// - forecast_years, working_capital_decay
func (h *ValuationHandler) Value(c echo.Context) error {
	req, err := h.parseRequest(c, c.Param("ticker"))
	if err != nil {
		return h.fail(c, badRequest(err))
	}
	v, err := h.svc.Value(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// History handles GET /api/valuation/:ticker/history
// Accepts the same query params as Value plus history_years.
func (h *ValuationHandler) History(c echo.Context) error {
	req, err := h.parseRequest(c, c.Param("ticker"))
	if err != nil {
		return h.fail(c, badRequest(err))
	}
	report, err := h.svc.History(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// Batch handles POST /api/valuation/batch
// Body: {"tickers": ["AAPL", "MSFT"]}. Parameters come from the query string.
// Per-ticker failures are reported on the items; the response is always 200.
func (h *ValuationHandler) Batch(c echo.Context) error {
	start := time.Now()

	var body BatchRequest
	if err := c.Bind(&body); err != nil {
		return h.fail(c, err)
	}
	if len(body.Tickers) == 0 {
		return h.fail(c, badRequest(errors.New("tickers is required")))
	}
	if len(body.Tickers) > h.maxBatch {
		return h.fail(c, badRequest(fmt.Errorf("at most %d tickers per batch", h.maxBatch)))
	}

	tmpl, err := h.parseRequest(c, "")
	if err != nil {
		return h.fail(c, badRequest(err))
	}
	reqs := make([]analyst.Request, 0, len(body.Tickers))
	for _, t := range body.Tickers {
		r := tmpl
		r.Ticker = t
		reqs = append(reqs, r)
	}

	items := h.svc.Batch(c.Request().Context(), reqs)
	h.logger.Info().Int("tickers", len(items)).Dur("elapsed", time.Since(start)).Msg("batch complete")
	return c.JSON(http.StatusOK, BatchResponse{Items: items, Elapsed: time.Since(start).String()})
}

// Report handles GET /report/:ticker and GET /report?ticker=
// With history_years > 0 it renders the historical series, else a single valuation.
func (h *ValuationHandler) Report(c echo.Context) error {
	ticker := c.Param("ticker")
	if ticker == "" {
		ticker = c.QueryParam("ticker")
	}
	if strings.TrimSpace(ticker) == "" {
		return Render(c, http.StatusBadRequest, views.Error("Missing ticker", "Enter a ticker symbol."))
	}

	req, err := h.parseRequest(c, ticker)
	if err != nil {
		return Render(c, http.StatusBadRequest, views.Error("Invalid parameters", err.Error()))
	}
	// The form sends history_years explicitly; the defaults only apply to the API.
	if c.QueryParam("history_years") == "" {
		req.HistoryYears = 0
	}

	ctx := c.Request().Context()
	var md, title string
	if req.HistoryYears > 0 {
		report, err := h.svc.History(ctx, req)
		if err != nil {
			return h.failPage(c, req.Ticker, err)
		}
		md, title = render.HistoryMarkdown(report), req.Ticker+" DCF history"
	} else {
		v, err := h.svc.Value(ctx, req)
		if err != nil {
			return h.failPage(c, req.Ticker, err)
		}
		md, title = render.ValuationMarkdown(v), req.Ticker+" DCF"
	}

	fragment, err := render.MarkdownToHTML(md)
	if err != nil {
		return h.failPage(c, req.Ticker, err)
	}
	return Render(c, http.StatusOK, views.Report(title, fragment))
}

func (h *ValuationHandler) failPage(c echo.Context, ticker string, err error) error {
	status := statusFor(err)
	h.logger.Warn().Err(err).Str("ticker", ticker).Int("status", status).Msg("report failed")
	return Render(c, status, views.Error(ticker+" could not be valued", err.Error()))
}
