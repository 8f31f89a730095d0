package analyst

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"

	"github.com/mauv0809/dcf/internal/ingest"
	"github.com/mauv0809/dcf/internal/models"
	"github.com/mauv0809/dcf/internal/quote"
	"github.com/mauv0809/dcf/internal/valuation"
)

const (
	defaultWorkers      = 4
	defaultHistoryYears = 5
	closePriceWorkers   = 4
)

// StatementRepository supplies statement histories, most recent first.
type StatementRepository interface {
	IncomeStatements(ctx context.Context, ticker string, period models.Period) ([]models.FinancialStatementRecord, error)
	BalanceStatements(ctx context.Context, ticker string, period models.Period) ([]models.FinancialStatementRecord, error)
	CashflowStatements(ctx context.Context, ticker string, period models.Period) ([]models.FinancialStatementRecord, error)
	EnterpriseValueStatements(ctx context.Context, ticker string, period models.Period) ([]models.EnterpriseValueStatement, error)
	HistoricalClosePrice(ctx context.Context, ticker, date string) (decimal.Decimal, error)
}

// Request describes one valuation run.
type Request struct {
	Ticker       string               `json:"ticker"`
	Period       models.Period        `json:"period"`
	Params       valuation.Parameters `json:"params"`
	HistoryYears int                  `json:"history_years,omitempty"`
}

// Valuation is a single-period valuation with the market price attached when available.
type Valuation struct {
	RunID  string               `json:"run_id"`
	Ticker string               `json:"ticker"`
	Period models.Period        `json:"period"`
	Params valuation.Parameters `json:"params"`
	Result valuation.Result     `json:"result"`
	Quote  *quote.Quote         `json:"quote,omitempty"`
	Upside *decimal.Decimal     `json:"upside,omitempty"` // (intrinsic - market) / market
}

// HistoryPoint is one valuation of a series with the close on its date.
type HistoryPoint struct {
	Result     valuation.Result `json:"result"`
	ClosePrice *decimal.Decimal `json:"close_price,omitempty"`
	Upside     *decimal.Decimal `json:"upside,omitempty"`
}

// SkippedPeriod is a period of a series that could not be valued.
type SkippedPeriod struct {
	Offset int            `json:"offset"`
	Date   string         `json:"date,omitempty"`
	Kind   valuation.Kind `json:"kind"`
	Error  string         `json:"error"`
}

// HistoryReport is a historical valuation series, most recent first.
type HistoryReport struct {
	RunID   string               `json:"run_id"`
	Ticker  string               `json:"ticker"`
	Period  models.Period        `json:"period"`
	Years   int                  `json:"years"`
	Params  valuation.Parameters `json:"params"`
	Points  []HistoryPoint       `json:"points"`
	Skipped []SkippedPeriod      `json:"skipped,omitempty"`
}

// BatchItem is the outcome for one ticker of a batch.
type BatchItem struct {
	Ticker    string     `json:"ticker"`
	Valuation *Valuation `json:"valuation,omitempty"`
	Error     string     `json:"error,omitempty"`
	Err       error      `json:"-"`
}

// Service fetches statements, runs the valuation engine and attaches prices.
type Service struct {
	repo     StatementRepository
	quotes   quote.Source
	resolver valuation.MissingFieldResolver
	workers  int
	logger   zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithQuoteSource attaches current market prices to single valuations.
func WithQuoteSource(src quote.Source) Option {
	return func(s *Service) { s.quotes = src }
}

// WithResolver fills absent statement fields before valuing.
func WithResolver(r valuation.MissingFieldResolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithWorkers bounds batch parallelism.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(repo StatementRepository, opts ...Option) *Service {
	s := &Service{repo: repo, workers: defaultWorkers, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Value computes the valuation at the most recent statement date. Parameters
// are validated before any statement is fetched.
func (s *Service) Value(ctx context.Context, req Request) (Valuation, error) {
	req = normalize(req)
	runID := uuid.NewString()
	logger := s.logger.With().Str("run_id", runID).Str("ticker", req.Ticker).Str("period", string(req.Period)).Logger()

	if err := req.Params.Validate(); err != nil {
		return Valuation{}, err
	}
	h, err := s.fetch(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("fetching statements failed")
		return Valuation{}, err
	}
	if h, err = s.resolve(ctx, h, 1); err != nil {
		return Valuation{}, err
	}

	in, err := h.Window(0)
	if err != nil {
		return Valuation{}, err
	}
	res, err := valuation.ComputeDCF(in, req.Params, valuation.LogObserver{Logger: logger})
	if err != nil {
		logger.Warn().Err(err).Str("kind", string(valuation.KindOf(err))).Msg("valuation failed")
		return Valuation{}, err
	}

	v := Valuation{RunID: runID, Ticker: req.Ticker, Period: req.Period, Params: req.Params, Result: res}
	if s.quotes != nil {
		q, err := s.quotes.Price(ctx, req.Ticker)
		if err != nil {
			logger.Warn().Err(err).Msg("no market price")
		} else {
			v.Quote = &q
			v.Upside = upside(res.SharePrice, q.Price)
		}
	}

	logger.Info().Str("date", res.Date).Str("share_price", res.SharePrice.StringFixed(2)).Msg("valuation complete")
	return v, nil
}

// History values every period over req.HistoryYears and attaches the close
// price on each valuation date. Periods that cannot be valued are listed in
// Skipped; missing close prices are logged and left empty.
func (s *Service) History(ctx context.Context, req Request) (HistoryReport, error) {
	req = normalize(req)
	if req.HistoryYears == 0 {
		req.HistoryYears = defaultHistoryYears
	}
	runID := uuid.NewString()
	logger := s.logger.With().Str("run_id", runID).Str("ticker", req.Ticker).Str("period", string(req.Period)).Logger()

	opts := valuation.SeriesOptions{Years: req.HistoryYears, Period: req.Period}
	if opts.Years < 1 {
		return HistoryReport{}, &valuation.InvalidParametersError{Reason: fmt.Sprintf("history years must be at least 1, got %d", opts.Years)}
	}
	if err := req.Params.Validate(); err != nil {
		return HistoryReport{}, err
	}

	h, err := s.fetch(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("fetching statements failed")
		return HistoryReport{}, err
	}
	if h, err = s.resolve(ctx, h, opts.Intervals()); err != nil {
		return HistoryReport{}, err
	}

	series, err := valuation.ComputeHistoricalDCF(ctx, h, req.Params, opts, valuation.LogObserver{Logger: logger})
	if err != nil && ctx.Err() == nil {
		return HistoryReport{}, err
	}

	report := HistoryReport{
		RunID:  runID,
		Ticker: req.Ticker,
		Period: req.Period,
		Years:  req.HistoryYears,
		Params: req.Params,
		Points: make([]HistoryPoint, len(series.Dates)),
	}
	for i, res := range series.Ordered() {
		report.Points[i].Result = res
	}
	for _, sk := range series.Skips {
		report.Skipped = append(report.Skipped, SkippedPeriod{Offset: sk.Offset, Date: sk.Date, Kind: sk.Kind, Error: sk.Err.Error()})
	}
	if err != nil {
		return report, err
	}

	s.attachClosePrices(ctx, logger, req.Ticker, report.Points)
	logger.Info().Int("valued", len(report.Points)).Int("skipped", len(report.Skipped)).Msg("history complete")
	return report, nil
}

func (s *Service) attachClosePrices(ctx context.Context, logger zerolog.Logger, ticker string, points []HistoryPoint) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(closePriceWorkers)
	for i := range points {
		i := i
		g.Go(func() error {
			date := points[i].Result.Date
			p, err := s.repo.HistoricalClosePrice(gctx, ticker, date)
			if err != nil {
				logger.Warn().Err(err).Str("date", date).Msg("no close price")
				return nil
			}
			points[i].ClosePrice = &p
			points[i].Upside = upside(points[i].Result.SharePrice, p)
			return nil
		})
	}
	_ = g.Wait()
}

// Batch values every request with at most the configured number of workers.
// Items are returned in request order; failures are recorded per item.
func (s *Service) Batch(ctx context.Context, reqs []Request) []BatchItem {
	items := make([]BatchItem, len(reqs))
	p := pool.New().WithMaxGoroutines(s.workers)
	for i, req := range reqs {
		i, req := i, req
		p.Go(func() {
			item := BatchItem{Ticker: strings.ToUpper(strings.TrimSpace(req.Ticker))}
			v, err := s.Value(ctx, req)
			if err != nil {
				item.Err = err
				item.Error = err.Error()
			} else {
				item.Valuation = &v
			}
			items[i] = item
		})
	}
	p.Wait()
	return items
}

// fetch loads the four statement histories concurrently. The first
// repository error cancels the rest and is returned as is.
func (s *Service) fetch(ctx context.Context, req Request) (valuation.History, error) {
	h := valuation.History{Ticker: req.Ticker}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		h.Income, err = s.repo.IncomeStatements(gctx, req.Ticker, req.Period)
		return err
	})
	g.Go(func() (err error) {
		h.Balance, err = s.repo.BalanceStatements(gctx, req.Ticker, req.Period)
		return err
	})
	g.Go(func() (err error) {
		h.Cashflow, err = s.repo.CashflowStatements(gctx, req.Ticker, req.Period)
		return err
	})
	g.Go(func() (err error) {
		h.EV, err = s.repo.EnterpriseValueStatements(gctx, req.Ticker, req.Period)
		return err
	})
	if err := g.Wait(); err != nil {
		return valuation.History{}, err
	}
	return h, nil
}

// resolve offers absent fields of the first n periods to the resolver. The
// balance sheet always needs one extra period for the working capital change.
func (s *Service) resolve(ctx context.Context, h valuation.History, n int) (valuation.History, error) {
	if s.resolver == nil {
		return h, nil
	}
	var err error
	if h.Income, err = valuation.ResolveMissing(ctx, s.resolver, h.Ticker, valuation.StatementIncome, h.Income, n); err != nil {
		return h, err
	}
	if h.Balance, err = valuation.ResolveMissing(ctx, s.resolver, h.Ticker, valuation.StatementBalance, h.Balance, n+1); err != nil {
		return h, err
	}
	if h.Cashflow, err = valuation.ResolveMissing(ctx, s.resolver, h.Ticker, valuation.StatementCashflow, h.Cashflow, n); err != nil {
		return h, err
	}
	return h, nil
}

func normalize(req Request) Request {
	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))
	if req.Period == "" {
		req.Period = models.PeriodAnnual
	}
	return req
}

func upside(intrinsic, market decimal.Decimal) *decimal.Decimal {
	if !market.IsPositive() {
		return nil
	}
	u := intrinsic.Sub(market).Div(market)
	return &u
}

// IsRepositoryError reports whether err came from the statement source
// rather than from the valuation itself.
func IsRepositoryError(err error) bool {
	return ingest.IsUnavailable(err) || ingest.IsFormat(err)
}
