package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mauv0809/dcf/internal/analyst"
	"github.com/mauv0809/dcf/internal/config"
	"github.com/mauv0809/dcf/internal/ingest"
	"github.com/mauv0809/dcf/internal/logging"
	"github.com/mauv0809/dcf/internal/quote"
	"github.com/mauv0809/dcf/internal/render"
	"github.com/mauv0809/dcf/internal/valuation"
)

const defaultConfigFile = "dcf.yaml"

// app carries state shared by every command.
type app struct {
	v           *viper.Viper
	cfgFile     string
	interactive bool
	loadedEnv   bool

	cfg    config.Config
	logger zerolog.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(a *app) *cobra.Command {
	a.v = viper.New()
	if a.stdin == nil {
		a.stdin = os.Stdin
	}
	if a.stdout == nil {
		a.stdout = os.Stdout
	}
	if a.stderr == nil {
		a.stderr = os.Stderr
	}

	root := &cobra.Command{
		Use:           "dcf",
		Short:         "Discounted cash flow valuation from financialmodelingprep.com statements",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	def := valuation.DefaultParameters()
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./"+defaultConfigFile+" if present)")
	pf.Bool("interactive", false, "prompt for statement fields the data source left empty")
	pf.String("discount-rate", def.DiscountRate.String(), "discount rate as a fraction")
	pf.Int("forecast-years", def.ForecastYears, "years to project")
	pf.String("earnings-growth-rate", def.EarningsGrowthRate.String(), "yearly EBIT growth rate")
	pf.String("capex-growth-rate", def.CapExGrowthRate.String(), "yearly capital expenditure growth rate")
	pf.String("perpetual-growth-rate", def.PerpetualGrowthRate.String(), "terminal growth rate")
	pf.String("working-capital-decay", "", "yearly working capital change factor (default 0.7)")
	pf.String("period", "annual", "statement period: annual or quarter")
	pf.Int("history-years", 5, "years covered by the history command")
	pf.String("api-key", "", "FMP API key (or FMP_API_KEY)")
	pf.String("base-url", ingest.DefaultBaseURL, "FMP API base URL")
	pf.Float64("rate-limit", 5, "max FMP requests per second")
	pf.Duration("http-timeout", 30*time.Second, "per-request timeout")
	pf.Int("retries", 3, "retries for failed FMP requests")
	pf.String("quote-provider", "fmp", "market price source: fmp, yahoo or none")
	pf.StringP("format", "f", "table", "output format: table, json, markdown or html")
	pf.String("log-level", "info", "log level")
	pf.String("log-format", "auto", "log format: console, json or auto")

	bindings := map[string]string{
		config.KeyDiscountRate:        "discount-rate",
		config.KeyForecastYears:       "forecast-years",
		config.KeyEarningsGrowthRate:  "earnings-growth-rate",
		config.KeyCapExGrowthRate:     "capex-growth-rate",
		config.KeyPerpetualGrowthRate: "perpetual-growth-rate",
		config.KeyWorkingCapitalDecay: "working-capital-decay",
		config.KeyPeriod:              "period",
		config.KeyHistoryYears:        "history-years",
		config.KeyAPIKey:              "api-key",
		config.KeyBaseURL:             "base-url",
		config.KeyRateLimit:           "rate-limit",
		config.KeyHTTPTimeout:         "http-timeout",
		config.KeyRetries:             "retries",
		config.KeyQuoteProvider:       "quote-provider",
		config.KeyFormat:              "format",
		config.KeyLogLevel:            "log-level",
		config.KeyLogFormat:           "log-format",
	}
	mustBind(a.v, pf, bindings)
	if err := a.v.BindPFlag("interactive", pf.Lookup("interactive")); err != nil {
		panic(err)
	}

	root.AddCommand(
		newValueCmd(a),
		newHistoryCmd(a),
		newBatchCmd(a),
		newServeCmd(a),
	)
	return root
}

func mustBind(v *viper.Viper, fs *pflag.FlagSet, bindings map[string]string) {
	for key, name := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

// init resolves configuration and logging once flags are parsed.
func (a *app) init() error {
	config.SetDefaults(a.v)
	if err := config.BindEnv(a.v); err != nil {
		return err
	}
	path, required := a.cfgFile, true
	if path == "" {
		path, required = defaultConfigFile, false
	}
	if err := config.ReadFile(a.v, path, required); err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.interactive = a.v.GetBool("interactive")

	logger, err := logging.New(cfg.Log, a.stderr)
	if err != nil {
		return err
	}
	a.logger = logger
	if !a.loadedEnv {
		logger.Debug().Msg("no .env file found, using environment variables")
	}
	return nil
}

func (a *app) client() (*ingest.Client, error) {
	if a.cfg.APIKey == "" {
		return nil, errors.New("FMP API key is required (set FMP_API_KEY, DCF_API_KEY or --api-key)")
	}
	return ingest.NewClient(a.cfg.APIKey,
		ingest.WithBaseURL(a.cfg.BaseURL),
		ingest.WithTimeout(a.cfg.HTTPTimeout),
		ingest.WithRateLimit(a.cfg.RateLimit),
		ingest.WithRetries(uint64(a.cfg.Retries), 0),
		ingest.WithLogger(a.logger.With().Str("component", "fmp").Logger()),
	), nil
}

func (a *app) quotes(client *ingest.Client) quote.Source {
	var src quote.Source
	switch a.cfg.Quote.Provider {
	case "fmp":
		src = quote.NewFMPSource(client)
	case "yahoo":
		src = quote.NewYahooSource(a.cfg.HTTPTimeout)
	default:
		return nil
	}
	return quote.NewCacheSource(src, a.cfg.Quote.TTL, a.cfg.Quote.CacheSize)
}

func (a *app) resolver(allowPrompt bool) (valuation.MissingFieldResolver, error) {
	var chain analyst.ChainResolver
	if len(a.cfg.Overrides) > 0 {
		static, err := analyst.ParseOverrides(a.cfg.Overrides)
		if err != nil {
			return nil, err
		}
		chain = append(chain, static)
	}
	if a.interactive {
		if allowPrompt {
			chain = append(chain, newPromptResolver(a.stdin, a.stderr))
		} else {
			a.logger.Warn().Msg("--interactive is ignored by this command")
		}
	}
	if len(chain) == 0 {
		return nil, nil
	}
	return chain, nil
}

// service wires the FMP client, price source and resolvers.
func (a *app) service(allowPrompt bool) (*analyst.Service, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}
	res, err := a.resolver(allowPrompt)
	if err != nil {
		return nil, err
	}
	opts := []analyst.Option{
		analyst.WithLogger(a.logger),
		analyst.WithWorkers(a.cfg.BatchWorkers),
	}
	if q := a.quotes(client); q != nil {
		opts = append(opts, analyst.WithQuoteSource(q))
	}
	if res != nil {
		opts = append(opts, analyst.WithResolver(res))
	}
	return analyst.NewService(client, opts...), nil
}

func (a *app) renderer() (render.Renderer, error) {
	color := false
	if f, ok := a.stdout.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}
	return render.New(a.cfg.Format, render.Options{Color: color, PrettyJSON: true})
}

func (a *app) request(ticker string) analyst.Request {
	return analyst.Request{
		Ticker:       ticker,
		Period:       a.cfg.Period,
		Params:       a.cfg.Params,
		HistoryYears: a.cfg.HistoryYears,
	}
}
