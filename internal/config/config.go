package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/mauv0809/dcf/internal/ingest"
	"github.com/mauv0809/dcf/internal/logging"
	"github.com/mauv0809/dcf/internal/models"
	"github.com/mauv0809/dcf/internal/valuation"
)

const EnvPrefix = "DCF"

// Config keys.
const (
	KeyDiscountRate        = "discount_rate"
	KeyForecastYears       = "forecast_years"
	KeyEarningsGrowthRate  = "earnings_growth_rate"
	KeyCapExGrowthRate     = "capex_growth_rate"
	KeyPerpetualGrowthRate = "perpetual_growth_rate"
	KeyWorkingCapitalDecay = "working_capital_decay"
	KeyPeriod              = "period"
	KeyHistoryYears        = "history_years"
	KeyAPIKey              = "api_key"
	KeyBaseURL             = "base_url"
	KeyRateLimit           = "rate_limit"
	KeyHTTPTimeout         = "http_timeout"
	KeyRetries             = "retries"
	KeyQuoteProvider       = "quote.provider"
	KeyQuoteTTL            = "quote.ttl"
	KeyQuoteCacheSize      = "quote.cache_size"
	KeyBatchWorkers        = "batch.workers"
	KeyServerPort          = "server.port"
	KeyLogLevel            = "log.level"
	KeyLogFormat           = "log.format"
	KeyOverrides           = "overrides"
	KeyFormat              = "format"
)

type QuoteConfig struct {
	Provider  string // fmp, yahoo or none
	TTL       time.Duration
	CacheSize int
}

// Config is the resolved application configuration.
type Config struct {
	Params       valuation.Parameters
	Period       models.Period
	HistoryYears int

	APIKey      string
	BaseURL     string
	RateLimit   float64
	HTTPTimeout time.Duration
	Retries     int

	Quote        QuoteConfig
	BatchWorkers int
	ServerPort   string
	Log          logging.Config
	Format       string

	// Overrides feed the static missing-field resolver, keyed TICKER/date/field.
	Overrides map[string]string
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	p := valuation.DefaultParameters()
	v.SetDefault(KeyDiscountRate, p.DiscountRate.String())
	v.SetDefault(KeyForecastYears, p.ForecastYears)
	v.SetDefault(KeyEarningsGrowthRate, p.EarningsGrowthRate.String())
	v.SetDefault(KeyCapExGrowthRate, p.CapExGrowthRate.String())
	v.SetDefault(KeyPerpetualGrowthRate, p.PerpetualGrowthRate.String())
	v.SetDefault(KeyWorkingCapitalDecay, "")
	v.SetDefault(KeyPeriod, string(models.PeriodAnnual))
	v.SetDefault(KeyHistoryYears, 5)
	v.SetDefault(KeyBaseURL, ingest.DefaultBaseURL)
	v.SetDefault(KeyRateLimit, 5.0)
	v.SetDefault(KeyHTTPTimeout, 30*time.Second)
	v.SetDefault(KeyRetries, 3)
	v.SetDefault(KeyQuoteProvider, "fmp")
	v.SetDefault(KeyQuoteTTL, time.Minute)
	v.SetDefault(KeyQuoteCacheSize, 256)
	v.SetDefault(KeyBatchWorkers, 4)
	v.SetDefault(KeyServerPort, "8080")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "auto")
	v.SetDefault(KeyFormat, "table")
}

// BindEnv maps DCF_* variables onto keys. The API key is also read from
// FMP_API_KEY and the port from PORT.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(KeyAPIKey, EnvPrefix+"_API_KEY", "FMP_API_KEY"); err != nil {
		return err
	}
	return v.BindEnv(KeyServerPort, EnvPrefix+"_SERVER_PORT", "PORT")
}

// ReadFile merges a YAML config file. A missing file is an error only when
// required is set.
func ReadFile(v *viper.Viper, path string, required bool) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !required && (errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)) {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

func decimalKey(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %q is not a number", key, raw)
	}
	return d, nil
}

// Load resolves the configuration from v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	var err error

	rates := []struct {
		key string
		dst *decimal.Decimal
	}{
		{KeyDiscountRate, &cfg.Params.DiscountRate},
		{KeyEarningsGrowthRate, &cfg.Params.EarningsGrowthRate},
		{KeyCapExGrowthRate, &cfg.Params.CapExGrowthRate},
		{KeyPerpetualGrowthRate, &cfg.Params.PerpetualGrowthRate},
	}
	for _, r := range rates {
		if *r.dst, err = decimalKey(v, r.key); err != nil {
			return Config{}, err
		}
	}
	cfg.Params.ForecastYears = v.GetInt(KeyForecastYears)
	if strings.TrimSpace(v.GetString(KeyWorkingCapitalDecay)) != "" {
		decay, err := decimalKey(v, KeyWorkingCapitalDecay)
		if err != nil {
			return Config{}, err
		}
		cfg.Params.WorkingCapitalDecay = decimal.NewNullDecimal(decay)
	}

	if cfg.Period, err = models.ParsePeriod(v.GetString(KeyPeriod)); err != nil {
		return Config{}, err
	}
	cfg.HistoryYears = v.GetInt(KeyHistoryYears)

	cfg.APIKey = v.GetString(KeyAPIKey)
	cfg.BaseURL = v.GetString(KeyBaseURL)
	cfg.RateLimit = v.GetFloat64(KeyRateLimit)
	cfg.HTTPTimeout = v.GetDuration(KeyHTTPTimeout)
	cfg.Retries = v.GetInt(KeyRetries)
	if cfg.Retries < 0 {
		return Config{}, fmt.Errorf("%s must not be negative", KeyRetries)
	}

	cfg.Quote = QuoteConfig{
		Provider:  strings.ToLower(strings.TrimSpace(v.GetString(KeyQuoteProvider))),
		TTL:       v.GetDuration(KeyQuoteTTL),
		CacheSize: v.GetInt(KeyQuoteCacheSize),
	}
	switch cfg.Quote.Provider {
	case "fmp", "yahoo", "none":
	default:
		return Config{}, fmt.Errorf("%s: %q (want fmp, yahoo or none)", KeyQuoteProvider, cfg.Quote.Provider)
	}

	cfg.BatchWorkers = v.GetInt(KeyBatchWorkers)
	cfg.ServerPort = v.GetString(KeyServerPort)
	cfg.Log = logging.Config{Level: v.GetString(KeyLogLevel), Format: v.GetString(KeyLogFormat)}
	cfg.Format = v.GetString(KeyFormat)
	cfg.Overrides = v.GetStringMapString(KeyOverrides)
	return cfg, nil
}
