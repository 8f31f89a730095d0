package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/mauv0809/dcf/internal/models"
	"github.com/mauv0809/dcf/internal/valuation"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	if err := BindEnv(v); err != nil {
		t.Fatalf("binding env: %v", err)
	}
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def := valuation.DefaultParameters()
	if !cfg.Params.DiscountRate.Equal(def.DiscountRate) || cfg.Params.ForecastYears != def.ForecastYears {
		t.Errorf("expected default params, got %+v", cfg.Params)
	}
	if cfg.Params.WorkingCapitalDecay.Valid {
		t.Error("decay should default to unset")
	}
	if cfg.Period != models.PeriodAnnual || cfg.HistoryYears != 5 {
		t.Errorf("unexpected period/history: %s %d", cfg.Period, cfg.HistoryYears)
	}
	if cfg.Quote.Provider != "fmp" || cfg.Quote.TTL != time.Minute {
		t.Errorf("unexpected quote config %+v", cfg.Quote)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dcf.yaml")
	doc := `
discount_rate: 0.08
forecast_years: 10
working_capital_decay: 0.5
period: quarter
quote:
  provider: yahoo
  ttl: 5m
overrides:
  AAPL/2020-09-26/ebit: "66288000000"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	v := newViper(t)
	if err := ReadFile(v, path, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Params.DiscountRate.Equal(decimal.RequireFromString("0.08")) || cfg.Params.ForecastYears != 10 {
		t.Errorf("unexpected params %+v", cfg.Params)
	}
	if !cfg.Params.Decay().Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("expected decay 0.5, got %s", cfg.Params.Decay())
	}
	if cfg.Period != models.PeriodQuarter || cfg.Quote.Provider != "yahoo" || cfg.Quote.TTL != 5*time.Minute {
		t.Errorf("unexpected config %+v", cfg)
	}
	if len(cfg.Overrides) != 1 {
		t.Errorf("expected 1 override, got %v", cfg.Overrides)
	}
}

func TestReadFile_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	if err := ReadFile(viper.New(), missing, false); err != nil {
		t.Errorf("optional missing file should be ignored, got %v", err)
	}
	if err := ReadFile(viper.New(), missing, true); err == nil {
		t.Error("required missing file should fail")
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("FMP_API_KEY", "from-fmp")
	t.Setenv("DCF_PERPETUAL_GROWTH_RATE", "0.01")
	t.Setenv("DCF_BATCH_WORKERS", "9")

	cfg, err := Load(newViper(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKey != "from-fmp" {
		t.Errorf("expected api key from FMP_API_KEY, got %q", cfg.APIKey)
	}
	if !cfg.Params.PerpetualGrowthRate.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("unexpected perpetual growth %s", cfg.Params.PerpetualGrowthRate)
	}
	if cfg.BatchWorkers != 9 {
		t.Errorf("expected 9 workers, got %d", cfg.BatchWorkers)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string][2]string{
		"rate":     {KeyDiscountRate, "ten percent"},
		"period":   {KeyPeriod, "weekly"},
		"provider": {KeyQuoteProvider, "bloomberg"},
		"retries":  {KeyRetries, "-1"},
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			v := newViper(t)
			v.Set(kv[0], kv[1])
			if _, err := Load(v); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
