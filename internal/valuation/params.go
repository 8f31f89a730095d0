package valuation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultWorkingCapitalDecay is the factor applied to the change in working
// capital each forecast year. It is a placeholder, not a derived quantity.
var DefaultWorkingCapitalDecay = decimal.RequireFromString("0.7")

// Parameters configures one DCF run. Rates are fractions (0.10 == 10%).
type Parameters struct {
	DiscountRate        decimal.Decimal `json:"discount_rate"`
	ForecastYears       int             `json:"forecast_years"`
	EarningsGrowthRate  decimal.Decimal `json:"earnings_growth_rate"`
	CapExGrowthRate     decimal.Decimal `json:"capex_growth_rate"`
	PerpetualGrowthRate decimal.Decimal `json:"perpetual_growth_rate"`

	// WorkingCapitalDecay overrides DefaultWorkingCapitalDecay when Valid.
	WorkingCapitalDecay decimal.NullDecimal `json:"working_capital_decay"`
}

// DefaultParameters returns the model defaults used by the CLI and server.
func DefaultParameters() Parameters {
	return Parameters{
		DiscountRate:        decimal.RequireFromString("0.10"),
		ForecastYears:       5,
		EarningsGrowthRate:  decimal.RequireFromString("0.05"),
		CapExGrowthRate:     decimal.RequireFromString("0.045"),
		PerpetualGrowthRate: decimal.RequireFromString("0.05"),
	}
}

// Decay returns the effective working-capital decay factor.
func (p Parameters) Decay() decimal.Decimal {
	if p.WorkingCapitalDecay.Valid {
		return p.WorkingCapitalDecay.Decimal
	}
	return DefaultWorkingCapitalDecay
}

// Validate reports parameters the model cannot run with. A perpetual growth
// rate at or above the discount rate yields a DivergentTerminalValueError.
func (p Parameters) Validate() error {
	if p.ForecastYears < 1 {
		return &InvalidParametersError{Reason: fmt.Sprintf("forecast years must be at least 1, got %d", p.ForecastYears)}
	}
	if p.DiscountRate.LessThanOrEqual(decimal.NewFromInt(-1)) {
		return &InvalidParametersError{Reason: "discount rate must be greater than -1"}
	}
	if d := p.Decay(); d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return &InvalidParametersError{Reason: "working capital decay must be within [0, 1]"}
	}
	if p.DiscountRate.LessThanOrEqual(p.PerpetualGrowthRate) {
		return &DivergentTerminalValueError{DiscountRate: p.DiscountRate, PerpetualGrowthRate: p.PerpetualGrowthRate}
	}
	return nil
}
