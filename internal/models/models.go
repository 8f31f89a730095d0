package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Period is the reporting granularity of a statement history.
type Period string

const (
	PeriodAnnual  Period = "annual"
	PeriodQuarter Period = "quarter"
)

// ParsePeriod accepts "annual" or "quarter" (case-insensitive). Empty means annual.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "annual", "year", "yearly":
		return PeriodAnnual, nil
	case "quarter", "quarterly":
		return PeriodQuarter, nil
	}
	return "", fmt.Errorf("invalid period %q (want annual or quarter)", s)
}

// IntervalsPerYear is the number of statements a single year spans.
func (p Period) IntervalsPerYear() int {
	if p == PeriodQuarter {
		return 4
	}
	return 1
}

// FinancialStatementRecord is one reporting period of an income, balance sheet
// or cash flow statement. A nil field was absent in the source data.
type FinancialStatementRecord struct {
	Date string `json:"date"` // period end, YYYY-MM-DD

	// Income statement
	EBIT              *decimal.Decimal `json:"ebit,omitempty"`
	IncomeTaxExpense  *decimal.Decimal `json:"income_tax_expense,omitempty"`
	EarningsBeforeTax *decimal.Decimal `json:"earnings_before_tax,omitempty"`

	// Balance sheet
	TotalAssets           *decimal.Decimal `json:"total_assets,omitempty"`
	TotalNonCurrentAssets *decimal.Decimal `json:"total_non_current_assets,omitempty"`

	// Cash flow statement
	DepreciationAmortization *decimal.Decimal `json:"depreciation_amortization,omitempty"`
	CapitalExpenditure       *decimal.Decimal `json:"capital_expenditure,omitempty"`
}

// EnterpriseValueStatement holds the capital structure for one period.
type EnterpriseValueStatement struct {
	Date               string           `json:"date"`
	TotalDebt          *decimal.Decimal `json:"total_debt,omitempty"`
	CashAndEquivalents *decimal.Decimal `json:"cash_and_equivalents,omitempty"`
	NumberOfShares     *decimal.Decimal `json:"number_of_shares,omitempty"`

	// As reported by the provider; informational only.
	StockPrice      *decimal.Decimal `json:"stock_price,omitempty"`
	MarketCap       *decimal.Decimal `json:"market_cap,omitempty"`
	EnterpriseValue *decimal.Decimal `json:"enterprise_value,omitempty"`
}

// Dec returns a pointer to d. Handy for building records in code and tests.
func Dec(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// DecFloat returns a pointer to the decimal representation of f.
func DecFloat(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}
