package ingest

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mauv0809/dcf/internal/models"
)

// getString safely extracts a string from a row.
func getString(row Row, col string) string {
	v, ok := row[col]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// getDecimal extracts the first present, parseable value among cols.
// Absent, null, empty and unparseable values are reported as nil.
func getDecimal(row Row, cols ...string) *decimal.Decimal {
	for _, col := range cols {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case json.Number:
			if d, err := decimal.NewFromString(t.String()); err == nil {
				return &d
			}
		case float64:
			d := decimal.NewFromFloat(t)
			return &d
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				continue
			}
			if d, err := decimal.NewFromString(s); err == nil {
				return &d
			}
		}
	}
	return nil
}

// getDate normalizes the row date to YYYY-MM-DD. Rows without a usable date return "".
func getDate(row Row) string {
	s := strings.TrimSpace(getString(row, "date"))
	if s == "" {
		return ""
	}
	formats := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		time.RFC3339,
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

func sortRecentFirst(recs []models.FinancialStatementRecord) {
	slices.SortStableFunc(recs, func(a, b models.FinancialStatementRecord) int {
		return strings.Compare(b.Date, a.Date)
	})
}

// ParseIncomeStatements maps income statement rows to records, most recent first.
func ParseIncomeStatements(rows []Row) []models.FinancialStatementRecord {
	recs := make([]models.FinancialStatementRecord, 0, len(rows))
	for _, row := range rows {
		date := getDate(row)
		if date == "" {
			continue // Skip rows without a date
		}
		recs = append(recs, models.FinancialStatementRecord{
			Date:              date,
			EBIT:              getDecimal(row, colEBIT...),
			IncomeTaxExpense:  getDecimal(row, colIncomeTaxExpense...),
			EarningsBeforeTax: getDecimal(row, colEarningsBeforeTax...),
		})
	}
	sortRecentFirst(recs)
	return recs
}

// ParseBalanceStatements maps balance sheet rows to records, most recent first.
func ParseBalanceStatements(rows []Row) []models.FinancialStatementRecord {
	recs := make([]models.FinancialStatementRecord, 0, len(rows))
	for _, row := range rows {
		date := getDate(row)
		if date == "" {
			continue
		}
		recs = append(recs, models.FinancialStatementRecord{
			Date:                  date,
			TotalAssets:           getDecimal(row, colTotalAssets...),
			TotalNonCurrentAssets: getDecimal(row, colTotalNonCurrentAssets...),
		})
	}
	sortRecentFirst(recs)
	return recs
}

// ParseCashflowStatements maps cash flow rows to records, most recent first.
func ParseCashflowStatements(rows []Row) []models.FinancialStatementRecord {
	recs := make([]models.FinancialStatementRecord, 0, len(rows))
	for _, row := range rows {
		date := getDate(row)
		if date == "" {
			continue
		}
		recs = append(recs, models.FinancialStatementRecord{
			Date:                     date,
			DepreciationAmortization: getDecimal(row, colDepreciation...),
			CapitalExpenditure:       getDecimal(row, colCapitalExpenditure...),
		})
	}
	sortRecentFirst(recs)
	return recs
}

// ParseEnterpriseValues maps enterprise value rows to statements, most recent first.
func ParseEnterpriseValues(rows []Row) []models.EnterpriseValueStatement {
	out := make([]models.EnterpriseValueStatement, 0, len(rows))
	for _, row := range rows {
		date := getDate(row)
		if date == "" {
			continue
		}
		out = append(out, models.EnterpriseValueStatement{
			Date:               date,
			TotalDebt:          getDecimal(row, colTotalDebt...),
			CashAndEquivalents: getDecimal(row, colCash...),
			NumberOfShares:     getDecimal(row, colShares...),
			StockPrice:         getDecimal(row, colStockPrice...),
			MarketCap:          getDecimal(row, colMarketCap...),
			EnterpriseValue:    getDecimal(row, colEnterpriseValue...),
		})
	}
	slices.SortStableFunc(out, func(a, b models.EnterpriseValueStatement) int {
		return strings.Compare(b.Date, a.Date)
	})
	return out
}

// parseClose returns the close of the most recent bar in prices.
func parseClose(prices []HistoricalPrice) (decimal.Decimal, string, error) {
	latest := -1
	for i, p := range prices {
		if p.Close == "" {
			continue
		}
		if latest < 0 || p.Date > prices[latest].Date {
			latest = i
		}
	}
	if latest < 0 {
		return decimal.Zero, "", ErrPriceNotFound
	}
	d, err := decimal.NewFromString(prices[latest].Close.String())
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("parsing close %q: %w", prices[latest].Close, err)
	}
	return d, prices[latest].Date, nil
}
