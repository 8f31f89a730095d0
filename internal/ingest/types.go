package ingest

import "encoding/json"

// Row is one record of a provider statement; values are strings or json.Number.
type Row map[string]any

// statementResponse is the envelope of the financials/* endpoints.
type statementResponse struct {
	Symbol     string `json:"symbol"`
	Financials []Row  `json:"financials"`
}

// enterpriseValueResponse is the envelope of the enterprise-value endpoint.
type enterpriseValueResponse struct {
	Symbol           string `json:"symbol"`
	EnterpriseValues []Row  `json:"enterpriseValues"`
}

// historicalPriceResponse is the envelope of historical-price-full.
type historicalPriceResponse struct {
	Symbol     string            `json:"symbol"`
	Historical []HistoricalPrice `json:"historical"`
}

// HistoricalPrice is one daily bar; only the fields the valuation uses are decoded.
type HistoricalPrice struct {
	Date     string      `json:"date"`
	Close    json.Number `json:"close"`
	AdjClose json.Number `json:"adjClose"`
}

// realtimePriceResponse is the envelope of stock/real-time-price.
type realtimePriceResponse struct {
	Symbol string      `json:"symbol"`
	Price  json.Number `json:"price"`
}

// errorResponse is what the provider returns instead of data on a bad request.
type errorResponse struct {
	Message string `json:"Error Message"`
}

// Provider field names. Legacy v3 names first, current camelCase names as fallback.
var (
	colEBIT                  = []string{"EBIT", "ebit", "operatingIncome"}
	colIncomeTaxExpense      = []string{"Income Tax Expense", "incomeTaxExpense"}
	colEarningsBeforeTax     = []string{"Earnings before Tax", "incomeBeforeTax"}
	colTotalAssets           = []string{"Total assets", "totalAssets"}
	colTotalNonCurrentAssets = []string{"Total non-current assets", "totalNonCurrentAssets"}
	colDepreciation          = []string{"Depreciation & Amortization", "depreciationAndAmortization"}
	colCapitalExpenditure    = []string{"Capital Expenditure", "capitalExpenditure"}
	colTotalDebt             = []string{"+ Total Debt", "addTotalDebt", "totalDebt"}
	colCash                  = []string{"- Cash & Cash Equivalents", "minusCashAndCashEquivalents", "cashAndCashEquivalents"}
	colShares                = []string{"Number of Shares", "numberOfShares"}
	colStockPrice            = []string{"Stock Price", "stockPrice"}
	colMarketCap             = []string{"Market Capitalization", "marketCapitalization"}
	colEnterpriseValue       = []string{"Enterprise Value", "enterpriseValue"}
)
