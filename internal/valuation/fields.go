package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/mauv0809/dcf/internal/models"
)

// Statement names the statement a field is read from.
type Statement string

const (
	StatementIncome          Statement = "income"
	StatementBalance         Statement = "balance"
	StatementCashflow        Statement = "cashflow"
	StatementEnterpriseValue Statement = "enterprise_value"
)

// Field names a decimal field of a statement record.
type Field string

const (
	FieldEBIT                     Field = "ebit"
	FieldIncomeTaxExpense         Field = "income_tax_expense"
	FieldEarningsBeforeTax        Field = "earnings_before_tax"
	FieldTotalAssets              Field = "total_assets"
	FieldTotalNonCurrentAssets    Field = "total_non_current_assets"
	FieldDepreciationAmortization Field = "depreciation_amortization"
	FieldCapitalExpenditure       Field = "capital_expenditure"
	FieldTotalDebt                Field = "total_debt"
	FieldCashAndEquivalents       Field = "cash_and_equivalents"
	FieldNumberOfShares           Field = "number_of_shares"
)

// RequiredFields lists the fields the model reads from each statement kind.
func RequiredFields(s Statement) []Field {
	switch s {
	case StatementIncome:
		return []Field{FieldEBIT, FieldIncomeTaxExpense, FieldEarningsBeforeTax}
	case StatementBalance:
		return []Field{FieldTotalAssets, FieldTotalNonCurrentAssets}
	case StatementCashflow:
		return []Field{FieldDepreciationAmortization, FieldCapitalExpenditure}
	case StatementEnterpriseValue:
		return []Field{FieldTotalDebt, FieldCashAndEquivalents, FieldNumberOfShares}
	}
	return nil
}

// slot returns the address of the record field named f, or nil if f is not a
// statement record field.
func (f Field) slot(r *models.FinancialStatementRecord) **decimal.Decimal {
	switch f {
	case FieldEBIT:
		return &r.EBIT
	case FieldIncomeTaxExpense:
		return &r.IncomeTaxExpense
	case FieldEarningsBeforeTax:
		return &r.EarningsBeforeTax
	case FieldTotalAssets:
		return &r.TotalAssets
	case FieldTotalNonCurrentAssets:
		return &r.TotalNonCurrentAssets
	case FieldDepreciationAmortization:
		return &r.DepreciationAmortization
	case FieldCapitalExpenditure:
		return &r.CapitalExpenditure
	}
	return nil
}

// Get returns the value of f on r, or nil when absent or not a record field.
func (f Field) Get(r models.FinancialStatementRecord) *decimal.Decimal {
	if p := f.slot(&r); p != nil {
		return *p
	}
	return nil
}

func (f Field) evSlot(ev *models.EnterpriseValueStatement) **decimal.Decimal {
	switch f {
	case FieldTotalDebt:
		return &ev.TotalDebt
	case FieldCashAndEquivalents:
		return &ev.CashAndEquivalents
	case FieldNumberOfShares:
		return &ev.NumberOfShares
	}
	return nil
}

func require(s Statement, f Field, r models.FinancialStatementRecord) (decimal.Decimal, error) {
	v := f.Get(r)
	if v == nil {
		return decimal.Zero, &MissingInputError{Statement: s, Field: f, Date: r.Date}
	}
	return *v, nil
}

func requireEV(f Field, ev models.EnterpriseValueStatement) (decimal.Decimal, error) {
	p := f.evSlot(&ev)
	if p == nil || *p == nil {
		return decimal.Zero, &MissingInputError{Statement: StatementEnterpriseValue, Field: f, Date: ev.Date}
	}
	return **p, nil
}
