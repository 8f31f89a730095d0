package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/mauv0809/dcf/internal/models"
)

// Inputs is the statement window for a single valuation. Windows are
// most-recent-first; Balance needs the current and the prior period.
type Inputs struct {
	Ticker   string
	Income   []models.FinancialStatementRecord
	Balance  []models.FinancialStatementRecord
	Cashflow []models.FinancialStatementRecord
	EV       models.EnterpriseValueStatement
}

// ForecastYear is one projected year of unlevered free cash flow.
type ForecastYear struct {
	Year                 int             `json:"year"`
	EBIT                 decimal.Decimal `json:"ebit"`
	NonCashCharges       decimal.Decimal `json:"non_cash_charges"`
	WorkingCapitalChange decimal.Decimal `json:"working_capital_change"`
	CapitalExpenditure   decimal.Decimal `json:"capital_expenditure"`
	FreeCashFlow         decimal.Decimal `json:"free_cash_flow"`
	PresentValue         decimal.Decimal `json:"present_value"`
}

// Result is the valuation anchored at one statement date.
type Result struct {
	Date            string          `json:"date"`
	EnterpriseValue decimal.Decimal `json:"enterprise_value"`
	EquityValue     decimal.Decimal `json:"equity_value"`
	SharePrice      decimal.Decimal `json:"share_price"`

	TaxRate                decimal.Decimal `json:"tax_rate"`
	PresentValueOfFlows    decimal.Decimal `json:"present_value_of_flows"`
	TerminalValue          decimal.Decimal `json:"terminal_value"`
	PresentValueOfTerminal decimal.Decimal `json:"present_value_of_terminal"`
	Forecast               []ForecastYear  `json:"forecast"`
}

// UnleveredFreeCashFlow is EBIT after tax plus non-cash charges, the change in
// working capital and capital expenditure (negative for outflows).
func UnleveredFreeCashFlow(ebit, taxRate, nonCashCharges, cwc, capEx decimal.Decimal) decimal.Decimal {
	return ebit.Mul(decimal.NewFromInt(1).Sub(taxRate)).Add(nonCashCharges).Add(cwc).Add(capEx)
}

func checkWindow(s Statement, have, need int) error {
	if have < need {
		return &InsufficientHistoryError{Statement: s, Need: need, Have: have}
	}
	return nil
}

// ComputeDCF values the company at in.Income[0].Date. It returns the first
// error encountered and never a partial result. obs may be nil.
func ComputeDCF(in Inputs, p Parameters, obs Observer) (Result, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	if err := checkWindow(StatementIncome, len(in.Income), 1); err != nil {
		return Result{}, err
	}
	if err := checkWindow(StatementBalance, len(in.Balance), 2); err != nil {
		return Result{}, err
	}
	if err := checkWindow(StatementCashflow, len(in.Cashflow), 1); err != nil {
		return Result{}, err
	}
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	income, cashflow := in.Income[0], in.Cashflow[0]
	date := income.Date

	ebit, err := require(StatementIncome, FieldEBIT, income)
	if err != nil {
		return Result{}, err
	}

	taxExpense, err := require(StatementIncome, FieldIncomeTaxExpense, income)
	if err != nil {
		return Result{}, err
	}
	ebt, err := require(StatementIncome, FieldEarningsBeforeTax, income)
	if err != nil {
		return Result{}, err
	}
	if ebt.IsZero() {
		return Result{}, &DivisionByZeroError{Quantity: "tax rate", Field: FieldEarningsBeforeTax, Date: date, Value: ebt}
	}
	taxRate := taxExpense.Div(ebt)

	nonCashCharges, err := require(StatementCashflow, FieldDepreciationAmortization, cashflow)
	if err != nil {
		return Result{}, err
	}

	cwc, err := workingCapitalChange(in.Balance[0], in.Balance[1])
	if err != nil {
		return Result{}, err
	}

	capEx, err := require(StatementCashflow, FieldCapitalExpenditure, cashflow)
	if err != nil {
		return Result{}, err
	}

	one := decimal.NewFromInt(1)
	discount := one.Add(p.DiscountRate)
	decay := p.Decay()

	compound := one
	npvFlows := decimal.Zero
	forecast := make([]ForecastYear, 0, p.ForecastYears)
	for yr := 1; yr <= p.ForecastYears; yr++ {
		y := decimal.NewFromInt(int64(yr))
		earningsGrowth := one.Add(y.Mul(p.EarningsGrowthRate))

		ebit = ebit.Mul(earningsGrowth)
		nonCashCharges = nonCashCharges.Mul(earningsGrowth)
		cwc = cwc.Mul(decay)
		capEx = capEx.Mul(one.Add(y.Mul(p.CapExGrowthRate)))

		flow := UnleveredFreeCashFlow(ebit, taxRate, nonCashCharges, cwc, capEx)
		compound = compound.Mul(discount)
		pv := flow.Div(compound)

		fy := ForecastYear{
			Year:                 yr,
			EBIT:                 ebit,
			NonCashCharges:       nonCashCharges,
			WorkingCapitalChange: cwc,
			CapitalExpenditure:   capEx,
			FreeCashFlow:         flow,
			PresentValue:         pv,
		}
		forecast = append(forecast, fy)
		npvFlows = npvFlows.Add(pv)
		obs.ForecastYear(ForecastEvent{Ticker: in.Ticker, Date: date, Year: fy})
	}

	// Gordon growth on the last discounted flow, discounted one year past the horizon.
	lastPV := forecast[len(forecast)-1].PresentValue
	terminal := lastPV.Mul(one.Add(p.PerpetualGrowthRate)).Div(p.DiscountRate.Sub(p.PerpetualGrowthRate))
	npvTerminal := terminal.Div(compound.Mul(discount))

	enterpriseValue := npvTerminal.Add(npvFlows)

	debt, err := requireEV(FieldTotalDebt, in.EV)
	if err != nil {
		return Result{}, err
	}
	cash, err := requireEV(FieldCashAndEquivalents, in.EV)
	if err != nil {
		return Result{}, err
	}
	equityValue := enterpriseValue.Sub(debt).Add(cash)

	shares, err := requireEV(FieldNumberOfShares, in.EV)
	if err != nil {
		return Result{}, err
	}
	if !shares.IsPositive() {
		return Result{}, &DivisionByZeroError{Quantity: "share price", Field: FieldNumberOfShares, Date: in.EV.Date, Value: shares}
	}

	return Result{
		Date:                   date,
		EnterpriseValue:        enterpriseValue,
		EquityValue:            equityValue,
		SharePrice:             equityValue.Div(shares),
		TaxRate:                taxRate,
		PresentValueOfFlows:    npvFlows,
		TerminalValue:          terminal,
		PresentValueOfTerminal: npvTerminal,
		Forecast:               forecast,
	}, nil
}

// workingCapitalChange is the change in current assets (total minus
// non-current) between the prior and the current period.
func workingCapitalChange(cur, prev models.FinancialStatementRecord) (decimal.Decimal, error) {
	var vals [4]decimal.Decimal
	reads := []struct {
		rec   models.FinancialStatementRecord
		field Field
	}{
		{cur, FieldTotalAssets},
		{cur, FieldTotalNonCurrentAssets},
		{prev, FieldTotalAssets},
		{prev, FieldTotalNonCurrentAssets},
	}
	for i, r := range reads {
		v, err := require(StatementBalance, r.field, r.rec)
		if err != nil {
			return decimal.Zero, err
		}
		vals[i] = v
	}
	return vals[0].Sub(vals[1]).Sub(vals[2].Sub(vals[3])), nil
}
