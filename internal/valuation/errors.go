package valuation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind tags a valuation failure so callers can branch on it without string matching.
type Kind string

const (
	KindMissingInput           Kind = "missing_input"
	KindInsufficientHistory    Kind = "insufficient_history"
	KindDivisionByZero         Kind = "division_by_zero"
	KindDivergentTerminalValue Kind = "divergent_terminal_value"
	KindInvalidParameters      Kind = "invalid_parameters"
	KindUnknown                Kind = "unknown"
)

// Sentinels for errors.Is. Each typed error below matches exactly one of them.
var (
	ErrMissingInput           = errors.New("missing input")
	ErrInsufficientHistory    = errors.New("insufficient history")
	ErrDivisionByZero         = errors.New("division by zero")
	ErrDivergentTerminalValue = errors.New("divergent terminal value")
	ErrInvalidParameters      = errors.New("invalid parameters")
)

// MissingInputError reports a required statement field that is absent.
type MissingInputError struct {
	Statement Statement
	Field     Field
	Date      string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing %s.%s on %s", e.Statement, e.Field, e.Date)
}

func (e *MissingInputError) Is(target error) bool { return target == ErrMissingInput }
func (e *MissingInputError) Kind() Kind           { return KindMissingInput }

// InsufficientHistoryError reports a statement window shorter than the model needs.
type InsufficientHistoryError struct {
	Statement Statement
	Need      int
	Have      int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient %s history: need %d periods, have %d", e.Statement, e.Need, e.Have)
}

func (e *InsufficientHistoryError) Is(target error) bool { return target == ErrInsufficientHistory }
func (e *InsufficientHistoryError) Kind() Kind           { return KindInsufficientHistory }

// DivisionByZeroError reports a zero (or, for share counts, non-positive) divisor.
type DivisionByZeroError struct {
	Quantity string // what was being computed, e.g. "tax rate"
	Field    Field
	Date     string
	Value    decimal.Decimal
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("cannot compute %s on %s: %s is %s", e.Quantity, e.Date, e.Field, e.Value.String())
}

func (e *DivisionByZeroError) Is(target error) bool { return target == ErrDivisionByZero }
func (e *DivisionByZeroError) Kind() Kind           { return KindDivisionByZero }

// DivergentTerminalValueError reports a perpetual growth rate at or above the discount rate.
type DivergentTerminalValueError struct {
	DiscountRate        decimal.Decimal
	PerpetualGrowthRate decimal.Decimal
}

func (e *DivergentTerminalValueError) Error() string {
	return fmt.Sprintf("terminal value diverges: perpetual growth rate %s must be below discount rate %s",
		e.PerpetualGrowthRate.String(), e.DiscountRate.String())
}

func (e *DivergentTerminalValueError) Is(target error) bool { return target == ErrDivergentTerminalValue }
func (e *DivergentTerminalValueError) Kind() Kind           { return KindDivergentTerminalValue }

// InvalidParametersError reports model parameters outside their domain.
type InvalidParametersError struct {
	Reason string
}

func (e *InvalidParametersError) Error() string { return "invalid parameters: " + e.Reason }

func (e *InvalidParametersError) Is(target error) bool { return target == ErrInvalidParameters }
func (e *InvalidParametersError) Kind() Kind           { return KindInvalidParameters }

// KindOf returns the Kind of the first valuation error in err's chain.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// IsDomainError reports whether err originates from the valuation model itself
// rather than from a data source or the caller.
func IsDomainError(err error) bool {
	return KindOf(err) != KindUnknown
}
