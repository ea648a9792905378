// Package amortization computes EMIs and month-by-month amortization
// schedules, including schedules altered by prepayments and EMI changes.
package amortization

import (
	"fmt"
	"math"

	"github.com/iwvelando/emi-optimizer/pkg/constants"
	"github.com/iwvelando/emi-optimizer/pkg/datetime"
	"github.com/iwvelando/emi-optimizer/pkg/mathutil"
)

// LoanParameters describes the loan being amortized.
type LoanParameters struct {
	Principal      float64 `json:"principal" yaml:"principal" mapstructure:"principal"`
	AnnualRate     float64 `json:"annualRate" yaml:"annualRate" mapstructure:"annualRate"`
	DurationMonths int     `json:"durationMonths" yaml:"durationMonths" mapstructure:"durationMonths"`
	// ManualEMI overrides the computed EMI when positive.
	ManualEMI float64 `json:"manualEmi,omitempty" yaml:"manualEmi,omitempty" mapstructure:"manualEmi"`
	// StartMonth is the 0-indexed calendar month of the first installment.
	StartMonth int `json:"startMonth" yaml:"startMonth" mapstructure:"startMonth"`
	StartYear  int `json:"startYear" yaml:"startYear" mapstructure:"startYear"`
}

// Validate checks the parameters before any scheduling takes place.
func (p LoanParameters) Validate() error {
	if !mathutil.IsFinite(p.Principal) || !mathutil.IsFinite(p.AnnualRate) || !mathutil.IsFinite(p.ManualEMI) {
		return invalid("parameters", ErrNonFiniteArgument)
	}
	if p.Principal <= 0 {
		return invalid("principal", ErrInvalidPrincipal)
	}
	if p.DurationMonths <= 0 || p.DurationMonths > constants.MaxDurationMonths {
		return invalid("durationMonths", ErrInvalidDuration)
	}
	if p.AnnualRate < 0 {
		return invalid("annualRate", ErrInvalidRate)
	}
	if p.ManualEMI < 0 {
		return invalid("manualEmi", ErrInvalidManualEMI)
	}
	if err := datetime.ValidateStart(p.StartYear, p.StartMonth); err != nil {
		return invalid("start", fmt.Errorf("%w: %v", ErrInvalidStart, err))
	}
	return nil
}

// MonthlyRate converts an annual percentage rate into a monthly fraction.
func MonthlyRate(annualInterestRate float64) float64 {
	return annualInterestRate / (constants.PercentageMultiplier * constants.MonthsPerYear)
}

// CalculateMonthlyPayment calculates the monthly payment for a loan using the standard amortization formula.
func CalculateMonthlyPayment(principal, annualInterestRate float64, termMonths int) float64 {
	if annualInterestRate == 0 {
		// For zero interest, simply divide the principal by term
		return principal / float64(termMonths)
	}

	periodicInterestRate := MonthlyRate(annualInterestRate)
	power := math.Pow(1.00+periodicInterestRate, float64(termMonths))
	return principal * periodicInterestRate * power / (power - 1.00)
}

// CalculateInterestPayment calculates the interest accrued on a balance for one month.
func CalculateInterestPayment(remainingPrincipal, annualInterestRate float64) float64 {
	return remainingPrincipal * MonthlyRate(annualInterestRate)
}
