package amortization

import (
	"errors"
	"fmt"

	"github.com/iwvelando/emi-optimizer/pkg/constants"
)

// Validation failures for LoanParameters.
var (
	ErrInvalidPrincipal  = errors.New("principal must be greater than zero")
	ErrInvalidDuration   = fmt.Errorf("duration must be between 1 and %d months", constants.MaxDurationMonths)
	ErrInvalidRate       = errors.New("annual interest rate cannot be negative")
	ErrInvalidStart      = errors.New("invalid loan start")
	ErrInvalidManualEMI  = errors.New("manual EMI cannot be negative")
	ErrNonFiniteArgument = errors.New("loan parameters must be finite numbers")
)

// ErrNumericInstability is returned when the EMI formula produces NaN or
// infinity, typically for extreme durations combined with near-zero rates.
var ErrNumericInstability = errors.New("could not calculate EMI: adjust the duration or rate")

// ValidationError reports a malformed or out-of-range loan parameter.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}
