package validation

import (
	"fmt"
)

// EventInfo is the subset of a configured event needed for validation.
type EventInfo struct {
	Kind  string
	Month int
}

// ValidateEventMonths returns a warning for every event that falls on or
// after the end of the loan term, where it can never take effect.
func ValidateEventMonths(events []EventInfo, termMonths int) []string {
	if termMonths <= 0 {
		return nil
	}

	var warnings []string
	for i, event := range events {
		if event.Month >= termMonths {
			warnings = append(warnings, fmt.Sprintf(
				"event %d (%s) in month %d is scheduled after the loan term of %d months",
				i, event.Kind, event.Month, termMonths))
		}
	}
	return warnings
}

// ValidatePrepaymentCap warns when a prepayment limit is at least the
// principal, since prepayments never exceed the outstanding balance.
func ValidatePrepaymentCap(maxPrepayment, principal float64) []string {
	if principal <= 0 || maxPrepayment < principal {
		return nil
	}
	return []string{fmt.Sprintf(
		"maximum prepayment amount %.2f is not below the principal %.2f; prepayments are capped at the outstanding balance",
		maxPrepayment, principal)}
}
