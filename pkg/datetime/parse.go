// Package datetime provides calendar helpers for labelling loan months.
package datetime

import (
	"fmt"
	"time"

	"github.com/iwvelando/emi-optimizer/pkg/constants"
)

// LabelLayout is the format used for schedule month labels, e.g. "Jan 2025".
const LabelLayout = "Jan 2006"

// MonthDate returns the first day of the month that lies offset months after
// the loan start. startMonth is 0-indexed (0 = January).
func MonthDate(startYear, startMonth, offset int) time.Time {
	return time.Date(startYear, time.Month(startMonth+1), 1, 0, 0, 0, 0, time.UTC).AddDate(0, offset, 0)
}

// MonthLabel returns the display label for the month offset months after the
// loan start.
func MonthLabel(startYear, startMonth, offset int) string {
	return MonthDate(startYear, startMonth, offset).Format(LabelLayout)
}

// MonthName returns the short name for a 0-indexed calendar month.
func MonthName(month int) string {
	return time.Month(normalizeMonth(month) + 1).String()[:3]
}

// FirstOccurrence returns the smallest loan month offset >= minOffset whose
// calendar month equals targetMonth. Both startMonth and targetMonth are
// 0-indexed calendar months.
func FirstOccurrence(startMonth, targetMonth, minOffset int) int {
	if minOffset < 0 {
		minOffset = 0
	}
	calendar := normalizeMonth(startMonth + minOffset)
	delta := normalizeMonth(normalizeMonth(targetMonth) - calendar)
	return minOffset + delta
}

// Occurrences returns every loan month offset in [first, limit) stepping by
// interval months.
func Occurrences(first, interval, limit int) []int {
	if interval <= 0 {
		if first < limit {
			return []int{first}
		}
		return nil
	}
	var offsets []int
	for offset := first; offset < limit; offset += interval {
		offsets = append(offsets, offset)
	}
	return offsets
}

// ValidateStart checks that a loan start month/year pair can be labelled.
func ValidateStart(startYear, startMonth int) error {
	if startMonth < 0 || startMonth >= constants.MonthsPerYear {
		return fmt.Errorf("start month %d must be between 0 and %d", startMonth, constants.MonthsPerYear-1)
	}
	if startYear < constants.MinStartYear || startYear > constants.MaxStartYear {
		return fmt.Errorf("start year %d must be between %d and %d", startYear, constants.MinStartYear, constants.MaxStartYear)
	}
	return nil
}

func normalizeMonth(month int) int {
	m := month % constants.MonthsPerYear
	if m < 0 {
		m += constants.MonthsPerYear
	}
	return m
}
