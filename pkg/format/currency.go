// Package format renders amounts and durations for people.
package format

import (
	"fmt"
	"strings"

	"github.com/iwvelando/emi-optimizer/pkg/constants"
	"github.com/iwvelando/emi-optimizer/pkg/mathutil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Currency returns an amount rounded to cents with thousands separators and
// no currency symbol, e.g. "-1,234.56".
func Currency(amount float64) string {
	return printer.Sprintf("%.2f", mathutil.Round(amount))
}

// Months renders a month count as years and months, e.g. "2 years 3 months".
func Months(count int) string {
	if count < 0 {
		return "-" + Months(-count)
	}
	years, months := count/constants.MonthsPerYear, count%constants.MonthsPerYear
	var parts []string
	if years > 0 {
		parts = append(parts, plural(years, "year"))
	}
	if months > 0 || years == 0 {
		parts = append(parts, plural(months, "month"))
	}
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
