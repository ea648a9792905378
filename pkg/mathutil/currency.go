// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/emi-optimizer/pkg/constants"
	"github.com/shopspring/decimal"
)

// Round rounds a value to two decimals, i.e. to represent real currency.
// Halves are rounded away from zero.
func Round(val float64) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return val
	}
	rounded := decimal.NewFromFloat(val).Round(constants.DecimalPlaces).InexactFloat64()
	if rounded == 0 {
		// avoid -0 leaking into output
		return 0
	}
	return rounded
}

// IsFinite reports whether val is neither NaN nor infinite.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}

// Ratio returns value/total. A zero total yields 0, or 1 when value is
// positive and the ratio would otherwise be undefined.
func Ratio(value, total float64) float64 {
	if total == 0 {
		if value > 0 {
			return 1
		}
		return 0
	}
	return value / total
}

// ApplyPercentage applies a percentage to a value
func ApplyPercentage(value, percentage float64) float64 {
	return value * (percentage / constants.PercentageMultiplier)
}
