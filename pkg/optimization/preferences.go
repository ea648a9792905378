// Package optimization provides shared data structures for repayment
// strategy suggestions.
package optimization

import (
	"fmt"
	"strings"

	"github.com/iwvelando/emi-optimizer/pkg/constants"
	"github.com/iwvelando/emi-optimizer/pkg/mathutil"
)

// Frequency is how often a user prefers to prepay.
type Frequency string

const (
	FrequencyOnce       Frequency = "once"
	FrequencyAnnually   Frequency = "annually"
	FrequencyHalfYearly Frequency = "half-yearly"
)

// CanonicalFrequency returns the canonical identifier for a prepayment frequency.
func CanonicalFrequency(value string) Frequency {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return FrequencyOnce
	}
	switch strings.ToLower(trimmed) {
	case "once", "one-time", "onetime", "one_time", "single":
		return FrequencyOnce
	case "annually", "annual", "yearly":
		return FrequencyAnnually
	case "half-yearly", "half_yearly", "halfyearly", "semi-annually", "semiannually", "semi-annual", "semiannual":
		return FrequencyHalfYearly
	default:
		return Frequency(strings.ToLower(trimmed))
	}
}

// IntervalMonths returns the months between recurring prepayments, or 0 for
// a one-time prepayment.
func (f Frequency) IntervalMonths() int {
	switch f {
	case FrequencyAnnually:
		return constants.AnnualFrequency
	case FrequencyHalfYearly:
		return constants.HalfYearlyFrequency
	default:
		return 0
	}
}

// Recurring reports whether the frequency repeats.
func (f Frequency) Recurring() bool {
	return f.IntervalMonths() > 0
}

// Preferences steer the strategy search. Zero amounts mean "not given".
type Preferences struct {
	MaxPrepaymentAmount float64   `json:"maxPrepaymentAmount" yaml:"maxPrepaymentAmount" mapstructure:"maxPrepaymentAmount"`
	PrepaymentFrequency Frequency `json:"prepaymentFrequency" yaml:"prepaymentFrequency" mapstructure:"prepaymentFrequency"`
	// PreferredPrepaymentMonth is a 0-indexed calendar month.
	PreferredPrepaymentMonth int     `json:"preferredPrepaymentMonth" yaml:"preferredPrepaymentMonth" mapstructure:"preferredPrepaymentMonth"`
	MaxEMIIncrease           float64 `json:"maxEmiIncrease" yaml:"maxEmiIncrease" mapstructure:"maxEmiIncrease"`
	// ScoreWeightInterest is the 0-100 weight of interest saved against tenure reduced.
	ScoreWeightInterest *float64 `json:"scoreWeightInterest,omitempty" yaml:"scoreWeightInterest,omitempty" mapstructure:"scoreWeightInterest"`
}

// DefaultPreferences returns preferences with every default applied.
func DefaultPreferences() Preferences {
	p := Preferences{}
	p.Normalize()
	return p
}

// Normalize ensures defaults and canonical values are applied before validation.
func (p *Preferences) Normalize() {
	if p == nil {
		return
	}
	p.PrepaymentFrequency = CanonicalFrequency(string(p.PrepaymentFrequency))
	if p.ScoreWeightInterest == nil {
		weight := constants.DefaultScoreWeightInterest
		p.ScoreWeightInterest = &weight
	}
}

// Validate returns an error when the preferences cannot drive a search.
func (p *Preferences) Validate() error {
	if p == nil {
		return fmt.Errorf("preferences cannot be nil")
	}

	p.Normalize()

	switch p.PrepaymentFrequency {
	case FrequencyOnce, FrequencyAnnually, FrequencyHalfYearly:
		// supported frequencies
	default:
		return fmt.Errorf("prepayment frequency %q is not supported", p.PrepaymentFrequency)
	}
	if !mathutil.IsFinite(p.MaxPrepaymentAmount) || p.MaxPrepaymentAmount < 0 {
		return fmt.Errorf("maximum prepayment amount %.2f must be a non-negative number", p.MaxPrepaymentAmount)
	}
	if !mathutil.IsFinite(p.MaxEMIIncrease) || p.MaxEMIIncrease < 0 {
		return fmt.Errorf("maximum EMI increase %.2f must be a non-negative number", p.MaxEMIIncrease)
	}
	if p.PreferredPrepaymentMonth < 0 || p.PreferredPrepaymentMonth >= constants.MonthsPerYear {
		return fmt.Errorf("preferred prepayment month %d must be between 0 and 11", p.PreferredPrepaymentMonth)
	}
	weight := *p.ScoreWeightInterest
	if !mathutil.IsFinite(weight) || weight < 0 || weight > constants.PercentageMultiplier {
		return fmt.Errorf("interest score weight %.2f must be between 0 and 100", weight)
	}
	return nil
}

// InterestWeight returns the interest weight as a 0-1 fraction.
func (p Preferences) InterestWeight() float64 {
	if p.ScoreWeightInterest == nil {
		return constants.DefaultScoreWeightInterest / constants.PercentageMultiplier
	}
	return *p.ScoreWeightInterest / constants.PercentageMultiplier
}
