package optimizer

import (
	"fmt"
	"sort"

	"github.com/iwvelando/emi-optimizer/pkg/amortization"
	"github.com/iwvelando/emi-optimizer/pkg/constants"
	"github.com/iwvelando/emi-optimizer/pkg/datetime"
	"github.com/iwvelando/emi-optimizer/pkg/format"
	"github.com/iwvelando/emi-optimizer/pkg/mathutil"
	"github.com/iwvelando/emi-optimizer/pkg/optimization"
)

// candidate is a strategy waiting to be simulated.
type candidate struct {
	family      optimization.StrategyFamily
	id          string
	description string
	strategy    optimization.Strategy
	events      []amortization.Event
}

// generator builds candidates for a single loan and preference set.
type generator struct {
	params         amortization.LoanParameters
	baselineEMI    float64
	baselineTenure int
	prefs          optimization.Preferences
}

// prepaymentAmounts returns the user maximum, or a light and a heavy default.
func (g generator) prepaymentAmounts() []float64 {
	if g.prefs.MaxPrepaymentAmount > 0 {
		return []float64{mathutil.Round(g.prefs.MaxPrepaymentAmount)}
	}
	return []float64{
		mathutil.Round(g.baselineEMI * constants.LightPrepaymentMultiplier),
		mathutil.Round(g.baselineEMI * constants.HeavyPrepaymentMultiplier),
	}
}

// recurringAmount returns the user maximum or one baseline EMI.
func (g generator) recurringAmount() float64 {
	if g.prefs.MaxPrepaymentAmount > 0 {
		return mathutil.Round(g.prefs.MaxPrepaymentAmount)
	}
	return mathutil.Round(g.baselineEMI)
}

// preferredOffset is the first occurrence of the preferred calendar month
// after the first installment. ok is false when it falls outside the tenure.
func (g generator) preferredOffset() (int, bool) {
	offset := datetime.FirstOccurrence(g.params.StartMonth, g.prefs.PreferredPrepaymentMonth, 1)
	return offset, offset < g.baselineTenure
}

// prepaymentMonths is the coverage set of 0-indexed months for one-time
// prepayments: monthly at first, then quarterly, then half-yearly.
func (g generator) prepaymentMonths() []int {
	horizon := g.baselineTenure - 1
	if horizon > constants.MaxPrepaymentHorizonMonths {
		horizon = constants.MaxPrepaymentHorizonMonths
	}

	seen := make(map[int]bool)
	var months []int
	add := func(month int) {
		if month < 1 || month > horizon || seen[month] {
			return
		}
		seen[month] = true
		months = append(months, month)
	}

	for month := 1; month <= constants.MonthlyCoverageMonths; month++ {
		add(month)
	}
	for month := constants.MonthlyCoverageMonths + constants.QuarterlyFrequency; month <= constants.QuarterlyCoverageMonths; month += constants.QuarterlyFrequency {
		add(month)
	}
	for month := constants.QuarterlyCoverageMonths + constants.HalfYearlyFrequency; month <= horizon; month += constants.HalfYearlyFrequency {
		add(month)
	}
	if offset, ok := g.preferredOffset(); ok {
		add(offset)
	}

	if len(months) == 0 {
		return []int{0}
	}
	sort.Ints(months)
	return months
}

func (g generator) oneTimeCandidates() []candidate {
	var candidates []candidate
	for _, amount := range g.prepaymentAmounts() {
		for _, month := range g.prepaymentMonths() {
			candidates = append(candidates, g.oneTime(amount, month))
		}
	}
	return candidates
}

func (g generator) oneTime(amount float64, month int) candidate {
	return candidate{
		family: optimization.OneTimePrepayment,
		id:     fmt.Sprintf("one-time-%.2f-m%d", amount, month),
		description: fmt.Sprintf("Prepay %s once in %s",
			format.Currency(amount), g.label(month)),
		strategy: optimization.Strategy{
			PrepaymentAmount: amount,
			PrepaymentMonths: []int{month},
		},
		events: []amortization.Event{amortization.Prepayment(month, amount)},
	}
}

// recurringCandidates returns nothing unless a recurring frequency was chosen.
func (g generator) recurringCandidates() []candidate {
	interval := g.prefs.PrepaymentFrequency.IntervalMonths()
	if interval <= 0 {
		return nil
	}

	first, _ := g.preferredOffset()
	months := datetime.Occurrences(first, interval, g.baselineTenure)
	if len(months) == 0 {
		return nil
	}

	amount := g.recurringAmount()
	events := make([]amortization.Event, 0, len(months))
	for _, month := range months {
		events = append(events, amortization.Prepayment(month, amount))
	}

	return []candidate{{
		family: optimization.RecurringPrepayment,
		id:     fmt.Sprintf("recurring-%dm-%.2f", interval, amount),
		description: fmt.Sprintf("Prepay %s %s starting %s",
			format.Currency(amount), g.prefs.PrepaymentFrequency, g.label(first)),
		strategy: optimization.Strategy{
			PrepaymentAmount: amount,
			PrepaymentMonths: months,
			Interval:         interval,
		},
		events: events,
	}}
}

func (g generator) emiIncreaseCandidates() []candidate {
	var emis []float64
	if g.prefs.MaxEMIIncrease > 0 {
		emis = append(emis, g.baselineEMI+g.prefs.MaxEMIIncrease)
	} else {
		for _, percent := range constants.DefaultEMIIncreasePercents {
			emis = append(emis, g.baselineEMI+mathutil.ApplyPercentage(g.baselineEMI, percent))
		}
	}

	candidates := make([]candidate, 0, len(emis))
	for _, emi := range emis {
		candidates = append(candidates, g.emiIncrease(emi))
	}
	return candidates
}

func (g generator) emiIncrease(emi float64) candidate {
	emi = mathutil.Round(emi)
	return candidate{
		family: optimization.EMIIncrease,
		id:     fmt.Sprintf("emi-increase-%.2f", emi),
		description: fmt.Sprintf("Increase the EMI from %s to %s",
			format.Currency(g.baselineEMI), format.Currency(emi)),
		strategy: optimization.Strategy{NewEMI: emi},
		events:   []amortization.Event{amortization.EMIChange(0, emi)},
	}
}

// combinedCandidates pairs the best individual strategies with a modest
// counterpart, and the user's literal maximums with each other. A nil best
// candidate skips its pairing.
func (g generator) combinedCandidates(bestOneTime, bestEMIIncrease *candidate) []candidate {
	var candidates []candidate

	if bestOneTime != nil {
		emi := mathutil.Round(g.baselineEMI + mathutil.ApplyPercentage(g.baselineEMI, constants.ModestEMIIncreasePercent))
		month := bestOneTime.strategy.PrepaymentMonths[0]
		candidates = append(candidates, g.combined(bestOneTime.strategy.PrepaymentAmount, month, emi))
	}

	if bestEMIIncrease != nil {
		month, ok := g.preferredOffset()
		if !ok {
			month = 0
		}
		amount := mathutil.Round(g.baselineEMI * constants.LightPrepaymentMultiplier)
		candidates = append(candidates, g.combined(amount, month, bestEMIIncrease.strategy.NewEMI))
	}

	if g.prefs.MaxPrepaymentAmount > 0 && g.prefs.MaxEMIIncrease > 0 {
		month, ok := g.preferredOffset()
		if !ok {
			month = 0
		}
		candidates = append(candidates, g.combined(mathutil.Round(g.prefs.MaxPrepaymentAmount), month,
			mathutil.Round(g.baselineEMI+g.prefs.MaxEMIIncrease)))
	}

	return candidates
}

func (g generator) combined(amount float64, month int, emi float64) candidate {
	return candidate{
		family: optimization.Combined,
		id:     fmt.Sprintf("combined-%.2f-m%d-emi-%.2f", amount, month, emi),
		description: fmt.Sprintf("Prepay %s in %s and increase the EMI to %s",
			format.Currency(amount), g.label(month), format.Currency(emi)),
		strategy: optimization.Strategy{
			PrepaymentAmount: amount,
			PrepaymentMonths: []int{month},
			NewEMI:           emi,
		},
		events: []amortization.Event{
			amortization.EMIChange(0, emi),
			amortization.Prepayment(month, amount),
		},
	}
}

func (g generator) label(month int) string {
	return datetime.MonthLabel(g.params.StartYear, g.params.StartMonth, month)
}
