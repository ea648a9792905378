package optimizer

import (
	"github.com/iwvelando/emi-optimizer/pkg/amortization"
	"github.com/iwvelando/emi-optimizer/pkg/constants"
	"github.com/iwvelando/emi-optimizer/pkg/mathutil"
)

// baseline is what every candidate is measured against.
type baseline struct {
	params        amortization.LoanParameters
	schedule      amortization.Schedule
	totalInterest float64
	tenure        int
	emi           float64
}

func newBaseline(params amortization.LoanParameters, schedule amortization.Schedule, emi float64) baseline {
	return baseline{
		params:        params,
		schedule:      schedule,
		totalInterest: schedule.TotalInterest(),
		tenure:        schedule.Tenure(),
		emi:           emi,
	}
}

// evaluation is a simulated and scored candidate.
type evaluation struct {
	candidate
	schedule      amortization.Schedule
	totalInterest float64
	tenure        int
	interestSaved float64
	tenureReduced int
	score         float64
}

// beneficial reports whether the candidate improves on the baseline at all.
func (e evaluation) beneficial() bool {
	return e.interestSaved > 0 || e.tenureReduced > 0
}

// material reports whether the interest saved reaches the share of one EMI
// required to seed a combined strategy.
func (e evaluation) material(baselineEMI float64) bool {
	return e.interestSaved >= baselineEMI*constants.MaterialitySavingsRatio
}

// scorer compares simulated schedules with the baseline. Totals come from the
// rounded schedule columns on both sides.
type scorer struct {
	base           baseline
	interestWeight float64
}

func (s scorer) evaluate(c candidate, result amortization.SimulationResult) evaluation {
	eval := evaluation{
		candidate:     c,
		schedule:      result.Schedule,
		totalInterest: result.Schedule.TotalInterest(),
		tenure:        result.ActualDurationMonths,
	}
	eval.interestSaved = mathutil.Round(s.base.totalInterest - eval.totalInterest)
	eval.tenureReduced = s.base.tenure - eval.tenure
	eval.score = s.score(eval.interestSaved, eval.tenureReduced)
	return eval
}

// score weighs normalized interest saved against normalized tenure reduced
// and scales the result to 0-100.
func (s scorer) score(interestSaved float64, tenureReduced int) float64 {
	normalizedInterest := mathutil.Ratio(interestSaved, s.base.totalInterest)
	normalizedTenure := mathutil.Ratio(float64(tenureReduced), float64(s.base.tenure))
	return constants.ScoreScale * (s.interestWeight*normalizedInterest + (1-s.interestWeight)*normalizedTenure)
}
