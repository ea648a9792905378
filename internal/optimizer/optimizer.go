// Package optimizer searches for repayment strategies that beat a loan's
// baseline schedule and ranks them as suggestions.
package optimizer

import (
	"fmt"
	"time"

	"github.com/iwvelando/emi-optimizer/pkg/amortization"
	"github.com/iwvelando/emi-optimizer/pkg/mathutil"
	"github.com/iwvelando/emi-optimizer/pkg/optimization"
	"go.uber.org/zap"
)

// Recorder observes the optimizer's work. It is satisfied by the metrics
// package; a nil Recorder is ignored.
type Recorder interface {
	CandidatesEvaluated(family string, count int)
	ObserveSearch(duration time.Duration)
}

// Runner generates and ranks repayment suggestions for a loan.
type Runner struct {
	logger     *zap.Logger
	calculator *amortization.Calculator
	recorder   Recorder
}

// NewRunner constructs a Runner.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		logger:     logger,
		calculator: amortization.NewCalculator(logger),
	}
}

// WithRecorder attaches a Recorder and returns the runner.
func (r *Runner) WithRecorder(recorder Recorder) *Runner {
	r.recorder = recorder
	return r
}

// GenerateSuggestions simulates candidate strategies against the baseline and
// returns between one and five suggestions. Invalid preferences are the only
// error; an invalid loan or empty baseline yields a single no-loan sentinel
// and a search that finds nothing yields a single no-benefit sentinel.
func (r *Runner) GenerateSuggestions(params amortization.LoanParameters, baselineSchedule amortization.Schedule, baselineEMI float64, prefs optimization.Preferences) ([]optimization.Suggestion, error) {
	if err := prefs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid preferences: %w", err)
	}

	if err := params.Validate(); err != nil {
		r.logger.Info("no loan to optimize",
			zap.String("op", "optimizer.GenerateSuggestions"),
			zap.Error(err),
		)
		return []optimization.Suggestion{noLoan(fmt.Sprintf("No loan to optimize: %v", err))}, nil
	}
	if len(baselineSchedule) == 0 || !mathutil.IsFinite(baselineEMI) || baselineEMI <= 0 {
		r.logger.Info("no loan to optimize",
			zap.String("op", "optimizer.GenerateSuggestions"),
			zap.Int("baselineMonths", len(baselineSchedule)),
			zap.Float64("baselineEMI", baselineEMI),
		)
		return []optimization.Suggestion{noLoan("No loan to optimize: the baseline schedule is empty")}, nil
	}

	started := time.Now()
	base := newBaseline(params, baselineSchedule, baselineEMI)
	gen := generator{
		params:         params,
		baselineEMI:    baselineEMI,
		baselineTenure: base.tenure,
		prefs:          prefs,
	}
	sc := scorer{base: base, interestWeight: prefs.InterestWeight()}

	oneTime := r.evaluateAll(sc, gen.oneTimeCandidates(), baselineEMI)
	recurring := r.evaluateAll(sc, gen.recurringCandidates(), baselineEMI)
	emiIncreases := r.evaluateAll(sc, gen.emiIncreaseCandidates(), baselineEMI)
	combined := r.evaluateAll(sc, gen.combinedCandidates(
		bestOf(oneTime, optimization.OneTimePrepayment, baselineEMI),
		bestOf(emiIncreases, optimization.EMIIncrease, baselineEMI),
	), baselineEMI)

	var survivors []evaluation
	for _, group := range [][]evaluation{oneTime, recurring, emiIncreases, combined} {
		for _, eval := range group {
			if eval.beneficial() {
				survivors = append(survivors, eval)
			}
		}
	}

	ranked := rank(survivors)
	if r.recorder != nil {
		r.recorder.ObserveSearch(time.Since(started))
	}

	if len(ranked) == 0 {
		r.logger.Info("no beneficial suggestion found",
			zap.String("op", "optimizer.GenerateSuggestions"),
			zap.Float64("baselineInterest", base.totalInterest),
			zap.Int("baselineTenure", base.tenure),
		)
		return []optimization.Suggestion{noBenefit(base)}, nil
	}

	suggestions := make([]optimization.Suggestion, 0, len(ranked))
	for _, eval := range ranked {
		suggestions = append(suggestions, toSuggestion(eval))
	}

	r.logger.Info("generated suggestions",
		zap.String("op", "optimizer.GenerateSuggestions"),
		zap.Int("evaluated", len(oneTime)+len(recurring)+len(emiIncreases)+len(combined)),
		zap.Int("beneficial", len(survivors)),
		zap.Int("returned", len(suggestions)),
		zap.String("top", suggestions[0].ID),
		zap.Float64("topScore", suggestions[0].Score),
		zap.Duration("elapsed", time.Since(started)),
	)
	return suggestions, nil
}

// Suggest computes the baseline for the loan and generates suggestions from
// it. A loan whose EMI cannot be computed yields the no-loan sentinel.
func (r *Runner) Suggest(params amortization.LoanParameters, prefs optimization.Preferences) ([]optimization.Suggestion, error) {
	emi, err := r.calculator.ComputeEMI(params)
	if err != nil {
		return r.GenerateSuggestions(params, nil, 0, prefs)
	}
	schedule, err := r.calculator.ComputeAmortization(params)
	if err != nil {
		return r.GenerateSuggestions(params, nil, 0, prefs)
	}
	return r.GenerateSuggestions(params, schedule, emi, prefs)
}

func (r *Runner) evaluateAll(sc scorer, candidates []candidate, baselineEMI float64) []evaluation {
	if len(candidates) == 0 {
		return nil
	}

	evaluations := make([]evaluation, 0, len(candidates))
	for _, c := range candidates {
		result := r.calculator.Simulate(sc.base.params, baselineEMI, c.events)
		eval := sc.evaluate(c, result)
		if !eval.beneficial() {
			r.logger.Debug("discarding candidate without benefit",
				zap.String("op", "optimizer.evaluateAll"),
				zap.String("candidate", c.id),
				zap.Float64("interestSaved", eval.interestSaved),
				zap.Int("tenureReduced", eval.tenureReduced),
			)
		}
		evaluations = append(evaluations, eval)
	}

	if r.recorder != nil {
		r.recorder.CandidatesEvaluated(candidates[0].family.String(), len(candidates))
	}
	return evaluations
}

func toSuggestion(eval evaluation) optimization.Suggestion {
	return optimization.Suggestion{
		ID:                   eval.id,
		Family:               eval.family,
		Description:          eval.description,
		InterestSaved:        eval.interestSaved,
		TenureReducedMonths:  eval.tenureReduced,
		TotalInterest:        eval.totalInterest,
		ActualDurationMonths: eval.tenure,
		Score:                eval.score,
		Strategy:             eval.strategy,
		Events:               eval.events,
		Schedule:             eval.schedule,
	}
}

func noLoan(description string) optimization.Suggestion {
	return optimization.Suggestion{
		ID:          string(optimization.SentinelNoLoan),
		Description: description,
		Sentinel:    optimization.SentinelNoLoan,
	}
}

func noBenefit(base baseline) optimization.Suggestion {
	return optimization.Suggestion{
		ID:                   string(optimization.SentinelNoBenefit),
		Description:          "No beneficial suggestion found: the current repayment plan is already the best available option",
		TotalInterest:        base.totalInterest,
		ActualDurationMonths: base.tenure,
		Schedule:             base.schedule,
		Sentinel:             optimization.SentinelNoBenefit,
	}
}
