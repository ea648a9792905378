package amortization

import (
	"fmt"

	"github.com/iwvelando/emi-optimizer/pkg/constants"
	"github.com/iwvelando/emi-optimizer/pkg/datetime"
	"github.com/iwvelando/emi-optimizer/pkg/format"
	"github.com/iwvelando/emi-optimizer/pkg/mathutil"
	"go.uber.org/zap"
)

// Entry holds the values for a given month of the schedule. Monetary fields
// are rounded to cents.
type Entry struct {
	Month          int     `json:"month"`
	Label          string  `json:"label"`
	OpeningBalance float64 `json:"openingBalance"`
	Prepayment     float64 `json:"prepayment,omitempty"`
	EMI            float64 `json:"emi"`
	PrincipalPaid  float64 `json:"principalPaid"`
	InterestPaid   float64 `json:"interestPaid"`
	ClosingBalance float64 `json:"closingBalance"`
}

// Schedule is a chronologically ordered list of entries.
type Schedule []Entry

// TotalInterest sums the interest column.
func (s Schedule) TotalInterest() float64 {
	total := 0.0
	for _, entry := range s {
		total += entry.InterestPaid
	}
	return mathutil.Round(total)
}

// TotalPrincipal sums the principal and prepayment columns.
func (s Schedule) TotalPrincipal() float64 {
	total := 0.0
	for _, entry := range s {
		total += entry.PrincipalPaid + entry.Prepayment
	}
	return mathutil.Round(total)
}

// Tenure is the number of months until payoff.
func (s Schedule) Tenure() int {
	return len(s)
}

// Amortization is a baseline schedule together with the EMI that produced it.
type Amortization struct {
	EMI           float64  `json:"emi"`
	Schedule      Schedule `json:"schedule"`
	TotalInterest float64  `json:"totalInterest"`
	Warnings      []string `json:"warnings,omitempty"`
}

// SimulationResult is the outcome of a schedule run under events.
type SimulationResult struct {
	Schedule             Schedule `json:"schedule"`
	TotalInterest        float64  `json:"totalInterest"`
	ActualDurationMonths int      `json:"actualDurationMonths"`
}

// Calculator produces schedules. It holds no state besides its logger, so a
// single instance may be shared between goroutines.
type Calculator struct {
	logger *zap.Logger
}

// NewCalculator creates a new calculator instance
func NewCalculator(logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{logger: logger}
}

// ComputeEMI returns the monthly installment for the loan: the manual EMI
// when one is given, P/n for interest-free loans and the annuity formula
// otherwise.
func (c *Calculator) ComputeEMI(params LoanParameters) (float64, error) {
	if err := params.Validate(); err != nil {
		return 0, err
	}
	if params.ManualEMI > 0 {
		return params.ManualEMI, nil
	}

	emi := CalculateMonthlyPayment(params.Principal, params.AnnualRate, params.DurationMonths)
	if !mathutil.IsFinite(emi) || emi <= 0 {
		return 0, fmt.Errorf("%w (rate %g%%, duration %d months)", ErrNumericInstability,
			params.AnnualRate, params.DurationMonths)
	}
	return emi, nil
}

// ComputeAmortization returns the baseline schedule for the loan.
func (c *Calculator) ComputeAmortization(params LoanParameters) (Schedule, error) {
	result, err := c.Amortize(params)
	if err != nil {
		return nil, err
	}
	return result.Schedule, nil
}

// Amortize computes the EMI and the baseline schedule. Iteration stops as
// soon as the loan is paid off, which happens before the requested duration
// when a manual EMI overpays.
func (c *Calculator) Amortize(params LoanParameters) (Amortization, error) {
	emi, err := c.ComputeEMI(params)
	if err != nil {
		return Amortization{}, err
	}

	run := c.run(params, emi, nil, params.DurationMonths)
	result := Amortization{
		EMI:           mathutil.Round(emi),
		Schedule:      run.schedule,
		TotalInterest: mathutil.Round(run.totalInterest),
	}

	if firstInterest := CalculateInterestPayment(params.Principal, params.AnnualRate); params.ManualEMI > 0 && params.ManualEMI <= firstInterest {
		msg := fmt.Sprintf("the provided EMI does not cover the first month's interest of %s, so the balance grows",
			format.Currency(firstInterest))
		c.logger.Debug(msg, zap.String("op", "amortization.Amortize"))
		result.Warnings = append(result.Warnings, msg)
	}
	if params.ManualEMI > 0 && len(run.schedule) < params.DurationMonths {
		msg := fmt.Sprintf("loan will be paid off by month %d with the provided EMI", len(run.schedule))
		c.logger.Debug(msg, zap.String("op", "amortization.Amortize"))
		result.Warnings = append(result.Warnings, msg)
	}
	if run.remaining >= constants.NegligibleBalance {
		msg := fmt.Sprintf("outstanding balance of %s remains after %s",
			format.Currency(run.remaining), format.Months(params.DurationMonths))
		c.logger.Debug(msg, zap.String("op", "amortization.Amortize"))
		result.Warnings = append(result.Warnings, msg)
	}

	return result, nil
}

// Simulate runs the schedule under prepayment and EMI change events for up
// to twice the original duration, stopping once the balance is negligible.
// Parameters are expected to be valid; the baseline EMI is usually the
// result of ComputeEMI.
func (c *Calculator) Simulate(params LoanParameters, baseEMI float64, events []Event) SimulationResult {
	maxMonths := params.DurationMonths * constants.SimulationHorizonMultiplier
	run := c.run(params, baseEMI, events, maxMonths)
	if run.remaining >= constants.NegligibleBalance {
		c.logger.Debug("simulation ended with an outstanding balance",
			zap.String("op", "amortization.Simulate"),
			zap.Float64("remaining", run.remaining),
			zap.Int("months", maxMonths),
		)
	}
	return SimulationResult{
		Schedule:             run.schedule,
		TotalInterest:        run.totalInterest,
		ActualDurationMonths: len(run.schedule),
	}
}

type runResult struct {
	schedule      Schedule
	totalInterest float64
	remaining     float64
}

// run is the month loop shared by the baseline and simulated schedules. The
// balance is carried at full precision and every stored balance is that
// balance rounded to cents. Stored prepayments and principal are the
// differences between consecutive stored balances, so each opening equals the
// previous closing less the prepayment and the principal and prepayment
// columns sum to the original principal.
func (c *Calculator) run(params LoanParameters, emi float64, events []Event, maxMonths int) runResult {
	rate := MonthlyRate(params.AnnualRate)
	timeline := newEventTimeline(events)

	remaining := params.Principal
	ledger := mathutil.Round(params.Principal)
	activeEMI := emi
	totalInterest := 0.0
	schedule := make(Schedule, 0, min(maxMonths, constants.MaxDurationMonths))

	for i := 0; i < maxMonths; i++ {
		if remaining < constants.NegligibleBalance {
			break
		}

		if newEMI, ok := timeline.emiChange(i); ok {
			c.logger.Debug(fmt.Sprintf("month %d: EMI changes from %.2f to %.2f", i, activeEMI, newEMI),
				zap.String("op", "amortization.run"),
			)
			activeEMI = newEMI
		}

		label := datetime.MonthLabel(params.StartYear, params.StartMonth, i)

		prepaid := timeline.prepayment(i)
		if prepaid > 0 {
			if prepaid > remaining {
				c.logger.Debug("Capping prepayment to prevent overpayment",
					zap.String("op", "amortization.run"),
					zap.Int("month", i),
					zap.Float64("requested", prepaid),
					zap.Float64("capped_to_balance", remaining),
				)
				prepaid = remaining
			}
			remaining -= prepaid
		}

		if remaining < constants.NegligibleBalance {
			// The prepayment closed the loan; the month still counts.
			schedule = append(schedule, Entry{
				Month:      i + 1,
				Label:      label,
				Prepayment: ledger,
			})
			remaining = 0
			ledger = 0
			continue
		}

		opening := mathutil.Round(remaining)
		interest := remaining * rate
		principalPaid := activeEMI - interest

		entry := Entry{
			Month:          i + 1,
			Label:          label,
			OpeningBalance: opening,
			Prepayment:     mathutil.Round(ledger - opening),
			InterestPaid:   mathutil.Round(interest),
		}

		if remaining-principalPaid < constants.NegligibleBalance {
			// Final month: pay exactly what is left.
			entry.PrincipalPaid = opening
			entry.EMI = mathutil.Round(remaining + interest)
			entry.ClosingBalance = 0
			remaining = 0
		} else {
			remaining -= principalPaid
			entry.ClosingBalance = mathutil.Round(remaining)
			entry.PrincipalPaid = mathutil.Round(opening - entry.ClosingBalance)
			entry.EMI = mathutil.Round(activeEMI)
		}

		totalInterest += interest
		ledger = entry.ClosingBalance
		schedule = append(schedule, entry)
	}

	if remaining < constants.NegligibleBalance {
		remaining = 0
	}
	return runResult{schedule: schedule, totalInterest: totalInterest, remaining: remaining}
}

var defaultCalculator = NewCalculator(nil)

// ComputeEMI computes the EMI without logging.
func ComputeEMI(params LoanParameters) (float64, error) {
	return defaultCalculator.ComputeEMI(params)
}

// ComputeAmortization computes the baseline schedule without logging.
func ComputeAmortization(params LoanParameters) (Schedule, error) {
	return defaultCalculator.ComputeAmortization(params)
}

// Simulate runs a simulation without logging.
func Simulate(params LoanParameters, baseEMI float64, events []Event) SimulationResult {
	return defaultCalculator.Simulate(params, baseEMI, events)
}
