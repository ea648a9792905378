package optimization

import (
	"fmt"
	"strings"

	"github.com/iwvelando/emi-optimizer/pkg/amortization"
)

// StrategyFamily groups related strategies; the ranker keeps at most one
// suggestion per family.
type StrategyFamily int

const (
	OneTimePrepayment StrategyFamily = iota
	RecurringPrepayment
	EMIIncrease
	Combined
)

var familyNames = map[StrategyFamily]string{
	OneTimePrepayment:   "one-time-prepayment",
	RecurringPrepayment: "recurring-prepayment",
	EMIIncrease:         "emi-increase",
	Combined:            "combined",
}

func (f StrategyFamily) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("StrategyFamily(%d)", int(f))
}

// MarshalText implements encoding.TextMarshaler.
func (f StrategyFamily) MarshalText() ([]byte, error) {
	if name, ok := familyNames[f]; ok {
		return []byte(name), nil
	}
	return nil, fmt.Errorf("unknown strategy family %d", int(f))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *StrategyFamily) UnmarshalText(text []byte) error {
	value := strings.ToLower(strings.TrimSpace(string(text)))
	for family, name := range familyNames {
		if name == value {
			*f = family
			return nil
		}
	}
	return fmt.Errorf("unknown strategy family %q", string(text))
}

// SentinelReason marks a suggestion that stands in for "nothing to show".
type SentinelReason string

const (
	// NotSentinel is the reason carried by every real suggestion.
	NotSentinel SentinelReason = ""
	// SentinelNoLoan means there was no valid loan to optimize.
	SentinelNoLoan SentinelReason = "no-loan"
	// SentinelNoBenefit means no candidate beat the baseline.
	SentinelNoBenefit SentinelReason = "no-benefit"
)

// Strategy holds the parameters a suggestion was generated from. Zero fields
// do not apply to the suggestion's family.
type Strategy struct {
	PrepaymentAmount float64 `json:"prepaymentAmount,omitempty"`
	// PrepaymentMonths are 0-indexed month offsets from the loan start.
	PrepaymentMonths []int   `json:"prepaymentMonths,omitempty"`
	Interval         int     `json:"interval,omitempty"`
	NewEMI           float64 `json:"newEmi,omitempty"`
}

// Suggestion is a scored repayment strategy with its revised schedule.
type Suggestion struct {
	ID                   string                `json:"id"`
	Family               StrategyFamily        `json:"family"`
	Description          string                `json:"description"`
	InterestSaved        float64               `json:"interestSaved"`
	TenureReducedMonths  int                   `json:"tenureReducedMonths"`
	TotalInterest        float64               `json:"totalInterest"`
	ActualDurationMonths int                   `json:"actualDurationMonths"`
	Score                float64               `json:"score"`
	Strategy             Strategy              `json:"strategy"`
	Events               []amortization.Event  `json:"events,omitempty"`
	Schedule             amortization.Schedule `json:"schedule"`
	Sentinel             SentinelReason        `json:"sentinel,omitempty"`
}

// IsSentinel reports whether the suggestion is a placeholder result.
func (s Suggestion) IsSentinel() bool {
	return s.Sentinel != NotSentinel
}
