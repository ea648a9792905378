package amortization

import (
	"fmt"
	"strings"
)

// EventKind distinguishes prepayments from EMI changes.
type EventKind int

const (
	// EventPrepayment is a one-time reduction of the opening balance.
	EventPrepayment EventKind = iota
	// EventEMIChange replaces the active EMI from its month onwards.
	EventEMIChange
)

func (k EventKind) String() string {
	switch k {
	case EventPrepayment:
		return "prepayment"
	case EventEMIChange:
		return "emi-change"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) {
	switch k {
	case EventPrepayment, EventEMIChange:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("unknown event kind %d", int(k))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EventKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "prepayment":
		*k = EventPrepayment
	case "emi-change", "emi_change", "emichange":
		*k = EventEMIChange
	default:
		return fmt.Errorf("unknown event kind %q", string(text))
	}
	return nil
}

// Event is a prepayment or EMI change keyed by the 0-indexed month offset
// from the loan start. Amount is the prepaid sum or the new EMI.
type Event struct {
	Kind   EventKind `json:"kind" yaml:"kind"`
	Month  int       `json:"month" yaml:"month"`
	Amount float64   `json:"amount" yaml:"amount"`
}

// Prepayment builds a prepayment event.
func Prepayment(month int, amount float64) Event {
	return Event{Kind: EventPrepayment, Month: month, Amount: amount}
}

// EMIChange builds an EMI change event.
func EMIChange(month int, emi float64) Event {
	return Event{Kind: EventEMIChange, Month: month, Amount: emi}
}

// ValidateEvents rejects negative months and non-positive amounts.
func ValidateEvents(events []Event) error {
	for i, event := range events {
		if event.Month < 0 {
			return fmt.Errorf("event %d: month %d cannot be negative", i, event.Month)
		}
		if event.Amount <= 0 {
			return fmt.Errorf("event %d: %s amount must be positive", i, event.Kind)
		}
		if event.Kind != EventPrepayment && event.Kind != EventEMIChange {
			return fmt.Errorf("event %d: unknown kind %d", i, int(event.Kind))
		}
	}
	return nil
}

// eventTimeline indexes events by month. Prepayments in the same month add
// up; for EMI changes the last one listed wins.
type eventTimeline struct {
	prepayments map[int]float64
	emiChanges  map[int]float64
}

func newEventTimeline(events []Event) eventTimeline {
	timeline := eventTimeline{
		prepayments: make(map[int]float64),
		emiChanges:  make(map[int]float64),
	}
	for _, event := range events {
		switch event.Kind {
		case EventPrepayment:
			if event.Amount > 0 {
				timeline.prepayments[event.Month] += event.Amount
			}
		case EventEMIChange:
			if event.Amount > 0 {
				timeline.emiChanges[event.Month] = event.Amount
			}
		}
	}
	return timeline
}

func (t eventTimeline) prepayment(month int) float64 {
	return t.prepayments[month]
}

func (t eventTimeline) emiChange(month int) (float64, bool) {
	emi, ok := t.emiChanges[month]
	return emi, ok
}
