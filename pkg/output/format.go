// Package output provides utilities for formatting and displaying schedules
// and suggestions.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/emi-optimizer/pkg/amortization"
	"github.com/iwvelando/emi-optimizer/pkg/format"
	"github.com/iwvelando/emi-optimizer/pkg/optimization"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PrettySchedule outputs a human-readable rather than machine-readable table.
func PrettySchedule(w io.Writer, result amortization.Amortization) {
	p := message.NewPrinter(language.English)
	_, _ = p.Fprintf(w, "--- Amortization schedule (EMI %.2f) ---\n", result.EMI)
	writeScheduleTable(w, p, result.Schedule)
	_, _ = p.Fprintf(w, "Total interest: %.2f over %s\n", result.TotalInterest, format.Months(result.Schedule.Tenure()))
	for _, warning := range result.Warnings {
		_, _ = fmt.Fprintf(w, "Warning: %s\n", warning)
	}
}

// PrettySimulation outputs a simulated schedule with its comparison to the
// baseline.
func PrettySimulation(w io.Writer, baseline amortization.Schedule, result amortization.SimulationResult) {
	p := message.NewPrinter(language.English)
	_, _ = fmt.Fprintf(w, "--- Simulated schedule ---\n")
	writeScheduleTable(w, p, result.Schedule)
	_, _ = p.Fprintf(w, "Total interest: %.2f (baseline %.2f, saved %.2f)\n",
		result.Schedule.TotalInterest(), baseline.TotalInterest(), baseline.TotalInterest()-result.Schedule.TotalInterest())
	_, _ = fmt.Fprintf(w, "Tenure: %s (baseline %s)\n",
		format.Months(result.ActualDurationMonths), format.Months(baseline.Tenure()))
}

func writeScheduleTable(w io.Writer, p *message.Printer, schedule amortization.Schedule) {
	_, _ = fmt.Fprintf(w, "Month | Date     | Opening | Prepayment | EMI | Principal | Interest | Closing\n")
	_, _ = fmt.Fprintf(w, "_____ | ________ | _______ | __________ | ___ | _________ | ________ | _______\n")
	for _, entry := range schedule {
		_, _ = p.Fprintf(w, "%d | %s | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f\n",
			entry.Month, entry.Label, entry.OpeningBalance, entry.Prepayment, entry.EMI,
			entry.PrincipalPaid, entry.InterestPaid, entry.ClosingBalance)
	}
}

// PrettySuggestions outputs ranked suggestions, or the sentinel explanation.
func PrettySuggestions(w io.Writer, suggestions []optimization.Suggestion) {
	p := message.NewPrinter(language.English)
	_, _ = fmt.Fprintf(w, "--- Suggestions ---\n")
	for i, s := range suggestions {
		if s.IsSentinel() {
			_, _ = fmt.Fprintf(w, "%s\n", s.Description)
			continue
		}
		_, _ = p.Fprintf(w, "%d. [%s] %s\n", i+1, s.Family, s.Description)
		_, _ = p.Fprintf(w, "   Interest saved: %.2f | Tenure reduced: %s | Total interest: %.2f | Score: %.2f\n",
			s.InterestSaved, format.Months(s.TenureReducedMonths), s.TotalInterest, s.Score)
	}
}

// CsvSchedule outputs a schedule in comma-separated value format.
func CsvSchedule(w io.Writer, schedule amortization.Schedule) {
	_, _ = fmt.Fprintf(w, `"month","date","opening","prepayment","emi","principal","interest","closing"`+"\n")
	for _, entry := range schedule {
		_, _ = fmt.Fprintf(w, `"%d","%s","%.2f","%.2f","%.2f","%.2f","%.2f","%.2f"`+"\n",
			entry.Month, quote(entry.Label), entry.OpeningBalance, entry.Prepayment, entry.EMI,
			entry.PrincipalPaid, entry.InterestPaid, entry.ClosingBalance)
	}
}

// CsvString returns the CSV rendering of a schedule.
func CsvString(schedule amortization.Schedule) string {
	var buf bytes.Buffer
	CsvSchedule(&buf, schedule)
	return buf.String()
}

// CsvSuggestions outputs one line per suggestion.
func CsvSuggestions(w io.Writer, suggestions []optimization.Suggestion) {
	_, _ = fmt.Fprintf(w, `"rank","id","family","description","interestSaved","tenureReducedMonths","totalInterest","months","score"`+"\n")
	for i, s := range suggestions {
		family := s.Family.String()
		if s.IsSentinel() {
			family = string(s.Sentinel)
		}
		_, _ = fmt.Fprintf(w, `"%d","%s","%s","%s","%.2f","%d","%.2f","%d","%.2f"`+"\n",
			i+1, quote(s.ID), quote(family), quote(s.Description), s.InterestSaved,
			s.TenureReducedMonths, s.TotalInterest, s.ActualDurationMonths, s.Score)
	}
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

func quote(value string) string {
	return strings.ReplaceAll(value, `"`, `""`)
}
