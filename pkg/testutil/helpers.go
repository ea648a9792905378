// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/emi-optimizer/pkg/optimization"
)

// FindSuggestion finds the suggestion of a strategy family in the results slice.
// Returns a pointer to the suggestion if found, nil otherwise.
func FindSuggestion(suggestions []optimization.Suggestion, family optimization.StrategyFamily) *optimization.Suggestion {
	for i := range suggestions {
		if !suggestions[i].IsSentinel() && suggestions[i].Family == family {
			return &suggestions[i]
		}
	}
	return nil
}

// FindSentinel returns the sentinel suggestion if the results hold one.
func FindSentinel(suggestions []optimization.Suggestion) *optimization.Suggestion {
	for i := range suggestions {
		if suggestions[i].IsSentinel() {
			return &suggestions[i]
		}
	}
	return nil
}
