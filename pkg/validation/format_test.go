package validation

import (
	"strings"
	"testing"
)

func TestValidateOutputFormat(t *testing.T) {
	valid := []string{"pretty", "csv", "json"}
	for _, format := range valid {
		if err := ValidateOutputFormat(format); err != nil {
			t.Errorf("ValidateOutputFormat(%q) unexpected error = %v", format, err)
		}
	}

	// formats are matched exactly
	invalid := []string{"", "PRETTY", "Json", " csv ", "prettyprint", "xml", "yaml", "table"}
	for _, format := range invalid {
		err := ValidateOutputFormat(format)
		if err == nil {
			t.Errorf("ValidateOutputFormat(%q) expected error, got nil", format)
			continue
		}
		if !strings.Contains(err.Error(), "pretty, csv or json") {
			t.Errorf("ValidateOutputFormat(%q) error should list the supported formats, got %q", format, err.Error())
		}
	}
}
