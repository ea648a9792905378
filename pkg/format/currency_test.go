package format

import "testing"

func TestCurrency(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "0.00"},
		{999.5, "999.50"},
		{1000, "1,000.00"},
		{8791.588, "8,791.59"},
		{1234567.891, "1,234,567.89"},
		{-2500, "-2,500.00"},
		{-0.001, "0.00"},
	}

	for _, tt := range tests {
		if result := Currency(tt.input); result != tt.expected {
			t.Errorf("Currency(%v) = %s, expected %s", tt.input, result, tt.expected)
		}
	}
}

func TestMonths(t *testing.T) {
	tests := map[int]string{
		0:  "0 months",
		1:  "1 month",
		11: "11 months",
		12: "1 year",
		13: "1 year 1 month",
		27: "2 years 3 months",
		-5: "-5 months",
	}

	for input, expected := range tests {
		if result := Months(input); result != expected {
			t.Errorf("Months(%d) = %s, expected %s", input, result, expected)
		}
	}
}
