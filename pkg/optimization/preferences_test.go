package optimization

import (
	"encoding/json"
	"testing"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestCanonicalFrequency(t *testing.T) {
	tests := []struct {
		input    string
		expected Frequency
	}{
		{"", FrequencyOnce},
		{"once", FrequencyOnce},
		{" One-Time ", FrequencyOnce},
		{"annually", FrequencyAnnually},
		{"Yearly", FrequencyAnnually},
		{"half-yearly", FrequencyHalfYearly},
		{"half_yearly", FrequencyHalfYearly},
		{"halfyearly", FrequencyHalfYearly},
		{"semi-annually", FrequencyHalfYearly},
		{"Monthly", Frequency("monthly")},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := CanonicalFrequency(tt.input); got != tt.expected {
				t.Errorf("CanonicalFrequency(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFrequencyIntervalMonths(t *testing.T) {
	if got := FrequencyOnce.IntervalMonths(); got != 0 {
		t.Errorf("once interval = %d, expected 0", got)
	}
	if got := FrequencyAnnually.IntervalMonths(); got != 12 {
		t.Errorf("annual interval = %d, expected 12", got)
	}
	if got := FrequencyHalfYearly.IntervalMonths(); got != 6 {
		t.Errorf("half-yearly interval = %d, expected 6", got)
	}
	if FrequencyOnce.Recurring() || !FrequencyAnnually.Recurring() {
		t.Errorf("Recurring() mismatch")
	}
}

func TestPreferencesNormalizeDefaults(t *testing.T) {
	prefs := Preferences{PrepaymentFrequency: "Half_Yearly"}
	prefs.Normalize()

	if prefs.PrepaymentFrequency != FrequencyHalfYearly {
		t.Errorf("expected half-yearly, got %q", prefs.PrepaymentFrequency)
	}
	if prefs.ScoreWeightInterest == nil || *prefs.ScoreWeightInterest != 50 {
		t.Fatalf("expected default weight 50, got %v", prefs.ScoreWeightInterest)
	}
	if prefs.InterestWeight() != 0.5 {
		t.Errorf("expected interest weight 0.5, got %v", prefs.InterestWeight())
	}

	explicitZero := Preferences{ScoreWeightInterest: floatPtr(0)}
	explicitZero.Normalize()
	if explicitZero.InterestWeight() != 0 {
		t.Errorf("explicit zero weight should be kept, got %v", explicitZero.InterestWeight())
	}
}

func TestPreferencesValidate(t *testing.T) {
	tests := []struct {
		name      string
		prefs     Preferences
		expectErr bool
	}{
		{"Defaults", Preferences{}, false},
		{"Full preferences", Preferences{MaxPrepaymentAmount: 50000, PrepaymentFrequency: "annually", PreferredPrepaymentMonth: 11, MaxEMIIncrease: 2000, ScoreWeightInterest: floatPtr(100)}, false},
		{"Unknown frequency", Preferences{PrepaymentFrequency: "monthly"}, true},
		{"Negative prepayment", Preferences{MaxPrepaymentAmount: -1}, true},
		{"Negative EMI increase", Preferences{MaxEMIIncrease: -1}, true},
		{"Month too large", Preferences{PreferredPrepaymentMonth: 12}, true},
		{"Month negative", Preferences{PreferredPrepaymentMonth: -1}, true},
		{"Weight above 100", Preferences{ScoreWeightInterest: floatPtr(101)}, true},
		{"Weight below 0", Preferences{ScoreWeightInterest: floatPtr(-5)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs := tt.prefs
			err := prefs.Validate()
			if tt.expectErr && err == nil {
				t.Errorf("Validate() expected error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
		})
	}

	var nilPrefs *Preferences
	if err := nilPrefs.Validate(); err == nil {
		t.Errorf("Validate() on nil preferences should fail")
	}
}

func TestStrategyFamilyText(t *testing.T) {
	for _, family := range []StrategyFamily{OneTimePrepayment, RecurringPrepayment, EMIIncrease, Combined} {
		text, err := family.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d) error = %v", family, err)
		}
		var decoded StrategyFamily
		if err := decoded.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q) error = %v", text, err)
		}
		if decoded != family {
			t.Errorf("round trip of %s produced %s", family, decoded)
		}
	}

	if _, err := StrategyFamily(42).MarshalText(); err == nil {
		t.Errorf("MarshalText should reject unknown families")
	}
	if StrategyFamily(42).String() != "StrategyFamily(42)" {
		t.Errorf("unexpected String() for unknown family: %s", StrategyFamily(42))
	}
}

func TestSuggestionJSON(t *testing.T) {
	s := Suggestion{ID: "emi-increase-1000", Family: EMIIncrease, Strategy: Strategy{NewEMI: 1000}}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if decoded["family"] != "emi-increase" {
		t.Errorf("expected family emi-increase, got %v", decoded["family"])
	}
	if _, ok := decoded["sentinel"]; ok {
		t.Errorf("sentinel should be omitted for real suggestions")
	}
	if s.IsSentinel() {
		t.Errorf("real suggestion reported as sentinel")
	}
	if !(Suggestion{Sentinel: SentinelNoBenefit}).IsSentinel() {
		t.Errorf("sentinel not detected")
	}
}
