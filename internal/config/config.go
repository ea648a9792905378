// Package config defines the data structures related to configuration and
// includes functions for loading and parsing the config.
package config

import (
	"fmt"
	"io"
	"time"

	"github.com/iwvelando/emi-optimizer/pkg/amortization"
	"github.com/iwvelando/emi-optimizer/pkg/datetime"
	"github.com/iwvelando/emi-optimizer/pkg/optimization"
	"github.com/iwvelando/emi-optimizer/pkg/validation"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for emi-optimizer.
type Configuration struct {
	Loan        LoanConfig               `yaml:"loan" mapstructure:"loan"`
	Events      []EventConfig            `yaml:"events,omitempty" mapstructure:"events"`
	Preferences optimization.Preferences `yaml:"preferences,omitempty" mapstructure:"preferences"`
	Logging     LoggingConfig            `yaml:"logging,omitempty" mapstructure:"logging"`
	Output      OutputConfig             `yaml:"output,omitempty" mapstructure:"output"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" mapstructure:"level"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" mapstructure:"format"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty" mapstructure:"format"` // pretty, csv, json
}

// LoanConfig is the loan as written in the config file. An omitted start
// month or year defaults to the current one.
type LoanConfig struct {
	Principal      float64 `yaml:"principal" mapstructure:"principal"`
	AnnualRate     float64 `yaml:"annualRate" mapstructure:"annualRate"`
	DurationMonths int     `yaml:"durationMonths" mapstructure:"durationMonths"`
	ManualEMI      float64 `yaml:"manualEmi,omitempty" mapstructure:"manualEmi"`
	StartMonth     *int    `yaml:"startMonth,omitempty" mapstructure:"startMonth"` // 0 = January
	StartYear      int     `yaml:"startYear,omitempty" mapstructure:"startYear"`
}

// EventConfig is a prepayment or EMI change used by simulations.
type EventConfig struct {
	Kind   string  `yaml:"kind" mapstructure:"kind"` // prepayment, emi-change
	Month  int     `yaml:"month" mapstructure:"month"`
	Amount float64 `yaml:"amount" mapstructure:"amount"`
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()

	v.SetConfigType("yml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %w", err)
	}

	return decode(v)
}

// Empty returns a configuration with default preferences and no loan, for
// loans given entirely on the command line.
func Empty() *Configuration {
	configuration := &Configuration{Preferences: optimization.DefaultPreferences()}
	configuration.Preferences.Normalize()
	return configuration
}

// LoadConfigurationFromReader loads a YAML-formatted configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := viper.New()
	v.SetConfigType("yml")

	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config, %s", err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	err := v.Unmarshal(&configuration)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	configuration.Preferences.Normalize()
	return &configuration, nil
}

// LoanParameters converts the loan section, filling an omitted start from now.
func (c *Configuration) LoanParameters(now time.Time) amortization.LoanParameters {
	params := amortization.LoanParameters{
		Principal:      c.Loan.Principal,
		AnnualRate:     c.Loan.AnnualRate,
		DurationMonths: c.Loan.DurationMonths,
		ManualEMI:      c.Loan.ManualEMI,
		StartMonth:     int(now.Month()) - 1,
		StartYear:      now.Year(),
	}
	if c.Loan.StartMonth != nil {
		params.StartMonth = *c.Loan.StartMonth
	}
	if c.Loan.StartYear != 0 {
		params.StartYear = c.Loan.StartYear
	}
	return params
}

// SimulationEvents converts the events section.
func (c *Configuration) SimulationEvents() ([]amortization.Event, error) {
	events := make([]amortization.Event, 0, len(c.Events))
	for i, ec := range c.Events {
		var kind amortization.EventKind
		if err := kind.UnmarshalText([]byte(ec.Kind)); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, amortization.Event{Kind: kind, Month: ec.Month, Amount: ec.Amount})
	}
	if err := amortization.ValidateEvents(events); err != nil {
		return nil, err
	}
	return events, nil
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	prefs := c.Preferences
	prefs.Normalize()

	if !prefs.PrepaymentFrequency.Recurring() && prefs.PreferredPrepaymentMonth != 0 {
		warnings = append(warnings, fmt.Sprintf(
			"preferred prepayment month %s only aligns recurring prepayments and is otherwise a one-time candidate month",
			datetime.MonthName(prefs.PreferredPrepaymentMonth)))
	}
	warnings = append(warnings, validation.ValidatePrepaymentCap(prefs.MaxPrepaymentAmount, c.Loan.Principal)...)
	if c.Loan.ManualEMI > 0 && prefs.MaxEMIIncrease > 0 {
		warnings = append(warnings, "maximum EMI increase is applied on top of the manual EMI")
	}
	events := make([]validation.EventInfo, 0, len(c.Events))
	for _, event := range c.Events {
		events = append(events, validation.EventInfo{Kind: event.Kind, Month: event.Month})
	}
	warnings = append(warnings, validation.ValidateEventMonths(events, c.Loan.DurationMonths)...)

	return warnings
}
