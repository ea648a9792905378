// Package constants provides shared constants for the emi-optimizer application.
package constants

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DecimalPlaces is the number of decimal places kept for currency values
	DecimalPlaces = 2

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// NegligibleBalance is the balance below which a loan is considered closed
	NegligibleBalance = 0.01
)

// Loan parameter bounds
const (
	// MinStartYear is the earliest accepted loan start year
	MinStartYear = 1900

	// MaxStartYear is the latest accepted loan start year
	MaxStartYear = 2200

	// MaxDurationMonths is the longest accepted loan term (100 years)
	MaxDurationMonths = 1200

	// SimulationHorizonMultiplier bounds simulated schedules to this multiple of the original duration
	SimulationHorizonMultiplier = 2
)

// Strategy search constants
const (
	// MonthlyCoverageMonths is the window in which every month is a prepayment candidate
	MonthlyCoverageMonths = 24

	// QuarterlyCoverageMonths is the window in which every third month is a candidate
	QuarterlyCoverageMonths = 60

	// MaxPrepaymentHorizonMonths caps the last month considered for a one-time prepayment
	MaxPrepaymentHorizonMonths = 120

	// QuarterlyFrequency is the step used in the quarterly coverage window
	QuarterlyFrequency = 3

	// HalfYearlyFrequency is the interval for half-yearly recurring prepayments
	HalfYearlyFrequency = 6

	// AnnualFrequency is the interval for annual recurring prepayments
	AnnualFrequency = 12

	// LightPrepaymentMultiplier is the default "light" prepayment in baseline EMIs
	LightPrepaymentMultiplier = 1.0

	// HeavyPrepaymentMultiplier is the default "heavy" prepayment in baseline EMIs
	HeavyPrepaymentMultiplier = 3.0

	// ModestEMIIncreasePercent is the EMI bump paired with the best prepayment
	ModestEMIIncreasePercent = 5.0

	// MaterialitySavingsRatio is the share of one EMI a candidate must save to be "best"
	MaterialitySavingsRatio = 0.10

	// MaxSuggestions is the number of suggestions surfaced after ranking
	MaxSuggestions = 5

	// DefaultScoreWeightInterest is the default weighting of interest saved (0-100)
	DefaultScoreWeightInterest = 50.0

	// ScoreScale scales raw scores for display
	ScoreScale = 100.0
)

// DefaultEMIIncreasePercents are the EMI bumps tried when no maximum increase is given.
var DefaultEMIIncreasePercents = []float64{5, 10, 15}

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum request body size (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024

	// DefaultRateLimitRequests is the default number of requests per client per window
	DefaultRateLimitRequests = 60

	// DefaultRateLimitWindow is the default rate limit window
	DefaultRateLimitWindow = "1m"

	// DefaultReadTimeout bounds reading a whole request
	DefaultReadTimeout = "15s"

	// DefaultWriteTimeout bounds writing a response; strategy searches on long loans take a while
	DefaultWriteTimeout = "30s"

	// DefaultIdleTimeout bounds keep-alive connections
	DefaultIdleTimeout = "60s"

	// DefaultShutdownTimeout is how long in-flight requests may drain on shutdown
	DefaultShutdownTimeout = "10s"
)
