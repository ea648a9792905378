package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/iwvelando/emi-optimizer/internal/config"
	"github.com/iwvelando/emi-optimizer/pkg/constants"
	"gopkg.in/yaml.v3"
)

// Config defines runtime parameters for the HTTP server.
type Config struct {
	Address       string               `yaml:"address"`
	MaxUploadSize string               `yaml:"maxUploadSize"`
	Logging       config.LoggingConfig `yaml:"logging"`
	RateLimit     RateLimitConfig      `yaml:"rateLimit"`
	Timeouts      TimeoutConfig        `yaml:"timeouts"`

	uploadSizeBytes int64
}

// RateLimitConfig bounds how many API requests a single client may make per
// window. Requests <= 0 disables rate limiting.
type RateLimitConfig struct {
	Requests int    `yaml:"requests"`
	Window   string `yaml:"window"`
	window   time.Duration
}

// WindowDuration returns the parsed rate limit window.
func (r RateLimitConfig) WindowDuration() time.Duration {
	return r.window
}

// TimeoutConfig holds the http.Server timeouts and the grace period given to
// in-flight requests on shutdown.
type TimeoutConfig struct {
	Read     string `yaml:"read"`
	Write    string `yaml:"write"`
	Idle     string `yaml:"idle"`
	Shutdown string `yaml:"shutdown"`

	read, write, idle, shutdown time.Duration
}

// ReadDuration returns the parsed read timeout.
func (t TimeoutConfig) ReadDuration() time.Duration { return t.read }

// WriteDuration returns the parsed write timeout.
func (t TimeoutConfig) WriteDuration() time.Duration { return t.write }

// IdleDuration returns the parsed idle timeout.
func (t TimeoutConfig) IdleDuration() time.Duration { return t.idle }

// ShutdownDuration returns the parsed shutdown grace period.
func (t TimeoutConfig) ShutdownDuration() time.Duration { return t.shutdown }

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	cfg := &Config{
		Address:       constants.DefaultServerAddress,
		MaxUploadSize: strconv.FormatInt(constants.DefaultMaxUploadSizeBytes, 10),
		RateLimit: RateLimitConfig{
			Requests: constants.DefaultRateLimitRequests,
		},
	}
	// defaults always parse
	_ = cfg.normalize()
	return cfg
}

// LoadConfig loads the server configuration from YAML. If the file does not exist,
// defaults are returned without error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read server config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse server config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UploadSizeBytes returns the configured request body limit in bytes.
func (c *Config) UploadSizeBytes() int64 {
	return c.uploadSizeBytes
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.Address) == "" {
		c.Address = constants.DefaultServerAddress
	}

	size, err := ParseSize(c.MaxUploadSize)
	if err != nil {
		return err
	}
	if size <= 0 {
		size = constants.DefaultMaxUploadSizeBytes
	}
	c.uploadSizeBytes = size

	if c.RateLimit.window, err = parseDuration("rate limit window", &c.RateLimit.Window, constants.DefaultRateLimitWindow); err != nil {
		return err
	}

	t := &c.Timeouts
	if t.read, err = parseDuration("read timeout", &t.Read, constants.DefaultReadTimeout); err != nil {
		return err
	}
	if t.write, err = parseDuration("write timeout", &t.Write, constants.DefaultWriteTimeout); err != nil {
		return err
	}
	if t.idle, err = parseDuration("idle timeout", &t.Idle, constants.DefaultIdleTimeout); err != nil {
		return err
	}
	if t.shutdown, err = parseDuration("shutdown timeout", &t.Shutdown, constants.DefaultShutdownTimeout); err != nil {
		return err
	}
	return nil
}

// parseDuration parses a positive duration, writing the default back into
// value when it is blank.
func parseDuration(name string, value *string, fallback string) (time.Duration, error) {
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		trimmed = fallback
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, *value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s %q must be positive", name, *value)
	}
	*value = trimmed
	return d, nil
}

var sizeUnits = map[string]int64{
	"":   1,
	"B":  1,
	"K":  1 << 10,
	"KB": 1 << 10,
	"M":  1 << 20,
	"MB": 1 << 20,
	"G":  1 << 30,
	"GB": 1 << 30,
}

// ParseSize converts a human-friendly byte string (e.g., "256K", "10M") into
// bytes. A blank value selects the default request limit.
func ParseSize(value string) (int64, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		return constants.DefaultMaxUploadSizeBytes, nil
	}

	split := strings.LastIndexFunc(trimmed, unicode.IsDigit) + 1
	if split == 0 {
		return 0, fmt.Errorf("invalid size: %s", value)
	}

	n, err := strconv.ParseInt(strings.TrimSpace(trimmed[:split]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q: %w", value, err)
	}
	multiplier, ok := sizeUnits[strings.TrimSpace(trimmed[split:])]
	if !ok {
		return 0, fmt.Errorf("unsupported size unit %q", strings.TrimSpace(trimmed[split:]))
	}

	result := n * multiplier
	if n != 0 && result/multiplier != n {
		return 0, fmt.Errorf("size overflow for value %s", value)
	}
	return result, nil
}
