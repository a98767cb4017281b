// Package config loads runtime settings from the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/commjoen/siteprobe/internal/reachability"
)

const (
	envPrefix = "SITEPROBE_"

	defaultAddr         = ":8080"
	defaultTimeout      = 10 * time.Second
	defaultMaxBodyBytes = 5 << 20
)

// Config holds application configuration
type Config struct {
	Addr           string
	Timeout        time.Duration
	UserAgent      string
	MaxBodyBytes   int64
	TimingMode     reachability.TimingMode
	DNSEnabled     bool
	WHOISEnabled   bool
	MetricsEnabled bool
	LogLevel       string
	LogFormat      string
	GinMode        string
}

// Default returns the configuration used when no environment is set
func Default() *Config {
	return &Config{
		Addr:           defaultAddr,
		Timeout:        defaultTimeout,
		UserAgent:      reachability.DefaultUserAgent,
		MaxBodyBytes:   defaultMaxBodyBytes,
		TimingMode:     reachability.TimingEstimated,
		DNSEnabled:     true,
		WHOISEnabled:   false,
		MetricsEnabled: true,
		LogLevel:       "info",
		LogFormat:      "json",
		GinMode:        "release",
	}
}

// Load reads an optional .env file and then the process environment.
// A missing default .env is ignored; an explicitly named file must exist.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	} else {
		// Load .env file if it exists
		_ = godotenv.Load()
	}

	cfg := Default()
	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	cfg.Addr = getEnv("ADDR", cfg.Addr)
	cfg.UserAgent = getEnv("USER_AGENT", cfg.UserAgent)
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", cfg.LogFormat))
	cfg.GinMode = getEnv("GIN_MODE", cfg.GinMode)
	cfg.TimingMode = reachability.TimingMode(strings.ToLower(getEnv("TIMING_MODE", string(cfg.TimingMode))))

	var err error
	if cfg.Timeout, err = getEnvDuration("TIMEOUT", cfg.Timeout); err != nil {
		return nil, err
	}
	if cfg.MaxBodyBytes, err = getEnvInt64("MAX_BODY_BYTES", cfg.MaxBodyBytes); err != nil {
		return nil, err
	}
	if cfg.DNSEnabled, err = getEnvBool("DNS_ENABLED", cfg.DNSEnabled); err != nil {
		return nil, err
	}
	if cfg.WHOISEnabled, err = getEnvBool("WHOIS_ENABLED", cfg.WHOISEnabled); err != nil {
		return nil, err
	}
	if cfg.MetricsEnabled, err = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("address must not be empty")
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	case c.MaxBodyBytes <= 0:
		return fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes)
	}

	switch c.TimingMode {
	case reachability.TimingEstimated, reachability.TimingTraced:
	default:
		return fmt.Errorf("unknown timing mode %q (want estimated or traced)", c.TimingMode)
	}

	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q (want json or console)", c.LogFormat)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unknown gin mode %q (want debug, release or test)", c.GinMode)
	}

	return nil
}

// getEnv retrieves a prefixed environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	return d, nil
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
	}
	return b, nil
}
