// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	APIKey         string
	AllowedOrigins []string
	RandomSeed     uint64

	Session   SessionConfig
	Callback  CallbackConfig
	RateLimit RateLimitConfig

	// GRPCHealthPort enables the gRPC health server when non-empty.
	GRPCHealthPort string
}

// SessionConfig controls in-memory session eviction.
type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration // 0 disables the background worker
}

// CallbackConfig controls delivery of completion reports.
type CallbackConfig struct {
	URL     string // empty means reports are only logged
	Timeout time.Duration
}

// RateLimitConfig is the per-client token bucket.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8000"),
		APIKey:         getEnv("API_KEY", ""),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		RandomSeed:     uint64(getEnvInt("RANDOM_SEED", 0)),
		Session: SessionConfig{
			TTL:           getEnvDuration("SESSION_TTL", time.Hour),
			SweepInterval: getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		},
		Callback: CallbackConfig{
			URL:     getEnv("CALLBACK_URL", ""),
			Timeout: getEnvDuration("CALLBACK_TIMEOUT", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvFloat("RATE_LIMIT_RPS", 10),
			Burst: getEnvInt("RATE_LIMIT_BURST", 20),
		},
		GRPCHealthPort: getEnv("GRPC_HEALTH_PORT", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY cannot be empty")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Session.SweepInterval < 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be >= 0")
	}
	if c.Callback.Timeout <= 0 {
		return fmt.Errorf("CALLBACK_TIMEOUT must be > 0")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be > 0")
	}
	return nil
}

// ReportsEnabled returns true if completion reports are posted to a callback URL.
func (c *Config) ReportsEnabled() bool {
	return c.Callback.URL != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
