// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server settings.
type Config struct {
	// HTTP Server
	Port            int
	ShutdownTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Settlement
	CurrencyPlaces    int
	MaxMembers        int
	MaxExpenses       int
	ResidualTolerance int64

	// loadErrors holds environment values that could not be parsed.
	loadErrors []string
}

// Load reads a .env file if present, then builds the config from environment variables.
func Load() *Config {
	// Missing .env is fine; real environment variables take precedence.
	_ = godotenv.Load()

	c := &Config{}
	c.Port = c.getEnvInt("PORT", 8080)
	c.ShutdownTimeout = c.getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)

	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.LogFormat = getEnv("LOG_FORMAT", "text")

	c.CurrencyPlaces = c.getEnvInt("CURRENCY_PLACES", 2)
	c.MaxMembers = c.getEnvInt("MAX_MEMBERS", 1000)
	c.MaxExpenses = c.getEnvInt("MAX_EXPENSES", 10000)
	c.ResidualTolerance = int64(c.getEnvInt("RESIDUAL_TOLERANCE", 1))
	return c
}

// Validate returns an error describing every invalid setting.
func (c *Config) Validate() error {
	problems := append([]string(nil), c.loadErrors...)

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Port))
	}
	if c.ShutdownTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("invalid shutdown timeout %s: must be positive", c.ShutdownTimeout))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if c.CurrencyPlaces < 0 || c.CurrencyPlaces > 8 {
		problems = append(problems, fmt.Sprintf("invalid currency places %d: must be between 0 and 8", c.CurrencyPlaces))
	}
	if c.MaxMembers < 2 {
		problems = append(problems, fmt.Sprintf("invalid max members %d: must be at least 2", c.MaxMembers))
	}
	if c.MaxExpenses < 1 {
		problems = append(problems, fmt.Sprintf("invalid max expenses %d: must be at least 1", c.MaxExpenses))
	}
	if c.ResidualTolerance < 0 {
		problems = append(problems, fmt.Sprintf("invalid residual tolerance %d: cannot be negative", c.ResidualTolerance))
	}

	if len(problems) > 0 {
		return errors.New("configuration validation failed: " + strings.Join(problems, "; "))
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func (c *Config) getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		c.loadErrors = append(c.loadErrors, fmt.Sprintf("invalid %s '%s': not an integer", key, value))
		return fallback
	}
	return n
}

func (c *Config) getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		c.loadErrors = append(c.loadErrors, fmt.Sprintf("invalid %s '%s': not a duration", key, value))
		return fallback
	}
	return d
}
