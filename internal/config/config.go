// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Model serving
	ModelPath     string // Path to the model artifact JSON (required)
	SchemaVersion string // Serving feature schema version

	// Scoring settings
	ThresholdLow  float64 // Upper bound of the low risk band
	ThresholdHigh float64 // Lower bound of the high risk band
	UnknownCode   float64 // Encoding for out-of-vocabulary categoricals

	// Security
	RateLimitRPS int

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint for traces (optional)
}

const (
	DefaultPort          = "8080"
	DefaultEnv           = "development"
	DefaultLogLevel      = "info"
	DefaultModelPath     = "models/fraud_model.json"
	DefaultThresholdLow  = 0.3
	DefaultThresholdHigh = 0.7
	DefaultUnknownCode   = -1
	DefaultRateLimit     = 100
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", DefaultPort),
		Env:           getEnv("ENV", DefaultEnv),
		LogLevel:      getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:   os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		ModelPath:     getEnv("MODEL_PATH", DefaultModelPath),
		SchemaVersion: os.Getenv("SCHEMA_VERSION"), // Optional, pinned default if not set
		ThresholdLow:  getEnvFloat("THRESHOLD_LOW", DefaultThresholdLow),
		ThresholdHigh: getEnvFloat("THRESHOLD_HIGH", DefaultThresholdHigh),
		UnknownCode:   getEnvFloat("UNKNOWN_CATEGORY_CODE", DefaultUnknownCode),
		RateLimitRPS:  int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
		OTLPEndpoint:  os.Getenv("OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("MODEL_PATH is required")
	}

	if c.ThresholdLow < 0 || c.ThresholdLow > 1 {
		return fmt.Errorf("THRESHOLD_LOW must be in [0, 1]")
	}
	if c.ThresholdHigh < 0 || c.ThresholdHigh > 1 {
		return fmt.Errorf("THRESHOLD_HIGH must be in [0, 1]")
	}
	if c.ThresholdLow >= c.ThresholdHigh {
		return fmt.Errorf("THRESHOLD_LOW must be below THRESHOLD_HIGH")
	}

	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
