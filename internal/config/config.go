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
	GRPCHealthPort string
	AppEnv         string
	AllowedOrigin  string

	DB      DBConfig
	LLM     LLMConfig
	Session SessionConfig

	MessageRatePerSec  float64
	MessageRateBurst   int
	PersistTimeout     time.Duration
	IncrementalSummary bool
}

// DBConfig selects the ticket store.
type DBConfig struct {
	Driver      string // "sqlite", "postgres" or "none"
	Path        string
	DatabaseURL string
}

// LLMConfig controls the OpenAI-compatible generation client.
type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	Timeout        time.Duration
	MaxRetries     int
	MaxConcurrency int
}

// SessionConfig bounds the in-memory session registry.
type SessionConfig struct {
	IdleTTL     time.Duration
	MaxSessions int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GRPCHealthPort: getEnv("GRPC_HEALTH_PORT", "9090"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AllowedOrigin:  getEnv("ALLOWED_ORIGIN", ""),
		DB: DBConfig{
			Driver:      strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			Path:        getEnv("DB_PATH", "./data/supportdesk.db"),
			DatabaseURL: getEnv("DATABASE_URL", ""),
		},
		LLM: LLMConfig{
			BaseURL:        getEnv("LLM_BASE_URL", "http://localhost:11434/v1"),
			APIKey:         getEnv("LLM_API_KEY", "ollama"),
			Model:          getEnv("LLM_MODEL", "llama3.2:1b"),
			Timeout:        getEnvDuration("LLM_TIMEOUT", 60*time.Second),
			MaxRetries:     getEnvInt("LLM_MAX_RETRIES", 2),
			MaxConcurrency: getEnvInt("LLM_MAX_CONCURRENCY", 4),
		},
		Session: SessionConfig{
			IdleTTL:     getEnvDuration("SESSION_IDLE_TTL", 60*time.Minute),
			MaxSessions: getEnvInt("SESSION_MAX", 1000),
		},
		MessageRatePerSec:  getEnvFloat("MESSAGE_RATE_PER_SEC", 1),
		MessageRateBurst:   getEnvInt("MESSAGE_RATE_BURST", 5),
		PersistTimeout:     getEnvDuration("PERSIST_TIMEOUT", 10*time.Second),
		IncrementalSummary: getEnvBool("SUMMARY_INCREMENTAL", false),
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
	switch c.DB.Driver {
	case "sqlite":
		if c.DB.Path == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case "postgres":
		if c.DB.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	case "none":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM_MODEL cannot be empty")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("LLM_MAX_RETRIES must be >= 0")
	}
	if c.LLM.MaxConcurrency <= 0 {
		return fmt.Errorf("LLM_MAX_CONCURRENCY must be > 0")
	}
	if c.Session.MaxSessions <= 0 {
		return fmt.Errorf("SESSION_MAX must be > 0")
	}
	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be > 0")
	}
	if c.MessageRatePerSec <= 0 || c.MessageRateBurst <= 0 {
		return fmt.Errorf("MESSAGE_RATE_PER_SEC and MESSAGE_RATE_BURST must be > 0")
	}
	if c.PersistTimeout <= 0 {
		return fmt.Errorf("PERSIST_TIMEOUT must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.AppEnv)
	return env == "" || env == "development" || env == "dev" || env == "local"
}

// StoreEnabled reports whether tickets are persisted.
func (c *Config) StoreEnabled() bool {
	return c.DB.Driver != "none"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
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

// getEnvDuration accepts Go duration strings ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
