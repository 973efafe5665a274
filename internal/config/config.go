// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Ledger settings.
	LedgerDriver string // "memory", "sqlite", or "postgres"
	LedgerPath   string // SQLite file path; ":memory:" for ephemeral.
	DatabaseURL  string // Postgres URL, required for the postgres driver.

	// Coordination settings.
	HistoryCapacity    int
	DispatchTimeout    time.Duration
	CompromiseDuration time.Duration
	Seed               int64 // Base RNG seed; 0 derives one from the clock.

	// Agent simulation settings.
	AgentLatencyMin      time.Duration
	AgentLatencyMax      time.Duration
	MaliciousProbability float64

	// Explainability settings.
	ExplanationCapacity int

	// Admin endpoints (attack simulation, analytics export).
	AdminToken string

	// Rate limiting on identity submission.
	RateLimitRPS   float64
	RateLimitBurst int

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                 envInt("VERIDEX_PORT", 8080),
		ReadTimeout:          envDuration("VERIDEX_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:         envDuration("VERIDEX_WRITE_TIMEOUT", 30*time.Second),
		LedgerDriver:         envStr("VERIDEX_LEDGER_DRIVER", "memory"),
		LedgerPath:           envStr("VERIDEX_LEDGER_PATH", "veridex.db"),
		DatabaseURL:          envStr("DATABASE_URL", ""),
		HistoryCapacity:      envInt("VERIDEX_HISTORY_CAPACITY", 50),
		DispatchTimeout:      envDuration("VERIDEX_DISPATCH_TIMEOUT", 10*time.Second),
		CompromiseDuration:   envDuration("VERIDEX_COMPROMISE_DURATION", 30*time.Second),
		Seed:                 int64(envInt("VERIDEX_SEED", 0)),
		AgentLatencyMin:      envDuration("VERIDEX_AGENT_LATENCY_MIN", 50*time.Millisecond),
		AgentLatencyMax:      envDuration("VERIDEX_AGENT_LATENCY_MAX", 150*time.Millisecond),
		MaliciousProbability: envFloat("VERIDEX_MALICIOUS_PROBABILITY", 0.3),
		ExplanationCapacity:  envInt("VERIDEX_EXPLANATION_CAPACITY", 100),
		AdminToken:           envStr("VERIDEX_ADMIN_TOKEN", ""),
		RateLimitRPS:         envFloat("VERIDEX_RATE_LIMIT_RPS", 10),
		RateLimitBurst:       envInt("VERIDEX_RATE_LIMIT_BURST", 20),
		OTELEndpoint:         envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:         envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:          envStr("OTEL_SERVICE_NAME", "veridex"),
		LogLevel:             envStr("VERIDEX_LOG_LEVEL", "info"),
		MaxRequestBodyBytes:  int64(envInt("VERIDEX_MAX_REQUEST_BODY_BYTES", 1*1024*1024)), // 1 MB default
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c Config) Validate() error {
	switch c.LedgerDriver {
	case "memory", "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the postgres ledger driver")
		}
	default:
		return fmt.Errorf("config: unknown ledger driver %q", c.LedgerDriver)
	}
	if c.HistoryCapacity <= 0 {
		return fmt.Errorf("config: VERIDEX_HISTORY_CAPACITY must be positive")
	}
	if c.ExplanationCapacity <= 0 {
		return fmt.Errorf("config: VERIDEX_EXPLANATION_CAPACITY must be positive")
	}
	if c.AgentLatencyMax < c.AgentLatencyMin {
		return fmt.Errorf("config: VERIDEX_AGENT_LATENCY_MAX must be >= VERIDEX_AGENT_LATENCY_MIN")
	}
	if c.MaliciousProbability < 0 || c.MaliciousProbability > 1 {
		return fmt.Errorf("config: VERIDEX_MALICIOUS_PROBABILITY must be in [0, 1]")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: VERIDEX_MAX_REQUEST_BODY_BYTES must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
