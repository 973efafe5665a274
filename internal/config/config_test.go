package config

import (
	"testing"
	"time"
)

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if v := envInt("TEST_INT", 0); v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestEnvIntFallback(t *testing.T) {
	// TEST_INT_MISSING is not set.
	if v := envInt("TEST_INT_MISSING", 99); v != 99 {
		t.Fatalf("expected fallback 99, got %d", v)
	}
}

func TestEnvIntInvalidFallsBack(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	if v := envInt("TEST_INT_BAD", 7); v != 7 {
		t.Fatalf("expected fallback 7 on unparsable value, got %d", v)
	}
}

func TestEnvFloatValid(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.45")
	if v := envFloat("TEST_FLOAT", 0); v != 0.45 {
		t.Fatalf("expected 0.45, got %f", v)
	}
}

func TestEnvDurationValid(t *testing.T) {
	t.Setenv("TEST_DUR", "5s")
	if v := envDuration("TEST_DUR", 0); v.Seconds() != 5 {
		t.Fatalf("expected 5s, got %s", v)
	}
}

func TestEnvDurationInvalidFallsBack(t *testing.T) {
	t.Setenv("TEST_DUR_BAD", "five-seconds")
	if v := envDuration("TEST_DUR_BAD", time.Second); v != time.Second {
		t.Fatalf("expected fallback 1s, got %s", v)
	}
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed with defaults, got: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.LedgerDriver != "memory" {
		t.Fatalf("expected default ledger driver memory, got %q", cfg.LedgerDriver)
	}
	if cfg.HistoryCapacity != 50 {
		t.Fatalf("expected default history capacity 50, got %d", cfg.HistoryCapacity)
	}
	if cfg.CompromiseDuration != 30*time.Second {
		t.Fatalf("expected default compromise duration 30s, got %s", cfg.CompromiseDuration)
	}
}

func TestLoadFailsOnUnknownLedgerDriver(t *testing.T) {
	t.Setenv("VERIDEX_LEDGER_DRIVER", "cassandra")
	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to fail with unknown ledger driver")
	}
}

func TestLoadFailsOnPostgresWithoutURL(t *testing.T) {
	t.Setenv("VERIDEX_LEDGER_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to fail without DATABASE_URL")
	}
}

func TestLoadFailsOnInvertedLatencyBounds(t *testing.T) {
	t.Setenv("VERIDEX_AGENT_LATENCY_MIN", "200ms")
	t.Setenv("VERIDEX_AGENT_LATENCY_MAX", "100ms")
	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to fail with max latency below min")
	}
}

func TestLoadFailsOnMaliciousProbabilityOutOfRange(t *testing.T) {
	t.Setenv("VERIDEX_MALICIOUS_PROBABILITY", "1.5")
	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to fail with probability above 1")
	}
}
