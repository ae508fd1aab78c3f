package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_URL", "LOCAL_DB_PATH", "TEAM_CAPACITY", "SAMPLING_BUDGET",
		"ECHO_WINDOW", "DEBOUNCE_WINDOW", "RETRY_MAX_ATTEMPTS", "RETRY_MAX_DELAY", "TEST_MODE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, "")
	}
	if cfg.LocalDBPath != "northstar-local.db" {
		t.Errorf("LocalDBPath = %q, want %q", cfg.LocalDBPath, "northstar-local.db")
	}
	if cfg.TeamCapacity != 12 {
		t.Errorf("TeamCapacity = %d, want %d", cfg.TeamCapacity, 12)
	}
	if cfg.SamplingBudget != 300 {
		t.Errorf("SamplingBudget = %d, want %d", cfg.SamplingBudget, 300)
	}
	if cfg.EchoWindow != 500*time.Millisecond {
		t.Errorf("EchoWindow = %v, want %v", cfg.EchoWindow, 500*time.Millisecond)
	}
	if cfg.DebounceWindow != 200*time.Millisecond {
		t.Errorf("DebounceWindow = %v, want %v", cfg.DebounceWindow, 200*time.Millisecond)
	}
	if cfg.RetryMaxAttempts != 4 {
		t.Errorf("RetryMaxAttempts = %d, want %d", cfg.RetryMaxAttempts, 4)
	}
	if cfg.RetryMaxDelay != 2*time.Second {
		t.Errorf("RetryMaxDelay = %v, want %v", cfg.RetryMaxDelay, 2*time.Second)
	}
	if cfg.TestMode {
		t.Error("TestMode = true, want false")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("DATABASE_URL", "postgres://localhost/northstar")
	t.Setenv("TEAM_CAPACITY", "6")
	t.Setenv("ECHO_WINDOW", "1s")
	t.Setenv("TEST_MODE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want %q", cfg.Port, "3000")
	}
	if cfg.DatabaseURL != "postgres://localhost/northstar" {
		t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, "postgres://localhost/northstar")
	}
	if cfg.TeamCapacity != 6 {
		t.Errorf("TeamCapacity = %d, want %d", cfg.TeamCapacity, 6)
	}
	if cfg.EchoWindow != time.Second {
		t.Errorf("EchoWindow = %v, want %v", cfg.EchoWindow, time.Second)
	}
	if !cfg.TestMode {
		t.Error("TestMode = false, want true")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"TEAM_CAPACITY", "abc"},
		{"TEAM_CAPACITY", "0"},
		{"SAMPLING_BUDGET", "-5"},
		{"RETRY_MAX_ATTEMPTS", "0"},
		{"ECHO_WINDOW", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q should fail", tt.key, tt.value)
			}
		})
	}
}

func TestConfig_GameAndRetry(t *testing.T) {
	cfg := Config{TeamCapacity: 8, SamplingBudget: 150, RetryMaxAttempts: 6, RetryMaxDelay: 50 * time.Millisecond}

	g := cfg.Game()
	if g.TeamCapacity != 8 || g.SamplingBudget != 150 {
		t.Errorf("Game() capacity/budget = %d/%d, want 8/150", g.TeamCapacity, g.SamplingBudget)
	}
	if g.MaxCriteria != 3 {
		t.Errorf("Game().MaxCriteria = %d, want default 3", g.MaxCriteria)
	}

	p := cfg.Retry()
	if p.MaxAttempts != 6 {
		t.Errorf("Retry().MaxAttempts = %d, want 6", p.MaxAttempts)
	}
	if p.InitialDelay > p.MaxDelay {
		t.Errorf("Retry().InitialDelay = %v exceeds MaxDelay %v", p.InitialDelay, p.MaxDelay)
	}
}
