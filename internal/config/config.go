package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"northstar/internal/gamedata"
	"northstar/internal/retry"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	LocalDBPath string `env:"LOCAL_DB_PATH" envDefault:"northstar-local.db"`

	TeamCapacity   int `env:"TEAM_CAPACITY" envDefault:"12"`
	SamplingBudget int `env:"SAMPLING_BUDGET" envDefault:"300"`

	EchoWindow       time.Duration `env:"ECHO_WINDOW" envDefault:"500ms"`
	DebounceWindow   time.Duration `env:"DEBOUNCE_WINDOW" envDefault:"200ms"`
	RetryMaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"4"`
	RetryMaxDelay    time.Duration `env:"RETRY_MAX_DELAY" envDefault:"2s"`

	TestMode bool `env:"TEST_MODE" envDefault:"false"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.TeamCapacity < 1 {
		return Config{}, fmt.Errorf("TEAM_CAPACITY must be positive, got %d", cfg.TeamCapacity)
	}
	if cfg.SamplingBudget < 1 {
		return Config{}, fmt.Errorf("SAMPLING_BUDGET must be positive, got %d", cfg.SamplingBudget)
	}
	if cfg.RetryMaxAttempts < 1 {
		return Config{}, fmt.Errorf("RETRY_MAX_ATTEMPTS must be positive, got %d", cfg.RetryMaxAttempts)
	}
	return cfg, nil
}

// Game returns the game tunables with the configured capacity and budget.
func (c Config) Game() gamedata.Config {
	g := gamedata.DefaultConfig()
	g.TeamCapacity = c.TeamCapacity
	g.SamplingBudget = c.SamplingBudget
	return g
}

func (c Config) Retry() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = c.RetryMaxAttempts
	p.MaxDelay = c.RetryMaxDelay
	if p.InitialDelay > p.MaxDelay {
		p.InitialDelay = p.MaxDelay
	}
	return p
}
