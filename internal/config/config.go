// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings. Betting bounds and the win multiplier
// are server-held; clients never supply them.
type Config struct {
	Addr        string `env:"ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	WebDir      string `env:"WEB_DIR" envDefault:"web"`

	// ServerSecret feeds per-session layout key derivation.
	ServerSecret string `env:"SERVER_SECRET"`

	MinBetCents   int64   `env:"MIN_BET_CENTS" envDefault:"100"`
	MaxBetCents   int64   `env:"MAX_BET_CENTS" envDefault:"10000"`
	WinMultiplier float64 `env:"WIN_MULTIPLIER" envDefault:"2.5"`

	PairCount   int           `env:"PAIR_COUNT" envDefault:"8"`
	MovesBudget int           `env:"MOVES_BUDGET" envDefault:"22"`
	TimeBudget  time.Duration `env:"TIME_BUDGET" envDefault:"120s"`

	// SweepInterval is how often abandoned active sessions are settled as
	// losses.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"15s"`

	// OIDC SSO is enabled when an issuer is configured.
	OIDCIssuer       string `env:"OIDC_ISSUER"`
	OIDCClientID     string `env:"OIDC_CLIENT_ID"`
	OIDCClientSecret string `env:"OIDC_CLIENT_SECRET"`
	OIDCRedirectURL  string `env:"OIDC_REDIRECT_URL"`
}

// Parse loads Config from environment variables and validates it.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.ServerSecret == "" {
		return Config{}, errors.New("SERVER_SECRET is required")
	}
	if cfg.MinBetCents <= 0 || cfg.MaxBetCents < cfg.MinBetCents {
		return Config{}, fmt.Errorf("invalid bet bounds [%d, %d]", cfg.MinBetCents, cfg.MaxBetCents)
	}
	if cfg.WinMultiplier <= 0 {
		return Config{}, fmt.Errorf("invalid win multiplier %v", cfg.WinMultiplier)
	}
	return cfg, nil
}
