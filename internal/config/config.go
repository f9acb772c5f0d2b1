// Package config loads server settings from the environment, with an optional
// .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr          string        `env:"BRAINCLASH_ADDR" envDefault:":8080"`
	AnswerTimeout time.Duration `env:"BRAINCLASH_ANSWER_TIMEOUT" envDefault:"30s"`
	PowerUpChance float64       `env:"BRAINCLASH_POWERUP_CHANCE" envDefault:"0.08"`
	MaxHP         int           `env:"BRAINCLASH_MAX_HP" envDefault:"100"`
	HandSize      int           `env:"BRAINCLASH_HAND_SIZE" envDefault:"5"`
	ArchiveDelay  time.Duration `env:"BRAINCLASH_ARCHIVE_DELAY" envDefault:"60s"`
	// DatabaseURL switches the question bank and result sink to Postgres.
	// Empty runs the built-in demo bank and a log-only sink.
	DatabaseURL string `env:"BRAINCLASH_DATABASE_URL"`
}

func Load() (Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if c.PowerUpChance < 0 || c.PowerUpChance > 1 {
		return Config{}, fmt.Errorf("power-up chance %v outside [0,1]", c.PowerUpChance)
	}
	if c.MaxHP <= 0 || c.HandSize <= 0 {
		return Config{}, fmt.Errorf("max HP and hand size must be positive")
	}
	return c, nil
}
