// Package config loads command configuration from ARENA_* environment
// variables and reports fatal startup errors.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Prefix is prepended to every env tag parsed by ParseEnv.
const Prefix = "ARENA_"

// ParseEnv loads configuration from environment variables. Tags are written
// without the prefix: `env:"DB_PATH"` reads ARENA_DB_PATH.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: Prefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
