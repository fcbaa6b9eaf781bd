package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Seed int64         `env:"TEST_SEED" envDefault:"123"`
	Tick time.Duration `env:"TEST_TICK" envDefault:"100ms"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Seed != 123 {
		t.Fatalf("seed = %d, want 123", cfg.Seed)
	}
	if cfg.Tick != 100*time.Millisecond {
		t.Fatalf("tick = %v, want 100ms", cfg.Tick)
	}
}

func TestParseEnvReadsPrefixedVariables(t *testing.T) {
	t.Setenv("ARENA_TEST_SEED", "42")
	t.Setenv("TEST_TICK", "5s")

	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Seed != 42 {
		t.Fatalf("seed = %d, want 42", cfg.Seed)
	}
	if cfg.Tick != 100*time.Millisecond {
		t.Fatalf("tick = %v, want unprefixed variable ignored", cfg.Tick)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("ARENA_TEST_SEED", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
