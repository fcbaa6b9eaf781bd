package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"testing"
	"time"
)

type testConfig struct {
	DBPath string `env:"CMD_TEST_DB_PATH" envDefault:"arena.db"`
	Locale string `env:"CMD_TEST_LOCALE" envDefault:"en-US"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("ARENA_CMD_TEST_DB_PATH", "env.db")
	t.Setenv("ARENA_CMD_TEST_LOCALE", "pt-BR")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := testConfig{}
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "db path")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale")

	if err := ParseArgs(fs, []string{"-db", "flag.db"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfg.DBPath != "flag.db" {
		t.Fatalf("db path = %q, want flag value", cfg.DBPath)
	}
	if cfg.Locale != "pt-BR" {
		t.Fatalf("locale = %q, want env value", cfg.Locale)
	}
}

func TestParseArgsAcceptsNilArgs(t *testing.T) {
	fs := flag.NewFlagSet("nil-args", flag.ContinueOnError)
	db := fs.String("db", "arena.db", "db path")
	if err := ParseArgs(fs, nil); err != nil {
		t.Fatalf("parse nil args: %v", err)
	}
	if *db != "arena.db" || fs.NArg() != 0 {
		t.Fatalf("db = %q, args = %v", *db, fs.Args())
	}
}

func TestRunWithTelemetryIsQuietWithoutExporter(t *testing.T) {
	var logs strings.Builder
	opts := RunOptions{Logger: log.New(&logs, "", 0), ShutdownTimeout: time.Second}
	err := RunWithTelemetry(context.Background(), ServiceBattle, opts, func(ctx context.Context) error {
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if logs.Len() != 0 {
		t.Fatalf("noop telemetry logged %q", logs.String())
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected parse config to reject nil target")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", RunOptions{}, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceBattle, RunOptions{}, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryReturnsRunError(t *testing.T) {
	boom := errors.New("boom")
	called := false
	err := RunWithTelemetry(context.Background(), ServiceBattle, RunOptions{}, func(context.Context) error {
		called = true
		return boom
	})
	if !called {
		t.Fatal("run was not called")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
