// Package cmd holds the startup helpers shared by arena commands.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/arena/internal/platform/config"
	"github.com/louisbranch/arena/internal/platform/otel"
)

// ServiceBattle names the battle command in telemetry.
const ServiceBattle = "battle"

const defaultShutdownTimeout = 5 * time.Second

var (
	errNoTarget  = errors.New("config target is required")
	errNoFlags   = errors.New("flag parser is required")
	errNoService = errors.New("service name is required")
	errNoRun     = errors.New("run function is required")
)

// RunOptions controls shared entrypoint behavior.
type RunOptions struct {
	Telemetry otel.Options
	// ShutdownTimeout bounds the final span flush. Zero means five seconds.
	ShutdownTimeout time.Duration
	// Logger receives shutdown failures; nil means log.Default().
	Logger *log.Logger
}

// ParseConfig fills cfg from ARENA_* environment variables. Commands call it
// before registering flags so flag defaults show the environment values.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errNoTarget
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags; a nil args slice parses nothing.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errNoFlags
	}
	return fs.Parse(append([]string{}, args...))
}

// RunWithTelemetry sets up tracing for service, runs run and flushes spans
// afterwards, even when run fails.
func RunWithTelemetry(ctx context.Context, service string, opts RunOptions, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	switch {
	case service == "":
		return errNoService
	case run == nil:
		return errNoRun
	}
	if ctx == nil {
		ctx = context.Background()
	}

	shutdown, err := otel.Setup(ctx, service, opts.Telemetry)
	if err != nil {
		return err
	}
	defer flush(service, shutdown, opts)
	return run(ctx)
}

func flush(service string, shutdown func(context.Context) error, opts RunOptions) {
	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger := opts.Logger
		if logger == nil {
			logger = log.Default()
		}
		logger.Printf("%s: otel shutdown: %v", service, err)
	}
}
