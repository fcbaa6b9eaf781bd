// Package battle implements the battle command: run a scenario and commit
// its outcome, verify a stored battle by replaying it, or list stored
// battles.
package battle

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"

	"github.com/louisbranch/arena/internal/battle/narrate"
	"github.com/louisbranch/arena/internal/battle/relay"
	"github.com/louisbranch/arena/internal/battle/storage/sqlite"
	platformcmd "github.com/louisbranch/arena/internal/platform/cmd"
	"github.com/louisbranch/arena/internal/platform/otel"
)

// Commands understood by Run.
const (
	CommandRun    = "run"
	CommandVerify = "verify"
	CommandList   = "list"
)

// ErrUsage indicates a missing or unknown command or argument.
var ErrUsage = errors.New("usage: battle [flags] run | verify <battle-id> | list")

// Config holds battle command configuration. Env tags are read with the
// ARENA_ prefix.
type Config struct {
	Command string
	Args    []string

	ScenarioFile string        `env:"SCENARIO_FILE"`
	DBPath       string        `env:"DB_PATH"       envDefault:"arena.db"`
	Seed         int64         `env:"SEED"`
	MaxSteps     int           `env:"MAX_STEPS"     envDefault:"10000"`
	CascadeLimit int           `env:"CASCADE_LIMIT" envDefault:"10000"`
	Tick         time.Duration `env:"TICK"          envDefault:"100ms"`
	Locale       string        `env:"LOCALE"        envDefault:"en-US"`
	Verbose      bool          `env:"VERBOSE"`

	Filter    string `env:"LIST_FILTER"`
	PageSize  int    `env:"PAGE_SIZE" envDefault:"20"`
	PageToken string

	Telemetry otel.Options
}

// ParseConfig loads env defaults, then flags, then the positional command.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.ScenarioFile, "scenario", cfg.ScenarioFile, "path to scenario lua file")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the sqlite battle store")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed (0 uses the scenario seed or a fresh one)")
	fs.IntVar(&cfg.MaxSteps, "max-steps", cfg.MaxSteps, "step limit (0 for none)")
	fs.IntVar(&cfg.CascadeLimit, "cascade-limit", cfg.CascadeLimit, "effects one drain may resolve")
	fs.DurationVar(&cfg.Tick, "tick", cfg.Tick, "simulated time per step")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "narration locale")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "narrate every action")
	fs.StringVar(&cfg.Filter, "filter", cfg.Filter, `list filter, e.g. winner = "player" AND rounds > 3`)
	fs.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "battles per list page")
	fs.StringVar(&cfg.PageToken, "page-token", cfg.PageToken, "list page token")
	fs.StringVar(&cfg.Telemetry.Endpoint, "otel-endpoint", cfg.Telemetry.Endpoint, "OTLP/HTTP trace endpoint")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return Config{}, ErrUsage
	}
	cfg.Command = strings.ToLower(strings.TrimSpace(rest[0]))
	cfg.Args = rest[1:]
	return cfg, nil
}

// Run executes the configured command. Failures are reported on errOut in
// the configured locale and returned as coded errors.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	logger := log.New(errOut, "", 0)

	catalog, err := narrate.LoadEmbedded()
	if err != nil {
		return fmt.Errorf("load narration catalog: %w", err)
	}

	err = platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceBattle, platformcmd.RunOptions{
		Telemetry: cfg.Telemetry,
		Logger:    logger,
	}, func(ctx context.Context) error {
		switch cfg.Command {
		case CommandRun:
			return runBattle(ctx, cfg, catalog, out, logger)
		case CommandVerify:
			return verifyBattle(ctx, cfg, catalog, out, logger)
		case CommandList:
			return listBattles(ctx, cfg, out)
		}
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cfg.Command)
	})
	if err == nil || errors.Is(err, ErrUsage) {
		return err
	}

	coded := relay.Classify(err)
	if msg := userMessage(relay.ErrorStatus(coded, catalog, cfg.Locale)); msg != "" {
		logger.Printf("battle: %s", msg)
	}
	return coded
}

func openStore(ctx context.Context, path string) (*sqlite.Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: battle store path is required", ErrUsage)
	}
	return sqlite.Open(ctx, path)
}

func userMessage(st *status.Status) string {
	if st == nil {
		return ""
	}
	for _, d := range st.Details() {
		if m, ok := d.(*errdetails.LocalizedMessage); ok {
			return m.GetMessage()
		}
	}
	return ""
}
