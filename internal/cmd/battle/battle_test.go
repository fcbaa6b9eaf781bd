package battle

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	gotel "go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/louisbranch/arena/internal/battle"
	"github.com/louisbranch/arena/internal/battle/relay"
	"github.com/louisbranch/arena/internal/battle/storage/sqlite"
	"github.com/louisbranch/arena/internal/platform/config"
)

const duelScenario = `
local arena = Arena.new("duel")
arena:seed(11)
arena:unit{ name = "Knight", health = 10, action = E.script{ name = "smite" } }
arena:unit{ name = "Goblin", health = 8, action = E.damage{ amount = 1 } }
arena:script("smite", function(ctx)
	return E.damage{ amount = math.floor(ctx.caster.health / 2) }
end)
arena:place{ template = "Knight", faction = "player" }
arena:place{ template = "Goblin", faction = "enemy" }
return arena
`

func writeScenario(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "duel.lua")
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func testConfig(t *testing.T, command string, args ...string) Config {
	t.Helper()
	return Config{
		Command:      command,
		Args:         args,
		ScenarioFile: writeScenario(t, duelScenario),
		DBPath:       filepath.Join(t.TempDir(), "arena.db"),
		MaxSteps:     1000,
		Tick:         100 * time.Millisecond,
		Locale:       "en-US",
		PageSize:     10,
	}
}

// runCommand runs cfg and returns stdout and stderr.
func runCommand(t *testing.T, cfg Config) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := Run(context.Background(), cfg, &out, &errOut)
	return out.String(), errOut.String(), err
}

// committedID extracts the battle id from the payload printed by run.
func committedID(t *testing.T, output string) relay.Commit {
	t.Helper()
	start := strings.Index(output, "{")
	if start < 0 {
		t.Fatalf("no payload in output %q", output)
	}
	s, err := relay.Unmarshal([]byte(output[start:]))
	if err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	c, err := relay.ParsePayload(s)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	return c
}

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("battle", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"run"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Command != CommandRun || cfg.DBPath != "arena.db" || cfg.MaxSteps != 10000 || cfg.Tick != 100*time.Millisecond || cfg.Locale != "en-US" || cfg.PageSize != 20 {
		t.Fatalf("config = %+v", cfg)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint != "" {
		t.Fatalf("telemetry = %+v", cfg.Telemetry)
	}
}

func TestParseConfigReadsEnvThenFlags(t *testing.T) {
	t.Setenv("ARENA_SCENARIO_FILE", "env.lua")
	t.Setenv("ARENA_SEED", "99")
	t.Setenv("ARENA_LOCALE", "pt-BR")
	t.Setenv("ARENA_OTEL_ENDPOINT", "http://collector:4318")

	fs := flag.NewFlagSet("battle", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-seed", "5", "-verbose", "VERIFY", "b-1"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.ScenarioFile != "env.lua" || cfg.Seed != 5 || cfg.Locale != "pt-BR" || !cfg.Verbose {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg.Telemetry.Endpoint != "http://collector:4318" {
		t.Fatalf("otel endpoint = %q", cfg.Telemetry.Endpoint)
	}
	if cfg.Command != CommandVerify || !reflect.DeepEqual(cfg.Args, []string{"b-1"}) {
		t.Fatalf("command = %q %v", cfg.Command, cfg.Args)
	}
}

func TestParseConfigRequiresCommand(t *testing.T) {
	fs := flag.NewFlagSet("battle", flag.ContinueOnError)
	if _, err := ParseConfig(fs, []string{"-seed", "5"}); !errors.Is(err, ErrUsage) {
		t.Fatalf("err = %v, want ErrUsage", err)
	}
}

func TestRunCommitsBattle(t *testing.T) {
	cfg := testConfig(t, CommandRun)
	cfg.Verbose = true
	out, logs, err := runCommand(t, cfg)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, logs)
	}
	if !strings.Contains(out, "The players win after 2 rounds.") {
		t.Fatalf("output missing summary:\n%s", out)
	}
	if !strings.Contains(out, "Knight #1 deals 5 damage to Goblin #2.") {
		t.Fatalf("output missing narration:\n%s", out)
	}
	if !strings.Contains(logs, "battle: committed") {
		t.Fatalf("logs = %q", logs)
	}

	c := committedID(t, out)
	if c.Seed != 11 || c.Scenario != "duel" || c.Outcome.Winner != battle.FactionPlayer {
		t.Fatalf("commit = %+v", c)
	}

	store, err := sqlite.Open(context.Background(), cfg.DBPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	rec, err := store.GetBattle(context.Background(), c.BattleID)
	if err != nil {
		t.Fatalf("get battle: %v", err)
	}
	if rec.LogHash != c.LogHash || rec.Tick != cfg.Tick || rec.MaxSteps != cfg.MaxSteps {
		t.Fatalf("stored battle = %+v", rec)
	}
}

func TestVerifyAndListCommittedBattle(t *testing.T) {
	cfg := testConfig(t, CommandRun)
	out, logs, err := runCommand(t, cfg)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, logs)
	}
	c := committedID(t, out)

	cfg.Command, cfg.Args = CommandVerify, []string{c.BattleID}
	out, logs, err = runCommand(t, cfg)
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, logs)
	}
	if !strings.Contains(out, "battle "+c.BattleID+": replay matches") {
		t.Fatalf("verify output = %q", out)
	}

	cfg.Command, cfg.Args = CommandList, nil
	cfg.Filter = `winner = "player"`
	out, _, err = runCommand(t, cfg)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, c.BattleID+"\tduel\tplayer\teliminated\t2 rounds") {
		t.Fatalf("list output = %q", out)
	}

	cfg.Filter = `winner = "enemy"`
	out, _, err = runCommand(t, cfg)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if out != "" {
		t.Fatalf("filtered list output = %q, want empty", out)
	}
}

func TestRunReportsLocalizedFailures(t *testing.T) {
	t.Run("invalid content", func(t *testing.T) {
		cfg := testConfig(t, CommandRun)
		cfg.ScenarioFile = writeScenario(t, `return Arena.new("empty")`)
		cfg.Locale = "pt-BR"
		_, logs, err := runCommand(t, cfg)
		if err == nil {
			t.Fatal("expected error")
		}
		if got := config.ExitCode(err); got != 2 {
			t.Fatalf("exit code = %d, want 2", got)
		}
		if !strings.Contains(logs, "battle: O conteúdo do cenário é inválido.") {
			t.Fatalf("logs = %q", logs)
		}
	})
	t.Run("unknown battle", func(t *testing.T) {
		cfg := testConfig(t, CommandVerify, "missing")
		_, logs, err := runCommand(t, cfg)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(logs, "battle: No battle with that id was found.") {
			t.Fatalf("logs = %q", logs)
		}
	})
	t.Run("bad filter", func(t *testing.T) {
		cfg := testConfig(t, CommandList)
		cfg.Filter = `winner = "neutral"`
		_, logs, err := runCommand(t, cfg)
		if got := config.ExitCode(err); got != 2 {
			t.Fatalf("exit code = %d, want 2 (err %v)", got, err)
		}
		if !strings.Contains(logs, "battle: The battle filter could not be understood.") {
			t.Fatalf("logs = %q", logs)
		}
	})
	t.Run("usage", func(t *testing.T) {
		for _, cfg := range []Config{testConfig(t, "fight"), testConfig(t, CommandVerify)} {
			if _, _, err := runCommand(t, cfg); !errors.Is(err, ErrUsage) {
				t.Fatalf("%s: err = %v, want ErrUsage", cfg.Command, err)
			}
		}
	})
}

func TestRunTracesBattleAndRounds(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	gotel.SetTracerProvider(provider)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	if _, logs, err := runCommand(t, testConfig(t, CommandRun)); err != nil {
		t.Fatalf("run: %v\n%s", err, logs)
	}

	var battles, rounds int
	for _, span := range recorder.Ended() {
		switch span.Name() {
		case "battle.run":
			battles++
			attrs := map[string]string{}
			for _, kv := range span.Attributes() {
				attrs[string(kv.Key)] = kv.Value.Emit()
			}
			if attrs["battle.seed"] != "11" || attrs["battle.winner"] != "player" || attrs["battle.rounds"] != "2" {
				t.Fatalf("battle span attributes = %v", attrs)
			}
		case "battle.round":
			rounds++
		}
	}
	if battles != 1 {
		t.Fatalf("battle spans = %d, want 1", battles)
	}
	if rounds < 2 {
		t.Fatalf("round spans = %d, want at least 2", rounds)
	}
}
