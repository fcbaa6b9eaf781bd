package battle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/arena/internal/battle"
	"github.com/louisbranch/arena/internal/battle/encoding"
	"github.com/louisbranch/arena/internal/battle/narrate"
	"github.com/louisbranch/arena/internal/battle/random"
	"github.com/louisbranch/arena/internal/battle/relay"
	"github.com/louisbranch/arena/internal/battle/replay"
	"github.com/louisbranch/arena/internal/battle/script"
	"github.com/louisbranch/arena/internal/battle/storage"
	"github.com/louisbranch/arena/internal/platform/id"
	"github.com/louisbranch/arena/internal/platform/pagination"
)

// runBattle loads the scenario, resolves the battle, commits it and prints
// the narration followed by the relay payload.
func runBattle(ctx context.Context, cfg Config, catalog *narrate.Catalog, out io.Writer, logger *log.Logger) error {
	if strings.TrimSpace(cfg.ScenarioFile) == "" {
		return fmt.Errorf("%w: scenario path is required", ErrUsage)
	}
	sc, err := script.LoadScenario(cfg.ScenarioFile)
	if err != nil {
		return err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = sc.Seed
	}
	if seed == 0 {
		if seed, err = random.NewSeed(); err != nil {
			return err
		}
	}
	battleID, err := id.NewID()
	if err != nil {
		return err
	}

	st := settings{maxSteps: cfg.MaxSteps, tick: cfg.Tick, cascadeLimit: cfg.CascadeLimit}
	outcome, actions, err := simulate(ctx, sc, battleID, seed, st, logger)
	if err != nil {
		return err
	}
	hash, err := encoding.LogHash(actions)
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	rec := storage.Battle{
		ID:           battleID,
		Scenario:     sc.Name,
		Source:       sc.Source,
		Seed:         seed,
		MaxSteps:     st.maxSteps,
		Tick:         st.tick,
		CascadeLimit: st.cascadeLimit,
		Outcome:      outcome,
		LogHash:      hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.SaveBattle(ctx, rec, actions); err != nil {
		return fmt.Errorf("commit battle %s: %w", battleID, err)
	}
	logger.Printf("battle: committed %s (%s, seed %d, %d actions)", battleID, sc.Name, seed, len(actions))

	n := narrate.New(catalog, cfg.Locale, outcome.Units)
	if cfg.Verbose {
		for _, line := range n.Lines(actions) {
			fmt.Fprintln(out, line)
		}
	}
	fmt.Fprintln(out, n.Summary(outcome))

	payload, err := relay.Payload(rec)
	if err != nil {
		return err
	}
	data, err := relay.Marshal(payload)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	return nil
}

// verifyBattle replays a stored battle under the settings it was committed
// with.
func verifyBattle(ctx context.Context, cfg Config, catalog *narrate.Catalog, out io.Writer, logger *log.Logger) error {
	if len(cfg.Args) != 1 {
		return fmt.Errorf("%w: verify takes one battle id", ErrUsage)
	}
	store, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runner := replay.RunnerFunc(func(ctx context.Context, rec storage.Battle) (battle.Outcome, []battle.Action, error) {
		sc, err := script.LoadScenarioSource(rec.Scenario, rec.Source)
		if err != nil {
			return battle.Outcome{}, nil, err
		}
		st := settings{maxSteps: rec.MaxSteps, tick: rec.Tick, cascadeLimit: rec.CascadeLimit}
		return simulate(ctx, sc, rec.ID, rec.Seed, st, logger)
	})

	res, err := replay.Verify(ctx, store, runner, cfg.Args[0])
	if errors.Is(err, replay.ErrMismatch) && res.Divergence != nil {
		rec, getErr := store.GetBattle(ctx, res.BattleID)
		if getErr == nil {
			printDivergence(out, narrate.New(catalog, cfg.Locale, rec.Outcome.Units), res.Divergence)
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "battle %s: replay matches (%d actions, hash %s)\n", res.BattleID, res.Actions, res.ReplayedHash)
	return nil
}

func printDivergence(out io.Writer, n *narrate.Narrator, d *replay.Divergence) {
	describe := func(a *battle.Action) string {
		if a == nil {
			return "(log ended)"
		}
		return n.Line(*a)
	}
	fmt.Fprintf(out, "diverged at action %d\n  stored:   %s\n  replayed: %s\n", d.Seq, describe(d.Stored), describe(d.Replayed))
}

var listPageSize = pagination.PageSizeConfig{Default: 20, Max: 200}

// listBattles prints one page of stored battles.
func listBattles(ctx context.Context, cfg Config, out io.Writer) error {
	store, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	pageSize := pagination.ClampPageSize(cfg.PageSize, listPageSize)
	page, err := store.ListBattles(ctx, cfg.Filter, pageSize, cfg.PageToken)
	if err != nil {
		return err
	}
	for _, b := range page.Battles {
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%d rounds\t%s\n",
			b.ID, b.Scenario, b.Outcome.Winner, b.Outcome.Reason, b.Outcome.Stats.Rounds,
			b.CreatedAt.Format(time.RFC3339))
	}
	if page.NextPageToken != "" {
		fmt.Fprintf(out, "next page: %s\n", page.NextPageToken)
	}
	return nil
}
