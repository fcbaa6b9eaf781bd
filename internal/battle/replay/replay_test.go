package replay

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/louisbranch/arena/internal/battle"
	"github.com/louisbranch/arena/internal/battle/encoding"
	"github.com/louisbranch/arena/internal/battle/expr"
	"github.com/louisbranch/arena/internal/battle/storage"
)

type fakeStore struct {
	battles map[string]storage.Battle
	actions map[string][]battle.Action
}

func (f *fakeStore) GetBattle(_ context.Context, id string) (storage.Battle, error) {
	b, ok := f.battles[id]
	if !ok {
		return storage.Battle{}, storage.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) ListActions(_ context.Context, battleID string, afterSeq int, limit int) ([]battle.Action, error) {
	var out []battle.Action
	for _, a := range f.actions[battleID] {
		if a.Seq > afterSeq && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func simulate(ctx context.Context, rec storage.Battle) (battle.Outcome, []battle.Action, error) {
	cat := battle.NewCatalog()
	roll := battle.Damage{Amount: battle.Amount{Absolute: expr.Rand(expr.Num(1), expr.Num(4))}}
	if err := cat.AddUnit(battle.UnitTemplate{Name: "Duelist", Health: 12, Action: roll}); err != nil {
		return battle.Outcome{}, nil, err
	}
	b, err := battle.New(battle.Config{ID: rec.ID, Seed: rec.Seed, Logger: log.New(io.Discard, "", 0)}, cat, []battle.Placement{
		{Template: "Duelist", Faction: battle.FactionPlayer},
		{Template: "Duelist", Faction: battle.FactionEnemy},
	})
	if err != nil {
		return battle.Outcome{}, nil, err
	}
	out, err := b.Run(ctx, rec.MaxSteps)
	return out, b.Log(), err
}

func recorded(t *testing.T, id string, seed int64) *fakeStore {
	t.Helper()
	rec := storage.Battle{ID: id, Scenario: "duel", Seed: seed}
	out, actions, err := simulate(context.Background(), rec)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	hash, err := encoding.LogHash(actions)
	if err != nil {
		t.Fatalf("log hash: %v", err)
	}
	rec.Outcome = out
	rec.LogHash = hash
	return &fakeStore{
		battles: map[string]storage.Battle{id: rec},
		actions: map[string][]battle.Action{id: actions},
	}
}

func TestVerifyMatches(t *testing.T) {
	store := recorded(t, "b-1", 11)

	res, err := Verify(context.Background(), store, RunnerFunc(simulate), "b-1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.Match || res.Divergence != nil {
		t.Fatalf("result = %+v, want match", res)
	}
	if res.Actions != len(store.actions["b-1"]) {
		t.Fatalf("actions = %d, want %d", res.Actions, len(store.actions["b-1"]))
	}
	if res.StoredHash != store.battles["b-1"].LogHash {
		t.Fatalf("stored hash = %s, want %s", res.StoredHash, store.battles["b-1"].LogHash)
	}
}

func TestVerifyReportsDivergence(t *testing.T) {
	store := recorded(t, "b-1", 11)
	tampered := RunnerFunc(func(ctx context.Context, rec storage.Battle) (battle.Outcome, []battle.Action, error) {
		out, actions, err := simulate(ctx, rec)
		actions[2].Amount += 100
		return out, actions, err
	})

	res, err := Verify(context.Background(), store, tampered, "b-1")
	if !errors.Is(err, ErrMismatch) {
		t.Fatalf("err = %v, want ErrMismatch", err)
	}
	if res.Match || res.Divergence == nil || res.Divergence.Seq != 3 {
		t.Fatalf("result = %+v, want divergence at 3", res)
	}
}

func TestVerifyReportsShortReplay(t *testing.T) {
	store := recorded(t, "b-1", 11)
	short := RunnerFunc(func(ctx context.Context, rec storage.Battle) (battle.Outcome, []battle.Action, error) {
		out, actions, err := simulate(ctx, rec)
		return out, actions[:1], err
	})

	res, err := Verify(context.Background(), store, short, "b-1")
	if !errors.Is(err, ErrMismatch) {
		t.Fatalf("err = %v, want ErrMismatch", err)
	}
	if res.Divergence == nil || res.Divergence.Seq != 2 || res.Divergence.Replayed != nil {
		t.Fatalf("divergence = %+v, want replay ending at 2", res.Divergence)
	}
}

func TestVerifyDetectsCorruptLog(t *testing.T) {
	t.Run("hash", func(t *testing.T) {
		store := recorded(t, "b-1", 11)
		rec := store.battles["b-1"]
		rec.LogHash = "0000"
		store.battles["b-1"] = rec
		if _, err := Verify(context.Background(), store, RunnerFunc(simulate), "b-1"); !errors.Is(err, ErrCorruptLog) {
			t.Fatalf("err = %v, want ErrCorruptLog", err)
		}
	})
	t.Run("gap", func(t *testing.T) {
		store := recorded(t, "b-1", 11)
		actions := store.actions["b-1"]
		store.actions["b-1"] = append(actions[:1:1], actions[2:]...)
		if _, err := Verify(context.Background(), store, RunnerFunc(simulate), "b-1"); !errors.Is(err, ErrCorruptLog) {
			t.Fatalf("err = %v, want ErrCorruptLog", err)
		}
	})
}

func TestVerifyRequiresInputs(t *testing.T) {
	store := recorded(t, "b-1", 11)
	tests := []struct {
		name   string
		store  Store
		runner Runner
		id     string
		want   error
	}{
		{name: "store", runner: RunnerFunc(simulate), id: "b-1", want: ErrStoreRequired},
		{name: "runner", store: store, id: "b-1", want: ErrRunnerRequired},
		{name: "id", store: store, runner: RunnerFunc(simulate), id: " ", want: ErrBattleIDRequired},
		{name: "missing battle", store: store, runner: RunnerFunc(simulate), id: "nope", want: storage.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Verify(context.Background(), tt.store, tt.runner, tt.id); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
