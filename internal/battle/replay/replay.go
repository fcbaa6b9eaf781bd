// Package replay re-runs stored battles and checks that the simulation
// reproduces the stored action log exactly.
package replay

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/louisbranch/arena/internal/battle"
	"github.com/louisbranch/arena/internal/battle/encoding"
	"github.com/louisbranch/arena/internal/battle/storage"
)

const defaultPageSize = 200

var (
	// ErrStoreRequired indicates a missing battle store.
	ErrStoreRequired = errors.New("battle store is required")
	// ErrRunnerRequired indicates a missing runner.
	ErrRunnerRequired = errors.New("runner is required")
	// ErrBattleIDRequired indicates a missing battle id.
	ErrBattleIDRequired = errors.New("battle id is required")
	// ErrCorruptLog indicates a stored log that does not match its own hash
	// or has sequence gaps.
	ErrCorruptLog = errors.New("stored action log is corrupt")
	// ErrMismatch indicates the replayed battle diverged from the stored one.
	ErrMismatch = errors.New("replay does not match stored battle")
)

// Store reads committed battles.
type Store interface {
	GetBattle(ctx context.Context, id string) (storage.Battle, error)
	ListActions(ctx context.Context, battleID string, afterSeq int, limit int) ([]battle.Action, error)
}

// Runner re-simulates a stored battle from its scenario and seed.
type Runner interface {
	Run(ctx context.Context, rec storage.Battle) (battle.Outcome, []battle.Action, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, rec storage.Battle) (battle.Outcome, []battle.Action, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, rec storage.Battle) (battle.Outcome, []battle.Action, error) {
	return f(ctx, rec)
}

// Divergence is the first action where the replay differs from the stored
// log. A nil side means that log ended early.
type Divergence struct {
	Seq      int
	Stored   *battle.Action
	Replayed *battle.Action
}

// Result captures a verification.
type Result struct {
	BattleID     string
	StoredHash   string
	ReplayedHash string
	Actions      int
	Match        bool
	Divergence   *Divergence
}

// Verify loads a stored battle, replays it and compares action logs. A
// mismatch returns the populated result together with an error wrapping
// ErrMismatch.
func Verify(ctx context.Context, store Store, runner Runner, battleID string) (Result, error) {
	if store == nil {
		return Result{}, ErrStoreRequired
	}
	if runner == nil {
		return Result{}, ErrRunnerRequired
	}
	battleID = strings.TrimSpace(battleID)
	if battleID == "" {
		return Result{}, ErrBattleIDRequired
	}

	rec, err := store.GetBattle(ctx, battleID)
	if err != nil {
		return Result{}, err
	}
	stored, err := loadActions(ctx, store, battleID)
	if err != nil {
		return Result{}, err
	}
	storedHash, err := encoding.LogHash(stored)
	if err != nil {
		return Result{}, fmt.Errorf("hash stored log: %w", err)
	}
	if rec.LogHash != "" && rec.LogHash != storedHash {
		return Result{}, fmt.Errorf("%w: hash %s, recorded %s", ErrCorruptLog, storedHash, rec.LogHash)
	}

	outcome, replayed, err := runner.Run(ctx, rec)
	if err != nil {
		return Result{}, fmt.Errorf("replay battle %s: %w", battleID, err)
	}
	replayedHash, err := encoding.LogHash(replayed)
	if err != nil {
		return Result{}, fmt.Errorf("hash replayed log: %w", err)
	}

	res := Result{
		BattleID:     battleID,
		StoredHash:   storedHash,
		ReplayedHash: replayedHash,
		Actions:      len(stored),
		Match:        storedHash == replayedHash,
	}
	if !res.Match {
		res.Divergence = diverge(stored, replayed)
		return res, fmt.Errorf("%w: battle %s", ErrMismatch, battleID)
	}
	if outcome.Winner != rec.Outcome.Winner || outcome.Reason != rec.Outcome.Reason {
		res.Match = false
		return res, fmt.Errorf("%w: battle %s outcome %s/%s, stored %s/%s", ErrMismatch, battleID,
			outcome.Winner, outcome.Reason, rec.Outcome.Winner, rec.Outcome.Reason)
	}
	return res, nil
}

func loadActions(ctx context.Context, store Store, battleID string) ([]battle.Action, error) {
	var out []battle.Action
	lastSeq := 0
	for {
		page, err := store.ListActions(ctx, battleID, lastSeq, defaultPageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return out, nil
		}
		for _, a := range page {
			if a.Seq != lastSeq+1 {
				return nil, fmt.Errorf("%w: action sequence gap: expected %d got %d", ErrCorruptLog, lastSeq+1, a.Seq)
			}
			out = append(out, a)
			lastSeq = a.Seq
		}
	}
}

func diverge(stored, replayed []battle.Action) *Divergence {
	n := max(len(stored), len(replayed))
	for i := 0; i < n; i++ {
		var s, r *battle.Action
		if i < len(stored) {
			s = &stored[i]
		}
		if i < len(replayed) {
			r = &replayed[i]
		}
		if s == nil || r == nil || !reflect.DeepEqual(*s, *r) {
			return &Divergence{Seq: i + 1, Stored: s, Replayed: r}
		}
	}
	return nil
}
