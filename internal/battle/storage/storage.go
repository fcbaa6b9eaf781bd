// Package storage defines persistence contracts for finished battles and
// their action logs.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/arena/internal/battle"
)

var (
	// ErrNotFound indicates a requested battle is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a battle id is already stored.
	ErrAlreadyExists = errors.New("record already exists")
)

// Battle is one committed battle. Scenario and Source describe how it was
// set up so it can be replayed; Outcome and LogHash describe what happened.
type Battle struct {
	ID       string
	Scenario string
	Source   string
	Seed     int64
	// MaxSteps is the step limit the battle ran under; zero means none.
	MaxSteps int
	// Tick and CascadeLimit are the settings the battle ran with; zero
	// means the engine default.
	Tick         time.Duration
	CascadeLimit int
	Outcome      battle.Outcome
	LogHash      string
	CreatedAt    time.Time
}

// BattlePage is one page of stored battles.
type BattlePage struct {
	Battles       []Battle
	NextPageToken string
}

// BattleStore persists battles and their action logs.
type BattleStore interface {
	// SaveBattle stores a battle together with its full action log.
	SaveBattle(ctx context.Context, b Battle, actions []battle.Action) error
	GetBattle(ctx context.Context, id string) (Battle, error)
	// ListBattles returns battles ordered by id. The filter is an AIP-160
	// expression over scenario, winner, reason, seed, rounds, steps, kills,
	// damage_dealt and created_at.
	ListBattles(ctx context.Context, filter string, pageSize int, pageToken string) (BattlePage, error)
	// ListActions returns up to limit actions with a sequence number greater
	// than afterSeq, in order.
	ListActions(ctx context.Context, battleID string, afterSeq int, limit int) ([]battle.Action, error)
}
