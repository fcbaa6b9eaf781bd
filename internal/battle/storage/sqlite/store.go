// Package sqlite provides a SQLite-backed battle storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/arena/internal/battle"
	"github.com/louisbranch/arena/internal/battle/filter"
	"github.com/louisbranch/arena/internal/battle/storage"
	"github.com/louisbranch/arena/internal/battle/storage/sqlite/migrations"
	sqlitemigrate "github.com/louisbranch/arena/internal/platform/storage/sqlitemigrate"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists battles in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// pragmas are applied to every connection through the DSN.
const pragmas = "_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"

// errNotConfigured is returned by methods called on a nil or zero Store.
var errNotConfigured = errors.New("storage is not configured")

// Open opens the battle database at path, creating it if needed, and brings
// its schema up to date.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := sql.Open("sqlite", filepath.Clean(path)+"?"+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open battle db %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping battle db %s: %w", path, err)
	}
	if _, err := sqlitemigrate.Apply(ctx, db, migrations.FS, ""); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate battle db %s: %w", path, err)
	}
	return &Store{sqlDB: db}, nil
}

// ready reports why the store cannot serve a call made with ctx.
func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return errNotConfigured
	}
	return nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveBattle inserts a battle, its final unit states and its action log in
// one transaction.
func (s *Store) SaveBattle(ctx context.Context, b storage.Battle, actions []battle.Action) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id := strings.TrimSpace(b.ID)
	if id == "" {
		return fmt.Errorf("battle id is required")
	}
	scenario := strings.TrimSpace(b.Scenario)
	if scenario == "" {
		return fmt.Errorf("scenario is required")
	}
	createdAt := b.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save battle: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	out := b.Outcome
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO battles (
		   id, scenario, source, seed, max_steps, tick_ns, cascade_limit,
		   finished, winner, reason, detail,
		   rounds, steps, effects_processed, effect_failures,
		   damage_dealt, healing, kills, statuses_attached, statuses_removed,
		   log_hash, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, scenario, b.Source, b.Seed, b.MaxSteps, int64(b.Tick), b.CascadeLimit,
		boolInt(out.Over), out.Winner.String(), string(out.Reason), out.Detail,
		out.Stats.Rounds, out.Stats.Steps, out.Stats.EffectsProcessed, out.Stats.EffectFailures,
		out.Stats.DamageDealt, out.Stats.Healing, out.Stats.Kills, out.Stats.StatusesAttached, out.Stats.StatusesRemoved,
		b.LogHash, toMillis(createdAt),
	)
	if err != nil {
		if isBattleUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("save battle: %w", err)
	}

	for _, u := range out.Units {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO battle_units (
			   battle_id, unit_id, name, faction, slot, alive, health, max_health,
			   damage_dealt, damage_taken, healing, kills
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, int64(u.ID), u.Name, u.Faction.String(), u.Slot, boolInt(u.Alive), u.Health, u.MaxHealth,
			u.Stats.DamageDealt, u.Stats.DamageTaken, u.Stats.Healing, u.Stats.Kills,
		); err != nil {
			return fmt.Errorf("save battle unit %d: %w", u.ID, err)
		}
	}

	stmt, err := tx.PrepareContext(
		ctx,
		`INSERT INTO battle_actions (
		   battle_id, seq, step, round, kind, unit_id, source_id,
		   amount, status, detail, color, duration_ns
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare battle actions: %w", err)
	}
	defer stmt.Close()
	for _, a := range actions {
		if _, err := stmt.ExecContext(
			ctx,
			id, a.Seq, a.Step, a.Round, string(a.Kind), int64(a.Unit), int64(a.Source),
			a.Amount, a.Status, a.Detail, a.Color, int64(a.Duration),
		); err != nil {
			return fmt.Errorf("save battle action %d: %w", a.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit battle: %w", err)
	}
	return nil
}

const battleColumns = `id, scenario, source, seed, max_steps, tick_ns, cascade_limit,
	finished, winner, reason, detail,
	rounds, steps, effects_processed, effect_failures,
	damage_dealt, healing, kills, statuses_attached, statuses_removed,
	log_hash, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBattle(row rowScanner) (storage.Battle, error) {
	var (
		b         storage.Battle
		finished  int
		winner    string
		reason    string
		createdAt int64
		tick      int64
	)
	stats := &b.Outcome.Stats
	err := row.Scan(
		&b.ID, &b.Scenario, &b.Source, &b.Seed, &b.MaxSteps, &tick, &b.CascadeLimit,
		&finished, &winner, &reason, &b.Outcome.Detail,
		&stats.Rounds, &stats.Steps, &stats.EffectsProcessed, &stats.EffectFailures,
		&stats.DamageDealt, &stats.Healing, &stats.Kills, &stats.StatusesAttached, &stats.StatusesRemoved,
		&b.LogHash, &createdAt,
	)
	if err != nil {
		return storage.Battle{}, err
	}
	b.Outcome.BattleID = b.ID
	b.Outcome.Seed = b.Seed
	b.Outcome.Over = finished != 0
	b.Outcome.Winner, _ = battle.ParseFaction(winner)
	b.Outcome.Reason = battle.Reason(reason)
	b.Tick = time.Duration(tick)
	b.CreatedAt = fromMillis(createdAt)
	return b, nil
}

// GetBattle returns one battle with its final unit states.
func (s *Store) GetBattle(ctx context.Context, id string) (storage.Battle, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Battle{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Battle{}, fmt.Errorf("battle id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+battleColumns+` FROM battles WHERE id = ?`, id)
	b, err := scanBattle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Battle{}, storage.ErrNotFound
		}
		return storage.Battle{}, fmt.Errorf("get battle: %w", err)
	}
	units, err := s.listUnits(ctx, id)
	if err != nil {
		return storage.Battle{}, err
	}
	b.Outcome.Units = units
	return b, nil
}

func (s *Store) listUnits(ctx context.Context, battleID string) ([]battle.UnitResult, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT unit_id, name, faction, slot, alive, health, max_health,
		        damage_dealt, damage_taken, healing, kills
		   FROM battle_units
		  WHERE battle_id = ?
		  ORDER BY unit_id ASC`,
		battleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list battle units: %w", err)
	}
	defer rows.Close()

	var units []battle.UnitResult
	for rows.Next() {
		var (
			u       battle.UnitResult
			id      int64
			faction string
			alive   int
		)
		if err := rows.Scan(
			&id, &u.Name, &faction, &u.Slot, &alive, &u.Health, &u.MaxHealth,
			&u.Stats.DamageDealt, &u.Stats.DamageTaken, &u.Stats.Healing, &u.Stats.Kills,
		); err != nil {
			return nil, fmt.Errorf("list battle units: %w", err)
		}
		u.ID = battle.ID(id)
		u.Faction, _ = battle.ParseFaction(faction)
		u.Alive = alive != 0
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list battle units: %w", err)
	}
	return units, nil
}

// ListBattles returns one page of battles matching filterStr, without their
// unit states.
func (s *Store) ListBattles(ctx context.Context, filterStr string, pageSize int, pageToken string) (storage.BattlePage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.BattlePage{}, err
	}
	if pageSize <= 0 {
		return storage.BattlePage{}, fmt.Errorf("page size must be greater than zero")
	}
	cond, err := filter.ParseBattleFilter(filterStr)
	if err != nil {
		return storage.BattlePage{}, fmt.Errorf("invalid filter: %w", err)
	}

	var (
		where  []string
		params []any
	)
	if cond.Clause != "" {
		where = append(where, cond.Clause)
		params = append(params, cond.Params...)
	}
	if token := strings.TrimSpace(pageToken); token != "" {
		where = append(where, "id > ?")
		params = append(params, token)
	}
	query := `SELECT ` + battleColumns + ` FROM battles`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC LIMIT ?"
	params = append(params, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return storage.BattlePage{}, fmt.Errorf("list battles: %w", err)
	}
	defer rows.Close()

	page := storage.BattlePage{Battles: make([]storage.Battle, 0, pageSize)}
	for rows.Next() {
		b, err := scanBattle(rows)
		if err != nil {
			return storage.BattlePage{}, fmt.Errorf("list battles: %w", err)
		}
		page.Battles = append(page.Battles, b)
	}
	if err := rows.Err(); err != nil {
		return storage.BattlePage{}, fmt.Errorf("list battles: %w", err)
	}
	if len(page.Battles) > pageSize {
		page.NextPageToken = page.Battles[pageSize-1].ID
		page.Battles = page.Battles[:pageSize]
	}
	return page, nil
}

// ListActions returns up to limit actions of a battle after afterSeq.
func (s *Store) ListActions(ctx context.Context, battleID string, afterSeq int, limit int) ([]battle.Action, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	battleID = strings.TrimSpace(battleID)
	if battleID == "" {
		return nil, fmt.Errorf("battle id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT seq, step, round, kind, unit_id, source_id, amount, status, detail, color, duration_ns
		   FROM battle_actions
		  WHERE battle_id = ? AND seq > ?
		  ORDER BY seq ASC
		  LIMIT ?`,
		battleID, afterSeq, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list battle actions: %w", err)
	}
	defer rows.Close()

	var actions []battle.Action
	for rows.Next() {
		var (
			a        battle.Action
			kind     string
			unit     int64
			source   int64
			duration int64
		)
		if err := rows.Scan(
			&a.Seq, &a.Step, &a.Round, &kind, &unit, &source,
			&a.Amount, &a.Status, &a.Detail, &a.Color, &duration,
		); err != nil {
			return nil, fmt.Errorf("list battle actions: %w", err)
		}
		a.Kind = battle.ActionKind(kind)
		a.Unit = battle.ID(unit)
		a.Source = battle.ID(source)
		a.Duration = time.Duration(duration)
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list battle actions: %w", err)
	}
	return actions, nil
}

func isBattleUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "battles.id")
}

var _ storage.BattleStore = (*Store)(nil)
