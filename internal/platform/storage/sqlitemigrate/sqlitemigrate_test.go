package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

const createBattles = "-- +migrate Up\nCREATE TABLE battles(id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE battles;"

func TestApplyRecordsApplied(t *testing.T) {
	db := openDB(t)
	migrations := fstest.MapFS{
		"002_actions.sql": {Data: []byte("CREATE TABLE actions(seq INTEGER PRIMARY KEY);")},
		"001_battles.sql": {Data: []byte(createBattles)},
		"README.md":       {Data: []byte("not a migration")},
	}

	applied, err := Apply(context.Background(), db, migrations, "")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if want := []string{"001_battles.sql", "002_actions.sql"}; !reflect.DeepEqual(applied, want) {
		t.Fatalf("applied = %v, want %v", applied, want)
	}
	if n := countRows(t, db, "schema_migrations"); n != 2 {
		t.Fatalf("migration rows = %d, want 2", n)
	}
	for _, table := range []string{"battles", "actions"} {
		if !tableExists(t, db, table) {
			t.Fatalf("table %s missing", table)
		}
	}
}

func TestApplySkipsAlreadyApplied(t *testing.T) {
	db := openDB(t)
	migrations := fstest.MapFS{"001_battles.sql": {Data: []byte(createBattles)}}
	if _, err := Apply(context.Background(), db, migrations, ""); err != nil {
		t.Fatalf("apply: %v", err)
	}
	applied, err := Apply(context.Background(), db, migrations, "")
	if err != nil {
		t.Fatalf("re-apply: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("applied = %v, want none", applied)
	}
	if n := countRows(t, db, "schema_migrations"); n != 1 {
		t.Fatalf("migration rows = %d, want 1", n)
	}
}

func TestApplyRejectsModifiedMigration(t *testing.T) {
	db := openDB(t)
	if _, err := Apply(context.Background(), db, fstest.MapFS{"001_battles.sql": {Data: []byte(createBattles)}}, ""); err != nil {
		t.Fatalf("apply: %v", err)
	}
	edited := fstest.MapFS{"001_battles.sql": {Data: []byte("CREATE TABLE battles(id TEXT PRIMARY KEY, extra TEXT);")}}
	if _, err := Apply(context.Background(), db, edited, ""); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("err = %v, want ErrChecksumMismatch", err)
	}
}

func TestApplyDoesNotRecordFailedMigration(t *testing.T) {
	db := openDB(t)
	bad := fstest.MapFS{"001_bad.sql": {Data: []byte("-- +migrate Up\nCREAT table things(id INT);")}}
	if _, err := Apply(context.Background(), db, bad, ""); err == nil {
		t.Fatal("expected bad migration to fail")
	}
	if n := countRows(t, db, "schema_migrations"); n != 0 {
		t.Fatalf("migration rows = %d, want 0", n)
	}

	good := fstest.MapFS{"001_bad.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE things(id INTEGER PRIMARY KEY);")}}
	if _, err := Apply(context.Background(), db, good, ""); err != nil {
		t.Fatalf("apply fixed migration: %v", err)
	}
	if n := countRows(t, db, "schema_migrations"); n != 1 {
		t.Fatalf("migration rows = %d, want 1", n)
	}
}

func TestApplyRespectsRoot(t *testing.T) {
	db := openDB(t)
	migrations := fstest.MapFS{"sqlite/001_battles.sql": {Data: []byte(createBattles)}}
	applied, err := Apply(context.Background(), db, migrations, "sqlite")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if want := []string{"sqlite/001_battles.sql"}; !reflect.DeepEqual(applied, want) {
		t.Fatalf("applied = %v, want %v", applied, want)
	}
}

func TestUpSection(t *testing.T) {
	tests := map[string]string{
		createBattles:               "\nCREATE TABLE battles(id TEXT PRIMARY KEY);\n",
		"CREATE TABLE a(id INT);":   "CREATE TABLE a(id INT);",
		"-- +migrate Up\nSELECT 1;": "\nSELECT 1;",
	}
	for in, want := range tests {
		if got := UpSection(in); got != want {
			t.Fatalf("UpSection(%q) = %q, want %q", in, got, want)
		}
	}
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	// One connection keeps every query on the same in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var found string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return found == name
}
