// Package sqlitemigrate applies embedded SQL migrations to a SQLite
// database, once per file, and refuses to run against a database whose
// recorded migrations were edited afterwards.
package sqlitemigrate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const migrationTable = "schema_migrations"

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"
)

// ErrChecksumMismatch indicates an applied migration whose file content
// changed since it ran.
var ErrChecksumMismatch = errors.New("applied migration was modified")

// Apply runs every *.sql file under root in name order and returns the
// names of the files it applied. Files already recorded are skipped after
// their checksum is compared against the recorded one.
func Apply(ctx context.Context, db *sql.DB, fsys fs.FS, root string) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("sql db is required")
	}
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}
	files, err := migrationFiles(fsys, root)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    name TEXT PRIMARY KEY,
    checksum TEXT NOT NULL,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	var applied []string
	for _, name := range files {
		content, err := fs.ReadFile(fsys, path.Join(root, name))
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", name, err)
		}
		key := name
		if root != "." {
			key = path.Join(root, name)
		}
		sum := checksum(content)

		recorded, err := recordedChecksum(ctx, db, key)
		if err != nil {
			return applied, fmt.Errorf("check migration %s: %w", key, err)
		}
		if recorded != "" {
			if recorded != sum {
				return applied, fmt.Errorf("%w: %s", ErrChecksumMismatch, key)
			}
			continue
		}

		up := UpSection(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}
		if err := applyOne(ctx, db, key, sum, up); err != nil {
			return applied, err
		}
		applied = append(applied, key)
	}
	return applied, nil
}

func migrationFiles(fsys fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func applyOne(ctx context.Context, db *sql.DB, key, sum, up string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", key, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, up); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("exec migration %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO "+migrationTable+" (name, checksum, applied_at) VALUES (?, ?, ?)",
		key, sum, time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("record migration %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", key, err)
	}
	return nil
}

// UpSection returns the SQL between the Up and Down markers. Files without
// markers are returned whole.
func UpSection(content string) string {
	start := strings.Index(content, upMarker)
	if start < 0 {
		return content
	}
	body := content[start+len(upMarker):]
	if end := strings.Index(body, downMarker); end >= 0 {
		body = body[:end]
	}
	return body
}

// isAlreadyExists reports DDL errors that mean the change is already in
// place.
func isAlreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column name")
}

func checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func recordedChecksum(ctx context.Context, db *sql.DB, key string) (string, error) {
	var sum string
	err := db.QueryRowContext(ctx, "SELECT checksum FROM "+migrationTable+" WHERE name = ?", key).Scan(&sum)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return sum, err
}
