// Package history persists completed exchanges in a local sqlite database
// so recent conversations survive restarts and can be replayed as model
// context or listed over the API.
package history

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Exchange is one completed prompt/reply pair.
type Exchange struct {
	ID           string
	CreatedAt    time.Time
	Prompt       string
	Reply        string
	Mode         string
	Model        string
	FinishReason string
	AssetID      string
}

// Store wraps the sqlite connection and its schema migrations.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies pending
// migrations. Pass ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// modernc.org/sqlite serializes writers; a single connection avoids
	// SQLITE_BUSY churn under concurrent appends.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores one exchange. The caller supplies the ID and CreatedAt.
func (s *Store) Append(ex Exchange) error {
	_, err := s.db.Exec(
		`INSERT INTO exchanges (id, created_at, prompt, reply, mode, model, finish_reason, asset_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.ID,
		ex.CreatedAt.UTC().Format(time.RFC3339),
		ex.Prompt,
		ex.Reply,
		ex.Mode,
		ex.Model,
		ex.FinishReason,
		ex.AssetID,
	)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

// Recent returns up to limit exchanges, newest first.
func (s *Store) Recent(limit int) ([]Exchange, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, prompt, reply, mode, model, finish_reason, asset_id
		 FROM exchanges
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var ex Exchange
		var createdAt string
		if err := rows.Scan(&ex.ID, &createdAt, &ex.Prompt, &ex.Reply, &ex.Mode, &ex.Model, &ex.FinishReason, &ex.AssetID); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		ex.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// Purge deletes exchanges older than the given age and reports how many
// rows were removed.
func (s *Store) Purge(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`DELETE FROM exchanges WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete exchanges: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// AppliedMigrations returns the schema versions recorded in the database,
// ascending.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query(`SELECT version FROM schema_version ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query schema_version: %w", err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`,
	); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var applied int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_version WHERE version = ?`, version).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", version, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
			version, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(name string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parse migration version from %q: %w", name, err)
	}
	return version, nil
}
