// Package storage persists the enrichment audit log and the shared
// rate-limit window in SQLite.
package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database
// (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "linkwell.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migrations that have not yet been run.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

// parseMigrationVersion extracts the numeric prefix from "0001_init.sql".
func parseMigrationVersion(name string) (int, error) {
	idx := strings.Index(name, "_")
	if idx <= 0 {
		return 0, fmt.Errorf("migration %q has no numeric prefix", name)
	}
	v, err := strconv.Atoi(name[:idx])
	if err != nil {
		return 0, fmt.Errorf("migration %q has no numeric prefix: %w", name, err)
	}
	return v, nil
}

// LogOperation records one enrichment operation outcome.
func (s *Store) LogOperation(op OperationLog) error {
	createdAt := op.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO enrichment_log (id, user_id, operation, status, tokens_used, model, error_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.UserID, op.Operation, op.Status, op.TokensUsed, op.Model, op.ErrorCode,
		createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting operation log: %w", err)
	}
	return nil
}

// ListOperations returns the most recent operations for a user, newest first.
func (s *Store) ListOperations(userID string, limit, offset int) ([]OperationLog, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, operation, status, tokens_used, model, error_code, created_at
		FROM enrichment_log
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying operation log: %w", err)
	}
	defer rows.Close()

	var ops []OperationLog
	for rows.Next() {
		var op OperationLog
		var createdAt string
		if err := rows.Scan(&op.ID, &op.UserID, &op.Operation, &op.Status, &op.TokensUsed, &op.Model, &op.ErrorCode, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning operation log: %w", err)
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		op.CreatedAt = t
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// TakeRateToken atomically consumes one unit of the principal's sliding
// window if quota remains: expired hits are pruned, the live count is
// compared against the limit, and the new hit is recorded, all in one
// transaction so concurrent callers cannot both take the last unit.
func (s *Store) TakeRateToken(principal string, limit int, window time.Duration) (allowed bool, remaining int, resetAt time.Time, err error) {
	now := time.Now().UTC()
	cutoff := now.Add(-window).UnixMilli()

	tx, err := s.db.Begin()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("beginning rate transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM rate_events WHERE principal = ? AND hit_at <= ?`, principal, cutoff); err != nil {
		return false, 0, time.Time{}, fmt.Errorf("pruning rate events: %w", err)
	}

	var count int
	var oldest sql.NullInt64
	if err := tx.QueryRow(`SELECT COUNT(*), MIN(hit_at) FROM rate_events WHERE principal = ?`, principal).Scan(&count, &oldest); err != nil {
		return false, 0, time.Time{}, fmt.Errorf("counting rate events: %w", err)
	}

	if count >= limit {
		reset := time.UnixMilli(oldest.Int64).Add(window)
		if err := tx.Commit(); err != nil {
			return false, 0, time.Time{}, fmt.Errorf("committing rate transaction: %w", err)
		}
		return false, 0, reset, nil
	}

	if _, err := tx.Exec(`INSERT INTO rate_events (principal, hit_at) VALUES (?, ?)`, principal, now.UnixMilli()); err != nil {
		return false, 0, time.Time{}, fmt.Errorf("recording rate event: %w", err)
	}

	resetFrom := now
	if oldest.Valid {
		resetFrom = time.UnixMilli(oldest.Int64)
	}
	if err := tx.Commit(); err != nil {
		return false, 0, time.Time{}, fmt.Errorf("committing rate transaction: %w", err)
	}
	return true, limit - count - 1, resetFrom.Add(window), nil
}
