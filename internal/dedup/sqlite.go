package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"permutex/internal/logging"
)

// SQLite is a durable filter backed by a single-table SQLite database. Rows
// are keyed by the normalized value and carry their owning shard index.
type SQLite struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// OpenSQLite opens (creating if needed) the filter database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dedup database: %w", err)
	}
	// one connection: the filter is a serialization point anyway
	db.SetMaxOpenConns(1)

	f := &SQLite{db: db, path: path}
	if err := f.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Dedup("opened sqlite filter at %s", path)
	return f, nil
}

func (f *SQLite) initialize() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA synchronous=NORMAL`,
		`PRAGMA busy_timeout=5000`,
		`CREATE TABLE IF NOT EXISTS emitted (
			value TEXT PRIMARY KEY,
			shard INTEGER NOT NULL,
			idx INTEGER NOT NULL
		) WITHOUT ROWID`,
		`CREATE INDEX IF NOT EXISTS idx_emitted_shard ON emitted(shard, idx)`,
	}
	for _, stmt := range stmts {
		if _, err := f.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize dedup database: %w", err)
		}
	}
	return nil
}

func (f *SQLite) Admit(ctx context.Context, shardID int, idx uint64, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// SQLite integers are signed; indexes stay far below 2^63 in practice.
	res, err := f.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO emitted (value, shard, idx) VALUES (?, ?, ?)`,
		Normalize(value), shardID, int64(idx))
	if err != nil {
		return false, fmt.Errorf("dedup insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("dedup insert: %w", err)
	}
	return n == 1, nil
}

func (f *SQLite) Rewind(ctx context.Context, shardID int, from uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, err := f.db.ExecContext(ctx, `DELETE FROM emitted WHERE shard = ? AND idx >= ?`, shardID, int64(from))
	if err != nil {
		return fmt.Errorf("dedup rewind shard %d: %w", shardID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logging.Get(logging.CategoryDedup).Debug("shard %d: forgot %d values past index %d", shardID, n, from)
	}
	return nil
}

// Count returns the number of recorded values.
func (f *SQLite) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	if err := f.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM emitted`).Scan(&n); err != nil {
		return 0, fmt.Errorf("dedup count: %w", err)
	}
	return n, nil
}

// Path returns the database file.
func (f *SQLite) Path() string { return f.path }

func (f *SQLite) Close() error {
	return f.db.Close()
}
