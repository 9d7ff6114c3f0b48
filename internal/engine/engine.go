// Package engine wraps the embedded SQLite engine. The database always
// lives in memory; durability comes from snapshotting the whole database
// to a single file through the SQLite online backup API and loading it
// back on open.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3" // embedded engine driver
)

// MemorySentinel is the path value selecting a purely in-memory engine
// with no snapshot persistence.
const MemorySentinel = ":memory:"

// ErrSnapshotMissing is returned when a read-only engine is opened against
// a snapshot path that does not exist.
var ErrSnapshotMissing = errors.New("snapshot file does not exist")

// Row is one result row keyed by column name.
type Row = map[string]any

// Options configures Open.
type Options struct {
	// Path is the snapshot file path, or MemorySentinel.
	Path string

	// ReadOnly disables Persist and requires the snapshot to exist.
	ReadOnly bool

	// Seed statements run once when a new database is created (missing
	// snapshot file, or the in-memory sentinel).
	Seed []string

	// WatchReload reloads a read-only engine whenever the snapshot file
	// is rewritten by another process.
	WatchReload bool

	Logger *slog.Logger
}

// Engine is a single in-memory SQLite handle plus its snapshot location.
// Statements execute synchronously on the calling goroutine; the mutex only
// serializes snapshot load/persist against queries.
type Engine struct {
	mu       sync.Mutex
	db       *sql.DB
	path     string
	readOnly bool
	logger   *slog.Logger

	closeWatcher func() error
}

// Open creates the engine, loading the snapshot at opts.Path when present.
// A missing snapshot is a fatal error for read-only engines and triggers
// lazy creation (plus seeding and an initial snapshot) otherwise.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("engine: a database path is required (use %q for in-memory)", MemorySentinel)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := openMemoryHandle(ctx)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		db:       db,
		path:     opts.Path,
		readOnly: opts.ReadOnly,
		logger:   logger,
	}

	if opts.Path == MemorySentinel {
		if err := e.runSeed(ctx, opts.Seed); err != nil {
			db.Close()
			return nil, err
		}
		return e, nil
	}

	_, statErr := os.Stat(opts.Path)
	switch {
	case statErr == nil:
		if err := e.loadSnapshot(ctx); err != nil {
			db.Close()
			return nil, err
		}
	case os.IsNotExist(statErr):
		if opts.ReadOnly {
			db.Close()
			return nil, fmt.Errorf("engine: %w: %s", ErrSnapshotMissing, opts.Path)
		}
		if err := e.runSeed(ctx, opts.Seed); err != nil {
			db.Close()
			return nil, err
		}
		// First snapshot; creation failures here are fatal, unlike the
		// benign-failure policy for later mutation persistence.
		if err := e.writeSnapshot(ctx); err != nil {
			db.Close()
			return nil, err
		}
	default:
		db.Close()
		return nil, fmt.Errorf("engine: stat snapshot %s: %w", opts.Path, statErr)
	}

	if opts.WatchReload && opts.ReadOnly {
		if err := e.startWatcher(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return e, nil
}

// openMemoryHandle opens a fresh in-memory database. A single connection is
// mandatory: every database/sql connection to ":memory:" would otherwise
// get its own empty database.
func openMemoryHandle(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", MemorySentinel)
	if err != nil {
		return nil, fmt.Errorf("engine: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("engine: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("engine: enable foreign keys: %w", err)
	}
	return db, nil
}

func (e *Engine) runSeed(ctx context.Context, seed []string) error {
	for _, stmt := range seed {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("engine: seed statement failed: %w", err)
		}
	}
	return nil
}

// Query executes one statement and returns the scanned rows. Mutating
// statements go through here too since every translated mutation carries a
// RETURNING clause.
func (e *Engine) Query(ctx context.Context, sqlText string, params []any) ([]Row, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queryLocked(ctx, sqlText, params)
}

func (e *Engine) queryLocked(ctx context.Context, sqlText string, params []any) ([]Row, error) {
	rows, err := e.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("engine: columns: %w", err)
	}

	var results []Row
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("engine: scan: %w", err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Exec executes one statement without scanning rows; used for bootstrap
// SQL and schema statements.
func (e *Engine) Exec(ctx context.Context, sqlText string, params []any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.db.ExecContext(ctx, sqlText, params...)
	return err
}

// Path returns the configured snapshot path.
func (e *Engine) Path() string { return e.path }

// ReadOnly reports whether the engine was opened read-only.
func (e *Engine) ReadOnly() bool { return e.readOnly }

// Close releases the watcher (if any) and the database handle.
func (e *Engine) Close() error {
	if e.closeWatcher != nil {
		if err := e.closeWatcher(); err != nil {
			e.logger.Warn("engine: closing snapshot watcher", "error", err)
		}
		e.closeWatcher = nil
	}
	return e.db.Close()
}
