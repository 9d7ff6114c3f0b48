package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// ErrPersistence is the sentinel persistence failures wrap.
var ErrPersistence = errors.New("persistence error")

// BenignPersistError marks a snapshot-write failure the caller may log and
// swallow: the in-memory mutation succeeded, only durability was lost to a
// permission, read-only-filesystem, or missing-directory condition.
type BenignPersistError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *BenignPersistError) Error() string {
	return fmt.Sprintf("persistence error (benign): snapshot %s: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying error.
func (e *BenignPersistError) Unwrap() error { return e.Cause }

// Is reports whether the error matches ErrPersistence.
func (e *BenignPersistError) Is(target error) bool { return target == ErrPersistence }

// Persist writes the full in-memory database to a temporary file next to
// the snapshot path and atomically renames it into place. No-op for
// read-only engines and the in-memory sentinel.
func (e *Engine) Persist(ctx context.Context) error {
	if e.readOnly || e.path == MemorySentinel {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writeSnapshotLocked(ctx)
}

func (e *Engine) writeSnapshot(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.writeSnapshotLocked(ctx)
}

func (e *Engine) writeSnapshotLocked(ctx context.Context) error {
	tmpPath := fmt.Sprintf("%s.%s.tmp", e.path, uuid.NewString())

	// Probe with plain file I/O first: the sqlite C layer reports open
	// failures generically, while os errors classify cleanly into the
	// benign set (permission denied, read-only fs, missing directory).
	probe, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		if isBenignWriteError(err) {
			return &BenignPersistError{Path: e.path, Cause: err}
		}
		return fmt.Errorf("%w: create snapshot %s: %v", ErrPersistence, e.path, err)
	}
	probe.Close()

	fileDB, err := sql.Open("sqlite3", tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: open snapshot target: %v", ErrPersistence, err)
	}
	if err := backup(ctx, fileDB, e.db); err != nil {
		fileDB.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := fileDB.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close snapshot target: %v", ErrPersistence, err)
	}

	if err := os.Rename(tmpPath, e.path); err != nil {
		os.Remove(tmpPath)
		if isBenignWriteError(err) {
			return &BenignPersistError{Path: e.path, Cause: err}
		}
		return fmt.Errorf("%w: replace snapshot %s: %v", ErrPersistence, e.path, err)
	}
	return nil
}

// loadSnapshot replaces the in-memory database with the snapshot file's
// contents.
func (e *Engine) loadSnapshot(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadSnapshotLocked(ctx)
}

func (e *Engine) loadSnapshotLocked(ctx context.Context) error {
	fileDB, err := sql.Open("sqlite3", e.path)
	if err != nil {
		return fmt.Errorf("engine: open snapshot %s: %w", e.path, err)
	}
	defer fileDB.Close()

	if err := fileDB.PingContext(ctx); err != nil {
		return fmt.Errorf("engine: read snapshot %s: %w", e.path, err)
	}
	if err := backup(ctx, e.db, fileDB); err != nil {
		return fmt.Errorf("engine: load snapshot %s: %w", e.path, err)
	}
	return nil
}

// backup copies the main database of src over dst through the SQLite
// online backup API, replacing dst's contents entirely.
func backup(ctx context.Context, dst, src *sql.DB) error {
	dstConn, err := dst.Conn(ctx)
	if err != nil {
		return fmt.Errorf("backup: destination connection: %w", err)
	}
	defer dstConn.Close()

	srcConn, err := src.Conn(ctx)
	if err != nil {
		return fmt.Errorf("backup: source connection: %w", err)
	}
	defer srcConn.Close()

	return dstConn.Raw(func(dstRaw any) error {
		return srcConn.Raw(func(srcRaw any) error {
			dstSQLite, ok := dstRaw.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("backup: destination is not a sqlite3 connection: %T", dstRaw)
			}
			srcSQLite, ok := srcRaw.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("backup: source is not a sqlite3 connection: %T", srcRaw)
			}

			bk, err := dstSQLite.Backup("main", srcSQLite, "main")
			if err != nil {
				return fmt.Errorf("backup: init: %w", err)
			}
			defer bk.Finish()

			done, err := bk.Step(-1)
			if err != nil {
				return fmt.Errorf("backup: step: %w", err)
			}
			if !done {
				return fmt.Errorf("backup: incomplete after full step")
			}
			return nil
		})
	})
}

func isBenignWriteError(err error) bool {
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, fs.ErrNotExist) {
		return true
	}
	return errors.Is(err, syscall.EROFS) || errors.Is(err, syscall.EACCES)
}
