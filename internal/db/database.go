// Package db implements the execution adapter: it translates query
// descriptors into SQL, runs the statements against the embedded engine,
// and persists snapshots after mutations.
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/restlite/restlite/internal/engine"
	"github.com/restlite/restlite/internal/query"
	"github.com/restlite/restlite/internal/sqlgen"
	"github.com/restlite/restlite/internal/sqlutil"
)

// Row is one result row keyed by column name.
type Row = engine.Row

// Verb selects the operation a descriptor is executed as.
type Verb string

// Supported verbs. PUT and PATCH both translate to UPDATE.
const (
	VerbGet    Verb = "GET"
	VerbPost   Verb = "POST"
	VerbPut    Verb = "PUT"
	VerbPatch  Verb = "PATCH"
	VerbDelete Verb = "DELETE"
)

// mutatingKeywords are the leading SQL keywords that trigger snapshot
// persistence after execution.
var mutatingKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "REPLACE": true,
	"CREATE": true, "DROP": true, "ALTER": true,
}

// Options configures Open.
type Options struct {
	// Path is the snapshot file path, or engine.MemorySentinel.
	Path string

	// ReadOnly rejects every mutating verb and mutating raw SQL.
	ReadOnly bool

	// Seed statements bootstrap a freshly created database.
	Seed []string

	// WatchReload hot-reloads a read-only database when the snapshot file
	// changes on disk.
	WatchReload bool

	Logger *slog.Logger
}

// Database is one adapter instance around a single engine handle. The
// handle executes statements synchronously; callers needing concurrent
// writers must serialize access themselves.
type Database struct {
	eng      *engine.Engine
	readOnly bool
	logger   *slog.Logger
}

// Open constructs the adapter and its engine.
func Open(ctx context.Context, opts Options) (*Database, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	eng, err := engine.Open(ctx, engine.Options{
		Path:        opts.Path,
		ReadOnly:    opts.ReadOnly,
		Seed:        opts.Seed,
		WatchReload: opts.WatchReload,
		Logger:      logger,
	})
	if err != nil {
		if errors.Is(err, engine.ErrSnapshotMissing) {
			return nil, configErrorf("read-only database requires an existing snapshot: %v", err)
		}
		return nil, err
	}

	return &Database{eng: eng, readOnly: opts.ReadOnly, logger: logger}, nil
}

// Close releases the engine handle.
func (d *Database) Close() error { return d.eng.Close() }

// ReadOnly reports whether the adapter rejects mutations.
func (d *Database) ReadOnly() bool { return d.readOnly }

// Execute translates the descriptor for the given verb and runs the
// resulting statements in order, concatenating their rows. Mutations
// persist the snapshot afterwards.
func (d *Database) Execute(ctx context.Context, desc *query.Descriptor, verb Verb, body any) ([]Row, error) {
	switch verb {
	case VerbGet:
		stmt, err := sqlgen.TranslateSelect(desc)
		if err != nil {
			return nil, err
		}
		return d.run(ctx, stmt)

	case VerbPost:
		if err := d.guardWrite("insert"); err != nil {
			return nil, err
		}
		rows, err := insertRows(body)
		if err != nil {
			return nil, err
		}
		stmts, err := sqlgen.TranslateInsert(desc, rows)
		if err != nil {
			return nil, err
		}
		return d.runAll(ctx, stmts)

	case VerbPut, VerbPatch:
		if err := d.guardWrite("update"); err != nil {
			return nil, err
		}
		updates, ok := body.(map[string]any)
		if !ok {
			return nil, configErrorf("update payload must be a single object of column/value pairs, got %T", body)
		}
		stmt, err := sqlgen.TranslateUpdate(desc, updates)
		if err != nil {
			return nil, err
		}
		return d.runAll(ctx, []sqlgen.Statement{stmt})

	case VerbDelete:
		if err := d.guardWrite("delete"); err != nil {
			return nil, err
		}
		stmt, err := sqlgen.TranslateDelete(desc)
		if err != nil {
			return nil, err
		}
		return d.runAll(ctx, []sqlgen.Statement{stmt})
	}

	return nil, configErrorf("unsupported verb %q", verb)
}

// Raw executes literal SQL with a flat parameter list, bypassing the
// translator. The mutating-keyword persistence rule and the read-only
// guard still apply.
func (d *Database) Raw(ctx context.Context, sqlText string, params []any) ([]Row, error) {
	sqlText = strings.TrimSpace(sqlText)
	if sqlText == "" {
		return nil, configErrorf("raw SQL must not be empty")
	}

	mutating := isMutatingSQL(sqlText)
	if mutating {
		if err := d.guardWrite("raw SQL"); err != nil {
			return nil, err
		}
	}

	rows, err := d.eng.Query(ctx, sqlText, sqlutil.NormalizeValues(params))
	if err != nil {
		return nil, &ExecutionError{SQL: sqlText, Cause: err}
	}

	if mutating {
		if err := d.persist(ctx); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (d *Database) guardWrite(operation string) error {
	if d.readOnly {
		return configErrorf("cannot execute %s: database is read-only", operation)
	}
	return nil
}

func (d *Database) run(ctx context.Context, stmt sqlgen.Statement) ([]Row, error) {
	rows, err := d.eng.Query(ctx, stmt.SQL, stmt.Params)
	if err != nil {
		return nil, &ExecutionError{SQL: stmt.SQL, Cause: err}
	}
	return rows, nil
}

// runAll executes translated statements in order and persists once at the
// end when any of them carried a mutating keyword. The snapshot is a whole
// database image, so one write covers every statement of the batch.
func (d *Database) runAll(ctx context.Context, stmts []sqlgen.Statement) ([]Row, error) {
	var all []Row
	mutated := false
	for _, stmt := range stmts {
		rows, err := d.run(ctx, stmt)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		mutated = mutated || isMutatingSQL(stmt.SQL)
	}

	if mutated {
		if err := d.persist(ctx); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// persist writes the snapshot, downgrading benign failures to a warning so
// the in-memory mutation still succeeds for the caller.
func (d *Database) persist(ctx context.Context) error {
	err := d.eng.Persist(ctx)
	if err == nil {
		return nil
	}
	var benign *engine.BenignPersistError
	if errors.As(err, &benign) {
		d.logger.Warn("snapshot write skipped", "path", benign.Path, "error", benign.Cause)
		return nil
	}
	return err
}

func isMutatingSQL(sqlText string) bool {
	fields := strings.Fields(sqlText)
	if len(fields) == 0 {
		return false
	}
	return mutatingKeywords[strings.ToUpper(fields[0])]
}

// insertRows validates and normalizes an insert payload: one record or a
// sequence of records.
func insertRows(body any) ([]map[string]any, error) {
	switch b := body.(type) {
	case map[string]any:
		return []map[string]any{b}, nil
	case []map[string]any:
		return b, nil
	case []any:
		rows := make([]map[string]any, len(b))
		for i, item := range b {
			if !sqlutil.IsRecord(item) {
				return nil, configErrorf("insert payload element %d is not an object: %T", i, item)
			}
			rows[i] = item.(map[string]any)
		}
		return rows, nil
	}
	return nil, configErrorf("insert payload must be an object or an array of objects, got %s", describe(body))
}

func describe(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
