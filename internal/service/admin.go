// Package service provides the administrative row-browsing operations and
// the explicit context object that replaces process-wide adapter
// singletons.
package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/restlite/restlite/internal/config"
	"github.com/restlite/restlite/internal/db"
	"github.com/restlite/restlite/internal/engine"
	"github.com/restlite/restlite/internal/sqlgen"
	"github.com/restlite/restlite/internal/sqlutil"
)

// Context carries the adapter and configuration through the admin service
// functions. It is constructed once at application start and threaded
// explicitly instead of living in module-global state.
type Context struct {
	DB     *db.Database
	Config *config.Config

	owned bool
}

// NewContext builds the service context. A registered adapter instance
// takes precedence over one freshly constructed from configuration; the
// context only owns (and closes) adapters it constructed itself.
func NewContext(ctx context.Context, cfg *config.Config, registered *db.Database) (*Context, error) {
	if registered != nil {
		return &Context{DB: registered, Config: cfg}, nil
	}
	if cfg == nil {
		return nil, fmt.Errorf("service: either a registered database or a configuration is required")
	}

	database, err := db.Open(ctx, db.Options{
		Path:        cfg.DatabasePath,
		ReadOnly:    cfg.ReadOnly,
		WatchReload: cfg.WatchReload,
	})
	if err != nil {
		return nil, err
	}
	return &Context{DB: database, Config: cfg, owned: true}, nil
}

// Close releases the adapter if this context constructed it.
func (c *Context) Close() error {
	if c.owned && c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Admin exposes the administrative row-query path. It shares the WHERE
// compiler with the statement translator but builds its statements
// directly from criteria maps.
type Admin struct {
	sc *Context
}

// NewAdmin creates the admin service on a context.
func NewAdmin(sc *Context) *Admin {
	return &Admin{sc: sc}
}

// ListTables returns the user table names in the database, excluding
// sqlite internals.
func (a *Admin) ListTables(ctx context.Context) ([]string, error) {
	rows, err := a.sc.DB.Raw(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name", nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if name, ok := row["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// BrowseRows returns rows from table matching the criteria map (each key
// becomes an equality filter), with optional paging. A limit of 0 means
// no limit.
func (a *Admin) BrowseRows(ctx context.Context, table string, criteria map[string]any, limit, offset int) ([]engine.Row, error) {
	quotedTable, err := sqlutil.QuoteIdentifier(table)
	if err != nil {
		return nil, err
	}

	filters := sqlgen.FiltersFromCriteria(criteria)
	clause, params, err := sqlgen.BuildWhereClause(filters, nil)
	if err != nil {
		return nil, err
	}

	sqlText := "SELECT * FROM " + quotedTable + clause
	if limit > 0 {
		sqlText += " LIMIT " + strconv.Itoa(limit)
		if offset > 0 {
			sqlText += " OFFSET " + strconv.Itoa(offset)
		}
	}
	return a.sc.DB.Raw(ctx, sqlText, params)
}

// CountRows counts rows in table matching the criteria map.
func (a *Admin) CountRows(ctx context.Context, table string, criteria map[string]any) (int64, error) {
	quotedTable, err := sqlutil.QuoteIdentifier(table)
	if err != nil {
		return 0, err
	}

	clause, params, err := sqlgen.BuildWhereClause(sqlgen.FiltersFromCriteria(criteria), nil)
	if err != nil {
		return 0, err
	}

	rows, err := a.sc.DB.Raw(ctx, "SELECT count(*) AS n FROM "+quotedTable+clause, params)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, ok := rows[0]["n"].(int64)
	if !ok {
		return 0, fmt.Errorf("service: unexpected count result %T", rows[0]["n"])
	}
	return n, nil
}
