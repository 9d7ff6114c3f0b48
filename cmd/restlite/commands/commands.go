// Package commands implements the restlite CLI subcommands.
package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/restlite/restlite/internal/db"
	"github.com/restlite/restlite/internal/debug"
	"github.com/restlite/restlite/internal/query"
	"github.com/restlite/restlite/internal/service"
	"github.com/spf13/cobra"
)

// GlobalFlags are shared by every subcommand.
type GlobalFlags struct {
	DatabasePath string
	ReadOnly     bool
	Verbose      bool
}

func openDatabase(ctx context.Context, flags *GlobalFlags) (*db.Database, error) {
	return db.Open(ctx, db.Options{
		Path:     flags.DatabasePath,
		ReadOnly: flags.ReadOnly,
		Logger:   debug.NewLogger(flags.Verbose),
	})
}

// NewQueryCommand creates the query command: a select built from flags.
func NewQueryCommand(flags *GlobalFlags) *cobra.Command {
	var (
		table     string
		selectStr string
		where     []string
		orderBy   string
		desc      bool
		limit     int
		offset    int
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a select against a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := openDatabase(ctx, flags)
			if err != nil {
				return err
			}
			defer database.Close()

			d := query.New().From(table).Select(selectStr)
			for _, w := range where {
				field, value, ok := strings.Cut(w, "=")
				if !ok {
					return fmt.Errorf("--where must be field=value, got %q", w)
				}
				d.Where(field, query.OpEq, value)
			}
			if orderBy != "" {
				direction := query.Asc
				if desc {
					direction = query.Desc
				}
				d.Order(orderBy, direction)
			}
			if cmd.Flags().Changed("limit") {
				d.Limit(limit)
			}
			if cmd.Flags().Changed("offset") {
				d.Offset(offset)
			}

			rows, err := database.Execute(ctx, d, db.VerbGet, nil)
			if err != nil {
				return err
			}
			return renderRows(rows)
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "table to query")
	cmd.Flags().StringVar(&selectStr, "select", "*", "select expression list")
	cmd.Flags().StringArrayVar(&where, "where", nil, "equality filter field=value (repeatable)")
	cmd.Flags().StringVar(&orderBy, "order", "", "order by field")
	cmd.Flags().BoolVar(&desc, "desc", false, "order descending")
	cmd.Flags().IntVar(&limit, "limit", 0, "row limit")
	cmd.Flags().IntVar(&offset, "offset", 0, "row offset")
	cmd.MarkFlagRequired("table")

	return cmd
}

// NewExecCommand creates the exec command: raw SQL with bound parameters.
func NewExecCommand(flags *GlobalFlags) *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Execute raw SQL with positional parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := openDatabase(ctx, flags)
			if err != nil {
				return err
			}
			defer database.Close()

			bound := make([]any, len(params))
			for i, p := range params {
				bound[i] = p
			}
			rows, err := database.Raw(ctx, args[0], bound)
			if err != nil {
				return err
			}
			return renderRows(rows)
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "bound parameter (repeatable, in placeholder order)")
	return cmd
}

// NewTablesCommand creates the tables command.
func NewTablesCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := openDatabase(ctx, flags)
			if err != nil {
				return err
			}
			defer database.Close()

			sc, err := service.NewContext(ctx, nil, database)
			if err != nil {
				return err
			}
			tables, err := service.NewAdmin(sc).ListTables(ctx)
			if err != nil {
				return err
			}
			for _, t := range tables {
				pterm.Println(t)
			}
			return nil
		},
	}
}

// renderRows prints rows as a table with a stable column order.
func renderRows(rows []db.Row) error {
	if len(rows) == 0 {
		pterm.Info.Println("no rows")
		return nil
	}

	columns := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	data := pterm.TableData{columns}
	for _, row := range rows {
		line := make([]string, len(columns))
		for i, col := range columns {
			line[i] = fmt.Sprint(row[col])
		}
		data = append(data, line)
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
