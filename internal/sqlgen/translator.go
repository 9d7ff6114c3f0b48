package sqlgen

import (
	"sort"
	"strconv"
	"strings"

	"github.com/restlite/restlite/internal/query"
	"github.com/restlite/restlite/internal/sqlutil"
)

// Statement is one translated SQL statement with positional parameters
// bound left to right against its ? placeholders.
type Statement struct {
	SQL    string
	Params []any
}

// TranslateSelect compiles a descriptor into a single SELECT statement.
func TranslateSelect(d *query.Descriptor) (Statement, error) {
	table, err := resolveTable(d)
	if err != nil {
		return Statement{}, err
	}
	if len(d.NestedSelects()) > 0 {
		return Statement{}, translationErrorf("nested selects are not supported by the embedded engine")
	}

	selectClause, err := buildSelectClause(d.SelectedFields())
	if err != nil {
		return Statement{}, err
	}

	joinClause, err := buildJoinClause(d.Joins())
	if err != nil {
		return Statement{}, err
	}

	whereClause, params, err := buildWhere(d.Conditions(), d.OrGroups())
	if err != nil {
		return Statement{}, err
	}

	orderClause, err := buildOrderClause(d.Ordering())
	if err != nil {
		return Statement{}, err
	}

	pagingClause, err := buildPagingClause(d.LimitValue(), d.OffsetValue())
	if err != nil {
		return Statement{}, err
	}

	sql := strings.TrimSpace("SELECT " + selectClause + " FROM " + table +
		joinClause + whereClause + orderClause + pagingClause)
	return Statement{SQL: sql, Params: params}, nil
}

// TranslateInsert compiles an insert into one statement per row, each with
// a RETURNING * clause and its own parameters. All rows must share an
// identical column set; columns must be unqualified.
func TranslateInsert(d *query.Descriptor, rows []map[string]any) ([]Statement, error) {
	table, err := resolveTable(d)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, translationErrorf("insert requires at least one row")
	}

	columns := sortedColumns(rows[0])
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		if strings.Contains(col, ".") {
			return nil, translationErrorf("insert column %q must not be qualified", col)
		}
		q, err := sqlutil.QuoteIdentifier(col)
		if err != nil {
			return nil, translationErrorf("invalid insert column: %v", err)
		}
		quoted[i] = q
		placeholders[i] = "?"
	}

	sql := "INSERT INTO " + table + " (" + strings.Join(quoted, ", ") +
		") VALUES (" + strings.Join(placeholders, ", ") + ") RETURNING *"

	statements := make([]Statement, len(rows))
	for i, row := range rows {
		if err := sameColumns(columns, row, i); err != nil {
			return nil, err
		}
		params := make([]any, len(columns))
		for j, col := range columns {
			params[j] = sqlutil.NormalizeValue(row[col])
		}
		statements[i] = Statement{SQL: sql, Params: params}
	}
	return statements, nil
}

// TranslateUpdate compiles an update with SET parameters followed by WHERE
// parameters. At least one column is required.
func TranslateUpdate(d *query.Descriptor, updates map[string]any) (Statement, error) {
	table, err := resolveTable(d)
	if err != nil {
		return Statement{}, err
	}
	if len(updates) == 0 {
		return Statement{}, translationErrorf("update requires at least one column")
	}

	columns := sortedColumns(updates)
	assignments := make([]string, len(columns))
	params := make([]any, 0, len(columns))
	for i, col := range columns {
		q, err := sqlutil.QuoteIdentifier(col)
		if err != nil {
			return Statement{}, translationErrorf("invalid update column: %v", err)
		}
		assignments[i] = q + " = ?"
		params = append(params, sqlutil.NormalizeValue(updates[col]))
	}

	whereClause, whereParams, err := buildWhere(d.Conditions(), d.OrGroups())
	if err != nil {
		return Statement{}, err
	}
	params = append(params, whereParams...)

	sql := "UPDATE " + table + " SET " + strings.Join(assignments, ", ") +
		whereClause + " RETURNING *"
	return Statement{SQL: sql, Params: params}, nil
}

// TranslateDelete compiles a delete with a RETURNING * clause.
func TranslateDelete(d *query.Descriptor) (Statement, error) {
	table, err := resolveTable(d)
	if err != nil {
		return Statement{}, err
	}

	whereClause, params, err := buildWhere(d.Conditions(), d.OrGroups())
	if err != nil {
		return Statement{}, err
	}

	sql := "DELETE FROM " + table + whereClause + " RETURNING *"
	return Statement{SQL: sql, Params: params}, nil
}

func resolveTable(d *query.Descriptor) (string, error) {
	if d == nil || d.Table() == "" {
		return "", translationErrorf("a table name must be specified before executing a query")
	}
	quoted, err := sqlutil.QuoteIdentifier(d.Table())
	if err != nil {
		return "", translationErrorf("invalid table name: %v", err)
	}
	return quoted, nil
}

func buildSelectClause(fields []string) (string, error) {
	if len(fields) == 0 {
		return "*", nil
	}
	formatted := make([]string, len(fields))
	for i, field := range fields {
		f, err := formatSelectField(field)
		if err != nil {
			return "", err
		}
		formatted[i] = f
	}
	return strings.Join(formatted, ", "), nil
}

// buildWhere combines the flat AND-ed conditions with the OR-groups. Each
// group's fragments are OR-joined and the group is parenthesized as a
// whole, then AND-ed with everything else.
func buildWhere(conditions []query.Condition, groups [][]query.Condition) (string, []any, error) {
	var fragments []string
	var params []any

	for _, c := range conditions {
		fragment, fragParams, err := compileFilter(asFilter(c), sqlutil.QuoteIdentifier)
		if err != nil {
			return "", nil, err
		}
		if fragment == "" {
			continue
		}
		fragments = append(fragments, fragment)
		params = append(params, fragParams...)
	}

	for _, group := range groups {
		var groupFragments []string
		var groupParams []any
		for _, c := range group {
			fragment, fragParams, err := compileFilter(asFilter(c), sqlutil.QuoteIdentifier)
			if err != nil {
				return "", nil, err
			}
			if fragment == "" {
				continue
			}
			groupFragments = append(groupFragments, fragment)
			groupParams = append(groupParams, fragParams...)
		}
		if len(groupFragments) == 0 {
			continue
		}
		fragments = append(fragments, "("+strings.Join(groupFragments, " OR ")+")")
		params = append(params, groupParams...)
	}

	if len(fragments) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(fragments, " AND "), params, nil
}

func asFilter(c query.Condition) Filter {
	return Filter{Field: c.Field, Operator: c.Operator, Value: c.Value}
}

func buildJoinClause(joins []query.Join) (string, error) {
	var sb strings.Builder
	for _, j := range joins {
		keyword, err := joinKeyword(j.Type)
		if err != nil {
			return "", err
		}
		target, err := quoteJoinTarget(j.Table)
		if err != nil {
			return "", err
		}
		on, err := sanitizeJoinOn(j.On)
		if err != nil {
			return "", err
		}
		sb.WriteString(" " + keyword + " " + target + " ON " + on)
	}
	return sb.String(), nil
}

func joinKeyword(joinType string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(joinType)) {
	case "inner", "":
		return "INNER JOIN", nil
	case "left":
		return "LEFT JOIN", nil
	case "right":
		return "", translationErrorf("right joins are not supported by the embedded engine")
	}
	return "", translationErrorf("unsupported join type %q", joinType)
}

// quoteJoinTarget quotes "table", "table alias" or "table AS alias" forms.
func quoteJoinTarget(target string) (string, error) {
	tokens := strings.Fields(target)
	switch len(tokens) {
	case 1:
		return sqlutil.QuoteIdentifier(tokens[0])
	case 2:
		t, err := sqlutil.QuoteIdentifier(tokens[0])
		if err != nil {
			return "", translationErrorf("invalid join target %q: %v", target, err)
		}
		a, err := sqlutil.QuoteIdentifier(tokens[1])
		if err != nil {
			return "", translationErrorf("invalid join alias %q: %v", target, err)
		}
		return t + " " + a, nil
	case 3:
		if !strings.EqualFold(tokens[1], "as") {
			return "", translationErrorf("malformed join target %q", target)
		}
		t, err := sqlutil.QuoteIdentifier(tokens[0])
		if err != nil {
			return "", translationErrorf("invalid join target %q: %v", target, err)
		}
		a, err := sqlutil.QuoteIdentifier(tokens[2])
		if err != nil {
			return "", translationErrorf("invalid join alias %q: %v", target, err)
		}
		return t + " AS " + a, nil
	}
	return "", translationErrorf("malformed join target %q", target)
}

// sanitizeJoinOn accepts only a two-sided qualified-identifier equality of
// the form "a.col = b.col" and re-emits it with quoted identifiers.
func sanitizeJoinOn(on string) (string, error) {
	sides := strings.Split(on, "=")
	if len(sides) != 2 {
		return "", translationErrorf("malformed join condition %q: expected a single equality", on)
	}
	quoted := make([]string, 2)
	for i, side := range sides {
		side = strings.TrimSpace(side)
		if !strings.Contains(side, ".") {
			return "", translationErrorf("malformed join condition %q: %q must be a qualified column", on, side)
		}
		q, err := sqlutil.QuoteIdentifier(side)
		if err != nil {
			return "", translationErrorf("malformed join condition %q: %v", on, err)
		}
		quoted[i] = q
	}
	return quoted[0] + " = " + quoted[1], nil
}

func buildOrderClause(ordering []query.OrderBy) (string, error) {
	if len(ordering) == 0 {
		return "", nil
	}
	terms := make([]string, len(ordering))
	for i, o := range ordering {
		field, err := sqlutil.QuoteIdentifier(o.Field)
		if err != nil {
			return "", translationErrorf("invalid order field: %v", err)
		}
		direction := strings.ToUpper(strings.TrimSpace(o.Direction))
		if direction != "ASC" && direction != "DESC" {
			return "", translationErrorf("invalid order direction %q: expected asc or desc", o.Direction)
		}
		terms[i] = field + " " + direction
	}
	return " ORDER BY " + strings.Join(terms, ", "), nil
}

func buildPagingClause(limit, offset *int) (string, error) {
	var sb strings.Builder
	if limit != nil {
		if *limit < 0 {
			return "", translationErrorf("limit must be a non-negative integer, got %d", *limit)
		}
		sb.WriteString(" LIMIT " + strconv.Itoa(*limit))
	}
	if offset != nil {
		if *offset < 0 {
			return "", translationErrorf("offset must be a non-negative integer, got %d", *offset)
		}
		sb.WriteString(" OFFSET " + strconv.Itoa(*offset))
	}
	return sb.String(), nil
}

// sortedColumns returns a row's column names in sorted order. Go maps are
// unordered, so sorting is what makes the emitted column order stable.
func sortedColumns(row map[string]any) []string {
	columns := make([]string, 0, len(row))
	for col := range row {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

func sameColumns(columns []string, row map[string]any, index int) error {
	if len(row) != len(columns) {
		return translationErrorf("insert row %d has %d columns, expected %d", index, len(row), len(columns))
	}
	for _, col := range columns {
		if _, ok := row[col]; !ok {
			return translationErrorf("insert row %d is missing column %q", index, col)
		}
	}
	return nil
}
