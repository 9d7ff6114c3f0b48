// Package sqlgen compiles query descriptors into parameterised SQL for the
// embedded engine. It is pure and stateless: every entry point derives its
// output solely from its arguments, so concurrent use needs no locking.
package sqlgen

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/restlite/restlite/internal/sqlutil"
)

// Filter is the single internal filter representation shared by the
// statement translator and the administrative row-query path. Callers with
// differently shaped condition types map into it at their boundary.
type Filter struct {
	Field    string
	Operator string
	Value    any
}

// QuoteFunc quotes a field reference for embedding in SQL.
type QuoteFunc func(string) (string, error)

// BuildWhereClause compiles an ordered filter list into a WHERE fragment.
// The returned clause is either empty or begins with " WHERE "; params are
// the normalized bound values in placeholder order. A nil quote falls back
// to sqlutil.QuoteIdentifier.
func BuildWhereClause(filters []Filter, quote QuoteFunc) (string, []any, error) {
	if quote == nil {
		quote = sqlutil.QuoteIdentifier
	}

	var fragments []string
	var params []any
	for _, f := range filters {
		fragment, fragParams, err := compileFilter(f, quote)
		if err != nil {
			return "", nil, err
		}
		if fragment == "" {
			continue
		}
		fragments = append(fragments, fragment)
		params = append(params, fragParams...)
	}

	if len(fragments) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(fragments, " AND "), params, nil
}

// FiltersFromCriteria converts a criteria map into equality filters, sorted
// by key so the emitted SQL is deterministic.
func FiltersFromCriteria(criteria map[string]any) []Filter {
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	filters := make([]Filter, 0, len(keys))
	for _, k := range keys {
		filters = append(filters, Filter{Field: k, Operator: "eq", Value: criteria[k]})
	}
	return filters
}

// compileFilter translates one filter into a SQL fragment plus bound
// parameters. The fragment shapes are fixed per operator; see the package
// tests for the full table.
func compileFilter(f Filter, quote QuoteFunc) (string, []any, error) {
	field, err := quote(f.Field)
	if err != nil {
		return "", nil, translationErrorf("invalid filter field: %v", err)
	}
	value := sqlutil.NormalizeValue(f.Value)

	switch f.Operator {
	case "eq":
		if value == nil {
			return field + " IS NULL", nil, nil
		}
		return field + " = ?", []any{value}, nil

	case "neq":
		if value == nil {
			return field + " IS NOT NULL", nil, nil
		}
		return field + " != ?", []any{value}, nil

	case "gt", "gte", "lt", "lte":
		ops := map[string]string{"gt": ">", "gte": ">=", "lt": "<", "lte": "<="}
		return fmt.Sprintf("%s %s ?", field, ops[f.Operator]), []any{value}, nil

	case "like":
		return field + " LIKE ?", []any{stringify(value)}, nil

	case "ilike":
		return "LOWER(" + field + ") LIKE LOWER(?)", []any{stringify(value)}, nil

	case "is":
		switch normalizeIsValue(value) {
		case "null":
			return field + " IS NULL", nil, nil
		case "not.null", "not null":
			return field + " IS NOT NULL", nil, nil
		}
		return "", nil, translationErrorf("invalid value for is operator on %q: expected null or not.null, got %v", f.Field, f.Value)

	case "in":
		values := expandList(value)
		if len(values) == 0 {
			// An empty IN list can never match; emit a tautological false
			// instead of the syntax error "IN ()" would produce.
			return "1=0", nil, nil
		}
		placeholders := make([]string, len(values))
		params := make([]any, len(values))
		for i, v := range values {
			placeholders[i] = "?"
			params[i] = sqlutil.NormalizeValue(v)
		}
		return fmt.Sprintf("%s IN (%s)", field, strings.Join(placeholders, ", ")), params, nil
	}

	return "", nil, translationErrorf("unsupported filter operator %q", f.Operator)
}

// expandList coerces an IN value to a slice: slices and arrays are expanded
// element-wise, anything else becomes a singleton list.
func expandList(value any) []any {
	if value == nil {
		return []any{nil}
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{value}
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// normalizeIsValue lowercases the stringified IS value; nil stringifies to
// "null" so that Where("x", "is", nil) behaves like an explicit null check.
func normalizeIsValue(value any) string {
	if value == nil {
		return "null"
	}
	return strings.ToLower(strings.TrimSpace(stringify(value)))
}
