// Package sqlutil provides identifier quoting and value normalization
// primitives shared by the query translator and the execution layer.
package sqlutil

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// identPattern matches a single unquoted SQL identifier segment.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QuoteIdentifier quotes a possibly qualified identifier for SQLite.
// "users" becomes `"users"`, "users.id" becomes `"users"."id"`. Every
// segment must match [A-Za-z_][A-Za-z0-9_]*; anything else is rejected so
// identifiers can never smuggle SQL text into a statement.
func QuoteIdentifier(identifier string) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("identifier must not be empty")
	}

	segments := strings.Split(identifier, ".")
	quoted := make([]string, len(segments))
	for i, segment := range segments {
		if !identPattern.MatchString(segment) {
			return "", fmt.Errorf("invalid identifier %q: segment %q is not a valid SQL identifier", identifier, segment)
		}
		quoted[i] = `"` + segment + `"`
	}

	return strings.Join(quoted, "."), nil
}

// ValidateIdentifier reports whether s is a single valid identifier segment.
// Used for aliases and function names where a boolean gate is more
// convenient than an error.
func ValidateIdentifier(s string) bool {
	return identPattern.MatchString(s)
}

// NormalizeValue converts a bound parameter into a primitive the embedded
// engine can store: nil stays nil, time.Time becomes an ISO-8601 string,
// booleans become integer 1/0, everything else passes through unchanged.
// Every parameter must go through this before binding.
func NormalizeValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.UTC().Format(time.RFC3339Nano)
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	default:
		return value
	}
}

// NormalizeValues normalizes a parameter slice in place-preserving order.
func NormalizeValues(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = NormalizeValue(v)
	}
	return out
}

// IsRecord reports whether value is a mapping-like payload (a single row of
// column/value pairs) as opposed to a slice, nil, or a scalar.
func IsRecord(value any) bool {
	_, ok := value.(map[string]any)
	return ok
}
