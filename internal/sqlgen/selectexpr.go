package sqlgen

import (
	"regexp"
	"strings"

	"github.com/restlite/restlite/internal/sqlutil"
)

// The select-expression grammar is deliberately tiny: identifiers, table.*,
// numeric and quoted-string literals, DISTINCT prefixes and nested function
// calls. It is handled by a small recursive formatter with depth-tracked
// comma splitting rather than a general parser.

var (
	aliasPattern   = regexp.MustCompile(`^(.*\S)\s+[Aa][Ss]\s+([A-Za-z_][A-Za-z0-9_]*)$`)
	funcPattern    = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\((.*)\)$`)
	numericPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

	// A string literal is one quoted run with no interior quote characters.
	// Anything looser ('a'='b', 'a' || 'b') must fall through to identifier
	// quoting and fail there instead of riding into the generated SQL.
	singleQuotedPattern = regexp.MustCompile(`^'[^']*'$`)
	doubleQuotedPattern = regexp.MustCompile(`^"[^"]*"$`)
)

// formatSelectField formats one raw select expression: an optional trailing
// "AS alias" is split off, and the base expression is emitted as a bare
// star, a quoted table.*, a function call, or a quoted identifier.
func formatSelectField(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", translationErrorf("empty select expression")
	}

	alias := ""
	if m := aliasPattern.FindStringSubmatch(expr); m != nil {
		expr, alias = strings.TrimSpace(m[1]), m[2]
	}

	formatted, err := formatSelectBase(expr)
	if err != nil {
		return "", err
	}
	if alias != "" {
		formatted += ` AS "` + alias + `"`
	}
	return formatted, nil
}

func formatSelectBase(expr string) (string, error) {
	if expr == "*" {
		return "*", nil
	}

	if prefix, ok := strings.CutSuffix(expr, ".*"); ok {
		quoted, err := sqlutil.QuoteIdentifier(prefix)
		if err != nil {
			return "", translationErrorf("invalid select expression %q: %v", expr, err)
		}
		return quoted + ".*", nil
	}

	if m := funcPattern.FindStringSubmatch(expr); m != nil {
		return formatFunctionCall(m[1], m[2])
	}

	quoted, err := sqlutil.QuoteIdentifier(expr)
	if err != nil {
		return "", translationErrorf("invalid select expression %q: %v", expr, err)
	}
	return quoted, nil
}

// formatFunctionCall validates the function name and formats each argument.
// An empty argument list is rejected: the grammar has no zero-arg calls,
// count() must be written count(*).
func formatFunctionCall(name, rawArgs string) (string, error) {
	if !sqlutil.ValidateIdentifier(name) {
		return "", translationErrorf("invalid function name %q", name)
	}
	if strings.TrimSpace(rawArgs) == "" {
		return "", translationErrorf("function %s requires at least one argument", name)
	}

	args, err := splitTopLevelArgs(rawArgs)
	if err != nil {
		return "", err
	}

	formatted := make([]string, len(args))
	for i, arg := range args {
		f, err := formatFunctionArg(arg)
		if err != nil {
			return "", err
		}
		formatted[i] = f
	}
	return name + "(" + strings.Join(formatted, ", ") + ")", nil
}

// splitTopLevelArgs splits an argument list on commas outside any nested
// parentheses or quoted literals, so count(coalesce(a, 'x,y'), c) splits
// into two arguments.
func splitTopLevelArgs(rawArgs string) ([]string, error) {
	var args []string
	depth := 0
	start := 0
	var quote byte
	for i := 0; i < len(rawArgs); i++ {
		c := rawArgs[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, translationErrorf("unbalanced parentheses in function arguments %q", rawArgs)
			}
		case ',':
			if depth == 0 {
				args = append(args, rawArgs[start:i])
				start = i + 1
			}
		}
	}
	if quote != 0 {
		return nil, translationErrorf("unterminated string literal in function arguments %q", rawArgs)
	}
	if depth != 0 {
		return nil, translationErrorf("unbalanced parentheses in function arguments %q", rawArgs)
	}
	args = append(args, rawArgs[start:])
	return args, nil
}

func formatFunctionArg(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", translationErrorf("empty function argument")
	}

	if arg == "*" {
		return "*", nil
	}
	if numericPattern.MatchString(arg) {
		return arg, nil
	}
	if isQuotedLiteral(arg) {
		return arg, nil
	}
	if rest, ok := cutDistinct(arg); ok {
		inner, err := formatFunctionArg(rest)
		if err != nil {
			return "", err
		}
		return "DISTINCT " + inner, nil
	}
	if m := funcPattern.FindStringSubmatch(arg); m != nil {
		return formatFunctionCall(m[1], m[2])
	}

	quoted, err := sqlutil.QuoteIdentifier(arg)
	if err != nil {
		return "", translationErrorf("invalid function argument %q: %v", arg, err)
	}
	return quoted, nil
}

func isQuotedLiteral(s string) bool {
	return singleQuotedPattern.MatchString(s) || doubleQuotedPattern.MatchString(s)
}

func cutDistinct(arg string) (string, bool) {
	if len(arg) < 9 || !strings.EqualFold(arg[:8], "distinct") {
		return "", false
	}
	rest := arg[8:]
	if trimmed := strings.TrimLeft(rest, " \t"); trimmed != rest && trimmed != "" {
		return trimmed, true
	}
	return "", false
}
