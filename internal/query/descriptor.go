// Package query defines the backend-agnostic query descriptor and its
// fluent builder API. A descriptor captures everything a statement
// translator needs: table, select expressions, filter conditions, OR
// groups, ordering, pagination, joins and nested selects.
package query

import (
	"reflect"
	"strings"
)

// Filter operators understood by the WHERE compiler.
const (
	OpEq    = "eq"
	OpNeq   = "neq"
	OpGt    = "gt"
	OpGte   = "gte"
	OpLt    = "lt"
	OpLte   = "lte"
	OpLike  = "like"
	OpILike = "ilike"
	OpIs    = "is"
	OpIn    = "in"
)

// Join types accepted by Join. Right joins are accepted by the builder but
// rejected at translation time since the embedded engine has no native
// RIGHT JOIN.
const (
	JoinInner = "inner"
	JoinLeft  = "left"
	JoinRight = "right"
)

// Order directions.
const (
	Asc  = "asc"
	Desc = "desc"
)

// Condition is a single field/operator/value filter.
type Condition struct {
	Field    string
	Operator string
	Value    any
}

// OrderBy is one ORDER BY term.
type OrderBy struct {
	Field     string
	Direction string
}

// Join describes a join onto another table. On must be a single-column
// equality of the form "a.col = b.col".
type Join struct {
	Table string
	On    string
	Type  string
}

// NestedSelect is a PostgREST-style embedded resource selection. The REST
// adapter encodes these into the select query string; the embedded-engine
// translator rejects them.
type NestedSelect struct {
	Table  string
	Fields []string
}

// Descriptor is the mutable query builder. Construct one per logical query
// with New, configure it through the chainable setters, and hand it to a
// translator or adapter exactly once.
type Descriptor struct {
	table         string
	selectFields  []string
	conditions    []Condition
	orGroups      [][]Condition
	ordering      []OrderBy
	limit         *int
	offset        *int
	joins         []Join
	nestedSelects []NestedSelect
}

// New returns an empty descriptor.
func New() *Descriptor {
	return &Descriptor{}
}

// From sets the target table or view.
func (d *Descriptor) From(table string) *Descriptor {
	d.table = table
	return d
}

// Select sets the select expressions from a string: "*", a single field, or
// a comma-separated list. Each entry is trimmed. "*" clears the field list
// so the translator emits a bare star.
func (d *Descriptor) Select(fields string) *Descriptor {
	fields = strings.TrimSpace(fields)
	if fields == "" || fields == "*" {
		d.selectFields = nil
		return d
	}
	parts := strings.Split(fields, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	d.selectFields = out
	return d
}

// SelectFields sets the select expressions from an explicit sequence.
func (d *Descriptor) SelectFields(fields []string) *Descriptor {
	d.selectFields = append([]string(nil), fields...)
	return d
}

// Where appends one AND-ed filter condition.
func (d *Descriptor) Where(field, operator string, value any) *Descriptor {
	d.conditions = append(d.conditions, Condition{Field: field, Operator: operator, Value: value})
	return d
}

// WhereIn is sugar for Where(field, "in", values).
func (d *Descriptor) WhereIn(field string, values any) *Descriptor {
	return d.Where(field, OpIn, values)
}

// WhereOr appends one OR-group. Conditions inside the group are OR-ed;
// the group as a whole is AND-ed with all other conditions and groups.
func (d *Descriptor) WhereOr(conditions ...Condition) *Descriptor {
	group := append([]Condition(nil), conditions...)
	d.orGroups = append(d.orGroups, group)
	return d
}

// Order appends an ORDER BY term. Direction must be "asc" or "desc"
// (validated at translation time).
func (d *Descriptor) Order(field, direction string) *Descriptor {
	d.ordering = append(d.ordering, OrderBy{Field: field, Direction: direction})
	return d
}

// Limit sets the row limit.
func (d *Descriptor) Limit(n int) *Descriptor {
	d.limit = &n
	return d
}

// Offset sets the row offset.
func (d *Descriptor) Offset(n int) *Descriptor {
	d.offset = &n
	return d
}

// Join appends a join. joinType is one of JoinInner, JoinLeft, JoinRight.
func (d *Descriptor) Join(table, on, joinType string) *Descriptor {
	d.joins = append(d.joins, Join{Table: table, On: on, Type: joinType})
	return d
}

// NestedSelect appends an embedded resource selection.
func (d *Descriptor) NestedSelect(table string, fields []string) *Descriptor {
	d.nestedSelects = append(d.nestedSelects, NestedSelect{
		Table:  table,
		Fields: append([]string(nil), fields...),
	})
	return d
}

// Table returns the target table.
func (d *Descriptor) Table() string { return d.table }

// SelectedFields returns the select expressions; empty means "*".
func (d *Descriptor) SelectedFields() []string { return d.selectFields }

// Conditions returns the flat AND-ed filter conditions.
func (d *Descriptor) Conditions() []Condition { return d.conditions }

// OrGroups returns the OR-groups.
func (d *Descriptor) OrGroups() [][]Condition { return d.orGroups }

// Ordering returns the ORDER BY terms.
func (d *Descriptor) Ordering() []OrderBy { return d.ordering }

// LimitValue returns the limit, or nil when unset.
func (d *Descriptor) LimitValue() *int { return d.limit }

// OffsetValue returns the offset, or nil when unset.
func (d *Descriptor) OffsetValue() *int { return d.offset }

// Joins returns the configured joins.
func (d *Descriptor) Joins() []Join { return d.joins }

// NestedSelects returns the embedded resource selections.
func (d *Descriptor) NestedSelects() []NestedSelect { return d.nestedSelects }

// Clone returns a structurally independent deep copy: mutating the original
// afterwards never alters the clone's slices, groups or IN-list values.
func (d *Descriptor) Clone() *Descriptor {
	c := &Descriptor{
		table:        d.table,
		selectFields: append([]string(nil), d.selectFields...),
		conditions:   cloneConditions(d.conditions),
		ordering:     append([]OrderBy(nil), d.ordering...),
		joins:        append([]Join(nil), d.joins...),
	}
	if d.limit != nil {
		v := *d.limit
		c.limit = &v
	}
	if d.offset != nil {
		v := *d.offset
		c.offset = &v
	}
	if d.orGroups != nil {
		c.orGroups = make([][]Condition, len(d.orGroups))
		for i, g := range d.orGroups {
			c.orGroups[i] = cloneConditions(g)
		}
	}
	if d.nestedSelects != nil {
		c.nestedSelects = make([]NestedSelect, len(d.nestedSelects))
		for i, ns := range d.nestedSelects {
			c.nestedSelects[i] = NestedSelect{
				Table:  ns.Table,
				Fields: append([]string(nil), ns.Fields...),
			}
		}
	}
	return c
}

func cloneConditions(src []Condition) []Condition {
	if src == nil {
		return nil
	}
	out := append([]Condition(nil), src...)
	for i := range out {
		out[i].Value = cloneValue(out[i].Value)
	}
	return out
}

// cloneValue copies slice-typed condition values (IN lists) so clones do not
// share a backing array with the original.
func cloneValue(v any) any {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return v
	}
	cp := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	reflect.Copy(cp, rv)
	return cp.Interface()
}
