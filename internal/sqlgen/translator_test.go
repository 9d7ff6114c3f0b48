package sqlgen_test

import (
	"testing"

	"github.com/restlite/restlite/internal/query"
	"github.com/restlite/restlite/internal/sqlgen"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateSelect_Basic(t *testing.T) {
	stmt, err := sqlgen.TranslateSelect(query.New().From("users"))
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users"`, stmt.SQL)
	assert.Empty(t, stmt.Params)
}

func TestTranslateSelect_RequiresTable(t *testing.T) {
	_, err := sqlgen.TranslateSelect(query.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlgen.ErrTranslation)
	assert.Contains(t, err.Error(), "table name must be specified")
}

func TestTranslateSelect_RejectsNestedSelects(t *testing.T) {
	d := query.New().From("users").NestedSelect("pets", []string{"name"})
	_, err := sqlgen.TranslateSelect(d)
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlgen.ErrTranslation)
	assert.Contains(t, err.Error(), "nested selects are not supported")
}

func TestTranslateSelect_FieldFormatting(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		want   string
		isErr  bool
	}{
		{name: "plain fields", fields: []string{"id", "name"}, want: `SELECT "id", "name" FROM "users"`},
		{name: "qualified field", fields: []string{"users.id"}, want: `SELECT "users"."id" FROM "users"`},
		{name: "bare star", fields: []string{"*"}, want: `SELECT * FROM "users"`},
		{name: "table star", fields: []string{"users.*"}, want: `SELECT "users".* FROM "users"`},
		{name: "alias", fields: []string{"name AS n"}, want: `SELECT "name" AS "n" FROM "users"`},
		{name: "lowercase alias keyword", fields: []string{"name as n"}, want: `SELECT "name" AS "n" FROM "users"`},
		{name: "count star", fields: []string{"count(*)"}, want: `SELECT count(*) FROM "users"`},
		{name: "count distinct", fields: []string{"count(DISTINCT city)"}, want: `SELECT count(DISTINCT "city") FROM "users"`},
		{name: "aliased aggregate", fields: []string{"count(*) AS total"}, want: `SELECT count(*) AS "total" FROM "users"`},
		{name: "nested call", fields: []string{"round(avg(age), 2)"}, want: `SELECT round(avg("age"), 2) FROM "users"`},
		{name: "string literal argument", fields: []string{"coalesce(name, 'unknown')"}, want: `SELECT coalesce("name", 'unknown') FROM "users"`},
		{name: "qualified function argument", fields: []string{"max(users.age)"}, want: `SELECT max("users"."age") FROM "users"`},
		{name: "empty argument list", fields: []string{"count()"}, isErr: true},
		{name: "bad identifier", fields: []string{"drop table"}, isErr: true},
		{name: "bad alias ignored as expression", fields: []string{"name AS 1bad"}, isErr: true},
		{name: "unbalanced parens", fields: []string{"count(a,("}, isErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := query.New().From("users").SelectFields(tt.fields)
			stmt, err := sqlgen.TranslateSelect(d)
			if tt.isErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, sqlgen.ErrTranslation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.SQL)
		})
	}
}

func TestTranslateSelect_LiteralArguments(t *testing.T) {
	tests := []struct {
		name  string
		field string
		want  string
		isErr bool
	}{
		{name: "single quoted", field: "coalesce(name, 'unknown')", want: `SELECT coalesce("name", 'unknown') FROM "users"`},
		{name: "double quoted", field: `coalesce(name, "n/a")`, want: `SELECT coalesce("name", "n/a") FROM "users"`},
		{name: "literal with comma", field: "group_concat(name, ', ')", want: `SELECT group_concat("name", ', ') FROM "users"`},
		{name: "literal with paren", field: "coalesce(name, '(none)')", want: `SELECT coalesce("name", '(none)') FROM "users"`},
		{name: "quote-wrapped comparison", field: "coalesce(name, '1'='1')", isErr: true},
		{name: "quote-wrapped concat", field: "min('a' || 'b')", isErr: true},
		{name: "quote-wrapped subquery", field: "coalesce(name, '' || (SELECT k FROM secrets) || '')", isErr: true},
		{name: "double-quote splice", field: `max("a" || "b")`, isErr: true},
		{name: "unterminated literal", field: "coalesce(name, 'abc)", isErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := query.New().From("users").SelectFields([]string{tt.field})
			stmt, err := sqlgen.TranslateSelect(d)
			if tt.isErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, sqlgen.ErrTranslation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, stmt.SQL)
		})
	}
}

func TestTranslateSelect_Joins(t *testing.T) {
	tests := []struct {
		name     string
		joinType string
		want     string
		isErr    bool
	}{
		{name: "inner", joinType: query.JoinInner, want: "INNER JOIN"},
		{name: "left", joinType: query.JoinLeft, want: "LEFT JOIN"},
		{name: "right rejected", joinType: query.JoinRight, isErr: true},
		{name: "unknown rejected", joinType: "cross", isErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := query.New().From("orders").Join("users", "orders.user_id = users.id", tt.joinType)
			stmt, err := sqlgen.TranslateSelect(d)
			if tt.isErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, sqlgen.ErrTranslation)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, stmt.SQL, tt.want+` "users" ON "orders"."user_id" = "users"."id"`)
		})
	}
}

func TestTranslateSelect_JoinTargets(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
		isErr  bool
	}{
		{name: "bare table", target: "users", want: `"users"`},
		{name: "implicit alias", target: "users u", want: `"users" "u"`},
		{name: "explicit alias", target: "users AS u", want: `"users" AS "u"`},
		{name: "lowercase as", target: "users as u", want: `"users" AS "u"`},
		{name: "too many tokens", target: "users AS u extra", isErr: true},
		{name: "three tokens without AS", target: "users x u", isErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := query.New().From("orders").Join(tt.target, "orders.user_id = u.id", query.JoinInner)
			stmt, err := sqlgen.TranslateSelect(d)
			if tt.isErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, stmt.SQL, "INNER JOIN "+tt.want+" ON")
		})
	}
}

func TestTranslateSelect_JoinOnValidation(t *testing.T) {
	tests := []struct {
		name string
		on   string
	}{
		{name: "no equality", on: "orders.user_id"},
		{name: "double equality", on: "a.b = c.d = e.f"},
		{name: "unqualified side", on: "user_id = users.id"},
		{name: "injection attempt", on: "a.b = c.d; DROP TABLE users"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := query.New().From("orders").Join("users", tt.on, query.JoinInner)
			_, err := sqlgen.TranslateSelect(d)
			require.Error(t, err)
			assert.ErrorIs(t, err, sqlgen.ErrTranslation)
		})
	}
}

func TestTranslateSelect_OrderLimitOffset(t *testing.T) {
	d := query.New().From("users").
		Order("age", "desc").
		Order("name", "ASC").
		Limit(10).
		Offset(20)
	stmt, err := sqlgen.TranslateSelect(d)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" ORDER BY "age" DESC, "name" ASC LIMIT 10 OFFSET 20`, stmt.SQL)
}

func TestTranslateSelect_InvalidOrderDirection(t *testing.T) {
	_, err := sqlgen.TranslateSelect(query.New().From("users").Order("age", "sideways"))
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlgen.ErrTranslation)
}

func TestTranslateSelect_NegativePaging(t *testing.T) {
	_, err := sqlgen.TranslateSelect(query.New().From("users").Limit(-1))
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlgen.ErrTranslation)

	_, err = sqlgen.TranslateSelect(query.New().From("users").Offset(-5))
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlgen.ErrTranslation)
}

func TestTranslateSelect_EmptyInProducesFalseClause(t *testing.T) {
	d := query.New().From("users").Where("id", query.OpIn, []any{})
	stmt, err := sqlgen.TranslateSelect(d)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE 1=0`, stmt.SQL)
	assert.Empty(t, stmt.Params)
}

func TestTranslateSelect_OrGroups(t *testing.T) {
	d := query.New().From("users").
		Where("active", query.OpEq, 1).
		WhereOr(
			query.Condition{Field: "role", Operator: query.OpEq, Value: "admin"},
			query.Condition{Field: "role", Operator: query.OpEq, Value: "owner"},
		)
	stmt, err := sqlgen.TranslateSelect(d)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE "active" = ? AND ("role" = ? OR "role" = ?)`, stmt.SQL)
	assert.Equal(t, []any{1, "admin", "owner"}, stmt.Params)
}

func TestTranslateSelect_SingleFragmentGroupStillWrapped(t *testing.T) {
	d := query.New().From("users").
		WhereOr(query.Condition{Field: "role", Operator: query.OpEq, Value: "admin"})
	stmt, err := sqlgen.TranslateSelect(d)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE ("role" = ?)`, stmt.SQL)
}

func TestTranslateSelect_EmptyGroupSkipped(t *testing.T) {
	d := query.New().From("users").
		Where("id", query.OpEq, 1).
		WhereOr()
	stmt, err := sqlgen.TranslateSelect(d)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE "id" = ?`, stmt.SQL)
}

func TestTranslateInsert_MultiRowIndependence(t *testing.T) {
	d := query.New().From("t")
	stmts, err := sqlgen.TranslateInsert(d, []map[string]any{
		{"a": 1},
		{"a": 2},
	})
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	for _, stmt := range stmts {
		assert.Equal(t, `INSERT INTO "t" ("a") VALUES (?) RETURNING *`, stmt.SQL)
	}
	assert.Equal(t, []any{1}, stmts[0].Params)
	assert.Equal(t, []any{2}, stmts[1].Params)
}

func TestTranslateInsert_ColumnOrderSorted(t *testing.T) {
	stmts, err := sqlgen.TranslateInsert(query.New().From("t"), []map[string]any{
		{"b": 2, "a": 1},
	})
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t, `INSERT INTO "t" ("a", "b") VALUES (?, ?) RETURNING *`, stmts[0].SQL)
	assert.Equal(t, []any{1, 2}, stmts[0].Params)
}

func TestTranslateInsert_Errors(t *testing.T) {
	d := query.New().From("t")

	t.Run("empty rows", func(t *testing.T) {
		_, err := sqlgen.TranslateInsert(d, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, sqlgen.ErrTranslation)
	})

	t.Run("mismatched column sets", func(t *testing.T) {
		_, err := sqlgen.TranslateInsert(d, []map[string]any{{"a": 1}, {"b": 2}})
		require.Error(t, err)
		assert.ErrorIs(t, err, sqlgen.ErrTranslation)
	})

	t.Run("extra column in later row", func(t *testing.T) {
		_, err := sqlgen.TranslateInsert(d, []map[string]any{{"a": 1}, {"a": 2, "b": 3}})
		require.Error(t, err)
	})

	t.Run("qualified column", func(t *testing.T) {
		_, err := sqlgen.TranslateInsert(d, []map[string]any{{"t.a": 1}})
		require.Error(t, err)
		assert.ErrorIs(t, err, sqlgen.ErrTranslation)
	})

	t.Run("missing table", func(t *testing.T) {
		_, err := sqlgen.TranslateInsert(query.New(), []map[string]any{{"a": 1}})
		require.Error(t, err)
	})
}

func TestTranslateInsert_NormalizesValues(t *testing.T) {
	stmts, err := sqlgen.TranslateInsert(query.New().From("t"), []map[string]any{
		{"active": true, "deleted": nil},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), nil}, stmts[0].Params)
}

func TestTranslateUpdate(t *testing.T) {
	d := query.New().From("users").Where("name", query.OpEq, "Alice")
	stmt, err := sqlgen.TranslateUpdate(d, map[string]any{"age": 31})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "age" = ? WHERE "name" = ? RETURNING *`, stmt.SQL)
	assert.Equal(t, []any{31, "Alice"}, stmt.Params)
}

func TestTranslateUpdate_RequiresColumns(t *testing.T) {
	_, err := sqlgen.TranslateUpdate(query.New().From("users"), map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlgen.ErrTranslation)
}

func TestTranslateUpdate_SetParamsPrecedeWhereParams(t *testing.T) {
	d := query.New().From("users").Where("id", query.OpEq, 7)
	stmt, err := sqlgen.TranslateUpdate(d, map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "a" = ?, "b" = ? WHERE "id" = ? RETURNING *`, stmt.SQL)
	assert.Equal(t, []any{1, 2, 7}, stmt.Params)
}

func TestTranslateDelete(t *testing.T) {
	d := query.New().From("users").Where("id", query.OpEq, 1)
	stmt, err := sqlgen.TranslateDelete(d)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users" WHERE "id" = ? RETURNING *`, stmt.SQL)
	assert.Equal(t, []any{1}, stmt.Params)
}

func TestTranslateDelete_NoWhere(t *testing.T) {
	stmt, err := sqlgen.TranslateDelete(query.New().From("users"))
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users" RETURNING *`, stmt.SQL)
}

func TestTranslatedStatements_Golden(t *testing.T) {
	g := goldie.New(t)

	tests := []struct {
		name string
		sql  func() (string, error)
	}{
		{
			name: "select_full",
			sql: func() (string, error) {
				d := query.New().
					From("orders").
					SelectFields([]string{"orders.id", "users.name AS customer", "count(DISTINCT items.sku) AS skus"}).
					Join("users", "orders.user_id = users.id", query.JoinInner).
					Join("items AS i", "orders.id = i.order_id", query.JoinLeft).
					Where("orders.total", query.OpGte, 100).
					WhereOr(
						query.Condition{Field: "orders.status", Operator: query.OpEq, Value: "paid"},
						query.Condition{Field: "orders.status", Operator: query.OpEq, Value: "shipped"},
					).
					Order("orders.id", query.Desc).
					Limit(25).
					Offset(50)
				stmt, err := sqlgen.TranslateSelect(d)
				return stmt.SQL, err
			},
		},
		{
			name: "update_full",
			sql: func() (string, error) {
				d := query.New().From("users").
					Where("id", query.OpIn, []any{1, 2, 3}).
					Where("deleted_at", query.OpEq, nil)
				stmt, err := sqlgen.TranslateUpdate(d, map[string]any{"age": 31, "active": true})
				return stmt.SQL, err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, err := tt.sql()
			require.NoError(t, err)
			g.Assert(t, tt.name, []byte(sql+"\n"))
		})
	}
}
