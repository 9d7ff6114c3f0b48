package postgrest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/restlite/restlite/internal/postgrest"
	"github.com/restlite/restlite/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeQuery(t *testing.T) {
	d := query.New().From("users").
		Select("id,name").
		Where("age", query.OpGte, 18).
		WhereIn("role", []any{"admin", "owner"}).
		WhereOr(
			query.Condition{Field: "city", Operator: query.OpEq, Value: "Oslo"},
			query.Condition{Field: "city", Operator: query.OpEq, Value: "Bergen"},
		).
		Order("age", query.Desc).
		Limit(10).
		Offset(5)

	qs := postgrest.EncodeQuery(d)
	parsed, err := url.ParseQuery(qs)
	require.NoError(t, err)

	assert.Equal(t, "id,name", parsed.Get("select"))
	assert.Equal(t, "gte.18", parsed.Get("age"))
	assert.Equal(t, "in.(admin,owner)", parsed.Get("role"))
	assert.Equal(t, "(city.eq.Oslo,city.eq.Bergen)", parsed.Get("or"))
	assert.Equal(t, "age.desc", parsed.Get("order"))
	assert.Equal(t, "10", parsed.Get("limit"))
	assert.Equal(t, "5", parsed.Get("offset"))
}

func TestEncodeQuery_NestedSelect(t *testing.T) {
	d := query.New().From("users").
		Select("id").
		NestedSelect("pets", []string{"name", "kind"})

	qs := postgrest.EncodeQuery(d)
	parsed, err := url.ParseQuery(qs)
	require.NoError(t, err)
	assert.Equal(t, "id,pets(name,kind)", parsed.Get("select"))
}

func TestExecute_Get(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]map[string]any{{"id": 1.0}})
	}))
	defer srv.Close()

	c := postgrest.New(srv.URL, "secret", nil)
	rows, err := c.Execute(context.Background(), query.New().From("users").Where("id", query.OpEq, 1), "GET", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1.0, rows[0]["id"])
	assert.Equal(t, "/users", gotPath)
	assert.Contains(t, gotQuery, "id=eq.1")
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestExecute_PostSendsPreferHeader(t *testing.T) {
	var gotPrefer, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrefer = r.Header.Get("Prefer")
		gotMethod = r.Method
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]map[string]any{{"id": 2.0}})
	}))
	defer srv.Close()

	c := postgrest.New(srv.URL, "", nil)
	rows, err := c.Execute(context.Background(), query.New().From("users"), "POST", map[string]any{"name": "Eve"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "return=representation", gotPrefer)
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestExecute_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"permission denied"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := postgrest.New(srv.URL, "", nil)
	_, err := c.Execute(context.Background(), query.New().From("users"), "DELETE", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestExecute_RequiresTable(t *testing.T) {
	c := postgrest.New("http://localhost", "", nil)
	_, err := c.Execute(context.Background(), query.New(), "GET", nil)
	require.Error(t, err)
}
