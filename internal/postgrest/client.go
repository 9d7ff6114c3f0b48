// Package postgrest is a thin HTTP adapter that encodes query descriptors
// as PostgREST query strings. It shares the descriptor type with the
// embedded-engine path but performs no SQL translation itself.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/restlite/restlite/internal/query"
)

// Row is one decoded result row.
type Row = map[string]any

// Client talks to a PostgREST-compatible endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client. httpClient may be nil.
func New(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
	}
}

// Execute encodes the descriptor and performs the request. Mutating verbs
// send Prefer: return=representation so the response carries the affected
// rows, mirroring the embedded translator's RETURNING semantics.
func (c *Client) Execute(ctx context.Context, d *query.Descriptor, verb string, body any) ([]Row, error) {
	if d.Table() == "" {
		return nil, fmt.Errorf("postgrest: a table name must be specified before executing a query")
	}

	method, err := httpMethod(verb)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/" + url.PathEscape(d.Table())
	if qs := EncodeQuery(d); qs != "" {
		endpoint += "?" + qs
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("postgrest: encode body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("postgrest: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("postgrest: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("postgrest: %s %s: status %d: %s", method, endpoint, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var rows []Row
	if err := json.Unmarshal(raw, &rows); err != nil {
		// Single-object responses come back from unique selects.
		var row Row
		if err2 := json.Unmarshal(raw, &row); err2 != nil {
			return nil, fmt.Errorf("postgrest: decode response: %w", err)
		}
		rows = []Row{row}
	}
	return rows, nil
}

func httpMethod(verb string) (string, error) {
	switch strings.ToUpper(verb) {
	case "GET":
		return http.MethodGet, nil
	case "POST":
		return http.MethodPost, nil
	case "PUT", "PATCH":
		return http.MethodPatch, nil
	case "DELETE":
		return http.MethodDelete, nil
	}
	return "", fmt.Errorf("postgrest: unsupported verb %q", verb)
}

// EncodeQuery renders the descriptor's select, filter, or-group, order and
// paging state as a PostgREST query string.
func EncodeQuery(d *query.Descriptor) string {
	values := url.Values{}

	if sel := encodeSelect(d); sel != "" {
		values.Set("select", sel)
	}

	for _, c := range d.Conditions() {
		values.Add(c.Field, c.Operator+"."+encodeValue(c.Value))
	}

	for _, group := range d.OrGroups() {
		if len(group) == 0 {
			continue
		}
		parts := make([]string, len(group))
		for i, c := range group {
			parts[i] = c.Field + "." + c.Operator + "." + encodeValue(c.Value)
		}
		values.Add("or", "("+strings.Join(parts, ",")+")")
	}

	if len(d.Ordering()) > 0 {
		terms := make([]string, len(d.Ordering()))
		for i, o := range d.Ordering() {
			terms[i] = o.Field + "." + strings.ToLower(o.Direction)
		}
		values.Set("order", strings.Join(terms, ","))
	}

	if d.LimitValue() != nil {
		values.Set("limit", strconv.Itoa(*d.LimitValue()))
	}
	if d.OffsetValue() != nil {
		values.Set("offset", strconv.Itoa(*d.OffsetValue()))
	}

	return values.Encode()
}

// encodeSelect combines plain select fields with nested-select embeddings,
// e.g. "id,name,pets(name,kind)".
func encodeSelect(d *query.Descriptor) string {
	parts := append([]string(nil), d.SelectedFields()...)
	for _, ns := range d.NestedSelects() {
		fields := "*"
		if len(ns.Fields) > 0 {
			fields = strings.Join(ns.Fields, ",")
		}
		parts = append(parts, ns.Table+"("+fields+")")
	}
	return strings.Join(parts, ",")
}

func encodeValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = encodeValue(item)
		}
		return "(" + strings.Join(parts, ",") + ")"
	default:
		return fmt.Sprint(val)
	}
}
