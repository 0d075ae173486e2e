package handlers

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func parseRequest(t *testing.T, contentType, body, query string) *Params {
	t.Helper()

	r := httptest.NewRequest("POST", "/test?"+query, strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	p, err := ParseParams(r)
	if err != nil {
		t.Fatalf("ParseParams: %v", err)
	}
	return p
}

func TestParamsPrecedence(t *testing.T) {
	form := url.Values{"name": {"from-form"}}.Encode()
	p := parseRequest(t, "application/x-www-form-urlencoded", form, "name=from-query&only=query")

	if got := p.Get("name"); got != "from-form" {
		t.Errorf("form should win over query, got %q", got)
	}
	if got := p.Get("only"); got != "query" {
		t.Errorf("query-only parameter = %q", got)
	}
	if got := p.Get("missing"); got != "" {
		t.Errorf("missing parameter = %q, want empty", got)
	}
}

func TestParamsJSONBody(t *testing.T) {
	p := parseRequest(t, "application/json",
		`{"name":"alice","count":42,"ratio":0.5,"flag":true,"list":[1,2]}`,
		"name=from-query")

	// Query beats the JSON body.
	if got := p.Get("name"); got != "from-query" {
		t.Errorf("name = %q, want from-query", got)
	}
	if got := p.Get("count"); got != "42" {
		t.Errorf("integer = %q, want 42", got)
	}
	if got := p.Get("ratio"); got != "0.5" {
		t.Errorf("float = %q, want 0.5", got)
	}
	if got := p.Get("flag"); got != "true" {
		t.Errorf("bool = %q, want true", got)
	}
	if got := p.Get("list"); got != "" {
		t.Errorf("array = %q, want empty", got)
	}
	if !p.Has("flag") || p.Has("missing") {
		t.Error("Has misreports JSON keys")
	}
}

func TestParamsMalformedJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/test", strings.NewReader(`{"broken`))
	r.Header.Set("Content-Type", "application/json")
	if _, err := ParseParams(r); err == nil {
		t.Fatal("malformed JSON should be an error")
	}

	// An empty JSON body is fine.
	r = httptest.NewRequest("POST", "/test", strings.NewReader(""))
	r.Header.Set("Content-Type", "application/json")
	if _, err := ParseParams(r); err != nil {
		t.Fatalf("empty JSON body: %v", err)
	}
}

func TestParamsConversions(t *testing.T) {
	p := parseRequest(t, "", "", "limit=25&page=3&flag=1&bad=abc")

	if got := p.Int("limit", 0); got != 25 {
		t.Errorf("Int(limit) = %d, want 25", got)
	}
	if got := p.Int("bad", 7); got != 7 {
		t.Errorf("Int on unparseable = %d, want the default", got)
	}
	if got := p.Int64("limit", 0); got != 25 {
		t.Errorf("Int64(limit) = %d, want 25", got)
	}
	if !p.Bool("flag") || p.Bool("bad") || p.Bool("missing") {
		t.Error("Bool conversions wrong")
	}

	limit, page := p.Pagination()
	if limit != 25 || page != 3 {
		t.Errorf("Pagination = (%d, %d), want (25, 3)", limit, page)
	}
}
