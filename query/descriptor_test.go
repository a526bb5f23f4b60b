package query

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/kbukum/querykit/resilience"
)

func TestMerge_CanonicalizesStaticHeader(t *testing.T) {
	static := Descriptor{Header: http.Header{"x-trace": {"static"}, "accept": {"text/plain"}}}

	got := Merge(static, Override{Header: http.Header{"X-Trace": {"override"}}})

	if len(got.Header) != 2 {
		t.Fatalf("headers = %v, want two canonical keys", got.Header)
	}
	if v := got.Header["X-Trace"]; len(v) != 1 || v[0] != "override" {
		t.Errorf("X-Trace = %v", v)
	}
	if v := got.Header["Accept"]; len(v) != 1 || v[0] != "text/plain" {
		t.Errorf("Accept = %v", v)
	}
	if _, ok := static.Header["x-trace"]; !ok {
		t.Error("static descriptor was modified")
	}
}

func TestMerge(t *testing.T) {
	static := Descriptor{
		BaseURL: "https://api.example.com",
		Path:    "/items",
		Header:  http.Header{"Accept": {"application/json"}, "X-Tenant": {"a"}},
		Query:   url.Values{"page": {"1"}, "size": {"10"}},
		Retry:   ptrPolicy(resilience.FixedDelay(1, time.Second)),
	}

	got := Merge(static, Override{
		Path:         Ptr("/items/7"),
		Method:       Ptr(http.MethodPut),
		Header:       http.Header{"x-tenant": {"b"}},
		Query:        url.Values{"page": {"2"}},
		Body:         map[string]int{"n": 1},
		ResponseKind: Ptr(Text),
	})

	if got.URL() != "https://api.example.com/items/7" {
		t.Errorf("URL() = %q", got.URL())
	}
	if got.Method != http.MethodPut || got.ResponseKind != Text || got.Body == nil {
		t.Errorf("merged = %+v", got)
	}
	if got.Header.Get("X-Tenant") != "b" || got.Header.Get("Accept") != "application/json" {
		t.Errorf("headers = %v", got.Header)
	}
	if got.Query.Get("page") != "2" || got.Query.Get("size") != "10" {
		t.Errorf("query = %v", got.Query)
	}
	if got.Retry == nil || got.Retry.Count != 1 {
		t.Errorf("retry = %+v", got.Retry)
	}
	if static.Header.Get("X-Tenant") != "a" || static.Query.Get("page") != "1" {
		t.Error("Merge mutated the static descriptor")
	}
}

func TestMerge_DefaultsAndOrder(t *testing.T) {
	got := Merge(Descriptor{Path: "/a"},
		Override{Path: Ptr("/b"), Retry: ptrPolicy(resilience.FixedDelay(1, 0))},
		Override{Path: Ptr("/c"), Retry: ptrPolicy(resilience.FixedDelay(3, 0))},
	)
	if got.Method != http.MethodGet {
		t.Errorf("method = %q, want GET", got.Method)
	}
	if got.Path != "/c" || got.Retry.Count != 3 {
		t.Errorf("later overrides should win: %+v", got)
	}
	if got.policy().Attempts() != 4 {
		t.Errorf("attempts = %d", got.policy().Attempts())
	}
	if (Descriptor{}).policy().Attempts() != 1 {
		t.Error("default policy should make one attempt")
	}
}

func TestParseResponseKind(t *testing.T) {
	for in, want := range map[string]ResponseKind{"json": JSON, "text": Text, "binary": Binary, "": Auto, "xml": Auto} {
		if got := ParseResponseKind(in); got != want {
			t.Errorf("ParseResponseKind(%q) = %s, want %s", in, got, want)
		}
	}
}
