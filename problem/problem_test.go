package problem

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

type namedErr struct{}

func (namedErr) Error() string { return "dial refused" }
func (namedErr) Name() string  { return "ConnectionError" }

type TypedFailure struct{ msg string }

func (e *TypedFailure) Error() string { return e.msg }

func TestDetails_UnmarshalProblemDocument(t *testing.T) {
	body := `{"type":"about:blank","title":"Not Found","status":404,"detail":"no user 7","trace":"abc"}`

	var d Details
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Status != 404 || d.Title != "Not Found" || d.Detail != "no user 7" || d.Type != "about:blank" {
		t.Errorf("unexpected details: %+v", d)
	}
	if d.Extensions["trace"] != "abc" {
		t.Errorf("expected trace extension, got %v", d.Extensions)
	}
}

func TestDetails_UnmarshalToleratesBadStatus(t *testing.T) {
	var d Details
	if err := json.Unmarshal([]byte(`{"title":"x","status":"oops"}`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Status != 0 || d.Title != "x" {
		t.Errorf("unexpected details: %+v", d)
	}
}

func TestDetails_MarshalFlattensExtensions(t *testing.T) {
	d := (&Details{Status: 409, Title: "Conflict"}).WithExtension("field", "email")
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["field"] != "email" || m["title"] != "Conflict" || m["status"] != float64(409) {
		t.Errorf("unexpected encoding: %s", data)
	}
	if _, ok := m["detail"]; ok {
		t.Error("empty detail should be omitted")
	}
}

func TestDetails_Error(t *testing.T) {
	tests := []struct {
		name string
		d    Details
		want string
	}{
		{"status and detail", Details{Status: 503, Title: "Unavailable", Detail: "down"}, "Unavailable (HTTP 503): down"},
		{"status only", Details{Status: 404, Title: "Not Found"}, "Not Found (HTTP 404)"},
		{"local", Details{Title: "ParseError", Detail: "bad json"}, "ParseError: bad json"},
		{"title only", Details{Title: "Oops"}, "Oops"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.d.Error(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFromError(t *testing.T) {
	t.Run("named error", func(t *testing.T) {
		d := FromError(fmt.Errorf("wrapped: %w", namedErr{}))
		if d.Status != 0 || d.Title != "ConnectionError" {
			t.Errorf("unexpected: %+v", d)
		}
		if !strings.Contains(d.Detail, "dial refused") {
			t.Errorf("expected message in detail, got %q", d.Detail)
		}
	})

	t.Run("exported type name", func(t *testing.T) {
		d := FromError(&TypedFailure{msg: "boom"})
		if d.Title != "TypedFailure" {
			t.Errorf("expected type name title, got %q", d.Title)
		}
	})

	t.Run("plain error", func(t *testing.T) {
		cause := stderrors.New("boom")
		d := FromError(cause)
		if d.Title != "Error" || d.Detail != "boom" {
			t.Errorf("unexpected: %+v", d)
		}
		if !stderrors.Is(d, cause) {
			t.Error("expected cause to unwrap")
		}
	})

	t.Run("existing details pass through", func(t *testing.T) {
		orig := &Details{Status: 400, Title: "Bad"}
		if got := FromError(fmt.Errorf("x: %w", orig)); got != orig {
			t.Errorf("expected same details, got %+v", got)
		}
	})

	t.Run("nil", func(t *testing.T) {
		if FromError(nil) != nil {
			t.Error("expected nil")
		}
	})
}

func TestMaxAttempts(t *testing.T) {
	d := MaxAttempts(3, &Details{Status: 503, Title: "Unavailable"})
	if d.Title != TitleMaxAttempts || d.Status != 503 {
		t.Errorf("unexpected: %+v", d)
	}
	if d.Extensions["attempts"] != 3 {
		t.Errorf("expected attempts extension, got %v", d.Extensions)
	}
}

func TestClone(t *testing.T) {
	orig := (&Details{Title: "x"}).WithExtension("k", 1)
	c := orig.Clone()
	c.Extensions["k"] = 2
	if orig.Extensions["k"] != 1 {
		t.Error("clone should not share extensions")
	}
	var nilDetails *Details
	if nilDetails.Clone() != nil {
		t.Error("clone of nil should be nil")
	}
}
