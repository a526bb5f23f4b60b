package problem

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// Details is a problem details object.
type Details struct {
	// Status is the HTTP status code. 0 when no response was received.
	Status int `json:"status"`
	// Title is a short, human-readable summary.
	Title string `json:"title"`
	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
	// Type is a URI reference identifying the problem type.
	Type string `json:"type,omitempty"`
	// Instance identifies the specific occurrence.
	Instance string `json:"instance,omitempty"`
	// Extensions holds members not covered above.
	Extensions map[string]any `json:"-"`
	// Cause is the local error that produced a synthesized problem.
	Cause error `json:"-"`
}

// Error implements the error interface.
func (d *Details) Error() string {
	switch {
	case d.Status > 0 && d.Detail != "":
		return fmt.Sprintf("%s (HTTP %d): %s", d.Title, d.Status, d.Detail)
	case d.Status > 0:
		return fmt.Sprintf("%s (HTTP %d)", d.Title, d.Status)
	case d.Detail != "":
		return fmt.Sprintf("%s: %s", d.Title, d.Detail)
	default:
		return d.Title
	}
}

// StatusCode returns the HTTP status, 0 when none was received.
func (d *Details) StatusCode() int { return d.Status }

// Unwrap returns the local cause, if any.
func (d *Details) Unwrap() error { return d.Cause }

// WithExtension sets a single extension member and returns the receiver.
func (d *Details) WithExtension(key string, value any) *Details {
	if d.Extensions == nil {
		d.Extensions = make(map[string]any)
	}
	d.Extensions[key] = value
	return d
}

// Clone returns a deep-enough copy for publishing to subscribers.
func (d *Details) Clone() *Details {
	if d == nil {
		return nil
	}
	c := *d
	if d.Extensions != nil {
		c.Extensions = make(map[string]any, len(d.Extensions))
		for k, v := range d.Extensions {
			c.Extensions[k] = v
		}
	}
	return &c
}

var knownMembers = map[string]bool{
	"status": true, "title": true, "detail": true, "type": true, "instance": true,
}

// UnmarshalJSON decodes standard members and keeps the rest as extensions.
// A non-numeric status is ignored rather than failing the whole body.
func (d *Details) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Details
	if v, ok := raw["status"]; ok {
		_ = json.Unmarshal(v, &out.Status)
	}
	for key, dst := range map[string]*string{
		"title": &out.Title, "detail": &out.Detail, "type": &out.Type, "instance": &out.Instance,
	} {
		if v, ok := raw[key]; ok {
			_ = json.Unmarshal(v, dst)
		}
	}
	for k, v := range raw {
		if knownMembers[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err == nil {
			out.WithExtension(k, val)
		}
	}
	*d = out
	return nil
}

// MarshalJSON encodes standard members with extensions flattened alongside.
func (d Details) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(d.Extensions)+5)
	for k, v := range d.Extensions {
		m[k] = v
	}
	m["status"] = d.Status
	m["title"] = d.Title
	if d.Detail != "" {
		m["detail"] = d.Detail
	}
	if d.Type != "" {
		m["type"] = d.Type
	}
	if d.Instance != "" {
		m["instance"] = d.Instance
	}
	return json.Marshal(m)
}

// As extracts a *Details from an error chain.
func As(err error) (*Details, bool) {
	var d *Details
	if stderrors.As(err, &d) {
		return d, true
	}
	return nil, false
}
