package query

import (
	"net/http"
	"net/url"

	"github.com/kbukum/querykit/httpclient"
	"github.com/kbukum/querykit/resilience"
)

// ResponseKind forces how a success body is decoded.
type ResponseKind int

const (
	// Auto decides from the Content-Type header.
	Auto ResponseKind = iota
	// JSON decodes the body as JSON regardless of Content-Type.
	JSON
	// Text returns the body as text.
	Text
	// Binary returns the raw bytes and the disposition filename.
	Binary
)

func (k ResponseKind) String() string {
	switch k {
	case Auto:
		return "auto"
	case JSON:
		return "json"
	case Text:
		return "text"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// ParseResponseKind maps a config or flag value to a ResponseKind. Unknown
// values map to Auto.
func ParseResponseKind(s string) ResponseKind {
	switch s {
	case "json":
		return JSON
	case "text":
		return Text
	case "binary":
		return Binary
	default:
		return Auto
	}
}

// Descriptor is a complete request description.
type Descriptor struct {
	// BaseURL is joined with Path. It may be empty when Path is absolute or
	// the transport carries its own base URL.
	BaseURL string `validate:"omitempty,url"`
	Path    string
	// Method defaults to GET.
	Method       string `validate:"omitempty,oneof=GET HEAD POST PUT PATCH DELETE OPTIONS"`
	Header       http.Header
	Query        url.Values
	Body         any
	ResponseKind ResponseKind `validate:"gte=0,lte=3"`
	// Retry defaults to a single attempt.
	Retry *resilience.RetryPolicy
}

// Override is a partial Descriptor applied to one Execute call. Nil fields
// are left unset. Header and Query are merged key by key, override wins.
type Override struct {
	BaseURL      *string
	Path         *string
	Method       *string
	Header       http.Header
	Query        url.Values
	Body         any
	ResponseKind *ResponseKind
	Retry        *resilience.RetryPolicy
}

// Ptr returns a pointer to v, for filling Override fields.
func Ptr[V any](v V) *V { return &v }

// Merge applies overrides to d in order and returns the result. d is not
// modified.
func Merge(d Descriptor, overrides ...Override) Descriptor {
	out := d
	out.Header = canonicalHeader(d.Header)
	out.Query = cloneValues(d.Query)
	for _, o := range overrides {
		if o.BaseURL != nil {
			out.BaseURL = *o.BaseURL
		}
		if o.Path != nil {
			out.Path = *o.Path
		}
		if o.Method != nil {
			out.Method = *o.Method
		}
		if len(o.Header) > 0 {
			if out.Header == nil {
				out.Header = make(http.Header, len(o.Header))
			}
			for k, vs := range o.Header {
				out.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
			}
		}
		if len(o.Query) > 0 {
			if out.Query == nil {
				out.Query = make(url.Values, len(o.Query))
			}
			for k, vs := range o.Query {
				out.Query[k] = append([]string(nil), vs...)
			}
		}
		if o.Body != nil {
			out.Body = o.Body
		}
		if o.ResponseKind != nil {
			out.ResponseKind = *o.ResponseKind
		}
		if o.Retry != nil {
			r := *o.Retry
			out.Retry = &r
		}
	}
	if out.Method == "" {
		out.Method = http.MethodGet
	}
	return out
}

// URL returns the target of the descriptor without query parameters.
func (d Descriptor) URL() string {
	return httpclient.ResolveURL(d.BaseURL, d.Path)
}

// policy returns the effective retry policy.
func (d Descriptor) policy() resilience.RetryPolicy {
	if d.Retry == nil {
		return resilience.NoRetry()
	}
	return *d.Retry
}

// request builds the transport request for one logical call around an
// already encoded body.
func (d Descriptor) request(payload *httpclient.Payload) *httpclient.Request {
	req := &httpclient.Request{
		Method: d.Method,
		Path:   d.URL(),
		Header: canonicalHeader(d.Header),
		Query:  cloneValues(d.Query),
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if payload != nil {
		req.Body = payload
	}
	return req
}

// canonicalHeader copies h with every key in canonical form so that later
// Set calls replace a value instead of adding a second spelling.
func canonicalHeader(h http.Header) http.Header {
	if h == nil {
		return nil
	}
	out := make(http.Header, len(h))
	for k, vs := range h {
		ck := http.CanonicalHeaderKey(k)
		out[ck] = append(out[ck], vs...)
	}
	return out
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
