package httpclient

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/kbukum/querykit/httpclient/sse"
)

// Request describes one outbound HTTP exchange.
type Request struct {
	// Method defaults to GET.
	Method string
	// Path is appended to the adapter's BaseURL. An absolute URL is used as is.
	Path string
	// Header is merged over the adapter's default headers.
	Header http.Header
	// Query is appended to the URL.
	Query url.Values
	// Body accepts any kind Encode understands.
	Body any
	// Auth overrides the adapter-level auth for this request.
	Auth *AuthConfig
}

// Clone returns a deep copy of the request's header and query. Body is shared.
func (r *Request) Clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if r.Query != nil {
		c.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			c.Query[k] = append([]string(nil), v...)
		}
	}
	return &c
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// MediaType returns the lower-cased media type of the Content-Type header
// without parameters.
func (r *Response) MediaType() string {
	return MediaType(r.Header.Get("Content-Type"))
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Filename returns the file name announced by Content-Disposition, preferring
// the RFC 5987 filename* parameter.
func (r *Response) Filename() string {
	cd := r.Header.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return ""
	}
	// mime.ParseMediaType decodes filename* into the filename key.
	return params["filename"]
}

// MediaType parses a Content-Type value down to its media type.
func MediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsJSONMediaType reports whether mt is application/json or a +json suffix type.
func IsJSONMediaType(mt string) bool {
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// StreamResponse is an open streaming response. The caller must Close it.
type StreamResponse struct {
	StatusCode int
	Header     http.Header
	// SSE is set for text/event-stream responses.
	SSE sse.Reader
	// Body is set for any other streaming content.
	Body io.ReadCloser
}

// Close releases the underlying connection. It is safe to call more than once.
func (r *StreamResponse) Close() error {
	if r.SSE != nil {
		return r.SSE.Close()
	}
	if r.Body != nil {
		return r.Body.Close()
	}
	return nil
}
