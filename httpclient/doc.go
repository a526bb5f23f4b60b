// Package httpclient is the transport layer used by the query and stream
// engines: a net/http adapter with static auth, TLS, circuit breaking and
// rate limiting. Retries are not applied here; the engines own them.
//
// # Basic Usage
//
//	a, err := httpclient.New(httpclient.Config{
//	    BaseURL: "https://api.example.com",
//	    Timeout: 10 * time.Second,
//	})
//
//	resp, err := a.Do(ctx, &httpclient.Request{Method: http.MethodGet, Path: "/users/1"})
//
// Non-2xx responses are returned as a *Response; only transport failures
// are errors, typed as *Error with an ErrorCode. A cancelled context yields
// ErrCodeCanceled, which also matches context.Canceled.
package httpclient
