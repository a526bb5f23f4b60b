// Package stream keeps a Server-Sent Events connection open and publishes
// each decoded event as state.
//
// An Engine moves through
//
//	Idle -> Connecting -> Open -> (Error -> Reconnecting -> Connecting)* -> Closed
//
// Each Execute starts a new session that replaces the previous one. The
// credential supplier is called again on every connect and its token is
// sent as a query parameter, since event streams cannot carry custom
// headers in browsers and many proxies. A failed or dropped connection is
// retried up to Reconnect.Count times with Reconnect.Delay between tries;
// the counter resets whenever a connection opens. Abort always wins over a
// pending reconnect.
package stream
