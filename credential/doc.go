// Package credential supplies bearer tokens to the query and stream engines.
//
// A Supplier is invoked once per attempt and its result is never cached by
// the engines, so a supplier that refreshes or mints tokens always hands out
// a current one. An empty token means "send no credential".
package credential
