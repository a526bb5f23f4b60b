// Package query executes single-flight HTTP requests and publishes their
// outcome as state.
//
// An Engine is bound to a static Descriptor. Each Execute merges a per-call
// Override over it, supersedes any call still in flight and runs up to
// Retry.Count+1 attempts, retrying only on 5xx responses. Results are
// classified by status and content type:
//
//	2xx + ResponseKind Binary     -> Binary{Data, Filename, ContentType}
//	2xx + ResponseKind Text       -> string
//	2xx + JSON content (or JSON)  -> T decoded from the body
//	2xx otherwise                 -> PlainText{Status, Message}
//	non-2xx + JSON content        -> problem.Details from the body
//	non-2xx otherwise             -> problem "Request failed" with the raw text
//
// Every outcome is published to subscribers as a state.State[T]. Only the
// latest call ever publishes; a superseded or aborted call returns an error
// matching context.Canceled and leaves state alone.
package query
