// Package component defines lifecycle management for long-lived engines and
// adapters. The CLI registers the HTTP adapter and stream engines with a
// Registry, starts them in order and stops them in reverse on shutdown.
package component
