// Package config loads querykit settings from a YAML file, a .env file and
// QUERYKIT_* environment variables.
//
// # Usage
//
//	cfg, err := config.Load(config.WithConfigFile("querykit.yml"))
//
// Environment variables override file values. QUERYKIT_CLIENT_BASE_URL sets
// client.base_url, QUERYKIT_STREAM_RECONNECT_COUNT sets
// stream.reconnect.count, and so on.
package config
