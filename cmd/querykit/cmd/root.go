// Package cmd provides the CLI commands for querykit.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/querykit/config"
	"github.com/kbukum/querykit/logger"
)

var (
	cfgFile     string
	envFile     string
	metricsAddr string
	logLevel    string
	baseURL     string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "querykit",
	Short: "querykit - resilient HTTP queries and event streams",
	Long: `querykit executes requests against an HTTP API with single-flight
cancellation and bounded retry of 5xx responses, and keeps Server-Sent
Events streams open with automatic reconnection.

Configuration:
  Config is loaded from querykit.yml in the current directory, ./config/,
  or the user config directory. A .env file is loaded when present.

  Environment variables override config values with the QUERYKIT_ prefix.
  Example: QUERYKIT_CLIENT_BASE_URL=https://api.example.com

Commands:
  fetch       Execute one request and print the result
  watch       Stream events and print each published state
  version     Print version information`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./querykit.yml)")
	flags.StringVar(&envFile, "env-file", "", "env file (default: ./.env)")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus /metrics on this address")
	flags.StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&baseURL, "base-url", "", "base URL prepended to request paths")
}

func loadConfig(_ *cobra.Command, _ []string) error {
	var opts []config.LoaderOption
	if cfgFile != "" {
		opts = append(opts, config.WithConfigFile(cfgFile))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}
	loaded, err := config.Load(opts...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if logLevel != "" {
		loaded.Logger.Level = logLevel
	}
	if baseURL != "" {
		loaded.Client.BaseURL = baseURL
		loaded.Stream.BaseURL = baseURL
	}
	if metricsAddr != "" {
		loaded.Observability.Prometheus.Enabled = true
		loaded.Observability.Prometheus.Addr = metricsAddr
	}
	if err := loaded.Logger.Validate(); err != nil {
		return err
	}

	logger.Init(loaded.Logger)
	logger.RegisterDefaults("fetch", "watch", "httpclient")
	cfg = loaded
	return nil
}
