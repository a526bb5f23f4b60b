package config

import (
	"fmt"
	"time"

	"github.com/kbukum/querykit/credential"
	"github.com/kbukum/querykit/httpclient"
	"github.com/kbukum/querykit/logger"
	"github.com/kbukum/querykit/observability"
	"github.com/kbukum/querykit/resilience"
	"github.com/kbukum/querykit/stream"
	"github.com/kbukum/querykit/validation"
)

const (
	defaultReconnectCount = 3
	defaultReconnectDelay = 2 * time.Second
	defaultMetricsAddr    = ":9464"
)

// Config is the complete querykit configuration.
type Config struct {
	Base          BaseConfig          `yaml:"base" mapstructure:"base"`
	Logger        logger.Config       `yaml:"logger" mapstructure:"logger"`
	Client        ClientConfig        `yaml:"client" mapstructure:"client"`
	Stream        stream.Config       `yaml:"stream" mapstructure:"stream"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// ClientConfig configures the HTTP adapter and the request engine defaults.
type ClientConfig struct {
	httpclient.Config `yaml:",inline" mapstructure:",squash"`

	// Retry is the default policy for requests. Zero means one attempt.
	Retry resilience.RetryPolicy `yaml:"retry" mapstructure:"retry"`

	// Credential supplies the bearer token attached per attempt.
	Credential credential.Config `yaml:"credential" mapstructure:"credential"`
}

// ObservabilityConfig enables tracing and metrics exporters.
type ObservabilityConfig struct {
	Tracing    TracingConfig    `yaml:"tracing" mapstructure:"tracing"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Prometheus PrometheusConfig `yaml:"prometheus" mapstructure:"prometheus"`
}

// TracingConfig enables the OTLP trace exporter.
type TracingConfig struct {
	Enabled                    bool `yaml:"enabled" mapstructure:"enabled"`
	observability.TracerConfig `yaml:",inline" mapstructure:",squash"`
}

// MetricsConfig enables the OTLP metric exporter.
type MetricsConfig struct {
	Enabled                   bool `yaml:"enabled" mapstructure:"enabled"`
	observability.MeterConfig `yaml:",inline" mapstructure:",squash"`
}

// PrometheusConfig serves a /metrics endpoint.
type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

// Load reads, defaults and validates a Config.
func Load(opts ...LoaderOption) (*Config, error) {
	var cfg Config
	if err := LoadConfig(DefaultName, &cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills in zero-value fields across all sections.
func (c *Config) ApplyDefaults() {
	c.Base.ApplyDefaults()
	c.Logger.ApplyDefaults()
	c.Client.ApplyDefaults()

	if c.Stream.Reconnect.Count == 0 && c.Stream.Reconnect.Delay == 0 {
		c.Stream.Reconnect = resilience.FixedDelay(defaultReconnectCount, defaultReconnectDelay)
	}

	tracing := &c.Observability.Tracing.TracerConfig
	if tracing.Endpoint == "" {
		*tracing = observability.DefaultTracerConfig(c.Base.Name)
	}
	tracing.ServiceVersion, tracing.Environment = c.Base.Version, c.Base.Environment

	metrics := &c.Observability.Metrics.MeterConfig
	if metrics.Endpoint == "" {
		*metrics = observability.DefaultMeterConfig(c.Base.Name)
	}
	metrics.ServiceVersion, metrics.Environment = c.Base.Version, c.Base.Environment

	if c.Observability.Prometheus.Addr == "" {
		c.Observability.Prometheus.Addr = defaultMetricsAddr
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Base.Validate(); err != nil {
		return err
	}
	if err := c.Logger.Validate(); err != nil {
		return err
	}
	if err := c.Client.Validate(); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if _, err := c.Client.Credential.Supplier(); err != nil {
		return fmt.Errorf("client.credential: %w", err)
	}
	return validation.Validate(c)
}
