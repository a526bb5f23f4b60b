package config

import (
	"fmt"
	"slices"
)

// DefaultName is the service name used for file lookup and telemetry.
const DefaultName = "querykit"

var environments = []string{"development", "staging", "production"}

// BaseConfig identifies the running client.
type BaseConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	Version     string `yaml:"version" mapstructure:"version"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`
}

// ApplyDefaults applies default values to base configuration.
func (c *BaseConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
}

// Validate validates base configuration.
func (c *BaseConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("base.name is required")
	}
	if !slices.Contains(environments, c.Environment) {
		return fmt.Errorf("base.environment must be one of %v (got: %s)", environments, c.Environment)
	}
	return nil
}
