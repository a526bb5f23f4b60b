package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/querykit/logger"
)

// EnvPrefix marks environment variables that map onto config keys.
const EnvPrefix = "QUERYKIT_"

// FileSystem abstracts file lookups for testing.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem on the local disk.
type RealFileSystem struct{}

func (RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Resolver finds config and env files.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles returns explicit paths when given, otherwise the first match
// in the search paths for name.
func (r *Resolver) ResolveFiles(name string, opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{ConfigFile: opts.ConfigFile, EnvFile: opts.EnvFile}
	if resolved.ConfigFile == "" {
		resolved.ConfigFile = r.first(configSearchPaths(name))
	}
	if resolved.EnvFile == "" {
		resolved.EnvFile = r.first(envSearchPaths(name))
	}
	return resolved
}

func (r *Resolver) first(paths []string) string {
	for _, p := range paths {
		if r.FileSystem.Exists(p) {
			return p
		}
	}
	return ""
}

func configSearchPaths(name string) []string {
	paths := []string{
		fmt.Sprintf("./%s.yml", name),
		fmt.Sprintf("./%s.yaml", name),
		fmt.Sprintf("./config/%s.yml", name),
		"./config.yml",
	}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, fmt.Sprintf("%s/%s/config.yml", dir, name))
	}
	return paths
}

func envSearchPaths(name string) []string {
	return []string{
		".env.local",
		".env",
		fmt.Sprintf("./config/%s.env", name),
	}
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// LoadConfig reads the resolved files and environment into cfg. A missing
// or unreadable file is logged and skipped.
func LoadConfig(name string, cfg any, opts ...LoaderOption) error {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = RealFileSystem{}
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(name, lc)
	log := logger.WithComponent("config")

	v := viper.New()
	if files.ConfigFile != "" && lc.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			log.Warn("failed to read config file", logger.Fields("file", files.ConfigFile, logger.FieldError, err.Error()))
		}
	}

	// .env values never override variables already set in the process.
	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			log.Warn("failed to load env file", logger.Fields("file", files.EnvFile, logger.FieldError, err.Error()))
		}
	}
	bindEnv(v, os.Environ())

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("config: unmarshal %s: %w", name, err)
	}
	return nil
}

// bindEnv sets every QUERYKIT_* variable under each key it may denote.
func bindEnv(v *viper.Viper, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		for _, variant := range envKeyVariants(strings.TrimPrefix(key, EnvPrefix)) {
			v.Set(variant, value)
		}
	}
}

// envKeyVariants maps an env key to the nested config keys it may denote,
// since underscores separate both nesting levels and words:
//
//	CLIENT_BASE_URL -> client_base_url, client.base.url, client.base_url, client_base.url
func envKeyVariants(envKey string) []string {
	lower := strings.ToLower(envKey)
	parts := strings.Split(lower, "_")
	if len(parts) <= 1 {
		return []string{lower}
	}

	variants := []string{lower, strings.Join(parts, ".")}
	for i := 1; i < len(parts); i++ {
		variants = append(variants, strings.Join(parts[:i], ".")+"."+strings.Join(parts[i:], "_"))
		variants = append(variants, strings.Join(parts[:i], "_")+"."+strings.Join(parts[i:], "."))
	}
	// Two-level keys whose middle part contains underscores:
	// STREAM_RECONNECT_MAX_DELAY -> stream.reconnect.max_delay.
	for i := 1; i < len(parts)-1; i++ {
		for j := i + 1; j < len(parts); j++ {
			variants = append(variants, strings.Join([]string{
				strings.Join(parts[:i], "_"),
				strings.Join(parts[i:j], "_"),
				strings.Join(parts[j:], "_"),
			}, "."))
		}
	}
	return dedupe(variants)
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
