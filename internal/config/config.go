// Package config loads server configuration from .slither-mcp/config.json.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/trailofbits/slither-mcp/internal/inheritance"
)

// Config is the complete server configuration
type Config struct {
	Version     int    `json:"version" mapstructure:"version"`
	ProjectRoot string `json:"projectRoot" mapstructure:"projectRoot"`

	Analyzer AnalyzerConfig `json:"analyzer" mapstructure:"analyzer"`
	Cache    CacheConfig    `json:"cache" mapstructure:"cache"`
	Query    QueryConfig    `json:"query" mapstructure:"query"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
}

// AnalyzerConfig controls the slither invocation
type AnalyzerConfig struct {
	// SlitherBin overrides executable discovery; empty means search PATH
	// and common install locations
	SlitherBin string `json:"slitherBin" mapstructure:"slitherBin"`
	// ExtraArgs are appended to every slither invocation
	ExtraArgs []string `json:"extraArgs" mapstructure:"extraArgs"`
	// Detectors restricts analysis to the named detectors
	Detectors []string `json:"detectors" mapstructure:"detectors"`
	// TimeoutSeconds bounds one analysis run; 0 disables the bound
	TimeoutSeconds int `json:"timeoutSeconds" mapstructure:"timeoutSeconds"`
}

// CacheConfig controls artifact persistence
type CacheConfig struct {
	// Dir is the artifact directory, relative to the project root unless
	// absolute
	Dir string `json:"dir" mapstructure:"dir"`
	// Enabled turns artifact persistence off entirely when false
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// QueryConfig bounds query output
type QueryConfig struct {
	// MaxInheritanceDepth caps ancestor/descendant tree expansion
	MaxInheritanceDepth int `json:"maxInheritanceDepth" mapstructure:"maxInheritanceDepth"`
	// DefaultPageSize applies when a list query names no limit; 0 means
	// unpaginated
	DefaultPageSize int `json:"defaultPageSize" mapstructure:"defaultPageSize"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// ConfigDir is the per-project configuration and cache directory name
const ConfigDir = ".slither-mcp"

const currentVersion = 1

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Version:     currentVersion,
		ProjectRoot: ".",
		Analyzer: AnalyzerConfig{
			TimeoutSeconds: 600,
		},
		Cache: CacheConfig{
			Dir:     ConfigDir,
			Enabled: true,
		},
		Query: QueryConfig{
			MaxInheritanceDepth: inheritance.DefaultMaxDepth,
			DefaultPageSize:     0,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// Load reads configuration from <projectRoot>/.slither-mcp/config.json,
// falling back to defaults when the file is absent. Environment variables
// prefixed SLITHER_MCP_ override file values.
func Load(projectRoot string) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("version", defaults.Version)
	v.SetDefault("projectRoot", projectRoot)
	v.SetDefault("analyzer.timeoutSeconds", defaults.Analyzer.TimeoutSeconds)
	v.SetDefault("cache.dir", defaults.Cache.Dir)
	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("query.maxInheritanceDepth", defaults.Query.MaxInheritanceDepth)
	v.SetDefault("query.defaultPageSize", defaults.Query.DefaultPageSize)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.level", defaults.Logging.Level)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(projectRoot, ConfigDir))
	v.SetEnvPrefix("SLITHER_MCP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = projectRoot
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CacheDir resolves the artifact directory against the project root
func (c *Config) CacheDir() string {
	if filepath.IsAbs(c.Cache.Dir) {
		return c.Cache.Dir
	}
	return filepath.Join(c.ProjectRoot, c.Cache.Dir)
}

// Save writes the configuration to <projectRoot>/.slither-mcp/config.json
func (c *Config) Save(projectRoot string) error {
	dir := filepath.Join(projectRoot, ConfigDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// Validate checks invariants the rest of the server relies on
func (c *Config) Validate() error {
	if c.Version != currentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Analyzer.TimeoutSeconds < 0 {
		return &ConfigError{Field: "analyzer.timeoutSeconds", Message: "must be >= 0"}
	}
	if c.Query.MaxInheritanceDepth < 0 {
		return &ConfigError{Field: "query.maxInheritanceDepth", Message: "must be >= 0"}
	}
	if c.Query.DefaultPageSize < 0 {
		return &ConfigError{Field: "query.defaultPageSize", Message: "must be >= 0"}
	}
	return nil
}

// ConfigError names the offending field of an invalid configuration
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
