// Package config defines the application configuration, its defaults and
// validation. Values come from a YAML file and KGML_* environment
// variables via viper.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Graph backend names accepted by graph.backend.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Graph    GraphConfig    `mapstructure:"graph" yaml:"graph"`
	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// GraphConfig selects and configures the persistence backend.
type GraphConfig struct {
	Backend  string         `mapstructure:"backend" yaml:"backend"`
	FilePath string         `mapstructure:"file_path" yaml:"file_path"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// PostgresConfig holds the database connection details.
type PostgresConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// ExecutorConfig tunes the program executor's safety limits.
type ExecutorConfig struct {
	MaxEvalDepth      int `mapstructure:"max_eval_depth" yaml:"max_eval_depth"`
	MaxLoopIterations int `mapstructure:"max_loop_iterations" yaml:"max_loop_iterations"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "kgml")
	v.SetDefault("logger.log_file", "kgml.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Graph --
	v.SetDefault("graph.backend", BackendMemory)
	v.SetDefault("graph.file_path", "graph.kgml")

	// -- Executor --
	v.SetDefault("executor.max_eval_depth", 10)
	v.SetDefault("executor.max_loop_iterations", 100)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("graph.postgres.url", "KGML_POSTGRES_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Graph.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Graph.FilePath == "" {
			return fmt.Errorf("graph.file_path is required when graph.backend is %q", BackendFile)
		}
	case BackendPostgres:
		if c.Graph.Postgres.URL == "" {
			return fmt.Errorf("graph.postgres.url is required when graph.backend is %q. Set KGML_POSTGRES_URL", BackendPostgres)
		}
	default:
		return fmt.Errorf("graph.backend must be one of %q, %q, %q", BackendMemory, BackendFile, BackendPostgres)
	}
	if c.Executor.MaxEvalDepth <= 0 {
		return fmt.Errorf("executor.max_eval_depth must be a positive integer")
	}
	if c.Executor.MaxLoopIterations <= 0 {
		return fmt.Errorf("executor.max_loop_iterations must be a positive integer")
	}
	return nil
}
