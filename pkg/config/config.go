// Package config provides configuration management for the hprof tools.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Parser   ParserConfig   `mapstructure:"parser"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
}

// ParserConfig holds heap dump decoder configuration.
type ParserConfig struct {
	ResolveCacheSize int    `mapstructure:"resolve_cache_size"` // 0 disables the cache
	MaxBodySize      uint32 `mapstructure:"max_body_size"`      // 0 means unlimited
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Type                   string `mapstructure:"type"` // sqlite, postgres or mysql
	Path                   string `mapstructure:"path"` // sqlite file
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	Database               string `mapstructure:"database"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	MaxConns               int    `mapstructure:"max_conns"`
	BatchSize              int    `mapstructure:"batch_size"`
	StorePrimitiveElements bool   `mapstructure:"store_primitive_elements"`
}

// StorageConfig holds heap dump source configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`     // e.g., "myqcloud.com"
	Scheme    string `mapstructure:"scheme"`     // e.g., "https" or "http"
	LocalPath string `mapstructure:"local_path"` // for local storage
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
}

// Load reads configuration from the specified file path.
func Load(configPath string) (*Config, error) {
	v := newViper()

	// Determine config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/hprof")
	}

	// Read config file
	// A missing file in the search path silently falls back to defaults.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Config file %s not found, using defaults\n", configPath)
		}
	}

	return unmarshal(v)
}

// LoadFromReader loads configuration from raw content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return unmarshal(v)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := unmarshal(newViper())
	if err != nil {
		// Defaults always validate.
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	// Allow environment variables to override config, e.g. HPROF_DATABASE_TYPE
	v.SetEnvPrefix("hprof")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Parser defaults
	v.SetDefault("parser.resolve_cache_size", 4096)
	v.SetDefault("parser.max_body_size", 0)

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "heapdump.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.batch_size", 500)
	v.SetDefault("database.store_primitive_elements", false)

	// Storage defaults
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", ".")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Parser.ResolveCacheSize < 0 {
		return fmt.Errorf("parser resolve cache size must not be negative")
	}

	switch c.Database.Type {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case "postgres", "mysql":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Database.BatchSize < 1 {
		return fmt.Errorf("database batch size must be at least 1")
	}

	switch c.Storage.Type {
	case "local", "cos":
		// Credentials are checked by the storage package
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	return nil
}
