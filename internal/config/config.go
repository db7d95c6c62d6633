// Package config loads the server configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/streamforge/schema-registry/internal/registry"
)

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	FileStore FileStoreConfig `yaml:"filestore"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects and configures the record store backend.
type StorageConfig struct {
	Type            string        `yaml:"type"` // memory, postgres, mysql
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// FileStoreConfig configures the serdes artifact store.
type FileStoreConfig struct {
	Directory string `yaml:"directory"`
}

// CacheConfig bounds the version cache.
type CacheConfig struct {
	Size          int `yaml:"size"`
	ExpirySeconds int `yaml:"expiry_interval"`
}

// LoggingConfig configures the slog output.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // json, text
	File       string `yaml:"file"`   // rotate to this path when set
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8081,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			Type:            "memory",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		FileStore: FileStoreConfig{
			Directory: "data/files",
		},
		Cache: CacheConfig{
			Size:          registry.DefaultCacheSize,
			ExpirySeconds: registry.DefaultCacheExpirySeconds,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load reads the YAML file at path (defaults only when path is empty),
// applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Server.Host, "REGISTRY_SERVER_HOST")
	setInt(&c.Server.Port, "REGISTRY_SERVER_PORT")
	setString(&c.Storage.Type, "REGISTRY_STORAGE_TYPE")
	setString(&c.Storage.Host, "REGISTRY_STORAGE_HOST")
	setInt(&c.Storage.Port, "REGISTRY_STORAGE_PORT")
	setString(&c.Storage.Database, "REGISTRY_STORAGE_DATABASE")
	setString(&c.Storage.Username, "REGISTRY_STORAGE_USERNAME")
	setString(&c.Storage.Password, "REGISTRY_STORAGE_PASSWORD")
	setString(&c.Storage.SSLMode, "REGISTRY_STORAGE_SSLMODE")
	setString(&c.FileStore.Directory, "REGISTRY_FILESTORE_DIRECTORY")
	setInt(&c.Cache.Size, "REGISTRY_CACHE_SIZE")
	setInt(&c.Cache.ExpirySeconds, "REGISTRY_CACHE_EXPIRY_INTERVAL")
	setString(&c.Logging.Level, "REGISTRY_LOG_LEVEL")
	setString(&c.Logging.Format, "REGISTRY_LOG_FORMAT")
	setString(&c.Logging.File, "REGISTRY_LOG_FILE")
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Storage.Type {
	case "memory":
	case "postgres", "mysql":
		if c.Storage.Host == "" || c.Storage.Database == "" {
			return fmt.Errorf("storage type %q requires host and database", c.Storage.Type)
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("invalid cache size %d", c.Cache.Size)
	}
	if c.Cache.ExpirySeconds <= 0 {
		return fmt.Errorf("invalid cache expiry interval %d", c.Cache.ExpirySeconds)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

// Options returns the cache settings as the registry's property map.
func (c *Config) Options() map[string]interface{} {
	return map[string]interface{}{
		registry.OptionCacheSize:           c.Cache.Size,
		registry.OptionCacheExpiryInterval: c.Cache.ExpirySeconds,
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
