package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Log         LogConfig         `mapstructure:"log"`
	HealthCheck HealthCheckConfig `mapstructure:"healthcheck"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig selects and tunes the catalog store
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // "memory" or "sqlite"
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// CacheConfig holds category schema cache configuration
type CacheConfig struct {
	TTL  time.Duration `mapstructure:"ttl"`
	Size int           `mapstructure:"size"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // empty disables the file writer
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// HealthCheckConfig bounds batch resolution runs
type HealthCheckConfig struct {
	Workers int     `mapstructure:"workers"`
	Rate    float64 `mapstructure:"rate"` // resolutions per second, 0 = unlimited
	Burst   int     `mapstructure:"burst"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/analogpro/")

	// ANALOGPRO_DATABASE_PATH -> database.path
	v.SetEnvPrefix("ANALOGPRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads ./.env into the environment without overriding
// variables that are already set
func loadEnvFile() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("error loading .env: %w", err)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "analogpro.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.busy_timeout", "5s")

	// Cache defaults
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.size", 1024)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	// Health check defaults
	v.SetDefault("healthcheck.workers", 4)
	v.SetDefault("healthcheck.rate", 0)
	v.SetDefault("healthcheck.burst", 1)
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Database.Driver {
	case "memory":
	case "sqlite":
		if config.Database.Path == "" {
			return fmt.Errorf("database path is required for the sqlite driver (set ANALOGPRO_DATABASE_PATH)")
		}
	default:
		return fmt.Errorf("database driver must be 'memory' or 'sqlite', got: %s", config.Database.Driver)
	}

	if config.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be positive, got: %d", config.Cache.Size)
	}
	if config.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got: %s", config.Cache.TTL)
	}

	if config.HealthCheck.Workers <= 0 {
		return fmt.Errorf("healthcheck workers must be positive, got: %d", config.HealthCheck.Workers)
	}
	if config.HealthCheck.Rate < 0 {
		return fmt.Errorf("healthcheck rate must not be negative, got: %g", config.HealthCheck.Rate)
	}

	return nil
}
