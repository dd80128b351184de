// Package config loads artic-table settings from defaults, an optional TOML
// file and ARTIC_TABLE_* environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/artic-table/pkg/artwork"
	"github.com/Sternrassler/artic-table/pkg/client"
	"github.com/Sternrassler/artic-table/pkg/logging"
	"github.com/Sternrassler/artic-table/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ARTIC_TABLE_API_BASE_URL.
const EnvPrefix = "ARTIC_TABLE"

// Config holds application configuration.
type Config struct {
	API    APIConfig    `mapstructure:"api"`
	Table  TableConfig  `mapstructure:"table"`
	Bulk   BulkConfig   `mapstructure:"bulk"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`
}

// APIConfig holds upstream settings.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// TableConfig holds display settings.
type TableConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// BulkConfig holds bulk selection settings.
type BulkConfig struct {
	PageTimeout time.Duration `mapstructure:"page_timeout"`
}

// RedisConfig holds the optional rate limit store. Empty Addr disables it.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	File   string `mapstructure:"file"`
}

// ServerConfig holds table-server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Path returns the config file location: ARTIC_TABLE_CONFIG if set,
// otherwise ~/.config/artic-table/config.toml.
func Path() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "artic-table", "config.toml")
}

// Load reads configuration from file and env. A missing config file is not
// an error; a malformed one is.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("api.base_url", client.DefaultBaseURL)
	v.SetDefault("api.user_agent", "artic-table/1.0")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("table.page_size", artwork.DefaultPageSize)
	v.SetDefault("bulk.page_timeout", 15*time.Second)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", string(logging.LevelInfo))
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", "")
	v.SetDefault("server.addr", ":8080")

	v.SetConfigType("toml")
	v.SetConfigFile(Path())

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.API.UserAgent == "" {
		return errors.New("api.user_agent is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive (got %s)", c.API.Timeout)
	}
	if c.Table.PageSize <= 0 {
		return fmt.Errorf("table.page_size must be positive (got %d)", c.Table.PageSize)
	}
	if c.Bulk.PageTimeout <= 0 {
		return fmt.Errorf("bulk.page_timeout must be positive (got %s)", c.Bulk.PageTimeout)
	}
	if !logging.ValidLevel(c.Log.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// ClientConfig maps the API section onto a client configuration. Redis is
// left for the caller to attach.
func (c Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.API.UserAgent)
	cfg.BaseURL = c.API.BaseURL
	cfg.Timeout = c.API.Timeout
	return cfg
}

// PaginationConfig maps the table and bulk sections.
func (c Config) PaginationConfig() pagination.Config {
	return pagination.Config{
		PageSize:    c.Table.PageSize,
		PageTimeout: c.Bulk.PageTimeout,
	}
}

// LoggingConfig maps the log section.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	cfg.File = c.Log.File
	return cfg
}

// OpenRedis connects to the configured Redis and pings it. An empty address
// returns a nil client, which disables shared rate limit tracking.
func OpenRedis(ctx context.Context, rc RedisConfig) (*redis.Client, error) {
	if rc.Addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", rc.Addr, err)
	}
	return rdb, nil
}
