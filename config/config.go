package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the Argus hunt service.
type Config struct {
	DataPaths struct {
		// DataDir is the base data directory (ARGUS_DATA_PATHS_DATA_DIR)
		DataDir string `mapstructure:"data_dir"`
		// SQLitePath is the metadata database file (defaults under DataDir)
		SQLitePath string `mapstructure:"sqlite_path"`
		// CatalogPath optionally overrides the built-in schema catalog
		CatalogPath string `mapstructure:"catalog_path"`
	} `mapstructure:"data_paths"`

	ClickHouse struct {
		Addr        string `mapstructure:"addr"`
		Database    string `mapstructure:"database"`
		Username    string `mapstructure:"username"`
		Password    string `mapstructure:"password"`
		MaxPoolSize int    `mapstructure:"max_pool_size"`
	} `mapstructure:"clickhouse"`

	Query struct {
		// TimeoutSeconds bounds backend execution per request
		TimeoutSeconds int `mapstructure:"timeout_seconds"`
		// HistoryLimit caps history listing page size
		HistoryLimit int `mapstructure:"history_limit"`
	} `mapstructure:"query"`

	API struct {
		Port      int    `mapstructure:"port"`
		JWTSecret string `mapstructure:"jwt_secret"`
		// RateLimitRPS/Burst apply per principal
		RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
		RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	} `mapstructure:"api"`
}

// LoadConfig reads configuration from ./config.yaml (optional) and
// ARGUS_* environment variables, applying defaults for everything else.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/argus")

	v.SetEnvPrefix("ARGUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataPaths.SQLitePath == "" {
		cfg.DataPaths.SQLitePath = cfg.DataPaths.DataDir + "/argus.db"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_paths.data_dir", "./data")
	v.SetDefault("clickhouse.addr", "localhost:9000")
	v.SetDefault("clickhouse.database", "argus")
	v.SetDefault("clickhouse.username", "default")
	v.SetDefault("clickhouse.max_pool_size", 10)
	v.SetDefault("query.timeout_seconds", 30)
	v.SetDefault("query.history_limit", 50)
	v.SetDefault("api.port", 8081)
	v.SetDefault("api.rate_limit_rps", 5.0)
	v.SetDefault("api.rate_limit_burst", 10)
}

// Validate rejects configurations that cannot serve requests.
func (c *Config) Validate() error {
	if c.ClickHouse.Addr == "" {
		return fmt.Errorf("clickhouse.addr is required")
	}
	if c.Query.TimeoutSeconds <= 0 {
		return fmt.Errorf("query.timeout_seconds must be positive, got %d", c.Query.TimeoutSeconds)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be in 1-65535, got %d", c.API.Port)
	}
	if c.API.RateLimitRPS <= 0 {
		return fmt.Errorf("api.rate_limit_rps must be positive")
	}
	return nil
}
