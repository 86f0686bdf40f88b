package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from .env files and environment variables.
type Config struct {
	AppName     string `mapstructure:"app_name"`
	Env         string `mapstructure:"app_env"`
	LogLevel    string `mapstructure:"log_level"`
	HTTPAddr    string `mapstructure:"http_addr"`
	RoutePrefix string `mapstructure:"route_prefix"`

	APIKey                string        `mapstructure:"phantombuster_api_key"`
	BaseURL               string        `mapstructure:"phantombuster_base_url"`
	RequestTimeoutSeconds int64         `mapstructure:"phantombuster_timeout_seconds"`
	RequestTimeout        time.Duration `mapstructure:"-"`

	ShutdownTimeoutSeconds int64         `mapstructure:"shutdown_timeout_seconds"`
	ShutdownTimeout        time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("app_name", "phantombuster-relay")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_addr", ":8000")
	v.SetDefault("route_prefix", "/api/phantombuster")
	v.SetDefault("phantombuster_api_key", "")
	v.SetDefault("phantombuster_base_url", "https://api.phantombuster.com/api/v2")
	v.SetDefault("phantombuster_timeout_seconds", 30)
	v.SetDefault("shutdown_timeout_seconds", 5)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.RoutePrefix = "/" + strings.Trim(strings.TrimSpace(cfg.RoutePrefix), "/")

	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return nil, fmt.Errorf("invalid http_addr (must not be empty)")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("invalid phantombuster_base_url (must not be empty)")
	}

	if cfg.RequestTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid phantombuster_timeout_seconds (must be positive seconds)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second

	if cfg.ShutdownTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid shutdown_timeout_seconds (must be positive seconds)")
	}
	cfg.ShutdownTimeout = time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second

	return &cfg, nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c != nil && strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// Redacted returns a copy that is safe to log.
func (c *Config) Redacted() Config {
	if c == nil {
		return Config{}
	}
	out := *c
	if out.APIKey != "" {
		out.APIKey = "***"
	}
	return out
}
