// Package config loads server and CLI settings from defaults, an optional config file
// and BIODATA_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	API    APIConfig    `mapstructure:"api"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Render RenderConfig `mapstructure:"render"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// SiteOrigin is the origin the editor UI is served from. Built-in assets resolve
	// against it and it decides which images are same-origin.
	SiteOrigin string        `mapstructure:"site_origin"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// APIConfig points at the backend REST API.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RedisConfig enables cross-instance media_updated_at signals.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// RenderConfig tunes the compositor.
type RenderConfig struct {
	ProbeDelay time.Duration `mapstructure:"probe_delay"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration. path may be empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("BIODATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	cfg.Server.SiteOrigin = strings.TrimRight(cfg.Server.SiteOrigin, "/")

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.site_origin", "http://localhost:5173")
	v.SetDefault("server.session_ttl", 30*time.Minute)
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "media_updated_at")
	v.SetDefault("render.probe_delay", 80*time.Millisecond)
	v.SetDefault("log.level", "info")
}

// bindEnv makes every key visible to Unmarshal under its BIODATA_ name.
func bindEnv(v *viper.Viper) error {
	for _, key := range v.AllKeys() {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

func validate(cfg Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server port must be between 1 and 65535")
	}
	if cfg.Server.SessionTTL <= 0 {
		return errors.New("server session ttl must be positive")
	}
	if err := checkURL("server site origin", cfg.Server.SiteOrigin); err != nil {
		return err
	}
	if err := checkURL("api base url", cfg.API.BaseURL); err != nil {
		return err
	}
	if cfg.API.Timeout <= 0 {
		return errors.New("api timeout must be positive")
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return errors.New("redis addr is required when redis is enabled")
	}
	if cfg.Redis.Channel == "" {
		return errors.New("redis channel is required")
	}
	if cfg.Render.ProbeDelay < 0 {
		return errors.New("render probe delay must not be negative")
	}
	return nil
}

func checkURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s %q must be an absolute URL", name, raw)
	}
	return nil
}
