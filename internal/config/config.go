// Package config loads application configuration from an optional
// config.yml and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	minSecretLen           = 16
	minProductionSecretLen = 32
)

// Config holds application configuration values loaded from file or
// environment variables.
type Config struct {
	Port               int           `mapstructure:"PORT"`
	DBPath             string        `mapstructure:"DB_PATH"`
	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	TokenTTL           time.Duration `mapstructure:"TOKEN_TTL"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	PostCacheTTL       time.Duration `mapstructure:"POST_CACHE_TTL"`
	GitHubClientID     string        `mapstructure:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string        `mapstructure:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string        `mapstructure:"GITHUB_CALLBACK_URL"`
	Env                string        `mapstructure:"APP_ENV"`
	CookieSecure       bool          `mapstructure:"COOKIE_SECURE"`
}

// LoadConfig reads config.yml from the working directory (or its parents)
// if present, applies environment overrides and defaults, and validates the
// result. A missing config file is not an error.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	if len(paths) == 0 {
		paths = []string{".", "..", "../.."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundErr) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))

	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/api/auth/github/callback", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Every key needs a default, even an empty one, or AutomaticEnv values are
// invisible to Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("DB_PATH", "data/catgram.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("POST_CACHE_TTL", "5m")
	v.SetDefault("GITHUB_CLIENT_ID", "")
	v.SetDefault("GITHUB_CLIENT_SECRET", "")
	v.SetDefault("GITHUB_CALLBACK_URL", "")
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("COOKIE_SECURE", false)
}

// Validate ensures that required configuration values are present and meet
// security standards.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < minSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLen)
	}
	if c.IsProduction() && len(c.JWTSecret) < minProductionSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in production", minProductionSecretLen)
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.PostCacheTTL < 0 {
		return errors.New("POST_CACHE_TTL must not be negative")
	}
	if (c.GitHubClientID == "") != (c.GitHubClientSecret == "") {
		return errors.New("GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET must be set together")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction || c.Env == "prod"
}

// GitHubEnabled reports whether GitHub sign-in routes should be mounted.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}
