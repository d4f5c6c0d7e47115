// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const envProduction = "production"

// Config is the full environment surface of the service. Expiry values use
// Go duration syntax (the 7-day refresh default is written as 168h).
type Config struct {
	Env  string `env:"ENV" env-default:"development"`
	Port string `env:"PORT" env-default:"8080"`

	JWTSecret          string        `env:"JWT_SECRET" env-required:"true"`
	JWTRefreshSecret   string        `env:"JWT_REFRESH_SECRET" env-required:"true"`
	AccessTokenExpiry  time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRY" env-default:"15m"`
	RefreshTokenExpiry time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRY" env-default:"168h"`

	DatabaseURL       string `env:"DATABASE_URL"`
	DatabaseAdminURL  string `env:"DATABASE_ADMIN_URL"`
	DatabaseTenantURL string `env:"DATABASE_TENANT_URL"` // contains the {tenant_id} placeholder

	// CurrentTenantID is the ambient tenant used only while TenantDevFallback
	// is true. The fallback is a development escape hatch and ships disabled.
	CurrentTenantID   string `env:"CURRENT_TENANT_ID" env-default:"default_tenant"`
	TenantDevFallback bool   `env:"TENANT_DEV_FALLBACK" env-default:"false"`

	// PublicPaths are exact-or-prefix matches that bypass the page gate.
	PublicPaths []string `env:"PUBLIC_PATHS" env-separator:"," env-default:"/auth/login,/auth/register"`
	LoginPath   string   `env:"LOGIN_PATH" env-default:"/auth/login"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.AdminDatabaseURL() == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_ADMIN_URL or DATABASE_URL is required")
	}
	return &cfg, nil
}

// MustLoad is Load that panics on failure. Meant for the composition root.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Address is the HTTP listen address derived from Port.
func (c *Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// AdminDatabaseURL prefers the dedicated admin URL and falls back to the
// general database URL.
func (c *Config) AdminDatabaseURL() string {
	if c.DatabaseAdminURL != "" {
		return c.DatabaseAdminURL
	}
	return c.DatabaseURL
}

// IsProduction reports whether the service runs with production hardening
// (secure cookies, JSON logs).
func (c *Config) IsProduction() bool {
	return c.Env == envProduction
}
