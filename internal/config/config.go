package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type LogConfig struct {
	Level             string `env:"LOG_LEVEL" envDefault:"info"`
	Encoding          string `env:"LOG_ENCODING" envDefault:"json"`
	Development       bool   `env:"LOG_DEVELOPMENT"`
	DisableCaller     bool   `env:"LOG_DISABLE_CALLER"`
	DisableStacktrace bool   `env:"LOG_DISABLE_STACKTRACE"`
	Sampling          bool   `env:"LOG_SAMPLING"`
}

type Config struct {
	// Discord Bot
	DiscordToken string `env:"DISCORD_TOKEN"`

	// Discord OAuth2
	DiscordClientID     string `env:"DISCORD_CLIENT_ID"`
	DiscordClientSecret string `env:"DISCORD_CLIENT_SECRET"`
	DiscordRedirectURI  string `env:"DISCORD_REDIRECT_URI" envDefault:"http://localhost:3000/api/auth/callback"`

	// Storage
	Storage     string `env:"STORAGE" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Web Server
	APIEnabled   bool   `env:"API_ENABLED" envDefault:"true"`
	WebBind      string `env:"WEB_BIND" envDefault:"0.0.0.0:3000"`
	WebUIBaseURL string

	// Session
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-only-change-me"`

	// Settlement
	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"72h"`
	KeepSettledSessions bool          `env:"KEEP_SETTLED_SESSIONS" envDefault:"true"`
	SweepSchedule       string        `env:"SWEEP_SCHEDULE" envDefault:"0 */15 * * * *"`

	Log LogConfig
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.WebUIBaseURL = extractBaseURL(cfg.DiscordRedirectURI)

	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}
	switch cfg.Storage {
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case StorageMemory:
	default:
		return nil, fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, cfg.Storage)
	}
	if cfg.APIEnabled {
		if cfg.DiscordClientID == "" {
			return nil, fmt.Errorf("DISCORD_CLIENT_ID is required")
		}
		if cfg.DiscordClientSecret == "" {
			return nil, fmt.Errorf("DISCORD_CLIENT_SECRET is required")
		}
	}
	if cfg.SessionTTL < 0 {
		return nil, fmt.Errorf("SESSION_TTL must not be negative")
	}

	return cfg, nil
}

func extractBaseURL(redirectURI string) string {
	// e.g., "http://localhost:3000/api/auth/callback" -> "http://localhost:3000"
	parsed, err := url.Parse(redirectURI)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "http://localhost:3000"
	}

	return fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
}
