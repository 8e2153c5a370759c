// Package config loads the process configuration once at start-up.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// Config holds every setting the service reads from the environment.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Port int    `env:"PORT" envDefault:"8080"`

	// Database
	DBDriver        string `env:"DB_DRIVER" envDefault:"postgres"`
	DatabaseURL     string `env:"DATABASE_URL,required"`
	DBMaxOpenConns  int    `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns  int    `env:"DB_MAX_IDLE_CONNS" envDefault:"2"`
	Migrate         bool   `env:"DB_MIGRATE" envDefault:"true"`
	SlowQueryMillis int    `env:"DB_SLOW_QUERY_MS" envDefault:"200"`

	// Sessions
	AuthSecret          string        `env:"AUTH_SECRET"`
	TrustedIssuerSecret string        `env:"AUTH_TRUSTED_ISSUER_SECRET"`
	SessionMaxAge       time.Duration `env:"SESSION_MAX_AGE" envDefault:"720h"`
	SessionUpdateAge    time.Duration `env:"SESSION_UPDATE_AGE" envDefault:"24h"`
	SessionCookie       string        `env:"SESSION_COOKIE_NAME" envDefault:"naskah.session-token"`
	SeedEmail           string        `env:"AUTH_SEED_EMAIL"`
	SeedPassword        string        `env:"AUTH_SEED_PASSWORD"`

	// Revocation list; in-memory when empty
	RedisURL          string        `env:"REDIS_URL"`
	RedisPoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	RedisMinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	RedisRetries      int           `env:"REDIS_CONNECT_RETRIES" envDefault:"3"`
	RedisRetryDelay   time.Duration `env:"REDIS_RETRY_DELAY" envDefault:"1s"`

	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS"`

	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load reads an optional .env file and parses the environment into a Config.
// A missing .env file is reported through the returned flag, not as an error.
func Load(files ...string) (*Config, bool, error) {
	dotenv := godotenv.Load(files...) == nil

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, dotenv, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, dotenv, err
	}
	return cfg, dotenv, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvTest, EnvProduction:
	default:
		return fmt.Errorf("invalid APP_ENV %q: must be development, test or production", c.Env)
	}
	switch c.DBDriver {
	case "postgres", "pgx", "sqlite":
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: must be postgres, pgx or sqlite", c.DBDriver)
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool  { return c.Env == EnvProduction }
func (c *Config) IsDevelopment() bool { return c.Env == EnvDevelopment }
func (c *Config) IsTest() bool        { return c.Env == EnvTest }

// AllowedOrigins splits CORS_ALLOWED_ORIGINS into trimmed, non-empty entries.
func (c *Config) AllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}
	var out []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
