// Package config loads the server's startup configuration from the
// environment. Every collaborator receives the parts it needs explicitly;
// nothing reads the environment after Load returns.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DevJWTSecret is the signing secret used when JWT_SECRET is unset. It is
// fine for local development and nothing else; main logs a warning.
const DevJWTSecret = "autodealer-dev-secret-change-me"

// Config contains server configuration parameters.
type Config struct {
	// LogLevel uses slog's numeric levels: -4 debug, 0 info, 4 warn, 8 error.
	LogLevel int `env:"LOG_LEVEL" envDefault:"0"`

	HTTP     HTTP     `envPrefix:"HTTP_"`
	Database Database `envPrefix:"DB_"`
	JWT      JWT      `envPrefix:"JWT_"`
	Google   Google   `envPrefix:"GOOGLE_"`
	Avatar   Avatar   `envPrefix:"AVATAR_"`
	Frontend Frontend `envPrefix:"FRONTEND_"`
}

// HTTP contains listener parameters.
type HTTP struct {
	Port int `env:"PORT" envDefault:"8080"`
}

// Database contains the Credential Store location.
type Database struct {
	Path string `env:"PATH" envDefault:"data/autodealer.db"`
}

// JWT contains token signing parameters.
type JWT struct {
	Secret string `env:"SECRET" envDefault:"autodealer-dev-secret-change-me"`
}

// Google contains the OAuth client registration. Leaving ClientID or
// ClientSecret empty disables Google login.
type Google struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL" envDefault:"http://localhost:8080/api/auth/google/callback"`
}

// Avatar contains the S3-compatible asset store parameters.
type Avatar struct {
	Endpoint      string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey     string `env:"ACCESS_KEY" envDefault:"autodealer-access-key"`
	SecretKey     string `env:"SECRET_KEY" envDefault:"autodealer-secret-key"`
	Bucket        string `env:"BUCKET_NAME" envDefault:"autodealer-assets"`
	UseSSL        bool   `env:"USE_SSL" envDefault:"false"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
}

// Frontend describes the browser application this API serves.
type Frontend struct {
	// URL is where OAuth callbacks redirect to and the allowed CORS origin.
	URL string `env:"URL" envDefault:"http://localhost:5173"`
}

// OAuthEnabled reports whether Google login can be offered.
func (c *Config) OAuthEnabled() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

// SlogLevel converts LogLevel for slog.HandlerOptions.
func (c *Config) SlogLevel() slog.Level {
	return slog.Level(c.LogLevel)
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Load reads the given .env files (default ".env") into the process
// environment, without overriding variables that are already set, and then
// parses the configuration. Missing files are not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	return NewConfig()
}
