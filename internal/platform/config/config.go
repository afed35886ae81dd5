package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv     string `env:"APP_ENV" default:"development"`
	Port       string `env:"PORT" default:"8000"`
	PublicHost string `env:"PUBLIC_HOST" default:"localhost:8000"`
	JWTAuthKey string `env:"JWT_AUTH_KEY"`
	LogLevel   string `env:"LOG_LEVEL" default:"info"`
	LogFormat  string `env:"LOG_FORMAT" default:"text"`

	FanOutCapacity         int           `env:"FANOUT_CAPACITY" default:"100"`
	FanInCapacity          int           `env:"FANIN_CAPACITY" default:"100"`
	ViewerMinInterval      time.Duration `env:"VIEWER_MIN_INTERVAL" default:"100ms"`
	ViewerMaxMessageBytes  int           `env:"VIEWER_MAX_MESSAGE_BYTES" default:"1000"`
	MalformedPayloadPolicy string        `env:"MALFORMED_PAYLOAD_POLICY" default:"close"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"100"`
	LobbyCreateRate         float64 `env:"LOBBY_CREATE_RATE" default:"1.0"`
	LobbyCreateBurst        int     `env:"LOBBY_CREATE_BURST" default:"5"`
	AllowedOrigins          string  `env:"ALLOWED_ORIGINS" default:"*"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// JWTSecret returns the decoded HS256 secret. Load has already verified
// that JWT_AUTH_KEY decodes.
func (c *Config) JWTSecret() []byte {
	secret, _ := base64.StdEncoding.DecodeString(c.JWTAuthKey)
	return secret
}

// Origins returns the comma separated ALLOWED_ORIGINS as a list.
func (c *Config) Origins() []string {
	origins := lo.Map(strings.Split(c.AllowedOrigins, ","), func(o string, _ int) string {
		return strings.TrimSpace(o)
	})
	return lo.Compact(origins)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func validate(cfg *Config) error {
	if cfg.JWTAuthKey == "" {
		return errors.New("JWT_AUTH_KEY is required")
	}
	secret, err := base64.StdEncoding.DecodeString(cfg.JWTAuthKey)
	if err != nil {
		return fmt.Errorf("JWT_AUTH_KEY must be valid base64: %w", err)
	}
	if len(secret) == 0 {
		return errors.New("JWT_AUTH_KEY must not decode to an empty secret")
	}

	positive := []struct {
		name  string
		value int
	}{
		{"FANOUT_CAPACITY", cfg.FanOutCapacity},
		{"FANIN_CAPACITY", cfg.FanInCapacity},
		{"VIEWER_MAX_MESSAGE_BYTES", cfg.ViewerMaxMessageBytes},
		{"MAX_WEBSOCKET_CONNECTIONS", cfg.MaxWebSocketConnections},
		{"MAX_CONNECTIONS_PER_IP", cfg.MaxConnectionsPerIP},
		{"LOBBY_CREATE_BURST", cfg.LobbyCreateBurst},
	}
	for _, p := range positive {
		if p.value < 1 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}

	if cfg.ViewerMinInterval <= 0 {
		return fmt.Errorf("VIEWER_MIN_INTERVAL must be positive, got %s", cfg.ViewerMinInterval)
	}
	if cfg.LobbyCreateRate <= 0 {
		return fmt.Errorf("LOBBY_CREATE_RATE must be positive, got %g", cfg.LobbyCreateRate)
	}

	switch cfg.MalformedPayloadPolicy {
	case "close", "drop":
	default:
		return fmt.Errorf("MALFORMED_PAYLOAD_POLICY must be close or drop, got %q", cfg.MalformedPayloadPolicy)
	}

	return nil
}
