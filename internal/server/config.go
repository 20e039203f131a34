// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the roomchat service.
package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/samber/lo"

	"github.com/Tyrowin/roomchat/internal/session"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST,default=5"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
}

// Config holds the server configuration settings including security controls.
// Every field is populated from the environment; list values are separated
// by "|".
type Config struct {
	Port           string   `env:"SERVER_PORT,default=:8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize int64    `env:"MAX_MESSAGE_SIZE,default=512"`
	RateLimit      RateLimitConfig

	LogLevel string `env:"LOG_LEVEL,default=info"`

	// JWTSecret signs identity tokens. When empty an ephemeral secret is
	// generated at startup.
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=24h"`

	// Rooms are provisioned in the Lobby at startup.
	Rooms            []string `env:"ROOMS,default=general|random"`
	SubscriberBuffer int      `env:"SUBSCRIBER_BUFFER,default=64"`
	DiagnosticBuffer int      `env:"DIAGNOSTIC_BUFFER,default=16"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

var (
	configMu      sync.RWMutex
	activeConfig  Config
	activeOrigins originPolicy
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	var cfg Config
	// Only the tag defaults are read here; they are all valid literals.
	_ = env.Unmarshal(env.EnvSet{}, &cfg)
	return cfg
}

func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = def.Port
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}

	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = def.TokenTTL
	}

	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = def.SubscriberBuffer
	}

	if cfg.DiagnosticBuffer <= 0 {
		cfg.DiagnosticBuffer = def.DiagnosticBuffer
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	cfg.Rooms = lo.Uniq(lo.Compact(lo.Map(cfg.Rooms, func(id string, _ int) string {
		return strings.TrimSpace(id)
	})))

	policy, origins := compileOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = origins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	activeOrigins = policy

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		sanitizeConfig(defaultConfig())
		return
	}

	sanitized := *cfg
	sanitized.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	sanitized.Rooms = append([]string(nil), cfg.Rooms...)
	sanitizeConfig(sanitized)
}

// CurrentConfig returns a copy of the configuration in effect.
func CurrentConfig() Config {
	return currentConfig()
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	cfg.Rooms = append([]string(nil), cfg.Rooms...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Unset variables fall back to their defaults; malformed values are an error.
func NewConfigFromEnv() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("load config from environment: %w", err)
	}
	return &cfg, nil
}

// NewConfigFromEnvSet is NewConfigFromEnv over an explicit variable set.
func NewConfigFromEnvSet(es env.EnvSet) (*Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// SessionConfig derives the per-connection coordinator settings.
func (c Config) SessionConfig() session.Config {
	cfg := session.DefaultConfig()
	if c.DiagnosticBuffer > 0 {
		cfg.DiagnosticBuffer = c.DiagnosticBuffer
	}
	return cfg
}
