package server

import (
	"reflect"
	"testing"
	"time"

	env "github.com/Netflix/go-env"
)

// TestNewConfigDefaults verifies the tag defaults.
func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.Port != ":8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.MaxMessageSize != 512 {
		t.Errorf("MaxMessageSize = %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 5 || cfg.RateLimit.RefillInterval != time.Second {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"http://localhost:8080"}) {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if !reflect.DeepEqual(cfg.Rooms, []string{"general", "random"}) {
		t.Errorf("Rooms = %v", cfg.Rooms)
	}
	if cfg.TokenTTL != 24*time.Hour || cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("TokenTTL = %s, ShutdownTimeout = %s", cfg.TokenTTL, cfg.ShutdownTimeout)
	}
	if cfg.SubscriberBuffer != 64 || cfg.DiagnosticBuffer != 16 {
		t.Errorf("buffers = %d/%d", cfg.SubscriberBuffer, cfg.DiagnosticBuffer)
	}
	if cfg.LogLevel != "info" || cfg.JWTSecret != "" {
		t.Errorf("LogLevel = %q, JWTSecret = %q", cfg.LogLevel, cfg.JWTSecret)
	}
}

// TestNewConfigFromEnvSet verifies overrides, including list separators and
// durations.
func TestNewConfigFromEnvSet(t *testing.T) {
	cfg, err := NewConfigFromEnvSet(env.EnvSet{
		"SERVER_PORT":                ":9090",
		"ALLOWED_ORIGINS":            "https://a.example|https://b.example",
		"MAX_MESSAGE_SIZE":           "1024",
		"RATE_LIMIT_BURST":           "10",
		"RATE_LIMIT_REFILL_INTERVAL": "2s",
		"ROOMS":                      "lobby|ops",
		"DIAGNOSTIC_BUFFER":          "4",
	})
	if err != nil {
		t.Fatalf("NewConfigFromEnvSet: %v", err)
	}

	if cfg.Port != ":9090" || cfg.MaxMessageSize != 1024 {
		t.Errorf("Port = %q, MaxMessageSize = %d", cfg.Port, cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 10 || cfg.RateLimit.RefillInterval != 2*time.Second {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if !reflect.DeepEqual(cfg.Rooms, []string{"lobby", "ops"}) {
		t.Errorf("Rooms = %v", cfg.Rooms)
	}
	if got := cfg.SessionConfig().DiagnosticBuffer; got != 4 {
		t.Errorf("SessionConfig().DiagnosticBuffer = %d", got)
	}
}

// TestNewConfigFromEnvSetInvalid verifies malformed values are rejected.
func TestNewConfigFromEnvSetInvalid(t *testing.T) {
	tests := map[string]string{
		"MAX_MESSAGE_SIZE":           "big",
		"RATE_LIMIT_REFILL_INTERVAL": "soon",
		"TOKEN_TTL":                  "forever",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			if _, err := NewConfigFromEnvSet(env.EnvSet{key: value}); err == nil {
				t.Errorf("expected error for %s=%s", key, value)
			}
		})
	}
}

// TestSetConfigSanitizes verifies zero values fall back to defaults and lists
// are cleaned up.
func TestSetConfigSanitizes(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	SetConfig(&Config{
		AllowedOrigins: []string{" HTTPS://Chat.Example ", "not a url", "*"},
		Rooms:          []string{" general ", "", "general", "ops"},
	})
	cfg := currentConfig()

	if cfg.Port != ":8080" || cfg.MaxMessageSize != 512 {
		t.Errorf("Port = %q, MaxMessageSize = %d", cfg.Port, cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 5 || cfg.RateLimit.RefillInterval != time.Second {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"https://chat.example"}) {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if !reflect.DeepEqual(cfg.Rooms, []string{"general", "ops"}) {
		t.Errorf("Rooms = %v", cfg.Rooms)
	}
	if !currentOriginPolicy().allowAll {
		t.Error("wildcard origin should allow all origins")
	}
}

// TestCurrentConfigReturnsCopy verifies callers cannot mutate the active config.
func TestCurrentConfigReturnsCopy(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(&Config{AllowedOrigins: []string{"http://a.example"}})

	cfg := CurrentConfig()
	cfg.AllowedOrigins[0] = "http://mutated.example"

	if got := CurrentConfig().AllowedOrigins[0]; got != "http://a.example" {
		t.Errorf("active config was mutated: %q", got)
	}
}
