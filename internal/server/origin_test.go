package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

// TestOriginChecker verifies allowed, disallowed and malformed origins.
func TestOriginChecker(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(&Config{AllowedOrigins: []string{"https://chat.example"}})

	check := originChecker(zap.NewNop())

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{name: "allowed", origin: "https://chat.example", want: true},
		{name: "case insensitive", origin: "HTTPS://CHAT.EXAMPLE", want: true},
		{name: "other host", origin: "https://evil.example", want: false},
		{name: "other scheme", origin: "http://chat.example", want: false},
		{name: "missing", origin: "", want: false},
		{name: "malformed", origin: "chat.example", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws/rooms/general", http.NoBody)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := check(req); got != tt.want {
				t.Errorf("check(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

// TestOriginWildcard verifies "*" admits any well-formed origin but never a
// missing or malformed header.
func TestOriginWildcard(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(&Config{AllowedOrigins: []string{"*"}})

	policy := currentOriginPolicy()
	if !policy.allows("https://anything.example") {
		t.Error("wildcard should allow any origin")
	}
	if policy.allows("") || policy.allows("anything.example") {
		t.Error("wildcard must not allow a missing or malformed origin")
	}
}

// TestCompileOrigins verifies canonicalisation, de-duplication and skipping of
// blank and malformed entries.
func TestCompileOrigins(t *testing.T) {
	policy, origins := compileOrigins([]string{
		" HTTPS://Chat.Example ", "https://chat.example", "", "not a url", "http://localhost:8080",
	})

	want := []string{"https://chat.example", "http://localhost:8080"}
	if len(origins) != len(want) {
		t.Fatalf("origins = %v, want %v", origins, want)
	}
	for i := range want {
		if origins[i] != want[i] {
			t.Errorf("origins[%d] = %q, want %q", i, origins[i], want[i])
		}
	}
	if policy.allowAll {
		t.Error("no wildcard was configured")
	}
	if !policy.allows("http://LOCALHOST:8080") {
		t.Error("host comparison should be case insensitive")
	}

	if _, origins := compileOrigins(nil); origins != nil {
		t.Errorf("empty configuration should compile to nil, got %v", origins)
	}
}
