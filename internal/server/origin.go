package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const wildcardOrigin = "*"

// originPolicy is the compiled form of Config.AllowedOrigins. It is rebuilt
// with every config snapshot and never mutated afterwards.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

// canonicalOrigin reduces an origin to lower-case "scheme://host[:port]".
func canonicalOrigin(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), true
}

// compileOrigins returns the policy for origins together with the canonical
// list stored back into the config. Malformed entries are logged and skipped.
func compileOrigins(origins []string) (originPolicy, []string) {
	policy := originPolicy{allowed: make(map[string]struct{}, len(origins))}

	canonical := lo.FilterMap(origins, func(raw string, _ int) (string, bool) {
		raw = strings.TrimSpace(raw)
		switch raw {
		case "":
			return "", false
		case wildcardOrigin:
			policy.allowAll = true
			return "", false
		}
		origin, ok := canonicalOrigin(raw)
		if !ok {
			zap.L().Warn("ignoring invalid origin in configuration", zap.String("origin", raw))
		}
		return origin, ok
	})
	canonical = lo.Uniq(canonical)

	for _, origin := range canonical {
		policy.allowed[origin] = struct{}{}
	}
	if len(canonical) == 0 {
		canonical = nil
	}
	return policy, canonical
}

// allows reports whether an Origin header value passes the policy. A missing
// or malformed header never does, even under the wildcard.
func (p originPolicy) allows(header string) bool {
	origin, ok := canonicalOrigin(header)
	if !ok {
		return false
	}
	if p.allowAll {
		return true
	}
	_, ok = p.allowed[origin]
	return ok
}

func currentOriginPolicy() originPolicy {
	configMu.RLock()
	defer configMu.RUnlock()
	return activeOrigins
}

// originChecker returns the upgrader's CheckOrigin hook. It reads the policy
// of the config active at handshake time.
func originChecker(log *zap.Logger) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if currentOriginPolicy().allows(origin) {
			return true
		}
		log.Warn("blocked websocket connection from disallowed origin",
			zap.String("origin", origin),
			zap.String("remote_addr", r.RemoteAddr),
		)
		return false
	}
}
