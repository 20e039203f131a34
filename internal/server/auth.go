package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/session"
)

const tokenIssuer = "roomchat"

var (
	// ErrTokenMissing is returned when a request carries no token.
	ErrTokenMissing = errors.New("token missing")
	// ErrTokenInvalid is returned for tokens that fail verification.
	ErrTokenInvalid = errors.New("token invalid")
)

// IdentityClaims are the claims carried by an identity token. The subject is
// the chat identity.
type IdentityClaims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies identity tokens with HS256.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer for secret. An empty secret is replaced by
// a random one, so tokens do not survive a restart.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token whose subject is identity.
func (ti *TokenIssuer) Issue(identity chat.Identity) (string, error) {
	if identity.IsZero() {
		return "", session.ErrIdentityMissing
	}

	now := ti.now()
	claims := IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.String(),
			Issuer:    tokenIssuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString and returns the identity it names.
func (ti *TokenIssuer) Verify(tokenString string) (chat.Identity, error) {
	if tokenString == "" {
		return "", ErrTokenMissing
	}

	token, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, func(*jwt.Token) (any, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	return chat.Identity(claims.Subject), nil
}

// tokenFromRequest reads the token from the Authorization header or, for
// browser WebSocket clients that cannot set headers, the "token" query
// parameter.
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// IdentityFromRequest verifies the request's token and returns its identity.
func (ti *TokenIssuer) IdentityFromRequest(r *http.Request) (chat.Identity, error) {
	return ti.Verify(tokenFromRequest(r))
}
