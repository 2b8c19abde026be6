// Package identity resolves the authenticated user of a request.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned when a request carries no valid credentials.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Name   string
}

// Provider authenticates requests.
type Provider interface {
	Authenticate(r *http.Request) (Identity, error)
}

// Claims are the token claims read by the JWT provider.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWT validates HS256 bearer tokens. The subject is the user id.
type JWT struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// JWTOption configures the JWT provider.
type JWTOption func(*JWT)

// WithIssuer requires tokens to carry the given issuer.
func WithIssuer(iss string) JWTOption {
	return func(p *JWT) { p.issuer = iss }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) JWTOption {
	return func(p *JWT) {
		if now != nil {
			p.now = now
		}
	}
}

// NewJWT creates a provider that verifies tokens signed with secret.
func NewJWT(secret string, opts ...JWTOption) *JWT {
	p := &JWT{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Authenticate reads the Authorization bearer token.
func (p *JWT) Authenticate(r *http.Request) (Identity, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return Identity{}, ErrUnauthenticated
	}
	return p.Parse(strings.TrimSpace(raw))
}

// Parse validates a raw token.
func (p *JWT) Parse(raw string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if !tok.Valid || claims.Subject == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{UserID: claims.Subject, Name: claims.Name}, nil
}

// Issue signs a token for userID valid for ttl.
func (p *JWT) Issue(userID, name string, ttl time.Duration) (string, error) {
	now := p.now()
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
