package core

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Decode failure kinds. Callers that need to react differently (e.g. logging
// vs. denial) can test with errors.Is; the HTTP layer collapses all of them
// to "unauthenticated".
var (
	ErrMalformedToken = errors.New("malformed token")
	ErrBadSignature   = errors.New("bad token signature")
	ErrTokenExpired   = errors.New("token expired")
)

// Claims are the fields embedded in an issued token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec issues and verifies signed bearer tokens (HS256 JWT).
// The signing key is fixed for the codec's lifetime.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec builds a codec from config. When cfg.JWTSecret is empty a
// random key is generated, which invalidates outstanding tokens on restart.
func NewTokenCodec(cfg Config) (*TokenCodec, error) {
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
	}
	ttl := time.Duration(cfg.TokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenCodec{secret: secret, ttl: ttl, now: time.Now}, nil
}

// TTL returns the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue mints a signed token for subject using the configured TTL.
func (c *TokenCodec) Issue(subject string) (string, error) {
	return c.IssueWithTTL(subject, c.ttl)
}

// IssueWithTTL mints a signed token with an explicit lifetime.
func (c *TokenCodec) IssueWithTTL(subject string, ttl time.Duration) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode parses tokenString and verifies its signature and expiry.
// Failures map to ErrMalformedToken, ErrBadSignature, or ErrTokenExpired.
func (c *TokenCodec) Decode(tokenString string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(*jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		default:
			return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
	}

	reg, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || reg.ExpiresAt == nil {
		return Claims{}, ErrMalformedToken
	}
	out := Claims{
		Subject:   reg.Subject,
		ExpiresAt: reg.ExpiresAt.Time,
	}
	if reg.IssuedAt != nil {
		out.IssuedAt = reg.IssuedAt.Time
	}
	return out, nil
}

// IsExpired reports whether claims are expired at time now.
// The expiry instant itself counts as expired: a token is valid only while
// ExpiresAt is strictly in the future.
func (c *TokenCodec) IsExpired(claims Claims) bool {
	return !claims.ExpiresAt.After(c.now())
}
