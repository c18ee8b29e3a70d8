// Package token issues and verifies the two JWT kinds used by the engine.
//
// Access and refresh tokens are independent artifacts: each kind has its own
// signing secret and its own lifetime, and a token of one kind never verifies
// as the other. Verification collapses every failure mode (bad signature,
// expiry, malformed structure, kind mismatch) into the single ErrInvalid so
// callers cannot leak which check rejected a presented token.
package token

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalid is returned by Verify for every rejected token.
var ErrInvalid = errors.New("token invalid")

// Kind discriminates the two token types. The value is embedded in the "typ"
// claim and checked on verify, not just implied by which secret signed it.
type Kind string

const (
	Access  Kind = "access"
	Refresh Kind = "refresh"
)

// Claims is the payload carried by both token kinds.
type Claims struct {
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Config holds the per-kind secrets and lifetimes.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Leeway        time.Duration
}

// Codec signs and verifies tokens. It is immutable after construction and
// safe for concurrent use.
type Codec struct {
	config Config
	now    func() time.Time
}

// Option adjusts a Codec at construction time.
type Option func(*Codec)

// WithNow overrides the clock, primarily for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec validates the configuration and returns a ready Codec.
func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("access lifetime must be shorter than refresh lifetime")
	}
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("both signing secrets are required")
	}
	if subtle.ConstantTimeCompare(cfg.AccessSecret, cfg.RefreshSecret) == 1 {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	c := &Codec{config: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Lifetime reports the configured lifetime of the given kind.
func (c *Codec) Lifetime(kind Kind) time.Duration {
	if kind == Refresh {
		return c.config.RefreshTTL
	}
	return c.config.AccessTTL
}

// Issue creates a signed token of the given kind for subject and role. The
// expiry is the current time plus the kind's configured lifetime.
func (c *Codec) Issue(kind Kind, subject, role string) (string, error) {
	now := c.now()
	claims := Claims{
		Role:      role,
		TokenType: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.Lifetime(kind))),
			ID:        uuid.NewString(),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret(kind))
}

// Verify checks signature, expiry, and kind, and returns the claims on
// success. Any failure returns ErrInvalid.
func (c *Codec) Verify(raw string, kind Kind) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return c.secret(kind), nil
	})
	if err != nil {
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.TokenType != string(kind) || claims.Subject == "" {
		return nil, ErrInvalid
	}

	return claims, nil
}

func (c *Codec) secret(kind Kind) []byte {
	if kind == Refresh {
		return c.config.RefreshSecret
	}
	return c.config.AccessSecret
}
