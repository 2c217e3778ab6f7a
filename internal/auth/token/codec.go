// Package token issues and verifies the signed, time-bound tokens the
// auth service hands out. A token is self-contained: subject, class,
// unique jti, issued-at and expiry all live in the signed payload.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Class distinguishes what a token may be used for. Access tokens
// authorize requests, refresh tokens may only be exchanged for a new
// pair, verify tokens complete email verification exactly once.
type Class string

const (
	ClassAccess  Class = "access"
	ClassRefresh Class = "refresh"
	ClassVerify  Class = "verify"
)

var (
	// ErrSigning means the signing key is unusable. Fatal at process
	// level, never retried.
	ErrSigning = errors.New("token signing failed")

	ErrExpired      = errors.New("token expired")
	ErrMalformed    = errors.New("token malformed")
	ErrBadSignature = errors.New("token signature invalid")
)

// Config holds codec parameters. Leeway absorbs clock drift between the
// issuing and verifying process and is bounded to keep expiry meaningful.
type Config struct {
	Secret     []byte
	Issuer     string
	Leeway     time.Duration
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	VerifyTTL  time.Duration
}

// Claims is the verified content of a token.
type Claims struct {
	Class Class `json:"cls"`
	jwt.RegisteredClaims
}

// Subject returns the token's subject as a parsed identity ID.
func (c *Claims) Subject() (uuid.UUID, error) {
	id, err := uuid.Parse(c.RegisteredClaims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrMalformed)
	}
	return id, nil
}

// Remaining reports the token's remaining lifetime at now.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

type Codec struct {
	cfg Config
}

// MarkerTTL returns the lifetime for a revocation marker written for
// claims at now: the remaining lifetime, raised to at least the leeway.
// Verify accepts a token until exp+leeway, so a marker written anywhere
// inside that window has to survive to the window's end — otherwise a
// drift-delayed first presentation is indistinguishable from reuse.
func (c *Codec) MarkerTTL(claims *Claims, now time.Time) time.Duration {
	ttl := claims.Remaining(now)
	if ttl < c.cfg.Leeway {
		ttl = c.cfg.Leeway
	}
	return ttl
}

func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.VerifyTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Codec{cfg: cfg}, nil
}

func (c *Codec) ttl(class Class) (time.Duration, error) {
	switch class {
	case ClassAccess:
		return c.cfg.AccessTTL, nil
	case ClassRefresh:
		return c.cfg.RefreshTTL, nil
	case ClassVerify:
		return c.cfg.VerifyTTL, nil
	default:
		return 0, fmt.Errorf("unknown token class %q", class)
	}
}

// Issue signs a token of the given class for the subject. The jti is a
// fresh UUID; it is the revocation key for the token's whole life.
func (c *Codec) Issue(subject uuid.UUID, class Class) (string, *Claims, error) {
	ttl, err := c.ttl(class)
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	claims := &Claims{
		Class: class,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			ID:        uuid.NewString(),
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.Secret)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, claims, nil
}

// Verify checks signature, structure and expiry and returns the claims.
// The three failure kinds are distinct because callers react
// differently: expired means re-login, the other two are tampering
// signals worth logging.
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.cfg.Leeway))
	}
	if c.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.cfg.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return c.cfg.Secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrBadSignature
		default:
			return nil, ErrMalformed
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.ID == "" || claims.RegisteredClaims.Subject == "" {
		return nil, ErrMalformed
	}
	if _, err := claims.Subject(); err != nil {
		return nil, ErrMalformed
	}

	return claims, nil
}
