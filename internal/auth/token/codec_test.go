package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func testConfig() Config {
	return Config{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "snapfolio-test",
		Leeway:     2 * time.Second,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		VerifyTTL:  24 * time.Hour,
	}
}

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testConfig())
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}
	return c
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	subject := uuid.New()

	for _, class := range []Class{ClassAccess, ClassRefresh, ClassVerify} {
		signed, issued, err := c.Issue(subject, class)
		if err != nil {
			t.Fatalf("Issue(%s) error: %v", class, err)
		}
		if issued.ID == "" {
			t.Fatalf("Issue(%s) produced empty jti", class)
		}

		claims, err := c.Verify(signed)
		if err != nil {
			t.Fatalf("Verify(%s) error: %v", class, err)
		}
		if claims.Class != class {
			t.Fatalf("class mismatch: want %s, got %s", class, claims.Class)
		}
		if claims.ID != issued.ID {
			t.Fatalf("jti mismatch: want %s, got %s", issued.ID, claims.ID)
		}
		got, err := claims.Subject()
		if err != nil {
			t.Fatalf("Subject error: %v", err)
		}
		if got != subject {
			t.Fatalf("subject mismatch: want %s, got %s", subject, got)
		}
	}
}

func TestJTIsAreUnique(t *testing.T) {
	c := newTestCodec(t)
	subject := uuid.New()

	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		_, claims, err := c.Issue(subject, ClassAccess)
		if err != nil {
			t.Fatalf("Issue error: %v", err)
		}
		if seen[claims.ID] {
			t.Fatalf("duplicate jti %s", claims.ID)
		}
		seen[claims.ID] = true
	}
}

func TestVerifyWrongKey(t *testing.T) {
	c := newTestCodec(t)

	otherCfg := testConfig()
	otherCfg.Secret = []byte("ffffffffffffffffffffffffffffffff")
	other, err := NewCodec(otherCfg)
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}

	signed, _, err := other.Issue(uuid.New(), ClassAccess)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if _, err := c.Verify(signed); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyTamperedPayload(t *testing.T) {
	c := newTestCodec(t)

	signed, _, err := c.Issue(uuid.New(), ClassAccess)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %d parts", len(parts))
	}
	// Flip a byte inside the payload segment.
	payload := []byte(parts[1])
	if payload[5] == 'A' {
		payload[5] = 'B'
	} else {
		payload[5] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	_, err = c.Verify(tampered)
	if err == nil {
		t.Fatal("expected tampered token to fail verification")
	}
	if !errors.Is(err, ErrBadSignature) && !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected signature or malformed error, got %v", err)
	}
}

func TestVerifyExpiredBeyondLeeway(t *testing.T) {
	cfg := testConfig()
	c, err := NewCodec(cfg)
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}

	// Hand-sign claims that expired well past the configured leeway.
	claims := &Claims{
		Class: ClassAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ID:        uuid.NewString(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-10 * time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}

	if _, err := c.Verify(signed); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyWithinLeeway(t *testing.T) {
	cfg := testConfig()
	cfg.Leeway = 30 * time.Second
	c, err := NewCodec(cfg)
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}

	claims := &Claims{
		Class: ClassAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ID:        uuid.NewString(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-5 * time.Second)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}

	if _, err := c.Verify(signed); err != nil {
		t.Fatalf("expected leeway to absorb small clock drift, got %v", err)
	}
}

func TestMarkerTTLCoversLeewayWindow(t *testing.T) {
	c := newTestCodec(t)
	// jwt.NewNumericDate truncates to whole seconds (TimePrecision), so
	// the base clock must be truncated too for the exact comparisons below.
	now := time.Now().Truncate(time.Second)

	healthy := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
	}}
	if got := c.MarkerTTL(healthy, now); got != 10*time.Minute {
		t.Fatalf("MarkerTTL for live token = %v, want 10m", got)
	}

	// Expired but still inside the 2s leeway: the marker must live for
	// the leeway, not for a non-positive remainder.
	drifted := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Second)),
	}}
	if got := c.MarkerTTL(drifted, now); got != 2*time.Second {
		t.Fatalf("MarkerTTL inside leeway = %v, want leeway (2s)", got)
	}
}

func TestVerifyGarbage(t *testing.T) {
	c := newTestCodec(t)

	for _, tokenStr := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		if _, err := c.Verify(tokenStr); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed for %q, got %v", tokenStr, err)
		}
	}
}

func TestVerifyRejectsForeignSubject(t *testing.T) {
	cfg := testConfig()
	c, err := NewCodec(cfg)
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}

	claims := &Claims{
		Class: ClassAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "not-a-uuid",
			ID:        uuid.NewString(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
	if err != nil {
		t.Fatalf("sign error: %v", err)
	}

	if _, err := c.Verify(signed); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestNewCodecValidation(t *testing.T) {
	cfg := testConfig()
	cfg.Secret = []byte("short")
	if _, err := NewCodec(cfg); err == nil {
		t.Fatal("expected short secret to be rejected")
	}

	cfg = testConfig()
	cfg.AccessTTL = 0
	if _, err := NewCodec(cfg); err == nil {
		t.Fatal("expected zero TTL to be rejected")
	}

	cfg = testConfig()
	cfg.Leeway = 10 * time.Minute
	if _, err := NewCodec(cfg); err == nil {
		t.Fatal("expected oversized leeway to be rejected")
	}
}
