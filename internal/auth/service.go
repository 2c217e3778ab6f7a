// Package auth implements the authentication and authorization core:
// registration, credential login, single-use refresh rotation, logout,
// email verification and per-request authentication. Token state lives
// in signed tokens plus a Redis revocation layer; the relational store
// is only consulted for credentials and role changes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snapfolio/api/internal/audit"
	"github.com/snapfolio/api/internal/auth/cache"
	"github.com/snapfolio/api/internal/auth/token"
	"github.com/snapfolio/api/internal/metrics"
	"github.com/snapfolio/api/internal/password"
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

const tokenTypeBearer = "Bearer"

// dummyHash is verified against when the email does not resolve, so a
// login probe costs the same whether or not the account exists.
const dummyHash = "$argon2id$v=19$m=65536,t=2,p=2$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Config wires the service's collaborators. Codec, Cache, Store and
// Hasher are required; the rest degrade to no-ops when nil.
type Config struct {
	Codec        *token.Codec
	Cache        *cache.SessionCache
	Store        CredentialStore
	Hasher       *password.Hasher
	Audit        *audit.Dispatcher
	Metrics      *metrics.Metrics
	Mailer       Mailer
	Logger       *slog.Logger
	RoleCacheTTL time.Duration
}

type Service struct {
	codec        *token.Codec
	cache        *cache.SessionCache
	store        CredentialStore
	hasher       *password.Hasher
	audit        *audit.Dispatcher
	metrics      *metrics.Metrics
	mailer       Mailer
	log          *slog.Logger
	roleCacheTTL time.Duration
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Codec == nil {
		return nil, errors.New("auth: nil token codec")
	}
	if cfg.Cache == nil {
		return nil, errors.New("auth: nil session cache")
	}
	if cfg.Store == nil {
		return nil, errors.New("auth: nil credential store")
	}
	if cfg.Hasher == nil {
		return nil, errors.New("auth: nil password hasher")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	ttl := cfg.RoleCacheTTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Service{
		codec:        cfg.Codec,
		cache:        cfg.Cache,
		store:        cfg.Store,
		hasher:       cfg.Hasher,
		audit:        cfg.Audit,
		metrics:      cfg.Metrics,
		mailer:       cfg.Mailer,
		log:          log,
		roleCacheTTL: ttl,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) emit(ctx context.Context, eventType, userID string, success bool, errText string) {
	s.audit.Emit(ctx, audit.Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Success:   success,
		Error:     errText,
	})
}

// Register creates an unverified account with the lowest role and
// kicks off email verification. The verification email is best effort;
// a delivery failure never unwinds the created account.
func (s *Service) Register(ctx context.Context, email, plaintext string) (*Identity, error) {
	email = normalizeEmail(email)

	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		s.metrics.Inc(metrics.RegisterDuplicate)
		s.emit(ctx, audit.EventRegister, "", false, ErrDuplicateIdentity.Error())
		return nil, ErrDuplicateIdentity
	} else if !errors.Is(err, ErrIdentityNotFound) {
		return nil, err
	}

	identity := &Identity{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
		Verified:     false,
		Banned:       false,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Create(ctx, identity); err != nil {
		// The store maps its unique-violation to ErrDuplicateIdentity;
		// a concurrent register can land here despite the pre-check.
		if errors.Is(err, ErrDuplicateIdentity) {
			s.metrics.Inc(metrics.RegisterDuplicate)
			s.emit(ctx, audit.EventRegister, "", false, err.Error())
		}
		return nil, err
	}

	s.metrics.Inc(metrics.RegisterSuccess)
	s.emit(ctx, audit.EventRegister, identity.ID.String(), true, "")

	if err := s.sendVerification(ctx, identity); err != nil {
		s.log.Warn("verification email not sent", "user_id", identity.ID, "error", err)
	}
	return identity, nil
}

// Login exchanges credentials for a token pair. Credentials are checked
// before account flags so a probe cannot distinguish a wrong password
// from a banned or unverified account without knowing the password.
func (s *Service) Login(ctx context.Context, email, plaintext string) (*TokenPair, error) {
	email = normalizeEmail(email)

	identity, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			_, _ = s.hasher.Verify(plaintext, dummyHash)
			s.metrics.Inc(metrics.LoginFailure)
			s.emit(ctx, audit.EventLoginFailure, "", false, ErrInvalidCredentials.Error())
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(plaintext, identity.PasswordHash)
	if err != nil || !ok {
		s.metrics.Inc(metrics.LoginFailure)
		s.emit(ctx, audit.EventLoginFailure, identity.ID.String(), false, ErrInvalidCredentials.Error())
		return nil, ErrInvalidCredentials
	}

	if identity.Banned {
		s.metrics.Inc(metrics.LoginFailure)
		s.emit(ctx, audit.EventLoginFailure, identity.ID.String(), false, ErrBanned.Error())
		return nil, ErrBanned
	}
	if !identity.Verified {
		s.metrics.Inc(metrics.LoginFailure)
		s.emit(ctx, audit.EventLoginFailure, identity.ID.String(), false, ErrNotVerified.Error())
		return nil, ErrNotVerified
	}

	pair, err := s.issuePair(ctx, identity)
	if err != nil {
		return nil, err
	}

	s.metrics.Inc(metrics.LoginSuccess)
	s.emit(ctx, audit.EventLoginSuccess, identity.ID.String(), true, "")
	return pair, nil
}

// Refresh rotates a refresh token for a new pair. The presented token
// is revoked for the rest of its acceptance window with a set-if-absent
// write; exactly one of any number of concurrent presenters wins. A loser
// means the token was already spent — reuse, reported distinctly
// because it is the one signal of a stolen refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.verifyClass(refreshToken, token.ClassRefresh)
	if err != nil {
		s.metrics.Inc(metrics.RefreshFailure)
		return nil, err
	}
	subject, err := claims.Subject()
	if err != nil {
		s.metrics.Inc(metrics.RefreshFailure)
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	// Resolve the account before spending the jti: a transient store
	// failure must not burn a token the client can never present again.
	identity, err := s.store.FindByID(ctx, subject)
	if err != nil {
		s.metrics.Inc(metrics.RefreshFailure)
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if identity.Banned {
		s.metrics.Inc(metrics.RefreshFailure)
		s.emit(ctx, audit.EventRefreshSuccess, subject.String(), false, ErrBanned.Error())
		return nil, errors.Join(ErrUnauthorized, ErrBanned)
	}

	first, err := s.cache.MarkRevoked(ctx, claims.ID, s.codec.MarkerTTL(claims, time.Now()))
	if err != nil {
		s.metrics.Inc(metrics.RefreshFailure)
		s.log.Error("refresh rotation blocked, cache down", "error", err)
		return nil, errors.Join(ErrUnauthorized, ErrCacheUnavailable)
	}
	if !first {
		s.metrics.Inc(metrics.RefreshReuseDetected)
		s.log.Error("refresh token reuse detected", "user_id", subject, "jti", claims.ID)
		s.emit(ctx, audit.EventRefreshReuse, subject.String(), false, ErrTokenReuse.Error())
		return nil, ErrTokenReuse
	}

	pair, err := s.issuePair(ctx, identity)
	if err != nil {
		s.metrics.Inc(metrics.RefreshFailure)
		return nil, err
	}

	s.metrics.Inc(metrics.RefreshSuccess)
	s.emit(ctx, audit.EventRefreshSuccess, subject.String(), true, "")
	return pair, nil
}

// Logout revokes the presented refresh token. Idempotent: revoking an
// already-revoked or already-expired token succeeds, since the caller's
// intent is satisfied either way.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Class != token.ClassRefresh {
		return ErrUnauthorized
	}

	if _, err := s.cache.MarkRevoked(ctx, claims.ID, s.codec.MarkerTTL(claims, time.Now())); err != nil {
		return errors.Join(ErrCacheUnavailable, err)
	}

	subject, _ := claims.Subject()
	s.metrics.Inc(metrics.Logout)
	s.emit(ctx, audit.EventLogout, subject.String(), true, "")
	return nil
}

// VerifyEmail completes verification with a verify-class token. The
// token is single use: its jti is revoked in the same way a refresh
// token is spent, so replaying the link does nothing.
func (s *Service) VerifyEmail(ctx context.Context, verifyToken string) error {
	claims, err := s.verifyClass(verifyToken, token.ClassVerify)
	if err != nil {
		s.metrics.Inc(metrics.VerificationFailure)
		return err
	}
	subject, err := claims.Subject()
	if err != nil {
		s.metrics.Inc(metrics.VerificationFailure)
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	first, err := s.cache.MarkRevoked(ctx, claims.ID, s.codec.MarkerTTL(claims, time.Now()))
	if err != nil {
		s.metrics.Inc(metrics.VerificationFailure)
		return errors.Join(ErrCacheUnavailable, err)
	}
	if !first {
		s.metrics.Inc(metrics.VerificationFailure)
		return ErrUnauthorized
	}

	if err := s.store.MarkVerified(ctx, subject); err != nil {
		s.metrics.Inc(metrics.VerificationFailure)
		return err
	}

	s.metrics.Inc(metrics.VerificationSuccess)
	s.emit(ctx, audit.EventEmailVerified, subject.String(), true, "")
	return nil
}

// RequestVerification re-issues the verification email. Unknown and
// already-verified addresses return nil so the endpoint cannot be used
// to enumerate accounts.
func (s *Service) RequestVerification(ctx context.Context, email string) error {
	identity, err := s.store.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil
		}
		return err
	}
	if identity.Verified {
		return nil
	}
	return s.sendVerification(ctx, identity)
}

func (s *Service) sendVerification(ctx context.Context, identity *Identity) error {
	if s.mailer == nil {
		return nil
	}
	signed, _, err := s.codec.Issue(identity.ID, token.ClassVerify)
	if err != nil {
		return err
	}
	if err := s.mailer.SendVerification(ctx, identity.Email, signed); err != nil {
		return err
	}
	s.metrics.Inc(metrics.VerificationSent)
	s.emit(ctx, audit.EventVerificationSent, identity.ID.String(), true, "")
	return nil
}

// Authenticate resolves an access token into a Principal. Every
// internal failure kind collapses to ErrUnauthorized at the boundary;
// the detail is logged here. The revocation check fails closed: if the
// cache cannot answer, the token is treated as revoked.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	claims, err := s.codec.Verify(accessToken)
	if err != nil {
		s.metrics.Inc(metrics.AuthenticateDenied)
		s.log.Debug("access token rejected", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Class != token.ClassAccess {
		s.metrics.Inc(metrics.AuthenticateDenied)
		return nil, ErrUnauthorized
	}
	subject, err := claims.Subject()
	if err != nil {
		s.metrics.Inc(metrics.AuthenticateDenied)
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	revoked, err := s.cache.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.metrics.Inc(metrics.AuthenticateDenied)
		s.log.Error("revocation check failed, denying", "error", err)
		return nil, errors.Join(ErrUnauthorized, ErrCacheUnavailable)
	}
	if revoked {
		s.metrics.Inc(metrics.AuthenticateDenied)
		return nil, ErrUnauthorized
	}

	role, banned, err := s.resolveRole(ctx, subject)
	if err != nil {
		s.metrics.Inc(metrics.AuthenticateDenied)
		s.log.Error("role resolution failed, denying", "user_id", subject, "error", err)
		return nil, errors.Join(ErrUnauthorized, err)
	}
	if banned {
		s.metrics.Inc(metrics.AuthenticateDenied)
		s.emit(ctx, audit.EventAuthenticateDenied, subject.String(), false, ErrBanned.Error())
		return nil, errors.Join(ErrUnauthorized, ErrBanned)
	}

	return &Principal{UserID: subject, Role: role}, nil
}

// resolveRole reads the role/ban projection through the cache. A miss
// falls back to the store and repopulates; a cache read failure only
// degrades to the store, it does not deny by itself.
func (s *Service) resolveRole(ctx context.Context, userID uuid.UUID) (Role, bool, error) {
	entry, found, err := s.cache.GetRole(ctx, userID.String())
	if err == nil && found {
		role := Role(entry.Role)
		if role.Valid() {
			return role, entry.Banned, nil
		}
	}
	if err != nil {
		s.log.Warn("role cache read failed, falling back to store", "error", err)
	}

	identity, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return "", false, err
	}

	if cacheErr := s.cache.CacheRole(ctx, userID.String(), cache.RoleEntry{
		Role:   string(identity.Role),
		Banned: identity.Banned,
	}, s.roleCacheTTL); cacheErr != nil {
		s.log.Warn("role cache write failed", "error", cacheErr)
	}
	return identity.Role, identity.Banned, nil
}

// SetRole changes an identity's role and synchronously invalidates the
// cached projection, bounding stale authorization at the call latency.
func (s *Service) SetRole(ctx context.Context, id uuid.UUID, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	if err := s.store.UpdateRole(ctx, id, role); err != nil {
		return err
	}
	if err := s.cache.InvalidateRole(ctx, id.String()); err != nil {
		return errors.Join(ErrCacheUnavailable, err)
	}
	s.metrics.Inc(metrics.RoleChanged)
	s.emit(ctx, audit.EventRoleChanged, id.String(), true, "")
	return nil
}

// SetBanned flips an identity's ban flag with the same invalidation
// contract as SetRole.
func (s *Service) SetBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	if err := s.store.UpdateBanned(ctx, id, banned); err != nil {
		return err
	}
	if err := s.cache.InvalidateRole(ctx, id.String()); err != nil {
		return errors.Join(ErrCacheUnavailable, err)
	}
	s.metrics.Inc(metrics.BanChanged)
	s.emit(ctx, audit.EventBanChanged, id.String(), true, "")
	return nil
}

func (s *Service) verifyClass(tokenStr string, want token.Class) (*token.Claims, error) {
	claims, err := s.codec.Verify(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Class != want {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

func (s *Service) issuePair(ctx context.Context, identity *Identity) (*TokenPair, error) {
	access, _, err := s.codec.Issue(identity.ID, token.ClassAccess)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.codec.Issue(identity.ID, token.ClassRefresh)
	if err != nil {
		return nil, err
	}

	// Warm the projection so the first authenticated request after
	// login skips the store.
	if err := s.cache.CacheRole(ctx, identity.ID.String(), cache.RoleEntry{
		Role:   string(identity.Role),
		Banned: identity.Banned,
	}, s.roleCacheTTL); err != nil {
		s.log.Warn("role cache warm failed", "error", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenTypeBearer,
	}, nil
}
