// Package cache adapts Redis into the two fast lookups the auth core
// needs: revocation markers keyed by jti and a short-lived projection of
// each subject's role/ban state.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps every Redis transport failure, timeouts included.
// Callers on the revocation path must treat it as "revoked" — the cache
// is a security dependency, not an optimization.
var ErrUnavailable = errors.New("session cache unavailable")

const (
	revokedPrefix = "rv:"
	rolePrefix    = "rl:"

	opTimeout = 2 * time.Second
)

// SessionCache is the Redis-backed adapter. All operations carry their
// own timeout so a stalled cache surfaces as ErrUnavailable instead of
// hanging a request.
type SessionCache struct {
	redis  redis.UniversalClient
	prefix string
}

func New(client redis.UniversalClient, prefix string) *SessionCache {
	return &SessionCache{redis: client, prefix: prefix}
}

func (c *SessionCache) revokedKey(jti string) string {
	return c.prefix + ":" + revokedPrefix + jti
}

func (c *SessionCache) roleKey(userID string) string {
	return c.prefix + ":" + rolePrefix + userID
}

func (c *SessionCache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}

// MarkRevoked writes the revocation marker for jti with a single
// SET NX. The returned bool reports whether this caller created the
// marker — the atomic serialization point for refresh rotation: exactly
// one concurrent caller observes first=true. Idempotent; the TTL must
// cover every instant the token is still accepted (remaining lifetime
// plus verification leeway) so the marker never forgets a jti early.
func (c *SessionCache) MarkRevoked(ctx context.Context, jti string, ttl time.Duration) (first bool, err error) {
	if ttl <= 0 {
		// A token this far past expiry fails verification outright;
		// report "not first" so callers refuse rotation.
		return false, nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	ok, err := c.redis.SetNX(ctx, c.revokedKey(jti), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

// IsRevoked reports whether jti carries a revocation marker. Absence
// means "not known to be revoked".
func (c *SessionCache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	n, err := c.redis.Exists(ctx, c.revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// RoleEntry is the cached role/ban projection for a subject.
type RoleEntry struct {
	Role   string
	Banned bool
}

func encodeRoleEntry(e RoleEntry) string {
	banned := "0"
	if e.Banned {
		banned = "1"
	}
	return e.Role + "|" + banned
}

func decodeRoleEntry(raw string) (RoleEntry, bool) {
	role, banned, ok := strings.Cut(raw, "|")
	if !ok || role == "" {
		return RoleEntry{}, false
	}
	return RoleEntry{Role: role, Banned: banned == "1"}, true
}

// CacheRole stores the subject's role/ban projection with a short TTL.
func (c *SessionCache) CacheRole(ctx context.Context, userID string, entry RoleEntry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.redis.Set(ctx, c.roleKey(userID), encodeRoleEntry(entry), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// GetRole returns the cached projection. found=false on a miss or a
// corrupt entry; a corrupt entry is dropped so the next read repopulates.
func (c *SessionCache) GetRole(ctx context.Context, userID string) (entry RoleEntry, found bool, err error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	raw, err := c.redis.Get(ctx, c.roleKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return RoleEntry{}, false, nil
		}
		return RoleEntry{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	entry, ok := decodeRoleEntry(raw)
	if !ok {
		_ = c.redis.Del(ctx, c.roleKey(userID)).Err()
		return RoleEntry{}, false, nil
	}
	return entry, true, nil
}

// InvalidateRole drops the cached projection. Called synchronously on
// every role or ban change so stale access cannot outlive the change by
// more than the call latency.
func (c *SessionCache) InvalidateRole(ctx context.Context, userID string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.redis.Del(ctx, c.roleKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time cache availability check.
func (c *SessionCache) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
