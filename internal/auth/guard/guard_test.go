package guard

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/snapfolio/api/internal/auth"
	"github.com/snapfolio/api/internal/auth/cache"
	"github.com/snapfolio/api/internal/auth/token"
	"github.com/snapfolio/api/internal/password"
)

type fakeStore struct {
	mu         sync.Mutex
	identities map[uuid.UUID]*auth.Identity
}

func (f *fakeStore) FindByEmail(_ context.Context, email string) (*auth.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, identity := range f.identities {
		if identity.Email == email {
			cp := *identity
			return &cp, nil
		}
	}
	return nil, auth.ErrIdentityNotFound
}

func (f *fakeStore) FindByID(_ context.Context, id uuid.UUID) (*auth.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.identities[id]
	if !ok {
		return nil, auth.ErrIdentityNotFound
	}
	cp := *identity
	return &cp, nil
}

func (f *fakeStore) Create(_ context.Context, identity *auth.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *identity
	f.identities[identity.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateRole(_ context.Context, id uuid.UUID, role auth.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities[id].Role = role
	return nil
}

func (f *fakeStore) UpdateBanned(_ context.Context, id uuid.UUID, banned bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities[id].Banned = banned
	return nil
}

func (f *fakeStore) MarkVerified(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities[id].Verified = true
	return nil
}

type guardEnv struct {
	svc   *auth.Service
	codec *token.Codec
	store *fakeStore
	mr    *miniredis.Miniredis
}

func newGuardEnv(t *testing.T) *guardEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	codec, err := token.NewCodec(token.Config{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "snapfolio-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
		VerifyTTL:  time.Hour,
	})
	require.NoError(t, err)

	store := &fakeStore{identities: make(map[uuid.UUID]*auth.Identity)}

	svc, err := auth.NewService(auth.Config{
		Codec:  codec,
		Cache:  cache.New(rdb, "sf"),
		Store:  store,
		Hasher: password.NewHasher(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	return &guardEnv{svc: svc, codec: codec, store: store, mr: mr}
}

func (e *guardEnv) addIdentity(t *testing.T, role auth.Role) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	require.NoError(t, e.store.Create(context.Background(), &auth.Identity{
		ID:       id,
		Email:    id.String() + "@example.com",
		Role:     role,
		Verified: true,
	}))
	access, _, err := e.codec.Issue(id, token.ClassAccess)
	require.NoError(t, err)
	return id, access
}

func performRequest(t *testing.T, svc *auth.Service, min auth.Role, authorization string) (*httptest.ResponseRecorder, *auth.Principal) {
	t.Helper()

	e := echo.New()
	var admitted *auth.Principal
	handler := Require(svc, min)(func(c echo.Context) error {
		admitted, _ = PrincipalFrom(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, admitted
}

func TestRequireNoToken(t *testing.T) {
	env := newGuardEnv(t)
	rec, _ := performRequest(t, env.svc, auth.RoleUser, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireMalformedHeader(t *testing.T) {
	env := newGuardEnv(t)
	for _, header := range []string{"Bearer", "Bearer ", "Basic dXNlcg==", "token abc"} {
		rec, _ := performRequest(t, env.svc, auth.RoleUser, header)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestRequireGarbageToken(t *testing.T) {
	env := newGuardEnv(t)
	rec, _ := performRequest(t, env.svc, auth.RoleUser, "Bearer not-a-token")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmitsAndSetsPrincipal(t *testing.T) {
	env := newGuardEnv(t)
	id, access := env.addIdentity(t, auth.RoleUser)

	rec, principal := performRequest(t, env.svc, auth.RoleUser, "Bearer "+access)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, principal)
	require.Equal(t, id, principal.UserID)
	require.Equal(t, auth.RoleUser, principal.Role)
}

func TestRequireInsufficientRole(t *testing.T) {
	env := newGuardEnv(t)
	_, access := env.addIdentity(t, auth.RoleUser)

	rec, _ := performRequest(t, env.svc, auth.RoleModerator, "Bearer "+access)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRoleOrder(t *testing.T) {
	env := newGuardEnv(t)
	_, modToken := env.addIdentity(t, auth.RoleModerator)
	_, adminToken := env.addIdentity(t, auth.RoleAdmin)

	rec, _ := performRequest(t, env.svc, auth.RoleModerator, "Bearer "+modToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = performRequest(t, env.svc, auth.RoleAdmin, "Bearer "+modToken)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = performRequest(t, env.svc, auth.RoleUser, "Bearer "+adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireBannedDenied(t *testing.T) {
	env := newGuardEnv(t)
	id, access := env.addIdentity(t, auth.RoleUser)
	require.NoError(t, env.svc.SetBanned(context.Background(), id, true))

	rec, _ := performRequest(t, env.svc, auth.RoleUser, "Bearer "+access)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireCacheDownIsUnavailable(t *testing.T) {
	env := newGuardEnv(t)
	_, access := env.addIdentity(t, auth.RoleUser)
	env.mr.Close()

	rec, _ := performRequest(t, env.svc, auth.RoleUser, "Bearer "+access)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPrincipalFromEmptyContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	require.False(t, ok)
}
