// Package guard is the request-admission middleware: bearer token in,
// Principal in the request context out. Authorization is a single
// comparison against the route's declared minimum role.
package guard

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/snapfolio/api/internal/auth"
)

type principalContextKey struct{}

// PrincipalFrom returns the admitted principal, if any. It is only set
// on requests that passed Require.
func PrincipalFrom(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*auth.Principal)
	return p, ok
}

// Require admits requests carrying a valid access token whose role is
// at least min. Missing or bad credentials are 401, a valid identity
// below the bar is 403: the two are distinct on purpose, a 403 tells
// the caller who they are is known but not enough.
func Require(svc *auth.Service, min auth.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			principal, err := svc.Authenticate(c.Request().Context(), tokenStr)
			if err != nil {
				if errors.Is(err, auth.ErrCacheUnavailable) || errors.Is(err, auth.ErrStoreUnavailable) {
					return echo.NewHTTPError(http.StatusServiceUnavailable, "authentication unavailable")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}

			if !principal.Role.AtLeast(min) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}

			ctx := context.WithValue(c.Request().Context(), principalContextKey{}, principal)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := value[len(bearer):]
	if token == "" {
		return "", false
	}
	return token, true
}
