package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/snapfolio/api/internal/auth"
	"github.com/snapfolio/api/internal/repo"
)

// authHTTPError maps auth-core sentinels to status codes. Availability
// is checked first: a joined unauthorized+unavailable means the service
// could not decide, which is a 503, not a 401.
func authHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, auth.ErrCacheUnavailable), errors.Is(err, auth.ErrStoreUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "service temporarily unavailable")
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, auth.ErrTokenReuse):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, auth.ErrBanned):
		return echo.NewHTTPError(http.StatusForbidden, "account banned")
	case errors.Is(err, auth.ErrNotVerified):
		return echo.NewHTTPError(http.StatusForbidden, "account not verified")
	case errors.Is(err, auth.ErrDuplicateIdentity):
		return echo.NewHTTPError(http.StatusConflict, "email already registered")
	case errors.Is(err, auth.ErrIdentityNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func repoHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, "not the owner")
	case errors.Is(err, repo.ErrSelfRating):
		return echo.NewHTTPError(http.StatusBadRequest, "cannot rate your own image")
	case errors.Is(err, repo.ErrAlreadyRated):
		return echo.NewHTTPError(http.StatusConflict, "already rated")
	case errors.Is(err, repo.ErrStarsRange):
		return echo.NewHTTPError(http.StatusBadRequest, "stars must be between 1 and 5")
	case errors.Is(err, repo.ErrReplyDepth):
		return echo.NewHTTPError(http.StatusBadRequest, "replies to replies are not allowed")
	case errors.Is(err, repo.ErrTooManyTags):
		return echo.NewHTTPError(http.StatusBadRequest, "at most 5 tags per image")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
