package httpserver

import (
	"errors"
	"net/http"
	"net/mail"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/snapfolio/api/internal/auth"
	"github.com/snapfolio/api/internal/auth/guard"
	"github.com/snapfolio/api/internal/media"
	"github.com/snapfolio/api/internal/password"
	"github.com/snapfolio/api/internal/store"
	"github.com/snapfolio/api/pkg/logging"
)

type AuthHandler struct {
	Svc   *auth.Service
	Store *store.CredentialStore
	Media media.Store
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	Verified bool      `json:"verified"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid email")
	}

	identity, err := h.Svc.Register(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordPolicy) {
			return echo.NewHTTPError(http.StatusBadRequest, "password must be 8 to 256 characters")
		}
		l.Warn("register_failed", "error", err)
		return authHTTPError(err)
	}

	l.Info("register_success", "user_id", identity.ID)
	return c.JSON(http.StatusCreated, userResponse{
		ID:       identity.ID,
		Email:    identity.Email,
		Role:     string(identity.Role),
		Verified: identity.Verified,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	pair, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		l.Warn("login_failed", "error", err)
		return authHTTPError(err)
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing refresh_token")
	}

	pair, err := h.Svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		l.Warn("refresh_failed", "error", err)
		return authHTTPError(err)
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing refresh_token")
	}

	if err := h.Svc.Logout(ctx, req.RefreshToken); err != nil {
		return authHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) Verify(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.verify")

	if err := h.Svc.VerifyEmail(ctx, c.Param("token")); err != nil {
		l.Warn("verify_failed", "error", err)
		return authHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "verified"})
}

func (h *AuthHandler) RequestVerification(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing email")
	}

	if err := h.Svc.RequestVerification(ctx, req.Email); err != nil {
		return authHTTPError(err)
	}
	// Always accepted, known address or not.
	return c.NoContent(http.StatusAccepted)
}

// UploadAvatar replaces the caller's avatar with the standard square
// crop.
func (h *AuthHandler) UploadAvatar(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.upload_avatar")

	principal, ok := guard.PrincipalFrom(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing file")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable file")
	}
	defer file.Close()

	result, err := h.Media.Upload(ctx, file, principal.UserID)
	if err != nil {
		l.Error("avatar_upload_failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "upload failed")
	}
	avatarURL, err := h.Media.DerivedURL(result.PublicID, media.TransformAvatar)
	if err != nil {
		l.Error("avatar_transform_failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "transform failed")
	}

	if err := h.Store.SetAvatarURL(ctx, principal.UserID, avatarURL); err != nil {
		return authHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"avatar_url": avatarURL})
}

type roleRequest struct {
	Role string `json:"role"`
}

type banRequest struct {
	Banned bool `json:"banned"`
}

func (h *AuthHandler) SetRole(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.set_role")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	var req roleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	role := auth.Role(req.Role)
	if !role.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown role")
	}

	if err := h.Svc.SetRole(ctx, id, role); err != nil {
		l.Error("set_role_failed", "user_id", id, "error", err)
		return authHTTPError(err)
	}
	l.Info("set_role_success", "user_id", id, "role", role)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) SetBanned(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.set_banned")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	var req banRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.SetBanned(ctx, id, req.Banned); err != nil {
		l.Error("set_banned_failed", "user_id", id, "error", err)
		return authHTTPError(err)
	}
	l.Info("set_banned_success", "user_id", id, "banned", req.Banned)
	return c.NoContent(http.StatusNoContent)
}
