package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/snapfolio/api/internal/auth/guard"
	"github.com/snapfolio/api/internal/repo"
	"github.com/snapfolio/api/pkg/logging"
)

type RateHandler struct {
	Rates *repo.RateRepo
}

type rateRequest struct {
	Stars int `json:"stars"`
}

func (h *RateHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "rates.create")

	principal, ok := guard.PrincipalFrom(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := imageID(c)
	if err != nil {
		return err
	}
	var req rateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	rate, err := h.Rates.Create(ctx, id, principal.UserID, req.Stars)
	if err != nil {
		l.Warn("rate_failed", "image_id", id, "error", err)
		return repoHTTPError(err)
	}
	return c.JSON(http.StatusCreated, rate)
}

func (h *RateHandler) ListByImage(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := imageID(c)
	if err != nil {
		return err
	}
	rates, err := h.Rates.ListByImage(ctx, id)
	if err != nil {
		return repoHTTPError(err)
	}
	avg, err := h.Rates.Average(ctx, id)
	if err != nil {
		return repoHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"average": avg,
		"rates":   rates,
	})
}

// Delete is moderator and up; the route declares that.
func (h *RateHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid rate id")
	}
	if err := h.Rates.Delete(ctx, uint(id)); err != nil {
		return repoHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
