package httpserver

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/snapfolio/api/internal/auth/guard"
	"github.com/snapfolio/api/internal/models"
	"github.com/snapfolio/api/internal/repo"
	"github.com/snapfolio/api/pkg/logging"
)

type CommentHandler struct {
	Comments *repo.CommentRepo
}

type commentRequest struct {
	Body     string     `json:"body"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

func (h *CommentHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "comments.create")

	principal, ok := guard.PrincipalFrom(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := imageID(c)
	if err != nil {
		return err
	}

	var req commentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Body) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "empty comment")
	}

	comment := &models.Comment{
		ImageID:  id,
		AuthorID: principal.UserID,
		ParentID: req.ParentID,
		Body:     req.Body,
	}
	if err := h.Comments.Create(ctx, comment); err != nil {
		l.Warn("comment_create_failed", "error", err)
		return repoHTTPError(err)
	}
	return c.JSON(http.StatusCreated, comment)
}

func (h *CommentHandler) ListByImage(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := imageID(c)
	if err != nil {
		return err
	}
	thread, err := h.Comments.ListByImage(ctx, id)
	if err != nil {
		return repoHTTPError(err)
	}
	return c.JSON(http.StatusOK, thread)
}

func (h *CommentHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	principal, ok := guard.PrincipalFrom(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid comment id")
	}

	var req commentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Body) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "empty comment")
	}

	comment, err := h.Comments.Update(ctx, id, principal.UserID, req.Body)
	if err != nil {
		return repoHTTPError(err)
	}
	return c.JSON(http.StatusOK, comment)
}

// Delete is moderator and up; the route declares that.
func (h *CommentHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "comments.delete")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid comment id")
	}
	if err := h.Comments.Delete(ctx, id); err != nil {
		return repoHTTPError(err)
	}
	l.Info("comment_deleted", "comment_id", id)
	return c.NoContent(http.StatusNoContent)
}
