package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/snapfolio/api/internal/repo"
)

type TagHandler struct {
	Tags *repo.TagRepo
}

func (h *TagHandler) Search(c echo.Context) error {
	tags, err := h.Tags.Search(c.Request().Context(), c.QueryParam("q"), parseIntDefault(c.QueryParam("limit"), 50))
	if err != nil {
		return repoHTTPError(err)
	}
	return c.JSON(http.StatusOK, tags)
}

func (h *TagHandler) ImagesByTag(c echo.Context) error {
	title := c.Param("title")
	if title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing tag title")
	}

	offset := parseIntDefault(c.QueryParam("offset"), 0)
	limit := parseIntDefault(c.QueryParam("limit"), 20)

	images, err := h.Tags.ImagesByTag(c.Request().Context(), title, offset, limit)
	if err != nil {
		return repoHTTPError(err)
	}
	return c.JSON(http.StatusOK, images)
}
