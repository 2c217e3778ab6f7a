package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/snapfolio/api/internal/auth"
	"github.com/snapfolio/api/internal/auth/guard"
	"github.com/snapfolio/api/internal/media"
	"github.com/snapfolio/api/internal/models"
	"github.com/snapfolio/api/internal/qr"
	"github.com/snapfolio/api/internal/repo"
	"github.com/snapfolio/api/pkg/logging"
)

type ImageHandler struct {
	Images *repo.ImageRepo
	Rates  *repo.RateRepo
	Media  media.Store
}

type imageResponse struct {
	models.Image
	AverageRating float64 `json:"average_rating"`
}

func parseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func imageID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid image id")
	}
	return id, nil
}

// canModify reports whether the principal may mutate the image: its
// owner always, administrators everywhere.
func canModify(p *auth.Principal, image *models.Image) bool {
	return p.UserID == image.OwnerID || p.Role.AtLeast(auth.RoleAdmin)
}

func (h *ImageHandler) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "images.upload")

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

	var tags []string
	if raw := strings.TrimSpace(c.FormValue("tags")); raw != "" {
		tags = strings.Split(raw, ",")
	}

	result, err := h.Media.Upload(ctx, file, principal.UserID)
	if err != nil {
		l.Error("upload_failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "upload failed")
	}

	image := &models.Image{
		OwnerID:     principal.UserID,
		PublicID:    result.PublicID,
		URL:         result.URL,
		Description: c.FormValue("description"),
	}
	if err := h.Images.Create(ctx, image, tags); err != nil {
		// The asset is already in the media store; drop it so a
		// rejected upload leaves nothing behind.
		if delErr := h.Media.Delete(ctx, result.PublicID); delErr != nil {
			l.Error("orphan_cleanup_failed", "public_id", result.PublicID, "error", delErr)
		}
		l.Warn("image_create_failed", "error", err)
		return repoHTTPError(err)
	}

	l.Info("upload_success", "image_id", image.ID, "owner_id", principal.UserID)
	return c.JSON(http.StatusCreated, image)
}

func (h *ImageHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := imageID(c)
	if err != nil {
		return err
	}
	image, err := h.Images.Get(ctx, id)
	if err != nil {
		return repoHTTPError(err)
	}
	avg, err := h.Rates.Average(ctx, id)
	if err != nil {
		return repoHTTPError(err)
	}
	return c.JSON(http.StatusOK, imageResponse{Image: *image, AverageRating: avg})
}

func (h *ImageHandler) ListMine(c echo.Context) error {
	ctx := c.Request().Context()

	principal, ok := guard.PrincipalFrom(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	offset := parseIntDefault(c.QueryParam("offset"), 0)
	limit := parseIntDefault(c.QueryParam("limit"), 20)
	if limit > 100 {
		limit = 100
	}

	total, items, err := h.Images.ListByOwner(ctx, principal.UserID, offset, limit)
	if err != nil {
		return repoHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"total": total,
		"items": items,
	})
}

type descriptionRequest struct {
	Description string `json:"description"`
}

func (h *ImageHandler) PatchDescription(c echo.Context) error {
	ctx := c.Request().Context()

	principal, ok := guard.PrincipalFrom(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := imageID(c)
	if err != nil {
		return err
	}
	var req descriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	image, err := h.Images.Get(ctx, id)
	if err != nil {
		return repoHTTPError(err)
	}
	if !canModify(principal, image) {
		return echo.NewHTTPError(http.StatusForbidden, "not the owner")
	}

	updated, err := h.Images.UpdateDescription(ctx, id, req.Description)
	if err != nil {
		return repoHTTPError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

// Transform returns the delivery URL for a named transformation set
// applied to the image. Nothing is stored; Cloudinary derives on
// delivery.
func (h *ImageHandler) Transform(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := imageID(c)
	if err != nil {
		return err
	}
	set := c.QueryParam("set")
	if set == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing transformation set")
	}

	image, err := h.Images.Get(ctx, id)
	if err != nil {
		return repoHTTPError(err)
	}

	url, err := h.Media.DerivedURL(image.PublicID, set)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown transformation set")
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

// QR renders the image's URL as a PNG QR code. An optional set
// parameter points the code at a transformed rendition instead.
func (h *ImageHandler) QR(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := imageID(c)
	if err != nil {
		return err
	}
	image, err := h.Images.Get(ctx, id)
	if err != nil {
		return repoHTTPError(err)
	}

	url := image.URL
	if set := c.QueryParam("set"); set != "" {
		url, err = h.Media.DerivedURL(image.PublicID, set)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown transformation set")
		}
	}

	png, err := qr.PNG(url, parseIntDefault(c.QueryParam("size"), 0))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid qr size")
	}
	return c.Blob(http.StatusOK, "image/png", png)
}

func (h *ImageHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "images.delete")

	principal, ok := guard.PrincipalFrom(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := imageID(c)
	if err != nil {
		return err
	}

	image, err := h.Images.Get(ctx, id)
	if err != nil {
		return repoHTTPError(err)
	}
	if !canModify(principal, image) {
		return echo.NewHTTPError(http.StatusForbidden, "not the owner")
	}

	if err := h.Images.Delete(ctx, id); err != nil {
		return repoHTTPError(err)
	}
	if err := h.Media.Delete(ctx, image.PublicID); err != nil {
		// Row is gone; the stray asset is logged, not surfaced.
		l.Error("media_delete_failed", "public_id", image.PublicID, "error", err)
	}

	l.Info("delete_success", "image_id", id)
	return c.NoContent(http.StatusNoContent)
}
