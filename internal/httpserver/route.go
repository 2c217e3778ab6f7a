// Package httpserver wires the echo router. Every route declares its
// minimum role here in one place; handlers never re-check admission,
// only ownership.
package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/snapfolio/api/internal/auth"
	"github.com/snapfolio/api/internal/auth/guard"
)

type Deps struct {
	AuthService    *auth.Service
	AuthHandler    *AuthHandler
	ImageHandler   *ImageHandler
	CommentHandler *CommentHandler
	RateHandler    *RateHandler
	TagHandler     *TagHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	api := e.Group("/api")

	// Unauthenticated: the auth lifecycle itself.
	authAPI := api.Group("/auth")
	authAPI.POST("/register", d.AuthHandler.Register)
	authAPI.POST("/login", d.AuthHandler.Login)
	authAPI.POST("/refresh", d.AuthHandler.Refresh)
	authAPI.POST("/logout", d.AuthHandler.Logout)
	authAPI.GET("/verify/:token", d.AuthHandler.Verify)
	authAPI.POST("/request-verification", d.AuthHandler.RequestVerification)

	user := api.Group("", guard.Require(d.AuthService, auth.RoleUser))
	moderator := api.Group("", guard.Require(d.AuthService, auth.RoleModerator))
	admin := api.Group("/admin", guard.Require(d.AuthService, auth.RoleAdmin))

	user.PATCH("/users/avatar", d.AuthHandler.UploadAvatar)

	user.POST("/images", d.ImageHandler.Upload)
	user.GET("/images", d.ImageHandler.ListMine)
	user.GET("/images/:id", d.ImageHandler.Get)
	user.PATCH("/images/:id", d.ImageHandler.PatchDescription)
	user.GET("/images/:id/transform", d.ImageHandler.Transform)
	user.GET("/images/:id/qr", d.ImageHandler.QR)
	user.DELETE("/images/:id", d.ImageHandler.Delete)

	user.POST("/images/:id/comments", d.CommentHandler.Create)
	user.GET("/images/:id/comments", d.CommentHandler.ListByImage)
	user.PATCH("/comments/:id", d.CommentHandler.Update)
	moderator.DELETE("/comments/:id", d.CommentHandler.Delete)

	user.POST("/images/:id/rates", d.RateHandler.Create)
	user.GET("/images/:id/rates", d.RateHandler.ListByImage)
	moderator.DELETE("/rates/:id", d.RateHandler.Delete)

	user.GET("/tags", d.TagHandler.Search)
	user.GET("/tags/:title/images", d.TagHandler.ImagesByTag)

	admin.PATCH("/users/:id/role", d.AuthHandler.SetRole)
	admin.PATCH("/users/:id/ban", d.AuthHandler.SetBanned)
}
