package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/snapfolio/api/pkg/logging"
)

// RequestLogger threads the service logger into the request context and
// writes one structured line per request.
func RequestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			reqLog := log.With(
				"method", req.Method,
				"path", req.URL.Path,
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), reqLog)))

			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				// The error handler has not run yet, so the response
				// status is still unset for plain errors.
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			reqLog.Info("request",
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return err
		}
	}
}
