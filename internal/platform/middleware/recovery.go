package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery turns a handler panic into a 500 response and logs the stack with
// the request that triggered it.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					rid, _ := c.Get("request_id").(string)
					req := c.Request()

					logger.Error().
						Str("request_id", rid).
						Str("method", req.Method).
						Str("path", req.URL.Path).
						Interface("panic", rec).
						Bytes("stack", debug.Stack()).
						Msg("panic recovered")

					err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
				}
			}()
			return next(c)
		}
	}
}
