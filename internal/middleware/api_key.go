package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

const APIKeyHeader = "X-API-Key"

// APIKeyAuth rejects requests whose X-API-Key does not match key. An empty key disables the check.
// The key may also come as ?api_key= for websocket clients that cannot set headers.
func APIKeyAuth(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if key == "" {
			return next
		}
		return func(c echo.Context) error {
			got := c.Request().Header.Get(APIKeyHeader)
			if got == "" {
				got = c.QueryParam("api_key")
			}
			if got == "" {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"success": false,
					"message": "Unauthorized",
					"error": map[string]string{
						"code": "UNAUTHORIZED",
					},
				})
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"success": false,
					"message": "Invalid API key",
					"error": map[string]string{
						"code": "INVALID_API_KEY",
					},
				})
			}
			return next(c)
		}
	}
}
