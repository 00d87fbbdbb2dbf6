// Package middleware provides request processing shared by handlers:
// authentication, role checks, rate limiting and response caching.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-backend/internal/utils"
)

// JWTAuth validates a Bearer access token and stores the resolved
// principal on the context.  Requests without a valid token get 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			p, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, utils.ErrInvalidRole) {
					msg = "invalid role"
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
			}
			SetPrincipal(c, p)
			return next(c)
		}
	}
}
