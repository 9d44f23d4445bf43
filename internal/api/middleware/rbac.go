package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-system/internal/api/handler"
	"github.com/99minutos/auth-system/internal/core/domain"
	"github.com/99minutos/auth-system/internal/core/ports"
)

// AdminOnly must run after Auth. It answers 403, never 401, for an
// authenticated caller without the admin role.
func AdminOnly(gate ports.Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, _ := c.Get(handler.IdentityKey).(*domain.Identity)
			if err := gate.AuthorizeAdmin(identity); err != nil {
				return err
			}
			return next(c)
		}
	}
}
