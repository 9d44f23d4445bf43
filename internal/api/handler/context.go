package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/auth-system/internal/core/domain"
)

// IdentityKey is where the Auth middleware stores the authenticated identity.
const IdentityKey = "identity"

// ctxIdentity returns the identity injected by the Auth middleware. Its
// absence means the route was mounted without the middleware.
func ctxIdentity(c echo.Context) (*domain.Identity, error) {
	identity, _ := c.Get(IdentityKey).(*domain.Identity)
	if identity == nil {
		return nil, domain.ErrUnauthenticated
	}
	return identity, nil
}
