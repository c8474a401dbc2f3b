package middleware

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
)

const (
	HeaderRole = "X-Role"

	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// RoleFromCtx returns the role recorded by RequireRole.
func RoleFromCtx(c echo.Context) (string, bool) {
	v, ok := c.Get("role").(string)
	return v, ok
}

// RequireRole admits requests whose X-Role header equals role. The header is
// trusted as is; there is no session behind it.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := strings.ToLower(strings.TrimSpace(c.Request().Header.Get(HeaderRole)))
			if got == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing role"})
			}
			if got != role {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			c.Set("role", got)
			return next(c)
		}
	}
}
