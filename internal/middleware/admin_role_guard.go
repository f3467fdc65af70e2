package middleware

import (
	"storefront/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// contextに入っているroleがADMINかどうかを確認します。
func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || role == "" {
				return unauthorized(c)
			}

			//USERは拒否、ADMINだけ許可
			if model.Role(role) != model.RoleAdmin {
				return forbidden(c, "admin only")
			}

			return next(c)
		}
	}
}
