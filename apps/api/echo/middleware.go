package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core/account"
)

// roleMiddleware only lets accounts holding one of roles through.
func roleMiddleware(roles ...account.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			acc, err := getContextAccount(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context account")
			}
			for _, role := range roles {
				if acc.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(account.RoleAdmin)
}
