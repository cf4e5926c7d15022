package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// Fee roles, granted to non-admin staff.
const (
	roleAccountant = "accountant" // records payments
	roleBursar     = "bursar"     // runs billing, manages fee heads and discounts
)

// staffOnly lets admins through, and staff holding at least one of roles.
// With no roles, only admins pass.
func staffOnly(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin || (len(roles) > 0 && contextHasAnyRole(ctx, roles)) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
