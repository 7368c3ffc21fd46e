package middleware

import (
	"context"
	"errors"
	"net/http"

	"sitecraft/internal/common"
	"sitecraft/internal/models"
	"sitecraft/internal/services"

	"github.com/labstack/echo/v4"
)

type RBACMiddleware struct {
	rbacService services.RBACService
}

func NewRBACMiddleware(rbacService services.RBACService) *RBACMiddleware {
	return &RBACMiddleware{
		rbacService: rbacService,
	}
}

// RequireMember resolves the caller's current role in the token tenant and
// stores it on the request context. Roles are read from the membership so a
// demotion takes effect before the token expires.
func (m *RBACMiddleware) RequireMember() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			userID, ok := common.GetUserIDFromContext(ctx)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
			}
			tenantID, ok := common.GetTenantIDFromContext(ctx)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
			}

			role, err := m.rbacService.RoleFor(ctx, userID, tenantID)
			if errors.Is(err, common.ErrForbidden) {
				return echo.NewHTTPError(http.StatusForbidden, "Not a member of this tenant")
			}
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Error checking membership")
			}

			ctx = context.WithValue(ctx, common.RoleKey, string(role))
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireRole rejects callers whose role ranks below min. It must run after RequireMember.
func (m *RBACMiddleware) RequireRole(min models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := common.GetRoleFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
			}
			if !models.Role(role).AtLeast(min) {
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
			}
			return next(c)
		}
	}
}

// RequireActiveTenant answers 402 to mutating requests from a suspended tenant.
func (m *RBACMiddleware) RequireActiveTenant() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			ctx := c.Request().Context()
			tenantID, ok := common.GetTenantIDFromContext(ctx)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Tenant not found")
			}
			active, err := m.rbacService.TenantActive(ctx, tenantID)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Error checking tenant status")
			}
			if !active {
				return c.JSON(http.StatusPaymentRequired, common.CreateErrorResponse(
					"PAYMENT_REQUIRED", "Tenant is suspended; update billing to make changes", nil))
			}
			return next(c)
		}
	}
}
