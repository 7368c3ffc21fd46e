package middleware

import (
	"log"
	"net/http"
	"time"

	"sitecraft/internal/common"

	"github.com/labstack/echo/v4"
)

// AuditLogger writes one line per mutating request, and per failed request
// of any method, with the caller identity and the final status.
func AuditLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			method := c.Request().Method
			status := c.Response().Status
			if err != nil {
				status = statusOf(err)
			}
			if !shouldAudit(method, status) {
				return err
			}

			ctx := c.Request().Context()
			user, tenant, role := "-", "-", "-"
			if id, ok := common.GetUserIDFromContext(ctx); ok {
				user = id.String()
			}
			if id, ok := common.GetTenantIDFromContext(ctx); ok {
				tenant = id.String()
			}
			if r, ok := common.GetRoleFromContext(ctx); ok {
				role = r
			}

			log.Printf("AUDIT: %s %s status=%d user=%s tenant=%s role=%s ip=%s took=%s",
				method, c.Path(), status, user, tenant, role, c.RealIP(), time.Since(start).Round(time.Millisecond))
			return err
		}
	}
}

func shouldAudit(method string, status int) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return status >= http.StatusBadRequest
}

func statusOf(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return http.StatusInternalServerError
}
