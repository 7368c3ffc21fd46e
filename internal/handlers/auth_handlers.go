package handlers

import (
	"net/http"

	"sitecraft/internal/common"
	"sitecraft/internal/services"

	"github.com/labstack/echo/v4"
)

// AuthHandlers handles signup, login and token lifecycle requests
type AuthHandlers struct {
	authService services.AuthService
}

func NewAuthHandlers(authService services.AuthService) *AuthHandlers {
	return &AuthHandlers{authService: authService}
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type SwitchTenantRequest struct {
	TenantID string `json:"tenant_id" validate:"required,uuid"`
}

// Signup handles POST /v1/auth/signup
func (h *AuthHandlers) Signup(c echo.Context) error {
	var req services.SignupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	tokens, err := h.authService.Signup(c.Request().Context(), &req)
	if err != nil {
		return common.SendServiceError(c, "tenant", err)
	}
	return c.JSON(http.StatusCreated, tokens)
}

// Login handles POST /v1/auth/login
func (h *AuthHandlers) Login(c echo.Context) error {
	var req services.LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	tokens, err := h.authService.Login(c.Request().Context(), &req)
	if err != nil {
		return common.SendServiceError(c, "user", err)
	}
	return c.JSON(http.StatusOK, tokens)
}

// Refresh handles POST /v1/auth/refresh
func (h *AuthHandlers) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	tokens, err := h.authService.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return common.SendServiceError(c, "refresh token", err)
	}
	return c.JSON(http.StatusOK, tokens)
}

// Logout handles POST /v1/auth/logout. Unknown tokens are not an error.
func (h *AuthHandlers) Logout(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := h.authService.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return common.SendServiceError(c, "refresh token", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me handles GET /v1/me
func (h *AuthHandlers) Me(c echo.Context) error {
	userID, tenantID, err := identity(c)
	if err != nil {
		return err
	}

	me, err := h.authService.Me(c.Request().Context(), userID, tenantID)
	if err != nil {
		return common.SendServiceError(c, "user", err)
	}
	return c.JSON(http.StatusOK, me)
}

// SwitchTenant handles POST /v1/auth/switch-tenant
func (h *AuthHandlers) SwitchTenant(c echo.Context) error {
	userID, _, err := identity(c)
	if err != nil {
		return err
	}
	var req SwitchTenantRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	tenantID, err := common.ValidateUUID(req.TenantID, "tenant_id")
	if err != nil {
		return common.SendValidationError(c, "tenant_id", err.Error())
	}

	tokens, err := h.authService.SwitchTenant(c.Request().Context(), userID, tenantID)
	if err != nil {
		return common.SendServiceError(c, "membership", err)
	}
	return c.JSON(http.StatusOK, tokens)
}
