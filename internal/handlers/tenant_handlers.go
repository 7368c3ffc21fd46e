package handlers

import (
	"net/http"

	"sitecraft/internal/common"
	"sitecraft/internal/models"
	"sitecraft/internal/services"

	"github.com/labstack/echo/v4"
)

// TenantHandlers serves the caller's tenant and its memberships.
type TenantHandlers struct {
	tenantService     services.TenantService
	membershipService services.MembershipService
}

func NewTenantHandlers(tenantService services.TenantService, membershipService services.MembershipService) *TenantHandlers {
	return &TenantHandlers{
		tenantService:     tenantService,
		membershipService: membershipService,
	}
}

type UpdateMemberRequest struct {
	Role models.Role `json:"role" validate:"required,oneof=owner admin editor viewer"`
}

// GetTenant handles GET /v1/tenant
func (h *TenantHandlers) GetTenant(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}

	tenant, err := h.tenantService.GetByID(c.Request().Context(), tenantID)
	if err != nil {
		return common.SendServiceError(c, "tenant", err)
	}
	return c.JSON(http.StatusOK, tenant)
}

// UpdateTenant handles PUT /v1/tenant
func (h *TenantHandlers) UpdateTenant(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	var req services.UpdateTenantRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	tenant, err := h.tenantService.Update(c.Request().Context(), tenantID, &req)
	if err != nil {
		return common.SendServiceError(c, "tenant", err)
	}
	return c.JSON(http.StatusOK, tenant)
}

// ListMembers handles GET /v1/members
func (h *TenantHandlers) ListMembers(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	limit, offset := common.ParsePagination(c)

	members, err := h.membershipService.List(c.Request().Context(), tenantID, limit, offset)
	if err != nil {
		return common.SendServiceError(c, "members", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"members": members,
		"limit":   limit,
		"offset":  offset,
	})
}

// InviteMember handles POST /v1/members
func (h *TenantHandlers) InviteMember(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	var req services.InviteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.membershipService.Invite(c.Request().Context(), tenantID, callerRole(c), &req)
	if err != nil {
		return common.SendServiceError(c, "membership", err)
	}
	return c.JSON(http.StatusCreated, res)
}

// UpdateMember handles PUT /v1/members/:id
func (h *TenantHandlers) UpdateMember(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateMemberRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	m, err := h.membershipService.UpdateRole(c.Request().Context(), tenantID, callerRole(c), id, req.Role)
	if err != nil {
		return common.SendServiceError(c, "membership", err)
	}
	return c.JSON(http.StatusOK, m)
}

// RevokeMember handles DELETE /v1/members/:id
func (h *TenantHandlers) RevokeMember(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.membershipService.Revoke(c.Request().Context(), tenantID, callerRole(c), id); err != nil {
		return common.SendServiceError(c, "membership", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AcceptInvitation handles POST /v1/invitations/accept. The invite token authenticates the call.
func (h *TenantHandlers) AcceptInvitation(c echo.Context) error {
	var req services.AcceptInviteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	m, err := h.membershipService.Accept(c.Request().Context(), &req)
	if err != nil {
		return common.SendServiceError(c, "invitation", err)
	}
	return c.JSON(http.StatusOK, m)
}
