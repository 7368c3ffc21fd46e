package services

import (
	"context"
	"errors"
	"fmt"

	"sitecraft/internal/common"
	"sitecraft/internal/models"
	"sitecraft/internal/repositories"

	"github.com/google/uuid"
)

// RBACService answers authorization questions from tenant memberships.
type RBACService interface {
	// RoleFor returns the caller's role in the tenant, or ErrForbidden without an active membership.
	RoleFor(ctx context.Context, userID, tenantID uuid.UUID) (models.Role, error)
	UserHasRole(ctx context.Context, userID, tenantID uuid.UUID, min models.Role) (bool, error)
	TenantActive(ctx context.Context, tenantID uuid.UUID) (bool, error)
}

type rbacService struct {
	members repositories.MembershipRepository
	tenants repositories.TenantRepository
}

func NewRBACService(members repositories.MembershipRepository, tenants repositories.TenantRepository) RBACService {
	return &rbacService{members: members, tenants: tenants}
}

func (s *rbacService) RoleFor(ctx context.Context, userID, tenantID uuid.UUID) (models.Role, error) {
	m, err := s.members.GetByTenantAndUser(ctx, tenantID, userID)
	if errors.Is(err, common.ErrNotFound) {
		return "", fmt.Errorf("%w: not a member of this tenant", common.ErrForbidden)
	}
	if err != nil {
		return "", err
	}
	if m.Status != models.MembershipActive {
		return "", fmt.Errorf("%w: membership is %s", common.ErrForbidden, m.Status)
	}
	return m.Role, nil
}

func (s *rbacService) UserHasRole(ctx context.Context, userID, tenantID uuid.UUID, min models.Role) (bool, error) {
	role, err := s.RoleFor(ctx, userID, tenantID)
	if errors.Is(err, common.ErrForbidden) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return role.AtLeast(min), nil
}

func (s *rbacService) TenantActive(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return t.IsActive(), nil
}
