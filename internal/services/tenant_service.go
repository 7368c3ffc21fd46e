package services

import (
	"context"
	"fmt"
	"strings"

	"sitecraft/internal/common"
	"sitecraft/internal/models"
	"sitecraft/internal/repositories"

	"github.com/google/uuid"
)

type TenantService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	Update(ctx context.Context, id uuid.UUID, req *UpdateTenantRequest) (*models.Tenant, error)
}

type tenantService struct {
	tenantRepo repositories.TenantRepository
}

func NewTenantService(tenantRepo repositories.TenantRepository) TenantService {
	return &tenantService{tenantRepo: tenantRepo}
}

// UpdateTenantRequest only carries the display name; slug, plan and status are not user editable.
type UpdateTenantRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

func (s *tenantService) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.tenantRepo.GetByID(ctx, id)
}

func (s *tenantService) Update(ctx context.Context, id uuid.UUID, req *UpdateTenantRequest) (*models.Tenant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrInvalidInput)
	}

	existing, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	existing.Name = name

	if err := s.tenantRepo.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}
