package handlers

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"sitecraft/internal/models"
	"sitecraft/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Signup(ctx context.Context, req *services.SignupRequest) (*models.TokenResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenResponse), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, req *services.LoginRequest) (*models.TokenResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenResponse), args.Error(1)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenResponse), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, refreshToken string) error {
	return m.Called(ctx, refreshToken).Error(0)
}

func (m *MockAuthService) SwitchTenant(ctx context.Context, userID, tenantID uuid.UUID) (*models.TokenResponse, error) {
	args := m.Called(ctx, userID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenResponse), args.Error(1)
}

func (m *MockAuthService) ValidateToken(ctx context.Context, token string) (*services.TokenClaims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TokenClaims), args.Error(1)
}

func (m *MockAuthService) Me(ctx context.Context, userID, tenantID uuid.UUID) (*services.MeResponse, error) {
	args := m.Called(ctx, userID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.MeResponse), args.Error(1)
}

type MockTenantService struct {
	mock.Mock
}

func (m *MockTenantService) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantService) Update(ctx context.Context, id uuid.UUID, req *services.UpdateTenantRequest) (*models.Tenant, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

type MockMembershipService struct {
	mock.Mock
}

func (m *MockMembershipService) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Membership, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Membership), args.Error(1)
}

func (m *MockMembershipService) Invite(ctx context.Context, tenantID uuid.UUID, actorRole models.Role, req *services.InviteRequest) (*services.InviteResult, error) {
	args := m.Called(ctx, tenantID, actorRole, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.InviteResult), args.Error(1)
}

func (m *MockMembershipService) Accept(ctx context.Context, req *services.AcceptInviteRequest) (*models.Membership, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Membership), args.Error(1)
}

func (m *MockMembershipService) UpdateRole(ctx context.Context, tenantID uuid.UUID, actorRole models.Role, membershipID uuid.UUID, role models.Role) (*models.Membership, error) {
	args := m.Called(ctx, tenantID, actorRole, membershipID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Membership), args.Error(1)
}

func (m *MockMembershipService) Revoke(ctx context.Context, tenantID uuid.UUID, actorRole models.Role, membershipID uuid.UUID) error {
	return m.Called(ctx, tenantID, actorRole, membershipID).Error(0)
}

type MockSiteService struct {
	mock.Mock
}

func (m *MockSiteService) Create(ctx context.Context, tenantID, userID uuid.UUID, req *services.CreateSiteRequest) (*services.SiteWithJob, error) {
	args := m.Called(ctx, tenantID, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SiteWithJob), args.Error(1)
}

func (m *MockSiteService) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Site, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Site), args.Error(1)
}

func (m *MockSiteService) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Site, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Site), args.Error(1)
}

func (m *MockSiteService) Update(ctx context.Context, tenantID, id uuid.UUID, req *services.UpdateSiteRequest) (*models.Site, error) {
	args := m.Called(ctx, tenantID, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Site), args.Error(1)
}

func (m *MockSiteService) Delete(ctx context.Context, tenantID, userID, id uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, tenantID, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockSiteService) RequestGeneration(ctx context.Context, tenantID, userID, siteID uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, tenantID, userID, siteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockSiteService) RequestPublish(ctx context.Context, tenantID, userID, siteID uuid.UUID, versionID *uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, tenantID, userID, siteID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockSiteService) CreateVersion(ctx context.Context, tenantID, userID, siteID uuid.UUID, content json.RawMessage) (*models.SiteVersion, error) {
	args := m.Called(ctx, tenantID, userID, siteID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SiteVersion), args.Error(1)
}

func (m *MockSiteService) ListVersions(ctx context.Context, tenantID, siteID uuid.UUID, limit, offset int) ([]*models.SiteVersion, error) {
	args := m.Called(ctx, tenantID, siteID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SiteVersion), args.Error(1)
}

func (m *MockSiteService) GetVersion(ctx context.Context, tenantID, siteID, versionID uuid.UUID) (*models.SiteVersion, error) {
	args := m.Called(ctx, tenantID, siteID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SiteVersion), args.Error(1)
}

func (m *MockSiteService) Preview(ctx context.Context, tenantID, siteID, versionID uuid.UUID) (string, error) {
	args := m.Called(ctx, tenantID, siteID, versionID)
	return args.String(0), args.Error(1)
}

func (m *MockSiteService) UploadMedia(ctx context.Context, tenantID, siteID uuid.UUID, filename, contentType string, size int64, body io.Reader) (*services.MediaUpload, error) {
	args := m.Called(ctx, tenantID, siteID, filename, contentType, size, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.MediaUpload), args.Error(1)
}

func (m *MockSiteService) ArtifactURL(ctx context.Context, tenantID, siteID, versionID uuid.UUID) (string, error) {
	args := m.Called(ctx, tenantID, siteID, versionID)
	return args.String(0), args.Error(1)
}

type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) Enqueue(ctx context.Context, tenantID uuid.UUID, siteID *uuid.UUID, jobType string, payload interface{}) (*models.Job, error) {
	args := m.Called(ctx, tenantID, siteID, jobType, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockJobService) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockJobService) List(ctx context.Context, tenantID uuid.UUID, siteID *uuid.UUID, limit, offset int) ([]*models.Job, error) {
	args := m.Called(ctx, tenantID, siteID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Job), args.Error(1)
}

func (m *MockJobService) Logs(ctx context.Context, tenantID, id uuid.UUID, limit, offset int) ([]*models.JobLog, error) {
	args := m.Called(ctx, tenantID, id, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.JobLog), args.Error(1)
}

func (m *MockJobService) Log(ctx context.Context, jobID uuid.UUID, level, msg string) {
	m.Called(ctx, jobID, level, msg)
}

type MockBillingService struct {
	mock.Mock
}

func (m *MockBillingService) Plans() []models.PlanConfig {
	args := m.Called()
	return args.Get(0).([]models.PlanConfig)
}

func (m *MockBillingService) CreateCheckout(ctx context.Context, tenantID, userID uuid.UUID, plan string) (string, error) {
	args := m.Called(ctx, tenantID, userID, plan)
	return args.String(0), args.Error(1)
}

func (m *MockBillingService) CreatePortal(ctx context.Context, tenantID uuid.UUID) (string, error) {
	args := m.Called(ctx, tenantID)
	return args.String(0), args.Error(1)
}

func (m *MockBillingService) Cancel(ctx context.Context, tenantID uuid.UUID) error {
	return m.Called(ctx, tenantID).Error(0)
}

func (m *MockBillingService) CurrentSubscription(ctx context.Context, tenantID uuid.UUID) (*services.SubscriptionSummary, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SubscriptionSummary), args.Error(1)
}

func (m *MockBillingService) EnforceSiteLimit(ctx context.Context, tenantID uuid.UUID) error {
	return m.Called(ctx, tenantID).Error(0)
}

func (m *MockBillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	return m.Called(ctx, payload, signature).Error(0)
}

func (m *MockBillingService) SweepLapsed(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

type MockRBACService struct {
	mock.Mock
}

func (m *MockRBACService) RoleFor(ctx context.Context, userID, tenantID uuid.UUID) (models.Role, error) {
	args := m.Called(ctx, userID, tenantID)
	return args.Get(0).(models.Role), args.Error(1)
}

func (m *MockRBACService) UserHasRole(ctx context.Context, userID, tenantID uuid.UUID, min models.Role) (bool, error) {
	args := m.Called(ctx, userID, tenantID, min)
	return args.Bool(0), args.Error(1)
}

func (m *MockRBACService) TenantActive(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID)
	return args.Bool(0), args.Error(1)
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error {
	return p.err
}
