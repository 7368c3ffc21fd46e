package services

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"sitecraft/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v76"
)

type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) CreateWithOwner(ctx context.Context, tenant *models.Tenant, user *models.User, membership *models.Membership) error {
	args := m.Called(ctx, tenant, user, membership)
	return args.Error(0)
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) GetByStripeCustomer(ctx context.Context, customerID string) (*models.Tenant, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantRepository) Update(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) UpdateBilling(ctx context.Context, id uuid.UUID, plan, status string) error {
	args := m.Called(ctx, id, plan, status)
	return args.Error(0)
}

func (m *MockTenantRepository) SetStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error {
	args := m.Called(ctx, id, customerID)
	return args.Error(0)
}

func (m *MockTenantRepository) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*models.Tenant), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

type MockMembershipRepository struct {
	mock.Mock
}

func (m *MockMembershipRepository) Create(ctx context.Context, mem *models.Membership) error {
	args := m.Called(ctx, mem)
	return args.Error(0)
}

func (m *MockMembershipRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Membership, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Membership), args.Error(1)
}

func (m *MockMembershipRepository) GetByTenantAndUser(ctx context.Context, tenantID, userID uuid.UUID) (*models.Membership, error) {
	args := m.Called(ctx, tenantID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Membership), args.Error(1)
}

func (m *MockMembershipRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Membership, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	return args.Get(0).([]*models.Membership), args.Error(1)
}

func (m *MockMembershipRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*models.Membership), args.Error(1)
}

func (m *MockMembershipRepository) UpdateRole(ctx context.Context, tenantID, id uuid.UUID, role models.Role) error {
	args := m.Called(ctx, tenantID, id, role)
	return args.Error(0)
}

func (m *MockMembershipRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string) error {
	args := m.Called(ctx, tenantID, id, status)
	return args.Error(0)
}

func (m *MockMembershipRepository) CountActiveOwners(ctx context.Context, tenantID uuid.UUID) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

type MockSiteRepository struct {
	mock.Mock
}

func (m *MockSiteRepository) Create(ctx context.Context, site *models.Site) error {
	args := m.Called(ctx, site)
	return args.Error(0)
}

func (m *MockSiteRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Site, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Site), args.Error(1)
}

func (m *MockSiteRepository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Site, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	return args.Get(0).([]*models.Site), args.Error(1)
}

func (m *MockSiteRepository) CountActive(ctx context.Context, tenantID uuid.UUID) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

func (m *MockSiteRepository) Update(ctx context.Context, site *models.Site) error {
	args := m.Called(ctx, site)
	return args.Error(0)
}

func (m *MockSiteRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string) error {
	args := m.Called(ctx, tenantID, id, status)
	return args.Error(0)
}

func (m *MockSiteRepository) SetProvisioned(ctx context.Context, tenantID, id uuid.UUID, wpPath, wpURL, adminUser string) error {
	args := m.Called(ctx, tenantID, id, wpPath, wpURL, adminUser)
	return args.Error(0)
}

func (m *MockSiteRepository) SetPublished(ctx context.Context, tenantID, id, versionID uuid.UUID, pageIDs map[string]int) error {
	args := m.Called(ctx, tenantID, id, versionID, pageIDs)
	return args.Error(0)
}

func (m *MockSiteRepository) SetStatusByTenant(ctx context.Context, tenantID uuid.UUID, from, to string) (int64, error) {
	args := m.Called(ctx, tenantID, from, to)
	return args.Get(0).(int64), args.Error(1)
}

type MockSiteVersionRepository struct {
	mock.Mock
}

func (m *MockSiteVersionRepository) Create(ctx context.Context, v *models.SiteVersion) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockSiteVersionRepository) GetByID(ctx context.Context, tenantID, siteID, id uuid.UUID) (*models.SiteVersion, error) {
	args := m.Called(ctx, tenantID, siteID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SiteVersion), args.Error(1)
}

func (m *MockSiteVersionRepository) Latest(ctx context.Context, tenantID, siteID uuid.UUID) (*models.SiteVersion, error) {
	args := m.Called(ctx, tenantID, siteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SiteVersion), args.Error(1)
}

func (m *MockSiteVersionRepository) List(ctx context.Context, tenantID, siteID uuid.UUID, limit, offset int) ([]*models.SiteVersion, error) {
	args := m.Called(ctx, tenantID, siteID, limit, offset)
	return args.Get(0).([]*models.SiteVersion), args.Error(1)
}

func (m *MockSiteVersionRepository) MarkPublished(ctx context.Context, tenantID, id uuid.UUID, artifactKey string) error {
	args := m.Called(ctx, tenantID, id, artifactKey)
	return args.Error(0)
}

func (m *MockSiteVersionRepository) MarkFailed(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Create(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockJobRepository) GetForTenant(ctx context.Context, tenantID, id uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockJobRepository) List(ctx context.Context, tenantID uuid.UUID, siteID *uuid.UUID, limit, offset int) ([]*models.Job, error) {
	args := m.Called(ctx, tenantID, siteID, limit, offset)
	return args.Get(0).([]*models.Job), args.Error(1)
}

func (m *MockJobRepository) SetTaskID(ctx context.Context, id uuid.UUID, taskID string) error {
	args := m.Called(ctx, id, taskID)
	return args.Error(0)
}

func (m *MockJobRepository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockJobRepository) MarkSucceeded(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	args := m.Called(ctx, id, result)
	return args.Error(0)
}

func (m *MockJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

func (m *MockJobRepository) ListStale(ctx context.Context, olderThan time.Time) ([]*models.Job, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).([]*models.Job), args.Error(1)
}

type MockJobLogRepository struct {
	mock.Mock
}

func (m *MockJobLogRepository) Create(ctx context.Context, entry *models.JobLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockJobLogRepository) ListByJob(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]*models.JobLog, error) {
	args := m.Called(ctx, jobID, limit, offset)
	return args.Get(0).([]*models.JobLog), args.Error(1)
}

type MockStripeSubscriptionRepository struct {
	mock.Mock
}

func (m *MockStripeSubscriptionRepository) Upsert(ctx context.Context, sub *models.StripeSubscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockStripeSubscriptionRepository) GetByTenant(ctx context.Context, tenantID uuid.UUID) (*models.StripeSubscription, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StripeSubscription), args.Error(1)
}

func (m *MockStripeSubscriptionRepository) GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.StripeSubscription, error) {
	args := m.Called(ctx, stripeSubscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StripeSubscription), args.Error(1)
}

func (m *MockStripeSubscriptionRepository) ListByStatus(ctx context.Context, statuses []string) ([]*models.StripeSubscription, error) {
	args := m.Called(ctx, statuses)
	return args.Get(0).([]*models.StripeSubscription), args.Error(1)
}

func (m *MockStripeSubscriptionRepository) UpdateStatus(ctx context.Context, stripeSubscriptionID, status string) error {
	args := m.Called(ctx, stripeSubscriptionID, status)
	return args.Error(0)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) SetRefreshToken(ctx context.Context, tokenHash string, rec *models.RefreshToken, ttl time.Duration) error {
	args := m.Called(ctx, tokenHash, rec, ttl)
	return args.Error(0)
}

func (m *MockCacheService) GetRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefreshToken), args.Error(1)
}

func (m *MockCacheService) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *MockCacheService) GetPreview(ctx context.Context, tenantID, siteID, versionID uuid.UUID) (string, error) {
	args := m.Called(ctx, tenantID, siteID, versionID)
	return args.String(0), args.Error(1)
}

func (m *MockCacheService) SetPreview(ctx context.Context, tenantID, siteID, versionID uuid.UUID, html string, ttl time.Duration) error {
	args := m.Called(ctx, tenantID, siteID, versionID, html, ttl)
	return args.Error(0)
}

func (m *MockCacheService) InvalidateSitePreviews(ctx context.Context, tenantID, siteID uuid.UUID) error {
	args := m.Called(ctx, tenantID, siteID)
	return args.Error(0)
}

func (m *MockCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCacheService) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockStripeGateway struct {
	mock.Mock
}

func (m *MockStripeGateway) CreateCustomer(ctx context.Context, email, name string, tenantID uuid.UUID) (string, error) {
	args := m.Called(ctx, email, name, tenantID)
	return args.String(0), args.Error(1)
}

func (m *MockStripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func (m *MockStripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	args := m.Called(ctx, customerID, returnURL)
	return args.String(0), args.Error(1)
}

func (m *MockStripeGateway) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

func (m *MockStripeGateway) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	args := m.Called(payload, signature)
	return args.Get(0).(stripe.Event), args.Error(1)
}

type MockTaskEnqueuer struct {
	mock.Mock
}

func (m *MockTaskEnqueuer) EnqueueJob(ctx context.Context, job *models.Job) (string, error) {
	args := m.Called(ctx, job)
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
	return args.Get(0).([]*models.Job), args.Error(1)
}

func (m *MockJobService) Logs(ctx context.Context, tenantID, id uuid.UUID, limit, offset int) ([]*models.JobLog, error) {
	args := m.Called(ctx, tenantID, id, limit, offset)
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
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *MockBillingService) CurrentSubscription(ctx context.Context, tenantID uuid.UUID) (*SubscriptionSummary, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SubscriptionSummary), args.Error(1)
}

func (m *MockBillingService) EnforceSiteLimit(ctx context.Context, tenantID uuid.UUID) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *MockBillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	args := m.Called(ctx, payload, signature)
	return args.Error(0)
}

func (m *MockBillingService) SweepLapsed(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

type MockArtifactStore struct {
	mock.Mock
}

func (m *MockArtifactStore) EnsureBucket(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockArtifactStore) PutObject(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, key, reader, size, contentType)
	return args.Error(0)
}

func (m *MockArtifactStore) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockArtifactStore) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockArtifactStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
