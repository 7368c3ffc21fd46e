package jobs

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"sitecraft/internal/feed"
	"sitecraft/internal/models"
	"sitecraft/internal/services"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
)

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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Job), args.Error(1)
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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
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

type MockContentService struct {
	mock.Mock
}

func (m *MockContentService) Generate(ctx context.Context, site *models.Site) (*services.GeneratedContent, error) {
	args := m.Called(ctx, site)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.GeneratedContent), args.Error(1)
}

type MockWordPressService struct {
	mock.Mock
}

func (m *MockWordPressService) Provision(ctx context.Context, site *models.Site, progress services.ProgressFunc) (*services.ProvisionResult, error) {
	args := m.Called(ctx, site, progress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ProvisionResult), args.Error(1)
}

func (m *MockWordPressService) PublishPages(ctx context.Context, site *models.Site, pages []services.PageContent, progress services.ProgressFunc) (map[string]int, error) {
	args := m.Called(ctx, site, pages, progress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockWordPressService) Delete(ctx context.Context, site *models.Site, progress services.ProgressFunc) error {
	args := m.Called(ctx, site, progress)
	return args.Error(0)
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

type MockFeedSyncer struct {
	mock.Mock
}

func (m *MockFeedSyncer) Sync(ctx context.Context, opts feed.SyncOptions) (*feed.SyncResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*feed.SyncResult), args.Error(1)
}

type mockTaskClient struct {
	mock.Mock
}

func (m *mockTaskClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}
