package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"sitecraft/internal/caching"
	"sitecraft/internal/common"
	"sitecraft/internal/compiler"
	"sitecraft/internal/models"
	"sitecraft/internal/repositories"

	"github.com/google/uuid"
)

const (
	previewTTL      = 10 * time.Minute
	artifactURLTTL  = 15 * time.Minute
	mediaURLTTL     = 7 * 24 * time.Hour
	MaxMediaSize    = 10 << 20
	maxBusinessText = 2000
)

var allowedMediaTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

type CreateSiteRequest struct {
	Name     string                 `json:"name" validate:"required,max=120"`
	Slug     string                 `json:"slug,omitempty" validate:"omitempty,max=63"`
	Domain   string                 `json:"domain,omitempty" validate:"omitempty,fqdn"`
	Business models.BusinessProfile `json:"business"`
}

type UpdateSiteRequest struct {
	Name     *string                 `json:"name,omitempty" validate:"omitempty,max=120"`
	Domain   *string                 `json:"domain,omitempty"`
	Business *models.BusinessProfile `json:"business,omitempty"`
}

type SiteWithJob struct {
	Site *models.Site `json:"site"`
	Job  *models.Job  `json:"job"`
}

type MediaUpload struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type SiteService interface {
	Create(ctx context.Context, tenantID, userID uuid.UUID, req *CreateSiteRequest) (*SiteWithJob, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Site, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Site, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, req *UpdateSiteRequest) (*models.Site, error)
	Delete(ctx context.Context, tenantID, userID, id uuid.UUID) (*models.Job, error)
	RequestGeneration(ctx context.Context, tenantID, userID, siteID uuid.UUID) (*models.Job, error)
	RequestPublish(ctx context.Context, tenantID, userID, siteID uuid.UUID, versionID *uuid.UUID) (*models.Job, error)
	CreateVersion(ctx context.Context, tenantID, userID, siteID uuid.UUID, content json.RawMessage) (*models.SiteVersion, error)
	ListVersions(ctx context.Context, tenantID, siteID uuid.UUID, limit, offset int) ([]*models.SiteVersion, error)
	GetVersion(ctx context.Context, tenantID, siteID, versionID uuid.UUID) (*models.SiteVersion, error)
	Preview(ctx context.Context, tenantID, siteID, versionID uuid.UUID) (string, error)
	UploadMedia(ctx context.Context, tenantID, siteID uuid.UUID, filename, contentType string, size int64, body io.Reader) (*MediaUpload, error)
	ArtifactURL(ctx context.Context, tenantID, siteID, versionID uuid.UUID) (string, error)
}

type siteService struct {
	tenants  repositories.TenantRepository
	sites    repositories.SiteRepository
	versions repositories.SiteVersionRepository
	billing  BillingService
	jobs     JobService
	store    ArtifactStore
	cache    caching.CacheService
	// mediaBaseURL, when set, serves media from a public bucket instead of presigned links.
	mediaBaseURL string
}

func NewSiteService(
	tenants repositories.TenantRepository,
	sites repositories.SiteRepository,
	versions repositories.SiteVersionRepository,
	billing BillingService,
	jobs JobService,
	store ArtifactStore,
	cache caching.CacheService,
	mediaBaseURL string,
) SiteService {
	return &siteService{
		tenants:      tenants,
		sites:        sites,
		versions:     versions,
		billing:      billing,
		jobs:         jobs,
		store:        store,
		cache:        cache,
		mediaBaseURL: strings.TrimRight(mediaBaseURL, "/"),
	}
}

func (s *siteService) ensureTenantActive(ctx context.Context, tenantID uuid.UUID) error {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant.Status != models.TenantStatusActive {
		return fmt.Errorf("%w: tenant is %s", common.ErrSuspended, tenant.Status)
	}
	return nil
}

// liveSite loads a site that can still be changed.
func (s *siteService) liveSite(ctx context.Context, tenantID, id uuid.UUID) (*models.Site, error) {
	site, err := s.sites.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	switch site.Status {
	case models.SiteStatusDeleted:
		return nil, fmt.Errorf("%w: site %s", common.ErrNotFound, id)
	case models.SiteStatusSuspended:
		return nil, fmt.Errorf("%w: site is suspended", common.ErrSuspended)
	}
	return site, nil
}

func validateBusiness(b *models.BusinessProfile) error {
	if len(b.Description) > maxBusinessText {
		return fmt.Errorf("%w: business.description exceeds %d characters", common.ErrInvalidInput, maxBusinessText)
	}
	if len(b.Keywords) > 20 {
		return fmt.Errorf("%w: at most 20 business.keywords", common.ErrInvalidInput)
	}
	return nil
}

func (s *siteService) Create(ctx context.Context, tenantID, userID uuid.UUID, req *CreateSiteRequest) (*SiteWithJob, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrInvalidInput)
	}
	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		slug = common.Slugify(name)
	}
	if err := common.ValidateSlug(slug, "slug"); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if err := validateBusiness(&req.Business); err != nil {
		return nil, err
	}

	if err := s.billing.EnforceSiteLimit(ctx, tenantID); err != nil {
		return nil, err
	}

	site := &models.Site{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     name,
		Slug:     slug,
		Domain:   strings.ToLower(strings.TrimSpace(req.Domain)),
		Status:   models.SiteStatusPending,
		Business: req.Business,
	}
	if err := s.sites.Create(ctx, site); err != nil {
		return nil, err
	}

	job, err := s.jobs.Enqueue(ctx, tenantID, &site.ID, models.JobTypeProvision, models.JobPayload{SiteID: site.ID, RequestedBy: &userID})
	if err != nil {
		if markErr := s.sites.UpdateStatus(ctx, tenantID, site.ID, models.SiteStatusFailed); markErr != nil {
			log.Printf("ERROR: mark site %s failed: %v", site.ID, markErr)
		}
		return nil, err
	}
	return &SiteWithJob{Site: site, Job: job}, nil
}

func (s *siteService) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Site, error) {
	site, err := s.sites.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if site.Status == models.SiteStatusDeleted {
		return nil, fmt.Errorf("%w: site %s", common.ErrNotFound, id)
	}
	return site, nil
}

func (s *siteService) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Site, error) {
	return s.sites.List(ctx, tenantID, limit, offset)
}

func (s *siteService) Update(ctx context.Context, tenantID, id uuid.UUID, req *UpdateSiteRequest) (*models.Site, error) {
	if err := s.ensureTenantActive(ctx, tenantID); err != nil {
		return nil, err
	}
	site, err := s.liveSite(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", common.ErrInvalidInput)
		}
		site.Name = name
	}
	if req.Domain != nil {
		site.Domain = strings.ToLower(strings.TrimSpace(*req.Domain))
	}
	if req.Business != nil {
		if err := validateBusiness(req.Business); err != nil {
			return nil, err
		}
		site.Business = *req.Business
	}

	if err := s.sites.Update(ctx, site); err != nil {
		return nil, err
	}
	return site, nil
}

func (s *siteService) Delete(ctx context.Context, tenantID, userID, id uuid.UUID) (*models.Job, error) {
	site, err := s.sites.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if site.Status == models.SiteStatusDeleted {
		return nil, fmt.Errorf("%w: site %s", common.ErrNotFound, id)
	}

	if err := s.sites.UpdateStatus(ctx, tenantID, id, models.SiteStatusDeleted); err != nil {
		return nil, err
	}
	if err := s.cache.InvalidateSitePreviews(ctx, tenantID, id); err != nil {
		log.Printf("WARN: invalidate previews for site %s: %v", id, err)
	}
	return s.jobs.Enqueue(ctx, tenantID, &id, models.JobTypeDelete, models.JobPayload{SiteID: id, RequestedBy: &userID})
}

func (s *siteService) RequestGeneration(ctx context.Context, tenantID, userID, siteID uuid.UUID) (*models.Job, error) {
	if err := s.ensureTenantActive(ctx, tenantID); err != nil {
		return nil, err
	}
	if _, err := s.liveSite(ctx, tenantID, siteID); err != nil {
		return nil, err
	}
	return s.jobs.Enqueue(ctx, tenantID, &siteID, models.JobTypeGenerate, models.JobPayload{SiteID: siteID, RequestedBy: &userID})
}

func (s *siteService) RequestPublish(ctx context.Context, tenantID, userID, siteID uuid.UUID, versionID *uuid.UUID) (*models.Job, error) {
	if err := s.ensureTenantActive(ctx, tenantID); err != nil {
		return nil, err
	}
	site, err := s.liveSite(ctx, tenantID, siteID)
	if err != nil {
		return nil, err
	}
	if !site.IsProvisioned() {
		return nil, fmt.Errorf("%w: site is %s, not yet provisioned", common.ErrConflict, site.Status)
	}

	var version *models.SiteVersion
	if versionID != nil {
		version, err = s.versions.GetByID(ctx, tenantID, siteID, *versionID)
	} else {
		version, err = s.versions.Latest(ctx, tenantID, siteID)
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: site has no versions yet", common.ErrConflict)
		}
	}
	if err != nil {
		return nil, err
	}

	return s.jobs.Enqueue(ctx, tenantID, &siteID, models.JobTypePublish, models.JobPayload{
		SiteID:      siteID,
		VersionID:   &version.ID,
		RequestedBy: &userID,
	})
}

func (s *siteService) CreateVersion(ctx context.Context, tenantID, userID, siteID uuid.UUID, content json.RawMessage) (*models.SiteVersion, error) {
	if err := s.ensureTenantActive(ctx, tenantID); err != nil {
		return nil, err
	}
	site, err := s.liveSite(ctx, tenantID, siteID)
	if err != nil {
		return nil, err
	}

	doc, err := compiler.ParseDocument(content)
	if err != nil {
		return nil, err
	}
	html, err := compiler.RenderSite(doc, site.Name)
	if err != nil {
		return nil, err
	}

	v := &models.SiteVersion{
		ID:        uuid.New(),
		SiteID:    siteID,
		TenantID:  tenantID,
		Content:   *doc,
		Source:    models.VersionSourceManual,
		Status:    models.VersionStatusDraft,
		HTML:      html,
		CreatedBy: &userID,
	}
	if err := s.versions.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *siteService) ListVersions(ctx context.Context, tenantID, siteID uuid.UUID, limit, offset int) ([]*models.SiteVersion, error) {
	if _, err := s.Get(ctx, tenantID, siteID); err != nil {
		return nil, err
	}
	return s.versions.List(ctx, tenantID, siteID, limit, offset)
}

func (s *siteService) GetVersion(ctx context.Context, tenantID, siteID, versionID uuid.UUID) (*models.SiteVersion, error) {
	return s.versions.GetByID(ctx, tenantID, siteID, versionID)
}

func (s *siteService) Preview(ctx context.Context, tenantID, siteID, versionID uuid.UUID) (string, error) {
	cached, err := s.cache.GetPreview(ctx, tenantID, siteID, versionID)
	if err != nil {
		log.Printf("WARN: preview cache read: %v", err)
	}
	if cached != "" {
		return cached, nil
	}

	site, err := s.Get(ctx, tenantID, siteID)
	if err != nil {
		return "", err
	}
	v, err := s.versions.GetByID(ctx, tenantID, siteID, versionID)
	if err != nil {
		return "", err
	}

	html, err := compiler.RenderSite(&v.Content, site.Name)
	if err != nil {
		return "", err
	}
	if err := s.cache.SetPreview(ctx, tenantID, siteID, versionID, html, previewTTL); err != nil {
		log.Printf("WARN: preview cache write: %v", err)
	}
	return html, nil
}

func (s *siteService) UploadMedia(ctx context.Context, tenantID, siteID uuid.UUID, filename, contentType string, size int64, body io.Reader) (*MediaUpload, error) {
	if err := s.ensureTenantActive(ctx, tenantID); err != nil {
		return nil, err
	}
	if _, err := s.liveSite(ctx, tenantID, siteID); err != nil {
		return nil, err
	}
	if !allowedMediaTypes[contentType] {
		return nil, fmt.Errorf("%w: unsupported media type %q", common.ErrInvalidInput, contentType)
	}
	if size <= 0 || size > MaxMediaSize {
		return nil, fmt.Errorf("%w: file must be between 1 byte and %d bytes", common.ErrInvalidInput, MaxMediaSize)
	}

	key := MediaKey(tenantID, siteID, filename)
	if err := s.store.PutObject(ctx, key, body, size, contentType); err != nil {
		return nil, fmt.Errorf("store media: %w", err)
	}

	if s.mediaBaseURL != "" {
		return &MediaUpload{Key: key, URL: s.mediaBaseURL + "/" + key}, nil
	}
	url, err := s.store.PresignedGetURL(ctx, key, mediaURLTTL)
	if err != nil {
		return nil, err
	}
	return &MediaUpload{Key: key, URL: url}, nil
}

func (s *siteService) ArtifactURL(ctx context.Context, tenantID, siteID, versionID uuid.UUID) (string, error) {
	v, err := s.versions.GetByID(ctx, tenantID, siteID, versionID)
	if err != nil {
		return "", err
	}
	if v.ArtifactKey == nil || *v.ArtifactKey == "" {
		return "", fmt.Errorf("%w: version %d has no published artifact", common.ErrNotFound, v.Version)
	}
	return s.store.PresignedGetURL(ctx, *v.ArtifactKey, artifactURLTTL)
}
