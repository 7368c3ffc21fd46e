package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"sitecraft/internal/caching"
	"sitecraft/internal/common"
	"sitecraft/internal/compiler"
	"sitecraft/internal/feed"
	"sitecraft/internal/models"
	"sitecraft/internal/repositories"
	"sitecraft/internal/services"

	"github.com/hibiken/asynq"
)

// FeedSyncer runs one feed sync; *feed.SyncManager implements it.
type FeedSyncer interface {
	Sync(ctx context.Context, opts feed.SyncOptions) (*feed.SyncResult, error)
}

type ProcessorDeps struct {
	Jobs     repositories.JobRepository
	Sites    repositories.SiteRepository
	Versions repositories.SiteVersionRepository
	JobLog   services.JobService
	Content  services.ContentService
	WP       services.WordPressService
	Store    services.ArtifactStore
	Cache    caching.CacheService
	// Feed is nil when no feed config is present.
	Feed FeedSyncer
}

// Processor is the asynq handler for every task type.
type Processor struct {
	ProcessorDeps
}

func NewProcessor(deps ProcessorDeps) *Processor {
	return &Processor{ProcessorDeps: deps}
}

type jobFunc func(ctx context.Context, job *models.Job, payload models.JobPayload) (interface{}, error)

func (p *Processor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	switch t.Type() {
	case TypeSiteProvision:
		return p.runJob(ctx, t, p.provision)
	case TypeSiteGenerate:
		return p.runJob(ctx, t, p.generate)
	case TypeSitePublish:
		return p.runJob(ctx, t, p.publish)
	case TypeSiteDelete:
		return p.runJob(ctx, t, p.deleteSite)
	case TypeFeedSync:
		return p.feedSync(ctx, t)
	default:
		return fmt.Errorf("unknown task type %q: %w", t.Type(), asynq.SkipRetry)
	}
}

func permanent(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), asynq.SkipRetry)
}

func (p *Processor) runJob(ctx context.Context, t *asynq.Task, fn jobFunc) error {
	var tp JobTaskPayload
	if err := json.Unmarshal(t.Payload(), &tp); err != nil {
		return permanent("decode task payload: %v", err)
	}

	job, err := p.Jobs.GetByID(ctx, tp.JobID)
	if errors.Is(err, common.ErrNotFound) {
		return permanent("job %s not found", tp.JobID)
	}
	if err != nil {
		return err
	}
	if job.Finished() {
		log.Printf("DEBUG: job %s already %s, skipping", job.ID, job.Status)
		return nil
	}

	var payload models.JobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.finalFailure(ctx, job, payload, fmt.Sprintf("invalid job payload: %v", err))
		return permanent("decode job payload: %v", err)
	}

	if err := p.Jobs.MarkRunning(ctx, job.ID); err != nil {
		return err
	}
	retry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	p.JobLog.Log(ctx, job.ID, models.LogLevelInfo, fmt.Sprintf("%s attempt %d of %d", job.Type, retry+1, maxRetry+1))

	result, err := fn(ctx, job, payload)
	if err != nil {
		if errors.Is(err, asynq.SkipRetry) || retry >= maxRetry {
			p.finalFailure(ctx, job, payload, err.Error())
			return err
		}
		p.JobLog.Log(ctx, job.ID, models.LogLevelWarn, fmt.Sprintf("attempt %d failed, will retry: %v", retry+1, err))
		return err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return permanent("encode job result: %v", err)
	}
	if err := p.Jobs.MarkSucceeded(ctx, job.ID, raw); err != nil {
		return err
	}
	p.JobLog.Log(ctx, job.ID, models.LogLevelInfo, job.Type+" succeeded")
	return nil
}

// finalFailure records the failure and rolls the site or version into a failed state.
func (p *Processor) finalFailure(ctx context.Context, job *models.Job, payload models.JobPayload, msg string) {
	msg = strings.TrimSuffix(msg, ": "+asynq.SkipRetry.Error())
	p.JobLog.Log(ctx, job.ID, models.LogLevelError, msg)
	if err := p.Jobs.MarkFailed(ctx, job.ID, msg); err != nil {
		log.Printf("ERROR: mark job %s failed: %v", job.ID, err)
	}

	switch job.Type {
	case models.JobTypeProvision:
		err := p.Sites.UpdateStatus(ctx, job.TenantID, payload.SiteID, models.SiteStatusFailed)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			log.Printf("ERROR: mark site %s failed: %v", payload.SiteID, err)
		}
	case models.JobTypePublish:
		if payload.VersionID != nil {
			if err := p.Versions.MarkFailed(ctx, job.TenantID, *payload.VersionID); err != nil && !errors.Is(err, common.ErrNotFound) {
				log.Printf("ERROR: mark version %s failed: %v", *payload.VersionID, err)
			}
		}
	}
}

func (p *Processor) progress(ctx context.Context, job *models.Job) services.ProgressFunc {
	return func(msg string) {
		p.JobLog.Log(ctx, job.ID, models.LogLevelInfo, msg)
	}
}

// loadSite returns the site for a job, refusing sites that must not be touched.
func (p *Processor) loadSite(ctx context.Context, job *models.Job, payload models.JobPayload) (*models.Site, error) {
	site, err := p.Sites.GetByID(ctx, job.TenantID, payload.SiteID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, permanent("site %s not found", payload.SiteID)
	}
	if err != nil {
		return nil, err
	}
	switch site.Status {
	case models.SiteStatusDeleted:
		if job.Type != models.JobTypeDelete {
			return nil, permanent("site %s is deleted", site.ID)
		}
	case models.SiteStatusSuspended:
		return nil, permanent("site %s is suspended", site.ID)
	}
	return site, nil
}

func (p *Processor) provision(ctx context.Context, job *models.Job, payload models.JobPayload) (interface{}, error) {
	site, err := p.loadSite(ctx, job, payload)
	if err != nil {
		return nil, err
	}
	if site.IsProvisioned() {
		p.JobLog.Log(ctx, job.ID, models.LogLevelWarn, "site is already provisioned")
		return map[string]string{"wp_path": site.WPPath, "wp_url": site.WPURL, "admin_user": site.WPAdminUser}, nil
	}

	if err := p.Sites.UpdateStatus(ctx, job.TenantID, site.ID, models.SiteStatusProvisioning); err != nil {
		return nil, err
	}
	res, err := p.WP.Provision(ctx, site, p.progress(ctx, job))
	if err != nil {
		return nil, err
	}
	if err := p.Sites.SetProvisioned(ctx, job.TenantID, site.ID, res.Path, res.URL, res.AdminUser); err != nil {
		return nil, err
	}
	return res, nil
}

type generateResult struct {
	VersionID string `json:"version_id"`
	Version   int    `json:"version"`
	Source    string `json:"source"`
	Model     string `json:"model,omitempty"`
	Fallback  string `json:"fallback_reason,omitempty"`
}

func (p *Processor) generate(ctx context.Context, job *models.Job, payload models.JobPayload) (interface{}, error) {
	site, err := p.loadSite(ctx, job, payload)
	if err != nil {
		return nil, err
	}

	gen, err := p.Content.Generate(ctx, site)
	if err != nil {
		return nil, err
	}
	if gen.Reason != "" {
		p.JobLog.Log(ctx, job.ID, models.LogLevelWarn, "using fallback content: "+gen.Reason)
	}

	html, err := compiler.RenderSite(gen.Document, site.Name)
	if err != nil {
		return nil, permanent("compile generated content: %v", err)
	}

	v := &models.SiteVersion{
		ID:        job.ID,
		SiteID:    site.ID,
		TenantID:  job.TenantID,
		Content:   *gen.Document,
		Source:    gen.Source,
		Status:    models.VersionStatusDraft,
		HTML:      html,
		CreatedBy: payload.RequestedBy,
	}
	if err := p.Versions.Create(ctx, v); err != nil {
		if errors.Is(err, common.ErrConflict) {
			// A previous attempt already stored this version.
			existing, getErr := p.Versions.GetByID(ctx, job.TenantID, site.ID, v.ID)
			if getErr != nil {
				return nil, getErr
			}
			v = existing
		} else {
			return nil, err
		}
	}
	p.JobLog.Log(ctx, job.ID, models.LogLevelInfo, fmt.Sprintf("created version %d (%s)", v.Version, v.Source))

	return generateResult{
		VersionID: v.ID.String(),
		Version:   v.Version,
		Source:    v.Source,
		Model:     gen.Model,
		Fallback:  gen.Reason,
	}, nil
}

type publishResult struct {
	VersionID   string         `json:"version_id"`
	Version     int            `json:"version"`
	ArtifactKey string         `json:"artifact_key"`
	PageIDs     map[string]int `json:"page_ids"`
	URL         string         `json:"url"`
}

func (p *Processor) publish(ctx context.Context, job *models.Job, payload models.JobPayload) (interface{}, error) {
	site, err := p.loadSite(ctx, job, payload)
	if err != nil {
		return nil, err
	}
	if !site.IsProvisioned() {
		return nil, permanent("site %s is %s, not provisioned", site.ID, site.Status)
	}
	if payload.VersionID == nil {
		return nil, permanent("publish job has no version")
	}
	version, err := p.Versions.GetByID(ctx, job.TenantID, site.ID, *payload.VersionID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, permanent("version %s not found", *payload.VersionID)
	}
	if err != nil {
		return nil, err
	}

	if err := compiler.Validate(&version.Content); err != nil {
		return nil, permanent("version %d is invalid: %v", version.Version, err)
	}
	pages := make([]services.PageContent, 0, len(version.Content.Pages))
	for i := range version.Content.Pages {
		pg := &version.Content.Pages[i]
		pages = append(pages, services.PageContent{
			Slug:    pg.Slug,
			Title:   pg.Title,
			Content: compiler.RenderPageGutenberg(pg),
		})
	}

	ids, err := p.WP.PublishPages(ctx, site, pages, p.progress(ctx, job))
	if err != nil {
		return nil, err
	}

	html := version.HTML
	if html == "" {
		if html, err = compiler.RenderSite(&version.Content, site.Name); err != nil {
			return nil, permanent("compile version %d: %v", version.Version, err)
		}
	}
	key := services.ArtifactKey(job.TenantID, site.ID, version.Version)
	if err := p.Store.PutObject(ctx, key, strings.NewReader(html), int64(len(html)), "text/html; charset=utf-8"); err != nil {
		return nil, fmt.Errorf("upload artifact: %w", err)
	}

	if err := p.Versions.MarkPublished(ctx, job.TenantID, version.ID, key); err != nil {
		return nil, err
	}
	if err := p.Sites.SetPublished(ctx, job.TenantID, site.ID, version.ID, ids); err != nil {
		return nil, err
	}
	if err := p.Cache.InvalidateSitePreviews(ctx, job.TenantID, site.ID); err != nil {
		log.Printf("WARN: invalidate previews for site %s: %v", site.ID, err)
	}

	return publishResult{
		VersionID:   version.ID.String(),
		Version:     version.Version,
		ArtifactKey: key,
		PageIDs:     ids,
		URL:         site.WPURL,
	}, nil
}

func (p *Processor) deleteSite(ctx context.Context, job *models.Job, payload models.JobPayload) (interface{}, error) {
	site, err := p.loadSite(ctx, job, payload)
	if err != nil {
		return nil, err
	}
	if site.Status != models.SiteStatusDeleted {
		return nil, permanent("site %s is %s, not deleted", site.ID, site.Status)
	}

	if err := p.WP.Delete(ctx, site, p.progress(ctx, job)); err != nil {
		return nil, err
	}

	removed := 0
	versions, err := p.Versions.List(ctx, job.TenantID, site.ID, 100, 0)
	if err != nil {
		log.Printf("WARN: list versions of deleted site %s: %v", site.ID, err)
	}
	for _, v := range versions {
		if v.ArtifactKey == nil {
			continue
		}
		if err := p.Store.DeleteObject(ctx, *v.ArtifactKey); err != nil {
			p.JobLog.Log(ctx, job.ID, models.LogLevelWarn, fmt.Sprintf("remove artifact %s: %v", *v.ArtifactKey, err))
			continue
		}
		removed++
	}
	if err := p.Cache.InvalidateSitePreviews(ctx, job.TenantID, site.ID); err != nil {
		log.Printf("WARN: invalidate previews for site %s: %v", site.ID, err)
	}

	return map[string]interface{}{"site_id": site.ID.String(), "artifacts_removed": removed}, nil
}

func (p *Processor) feedSync(ctx context.Context, t *asynq.Task) error {
	if p.Feed == nil {
		return permanent("feed sync is not configured")
	}
	var fp FeedSyncPayload
	if err := json.Unmarshal(t.Payload(), &fp); err != nil {
		return permanent("decode feed payload: %v", err)
	}

	log.Printf("Starting feed sync (trigger=%s incremental=%t)", fp.Trigger, fp.Incremental)
	res, err := p.Feed.Sync(ctx, feed.SyncOptions{
		Incremental: fp.Incremental,
		Upload:      fp.Upload,
		Notify:      fp.Notify,
	})
	if err != nil {
		log.Printf("ERROR: feed sync failed: %v", err)
		return err
	}
	log.Printf("Feed sync completed: processed=%d added=%d skipped=%d failed=%d url=%s in %s",
		res.Processed, res.Added, res.Skipped, res.Failed, res.FeedURL, res.Duration)
	return nil
}
