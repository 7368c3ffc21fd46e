package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"sitecraft/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type SiteVersionRepository interface {
	// Create assigns the next version number for the site and fills Version and timestamps.
	Create(ctx context.Context, v *models.SiteVersion) error
	GetByID(ctx context.Context, tenantID, siteID, id uuid.UUID) (*models.SiteVersion, error)
	Latest(ctx context.Context, tenantID, siteID uuid.UUID) (*models.SiteVersion, error)
	List(ctx context.Context, tenantID, siteID uuid.UUID, limit, offset int) ([]*models.SiteVersion, error)
	MarkPublished(ctx context.Context, tenantID, id uuid.UUID, artifactKey string) error
	MarkFailed(ctx context.Context, tenantID, id uuid.UUID) error
}

type siteVersionRepo struct {
	db DB
}

func NewSiteVersionRepo(db DB) SiteVersionRepository {
	return &siteVersionRepo{db: db}
}

const versionColumns = `id, site_id, tenant_id, version, content, source, status, html,
	created_by, artifact_key, published_at, created_at, updated_at`

func scanVersion(row pgx.Row) (*models.SiteVersion, error) {
	v := &models.SiteVersion{}
	var content []byte
	err := row.Scan(&v.ID, &v.SiteID, &v.TenantID, &v.Version, &content, &v.Source, &v.Status, &v.HTML,
		&v.CreatedBy, &v.ArtifactKey, &v.PublishedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := json.Unmarshal(content, &v.Content); err != nil {
		return nil, fmt.Errorf("decode content of version %s: %w", v.ID, err)
	}
	return v, nil
}

func (r *siteVersionRepo) Create(ctx context.Context, v *models.SiteVersion) error {
	content, err := json.Marshal(v.Content)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO site_versions (id, site_id, tenant_id, version, content, source, status, html, created_by, created_at, updated_at)
		SELECT $1, $2, $3, COALESCE(MAX(version), 0) + 1, $4, $5, $6, $7, $8, NOW(), NOW()
		FROM site_versions WHERE site_id = $2
		RETURNING version, created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query, v.ID, v.SiteID, v.TenantID, content, v.Source, v.Status, v.HTML, v.CreatedBy).
		Scan(&v.Version, &v.CreatedAt, &v.UpdatedAt)
	return mapErr(err)
}

func (r *siteVersionRepo) GetByID(ctx context.Context, tenantID, siteID, id uuid.UUID) (*models.SiteVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM site_versions WHERE tenant_id = $1 AND site_id = $2 AND id = $3`
	return scanVersion(r.db.QueryRow(ctx, query, tenantID, siteID, id))
}

func (r *siteVersionRepo) Latest(ctx context.Context, tenantID, siteID uuid.UUID) (*models.SiteVersion, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM site_versions
		WHERE tenant_id = $1 AND site_id = $2
		ORDER BY version DESC
		LIMIT 1
	`
	return scanVersion(r.db.QueryRow(ctx, query, tenantID, siteID))
}

func (r *siteVersionRepo) List(ctx context.Context, tenantID, siteID uuid.UUID, limit, offset int) ([]*models.SiteVersion, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM site_versions
		WHERE tenant_id = $1 AND site_id = $2
		ORDER BY version DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query, tenantID, siteID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []*models.SiteVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *siteVersionRepo) MarkPublished(ctx context.Context, tenantID, id uuid.UUID, artifactKey string) error {
	query := `
		UPDATE site_versions
		SET status = 'published', artifact_key = $1, published_at = NOW(), updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3
	`
	return expectOne(r.db.Exec(ctx, query, artifactKey, tenantID, id))
}

func (r *siteVersionRepo) MarkFailed(ctx context.Context, tenantID, id uuid.UUID) error {
	query := `UPDATE site_versions SET status = 'failed', updated_at = NOW() WHERE tenant_id = $1 AND id = $2`
	return expectOne(r.db.Exec(ctx, query, tenantID, id))
}
