package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"sitecraft/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type SiteRepository interface {
	Create(ctx context.Context, site *models.Site) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Site, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Site, error)
	// CountActive counts sites that occupy a plan slot (everything but deleted).
	CountActive(ctx context.Context, tenantID uuid.UUID) (int, error)
	Update(ctx context.Context, site *models.Site) error
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string) error
	SetProvisioned(ctx context.Context, tenantID, id uuid.UUID, wpPath, wpURL, adminUser string) error
	SetPublished(ctx context.Context, tenantID, id, versionID uuid.UUID, pageIDs map[string]int) error
	SetStatusByTenant(ctx context.Context, tenantID uuid.UUID, from, to string) (int64, error)
}

type siteRepo struct {
	db DB
}

func NewSiteRepo(db DB) SiteRepository {
	return &siteRepo{db: db}
}

const siteColumns = `id, tenant_id, name, slug, domain, status, business, wp_path, wp_url,
	wp_admin_user, wp_page_ids, current_version_id, created_at, updated_at`

func scanSite(row pgx.Row) (*models.Site, error) {
	s := &models.Site{}
	var business, pageIDs []byte
	err := row.Scan(&s.ID, &s.TenantID, &s.Name, &s.Slug, &s.Domain, &s.Status, &business,
		&s.WPPath, &s.WPURL, &s.WPAdminUser, &pageIDs, &s.CurrentVersionID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(business) > 0 {
		if err := json.Unmarshal(business, &s.Business); err != nil {
			return nil, fmt.Errorf("decode business profile for site %s: %w", s.ID, err)
		}
	}
	if len(pageIDs) > 0 {
		if err := json.Unmarshal(pageIDs, &s.WPPageIDs); err != nil {
			return nil, fmt.Errorf("decode page ids for site %s: %w", s.ID, err)
		}
	}
	return s, nil
}

func (r *siteRepo) Create(ctx context.Context, site *models.Site) error {
	business, err := json.Marshal(site.Business)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO sites (id, tenant_id, name, slug, domain, status, business, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query, site.ID, site.TenantID, site.Name, site.Slug, site.Domain, site.Status, business).
		Scan(&site.CreatedAt, &site.UpdatedAt)
	return mapErr(err)
}

func (r *siteRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE tenant_id = $1 AND id = $2`
	return scanSite(r.db.QueryRow(ctx, query, tenantID, id))
}

func (r *siteRepo) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Site, error) {
	query := `
		SELECT ` + siteColumns + `
		FROM sites
		WHERE tenant_id = $1 AND status <> 'deleted'
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []*models.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (r *siteRepo) CountActive(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM sites WHERE tenant_id = $1 AND status <> 'deleted'`
	if err := r.db.QueryRow(ctx, query, tenantID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *siteRepo) Update(ctx context.Context, site *models.Site) error {
	business, err := json.Marshal(site.Business)
	if err != nil {
		return err
	}
	query := `
		UPDATE sites
		SET name = $1, domain = $2, business = $3, updated_at = NOW()
		WHERE tenant_id = $4 AND id = $5
	`
	return expectOne(r.db.Exec(ctx, query, site.Name, site.Domain, business, site.TenantID, site.ID))
}

func (r *siteRepo) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string) error {
	query := `
		UPDATE sites
		SET status = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3
	`
	return expectOne(r.db.Exec(ctx, query, status, tenantID, id))
}

func (r *siteRepo) SetProvisioned(ctx context.Context, tenantID, id uuid.UUID, wpPath, wpURL, adminUser string) error {
	query := `
		UPDATE sites
		SET status = 'active', wp_path = $1, wp_url = $2, wp_admin_user = $3, updated_at = NOW()
		WHERE tenant_id = $4 AND id = $5
	`
	return expectOne(r.db.Exec(ctx, query, wpPath, wpURL, adminUser, tenantID, id))
}

func (r *siteRepo) SetPublished(ctx context.Context, tenantID, id, versionID uuid.UUID, pageIDs map[string]int) error {
	encoded, err := json.Marshal(pageIDs)
	if err != nil {
		return err
	}
	query := `
		UPDATE sites
		SET current_version_id = $1, wp_page_ids = $2, updated_at = NOW()
		WHERE tenant_id = $3 AND id = $4
	`
	return expectOne(r.db.Exec(ctx, query, versionID, encoded, tenantID, id))
}

// SetStatusByTenant moves every site of a tenant in status from to status to.
func (r *siteRepo) SetStatusByTenant(ctx context.Context, tenantID uuid.UUID, from, to string) (int64, error) {
	query := `
		UPDATE sites
		SET status = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND status = $3
	`
	tag, err := r.db.Exec(ctx, query, to, tenantID, from)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
