package repositories

import (
	"context"
	"fmt"

	"sitecraft/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	// CreateWithOwner inserts the tenant, its first user and the owner membership atomically.
	CreateWithOwner(ctx context.Context, tenant *models.Tenant, user *models.User, membership *models.Membership) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	GetByStripeCustomer(ctx context.Context, customerID string) (*models.Tenant, error)
	Update(ctx context.Context, tenant *models.Tenant) error
	UpdateBilling(ctx context.Context, id uuid.UUID, plan, status string) error
	SetStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error
	List(ctx context.Context, limit, offset int) ([]*models.Tenant, error)
}

type tenantRepo struct {
	db DB
}

func NewTenantRepo(db DB) TenantRepository {
	return &tenantRepo{db: db}
}

const tenantColumns = `id, name, slug, status, plan, stripe_customer_id, created_at, updated_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	t := &models.Tenant{}
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Status, &t.Plan, &t.StripeCustomerID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return t, nil
}

func (r *tenantRepo) Create(ctx context.Context, tenant *models.Tenant) error {
	query := `
		INSERT INTO tenants (id, name, slug, status, plan, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, tenant.ID, tenant.Name, tenant.Slug, tenant.Status, tenant.Plan)
	return mapErr(err)
}

func (r *tenantRepo) CreateWithOwner(ctx context.Context, tenant *models.Tenant, user *models.User, membership *models.Membership) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin signup transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO tenants (id, name, slug, status, plan, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`, tenant.ID, tenant.Name, tenant.Slug, tenant.Status, tenant.Plan); err != nil {
		return mapErr(err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`, user.ID, user.Email, user.Name, user.PasswordHash, user.Status); err != nil {
		return mapErr(err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO memberships (id, tenant_id, user_id, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`, membership.ID, membership.TenantID, membership.UserID, string(membership.Role), membership.Status); err != nil {
		return mapErr(err)
	}

	return tx.Commit(ctx)
}

func (r *tenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return scanTenant(r.db.QueryRow(ctx, query, id))
}

func (r *tenantRepo) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE slug = $1`
	return scanTenant(r.db.QueryRow(ctx, query, slug))
}

func (r *tenantRepo) GetByStripeCustomer(ctx context.Context, customerID string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE stripe_customer_id = $1`
	return scanTenant(r.db.QueryRow(ctx, query, customerID))
}

func (r *tenantRepo) Update(ctx context.Context, tenant *models.Tenant) error {
	query := `
		UPDATE tenants
		SET name = $1, updated_at = NOW()
		WHERE id = $2
	`
	return expectOne(r.db.Exec(ctx, query, tenant.Name, tenant.ID))
}

func (r *tenantRepo) UpdateBilling(ctx context.Context, id uuid.UUID, plan, status string) error {
	query := `
		UPDATE tenants
		SET plan = $1, status = $2, updated_at = NOW()
		WHERE id = $3
	`
	return expectOne(r.db.Exec(ctx, query, plan, status, id))
}

func (r *tenantRepo) SetStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error {
	query := `
		UPDATE tenants
		SET stripe_customer_id = $1, updated_at = NOW()
		WHERE id = $2
	`
	return expectOne(r.db.Exec(ctx, query, customerID, id))
}

func (r *tenantRepo) List(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}
