package repositories

import (
	"context"

	"sitecraft/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type MembershipRepository interface {
	Create(ctx context.Context, m *models.Membership) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Membership, error)
	GetByTenantAndUser(ctx context.Context, tenantID, userID uuid.UUID) (*models.Membership, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Membership, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error)
	UpdateRole(ctx context.Context, tenantID, id uuid.UUID, role models.Role) error
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string) error
	CountActiveOwners(ctx context.Context, tenantID uuid.UUID) (int, error)
}

type membershipRepo struct {
	db DB
}

func NewMembershipRepo(db DB) MembershipRepository {
	return &membershipRepo{db: db}
}

const membershipColumns = `m.id, m.tenant_id, m.user_id, m.role, m.status, m.created_at, m.updated_at, u.email, u.name`

func scanMembership(row pgx.Row) (*models.Membership, error) {
	m := &models.Membership{}
	var role string
	if err := row.Scan(&m.ID, &m.TenantID, &m.UserID, &role, &m.Status, &m.CreatedAt, &m.UpdatedAt, &m.Email, &m.UserName); err != nil {
		return nil, mapErr(err)
	}
	m.Role = models.Role(role)
	return m, nil
}

func (r *membershipRepo) Create(ctx context.Context, m *models.Membership) error {
	query := `
		INSERT INTO memberships (id, tenant_id, user_id, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, m.ID, m.TenantID, m.UserID, string(m.Role), m.Status)
	return mapErr(err)
}

func (r *membershipRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships m JOIN users u ON u.id = m.user_id
		WHERE m.tenant_id = $1 AND m.id = $2
	`
	return scanMembership(r.db.QueryRow(ctx, query, tenantID, id))
}

func (r *membershipRepo) GetByTenantAndUser(ctx context.Context, tenantID, userID uuid.UUID) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships m JOIN users u ON u.id = m.user_id
		WHERE m.tenant_id = $1 AND m.user_id = $2
	`
	return scanMembership(r.db.QueryRow(ctx, query, tenantID, userID))
}

func (r *membershipRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships m JOIN users u ON u.id = m.user_id
		WHERE m.tenant_id = $1 AND m.status <> 'revoked'
		ORDER BY m.created_at ASC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, tenantID, limit, offset)
}

func (r *membershipRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships m JOIN users u ON u.id = m.user_id
		WHERE m.user_id = $1 AND m.status = 'active'
		ORDER BY m.created_at ASC
	`
	return r.list(ctx, query, userID)
}

func (r *membershipRepo) list(ctx context.Context, query string, args ...interface{}) ([]*models.Membership, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *membershipRepo) UpdateRole(ctx context.Context, tenantID, id uuid.UUID, role models.Role) error {
	query := `
		UPDATE memberships
		SET role = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3
	`
	return expectOne(r.db.Exec(ctx, query, string(role), tenantID, id))
}

func (r *membershipRepo) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status string) error {
	query := `
		UPDATE memberships
		SET status = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3
	`
	return expectOne(r.db.Exec(ctx, query, status, tenantID, id))
}

func (r *membershipRepo) CountActiveOwners(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM memberships WHERE tenant_id = $1 AND role = 'owner' AND status = 'active'`
	if err := r.db.QueryRow(ctx, query, tenantID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
