package repositories

import (
	"context"

	"sitecraft/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type StripeSubscriptionRepository interface {
	// Upsert inserts or updates by Stripe subscription id.
	Upsert(ctx context.Context, sub *models.StripeSubscription) error
	GetByTenant(ctx context.Context, tenantID uuid.UUID) (*models.StripeSubscription, error)
	GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.StripeSubscription, error)
	ListByStatus(ctx context.Context, statuses []string) ([]*models.StripeSubscription, error)
	UpdateStatus(ctx context.Context, stripeSubscriptionID, status string) error
}

type stripeSubscriptionRepo struct {
	db DB
}

func NewStripeSubscriptionRepo(db DB) StripeSubscriptionRepository {
	return &stripeSubscriptionRepo{db: db}
}

const subscriptionColumns = `id, tenant_id, stripe_customer_id, stripe_subscription_id, stripe_price_id,
	plan, status, current_period_end, cancel_at_period_end, created_at, updated_at`

func scanSubscription(row pgx.Row) (*models.StripeSubscription, error) {
	s := &models.StripeSubscription{}
	err := row.Scan(&s.ID, &s.TenantID, &s.StripeCustomerID, &s.StripeSubscriptionID, &s.StripePriceID,
		&s.Plan, &s.Status, &s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return s, nil
}

func (r *stripeSubscriptionRepo) Upsert(ctx context.Context, sub *models.StripeSubscription) error {
	query := `
		INSERT INTO stripe_subscriptions (id, tenant_id, stripe_customer_id, stripe_subscription_id, stripe_price_id,
			plan, status, current_period_end, cancel_at_period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (stripe_subscription_id) DO UPDATE SET
			stripe_price_id = EXCLUDED.stripe_price_id,
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, sub.ID, sub.TenantID, sub.StripeCustomerID, sub.StripeSubscriptionID,
		sub.StripePriceID, sub.Plan, sub.Status, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd).
		Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	return mapErr(err)
}

// GetByTenant returns the most recently updated subscription of the tenant.
func (r *stripeSubscriptionRepo) GetByTenant(ctx context.Context, tenantID uuid.UUID) (*models.StripeSubscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM stripe_subscriptions
		WHERE tenant_id = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return scanSubscription(r.db.QueryRow(ctx, query, tenantID))
}

func (r *stripeSubscriptionRepo) GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.StripeSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM stripe_subscriptions WHERE stripe_subscription_id = $1`
	return scanSubscription(r.db.QueryRow(ctx, query, stripeSubscriptionID))
}

func (r *stripeSubscriptionRepo) ListByStatus(ctx context.Context, statuses []string) ([]*models.StripeSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM stripe_subscriptions WHERE status = ANY($1)`
	rows, err := r.db.Query(ctx, query, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.StripeSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (r *stripeSubscriptionRepo) UpdateStatus(ctx context.Context, stripeSubscriptionID, status string) error {
	query := `UPDATE stripe_subscriptions SET status = $1, updated_at = NOW() WHERE stripe_subscription_id = $2`
	return expectOne(r.db.Exec(ctx, query, status, stripeSubscriptionID))
}
