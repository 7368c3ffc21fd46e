package models

import (
	"time"

	"github.com/google/uuid"
)

// Stripe subscription statuses mirrored locally.
const (
	SubscriptionIncomplete = "incomplete"
	SubscriptionTrialing   = "trialing"
	SubscriptionActive     = "active"
	SubscriptionPastDue    = "past_due"
	SubscriptionCanceled   = "canceled"
	SubscriptionUnpaid     = "unpaid"
)

type StripeSubscription struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	TenantID             uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	StripeCustomerID     string     `json:"stripe_customer_id" db:"stripe_customer_id"`
	StripeSubscriptionID string     `json:"stripe_subscription_id" db:"stripe_subscription_id"`
	StripePriceID        string     `json:"stripe_price_id" db:"stripe_price_id"`
	Plan                 string     `json:"plan" db:"plan"`
	Status               string     `json:"status" db:"status"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty" db:"current_period_end"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end" db:"cancel_at_period_end"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// Entitled reports whether the subscription still grants its plan.
func (s *StripeSubscription) Entitled() bool {
	switch s.Status {
	case SubscriptionActive, SubscriptionTrialing, SubscriptionPastDue:
		return true
	}
	return false
}

// PlanConfig describes a sellable plan.
type PlanConfig struct {
	Name          string `json:"name"`
	DisplayName   string `json:"display_name"`
	SiteLimit     int    `json:"site_limit"`
	MonthlyPrice  int64  `json:"monthly_price_cents"`
	StripePriceID string `json:"-"`
}
