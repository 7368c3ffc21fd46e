package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"sitecraft/internal/common"
	"sitecraft/internal/models"
	"sitecraft/internal/repositories"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
)

const (
	PlanFree    = "free"
	PlanStarter = "starter"
	PlanGrowth  = "growth"
	PlanAgency  = "agency"

	pastDueGrace = 3 * 24 * time.Hour
)

var planCatalog = map[string]models.PlanConfig{
	PlanFree:    {Name: PlanFree, DisplayName: "Free", SiteLimit: 1, MonthlyPrice: 0},
	PlanStarter: {Name: PlanStarter, DisplayName: "Starter", SiteLimit: 3, MonthlyPrice: 1900},
	PlanGrowth:  {Name: PlanGrowth, DisplayName: "Growth", SiteLimit: 10, MonthlyPrice: 4900},
	PlanAgency:  {Name: PlanAgency, DisplayName: "Agency", SiteLimit: 50, MonthlyPrice: 14900},
}

type BillingConfig struct {
	// Prices maps plan name to Stripe price id.
	Prices          map[string]string
	SuccessURL      string
	CancelURL       string
	PortalReturnURL string
}

type SubscriptionSummary struct {
	Plan         models.PlanConfig          `json:"plan"`
	TenantStatus string                     `json:"tenant_status"`
	SitesUsed    int                        `json:"sites_used"`
	Subscription *models.StripeSubscription `json:"subscription,omitempty"`
}

type BillingService interface {
	Plans() []models.PlanConfig
	CreateCheckout(ctx context.Context, tenantID, userID uuid.UUID, plan string) (string, error)
	CreatePortal(ctx context.Context, tenantID uuid.UUID) (string, error)
	Cancel(ctx context.Context, tenantID uuid.UUID) error
	CurrentSubscription(ctx context.Context, tenantID uuid.UUID) (*SubscriptionSummary, error)
	// EnforceSiteLimit returns ErrPlanLimit when another site would exceed the plan.
	EnforceSiteLimit(ctx context.Context, tenantID uuid.UUID) error
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	// SweepLapsed suspends tenants whose subscription lapsed and returns how many.
	SweepLapsed(ctx context.Context, now time.Time) (int, error)
}

type billingService struct {
	tenants repositories.TenantRepository
	users   repositories.UserRepository
	subs    repositories.StripeSubscriptionRepository
	sites   repositories.SiteRepository
	gateway StripeGateway
	cfg     BillingConfig
	plans   map[string]models.PlanConfig
}

func NewBillingService(
	tenants repositories.TenantRepository,
	users repositories.UserRepository,
	subs repositories.StripeSubscriptionRepository,
	sites repositories.SiteRepository,
	gateway StripeGateway,
	cfg BillingConfig,
) BillingService {
	plans := make(map[string]models.PlanConfig, len(planCatalog))
	for name, p := range planCatalog {
		p.StripePriceID = cfg.Prices[name]
		plans[name] = p
	}
	return &billingService{
		tenants: tenants,
		users:   users,
		subs:    subs,
		sites:   sites,
		gateway: gateway,
		cfg:     cfg,
		plans:   plans,
	}
}

func (s *billingService) Plans() []models.PlanConfig {
	out := make([]models.PlanConfig, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiteLimit < out[j].SiteLimit })
	return out
}

func (s *billingService) plan(name string) models.PlanConfig {
	if p, ok := s.plans[name]; ok {
		return p
	}
	return s.plans[PlanFree]
}

func (s *billingService) planByPrice(priceID string) (string, bool) {
	for name, p := range s.plans {
		if p.StripePriceID != "" && p.StripePriceID == priceID {
			return name, true
		}
	}
	return "", false
}

func (s *billingService) CreateCheckout(ctx context.Context, tenantID, userID uuid.UUID, plan string) (string, error) {
	p, ok := s.plans[plan]
	if !ok || plan == PlanFree {
		return "", fmt.Errorf("%w: unknown paid plan %q", common.ErrInvalidInput, plan)
	}
	if p.StripePriceID == "" {
		return "", fmt.Errorf("%w: plan %q is not for sale", common.ErrInvalidInput, plan)
	}

	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return "", err
	}

	customerID := ""
	if tenant.StripeCustomerID != nil {
		customerID = *tenant.StripeCustomerID
	}
	if customerID == "" {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return "", err
		}
		customerID, err = s.gateway.CreateCustomer(ctx, user.Email, tenant.Name, tenant.ID)
		if err != nil {
			return "", err
		}
		if err := s.tenants.SetStripeCustomer(ctx, tenant.ID, customerID); err != nil {
			return "", err
		}
	}

	return s.gateway.CreateCheckoutSession(ctx, CheckoutParams{
		CustomerID: customerID,
		PriceID:    p.StripePriceID,
		TenantID:   tenant.ID,
		Plan:       plan,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
	})
}

func (s *billingService) CreatePortal(ctx context.Context, tenantID uuid.UUID) (string, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if tenant.StripeCustomerID == nil || *tenant.StripeCustomerID == "" {
		return "", fmt.Errorf("%w: tenant has no billing account yet", common.ErrInvalidInput)
	}
	return s.gateway.CreatePortalSession(ctx, *tenant.StripeCustomerID, s.cfg.PortalReturnURL)
}

func (s *billingService) Cancel(ctx context.Context, tenantID uuid.UUID) error {
	sub, err := s.subs.GetByTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if !sub.Entitled() {
		return fmt.Errorf("%w: subscription is %s", common.ErrConflict, sub.Status)
	}
	if sub.CancelAtPeriodEnd {
		return nil
	}
	if err := s.gateway.CancelAtPeriodEnd(ctx, sub.StripeSubscriptionID); err != nil {
		return err
	}
	sub.CancelAtPeriodEnd = true
	return s.subs.Upsert(ctx, sub)
}

func (s *billingService) CurrentSubscription(ctx context.Context, tenantID uuid.UUID) (*SubscriptionSummary, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	used, err := s.sites.CountActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	summary := &SubscriptionSummary{Plan: s.plan(tenant.Plan), TenantStatus: tenant.Status, SitesUsed: used}
	sub, err := s.subs.GetByTenant(ctx, tenantID)
	switch {
	case err == nil:
		summary.Subscription = sub
	case !errors.Is(err, common.ErrNotFound):
		return nil, err
	}
	return summary, nil
}

func (s *billingService) EnforceSiteLimit(ctx context.Context, tenantID uuid.UUID) error {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant.Status != models.TenantStatusActive {
		return fmt.Errorf("%w: tenant is %s", common.ErrSuspended, tenant.Status)
	}

	used, err := s.sites.CountActive(ctx, tenantID)
	if err != nil {
		return err
	}
	limit := s.plan(tenant.Plan).SiteLimit
	if used >= limit {
		return fmt.Errorf("%w: plan %s allows %d sites", common.ErrPlanLimit, tenant.Plan, limit)
	}
	return nil
}

func (s *billingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ConstructEvent(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	}

	log.Printf("DEBUG: stripe event %s (%s)", event.Type, event.ID)

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("%w: decode checkout session: %v", common.ErrInvalidInput, err)
		}
		return s.linkCustomer(ctx, &sess)

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%w: decode subscription: %v", common.ErrInvalidInput, err)
		}
		return s.applySubscription(ctx, &sub)

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("%w: decode invoice: %v", common.ErrInvalidInput, err)
		}
		if inv.Subscription == nil || inv.Subscription.ID == "" {
			return nil
		}
		err := s.subs.UpdateStatus(ctx, inv.Subscription.ID, models.SubscriptionPastDue)
		if errors.Is(err, common.ErrNotFound) {
			log.Printf("WARN: payment failed for unknown subscription %s", inv.Subscription.ID)
			return nil
		}
		return err

	default:
		log.Printf("DEBUG: ignoring stripe event type %s", event.Type)
		return nil
	}
}

func (s *billingService) linkCustomer(ctx context.Context, sess *stripe.CheckoutSession) error {
	tenantID, err := uuid.Parse(sess.ClientReferenceID)
	if err != nil {
		log.Printf("WARN: checkout session %s has no tenant reference", sess.ID)
		return nil
	}
	if sess.Customer == nil || sess.Customer.ID == "" {
		return nil
	}
	err = s.tenants.SetStripeCustomer(ctx, tenantID, sess.Customer.ID)
	if errors.Is(err, common.ErrNotFound) {
		log.Printf("WARN: checkout session %s references unknown tenant %s", sess.ID, tenantID)
		return nil
	}
	return err
}

func (s *billingService) resolveTenant(ctx context.Context, sub *stripe.Subscription, existing *models.StripeSubscription) (*models.Tenant, error) {
	if id, err := uuid.Parse(sub.Metadata["tenant_id"]); err == nil {
		return s.tenants.GetByID(ctx, id)
	}
	if existing != nil {
		return s.tenants.GetByID(ctx, existing.TenantID)
	}
	if sub.Customer != nil && sub.Customer.ID != "" {
		return s.tenants.GetByStripeCustomer(ctx, sub.Customer.ID)
	}
	return nil, fmt.Errorf("%w: subscription %s has no tenant", common.ErrNotFound, sub.ID)
}

func (s *billingService) applySubscription(ctx context.Context, sub *stripe.Subscription) error {
	existing, err := s.subs.GetByStripeID(ctx, sub.ID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	if errors.Is(err, common.ErrNotFound) {
		existing = nil
	}

	tenant, err := s.resolveTenant(ctx, sub, existing)
	if errors.Is(err, common.ErrNotFound) {
		log.Printf("WARN: dropping stripe subscription %s: no matching tenant", sub.ID)
		return nil
	}
	if err != nil {
		return err
	}

	priceID := ""
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = sub.Items.Data[0].Price.ID
	}
	plan, ok := s.planByPrice(priceID)
	if !ok {
		plan = sub.Metadata["plan"]
		if _, known := s.plans[plan]; !known {
			if existing != nil {
				plan = existing.Plan
			} else {
				plan = PlanStarter
			}
		}
		log.Printf("WARN: unknown stripe price %q on subscription %s, assuming plan %s", priceID, sub.ID, plan)
	}

	row := &models.StripeSubscription{
		ID:                   uuid.New(),
		TenantID:             tenant.ID,
		StripeSubscriptionID: sub.ID,
		StripePriceID:        priceID,
		Plan:                 plan,
		Status:               string(sub.Status),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
	}
	if existing != nil {
		row.ID = existing.ID
	}
	if sub.Customer != nil {
		row.StripeCustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		row.CurrentPeriodEnd = &end
	}
	if err := s.subs.Upsert(ctx, row); err != nil {
		return err
	}

	if !row.Entitled() {
		// Lapsed subscriptions are suspended by SweepLapsed.
		return nil
	}
	if err := s.tenants.UpdateBilling(ctx, tenant.ID, plan, models.TenantStatusActive); err != nil {
		return err
	}
	if tenant.Status == models.TenantStatusSuspended {
		n, err := s.sites.SetStatusByTenant(ctx, tenant.ID, models.SiteStatusSuspended, models.SiteStatusActive)
		if err != nil {
			return err
		}
		log.Printf("DEBUG: tenant %s reactivated, %d sites resumed", tenant.ID, n)
	}
	return nil
}

func (s *billingService) SweepLapsed(ctx context.Context, now time.Time) (int, error) {
	subs, err := s.subs.ListByStatus(ctx, []string{
		models.SubscriptionCanceled,
		models.SubscriptionUnpaid,
		models.SubscriptionPastDue,
	})
	if err != nil {
		return 0, err
	}

	suspended := 0
	for _, sub := range subs {
		if sub.Status == models.SubscriptionPastDue && now.Sub(sub.UpdatedAt) < pastDueGrace {
			continue
		}

		latest, err := s.subs.GetByTenant(ctx, sub.TenantID)
		if err != nil {
			log.Printf("ERROR: sweep: load subscription for tenant %s: %v", sub.TenantID, err)
			continue
		}
		if latest.StripeSubscriptionID != sub.StripeSubscriptionID {
			// Superseded by a newer subscription.
			continue
		}

		tenant, err := s.tenants.GetByID(ctx, sub.TenantID)
		if err != nil {
			log.Printf("ERROR: sweep: load tenant %s: %v", sub.TenantID, err)
			continue
		}
		if tenant.Status != models.TenantStatusActive {
			continue
		}

		if err := s.tenants.UpdateBilling(ctx, tenant.ID, tenant.Plan, models.TenantStatusSuspended); err != nil {
			log.Printf("ERROR: sweep: suspend tenant %s: %v", tenant.ID, err)
			continue
		}
		n, err := s.sites.SetStatusByTenant(ctx, tenant.ID, models.SiteStatusActive, models.SiteStatusSuspended)
		if err != nil {
			log.Printf("ERROR: sweep: suspend sites of tenant %s: %v", tenant.ID, err)
		}
		log.Printf("WARN: tenant %s suspended (subscription %s is %s), %d sites suspended", tenant.ID, sub.StripeSubscriptionID, sub.Status, n)
		suspended++
	}
	return suspended, nil
}
