package handlers

import (
	"io"
	"log"
	"net/http"

	"sitecraft/internal/common"
	"sitecraft/internal/services"

	"github.com/labstack/echo/v4"
)

const maxWebhookBody = 64 << 10

// BillingHandlers handles plans, Stripe checkout/portal and the Stripe webhook.
type BillingHandlers struct {
	billingService services.BillingService
}

func NewBillingHandlers(billingService services.BillingService) *BillingHandlers {
	return &BillingHandlers{billingService: billingService}
}

type CheckoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=starter growth agency"`
}

// ListPlans handles GET /v1/billing/plans
func (h *BillingHandlers) ListPlans(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"plans": h.billingService.Plans()})
}

// GetSubscription handles GET /v1/billing/subscription
func (h *BillingHandlers) GetSubscription(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}

	sum, err := h.billingService.CurrentSubscription(c.Request().Context(), tenantID)
	if err != nil {
		return common.SendServiceError(c, "subscription", err)
	}
	return c.JSON(http.StatusOK, sum)
}

// Checkout handles POST /v1/billing/checkout and returns the Stripe Checkout URL.
func (h *BillingHandlers) Checkout(c echo.Context) error {
	userID, tenantID, err := identity(c)
	if err != nil {
		return err
	}
	var req CheckoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	url, err := h.billingService.CreateCheckout(c.Request().Context(), tenantID, userID, req.Plan)
	if err != nil {
		return common.SendServiceError(c, "plan", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

// Portal handles POST /v1/billing/portal
func (h *BillingHandlers) Portal(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}

	url, err := h.billingService.CreatePortal(c.Request().Context(), tenantID)
	if err != nil {
		return common.SendServiceError(c, "customer", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

// Cancel handles POST /v1/billing/cancel. The subscription ends at period end.
func (h *BillingHandlers) Cancel(c echo.Context) error {
	_, tenantID, err := identity(c)
	if err != nil {
		return err
	}

	if err := h.billingService.Cancel(c.Request().Context(), tenantID); err != nil {
		return common.SendServiceError(c, "subscription", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cancel_at_period_end"})
}

// StripeWebhook handles POST /v1/webhooks/stripe
func (h *BillingHandlers) StripeWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
	}

	signature := c.Request().Header.Get("Stripe-Signature")
	if signature == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing Stripe signature")
	}

	if err := h.billingService.HandleWebhook(c.Request().Context(), body, signature); err != nil {
		status := common.HTTPStatusFor(err)
		if status == http.StatusUnauthorized {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid webhook signature")
		}
		log.Printf("ERROR: stripe webhook: %v", err)
		return echo.NewHTTPError(status, "Webhook processing failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "received"})
}
