package handlers

import (
	"sitecraft/internal/middleware"
	"sitecraft/internal/models"

	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Routes groups every handler the API server mounts.
type Routes struct {
	Health  *HealthHandlers
	Auth    *AuthHandlers
	Tenant  *TenantHandlers
	Sites   *SiteHandlers
	Jobs    *JobHandlers
	Billing *BillingHandlers

	Verifier *middleware.TokenVerifier
	RBAC     *middleware.RBACMiddleware
	Version  *middleware.VersionMiddleware
}

func (r *Routes) Register(e *echo.Echo) {
	e.Use(r.Version.APIVersionResolver())

	// Health endpoints (no auth required)
	e.GET("/health", r.Health.HealthCheck)
	e.GET("/health/ready", r.Health.ReadinessCheck)
	e.GET("/health/live", r.Health.LivenessCheck)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	v1 := e.Group("/v1")
	v1.Use(r.Version.VersionHeader("v1"))
	v1.Use(middleware.AuditLogger())

	auth := v1.Group("/auth")
	auth.POST("/signup", r.Auth.Signup)
	auth.POST("/login", r.Auth.Login)
	auth.POST("/refresh", r.Auth.Refresh)
	auth.POST("/logout", r.Auth.Logout)

	v1.POST("/webhooks/stripe", r.Billing.StripeWebhook)
	v1.POST("/invitations/accept", r.Tenant.AcceptInvitation)

	// Protected routes (require JWT and an active membership)
	protected := v1.Group("")
	protected.Use(r.Verifier.JWTMiddleware())
	protected.Use(r.RBAC.RequireMember())

	admin := r.RBAC.RequireRole(models.RoleAdmin)
	editor := r.RBAC.RequireRole(models.RoleEditor)
	owner := r.RBAC.RequireRole(models.RoleOwner)
	active := r.RBAC.RequireActiveTenant()

	protected.GET("/me", r.Auth.Me)
	protected.POST("/auth/switch-tenant", r.Auth.SwitchTenant)

	protected.GET("/tenant", r.Tenant.GetTenant)
	protected.PUT("/tenant", r.Tenant.UpdateTenant, admin)
	protected.GET("/members", r.Tenant.ListMembers)
	protected.POST("/members", r.Tenant.InviteMember, admin)
	protected.PUT("/members/:id", r.Tenant.UpdateMember, admin)
	protected.DELETE("/members/:id", r.Tenant.RevokeMember, admin)

	sites := protected.Group("/sites", active)
	sites.GET("", r.Sites.ListSites)
	sites.POST("", r.Sites.CreateSite, editor)
	sites.GET("/:id", r.Sites.GetSite)
	sites.PUT("/:id", r.Sites.UpdateSite, editor)
	sites.DELETE("/:id", r.Sites.DeleteSite, admin)
	sites.POST("/:id/generate", r.Sites.Generate, editor)
	sites.POST("/:id/publish", r.Sites.Publish, editor)
	sites.GET("/:id/versions", r.Sites.ListVersions)
	sites.POST("/:id/versions", r.Sites.CreateVersion, editor)
	sites.GET("/:id/versions/:versionId", r.Sites.GetVersion)
	sites.GET("/:id/versions/:versionId/preview", r.Sites.Preview)
	sites.GET("/:id/versions/:versionId/artifact", r.Sites.Artifact)
	sites.POST("/:id/media", r.Sites.UploadMedia, editor)

	protected.GET("/jobs", r.Jobs.ListJobs)
	protected.GET("/jobs/:id", r.Jobs.GetJob)
	protected.GET("/jobs/:id/logs", r.Jobs.GetJobLogs)

	billing := protected.Group("/billing")
	billing.GET("/plans", r.Billing.ListPlans)
	billing.GET("/subscription", r.Billing.GetSubscription)
	billing.POST("/checkout", r.Billing.Checkout, owner)
	billing.POST("/portal", r.Billing.Portal, owner)
	billing.POST("/cancel", r.Billing.Cancel, owner)
}
