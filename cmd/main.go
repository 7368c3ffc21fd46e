package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"sitecraft/internal/caching"
	"sitecraft/internal/config"
	"sitecraft/internal/handlers"
	"sitecraft/internal/jobs"
	"sitecraft/internal/middleware"
	"sitecraft/internal/repositories"
	"sitecraft/internal/services"
	"sitecraft/migrations"
	"sitecraft/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load(config.FilePath())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()

	// Create database connection pool
	pool, err := database.NewPool(ctx, cfg.Database.URL, database.PoolConfig{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if applied, err := database.Migrate(ctx, pool, migrations.FS); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	} else if len(applied) > 0 {
		log.Printf("Applied %d migration(s)", len(applied))
	}

	// Initialize the artifact store
	store, err := services.NewArtifactStore(cfg.Storage.Endpoint, cfg.Storage.AccessKey,
		cfg.Storage.SecretKey, cfg.Storage.Bucket, cfg.Storage.UseSSL)
	if err != nil {
		log.Fatalf("Failed to initialize artifact store: %v", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Printf("WARN: could not ensure bucket %s: %v", cfg.Storage.Bucket, err)
	}

	// Create repositories
	tenantRepo := repositories.NewTenantRepo(pool)
	userRepo := repositories.NewUserRepo(pool)
	membershipRepo := repositories.NewMembershipRepo(pool)
	siteRepo := repositories.NewSiteRepo(pool)
	versionRepo := repositories.NewSiteVersionRepo(pool)
	jobRepo := repositories.NewJobRepo(pool)
	jobLogRepo := repositories.NewJobLogRepo(pool)
	stripeSubRepo := repositories.NewStripeSubscriptionRepo(pool)

	// Create cache service
	cacheSvc := caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer cacheSvc.Close()

	// Queue client
	queue := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer queue.Close()

	// Create services
	jobSvc := services.NewJobService(jobRepo, jobLogRepo, jobs.NewAsynqEnqueuer(queue, cfg.Queue.MaxRetry))
	billingSvc := services.NewBillingService(tenantRepo, userRepo, stripeSubRepo, siteRepo,
		services.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret),
		services.BillingConfig{
			Prices:          cfg.Stripe.Prices,
			SuccessURL:      cfg.Stripe.SuccessURL,
			CancelURL:       cfg.Stripe.CancelURL,
			PortalReturnURL: cfg.Stripe.PortalReturn,
		})
	authSvc := services.NewAuthService(tenantRepo, userRepo, membershipRepo, cacheSvc,
		cfg.JWT.Secret, cfg.JWT.AccessTTL(), cfg.JWT.RefreshTTL())
	tenantSvc := services.NewTenantService(tenantRepo)
	membershipSvc := services.NewMembershipService(userRepo, membershipRepo, cfg.JWT.Secret)
	siteSvc := services.NewSiteService(tenantRepo, siteRepo, versionRepo, billingSvc, jobSvc,
		store, cacheSvc, cfg.Storage.MediaBaseURL)
	rbacSvc := services.NewRBACService(membershipRepo, tenantRepo)

	verifier, err := middleware.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.JWKSURL)
	if err != nil {
		log.Fatalf("Failed to initialize token verifier: %v", err)
	}
	defer verifier.Close()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewValidator()

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Pre(echoMiddleware.RemoveTrailingSlash())

	routes := &handlers.Routes{
		Health:   handlers.NewHealthHandlers(version, pool, cacheSvc, store),
		Auth:     handlers.NewAuthHandlers(authSvc),
		Tenant:   handlers.NewTenantHandlers(tenantSvc, membershipSvc),
		Sites:    handlers.NewSiteHandlers(siteSvc),
		Jobs:     handlers.NewJobHandlers(jobSvc),
		Billing:  handlers.NewBillingHandlers(billingSvc),
		Verifier: verifier,
		RBAC:     middleware.NewRBACMiddleware(rbacSvc),
		Version:  middleware.NewVersionMiddleware(),
	}
	routes.Register(e)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: server shutdown: %v", err)
		}
	}()

	log.Printf("sitecraft server v%s starting on port %d", version, cfg.Server.Port)
	if err := e.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped gracefully")
}
