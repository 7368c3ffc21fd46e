package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"sitecraft/internal/caching"
	"sitecraft/internal/config"
	"sitecraft/internal/feed"
	"sitecraft/internal/jobs"
	"sitecraft/internal/jobs/background"
	"sitecraft/internal/repositories"
	"sitecraft/internal/services"
	"sitecraft/pkg/database"
)

func main() {
	cfg, err := config.Load(config.FilePath())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Database.URL, database.PoolConfig{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	store, err := services.NewArtifactStore(cfg.Storage.Endpoint, cfg.Storage.AccessKey,
		cfg.Storage.SecretKey, cfg.Storage.Bucket, cfg.Storage.UseSSL)
	if err != nil {
		log.Fatalf("Failed to initialize artifact store: %v", err)
	}

	cacheSvc := caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer cacheSvc.Close()

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	queue := asynq.NewClient(redisOpt)
	defer queue.Close()
	enqueuer := jobs.NewAsynqEnqueuer(queue, cfg.Queue.MaxRetry)

	tenantRepo := repositories.NewTenantRepo(pool)
	userRepo := repositories.NewUserRepo(pool)
	siteRepo := repositories.NewSiteRepo(pool)
	versionRepo := repositories.NewSiteVersionRepo(pool)
	jobRepo := repositories.NewJobRepo(pool)
	jobLogRepo := repositories.NewJobLogRepo(pool)

	jobSvc := services.NewJobService(jobRepo, jobLogRepo, enqueuer)
	billingSvc := services.NewBillingService(tenantRepo, userRepo,
		repositories.NewStripeSubscriptionRepo(pool), siteRepo,
		services.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret),
		services.BillingConfig{Prices: cfg.Stripe.Prices})
	contentSvc := services.NewContentService(services.NewAIClient(services.AIClientConfig{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
		Timeout:     time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
	}), cacheSvc)
	wpSvc := services.NewWordPressService(services.WordPressConfig{
		CLIBinary:  cfg.WordPress.CLIBinary,
		SitesRoot:  cfg.WordPress.SitesRoot,
		BaseDomain: cfg.WordPress.BaseDomain,
		URLScheme:  cfg.WordPress.URLScheme,
		DBHost:     cfg.WordPress.DBHost,
		DBUser:     cfg.WordPress.DBUser,
		DBPassword: cfg.WordPress.DBPassword,
		AdminEmail: cfg.WordPress.AdminEmail,
		AllowRoot:  cfg.WordPress.AllowRoot,
	}, nil)

	deps := jobs.ProcessorDeps{
		Jobs:     jobRepo,
		Sites:    siteRepo,
		Versions: versionRepo,
		JobLog:   jobSvc,
		Content:  contentSvc,
		WP:       wpSvc,
		Store:    store,
		Cache:    cacheSvc,
	}
	schedDeps := background.SchedulerDeps{Jobs: jobRepo, Billing: billingSvc}

	if cfg.Feed.ConfigPath != "" {
		if mgr, err := loadFeed(ctx, cfg.Feed.ConfigPath); err != nil {
			log.Printf("WARN: feed sync disabled: %v", err)
		} else {
			deps.Feed = mgr
			if cfg.Feed.DailyAt != "" {
				schedDeps.Feed = enqueuer
				schedDeps.FeedAt = cfg.Feed.DailyAt
			}
		}
	}

	scheduler, err := background.NewJobScheduler(schedDeps)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Queue.Concurrency,
		Queues:      cfg.Queue.Queues,
	})
	if err := srv.Start(jobs.NewProcessor(deps)); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}
	log.Printf("sitecraft worker started (concurrency %d)", cfg.Queue.Concurrency)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down worker...")
	cancel()
	srv.Shutdown()
	if err := scheduler.Stop(); err != nil {
		log.Printf("ERROR: scheduler shutdown: %v", err)
	}
	log.Println("Worker stopped gracefully")
}

func loadFeed(ctx context.Context, path string) (*feed.SyncManager, error) {
	fc, err := feed.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return feed.NewSyncManagerFromConfig(ctx, fc)
}
