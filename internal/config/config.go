package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/labstack/gommon/random"
)

// Config represents the complete server and worker configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	JWT       JWTConfig       `toml:"jwt"`
	Storage   StorageConfig   `toml:"storage"`
	OpenAI    OpenAIConfig    `toml:"openai"`
	Stripe    StripeConfig    `toml:"stripe"`
	WordPress WordPressConfig `toml:"wordpress"`
	Queue     QueueConfig     `toml:"queue"`
	Feed      FeedConfig      `toml:"feed"`
}

type ServerConfig struct {
	Port          int    `toml:"port"`
	PublicBaseURL string `toml:"public_base_url"`
}

type DatabaseConfig struct {
	URL string `toml:"url"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type JWTConfig struct {
	Secret            string `toml:"secret"`
	AccessTTLMinutes  int    `toml:"access_ttl_minutes"`
	RefreshTTLMinutes int    `toml:"refresh_ttl_minutes"`
	// JWKSURL enables verification of externally issued RS256 tokens.
	JWKSURL string `toml:"jwks_url"`
}

func (j JWTConfig) AccessTTL() time.Duration  { return time.Duration(j.AccessTTLMinutes) * time.Minute }
func (j JWTConfig) RefreshTTL() time.Duration { return time.Duration(j.RefreshTTLMinutes) * time.Minute }

type StorageConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
	Bucket    string `toml:"bucket"`
	// MediaBaseURL serves uploaded media from a public-read bucket when set.
	MediaBaseURL string `toml:"media_base_url"`
}

type OpenAIConfig struct {
	APIKey      string  `toml:"api_key"`
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
	TimeoutSecs int     `toml:"timeout_seconds"`
}

type StripeConfig struct {
	SecretKey     string            `toml:"secret_key"`
	WebhookSecret string            `toml:"webhook_secret"`
	Prices        map[string]string `toml:"prices"`
	SuccessURL    string            `toml:"success_url"`
	CancelURL     string            `toml:"cancel_url"`
	PortalReturn  string            `toml:"portal_return_url"`
}

type WordPressConfig struct {
	CLIBinary  string `toml:"cli_binary"`
	SitesRoot  string `toml:"sites_root"`
	BaseDomain string `toml:"base_domain"`
	URLScheme  string `toml:"url_scheme"`
	DBHost     string `toml:"db_host"`
	DBUser     string `toml:"db_user"`
	DBPassword string `toml:"db_password"`
	AdminEmail string `toml:"admin_email"`
	AllowRoot  bool   `toml:"allow_root"`
}

type QueueConfig struct {
	Concurrency int            `toml:"concurrency"`
	Queues      map[string]int `toml:"queues"`
	MaxRetry    int            `toml:"max_retry"`
}

type FeedConfig struct {
	ConfigPath string `toml:"config_path"`
	// DailyAt is a local "HH:MM" time; empty disables the scheduled sync.
	DailyAt string `toml:"daily_at"`
}

// Default returns the configuration used when no file or env value is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, PublicBaseURL: "http://localhost:8080"},
		Redis:  RedisConfig{Addr: "localhost:6379"},
		JWT:    JWTConfig{AccessTTLMinutes: 60, RefreshTTLMinutes: 60 * 24 * 30},
		Storage: StorageConfig{
			Endpoint:  "localhost:9000",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			Bucket:    "sitecraft",
		},
		OpenAI: OpenAIConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   2048,
			Temperature: 0.7,
			TimeoutSecs: 60,
		},
		Stripe: StripeConfig{Prices: map[string]string{}},
		WordPress: WordPressConfig{
			CLIBinary:  "wp",
			SitesRoot:  "/var/www/sites",
			BaseDomain: "sites.localhost",
			URLScheme:  "https",
			DBHost:     "localhost",
			DBUser:     "wordpress",
			AdminEmail: "admin@localhost",
		},
		Queue: QueueConfig{
			Concurrency: 10,
			Queues:      map[string]int{"critical": 6, "default": 3, "low": 1},
			MaxRetry:    3,
		},
		Feed: FeedConfig{DailyAt: "02:00"},
	}
}

const DefaultFile = "sitecraft.toml"

// FilePath returns the config file named by CONFIG_FILE, or DefaultFile.
func FilePath() string {
	return getEnvString("CONFIG_FILE", DefaultFile)
}

// Load reads the TOML file at path (missing files are skipped) and overlays environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
			log.Printf("DEBUG: config file %s not found, using defaults and environment", path)
		}
	}
	applyEnv(cfg)

	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = random.String(32)
		log.Printf("WARN: JWT_SECRET not set, using a generated secret; tokens will not survive restarts")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Server.PublicBaseURL = getEnvString("PUBLIC_BASE_URL", cfg.Server.PublicBaseURL)
	cfg.Database.URL = getEnvString("DATABASE_URL", cfg.Database.URL)

	cfg.Redis.Addr = getEnvString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnvString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)

	cfg.JWT.Secret = getEnvString("JWT_SECRET", cfg.JWT.Secret)
	cfg.JWT.AccessTTLMinutes = getEnvInt("JWT_ACCESS_TTL_MINUTES", cfg.JWT.AccessTTLMinutes)
	cfg.JWT.RefreshTTLMinutes = getEnvInt("JWT_REFRESH_TTL_MINUTES", cfg.JWT.RefreshTTLMinutes)
	cfg.JWT.JWKSURL = getEnvString("JWKS_URL", cfg.JWT.JWKSURL)

	cfg.Storage.Endpoint = getEnvString("MINIO_ENDPOINT", cfg.Storage.Endpoint)
	cfg.Storage.AccessKey = getEnvString("MINIO_ACCESS_KEY", cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = getEnvString("MINIO_SECRET_KEY", cfg.Storage.SecretKey)
	cfg.Storage.UseSSL = getEnvBool("MINIO_USE_SSL", cfg.Storage.UseSSL)
	cfg.Storage.Bucket = getEnvString("MINIO_BUCKET", cfg.Storage.Bucket)
	cfg.Storage.MediaBaseURL = getEnvString("MEDIA_BASE_URL", cfg.Storage.MediaBaseURL)

	cfg.OpenAI.APIKey = getEnvString("OPENAI_API_KEY", cfg.OpenAI.APIKey)
	cfg.OpenAI.BaseURL = getEnvString("OPENAI_BASE_URL", cfg.OpenAI.BaseURL)
	cfg.OpenAI.Model = getEnvString("OPENAI_MODEL", cfg.OpenAI.Model)
	cfg.OpenAI.MaxTokens = getEnvInt("OPENAI_MAX_TOKENS", cfg.OpenAI.MaxTokens)

	cfg.Stripe.SecretKey = getEnvString("STRIPE_SECRET_KEY", cfg.Stripe.SecretKey)
	cfg.Stripe.WebhookSecret = getEnvString("STRIPE_WEBHOOK_SECRET", cfg.Stripe.WebhookSecret)
	cfg.Stripe.SuccessURL = getEnvString("STRIPE_SUCCESS_URL", cfg.Stripe.SuccessURL)
	cfg.Stripe.CancelURL = getEnvString("STRIPE_CANCEL_URL", cfg.Stripe.CancelURL)
	cfg.Stripe.PortalReturn = getEnvString("STRIPE_PORTAL_RETURN_URL", cfg.Stripe.PortalReturn)
	if cfg.Stripe.Prices == nil {
		cfg.Stripe.Prices = map[string]string{}
	}
	for _, plan := range []string{"starter", "growth", "agency"} {
		key := "STRIPE_PRICE_" + strings.ToUpper(plan)
		cfg.Stripe.Prices[plan] = getEnvString(key, cfg.Stripe.Prices[plan])
	}

	cfg.WordPress.CLIBinary = getEnvString("WP_CLI_BINARY", cfg.WordPress.CLIBinary)
	cfg.WordPress.SitesRoot = getEnvString("WP_SITES_ROOT", cfg.WordPress.SitesRoot)
	cfg.WordPress.BaseDomain = getEnvString("WP_BASE_DOMAIN", cfg.WordPress.BaseDomain)
	cfg.WordPress.DBHost = getEnvString("WP_DB_HOST", cfg.WordPress.DBHost)
	cfg.WordPress.DBUser = getEnvString("WP_DB_USER", cfg.WordPress.DBUser)
	cfg.WordPress.DBPassword = getEnvString("WP_DB_PASSWORD", cfg.WordPress.DBPassword)
	cfg.WordPress.AdminEmail = getEnvString("WP_ADMIN_EMAIL", cfg.WordPress.AdminEmail)
	cfg.WordPress.AllowRoot = getEnvBool("WP_ALLOW_ROOT", cfg.WordPress.AllowRoot)

	cfg.Queue.Concurrency = getEnvInt("WORKER_CONCURRENCY", cfg.Queue.Concurrency)
	cfg.Feed.ConfigPath = getEnvString("FEED_CONFIG", cfg.Feed.ConfigPath)
	cfg.Feed.DailyAt = getEnvString("FEED_DAILY_AT", cfg.Feed.DailyAt)
}

func getEnvString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: ignoring %s=%q: %v", key, v, err)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARN: ignoring %s=%q: %v", key, v, err)
		return fallback
	}
	return b
}

// ParseDailyAt splits an "HH:MM" string.
func ParseDailyAt(s string) (hour, minute uint, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid daily time %q: %w", s, err)
	}
	return uint(t.Hour()), uint(t.Minute()), nil
}
