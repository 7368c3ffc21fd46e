package feed

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type VimeoConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AccessToken  string `yaml:"access_token"`
	// UserID defaults to the authenticated user ("me").
	UserID   string `yaml:"user_id"`
	FolderID string `yaml:"folder_id"`
	AlbumID  string `yaml:"album_id"`
}

type RokuConfig struct {
	ProviderName   string `yaml:"provider_name"`
	ChannelID      string `yaml:"channel_id"`
	Language       string `yaml:"language"`
	FeedOutputPath string `yaml:"feed_output_path"`
	DefaultGenre   string `yaml:"default_genre"`
	RatingSystem   string `yaml:"rating_system"`
	DefaultRating  string `yaml:"default_rating"`

	S3Bucket   string `yaml:"s3_bucket"`
	S3Key      string `yaml:"s3_key"`
	S3Region   string `yaml:"s3_region"`
	WebhookURL string `yaml:"webhook_url"`
}

type SyncConfig struct {
	IncludePrivate bool `yaml:"include_private"`
	// MinDuration and MaxDuration are in seconds; a nil MaxDuration means no limit.
	MinDuration          int      `yaml:"min_duration"`
	MaxDuration          *int     `yaml:"max_duration"`
	IncludeTags          []string `yaml:"include_tags"`
	ExcludeTags          []string `yaml:"exclude_tags"`
	ShortFormMaxDuration int      `yaml:"short_form_max_duration"`
	CacheEnabled         bool     `yaml:"cache_enabled"`
	CachePath            string   `yaml:"cache_path"`
	LogLevel             string   `yaml:"log_level"`
	LogFile              string   `yaml:"log_file"`
}

type Config struct {
	Vimeo VimeoConfig `yaml:"vimeo"`
	Roku  RokuConfig  `yaml:"roku"`
	Sync  SyncConfig  `yaml:"sync"`
}

const (
	DefaultFeedOutputPath = "./roku_feed.json"
	DefaultCachePath      = "./.vimeo_roku_cache"
	DefaultS3Key          = "roku-feed.json"
	DefaultGenre          = "Entertainment"
	DefaultShortFormMax   = 900
)

var ErrConfigNotFound = errors.New("feed configuration file not found")

func DefaultConfig() *Config {
	return &Config{
		Roku: RokuConfig{
			Language:       "en",
			FeedOutputPath: DefaultFeedOutputPath,
			DefaultGenre:   DefaultGenre,
			RatingSystem:   "USA_TV",
			DefaultRating:  "TV-G",
			S3Region:       "us-east-1",
		},
		Sync: SyncConfig{
			ShortFormMaxDuration: DefaultShortFormMax,
			CacheEnabled:         true,
			CachePath:            DefaultCachePath,
			LogLevel:             "INFO",
		},
	}
}

// LoadConfig reads a YAML file over the defaults and then applies the
// Vimeo credential env vars. An empty path loads everything from the environment.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return FromEnv(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read feed config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in feed config %s: %w", path, err)
	}

	if v := os.Getenv("VIMEO_ACCESS_TOKEN"); v != "" {
		cfg.Vimeo.AccessToken = v
	}
	if v := os.Getenv("VIMEO_CLIENT_ID"); v != "" {
		cfg.Vimeo.ClientID = v
	}
	if v := os.Getenv("VIMEO_CLIENT_SECRET"); v != "" {
		cfg.Vimeo.ClientSecret = v
	}
	return cfg, nil
}

func FromEnv() *Config {
	cfg := DefaultConfig()

	cfg.Vimeo = VimeoConfig{
		ClientID:     os.Getenv("VIMEO_CLIENT_ID"),
		ClientSecret: os.Getenv("VIMEO_CLIENT_SECRET"),
		AccessToken:  os.Getenv("VIMEO_ACCESS_TOKEN"),
		UserID:       os.Getenv("VIMEO_USER_ID"),
		FolderID:     os.Getenv("VIMEO_FOLDER_ID"),
		AlbumID:      os.Getenv("VIMEO_ALBUM_ID"),
	}

	r := &cfg.Roku
	r.ProviderName = os.Getenv("ROKU_PROVIDER_NAME")
	r.ChannelID = os.Getenv("ROKU_CHANNEL_ID")
	r.Language = envString("ROKU_LANGUAGE", r.Language)
	r.FeedOutputPath = envString("ROKU_FEED_OUTPUT_PATH", r.FeedOutputPath)
	r.DefaultGenre = envString("ROKU_DEFAULT_GENRE", r.DefaultGenre)
	r.RatingSystem = envString("ROKU_RATING_SYSTEM", r.RatingSystem)
	r.DefaultRating = envString("ROKU_DEFAULT_RATING", r.DefaultRating)
	r.S3Bucket = os.Getenv("ROKU_S3_BUCKET")
	r.S3Key = os.Getenv("ROKU_S3_KEY")
	r.S3Region = envString("AWS_REGION", r.S3Region)
	r.WebhookURL = os.Getenv("ROKU_WEBHOOK_URL")

	s := &cfg.Sync
	s.IncludePrivate = envBool("SYNC_INCLUDE_PRIVATE", s.IncludePrivate)
	s.MinDuration = envInt("SYNC_MIN_DURATION", s.MinDuration)
	if v := os.Getenv("SYNC_MAX_DURATION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.MaxDuration = &n
		}
	}
	s.IncludeTags = splitTags(os.Getenv("SYNC_INCLUDE_TAGS"))
	s.ExcludeTags = splitTags(os.Getenv("SYNC_EXCLUDE_TAGS"))
	s.ShortFormMaxDuration = envInt("SYNC_SHORT_FORM_MAX_DURATION", s.ShortFormMaxDuration)
	s.CacheEnabled = envBool("SYNC_CACHE_ENABLED", s.CacheEnabled)
	s.CachePath = envString("SYNC_CACHE_PATH", s.CachePath)
	s.LogLevel = envString("SYNC_LOG_LEVEL", s.LogLevel)
	s.LogFile = os.Getenv("SYNC_LOG_FILE")
	return cfg
}

// Validate returns every missing required setting.
func (c *Config) Validate() []string {
	var problems []string
	if strings.TrimSpace(c.Vimeo.AccessToken) == "" {
		problems = append(problems, "Vimeo access token is required")
	}
	if strings.TrimSpace(c.Roku.ProviderName) == "" {
		problems = append(problems, "Roku provider name is required")
	}
	return problems
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true")
	}
	return fallback
}

func splitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// SampleConfig is written by `feedctl init`.
const SampleConfig = `# Video feed sync configuration

vimeo:
  # Required: Vimeo API access token (or set VIMEO_ACCESS_TOKEN)
  access_token: ""
  # Optional: user id, empty means the authenticated user
  user_id: ""
  # Optional: sync only one folder/project or album/showcase
  folder_id: ""
  album_id: ""

roku:
  # Required: channel provider name
  provider_name: "Your Channel Name"
  channel_id: ""
  language: "en"
  feed_output_path: "./roku_feed.json"
  # Genre for videos without categories
  default_genre: "Entertainment"
  rating_system: "USA_TV"
  default_rating: "TV-G"
  # s3_bucket: "your-bucket-name"
  # s3_key: "feeds/roku-feed.json"
  # s3_region: "us-east-1"
  # webhook_url: "https://your-server.com/webhook"

sync:
  include_private: false
  # Durations in seconds
  min_duration: 0
  # max_duration: 3600
  include_tags: []
  exclude_tags: []
  # Shorter videos are short-form, longer ones are movies
  short_form_max_duration: 900
  cache_enabled: true
  cache_path: "./.vimeo_roku_cache"
  log_level: "INFO"
  # log_file: "./sync.log"
`
