package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	SourceAll    = "all"
	SourceAlbum  = "album"
	SourceFolder = "folder"

	stateFile = "sync_state.json"
)

// VideoSource is the catalog a sync reads from; *VimeoClient implements it.
type VideoSource interface {
	AllVideos(ctx context.Context, limit int) ([]Video, error)
	AlbumVideos(ctx context.Context, albumID string, limit int) ([]Video, error)
	FolderVideos(ctx context.Context, folderID string, limit int) ([]Video, error)
	VideosModifiedSince(ctx context.Context, since time.Time) ([]Video, error)
}

// Publisher ships a saved feed; *Uploader implements it.
type Publisher interface {
	UploadToS3(ctx context.Context, path string) (string, error)
	NotifyWebhook(ctx context.Context, feedURL string) error
}

type SyncOptions struct {
	// Source is all, album or folder; empty picks album or folder when an id
	// is given here or in the config, else all.
	Source      string
	AlbumID     string
	FolderID    string
	Incremental bool
	Upload      bool
	Notify      bool
	// OutputPath overrides the configured feed path.
	OutputPath string
	Limit      int
}

type SyncResult struct {
	Processed int           `json:"videos_processed"`
	Added     int           `json:"videos_added"`
	Skipped   int           `json:"videos_skipped"`
	Failed    int           `json:"videos_failed"`
	FeedPath  string        `json:"feed_path,omitempty"`
	FeedURL   string        `json:"feed_url,omitempty"`
	Errors    []string      `json:"errors,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// SyncState is persisted between runs for incremental syncs.
type SyncState struct {
	LastSync       *time.Time `json:"last_sync"`
	LastVideoCount int        `json:"last_video_count"`
	SyncedVideoIDs []string   `json:"synced_video_ids"`
}

func LoadState(path string) *SyncState {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("WARN: read sync state: %v", err)
		}
		return &SyncState{}
	}
	st := &SyncState{}
	if err := json.Unmarshal(data, st); err != nil {
		log.Printf("WARN: failed to load sync state: %v", err)
		return &SyncState{}
	}
	return st
}

func (s *SyncState) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *SyncState) markSynced(id string) {
	for _, existing := range s.SyncedVideoIDs {
		if existing == id {
			return
		}
	}
	s.SyncedVideoIDs = append(s.SyncedVideoIDs, id)
}

// SyncManager turns a video catalog into a saved, optionally published feed.
type SyncManager struct {
	cfg       *Config
	source    VideoSource
	gen       *Generator
	publisher Publisher
	statePath string
	state     *SyncState
	now       func() time.Time

	// OnProgress, when set, is called after each video with (done, total).
	OnProgress func(done, total int)
}

func NewSyncManager(cfg *Config, source VideoSource, publisher Publisher) (*SyncManager, error) {
	if cfg == nil {
		return nil, errors.New("feed config is required")
	}
	if source == nil {
		return nil, errors.New("video source is required")
	}
	gen, err := NewGenerator(cfg.Roku, cfg.Sync.ShortFormMaxDuration)
	if err != nil {
		return nil, err
	}
	cachePath := cfg.Sync.CachePath
	if cachePath == "" {
		cachePath = DefaultCachePath
	}
	return &SyncManager{
		cfg:       cfg,
		source:    source,
		gen:       gen,
		publisher: publisher,
		statePath: filepath.Join(cachePath, stateFile),
		now:       time.Now,
	}, nil
}

// NewSyncManagerFromConfig wires the Vimeo client, the S3 client (when a
// bucket is configured) and the webhook uploader.
func NewSyncManagerFromConfig(ctx context.Context, cfg *Config) (*SyncManager, error) {
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid feed config: %s", strings.Join(problems, "; "))
	}
	client, err := NewVimeoClient(cfg.Vimeo)
	if err != nil {
		return nil, err
	}
	var s3c S3PutObjectAPI
	if cfg.Roku.S3Bucket != "" {
		c, err := NewS3Client(ctx, cfg.Roku.S3Region)
		if err != nil {
			return nil, err
		}
		s3c = c
	}
	return NewSyncManager(cfg, client, NewUploader(cfg.Roku, s3c, nil))
}

func (m *SyncManager) loadState() *SyncState {
	if m.state == nil {
		if m.cfg.Sync.CacheEnabled {
			m.state = LoadState(m.statePath)
		} else {
			m.state = &SyncState{}
		}
	}
	return m.state
}

func (m *SyncManager) saveState() {
	if m.state == nil || !m.cfg.Sync.CacheEnabled {
		return
	}
	if err := m.state.Save(m.statePath); err != nil {
		log.Printf("WARN: save sync state: %v", err)
	}
}

func (m *SyncManager) resolveSource(opts SyncOptions) (string, string) {
	switch opts.Source {
	case SourceAlbum:
		return SourceAlbum, firstNonEmpty(opts.AlbumID, m.cfg.Vimeo.AlbumID)
	case SourceFolder:
		return SourceFolder, firstNonEmpty(opts.FolderID, m.cfg.Vimeo.FolderID)
	case SourceAll:
		return SourceAll, ""
	}
	if id := firstNonEmpty(opts.AlbumID, m.cfg.Vimeo.AlbumID); id != "" {
		return SourceAlbum, id
	}
	if id := firstNonEmpty(opts.FolderID, m.cfg.Vimeo.FolderID); id != "" {
		return SourceFolder, id
	}
	return SourceAll, ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Fetch reads videos from the resolved source.
func (m *SyncManager) Fetch(ctx context.Context, opts SyncOptions) ([]Video, error) {
	source, id := m.resolveSource(opts)
	log.Printf("Fetching videos (source: %s)", source)

	var (
		videos []Video
		err    error
	)
	switch source {
	case SourceAlbum:
		videos, err = m.source.AlbumVideos(ctx, id, opts.Limit)
	case SourceFolder:
		videos, err = m.source.FolderVideos(ctx, id, opts.Limit)
	default:
		videos, err = m.source.AllVideos(ctx, opts.Limit)
	}
	if err != nil {
		return nil, err
	}
	log.Printf("Fetched %d videos", len(videos))
	return videos, nil
}

// Include applies the privacy, duration, tag and playability filters.
func (m *SyncManager) Include(v *Video) bool {
	sc := m.cfg.Sync
	if !sc.IncludePrivate && v.Privacy != "anybody" {
		log.Printf("DEBUG: skipping private video %q", v.Title)
		return false
	}
	if v.Duration < sc.MinDuration {
		log.Printf("DEBUG: skipping short video %q (%ds)", v.Title, v.Duration)
		return false
	}
	if sc.MaxDuration != nil && *sc.MaxDuration > 0 && v.Duration > *sc.MaxDuration {
		log.Printf("DEBUG: skipping long video %q (%ds)", v.Title, v.Duration)
		return false
	}
	if len(sc.IncludeTags) > 0 && !hasAnyTag(v.Tags, sc.IncludeTags) {
		log.Printf("DEBUG: skipping video without required tags %q", v.Title)
		return false
	}
	if len(sc.ExcludeTags) > 0 && hasAnyTag(v.Tags, sc.ExcludeTags) {
		log.Printf("DEBUG: skipping video with excluded tag %q", v.Title)
		return false
	}
	if v.BestFile() == nil {
		log.Printf("WARN: skipping video without playable content %q", v.Title)
		return false
	}
	return true
}

func hasAnyTag(tags, want []string) bool {
	for _, t := range tags {
		for _, w := range want {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}

// Sync builds and saves a feed. Per-video, upload and webhook problems are
// collected in the result; fetch and save failures are returned as errors.
func (m *SyncManager) Sync(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	start := m.now()
	res := &SyncResult{Timestamp: start}
	defer func() { res.Duration = m.now().Sub(start) }()

	state := m.loadState()
	m.gen.Reset()

	var (
		videos []Video
		err    error
	)
	if opts.Incremental && state.LastSync != nil {
		log.Printf("Performing incremental sync since %s", state.LastSync.Format(time.RFC3339))
		videos, err = m.source.VideosModifiedSince(ctx, *state.LastSync)
	} else {
		videos, err = m.Fetch(ctx, opts)
	}
	if err != nil {
		res.Errors = append(res.Errors, "Vimeo API: "+err.Error())
		return res, fmt.Errorf("fetch videos: %w", err)
	}

	total := len(videos)
	log.Printf("Processing %d videos", total)
	for i := range videos {
		v := &videos[i]
		res.Processed++
		if m.OnProgress != nil {
			m.OnProgress(i+1, total)
		}
		if !m.Include(v) {
			res.Skipped++
			continue
		}
		if v.ID == "" {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("Video %q: missing id", v.Title))
			continue
		}
		m.gen.AddVideo(v, m.gen.TypeFor(v), nil, nil)
		res.Added++
		state.markSynced(v.ID)
	}

	for _, p := range m.gen.Validate() {
		res.Errors = append(res.Errors, "Validation: "+p)
	}

	path, err := m.gen.Save(opts.OutputPath)
	if err != nil {
		res.Errors = append(res.Errors, "Roku feed: "+err.Error())
		return res, err
	}
	res.FeedPath = path

	if opts.Upload && m.cfg.Roku.S3Bucket != "" && m.publisher != nil {
		url, err := m.publisher.UploadToS3(ctx, path)
		if err != nil {
			log.Printf("ERROR: failed to upload feed to S3: %v", err)
			res.Errors = append(res.Errors, "S3 upload: "+err.Error())
		} else {
			res.FeedURL = url
		}
	}
	if opts.Notify && res.FeedURL != "" && m.publisher != nil {
		if err := m.publisher.NotifyWebhook(ctx, res.FeedURL); err != nil && !errors.Is(err, ErrNoWebhook) {
			log.Printf("ERROR: failed to send webhook notification: %v", err)
			res.Errors = append(res.Errors, "Webhook: "+err.Error())
		}
	}

	now := m.now()
	state.LastSync = &now
	state.LastVideoCount = res.Added
	m.saveState()

	log.Printf("Sync completed: %d added, %d skipped, %d failed", res.Added, res.Skipped, res.Failed)
	return res, nil
}

func (m *SyncManager) Stats() Stats {
	return m.gen.Stats()
}

type LastSyncInfo struct {
	LastSync    time.Time `json:"last_sync"`
	VideoCount  int       `json:"video_count"`
	SyncedCount int       `json:"synced_ids_count"`
}

// LastSync returns nil when no sync has completed.
func (m *SyncManager) LastSync() *LastSyncInfo {
	st := m.loadState()
	if st.LastSync == nil {
		return nil
	}
	return &LastSyncInfo{LastSync: *st.LastSync, VideoCount: st.LastVideoCount, SyncedCount: len(st.SyncedVideoIDs)}
}

func (m *SyncManager) ClearCache() error {
	m.state = &SyncState{}
	if err := os.Remove(m.statePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	log.Printf("Sync cache cleared")
	return nil
}
