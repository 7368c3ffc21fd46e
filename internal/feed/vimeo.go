package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	vimeoBaseURL     = "https://api.vimeo.com"
	vimeoAccept      = "application/vnd.vimeo.*+json;version=3.4"
	vimeoPerPage     = 100
	vimeoAttempts    = 3
	vimeoMinInterval = 100 * time.Millisecond
	defaultRetryWait = 60 * time.Second
	maxVimeoBody     = 8 << 20

	videoFields = "uri,name,description,duration,created_time,modified_time," +
		"release_time,pictures,files,play,tags,categories,privacy," +
		"embed,link,stats,metadata,player_embed_url"
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type VimeoUser struct {
	URI        string `json:"uri"`
	Name       string `json:"name"`
	Account    string `json:"account"`
	Link       string `json:"link"`
	VideoCount int    `json:"-"`
}

type videoPage struct {
	Data   []vimeoVideo `json:"data"`
	Paging struct {
		Next *string `json:"next"`
	} `json:"paging"`
}

// ListOptions selects one page of a user's videos.
type ListOptions struct {
	Page      int
	PerPage   int
	Sort      string
	Direction string
	// AllowUnplayable drops the playable filter.
	AllowUnplayable bool
}

// VimeoClient reads a video catalog from the Vimeo API with throttling and retries.
type VimeoClient struct {
	http     httpDoer
	baseURL  string
	token    string
	userID   string
	folderID string
	albumID  string

	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewVimeoClient(cfg VimeoConfig) (*VimeoClient, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, fmt.Errorf("%w: access token is required", ErrAuth)
	}
	return &VimeoClient{
		http:        &http.Client{Timeout: 30 * time.Second},
		baseURL:     vimeoBaseURL,
		token:       cfg.AccessToken,
		userID:      cfg.UserID,
		folderID:    cfg.FolderID,
		albumID:     cfg.AlbumID,
		minInterval: vimeoMinInterval,
		sleep:       sleepContext,
		now:         time.Now,
	}, nil
}

func (c *VimeoClient) SetBaseURL(base string) {
	if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
		c.baseURL = base
	}
}

func (c *VimeoClient) SetHTTPClient(client httpDoer) {
	if client != nil {
		c.http = client
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *VimeoClient) user(id string) string {
	if id != "" {
		return id
	}
	if c.userID != "" {
		return c.userID
	}
	return "me"
}

// throttle keeps at least minInterval between requests.
func (c *VimeoClient) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := c.minInterval - c.now().Sub(c.lastRequest)
	c.mu.Unlock()
	if err := c.sleep(ctx, wait); err != nil {
		return err
	}
	c.mu.Lock()
	c.lastRequest = c.now()
	c.mu.Unlock()
	return nil
}

func (c *VimeoClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	if err := c.throttle(ctx); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < vimeoAttempts; attempt++ {
		last := attempt == vimeoAttempts-1

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create vimeo request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", vimeoAccept)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if !last {
				wait := time.Duration(1<<attempt) * time.Second
				log.Printf("WARN: vimeo request failed, retrying in %s: %v", wait, err)
				if err := c.sleep(ctx, wait); err != nil {
					return err
				}
				continue
			}
			break
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxVimeoBody))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter(resp.Header.Get("Retry-After"))
			if !last {
				log.Printf("WARN: vimeo rate limited, waiting %s", wait)
				if err := c.sleep(ctx, wait); err != nil {
					return err
				}
				continue
			}
			return &RateLimitError{RetryAfter: wait}
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrAuth, strings.TrimSpace(string(body)))
		case resp.StatusCode >= http.StatusBadRequest:
			return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}

		if readErr != nil {
			return fmt.Errorf("read vimeo response: %w", readErr)
		}
		if out == nil || len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode vimeo response: %w", err)
		}
		return nil
	}
	return &APIError{Message: fmt.Sprintf("request failed after %d attempts: %v", vimeoAttempts, lastErr)}
}

func retryAfter(h string) time.Duration {
	if n, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	return defaultRetryWait
}

func (c *VimeoClient) GetUser(ctx context.Context, id string) (*VimeoUser, error) {
	var raw struct {
		VimeoUser
		Metadata struct {
			Connections struct {
				Videos struct {
					Total int `json:"total"`
				} `json:"videos"`
			} `json:"connections"`
		} `json:"metadata"`
	}
	if err := c.get(ctx, "/users/"+url.PathEscape(c.user(id)), nil, &raw); err != nil {
		return nil, err
	}
	u := raw.VimeoUser
	u.VideoCount = raw.Metadata.Connections.Videos.Total
	return &u, nil
}

func (c *VimeoClient) GetVideo(ctx context.Context, id string) (*Video, error) {
	var raw vimeoVideo
	if err := c.get(ctx, "/videos/"+url.PathEscape(id), url.Values{"fields": {videoFields}}, &raw); err != nil {
		return nil, err
	}
	v := raw.toVideo(c.now())
	return &v, nil
}

// ListVideos fetches one page of the user's videos and reports whether more pages follow.
func (c *VimeoClient) ListVideos(ctx context.Context, opts ListOptions) ([]Video, bool, error) {
	return c.page(ctx, "/users/"+url.PathEscape(c.user(""))+"/videos", c.listParams(opts))
}

func (c *VimeoClient) listParams(opts ListOptions) url.Values {
	perPage := opts.PerPage
	if perPage <= 0 || perPage > vimeoPerPage {
		perPage = vimeoPerPage
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}
	params := url.Values{
		"per_page": {strconv.Itoa(perPage)},
		"page":     {strconv.Itoa(page)},
		"fields":   {videoFields},
	}
	if opts.Sort != "" {
		params.Set("sort", opts.Sort)
	}
	if opts.Direction != "" {
		params.Set("direction", opts.Direction)
	}
	if !opts.AllowUnplayable {
		params.Set("filter", "playable")
	}
	return params
}

func (c *VimeoClient) page(ctx context.Context, path string, params url.Values) ([]Video, bool, error) {
	var p videoPage
	if err := c.get(ctx, path, params, &p); err != nil {
		return nil, false, err
	}
	now := c.now()
	videos := make([]Video, 0, len(p.Data))
	for i := range p.Data {
		videos = append(videos, p.Data[i].toVideo(now))
	}
	return videos, p.Paging.Next != nil && *p.Paging.Next != "", nil
}

// walk pages through path until fn returns false, the pages run out or limit is reached.
func (c *VimeoClient) walk(ctx context.Context, path string, opts ListOptions, limit int, fn func(Video) bool) error {
	seen := 0
	for page := 1; ; page++ {
		opts.Page = page
		videos, more, err := c.page(ctx, path, c.listParams(opts))
		if err != nil {
			return err
		}
		if len(videos) == 0 {
			return nil
		}
		for _, v := range videos {
			if !fn(v) {
				return nil
			}
			seen++
			if limit > 0 && seen >= limit {
				return nil
			}
		}
		if !more {
			return nil
		}
		log.Printf("DEBUG: fetching vimeo page %d of %s", page+1, path)
	}
}

func collect(out *[]Video) func(Video) bool {
	return func(v Video) bool {
		*out = append(*out, v)
		return true
	}
}

// AllVideos returns the user's playable videos, newest first; limit <= 0 means all.
func (c *VimeoClient) AllVideos(ctx context.Context, limit int) ([]Video, error) {
	var videos []Video
	opts := ListOptions{Sort: "date", Direction: "desc"}
	err := c.walk(ctx, "/users/"+url.PathEscape(c.user(""))+"/videos", opts, limit, collect(&videos))
	return videos, err
}

func (c *VimeoClient) AlbumVideos(ctx context.Context, albumID string, limit int) ([]Video, error) {
	if albumID == "" {
		albumID = c.albumID
	}
	if albumID == "" {
		return nil, fmt.Errorf("album: %w", ErrMissingSource)
	}
	var videos []Video
	path := "/users/" + url.PathEscape(c.user("")) + "/albums/" + url.PathEscape(albumID) + "/videos"
	err := c.walk(ctx, path, ListOptions{AllowUnplayable: true}, limit, collect(&videos))
	return videos, err
}

func (c *VimeoClient) FolderVideos(ctx context.Context, folderID string, limit int) ([]Video, error) {
	if folderID == "" {
		folderID = c.folderID
	}
	if folderID == "" {
		return nil, fmt.Errorf("folder: %w", ErrMissingSource)
	}
	var videos []Video
	path := "/users/" + url.PathEscape(c.user("")) + "/projects/" + url.PathEscape(folderID) + "/videos"
	err := c.walk(ctx, path, ListOptions{AllowUnplayable: true}, limit, collect(&videos))
	return videos, err
}

// VideosModifiedSince walks videos newest first and stops at the first one older than since.
func (c *VimeoClient) VideosModifiedSince(ctx context.Context, since time.Time) ([]Video, error) {
	var videos []Video
	opts := ListOptions{Sort: "date", Direction: "desc"}
	err := c.walk(ctx, "/users/"+url.PathEscape(c.user(""))+"/videos", opts, 0, func(v Video) bool {
		if v.ModifiedTime.Before(since) {
			return false
		}
		videos = append(videos, v)
		return true
	})
	return videos, err
}

// IsAuthError reports whether err came from rejected credentials.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuth)
}
