package feed

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Generator accumulates videos into a Direct Publisher feed.
type Generator struct {
	cfg          RokuConfig
	shortFormMax int
	feed         Feed
	now          func() time.Time
}

func NewGenerator(cfg RokuConfig, shortFormMax int) (*Generator, error) {
	if cfg.ProviderName == "" {
		return nil, ErrNoProvider
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.DefaultGenre == "" {
		cfg.DefaultGenre = DefaultGenre
	}
	if cfg.FeedOutputPath == "" {
		cfg.FeedOutputPath = DefaultFeedOutputPath
	}
	if shortFormMax <= 0 {
		shortFormMax = DefaultShortFormMax
	}
	g := &Generator{cfg: cfg, shortFormMax: shortFormMax, now: time.Now}
	g.Reset()
	return g, nil
}

func (g *Generator) Reset() {
	g.feed = Feed{ProviderName: g.cfg.ProviderName, Language: g.cfg.Language}
}

// TypeFor classifies v as short-form or movie by duration.
func (g *Generator) TypeFor(v *Video) VideoType {
	if v.Duration < g.shortFormMax {
		return TypeShortForm
	}
	return TypeMovie
}

// AddVideo adds v; empty kind and genres fall back to the duration rule and
// the config default, a nil rating to the configured default rating.
func (g *Generator) AddVideo(v *Video, kind VideoType, genres []string, rating *Rating) RokuVideo {
	if kind == "" {
		kind = g.TypeFor(v)
	}
	rv := NewRokuVideo(v, kind)

	switch {
	case len(genres) > 0:
		rv.Genres = append([]string{}, genres...)
	case len(v.Categories) == 0:
		rv.Genres = []string{g.cfg.DefaultGenre}
	}

	if rating != nil {
		rv.Rating = rating
	} else if g.cfg.RatingSystem != "" && g.cfg.DefaultRating != "" {
		rv.Rating = &Rating{Rating: g.cfg.DefaultRating, RatingSource: g.cfg.RatingSystem}
	}

	g.feed.add(rv)
	log.Printf("DEBUG: added video %q as %s", rv.Title, kind)
	return rv
}

// AddSeries adds a series. seasons maps a season number to indexes into
// episodes; nil puts every episode in season 1.
func (g *Generator) AddSeries(id, title string, episodes []Video, seasons map[int][]int, description, thumbnail string, genres []string, releaseDate string) {
	if seasons == nil {
		all := make([]int, len(episodes))
		for i := range episodes {
			all[i] = i
		}
		seasons = map[int][]int{1: all}
	}

	numbers := make([]int, 0, len(seasons))
	for n := range seasons {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	out := make([]Season, 0, len(numbers))
	for _, n := range numbers {
		season := Season{SeasonNumber: n, Episodes: []Episode{}}
		for _, idx := range seasons[n] {
			if idx < 0 || idx >= len(episodes) {
				continue
			}
			v := &episodes[idx]
			num := len(season.Episodes) + 1
			release := ""
			if !v.ReleaseDate.IsZero() {
				release = v.ReleaseDate.UTC().Format(rokuDate)
			}
			season.Episodes = append(season.Episodes, Episode{
				ID:               fmt.Sprintf("%s-s%de%d", id, n, num),
				Title:            v.Title,
				EpisodeNumber:    num,
				ShortDescription: describe(v, shortDescMax),
				LongDescription:  describe(v, longDescMax),
				ReleaseDate:      release,
				Thumbnail:        thumbnailURL(v),
				Content:          videoContent(v),
			})
		}
		out = append(out, season)
	}

	if thumbnail == "" && len(episodes) > 0 {
		thumbnail = thumbnailURL(&episodes[0])
	}
	if releaseDate == "" && len(episodes) > 0 && !episodes[0].ReleaseDate.IsZero() {
		releaseDate = episodes[0].ReleaseDate.UTC().Format(rokuDate)
	}
	if len(genres) == 0 {
		genres = []string{g.cfg.DefaultGenre}
	}
	short, long := title, title
	if description != "" {
		short, long = truncate(description, shortDescMax), truncate(description, longDescMax)
	}

	g.feed.Series = append(g.feed.Series, Series{
		ID:               id,
		Title:            truncate(title, titleMax),
		ShortDescription: short,
		LongDescription:  long,
		Thumbnail:        thumbnail,
		ReleaseDate:      releaseDate,
		Genres:           genres,
		Seasons:          out,
	})
}

func (g *Generator) AddPlaylist(id, name string, videoIDs []string) {
	g.feed.Playlists = append(g.feed.Playlists, Playlist{Name: name, PlaylistID: id, ItemIDs: append([]string{}, videoIDs...)})
}

// AddCategory groups playlists; order defaults to "manual".
func (g *Generator) AddCategory(name string, playlistIDs []string, order string) {
	if order == "" {
		order = "manual"
	}
	g.feed.Categories = append(g.feed.Categories, Category{Name: name, PlaylistIDs: append([]string{}, playlistIDs...), Order: order})
}

// Validate lists every problem that would make the feed fail ingestion.
func (g *Generator) Validate() []string {
	var problems []string
	if g.feed.ProviderName == "" {
		problems = append(problems, "Provider name is required")
	}
	for i := range g.feed.ShortFormVideos {
		problems = append(problems, validateVideo(&g.feed.ShortFormVideos[i], TypeShortForm)...)
	}
	for i := range g.feed.Movies {
		problems = append(problems, validateVideo(&g.feed.Movies[i], TypeMovie)...)
	}
	for _, s := range g.feed.Series {
		if s.ID == "" {
			problems = append(problems, "Series missing required 'id' field")
		}
		if s.Title == "" {
			problems = append(problems, "Series missing required 'title' field")
		}
		if len(s.Seasons) == 0 {
			problems = append(problems, fmt.Sprintf("Series '%s' has no seasons", s.ID))
		}
	}
	return problems
}

func validateVideo(v *RokuVideo, kind VideoType) []string {
	var problems []string
	prefix := fmt.Sprintf("%s '%s'", kind, v.ID)
	if v.ID == "" {
		problems = append(problems, prefix+": Missing required 'id' field")
	}
	if v.Title == "" {
		problems = append(problems, prefix+": Missing required 'title' field")
	} else if len([]rune(v.Title)) > titleMax {
		problems = append(problems, fmt.Sprintf("%s: Title exceeds %d characters", prefix, titleMax))
	}
	if len([]rune(v.ShortDescription)) > shortDescMax {
		problems = append(problems, fmt.Sprintf("%s: Short description exceeds %d characters", prefix, shortDescMax))
	}
	if v.Thumbnail == "" {
		problems = append(problems, prefix+": Missing required 'thumbnail' field")
	}
	if len(v.Content.Videos) == 0 {
		problems = append(problems, prefix+": No video content URLs provided")
	}
	return problems
}

type Stats struct {
	ShortFormVideos int `json:"short_form_videos"`
	Movies          int `json:"movies"`
	Series          int `json:"series"`
	TVSpecials      int `json:"tv_specials"`
	Playlists       int `json:"playlists"`
	Categories      int `json:"categories"`
	TotalVideos     int `json:"total_videos"`
}

func (g *Generator) Stats() Stats {
	f := &g.feed
	return Stats{
		ShortFormVideos: len(f.ShortFormVideos),
		Movies:          len(f.Movies),
		Series:          len(f.Series),
		TVSpecials:      len(f.TVSpecials),
		Playlists:       len(f.Playlists),
		Categories:      len(f.Categories),
		TotalVideos:     len(f.ShortFormVideos) + len(f.Movies) + len(f.TVSpecials),
	}
}

// Feed stamps lastUpdated and returns a copy of the feed.
func (g *Generator) Feed() Feed {
	g.feed.LastUpdated = g.now().UTC().Format(rokuDateTime)
	return g.feed
}

func (g *Generator) JSON() ([]byte, error) {
	f := g.Feed()
	return json.MarshalIndent(&f, "", "  ")
}

// Save writes the feed to path (the configured output path when empty),
// logging validation problems without refusing to write.
func (g *Generator) Save(path string) (string, error) {
	if path == "" {
		path = g.cfg.FeedOutputPath
	}

	if problems := g.Validate(); len(problems) > 0 {
		log.Printf("WARN: feed has %d validation issues", len(problems))
		for i, p := range problems {
			if i == 10 {
				break
			}
			log.Printf("WARN:   - %s", p)
		}
	}

	data, err := g.JSON()
	if err != nil {
		return "", fmt.Errorf("encode feed: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create feed directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write feed: %w", err)
	}
	log.Printf("Feed saved to %s", path)
	return path, nil
}
