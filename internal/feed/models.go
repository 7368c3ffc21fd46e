package feed

import (
	"strings"
	"time"
	"unicode/utf8"
)

type Quality string

const (
	QualitySD  Quality = "SD"
	QualityHD  Quality = "HD"
	QualityFHD Quality = "FHD"
	QualityUHD Quality = "UHD"
)

type VideoType string

const (
	TypeMovie     VideoType = "movie"
	TypeShortForm VideoType = "shortFormVideo"
	TypeSeries    VideoType = "series"
	TypeEpisode   VideoType = "episode"
	TypeTVSpecial VideoType = "tvSpecial"
)

const (
	rokuDateTime = "2006-01-02T15:04:05Z"
	rokuDate     = "2006-01-02"

	titleMax      = 100
	shortDescMax  = 200
	longDescMax   = 500
	tagsMax       = 20
	genresMax     = 5
	minThumbWidth = 800
)

func QualityForHeight(height int) Quality {
	switch {
	case height >= 2160:
		return QualityUHD
	case height >= 1080:
		return QualityFHD
	case height >= 720:
		return QualityHD
	default:
		return QualitySD
	}
}

type VideoFile struct {
	URL     string
	Quality Quality
	// Type is HLS, MP4 or DASH.
	Type   string
	Size   int64
	Width  int
	Height int
}

type Thumbnail struct {
	URL    string
	Width  int
	Height int
}

// Video is a catalog entry as read from Vimeo.
type Video struct {
	ID           string
	Title        string
	Description  string
	Duration     int
	CreatedTime  time.Time
	ModifiedTime time.Time
	ReleaseDate  time.Time
	Thumbnails   []Thumbnail
	Files        []VideoFile
	Tags         []string
	Categories   []string
	Privacy      string
	EmbedHTML    string
	Link         string
	Plays        int
	Likes        int
	URI          string
	EmbedURL     string
}

// vimeoVideo mirrors the fields requested from the Vimeo API.
type vimeoVideo struct {
	URI          string `json:"uri"`
	ResourceKey  string `json:"resource_key"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Duration     int    `json:"duration"`
	CreatedTime  string `json:"created_time"`
	ModifiedTime string `json:"modified_time"`
	ReleaseTime  string `json:"release_time"`
	Pictures     struct {
		Sizes []struct {
			Link   string `json:"link"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		} `json:"sizes"`
	} `json:"pictures"`
	Files []struct {
		Link   string `json:"link"`
		Type   string `json:"type"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Size   int64  `json:"size"`
	} `json:"files"`
	Play *struct {
		HLS *struct {
			Link string `json:"link"`
		} `json:"hls"`
	} `json:"play"`
	Tags []struct {
		Name string `json:"name"`
	} `json:"tags"`
	Categories []struct {
		Name string `json:"name"`
	} `json:"categories"`
	Privacy struct {
		View string `json:"view"`
	} `json:"privacy"`
	Embed struct {
		HTML string `json:"html"`
	} `json:"embed"`
	Link  string `json:"link"`
	Stats struct {
		Plays int `json:"plays"`
	} `json:"stats"`
	Metadata struct {
		Connections struct {
			Likes struct {
				Total int `json:"total"`
			} `json:"likes"`
		} `json:"connections"`
	} `json:"metadata"`
	PlayerEmbedURL string `json:"player_embed_url"`
}

func (v *vimeoVideo) toVideo(now time.Time) Video {
	out := Video{
		Title:       v.Name,
		Description: v.Description,
		Duration:    v.Duration,
		Privacy:     v.Privacy.View,
		EmbedHTML:   v.Embed.HTML,
		Link:        v.Link,
		Plays:       v.Stats.Plays,
		Likes:       v.Metadata.Connections.Likes.Total,
		URI:         v.URI,
		EmbedURL:    v.PlayerEmbedURL,
	}
	if i := strings.LastIndexByte(v.URI, '/'); i >= 0 && i < len(v.URI)-1 {
		out.ID = v.URI[i+1:]
	} else {
		out.ID = v.ResourceKey
	}
	if out.Title == "" {
		out.Title = "Untitled"
	}
	if out.Privacy == "" {
		out.Privacy = "anybody"
	}

	for _, p := range v.Pictures.Sizes {
		out.Thumbnails = append(out.Thumbnails, Thumbnail{URL: p.Link, Width: p.Width, Height: p.Height})
	}
	for _, f := range v.Files {
		kind := f.Type
		if kind == "" {
			kind = "video/mp4"
		}
		out.Files = append(out.Files, VideoFile{
			URL:     f.Link,
			Quality: QualityForHeight(f.Height),
			Type:    strings.Replace(strings.ToUpper(kind), "VIDEO/", "", 1),
			Size:    f.Size,
			Width:   f.Width,
			Height:  f.Height,
		})
	}
	if v.Play != nil && v.Play.HLS != nil {
		out.Files = append(out.Files, VideoFile{URL: v.Play.HLS.Link, Quality: QualityHD, Type: "HLS"})
	}
	for _, t := range v.Tags {
		if t.Name != "" {
			out.Tags = append(out.Tags, t.Name)
		}
	}
	for _, c := range v.Categories {
		if c.Name != "" {
			out.Categories = append(out.Categories, c.Name)
		}
	}

	out.CreatedTime = parseTime(v.CreatedTime, now)
	out.ModifiedTime = parseTime(v.ModifiedTime, now)
	out.ReleaseDate = out.CreatedTime
	if v.ReleaseTime != "" {
		out.ReleaseDate = parseTime(v.ReleaseTime, now)
	}
	return out
}

func parseTime(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fallback
	}
	return t
}

// BestThumbnail picks the smallest thumbnail at least 800px wide, or the widest one.
func (v *Video) BestThumbnail() *Thumbnail {
	var best *Thumbnail
	for i := range v.Thumbnails {
		t := &v.Thumbnails[i]
		if t.Width >= minThumbWidth && (best == nil || t.Width < best.Width) {
			best = t
		}
	}
	if best != nil {
		return best
	}
	for i := range v.Thumbnails {
		t := &v.Thumbnails[i]
		if best == nil || t.Width > best.Width {
			best = t
		}
	}
	return best
}

var qualityOrder = []Quality{QualityUHD, QualityFHD, QualityHD, QualitySD}

// BestFile prefers HLS, then the highest quality progressive file.
func (v *Video) BestFile() *VideoFile {
	for i := range v.Files {
		if v.Files[i].Type == "HLS" {
			return &v.Files[i]
		}
	}
	for _, q := range qualityOrder {
		for i := range v.Files {
			if v.Files[i].Quality == q {
				return &v.Files[i]
			}
		}
	}
	if len(v.Files) > 0 {
		return &v.Files[0]
	}
	return nil
}

type ContentVideo struct {
	URL       string  `json:"url"`
	Quality   Quality `json:"quality"`
	VideoType string  `json:"videoType"`
}

type Content struct {
	DateAdded string         `json:"dateAdded"`
	Duration  int            `json:"duration"`
	Videos    []ContentVideo `json:"videos"`
}

type Rating struct {
	Rating       string `json:"rating"`
	RatingSource string `json:"ratingSource"`
}

// RokuVideo is one item of a Direct Publisher feed.
type RokuVideo struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	ShortDescription string    `json:"shortDescription"`
	LongDescription  string    `json:"longDescription"`
	ReleaseDate      string    `json:"releaseDate"`
	Thumbnail        string    `json:"thumbnail"`
	Content          Content   `json:"content"`
	Tags             []string  `json:"tags"`
	Genres           []string  `json:"genres"`
	Rating           *Rating   `json:"rating,omitempty"`
	Type             VideoType `json:"-"`
}

func videoContent(v *Video) Content {
	c := Content{
		DateAdded: v.CreatedTime.UTC().Format(rokuDateTime),
		Duration:  v.Duration,
		Videos:    []ContentVideo{},
	}
	if f := v.BestFile(); f != nil {
		c.Videos = append(c.Videos, ContentVideo{URL: f.URL, Quality: f.Quality, VideoType: f.Type})
	}
	return c
}

func thumbnailURL(v *Video) string {
	if t := v.BestThumbnail(); t != nil {
		return t.URL
	}
	return ""
}

func describe(v *Video, max int) string {
	if v.Description == "" {
		return v.Title
	}
	return truncate(v.Description, max)
}

// NewRokuVideo converts v; an empty kind is chosen from the duration
// against the default short-form threshold.
func NewRokuVideo(v *Video, kind VideoType) RokuVideo {
	if kind == "" {
		kind = TypeMovie
		if v.Duration < DefaultShortFormMax {
			kind = TypeShortForm
		}
	}

	release := v.ReleaseDate
	if release.IsZero() {
		release = v.CreatedTime
	}

	genres := firstN(v.Categories, genresMax)
	if len(genres) == 0 {
		genres = []string{DefaultGenre}
	}

	return RokuVideo{
		ID:               "vimeo-" + v.ID,
		Title:            truncate(v.Title, titleMax),
		ShortDescription: describe(v, shortDescMax),
		LongDescription:  describe(v, longDescMax),
		ReleaseDate:      release.UTC().Format(rokuDate),
		Thumbnail:        thumbnailURL(v),
		Content:          videoContent(v),
		Tags:             firstN(v.Tags, tagsMax),
		Genres:           genres,
		Type:             kind,
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// firstN returns a copy of at most n items, never nil.
func firstN(items []string, n int) []string {
	if len(items) > n {
		items = items[:n]
	}
	return append([]string{}, items...)
}

type Episode struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	EpisodeNumber    int     `json:"episodeNumber"`
	ShortDescription string  `json:"shortDescription"`
	LongDescription  string  `json:"longDescription"`
	ReleaseDate      string  `json:"releaseDate"`
	Thumbnail        string  `json:"thumbnail"`
	Content          Content `json:"content"`
}

type Season struct {
	SeasonNumber int       `json:"seasonNumber"`
	Episodes     []Episode `json:"episodes"`
}

type Series struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	ShortDescription string   `json:"shortDescription"`
	LongDescription  string   `json:"longDescription"`
	Thumbnail        string   `json:"thumbnail"`
	ReleaseDate      string   `json:"releaseDate"`
	Genres           []string `json:"genres"`
	Seasons          []Season `json:"seasons"`
}

type Playlist struct {
	Name       string   `json:"name"`
	PlaylistID string   `json:"playlistId"`
	ItemIDs    []string `json:"itemIds"`
}

type Category struct {
	Name        string   `json:"name"`
	PlaylistIDs []string `json:"playlistIds"`
	Order       string   `json:"order"`
}

// Feed is a complete Direct Publisher document.
type Feed struct {
	ProviderName    string      `json:"providerName"`
	Language        string      `json:"language"`
	LastUpdated     string      `json:"lastUpdated"`
	ShortFormVideos []RokuVideo `json:"shortFormVideos,omitempty"`
	Movies          []RokuVideo `json:"movies,omitempty"`
	Series          []Series    `json:"series,omitempty"`
	TVSpecials      []RokuVideo `json:"tvSpecials,omitempty"`
	Playlists       []Playlist  `json:"playlists,omitempty"`
	Categories      []Category  `json:"categories,omitempty"`
}

func (f *Feed) add(v RokuVideo) {
	switch v.Type {
	case TypeShortForm:
		f.ShortFormVideos = append(f.ShortFormVideos, v)
	case TypeMovie:
		f.Movies = append(f.Movies, v)
	case TypeTVSpecial:
		f.TVSpecials = append(f.TVSpecials, v)
	}
}
