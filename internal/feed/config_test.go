package feed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesDefaultsAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
vimeo:
  access_token: from-file
  album_id: "123"
roku:
  provider_name: Acme TV
  s3_bucket: feeds
sync:
  max_duration: 3600
  exclude_tags: [draft]
`), 0o644))
	t.Setenv("VIMEO_ACCESS_TOKEN", "from-env")
	t.Setenv("VIMEO_CLIENT_ID", "")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Vimeo.AccessToken)
	assert.Equal(t, "123", cfg.Vimeo.AlbumID)
	assert.Equal(t, "Acme TV", cfg.Roku.ProviderName)
	assert.Equal(t, "en", cfg.Roku.Language)
	assert.Equal(t, DefaultFeedOutputPath, cfg.Roku.FeedOutputPath)
	assert.Equal(t, "TV-G", cfg.Roku.DefaultRating)
	assert.Equal(t, 900, cfg.Sync.ShortFormMaxDuration)
	assert.True(t, cfg.Sync.CacheEnabled)
	require.NotNil(t, cfg.Sync.MaxDuration)
	assert.Equal(t, 3600, *cfg.Sync.MaxDuration)
	assert.Equal(t, []string{"draft"}, cfg.Sync.ExcludeTags)
	assert.Empty(t, cfg.Validate())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("vimeo: [unclosed"), 0o644))
	_, err = LoadConfig(bad)
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("VIMEO_ACCESS_TOKEN", "tok")
	t.Setenv("ROKU_PROVIDER_NAME", "Env TV")
	t.Setenv("SYNC_INCLUDE_TAGS", "a, b,,c")
	t.Setenv("SYNC_MAX_DURATION", "120")
	t.Setenv("SYNC_CACHE_ENABLED", "false")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "tok", cfg.Vimeo.AccessToken)
	assert.Equal(t, "Env TV", cfg.Roku.ProviderName)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Sync.IncludeTags)
	assert.Equal(t, 120, *cfg.Sync.MaxDuration)
	assert.False(t, cfg.Sync.CacheEnabled)
}

func TestValidateConfig(t *testing.T) {
	problems := DefaultConfig().Validate()
	assert.Equal(t, []string{"Vimeo access token is required", "Roku provider name is required"}, problems)
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(SampleConfig), 0o644))
	t.Setenv("VIMEO_ACCESS_TOKEN", "")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Your Channel Name", cfg.Roku.ProviderName)
	assert.Nil(t, cfg.Sync.MaxDuration)
}
