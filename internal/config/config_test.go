package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")

	cfg, err := Parse()
	require.NoError(t, err)
	require.Equal(t, "token", cfg.DiscordToken)
	require.Equal(t, "datastore", cfg.StorageDriver)
	require.Equal(t, 2333, cfg.LavalinkPort)
	require.Equal(t, 10*time.Second, cfg.CatalogTimeout)
	require.Equal(t, 100, cfg.DefaultVolume)
	require.False(t, cfg.SpotifyEnabled())
}

func TestParseRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")

	_, err := Parse()
	require.Error(t, err)
}

func TestParseLists(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_GUILD_BLACKLIST", "1,2")
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")

	cfg, err := Parse()
	require.NoError(t, err)
	require.True(t, cfg.IsGuildBlacklisted("2"))
	require.False(t, cfg.IsGuildBlacklisted("3"))
	require.True(t, cfg.SpotifyEnabled())
}

func TestParseRejectsBadVolume(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DEFAULT_VOLUME", "150")

	_, err := Parse()
	require.Error(t, err)
}

func TestIsDeveloper(t *testing.T) {
	cfg := &Config{DeveloperID: "42"}
	require.True(t, IsDeveloper(cfg, "42"))
	require.False(t, IsDeveloper(cfg, "7"))
	require.False(t, IsDeveloper(&Config{}, ""))
	require.False(t, IsDeveloper(nil, "42"))
}
