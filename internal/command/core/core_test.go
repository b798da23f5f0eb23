package core

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/jobmgr"
)

var sample = []entry{
	{name: "music", description: "Play and control music", group: "music", category: "🎵 Music"},
	{name: "help", description: "Get help", group: "core", category: "🕯️ Information"},
	{name: "maintenance", description: "Maintain", group: "core", category: "🛠️ Maintenance"},
	{name: "music-admin", description: "Configure", group: "music-admin", category: "⚙️ Settings"},
}

func TestHelpByCategoryFollowsWeights(t *testing.T) {
	out := helpText(sample, "category")

	info := strings.Index(out, "🕯️ Information")
	music := strings.Index(out, "🎵 Music")
	settings := strings.Index(out, "⚙️ Settings")
	maint := strings.Index(out, "🛠️ Maintenance")
	require.True(t, info < music && music < settings && settings < maint, out)
}

func TestHelpByGroupSortsNames(t *testing.T) {
	out := helpText(sample, "group")
	require.True(t, strings.Index(out, "**core**") < strings.Index(out, "**music**"))
	require.Contains(t, out, "`help` - Get help")
}

func TestHelpFlat(t *testing.T) {
	out := helpText(sample, "flat")
	require.Equal(t, 4, strings.Count(out, "\n"))
	require.NotContains(t, out, "**")
}

func TestDumpGuild(t *testing.T) {
	st, err := storage.NewDatastore(filepath.Join(t.TempDir(), "db.json"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	d, err := dumpGuild(ctx, st, "g1")
	require.NoError(t, err)
	require.Nil(t, d.Autoplay)

	require.NoError(t, st.AddMusicChannel(ctx, "g1", "c1"))
	require.NoError(t, st.AddDJRole(ctx, "g1", "r1"))
	require.NoError(t, st.SaveAutoplayConfig(ctx, storage.AutoplayConfig{GuildID: "g1", VoiceChannelID: "v1", Playlist: "https://example.com/p"}))

	d, err = dumpGuild(ctx, st, "g1")
	require.NoError(t, err)
	require.Equal(t, []string{"c1"}, d.MusicChannels)
	require.Equal(t, []string{"r1"}, d.DJRoles)
	require.NotNil(t, d.Autoplay)
	require.Equal(t, "v1", d.Autoplay.VoiceChannelID)
}

func TestSessionLine(t *testing.T) {
	line := sessionLine(player.Status{Mode: player.ModeManual, State: player.StatePlaying, SessionID: "abc"})
	require.Contains(t, line, "abc")
	require.Contains(t, line, player.StatePlaying.String())
}

func TestJobsLine(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, "none", jobsLine(nil, now))
	require.Equal(t, "`lavalink` (1m30s), `system-events` (5s)", jobsLine([]jobmgr.Info{
		{Name: "lavalink", Started: now.Add(-90 * time.Second)},
		{Name: "system-events", Started: now.Add(-5500 * time.Millisecond)},
	}, now))
}
