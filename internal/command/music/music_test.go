package music

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/music/autoplay"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/source_resolver"
	"github.com/keshon/jukebox/internal/music/track"
	"github.com/keshon/jukebox/internal/music/vote"
	"github.com/keshon/jukebox/internal/storage"
)

func TestStepVolume(t *testing.T) {
	cases := []struct {
		cur, step, want int
	}{
		{45, volumeStep, 60},
		{45, -volumeStep, 40},
		{50, -volumeStep, 40},
		{0, volumeStep, 10},
		{95, volumeStep, 100},
		{100, volumeStep, 100},
		{5, -volumeStep, 0},
		{0, -volumeStep, 0},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, stepVolume(tc.cur, tc.step), "cur=%d step=%d", tc.cur, tc.step)
	}
}

func TestVoteMessage(t *testing.T) {
	pending := player.VoteResult{Decision: vote.Decision{Outcome: vote.Pending, Votes: 1, Required: 3}}
	require.Equal(t, "<@u1> has voted to skip. **2** more votes needed!", voteMessage(vote.ActionSkip, "<@u1>", pending))

	dup := player.VoteResult{Decision: vote.Decision{Outcome: vote.AlreadyVoted}}
	require.Equal(t, "<@u1>, you have already voted to stop!", voteMessage(vote.ActionStop, "<@u1>", dup))

	passed := player.VoteResult{Decision: vote.Decision{Outcome: vote.Execute, Votes: 2, Required: 2}}
	require.Equal(t, "Vote request for skip passed! ⏭ Skipped the song.", voteMessage(vote.ActionSkip, "<@u1>", passed))

	direct := player.VoteResult{Decision: vote.Decision{Outcome: vote.Execute}}
	require.Equal(t, "⏸ Paused the song.", voteMessage(vote.ActionPause, "<@u1>", direct))

	repeat := player.VoteResult{Decision: vote.Decision{Outcome: vote.Execute}, Repeat: true}
	require.Equal(t, "🔂 Repeating the current song.", voteMessage(vote.ActionRepeat, "<@u1>", repeat))
	repeat.Repeat = false
	require.Equal(t, "🔁 Repeat is off.", voteMessage(vote.ActionRepeat, "<@u1>", repeat))
}

func numbered(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprint(i)
	}
	return out
}

func TestPaginate(t *testing.T) {
	lines, page, pages := paginate(numbered(23), 1, 10)
	require.Equal(t, 1, page)
	require.Equal(t, 3, pages)
	require.Equal(t, "10", lines[0])
	require.Len(t, lines, 10)

	lines, page, _ = paginate(numbered(23), 9, 10)
	require.Equal(t, 2, page)
	require.Len(t, lines, 3)

	lines, page, pages = paginate(nil, -1, 10)
	require.Equal(t, 0, page)
	require.Equal(t, 1, pages)
	require.Empty(t, lines)
}

func TestPageID(t *testing.T) {
	kind, page, ok := parsePageID(pageID("history", 4))
	require.True(t, ok)
	require.Equal(t, "history", kind)
	require.Equal(t, 4, page)

	for _, bad := range []string{"music:queue", "other:queue:1", "music:queue:x"} {
		_, _, ok := parsePageID(bad)
		require.False(t, ok, bad)
	}
}

func TestRenderButtons(t *testing.T) {
	st := player.Status{}
	for i := 0; i < 12; i++ {
		st.Pending = append(st.Pending, track.Track{Title: fmt.Sprint("song ", i), Author: "a"})
	}

	embed, comps := listings["queue"].render(st, 0)
	require.Equal(t, "Page 1/2", embed.Footer.Text)
	require.Len(t, comps, 1)

	st.Pending = st.Pending[:3]
	embed, comps = listings["queue"].render(st, 0)
	require.Equal(t, "Page 1/1", embed.Footer.Text)
	require.Nil(t, comps)
}

func TestHistoryNewestFirst(t *testing.T) {
	st := player.Status{
		Mode: player.ModeManual,
		History: []track.Track{
			{Title: "first", Author: "a", URI: "https://example.com/1", Requester: "u1"},
			{Title: "second", Author: "b"},
		},
	}
	lines := historyLines(st)
	require.Equal(t, []string{
		"second - b",
		"[first](https://example.com/1) - a | Requested by <@u1>",
	}, lines)

	st.Mode = player.ModeAutoplay
	require.NotContains(t, historyLines(st)[1], "Requested")
}

func TestFormatBytes(t *testing.T) {
	require.Equal(t, "999 B", formatBytes(999))
	require.Equal(t, "1.5 kB", formatBytes(1500))
	require.Equal(t, "12.3 MB", formatBytes(12_300_000))
	require.Equal(t, "2.0 GB", formatBytes(2_000_000_000))
}

func TestUserMessage(t *testing.T) {
	require.Equal(t, "Join a voice channel first.", userMessage(fmt.Errorf("connect: %w", bot.ErrNotInVoice)))
	require.Equal(t, "You can't do that: you are not the DJ.", userMessage(&player.RejectedError{Reason: "you are not the DJ"}))
	require.Equal(t, "You may not use this while 24/7 music is playing.", userMessage(fmt.Errorf("vote: %w", player.ErrAutoplayActive)))
	require.Equal(t, "No results found.", userMessage(source_resolver.ErrNoMatches))
	require.Equal(t, "That took too long, please try again.", userMessage(context.DeadlineExceeded))
	require.True(t, strings.HasPrefix(userMessage(errors.New("boom")), "Something went wrong"))
}

func TestAddedEmbed(t *testing.T) {
	one := source_resolver.Result{Tracks: []track.Track{{Title: "song", Author: "band", Duration: 3*time.Minute + 5*time.Second}}}
	e := addedEmbed(one, player.EnqueueResult{Added: 1, Started: true}, false)
	require.Contains(t, e.Description, "**song - band**")
	require.Contains(t, e.Description, "to the queue.")
	require.Contains(t, e.Description, "Starting playback.")

	list := source_resolver.Result{Name: "mix", Tracks: make([]track.Track, 4)}
	e = addedEmbed(list, player.EnqueueResult{Added: 4, Pending: 9}, true)
	require.Contains(t, e.Description, "Added **mix** with 4 songs to the front of the queue.")
	require.Contains(t, e.Description, "9 songs waiting.")
}

func TestAdminHelpers(t *testing.T) {
	require.Contains(t, adminMessage(autoplay.ErrNotConfigured), "autoplay-setup")
	require.Contains(t, adminMessage(fmt.Errorf("load: %w", storage.ErrNotFound)), "autoplay-setup")
	require.Equal(t, "<#a>, <#b>", mentionAll("<#%s>", []string{"a", "b"}))

	status := autoplayStatus(storage.AutoplayConfig{Enabled: true, VoiceChannelID: "v", TextChannelID: "t", Playlist: "https://example.com/p"})
	require.Contains(t, status, "**enabled**")
	require.Contains(t, status, "<#v>")
}

func TestSlashDefinitions(t *testing.T) {
	seen := map[string]bool{}
	for _, o := range (&MusicCommand{}).SlashDefinition().Options {
		require.False(t, seen[o.Name], o.Name)
		seen[o.Name] = true
	}
	for _, name := range []string{"play", "playnext", "skip", "stop", "volume", "volup", "voldown", "eq", "queue", "history", "now", "info"} {
		require.True(t, seen[name], name)
	}

	admin := (&MusicAdminCommand{}).SlashDefinition()
	require.NotNil(t, admin.DefaultMemberPermissions)
	require.Len(t, admin.Options, 10)
}

type fakeVoice struct {
	privileged map[string]bool
}

func (v fakeVoice) FindUserVoiceState(string, string) (*bot.VoiceState, error) {
	return nil, bot.ErrNotInVoice
}

func (v fakeVoice) Occupancy(string, string) int { return 4 }

func (v fakeVoice) IsPrivileged(_ *discordgo.Session, _ string, m *discordgo.Member, _ string) bool {
	return v.privileged[m.User.ID]
}

func TestVolumeOverrideInBusyChannel(t *testing.T) {
	c := &MusicCommand{Voice: fakeVoice{privileged: map[string]bool{"admin": true}}}
	st := player.Status{ChannelID: "vc1", DJ: "dj"}
	as := func(id string) *request {
		return &request{guildID: "g1", member: &discordgo.Member{User: &discordgo.User{ID: id}}}
	}

	require.True(t, c.mayOverrideVolume(as("dj"), st))
	require.True(t, c.mayOverrideVolume(as("admin"), st))
	require.False(t, c.mayOverrideVolume(as("listener"), st))
	require.False(t, c.mayOverrideVolume(as(""), player.Status{ChannelID: "vc1"}), "no DJ claimed yet")
}
