package discord

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/internal/music/lavalink"
	"github.com/keshon/jukebox/internal/music/track"
)

type joinCall struct{ guild, channel string }

type fakeGateway struct {
	mu    sync.Mutex
	calls []joinCall
	// onJoin simulates Discord answering a join
	onJoin func(guildID, channelID string)
}

func (g *fakeGateway) ChannelVoiceJoinManual(gID, cID string, _, _ bool) error {
	g.mu.Lock()
	g.calls = append(g.calls, joinCall{gID, cID})
	g.mu.Unlock()
	if cID != "" && g.onJoin != nil {
		go g.onJoin(gID, cID)
	}
	return nil
}

func (g *fakeGateway) joins() []joinCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]joinCall(nil), g.calls...)
}

type fakeNode struct {
	mu        sync.Mutex
	updates   []lavalink.PlayerUpdate
	destroyed []string
}

func (n *fakeNode) UpdatePlayer(_ context.Context, _ string, upd lavalink.PlayerUpdate, _ bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, upd)
	return nil
}

func (n *fakeNode) DestroyPlayer(_ context.Context, guildID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.destroyed = append(n.destroyed, guildID)
	return nil
}

func (n *fakeNode) last() lavalink.PlayerUpdate {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.updates[len(n.updates)-1]
}

func answering(v **VoiceBackend) func(string, string) {
	return func(guildID, channelID string) {
		ctx := context.Background()
		(*v).OnVoiceStateUpdate(ctx, &discordgo.VoiceState{GuildID: guildID, ChannelID: channelID, SessionID: "sess"})
		(*v).OnVoiceServerUpdate(ctx, &discordgo.VoiceServerUpdate{GuildID: guildID, Token: "tok", Endpoint: "voice.example"})
	}
}

func TestVoiceConnectForwardsCredentials(t *testing.T) {
	var v *VoiceBackend
	gw := &fakeGateway{onJoin: answering(&v)}
	node := &fakeNode{}
	v = NewVoiceBackend(gw, node, time.Second, zerolog.Nop(), nil)

	require.NoError(t, v.Connect(context.Background(), "g1", "vc"))

	upd := node.last()
	require.NotNil(t, upd.Voice)
	require.Equal(t, lavalink.VoiceState{Token: "tok", Endpoint: "voice.example", SessionID: "sess", ChannelID: "vc"}, *upd.Voice)
	require.Equal(t, []joinCall{{"g1", "vc"}}, gw.joins())
}

func TestVoiceConnectTimeout(t *testing.T) {
	gw := &fakeGateway{}
	v := NewVoiceBackend(gw, &fakeNode{}, 20*time.Millisecond, zerolog.Nop(), nil)

	err := v.Connect(context.Background(), "g1", "vc")
	require.ErrorIs(t, err, ErrVoiceTimeout)
	require.Equal(t, []joinCall{{"g1", "vc"}, {"g1", ""}}, gw.joins())
}

func TestVoiceLostOnlyWhenUnexpected(t *testing.T) {
	var v *VoiceBackend
	lost := make(chan string, 1)
	gw := &fakeGateway{onJoin: answering(&v)}
	v = NewVoiceBackend(gw, &fakeNode{}, time.Second, zerolog.Nop(), func(g string) { lost <- g })
	ctx := context.Background()

	require.NoError(t, v.Connect(ctx, "g1", "vc"))
	require.NoError(t, v.Disconnect(ctx, "g1"))
	v.OnVoiceStateUpdate(ctx, &discordgo.VoiceState{GuildID: "g1"})
	require.Empty(t, lost)

	require.NoError(t, v.Connect(ctx, "g1", "vc"))
	v.OnVoiceStateUpdate(ctx, &discordgo.VoiceState{GuildID: "g1"})
	require.Equal(t, "g1", <-lost)
}

func TestVoicePlayerCommands(t *testing.T) {
	node := &fakeNode{}
	v := NewVoiceBackend(&fakeGateway{}, node, time.Second, zerolog.Nop(), nil)
	ctx := context.Background()

	require.NoError(t, v.Play(ctx, "g1", track.Track{ID: "enc"}))
	upd := node.last()
	require.Equal(t, "enc", *upd.Track.Encoded)
	require.False(t, *upd.Paused)

	require.NoError(t, v.Stop(ctx, "g1"))
	require.NotNil(t, node.last().Track)
	require.Nil(t, node.last().Track.Encoded)

	require.NoError(t, v.SetVolume(ctx, "g1", 40))
	require.Equal(t, 40, *node.last().Volume)

	require.NoError(t, v.SetEqualizer(ctx, "g1", lavalink.PresetBoost))
	require.Len(t, node.last().Filters.Equalizer, 15)

	require.NoError(t, v.Disconnect(ctx, "g1"))
	require.Equal(t, []string{"g1"}, node.destroyed)
}
