package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/music/lavalink"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/track"
)

var ErrVoiceTimeout = errors.New("timed out waiting for voice credentials")

// gateway is the part of the discordgo session used to move the bot.
type gateway interface {
	ChannelVoiceJoinManual(gID, cID string, mute, deaf bool) error
}

// audioNode is the part of the Lavalink node used to drive guild players.
type audioNode interface {
	UpdatePlayer(ctx context.Context, guildID string, upd lavalink.PlayerUpdate, noReplace bool) error
	DestroyPlayer(ctx context.Context, guildID string) error
}

// voiceConn collects the two halves of Discord voice credentials: the
// session id from our VoiceStateUpdate and token/endpoint from the
// VoiceServerUpdate.
type voiceConn struct {
	channelID string
	sessionID string
	token     string
	endpoint  string
	ready     chan struct{}
	readyOnce sync.Once
}

func (c *voiceConn) complete() bool {
	return c.sessionID != "" && c.token != "" && c.endpoint != ""
}

func (c *voiceConn) voice() *lavalink.VoiceState {
	return &lavalink.VoiceState{Token: c.token, Endpoint: c.endpoint, SessionID: c.sessionID, ChannelID: c.channelID}
}

// VoiceBackend implements player.Backend on top of the Discord gateway
// (joining and leaving channels) and a Lavalink node (audio).
type VoiceBackend struct {
	gw      gateway
	node    audioNode
	timeout time.Duration
	log     zerolog.Logger

	// onLost is called when the bot was removed from voice by someone else
	onLost func(guildID string)

	mu      sync.Mutex
	conns   map[string]*voiceConn
	leaving map[string]bool
}

func NewVoiceBackend(gw gateway, node audioNode, timeout time.Duration, log zerolog.Logger, onLost func(guildID string)) *VoiceBackend {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if onLost == nil {
		onLost = func(string) {}
	}
	return &VoiceBackend{
		gw:      gw,
		node:    node,
		timeout: timeout,
		log:     log.With().Str("component", "voice").Logger(),
		onLost:  onLost,
		conns:   make(map[string]*voiceConn),
		leaving: make(map[string]bool),
	}
}

var _ player.Backend = (*VoiceBackend)(nil)

func (v *VoiceBackend) Connect(ctx context.Context, guildID, channelID string) error {
	conn := &voiceConn{channelID: channelID, ready: make(chan struct{})}
	v.mu.Lock()
	v.conns[guildID] = conn
	delete(v.leaving, guildID)
	v.mu.Unlock()

	if err := v.gw.ChannelVoiceJoinManual(guildID, channelID, false, true); err != nil {
		v.forget(guildID, conn)
		return fmt.Errorf("join voice channel: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	select {
	case <-conn.ready:
	case <-ctx.Done():
		v.forget(guildID, conn)
		_ = v.gw.ChannelVoiceJoinManual(guildID, "", false, false)
		return fmt.Errorf("connect %s: %w", channelID, ErrVoiceTimeout)
	}

	v.mu.Lock()
	voice := conn.voice()
	v.mu.Unlock()
	if err := v.node.UpdatePlayer(ctx, guildID, lavalink.PlayerUpdate{Voice: voice}, false); err != nil {
		v.forget(guildID, conn)
		_ = v.gw.ChannelVoiceJoinManual(guildID, "", false, false)
		return fmt.Errorf("send voice to node: %w", err)
	}
	v.log.Debug().Str("guild", guildID).Str("channel", channelID).Msg("voice handshake complete")
	return nil
}

func (v *VoiceBackend) forget(guildID string, conn *voiceConn) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.conns[guildID] == conn {
		delete(v.conns, guildID)
	}
}

func (v *VoiceBackend) Disconnect(ctx context.Context, guildID string) error {
	v.mu.Lock()
	delete(v.conns, guildID)
	v.leaving[guildID] = true
	v.mu.Unlock()

	var errs []error
	if err := v.node.DestroyPlayer(ctx, guildID); err != nil {
		errs = append(errs, fmt.Errorf("destroy player: %w", err))
	}
	if err := v.gw.ChannelVoiceJoinManual(guildID, "", false, false); err != nil {
		errs = append(errs, fmt.Errorf("leave voice: %w", err))
	}
	return errors.Join(errs...)
}

func (v *VoiceBackend) Play(ctx context.Context, guildID string, t track.Track) error {
	encoded, paused := t.ID, false
	return v.node.UpdatePlayer(ctx, guildID, lavalink.PlayerUpdate{
		Track:  &lavalink.UpdateTrack{Encoded: &encoded},
		Paused: &paused,
	}, false)
}

func (v *VoiceBackend) Pause(ctx context.Context, guildID string, paused bool) error {
	return v.node.UpdatePlayer(ctx, guildID, lavalink.PlayerUpdate{Paused: &paused}, false)
}

func (v *VoiceBackend) Stop(ctx context.Context, guildID string) error {
	return v.node.UpdatePlayer(ctx, guildID, lavalink.PlayerUpdate{Track: &lavalink.UpdateTrack{}}, false)
}

func (v *VoiceBackend) SetVolume(ctx context.Context, guildID string, volume int) error {
	return v.node.UpdatePlayer(ctx, guildID, lavalink.PlayerUpdate{Volume: &volume}, false)
}

func (v *VoiceBackend) SetEqualizer(ctx context.Context, guildID string, preset lavalink.Preset) error {
	return v.node.UpdatePlayer(ctx, guildID, lavalink.PlayerUpdate{
		Filters: &lavalink.Filters{Equalizer: preset.Bands()},
	}, false)
}

// OnVoiceStateUpdate handles the bot's own voice state changes.
func (v *VoiceBackend) OnVoiceStateUpdate(ctx context.Context, vs *discordgo.VoiceState) {
	v.mu.Lock()
	conn, ok := v.conns[vs.GuildID]

	if vs.ChannelID == "" {
		expected := v.leaving[vs.GuildID]
		delete(v.leaving, vs.GuildID)
		// a pending join replaced the old connection; this is its leave echo
		if expected || (ok && !isClosed(conn.ready)) {
			v.mu.Unlock()
			return
		}
		delete(v.conns, vs.GuildID)
		v.mu.Unlock()
		v.log.Info().Str("guild", vs.GuildID).Msg("bot was disconnected from voice")
		v.onLost(vs.GuildID)
		return
	}

	if !ok {
		v.mu.Unlock()
		return
	}
	conn.sessionID = vs.SessionID
	conn.channelID = vs.ChannelID
	v.settle(ctx, vs.GuildID, conn)
}

// OnVoiceServerUpdate stores the voice token and endpoint for the guild.
func (v *VoiceBackend) OnVoiceServerUpdate(ctx context.Context, ev *discordgo.VoiceServerUpdate) {
	v.mu.Lock()
	conn, ok := v.conns[ev.GuildID]
	if !ok {
		v.mu.Unlock()
		return
	}
	conn.token = ev.Token
	conn.endpoint = ev.Endpoint
	v.settle(ctx, ev.GuildID, conn)
}

// settle must be called with v.mu held and releases it. It completes a
// pending handshake or forwards refreshed credentials of a live one.
func (v *VoiceBackend) settle(ctx context.Context, guildID string, conn *voiceConn) {
	if !conn.complete() {
		v.mu.Unlock()
		return
	}
	if !isClosed(conn.ready) {
		conn.readyOnce.Do(func() { close(conn.ready) })
		v.mu.Unlock()
		return
	}
	voice := conn.voice()
	v.mu.Unlock()

	if err := v.node.UpdatePlayer(ctx, guildID, lavalink.PlayerUpdate{Voice: voice}, false); err != nil {
		v.log.Warn().Err(err).Str("guild", guildID).Msg("forward voice update")
	}
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
