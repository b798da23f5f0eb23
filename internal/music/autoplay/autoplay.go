// Package autoplay keeps 24/7 playlist sessions in configured guilds alive
// and pauses them while nobody is listening.
package autoplay

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/source_resolver"
	"github.com/keshon/jukebox/internal/music/track"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/util"
)

var ErrNotConfigured = errors.New("24/7 music is not set up for this server")

const sweepWorkers = 4

// Presence reports live voice occupancy.
type Presence interface {
	// Listeners counts non-bot members in the voice channel.
	Listeners(guildID, channelID string) int
}

type Resolver interface {
	Resolve(ctx context.Context, query, requester string) (source_resolver.Result, error)
}

// PresenceChange is a voice state update of a guild member.
type PresenceChange struct {
	GuildID string
	UserID  string
	Bot     bool
}

type Options struct {
	Registry *player.Registry
	Resolver Resolver
	Store    storage.Store
	Presence Presence
	Notifier player.Notifier
	Logger   zerolog.Logger
}

type Manager struct {
	registry *player.Registry
	resolver Resolver
	store    storage.Store
	presence Presence
	notifier player.Notifier
	log      zerolog.Logger

	mu      sync.Mutex
	configs map[string]storage.AutoplayConfig
	paused  map[string]bool // paused because the channel emptied
	guilds  map[string]*sync.Mutex
}

func New(opts Options) *Manager {
	return &Manager{
		registry: opts.Registry,
		resolver: opts.Resolver,
		store:    opts.Store,
		presence: opts.Presence,
		notifier: opts.Notifier,
		log:      opts.Logger.With().Str("component", "autoplay").Logger(),
		configs:  make(map[string]storage.AutoplayConfig),
		paused:   make(map[string]bool),
		guilds:   make(map[string]*sync.Mutex),
	}
}

// Hydrate loads the enabled configurations from storage.
func (m *Manager) Hydrate(ctx context.Context) error {
	enabled, err := storage.EnabledAutoplayConfigs(ctx, m.store)
	if err != nil {
		return fmt.Errorf("load autoplay configs: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.configs)
	for _, c := range enabled {
		m.configs[c.GuildID] = c
	}
	m.log.Info().Int("guilds", len(enabled)).Msg("autoplay configs loaded")
	return nil
}

// Config returns the active configuration of the guild.
func (m *Manager) Config(guildID string) (storage.AutoplayConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[guildID]
	return c, ok
}

// Configs lists the active configurations sorted by guild.
func (m *Manager) Configs() []storage.AutoplayConfig {
	m.mu.Lock()
	out := make([]storage.AutoplayConfig, 0, len(m.configs))
	for _, c := range m.configs {
		out = append(out, c)
	}
	m.mu.Unlock()
	slices.SortFunc(out, func(a, b storage.AutoplayConfig) int {
		if a.GuildID < b.GuildID {
			return -1
		}
		if a.GuildID > b.GuildID {
			return 1
		}
		return 0
	})
	return out
}

func (m *Manager) guildLock(guildID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.guilds[guildID]
	if !ok {
		l = &sync.Mutex{}
		m.guilds[guildID] = l
	}
	return l
}

// HandlePresence reacts to a member joining, leaving or moving voice.
func (m *Manager) HandlePresence(ctx context.Context, ch PresenceChange) {
	if ch.Bot {
		return
	}
	if err := m.Check(ctx, ch.GuildID); err != nil && !errors.Is(err, ErrNotConfigured) {
		m.log.Warn().Err(err).Str("guild", ch.GuildID).Str("user", ch.UserID).Msg("autoplay reaction failed")
	}
}

// Check brings the guild's autoplay session in line with live occupancy.
// It returns ErrNotConfigured for guilds without an enabled config.
func (m *Manager) Check(ctx context.Context, guildID string) error {
	l := m.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	cfg, ok := m.Config(guildID)
	if !ok {
		return ErrNotConfigured
	}

	s, ok := m.registry.Get(guildID)
	if !ok || s.Mode() != player.ModeAutoplay {
		var err error
		if s, err = m.start(ctx, cfg); err != nil {
			return err
		}
	}
	return m.balance(ctx, s, cfg)
}

// start resolves the playlist and then acquires the session, so a broken
// playlist never takes over the voice channel.
func (m *Manager) start(ctx context.Context, cfg storage.AutoplayConfig) (*player.Session, error) {
	res, err := m.resolver.Resolve(ctx, cfg.Playlist, "")
	if err == nil && len(res.Tracks) == 0 {
		err = source_resolver.ErrNoMatches
	}
	if err != nil {
		m.notifier.Notify(cfg.TextChannelID, player.Notice{
			Status: player.StatusError,
			Err:    fmt.Errorf("failed to load playlist at <%s>: %w", cfg.Playlist, err),
		})
		return nil, fmt.Errorf("resolve playlist: %w", err)
	}

	playlist := slices.Clone(res.Tracks)
	s, _, err := m.registry.Acquire(ctx, cfg.GuildID, player.AcquireOptions{
		Mode:         player.ModeAutoplay,
		ChannelID:    cfg.VoiceChannelID,
		ControllerID: cfg.TextChannelID,
		Refill: func(context.Context) ([]track.Track, error) {
			return slices.Clone(playlist), nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("acquire autoplay session: %w", err)
	}

	m.setPaused(cfg.GuildID, false)
	if _, err := s.Enqueue(ctx, playlist, player.EnqueueOptions{Privileged: true}); err != nil {
		m.registry.Evict(context.WithoutCancel(ctx), cfg.GuildID)
		return nil, fmt.Errorf("enqueue playlist: %w", err)
	}
	m.log.Info().Str("guild", cfg.GuildID).Str("playlist", cfg.Playlist).Int("tracks", len(playlist)).Msg("autoplay started")
	return s, nil
}

// balance pauses an audience-less session and resumes one that was paused
// for that reason once listeners are back.
func (m *Manager) balance(ctx context.Context, s *player.Session, cfg storage.AutoplayConfig) error {
	st, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	channelID := st.ChannelID
	if channelID == "" {
		channelID = cfg.VoiceChannelID
	}
	listeners := m.presence.Listeners(cfg.GuildID, channelID)

	switch {
	case listeners == 0 && st.State == player.StatePlaying:
		if err := s.Pause(ctx); err != nil {
			return err
		}
		m.setPaused(cfg.GuildID, true)
		m.log.Info().Str("guild", cfg.GuildID).Msg("autoplay paused, channel empty")
	case listeners > 0 && st.State == player.StatePaused && m.isPaused(cfg.GuildID):
		if err := s.Resume(ctx); err != nil {
			return err
		}
		m.setPaused(cfg.GuildID, false)
		m.log.Info().Str("guild", cfg.GuildID).Int("listeners", listeners).Msg("autoplay resumed")
	}
	return nil
}

func (m *Manager) setPaused(guildID string, v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v {
		m.paused[guildID] = true
	} else {
		delete(m.paused, guildID)
	}
}

func (m *Manager) isPaused(guildID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused[guildID]
}

// Setup validates the playlist and stores the configuration. A new setup
// stays disabled until SetEnabled.
func (m *Manager) Setup(ctx context.Context, cfg storage.AutoplayConfig) error {
	res, err := m.resolver.Resolve(ctx, cfg.Playlist, "")
	if err == nil && len(res.Tracks) == 0 {
		err = source_resolver.ErrNoMatches
	}
	if err != nil {
		return fmt.Errorf("invalid playlist: %w", err)
	}
	if err := m.store.SaveAutoplayConfig(ctx, cfg); err != nil {
		return fmt.Errorf("save autoplay config: %w", err)
	}

	stored, err := m.store.AutoplayConfig(ctx, cfg.GuildID)
	if err != nil {
		return fmt.Errorf("reload autoplay config: %w", err)
	}
	if stored.Enabled {
		l := m.guildLock(cfg.GuildID)
		l.Lock()
		m.mu.Lock()
		prev, had := m.configs[cfg.GuildID]
		m.configs[cfg.GuildID] = stored
		m.mu.Unlock()
		// a running session still plays the old channel and playlist
		if had && !sameTarget(prev, stored) {
			if s, ok := m.registry.Get(cfg.GuildID); ok && s.Mode() == player.ModeAutoplay {
				m.registry.Evict(ctx, cfg.GuildID)
				m.setPaused(cfg.GuildID, false)
			}
		}
		l.Unlock()
	}
	m.log.Info().Str("guild", cfg.GuildID).Str("playlist", cfg.Playlist).Bool("enabled", stored.Enabled).Msg("autoplay configured")
	return nil
}

func sameTarget(a, b storage.AutoplayConfig) bool {
	return a.VoiceChannelID == b.VoiceChannelID && a.TextChannelID == b.TextChannelID && a.Playlist == b.Playlist
}

// SetEnabled toggles the guild's 24/7 mode and tears down its current
// session; the next presence change or Check rebuilds it.
func (m *Manager) SetEnabled(ctx context.Context, guildID string, enabled bool) (storage.AutoplayConfig, error) {
	l := m.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	cfg, err := m.store.SetAutoplayEnabled(ctx, guildID, enabled)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.AutoplayConfig{}, ErrNotConfigured
	}
	if err != nil {
		return storage.AutoplayConfig{}, fmt.Errorf("update autoplay config: %w", err)
	}

	m.mu.Lock()
	if enabled {
		m.configs[guildID] = cfg
	} else {
		delete(m.configs, guildID)
	}
	delete(m.paused, guildID)
	m.mu.Unlock()

	m.registry.Evict(ctx, guildID)
	m.log.Info().Str("guild", guildID).Bool("enabled", enabled).Msg("autoplay toggled")
	return cfg, nil
}

// BotDisconnected forgets a session whose voice connection vanished.
func (m *Manager) BotDisconnected(ctx context.Context, guildID string) {
	l := m.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	if s, ok := m.registry.Get(guildID); ok && s.Mode() == player.ModeAutoplay {
		m.registry.Evict(ctx, guildID)
	}
	m.setPaused(guildID, false)
}

// Sweep runs Check for every configured guild, e.g. after startup or a
// gateway reconnect.
func (m *Manager) Sweep(ctx context.Context) error {
	configs := m.Configs()
	return util.Parallel(ctx, configs, sweepWorkers, func(ctx context.Context, c storage.AutoplayConfig) error {
		if err := m.Check(ctx, c.GuildID); err != nil && !errors.Is(err, ErrNotConfigured) {
			m.log.Warn().Err(err).Str("guild", c.GuildID).Msg("autoplay sweep")
		}
		return nil
	})
}
