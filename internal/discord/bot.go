package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/music/autoplay"
	"github.com/keshon/jukebox/internal/music/lavalink"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/source_resolver"
	"github.com/keshon/jukebox/internal/music/sources"
	"github.com/keshon/jukebox/internal/music/sources/spotify"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/jobmgr"
)

const shutdownTimeout = 10 * time.Second

// Bot is the Discord runtime: gateway handlers, the Lavalink node and the
// music engine wired together.
type Bot struct {
	cfg   *config.Config
	log   zerolog.Logger
	dg    *discordgo.Session
	store storage.Store
	cache commandCache
	jobs  *jobmgr.Manager

	node     *lavalink.Node
	voice    *VoiceBackend
	resolver *source_resolver.SourceResolver
	registry *player.Registry
	autoplay *autoplay.Manager

	// base context of gateway handlers, set by Run
	ctx context.Context
}

// New creates the gateway session and the music engine. It talks to
// Discord once to learn the bot's user id, which Lavalink requires.
func New(ctx context.Context, cfg *config.Config, store storage.Store, log zerolog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers | discordgo.IntentsGuildVoiceStates
	dg.StateEnabled = true
	dg.State.TrackVoice = true
	dg.State.TrackMembers = true

	self, err := dg.User("@me")
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve bot user: %w", err)
	}

	b := &Bot{
		cfg:   cfg,
		log:   log.With().Str("component", "bot").Logger(),
		dg:    dg,
		store: store,
		cache: commandCache{dir: cfg.CommandCacheDir},
		ctx:   ctx,
	}
	b.jobs = jobmgr.NewManager(log)

	b.node = lavalink.NewNode(lavalink.NodeConfig{
		Host:     cfg.LavalinkHost,
		Port:     cfg.LavalinkPort,
		Password: cfg.LavalinkPassword,
		Secure:   cfg.LavalinkSecure,
		UserID:   self.ID,
	}, log, b.onNodeEvent)
	b.voice = NewVoiceBackend(dg, b.node, cfg.VoiceConnectTimeout, log, b.onVoiceLost)

	var curated sources.Curated
	if cfg.SpotifyEnabled() {
		sp, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			Market:       cfg.SpotifyMarket,
			Proxy:        cfg.SpotifyProxy,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create spotify client: %w", err)
		}
		curated = sp
	} else {
		b.log.Warn().Msg("spotify credentials missing, curated links are disabled")
	}
	b.resolver = source_resolver.New(b.node, curated, cfg.CatalogTimeout, log)

	notifier := NewChannelNotifier(dg, log)
	b.registry = player.NewRegistry(player.Options{
		Backend:       b.voice,
		Materializer:  b.resolver,
		Notifier:      notifier,
		HistoryLimit:  cfg.HistoryLimit,
		DefaultVolume: cfg.DefaultVolume,
		Logger:        log,
	})
	b.autoplay = autoplay.New(autoplay.Options{
		Registry: b.registry,
		Resolver: b.resolver,
		Store:    store,
		Presence: b,
		Notifier: notifier,
		Logger:   log,
	})
	return b, nil
}

var (
	_ bot.Voice         = (*Bot)(nil)
	_ autoplay.Presence = (*Bot)(nil)
)

func (b *Bot) Registry() *player.Registry                { return b.registry }
func (b *Bot) Resolver() *source_resolver.SourceResolver { return b.resolver }
func (b *Bot) Autoplay() *autoplay.Manager               { return b.autoplay }
func (b *Bot) NodeStats() lavalink.Stats                 { return b.node.Stats() }
func (b *Bot) Jobs() []jobmgr.Info                       { return b.jobs.List() }

// Run connects to Discord and Lavalink and blocks until ctx is done, then
// destroys every session.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	if err := b.autoplay.Hydrate(ctx); err != nil {
		return fmt.Errorf("load autoplay configs: %w", err)
	}

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onGuildDelete)
	b.dg.AddHandler(b.onInteractionCreate)
	b.dg.AddHandler(b.onVoiceStateUpdate)
	b.dg.AddHandler(b.onVoiceServerUpdate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	if err := b.jobs.StartAsync(ctx, "lavalink", b.node.Run); err != nil {
		return err
	}
	if err := b.jobs.StartAsync(ctx, "system-events", b.systemEvents); err != nil {
		return err
	}

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, cleaning up")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	b.registry.Shutdown(sctx)
	b.jobs.StopAll()
	return nil
}

func (b *Bot) systemEvents(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt := <-bot.SystemEvents():
			if evt.Type == bot.SystemEventRefreshCommands {
				go b.handleRefreshCommands(ctx, evt)
			}
		}
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		if b.cfg.IsGuildBlacklisted(g.ID) {
			b.leaveGuild(s, g.ID)
		}
	}
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord bot is running")
}

// onGuildCreate fires for every guild after (re)connecting, with its voice
// states, and when the bot joins a new guild.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.cfg.IsGuildBlacklisted(g.ID) {
		b.leaveGuild(s, g.ID)
		return
	}
	b.log.Info().Str("guild", g.ID).Str("name", g.Name).Msg("guild available")

	if b.cfg.InitSlashCommands {
		go func() {
			if err := b.registerCommands(b.ctx, g.ID); err != nil {
				b.log.Error().Err(err).Str("guild", g.ID).Msg("register commands")
			}
		}()
	}

	if _, ok := b.autoplay.Config(g.ID); ok {
		err := b.jobs.StartAsync(b.ctx, "autoplay:"+g.ID, func(ctx context.Context) error {
			if err := b.node.WaitReady(ctx); err != nil {
				return err
			}
			return b.autoplay.Check(ctx, g.ID)
		})
		if err != nil {
			b.log.Debug().Err(err).Str("guild", g.ID).Msg("autoplay check already queued")
		}
	}
}

// onGuildDelete fires when the bot is removed from a guild or the guild
// becomes unavailable.
func (b *Bot) onGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	if err := b.jobs.Stop("autoplay:" + g.ID); err == nil {
		b.log.Debug().Str("guild", g.ID).Msg("cancelled pending autoplay check")
	}
	b.registry.Evict(b.ctx, g.ID)
	b.log.Info().Str("guild", g.ID).Bool("unavailable", g.Unavailable).Msg("guild gone")
}

func (b *Bot) leaveGuild(s *discordgo.Session, guildID string) {
	b.log.Info().Str("guild", guildID).Msg("leaving blacklisted guild")
	if err := s.GuildLeave(guildID); err != nil {
		b.log.Error().Err(err).Str("guild", guildID).Msg("leave guild")
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		c, ok := command.GetCommand(name)
		if !ok {
			b.log.Warn().Str("command", name).Msg("unknown command")
			return
		}
		data := &command.SlashInteractionContext{Session: s, Event: i, Storage: b.store}
		if err := command.Invoke(b.ctx, c, data); err != nil {
			b.log.Error().Err(err).Str("command", name).Msg("run slash command")
			_ = bot.RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{Description: fmt.Sprintf("Error running command: %v", err)})
		}

	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		owner, ok := command.ComponentOwner(customID)
		if !ok {
			b.log.Warn().Str("custom_id", customID).Msg("no command owns component")
			return
		}
		data := &command.ComponentInteractionContext{Session: s, Event: i, Storage: b.store}
		if err := owner.Component(data); err != nil {
			b.log.Error().Err(err).Str("custom_id", customID).Msg("run component")
		}
	}
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if s.State.User != nil && v.UserID == s.State.User.ID {
		b.voice.OnVoiceStateUpdate(b.ctx, v.VoiceState)
		return
	}

	userBot := v.Member != nil && v.Member.User != nil && v.Member.User.Bot
	// presence handling may connect to voice, which waits on gateway events
	go b.autoplay.HandlePresence(b.ctx, autoplay.PresenceChange{GuildID: v.GuildID, UserID: v.UserID, Bot: userBot})
}

func (b *Bot) onVoiceServerUpdate(_ *discordgo.Session, v *discordgo.VoiceServerUpdate) {
	b.voice.OnVoiceServerUpdate(b.ctx, v)
}

// onVoiceLost runs when someone else disconnected the bot from voice.
func (b *Bot) onVoiceLost(guildID string) {
	go func() {
		b.autoplay.BotDisconnected(b.ctx, guildID)
		b.registry.Evict(b.ctx, guildID)
	}()
}

// onNodeEvent translates Lavalink events for the session loops. It runs on
// the node's read loop.
func (b *Bot) onNodeEvent(ev lavalink.Event) {
	switch ev.Type {
	case lavalink.EventReady:
		if ev.Resumed {
			return
		}
		// a fresh node session has no players; stale sessions must go
		if guilds := b.registry.Guilds(); len(guilds) > 0 {
			go b.recoverSessions(guilds)
		}
	case lavalink.EventTrackEnd:
		b.registry.Dispatch(player.Event{GuildID: ev.GuildID, Kind: player.EventTrackEnd, TrackID: ev.Track, Reason: player.EndReason(ev.Reason)})
	case lavalink.EventTrackError, lavalink.EventTrackStuck:
		b.registry.Dispatch(player.Event{GuildID: ev.GuildID, Kind: player.EventTrackException, TrackID: ev.Track, Err: ev.Err})
	case lavalink.EventVoiceClosed:
		b.registry.Dispatch(player.Event{GuildID: ev.GuildID, Kind: player.EventVoiceClosed, Code: ev.Code, Err: ev.Err})
	}
}

func (b *Bot) recoverSessions(guilds []string) {
	b.log.Warn().Int("sessions", len(guilds)).Msg("lavalink session was not resumed, dropping sessions")
	for _, g := range guilds {
		b.registry.Evict(b.ctx, g)
	}
	if err := b.autoplay.Sweep(b.ctx); err != nil && !errors.Is(err, context.Canceled) {
		b.log.Warn().Err(err).Msg("autoplay sweep")
	}
}
