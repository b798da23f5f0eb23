package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/command"
)

// Discord allows bursts of command writes but answers sustained ones with 429s.
var commandWriteLimit = rate.Limit(5)

// wantedCommands returns the definitions of every registered command keyed
// by name.
func wantedCommands() map[string]*discordgo.ApplicationCommand {
	out := make(map[string]*discordgo.ApplicationCommand)
	for _, c := range command.AllCommands() {
		if def := command.Definition(c); def != nil {
			out[def.Name] = def
		}
	}
	return out
}

// changedCommands returns the wanted definitions whose hash differs from
// the cached one, and the obsolete names present remotely.
func changedCommands(wanted map[string]*discordgo.ApplicationCommand, cached map[string]string, existing []*discordgo.ApplicationCommand) (changed []*discordgo.ApplicationCommand, obsolete []*discordgo.ApplicationCommand) {
	remote := make(map[string]bool, len(existing))
	for _, ex := range existing {
		remote[ex.Name] = true
		if _, ok := wanted[ex.Name]; !ok {
			obsolete = append(obsolete, ex)
		}
	}
	for name, def := range wanted {
		if cached[name] != hashCommand(def) || (existing != nil && !remote[name]) {
			changed = append(changed, def)
		}
	}
	return changed, obsolete
}

func (b *Bot) appID() (string, error) {
	if b.dg.State.User != nil && b.dg.State.User.ID != "" {
		return b.dg.State.User.ID, nil
	}
	u, err := b.dg.User("@me")
	if err != nil {
		return "", fmt.Errorf("fetch self: %w", err)
	}
	return u.ID, nil
}

// registerCommands syncs the guild's slash commands with the registry,
// touching only definitions that changed since the last sync.
func (b *Bot) registerCommands(ctx context.Context, guildID string) error {
	appID, err := b.appID()
	if err != nil {
		return err
	}
	log := b.log.With().Str("guild", guildID).Logger()

	existing, err := b.dg.ApplicationCommands(appID, guildID)
	if err != nil {
		log.Warn().Err(err).Msg("list commands")
		existing = nil
	}
	cached, err := b.cache.load(guildID)
	if err != nil {
		log.Warn().Err(err).Msg("load command cache")
	}

	wanted := wantedCommands()
	changed, obsolete := changedCommands(wanted, cached, existing)

	for _, old := range obsolete {
		log.Info().Str("command", old.Name).Msg("deleting obsolete command")
		if err := b.dg.ApplicationCommandDelete(appID, guildID, old.ID); err != nil {
			log.Error().Err(err).Str("command", old.Name).Msg("delete command")
		}
		delete(cached, old.Name)
	}

	if len(changed) > 0 {
		log.Info().Int("changed", len(changed)).Msg("updating commands")
	}
	lim := rate.NewLimiter(commandWriteLimit, 1)
	for _, def := range changed {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
		if _, err := b.dg.ApplicationCommandCreate(appID, guildID, def); err != nil {
			log.Error().Err(err).Str("command", def.Name).Msg("create command")
			continue
		}
		cached[def.Name] = hashCommand(def)
		log.Debug().Str("command", def.Name).Msg("command created")
	}

	return b.cache.save(guildID, cached)
}

// removeCommands deletes every command of the guild, e.g. when it is blacklisted.
func (b *Bot) removeCommands(guildID string) error {
	appID, err := b.appID()
	if err != nil {
		return err
	}
	existing, err := b.dg.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}
	for _, c := range existing {
		if err := b.dg.ApplicationCommandDelete(appID, guildID, c.ID); err != nil {
			b.log.Error().Err(err).Str("guild", guildID).Str("command", c.Name).Msg("delete command")
		}
	}
	return b.cache.save(guildID, map[string]string{})
}

func (b *Bot) handleRefreshCommands(ctx context.Context, evt bot.SystemEvent) {
	log := b.log.With().Str("guild", evt.GuildID).Str("target", evt.Target).Logger()

	if b.cfg.IsGuildBlacklisted(evt.GuildID) {
		log.Info().Msg("guild is blacklisted, removing all commands")
		if err := b.removeCommands(evt.GuildID); err != nil {
			log.Error().Err(err).Msg("remove commands")
		}
		return
	}

	if evt.Target == "" || strings.EqualFold(evt.Target, "all") {
		// forget the cache so every definition is pushed again
		if err := b.cache.save(evt.GuildID, map[string]string{}); err != nil {
			log.Warn().Err(err).Msg("reset command cache")
		}
		if err := b.registerCommands(ctx, evt.GuildID); err != nil {
			log.Error().Err(err).Msg("refresh commands")
		}
		return
	}

	c, ok := command.GetCommand(strings.ToLower(evt.Target))
	if !ok {
		log.Warn().Msg("refresh of unknown command")
		return
	}
	def := command.Definition(c)
	if def == nil {
		return
	}
	appID, err := b.appID()
	if err != nil {
		log.Error().Err(err).Msg("refresh command")
		return
	}
	if _, err := b.dg.ApplicationCommandCreate(appID, evt.GuildID, def); err != nil {
		log.Error().Err(err).Msg("refresh command")
	}
}
