package music

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/autoplay"
	"github.com/keshon/jukebox/internal/storage"
)

// MusicAdminCommand manages music channels, DJ roles and 24/7 music.
type MusicAdminCommand struct {
	Engine Engine
}

func (c *MusicAdminCommand) Name() string        { return "music-admin" }
func (c *MusicAdminCommand) Description() string { return "Configure music for this server" }
func (c *MusicAdminCommand) Group() string       { return "music-admin" }
func (c *MusicAdminCommand) Category() string    { return "⚙️ Settings" }
func (c *MusicAdminCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionManageGuild}
}

func channelOption(name, desc string, types ...discordgo.ChannelType) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         name,
		Description:  desc,
		Required:     true,
		ChannelTypes: types,
	}
}

func roleOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionRole,
		Name:        "role",
		Description: "DJ role",
		Required:    true,
	}
}

func (c *MusicAdminCommand) SlashDefinition() *discordgo.ApplicationCommand {
	perms := int64(discordgo.PermissionManageGuild)
	return &discordgo.ApplicationCommand{
		Name:                     c.Name(),
		Description:              c.Description(),
		DefaultMemberPermissions: &perms,
		Options: []*discordgo.ApplicationCommandOption{
			sub("channel-add", "Allow music commands in a text channel",
				channelOption("channel", "Text channel", discordgo.ChannelTypeGuildText)),
			sub("channel-remove", "Remove a text channel from the music whitelist",
				channelOption("channel", "Text channel", discordgo.ChannelTypeGuildText)),
			sub("channels", "List the channels music commands work in"),
			sub("dj-add", "Let a role control music without votes", roleOption()),
			sub("dj-remove", "Remove a DJ role", roleOption()),
			sub("djs", "List DJ roles"),
			sub("autoplay-setup", "Set up 24/7 music",
				channelOption("voice", "Voice channel to play in", discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice),
				channelOption("text", "Text channel for notices", discordgo.ChannelTypeGuildText),
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "playlist",
					Description: "Playlist link to loop",
					Required:    true,
				}),
			sub("autoplay-enable", "Start 24/7 music"),
			sub("autoplay-disable", "Stop 24/7 music"),
			sub("autoplay-status", "Show the 24/7 music setup"),
		},
	}
}

func (c *MusicAdminCommand) Run(ctx interface{}) error {
	sc, ok := ctx.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	e := sc.Event
	data := e.ApplicationCommandData()
	if len(data.Options) == 0 {
		return bot.RespondEmbedEphemeral(sc.Session, e, &discordgo.MessageEmbed{Description: "Missing subcommand."})
	}
	subcmd := data.Options[0]

	if err := bot.RespondDeferredEphemeral(sc.Session, e); err != nil {
		return fmt.Errorf("failed to defer response: %w", err)
	}
	r := &request{s: sc.Session, e: e, store: sc.Storage, guildID: e.GuildID, member: e.Member, opts: subcmd.Options}
	cctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	msg, err := c.dispatch(cctx, r, subcmd.Name)
	if err != nil {
		return bot.FollowupEmbedEphemeral(r.s, r.e, &discordgo.MessageEmbed{Title: "⚙️ Music", Description: adminMessage(err), Color: bot.EmbedColor})
	}
	return bot.FollowupEmbedEphemeral(r.s, r.e, &discordgo.MessageEmbed{Description: msg, Color: bot.EmbedColor})
}

func (c *MusicAdminCommand) dispatch(ctx context.Context, r *request, name string) (string, error) {
	st := r.store
	switch name {
	case "channel-add":
		ch := r.option("channel").ChannelValue(nil).ID
		if err := st.AddMusicChannel(ctx, r.guildID, ch); err != nil {
			return "", err
		}
		return fmt.Sprintf("Whitelisted <#%s> for music commands.", ch), nil
	case "channel-remove":
		ch := r.option("channel").ChannelValue(nil).ID
		if err := st.RemoveMusicChannel(ctx, r.guildID, ch); err != nil {
			return "", err
		}
		return fmt.Sprintf("Removed <#%s> from whitelisted channels.", ch), nil
	case "channels":
		ids, err := st.MusicChannels(ctx, r.guildID)
		if err != nil {
			return "", err
		}
		if len(ids) == 0 {
			return "No whitelisted channels, music commands work everywhere.", nil
		}
		return "Music commands work in: " + mentionAll("<#%s>", ids), nil
	case "dj-add":
		role := r.option("role").RoleValue(nil, "").ID
		if err := st.AddDJRole(ctx, r.guildID, role); err != nil {
			return "", err
		}
		return fmt.Sprintf("<@&%s> is now a DJ role.", role), nil
	case "dj-remove":
		role := r.option("role").RoleValue(nil, "").ID
		if err := st.RemoveDJRole(ctx, r.guildID, role); err != nil {
			return "", err
		}
		return fmt.Sprintf("<@&%s> is no longer a DJ role.", role), nil
	case "djs":
		ids, err := st.DJRoles(ctx, r.guildID)
		if err != nil {
			return "", err
		}
		if len(ids) == 0 {
			return "No DJ roles.", nil
		}
		return "DJ roles: " + mentionAll("<@&%s>", ids), nil
	case "autoplay-setup":
		cfg := storage.AutoplayConfig{
			GuildID:        r.guildID,
			VoiceChannelID: r.option("voice").ChannelValue(nil).ID,
			TextChannelID:  r.option("text").ChannelValue(nil).ID,
			Playlist:       strings.Trim(strings.TrimSpace(r.option("playlist").StringValue()), "<>"),
		}
		if err := c.Engine.Autoplay().Setup(ctx, cfg); err != nil {
			return "", err
		}
		return fmt.Sprintf("24/7 music will play <%s> in <#%s> with notices in <#%s>. Use `/music-admin autoplay-enable` to start it.",
			cfg.Playlist, cfg.VoiceChannelID, cfg.TextChannelID), nil
	case "autoplay-enable", "autoplay-disable":
		enabled := name == "autoplay-enable"
		cfg, err := c.Engine.Autoplay().SetEnabled(ctx, r.guildID, enabled)
		if err != nil {
			return "", err
		}
		if !enabled {
			return "24/7 music disabled.", nil
		}
		if err := c.Engine.Autoplay().Check(ctx, r.guildID); err != nil {
			return "", err
		}
		return fmt.Sprintf("24/7 music enabled in <#%s>.", cfg.VoiceChannelID), nil
	case "autoplay-status":
		cfg, err := st.AutoplayConfig(ctx, r.guildID)
		if err != nil {
			return "", err
		}
		return autoplayStatus(cfg), nil
	}
	return "", fmt.Errorf("unknown subcommand %q", name)
}

func autoplayStatus(cfg storage.AutoplayConfig) string {
	state := "disabled"
	if cfg.Enabled {
		state = "enabled"
	}
	return fmt.Sprintf("24/7 music is **%s**.\nVoice: <#%s>\nNotices: <#%s>\nPlaylist: <%s>\nUpdated: <t:%d:R>",
		state, cfg.VoiceChannelID, cfg.TextChannelID, cfg.Playlist, cfg.UpdatedAt.Unix())
}

func mentionAll(format string, ids []string) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = fmt.Sprintf(format, id)
	}
	return strings.Join(out, ", ")
}

func adminMessage(err error) string {
	switch {
	case errors.Is(err, autoplay.ErrNotConfigured), errors.Is(err, storage.ErrNotFound):
		return "24/7 music is not set up. Use `/music-admin autoplay-setup` first."
	default:
		return userMessage(err)
	}
}
