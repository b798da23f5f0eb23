package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/jobmgr"
)

// Sessions is the part of the music engine maintenance reports on.
type Sessions interface {
	Registry() *player.Registry
}

// jobLister is implemented by engines that run background jobs.
type jobLister interface {
	Jobs() []jobmgr.Info
}

type MaintenanceCommand struct {
	Engine Sessions
}

func (c *MaintenanceCommand) Name() string        { return "maintenance" }
func (c *MaintenanceCommand) Description() string { return "Bot maintenance commands" }
func (c *MaintenanceCommand) Group() string       { return "core" }
func (c *MaintenanceCommand) Category() string    { return "🛠️ Maintenance" }
func (c *MaintenanceCommand) UserPermissions() []int64 {
	return []int64{discordgo.PermissionAdministrator}
}

func (c *MaintenanceCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "ping",
				Description: "Check bot latency",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "status",
				Description: "Show guild and music session status",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "download-db",
				Description: "Download this server's music settings as JSON",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "commands-update",
				Description: "Re-register slash commands in this server",
			},
		},
	}
}

func (c *MaintenanceCommand) Run(ctx interface{}) error {
	sc, ok := ctx.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	s, e := sc.Session, sc.Event

	options := e.ApplicationCommandData().Options
	if len(options) == 0 {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{Description: "No subcommand provided."})
	}

	switch options[0].Name {
	case "ping":
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Title:       "Pong! 🏓",
			Description: fmt.Sprintf("Latency: %dms", s.HeartbeatLatency().Milliseconds()),
			Color:       bot.EmbedColor,
		})
	case "status":
		return c.runStatus(s, e)
	case "download-db":
		return runDownloadDB(s, e, sc.Storage)
	case "commands-update":
		bot.PublishSystemEvent(bot.SystemEvent{Type: bot.SystemEventRefreshCommands, GuildID: e.GuildID, Target: "all"})
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: "Slash commands will be re-registered shortly.",
			Color:       bot.EmbedColor,
		})
	default:
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("Unknown subcommand: %s", options[0].Name),
		})
	}
}

func (c *MaintenanceCommand) runStatus(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	guild, err := s.State.Guild(e.GuildID)
	if err != nil || guild == nil {
		guild, err = s.Guild(e.GuildID)
		if err != nil {
			return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
				Description: fmt.Sprintf("Failed to fetch guild: %v", err),
				Color:       bot.EmbedColor,
			})
		}
	}

	music := "no session"
	if c.Engine != nil {
		if sess, ok := c.Engine.Registry().Get(e.GuildID); ok {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			st, err := sess.Snapshot(ctx)
			cancel()
			if err == nil {
				music = sessionLine(st)
			}
		}
	}

	jobs := "none"
	if jl, ok := c.Engine.(jobLister); ok {
		jobs = jobsLine(jl.Jobs(), time.Now())
	}

	desc := fmt.Sprintf(
		"**Guild name: %s**\n"+
			"**Guild ID: %s**\n"+
			"- Members: %d\n"+
			"- Roles: %d\n"+
			"- Channels: %d\n"+
			"- Music: %s\n"+
			"- Jobs: %s\n",
		guild.Name, guild.ID, len(guild.Members), len(guild.Roles), len(guild.Channels), music, jobs,
	)
	return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
		Title:       "📊 Guild Status",
		Description: desc,
		Color:       bot.EmbedColor,
	})
}

func sessionLine(st player.Status) string {
	return fmt.Sprintf("%s session `%s`, %s, %d queued, up %s",
		st.Mode, st.SessionID, st.State, len(st.Pending), st.Uptime.Truncate(time.Second))
}

func jobsLine(jobs []jobmgr.Info, now time.Time) string {
	if len(jobs) == 0 {
		return "none"
	}
	parts := make([]string, len(jobs))
	for i, j := range jobs {
		parts[i] = fmt.Sprintf("`%s` (%s)", j.Name, now.Sub(j.Started).Truncate(time.Second))
	}
	return strings.Join(parts, ", ")
}

// guildDump is everything the bot stores about one guild.
type guildDump struct {
	GuildID        string                         `json:"guild_id"`
	MusicChannels  []string                       `json:"music_channels"`
	DJRoles        []string                       `json:"dj_roles"`
	Autoplay       *storage.AutoplayConfig        `json:"autoplay,omitempty"`
	CommandHistory []storage.CommandHistoryRecord `json:"command_history"`
}

func dumpGuild(ctx context.Context, st storage.Store, guildID string) (guildDump, error) {
	d := guildDump{GuildID: guildID}
	var err error
	if d.MusicChannels, err = st.MusicChannels(ctx, guildID); err != nil {
		return d, err
	}
	if d.DJRoles, err = st.DJRoles(ctx, guildID); err != nil {
		return d, err
	}
	ap, err := st.AutoplayConfig(ctx, guildID)
	switch {
	case err == nil:
		d.Autoplay = &ap
	case !errors.Is(err, storage.ErrNotFound):
		return d, err
	}
	if d.CommandHistory, err = st.CommandHistory(ctx, guildID); err != nil {
		return d, err
	}
	return d, nil
}

func runDownloadDB(s *discordgo.Session, e *discordgo.InteractionCreate, st storage.Store) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	d, err := dumpGuild(ctx, st, e.GuildID)
	if err != nil {
		return bot.RespondEmbedEphemeral(s, e, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("Failed to fetch record: ```%v```", err),
			Color:       bot.EmbedColor,
		})
	}
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode guild dump: %w", err)
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🧠 Database Dump",
		Description: "Here's the current music settings snapshot.",
		Color:       bot.EmbedColor,
	}
	return bot.RespondEmbedEphemeralWithFile(s, e, embed, bytes.NewReader(raw), fmt.Sprintf("%s_database_dump.json", e.GuildID))
}
