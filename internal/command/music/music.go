// Package music holds the /music and /music-admin slash commands.
package music

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/music/autoplay"
	"github.com/keshon/jukebox/internal/music/lavalink"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/source_resolver"
	"github.com/keshon/jukebox/internal/storage"
)

// commandTimeout bounds one command: catalog lookups plus a voice handshake.
const commandTimeout = 30 * time.Second

// Engine is the music engine the commands drive.
type Engine interface {
	Registry() *player.Registry
	Resolver() *source_resolver.SourceResolver
	Autoplay() *autoplay.Manager
	NodeStats() lavalink.Stats
}

type MusicCommand struct {
	Voice  bot.Voice
	Engine Engine
	Config *config.Config
}

func (c *MusicCommand) Name() string             { return "music" }
func (c *MusicCommand) Description() string      { return "Play and control music" }
func (c *MusicCommand) Group() string            { return "music" }
func (c *MusicCommand) Category() string         { return "🎵 Music" }
func (c *MusicCommand) UserPermissions() []int64 { return []int64{} }

func sub(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: desc,
		Options:     opts,
	}
}

func queryOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "query",
		Description: "Link (YouTube, Spotify, direct URL) or search text",
		Required:    true,
	}
}

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	minVolume := 1.0
	eqChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(lavalink.Presets))
	for _, p := range lavalink.Presets {
		eqChoices = append(eqChoices, &discordgo.ApplicationCommandOptionChoice{Name: p.String(), Value: string(p)})
	}

	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			sub("connect", "Join your voice channel"),
			sub("play", "Queue a song or playlist", queryOption()),
			sub("playnext", "Queue a song or playlist to play next (admin)", queryOption()),
			sub("pause", "Pause playback"),
			sub("resume", "Resume playback"),
			sub("skip", "Skip the current song"),
			sub("stop", "Stop playback, clear the queue and leave"),
			sub("shuffle", "Shuffle the queue"),
			sub("repeat", "Toggle repeating the current song"),
			sub("volume", "Set the volume", &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "value",
				Description: "Volume between 1 and 100",
				Required:    true,
				MinValue:    &minVolume,
				MaxValue:    player.MaxVolume,
			}),
			sub("volup", "Raise the volume by 10"),
			sub("voldown", "Lower the volume by 10"),
			sub("eq", "Set the equalizer", &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "preset",
				Description: "Equalizer preset",
				Required:    true,
				Choices:     eqChoices,
			}),
			sub("queue", "Show upcoming songs"),
			sub("history", "Show songs played in this session"),
			sub("now", "Show the current song"),
			sub("info", "Show audio node statistics"),
		},
	}
}

// request is one invocation of a subcommand.
type request struct {
	s       *discordgo.Session
	e       *discordgo.InteractionCreate
	store   storage.Store
	guildID string
	member  *discordgo.Member
	opts    []*discordgo.ApplicationCommandInteractionDataOption
}

func (r *request) userID() string {
	if r.member != nil && r.member.User != nil {
		return r.member.User.ID
	}
	return ""
}

func (r *request) mention() string {
	return "<@" + r.userID() + ">"
}

func (r *request) option(name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, o := range r.opts {
		if o.Name == name {
			return o
		}
	}
	return nil
}

func (r *request) reply(embed *discordgo.MessageEmbed) error {
	if embed.Color == 0 {
		embed.Color = bot.EmbedColor
	}
	return bot.FollowupEmbed(r.s, r.e, embed)
}

func (r *request) replyText(format string, args ...any) error {
	return r.reply(&discordgo.MessageEmbed{Description: fmt.Sprintf(format, args...)})
}

func (r *request) fail(err error) error {
	return r.reply(&discordgo.MessageEmbed{Title: "🎵 Music", Description: userMessage(err)})
}

func (c *MusicCommand) Run(ctx interface{}) error {
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

	if err := bot.RespondDeferred(sc.Session, e); err != nil {
		return fmt.Errorf("failed to defer response: %w", err)
	}
	r := &request{s: sc.Session, e: e, store: sc.Storage, guildID: e.GuildID, member: e.Member, opts: subcmd.Options}

	cctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch subcmd.Name {
	case "connect":
		return c.runConnect(cctx, r)
	case "play":
		return c.runPlay(cctx, r, false)
	case "playnext":
		return c.runPlay(cctx, r, true)
	case "pause", "resume", "skip", "stop", "shuffle", "repeat":
		return c.runVote(cctx, r, subcmd.Name)
	case "volume":
		return c.runVolume(cctx, r)
	case "volup":
		return c.runVolumeStep(cctx, r, volumeStep)
	case "voldown":
		return c.runVolumeStep(cctx, r, -volumeStep)
	case "eq":
		return c.runEqualizer(cctx, r)
	case "queue":
		return c.runQueue(cctx, r)
	case "history":
		return c.runHistory(cctx, r)
	case "now":
		return c.runNow(cctx, r)
	case "info":
		return c.runInfo(r)
	default:
		return r.replyText("Unknown subcommand: %s", subcmd.Name)
	}
}
