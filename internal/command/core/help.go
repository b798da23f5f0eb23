// Package core holds the commands every deployment carries: help and
// maintenance.
package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/pkg/cmd"
)

const AppName = "Jukebox"

type HelpCommand struct{}

func (c *HelpCommand) Name() string             { return "help" }
func (c *HelpCommand) Description() string      { return "Get a list of available commands" }
func (c *HelpCommand) Group() string            { return "core" }
func (c *HelpCommand) Category() string         { return "🕯️ Information" }
func (c *HelpCommand) UserPermissions() []int64 { return []int64{} }

func (c *HelpCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "category",
				Description: "View commands grouped by category",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "group",
				Description: "View commands grouped by group",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "flat",
				Description: "View all commands as a flat list",
			},
		},
	}
}

func (c *HelpCommand) Run(ctx interface{}) error {
	sc, ok := ctx.(*command.SlashInteractionContext)
	if !ok {
		return nil
	}
	s, e := sc.Session, sc.Event

	if err := bot.RespondDeferredEphemeral(s, e); err != nil {
		return fmt.Errorf("failed to defer help: %w", err)
	}

	mode := "category"
	if opts := e.ApplicationCommandData().Options; len(opts) > 0 {
		mode = opts[0].Name
	}

	return bot.FollowupEmbedEphemeral(s, e, &discordgo.MessageEmbed{
		Title:       AppName + " Help",
		Description: helpText(entriesOf(command.AllCommands()), mode),
		Color:       bot.EmbedColor,
	})
}

// entry is what help shows about one command.
type entry struct {
	name, description, group, category string
}

func entriesOf(cmds []cmd.Command) []entry {
	out := make([]entry, 0, len(cmds))
	for _, c := range cmds {
		e := entry{name: c.Name(), description: c.Description()}
		if meta, ok := command.Meta(c); ok {
			e.group, e.category = meta.Group(), meta.Category()
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func helpText(entries []entry, mode string) string {
	switch mode {
	case "flat":
		var sb strings.Builder
		writeEntries(&sb, entries)
		return sb.String()
	case "group":
		return grouped(entries, func(e entry) string { return e.group }, func(a, b string) bool { return a < b })
	default:
		return grouped(entries, func(e entry) string { return e.category }, func(a, b string) bool {
			wa, wb := config.CategoryWeights[a], config.CategoryWeights[b]
			if wa != wb {
				return wa < wb
			}
			return a < b
		})
	}
}

func grouped(entries []entry, key func(entry) string, less func(a, b string) bool) string {
	buckets := make(map[string][]entry)
	var keys []string
	for _, e := range entries {
		k := key(e)
		if _, ok := buckets[k]; !ok {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], e)
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "**%s**\n", k)
		writeEntries(&sb, buckets[k])
		sb.WriteString("\n")
	}
	return sb.String()
}

func writeEntries(sb *strings.Builder, entries []entry) {
	for _, e := range entries {
		fmt.Fprintf(sb, "`%s` - %s\n", e.name, e.description)
	}
}
