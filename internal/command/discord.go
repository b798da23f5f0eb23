package command

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"
)

// Discord-specific contexts (what the runtime passes when executing).

type SlashInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Storage storage.Store
}

type ComponentInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Storage storage.Store
}

// Providers describe how a command is registered with Discord.

type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

type ComponentInteractionHandler interface {
	Component(*ComponentInteractionContext) error
}

// DiscordMeta is exposed by the Discord adapter so middleware can read Group/Category/Permissions
// without depending on the concrete Discord command type.
type DiscordMeta interface {
	Group() string
	Category() string
	UserPermissions() []int64
}

// DiscordCommand is what individual Discord commands implement (Run takes interface{} for Discord contexts).
type DiscordCommand interface {
	Name() string
	Description() string
	Group() string
	Category() string
	UserPermissions() []int64
	Run(ctx interface{}) error
}

// DiscordAdapter adapts a DiscordCommand to cmd.Command so it can live in the universal registry.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

func (a *DiscordAdapter) Name() string             { return a.Cmd.Name() }
func (a *DiscordAdapter) Description() string      { return a.Cmd.Description() }
func (a *DiscordAdapter) Group() string            { return a.Cmd.Group() }
func (a *DiscordAdapter) Category() string         { return a.Cmd.Category() }
func (a *DiscordAdapter) UserPermissions() []int64 { return a.Cmd.UserPermissions() }

func (a *DiscordAdapter) Run(ctx context.Context, inv *cmd.Invocation) error {
	return a.Cmd.Run(inv.Data)
}

func (a *DiscordAdapter) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := a.Cmd.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

func (a *DiscordAdapter) Component(ctx *ComponentInteractionContext) error {
	if ch, ok := a.Cmd.(ComponentInteractionHandler); ok {
		return ch.Component(ctx)
	}
	return nil
}

// RegisterCommand registers a Discord command with the universal registry and applies middlewares.
func RegisterCommand(discordCmd DiscordCommand, mws ...cmd.Middleware) {
	c := cmd.Apply(&DiscordAdapter{Cmd: discordCmd}, mws...)
	cmd.DefaultRegistry.MustRegister(c)
}

// AllCommands lists the registered Discord commands sorted by name.
func AllCommands() []cmd.Command {
	var out []cmd.Command
	for _, c := range cmd.DefaultRegistry.GetAll() {
		if _, ok := cmd.Root(c).(*DiscordAdapter); ok {
			out = append(out, c)
		}
	}
	return out
}

// GetCommand returns a registered Discord command by name.
func GetCommand(name string) (cmd.Command, bool) {
	c := cmd.DefaultRegistry.Get(name)
	if c == nil {
		return nil, false
	}
	if _, ok := cmd.Root(c).(*DiscordAdapter); !ok {
		return nil, false
	}
	return c, true
}

// ComponentOwner finds the command whose name prefixes a component custom
// id ("music:queue:2" belongs to "music") and returns its adapter.
func ComponentOwner(customID string) (*DiscordAdapter, bool) {
	name, _, _ := strings.Cut(customID, ":")
	c, ok := GetCommand(name)
	if !ok {
		return nil, false
	}
	a, ok := cmd.Root(c).(*DiscordAdapter)
	return a, ok
}

// Meta returns the Discord metadata of a possibly wrapped command.
func Meta(c cmd.Command) (DiscordMeta, bool) {
	m, ok := cmd.Root(c).(DiscordMeta)
	return m, ok
}

// Definition returns the slash definition of a possibly wrapped command.
func Definition(c cmd.Command) *discordgo.ApplicationCommand {
	sp, ok := cmd.Root(c).(SlashProvider)
	if !ok {
		return nil
	}
	def := sp.SlashDefinition()
	if def != nil && def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}

// Invoke runs a registered command through its middleware chain.
func Invoke(ctx context.Context, c cmd.Command, data interface{}) error {
	return c.Run(ctx, &cmd.Invocation{Data: data})
}
