package command

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"github.com/keshon/jukebox/pkg/cmd"
)

type echoCommand struct {
	ran interface{}
}

func (c *echoCommand) Name() string             { return "echo-test" }
func (c *echoCommand) Description() string      { return "echo" }
func (c *echoCommand) Group() string            { return "test" }
func (c *echoCommand) Category() string         { return "🛠️ Maintenance" }
func (c *echoCommand) UserPermissions() []int64 { return []int64{discordgo.PermissionManageGuild} }
func (c *echoCommand) Run(ctx interface{}) error {
	c.ran = ctx
	return nil
}
func (c *echoCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func TestRegisterCommandKeepsMetaThroughMiddleware(t *testing.T) {
	inner := &echoCommand{}
	var order []string
	mw := func(name string) cmd.Middleware {
		return func(c cmd.Command) cmd.Command {
			return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
				order = append(order, name)
				return c.Run(ctx, inv)
			})
		}
	}

	RegisterCommand(inner, mw("first"), mw("second"))

	c, ok := GetCommand("echo-test")
	require.True(t, ok)

	meta, ok := Meta(c)
	require.True(t, ok)
	require.Equal(t, "test", meta.Group())
	require.Equal(t, []int64{discordgo.PermissionManageGuild}, meta.UserPermissions())

	def := Definition(c)
	require.NotNil(t, def)
	require.Equal(t, discordgo.ChatApplicationCommand, def.Type)

	payload := &SlashInteractionContext{}
	require.NoError(t, Invoke(context.Background(), c, payload))
	require.Same(t, payload, inner.ran)
	// the last applied middleware is the outermost
	require.Equal(t, []string{"second", "first"}, order)

	require.Contains(t, AllCommands(), c)
}

func TestGetCommandUnknown(t *testing.T) {
	_, ok := GetCommand("does-not-exist")
	require.False(t, ok)
}

func TestComponentOwner(t *testing.T) {
	RegisterCommand(&echoCommand2{})

	a, ok := ComponentOwner("echo-two:page:2")
	require.True(t, ok)
	require.Equal(t, "echo-two", a.Name())

	_, ok = ComponentOwner("nobody:page")
	require.False(t, ok)
}

type echoCommand2 struct{ echoCommand }

func (c *echoCommand2) Name() string { return "echo-two" }
