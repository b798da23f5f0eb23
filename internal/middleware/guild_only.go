package middleware

import (
	"context"

	"github.com/keshon/jukebox/pkg/cmd"
)

// WithGuildOnly refuses commands issued outside a guild
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if it, ok := fromInvocation(inv); ok && it.event.GuildID == "" {
				return it.deny("You must be in a guild to use this command.")
			}
			return c.Run(ctx, inv)
		})
	}
}
