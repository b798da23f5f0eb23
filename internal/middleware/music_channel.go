package middleware

import (
	"context"
	"slices"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"
)

const musicGroup = "music"

// WithMusicChannelCheck restricts music commands to the guild's whitelisted
// text channels. Guilds without a whitelist allow every channel.
func WithMusicChannelCheck() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			it, ok := fromInvocation(inv)
			if !ok || it.storage == nil || it.event.GuildID == "" {
				return c.Run(ctx, inv)
			}
			if meta, ok := command.Meta(c); !ok || meta.Group() != musicGroup {
				return c.Run(ctx, inv)
			}

			channels, err := it.storage.MusicChannels(ctx, it.event.GuildID)
			if err != nil || len(channels) == 0 {
				return c.Run(ctx, inv)
			}
			if !slices.Contains(channels, it.event.ChannelID) {
				return it.deny("This isn't a music channel! Use `/music-admin channels` to see where music commands work.")
			}
			return c.Run(ctx, inv)
		})
	}
}
