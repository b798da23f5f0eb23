package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"
)

// WithCommandLogger logs every execution and appends it to the guild's
// command history.
func WithCommandLogger(log zerolog.Logger) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			start := time.Now()
			err := c.Run(ctx, inv)

			it, ok := fromInvocation(inv)
			if !ok {
				return err
			}
			e := it.event
			user := it.user()

			ev := log.Info()
			if err != nil {
				ev = log.Warn().Err(err)
			}
			ev.Str("command", c.Name()).Str("guild", e.GuildID).Str("channel", e.ChannelID).
				Str("user", user.ID).Dur("took", time.Since(start)).Msg("command executed")

			if it.storage == nil || e.GuildID == "" {
				return err
			}
			rec := storage.CommandHistoryRecord{
				ChannelID: e.ChannelID,
				UserID:    user.ID,
				Username:  user.Username,
				Command:   c.Name(),
				Datetime:  start,
			}
			if ch, cerr := it.session.State.Channel(e.ChannelID); cerr == nil {
				rec.ChannelName = ch.Name
			}
			if g, gerr := it.session.State.Guild(e.GuildID); gerr == nil {
				rec.GuildName = g.Name
			}
			if herr := it.storage.AppendCommandHistory(ctx, e.GuildID, rec); herr != nil {
				log.Warn().Err(herr).Str("command", c.Name()).Msg("failed to record command")
			}
			return err
		})
	}
}
