package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/pkg/cmd"
)

// PermissionNames covers the permissions music commands ask for.
var PermissionNames = map[int64]string{
	discordgo.PermissionAdministrator:          "Administrator",
	discordgo.PermissionManageGuild:            "Manage Server",
	discordgo.PermissionManageChannels:         "Manage Channels",
	discordgo.PermissionManageRoles:            "Manage Roles",
	discordgo.PermissionManageMessages:         "Manage Messages",
	discordgo.PermissionSendMessages:           "Send Messages",
	discordgo.PermissionEmbedLinks:             "Embed Links",
	discordgo.PermissionVoiceConnect:           "Connect to Voice Channel",
	discordgo.PermissionVoiceSpeak:             "Speak",
	discordgo.PermissionVoiceMoveMembers:       "Move Members",
	discordgo.PermissionVoiceMuteMembers:       "Mute Members",
	discordgo.PermissionUseApplicationCommands: "Use Application Commands",
}

// WithUserPermissionCheck requires at least one of the command's
// UserPermissions. Administrators and the developer always pass.
func WithUserPermissionCheck(cfg *config.Config) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			it, ok := fromInvocation(inv)
			if !ok || it.event.GuildID == "" || it.event.Member == nil || it.event.Member.User == nil {
				return c.Run(ctx, inv)
			}
			m := it.event.Member

			meta, ok := command.Meta(c)
			if !ok || len(meta.UserPermissions()) == 0 {
				return c.Run(ctx, inv)
			}
			if config.IsDeveloper(cfg, m.User.ID) {
				return c.Run(ctx, inv)
			}

			memberPerms, err := it.session.UserChannelPermissions(m.User.ID, it.event.ChannelID)
			if err != nil {
				return fmt.Errorf("failed to get user permissions: %w", err)
			}
			if memberPerms&discordgo.PermissionAdministrator != 0 {
				return c.Run(ctx, inv)
			}

			required := meta.UserPermissions()
			for _, p := range required {
				if memberPerms&p != 0 {
					return c.Run(ctx, inv)
				}
			}

			allowed := make([]string, 0, len(required))
			for _, p := range required {
				allowed = append(allowed, PermissionName(p))
			}
			return it.deny(fmt.Sprintf(
				"You need at least one of the following permissions to run this command:\n`%s`",
				strings.Join(allowed, "`, `"),
			))
		})
	}
}

// PermissionName returns the human name of a single permission bit.
func PermissionName(p int64) string {
	if name, ok := PermissionNames[p]; ok {
		return name
	}
	return fmt.Sprintf("0x%x", p)
}
