package discord

import (
	"context"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/config"
)

// IsAdministrator reports whether a member has administrator privileges in their guild,
// or is the configured developer.
func IsAdministrator(s *discordgo.Session, guildID string, member *discordgo.Member, cfg *config.Config) bool {
	if member == nil || member.User == nil {
		return false
	}
	if config.IsDeveloper(cfg, member.User.ID) {
		return true
	}

	guild, err := s.State.Guild(guildID)
	if err != nil || guild == nil {
		guild, err = s.Guild(guildID)
		if err != nil || guild == nil {
			return false
		}
	}

	if member.User.ID == guild.OwnerID {
		return true
	}
	for _, roleID := range member.Roles {
		if role, _ := s.State.Role(guild.ID, roleID); role != nil {
			if role.Permissions&discordgo.PermissionAdministrator != 0 {
				return true
			}
		}
	}
	return false
}

// IsPrivileged reports whether member bypasses music votes: administrators,
// members with Manage Server in the channel and holders of a DJ role.
func (b *Bot) IsPrivileged(s *discordgo.Session, guildID string, member *discordgo.Member, channelID string) bool {
	if member == nil || member.User == nil {
		return false
	}
	if IsAdministrator(s, guildID, member, b.cfg) {
		return true
	}
	if perms, err := s.UserChannelPermissions(member.User.ID, channelID); err == nil && perms&discordgo.PermissionManageGuild != 0 {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	djs, err := b.store.DJRoles(ctx, guildID)
	if err != nil {
		b.log.Warn().Err(err).Str("guild", guildID).Msg("load dj roles")
		return false
	}
	return hasAnyRole(member.Roles, djs)
}

func hasAnyRole(roles, wanted []string) bool {
	for _, r := range roles {
		if slices.Contains(wanted, r) {
			return true
		}
	}
	return false
}
