package bot

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

var ErrNotInVoice = errors.New("user not in any voice channel")

// VoiceState holds minimal voice channel state for a user.
type VoiceState struct {
	ChannelID string
	UserID    string
}

// Voice is what the Discord runtime exposes to music commands.
type Voice interface {
	// FindUserVoiceState returns ErrNotInVoice when the user is not connected.
	FindUserVoiceState(guildID, userID string) (*VoiceState, error)
	// Occupancy counts every member of a voice channel, bots included.
	Occupancy(guildID, channelID string) int
	// IsPrivileged reports owner, developer, manage-server or DJ role holders.
	IsPrivileged(s *discordgo.Session, guildID string, member *discordgo.Member, channelID string) bool
}
