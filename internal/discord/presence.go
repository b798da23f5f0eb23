package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/bot"
)

// FindUserVoiceState returns the voice channel the user is connected to.
func (b *Bot) FindUserVoiceState(guildID, userID string) (*bot.VoiceState, error) {
	return findUserVoiceState(b.dg.State, guildID, userID)
}

// Occupancy counts every member of the voice channel, the bot included.
func (b *Bot) Occupancy(guildID, channelID string) int {
	return countVoice(b.dg.State, guildID, channelID, false)
}

// Listeners counts the non-bot members of the voice channel.
func (b *Bot) Listeners(guildID, channelID string) int {
	return countVoice(b.dg.State, guildID, channelID, true)
}

func findUserVoiceState(st *discordgo.State, guildID, userID string) (*bot.VoiceState, error) {
	guild, err := st.Guild(guildID)
	if err != nil {
		return nil, err
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return &bot.VoiceState{ChannelID: vs.ChannelID, UserID: vs.UserID}, nil
		}
	}
	return nil, bot.ErrNotInVoice
}

func countVoice(st *discordgo.State, guildID, channelID string, humansOnly bool) int {
	if channelID == "" {
		return 0
	}
	guild, err := st.Guild(guildID)
	if err != nil {
		return 0
	}
	n := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		if humansOnly && isBot(st, guild, vs) {
			continue
		}
		n++
	}
	return n
}

func isBot(st *discordgo.State, guild *discordgo.Guild, vs *discordgo.VoiceState) bool {
	if st.User != nil && vs.UserID == st.User.ID {
		return true
	}
	if vs.Member != nil && vs.Member.User != nil {
		return vs.Member.User.Bot
	}
	for _, m := range guild.Members {
		if m.User != nil && m.User.ID == vs.UserID {
			return m.User.Bot
		}
	}
	return false
}
