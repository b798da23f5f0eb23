// Package middleware holds the cmd.Middleware chain applied to Discord commands.
package middleware

import (
	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"
)

// interaction is the part of a Discord context every middleware needs.
type interaction struct {
	session *discordgo.Session
	event   *discordgo.InteractionCreate
	storage storage.Store
}

func fromInvocation(inv *cmd.Invocation) (interaction, bool) {
	switch v := inv.Data.(type) {
	case *command.SlashInteractionContext:
		return interaction{v.Session, v.Event, v.Storage}, true
	case *command.ComponentInteractionContext:
		return interaction{v.Session, v.Event, v.Storage}, true
	}
	return interaction{}, false
}

func (i interaction) deny(msg string) error {
	return bot.RespondEmbedEphemeral(i.session, i.event, &discordgo.MessageEmbed{Description: msg})
}

// user safely retrieves the user object from an InteractionCreate event
func (i interaction) user() *discordgo.User {
	e := i.event
	if e.Member != nil && e.Member.User != nil {
		return e.Member.User
	}
	if e.User != nil {
		return e.User
	}
	return &discordgo.User{ID: "unknown", Username: "Unknown"}
}
