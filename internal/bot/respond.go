// Package bot holds the Discord helpers shared by the bot runtime and its
// commands, so commands never import the discord package directly.
package bot

import (
	"io"

	"github.com/bwmarrin/discordgo"
)

const EmbedColor = 0xb01e66

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, typ discordgo.InteractionResponseType, data *discordgo.InteractionResponseData) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{Type: typ, Data: data})
}

func RespondEmbedEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	return respond(s, i, discordgo.InteractionResponseChannelMessageWithSource, &discordgo.InteractionResponseData{
		Flags:  discordgo.MessageFlagsEphemeral,
		Embeds: []*discordgo.MessageEmbed{embed},
	})
}

// RespondEmbedEphemeralWithFile attaches file as fileName, e.g. a JSON export.
func RespondEmbedEphemeralWithFile(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, file io.Reader, fileName string) error {
	return respond(s, i, discordgo.InteractionResponseChannelMessageWithSource, &discordgo.InteractionResponseData{
		Flags:  discordgo.MessageFlagsEphemeral,
		Embeds: []*discordgo.MessageEmbed{embed},
		Files:  []*discordgo.File{{Name: fileName, ContentType: "application/json", Reader: file}},
	})
}

// RespondDeferred acknowledges publicly; the answer follows with FollowupEmbed.
func RespondDeferred(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return respond(s, i, discordgo.InteractionResponseDeferredChannelMessageWithSource, nil)
}

func RespondDeferredEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return respond(s, i, discordgo.InteractionResponseDeferredChannelMessageWithSource,
		&discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral})
}

func FollowupEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	return followup(s, i, false, embed)
}

func FollowupEmbedEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) error {
	return followup(s, i, true, embed)
}

func followup(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool, embed *discordgo.MessageEmbed) error {
	params := &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{embed}}
	if ephemeral {
		params.Flags = discordgo.MessageFlagsEphemeral
	}
	_, err := s.FollowupMessageCreate(i.Interaction, true, params)
	return err
}
