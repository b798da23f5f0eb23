package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/music/player"
)

type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// ChannelNotifier posts session notices to text channels. Sends run on
// their own goroutine so the session loop never waits on Discord.
type ChannelNotifier struct {
	dg  embedSender
	log zerolog.Logger
}

func NewChannelNotifier(dg embedSender, log zerolog.Logger) *ChannelNotifier {
	return &ChannelNotifier{dg: dg, log: log.With().Str("component", "notifier").Logger()}
}

var _ player.Notifier = (*ChannelNotifier)(nil)

func (n *ChannelNotifier) Notify(channelID string, notice player.Notice) {
	if channelID == "" {
		return
	}
	embed := noticeEmbed(notice)
	go func() {
		if _, err := n.dg.ChannelMessageSendEmbed(channelID, embed); err != nil {
			n.log.Warn().Err(err).Str("channel", channelID).Str("status", string(notice.Status)).Msg("send notice")
		}
	}()
}

func noticeEmbed(n player.Notice) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s %s", n.Status.StringEmoji(), n.Status),
		Color: bot.EmbedColor,
	}
	if t := n.Track; t != nil {
		if t.URI != "" {
			embed.Description = fmt.Sprintf("🎶 [%s](%s) `%s`", t.Display(), t.URI, t.Length())
		} else {
			embed.Description = fmt.Sprintf("🎶 %s `%s`", t.Display(), t.Length())
		}
		if t.Requester != "" {
			embed.Footer = &discordgo.MessageEmbedFooter{Text: "Requested by " + t.Requester}
		}
	}
	if n.Err != nil {
		if embed.Description != "" {
			embed.Description += "\n\n"
		}
		embed.Description += fmt.Sprintf("**Error:** %v", n.Err)
	}
	return embed
}
