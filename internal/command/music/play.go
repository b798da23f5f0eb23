package music

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/internal/bot"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/source_resolver"
)

// connect joins the caller's voice channel, replacing an autoplay session
// if one holds the guild, and makes this text channel the controller.
func (c *MusicCommand) connect(ctx context.Context, r *request) (*player.Session, error) {
	vs, err := c.Voice.FindUserVoiceState(r.guildID, r.userID())
	if err != nil {
		return nil, bot.ErrNotInVoice
	}
	s, created, err := c.Engine.Registry().Acquire(ctx, r.guildID, player.AcquireOptions{
		Mode:         player.ModeManual,
		ChannelID:    vs.ChannelID,
		ControllerID: r.e.ChannelID,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		if err := s.SetController(ctx, r.e.ChannelID); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (c *MusicCommand) runConnect(ctx context.Context, r *request) error {
	if _, err := c.connect(ctx, r); err != nil {
		return r.fail(err)
	}
	return r.replyText("🔊 Connected. Music notices will be posted here.")
}

func (c *MusicCommand) isAdmin(r *request) bool {
	if r.member == nil || r.member.User == nil {
		return false
	}
	return config.IsDeveloper(c.Config, r.member.User.ID) || r.member.Permissions&discordgo.PermissionAdministrator != 0
}

func (c *MusicCommand) runPlay(ctx context.Context, r *request, next bool) error {
	if next && !c.isAdmin(r) {
		return r.replyText("You must be an administrator to use `playnext`.")
	}
	opt := r.option("query")
	if opt == nil || opt.StringValue() == "" {
		return r.fail(source_resolver.ErrEmptyQuery)
	}

	s, err := c.connect(ctx, r)
	if err != nil {
		return r.fail(err)
	}

	res, err := c.Engine.Resolver().Resolve(ctx, opt.StringValue(), r.userID())
	if err != nil {
		return r.fail(err)
	}

	vs, _ := c.Voice.FindUserVoiceState(r.guildID, r.userID())
	privileged := vs != nil && c.Voice.IsPrivileged(r.s, r.guildID, r.member, vs.ChannelID)

	added, err := s.Enqueue(ctx, res.Tracks, player.EnqueueOptions{
		Priority:   next,
		Requester:  r.userID(),
		Privileged: privileged,
	})
	if err != nil {
		return r.fail(err)
	}
	return r.reply(addedEmbed(res, added, next))
}

func addedEmbed(res source_resolver.Result, added player.EnqueueResult, next bool) *discordgo.MessageEmbed {
	where := "to the queue"
	if next {
		where = "to the front of the queue"
	}
	var desc string
	switch {
	case len(res.Tracks) == 1:
		t := res.Tracks[0]
		desc = fmt.Sprintf("Added **%s** `%s` %s.", t.Display(), t.Length(), where)
	case res.Name != "":
		desc = fmt.Sprintf("Added **%s** with %d songs %s.", res.Name, added.Added, where)
	default:
		desc = fmt.Sprintf("Added %d songs %s.", added.Added, where)
	}
	if added.Started {
		desc += "\nStarting playback."
	} else {
		desc += fmt.Sprintf("\n%d songs waiting.", added.Pending)
	}
	return &discordgo.MessageEmbed{
		Title:       player.StatusAdded.StringEmoji() + " " + string(player.StatusAdded),
		Description: desc,
		Color:       bot.EmbedColor,
	}
}

// userMessage turns engine errors into something a member can act on.
func userMessage(err error) string {
	var rejected *player.RejectedError
	var resolution *source_resolver.ResolutionError
	var backend *player.BackendError

	switch {
	case errors.Is(err, bot.ErrNotInVoice):
		return "Join a voice channel first."
	case errors.Is(err, source_resolver.ErrEmptyQuery):
		return "Tell me what to play."
	case errors.Is(err, source_resolver.ErrCuratedUnavailable):
		return "Spotify links are not available on this bot."
	case errors.Is(err, source_resolver.ErrNoMatches), errors.As(err, &resolution):
		return "No results found."
	case errors.As(err, &rejected):
		return "You can't do that: " + rejected.Reason + "."
	case errors.Is(err, player.ErrAutoplayActive):
		return "You may not use this while 24/7 music is playing."
	case errors.Is(err, player.ErrDestroyed), errors.Is(err, player.ErrNotConnected):
		return "I am not currently connected to voice!"
	case errors.Is(err, player.ErrNothingPlaying):
		return "Nothing is currently playing."
	case errors.Is(err, player.ErrShuffleTooSmall):
		return "Please add more songs to the queue before trying to shuffle."
	case errors.Is(err, player.ErrAlreadyPaused):
		return "Playback is already paused."
	case errors.Is(err, player.ErrNotPaused):
		return "Playback is not paused."
	case errors.Is(err, context.DeadlineExceeded):
		return "That took too long, please try again."
	case errors.As(err, &backend):
		return "The audio node refused the request, please try again."
	default:
		return fmt.Sprintf("Something went wrong: %v", err)
	}
}
