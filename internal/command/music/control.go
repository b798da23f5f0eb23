package music

import (
	"context"
	"fmt"

	"github.com/keshon/jukebox/internal/music/lavalink"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/vote"
)

const (
	volumeStep = 10
	// non-privileged members may set the volume up to this many listeners
	volumeFreeListeners = 2
)

func (c *MusicCommand) session(r *request) (*player.Session, error) {
	s, ok := c.Engine.Registry().Get(r.guildID)
	if !ok {
		return nil, player.ErrNotConnected
	}
	return s, nil
}

// actorChannel returns the caller's voice channel, or "" when not in voice.
func (c *MusicCommand) actorChannel(r *request) string {
	vs, err := c.Voice.FindUserVoiceState(r.guildID, r.userID())
	if err != nil {
		return ""
	}
	return vs.ChannelID
}

// inBotChannel fails unless the caller shares the session's voice channel.
func (c *MusicCommand) inBotChannel(ctx context.Context, r *request) (*player.Session, player.Status, error) {
	s, err := c.session(r)
	if err != nil {
		return nil, player.Status{}, err
	}
	st, err := s.Snapshot(ctx)
	if err != nil {
		return nil, player.Status{}, err
	}
	if ch := c.actorChannel(r); ch == "" || ch != st.ChannelID {
		return nil, player.Status{}, &player.RejectedError{Reason: fmt.Sprintf("you must be connected to <#%s> to control music", st.ChannelID)}
	}
	return s, st, nil
}

func (c *MusicCommand) runVote(ctx context.Context, r *request, name string) error {
	s, err := c.session(r)
	if err != nil {
		return r.fail(err)
	}
	st, err := s.Snapshot(ctx)
	if err != nil {
		return r.fail(err)
	}

	channel := c.actorChannel(r)
	res, err := s.Vote(ctx, player.VoteRequest{
		Action:       vote.Action(name),
		Actor:        r.userID(),
		ActorChannel: channel,
		Occupancy:    c.Voice.Occupancy(r.guildID, st.ChannelID),
		Privileged:   channel != "" && c.Voice.IsPrivileged(r.s, r.guildID, r.member, channel),
	})
	if err != nil {
		return r.fail(err)
	}
	return r.replyText("%s", voteMessage(vote.Action(name), r.mention(), res))
}

var executed = map[vote.Action]string{
	vote.ActionPause:   "⏸ Paused the song.",
	vote.ActionResume:  "▶️ Resumed the song.",
	vote.ActionSkip:    "⏭ Skipped the song.",
	vote.ActionStop:    "⏹ Stopped the player and cleared the queue.",
	vote.ActionShuffle: "🔀 Shuffled the queue.",
}

func voteMessage(a vote.Action, who string, res player.VoteResult) string {
	switch res.Outcome {
	case vote.AlreadyVoted:
		return fmt.Sprintf("%s, you have already voted to %s!", who, a)
	case vote.Pending:
		return fmt.Sprintf("%s has voted to %s. **%d** more votes needed!", who, a, res.Needed())
	}

	msg := executed[a]
	if a == vote.ActionRepeat {
		msg = "🔁 Repeat is off."
		if res.Repeat {
			msg = "🔂 Repeating the current song."
		}
	}
	if res.Votes > 0 {
		return fmt.Sprintf("Vote request for %s passed! %s", a, msg)
	}
	return msg
}

func (c *MusicCommand) runVolume(ctx context.Context, r *request) error {
	opt := r.option("value")
	if opt == nil {
		return r.replyText("Please enter a value between 1 and 100.")
	}
	value := int(opt.IntValue())
	if value < 1 || value > player.MaxVolume {
		return r.replyText("Please enter a value between 1 and 100.")
	}

	s, st, err := c.inBotChannel(ctx, r)
	if err != nil {
		return r.fail(err)
	}
	listeners := c.Voice.Occupancy(r.guildID, st.ChannelID) - 1
	if listeners > volumeFreeListeners && !c.mayOverrideVolume(r, st) {
		return r.replyText("Only a DJ or an admin can change the volume with more than %d listeners.", volumeFreeListeners)
	}

	applied, err := s.SetVolume(ctx, value)
	if err != nil {
		return r.fail(err)
	}
	return r.replyText("🔊 Set the volume to **%d**%%", applied)
}

// mayOverrideVolume reports whether the caller may set the volume in a busy
// channel: the session DJ or a privileged member.
func (c *MusicCommand) mayOverrideVolume(r *request, st player.Status) bool {
	if isSessionDJ(st, r.userID()) {
		return true
	}
	return c.Voice.IsPrivileged(r.s, r.guildID, r.member, st.ChannelID)
}

func isSessionDJ(st player.Status, userID string) bool {
	return st.DJ != "" && st.DJ == userID
}

// stepVolume applies step and rounds up to a multiple of ten, clamped to
// [0, MaxVolume]: 45 goes to 60 on the way up and to 40 on the way down.
func stepVolume(cur, step int) int {
	v := cur + step
	if v > 0 {
		v = (v + volumeStep - 1) / volumeStep * volumeStep
	} else {
		v = v / volumeStep * volumeStep
	}
	return max(0, min(player.MaxVolume, v))
}

func (c *MusicCommand) runVolumeStep(ctx context.Context, r *request, step int) error {
	s, st, err := c.inBotChannel(ctx, r)
	if err != nil {
		return r.fail(err)
	}
	applied, err := s.SetVolume(ctx, stepVolume(st.Volume, step))
	if err != nil {
		return r.fail(err)
	}
	switch {
	case applied == player.MaxVolume && step > 0:
		return r.replyText("🔊 Maximum volume reached.")
	case applied == 0:
		return r.replyText("🔇 Player is currently muted.")
	}
	return r.replyText("🔊 Volume **%d**%%", applied)
}

func (c *MusicCommand) runEqualizer(ctx context.Context, r *request) error {
	opt := r.option("preset")
	if opt == nil {
		return r.replyText("Pick an equalizer preset.")
	}
	preset, err := lavalink.ParsePreset(opt.StringValue())
	if err != nil {
		return r.replyText("`%s` is not a valid equalizer! Try Flat, Boost, Metal or Piano.", opt.StringValue())
	}
	s, _, err := c.inBotChannel(ctx, r)
	if err != nil {
		return r.fail(err)
	}
	if err := s.SetEqualizer(ctx, preset); err != nil {
		return r.fail(err)
	}
	return r.replyText("🎚 The equalizer was set to **%s**.", preset)
}
