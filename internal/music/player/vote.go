package player

import (
	"context"

	"github.com/keshon/jukebox/internal/music/queue"
	"github.com/keshon/jukebox/internal/music/vote"
)

// VoteRequest is a user's attempt at a playback action. Occupancy counts
// every member of the session's voice channel, bot included.
type VoteRequest struct {
	Action       vote.Action
	Actor        string
	ActorChannel string // voice channel the actor is in, "" if none
	Occupancy    int
	Privileged   bool // owner, manage-guild or a DJ role
}

type VoteResult struct {
	vote.Decision
	Repeat bool // repeat state after an executed repeat toggle
}

// actions an autoplay session refuses to take from users
var autoplayLocked = map[vote.Action]bool{
	vote.ActionPause:   true,
	vote.ActionResume:  true,
	vote.ActionSkip:    true,
	vote.ActionStop:    true,
	vote.ActionShuffle: true,
}

// Vote authorizes req and, when the outcome is Execute, performs the action
// in the same loop step.
func (s *Session) Vote(ctx context.Context, req VoteRequest) (VoteResult, error) {
	var res VoteResult
	err := s.do(ctx, func(ctx context.Context) error {
		if s.state == StateDestroyed {
			return ErrDestroyed
		}
		if !req.Action.Valid() {
			return &RejectedError{Action: req.Action, Reason: "unknown action"}
		}
		if s.mode == ModeAutoplay && autoplayLocked[req.Action] {
			return ErrAutoplayActive
		}
		if req.ActorChannel == "" || req.ActorChannel != s.channelID {
			return &RejectedError{Action: req.Action, Reason: "you must be in the bot's voice channel"}
		}
		if err := s.precheck(req.Action); err != nil {
			return err
		}

		privileged := req.Privileged || (s.dj != "" && req.Actor == s.dj)
		if req.Action == vote.ActionSkip && s.current != nil && s.current.Requester == req.Actor {
			privileged = true
		}

		res.Decision = vote.Decide(&s.ballots, vote.Request{
			Action:     req.Action,
			Actor:      req.Actor,
			Occupancy:  req.Occupancy,
			Privileged: privileged,
		})
		s.log.Debug().Str("action", string(req.Action)).Str("actor", req.Actor).
			Str("outcome", res.Outcome.String()).Int("votes", res.Votes).Int("required", res.Required).Msg("vote")

		if res.Outcome != vote.Execute {
			return nil
		}
		return s.execute(ctx, req.Action, &res)
	})
	return res, err
}

// precheck rejects actions that cannot apply to the current state before
// any vote is recorded.
func (s *Session) precheck(a vote.Action) error {
	switch a {
	case vote.ActionPause:
		if s.current == nil {
			return ErrNothingPlaying
		}
		if s.state == StatePaused {
			return ErrAlreadyPaused
		}
	case vote.ActionResume:
		if s.current == nil {
			return ErrNothingPlaying
		}
		if s.state != StatePaused {
			return ErrNotPaused
		}
	case vote.ActionSkip:
		if s.current == nil {
			return ErrNothingPlaying
		}
	case vote.ActionShuffle:
		if s.queue.Len() < queue.MinShuffle {
			return ErrShuffleTooSmall
		}
	}
	return nil
}

func (s *Session) execute(ctx context.Context, a vote.Action, res *VoteResult) error {
	switch a {
	case vote.ActionPause:
		return s.pause(ctx)
	case vote.ActionResume:
		return s.resume(ctx)
	case vote.ActionSkip:
		return s.skip(ctx, "")
	case vote.ActionStop:
		s.teardown(ctx)
		return nil
	case vote.ActionShuffle:
		return s.shuffle(ctx)
	case vote.ActionRepeat:
		res.Repeat = s.queue.ToggleRepeat()
		return nil
	}
	return nil
}
