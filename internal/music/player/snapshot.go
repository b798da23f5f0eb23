package player

import (
	"context"
	"time"

	"github.com/keshon/jukebox/internal/music/lavalink"
	"github.com/keshon/jukebox/internal/music/track"
	"github.com/keshon/jukebox/internal/music/vote"
)

// Status is a read-only copy of a session for presentation.
type Status struct {
	SessionID    string
	GuildID      string
	Mode         Mode
	State        State
	Current      *track.Track
	Pending      []track.Track
	History      []track.Track
	Volume       int
	Repeat       bool
	DJ           string
	Equalizer    lavalink.Preset
	ChannelID    string
	ControllerID string
	Votes        map[vote.Action]int
	Uptime       time.Duration
}

func (s *Session) Snapshot(ctx context.Context) (Status, error) {
	var st Status
	err := s.do(ctx, func(context.Context) error {
		st = Status{
			SessionID:    s.id,
			GuildID:      s.guildID,
			Mode:         s.mode,
			State:        s.state,
			Pending:      s.queue.Pending(),
			History:      s.queue.History(),
			Volume:       s.volume,
			Repeat:       s.queue.Repeat(),
			DJ:           s.dj,
			Equalizer:    s.eq,
			ChannelID:    s.channelID,
			ControllerID: s.controllerID,
			Votes:        s.ballots.Counts(),
			Uptime:       time.Since(s.startedAt),
		}
		if s.current != nil {
			cur := *s.current
			st.Current = &cur
		}
		return nil
	})
	return st, err
}
