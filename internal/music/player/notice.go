package player

import (
	"github.com/keshon/jukebox/internal/music/track"
)

type PlayerStatus string

const (
	StatusPlaying     PlayerStatus = "Now Playing"
	StatusAdded       PlayerStatus = "Track(s) Added"
	StatusStopped     PlayerStatus = "Playback Stopped"
	StatusPaused      PlayerStatus = "Playback Paused"
	StatusResumed     PlayerStatus = "Playback Resumed"
	StatusQueueEnded  PlayerStatus = "Queue Finished"
	StatusTrackFailed PlayerStatus = "Track Failed"
	StatusError       PlayerStatus = "Error"
)

func (status PlayerStatus) StringEmoji() string {
	m := map[PlayerStatus]string{
		StatusPlaying:     "▶️",
		StatusAdded:       "🎶",
		StatusStopped:     "⏹",
		StatusPaused:      "⏸",
		StatusResumed:     "▶️",
		StatusQueueEnded:  "🏁",
		StatusTrackFailed: "⚠️",
		StatusError:       "❌",
	}
	return m[status]
}

// Notice is a message for the session's controller channel.
type Notice struct {
	Status PlayerStatus
	Track  *track.Track
	Err    error
}

// Notifier delivers notices. Implementations must not block the caller.
type Notifier interface {
	Notify(channelID string, n Notice)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, Notice) {}
