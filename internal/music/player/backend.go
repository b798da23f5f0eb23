package player

import (
	"context"

	"github.com/keshon/jukebox/internal/music/lavalink"
	"github.com/keshon/jukebox/internal/music/track"
)

// Backend is the audio node plus voice transport for all guilds. Track
// end and exception notifications come back through Registry.Dispatch.
type Backend interface {
	Connect(ctx context.Context, guildID, channelID string) error
	Disconnect(ctx context.Context, guildID string) error
	Play(ctx context.Context, guildID string, t track.Track) error
	Pause(ctx context.Context, guildID string, paused bool) error
	Stop(ctx context.Context, guildID string) error
	SetVolume(ctx context.Context, guildID string, volume int) error
	SetEqualizer(ctx context.Context, guildID string, preset lavalink.Preset) error
}

// Materializer turns lazy queue entries into playable tracks.
type Materializer interface {
	Materialize(ctx context.Context, t track.Track) (track.Track, error)
}

// RefillFunc supplies the next batch of tracks when an autoplay queue runs dry.
type RefillFunc func(ctx context.Context) ([]track.Track, error)

type passthrough struct{}

func (passthrough) Materialize(_ context.Context, t track.Track) (track.Track, error) { return t, nil }
