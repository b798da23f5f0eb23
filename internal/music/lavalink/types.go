package lavalink

import (
	"encoding/json"
	"time"
)

// TrackInfo mirrors the info object of a v4 track.
type TrackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	ArtworkURL string `json:"artworkUrl"`
	SourceName string `json:"sourceName"`
}

type Track struct {
	Encoded string    `json:"encoded"`
	Info    TrackInfo `json:"info"`
}

type loadResponse struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type playlistData struct {
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
	Tracks []Track `json:"tracks"`
}

// Exception is the error object Lavalink returns for failed loads and
// track exceptions.
type Exception struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

type VoiceState struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
	ChannelID string `json:"channelId,omitempty"`
}

// UpdateTrack with a nil Encoded stops the current track.
type UpdateTrack struct {
	Encoded *string `json:"encoded"`
}

type Band struct {
	Band int     `json:"band"`
	Gain float64 `json:"gain"`
}

type Filters struct {
	Equalizer []Band `json:"equalizer"`
}

// PlayerUpdate is the PATCH body for a guild player; nil fields are left
// untouched by the node.
type PlayerUpdate struct {
	Track   *UpdateTrack `json:"track,omitempty"`
	Paused  *bool        `json:"paused,omitempty"`
	Volume  *int         `json:"volume,omitempty"`
	Filters *Filters     `json:"filters,omitempty"`
	Voice   *VoiceState  `json:"voice,omitempty"`
}

type Stats struct {
	Players        int   `json:"players"`
	PlayingPlayers int   `json:"playingPlayers"`
	Uptime         int64 `json:"uptime"`
	Memory         struct {
		Free       int64 `json:"free"`
		Used       int64 `json:"used"`
		Allocated  int64 `json:"allocated"`
		Reservable int64 `json:"reservable"`
	} `json:"memory"`
	CPU struct {
		Cores        int     `json:"cores"`
		SystemLoad   float64 `json:"systemLoad"`
		LavalinkLoad float64 `json:"lavalinkLoad"`
	} `json:"cpu"`
}

func (s Stats) UptimeDuration() time.Duration {
	return time.Duration(s.Uptime) * time.Millisecond
}

// message is the envelope of every websocket frame.
type message struct {
	Op        string `json:"op"`
	SessionID string `json:"sessionId"`
	Resumed   bool   `json:"resumed"`
	GuildID   string `json:"guildId"`

	// event
	Type      string     `json:"type"`
	Track     *Track     `json:"track"`
	Reason    string     `json:"reason"`
	Exception *Exception `json:"exception"`
	Code      int        `json:"code"`
	ByRemote  bool       `json:"byRemote"`

	// playerUpdate
	State *struct {
		Time      int64 `json:"time"`
		Position  int64 `json:"position"`
		Connected bool  `json:"connected"`
		Ping      int   `json:"ping"`
	} `json:"state"`
}

type EventType string

const (
	EventReady       EventType = "ready"
	EventTrackStart  EventType = "TrackStartEvent"
	EventTrackEnd    EventType = "TrackEndEvent"
	EventTrackError  EventType = "TrackExceptionEvent"
	EventTrackStuck  EventType = "TrackStuckEvent"
	EventVoiceClosed EventType = "WebSocketClosedEvent"
)

// Event is a decoded node notification handed to the Node's handler.
type Event struct {
	Type    EventType
	GuildID string
	Track   string // encoded track the event refers to
	Reason  string // TrackEndEvent reason
	Err     string // exception message or close reason
	Code    int
	Resumed bool
}
