package player

type State int

const (
	StateDisconnected State = iota
	StateConnected
	StatePlaying
	StatePaused
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Mode separates user-driven sessions from 24/7 autoplay ones. A guild has
// at most one session, in exactly one mode.
type Mode int

const (
	ModeManual Mode = iota
	ModeAutoplay
)

func (m Mode) String() string {
	if m == ModeAutoplay {
		return "autoplay"
	}
	return "manual"
}
