package player

type EventKind int

const (
	EventTrackEnd EventKind = iota
	EventTrackException
	EventVoiceClosed
)

// EndReason is the backend's reason for a track ending.
type EndReason string

const (
	EndFinished   EndReason = "finished"
	EndLoadFailed EndReason = "loadFailed"
	EndStopped    EndReason = "stopped"
	EndReplaced   EndReason = "replaced"
	EndCleanup    EndReason = "cleanup"
)

// Advances reports whether the queue should move on after this reason.
// Replaced tracks were superseded by a play we issued ourselves.
func (r EndReason) Advances() bool {
	switch r {
	case EndFinished, EndLoadFailed, EndStopped:
		return true
	default:
		return false
	}
}

// Event is a backend notification for one guild, routed through
// Registry.Dispatch into the session loop.
type Event struct {
	GuildID string
	Kind    EventKind
	TrackID string
	Reason  EndReason
	Err     string
	Code    int // voice close code
}

// voice close codes after which the session cannot continue
const (
	closeDisconnected  = 4014
	closeSessionNoLong = 4006
)

func (e Event) fatalClose() bool {
	return e.Kind == EventVoiceClosed && (e.Code == closeDisconnected || e.Code == closeSessionNoLong)
}
