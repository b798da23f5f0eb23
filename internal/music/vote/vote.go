// Package vote decides whether a playback action runs now or needs more
// votes from the listeners in the voice channel.
package vote

import "slices"

type Action string

const (
	ActionPause   Action = "pause"
	ActionResume  Action = "resume"
	ActionSkip    Action = "skip"
	ActionStop    Action = "stop"
	ActionShuffle Action = "shuffle"
	ActionRepeat  Action = "repeat"
)

// Actions lists every votable action in display order.
var Actions = []Action{ActionPause, ActionResume, ActionSkip, ActionStop, ActionShuffle, ActionRepeat}

func (a Action) Valid() bool { return slices.Contains(Actions, a) }

type Outcome int

const (
	Execute Outcome = iota
	Pending
	AlreadyVoted
)

func (o Outcome) String() string {
	switch o {
	case Execute:
		return "execute"
	case Pending:
		return "pending"
	case AlreadyVoted:
		return "already-voted"
	default:
		return "unknown"
	}
}

// smallRoom is the listener count below which non-stop actions need no vote.
const smallRoom = 3

// Request is one attempt by Actor to perform Action. Occupancy counts every
// member of the voice channel, the bot included.
type Request struct {
	Action     Action
	Actor      string
	Occupancy  int
	Privileged bool
}

type Decision struct {
	Outcome  Outcome
	Votes    int
	Required int
}

// Needed is how many more votes a Pending decision is waiting for.
func (d Decision) Needed() int {
	if n := d.Required - d.Votes; n > 0 {
		return n
	}
	return 0
}

// Required returns the quorum for action given the channel occupancy.
func Required(action Action, occupancy int) int {
	listeners := occupancy - 1
	if action == ActionStop && listeners == 2 {
		return 2
	}
	if listeners <= 0 {
		return 0
	}
	// ceil(listeners / 2.5)
	return (listeners*2 + 4) / 5
}

// Decide classifies req against the ballots and performs only vote
// bookkeeping: a vote is recorded on Pending and the action's ballot is
// cleared on Execute.
func Decide(b *Ballots, req Request) Decision {
	required := Required(req.Action, req.Occupancy)

	if req.Privileged {
		b.Clear(req.Action)
		return Decision{Outcome: Execute, Required: required}
	}
	if b.Has(req.Action, req.Actor) {
		return Decision{Outcome: AlreadyVoted, Votes: b.Count(req.Action), Required: required}
	}
	if req.Occupancy-1 < smallRoom && req.Action != ActionStop {
		b.Clear(req.Action)
		return Decision{Outcome: Execute, Required: required}
	}

	votes := b.Add(req.Action, req.Actor)
	if votes >= required {
		b.Clear(req.Action)
		return Decision{Outcome: Execute, Votes: votes, Required: required}
	}
	return Decision{Outcome: Pending, Votes: votes, Required: required}
}
