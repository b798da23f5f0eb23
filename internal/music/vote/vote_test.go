package vote

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequired(t *testing.T) {
	cases := []struct {
		action    Action
		occupancy int
		want      int
	}{
		{ActionSkip, 1, 0},
		{ActionSkip, 2, 1},
		{ActionSkip, 3, 1},
		{ActionSkip, 4, 2},
		{ActionSkip, 5, 2},
		{ActionSkip, 6, 2},
		{ActionSkip, 7, 3},
		{ActionSkip, 11, 4},
		{ActionStop, 3, 2},
		{ActionStop, 5, 2},
		{ActionStop, 2, 1},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Required(c.action, c.occupancy), "%s occupancy=%d", c.action, c.occupancy)
	}
}

func TestPrivilegedClearsBallot(t *testing.T) {
	var b Ballots
	b.Add(ActionSkip, "u1")

	d := Decide(&b, Request{Action: ActionSkip, Actor: "dj", Occupancy: 8, Privileged: true})
	require.Equal(t, Execute, d.Outcome)
	require.Zero(t, b.Count(ActionSkip))
}

func TestSmallRoomExecutes(t *testing.T) {
	for _, a := range []Action{ActionPause, ActionResume, ActionSkip, ActionShuffle, ActionRepeat} {
		for occ := 1; occ <= 3; occ++ {
			var b Ballots
			d := Decide(&b, Request{Action: a, Actor: "u1", Occupancy: occ})
			require.Equal(t, Execute, d.Outcome, "%s occupancy=%d", a, occ)
		}
	}
}

func TestStopInSmallRoomNeedsQuorum(t *testing.T) {
	var b Ballots
	d := Decide(&b, Request{Action: ActionStop, Actor: "u1", Occupancy: 3})
	require.Equal(t, Pending, d.Outcome)
	require.Equal(t, 1, d.Needed())

	d = Decide(&b, Request{Action: ActionStop, Actor: "u2", Occupancy: 3})
	require.Equal(t, Execute, d.Outcome)
	require.Zero(t, b.Count(ActionStop))
}

func TestAlreadyVotedDoesNotDoubleCount(t *testing.T) {
	var b Ballots
	req := Request{Action: ActionSkip, Actor: "u1", Occupancy: 8}

	d := Decide(&b, req)
	require.Equal(t, Pending, d.Outcome)

	d = Decide(&b, req)
	require.Equal(t, AlreadyVoted, d.Outcome)
	require.Equal(t, 1, b.Count(ActionSkip))
}

func TestAlreadyVotedBeforeSmallRoom(t *testing.T) {
	var b Ballots
	Decide(&b, Request{Action: ActionSkip, Actor: "u1", Occupancy: 8})

	// the room shrank, but u1 already has a recorded vote
	d := Decide(&b, Request{Action: ActionSkip, Actor: "u1", Occupancy: 3})
	require.Equal(t, AlreadyVoted, d.Outcome)
}

func TestFiveOccupantSkip(t *testing.T) {
	var b Ballots

	d := Decide(&b, Request{Action: ActionSkip, Actor: "u1", Occupancy: 5})
	require.Equal(t, Pending, d.Outcome)
	require.Equal(t, 1, d.Votes)
	require.Equal(t, 2, d.Required)
	require.Equal(t, 1, d.Needed())

	d = Decide(&b, Request{Action: ActionSkip, Actor: "u2", Occupancy: 5})
	require.Equal(t, Execute, d.Outcome)
	require.Zero(t, b.Count(ActionSkip))
}

func TestBallotsAreIndependentPerAction(t *testing.T) {
	var b Ballots
	Decide(&b, Request{Action: ActionSkip, Actor: "u1", Occupancy: 8})
	Decide(&b, Request{Action: ActionPause, Actor: "u1", Occupancy: 8})

	require.Equal(t, map[Action]int{ActionSkip: 1, ActionPause: 1}, b.Counts())
}

func TestActionValid(t *testing.T) {
	require.True(t, ActionShuffle.Valid())
	require.False(t, Action("eject").Valid())
}
