package vote

// Ballots tracks which users voted for which action within one session.
// The zero value is ready to use. Not safe for concurrent use.
type Ballots struct {
	sets map[Action]map[string]struct{}
}

func (b *Ballots) Has(action Action, user string) bool {
	_, ok := b.sets[action][user]
	return ok
}

// Add records user's vote and returns the current count for action.
func (b *Ballots) Add(action Action, user string) int {
	if b.sets == nil {
		b.sets = make(map[Action]map[string]struct{})
	}
	set, ok := b.sets[action]
	if !ok {
		set = make(map[string]struct{})
		b.sets[action] = set
	}
	set[user] = struct{}{}
	return len(set)
}

func (b *Ballots) Count(action Action) int { return len(b.sets[action]) }

func (b *Ballots) Clear(action Action) { delete(b.sets, action) }

func (b *Ballots) Reset() { b.sets = nil }

// Counts returns the non-zero vote counts per action.
func (b *Ballots) Counts() map[Action]int {
	out := make(map[Action]int, len(b.sets))
	for a, set := range b.sets {
		if len(set) > 0 {
			out[a] = len(set)
		}
	}
	return out
}
