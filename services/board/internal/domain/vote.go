package domain

// Vote is a user's stance on a content node. VoteNone is never stored.
type Vote int8

const (
	VoteDown Vote = -1
	VoteNone Vote = 0
	VoteUp   Vote = 1
)

// Valid reports whether v may be cast (or stored in the ledger).
func (v Vote) Valid() bool {
	return v == VoteUp || v == VoteDown
}

// Tally is the vote count pair carried by every content node.
type Tally struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

// Apply moves the tally from the state implied by previous to next.
//
//	none -> up/down : +1 on that side
//	up   -> up      : unchanged (same for down -> down)
//	up   -> down    : upvotes-1, downvotes+1 (and the reverse)
//
// next must be VoteUp or VoteDown; retraction is not a transition.
func (t Tally) Apply(previous, next Vote) Tally {
	if previous == next {
		return t
	}
	switch previous {
	case VoteUp:
		t.Upvotes--
	case VoteDown:
		t.Downvotes--
	}
	switch next {
	case VoteUp:
		t.Upvotes++
	case VoteDown:
		t.Downvotes++
	}
	return t
}
