// Package ledger enforces one vote per voter per votable item.
//
// The functions here are pure: they decide the next tally from the voter's
// previous ledger entry. Stores call them inside whatever atomic scope they
// provide (a row lock, a mutex) so the duplicate check and the write are
// never separated by another writer.
package ledger

import (
	"errors"
	"time"
)

var (
	// ErrDuplicateVote means the voter already holds this exact choice, or already voted in a poll.
	ErrDuplicateVote = errors.New("duplicate vote")
	// ErrInvalidOption means the poll option index is out of range.
	ErrInvalidOption = errors.New("invalid option")
	// ErrInvalidChoice means the choice is neither up nor down.
	ErrInvalidChoice = errors.New("invalid choice")
	// ErrPollClosed means the poll is outside its active window or redacted.
	ErrPollClosed = errors.New("poll closed")
	// ErrNotFound is returned by stores for unknown votables and polls.
	ErrNotFound = errors.New("not found")
)

// Choice is the signed direction of a vote. None marks a voter without a ledger entry.
type Choice int8

const (
	None Choice = 0
	Up   Choice = 1
	Down Choice = -1
)

// Valid reports whether c can be cast.
func (c Choice) Valid() bool {
	return c == Up || c == Down
}

func (c Choice) String() string {
	switch c {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "none"
	}
}

// Tally holds the aggregate counters of a votable.
type Tally struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}

// Apply returns the tally after a voter whose previous entry is previous casts choice.
// A repeated choice is rejected with ErrDuplicateVote and t is returned unchanged.
func Apply(t Tally, previous, choice Choice) (Tally, error) {
	if !choice.Valid() {
		return t, ErrInvalidChoice
	}
	if previous == choice {
		return t, ErrDuplicateVote
	}
	switch previous {
	case Up:
		t.Upvotes--
	case Down:
		t.Downvotes--
	}
	if choice == Up {
		t.Upvotes++
	} else {
		t.Downvotes++
	}
	return t, nil
}

// Votable is a tally together with its voters ledger, for stores that keep both in memory.
type Votable struct {
	Tally
	Voters map[string]Choice
}

// Cast records choice for voter. The caller serializes calls on the same Votable.
func (v *Votable) Cast(voter string, choice Choice) (Tally, error) {
	next, err := Apply(v.Tally, v.Voters[voter], choice)
	if err != nil {
		return v.Tally, err
	}
	if v.Voters == nil {
		v.Voters = make(map[string]Choice)
	}
	v.Voters[voter] = choice
	v.Tally = next
	return next, nil
}

// CheckPollVote validates a poll vote before it is recorded.
// Range is checked before the ledger so malformed requests never reach the conflict path.
func CheckPollVote(numOptions int, alreadyVoted bool, index int) error {
	if index < 0 || index >= numOptions {
		return ErrInvalidOption
	}
	if alreadyVoted {
		return ErrDuplicateVote
	}
	return nil
}

// Ballot is a poll's option counters with its voters ledger (voter -> option index).
type Ballot struct {
	Counts []int
	Voters map[string]int
}

// Cast records a permanent vote for option index. The caller serializes calls on the same Ballot.
func (b *Ballot) Cast(voter string, index int) error {
	_, voted := b.Voters[voter]
	if err := CheckPollVote(len(b.Counts), voted, index); err != nil {
		return err
	}
	if b.Voters == nil {
		b.Voters = make(map[string]int)
	}
	b.Counts[index]++
	b.Voters[voter] = index
	return nil
}

// Window is a poll's active interval, inclusive at both ends.
type Window struct {
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Contains reports whether now falls within [CreatedAt, ExpiresAt].
func (w Window) Contains(now time.Time) bool {
	return !now.Before(w.CreatedAt) && !now.After(w.ExpiresAt)
}
