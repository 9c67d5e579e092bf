package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/townboard/backend/internal/ledger"
)

// Poll is a multiple-choice question open between CreatedAt and ExpiresAt.
type Poll struct {
	ID        uuid.UUID    `json:"id"`
	Question  string       `json:"question"`
	Options   []PollOption `json:"options"`
	Redacted  bool         `json:"redacted"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// PollOption is one answer of a poll with its running count.
type PollOption struct {
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

// TotalVotes returns the sum of all option counts.
func (p *Poll) TotalVotes() int {
	n := 0
	for _, o := range p.Options {
		n += o.Votes
	}
	return n
}

// Window returns the poll's active interval.
func (p *Poll) Window() ledger.Window {
	return ledger.Window{CreatedAt: p.CreatedAt, ExpiresAt: p.ExpiresAt}
}

// OpenAt reports whether the poll accepts votes and is shown as current at now.
func (p *Poll) OpenAt(now time.Time) bool {
	return !p.Redacted && p.Window().Contains(now)
}
