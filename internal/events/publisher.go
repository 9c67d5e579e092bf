// Package events publishes vote activity to a message stream.
package events

import (
	"context"
	"time"
)

// Vote kinds.
const (
	KindPost    = "post"
	KindComment = "comment"
	KindPoll    = "poll"
)

// VoteEvent describes one accepted vote and the tallies after it.
type VoteEvent struct {
	Kind        string    `json:"kind"`
	TargetID    string    `json:"target_id"`
	ParentID    string    `json:"parent_id,omitempty"` // post id for comment votes
	VoterID     string    `json:"voter_id"`
	Choice      int       `json:"choice,omitempty"`
	OptionIndex *int      `json:"option_index,omitempty"`
	Upvotes     int       `json:"upvotes"`
	Downvotes   int       `json:"downvotes"`
	At          time.Time `json:"at"`
}

// VotePublisher sends vote events. Publish must not block the caller on delivery.
type VotePublisher interface {
	PublishVote(ctx context.Context, e VoteEvent) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishVote(context.Context, VoteEvent) error { return nil }
func (Nop) Close() error                                 { return nil }
