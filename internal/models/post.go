package models

import (
	"time"

	"github.com/google/uuid"
)

// Tombstone replaces redacted content.
const Tombstone = "[CONTENT DELETED]"

// Post is a short text item on the board.
type Post struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Author       string    `json:"author"`
	AuthorAvatar string    `json:"author_avatar"`
	Upvotes      int       `json:"upvotes"`
	Downvotes    int       `json:"downvotes"`
	Redacted     bool      `json:"redacted"`
	Comments     []Comment `json:"comments"`
	Timestamp    time.Time `json:"timestamp"`
}

// Comment is a reply attached to a post. It carries its own vote counters.
type Comment struct {
	ID           uuid.UUID `json:"id"`
	PostID       uuid.UUID `json:"post_id"`
	Author       string    `json:"author"`
	AuthorAvatar string    `json:"author_avatar"`
	Content      string    `json:"content"`
	Upvotes      int       `json:"upvotes"`
	Downvotes    int       `json:"downvotes"`
	Timestamp    time.Time `json:"timestamp"`
}
