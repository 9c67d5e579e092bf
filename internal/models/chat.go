package models

import "time"

// ChatMessage is a live chat line. It is broadcast and never stored.
type ChatMessage struct {
	Author    string    `json:"author"`
	Avatar    string    `json:"avatar"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
