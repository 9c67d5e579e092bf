package models

import (
	"time"

	"github.com/google/uuid"
)

// Admin is a moderator account allowed to redact content.
type Admin struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
