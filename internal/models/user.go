package models

import "github.com/google/uuid"

// User is the subset of a user record the game needs for labelling players.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// FallbackName labels a player whose user record is unavailable.
func FallbackName(id uuid.UUID) string {
	return "User_" + id.String()[:4]
}
