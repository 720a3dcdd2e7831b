// internal/models/lobby.go
package models

import "github.com/google/uuid"

// TeamRoster is a team as configured by the lobby; the lobby is the source of truth for membership.
type TeamRoster struct {
	TeamName string      `json:"teamName"`
	Players  []uuid.UUID `json:"players"`
}
