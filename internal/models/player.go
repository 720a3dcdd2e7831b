package models

import "github.com/google/uuid"

// Role is a player's role for the current turn.
type Role string

const (
	RoleDescriber Role = "describer"
	RoleGuesser   Role = "guesser"
	RoleSpectator Role = "spectator"
)

// RoleOf derives the sender's role from the active turn.
func (s *GameSession) RoleOf(playerID uuid.UUID) Role {
	turn, ok := s.ActiveTurn()
	if !ok {
		return RoleSpectator
	}
	if turn.DescriberID == playerID {
		return RoleDescriber
	}
	for _, id := range turn.GuesserIDs {
		if id == playerID {
			return RoleGuesser
		}
	}
	return RoleSpectator
}
