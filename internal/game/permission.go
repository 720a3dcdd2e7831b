// internal/game/permission.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/taboo/internal/models"
)

// HasPermission reports whether a sender holding role may send a line of messageType.
// Describing is reserved to the describer; guessing to the guessers, never the describer.
// Chat is open to everyone in the room.
func HasPermission(role models.Role, messageType models.MessageType, s *models.GameSession, senderID uuid.UUID) bool {
	switch messageType {
	case models.MessageChat:
		return true
	case models.MessageDescribe:
		return role == models.RoleDescriber
	case models.MessageGuess:
		if role != models.RoleGuesser {
			return false
		}
		if s == nil || s.CurrentTurn == nil {
			return false
		}
		return s.CurrentTurn.DescriberID != senderID
	}
	return false
}
