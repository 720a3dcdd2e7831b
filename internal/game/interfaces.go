// internal/game/interfaces.go
package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/taboo/internal/models"
)

// Store is the system of record for sessions between handlings.
// Save must reject a session whose Version is stale with gameerr.ErrVersionConflict
// and bump Version on success.
type Store interface {
	Load(ctx context.Context, id uuid.UUID) (*models.GameSession, error)
	Save(ctx context.Context, s *models.GameSession) error
}

// LobbyProvider is the source of truth for team membership.
type LobbyProvider interface {
	GetTeams(ctx context.Context, lobbyID uuid.UUID) ([]models.TeamRoster, error)
}

// UserDirectory labels players for broadcasts. The result is in the order of ids.
type UserDirectory interface {
	ResolveDisplayNames(ctx context.Context, ids []uuid.UUID) ([]string, error)
}

// WordSource draws the word for a new turn.
type WordSource interface {
	Next() (string, error)
}

// Broadcaster delivers events to a room, or to one member of it.
type Broadcaster interface {
	Emit(ctx context.Context, roomKey, event string, payload map[string]interface{}) error
	EmitTo(ctx context.Context, roomKey string, recipient uuid.UUID, event string, payload map[string]interface{}) error
}

// Recorder keeps a history of emitted events. Failures never affect the game.
type Recorder interface {
	Record(ctx context.Context, rec models.EventRecord) error
}
