// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/taboo/internal/gameerr"
	"github.com/jason-s-yu/taboo/internal/models"
)

// MemoryStore keeps sessions in memory only. Sessions are copied on the way
// in and out so callers never share state with the store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.GameSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]*models.GameSession)}
}

// Load returns a private copy of the session.
func (m *MemoryStore) Load(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, gameerr.ErrGameNotFound
	}
	return s.Clone(), nil
}

// Save stores s if its Version matches the stored one, then bumps s.Version.
func (m *MemoryStore) Save(ctx context.Context, s *models.GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.sessions[s.ID]; ok {
		if cur.Version != s.Version {
			return fmt.Errorf("save %s at version %d (stored %d): %w", s.ID, s.Version, cur.Version, gameerr.ErrVersionConflict)
		}
	} else if s.Version != 0 {
		return fmt.Errorf("save %s at version %d: %w", s.ID, s.Version, gameerr.ErrVersionConflict)
	}

	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	s.Version++
	m.sessions[s.ID] = s.Clone()
	return nil
}

// Delete removes a session.
func (m *MemoryStore) Delete(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len is the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// StaticLobbies is a LobbyProvider over a fixed set of rosters.
type StaticLobbies struct {
	mu      sync.RWMutex
	lobbies map[uuid.UUID][]models.TeamRoster
}

func NewStaticLobbies() *StaticLobbies {
	return &StaticLobbies{lobbies: make(map[uuid.UUID][]models.TeamRoster)}
}

// Put registers (or replaces) the rosters of a lobby.
func (l *StaticLobbies) Put(lobbyID uuid.UUID, teams []models.TeamRoster) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lobbies[lobbyID] = teams
}

func (l *StaticLobbies) GetTeams(ctx context.Context, lobbyID uuid.UUID) ([]models.TeamRoster, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	teams, ok := l.lobbies[lobbyID]
	if !ok {
		return nil, gameerr.ErrLobbyNotFound
	}
	out := make([]models.TeamRoster, len(teams))
	for i, t := range teams {
		out[i] = models.TeamRoster{TeamName: t.TeamName, Players: append([]uuid.UUID(nil), t.Players...)}
	}
	return out, nil
}

// StaticDirectory resolves display names from a fixed map.
type StaticDirectory struct {
	mu    sync.RWMutex
	names map[uuid.UUID]string
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{names: make(map[uuid.UUID]string)}
}

func (d *StaticDirectory) Put(id uuid.UUID, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[id] = name
}

// ResolveDisplayNames keeps the order of ids; unknown ids get a generated fallback.
func (d *StaticDirectory) ResolveDisplayNames(ctx context.Context, ids []uuid.UUID) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(ids))
	for i, id := range ids {
		if name, ok := d.names[id]; ok {
			out[i] = name
		} else {
			out[i] = models.FallbackName(id)
		}
	}
	return out, nil
}
