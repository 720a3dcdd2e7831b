// internal/store/seed.go
package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jason-s-yu/taboo/internal/models"
)

// Seed is the file format that populates the static lobby provider and user directory.
type Seed struct {
	Lobbies []struct {
		ID    uuid.UUID           `json:"id"`
		Teams []models.TeamRoster `json:"teams"`
	} `json:"lobbies"`
	Users []models.User `json:"users"`
}

// LoadSeed reads a seed file into fresh static providers. An empty path yields empty providers.
func LoadSeed(path string) (*StaticLobbies, *StaticDirectory, error) {
	lobbies, users := NewStaticLobbies(), NewStaticDirectory()
	if path == "" {
		return lobbies, users, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	for _, l := range seed.Lobbies {
		lobbies.Put(l.ID, l.Teams)
	}
	for _, u := range seed.Users {
		users.Put(u.ID, u.Username)
	}
	return lobbies, users, nil
}
