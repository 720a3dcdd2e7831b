// internal/database/sessions.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/taboo/internal/gameerr"
	"github.com/jason-s-yu/taboo/internal/models"
)

// SessionStore keeps sessions as JSONB rows guarded by a version column.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Load reads one session.
func (st *SessionStore) Load(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	var (
		raw     []byte
		version int64
	)
	q := `SELECT state, version FROM game_sessions WHERE id = $1`
	err := st.pool.QueryRow(ctx, q, id).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gameerr.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	var s models.GameSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	s.Version = version
	return &s, nil
}

// Save writes s if the stored version still equals s.Version; a new session must carry version 0.
func (st *SessionStore) Save(ctx context.Context, s *models.GameSession) error {
	now := time.Now().UTC()
	next := *s
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.UpdatedAt = now
	next.Version = s.Version + 1

	raw, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}

	err = pgx.BeginTxFunc(ctx, st.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var q string
		var args []any
		if s.Version == 0 {
			q = `
				INSERT INTO game_sessions (id, lobby_id, version, state, over, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (id) DO NOTHING
			`
			args = []any{next.ID, next.LobbyID, next.Version, raw, next.Over, next.CreatedAt, next.UpdatedAt}
		} else {
			q = `
				UPDATE game_sessions
				SET version = $1, state = $2, over = $3, updated_at = $4
				WHERE id = $5 AND version = $6
			`
			args = []any{next.Version, raw, next.Over, next.UpdatedAt, next.ID, s.Version}
		}
		tag, err := tx.Exec(ctx, q, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("save %s at version %d: %w", s.ID, s.Version, gameerr.ErrVersionConflict)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.CreatedAt, s.UpdatedAt, s.Version = next.CreatedAt, next.UpdatedAt, next.Version
	return nil
}
