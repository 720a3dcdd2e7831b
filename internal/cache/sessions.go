// internal/cache/sessions.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/taboo/internal/gameerr"
	"github.com/jason-s-yu/taboo/internal/models"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps each session as a JSON string under "session:<id>".
// Saves are compare-and-swap on the version inside the document, using WATCH.
type SessionStore struct {
	rdb *redis.Client
	// ttl expires finished or abandoned sessions; zero keeps them forever.
	ttl time.Duration
}

func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: ttl}
}

func sessionKey(id uuid.UUID) string {
	return "session:" + id.String()
}

func (st *SessionStore) Load(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	raw, err := st.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gameerr.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	var s models.GameSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

func (st *SessionStore) Save(ctx context.Context, s *models.GameSession) error {
	key := sessionKey(s.ID)
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

	err = st.rdb.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if stored != s.Version {
			return fmt.Errorf("save %s at version %d (stored %d): %w", s.ID, s.Version, stored, gameerr.ErrVersionConflict)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, st.ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("save %s: %w", s.ID, gameerr.ErrVersionConflict)
	}
	if err != nil {
		return err
	}

	s.CreatedAt, s.UpdatedAt, s.Version = next.CreatedAt, next.UpdatedAt, next.Version
	return nil
}

// storedVersion is 0 for a session that does not exist yet.
func storedVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var head struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return 0, fmt.Errorf("decode stored version: %w", err)
	}
	return head.Version, nil
}
