package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/taboo/internal/models"
)

// UserDirectory resolves display names from the users table.
type UserDirectory struct {
	pool *pgxpool.Pool
}

func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

// ResolveDisplayNames returns one name per id, in order. Unknown users get a fallback name.
func (d *UserDirectory) ResolveDisplayNames(ctx context.Context, ids []uuid.UUID) ([]string, error) {
	rows, err := d.pool.Query(ctx, `SELECT id, username FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	users, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.User])
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return orderNames(ids, users), nil
}

// UpsertUser creates or renames a user.
func (d *UserDirectory) UpsertUser(ctx context.Context, u models.User) error {
	q := `
		INSERT INTO users (id, username) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username
	`
	return pgx.BeginTxFunc(ctx, d.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, u.ID, u.Username)
		return err
	})
}

func orderNames(ids []uuid.UUID, users []models.User) []string {
	byID := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		byID[u.ID] = u.Username
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		if name := byID[id]; name != "" {
			names[i] = name
		} else {
			names[i] = models.FallbackName(id)
		}
	}
	return names
}
