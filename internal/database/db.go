package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/taboo/internal/config"
	"github.com/sirupsen/logrus"
)

// Connect opens a pool against cfg, pings it and applies the schema.
func Connect(ctx context.Context, cfg config.Postgres, logger logrus.FieldLogger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{"host": cfg.Host, "database": cfg.Database}).Info("connected to database")
	return pool, nil
}

// Migrate creates the tables the game reads and writes. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		return nil
	})
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id       UUID PRIMARY KEY,
		username TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS lobbies (
		id         UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS lobby_team_members (
		lobby_id        UUID NOT NULL REFERENCES lobbies(id) ON DELETE CASCADE,
		team_name       TEXT NOT NULL,
		team_position   INT NOT NULL,
		player_id       UUID NOT NULL,
		member_position INT NOT NULL,
		PRIMARY KEY (lobby_id, player_id)
	)`,
	`CREATE TABLE IF NOT EXISTS game_sessions (
		id         UUID PRIMARY KEY,
		lobby_id   UUID NOT NULL,
		version    BIGINT NOT NULL,
		state      JSONB NOT NULL,
		over       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS session_events (
		id         UUID PRIMARY KEY,
		game_id    UUID NOT NULL,
		version    BIGINT NOT NULL,
		event_idx  INT NOT NULL,
		event_type TEXT NOT NULL,
		payload    JSONB NOT NULL,
		emitted_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS session_events_game_idx ON session_events (game_id, emitted_at, version, event_idx)`,
}
