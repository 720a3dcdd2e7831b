// internal/database/events.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/taboo/internal/models"
)

// EventSink persists broadcast history for the historian.
type EventSink struct {
	pool *pgxpool.Pool
}

func NewEventSink(pool *pgxpool.Pool) *EventSink {
	return &EventSink{pool: pool}
}

// InsertEvents writes a batch in one transaction. Records whose id is already stored are
// skipped, so a batch replayed after a crash is harmless.
func (es *EventSink) InsertEvents(ctx context.Context, recs []models.EventRecord) error {
	if len(recs) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, es.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range recs {
			payload, err := json.Marshal(rec.Payload)
			if err != nil {
				return fmt.Errorf("encode %s payload: %w", rec.EventType, err)
			}
			batch.Queue(`
				INSERT INTO session_events (id, game_id, version, event_idx, event_type, payload, emitted_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (id) DO NOTHING
			`, rec.ID, rec.GameID, rec.Version, rec.Index, rec.EventType, payload, time.UnixMilli(rec.Timestamp).UTC())
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("insert %d events: %w", len(recs), err)
	}
	return nil
}
