// internal/cache/queue.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/taboo/internal/models"
	"github.com/redis/go-redis/v9"
)

// EventQueue is the redis list between the game server and the historian.
type EventQueue struct {
	rdb  *redis.Client
	name string
}

func NewEventQueue(rdb *redis.Client, name string) *EventQueue {
	return &EventQueue{rdb: rdb, name: name}
}

// Record serializes rec and pushes it onto the queue.
func (q *EventQueue) Record(ctx context.Context, rec models.EventRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal EventRecord: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop waits up to timeout for the next record. It returns (nil, nil) on timeout.
// Entries that do not decode are returned as an error and dropped from the queue.
func (q *EventQueue) Pop(ctx context.Context, timeout time.Duration) (*models.EventRecord, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop %s: %w", q.name, err)
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return nil, nil
	}
	var rec models.EventRecord
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return nil, fmt.Errorf("invalid event record: %w", err)
	}
	return &rec, nil
}

// Len is the number of queued records.
func (q *EventQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.name).Result()
}
