package models

import "github.com/google/uuid"

// EventRecord is one broadcast event as kept by the historian. ID is unique per record;
// Version and Index only order events within a saved state, and handlings that save
// nothing repeat them.
type EventRecord struct {
	ID        uuid.UUID              `json:"id"`
	GameID    uuid.UUID              `json:"game_id"`
	Version   int64                  `json:"version"`
	Index     int                    `json:"index"`
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp int64                  `json:"timestamp"`
}
