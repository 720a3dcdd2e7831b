// internal/handlers/hub.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Envelope is the wire shape of every outbound websocket message.
type Envelope struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// sendBuffer is the number of messages queued per connection before it counts as slow.
const sendBuffer = 32

// client is one websocket connection in a room. Only its write pump touches the socket.
type client struct {
	playerID uuid.UUID
	send     chan []byte
}

func newClient(playerID uuid.UUID) *client {
	return &client{playerID: playerID, send: make(chan []byte, sendBuffer)}
}

// enqueue never blocks; a full buffer drops the message.
func (c *client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) sendEnvelope(env Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		return false
	}
	return c.enqueue(data)
}

func (c *client) sendError(message, code string) bool {
	return c.sendEnvelope(Envelope{Type: "error", Payload: map[string]interface{}{"message": message, "code": code}})
}

// Hub tracks the connections of every room and fans events out to them.
// It is the game engine's Broadcaster.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
	log   logrus.FieldLogger
}

func NewHub(logger logrus.FieldLogger) *Hub {
	return &Hub{rooms: make(map[string]map[*client]struct{}), log: logger}
}

func (h *Hub) join(room string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) leave(room string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[room]
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Count is the number of connections in room.
func (h *Hub) Count(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Emit queues an event for every connection in the room.
func (h *Hub) Emit(ctx context.Context, roomKey, event string, payload map[string]interface{}) error {
	data, err := json.Marshal(Envelope{Type: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	var dropped int
	for c := range h.rooms[roomKey] {
		if !c.enqueue(data) {
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%s dropped for %d slow connection(s) in room %s", event, dropped, roomKey)
	}
	return nil
}

// EmitTo queues an event for every connection the recipient has open in the room.
func (h *Hub) EmitTo(ctx context.Context, roomKey string, recipient uuid.UUID, event string, payload map[string]interface{}) error {
	data, err := json.Marshal(Envelope{Type: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	var delivered bool
	for c := range h.rooms[roomKey] {
		if c.playerID == recipient && c.enqueue(data) {
			delivered = true
		}
	}
	if !delivered {
		return fmt.Errorf("player %s not reachable in room %s", recipient, roomKey)
	}
	return nil
}
