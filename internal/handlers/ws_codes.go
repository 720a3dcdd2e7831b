// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the game socket.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError  websocket.StatusCode = 3000 // Client connected with an unsupported subprotocol.
	RateLimitedError     websocket.StatusCode = 3001 // Client kept sending after its rate limit.
	InvalidPlayerIDError websocket.StatusCode = 3002 // player_id query parameter missing or malformed.
	InvalidGameIDError   websocket.StatusCode = 3003 // Target game in the WS URL does not exist or is invalid.
)
