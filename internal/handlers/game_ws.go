// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/taboo/internal/game"
	"github.com/jason-s-yu/taboo/internal/gameerr"
	"github.com/jason-s-yu/taboo/internal/middleware"
	"github.com/jason-s-yu/taboo/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// GameMessage is an inbound websocket message. Payload is decoded according to Type.
type GameMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const writeTimeout = 5 * time.Second

// GameWSHandler upgrades the HTTP connection to WebSocket for a specific game: /game/ws/{gameID}?player_id=...
// It verifies the player belongs to the game, joins the game's room and runs the read loop.
func GameWSHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, err := uuid.Parse(chi.URLParam(r, "gameID"))
		if err != nil {
			http.Error(w, "Invalid game_id format", http.StatusBadRequest)
			return
		}
		s, err := gs.Engine.Snapshot(r.Context(), gameID)
		if err != nil {
			writeError(w, err)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			gs.Logger.WithError(err).WithField("game", gameID).Warn("WebSocket accept error")
			return
		}
		defer c.CloseNow()

		if c.Subprotocol() != "game" {
			c.Close(BadSubprotocolError, "client must speak the game subprotocol")
			return
		}
		playerID, err := uuid.Parse(r.URL.Query().Get("player_id"))
		if err != nil {
			c.Close(InvalidPlayerIDError, "missing or invalid player_id")
			return
		}
		if !isMember(s, playerID) {
			c.Close(InvalidPlayerIDError, "you are not a player in this game")
			return
		}
		if s.Over {
			c.Close(InvalidGameIDError, "game has already ended")
			return
		}

		cl := newClient(playerID)
		room := game.RoomKey(gameID)
		gs.Hub.join(room, cl)
		defer gs.Hub.leave(room, cl)
		middleware.LogWebSocketConnect(gs.Logger, r, gameID, playerID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go writePump(ctx, cancel, c, cl, gs.Logger)

		log := gs.Logger.WithFields(logrus.Fields{"game": gameID, "player": playerID})
		err = gs.readGameMessages(ctx, c, cl, gameID, playerID, log)
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			err = nil
		}
		middleware.LogWebSocketDisconnect(gs.Logger, r, gameID, playerID, err)
	}
}

// writePump is the only writer on the socket. A failed write cancels the connection.
func writePump(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, cl *client, log logrus.FieldLogger) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-cl.send:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(wctx, websocket.MessageText, data)
			wcancel()
			if err != nil {
				log.WithError(err).WithField("player", cl.playerID).Debug("websocket write failed")
				return
			}
		}
	}
}

// readGameMessages reads until the connection closes. Messages over the rate limit are refused;
// a connection that keeps pushing is closed.
func (gs *GameServer) readGameMessages(ctx context.Context, c *websocket.Conn, cl *client, gameID, playerID uuid.UUID, log logrus.FieldLogger) error {
	limiter := rate.NewLimiter(gs.MessageRate, gs.MessageBurst)
	strikes := 0
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if !limiter.Allow() {
			strikes++
			if strikes > gs.MessageBurst {
				c.Close(RateLimitedError, "too many messages")
				return nil
			}
			cl.sendError("Too many messages, slow down.", "rate_limited")
			continue
		}
		strikes = 0

		if typ != websocket.MessageText {
			log.Warnf("Received non-text message type %d. Ignoring.", typ)
			continue
		}

		var msg GameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			cl.sendError("Invalid JSON format.", string(gameerr.KindValidation))
			continue
		}
		log.Debugf("Received %s", msg.Type)

		switch msg.Type {
		case "send_message":
			gs.handleSendMessage(ctx, cl, gameID, playerID, msg.Payload, log)
		case "start_turn":
			gs.handleStartTurn(ctx, cl, gameID, playerID, msg.Payload, log)
		case "ping":
			cl.sendEnvelope(Envelope{Type: "pong"})
		default:
			cl.sendError("Unknown message type: "+msg.Type, string(gameerr.KindValidation))
		}
	}
}

// handleSendMessage binds the line to this connection's game and player before handing it to the engine.
// Engine failures have already been reported to the player.
func (gs *GameServer) handleSendMessage(ctx context.Context, cl *client, gameID, playerID uuid.UUID, raw json.RawMessage, log logrus.FieldLogger) {
	var msg models.SendMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		cl.sendError("Invalid send_message payload.", string(gameerr.KindValidation))
		return
	}
	if !bindIdentity(&msg.GameID, gameID) || !bindIdentity(&msg.Sender, playerID) {
		cl.sendError("Message does not belong to this connection.", string(gameerr.KindForbidden))
		return
	}
	if err := gs.Engine.HandleMessage(ctx, msg); err != nil {
		log.WithError(err).Debug("send_message rejected")
	}
}

func (gs *GameServer) handleStartTurn(ctx context.Context, cl *client, gameID, playerID uuid.UUID, raw json.RawMessage, log logrus.FieldLogger) {
	var req models.StartTurnRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		cl.sendError("Invalid start_turn payload.", string(gameerr.KindValidation))
		return
	}
	if !bindIdentity(&req.GameID, gameID) {
		cl.sendError("Message does not belong to this connection.", string(gameerr.KindForbidden))
		return
	}
	if err := gs.Engine.StartTurn(ctx, playerID, req); err != nil {
		log.WithError(err).Debug("start_turn rejected")
	}
}

// bindIdentity fills an empty id field with want and reports whether a supplied one matches it.
func bindIdentity(field *string, want uuid.UUID) bool {
	if *field == "" {
		*field = want.String()
		return true
	}
	got, err := uuid.Parse(*field)
	if err != nil || got != want {
		return false
	}
	*field = want.String()
	return true
}

func isMember(s *models.GameSession, playerID uuid.UUID) bool {
	for _, t := range s.Teams {
		for _, p := range t.Players {
			if p == playerID {
				return true
			}
		}
	}
	return false
}
