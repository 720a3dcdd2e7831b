// internal/handlers/game_server.go
package handlers

import (
	"github.com/jason-s-yu/taboo/internal/game"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// GameServer bundles what the game handlers need: the engine that owns sessions,
// the hub that reaches connected players, and per-connection limits.
type GameServer struct {
	Engine *game.Engine
	Hub    *Hub
	Logger logrus.FieldLogger

	// MessageRate and MessageBurst bound inbound messages on one connection.
	MessageRate  rate.Limit
	MessageBurst int
}

func NewGameServer(engine *game.Engine, hub *Hub, logger logrus.FieldLogger, perSecond float64, burst int) *GameServer {
	return &GameServer{
		Engine:       engine,
		Hub:          hub,
		Logger:       logger,
		MessageRate:  rate.Limit(perSecond),
		MessageBurst: burst,
	}
}
