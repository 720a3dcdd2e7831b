// internal/handlers/api_server.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/taboo/internal/middleware"
)

// NewRouter wires the game routes. allowedOrigins feeds CORS; empty allows any http(s) origin.
func NewRouter(gs *GameServer, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"https://*", "http://*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(middleware.RequestID)
	r.Use(middleware.LogMiddleware(gs.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/game", func(r chi.Router) {
		r.Post("/create", CreateGameHandler(gs))
		r.Get("/ws/{gameID}", GameWSHandler(gs))
		r.Get("/{gameID}", GetGameHandler(gs))
	})
	return r
}
