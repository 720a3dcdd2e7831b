// internal/handlers/game.go
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/taboo/internal/gameerr"
	"github.com/jason-s-yu/taboo/internal/models"
)

type createGameRequest struct {
	LobbyID     uuid.UUID `json:"lobbyId"`
	Rounds      int       `json:"rounds"`
	TimePerTurn int       `json:"timePerTurn"`
}

// CreateGameHandler builds a session from a lobby's teams: POST /game/create.
func CreateGameHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, gameerr.Validation("invalid request body"))
			return
		}
		if req.LobbyID == uuid.Nil {
			writeError(w, gameerr.Validation("lobbyId is required"))
			return
		}

		s, err := gs.Engine.CreateSession(r.Context(), req.LobbyID, req.Rounds, req.TimePerTurn)
		if err != nil {
			gs.Logger.WithError(err).WithField("lobby", req.LobbyID).Warn("create game failed")
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newSessionView(s, uuid.Nil))
	}
}

// GetGameHandler returns the current state of a game for reconnecting clients: GET /game/{gameID}.
// The word is only included for the describer, identified by ?player_id=.
func GetGameHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, err := uuid.Parse(chi.URLParam(r, "gameID"))
		if err != nil {
			writeError(w, gameerr.Validation("invalid game id"))
			return
		}
		viewer, _ := uuid.Parse(r.URL.Query().Get("player_id"))

		s, err := gs.Engine.Snapshot(r.Context(), gameID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionView(s, viewer))
	}
}

type teamView struct {
	TeamName string      `json:"teamName"`
	Players  []uuid.UUID `json:"players"`
	Score    int         `json:"score"`
}

type turnView struct {
	TeamName    string    `json:"teamName"`
	Describer   string    `json:"describer"`
	Guessers    []string  `json:"guessers"`
	IsActive    bool      `json:"isActive"`
	StartedAt   time.Time `json:"startedAt"`
	WordToGuess string    `json:"wordToGuess,omitempty"`
}

type sessionView struct {
	GameID           uuid.UUID  `json:"gameId"`
	LobbyID          uuid.UUID  `json:"lobbyId"`
	TotalRounds      int        `json:"totalRounds"`
	TimePerTurn      int        `json:"timePerTurn"`
	Teams            []teamView `json:"teams"`
	CurrentRound     int        `json:"currentRound"`
	PlayingTurnIndex int        `json:"playingTurnIndex"`
	Turn             *turnView  `json:"currentTurn,omitempty"`
	Over             bool       `json:"over"`
	Winners          []string   `json:"winners,omitempty"`
}

func newSessionView(s *models.GameSession, viewer uuid.UUID) sessionView {
	v := sessionView{
		GameID:           s.ID,
		LobbyID:          s.LobbyID,
		TotalRounds:      s.TotalRounds,
		TimePerTurn:      s.TimePerTurn,
		CurrentRound:     s.CurrentRound,
		PlayingTurnIndex: s.PlayingTurnIndex,
		Over:             s.Over,
		Winners:          s.Winners,
	}
	for _, t := range s.Teams {
		v.Teams = append(v.Teams, teamView{TeamName: t.TeamName, Players: t.Players, Score: t.Score})
	}
	if t := s.CurrentTurn; t != nil {
		v.Turn = &turnView{
			TeamName:  t.TeamName,
			Describer: t.Describer,
			Guessers:  t.Guessers,
			IsActive:  t.IsActive,
			StartedAt: s.TurnStartTimestamp,
		}
		if viewer != uuid.Nil && viewer == t.DescriberID && t.IsActive {
			v.Turn.WordToGuess = t.WordToGuess
		}
	}
	return v
}
