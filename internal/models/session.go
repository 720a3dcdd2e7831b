// internal/models/session.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// TeamInfo is one team within a session. Score may go negative.
type TeamInfo struct {
	TeamName string      `json:"teamName"`
	Players  []uuid.UUID `json:"players"`
	Score    int         `json:"score"`
}

// Turn is the ephemeral record of one team's timed turn. It is replaced, never reused, when the next turn begins.
type Turn struct {
	TeamName    string      `json:"teamName"`
	WordToGuess string      `json:"wordToGuess"`
	DescriberID uuid.UUID   `json:"describerId"`
	Describer   string      `json:"describer"`
	GuesserIDs  []uuid.UUID `json:"guesserIds"`
	Guessers    []string    `json:"guessers"`
	IsActive    bool        `json:"isActive"`
}

// TurnOutcome is the transient result of evaluating a guess.
type TurnOutcome struct {
	Correct    bool `json:"correct"`
	ScoreDelta *int `json:"scoreDelta,omitempty"`
}

// GameSession holds the durable state of one game.
type GameSession struct {
	ID      uuid.UUID `json:"id"`
	LobbyID uuid.UUID `json:"lobbyId"`

	TotalRounds int `json:"totalRounds"`
	TimePerTurn int `json:"timePerTurn"` // seconds

	Teams []TeamInfo `json:"teams"`

	CurrentTurn        *Turn     `json:"currentTurn,omitempty"`
	CurrentRound       int       `json:"currentRound"`
	PlayingTurnIndex   int       `json:"playingTurnIndex"` // 1-based position within the round
	FirstTeamIndex     int       `json:"firstTeamIndex"`   // team that opened round 1; every round starts with it
	TurnStartTimestamp time.Time `json:"turnStartTimestamp"`
	TurnSeq            int       `json:"turnSeq"`

	Over    bool     `json:"over"`
	Winners []string `json:"winners,omitempty"`

	// Version is bumped by the store on every successful save.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Team returns the named team, or nil.
func (s *GameSession) Team(name string) *TeamInfo {
	if i := s.TeamIndex(name); i >= 0 {
		return &s.Teams[i]
	}
	return nil
}

// TeamIndex returns the 0-based position of the named team, or -1.
func (s *GameSession) TeamIndex(name string) int {
	for i := range s.Teams {
		if s.Teams[i].TeamName == name {
			return i
		}
	}
	return -1
}

// TeamAt returns the index in Teams of the team playing the given 1-based position of a round.
// Rounds rotate from FirstTeamIndex in lobby order.
func (s *GameSession) TeamAt(position int) int {
	n := len(s.Teams)
	if n == 0 {
		return -1
	}
	return (s.FirstTeamIndex + position - 1) % n
}

// ActiveTurn returns the current turn if one is in progress.
func (s *GameSession) ActiveTurn() (*Turn, bool) {
	if s.Over || s.CurrentTurn == nil || !s.CurrentTurn.IsActive {
		return nil, false
	}
	return s.CurrentTurn, true
}

// Started reports whether the first turn has been started.
func (s *GameSession) Started() bool {
	return s.CurrentRound > 0
}

// Scores maps team name to score.
func (s *GameSession) Scores() map[string]int {
	out := make(map[string]int, len(s.Teams))
	for _, t := range s.Teams {
		out[t.TeamName] = t.Score
	}
	return out
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (s *GameSession) Clone() *GameSession {
	if s == nil {
		return nil
	}
	c := *s
	c.Teams = make([]TeamInfo, len(s.Teams))
	for i, t := range s.Teams {
		t.Players = append([]uuid.UUID(nil), t.Players...)
		c.Teams[i] = t
	}
	if s.CurrentTurn != nil {
		turn := *s.CurrentTurn
		turn.GuesserIDs = append([]uuid.UUID(nil), s.CurrentTurn.GuesserIDs...)
		turn.Guessers = append([]string(nil), s.CurrentTurn.Guessers...)
		c.CurrentTurn = &turn
	}
	c.Winners = append([]string(nil), s.Winners...)
	return &c
}
