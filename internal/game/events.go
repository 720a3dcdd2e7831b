// internal/game/events.go
package game

import (
	"fmt"
	"time"

	"github.com/jason-s-yu/taboo/internal/models"
	"github.com/jason-s-yu/taboo/internal/scoring"
)

// Outbound event names. Field names in the payloads are part of the client contract.
const (
	EventTurnStarted    = "turn_started"
	EventCorrectGuess   = "correct_guess"
	EventIncorrectGuess = "incorrect_guess"
	EventPointsDeducted = "points_deducted"
	EventWarning        = "warning"
	EventTurnEnded      = "turn_ended"
	EventGameEnded      = "game_ended"
	EventNewMessage     = "new_message"
	EventError          = "error"
)

// Event is one outbound broadcast. Private events go only to Recipient.
type Event struct {
	Name    string
	Payload map[string]interface{}
}

func turnStarted(s *models.GameSession) Event {
	turn := s.CurrentTurn
	return Event{Name: EventTurnStarted, Payload: map[string]interface{}{
		"message":     fmt.Sprintf("Round %d: team %s is up, %s is describing.", s.CurrentRound, turn.TeamName, turn.Describer),
		"round":       s.CurrentRound,
		"turn":        s.PlayingTurnIndex,
		"time":        s.TimePerTurn,
		"wordToGuess": turn.WordToGuess,
		"teamName":    turn.TeamName,
		"describer":   turn.Describer,
		"guessers":    turn.Guessers,
		"startedAt":   s.TurnStartTimestamp.UTC().Format(time.RFC3339Nano),
	}}
}

func correctGuess(team, guesser string, reward int) Event {
	return Event{Name: EventCorrectGuess, Payload: map[string]interface{}{
		"message": fmt.Sprintf("%s guessed the word! Team %s earns %d points.", guesser, team, reward),
		"team":    team,
		"score":   reward,
	}}
}

func incorrectGuess(team, guesser string) Event {
	return Event{Name: EventIncorrectGuess, Payload: map[string]interface{}{
		"message": fmt.Sprintf("%s guessed wrong. Team %s loses %d points.", guesser, team, -scoring.IncorrectGuessPenalty),
		"team":    team,
	}}
}

func pointsDeducted(team, reason string, delta int) Event {
	return Event{Name: EventPointsDeducted, Payload: map[string]interface{}{
		"message": fmt.Sprintf("Team %s loses %d points: %s.", team, -delta, reason),
		"team":    team,
		"score":   delta,
	}}
}

func warning(team string) Event {
	return Event{Name: EventWarning, Payload: map[string]interface{}{
		"message": fmt.Sprintf("Careful, team %s: that description is close to the word.", team),
		"team":    team,
	}}
}

func turnEnded(team string) Event {
	return Event{Name: EventTurnEnded, Payload: map[string]interface{}{
		"message": fmt.Sprintf("Time is up for team %s.", team),
	}}
}

func gameEnded(s *models.GameSession) Event {
	return Event{Name: EventGameEnded, Payload: map[string]interface{}{
		"message": describeWinners(s.Winners),
		"winners": s.Winners,
		"scores":  s.Scores(),
	}}
}

func newMessage(msg models.SendMessage) Event {
	return Event{Name: EventNewMessage, Payload: map[string]interface{}{
		"sender":         msg.Sender,
		"content":        msg.Content,
		"messageType":    msg.MessageType,
		"senderTeamName": msg.SenderTeamName,
	}}
}

func errorPayload(message, code string) map[string]interface{} {
	return map[string]interface{}{"message": message, "code": code}
}
