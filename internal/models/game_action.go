// internal/models/game_action.go
package models

// MessageType is the kind of a send_message line.
type MessageType string

const (
	MessageChat     MessageType = "chat"
	MessageDescribe MessageType = "describe"
	MessageGuess    MessageType = "guess"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageChat, MessageDescribe, MessageGuess:
		return true
	}
	return false
}

// SendMessage is the inbound send_message payload.
type SendMessage struct {
	GameID         string      `json:"gameId"`
	Sender         string      `json:"sender"`
	Content        string      `json:"content"`
	MessageType    MessageType `json:"messageType"`
	SenderTeamName string      `json:"senderTeamName,omitempty"`
	Role           Role        `json:"role,omitempty"`
}

// StartTurnRequest is the inbound start_turn payload used to bootstrap a game.
type StartTurnRequest struct {
	GameID   string `json:"gameId"`
	TeamName string `json:"teamName"`
}
