// room/events.go
package room

import (
	"encoding/json"

	"github.com/duckuru/spellin-bee/models"
	"github.com/duckuru/spellin-bee/words"
)

// Broadcast payloads. Field names follow the wire contract the clients
// already speak.

type StatePayload struct {
	CurrentTurnPlayerID string         `json:"currentTurnPlayerId"`
	TurnTimeLeft        int            `json:"turnTimeLeft"`
	CurrentRound        int            `json:"currentRound"`
	Scores              map[string]int `json:"scores"`
	CurrentTurnWord     *words.Word    `json:"currentTurnWord"`
}

type TurnStartPayload struct {
	PlayerID     string     `json:"playerId"`
	Word         words.Word `json:"word"`
	CurrentRound int        `json:"currentRound"`
	TurnTimeLeft int        `json:"turnTimeLeft"`
}

type TurnTimePayload struct {
	PlayerID string `json:"playerId"`
	TimeLeft int    `json:"timeLeft"`
}

type TurnEndedPayload struct {
	PlayerID string `json:"playerId"`
}

type AnswerResultPayload struct {
	UserID    string `json:"userId"`
	IsCorrect bool   `json:"isCorrect"`
}

type PreTurnPayload struct {
	Countdown int `json:"countdown"`
}

type MessagePayload struct {
	Message string `json:"message"`
}

type PlayerLeftPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

type YouLeftPayload struct {
	RoomID  string `json:"room_id"`
	Message string `json:"message"`
}

type RoomUpdatePayload []models.Player

type TypingPayload struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

func marshal(v interface{}) []byte {
	data, _ := json.Marshal(v)
	return data
}
