// models/models.go
package models

import (
	"time"
)

type RoomStatus string

const (
	RoomStatusWaiting  RoomStatus = "waiting"
	RoomStatusPlaying  RoomStatus = "playing"
	RoomStatusFinished RoomStatus = "finished"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Player is one member of a room. IsActive=false means the player left or
// dropped; the record is kept for final scoring.
type Player struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Rank     string `json:"rank"`
	Score    int    `json:"score"`
	IsActive bool   `json:"isActive"`
}

// Room is the durable record of one match.
type Room struct {
	RoomID     string     `json:"room_id"`
	Status     RoomStatus `json:"status"`
	IsPublic   bool       `json:"isPublic"`
	Rounds     int        `json:"rounds"`
	Difficulty string     `json:"difficulty"`
	MaxPlayers int        `json:"maxPlayers"`
	TurnTime   int        `json:"turnTime"` // seconds
	RankRange  string     `json:"rank_range"`
	Players    []Player   `json:"players"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// FindPlayer returns the room member with the given user ID.
func (r *Room) FindPlayer(userID string) (*Player, bool) {
	for i := range r.Players {
		if r.Players[i].UserID == userID {
			return &r.Players[i], true
		}
	}
	return nil, false
}

// AnyActive reports whether at least one member is still active.
func (r *Room) AnyActive() bool {
	for i := range r.Players {
		if r.Players[i].IsActive {
			return true
		}
	}
	return false
}

// MatchPlayer is a player's final snapshot inside a match history record.
type MatchPlayer struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Rank      string `json:"rank"`
	Score     int    `json:"score"`
	MMRChange int    `json:"mmrChange"`
	IsActive  bool   `json:"isActive"`
}

// MatchHistory is the one-per-room result record.
type MatchHistory struct {
	RoomID    string        `json:"roomId"`
	Players   []MatchPlayer `json:"players"`
	CreatedAt time.Time     `json:"created_at"`
}

// PlayerHistory is the one-per-player-per-room result record.
type PlayerHistory struct {
	UserID    string    `json:"userId"`
	RoomID    string    `json:"roomId"`
	Username  string    `json:"username"`
	Points    int       `json:"points"`
	MMRChange int       `json:"mmrChange"`
	Rank      string    `json:"rank"`
	CreatedAt time.Time `json:"created_at"`
}

// UserData is a player's persistent rating.
type UserData struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	MMR      int    `json:"mmr"`
	Rank     string `json:"rank"`
}
