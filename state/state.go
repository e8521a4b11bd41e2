// state/state.go
package state

import (
	"github.com/duckuru/spellin-bee/models"
	"github.com/duckuru/spellin-bee/words"
)

const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

// RoomState is the authoritative transient state of one in-progress
// match, stored as a JSON blob under RoomKey(roomID).
type RoomState struct {
	CurrentRound int   `json:"currentRound"`
	MaxRounds    int   `json:"maxRounds"`
	// TurnQueue holds the players who have not taken a turn this round.
	// Selection is randomized, so order carries no meaning.
	TurnQueue []string `json:"turnQueue"`
	// CurrentTurnPlayerID is empty when no turn is active.
	CurrentTurnPlayerID string         `json:"currentTurnPlayerId"`
	CurrentTurnWord     *words.Word    `json:"currentTurnWord"`
	TurnTimeLeft        int            `json:"turnTimeLeft"`
	Scores              map[string]int `json:"scores"`
	// WordsUsed is append-only bookkeeping; repeats are tracked but not
	// prevented.
	WordsUsed  []string `json:"wordsUsed"`
	Status     string   `json:"status"`
	Difficulty string   `json:"difficulty"`
	MaxPlayers int      `json:"maxPlayers"`
	TurnTime   int      `json:"turnTime"`
}

// NewRoomState seeds transient state from the durable room record:
// round one, every active player queued, scores carried over.
func NewRoomState(room *models.Room) *RoomState {
	queue := make([]string, 0, len(room.Players))
	scores := make(map[string]int, len(room.Players))
	for _, p := range room.Players {
		if p.IsActive {
			queue = append(queue, p.UserID)
		}
		scores[p.UserID] = p.Score
	}

	return &RoomState{
		CurrentRound: 1,
		MaxRounds:    room.Rounds,
		TurnQueue:    queue,
		TurnTimeLeft: room.TurnTime,
		Scores:       scores,
		WordsUsed:    []string{},
		Status:       StatusPlaying,
		Difficulty:   room.Difficulty,
		MaxPlayers:   room.MaxPlayers,
		TurnTime:     room.TurnTime,
	}
}

// TurnActive reports whether a turn is currently running.
func (s *RoomState) TurnActive() bool {
	return s.CurrentTurnPlayerID != ""
}

// FilterQueue drops every queued player not present in keep.
func (s *RoomState) FilterQueue(keep []string) {
	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}

	filtered := s.TurnQueue[:0]
	for _, id := range s.TurnQueue {
		if _, ok := keepSet[id]; ok {
			filtered = append(filtered, id)
		}
	}
	s.TurnQueue = filtered
}

// RemoveFromQueue drops one player wherever they sit in the queue.
func (s *RoomState) RemoveFromQueue(userID string) {
	filtered := s.TurnQueue[:0]
	for _, id := range s.TurnQueue {
		if id != userID {
			filtered = append(filtered, id)
		}
	}
	s.TurnQueue = filtered
}

// LobbySettings are negotiated before a match starts.
type LobbySettings struct {
	Rounds     int    `json:"rounds"`
	Difficulty string `json:"difficulty"`
	TurnTime   int    `json:"turnTime"`
}

// Merge applies the non-zero fields of other on top of s.
func (s *LobbySettings) Merge(other LobbySettings) {
	if other.Rounds > 0 {
		s.Rounds = other.Rounds
	}
	if other.Difficulty != "" {
		s.Difficulty = other.Difficulty
	}
	if other.TurnTime > 0 {
		s.TurnTime = other.TurnTime
	}
}

// LobbyPlayer is one member of a pre-match lobby, in join order.
type LobbyPlayer struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Score    int    `json:"score"`
	IsActive bool   `json:"isActive"`
	IsHost   bool   `json:"isHost"`
}

// LobbyState is the transient pre-match staging record.
type LobbyState struct {
	RoomID   string        `json:"room_id"`
	HostID   string        `json:"hostId"`
	Settings LobbySettings `json:"settings"`
	Players  []LobbyPlayer `json:"players"`
	Status   string        `json:"status"`
	IsPublic bool          `json:"isPublic"`
}

// HasPlayer reports whether the user already sits in the lobby.
func (s *LobbyState) HasPlayer(userID string) bool {
	for _, p := range s.Players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// RemovePlayer drops the user, reassigning host to the earliest remaining
// joiner when the host left.
func (s *LobbyState) RemovePlayer(userID string) {
	filtered := s.Players[:0]
	for _, p := range s.Players {
		if p.UserID != userID {
			filtered = append(filtered, p)
		}
	}
	s.Players = filtered

	if s.HostID == userID && len(s.Players) > 0 {
		s.HostID = s.Players[0].UserID
		s.Players[0].IsHost = true
	}
}
