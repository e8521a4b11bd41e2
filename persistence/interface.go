// persistence/interface.go
package persistence

import (
	"errors"

	"github.com/duckuru/spellin-bee/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrPlayerNotFound = errors.New("player not found in room")
)

// RoomRepository is the durable side of a match: room membership, status
// and scores, plus the history rows written at finalization. History
// writes are upserts keyed by room (and player) so that retrying a
// finalize never duplicates rows.
type RoomRepository interface {
	CreateRoom(room *models.Room) error
	FetchRoom(roomID string) (*models.Room, error)
	UpdateRoomStatus(roomID string, status models.RoomStatus) error
	SetPlayerActive(roomID, userID string, active bool) (*models.Room, error)
	// UpdatePlayerScore overwrites when absolute, adds otherwise, and
	// returns the members sorted by descending score.
	UpdatePlayerScore(roomID, userID string, score int, absolute bool) ([]models.Player, error)
	// FinalizeRoomIfEmpty flips the room to finished when no member is
	// active anymore, and returns the current room either way.
	FinalizeRoomIfEmpty(roomID string) (*models.Room, error)

	SaveMatchHistory(history *models.MatchHistory) error
	SavePlayerHistory(history *models.PlayerHistory) error

	GetUserData(userID string) (*models.UserData, error)
	UpsertUserRating(user *models.UserData) error

	Close() error
}
