// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// RoomRecord is the rooms table.
type RoomRecord struct {
	gorm.Model
	RoomID     string   `gorm:"uniqueIndex;not null"`
	Status     string   `gorm:"not null"`
	IsPublic   bool     `gorm:"default:true"`
	Rounds     int      `gorm:"not null;default:3"`
	Difficulty string   `gorm:"not null"`
	MaxPlayers int      `gorm:"not null;default:6"`
	TurnTime   int      `gorm:"not null;default:20"`
	RankRange  string   `gorm:""`
	Players    []Player `gorm:"serializer:json;type:jsonb"`
}

// MatchHistoryRecord holds one result row per room.
type MatchHistoryRecord struct {
	gorm.Model
	RoomID  string        `gorm:"uniqueIndex;not null"`
	Players []MatchPlayer `gorm:"serializer:json;type:jsonb;not null"`
}

// PlayerHistoryRecord holds one result row per player per room. The
// composite unique index makes finalization retries upsert instead of
// duplicating rows.
type PlayerHistoryRecord struct {
	gorm.Model
	RoomID    string `gorm:"uniqueIndex:idx_room_player;not null"`
	UserID    string `gorm:"uniqueIndex:idx_room_player;not null"`
	Username  string `gorm:"not null"`
	Points    int    `gorm:"default:0"`
	MMRChange int    `gorm:"default:0"`
	Rank      string `gorm:"not null"`
}

// UserRecord is a player's persistent rating row.
type UserRecord struct {
	gorm.Model
	UserID   string `gorm:"uniqueIndex;not null"`
	Username string `gorm:"not null"`
	MMR      int    `gorm:"default:100"`
	Rank     string `gorm:"default:'Bronze I'"`
}
