// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/duckuru/spellin-bee/models"
)

// GormPostgreSQL is the gorm-backed RoomRepository.
type GormPostgreSQL struct {
	db *gorm.DB
}

func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gl := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gl})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&models.RoomRecord{},
		&models.MatchHistoryRecord{},
		&models.PlayerHistoryRecord{},
		&models.UserRecord{},
	); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func roomFromRecord(rec *models.RoomRecord) *models.Room {
	return &models.Room{
		RoomID:     rec.RoomID,
		Status:     models.RoomStatus(rec.Status),
		IsPublic:   rec.IsPublic,
		Rounds:     rec.Rounds,
		Difficulty: rec.Difficulty,
		MaxPlayers: rec.MaxPlayers,
		TurnTime:   rec.TurnTime,
		RankRange:  rec.RankRange,
		Players:    rec.Players,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

func (p *GormPostgreSQL) CreateRoom(room *models.Room) error {
	rec := models.RoomRecord{
		RoomID:     room.RoomID,
		Status:     string(room.Status),
		IsPublic:   room.IsPublic,
		Rounds:     room.Rounds,
		Difficulty: room.Difficulty,
		MaxPlayers: room.MaxPlayers,
		TurnTime:   room.TurnTime,
		RankRange:  room.RankRange,
		Players:    room.Players,
	}
	return p.db.Create(&rec).Error
}

func (p *GormPostgreSQL) fetchRecord(roomID string) (*models.RoomRecord, error) {
	var rec models.RoomRecord
	if err := p.db.Where("room_id = ?", roomID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (p *GormPostgreSQL) FetchRoom(roomID string) (*models.Room, error) {
	rec, err := p.fetchRecord(roomID)
	if err != nil {
		return nil, err
	}
	return roomFromRecord(rec), nil
}

func (p *GormPostgreSQL) UpdateRoomStatus(roomID string, status models.RoomStatus) error {
	result := p.db.Model(&models.RoomRecord{}).
		Where("room_id = ?", roomID).
		Update("status", string(status))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *GormPostgreSQL) SetPlayerActive(roomID, userID string, active bool) (*models.Room, error) {
	rec, err := p.fetchRecord(roomID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range rec.Players {
		if rec.Players[i].UserID == userID {
			rec.Players[i].IsActive = active
			found = true
			break
		}
	}
	if !found {
		return nil, ErrPlayerNotFound
	}

	if err := p.db.Model(rec).Update("players", rec.Players).Error; err != nil {
		return nil, err
	}
	return roomFromRecord(rec), nil
}

func (p *GormPostgreSQL) UpdatePlayerScore(roomID, userID string, score int, absolute bool) ([]models.Player, error) {
	rec, err := p.fetchRecord(roomID)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range rec.Players {
		if rec.Players[i].UserID == userID {
			if absolute {
				rec.Players[i].Score = score
			} else {
				rec.Players[i].Score += score
			}
			found = true
			break
		}
	}
	if !found {
		return nil, ErrPlayerNotFound
	}

	if err := p.db.Model(rec).Update("players", rec.Players).Error; err != nil {
		return nil, err
	}

	players := make([]models.Player, len(rec.Players))
	copy(players, rec.Players)
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})
	return players, nil
}

func (p *GormPostgreSQL) FinalizeRoomIfEmpty(roomID string) (*models.Room, error) {
	rec, err := p.fetchRecord(roomID)
	if err != nil {
		return nil, err
	}

	room := roomFromRecord(rec)
	if !room.AnyActive() && room.Status != models.RoomStatusFinished {
		if err := p.db.Model(rec).Update("status", string(models.RoomStatusFinished)).Error; err != nil {
			return nil, err
		}
		room.Status = models.RoomStatusFinished
	}
	return room, nil
}

func (p *GormPostgreSQL) SaveMatchHistory(history *models.MatchHistory) error {
	rec := models.MatchHistoryRecord{
		RoomID:  history.RoomID,
		Players: history.Players,
	}
	return p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"players", "updated_at"}),
	}).Create(&rec).Error
}

func (p *GormPostgreSQL) SavePlayerHistory(history *models.PlayerHistory) error {
	rec := models.PlayerHistoryRecord{
		RoomID:    history.RoomID,
		UserID:    history.UserID,
		Username:  history.Username,
		Points:    history.Points,
		MMRChange: history.MMRChange,
		Rank:      history.Rank,
	}
	return p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"points", "mmr_change", "rank", "updated_at"}),
	}).Create(&rec).Error
}

func (p *GormPostgreSQL) GetUserData(userID string) (*models.UserData, error) {
	var rec models.UserRecord
	if err := p.db.Where("user_id = ?", userID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &models.UserData{
		UserID:   rec.UserID,
		Username: rec.Username,
		MMR:      rec.MMR,
		Rank:     rec.Rank,
	}, nil
}

func (p *GormPostgreSQL) UpsertUserRating(user *models.UserData) error {
	rec := models.UserRecord{
		UserID:   user.UserID,
		Username: user.Username,
		MMR:      user.MMR,
		Rank:     user.Rank,
	}
	return p.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "mmr", "rank", "updated_at"}),
	}).Create(&rec).Error
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
