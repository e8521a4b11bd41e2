// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/duckuru/spellin-bee/models"
)

// PostgreSQL is the raw database/sql RoomRepository, for deployments
// that prefer plain SQL over the ORM. Selected with database.driver=pq.
type PostgreSQL struct {
	db *sql.DB
}

func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func initTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(64) UNIQUE NOT NULL,
            status VARCHAR(16) NOT NULL,
            is_public BOOLEAN DEFAULT TRUE,
            rounds INT NOT NULL DEFAULT 3,
            difficulty VARCHAR(16) NOT NULL,
            max_players INT NOT NULL DEFAULT 6,
            turn_time INT NOT NULL DEFAULT 20,
            rank_range VARCHAR(16),
            players JSONB NOT NULL DEFAULT '[]',
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS match_histories (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(64) UNIQUE NOT NULL,
            players JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS player_histories (
            id SERIAL PRIMARY KEY,
            room_id VARCHAR(64) NOT NULL,
            user_id VARCHAR(64) NOT NULL,
            username VARCHAR(255) NOT NULL,
            points INT DEFAULT 0,
            mmr_change INT DEFAULT 0,
            rank VARCHAR(32) NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (room_id, user_id)
        )`,
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            user_id VARCHAR(64) UNIQUE NOT NULL,
            username VARCHAR(255) NOT NULL,
            mmr INT DEFAULT 100,
            rank VARCHAR(32) DEFAULT 'Bronze I',
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgreSQL) CreateRoom(room *models.Room) error {
	players, err := json.Marshal(room.Players)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(`
        INSERT INTO rooms (room_id, status, is_public, rounds, difficulty, max_players, turn_time, rank_range, players)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		room.RoomID, string(room.Status), room.IsPublic, room.Rounds,
		room.Difficulty, room.MaxPlayers, room.TurnTime, room.RankRange, players)
	return err
}

func (p *PostgreSQL) FetchRoom(roomID string) (*models.Room, error) {
	row := p.db.QueryRow(`
        SELECT room_id, status, is_public, rounds, difficulty, max_players, turn_time,
               COALESCE(rank_range, ''), players, created_at, updated_at
        FROM rooms WHERE room_id = $1`, roomID)

	var (
		room    models.Room
		status  string
		players []byte
	)
	err := row.Scan(&room.RoomID, &status, &room.IsPublic, &room.Rounds,
		&room.Difficulty, &room.MaxPlayers, &room.TurnTime, &room.RankRange,
		&players, &room.CreatedAt, &room.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	room.Status = models.RoomStatus(status)
	if err := json.Unmarshal(players, &room.Players); err != nil {
		return nil, fmt.Errorf("decode room players: %w", err)
	}
	return &room, nil
}

func (p *PostgreSQL) UpdateRoomStatus(roomID string, status models.RoomStatus) error {
	result, err := p.db.Exec(`
        UPDATE rooms SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE room_id = $2`,
		string(status), roomID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgreSQL) savePlayers(roomID string, players []models.Player) error {
	raw, err := json.Marshal(players)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(`
        UPDATE rooms SET players = $1, updated_at = CURRENT_TIMESTAMP WHERE room_id = $2`,
		raw, roomID)
	return err
}

func (p *PostgreSQL) SetPlayerActive(roomID, userID string, active bool) (*models.Room, error) {
	room, err := p.FetchRoom(roomID)
	if err != nil {
		return nil, err
	}

	player, ok := room.FindPlayer(userID)
	if !ok {
		return nil, ErrPlayerNotFound
	}
	player.IsActive = active

	if err := p.savePlayers(roomID, room.Players); err != nil {
		return nil, err
	}
	return room, nil
}

func (p *PostgreSQL) UpdatePlayerScore(roomID, userID string, score int, absolute bool) ([]models.Player, error) {
	room, err := p.FetchRoom(roomID)
	if err != nil {
		return nil, err
	}

	player, ok := room.FindPlayer(userID)
	if !ok {
		return nil, ErrPlayerNotFound
	}
	if absolute {
		player.Score = score
	} else {
		player.Score += score
	}

	if err := p.savePlayers(roomID, room.Players); err != nil {
		return nil, err
	}

	players := make([]models.Player, len(room.Players))
	copy(players, room.Players)
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})
	return players, nil
}

func (p *PostgreSQL) FinalizeRoomIfEmpty(roomID string) (*models.Room, error) {
	room, err := p.FetchRoom(roomID)
	if err != nil {
		return nil, err
	}

	if !room.AnyActive() && room.Status != models.RoomStatusFinished {
		if err := p.UpdateRoomStatus(roomID, models.RoomStatusFinished); err != nil {
			return nil, err
		}
		room.Status = models.RoomStatusFinished
	}
	return room, nil
}

func (p *PostgreSQL) SaveMatchHistory(history *models.MatchHistory) error {
	players, err := json.Marshal(history.Players)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(`
        INSERT INTO match_histories (room_id, players)
        VALUES ($1, $2)
        ON CONFLICT (room_id)
        DO UPDATE SET players = EXCLUDED.players, updated_at = CURRENT_TIMESTAMP`,
		history.RoomID, players)
	return err
}

func (p *PostgreSQL) SavePlayerHistory(history *models.PlayerHistory) error {
	_, err := p.db.Exec(`
        INSERT INTO player_histories (room_id, user_id, username, points, mmr_change, rank)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (room_id, user_id)
        DO UPDATE SET points = EXCLUDED.points, mmr_change = EXCLUDED.mmr_change,
                      rank = EXCLUDED.rank, updated_at = CURRENT_TIMESTAMP`,
		history.RoomID, history.UserID, history.Username,
		history.Points, history.MMRChange, history.Rank)
	return err
}

func (p *PostgreSQL) GetUserData(userID string) (*models.UserData, error) {
	row := p.db.QueryRow(`
        SELECT user_id, username, mmr, rank FROM users WHERE user_id = $1`, userID)

	var user models.UserData
	err := row.Scan(&user.UserID, &user.Username, &user.MMR, &user.Rank)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (p *PostgreSQL) UpsertUserRating(user *models.UserData) error {
	_, err := p.db.Exec(`
        INSERT INTO users (user_id, username, mmr, rank)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id)
        DO UPDATE SET username = EXCLUDED.username, mmr = EXCLUDED.mmr,
                      rank = EXCLUDED.rank, updated_at = CURRENT_TIMESTAMP`,
		user.UserID, user.Username, user.MMR, user.Rank)
	return err
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
