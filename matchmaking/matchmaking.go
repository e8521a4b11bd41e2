// matchmaking/matchmaking.go
package matchmaking

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"sync"

	"github.com/duckuru/spellin-bee/logger"
	"github.com/duckuru/spellin-bee/models"
	"github.com/duckuru/spellin-bee/network"
	"github.com/duckuru/spellin-bee/rank"
)

var ErrAlreadyQueued = errors.New("already in queue")

// matchSize is how many players form a matchmade game.
const matchSize = 2

// Broadcaster pushes queue progress to players who are not in any room
// group yet, so everything here is addressed by user id.
type Broadcaster interface {
	BroadcastToUsers(userIDs []string, msgID uint16, data []byte) error
}

// Repository is the slice of persistence matchmaking needs.
type Repository interface {
	CreateRoom(room *models.Room) error
	GetUserData(userID string) (*models.UserData, error)
}

type entry struct {
	UserID   string
	Username string
	Rank     string
}

// Matchmaker pools players into rank-range buckets and cuts a public
// room as soon as a bucket fills. Buckets are independent: a Bronze
// never waits behind a Diamond.
type Matchmaker struct {
	repo     Repository
	bc       Broadcaster
	rounds   int
	turnTime int
	metrics  Metrics

	mu     sync.Mutex
	queues map[int][]entry
}

// Metrics is the optional sink for queue depth.
type Metrics interface {
	SetQueuedPlayers(count int)
}

// NewMatchmaker builds the matchmaker. rounds and turnTime shape the
// rooms it cuts; zero values fall back to 3 rounds at 20 seconds.
func NewMatchmaker(repo Repository, bc Broadcaster, rounds, turnTime int) *Matchmaker {
	if rounds <= 0 {
		rounds = 3
	}
	if turnTime <= 0 {
		turnTime = 20
	}
	return &Matchmaker{
		repo:     repo,
		bc:       bc,
		rounds:   rounds,
		turnTime: turnTime,
		queues:   make(map[int][]entry),
	}
}

// SetMetrics attaches the metrics sink. Nil is fine, the matchmaker
// works unmetered.
func (m *Matchmaker) SetMetrics(metrics Metrics) {
	m.metrics = metrics
}

// queueDepthLocked counts every queued player across all buckets.
// Callers hold m.mu.
func (m *Matchmaker) queueDepthLocked() int {
	total := 0
	for _, queued := range m.queues {
		total += len(queued)
	}
	return total
}

func (m *Matchmaker) reportDepth(depth int) {
	if m.metrics != nil {
		m.metrics.SetQueuedPlayers(depth)
	}
}

type QueueUpdatePayload struct {
	Players []string `json:"players"`
	Needed  int      `json:"needed"`
}

type GameFoundPayload struct {
	RoomID string `json:"room_id"`
}

func newRoomID() string {
	buf := make([]byte, 3)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

// Join enqueues a player into the bucket matching their rank. When the
// bucket reaches matchSize the oldest entries are matched immediately.
func (m *Matchmaker) Join(userID, username string) error {
	playerRank := "Bronze I"
	if data, err := m.repo.GetUserData(userID); err == nil {
		playerRank = data.Rank
	}
	rng, ok := rank.RangeForRank(playerRank)
	if !ok {
		rng = rank.Ranges[0]
	}

	m.mu.Lock()
	for _, queued := range m.queues {
		for _, e := range queued {
			if e.UserID == userID {
				m.mu.Unlock()
				return ErrAlreadyQueued
			}
		}
	}
	m.queues[rng.ID] = append(m.queues[rng.ID], entry{
		UserID:   userID,
		Username: username,
		Rank:     playerRank,
	})
	queued := append([]entry(nil), m.queues[rng.ID]...)

	var matched []entry
	if len(m.queues[rng.ID]) >= matchSize {
		matched = append(matched, m.queues[rng.ID][:matchSize]...)
		m.queues[rng.ID] = m.queues[rng.ID][matchSize:]
	}
	depth := m.queueDepthLocked()
	m.mu.Unlock()

	m.reportDepth(depth)

	m.pushQueueUpdate(queued)

	if matched != nil {
		if err := m.launch(rng, matched); err != nil {
			logger.Log.Errorf("matchmaking: launch game for range %d: %v", rng.ID, err)
			m.bc.BroadcastToUsers(userIDs(matched), network.MsgTypeQueueError, marshal(map[string]string{
				"message": "Failed to create game",
			}))
		}
	}
	return nil
}

// Leave removes the player from whichever bucket holds them.
func (m *Matchmaker) Leave(userID string) {
	m.mu.Lock()
	var remaining []entry
	for id, queued := range m.queues {
		filtered := queued[:0]
		removed := false
		for _, e := range queued {
			if e.UserID == userID {
				removed = true
				continue
			}
			filtered = append(filtered, e)
		}
		m.queues[id] = filtered
		if removed {
			remaining = append([]entry(nil), filtered...)
		}
	}
	depth := m.queueDepthLocked()
	m.mu.Unlock()

	m.reportDepth(depth)

	if remaining != nil {
		m.pushQueueUpdate(remaining)
	}
}

// Disconnect is the transport-level exit; it reuses Leave semantics.
func (m *Matchmaker) Disconnect(userID string) {
	m.Leave(userID)
}

// launch persists a public room for the matched players and tells them
// where to go. Difficulty follows the bucket: higher ranks spell harder
// words.
func (m *Matchmaker) launch(rng rank.Range, matched []entry) error {
	players := make([]models.Player, 0, len(matched))
	for _, e := range matched {
		players = append(players, models.Player{
			UserID:   e.UserID,
			Username: e.Username,
			Rank:     e.Rank,
			IsActive: true,
		})
	}

	room := &models.Room{
		RoomID:     newRoomID(),
		Status:     "playing",
		IsPublic:   true,
		Rounds:     m.rounds,
		Difficulty: rank.DifficultyForRange(rng.ID),
		MaxPlayers: matchSize,
		TurnTime:   m.turnTime,
		RankRange:  strconv.Itoa(rng.ID),
		Players:    players,
	}
	if err := m.repo.CreateRoom(room); err != nil {
		return err
	}

	logger.Log.Infof("matchmaking: game %s found for range %d", room.RoomID, rng.ID)
	m.bc.BroadcastToUsers(userIDs(matched), network.MsgTypeGameFound, marshal(GameFoundPayload{
		RoomID: room.RoomID,
	}))
	return nil
}

func (m *Matchmaker) pushQueueUpdate(queued []entry) {
	if len(queued) == 0 {
		return
	}
	names := make([]string, 0, len(queued))
	for _, e := range queued {
		names = append(names, e.Username)
	}
	m.bc.BroadcastToUsers(userIDs(queued), network.MsgTypeQueueUpdate, marshal(QueueUpdatePayload{
		Players: names,
		Needed:  matchSize,
	}))
}

func userIDs(entries []entry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	return ids
}

func marshal(v interface{}) []byte {
	data, _ := json.Marshal(v)
	return data
}
