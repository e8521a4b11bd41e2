// lobby/lobby.go
package lobby

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/duckuru/spellin-bee/logger"
	"github.com/duckuru/spellin-bee/models"
	"github.com/duckuru/spellin-bee/network"
	"github.com/duckuru/spellin-bee/state"
)

var (
	ErrLobbyNotFound    = errors.New("lobby not found")
	ErrLobbyFull        = errors.New("lobby is full")
	ErrNotHost          = errors.New("only the host can do that")
	ErrNotInLobby       = errors.New("player not in lobby")
	ErrCannotKickSelf   = errors.New("host cannot kick themselves")
	ErrNotEnoughPlayers = errors.New("need at least 2 players to start")
	ErrAlreadyInLobby   = errors.New("you are already in a lobby")
)

// Broadcaster is the slice of the push layer the lobby needs.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToUsers(userIDs []string, msgID uint16, data []byte) error
}

// Repository is the slice of persistence the lobby needs: it only
// creates the game room and looks up ratings when the game launches.
type Repository interface {
	CreateRoom(room *models.Room) error
	UpdateRoomStatus(roomID string, status models.RoomStatus) error
	GetUserData(userID string) (*models.UserData, error)
}

// Orchestrator manages the pre-game phase of a room: membership,
// settings and the transition into a live game. Lobbies share their ID
// with the room they become, so broadcast groups carry over unchanged.
type Orchestrator struct {
	keeper     *state.Keeper
	repo       Repository
	bc         Broadcaster
	maxPlayers int
	defaults   state.LobbySettings
}

// NewOrchestrator builds the lobby orchestrator. defaults seeds the
// settings of every new lobby; zero fields fall back to 3 rounds of
// easy words at 20 seconds per turn.
func NewOrchestrator(keeper *state.Keeper, repo Repository, bc Broadcaster, maxPlayers int, defaults state.LobbySettings) *Orchestrator {
	if maxPlayers <= 0 {
		maxPlayers = 6
	}
	base := state.LobbySettings{Rounds: 3, Difficulty: "easy", TurnTime: 20}
	base.Merge(defaults)
	return &Orchestrator{keeper: keeper, repo: repo, bc: bc, maxPlayers: maxPlayers, defaults: base}
}

// newLobbyID returns a short id that is comfortable to read out loud.
func newLobbyID() string {
	buf := make([]byte, 3)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

// Create opens a new lobby with the caller as host. Non-zero fields of
// settings override the defaults.
func (o *Orchestrator) Create(userID, username string, settings state.LobbySettings, isPublic bool) (*state.LobbyState, error) {
	if existing, err := o.keeper.GetUserLobby(userID); err == nil && existing != "" {
		return nil, ErrAlreadyInLobby
	}

	lobbyID := newLobbyID()

	lob := &state.LobbyState{
		RoomID: lobbyID,
		HostID: userID,
		Settings: o.defaults,
		Players: []state.LobbyPlayer{{
			UserID:   userID,
			Username: username,
			IsActive: true,
			IsHost:   true,
		}},
		Status:   "waiting",
		IsPublic: isPublic,
	}
	lob.Settings.Merge(settings)

	unlock := o.keeper.Lock(state.LobbyKey(lobbyID))
	defer unlock()

	if err := o.keeper.SaveLobby(lobbyID, lob); err != nil {
		return nil, err
	}
	if err := o.keeper.SetUserLobby(userID, lobbyID); err != nil {
		return nil, err
	}

	logger.Log.Infof("%s created lobby %s", username, lobbyID)
	return lob, nil
}

// Join adds a player, or refreshes their membership when they were
// already inside (a reconnecting client re-sends join).
func (o *Orchestrator) Join(lobbyID, userID, username string) (*state.LobbyState, error) {
	unlock := o.keeper.Lock(state.LobbyKey(lobbyID))
	defer unlock()

	lob, err := o.keeper.LoadLobby(lobbyID)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, ErrLobbyNotFound
		}
		return nil, err
	}

	if !lob.HasPlayer(userID) {
		lob.Players = append(lob.Players, state.LobbyPlayer{
			UserID:   userID,
			Username: username,
			IsActive: true,
		})
		if len(lob.Players) > o.maxPlayers {
			return nil, ErrLobbyFull
		}
	} else {
		for i := range lob.Players {
			if lob.Players[i].UserID == userID {
				lob.Players[i].IsActive = true
			}
		}
	}

	if err := o.keeper.SaveLobby(lobbyID, lob); err != nil {
		return nil, err
	}
	if err := o.keeper.SetUserLobby(userID, lobbyID); err != nil {
		return nil, err
	}

	o.pushUpdate(lob)
	return lob, nil
}

// Rejoin resolves the lobby a user last belonged to, used after a page
// reload when the client only knows its own identity.
func (o *Orchestrator) Rejoin(userID, username string) (*state.LobbyState, error) {
	lobbyID, err := o.keeper.GetUserLobby(userID)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, ErrLobbyNotFound
		}
		return nil, err
	}
	return o.Join(lobbyID, userID, username)
}

// Leave removes a player. The last player out dissolves the lobby; a
// departing host hands the role to the longest-standing member.
func (o *Orchestrator) Leave(lobbyID, userID string) error {
	unlock := o.keeper.Lock(state.LobbyKey(lobbyID))
	defer unlock()

	lob, err := o.keeper.LoadLobby(lobbyID)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return ErrLobbyNotFound
		}
		return err
	}

	if !lob.HasPlayer(userID) {
		return ErrNotInLobby
	}
	lob.RemovePlayer(userID)

	if err := o.keeper.ClearUserLobby(userID); err != nil {
		logger.Log.Warnf("clear lobby pointer for %s: %v", userID, err)
	}

	if len(lob.Players) == 0 {
		// A null update tells any lingering client to drop its view.
		o.bc.BroadcastToRoom(lobbyID, network.MsgTypeLobbyUpdate, []byte("null"))
		return o.keeper.DeleteLobby(lobbyID)
	}

	if err := o.keeper.SaveLobby(lobbyID, lob); err != nil {
		return err
	}
	o.pushUpdate(lob)
	return nil
}

// UpdateSettings merges the host's changes into the lobby settings.
func (o *Orchestrator) UpdateSettings(lobbyID, userID string, settings state.LobbySettings) error {
	unlock := o.keeper.Lock(state.LobbyKey(lobbyID))
	defer unlock()

	lob, err := o.keeper.LoadLobby(lobbyID)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return ErrLobbyNotFound
		}
		return err
	}
	if lob.HostID != userID {
		return ErrNotHost
	}

	lob.Settings.Merge(settings)

	if err := o.keeper.SaveLobby(lobbyID, lob); err != nil {
		return err
	}
	o.pushUpdate(lob)
	return nil
}

// Kick removes a member on the host's order and tells them so.
func (o *Orchestrator) Kick(lobbyID, hostID, targetID string) error {
	unlock := o.keeper.Lock(state.LobbyKey(lobbyID))
	defer unlock()

	lob, err := o.keeper.LoadLobby(lobbyID)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return ErrLobbyNotFound
		}
		return err
	}
	if lob.HostID != hostID {
		return ErrNotHost
	}
	if hostID == targetID {
		return ErrCannotKickSelf
	}
	if !lob.HasPlayer(targetID) {
		return ErrNotInLobby
	}

	lob.RemovePlayer(targetID)
	if err := o.keeper.ClearUserLobby(targetID); err != nil {
		logger.Log.Warnf("clear lobby pointer for %s: %v", targetID, err)
	}

	if err := o.keeper.SaveLobby(lobbyID, lob); err != nil {
		return err
	}

	o.bc.BroadcastToUsers([]string{targetID}, network.MsgTypeKicked, marshal(KickedPayload{
		Message: "You were kicked from the lobby",
	}))
	o.pushUpdate(lob)
	return nil
}

// StartGame converts the lobby into a live room: the room is persisted
// with the lobby's settings and membership, the lobby record and every
// member's pointer are discarded, and all clients are told to move.
func (o *Orchestrator) StartGame(lobbyID, userID string) error {
	unlock := o.keeper.Lock(state.LobbyKey(lobbyID))
	defer unlock()

	lob, err := o.keeper.LoadLobby(lobbyID)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return ErrLobbyNotFound
		}
		return err
	}
	if lob.HostID != userID {
		return ErrNotHost
	}
	if len(lob.Players) < 2 {
		return ErrNotEnoughPlayers
	}

	players := make([]models.Player, 0, len(lob.Players))
	for _, lp := range lob.Players {
		rank := "Bronze I"
		if data, err := o.repo.GetUserData(lp.UserID); err == nil {
			rank = data.Rank
		}
		players = append(players, models.Player{
			UserID:   lp.UserID,
			Username: lp.Username,
			Rank:     rank,
			IsActive: true,
		})
	}

	room := &models.Room{
		RoomID:     lob.RoomID,
		Status:     "waiting",
		IsPublic:   lob.IsPublic,
		Rounds:     lob.Settings.Rounds,
		Difficulty: lob.Settings.Difficulty,
		MaxPlayers: o.maxPlayers,
		TurnTime:   lob.Settings.TurnTime,
		Players:    players,
	}
	if err := o.repo.CreateRoom(room); err != nil {
		return err
	}
	if err := o.repo.UpdateRoomStatus(room.RoomID, "playing"); err != nil {
		return err
	}

	for _, lp := range lob.Players {
		if err := o.keeper.ClearUserLobby(lp.UserID); err != nil {
			logger.Log.Warnf("clear lobby pointer for %s: %v", lp.UserID, err)
		}
	}
	if err := o.keeper.DeleteLobby(lobbyID); err != nil {
		logger.Log.Warnf("delete lobby %s: %v", lobbyID, err)
	}

	logger.Log.Infof("lobby %s launched game with %d players", lobbyID, len(players))
	o.bc.BroadcastToRoom(lobbyID, network.MsgTypeGameStarting, marshal(GameStartingPayload{
		RoomID: room.RoomID,
	}))
	return nil
}

func (o *Orchestrator) pushUpdate(lob *state.LobbyState) {
	o.bc.BroadcastToRoom(lob.RoomID, network.MsgTypeLobbyUpdate, marshal(lob))
}
