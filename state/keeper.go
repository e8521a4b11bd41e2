// state/keeper.go
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/duckuru/spellin-bee/store"
)

var ErrNotFound = errors.New("state not found")

func RoomKey(roomID string) string  { return "room:" + roomID }
func LobbyKey(roomID string) string { return "lobby:" + roomID }
func UserLobbyKey(userID string) string {
	return "user:" + userID + ":lobby"
}

// Keeper mediates every read and write of transient room and lobby state.
// It refreshes the TTL on each write and hands out a per-key lock so that
// all read-modify-write cycles for one room run serially. Different rooms
// stay fully independent.
type Keeper struct {
	store    store.Store
	roomTTL  time.Duration
	lobbyTTL time.Duration

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewKeeper(s store.Store, roomTTL, lobbyTTL time.Duration) *Keeper {
	return &Keeper{
		store:    s,
		roomTTL:  roomTTL,
		lobbyTTL: lobbyTTL,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Lock serializes mutations for one state key. The returned func releases
// the lock. Lock entries are never evicted; the key space is bounded by
// the number of live rooms plus lobbies.
func (k *Keeper) Lock(key string) func() {
	k.locksMu.Lock()
	mu, ok := k.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		k.locks[key] = mu
	}
	k.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (k *Keeper) LoadRoom(roomID string) (*RoomState, error) {
	raw, err := k.store.Get(RoomKey(roomID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load room state: %w", err)
	}

	var s RoomState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode room state: %w", err)
	}
	return &s, nil
}

func (k *Keeper) SaveRoom(roomID string, s *RoomState) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode room state: %w", err)
	}
	return k.store.Set(RoomKey(roomID), raw, k.roomTTL)
}

func (k *Keeper) DeleteRoom(roomID string) error {
	return k.store.Delete(RoomKey(roomID))
}

func (k *Keeper) LoadLobby(roomID string) (*LobbyState, error) {
	raw, err := k.store.Get(LobbyKey(roomID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load lobby state: %w", err)
	}

	var s LobbyState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode lobby state: %w", err)
	}
	return &s, nil
}

func (k *Keeper) SaveLobby(roomID string, s *LobbyState) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode lobby state: %w", err)
	}
	return k.store.Set(LobbyKey(roomID), raw, k.lobbyTTL)
}

func (k *Keeper) DeleteLobby(roomID string) error {
	return k.store.Delete(LobbyKey(roomID))
}

// SetUserLobby records which lobby a user sits in, so a reconnecting
// client can recover without knowing the room identifier.
func (k *Keeper) SetUserLobby(userID, roomID string) error {
	return k.store.Set(UserLobbyKey(userID), []byte(roomID), k.lobbyTTL)
}

func (k *Keeper) GetUserLobby(userID string) (string, error) {
	raw, err := k.store.Get(UserLobbyKey(userID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(raw), nil
}

func (k *Keeper) ClearUserLobby(userID string) error {
	return k.store.Delete(UserLobbyKey(userID))
}
