package state

import (
	"testing"
	"time"

	"github.com/duckuru/spellin-bee/models"
	"github.com/duckuru/spellin-bee/store"
)

func testRoom() *models.Room {
	return &models.Room{
		RoomID:     "r1",
		Status:     models.RoomStatusPlaying,
		Rounds:     3,
		Difficulty: "medium",
		MaxPlayers: 6,
		TurnTime:   20,
		Players: []models.Player{
			{UserID: "u1", Username: "alice", Score: 10, IsActive: true},
			{UserID: "u2", Username: "bob", IsActive: true},
			{UserID: "u3", Username: "carol", IsActive: false},
		},
	}
}

func TestNewRoomState_SeedsFromRoom(t *testing.T) {
	s := NewRoomState(testRoom())

	if s.CurrentRound != 1 {
		t.Errorf("Expected round 1, got %d", s.CurrentRound)
	}
	if s.MaxRounds != 3 {
		t.Errorf("Expected 3 max rounds, got %d", s.MaxRounds)
	}
	if len(s.TurnQueue) != 2 {
		t.Errorf("Expected only active players in queue, got %d", len(s.TurnQueue))
	}
	if s.Scores["u1"] != 10 {
		t.Errorf("Expected carried score 10 for u1, got %d", s.Scores["u1"])
	}
	if _, ok := s.Scores["u3"]; !ok {
		t.Error("Expected inactive players to keep a score entry")
	}
	if s.TurnActive() {
		t.Error("Expected no active turn in a fresh state")
	}
}

func TestRoomState_FilterQueue(t *testing.T) {
	s := NewRoomState(testRoom())
	s.FilterQueue([]string{"u2"})

	if len(s.TurnQueue) != 1 || s.TurnQueue[0] != "u2" {
		t.Errorf("Expected queue [u2], got %v", s.TurnQueue)
	}
}

func TestRoomState_RemoveFromQueue(t *testing.T) {
	s := NewRoomState(testRoom())
	s.RemoveFromQueue("u1")

	for _, id := range s.TurnQueue {
		if id == "u1" {
			t.Error("Expected u1 to be removed from the queue")
		}
	}
}

func TestLobbySettings_MergeKeepsZeroFields(t *testing.T) {
	s := LobbySettings{Rounds: 3, Difficulty: "easy", TurnTime: 20}
	s.Merge(LobbySettings{Difficulty: "hard"})

	if s.Rounds != 3 || s.TurnTime != 20 {
		t.Errorf("Expected untouched rounds and turn time, got %+v", s)
	}
	if s.Difficulty != "hard" {
		t.Errorf("Expected difficulty hard, got %s", s.Difficulty)
	}
}

func TestLobbyState_RemovePlayerReassignsHost(t *testing.T) {
	lob := &LobbyState{
		RoomID: "l1",
		HostID: "u1",
		Players: []LobbyPlayer{
			{UserID: "u1", IsHost: true},
			{UserID: "u2"},
		},
	}

	lob.RemovePlayer("u1")

	if lob.HostID != "u2" {
		t.Errorf("Expected host u2, got %s", lob.HostID)
	}
	if !lob.Players[0].IsHost {
		t.Error("Expected the new host to carry the flag")
	}
}

func TestKeeper_RoomRoundTrip(t *testing.T) {
	k := NewKeeper(store.NewMemoryStore(), time.Hour, time.Hour)

	if _, err := k.LoadRoom("r1"); err != ErrNotFound {
		t.Fatalf("Expected ErrNotFound for a missing room, got %v", err)
	}

	s := NewRoomState(testRoom())
	s.CurrentTurnPlayerID = "u2"
	if err := k.SaveRoom("r1", s); err != nil {
		t.Fatalf("SaveRoom failed: %v", err)
	}

	loaded, err := k.LoadRoom("r1")
	if err != nil {
		t.Fatalf("LoadRoom failed: %v", err)
	}
	if loaded.CurrentTurnPlayerID != "u2" {
		t.Errorf("Expected turn player u2, got %s", loaded.CurrentTurnPlayerID)
	}

	if err := k.DeleteRoom("r1"); err != nil {
		t.Fatalf("DeleteRoom failed: %v", err)
	}
	if _, err := k.LoadRoom("r1"); err != ErrNotFound {
		t.Error("Expected the room state to be gone after delete")
	}
}

func TestKeeper_UserLobbyPointer(t *testing.T) {
	k := NewKeeper(store.NewMemoryStore(), time.Hour, time.Hour)

	if _, err := k.GetUserLobby("u1"); err != ErrNotFound {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if err := k.SetUserLobby("u1", "l1"); err != nil {
		t.Fatalf("SetUserLobby failed: %v", err)
	}
	id, err := k.GetUserLobby("u1")
	if err != nil || id != "l1" {
		t.Errorf("Expected pointer l1, got %s (%v)", id, err)
	}

	if err := k.ClearUserLobby("u1"); err != nil {
		t.Fatalf("ClearUserLobby failed: %v", err)
	}
	if _, err := k.GetUserLobby("u1"); err != ErrNotFound {
		t.Error("Expected the pointer to be cleared")
	}
}

func TestKeeper_LockSerializesPerKey(t *testing.T) {
	k := NewKeeper(store.NewMemoryStore(), time.Hour, time.Hour)

	counter := 0
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			unlock := k.Lock(RoomKey("r1"))
			counter++
			unlock()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if counter != 10 {
		t.Errorf("Expected 10 serialized increments, got %d", counter)
	}
}
