package room

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/duckuru/spellin-bee/models"
	"github.com/duckuru/spellin-bee/network"
	"github.com/duckuru/spellin-bee/persistence"
	"github.com/duckuru/spellin-bee/state"
	"github.com/duckuru/spellin-bee/store"
	"github.com/duckuru/spellin-bee/words"
)

// MockRepo is an in-memory test double for persistence.RoomRepository.
type MockRepo struct {
	rooms map[string]*models.Room
	users map[string]*models.UserData
}

func NewMockRepo() *MockRepo {
	return &MockRepo{
		rooms: make(map[string]*models.Room),
		users: make(map[string]*models.UserData),
	}
}

func (m *MockRepo) CreateRoom(room *models.Room) error {
	m.rooms[room.RoomID] = room
	return nil
}

func (m *MockRepo) FetchRoom(roomID string) (*models.Room, error) {
	room, exists := m.rooms[roomID]
	if !exists {
		return nil, persistence.ErrNotFound
	}
	copied := *room
	copied.Players = append([]models.Player(nil), room.Players...)
	return &copied, nil
}

func (m *MockRepo) UpdateRoomStatus(roomID string, status models.RoomStatus) error {
	room, exists := m.rooms[roomID]
	if !exists {
		return persistence.ErrNotFound
	}
	room.Status = status
	return nil
}

func (m *MockRepo) SetPlayerActive(roomID, userID string, active bool) (*models.Room, error) {
	room, exists := m.rooms[roomID]
	if !exists {
		return nil, persistence.ErrNotFound
	}
	player, ok := room.FindPlayer(userID)
	if !ok {
		return nil, persistence.ErrPlayerNotFound
	}
	player.IsActive = active
	return m.FetchRoom(roomID)
}

func (m *MockRepo) UpdatePlayerScore(roomID, userID string, score int, absolute bool) ([]models.Player, error) {
	room, exists := m.rooms[roomID]
	if !exists {
		return nil, persistence.ErrNotFound
	}
	player, ok := room.FindPlayer(userID)
	if !ok {
		return nil, persistence.ErrPlayerNotFound
	}
	if absolute {
		player.Score = score
	} else {
		player.Score += score
	}
	sorted := append([]models.Player(nil), room.Players...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	return sorted, nil
}

func (m *MockRepo) FinalizeRoomIfEmpty(roomID string) (*models.Room, error) {
	room, exists := m.rooms[roomID]
	if !exists {
		return nil, persistence.ErrNotFound
	}
	if !room.AnyActive() {
		room.Status = models.RoomStatusFinished
	}
	return m.FetchRoom(roomID)
}

func (m *MockRepo) SaveMatchHistory(history *models.MatchHistory) error   { return nil }
func (m *MockRepo) SavePlayerHistory(history *models.PlayerHistory) error { return nil }

func (m *MockRepo) GetUserData(userID string) (*models.UserData, error) {
	user, exists := m.users[userID]
	if !exists {
		return nil, persistence.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *MockRepo) UpsertUserRating(user *models.UserData) error {
	copied := *user
	m.users[user.UserID] = &copied
	return nil
}

func (m *MockRepo) Close() error { return nil }

// sent is one captured outbound event.
type sent struct {
	target string
	msgID  uint16
	data   []byte
}

// MockBroadcaster records every push instead of delivering it.
type MockBroadcaster struct {
	events []sent
}

func (m *MockBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	m.events = append(m.events, sent{target: roomID, msgID: msgID, data: data})
	return nil
}

func (m *MockBroadcaster) BroadcastToRoomExcept(roomID, exceptSessionID string, msgID uint16, data []byte) error {
	m.events = append(m.events, sent{target: roomID, msgID: msgID, data: data})
	return nil
}

func (m *MockBroadcaster) SendToSession(sessionID string, msgID uint16, data []byte) error {
	m.events = append(m.events, sent{target: sessionID, msgID: msgID, data: data})
	return nil
}

func (m *MockBroadcaster) count(msgID uint16) int {
	n := 0
	for _, e := range m.events {
		if e.msgID == msgID {
			n++
		}
	}
	return n
}

func (m *MockBroadcaster) last(msgID uint16) (sent, bool) {
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].msgID == msgID {
			return m.events[i], true
		}
	}
	return sent{}, false
}

// MockScheduler collects timers and fires them only on demand, so tests
// control time completely.
type MockScheduler struct {
	nextID    int64
	callbacks map[int64]func()
	repeating map[int64]bool
	cancelled map[int64]bool
}

func NewMockScheduler() *MockScheduler {
	return &MockScheduler{
		callbacks: make(map[int64]func()),
		repeating: make(map[int64]bool),
		cancelled: make(map[int64]bool),
	}
}

func (m *MockScheduler) After(delay time.Duration, callback func()) int64 {
	m.nextID++
	m.callbacks[m.nextID] = callback
	return m.nextID
}

func (m *MockScheduler) Every(interval time.Duration, callback func()) int64 {
	m.nextID++
	m.callbacks[m.nextID] = callback
	m.repeating[m.nextID] = true
	return m.nextID
}

func (m *MockScheduler) Cancel(id int64) {
	m.cancelled[id] = true
	delete(m.callbacks, id)
}

// fireAll runs every pending one-shot callback once.
func (m *MockScheduler) fireAll() {
	for id, callback := range m.callbacks {
		if m.repeating[id] {
			continue
		}
		delete(m.callbacks, id)
		callback()
	}
}

// tickAll runs every repeating callback once.
func (m *MockScheduler) tickAll() {
	for id, callback := range m.callbacks {
		if m.repeating[id] {
			callback()
		}
	}
}

// MockWordSource hands out a fixed word.
type MockWordSource struct {
	word words.Word
}

func (m *MockWordSource) Pick(ctx context.Context, difficulty string) (words.Word, error) {
	return m.word, nil
}

// MockRecorder counts finalizations.
type MockRecorder struct {
	calls  int
	scores map[string]int
}

func (m *MockRecorder) RecordMatch(room *models.Room, scores map[string]int) error {
	m.calls++
	m.scores = scores
	return nil
}

// fixedRand always selects index 0, making player selection predictable.
type fixedRand struct{}

func (fixedRand) Uint32n(max uint32) uint32 { return 0 }

type fixture struct {
	repo      *MockRepo
	bc        *MockBroadcaster
	sched     *MockScheduler
	recorder  *MockRecorder
	keeper    *state.Keeper
	orch      *Orchestrator
}

func newFixture(t *testing.T, rounds int) *fixture {
	t.Helper()

	repo := NewMockRepo()
	repo.CreateRoom(&models.Room{
		RoomID:     "r1",
		Status:     models.RoomStatusPlaying,
		Rounds:     rounds,
		Difficulty: "easy",
		MaxPlayers: 6,
		TurnTime:   20,
		Players: []models.Player{
			{UserID: "u1", Username: "alice", Rank: "Bronze I", IsActive: true},
			{UserID: "u2", Username: "bob", Rank: "Bronze I", IsActive: true},
		},
	})

	bc := &MockBroadcaster{}
	sched := NewMockScheduler()
	recorder := &MockRecorder{}
	keeper := state.NewKeeper(store.NewMemoryStore(), time.Hour, time.Hour)

	orch := NewOrchestrator(keeper, repo, bc, &MockWordSource{word: words.Word{Word: "apple"}},
		recorder, sched, fixedRand{}, Config{})

	return &fixture{repo: repo, bc: bc, sched: sched, recorder: recorder, keeper: keeper, orch: orch}
}

func TestOrchestrator_StartTurnSelectsPlayerAndAssignsWord(t *testing.T) {
	f := newFixture(t, 3)

	if err := f.orch.StartTurn("r1"); err != nil {
		t.Fatalf("StartTurn failed: %v", err)
	}

	st, err := f.keeper.LoadRoom("r1")
	if err != nil {
		t.Fatalf("LoadRoom failed: %v", err)
	}

	if st.CurrentTurnPlayerID == "" {
		t.Fatal("Expected a turn player to be selected")
	}
	if st.CurrentTurnWord == nil || st.CurrentTurnWord.Word != "apple" {
		t.Error("Expected the assigned word to be stored in state")
	}
	if st.TurnTimeLeft != 20 {
		t.Errorf("Expected turn time 20, got %d", st.TurnTimeLeft)
	}
	if len(st.TurnQueue) != 1 {
		t.Errorf("Expected 1 player left in queue, got %d", len(st.TurnQueue))
	}
	if f.bc.count(network.MsgTypeTurnStart) != 1 {
		t.Error("Expected a turnStart broadcast")
	}
}

func TestOrchestrator_StartTurnIsNoOpWhileTurnActive(t *testing.T) {
	f := newFixture(t, 3)

	f.orch.StartTurn("r1")
	f.orch.StartTurn("r1")

	if got := f.bc.count(network.MsgTypeTurnStart); got != 1 {
		t.Errorf("Expected 1 turnStart broadcast, got %d", got)
	}
}

func TestOrchestrator_CorrectAnswerScoresCaseInsensitive(t *testing.T) {
	f := newFixture(t, 3)
	f.orch.StartTurn("r1")

	st, _ := f.keeper.LoadRoom("r1")
	player := st.CurrentTurnPlayerID

	if err := f.orch.SubmitAnswer("r1", player, "APPLE"); err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}

	st, _ = f.keeper.LoadRoom("r1")
	if st.Scores[player] != 10 {
		t.Errorf("Expected score 10, got %d", st.Scores[player])
	}
	if st.TurnActive() {
		t.Error("Expected the turn to end after a submission")
	}

	room, _ := f.repo.FetchRoom("r1")
	p, _ := room.FindPlayer(player)
	if p.Score != 10 {
		t.Errorf("Expected persisted score 10, got %d", p.Score)
	}

	if f.bc.count(network.MsgTypeAnswerResult) != 1 {
		t.Error("Expected an answerResult broadcast")
	}
	if f.bc.count(network.MsgTypeTurnEnded) != 1 {
		t.Error("Expected a turnEnded broadcast")
	}
}

func TestOrchestrator_WrongAnswerEndsTurnWithoutPoints(t *testing.T) {
	f := newFixture(t, 3)
	f.orch.StartTurn("r1")

	st, _ := f.keeper.LoadRoom("r1")
	player := st.CurrentTurnPlayerID

	f.orch.SubmitAnswer("r1", player, "aple")

	st, _ = f.keeper.LoadRoom("r1")
	if st.Scores[player] != 0 {
		t.Errorf("Expected score 0 after wrong answer, got %d", st.Scores[player])
	}
	if st.TurnActive() {
		t.Error("Expected the turn to end after a wrong answer")
	}
}

func TestOrchestrator_SubmitFromWrongPlayerIgnored(t *testing.T) {
	f := newFixture(t, 3)
	f.orch.StartTurn("r1")

	st, _ := f.keeper.LoadRoom("r1")
	player := st.CurrentTurnPlayerID
	other := "u1"
	if player == "u1" {
		other = "u2"
	}

	f.orch.SubmitAnswer("r1", other, "apple")

	st, _ = f.keeper.LoadRoom("r1")
	if !st.TurnActive() {
		t.Error("Expected the turn to survive a submission from the wrong player")
	}
	if st.Scores[other] != 0 {
		t.Errorf("Expected no points for the wrong player, got %d", st.Scores[other])
	}
}

func TestOrchestrator_TimeoutEndsTurn(t *testing.T) {
	f := newFixture(t, 3)
	f.orch.StartTurn("r1")

	st, _ := f.keeper.LoadRoom("r1")
	player := st.CurrentTurnPlayerID

	// Drain the full countdown.
	for i := 0; i < 20; i++ {
		f.sched.tickAll()
	}

	st, _ = f.keeper.LoadRoom("r1")
	if st.TurnActive() {
		t.Error("Expected the turn to end on timeout")
	}
	if st.Scores[player] != 0 {
		t.Errorf("Expected no points on timeout, got %d", st.Scores[player])
	}
	if f.bc.count(network.MsgTypeTurnEnded) != 1 {
		t.Error("Expected a turnEnded broadcast on timeout")
	}
	if f.bc.count(network.MsgTypePreTurn) != 1 {
		t.Error("Expected a preTurn broadcast after the timeout")
	}
}

func TestOrchestrator_RoundProgressionToFinish(t *testing.T) {
	f := newFixture(t, 1)

	// Round 1, turn 1.
	f.orch.StartTurn("r1")
	st, _ := f.keeper.LoadRoom("r1")
	f.orch.SubmitAnswer("r1", st.CurrentTurnPlayerID, "apple")

	// The pre-turn countdown launches turn 2.
	f.sched.fireAll()
	st, _ = f.keeper.LoadRoom("r1")
	if !st.TurnActive() {
		t.Fatal("Expected the second turn to start after the countdown")
	}
	f.orch.SubmitAnswer("r1", st.CurrentTurnPlayerID, "apple")

	// Queue exhausted, one round configured: the next start finishes.
	f.sched.fireAll()

	if f.recorder.calls != 1 {
		t.Fatalf("Expected exactly one finalization, got %d", f.recorder.calls)
	}
	if f.bc.count(network.MsgTypeRoomFinished) != 1 {
		t.Error("Expected a roomFinished broadcast")
	}

	room, _ := f.repo.FetchRoom("r1")
	if room.Status != models.RoomStatusFinished {
		t.Errorf("Expected room status finished, got %s", room.Status)
	}

	if _, err := f.keeper.LoadRoom("r1"); err != state.ErrNotFound {
		t.Error("Expected the transient state to be deleted on finish")
	}
}

func TestOrchestrator_FinishRoomIsIdempotent(t *testing.T) {
	f := newFixture(t, 3)
	f.orch.StartTurn("r1")

	if err := f.orch.FinishRoom("r1"); err != nil {
		t.Fatalf("FinishRoom failed: %v", err)
	}
	if err := f.orch.FinishRoom("r1"); err != nil {
		t.Fatalf("Second FinishRoom should be a no-op, got %v", err)
	}

	if f.recorder.calls != 1 {
		t.Errorf("Expected one finalization, got %d", f.recorder.calls)
	}
	if f.bc.count(network.MsgTypeRoomFinished) != 1 {
		t.Errorf("Expected one roomFinished broadcast, got %d", f.bc.count(network.MsgTypeRoomFinished))
	}
}

func TestOrchestrator_FinishFlushesAllScores(t *testing.T) {
	f := newFixture(t, 3)
	f.orch.StartTurn("r1")

	st, _ := f.keeper.LoadRoom("r1")
	f.orch.SubmitAnswer("r1", st.CurrentTurnPlayerID, "apple")

	f.orch.FinishRoom("r1")

	room, _ := f.repo.FetchRoom("r1")
	total := 0
	for _, p := range room.Players {
		total += p.Score
	}
	if total != 10 {
		t.Errorf("Expected a total of 10 persisted points, got %d", total)
	}
}

func TestOrchestrator_TurnHolderLeavingEndsTurn(t *testing.T) {
	f := newFixture(t, 3)
	f.orch.StartTurn("r1")

	st, _ := f.keeper.LoadRoom("r1")
	leaver := st.CurrentTurnPlayerID

	if err := f.orch.PlayerLeft("s1", "r1", leaver, true); err != nil {
		t.Fatalf("PlayerLeft failed: %v", err)
	}

	st, _ = f.keeper.LoadRoom("r1")
	if st.TurnActive() {
		t.Error("Expected the turn to end when its holder left")
	}
	if f.bc.count(network.MsgTypeTurnEnded) != 1 {
		t.Error("Expected a turnEnded broadcast")
	}
	if f.bc.count(network.MsgTypeYouLeftRoom) != 1 {
		t.Error("Expected a youLeftRoom confirmation for an explicit leave")
	}

	room, _ := f.repo.FetchRoom("r1")
	p, _ := room.FindPlayer(leaver)
	if p.IsActive {
		t.Error("Expected the leaver to be marked inactive")
	}
}

func TestOrchestrator_DisconnectSendsNoFarewell(t *testing.T) {
	f := newFixture(t, 3)
	f.orch.StartTurn("r1")

	if err := f.orch.PlayerLeft("s1", "r1", "u1", false); err != nil {
		t.Fatalf("PlayerLeft failed: %v", err)
	}

	if f.bc.count(network.MsgTypeYouLeftRoom) != 0 {
		t.Error("Expected no youLeftRoom event on a transport disconnect")
	}
	if f.bc.count(network.MsgTypePlayerLeftRoom) != 0 {
		t.Error("Expected no playerLeftRoom event on a transport disconnect")
	}
}

func TestOrchestrator_LastActivePlayerLeavingFinalizes(t *testing.T) {
	f := newFixture(t, 3)
	f.orch.StartTurn("r1")

	f.orch.PlayerLeft("s1", "r1", "u1", true)
	f.orch.PlayerLeft("s2", "r1", "u2", true)

	if f.recorder.calls != 1 {
		t.Fatalf("Expected finalization when the last player left, got %d calls", f.recorder.calls)
	}

	room, _ := f.repo.FetchRoom("r1")
	if room.Status != models.RoomStatusFinished {
		t.Errorf("Expected room status finished, got %s", room.Status)
	}
}

func TestOrchestrator_JoinUnknownRoom(t *testing.T) {
	f := newFixture(t, 3)

	if err := f.orch.Join("s1", "missing", "u1", "alice"); err != ErrRoomNotFound {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}

func TestOrchestrator_JoinFinishedRoom(t *testing.T) {
	f := newFixture(t, 3)
	f.repo.UpdateRoomStatus("r1", models.RoomStatusFinished)

	if err := f.orch.Join("s1", "r1", "u1", "alice"); err != ErrRoomFinished {
		t.Errorf("Expected ErrRoomFinished, got %v", err)
	}
}

func TestOrchestrator_JoinSendsSnapshot(t *testing.T) {
	f := newFixture(t, 3)

	if err := f.orch.Join("sess-1", "r1", "u1", "alice"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	e, ok := f.bc.last(network.MsgTypeRoomState)
	if !ok {
		t.Fatal("Expected a roomState reply")
	}
	if e.target != "sess-1" {
		t.Errorf("Expected the snapshot to go to the joining session, got %s", e.target)
	}
	if f.bc.count(network.MsgTypeRoomUpdate) != 1 {
		t.Error("Expected a roomUpdate broadcast after a join")
	}
	if f.bc.count(network.MsgTypePreTurn) != 1 {
		t.Error("Expected a preTurn countdown for an idle room")
	}
}

func TestOrchestrator_JoinReportsRemainingPreTurn(t *testing.T) {
	f := newFixture(t, 3)

	if err := f.orch.Join("sess-1", "r1", "u1", "alice"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	// The first join armed a 10s countdown; age it by 7 seconds so the
	// next joiner must see what is left, not a fresh timer.
	f.orch.mu.Lock()
	f.orch.preTurns["r1"].armedAt = time.Now().Add(-7 * time.Second)
	f.orch.mu.Unlock()

	if err := f.orch.Join("sess-2", "r1", "u2", "bob"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	var payload PreTurnPayload
	found := false
	for _, e := range f.bc.events {
		if e.msgID == network.MsgTypePreTurn && e.target == "sess-2" {
			if err := json.Unmarshal(e.data, &payload); err != nil {
				t.Fatalf("Bad preTurn payload: %v", err)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("Expected a preTurn reply for the second joiner")
	}
	if payload.Countdown != 3 {
		t.Errorf("Expected 3s left on the countdown, got %d", payload.Countdown)
	}
	if len(f.sched.callbacks) != 1 {
		t.Errorf("Expected no second timer for the second joiner, got %d", len(f.sched.callbacks))
	}
}

func TestOrchestrator_SnapshotUnknownRoom(t *testing.T) {
	f := newFixture(t, 3)

	if _, err := f.orch.Snapshot("missing"); err != ErrRoomNotFound {
		t.Errorf("Expected ErrRoomNotFound, got %v", err)
	}
}
