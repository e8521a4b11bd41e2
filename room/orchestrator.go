// room/orchestrator.go
package room

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/duckuru/spellin-bee/logger"
	"github.com/duckuru/spellin-bee/network"
	"github.com/duckuru/spellin-bee/persistence"
	"github.com/duckuru/spellin-bee/state"
	"github.com/duckuru/spellin-bee/words"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFinished = errors.New("game already finished")
	ErrCannotJoin   = errors.New("cannot join room")
)

const answerPoints = 10

type Config struct {
	// PreTurnDelay is the pause between a resolved turn and the next one.
	PreTurnDelay time.Duration
	// JoinPreTurnDelay is the longer first pause armed when a client
	// joins an idle room.
	JoinPreTurnDelay time.Duration
}

func (c *Config) defaults() {
	if c.PreTurnDelay <= 0 {
		c.PreTurnDelay = 5 * time.Second
	}
	if c.JoinPreTurnDelay <= 0 {
		c.JoinPreTurnDelay = 10 * time.Second
	}
}

// pendingPreTurn remembers when the delay was armed so late joiners can
// query the remaining countdown instead of relying on a push they missed.
type pendingPreTurn struct {
	timerID int64
	armedAt time.Time
	delay   time.Duration
}

// Orchestrator owns the turn state machine of every active room: round
// progression, player selection, word assignment, countdowns, scoring
// and termination. All mutations of one room go through the keeper's
// per-key lock, so they execute serially; different rooms run in
// parallel.
type Orchestrator struct {
	keeper   *state.Keeper
	repo     persistence.RoomRepository
	bc       Broadcaster
	picker   WordSource
	recorder Recorder
	sched    Scheduler
	rng      words.Rand
	cfg      Config

	mu        sync.Mutex
	intervals map[string]int64
	preTurns  map[string]*pendingPreTurn

	metrics Metrics
}

// SetMetrics attaches an instrumentation sink. Safe to skip.
func (o *Orchestrator) SetMetrics(m Metrics) {
	o.metrics = m
}

func NewOrchestrator(
	keeper *state.Keeper,
	repo persistence.RoomRepository,
	bc Broadcaster,
	picker WordSource,
	recorder Recorder,
	sched Scheduler,
	rng words.Rand,
	cfg Config,
) *Orchestrator {
	cfg.defaults()
	return &Orchestrator{
		keeper:    keeper,
		repo:      repo,
		bc:        bc,
		picker:    picker,
		recorder:  recorder,
		sched:     sched,
		rng:       rng,
		cfg:       cfg,
		intervals: make(map[string]int64),
		preTurns:  make(map[string]*pendingPreTurn),
	}
}

// Join admits an authenticated player into a playing room: reactivates
// their membership, lazily creates the transient state, replies with the
// full room snapshot and reconstructs any pending pre-turn countdown.
func (o *Orchestrator) Join(sessionID, roomID, userID, username string) error {
	room, err := o.repo.FetchRoom(roomID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	if room.Status == "finished" {
		return ErrRoomFinished
	}

	player, ok := room.FindPlayer(userID)
	if !ok || !player.IsActive {
		return ErrCannotJoin
	}

	updated, err := o.repo.SetPlayerActive(roomID, userID, true)
	if err != nil {
		return err
	}

	unlock := o.keeper.Lock(state.RoomKey(roomID))
	defer unlock()

	st, err := o.keeper.LoadRoom(roomID)
	if errors.Is(err, state.ErrNotFound) {
		st = state.NewRoomState(room)
		if err := o.keeper.SaveRoom(roomID, st); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	o.bc.SendToSession(sessionID, network.MsgTypeRoomState, marshal(StatePayload{
		CurrentTurnPlayerID: st.CurrentTurnPlayerID,
		TurnTimeLeft:        st.TurnTimeLeft,
		CurrentRound:        st.CurrentRound,
		Scores:              st.Scores,
		CurrentTurnWord:     st.CurrentTurnWord,
	}))
	o.bc.BroadcastToRoom(roomID, network.MsgTypeRoomUpdate, marshal(RoomUpdatePayload(updated.Players)))

	if !st.TurnActive() {
		if remaining, ok := o.PreTurnRemaining(roomID); ok {
			o.bc.SendToSession(sessionID, network.MsgTypePreTurn, marshal(PreTurnPayload{Countdown: remaining}))
		} else {
			o.maybeSchedulePreTurn(roomID, st, o.cfg.JoinPreTurnDelay)
		}
	}

	logger.Log.Infof("%s joined room %s", username, roomID)
	return nil
}

// StartTurn begins the next turn unless one is already active.
func (o *Orchestrator) StartTurn(roomID string) error {
	unlock := o.keeper.Lock(state.RoomKey(roomID))
	defer unlock()

	if st, err := o.keeper.LoadRoom(roomID); err == nil && st.TurnActive() {
		return nil
	}
	return o.startTurnLocked(roomID)
}

// startTurnLocked advances the round machine and launches one turn.
// Caller must hold the room lock.
func (o *Orchestrator) startTurnLocked(roomID string) error {
	room, err := o.repo.FetchRoom(roomID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	st, err := o.keeper.LoadRoom(roomID)
	if errors.Is(err, state.ErrNotFound) {
		st = state.NewRoomState(room)
	} else if err != nil {
		return err
	}

	activeIDs := make([]string, 0, len(room.Players))
	for _, p := range room.Players {
		if p.IsActive {
			activeIDs = append(activeIDs, p.UserID)
		}
	}
	st.FilterQueue(activeIDs)

	// Empty queue means the round is exhausted.
	if len(st.TurnQueue) == 0 {
		st.CurrentRound++
		if st.CurrentRound > st.MaxRounds {
			return o.finishLocked(roomID, st)
		}
		st.TurnQueue = append([]string(nil), activeIDs...)
	}

	if len(st.TurnQueue) == 0 || st.Status != state.StatusPlaying {
		return o.keeper.SaveRoom(roomID, st)
	}

	word, err := o.picker.Pick(context.Background(), st.Difficulty)
	if err != nil {
		return err
	}

	idx := int(o.rng.Uint32n(uint32(len(st.TurnQueue))))
	playerID := st.TurnQueue[idx]
	st.TurnQueue = append(st.TurnQueue[:idx], st.TurnQueue[idx+1:]...)

	st.CurrentTurnPlayerID = playerID
	st.TurnTimeLeft = st.TurnTime
	st.WordsUsed = append(st.WordsUsed, word.Word)
	st.CurrentTurnWord = &word

	if err := o.keeper.SaveRoom(roomID, st); err != nil {
		return err
	}

	o.bc.BroadcastToRoom(roomID, network.MsgTypeTurnStart, marshal(TurnStartPayload{
		PlayerID:     playerID,
		Word:         word,
		CurrentRound: st.CurrentRound,
		TurnTimeLeft: st.TurnTimeLeft,
	}))

	o.ensureInterval(roomID)
	return nil
}

// tick fires once per second while the room's countdown is armed. It
// must never return an error into the scheduler: failures are logged
// and the next tick tries again.
func (o *Orchestrator) tick(roomID string) {
	unlock := o.keeper.Lock(state.RoomKey(roomID))
	defer unlock()

	st, err := o.keeper.LoadRoom(roomID)
	if err != nil {
		// State gone (finished or expired): stop ticking this room.
		o.clearInterval(roomID)
		return
	}

	if !st.TurnActive() || st.Status != state.StatusPlaying {
		return
	}

	if st.TurnTimeLeft > 0 {
		st.TurnTimeLeft--
	}
	if err := o.keeper.SaveRoom(roomID, st); err != nil {
		logger.Log.Errorf("room %s: save state on tick: %v", roomID, err)
		return
	}

	o.bc.BroadcastToRoom(roomID, network.MsgTypeTurnTimeUpdate, marshal(TurnTimePayload{
		PlayerID: st.CurrentTurnPlayerID,
		TimeLeft: st.TurnTimeLeft,
	}))

	if st.TurnTimeLeft > 0 {
		return
	}

	// Timeout: resolve the turn with no award.
	ended := st.CurrentTurnPlayerID
	st.CurrentTurnPlayerID = ""
	st.CurrentTurnWord = nil

	if err := o.keeper.SaveRoom(roomID, st); err != nil {
		logger.Log.Errorf("room %s: save state on turn end: %v", roomID, err)
		return
	}

	o.bc.BroadcastToRoom(roomID, network.MsgTypeTurnEnded, marshal(TurnEndedPayload{PlayerID: ended}))

	if _, err := o.repo.UpdatePlayerScore(roomID, ended, st.Scores[ended], true); err != nil {
		logger.Log.Errorf("room %s: persist score for %s: %v", roomID, ended, err)
	}

	o.maybeSchedulePreTurn(roomID, st, o.cfg.PreTurnDelay)
}

// SubmitAnswer scores a spelling attempt. Submissions from anyone but
// the active-turn player, or with no turn active, are silently ignored.
// Right or wrong, a submission ends the turn.
func (o *Orchestrator) SubmitAnswer(roomID, userID, answer string) error {
	unlock := o.keeper.Lock(state.RoomKey(roomID))
	defer unlock()

	st, err := o.keeper.LoadRoom(roomID)
	if err != nil {
		return nil
	}

	if userID != st.CurrentTurnPlayerID {
		return nil
	}

	// The assigned word in the shared state is authoritative; a client
	// cannot score against a word it chose itself.
	var assigned string
	if st.CurrentTurnWord != nil {
		assigned = st.CurrentTurnWord.Word
	}
	isCorrect := assigned != "" && strings.EqualFold(answer, assigned)
	if isCorrect {
		st.Scores[userID] += answerPoints
	}
	if o.metrics != nil {
		o.metrics.IncAnswer(isCorrect)
	}

	ended := st.CurrentTurnPlayerID
	st.CurrentTurnPlayerID = ""
	st.TurnTimeLeft = 0
	st.CurrentTurnWord = nil

	if err := o.keeper.SaveRoom(roomID, st); err != nil {
		return err
	}

	if _, err := o.repo.UpdatePlayerScore(roomID, userID, st.Scores[userID], true); err != nil {
		logger.Log.Errorf("room %s: persist score for %s: %v", roomID, userID, err)
	}

	o.bc.BroadcastToRoom(roomID, network.MsgTypeScoreUpdate, marshal(st.Scores))
	o.bc.BroadcastToRoom(roomID, network.MsgTypeAnswerResult, marshal(AnswerResultPayload{
		UserID:    userID,
		IsCorrect: isCorrect,
	}))
	o.bc.BroadcastToRoom(roomID, network.MsgTypeTurnEnded, marshal(TurnEndedPayload{PlayerID: ended}))

	o.maybeSchedulePreTurn(roomID, st, o.cfg.PreTurnDelay)
	return nil
}

// PlayerLeft handles a player becoming unavailable, whether by explicit
// leave or transport disconnect; both paths converge here. The explicit
// flag only controls the farewell messages.
func (o *Orchestrator) PlayerLeft(sessionID, roomID, userID string, explicit bool) error {
	room, err := o.repo.FetchRoom(roomID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	username := "Unknown"
	if player, ok := room.FindPlayer(userID); ok {
		username = player.Username
	}

	if _, err := o.repo.SetPlayerActive(roomID, userID, false); err != nil {
		return err
	}

	unlock := o.keeper.Lock(state.RoomKey(roomID))
	defer unlock()

	st, stErr := o.keeper.LoadRoom(roomID)
	if stErr == nil {
		st.RemoveFromQueue(userID)

		if st.CurrentTurnPlayerID == userID {
			// The leaver held the turn: end it as a timeout would.
			st.CurrentTurnPlayerID = ""
			st.TurnTimeLeft = 0
			st.CurrentTurnWord = nil
			if err := o.keeper.SaveRoom(roomID, st); err != nil {
				return err
			}

			o.bc.BroadcastToRoom(roomID, network.MsgTypeTurnEnded, marshal(TurnEndedPayload{PlayerID: userID}))
			o.maybeSchedulePreTurn(roomID, st, o.cfg.PreTurnDelay)
		} else {
			if err := o.keeper.SaveRoom(roomID, st); err != nil {
				return err
			}
		}
	}

	final, err := o.repo.FinalizeRoomIfEmpty(roomID)
	if err != nil {
		return err
	}

	if explicit {
		o.bc.BroadcastToRoomExcept(roomID, sessionID, network.MsgTypePlayerLeftRoom, marshal(PlayerLeftPayload{
			UserID:   userID,
			Username: username,
			Message:  username + " left",
		}))
		o.bc.SendToSession(sessionID, network.MsgTypeYouLeftRoom, marshal(YouLeftPayload{
			RoomID:  roomID,
			Message: "You left room",
		}))
	}
	o.bc.BroadcastToRoom(roomID, network.MsgTypeRoomUpdate, marshal(RoomUpdatePayload(final.Players)))

	if final.Status == "finished" && stErr == nil {
		return o.finishLocked(roomID, st)
	}
	return nil
}

// FinishRoom is the idempotent terminal action. A second call finds no
// transient state and is a no-op.
func (o *Orchestrator) FinishRoom(roomID string) error {
	unlock := o.keeper.Lock(state.RoomKey(roomID))
	defer unlock()

	st, err := o.keeper.LoadRoom(roomID)
	if err != nil {
		return nil
	}
	return o.finishLocked(roomID, st)
}

// finishLocked flushes every score, persists the history records,
// notifies the room and tears down all transient resources. Caller must
// hold the room lock.
func (o *Orchestrator) finishLocked(roomID string, st *state.RoomState) error {
	st.Status = state.StatusFinished
	if err := o.keeper.SaveRoom(roomID, st); err != nil {
		logger.Log.Errorf("room %s: save finished state: %v", roomID, err)
	}

	for userID, score := range st.Scores {
		if _, err := o.repo.UpdatePlayerScore(roomID, userID, score, true); err != nil {
			logger.Log.Errorf("room %s: flush score for %s: %v", roomID, userID, err)
		}
	}

	if err := o.repo.UpdateRoomStatus(roomID, "finished"); err != nil {
		logger.Log.Errorf("room %s: mark finished: %v", roomID, err)
	}

	if o.recorder != nil {
		if room, err := o.repo.FetchRoom(roomID); err == nil {
			if err := o.recorder.RecordMatch(room, st.Scores); err != nil {
				logger.Log.Errorf("room %s: record match: %v", roomID, err)
			}
		}
	}

	o.bc.BroadcastToRoom(roomID, network.MsgTypeRoomFinished, marshal(MessagePayload{Message: "Game finished."}))

	o.clearInterval(roomID)
	o.clearPreTurn(roomID)

	return o.keeper.DeleteRoom(roomID)
}

// Snapshot returns the room state for a read-only query.
func (o *Orchestrator) Snapshot(roomID string) (*StatePayload, error) {
	st, err := o.keeper.LoadRoom(roomID)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &StatePayload{
		CurrentTurnPlayerID: st.CurrentTurnPlayerID,
		TurnTimeLeft:        st.TurnTimeLeft,
		CurrentRound:        st.CurrentRound,
		Scores:              st.Scores,
		CurrentTurnWord:     st.CurrentTurnWord,
	}, nil
}

// Typing relays keystrokes to everyone else in the room. No state.
func (o *Orchestrator) Typing(sessionID, roomID, userID, text string) {
	o.bc.BroadcastToRoomExcept(roomID, sessionID, network.MsgTypeTyping, marshal(TypingPayload{
		UserID: userID,
		Text:   text,
	}))
}

// --- timer registries ---

// ensureInterval arms the one-second countdown for a room if absent, so
// repeated turn starts never stack tickers.
func (o *Orchestrator) ensureInterval(roomID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.intervals[roomID]; exists {
		return
	}
	o.intervals[roomID] = o.sched.Every(time.Second, func() { o.tick(roomID) })
	if o.metrics != nil {
		o.metrics.SetActiveRooms(len(o.intervals))
	}
}

func (o *Orchestrator) clearInterval(roomID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if id, exists := o.intervals[roomID]; exists {
		o.sched.Cancel(id)
		delete(o.intervals, roomID)
		if o.metrics != nil {
			o.metrics.SetActiveRooms(len(o.intervals))
		}
	}
}

// maybeSchedulePreTurn arms the delayed next-turn start if no turn is
// active, none is already pending and the room is still playing. Caller
// must hold the room lock.
func (o *Orchestrator) maybeSchedulePreTurn(roomID string, st *state.RoomState, delay time.Duration) {
	if st.TurnActive() || st.Status != state.StatusPlaying {
		return
	}

	o.mu.Lock()
	if _, exists := o.preTurns[roomID]; exists {
		o.mu.Unlock()
		return
	}
	id := o.sched.After(delay, func() { o.preTurnFired(roomID) })
	o.preTurns[roomID] = &pendingPreTurn{timerID: id, armedAt: time.Now(), delay: delay}
	o.mu.Unlock()

	o.bc.BroadcastToRoom(roomID, network.MsgTypePreTurn, marshal(PreTurnPayload{
		Countdown: int(delay.Seconds()),
	}))
}

func (o *Orchestrator) preTurnFired(roomID string) {
	o.mu.Lock()
	delete(o.preTurns, roomID)
	o.mu.Unlock()

	unlock := o.keeper.Lock(state.RoomKey(roomID))
	defer unlock()

	if err := o.startTurnLocked(roomID); err != nil && !errors.Is(err, ErrRoomNotFound) {
		logger.Log.Errorf("room %s: start turn after countdown: %v", roomID, err)
	}
}

func (o *Orchestrator) clearPreTurn(roomID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if pending, exists := o.preTurns[roomID]; exists {
		o.sched.Cancel(pending.timerID)
		delete(o.preTurns, roomID)
	}
}

// PreTurnRemaining reports the whole seconds left on a pending pre-turn
// countdown, for clients that joined after the push went out.
func (o *Orchestrator) PreTurnRemaining(roomID string) (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	pending, exists := o.preTurns[roomID]
	if !exists {
		return 0, false
	}

	left := pending.delay - time.Since(pending.armedAt)
	if left < 0 {
		left = 0
	}
	return int(math.Ceil(left.Seconds())), true
}
