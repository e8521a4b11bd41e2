// server/server.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/duckuru/spellin-bee/broadcast"
	"github.com/duckuru/spellin-bee/lobby"
	"github.com/duckuru/spellin-bee/logger"
	"github.com/duckuru/spellin-bee/matchmaking"
	"github.com/duckuru/spellin-bee/monitor"
	"github.com/duckuru/spellin-bee/network"
	"github.com/duckuru/spellin-bee/persistence"
	"github.com/duckuru/spellin-bee/room"
	spellinrpc "github.com/duckuru/spellin-bee/rpc"
	"github.com/duckuru/spellin-bee/session"
	"github.com/duckuru/spellin-bee/state"
)

// GameServer is the connection gateway: it upgrades websockets, decodes
// packets, routes actions to the lobby, room and matchmaking layers and
// converts their errors into error events. It holds no game state of
// its own.
type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	broadcaster    *broadcast.GroupBroadcaster
	rooms          *room.Orchestrator
	lobbies        *lobby.Orchestrator
	matchmaker     *matchmaking.Matchmaker
	rpcServer      *spellinrpc.Server
	mon            *monitor.Monitor
	shutdownChan   chan struct{}
}

type Deps struct {
	SessionManager *session.Manager
	Broadcaster    *broadcast.GroupBroadcaster
	Rooms          *room.Orchestrator
	Lobbies        *lobby.Orchestrator
	Matchmaker     *matchmaking.Matchmaker
	Repo           persistence.RoomRepository
	Monitor        *monitor.Monitor
}

func NewGameServer(addr, rpcAddr string, deps Deps) *GameServer {
	s := &GameServer{
		addr:           addr,
		sessionManager: deps.SessionManager,
		broadcaster:    deps.Broadcaster,
		rooms:          deps.Rooms,
		lobbies:        deps.Lobbies,
		matchmaker:     deps.Matchmaker,
		mon:            deps.Monitor,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	rpcServer, err := spellinrpc.NewServer(rpcAddr)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	gameService := spellinrpc.NewGameService(deps.Rooms, deps.Repo)
	rpc.Register(gameService)

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	if s.mon != nil {
		s.mon.IncOnlinePlayers()
	}

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.handleDisconnect(sess)
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

// handleDisconnect runs the transport-level exit: the session leaves
// every broadcast group and the matchmaking queue, and an active room
// membership is handled like an implicit leave. A lobby membership is
// kept so a page reload can rejoin.
func (s *GameServer) handleDisconnect(sess *session.Session) {
	s.sessionManager.Remove(sess.GetID())
	s.broadcaster.LeaveAll(sess.GetID())
	if s.mon != nil {
		s.mon.DecOnlinePlayers()
	}

	userID := sess.GetUserID()
	if userID == "" {
		return
	}
	s.matchmaker.Disconnect(userID)

	if sess.RoomID != "" {
		if err := s.rooms.PlayerLeft(sess.GetID(), sess.RoomID, userID, false); err != nil {
			logger.Log.Warnf("disconnect cleanup for %s in room %s: %v", userID, sess.RoomID, err)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	if s.mon != nil {
		s.mon.IncActionsReceived()
		start := time.Now()
		defer func() { s.mon.ObserveActionLatency(time.Since(start)) }()
	}

	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.LastActive = time.Now()

	case network.MsgTypeJoinRoom:
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeStartTurn:
		s.handleStartTurn(sess, packet)
	case network.MsgTypeGetRoomState:
		s.handleGetRoomState(sess, packet)
	case network.MsgTypeSubmitAnswer:
		s.handleSubmitAnswer(sess, packet)
	case network.MsgTypeTyping:
		s.handleTyping(sess, packet)
	case network.MsgTypeLeaveRoom:
		s.handleLeaveRoom(sess, packet)

	case network.MsgTypeCreateLobby:
		s.handleCreateLobby(sess, packet)
	case network.MsgTypeJoinLobby:
		s.handleJoinLobby(sess, packet)
	case network.MsgTypeLeaveLobby:
		s.handleLeaveLobby(sess, packet)
	case network.MsgTypeRejoinLobby:
		s.handleRejoinLobby(sess, packet)
	case network.MsgTypeUpdateSettings:
		s.handleUpdateSettings(sess, packet)
	case network.MsgTypeKickPlayer:
		s.handleKickPlayer(sess, packet)
	case network.MsgTypeStartGame:
		s.handleStartGame(sess, packet)

	case network.MsgTypeJoinQueue:
		s.handleJoinQueue(sess, packet)
	case network.MsgTypeLeaveQueue:
		s.handleLeaveQueue(sess)

	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

// sendRoomError converts an orchestration error into the event the
// client expects. A finished room and a join the room no longer admits
// both route the client to the results screen instead of an error
// toast.
func (s *GameServer) sendRoomError(sess *session.Session, err error) {
	msgID := uint16(network.MsgTypeRoomError)
	if errors.Is(err, room.ErrRoomFinished) || errors.Is(err, room.ErrCannotJoin) {
		msgID = network.MsgTypeRoomFinishedAlready
	}
	data, _ := json.Marshal(map[string]string{"message": err.Error()})
	sess.Send(msgID, data)
}

// --- room actions ---

type joinRoomRequest struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	var req joinRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	sess.Identify(req.UserID, req.Username)

	s.broadcaster.JoinGroup(req.RoomID, sess.GetID())
	if err := s.rooms.Join(sess.GetID(), req.RoomID, sess.GetUserID(), sess.GetUsername()); err != nil {
		s.broadcaster.LeaveGroup(req.RoomID, sess.GetID())
		s.sendRoomError(sess, err)
		return
	}
	sess.RoomID = req.RoomID
}

type roomRequest struct {
	RoomID string `json:"room_id"`
}

func (s *GameServer) handleStartTurn(sess *session.Session, packet *network.Packet) {
	var req roomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	if err := s.rooms.StartTurn(req.RoomID); err != nil {
		s.sendRoomError(sess, err)
	}
}

func (s *GameServer) handleGetRoomState(sess *session.Session, packet *network.Packet) {
	var req roomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	snapshot, err := s.rooms.Snapshot(req.RoomID)
	if err != nil {
		s.sendRoomError(sess, err)
		return
	}
	data, _ := json.Marshal(snapshot)
	sess.Send(network.MsgTypeRoomState, data)
}

type submitAnswerRequest struct {
	RoomID string `json:"room_id"`
	Answer string `json:"answer"`
}

func (s *GameServer) handleSubmitAnswer(sess *session.Session, packet *network.Packet) {
	var req submitAnswerRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	if err := s.rooms.SubmitAnswer(req.RoomID, sess.GetUserID(), req.Answer); err != nil {
		s.sendRoomError(sess, err)
	}
}

type typingRequest struct {
	RoomID string `json:"room_id"`
	Text   string `json:"text"`
}

func (s *GameServer) handleTyping(sess *session.Session, packet *network.Packet) {
	var req typingRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	s.rooms.Typing(sess.GetID(), req.RoomID, sess.GetUserID(), req.Text)
}

func (s *GameServer) handleLeaveRoom(sess *session.Session, packet *network.Packet) {
	var req roomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	if err := s.rooms.PlayerLeft(sess.GetID(), req.RoomID, sess.GetUserID(), true); err != nil {
		s.sendRoomError(sess, err)
		return
	}
	s.broadcaster.LeaveGroup(req.RoomID, sess.GetID())
	sess.RoomID = ""
}

// --- lobby actions ---

type createLobbyRequest struct {
	HostID   string              `json:"hostId"`
	Username string              `json:"username"`
	Settings state.LobbySettings `json:"settings"`
	IsPublic bool                `json:"isPublic"`
}

func (s *GameServer) handleCreateLobby(sess *session.Session, packet *network.Packet) {
	var req createLobbyRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	sess.Identify(req.HostID, req.Username)

	lob, err := s.lobbies.Create(sess.GetUserID(), sess.GetUsername(), req.Settings, req.IsPublic)
	if err != nil {
		s.sendRoomError(sess, err)
		return
	}
	s.broadcaster.JoinGroup(lob.RoomID, sess.GetID())
	sess.LobbyID = lob.RoomID

	data, _ := json.Marshal(lob)
	sess.Send(network.MsgTypeLobbyUpdate, data)
}

type joinLobbyRequest struct {
	LobbyID  string `json:"room_id"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (s *GameServer) handleJoinLobby(sess *session.Session, packet *network.Packet) {
	var req joinLobbyRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	sess.Identify(req.UserID, req.Username)

	s.broadcaster.JoinGroup(req.LobbyID, sess.GetID())
	if _, err := s.lobbies.Join(req.LobbyID, sess.GetUserID(), sess.GetUsername()); err != nil {
		s.broadcaster.LeaveGroup(req.LobbyID, sess.GetID())
		s.sendRoomError(sess, err)
		return
	}
	sess.LobbyID = req.LobbyID
}

type lobbyRequest struct {
	LobbyID string `json:"room_id"`
}

func (s *GameServer) handleLeaveLobby(sess *session.Session, packet *network.Packet) {
	var req lobbyRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	if err := s.lobbies.Leave(req.LobbyID, sess.GetUserID()); err != nil {
		s.sendRoomError(sess, err)
		return
	}
	s.broadcaster.LeaveGroup(req.LobbyID, sess.GetID())
	sess.LobbyID = ""
}

type rejoinLobbyRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (s *GameServer) handleRejoinLobby(sess *session.Session, packet *network.Packet) {
	var req rejoinLobbyRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	sess.Identify(req.UserID, req.Username)

	lob, err := s.lobbies.Rejoin(sess.GetUserID(), sess.GetUsername())
	if err != nil {
		s.sendRoomError(sess, err)
		return
	}
	s.broadcaster.JoinGroup(lob.RoomID, sess.GetID())
	sess.LobbyID = lob.RoomID

	data, _ := json.Marshal(lob)
	sess.Send(network.MsgTypeLobbyUpdate, data)
}

type updateSettingsRequest struct {
	LobbyID  string              `json:"room_id"`
	Settings state.LobbySettings `json:"settings"`
}

func (s *GameServer) handleUpdateSettings(sess *session.Session, packet *network.Packet) {
	var req updateSettingsRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	if err := s.lobbies.UpdateSettings(req.LobbyID, sess.GetUserID(), req.Settings); err != nil {
		s.sendRoomError(sess, err)
	}
}

type kickPlayerRequest struct {
	LobbyID  string `json:"room_id"`
	TargetID string `json:"targetUserId"`
}

func (s *GameServer) handleKickPlayer(sess *session.Session, packet *network.Packet) {
	var req kickPlayerRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	if err := s.lobbies.Kick(req.LobbyID, sess.GetUserID(), req.TargetID); err != nil {
		s.sendRoomError(sess, err)
		return
	}
	// The kicked player's sessions also leave the broadcast group.
	for _, target := range s.sessionManager.GetByUserID(req.TargetID) {
		s.broadcaster.LeaveGroup(req.LobbyID, target.GetID())
		target.LobbyID = ""
	}
}

func (s *GameServer) handleStartGame(sess *session.Session, packet *network.Packet) {
	var req lobbyRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	if err := s.lobbies.StartGame(req.LobbyID, sess.GetUserID()); err != nil {
		s.sendRoomError(sess, err)
	}
	// Group membership survives the transition: lobby and room share
	// an id, so the coming room broadcasts reach everyone already.
}

// --- matchmaking ---

type joinQueueRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (s *GameServer) handleJoinQueue(sess *session.Session, packet *network.Packet) {
	var req joinQueueRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	sess.Identify(req.UserID, req.Username)

	if err := s.matchmaker.Join(sess.GetUserID(), sess.GetUsername()); err != nil {
		data, _ := json.Marshal(map[string]string{"message": err.Error()})
		sess.Send(network.MsgTypeQueueError, data)
	}
}

func (s *GameServer) handleLeaveQueue(sess *session.Session) {
	s.matchmaker.Leave(sess.GetUserID())
}
