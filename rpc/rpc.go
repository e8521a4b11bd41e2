// rpc/rpc.go
package rpc

import (
	"net"
	"net/rpc"

	"github.com/duckuru/spellin-bee/logger"
	"github.com/duckuru/spellin-bee/models"
	"github.com/duckuru/spellin-bee/persistence"
	"github.com/duckuru/spellin-bee/room"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered by the
// caller before Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// GameService exposes read-only game queries over net/rpc for the admin
// tooling. Methods follow the net/rpc signature rules: exported, args
// and reply pointers, error return.
type GameService struct {
	orchestrator *room.Orchestrator
	repo         persistence.RoomRepository
}

func NewGameService(orchestrator *room.Orchestrator, repo persistence.RoomRepository) *GameService {
	return &GameService{orchestrator: orchestrator, repo: repo}
}

type GetRoomStateArgs struct {
	RoomID string
}

type GetRoomStateReply struct {
	State *room.StatePayload
}

func (gs *GameService) GetRoomState(args *GetRoomStateArgs, reply *GetRoomStateReply) error {
	snapshot, err := gs.orchestrator.Snapshot(args.RoomID)
	if err != nil {
		return err
	}
	reply.State = snapshot
	return nil
}

type GetPlayerArgs struct {
	UserID string
}

type GetPlayerReply struct {
	Data *models.UserData
}

func (gs *GameService) GetPlayerWithStats(args *GetPlayerArgs, reply *GetPlayerReply) error {
	data, err := gs.repo.GetUserData(args.UserID)
	if err != nil {
		return err
	}
	reply.Data = data
	return nil
}

type GetRoomArgs struct {
	RoomID string
}

type GetRoomReply struct {
	Room *models.Room
}

func (gs *GameService) GetRoom(args *GetRoomArgs, reply *GetRoomReply) error {
	r, err := gs.repo.FetchRoom(args.RoomID)
	if err != nil {
		return err
	}
	reply.Room = r
	return nil
}
