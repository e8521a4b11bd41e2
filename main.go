package main

import (
	"github.com/duckuru/spellin-bee/broadcast"
	"github.com/duckuru/spellin-bee/config"
	"github.com/duckuru/spellin-bee/lobby"
	"github.com/duckuru/spellin-bee/logger"
	"github.com/duckuru/spellin-bee/matchmaking"
	"github.com/duckuru/spellin-bee/monitor"
	"github.com/duckuru/spellin-bee/persistence"
	"github.com/duckuru/spellin-bee/room"
	"github.com/duckuru/spellin-bee/server"
	"github.com/duckuru/spellin-bee/services"
	"github.com/duckuru/spellin-bee/session"
	"github.com/duckuru/spellin-bee/state"
	"github.com/duckuru/spellin-bee/store"
	"github.com/duckuru/spellin-bee/timer"
	"github.com/duckuru/spellin-bee/words"
)

const dictionaryCacheSize = 512

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	logger.Init(cfg.Debug)

	// Database
	var repo persistence.RoomRepository
	switch cfg.Database.Driver {
	case "pq":
		repo, err = persistence.NewPostgreSQL(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
	default:
		repo, err = persistence.NewGormPostgreSQL(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
	}
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()
	logger.Log.Info("Database connection successful.")

	// Shared state store
	redisStore, err := store.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisStore.Close()
	keeper := state.NewKeeper(redisStore, cfg.Game.RoomTTL, cfg.Game.LobbyTTL)

	// Word source
	bank, err := words.LoadBank(cfg.Game.WordsFile)
	if err != nil {
		logger.Log.Fatalf("Failed to load word bank: %v", err)
	}
	dict, err := words.NewDictionary(cfg.Game.DictionaryURL, dictionaryCacheSize)
	if err != nil {
		logger.Log.Fatalf("Failed to create dictionary: %v", err)
	}
	picker := words.NewPicker(bank, dict, words.FastRand{})

	// Transport plumbing
	sessionManager := session.NewManager()
	broadcaster := broadcast.NewGroupBroadcaster(sessionManager)

	// Timers
	timers := timer.NewManager()
	defer timers.Stop()

	// Metrics
	mon := monitor.NewMonitor("spellinbee")
	mon.StartServer(cfg.Server.MetricsAddress)

	// Game layers
	rating := services.NewRatingService(repo)
	rooms := room.NewOrchestrator(keeper, repo, broadcaster, picker, rating, timers, words.FastRand{}, room.Config{
		PreTurnDelay:     cfg.Game.PreTurnDelay,
		JoinPreTurnDelay: cfg.Game.JoinPreTurn,
	})
	rooms.SetMetrics(mon)
	lobbies := lobby.NewOrchestrator(keeper, repo, broadcaster, cfg.Game.MaxPlayers, state.LobbySettings{
		Rounds:   cfg.Game.Rounds,
		TurnTime: cfg.Game.TurnTime,
	})
	matchmaker := matchmaking.NewMatchmaker(repo, broadcaster, cfg.Game.Rounds, cfg.Game.TurnTime)
	matchmaker.SetMetrics(mon)

	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, cfg.Server.RPCAddress, server.Deps{
		SessionManager: sessionManager,
		Broadcaster:    broadcaster,
		Rooms:          rooms,
		Lobbies:        lobbies,
		Matchmaker:     matchmaker,
		Repo:           repo,
		Monitor:        mon,
	})

	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
