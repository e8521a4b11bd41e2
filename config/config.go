package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
	Debug    bool           `mapstructure:"debug"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	// Driver selects the repository implementation: "gorm" or "pq".
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type GameConfig struct {
	TurnTime      int           `mapstructure:"turn_time"`      // seconds per turn
	Rounds        int           `mapstructure:"rounds"`         // default round count
	MaxPlayers    int           `mapstructure:"max_players"`    // lobby cap
	PreTurnDelay  time.Duration `mapstructure:"pre_turn_delay"` // pause before a turn starts
	JoinPreTurn   time.Duration `mapstructure:"join_pre_turn"`  // first pre-turn after a join
	RoomTTL       time.Duration `mapstructure:"room_ttl"`
	LobbyTTL      time.Duration `mapstructure:"lobby_ttl"`
	WordsFile     string        `mapstructure:"words_file"`
	DictionaryURL string        `mapstructure:"dictionary_url"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("server.metrics_address", ":9100")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("database.driver", "gorm")
	viper.SetDefault("game.turn_time", 20)
	viper.SetDefault("game.rounds", 3)
	viper.SetDefault("game.max_players", 6)
	viper.SetDefault("game.pre_turn_delay", 5*time.Second)
	viper.SetDefault("game.join_pre_turn", 10*time.Second)
	viper.SetDefault("game.room_ttl", time.Hour)
	viper.SetDefault("game.lobby_ttl", time.Hour)
	viper.SetDefault("game.words_file", "words.json")
	viper.SetDefault("game.dictionary_url", "https://api.dictionaryapi.dev/api/v2/entries/en")

	viper.AutomaticEnv()

	if err = viper.ReadInConfig(); err != nil {
		// Missing file is fine, the defaults stand alone.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
