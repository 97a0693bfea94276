package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port string
	}
	Log struct {
		Level string
	}
	Database struct {
		DSN string // 为空则用户数据只存在内存
	}
	Redis struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
	}
	JWT struct {
		Secret string
		TTL    time.Duration
	}
	Game struct {
		HandSize           int      `mapstructure:"hand_size"`
		MaxPlayers         int      `mapstructure:"max_players"`
		NumericOpeningCard bool     `mapstructure:"numeric_opening_card"`
		Matches            []string // 启动时创建的房间
	}
	Lobby struct {
		TTL int // seconds
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("game.hand_size", 6)
	v.SetDefault("game.max_players", 10)
	v.SetDefault("game.numeric_opening_card", false)
	v.SetDefault("game.matches", []string{"My match 1", "My match 2", "My match 3"})
	v.SetDefault("lobby.ttl", 3600)
}

// Load 读取 YAML（path 为空时只用默认值和环境变量），UNO_ 前缀的环境变量覆盖，如 UNO_REDIS_ADDR
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("UNO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv 只对已知 key 生效，没有默认值的也要绑上
	for _, key := range []string{"redis.password", "database.dsn", "jwt.secret"} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if c.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret is required")
	}
	if c.Game.HandSize <= 0 || c.Game.MaxPlayers < 2 {
		return nil, fmt.Errorf("invalid game config: hand_size=%d max_players=%d", c.Game.HandSize, c.Game.MaxPlayers)
	}
	return &c, nil
}
