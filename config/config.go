package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Invite    InviteConfig    `mapstructure:"invite"`
	Chat      ChatConfig      `mapstructure:"chat"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type JWTConfig struct {
	Secret       string `mapstructure:"secret"`
	ExpireHours  int    `mapstructure:"expire_hours"`
	RefreshHours int    `mapstructure:"refresh_hours"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

type RateLimitConfig struct {
	Limit    int `mapstructure:"limit"`
	WindowMs int `mapstructure:"window_ms"`
}

// InviteConfig controls room invite-code allocation.
// Length and alphabet are construction-time invariants of the allocator;
// MaxAttempts bounds the regenerate-on-collision loop.
type InviteConfig struct {
	Length      int    `mapstructure:"length"`
	Alphabet    string `mapstructure:"alphabet"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

// ChatConfig holds the service-level pagination bounds for message history.
type ChatConfig struct {
	PageSizeMin     int `mapstructure:"page_size_min"`
	PageSizeDefault int `mapstructure:"page_size_default"`
	PageSizeMax     int `mapstructure:"page_size_max"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")

	v.SetDefault("postgres.max_idle_conns", 10)
	v.SetDefault("postgres.max_open_conns", 50)

	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 5)

	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("jwt.refresh_hours", 168)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("ratelimit.limit", 100)
	v.SetDefault("ratelimit.window_ms", 1000)

	v.SetDefault("invite.length", 8)
	v.SetDefault("invite.alphabet", "ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
	v.SetDefault("invite.max_attempts", 10)

	v.SetDefault("chat.page_size_min", 1)
	v.SetDefault("chat.page_size_default", 50)
	v.SetDefault("chat.page_size_max", 200)
}
