package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Translate  TranslateConfig  `mapstructure:"translate"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Relay      RelayConfig      `mapstructure:"relay"`
	Platform   PlatformConfig   `mapstructure:"platform"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Mode     string `mapstructure:"mode"`
	WorkerID int64  `mapstructure:"worker_id"`
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

type TranslateConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	URL            string `mapstructure:"url"`
	TimeoutSec     int    `mapstructure:"timeout_sec"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
	LanguageTTLSec int    `mapstructure:"language_ttl_sec"`
}

type ModerationConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	URL            string  `mapstructure:"url"`
	Threshold      float64 `mapstructure:"threshold"`
	FailClosed     bool    `mapstructure:"fail_closed"`
	TimeoutSec     int     `mapstructure:"timeout_sec"`
	MaxConcurrency int     `mapstructure:"max_concurrency"`
}

type RelayConfig struct {
	TranslateTimeoutSec int `mapstructure:"translate_timeout_sec"`
	DeliverTimeoutSec   int `mapstructure:"deliver_timeout_sec"`
}

type PlatformConfig struct {
	APIBase    string `mapstructure:"api_base"`
	BotToken   string `mapstructure:"bot_token"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

type RateLimitConfig struct {
	TranslateQPS int `mapstructure:"translate_qps"`
	ClassifyQPS  int `mapstructure:"classify_qps"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	v.SetDefault("moderation.threshold", 0.5)
	v.SetDefault("relay.translate_timeout_sec", 5)
	v.SetDefault("relay.deliver_timeout_sec", 5)
	v.SetDefault("translate.max_concurrency", 8)
	v.SetDefault("moderation.max_concurrency", 4)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}
