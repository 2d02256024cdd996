package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
	Storage   StorageConfig
	Kafka     KafkaConfig
	LogLevel  string
}

var (
	ConfigInstance *Config
	once           sync.Once
)

type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	URL          string
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

type JWTConfig struct {
	Secret         string
	ExpirationTime time.Duration
}

type WebSocketConfig struct {
	SendBufferSize int
	SendTimeout    time.Duration
	MaxMessageSize int64
	AllowedOrigins []string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	MaxUploadSize int64
}

// Enabled reports whether an object store endpoint was configured.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != ""
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

func setDefaults() {
	viper.SetDefault("RELAY_HOST", "")
	viper.SetDefault("RELAY_PORT", "5001")
	viper.SetDefault("RELAY_READ_TIMEOUT", 30*time.Second)
	viper.SetDefault("RELAY_WRITE_TIMEOUT", 30*time.Second)
	viper.SetDefault("RELAY_IDLE_TIMEOUT", 120*time.Second)
	viper.SetDefault("RELAY_SHUTDOWN_TIMEOUT", 30*time.Second)
	viper.SetDefault("JWT_SECRET_KEY", "jwt-secret-key-change-this")
	viper.SetDefault("JWT_EXPIRE", 7*24*time.Hour)
	viper.SetDefault("REDIS_URL", "redis://127.0.0.1:6379/0")
	viper.SetDefault("REDIS_MAX_RETRIES", 3)
	viper.SetDefault("REDIS_POOL_SIZE", 100)
	viper.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
	viper.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
	viper.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
	viper.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
	viper.SetDefault("POSTGRES_USER", "postgres")
	viper.SetDefault("POSTGRES_PASSWORD", "password")
	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", "5432")
	viper.SetDefault("POSTGRES_DB", "signal")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")
	viper.SetDefault("WS_SEND_BUFFER", 256)
	viper.SetDefault("WS_SEND_TIMEOUT", 50*time.Millisecond)
	viper.SetDefault("WS_MAX_MESSAGE_SIZE", 64*1024)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	viper.SetDefault("MINIO_BUCKET", "uploads")
	viper.SetDefault("MINIO_USE_SSL", false)
	viper.SetDefault("UPLOAD_MAX_BYTES", 25<<20)
	viper.SetDefault("KAFKA_ENABLED", false)
	viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
	viper.SetDefault("KAFKA_TOPIC", "chat.messages")
	viper.SetDefault("LOG_LEVEL", "info")
}

func LoadConfig() (*Config, error) {
	once.Do(func() {
		// .env is optional; real environment wins over it.
		if err := godotenv.Load(); err != nil {
			slog.Debug("No .env file loaded", "error", err)
		}

		setDefaults()
		viper.AutomaticEnv()

		ConfigInstance = &Config{
			Server: ServerConfig{
				Host:            viper.GetString("RELAY_HOST"),
				Port:            viper.GetString("RELAY_PORT"),
				ReadTimeout:     viper.GetDuration("RELAY_READ_TIMEOUT"),
				WriteTimeout:    viper.GetDuration("RELAY_WRITE_TIMEOUT"),
				IdleTimeout:     viper.GetDuration("RELAY_IDLE_TIMEOUT"),
				ShutdownTimeout: viper.GetDuration("RELAY_SHUTDOWN_TIMEOUT"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("POSTGRES_HOST"),
				Port:     viper.GetString("POSTGRES_PORT"),
				User:     viper.GetString("POSTGRES_USER"),
				Password: viper.GetString("POSTGRES_PASSWORD"),
				DBName:   viper.GetString("POSTGRES_DB"),
				SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
			},
			Redis: RedisConfig{
				URL:          viper.GetString("REDIS_URL"),
				MaxRetries:   viper.GetInt("REDIS_MAX_RETRIES"),
				DialTimeout:  viper.GetDuration("REDIS_DIAL_TIMEOUT"),
				ReadTimeout:  viper.GetDuration("REDIS_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("REDIS_WRITE_TIMEOUT"),
				PoolSize:     viper.GetInt("REDIS_POOL_SIZE"),
				MinIdleConns: viper.GetInt("REDIS_MIN_IDLE_CONNS"),
			},
			JWT: JWTConfig{
				Secret:         viper.GetString("JWT_SECRET_KEY"),
				ExpirationTime: viper.GetDuration("JWT_EXPIRE"),
			},
			WebSocket: WebSocketConfig{
				SendBufferSize: viper.GetInt("WS_SEND_BUFFER"),
				SendTimeout:    viper.GetDuration("WS_SEND_TIMEOUT"),
				MaxMessageSize: viper.GetInt64("WS_MAX_MESSAGE_SIZE"),
				AllowedOrigins: splitList(viper.GetString("ALLOWED_ORIGINS")),
			},
			Storage: StorageConfig{
				Endpoint:  viper.GetString("MINIO_ENDPOINT"),
				AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
				SecretKey: viper.GetString("MINIO_SECRET_KEY"),
				Bucket:    viper.GetString("MINIO_BUCKET"),
				UseSSL:    viper.GetBool("MINIO_USE_SSL"),

				MaxUploadSize: viper.GetInt64("UPLOAD_MAX_BYTES"),
			},
			Kafka: KafkaConfig{
				Enabled: viper.GetBool("KAFKA_ENABLED"),
				Brokers: splitList(viper.GetString("KAFKA_BROKERS")),
				Topic:   viper.GetString("KAFKA_TOPIC"),
			},
			LogLevel: viper.GetString("LOG_LEVEL"),
		}
	})

	return ConfigInstance, nil
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
