package config

import (
	"os"
	"strconv"
	"time"

	"playsync/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	DatabaseURL   string // optional, session archive disabled when empty
	RedisAddr     string // optional, memory gateway used when empty
	RedisPassword string
	RedisDB       int
	JWTSecret     string
	AllowedOrigin string
	LogLevel      string
	LogJSON       bool

	// Room lifecycle
	RoomTimeout time.Duration // in-memory inactivity timeout
	SnapshotTTL time.Duration // durable snapshot expiry, independent of RoomTimeout
	MaxPlayers  int

	// Round timing
	Countdown       time.Duration
	TickInterval    time.Duration
	RevealHold      time.Duration
	DisconnectGrace time.Duration
}

// Load reads configuration from the environment (.env supported).
func Load() *Config {
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	roomTimeout := 1200 * time.Second
	if v := os.Getenv("ROOM_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			roomTimeout = time.Duration(n) * time.Second
		}
	}

	snapshotTTL := 24 * time.Hour
	if v := os.Getenv("SNAPSHOT_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			snapshotTTL = time.Duration(n) * time.Hour
		}
	}

	maxPlayers := 2
	if v := os.Getenv("MAX_PLAYERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			maxPlayers = n
		}
	}

	return &Config{
		AppPort:       port,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		JWTSecret:     jwtSecret,
		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		LogJSON:       os.Getenv("LOG_JSON") == "true",

		RoomTimeout: roomTimeout,
		SnapshotTTL: snapshotTTL,
		MaxPlayers:  maxPlayers,

		Countdown:       4 * time.Second,
		TickInterval:    1 * time.Second,
		RevealHold:      1500 * time.Millisecond,
		DisconnectGrace: 5 * time.Second,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
