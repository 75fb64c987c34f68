package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"playsync/internal/config"
	"playsync/internal/db"
	"playsync/internal/game"
	httpServer "playsync/internal/http"
	"playsync/internal/logger"
	"playsync/internal/metrics"
	"playsync/internal/repository"
	"playsync/internal/room"
	"playsync/internal/service"
	"playsync/internal/storage"
	"playsync/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	var dbPool *pgxpool.Pool
	var archive *repository.SessionArchive
	if cfg.DatabaseURL != "" {
		dbPool = db.Connect(cfg.DatabaseURL)
		defer dbPool.Close()
		archive = repository.NewSessionArchive(dbPool)
	} else {
		logger.Warn("DATABASE_URL not set, session archive disabled")
	}

	var gateway storage.Gateway
	if cfg.RedisAddr != "" {
		redisGateway, err := storage.NewRedisGateway(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("failed to connect to redis", "error", err)
		}
		gateway = redisGateway
	} else {
		logger.Warn("REDIS_ADDR not set, room snapshots held in memory only")
		gateway = storage.NewMemoryGateway()
	}

	registry := room.NewRegistry(gateway, room.RegistryOptions{
		DefaultTimeout: cfg.RoomTimeout,
		SnapshotTTL:    cfg.SnapshotTTL,
		MaxPlayers:     cfg.MaxPlayers,
	})

	hub := ws.NewHub(cfg.DisconnectGrace)
	tokens := service.NewTokens(cfg.JWTSecret, 0)
	timing := game.Timing{
		Countdown: cfg.Countdown,
		Tick:      cfg.TickInterval,
		Reveal:    cfg.RevealHold,
	}
	dispatcher := ws.NewDispatcher(registry, hub, tokens, timing, archive)

	// background sweep: expired rooms and the live-room gauge
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				registry.CleanupExpired(sweepCtx)
				metrics.ActiveRooms.Set(float64(registry.Count()))
			case <-sweepCtx.Done():
				return
			}
		}
	}()

	if cfg.LogJSON {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	httpServer.RegisterRoutes(r, httpServer.Deps{
		Registry:      registry,
		Hub:           hub,
		Dispatcher:    dispatcher,
		DB:            dbPool,
		Archive:       archive,
		AllowedOrigin: cfg.AllowedOrigin,
		Version:       version,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
