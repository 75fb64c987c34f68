package http

import (
	"playsync/internal/http/handlers"
	"playsync/internal/repository"
	"playsync/internal/room"
	"playsync/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps carries everything the route table needs. DB and Archive are nil when
// Postgres is not configured; the session endpoints are then not registered.
type Deps struct {
	Registry      *room.Registry
	Hub           *ws.Hub
	Dispatcher    *ws.Dispatcher
	DB            *pgxpool.Pool
	Archive       *repository.SessionArchive
	AllowedOrigin string
	Version       string
}

func RegisterRoutes(r *gin.Engine, deps Deps) {
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Version)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	roomHandler := handlers.NewRoomHandler(deps.Registry)
	api := r.Group("/api")
	{
		api.POST("/rooms", roomHandler.Create)
		api.GET("/rooms/:id", roomHandler.Get)

		if deps.Archive != nil {
			sessionHandler := handlers.NewSessionHandler(deps.Archive)
			api.GET("/players/:id/sessions", sessionHandler.ByPlayer)
		}
	}

	r.GET("/ws", ws.HandleWS(deps.Hub, deps.Dispatcher, deps.AllowedOrigin))
}
