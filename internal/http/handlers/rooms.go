package handlers

import (
	"net/http"
	"time"

	"playsync/internal/metrics"
	"playsync/internal/room"

	"github.com/gin-gonic/gin"
)

type RoomHandler struct {
	registry *room.Registry
}

func NewRoomHandler(registry *room.Registry) *RoomHandler {
	return &RoomHandler{registry: registry}
}

type createRoomRequest struct {
	TimeoutSeconds int `json:"timeout_seconds"`
}

// Create allocates a room and returns its join code. The code is the only
// handle clients ever hold; joining happens over the WebSocket.
func (h *RoomHandler) Create(c *gin.Context) {
	var req createRoomRequest
	// body is optional
	_ = c.ShouldBindJSON(&req)

	var timeout time.Duration
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	roomID, err := h.registry.CreateRoom(c.Request.Context(), timeout)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}

	metrics.RoomsCreated.Inc()
	c.JSON(http.StatusCreated, gin.H{"room_id": roomID})
}

// Get returns the room state for a join code, or 404.
func (h *RoomHandler) Get(c *gin.Context) {
	rm := h.registry.GetRoom(c.Request.Context(), c.Param("id"))
	if rm == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if rm.IsExpired() {
		c.JSON(http.StatusGone, gin.H{"error": "room expired"})
		return
	}
	c.JSON(http.StatusOK, rm.View())
}
