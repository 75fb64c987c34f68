package handlers

import (
	"net/http"
	"strconv"
	"time"

	"playsync/internal/repository"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	archive *repository.SessionArchive
}

func NewSessionHandler(archive *repository.SessionArchive) *SessionHandler {
	return &SessionHandler{archive: archive}
}

type sessionResponse struct {
	RoomID     string         `json:"room_id"`
	OpponentID string         `json:"opponent_id"`
	GameKind   string         `json:"game_kind"`
	Result     string         `json:"result"`
	Score      int            `json:"score"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ByPlayer returns a player's archived sessions, newest first.
func (h *SessionHandler) ByPlayer(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	records, err := h.archive.GetByPlayer(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sessions"})
		return
	}

	out := make([]sessionResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, sessionResponse{
			RoomID:     rec.RoomID,
			OpponentID: rec.OpponentID,
			GameKind:   string(rec.GameKind),
			Result:     rec.Result,
			Score:      rec.Score,
			Details:    rec.Details,
			CreatedAt:  rec.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}
