package ws

import (
	"net/http"

	"playsync/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// HandleWS upgrades the request and runs the connection until it drops. A
// connection is anonymous at this point: identity arrives with the first
// join_room or reconnect frame.
func HandleWS(hub *Hub, d *Dispatcher, allowedOrigin string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Error("ws upgrade failed", "error", err)
			return
		}

		client := NewClient(conn, hub)
		go client.Run(d)
	}
}
