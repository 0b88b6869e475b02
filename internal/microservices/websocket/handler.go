package websocket

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// HTTP upgrade handler to WebSocket connections

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// allow all origins for development purpose; can restrict later
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler: handle upgrade request from HTTP connection to WebSocket.
// A token presented at upgrade time (Authorization header or ?token=)
// authenticates immediately; otherwise the connection stays anonymous
// until the client sends an auth message over the channel.
func WSHandler(hub *Hub, validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID, userName string
		if token := upgradeToken(c); token != "" {
			claims, err := validator.ParseClaims(token)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			userID = claims.UserID
			userName = claims.Username
		}

		// upgrade HTTP connection to WebSocket; on failure the upgrader
		// has already written its own error response
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}

		// create new client with its own connection id
		client := NewClient(uuid.New().String(), userID, userName, conn, hub)

		// register client to hub
		hub.Register(client)

		// start goroutines for read and write pumps
		go client.ReadPump()
		go client.WritePump()
	}
}

// upgradeToken pulls a bearer token from the Authorization header or the
// token query parameter (browsers cannot set headers on WebSocket dials).
func upgradeToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if parts := strings.Split(authHeader, " "); len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return c.Query("token")
}
