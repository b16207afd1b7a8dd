package handler

import (
	"circleup/backend/internal/chathub"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Дозволяє з'єднання з будь-якого домену. У продакшені налаштувати!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket.
// The token has already been checked by the auth middleware.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	user := currentUser(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		log.Printf("WARNING: WebSocket upgrade failed for %s: %v", user.ID, err)
		return
	}

	client := chathub.NewWebSocketClient(conn, h.Hub, user, chathub.ClientOptions{
		NewSession: h.NewSession,
		DeviceID:   c.Query("device"),
		Locations:  h.Pipeline,
		Localizer:  h.Localizer,
		Lang:       language(c),
	})

	// Реєстрація клієнта в Chat Hub; хаб сам запускає pumps.
	if !h.Hub.Register(client) {
		client.Close()
		conn.Close()
	}
}
