// README: WebSocket subscription endpoint for live booking updates.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"lifton/internal/realtime"
	"lifton/internal/types"
)

type WSHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSHandler(hub *realtime.Hub, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Token auth happens before the upgrade; origin checks belong to
			// the fronting proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *WSHandler) Register(r *gin.RouterGroup) {
	r.GET("/bookings/:id/ws", h.subscribe)
}

// subscribe upgrades the request and parks it on the booking channel until
// the client goes away. The read loop discards inbound frames; the channel
// is server-to-client only.
func (h *WSHandler) subscribe(c *gin.Context) {
	bookingID := types.ID(c.Param("id"))
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "booking_id", bookingID, "error", err)
		return
	}
	defer conn.Close()

	unsubscribe := h.hub.Subscribe(bookingID, conn)
	defer unsubscribe()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
