// internal/handlers/ws/ws_handler.go
package ws

import (
	"fleetcheck-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	hub    *websocket.Hub
	logger *zap.Logger
}

func NewWebSocketHandler(hub *websocket.Hub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

// HandleConnection upgrades the request and subscribes the client to the
// event stream (batch completions, ticket openings, decision changes).
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	websocket.ServeWS(h.hub, c.Writer, c.Request, h.logger)
}
