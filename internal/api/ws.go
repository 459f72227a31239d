package api

import (
	"whatsjuju-chat/backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSHandler upgrades authenticated requests to the live message feed
type WSHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *ws.Hub, allowedOrigins []string) *WSHandler {
	return &WSHandler{hub: hub, upgrader: ws.Upgrader(allowedOrigins)}
}

func (h *WSHandler) Serve(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	h.hub.Serve(c, &h.upgrader, uid)
}
