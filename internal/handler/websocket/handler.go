package websocket

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
	"github.com/s-renren/Fireworks-Display-Online/internal/dto"
	"github.com/s-renren/Fireworks-Display-Online/internal/hub"
)

// RoomFinder checks that a room exists before a client is attached to it.
type RoomFinder interface {
	FindByID(ctx context.Context, roomID string) (dto.Room, error)
}

// WebSocketHandler upgrades room event requests and hands the connection to the hub.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
	rooms    RoomFinder
}

// NewWebSocketHandler creates a WebSocketHandler. checkOrigin may be nil to accept any origin.
func NewWebSocketHandler(h *hub.Hub, rooms RoomFinder, checkOrigin func(r *http.Request) bool) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if rooms == nil {
		panic("RoomFinder cannot be nil for WebSocketHandler")
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		hub:   h,
		rooms: rooms,
	}
}

// HandleRoomEvents serves GET /ws/rooms/:roomId/events.
func (h *WebSocketHandler) HandleRoomEvents(c *gin.Context) {
	logCtx := logrus.NewEntry(logrus.StandardLogger())

	userIDAny, exists := c.Get("user_id")
	if !exists {
		logCtx.Warn("WS Handler: User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		logCtx.Error("WS Handler: User ID in context is not uint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	roomID := c.Param("roomId")
	logCtx = logCtx.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})

	if _, err := h.rooms.FindByID(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logCtx.WithError(err).Warn("WS Handler: Room not found")
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		} else {
			logCtx.WithError(err).Error("WS Handler: Error checking room existence")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate room"})
		}
		return
	}

	// Upgrade writes its own HTTP error response on failure.
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logCtx.WithError(err).Warn("WS Handler: Failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, roomID, userID)
	if !h.hub.Register(client) {
		logCtx.Error("WS Handler: Hub unavailable, closing connection")
		client.CloseConn()
		return
	}
	client.Run()
	logCtx.Info("WS Handler: Client attached to room events")
}
