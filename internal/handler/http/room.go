package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/s-renren/Fireworks-Display-Online/internal/domain"
	"github.com/s-renren/Fireworks-Display-Online/internal/service"
)

// RoomHandler serves the room API. Every route expects the Auth middleware in front of it.
type RoomHandler struct {
	roomService *service.RoomService
	authService *service.AuthService
}

// NewRoomHandler creates a RoomHandler.
func NewRoomHandler(roomService *service.RoomService, authService *service.AuthService) *RoomHandler {
	if roomService == nil || authService == nil {
		panic("RoomService and AuthService are required for RoomHandler")
	}
	return &RoomHandler{roomService: roomService, authService: authService}
}

// CreateRoomRequest is the body of POST /api/rooms. Status defaults to OPEN.
type CreateRoomRequest struct {
	Name     string  `json:"name" binding:"required"`
	Password *string `json:"password"`
	Status   string  `json:"status"`
}

// RenameRoomRequest is the body of PATCH /api/rooms/:roomId.
type RenameRoomRequest struct {
	Name string `json:"name" binding:"required"`
}

// EnterRoomRequest is the body of POST /api/rooms/:roomId/enter.
type EnterRoomRequest struct {
	FireFlowerIDs []string `json:"fireFlowerIds"`
}

// EnterPrivateRoomRequest is the body of POST /api/rooms/enter-private.
type EnterPrivateRoomRequest struct {
	Password      string   `json:"password" binding:"required"`
	FireFlowerIDs []string `json:"fireFlowerIds"`
}

// actor resolves the authenticated user. On failure the response has been written.
func (h *RoomHandler) actor(c *gin.Context) (domain.User, bool) {
	userIDAny, exists := c.Get("user_id")
	userID, ok := userIDAny.(uint)
	if !exists || !ok {
		logrus.Error("RoomHandler: user_id missing from context")
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return domain.User{}, false
	}
	user, err := h.authService.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return domain.User{}, false
	}
	return user, true
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logrus.WithError(err).WithField("path", c.FullPath()).Warn("RoomHandler: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return false
	}
	return true
}

// ListRooms handles GET /api/rooms.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.FindAll(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, rooms)
}

// GetRoom handles GET /api/rooms/:roomId.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.FindByID(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// CreateRoom handles POST /api/rooms.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req CreateRoomRequest
	if !bindJSON(c, &req) {
		return
	}
	status := domain.RoomStatus(req.Status)
	if status == "" {
		status = domain.RoomStatusOpen
	}

	room, err := h.roomService.Create(c.Request.Context(), actor, domain.RoomCreateVal{
		Name:     req.Name,
		Password: req.Password,
		Status:   status,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, room)
}

// RenameRoom handles PATCH /api/rooms/:roomId.
func (h *RoomHandler) RenameRoom(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req RenameRoomRequest
	if !bindJSON(c, &req) {
		return
	}

	room, err := h.roomService.UpdateRoomName(c.Request.Context(), actor, domain.RoomUpdateVal{Name: req.Name}, c.Param("roomId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// DeleteRoom handles DELETE /api/rooms/:roomId.
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	room, err := h.roomService.Delete(c.Request.Context(), actor, c.Param("roomId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// EnterRoom handles POST /api/rooms/:roomId/enter.
func (h *RoomHandler) EnterRoom(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req EnterRoomRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	room, err := h.roomService.EnterRoom(c.Request.Context(), actor, c.Param("roomId"), req.FireFlowerIDs)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// EnterPrivateRoom handles POST /api/rooms/enter-private.
func (h *RoomHandler) EnterPrivateRoom(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req EnterPrivateRoomRequest
	if !bindJSON(c, &req) {
		return
	}

	room, err := h.roomService.EnterPrivateRoom(c.Request.Context(), actor, req.Password, req.FireFlowerIDs)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// ExitRoom handles POST /api/rooms/exit.
func (h *RoomHandler) ExitRoom(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	room, err := h.roomService.ExitRoom(c.Request.Context(), actor)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// RegisterRoutes mounts the room API on group.
func (h *RoomHandler) RegisterRoutes(group gin.IRoutes) {
	group.GET("", h.ListRooms)
	group.POST("", h.CreateRoom)
	group.POST("/enter-private", h.EnterPrivateRoom)
	group.POST("/exit", h.ExitRoom)
	group.GET("/:roomId", h.GetRoom)
	group.PATCH("/:roomId", h.RenameRoom)
	group.DELETE("/:roomId", h.DeleteRoom)
	group.POST("/:roomId/enter", h.EnterRoom)
}
