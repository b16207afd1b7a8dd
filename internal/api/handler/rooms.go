package handler

import (
	"circleup/backend/internal/rooms"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListRooms(c *gin.Context) {
	list, err := h.Directory.ListRooms(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var req rooms.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.Directory.CreateRoom(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.Directory.GetRoomDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

type joinRequest struct {
	Password string `json:"password"`
}

func (h *Handler) JoinRoom(c *gin.Context) {
	var req joinRequest
	_ = c.ShouldBindJSON(&req)

	roomID := c.Param("id")
	if err := h.Ledger.JoinRoom(c.Request.Context(), currentUser(c), roomID, req.Password); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"joined": roomID})
}

func (h *Handler) MyRooms(c *gin.Context) {
	ids, err := h.Ledger.UserJoinedRooms(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chatRoomsJoined": ids})
}
