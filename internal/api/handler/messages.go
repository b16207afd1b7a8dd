package handler

import (
	"circleup/backend/internal/attachment"
	"circleup/backend/internal/models"
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// readable rejects non-members of private rooms.
func (h *Handler) readable(ctx context.Context, user models.User, roomID string) error {
	room, err := h.Directory.GetRoomDetails(ctx, roomID)
	if err != nil {
		return err
	}
	if room.IsPrivate && !room.HasMember(user.ID) {
		return models.ErrNotInRoom
	}
	return nil
}

// ListMessages is the one-shot fetch of a room, newest first.
func (h *Handler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("id")
	if err := h.readable(ctx, currentUser(c), roomID); err != nil {
		h.respondError(c, err)
		return
	}

	msgs, err := h.Messages.FetchAll(ctx, roomID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// UploadAttachment stores the "image" form file and appends it as a message.
func (h *Handler) UploadAttachment(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)
	roomID := c.Param("id")
	if err := h.readable(ctx, user, roomID); err != nil {
		h.respondError(c, err)
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}

	content, err := h.Pipeline.UploadImage(ctx, user.ID, attachment.MultipartRef(file))
	if err != nil {
		h.respondError(c, err)
		return
	}
	content.Text = c.PostForm("caption")

	msg, err := h.Messages.Append(ctx, roomID, user.Sender(), c.PostForm("id"), content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// GetAttachment serves a stored image by object name.
func (h *Handler) GetAttachment(c *gin.Context) {
	data, info, err := h.Blobs.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Length", strconv.Itoa(len(data)))
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, info.ContentType, data)
}
